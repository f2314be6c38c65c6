package device

import (
	"log/slog"
	"sync"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/frame"
	"github.com/oov/audio/resampler"
)

const (
	// Initial capacity of the stage buffers. 120ms of 48kHz stereo is 11520 samples,
	// so most streams never grow past this.
	bufferSize int = 16384

	resampleQuality = 10
)

// Return buf if it holds at least n samples, otherwise a new buffer that does.
func growBuffer(buf frame.PCMFrame, n int) frame.PCMFrame {
	if len(buf) >= n {
		return buf
	}
	return make(frame.PCMFrame, n)
}

// Converts the frames of a stream in one format (the source properties) into
// another (the sink properties), mixing channels and resampling as needed.
//
// The device sits between a source and a sink in a pipeline, and so is both.
// SetStream takes the stream frames arrive on, GetStream returns the stream
// converted frames leave on.
type AudioFormatConversionDevice struct {
	sourceProperties audiodevice.DeviceProperties
	sinkProperties   audiodevice.DeviceProperties

	stages []conversionStage
	out    chan frame.PCMFrame

	closeOnce sync.Once
}

// Conversion starts once SetStream is called.
func NewAudioFormatConversionDevice(
	sourceProperties audiodevice.DeviceProperties,
	sinkProperties audiodevice.DeviceProperties,
) *AudioFormatConversionDevice {
	return &AudioFormatConversionDevice{
		sourceProperties: sourceProperties,
		sinkProperties:   sinkProperties,
		stages:           planConversion(sourceProperties, sinkProperties),
		out:              make(chan frame.PCMFrame),
	}
}

// Channels are mixed before resampling, so the resampler never works on more
// channels than either side has.
func planConversion(source, sink audiodevice.DeviceProperties) []conversionStage {
	var stages []conversionStage
	switch {
	case source.NumChannels == 1 && sink.NumChannels == 2:
		slog.Debug("converting mono to stereo")
		stages = append(stages, monoToStereo())
	case source.NumChannels == 2 && sink.NumChannels == 1:
		slog.Debug("converting stereo to mono")
		stages = append(stages, stereoToMono())
	}
	if source.SampleRate != sink.SampleRate {
		slog.Debug("resampling", "from", source.SampleRate, "to", sink.SampleRate)
		stages = append(stages, newResampleStage(sink.NumChannels, source.SampleRate, sink.SampleRate))
	}
	return stages
}

// Report whether frames are changed on their way through.
func (d *AudioFormatConversionDevice) Converts() bool {
	return len(d.stages) > 0
}

// The stream converted frames leave on.
func (d *AudioFormatConversionDevice) GetStream() <-chan frame.PCMFrame {
	return d.out
}

func (d *AudioFormatConversionDevice) Close() {
	d.closeOnce.Do(func() {
		close(d.out)
	})
}

// The properties of the frames leaving the device.
func (d *AudioFormatConversionDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.sinkProperties
}

// The properties of the frames entering the device.
func (d *AudioFormatConversionDevice) GetSourceDeviceProperties() audiodevice.DeviceProperties {
	return d.sourceProperties
}

// Start converting frames from in. The output stream closes once in does.
func (d *AudioFormatConversionDevice) SetStream(in <-chan frame.PCMFrame) {
	go func() {
		defer d.Close()
		for pcmFrame := range in {
			if !d.Converts() {
				d.out <- pcmFrame
				continue
			}
			for _, stage := range d.stages {
				pcmFrame = stage(pcmFrame)
			}
			// Stages write into buffers they reuse
			d.out <- append(frame.PCMFrame(nil), pcmFrame...)
		}
	}()
}

// --------------------------------------------------------------------------------

type conversionStage func(in frame.PCMFrame) frame.PCMFrame

func monoToStereo() conversionStage {
	buf := make(frame.PCMFrame, bufferSize)
	return func(in frame.PCMFrame) frame.PCMFrame {
		buf = growBuffer(buf, 2*len(in))
		for i, sample := range in {
			buf[2*i], buf[2*i+1] = sample, sample
		}
		return buf[:2*len(in)]
	}
}

// A trailing half sample pair is dropped.
func stereoToMono() conversionStage {
	buf := make(frame.PCMFrame, bufferSize)
	return func(in frame.PCMFrame) frame.PCMFrame {
		n := len(in) / 2
		buf = growBuffer(buf, n)
		for i := range n {
			buf[i] = (in[2*i] + in[2*i+1]) / 2
		}
		return buf[:n]
	}
}

// Resample interleaved frames of numChannels channels. The resampler works
// on planar data, so each frame is split per channel and interleaved again.
func newResampleStage(numChannels, fromRate, toRate int) conversionStage {
	r := resampler.New(numChannels, fromRate, toRate, resampleQuality)
	planarIn := make([]frame.PCMFrame, numChannels)
	planarOut := make([]frame.PCMFrame, numChannels)
	for c := range numChannels {
		planarIn[c] = make(frame.PCMFrame, bufferSize/numChannels)
		planarOut[c] = make(frame.PCMFrame, bufferSize/numChannels)
	}
	buf := make(frame.PCMFrame, bufferSize)

	return func(in frame.PCMFrame) frame.PCMFrame {
		n := len(in) / numChannels
		outLength := n*toRate/fromRate + 64
		buf = growBuffer(buf, numChannels*outLength)

		written := 0
		for c := range numChannels {
			planarIn[c] = growBuffer(planarIn[c], n)
			planarOut[c] = growBuffer(planarOut[c], outLength)
			for i := range n {
				planarIn[c][i] = in[numChannels*i+c]
			}
			_, written = r.ProcessFloat32(c, planarIn[c][:n], planarOut[c])
		}

		for i := range written {
			for c := range numChannels {
				buf[numChannels*i+c] = planarOut[c][i]
			}
		}
		return buf[:numChannels*written]
	}
}
