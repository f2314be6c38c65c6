package device

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/frame"
)

// There is an expectation that an AudioAugmentationFunction will produce
// PCMFrames with the same device properties as what is given in sourceFrame
//
// In fact, for many AudioAugmentationFunctions, the returned PCMFrame
// is the exact same underlying memory in an effort to avoid reallocations.
type AudioAugmentationFunction func(sourceFrame frame.PCMFrame) frame.PCMFrame

// Middle-man processing device to handle audio augmentations,
// such as volume controls.
// This device is both a sink and a source!
type AudioAugmentationDevice struct {
	deviceProperties audiodevice.DeviceProperties

	// The stream that data *leaves on*
	// i.e. the stream that acts like a source, as it produces frames
	sinkStream chan frame.PCMFrame

	augmentationFunctions []AudioAugmentationFunction

	// float32 bits of the volume magnitude, read on the streaming goroutine
	volumeAdjustMagnitude atomic.Uint32

	shutdownOnce sync.Once
}

// Create a new AudioAugmentationDevice. The augmentation functions are applied in order,
// followed by:
//   - volumeAdjust (controlled with AudioAugmentationDevice.SetVolumeAdjustMagnitude)
//     (0.0 for mute, no cap on volume, but beware of clipping)
//
// Note one must still call SetStream, passing in the source channel,
// and GetStream, to receive the sink channel, to use this device, in an
// effort to remain consistent with the device interfaces.
//
// This device will only start augmenting once SetStream is called.
func NewAudioAugmentationDevice(
	deviceProperties audiodevice.DeviceProperties,
	augmentationFunctions ...AudioAugmentationFunction,
) *AudioAugmentationDevice {
	device := &AudioAugmentationDevice{
		deviceProperties: deviceProperties,
		sinkStream:       make(chan frame.PCMFrame),
	}
	device.volumeAdjustMagnitude.Store(math.Float32bits(1.0))

	device.augmentationFunctions = append(augmentationFunctions, device.volumeAdjust)
	return device
}

// --------------------------------------------------------------------------------
// AudioSourceDevice Interface

// Get the source stream of this audio device.
// Augmented audio data (as PCMFrames) will arrive on the returned channel.
func (d *AudioAugmentationDevice) GetStream() <-chan frame.PCMFrame {
	return d.sinkStream
}

// Close the outgoing stream. Called automatically once the incoming stream closes,
// calling it earlier while frames are still flowing panics the streaming goroutine.
func (d *AudioAugmentationDevice) Close() {
	d.shutdownOnce.Do(func() {
		close(d.sinkStream)
	})
}

// The device properties of the incoming and outgoing PCMFrames are identical,
// so this serves as both Source and Sink Device Properties
func (d *AudioAugmentationDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.deviceProperties
}

// --------------------------------------------------------------------------------
// AudioSinkDevice Interface

// Set the source channel of this audio device, i.e. where data comes from.
//
// When this stream is closed, the outgoing stream is closed too.
func (d *AudioAugmentationDevice) SetStream(sourceStream <-chan frame.PCMFrame) {
	go func() {
		for pcmFrame := range sourceStream {
			for _, f := range d.augmentationFunctions {
				pcmFrame = f(pcmFrame)
			}
			d.sinkStream <- pcmFrame
		}
		// This goroutine dies when sourceStream is closed.
		d.Close()
	}()
}

// --------------------------------------------------------------------------------
// Methods relating to changing the augmentation functions

// Set the volumeAdjustMagnitude to a new value. Negative values are treated as 0.0.
// 0.0 means muted, 1.0 is natural scaling, technically uncapped but
// audio encoded as PCMFrames clip if values are made too large.
func (d *AudioAugmentationDevice) SetVolumeAdjustMagnitude(volumeAdjustMagnitude float32) {
	if volumeAdjustMagnitude < 0.0 {
		volumeAdjustMagnitude = 0.0
	}
	d.volumeAdjustMagnitude.Store(math.Float32bits(volumeAdjustMagnitude))
}

// Get the current volumeAdjustMagnitude.
func (d *AudioAugmentationDevice) GetVolumeAdjustMagnitude() float32 {
	return math.Float32frombits(d.volumeAdjustMagnitude.Load())
}

// --------------------------------------------------------------------------------

func (d *AudioAugmentationDevice) volumeAdjust(sourceFrame frame.PCMFrame) frame.PCMFrame {
	magnitude := d.GetVolumeAdjustMagnitude()
	if magnitude == 1.0 {
		return sourceFrame
	}
	for i := range sourceFrame {
		sourceFrame[i] *= magnitude
	}
	return sourceFrame
}
