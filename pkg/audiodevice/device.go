package audiodevice

import "github.com/hmcalister/connectd/pkg/frame"

type DeviceProperties struct {
	SampleRate  int
	NumChannels int
}

// The format every playback engine stream arrives in:
// 44.1kHz stereo, the native rate of the decoded tracks.
var PlaybackDeviceProperties = DeviceProperties{
	SampleRate:  44100,
	NumChannels: 2,
}

// Interface for audio source devices, e.g. the decoded stream of a playback session
//
// Source devices need only define some way to get data out of the device,
// which returns a channel (stream) of PCMFrames
type AudioSourceDevice interface {
	// Get the stream of this audio device.
	//
	// Raw audio data (as PCMFrames) will arrive on the returned channel.
	GetStream() <-chan frame.PCMFrame

	// Meaningfully close the AudioSourceDevice, including any cleanup of
	// memory and closing of channels.
	//
	// It is assumed that once closed, this device will transmit no more information.
	Close()

	GetDeviceProperties() DeviceProperties
}

// Interface for audio sink devices, e.g. a pipe, a file, or a sound card
//
// Sink devices need only define some way to consume data,
// taken as a channel (stream) of PCMFrames
type AudioSinkDevice interface {
	// Set the source stream of this audio device.
	//
	// Raw audio data (as PCMFrames) will arrive on the given channel.
	//
	// When this stream is closed, it is assumed the device will be cleaned up
	// (memory will be freed, files will be flushed and closed, etc)
	SetStream(sourceStream <-chan frame.PCMFrame)

	GetDeviceProperties() DeviceProperties

	// Closing an AudioSinkDevice directly is not supported, because of the pipeline
	// techniques used here. If a sink device that is actively receiving audio
	// is closed without closing the upstream source device, that source will
	// attempt to send on a closed channel, creating a panic.
	//
	// Instead, AudioSinkDevices close when the sourceStream is closed,
	// to affect a cascade of closures along a pipeline.
	//
	// WaitForClose blocks until that cascade has reached this device
	// and its resources have been released.
	WaitForClose()
}
