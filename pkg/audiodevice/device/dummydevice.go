package device

import (
	"sync"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/frame"
)

// An AudioSourceDevice that only produces the frames explicitly pushed to it.
//
// A minimal example of the architecture of an AudioSourceDevice, useful in testing.
type DummyAudioSourceDevice struct {
	properties   audiodevice.DeviceProperties
	shutdownOnce sync.Once
	sinkStream   chan frame.PCMFrame
}

func NewDummyAudioSourceDevice(properties audiodevice.DeviceProperties) *DummyAudioSourceDevice {
	return &DummyAudioSourceDevice{
		properties: properties,
		sinkStream: make(chan frame.PCMFrame),
	}
}

// Send a frame downstream, blocking until it is consumed.
func (d *DummyAudioSourceDevice) Push(pcmFrame frame.PCMFrame) {
	d.sinkStream <- pcmFrame
}

func (d *DummyAudioSourceDevice) Close() {
	d.shutdownOnce.Do(func() {
		close(d.sinkStream)
	})
}

func (d *DummyAudioSourceDevice) GetStream() <-chan frame.PCMFrame {
	return d.sinkStream
}

func (d *DummyAudioSourceDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// An AudioSinkDevice that consumes all frames without any further actions.
//
// Backs the "null" backend, and is a minimal example of the architecture of an AudioSinkDevice.
type DummyAudioSinkDevice struct {
	properties audiodevice.DeviceProperties
	closed     chan struct{}

	framesMutex    sync.Mutex
	framesConsumed int
}

func NewDummyAudioSinkDevice(properties audiodevice.DeviceProperties) *DummyAudioSinkDevice {
	return &DummyAudioSinkDevice{
		properties: properties,
		closed:     make(chan struct{}),
	}
}

func (d *DummyAudioSinkDevice) SetStream(sourceStream <-chan frame.PCMFrame) {
	go func() {
		for range sourceStream {
			d.framesMutex.Lock()
			d.framesConsumed += 1
			d.framesMutex.Unlock()
		}
		close(d.closed)
	}()
}

// The number of frames consumed so far.
func (d *DummyAudioSinkDevice) FramesConsumed() int {
	d.framesMutex.Lock()
	defer d.framesMutex.Unlock()
	return d.framesConsumed
}

func (d *DummyAudioSinkDevice) WaitForClose() {
	<-d.closed
}

func (d *DummyAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}
