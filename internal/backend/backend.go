package backend

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/audiodevice/device"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrNoBackends     = errors.New("no backends registered")
)

const defaultWavPath = "connectd.wav"

// Opens an audio sink on the named device. The meaning of device is up to the backend,
// and an empty device means the backend's default.
type SinkBuilder func(device string) (audiodevice.AudioSinkDevice, error)

type Backend struct {
	Name  string
	Build SinkBuilder
}

func (b Backend) String() string {
	return b.Name
}

// All backends, in order of preference. The first is the default.
var Backends = []Backend{
	{Name: "pipe", Build: openPipe},
	{Name: "wav", Build: openWav},
	{Name: "null", Build: openNull},
}

// Find a backend by exact name. An empty name selects the first backend of the registry.
func Find(registry []Backend, name string) (Backend, error) {
	if len(registry) == 0 {
		return Backend{}, ErrNoBackends
	}
	if name == "" {
		return registry[0], nil
	}
	for _, b := range registry {
		if b.Name == name {
			return b, nil
		}
	}
	return Backend{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, Names(registry))
}

func Names(registry []Backend) string {
	names := make([]string, len(registry))
	for i, b := range registry {
		names[i] = b.Name
	}
	return strings.Join(names, ", ")
}

// --------------------------------------------------------------------------------

// Raw s16le to a file or named pipe, or to stdout without a device.
// Files are appended to, so every session's audio is kept.
func openPipe(path string) (audiodevice.AudioSinkDevice, error) {
	if path == "" {
		return device.NewPipeAudioOutputDevice(os.Stdout, false, audiodevice.PlaybackDeviceProperties), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pipe %s: %w", path, err)
	}
	return device.NewPipeAudioOutputDevice(f, true, audiodevice.PlaybackDeviceProperties), nil
}

func openWav(path string) (audiodevice.AudioSinkDevice, error) {
	if path == "" {
		path = defaultWavPath
	}
	return device.NewFileAudioOutputDevice(
		path,
		audiodevice.PlaybackDeviceProperties.SampleRate,
		audiodevice.PlaybackDeviceProperties.NumChannels,
	)
}

func openNull(string) (audiodevice.AudioSinkDevice, error) {
	return device.NewDummyAudioSinkDevice(audiodevice.PlaybackDeviceProperties), nil
}
