package mixer

import (
	"errors"
	"fmt"
	"math"

	"github.com/hmcalister/connectd/pkg/frame"
)

var (
	ErrUnknownVolumeController = errors.New("unknown volume controller")
)

const (
	VolumeControllerSoftware   = "softvol"
	VolumeControllerAlsa       = "alsa"
	VolumeControllerAlsaLinear = "alsa_linear"
)

// Full volume, in the Connect range
const MaxVolume = math.MaxUint16

// A mixer controls the playback volume of a single session.
// Volumes are in the Connect range, 0 (muted) to 65535 (full).
type Mixer interface {
	Start()
	Stop()
	Volume() uint16
	SetVolume(volume uint16)

	// The filter to apply to decoded audio, or nil if the mixer
	// controls the volume outside the process.
	AudioFilter() AudioFilter
}

type AudioFilter interface {
	Modify(pcmFrame frame.PCMFrame) frame.PCMFrame
}

// How to build a mixer. Picked once at startup, used to build a fresh mixer for every session.
type Strategy interface {
	Build() (Mixer, error)

	// Advertised to remote controllers as part of the device identity
	LinearVolume() bool
}

// Pick a strategy from the name of a volume controller.
//
// device and control are only used by the alsa controllers, and default to "default" and "Master".
func ParseStrategy(volumeController string, device string, control string) (Strategy, error) {
	switch volumeController {
	case VolumeControllerSoftware, "":
		return Software{}, nil
	case VolumeControllerAlsa, VolumeControllerAlsaLinear:
		return Hardware{
			Device:  device,
			Control: control,
			Linear:  volumeController == VolumeControllerAlsaLinear,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q (must be one of %s, %s, %s)",
		ErrUnknownVolumeController,
		volumeController,
		VolumeControllerSoftware,
		VolumeControllerAlsa,
		VolumeControllerAlsaLinear,
	)
}
