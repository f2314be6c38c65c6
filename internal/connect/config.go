package connect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownDeviceType = errors.New("unknown device type")
	ErrInvalidBitrate    = errors.New("invalid bitrate")
)

type DeviceType string

const (
	DeviceTypeComputer    DeviceType = "computer"
	DeviceTypeTablet      DeviceType = "tablet"
	DeviceTypeSmartphone  DeviceType = "smartphone"
	DeviceTypeSpeaker     DeviceType = "speaker"
	DeviceTypeTV          DeviceType = "tv"
	DeviceTypeAVR         DeviceType = "avr"
	DeviceTypeSTB         DeviceType = "stb"
	DeviceTypeAudioDongle DeviceType = "audiodongle"
)

var deviceTypes = []DeviceType{
	DeviceTypeComputer,
	DeviceTypeTablet,
	DeviceTypeSmartphone,
	DeviceTypeSpeaker,
	DeviceTypeTV,
	DeviceTypeAVR,
	DeviceTypeSTB,
	DeviceTypeAudioDongle,
}

// Parse a device type, case insensitively.
func ParseDeviceType(s string) (DeviceType, error) {
	for _, t := range deviceTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, s)
}

type Bitrate int

const (
	Bitrate96  Bitrate = 96
	Bitrate160 Bitrate = 160
	Bitrate320 Bitrate = 320
)

func ParseBitrate(kbps int) (Bitrate, error) {
	switch b := Bitrate(kbps); b {
	case Bitrate96, Bitrate160, Bitrate320:
		return b, nil
	}
	return 0, fmt.Errorf("%w: %d (must be one of 96, 160, 320)", ErrInvalidBitrate, kbps)
}

// The identity a device advertises to remote controllers.
// A fresh value is built for every session, with the volume of that session's mixer.
type ConnectConfig struct {
	Name         string     `json:"name"`
	DeviceType   DeviceType `json:"device_type"`
	Volume       uint16     `json:"volume"`
	LinearVolume bool       `json:"linear_volume"`
}

// Fixed for the lifetime of the daemon.
type SessionConfig struct {
	UserAgent string
	DeviceID  string
	EngineURL string
}

type PlayerConfig struct {
	Bitrate              Bitrate
	Normalisation        bool
	NormalisationPregain float32
}

// Derive the stable device id from the device name.
// The same name always produces the same id, across restarts and hosts.
func DeviceID(name string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	return strings.ReplaceAll(id.String(), "-", "")
}
