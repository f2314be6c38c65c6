package mixer

import (
	"sync/atomic"

	"github.com/hmcalister/connectd/pkg/frame"
)

// In-process digital gain.
type Software struct{}

func (Software) Build() (Mixer, error) {
	m := &SoftMixer{}
	m.volume.Store(uint32(MaxVolume))
	return m, nil
}

// Remote controllers apply their own curve for software volume
func (Software) LinearVolume() bool {
	return false
}

// --------------------------------------------------------------------------------

// SoftMixer scales every sample by volume / 65535.
// The volume is set by the control task and read by the audio pipeline, so it is held atomically.
type SoftMixer struct {
	volume atomic.Uint32
}

func (m *SoftMixer) Start() {}
func (m *SoftMixer) Stop()  {}

func (m *SoftMixer) Volume() uint16 {
	return uint16(m.volume.Load())
}

func (m *SoftMixer) SetVolume(volume uint16) {
	m.volume.Store(uint32(volume))
}

func (m *SoftMixer) AudioFilter() AudioFilter {
	return softVolumeFilter{m}
}

type softVolumeFilter struct {
	mixer *SoftMixer
}

// Modifies pcmFrame in place.
func (f softVolumeFilter) Modify(pcmFrame frame.PCMFrame) frame.PCMFrame {
	volume := f.mixer.volume.Load()
	if volume == uint32(MaxVolume) {
		return pcmFrame
	}
	gain := float32(volume) / float32(MaxVolume)
	for i := range pcmFrame {
		pcmFrame[i] *= gain
	}
	return pcmFrame
}
