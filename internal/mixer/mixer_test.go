package mixer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/hmcalister/connectd/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("softvol", "", "")
	require.NoError(t, err)
	assert.Equal(t, Software{}, s)
	assert.False(t, s.LinearVolume())

	s, err = ParseStrategy("alsa_linear", "hw:0", "PCM")
	require.NoError(t, err)
	assert.Equal(t, Hardware{Device: "hw:0", Control: "PCM", Linear: true}, s)
	assert.True(t, s.LinearVolume())

	_, err = ParseStrategy("pulse", "", "")
	assert.ErrorIs(t, err, ErrUnknownVolumeController)
}

func TestSoftwareBuildReturnsDistinctMixers(t *testing.T) {
	a, err := Software{}.Build()
	require.NoError(t, err)
	b, err := Software{}.Build()
	require.NoError(t, err)

	a.SetVolume(100)
	assert.Equal(t, uint16(100), a.Volume())
	assert.Equal(t, uint16(MaxVolume), b.Volume(), "mixers built by one strategy share no state")
}

func TestSoftMixerFilterScalesByVolume(t *testing.T) {
	m, err := Software{}.Build()
	require.NoError(t, err)
	filter := m.AudioFilter()
	require.NotNil(t, filter)

	assert.Equal(t, frame.PCMFrame{0.5, -0.5}, filter.Modify(frame.PCMFrame{0.5, -0.5}))

	m.SetVolume(MaxVolume / 2)
	out := filter.Modify(frame.PCMFrame{1, -1})
	assert.InDelta(t, 0.5, out[0], 1e-4)
	assert.InDelta(t, -0.5, out[1], 1e-4)

	m.SetVolume(0)
	assert.Equal(t, frame.PCMFrame{0, 0}, filter.Modify(frame.PCMFrame{1, -1}))
}

func TestVolumeCurvesRoundTrip(t *testing.T) {
	for _, linear := range []bool{true, false} {
		for _, volume := range []uint16{0, 1000, 20000, 40000, 65535} {
			fraction := volumeToFraction(volume, linear)
			assert.InDelta(t, float64(volume), float64(fractionToVolume(fraction, linear)), 1,
				"linear=%v volume=%d", linear, volume)
		}
	}
}

func TestLogarithmicCurve(t *testing.T) {
	assert.Equal(t, 0.0, volumeToFraction(0, false), "volume 0 mutes")
	assert.Equal(t, 1.0, volumeToFraction(MaxVolume, false))
	// Half volume is 30dB of attenuation
	assert.InDelta(t, 0.0316, volumeToFraction(MaxVolume/2+1, false), 1e-3)
}

// Pretends to be amixer for a single control
type fakeAmixer struct {
	mu    sync.Mutex
	raw   int
	calls [][]string
	fail  bool
}

func (f *fakeAmixer) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail {
		return nil, errors.New("amixer: no such device")
	}
	if len(args) > 2 && args[2] == "-q" {
		f.raw, _ = strconv.Atoi(args[len(args)-1])
		return nil, nil
	}
	return []byte(fmt.Sprintf(strings.Join([]string{
		"Simple mixer control 'Master',0",
		"  Capabilities: pvolume pswitch",
		"  Limits: Playback 0 - 100",
		"  Mono:",
		"  Front Left: Playback %d [%d%%] [on]",
	}, "\n"), f.raw, f.raw)), nil
}

func TestAlsaMixerSetAndGetVolume(t *testing.T) {
	amixer := &fakeAmixer{raw: 50}
	m, err := Hardware{Linear: true, Runner: amixer.run}.Build()
	require.NoError(t, err)
	assert.Nil(t, m.AudioFilter())
	assert.InDelta(t, MaxVolume/2, float64(m.Volume()), 400)

	m.SetVolume(MaxVolume)
	assert.Equal(t, 100, amixer.raw)
	assert.Equal(t, []string{"amixer", "-D", "default", "-q", "sset", "Master", "100"}, amixer.calls[len(amixer.calls)-1])
	assert.Equal(t, uint16(MaxVolume), m.Volume())

	m.SetVolume(0)
	assert.Equal(t, 0, amixer.raw)
}

func TestAlsaMixerReportsLastVolumeOnFailure(t *testing.T) {
	amixer := &fakeAmixer{raw: 100}
	m, err := Hardware{Linear: true, Runner: amixer.run}.Build()
	require.NoError(t, err)

	amixer.fail = true
	assert.Equal(t, uint16(MaxVolume), m.Volume())
}

func TestHardwareBuildFailsWithoutControl(t *testing.T) {
	amixer := &fakeAmixer{fail: true}
	_, err := Hardware{Runner: amixer.run}.Build()
	assert.Error(t, err)
}
