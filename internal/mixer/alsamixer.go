package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var (
	ErrUnparsableMixerOutput = errors.New("could not parse amixer output")
)

const (
	defaultAlsaDevice  = "default"
	defaultAlsaControl = "Master"

	// Attenuation range of the logarithmic volume curve
	volumeRangeDB = 60.0

	amixerTimeout = 2 * time.Second
)

var (
	limitsRegexp = regexp.MustCompile(`Limits:(?: Playback)? (-?\d+) - (-?\d+)`)
	volumeRegexp = regexp.MustCompile(`: Playback (-?\d+) \[`)
)

// Runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// An ALSA mixer control, driven through amixer.
type Hardware struct {
	Device  string
	Control string
	Linear  bool

	// Defaults to executing amixer
	Runner CommandRunner
}

// Build queries the control's raw range once. Failing to do so means the control
// does not exist, which is not something a later session can recover from.
func (h Hardware) Build() (Mixer, error) {
	m := &AlsaMixer{
		device:  h.Device,
		control: h.Control,
		linear:  h.Linear,
		runner:  h.Runner,
	}
	if m.device == "" {
		m.device = defaultAlsaDevice
	}
	if m.control == "" {
		m.control = defaultAlsaControl
	}
	if m.runner == nil {
		m.runner = execCommandRunner
	}
	m.logger = slog.Default().With(
		"alsa device", m.device,
		"alsa control", m.control,
	)

	out, err := m.amixer("get", m.control)
	if err != nil {
		m.logger.Error("could not query alsa mixer", "err", err)
		return nil, fmt.Errorf("query alsa mixer %s on %s: %w", m.control, m.device, err)
	}
	limits := limitsRegexp.FindSubmatch(out)
	if limits == nil {
		return nil, fmt.Errorf("%w: no playback limits for %s", ErrUnparsableMixerOutput, m.control)
	}
	m.rawMin, _ = strconv.Atoi(string(limits[1]))
	m.rawMax, _ = strconv.Atoi(string(limits[2]))
	if m.rawMax <= m.rawMin {
		return nil, fmt.Errorf("%w: empty range %d - %d", ErrUnparsableMixerOutput, m.rawMin, m.rawMax)
	}

	if raw, err := parseRawVolume(out); err == nil {
		m.lastVolume = m.fromRaw(raw)
	}
	m.logger.Debug("built alsa mixer", "rawMin", m.rawMin, "rawMax", m.rawMax, "linear", m.linear)
	return m, nil
}

func (h Hardware) LinearVolume() bool {
	return h.Linear
}

// --------------------------------------------------------------------------------

type AlsaMixer struct {
	logger  *slog.Logger
	device  string
	control string
	linear  bool
	runner  CommandRunner

	rawMin int
	rawMax int

	mu sync.Mutex
	// Reported when amixer can not be reached
	lastVolume uint16
}

func (m *AlsaMixer) Start() {}
func (m *AlsaMixer) Stop()  {}

// Volume is done outside the process.
func (m *AlsaMixer) AudioFilter() AudioFilter {
	return nil
}

func (m *AlsaMixer) Volume() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.amixer("get", m.control)
	if err == nil {
		var raw int
		raw, err = parseRawVolume(out)
		if err == nil {
			m.lastVolume = m.fromRaw(raw)
		}
	}
	if err != nil {
		m.logger.Warn("could not read alsa volume, reporting last known", "err", err, "volume", m.lastVolume)
	}
	return m.lastVolume
}

func (m *AlsaMixer) SetVolume(volume uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw := m.toRaw(volume)
	if _, err := m.amixer("-q", "sset", m.control, strconv.Itoa(raw)); err != nil {
		m.logger.Error("could not set alsa volume", "err", err, "volume", volume, "raw", raw)
		return
	}
	m.lastVolume = volume
	m.logger.Debug("set alsa volume", "volume", volume, "raw", raw)
}

func (m *AlsaMixer) amixer(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), amixerTimeout)
	defer cancel()
	return m.runner(ctx, "amixer", append([]string{"-D", m.device}, args...)...)
}

func (m *AlsaMixer) toRaw(volume uint16) int {
	fraction := volumeToFraction(volume, m.linear)
	return m.rawMin + int(math.Round(fraction*float64(m.rawMax-m.rawMin)))
}

func (m *AlsaMixer) fromRaw(raw int) uint16 {
	raw = max(m.rawMin, min(m.rawMax, raw))
	fraction := float64(raw-m.rawMin) / float64(m.rawMax-m.rawMin)
	return fractionToVolume(fraction, m.linear)
}

func parseRawVolume(out []byte) (int, error) {
	match := volumeRegexp.FindSubmatch(out)
	if match == nil {
		return 0, fmt.Errorf("%w: no playback volume", ErrUnparsableMixerOutput)
	}
	return strconv.Atoi(string(match[1]))
}

// --------------------------------------------------------------------------------
// Volume curves

// Map a Connect volume onto a fraction of the raw mixer range.
//
// The logarithmic curve spreads the volume evenly over volumeRangeDB of attenuation,
// volume 0 is always muted.
func volumeToFraction(volume uint16, linear bool) float64 {
	v := float64(volume) / float64(MaxVolume)
	if linear || volume == 0 {
		return v
	}
	db := (v - 1.0) * volumeRangeDB
	return math.Pow(10, db/20)
}

func fractionToVolume(fraction float64, linear bool) uint16 {
	fraction = max(0, min(1, fraction))
	var v float64
	if linear {
		v = fraction
	} else if fraction > 0 {
		db := 20 * math.Log10(fraction)
		v = max(0, db/volumeRangeDB+1.0)
	}
	return uint16(math.Round(v * float64(MaxVolume)))
}
