package mainloop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/metrics"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/internal/utils"
	"github.com/hmcalister/connectd/pkg/audiodevice"
)

// The active control pair and what belongs to it.
type sessionPair struct {
	logger   *slog.Logger
	id       uuid.UUID
	username string

	handle connect.ControlHandle
	mixer  mixer.Mixer
	// Set to nil once closed
	events <-chan connect.PlayerEvent

	// Closed when the control task has returned, err is set before
	done chan struct{}
	err  error
}

// Build the player and control pair for a freshly connected session, and install it.
func (s *LoopState) onAttemptResolved(ctx context.Context, session connect.Session) error {
	m, err := s.audio.Mixer.Build()
	if err != nil {
		s.logger.Error("could not build mixer", "err", err)
		if closeErr := session.Close(); closeErr != nil {
			s.logger.Warn("error while closing session", "err", closeErr)
		}
		return fmt.Errorf("build mixer: %w", err)
	}
	if s.volume != nil {
		m.SetVolume(*s.volume)
	}

	build, device := s.audio.Backend, s.audio.Device
	player := s.library.NewPlayer(s.playerConfig, session, m.AudioFilter(), func() (audiodevice.AudioSinkDevice, error) {
		return build(device)
	})

	connectConfig := connect.ConnectConfig{
		Name:         s.deviceName,
		DeviceType:   s.deviceType,
		Volume:       m.Volume(),
		LinearVolume: s.audio.Mixer.LinearVolume(),
	}
	handle, task := s.library.NewSpirc(connectConfig, session, player, m)

	pair := &sessionPair{
		id:       uuid.New(),
		username: session.Username(),
		handle:   handle,
		mixer:    m,
		events:   player.Events(),
		done:     make(chan struct{}),
	}
	pair.logger = s.logger.With(
		"session pair uuid", pair.id,
		"username", pair.username,
	)

	// Only ever reached with the previous pair already discarded, but never leave one running
	s.discardActive()
	s.active = pair

	go func() {
		defer utils.LogPanic()
		pair.err = task.Run(ctx)
		close(pair.done)
	}()

	metrics.SessionStarted()
	pair.logger.Info("session started", "volume", connectConfig.Volume)
	return nil
}

// Ask the active pair to shut down and forget it. Its task keeps running on its own
// until it finishes, but is no longer observed.
func (s *LoopState) discardActive() {
	pair := s.active
	if pair == nil {
		return
	}
	pair.logger.Info("discarding active session")
	pair.handle.Shutdown()
	s.endActive()
}

// Forget the active pair, remembering its volume for the next session.
func (s *LoopState) endActive() {
	pair := s.active
	if pair == nil {
		return
	}
	volume := pair.mixer.Volume()
	s.volume = &volume
	if err := s.cache.SaveVolume(volume); err != nil {
		pair.logger.Warn("could not cache volume", "err", err)
	}

	s.active = nil
	s.stash.taskDone = false
	s.stash.event = nil
	metrics.SessionEnded()
}
