package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/mixer"
)

var (
	ErrTakenOver     = errors.New("playback taken over by another device")
	ErrEngineClosed  = errors.New("engine closed the session")
	ErrForeignPlayer = errors.New("player was not created by this engine")
)

// How long the engine gets to finish after a goodbye
const shutdownGrace = 3 * time.Second

// The handle half of a control pair. Shared between the daemon and the running Spirc.
type SpircHandle struct {
	logger       *slog.Logger
	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Ask the control task to say goodbye to the engine and finish. Never blocks.
// Idempotent, and safe to call from any goroutine.
func (h *SpircHandle) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.logger.Info("shutdown requested")
		close(h.shutdown)
	})
}

// The control task of a session: relays the engine's remote control commands
// to the player and the mixer.
type Spirc struct {
	logger  *slog.Logger
	config  connect.ConnectConfig
	session *Session
	player  *Player
	mixer   mixer.Mixer
	handle  *SpircHandle
}

func (s *Spirc) Run(ctx context.Context) error {
	defer s.session.Close()
	if s.player == nil {
		return ErrForeignPlayer
	}
	defer s.player.close()

	s.mixer.Start()
	defer s.mixer.Stop()

	config := s.config
	config.Volume = s.mixer.Volume()
	if err := s.session.send(message{
		Type:    msgHello,
		Device:  &config,
		Bitrate: s.player.config.Bitrate,
	}); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	s.logger.Info("device registered with engine", "name", config.Name, "volume", config.Volume)

	for {
		select {
		case <-ctx.Done():
			s.handle.Shutdown()
			s.goodbye()
			s.drain()
			return ctx.Err()

		case <-s.handle.shutdown:
			s.goodbye()
			s.drain()
			s.logger.Info("control task finished after shutdown")
			return nil

		case in, ok := <-s.session.inbound:
			if !ok {
				if s.shuttingDown() {
					return nil
				}
				s.logger.Warn("engine connection lost", "err", s.session.readErr)
				return fmt.Errorf("%w: %w", ErrEngineClosed, s.session.readErr)
			}
			if err := s.dispatch(in); err != nil {
				return err
			}
		}
	}
}

func (s *Spirc) shuttingDown() bool {
	select {
	case <-s.handle.shutdown:
		return true
	default:
		return false
	}
}

// Tell the engine the device is leaving, and give it shutdownGrace to finish.
func (s *Spirc) goodbye() {
	if err := s.session.send(message{Type: msgGoodbye}); err != nil {
		s.logger.Warn("could not say goodbye to engine", "err", err)
	}
	s.session.conn.SetReadDeadline(time.Now().Add(shutdownGrace))
}

// After goodbye, let the engine finish within the read deadline set by goodbye.
// Audio still in flight is discarded.
func (s *Spirc) drain() {
	s.player.stop()
	for range s.session.inbound {
	}
}

func (s *Spirc) dispatch(in inbound) error {
	if in.messageType == websocket.BinaryMessage {
		s.player.write(in.data)
		return nil
	}

	var msg message
	if err := json.Unmarshal(in.data, &msg); err != nil {
		s.logger.Warn("ignoring malformed engine message", "err", err)
		return nil
	}
	s.logger.Debug("engine message", "type", msg.Type)

	switch msg.Type {
	case msgVolume:
		if msg.Volume != nil {
			s.mixer.SetVolume(*msg.Volume)
		}
	case msgPlay:
		if err := s.player.play(); err != nil {
			// Nothing to play into, stay paused until the next play
			s.logger.Warn("could not start playback", "err", err)
		}
	case msgPause:
		s.player.pause()
	case msgStop:
		s.player.stop()
	case msgTrackChanged:
		s.player.trackChanged(msg.TrackID)
	case msgTakeover:
		s.logger.Warn("playback taken over", "reason", msg.Reason)
		return fmt.Errorf("%w: %s", ErrTakenOver, msg.Reason)
	default:
		s.logger.Debug("ignoring unknown engine message", "type", msg.Type)
	}
	return nil
}
