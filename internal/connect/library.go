package connect

import (
	"context"

	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/pkg/audiodevice"
)

// Opens a fresh audio sink. Called by the player each time playback (re)starts.
type SinkBuilder func() (audiodevice.AudioSinkDevice, error)

// The playback engine. Everything protocol specific lives behind this interface,
// the daemon only orchestrates.
type Library interface {
	// Establish an authenticated session. Blocks until the session is up,
	// authentication fails, or ctx is cancelled.
	//
	// Reusable credentials handed out by the engine are saved to store, if store is not nil.
	Connect(ctx context.Context, config SessionConfig, credentials Credentials, store CredentialStore) (Session, error)

	NewPlayer(config PlayerConfig, session Session, filter mixer.AudioFilter, sink SinkBuilder) Player

	NewSpirc(config ConnectConfig, session Session, player Player, mixer mixer.Mixer) (ControlHandle, ControlTask)
}

type Session interface {
	Username() string

	// Tear the session down. Safe to call more than once.
	Close() error
}

type PlayerEventType string

const (
	PlayerEventStart  PlayerEventType = "start"
	PlayerEventChange PlayerEventType = "change"
	PlayerEventStop   PlayerEventType = "stop"
	PlayerEventPause  PlayerEventType = "pause"
)

type PlayerEvent struct {
	Type       PlayerEventType
	TrackID    string
	OldTrackID string
}

type Player interface {
	// Closed when the player is stopped for good.
	Events() <-chan PlayerEvent
}

// Request-only, shared between the daemon and the running task.
type ControlHandle interface {
	// Ask the control task to finish. Idempotent and safe for concurrent use.
	Shutdown()
}

type ControlTask interface {
	// Run the remote control protocol until the session ends.
	// Returns exactly once, nil after a requested shutdown.
	Run(ctx context.Context) error
}
