package onevent

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/utils"
)

// Room for events queued behind a slow program before new ones are dropped
const queueSize = 64

type queuedEvent struct {
	ctx   context.Context
	event connect.PlayerEvent
}

// Runs a user program through the shell on every player event.
// The event is passed in the environment:
//
//	PLAYER_EVENT  start, change, stop or pause
//	TRACK_ID      the current track
//	OLD_TRACK_ID  the previous track, for change events
//
// Programs run one at a time, in the order the events were handled.
// The exit status of the program is logged and otherwise ignored.
type Hook struct {
	logger  *slog.Logger
	program string

	startOnce sync.Once
	mu        sync.Mutex
	closed    bool
	queue     chan queuedEvent
	done      chan struct{}
}

// A nil *Hook is valid, and drops every event.
func New(program string) *Hook {
	if program == "" {
		return nil
	}
	return &Hook{
		logger:  slog.Default().With("onevent program", program),
		program: program,
		queue:   make(chan queuedEvent, queueSize),
		done:    make(chan struct{}),
	}
}

// Queue the program for event without waiting for it. Never blocks, an event
// arriving with the queue full is dropped.
func (h *Hook) Handle(ctx context.Context, event connect.PlayerEvent) {
	if h == nil {
		return
	}
	h.startOnce.Do(h.start)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.logger.Debug("hook stopped, dropping event", "event", event.Type)
		return
	}
	select {
	case h.queue <- queuedEvent{ctx: ctx, event: event}:
	default:
		h.logger.Warn("onevent queue full, dropping event", "event", event.Type)
	}
}

func (h *Hook) start() {
	go func() {
		defer utils.LogPanic()
		defer close(h.done)
		for queued := range h.queue {
			h.run(queued.ctx, queued.event)
		}
	}()
}

// Stop taking events and wait for the queued programs to exit.
func (h *Hook) Wait() {
	if h == nil {
		return
	}
	h.startOnce.Do(h.start)

	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()
	<-h.done
}

func (h *Hook) run(ctx context.Context, event connect.PlayerEvent) {
	logger := h.logger.With(
		"event uuid", uuid.New(),
		"event", event.Type,
	)

	cmd := exec.CommandContext(ctx, "sh", "-c", h.program)
	cmd.Env = append(os.Environ(),
		"PLAYER_EVENT="+string(event.Type),
		"TRACK_ID="+event.TrackID,
		"OLD_TRACK_ID="+event.OldTrackID,
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	logger.Debug("running onevent program")
	if err := cmd.Run(); err != nil {
		logger.Warn("onevent program failed", "err", err)
		return
	}
	logger.Debug("onevent program finished")
}
