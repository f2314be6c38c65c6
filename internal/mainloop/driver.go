package mainloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/metrics"
)

var (
	ErrDiscoveryClosed = errors.New("discovery stream closed")
)

// Run the loop until the active session ends, an interrupt arrives without one,
// a fatal error occurs, or ctx is cancelled.
//
// Every tick polls the sources without blocking, in fixed precedence:
//
//  1. discovery credentials
//  2. the pending connection attempt
//  3. interrupts
//  4. the active control task finishing
//  5. player events
//
// and acts on at most one of them. When none is ready, Run blocks until one is.
func (s *LoopState) Run(ctx context.Context) error {
	s.begin(ctx)
	for {
		progressed, done, err := s.step(ctx)
		if err != nil {
			s.teardown()
			return err
		}
		if done {
			s.teardown()
			return nil
		}
		if progressed {
			continue
		}
		if err := s.wait(ctx); err != nil {
			s.logger.Info("loop cancelled", "err", err)
			s.teardown()
			return err
		}
	}
}

func (s *LoopState) begin(ctx context.Context) {
	if s.initialCredentials != nil {
		s.connection.start(ctx, *s.initialCredentials, s.sessionConfig, s.cache)
		s.initialCredentials = nil
	}
}

// Release whatever is left when the loop ends.
func (s *LoopState) teardown() {
	s.disposeStashedAttempt()
	s.connection.abandon()
	s.discardActive()
}

// Perform at most one action. progressed reports whether anything was ready,
// done whether the loop should end.
func (s *LoopState) step(ctx context.Context) (progressed bool, done bool, err error) {
	// 1. discovery
	if credentials, ready, closed := s.pollDiscovery(); closed {
		streamErr := s.discovery.Err()
		if s.shuttingDown {
			s.logger.Warn("discovery stream closed while shutting down", "err", streamErr)
			s.discovery = nil
			return true, false, nil
		}
		s.logger.Error("discovery stream closed", "err", streamErr)
		if streamErr == nil {
			return true, false, ErrDiscoveryClosed
		}
		return true, false, fmt.Errorf("%w: %w", ErrDiscoveryClosed, streamErr)
	} else if ready {
		metrics.DiscoveryEvent()
		if s.shuttingDown {
			s.logger.Info("shutting down, dropping discovery credentials", "username", credentials.Username)
			return true, false, nil
		}
		s.logger.Info("got credentials from discovery", "username", credentials.Username)
		s.reconnect(ctx, credentials)
		return true, false, nil
	}

	// 2. connection attempt
	if result, ready := s.pollAttempt(); ready {
		s.connection.resolved()
		if result.err != nil {
			metrics.ConnectionAttempt(metrics.AttemptResultFailure)
			s.logger.Error("connection attempt failed",
				"username", result.username,
				"attempt uuid", result.id,
				"err", result.err,
			)
			return true, false, nil
		}
		if s.shuttingDown {
			metrics.ConnectionAttempt(metrics.AttemptResultSuperseded)
			go closeLateSession(s.logger, result)
			return true, false, nil
		}
		metrics.ConnectionAttempt(metrics.AttemptResultSuccess)
		if err := s.onAttemptResolved(ctx, result.session); err != nil {
			return true, false, err
		}
		return true, false, nil
	}

	// 3. interrupts
	if s.pollInterrupt() {
		return true, s.onInterrupt(), nil
	}

	// 4. active control task
	if s.pollTaskDone() {
		s.onTaskDone()
		return true, true, nil
	}

	// 5. player events
	if event, ready := s.pollEvent(); ready {
		s.logger.Debug("player event", "event", event.Type, "track", event.TrackID)
		s.hook.Handle(ctx, event)
		return true, false, nil
	}

	return false, false, nil
}

// Replace whatever session exists or is being established with one for credentials.
func (s *LoopState) reconnect(ctx context.Context, credentials connect.Credentials) {
	s.discardActive()
	s.disposeStashedAttempt()
	s.connection.start(ctx, credentials, s.sessionConfig, s.cache)
}

// A result taken by wait but not yet acted on belongs to an attempt that is being
// superseded, so it is handled like a late result.
func (s *LoopState) disposeStashedAttempt() {
	result := s.stash.attempt
	if result == nil {
		return
	}
	s.stash.attempt = nil
	if s.connection.isPending(result.id) {
		s.connection.resolved()
	}
	metrics.ConnectionAttempt(metrics.AttemptResultSuperseded)
	s.logger.Info("abandoning resolved connection attempt", "username", result.username, "attempt uuid", result.id)
	go closeLateSession(s.logger, *result)
}

// Block until any source is ready, or ctx is done. The value received is stashed,
// such that the next step still takes sources in precedence order.
func (s *LoopState) wait(ctx context.Context) error {
	var discovery <-chan connect.Credentials
	if s.discovery != nil {
		discovery = s.discovery.Credentials()
	}
	var taskDone <-chan struct{}
	var events <-chan connect.PlayerEvent
	if s.active != nil {
		taskDone = s.active.done
		events = s.active.events
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case credentials, ok := <-discovery:
		if !ok {
			s.stash.discoveryClosed = true
		} else {
			s.stash.credentials = &credentials
		}
	case result := <-s.connection.results():
		s.stash.attempt = &result
	case <-s.interrupts:
		s.stash.interrupt = true
	case <-taskDone:
		s.stash.taskDone = true
	case event, ok := <-events:
		if !ok {
			s.active.events = nil
		} else {
			s.stash.event = &event
		}
	}
	return nil
}

// --------------------------------------------------------------------------------
// Non-blocking polls, lookahead first

func (s *LoopState) pollDiscovery() (credentials connect.Credentials, ready bool, closed bool) {
	if s.stash.credentials != nil {
		credentials = *s.stash.credentials
		s.stash.credentials = nil
		return credentials, true, false
	}
	if s.stash.discoveryClosed {
		s.stash.discoveryClosed = false
		return credentials, false, true
	}
	if s.discovery == nil {
		return credentials, false, false
	}
	select {
	case c, ok := <-s.discovery.Credentials():
		if !ok {
			return credentials, false, true
		}
		return c, true, false
	default:
		return credentials, false, false
	}
}

func (s *LoopState) pollAttempt() (attemptResult, bool) {
	if s.stash.attempt != nil {
		result := *s.stash.attempt
		s.stash.attempt = nil
		return result, true
	}
	select {
	case result := <-s.connection.results():
		return result, true
	default:
		return attemptResult{}, false
	}
}

func (s *LoopState) pollInterrupt() bool {
	if s.stash.interrupt {
		s.stash.interrupt = false
		return true
	}
	select {
	case <-s.interrupts:
		return true
	default:
		return false
	}
}

func (s *LoopState) pollTaskDone() bool {
	if s.active == nil {
		return false
	}
	if s.stash.taskDone {
		s.stash.taskDone = false
		return true
	}
	select {
	case <-s.active.done:
		return true
	default:
		return false
	}
}

func (s *LoopState) pollEvent() (connect.PlayerEvent, bool) {
	if s.stash.event != nil {
		event := *s.stash.event
		s.stash.event = nil
		return event, true
	}
	if s.active == nil || s.active.events == nil {
		return connect.PlayerEvent{}, false
	}
	select {
	case event, ok := <-s.active.events:
		if !ok {
			s.active.events = nil
			return connect.PlayerEvent{}, false
		}
		return event, true
	default:
		return connect.PlayerEvent{}, false
	}
}
