package mainloop

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/metrics"
	"github.com/hmcalister/connectd/internal/utils"
)

type attemptResult struct {
	id       uuid.UUID
	username string
	session  connect.Session
	err      error
}

type connectionAttempt struct {
	id       uuid.UUID
	username string
	cancel   context.CancelFunc
	// Buffered, receives exactly one value
	result chan attemptResult
}

// Owns the at most one in-flight connection attempt.
type connectionManager struct {
	logger  *slog.Logger
	library connect.Library
	pending *connectionAttempt
}

func newConnectionManager(logger *slog.Logger, library connect.Library) *connectionManager {
	return &connectionManager{
		logger:  logger,
		library: library,
	}
}

// Start connecting with credentials, abandoning any attempt still in flight.
func (c *connectionManager) start(
	ctx context.Context,
	credentials connect.Credentials,
	config connect.SessionConfig,
	store connect.CredentialStore,
) {
	c.abandon()

	attemptCtx, cancel := context.WithCancel(ctx)
	attempt := &connectionAttempt{
		id:       uuid.New(),
		username: credentials.Username,
		cancel:   cancel,
		result:   make(chan attemptResult, 1),
	}
	c.pending = attempt
	c.logger.Info("connecting", "username", credentials.Username, "attempt uuid", attempt.id)

	go func() {
		defer utils.LogPanic()
		session, err := c.library.Connect(attemptCtx, config, credentials, store)
		attempt.result <- attemptResult{
			id:       attempt.id,
			username: attempt.username,
			session:  session,
			err:      err,
		}
	}()
}

// The result of the pending attempt. nil, which never fires, when nothing is pending.
func (c *connectionManager) results() <-chan attemptResult {
	if c.pending == nil {
		return nil
	}
	return c.pending.result
}

func (c *connectionManager) isPending(id uuid.UUID) bool {
	return c.pending != nil && c.pending.id == id
}

// Forget the pending attempt once its result has been taken.
func (c *connectionManager) resolved() {
	if c.pending == nil {
		return
	}
	c.pending.cancel()
	c.pending = nil
}

// Cancel the pending attempt whose result has not been taken. Its result is never
// observed, a session it produces regardless is closed.
func (c *connectionManager) abandon() {
	attempt := c.pending
	if attempt == nil {
		return
	}
	c.pending = nil
	attempt.cancel()
	c.logger.Info("abandoning connection attempt", "username", attempt.username, "attempt uuid", attempt.id)
	metrics.ConnectionAttempt(metrics.AttemptResultSuperseded)

	go func() {
		defer utils.LogPanic()
		closeLateSession(c.logger, <-attempt.result)
	}()
}

func closeLateSession(logger *slog.Logger, result attemptResult) {
	if result.session == nil {
		return
	}
	logger.Info("closing session of abandoned attempt", "username", result.username, "attempt uuid", result.id)
	if err := result.session.Close(); err != nil {
		logger.Warn("error while closing abandoned session", "attempt uuid", result.id, "err", err)
	}
}
