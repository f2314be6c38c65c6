package mainloop

// React to an interrupt. Reports whether the loop should end right away.
//
// The first interrupt with an active session asks it to shut down, and the loop
// ends once its task has finished. Without an active session there is nothing to
// wait for. Later interrupts change nothing.
func (s *LoopState) onInterrupt() bool {
	if s.shuttingDown {
		s.logger.Debug("already shutting down, ignoring interrupt")
		return false
	}
	if s.active == nil {
		s.logger.Info("interrupted without an active session, exiting")
		s.connection.abandon()
		return true
	}

	s.logger.Info("interrupted, shutting down active session")
	s.active.handle.Shutdown()
	s.shuttingDown = true
	return false
}

// The active control task has returned. The loop always ends here.
func (s *LoopState) onTaskDone() {
	pair := s.active
	switch {
	case s.shuttingDown:
		pair.logger.Info("session shut down", "err", pair.err)
	case pair.err != nil:
		pair.logger.Warn("session ended", "err", pair.err)
	default:
		pair.logger.Warn("session ended without a shutdown request")
	}
	s.endActive()
	s.connection.abandon()
}
