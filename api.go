// Package taskbridge bridges a legacy callback-driven network transport onto
// a pull-based model: blocking request/response operations and byte streams,
// instead of delegate callbacks.
//
// A Transport dispatches every per-task lifecycle event to a single delegate.
// This package installs a multiplexing delegate that routes each event to the
// right party among many concurrently in-flight tasks: the task-scoped
// handler if one was supplied and implements the event's capability, else the
// session-level handler, else the transport's documented default disposition.
package taskbridge

import (
	"github.com/getlantern/errors"
	"github.com/rs/zerolog"
)

// Config specifies configuration for a Session.
type Config struct {
	// Handler is the optional session-level handler. It supplies the fallback
	// behavior for events no task-scoped handler answers, and is consulted
	// for session-wide challenges if it implements SessionChallengeHandler.
	// It is fixed for the life of the session.
	Handler Handler

	// Logger receives misuse diagnostics. Misuse never fails an operation; it
	// is only reported here. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Session bridges one Transport. Creating a Session installs its multiplexing
// delegate on the transport; all events the transport emits from then on are
// routed through it.
type Session struct {
	transport Transport
	mux       *sessionMux
	log       zerolog.Logger
}

// NewSession wraps transport, installing the bridge's delegate on it.
func NewSession(transport Transport, cfg Config) *Session {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	mux := newSessionMux(cfg.Handler, log)
	transport.SetDelegate(mux)
	return &Session{transport: transport, mux: mux, log: log}
}

// routed reports whether transport events still reach this session's
// delegate. If the delegate has been replaced since NewSession, per-task
// handlers can never be invoked; that is a caller bug, reported as a
// diagnostic rather than an error, and the task proceeds using only the
// transport's default dispositions.
func (s *Session) routed() bool {
	return s.transport.Delegate() == TransportDelegate(s.mux)
}

// register installs a task-scoped handler for task before the task starts.
// It returns false, logging a diagnostic, if events cannot reach this
// session's delegate.
func (s *Session) register(task Task, h Handler) bool {
	if h == nil {
		return false
	}
	if !s.routed() {
		s.log.Warn().
			Uint64("task", task.ID()).
			Msg("task handler supplied but the transport's delegate was replaced; proceeding with default dispositions")
		return false
	}
	s.mux.reg.register(newTaskRecord(task, h))
	return true
}

// errDelegateReplaced fails Bytes when the transport's delegate is no longer
// this session's: unlike decision events, byte streaming cannot degrade to a
// default disposition, because the delegate is the only delivery path.
func errDelegateReplaced() error {
	return errors.New("transport delegate was replaced; byte streaming requires the session's own delegate")
}

func errNilRequest() error {
	return errors.New("request must not be nil")
}
