package taskbridge

import (
	"io"

	"github.com/rs/zerolog"
)

// sessionMux is the sole recipient of every transport event for a session. It
// implements TransportDelegate, resolving each event to the task-scoped
// handler, the session-level handler, or the transport's default disposition.
//
// The transport invokes all of these methods on its serial delivery
// goroutine, so the mux itself needs no locking beyond the registry's.
type sessionMux struct {
	reg *registry
	log zerolog.Logger

	// Capability views of the session-level handler, resolved once at
	// construction. The handler reference is never reassigned afterwards.
	task      TaskHandler
	data      DataHandler
	download  DownloadHandler
	stream    StreamHandler
	socket    WebSocketHandler
	challenge SessionChallengeHandler
}

func newSessionMux(session Handler, log zerolog.Logger) *sessionMux {
	m := &sessionMux{reg: newRegistry(), log: log}
	m.task, _ = session.(TaskHandler)
	m.data, _ = session.(DataHandler)
	m.download, _ = session.(DownloadHandler)
	m.stream, _ = session.(StreamHandler)
	m.socket, _ = session.(WebSocketHandler)
	m.challenge, _ = session.(SessionChallengeHandler)
	return m
}

// Completion-style events: exactly one party decides, in tier order
// task-scoped handler, session-level handler, transport default.

func (m *sessionMux) Redirect(task Task, resp *Response, proposed *Request, decide func(*Request)) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.th != nil {
		decide(rec.th.Redirect(task, resp, proposed))
		return
	}
	if m.task != nil {
		decide(m.task.Redirect(task, resp, proposed))
		return
	}
	decide(proposed)
}

func (m *sessionMux) TaskChallenge(task Task, ch *Challenge, decide func(ChallengeDisposition, *Credential)) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.th != nil {
		decide(rec.th.Challenge(task, ch))
		return
	}
	if m.task != nil {
		decide(m.task.Challenge(task, ch))
		return
	}
	decide(ChallengeDefault, nil)
}

// HandlesSessionChallenge advertises whether SessionChallenge is implemented
// at all. When the session-level handler has no opinion the answer must be
// false, not a default-handling no-op: the transport takes its built-in
// fallback path only when the capability is entirely absent.
func (m *sessionMux) HandlesSessionChallenge() bool {
	return m.challenge != nil
}

func (m *sessionMux) SessionChallenge(ch *Challenge, decide func(ChallengeDisposition, *Credential)) {
	if m.challenge == nil {
		// Contract violation by the transport (HandlesSessionChallenge is
		// false), but the mux never raises; fall back to default handling.
		decide(ChallengeDefault, nil)
		return
	}
	decide(m.challenge.SessionChallenge(ch))
}

func (m *sessionMux) ResponseReceived(task Task, resp *Response, decide func(ResponseDisposition)) {
	rec := m.reg.lookup(task.ID())
	if rec != nil && rec.feed != nil {
		rec.feed.responseReceived(resp)
		decide(ResponseAllow)
		return
	}
	if rec != nil && rec.dh != nil {
		decide(rec.dh.ResponseReceived(task, resp))
		return
	}
	if m.data != nil {
		decide(m.data.ResponseReceived(task, resp))
		return
	}
	decide(ResponseAllow)
}

func (m *sessionMux) NeedNewBodyStream(task Task, provide func(io.Reader)) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.th != nil {
		provide(rec.th.NewBodyStream(task))
		return
	}
	if m.task != nil {
		provide(m.task.NewBodyStream(task))
		return
	}
	provide(nil)
}

// Notification-style events: fire-and-forget, broadcast to the task-scoped
// handler first, then the session-level handler, unconditionally.

func (m *sessionMux) SentBodyData(task Task, sent, expected int64) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.th != nil {
		rec.th.SentBodyData(task, sent, expected)
	}
	if m.task != nil {
		m.task.SentBodyData(task, sent, expected)
	}
}

func (m *sessionMux) WaitingForConnectivity(task Task) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.th != nil {
		rec.th.WaitingForConnectivity(task)
	}
	if m.task != nil {
		m.task.WaitingForConnectivity(task)
	}
}

func (m *sessionMux) DataReceived(task Task, chunk []byte) {
	rec := m.reg.lookup(task.ID())
	if rec != nil && rec.feed != nil {
		// Chunk delivery is redirected exclusively into the byte stream.
		rec.feed.dataReceived(chunk)
		return
	}
	if rec != nil && rec.dh != nil {
		rec.dh.DataReceived(task, chunk)
	}
	if m.data != nil {
		m.data.DataReceived(task, chunk)
	}
}

func (m *sessionMux) DownloadProgress(task Task, written, expected int64) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.dlh != nil {
		rec.dlh.DownloadProgress(task, written, expected)
	}
	if m.download != nil {
		m.download.DownloadProgress(task, written, expected)
	}
}

func (m *sessionMux) DownloadFinished(task Task, location string) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.dlh != nil {
		rec.dlh.DownloadFinished(task, location)
	}
	if m.download != nil {
		m.download.DownloadFinished(task, location)
	}
}

func (m *sessionMux) ReadClosed(task Task) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.sh != nil {
		rec.sh.ReadClosed(task)
	}
	if m.stream != nil {
		m.stream.ReadClosed(task)
	}
}

func (m *sessionMux) WriteClosed(task Task) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.sh != nil {
		rec.sh.WriteClosed(task)
	}
	if m.stream != nil {
		m.stream.WriteClosed(task)
	}
}

func (m *sessionMux) WebSocketOpened(task Task, protocol string) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.wh != nil {
		rec.wh.WebSocketOpened(task, protocol)
	}
	if m.socket != nil {
		m.socket.WebSocketOpened(task, protocol)
	}
}

func (m *sessionMux) WebSocketClosed(task Task, code int, reason string) {
	if rec := m.reg.lookup(task.ID()); rec != nil && rec.wh != nil {
		rec.wh.WebSocketClosed(task, code, reason)
	}
	if m.socket != nil {
		m.socket.WebSocketClosed(task, code, reason)
	}
}

// TaskCompleted is the terminal event. Delivery happens first, so handlers
// can still observe per-task state during their final callback; only then is
// the task unregistered and any byte-stream waiter resumed or terminated.
func (m *sessionMux) TaskCompleted(task Task, err error) {
	rec := m.reg.lookup(task.ID())
	if rec != nil && rec.th != nil {
		rec.th.Completed(task, err)
	}
	if m.task != nil {
		m.task.Completed(task, err)
	}
	m.reg.unregister(task.ID())
	if rec != nil && rec.feed != nil {
		rec.feed.completed(err)
	}
}
