package taskbridge

import "io"

// Handler is a task-scoped or session-level event handler. A handler
// implements any subset of the capability interfaces below; the bridge
// resolves which capabilities a handler supports once, when the handler is
// installed, not per event.
//
// Decision methods are consulted in tiers: a task-scoped handler implementing
// the capability answers and the session-level handler is not consulted; only
// when the task-scoped handler lacks the capability (or there is none) does
// the session-level handler answer; when neither does, the transport's
// documented default disposition applies. Exactly one party decides per event.
//
// Notification methods are different: both the task-scoped and session-level
// handlers observe each notification, task-scoped first.
type Handler interface{}

// TaskHandler handles generic task lifecycle events, common to every kind of
// task.
type TaskHandler interface {
	// Redirect decides whether to follow a redirect. Return proposed (or a
	// modified request) to follow it, nil to refuse and deliver the redirect
	// response itself.
	Redirect(task Task, resp *Response, proposed *Request) *Request

	// Challenge answers a task-scoped authentication challenge.
	Challenge(task Task, ch *Challenge) (ChallengeDisposition, *Credential)

	// NewBodyStream supplies a fresh upload body when the transport must
	// retransmit. Return nil to let the transport re-open its original
	// source.
	NewBodyStream(task Task) io.Reader

	// SentBodyData observes upload progress.
	SentBodyData(task Task, sent, expected int64)

	// WaitingForConnectivity observes that the task is stalled waiting for a
	// usable network.
	WaitingForConnectivity(task Task)

	// Completed observes the task's terminal event. The task is still
	// registered while Completed runs; cleanup happens after it returns.
	Completed(task Task, err error)
}

// DataHandler handles chunked body delivery for data tasks.
type DataHandler interface {
	// ResponseReceived decides whether body delivery should proceed.
	ResponseReceived(task Task, resp *Response) ResponseDisposition

	// DataReceived observes a body chunk. Chunks arrive in order.
	DataReceived(task Task, chunk []byte)
}

// DownloadHandler handles file-completion delivery for download tasks.
type DownloadHandler interface {
	// DownloadProgress observes bytes written to disk.
	DownloadProgress(task Task, written, expected int64)

	// DownloadFinished observes the location of the finished file. The file
	// is only guaranteed to exist for the duration of this call.
	DownloadFinished(task Task, location string)
}

// StreamHandler handles duplex stream task events.
type StreamHandler interface {
	ReadClosed(task Task)
	WriteClosed(task Task)
}

// WebSocketHandler handles socket-protocol task events.
type WebSocketHandler interface {
	WebSocketOpened(task Task, protocol string)
	WebSocketClosed(task Task, code int, reason string)
}

// SessionChallengeHandler answers session-wide authentication challenges. It
// is meaningful only on the session-level handler. Whether the session-level
// handler implements this capability is advertised to the transport at
// construction time (see TransportDelegate.HandlesSessionChallenge): a
// session handler without it leaves the transport's built-in fallback intact
// rather than substituting a no-op.
type SessionChallengeHandler interface {
	SessionChallenge(ch *Challenge) (ChallengeDisposition, *Credential)
}
