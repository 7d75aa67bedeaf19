package taskbridge

import "io"

// Request describes a transport operation. Its contents are opaque to this
// package, which only relays requests between callers, handlers, and the
// transport. Connection management, TLS, retries, and HTTP semantics all
// belong to the transport.
type Request struct {
	URL    string
	Header map[string][]string
}

// Response holds the metadata the transport produces for a request. Like
// Request, it is relayed verbatim and never interpreted here.
type Response struct {
	StatusCode int
	Header     map[string][]string
}

// Challenge describes an authentication challenge issued by the transport.
type Challenge struct {
	Scheme string
	Realm  string

	// Attempts is the number of previous failed responses to this challenge.
	Attempts int
}

// Credential is an opaque credential supplied in answer to a Challenge.
// Credential storage and validation belong to the transport.
type Credential struct {
	Username string
	Password string
}

// ChallengeDisposition tells the transport how to proceed with a challenge.
type ChallengeDisposition int

const (
	// ChallengeDefault applies the transport's documented default handling.
	ChallengeDefault ChallengeDisposition = iota

	// ChallengeUseCredential answers the challenge with the supplied credential.
	ChallengeUseCredential

	// ChallengeCancel cancels the task issuing the challenge.
	ChallengeCancel

	// ChallengeReject rejects the protection space, causing the transport to
	// try the next one, if any.
	ChallengeReject
)

// ResponseDisposition tells the transport whether a received response should
// proceed to body delivery.
type ResponseDisposition int

const (
	// ResponseAllow lets the response proceed.
	ResponseAllow ResponseDisposition = iota

	// ResponseCancel cancels the task.
	ResponseCancel
)

// Task is one in-flight transport operation. Tasks are created suspended;
// Resume starts them. Identifiers are assigned by the transport and are
// unique while the task is in flight.
type Task interface {
	// ID returns the task's stable identifier.
	ID() uint64

	// Resume starts the task. It is called exactly once, after the caller has
	// finished setting up event routing for the task.
	Resume()

	// Cancel cancels the task. The task's terminal event still fires,
	// carrying a cancellation error. Cancel may be called at any time,
	// including after the task has completed.
	Cancel()
}

// Transport is the legacy callback-driven collaborator bridged by this
// package. It performs the actual network work and delivers per-task events
// to its installed TransportDelegate on a single serial delivery goroutine:
// it never invokes two delegate methods concurrently for the same session.
//
// Completion callbacks are invoked exactly once per task, after the task's
// terminal delegate event. A completion's result must be either a success
// (non-nil metadata, nil error) or a failure (nil metadata, non-nil error);
// anything else is a bug in the transport.
type Transport interface {
	// FetchTask creates a task that retrieves the full body for req and
	// reports it through complete.
	FetchTask(req *Request, complete func(body []byte, resp *Response, err error)) Task

	// UploadTask creates a task that sends body and reports the server's
	// reply through complete.
	UploadTask(req *Request, body io.Reader, complete func(body []byte, resp *Response, err error)) Task

	// UploadFileTask is like UploadTask but reads the request body from a file.
	UploadFileTask(req *Request, path string, complete func(body []byte, resp *Response, err error)) Task

	// DownloadTask creates a task that writes the body to a file and reports
	// the file's location through complete.
	DownloadTask(req *Request, complete func(location string, resp *Response, err error)) Task

	// ResumeDownloadTask continues an interrupted download from opaque resume
	// data previously produced by the transport.
	ResumeDownloadTask(resumeData []byte, complete func(location string, resp *Response, err error)) Task

	// DataTask creates a delegate-driven task: the response, body chunks, and
	// terminal result are all delivered through the installed delegate rather
	// than a completion callback.
	DataTask(req *Request) Task

	// SetDelegate installs the event sink for this transport. Delegate
	// reports the currently installed sink.
	SetDelegate(TransportDelegate)
	Delegate() TransportDelegate
}

// TransportDelegate is the event surface a Transport invokes, always from its
// serial delivery goroutine. Each decision-style method documents the default
// disposition the transport applies when nobody has an opinion; the delegate
// must apply that same default itself rather than leaving the decision
// callback uninvoked.
//
// Decision callbacks (decide, provide) must be invoked exactly once before
// the method returns.
type TransportDelegate interface {
	// Redirect asks whether to follow a redirect. The default disposition is
	// to continue with the proposed request unchanged; a nil request refuses
	// the redirect, delivering the redirect response itself as the result.
	Redirect(task Task, resp *Response, proposed *Request, decide func(*Request))

	// TaskChallenge asks how to answer an authentication challenge scoped to
	// a single task. The default disposition is ChallengeDefault with no
	// credential.
	TaskChallenge(task Task, ch *Challenge, decide func(ChallengeDisposition, *Credential))

	// HandlesSessionChallenge reports whether this delegate answers
	// session-wide challenges at all. When it returns false the transport
	// MUST NOT call SessionChallenge and instead applies its own built-in
	// fallback, which differs from default handling requested through the
	// delegate.
	HandlesSessionChallenge() bool

	// SessionChallenge asks how to answer a session-wide challenge. Called
	// only when HandlesSessionChallenge reports true.
	SessionChallenge(ch *Challenge, decide func(ChallengeDisposition, *Credential))

	// ResponseReceived asks whether body delivery for a data task should
	// proceed. The default disposition is ResponseAllow.
	ResponseReceived(task Task, resp *Response, decide func(ResponseDisposition))

	// NeedNewBodyStream asks for a fresh copy of an upload body when the
	// transport must retransmit it. Providing nil applies the default
	// disposition: the transport re-opens its original body source.
	NeedNewBodyStream(task Task, provide func(io.Reader))

	// SentBodyData reports upload progress. Notification only.
	SentBodyData(task Task, sent, expected int64)

	// WaitingForConnectivity reports that the task is stalled waiting for a
	// usable network. Notification only.
	WaitingForConnectivity(task Task)

	// DataReceived delivers a body chunk for a data task. Chunks arrive in
	// order and are never redelivered. Notification only.
	DataReceived(task Task, chunk []byte)

	// DownloadProgress reports bytes written to disk for a download task.
	// Notification only.
	DownloadProgress(task Task, written, expected int64)

	// DownloadFinished reports the location of a completed download's file.
	// Notification only; the task's terminal event follows separately.
	DownloadFinished(task Task, location string)

	// ReadClosed and WriteClosed report half-closure of a duplex stream task.
	// Notification only.
	ReadClosed(task Task)
	WriteClosed(task Task)

	// WebSocketOpened and WebSocketClosed report socket-protocol lifecycle.
	// Notification only.
	WebSocketOpened(task Task, protocol string)
	WebSocketClosed(task Task, code int, reason string)

	// TaskCompleted is the task's terminal event: it fires exactly once per
	// task, after every other event for that task, with a nil error on
	// success and the transport's error (including cancellation) otherwise.
	TaskCompleted(task Task, err error)
}
