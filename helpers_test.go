package taskbridge

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// fakeTask is an in-memory Task. Resume and Cancel invoke the owning
// transport's hooks (if any) synchronously, which keeps most tests fully
// deterministic: by the time an operation's Resume returns, the scripted
// events have already been delivered.
type fakeTask struct {
	id uint64
	tr *fakeTransport

	kind       string
	req        *Request
	body       io.Reader
	path       string
	resumeData []byte

	completeFetch    func([]byte, *Response, error)
	completeDownload func(string, *Response, error)

	resumed   atomic.Bool
	cancelled atomic.Bool
}

func (t *fakeTask) ID() uint64 { return t.id }

func (t *fakeTask) Resume() {
	if !t.resumed.CompareAndSwap(false, true) {
		return
	}
	if t.tr != nil && t.tr.onResume != nil {
		t.tr.onResume(t)
	}
}

func (t *fakeTask) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	if t.tr != nil && t.tr.onCancel != nil {
		t.tr.onCancel(t)
	}
}

// fakeTransport scripts task behavior through onResume and onCancel. Tests
// deliver delegate events by calling methods on Delegate() directly; a single
// test goroutine doing so stands in for the transport's serial delivery
// goroutine.
type fakeTransport struct {
	mu       sync.Mutex
	delegate TransportDelegate
	lastID   uint64
	tasks    []*fakeTask

	onResume func(*fakeTask)
	onCancel func(*fakeTask)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (tr *fakeTransport) newTask(kind string) *fakeTask {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.lastID++
	t := &fakeTask{id: tr.lastID, tr: tr, kind: kind}
	tr.tasks = append(tr.tasks, t)
	return t
}

func (tr *fakeTransport) FetchTask(req *Request, complete func([]byte, *Response, error)) Task {
	t := tr.newTask("fetch")
	t.req, t.completeFetch = req, complete
	return t
}

func (tr *fakeTransport) UploadTask(req *Request, body io.Reader, complete func([]byte, *Response, error)) Task {
	t := tr.newTask("upload")
	t.req, t.body, t.completeFetch = req, body, complete
	return t
}

func (tr *fakeTransport) UploadFileTask(req *Request, path string, complete func([]byte, *Response, error)) Task {
	t := tr.newTask("uploadfile")
	t.req, t.path, t.completeFetch = req, path, complete
	return t
}

func (tr *fakeTransport) DownloadTask(req *Request, complete func(string, *Response, error)) Task {
	t := tr.newTask("download")
	t.req, t.completeDownload = req, complete
	return t
}

func (tr *fakeTransport) ResumeDownloadTask(resumeData []byte, complete func(string, *Response, error)) Task {
	t := tr.newTask("resumedownload")
	t.resumeData, t.completeDownload = resumeData, complete
	return t
}

func (tr *fakeTransport) DataTask(req *Request) Task {
	t := tr.newTask("data")
	t.req = req
	return t
}

func (tr *fakeTransport) SetDelegate(d TransportDelegate) {
	tr.mu.Lock()
	tr.delegate = d
	tr.mu.Unlock()
}

func (tr *fakeTransport) Delegate() TransportDelegate {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.delegate
}

// eventLog records which handler observed which event, in order.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// capTask implements TaskHandler and nothing else.
type capTask struct {
	name string
	log  *eventLog

	redirectTo  func(proposed *Request) *Request
	disposition ChallengeDisposition
	cred        *Credential
	bodyStream  io.Reader
	onCompleted func(task Task, err error)
}

func (h *capTask) Redirect(task Task, resp *Response, proposed *Request) *Request {
	h.log.add("%s:redirect", h.name)
	if h.redirectTo != nil {
		return h.redirectTo(proposed)
	}
	return proposed
}

func (h *capTask) Challenge(task Task, ch *Challenge) (ChallengeDisposition, *Credential) {
	h.log.add("%s:challenge", h.name)
	return h.disposition, h.cred
}

func (h *capTask) NewBodyStream(task Task) io.Reader {
	h.log.add("%s:newbodystream", h.name)
	return h.bodyStream
}

func (h *capTask) SentBodyData(task Task, sent, expected int64) {
	h.log.add("%s:sent:%d/%d", h.name, sent, expected)
}

func (h *capTask) WaitingForConnectivity(task Task) {
	h.log.add("%s:waiting", h.name)
}

func (h *capTask) Completed(task Task, err error) {
	h.log.add("%s:completed", h.name)
	if h.onCompleted != nil {
		h.onCompleted(task, err)
	}
}

// capData implements DataHandler and nothing else.
type capData struct {
	name string
	log  *eventLog

	disposition ResponseDisposition
}

func (h *capData) ResponseReceived(task Task, resp *Response) ResponseDisposition {
	h.log.add("%s:response", h.name)
	return h.disposition
}

func (h *capData) DataReceived(task Task, chunk []byte) {
	h.log.add("%s:data:%s", h.name, chunk)
}

// capDownload implements DownloadHandler and nothing else.
type capDownload struct {
	name string
	log  *eventLog
}

func (h *capDownload) DownloadProgress(task Task, written, expected int64) {
	h.log.add("%s:progress:%d/%d", h.name, written, expected)
}

func (h *capDownload) DownloadFinished(task Task, location string) {
	h.log.add("%s:finished:%s", h.name, location)
}

// capStream implements StreamHandler and nothing else.
type capStream struct {
	name string
	log  *eventLog
}

func (h *capStream) ReadClosed(task Task)  { h.log.add("%s:readclosed", h.name) }
func (h *capStream) WriteClosed(task Task) { h.log.add("%s:writeclosed", h.name) }

// capSocket implements WebSocketHandler and nothing else.
type capSocket struct {
	name string
	log  *eventLog
}

func (h *capSocket) WebSocketOpened(task Task, protocol string) {
	h.log.add("%s:wsopen:%s", h.name, protocol)
}

func (h *capSocket) WebSocketClosed(task Task, code int, reason string) {
	h.log.add("%s:wsclose:%d:%s", h.name, code, reason)
}

// capAll implements every task-scoped capability.
type capAll struct {
	capTask
	capData
	capDownload
	capStream
	capSocket
}

func newCapAll(name string, log *eventLog) *capAll {
	return &capAll{
		capTask:     capTask{name: name, log: log},
		capData:     capData{name: name, log: log},
		capDownload: capDownload{name: name, log: log},
		capStream:   capStream{name: name, log: log},
		capSocket:   capSocket{name: name, log: log},
	}
}

// capSessionAuth is a session-level handler that also answers session-wide
// challenges.
type capSessionAuth struct {
	capTask

	sessDisposition ChallengeDisposition
	sessCred        *Credential
}

func (h *capSessionAuth) SessionChallenge(ch *Challenge) (ChallengeDisposition, *Credential) {
	h.log.add("%s:sessionchallenge", h.name)
	return h.sessDisposition, h.sessCred
}
