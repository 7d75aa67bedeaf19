package taskbridge

import (
	"context"
	"io"
)

// fetched is the success payload of completion-callback operations that
// return a body in memory.
type fetched struct {
	body []byte
	resp *Response
}

// downloaded is the success payload of download operations.
type downloaded struct {
	location string
	resp     *Response
}

// fetchCompletion adapts a transport completion callback for in-memory body
// operations into a oneshot resolution, enforcing the result-triple contract:
// a success carries both body and response and no error; a failure carries
// only an error. Any other combination is a transport bug and must halt the
// process rather than be dressed up as a plausible result, because the waiter
// would act on it.
func fetchCompletion(o *oneshot[fetched]) func([]byte, *Response, error) {
	return func(body []byte, resp *Response, err error) {
		switch {
		case err != nil:
			if body != nil || resp != nil {
				panic("taskbridge: transport completion carried both a result and an error")
			}
			o.fulfill(fetched{}, err)
		case body != nil && resp != nil:
			o.fulfill(fetched{body: body, resp: resp}, nil)
		default:
			panic("taskbridge: transport completion carried neither a result nor an error")
		}
	}
}

// downloadCompletion is fetchCompletion for operations whose success payload
// is a file location.
func downloadCompletion(o *oneshot[downloaded]) func(string, *Response, error) {
	return func(location string, resp *Response, err error) {
		switch {
		case err != nil:
			if location != "" || resp != nil {
				panic("taskbridge: transport completion carried both a result and an error")
			}
			o.fulfill(downloaded{}, err)
		case location != "" && resp != nil:
			o.fulfill(downloaded{location: location, resp: resp}, nil)
		default:
			panic("taskbridge: transport completion carried neither a result nor an error")
		}
	}
}

// await starts task and blocks until its oneshot resolves or ctx is
// cancelled. Cancellation cancels the task and resolves the wait with
// ctx.Err(); the task's terminal event still fires on the transport side, and
// a completion racing in after cancellation is absorbed by the oneshot.
//
// Registration of any task-scoped handler must already have happened: events
// can arrive as soon as the task is resumed.
func await[T any](ctx context.Context, task Task, o *oneshot[T]) (T, error) {
	task.Resume()
	select {
	case <-o.done:
	case <-ctx.Done():
		task.Cancel()
		o.abandon(ctx.Err())
	}
	return o.wait()
}

// Fetch retrieves the full body for req, blocking until the transport
// completes. h, if non-nil, is the task-scoped handler for the operation's
// lifecycle events.
//
// Transport errors are returned verbatim; this package never retries.
func (s *Session) Fetch(ctx context.Context, req *Request, h Handler) ([]byte, *Response, error) {
	if req == nil {
		return nil, nil, errNilRequest()
	}
	o := newOneshot[fetched]()
	task := s.transport.FetchTask(req, fetchCompletion(o))
	s.register(task, h)
	res, err := await(ctx, task, o)
	if err != nil {
		return nil, nil, err
	}
	return res.body, res.resp, nil
}

// Upload sends body as the request body for req and blocks until the
// transport completes, returning the server's reply.
func (s *Session) Upload(ctx context.Context, req *Request, body io.Reader, h Handler) ([]byte, *Response, error) {
	if req == nil {
		return nil, nil, errNilRequest()
	}
	o := newOneshot[fetched]()
	task := s.transport.UploadTask(req, body, fetchCompletion(o))
	s.register(task, h)
	res, err := await(ctx, task, o)
	if err != nil {
		return nil, nil, err
	}
	return res.body, res.resp, nil
}

// UploadFile is Upload with the request body read from the file at path.
func (s *Session) UploadFile(ctx context.Context, req *Request, path string, h Handler) ([]byte, *Response, error) {
	if req == nil {
		return nil, nil, errNilRequest()
	}
	o := newOneshot[fetched]()
	task := s.transport.UploadFileTask(req, path, fetchCompletion(o))
	s.register(task, h)
	res, err := await(ctx, task, o)
	if err != nil {
		return nil, nil, err
	}
	return res.body, res.resp, nil
}

// Download retrieves the body for req to a file, blocking until the transport
// completes, and returns the file's location. The file is only guaranteed to
// exist until the transport reclaims it; callers wanting to keep it should
// move it from a DownloadHandler's DownloadFinished callback.
func (s *Session) Download(ctx context.Context, req *Request, h Handler) (string, *Response, error) {
	if req == nil {
		return "", nil, errNilRequest()
	}
	o := newOneshot[downloaded]()
	task := s.transport.DownloadTask(req, downloadCompletion(o))
	s.register(task, h)
	res, err := await(ctx, task, o)
	if err != nil {
		return "", nil, err
	}
	return res.location, res.resp, nil
}

// ResumeDownload continues an interrupted download from opaque resume data
// previously produced by the transport.
func (s *Session) ResumeDownload(ctx context.Context, resumeData []byte, h Handler) (string, *Response, error) {
	o := newOneshot[downloaded]()
	task := s.transport.ResumeDownloadTask(resumeData, downloadCompletion(o))
	s.register(task, h)
	res, err := await(ctx, task, o)
	if err != nil {
		return "", nil, err
	}
	return res.location, res.resp, nil
}

// Bytes starts a data task for req and returns a ByteStream of its body,
// along with the response metadata, once the transport has delivered it.
//
// While the stream is live, chunk and response events for the task are
// redirected exclusively into it: they are not delivered to h or to the
// session-level handler, so the same bytes can never be delivered twice.
// All other events for the task are routed normally.
//
// Abandoning the stream before exhaustion (Close, or cancelling ctx) cancels
// the underlying task.
func (s *Session) Bytes(ctx context.Context, req *Request, h Handler) (*ByteStream, *Response, error) {
	if req == nil {
		return nil, nil, errNilRequest()
	}
	if !s.routed() {
		s.log.Warn().Msg("byte stream requested but the transport's delegate was replaced")
		return nil, nil, errDelegateReplaced()
	}

	task := s.transport.DataTask(req)
	bs := newByteStream(ctx, task)
	feed := newStreamFeeder(bs)

	rec := newTaskRecord(task, h)
	rec.feed = feed
	s.mux.reg.register(rec)

	resp, err := await(ctx, task, feed.resp)
	if err != nil {
		return nil, nil, err
	}
	return bs, resp, nil
}
