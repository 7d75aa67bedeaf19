package taskbridge

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned by reads on a ByteStream that was closed before
// exhaustion.
var ErrStreamClosed = errors.New("taskbridge: byte stream closed")

// ByteStream is a single-pass, pull-based sequence of bytes fed by a data
// task's chunk events. Bytes are delivered in exactly the order the transport
// produced them; chunk boundaries are invisible to the consumer.
//
// A ByteStream supports a single consumer. Concurrent calls to Read or
// ReadByte on the same stream are not supported.
//
// The stream terminates three ways: natural exhaustion (io.EOF), an upstream
// transport error (re-raised once, after any already-buffered bytes are
// drained, then io.EOF), or abandonment. Abandoning the stream — closing it
// or cancelling its context before exhaustion — cancels the underlying task
// rather than leaking it.
type ByteStream struct {
	ctx  context.Context
	task Task

	mu       sync.Mutex
	chunks   [][]byte
	pos      int   // bytes of chunks[0] already consumed
	terminal error // nil while the stream is open; io.EOF on natural exhaustion
	raised   bool  // the terminal error has been returned to the consumer

	// wake carries at most one pending token for the single consumer. The
	// producer never blocks on it.
	wake chan struct{}

	closeOnce sync.Once
}

func newByteStream(ctx context.Context, task Task) *ByteStream {
	return &ByteStream{
		ctx:  ctx,
		task: task,
		wake: make(chan struct{}, 1),
	}
}

// ReadByte returns the next byte of the stream, suspending the calling
// goroutine only when no buffered byte is available and the stream has not
// terminated. It implements io.ByteReader.
func (bs *ByteStream) ReadByte() (byte, error) {
	for {
		bs.mu.Lock()
		if len(bs.chunks) > 0 {
			c := bs.chunks[0]
			b := c[bs.pos]
			bs.pos++
			if bs.pos == len(c) {
				bs.chunks = bs.chunks[1:]
				bs.pos = 0
			}
			bs.mu.Unlock()
			return b, nil
		}
		if bs.terminal != nil {
			err := bs.takeTerminal()
			bs.mu.Unlock()
			return 0, err
		}
		bs.mu.Unlock()

		if err := bs.waitForData(); err != nil {
			return 0, err
		}
	}
}

// Read implements io.Reader over the same byte sequence as ReadByte. It
// returns as soon as any bytes are available rather than waiting to fill p.
func (bs *ByteStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		bs.mu.Lock()
		n := 0
		for len(bs.chunks) > 0 && n < len(p) {
			c := bs.chunks[0]
			m := copy(p[n:], c[bs.pos:])
			n += m
			bs.pos += m
			if bs.pos == len(c) {
				bs.chunks = bs.chunks[1:]
				bs.pos = 0
			}
		}
		if n > 0 {
			bs.mu.Unlock()
			return n, nil
		}
		if bs.terminal != nil {
			err := bs.takeTerminal()
			bs.mu.Unlock()
			return 0, err
		}
		bs.mu.Unlock()

		if err := bs.waitForData(); err != nil {
			return 0, err
		}
	}
}

// Close abandons the stream early, cancelling the underlying task and
// discarding any buffered bytes. Reads after Close return ErrStreamClosed.
// Close is safe to call multiple times and after exhaustion.
func (bs *ByteStream) Close() error {
	bs.closeOnce.Do(func() {
		bs.task.Cancel()
		bs.mu.Lock()
		if bs.terminal == nil || bs.terminal == io.EOF {
			bs.terminal = ErrStreamClosed
		}
		bs.chunks, bs.pos = nil, 0
		bs.mu.Unlock()
		bs.signal()
	})
	return nil
}

// takeTerminal returns the terminal error. An upstream or cancellation error
// is raised once; afterwards the sequence just reports itself finished. The
// closed state is sticky. Callers hold bs.mu.
func (bs *ByteStream) takeTerminal() error {
	switch {
	case bs.terminal == io.EOF:
		return io.EOF
	case bs.terminal == ErrStreamClosed:
		return ErrStreamClosed
	case bs.raised:
		return io.EOF
	}
	bs.raised = true
	return bs.terminal
}

// waitForData suspends until the producer signals, or the consumer's context
// is cancelled, in which case the underlying task is cancelled too.
func (bs *ByteStream) waitForData() error {
	select {
	case <-bs.wake:
		return nil
	case <-bs.ctx.Done():
		bs.task.Cancel()
		bs.mu.Lock()
		if bs.terminal == nil {
			bs.terminal = bs.ctx.Err()
			bs.raised = true
		}
		bs.mu.Unlock()
		return bs.ctx.Err()
	}
}

// append buffers a chunk and wakes a suspended consumer. Called from the
// transport's delivery goroutine; never blocks. The chunk is copied because
// the transport may reuse its buffer once the event returns.
func (bs *ByteStream) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	bs.mu.Lock()
	if bs.terminal != nil {
		// Closed or already terminated; drop late chunks.
		bs.mu.Unlock()
		return
	}
	bs.chunks = append(bs.chunks, c)
	bs.mu.Unlock()
	bs.signal()
}

// finish marks the stream terminated: naturally when err is nil, with an
// upstream error otherwise. Buffered bytes remain readable either way.
func (bs *ByteStream) finish(err error) {
	if err == nil {
		err = io.EOF
	}
	bs.mu.Lock()
	if bs.terminal == nil {
		bs.terminal = err
	}
	bs.mu.Unlock()
	bs.signal()
}

func (bs *ByteStream) signal() {
	select {
	case bs.wake <- struct{}{}:
	default:
	}
}

// errNoResponse resolves a Bytes call whose task terminated before the
// transport delivered any response metadata.
var errNoResponse = errors.New("taskbridge: task completed before a response was received")

// streamFeeder is the internal per-task handler backing a ByteStream: it
// receives the response and chunk events the multiplexer redirects away from
// ordinary handler delivery, and the task's terminal event.
type streamFeeder struct {
	bs       *ByteStream
	respOnce sync.Once
	resp     *oneshot[*Response]
}

func newStreamFeeder(bs *ByteStream) *streamFeeder {
	return &streamFeeder{bs: bs, resp: newOneshot[*Response]()}
}

func (f *streamFeeder) responseReceived(resp *Response) {
	f.respOnce.Do(func() { f.resp.fulfill(resp, nil) })
}

func (f *streamFeeder) dataReceived(chunk []byte) {
	f.bs.append(chunk)
}

// completed terminates the stream and resolves a Bytes caller still waiting
// on response metadata. A task that completes cleanly without ever producing
// a response is resolved as an error rather than left hanging.
func (f *streamFeeder) completed(err error) {
	f.bs.finish(err)
	if err == nil {
		err = errNoResponse
	}
	f.resp.abandon(err)
}
