package taskbridge

import "sync"

// oneshot is a single-resume slot bridging a completion callback to a waiting
// goroutine. It is like a buffered channel of one result, but enforces the
// transport's exactly-once completion contract: a second fulfill panics.
//
// fulfill is reserved for the transport's completion callback. abandon is for
// everything else (cancellation, terminal fallback) and is always safe: it is
// a no-op once the slot is resolved, and a fulfill racing in after an abandon
// is absorbed rather than treated as a contract violation, because a
// cancelled task's completion legitimately still fires.
type oneshot[T any] struct {
	sync.Mutex

	done      chan struct{}
	val       T
	err       error
	fulfilled bool
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{done: make(chan struct{})}
}

// fulfill resolves the slot with the transport's result. Calling fulfill
// twice means the transport resumed the same completion twice; that is
// undefined behavior for every waiter, so it halts the process rather than
// masking the bug as a plausible result.
func (o *oneshot[T]) fulfill(val T, err error) {
	o.Lock()
	defer o.Unlock()

	if o.fulfilled {
		panic("taskbridge: transport invoked a completion callback twice")
	}
	o.fulfilled = true

	select {
	case <-o.done:
		// Abandoned while the completion was in flight. Absorb the result.
	default:
		o.val, o.err = val, err
		close(o.done)
	}
}

// abandon resolves the slot with err if it is still unresolved, returning
// whether it did so. After abandon returns, the slot is resolved either way
// and wait will not block.
func (o *oneshot[T]) abandon(err error) (abandoned bool) {
	o.Lock()
	defer o.Unlock()

	select {
	case <-o.done:
		return false
	default:
		o.err = err
		close(o.done)
		return true
	}
}

// wait blocks until the slot resolves, then returns its result.
func (o *oneshot[T]) wait() (T, error) {
	<-o.done
	// The slot resolves exactly once, before done is closed, so reading
	// without the lock is safe here.
	return o.val, o.err
}
