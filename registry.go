package taskbridge

import "sync"

// taskRecord tracks one in-flight task that was registered with a task-scoped
// handler. The handler's capabilities are narrowed once here, at registration,
// so event resolution never re-checks the handler's type.
type taskRecord struct {
	task Task

	th  TaskHandler
	dh  DataHandler
	dlh DownloadHandler
	sh  StreamHandler
	wh  WebSocketHandler

	// feed, when non-nil, redirects response and chunk delivery for this task
	// exclusively into a ByteStream, suppressing ordinary DataHandler and
	// session-level delivery so the same bytes are never delivered twice.
	feed *streamFeeder
}

func newTaskRecord(task Task, h Handler) *taskRecord {
	rec := &taskRecord{task: task}
	rec.th, _ = h.(TaskHandler)
	rec.dh, _ = h.(DataHandler)
	rec.dlh, _ = h.(DownloadHandler)
	rec.sh, _ = h.(StreamHandler)
	rec.wh, _ = h.(WebSocketHandler)
	return rec
}

// registry maps task identifiers to their records. Registration happens on
// the goroutine starting the task, before the task is resumed; lookups and
// removal happen on the transport's delivery goroutine. The mutex covers that
// crossing; it is never held across handler callbacks.
type registry struct {
	mu      sync.Mutex
	records map[uint64]*taskRecord
}

func newRegistry() *registry {
	return &registry{records: make(map[uint64]*taskRecord)}
}

// register inserts rec, keyed by its task's identifier. Identifiers are
// unique while in flight, so an existing entry can only mean the caller
// registered the same task twice.
func (r *registry) register(rec *taskRecord) {
	r.mu.Lock()
	r.records[rec.task.ID()] = rec
	r.mu.Unlock()
}

// lookup returns the record for id, or nil if the task was never registered
// or has already completed.
func (r *registry) lookup(id uint64) *taskRecord {
	r.mu.Lock()
	rec := r.records[id]
	r.mu.Unlock()
	return rec
}

// unregister removes the record for id. Removing an absent key is a no-op:
// terminal events can race with independent cleanup.
func (r *registry) unregister(id uint64) {
	r.mu.Lock()
	delete(r.records, id)
	r.mu.Unlock()
}
