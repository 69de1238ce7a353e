package task

import "github.com/OCAP2/annotator/internal/queue"

// Mailbox is an Executor that defers callbacks until the owner drains it,
// for hosts that run everything on one event loop.
type Mailbox struct {
	q *queue.Queue[func()]
}

func NewMailbox() *Mailbox {
	return &Mailbox{q: queue.New[func()]()}
}

// Post queues fn. It satisfies Executor.
func (m *Mailbox) Post(fn func()) {
	m.q.Push(fn)
}

// Drain runs every queued callback in order and returns how many ran.
// Callbacks posted while draining run on the next Drain.
func (m *Mailbox) Drain() int {
	fns := m.q.Drain()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Posted counts every callback ever posted.
func (m *Mailbox) Posted() uint64 {
	return m.q.Pushed()
}

// Len returns the number of queued callbacks.
func (m *Mailbox) Len() int {
	return m.q.Len()
}
