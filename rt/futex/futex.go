package futex

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Table parks goroutines on 32-bit words until they are woken.
type Table struct {
	mu     sync.Mutex
	queues map[*atomic.Uint32]*list.List
}

// New creates an empty futex table.
func New() *Table {
	return &Table{queues: make(map[*atomic.Uint32]*list.List)}
}

// Wait blocks while *addr == expected, until woken or until deadline
// passes. A zero deadline waits forever. It returns false only when the
// deadline passed; a value mismatch returns true immediately.
func (t *Table) Wait(addr *atomic.Uint32, expected uint32, deadline time.Time) bool {
	t.mu.Lock()
	if addr.Load() != expected {
		t.mu.Unlock()
		return true
	}
	q := t.queues[addr]
	if q == nil {
		q = list.New()
		t.queues[addr] = q
	}
	ch := make(chan struct{})
	elem := q.PushBack(ch)
	t.mu.Unlock()

	if deadline.IsZero() {
		<-ch
		return true
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-ch:
		// Woken between the timeout and the lock.
		return true
	default:
	}
	q.Remove(elem)
	t.drop(addr, q)
	return false
}

// Wake wakes one waiter on addr and reports whether there was one.
func (t *Table) Wake(addr *atomic.Uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[addr]
	if q == nil || q.Len() == 0 {
		return false
	}
	close(q.Remove(q.Front()).(chan struct{}))
	t.drop(addr, q)
	return true
}

// WakeAll wakes every waiter on addr.
func (t *Table) WakeAll(addr *atomic.Uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[addr]
	if q == nil {
		return
	}
	for e := q.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	delete(t.queues, addr)
}

// Waiters returns the number of goroutines parked on addr.
func (t *Table) Waiters(addr *atomic.Uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q := t.queues[addr]; q != nil {
		return q.Len()
	}
	return 0
}

func (t *Table) drop(addr *atomic.Uint32, q *list.List) {
	if q.Len() == 0 {
		delete(t.queues, addr)
	}
}
