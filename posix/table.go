package posix

import (
	stderrors "errors"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/errors"
)

// maxSlots bounds the handle space so every index fits a non-negative Fd.
const maxSlots = math.MaxInt32

// shared is one resource object together with the number of table
// slots referencing it.
type shared struct {
	file File
	refs atomic.Int32
}

// tombstone is the placeholder record installed in reserved and free
// slots. It is never closed and never handed out.
var tombstone = &shared{file: placeholder{}}

// Table maps descriptor handles to resource objects.
//
// The slot array and the free list have separate locks; no method holds
// both at once, and neither is held while a constructor, a File method
// or an observer runs.
type Table struct {
	slots    []*shared
	freeList []Fd
	slotsMu  sync.RWMutex
	freeMu   sync.Mutex

	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty descriptor table.
func NewTable() *Table {
	return &Table{
		slots:    make([]*shared, 0, 64),
		freeList: make([]Fd, 0, 16),
	}
}

// Allocate reserves a handle, then builds its occupant with ctor. The
// constructor receives the handle it will live at. Until it returns,
// the slot holds a placeholder that readers see as not-found.
func (t *Table) Allocate(ctor func(Fd) File) (Fd, error) {
	fd, err := t.reserve()
	if err != nil {
		return InvalidFd, err
	}

	f := ctor(fd)
	if f == nil {
		t.recycle(fd)
		return InvalidFd, errors.InvalidInput(errors.PhaseDescriptor, "constructor returned nil")
	}

	s := &shared{file: f}
	s.refs.Store(1)
	t.install(fd, s)

	t.notify(Event{Type: EventAllocated, Fd: fd, File: f})
	return fd, nil
}

// Push allocates a handle for an existing object.
func (t *Table) Push(f File) (Fd, error) {
	return t.Allocate(func(Fd) File { return f })
}

// Lookup returns the object at fd. It never mutates the table.
func (t *Table) Lookup(fd Fd) (File, bool) {
	if fd < 0 {
		return nil, false
	}

	t.slotsMu.RLock()
	defer t.slotsMu.RUnlock()

	if int(fd) >= len(t.slots) {
		return nil, false
	}
	s := t.slots[fd]
	if s == tombstone {
		return nil, false
	}
	return s.file, true
}

// Release removes the object at fd and recycles the handle. When this
// was the object's last handle, Close runs after the table locks are
// released and its error is returned unchanged.
func (t *Table) Release(fd Fd) (File, error) {
	return t.ReleaseIf(fd, nil)
}

// ReleaseIf is Release guarded by check, which inspects the occupant
// under the slot lock and keeps the handle open by returning an error.
// check must not call back into the table. A nil check always passes.
func (t *Table) ReleaseIf(fd Fd, check func(File) error) (File, error) {
	s, err := t.swapOut(fd, check)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.BadHandle(errors.PhaseDescriptor, fd)
	}

	t.recycle(fd)
	t.notify(Event{Type: EventReleased, Fd: fd, File: s.file})

	return s.file, t.unref(fd, s)
}

// Duplicate allocates a second handle aliasing the object at fd. Both
// handles close independently; the object closes when the last goes.
func (t *Table) Duplicate(fd Fd) (Fd, error) {
	s := t.acquire(fd)
	if s == nil {
		return InvalidFd, errors.BadHandle(errors.PhaseDescriptor, fd)
	}

	nfd, err := t.reserve()
	if err != nil {
		if cerr := t.unref(fd, s); cerr != nil {
			Logger().Warn("close after failed duplicate", zap.Int32("fd", int32(fd)), zap.Error(cerr))
		}
		return InvalidFd, err
	}
	t.install(nfd, s)

	t.notify(Event{Type: EventDuplicated, Fd: nfd, File: s.file})
	return nfd, nil
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.slotsMu.RLock()
	defer t.slotsMu.RUnlock()

	n := 0
	for _, s := range t.slots {
		if s != tombstone {
			n++
		}
	}
	return n
}

// Cap returns the slot array length, the high-water mark of
// simultaneously open handles.
func (t *Table) Cap() int {
	t.slotsMu.RLock()
	defer t.slotsMu.RUnlock()
	return len(t.slots)
}

// Free returns the number of handles waiting on the free list.
func (t *Table) Free() int {
	t.freeMu.Lock()
	defer t.freeMu.Unlock()
	return len(t.freeList)
}

// Each calls fn for a snapshot of the live handles, in handle order,
// until fn returns false.
func (t *Table) Each(fn func(Fd, File) bool) {
	type live struct {
		file File
		fd   Fd
	}

	t.slotsMu.RLock()
	snapshot := make([]live, 0, len(t.slots))
	for i, s := range t.slots {
		if s != tombstone {
			snapshot = append(snapshot, live{fd: Fd(i), file: s.file})
		}
	}
	t.slotsMu.RUnlock()

	for _, l := range snapshot {
		if !fn(l.fd, l.file) {
			return
		}
	}
}

// Clear releases every live handle and returns the close errors joined.
func (t *Table) Clear() error {
	var fds []Fd
	t.Each(func(fd Fd, _ File) bool {
		fds = append(fds, fd)
		return true
	})

	var errs []error
	for _, fd := range fds {
		if _, err := t.Release(fd); err != nil && !stderrors.Is(err, errors.ErrBadHandle) {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) reserve() (Fd, error) {
	t.freeMu.Lock()
	if n := len(t.freeList); n > 0 {
		fd := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.freeMu.Unlock()
		return fd, nil
	}
	t.freeMu.Unlock()

	t.slotsMu.Lock()
	defer t.slotsMu.Unlock()

	if len(t.slots) >= maxSlots {
		return InvalidFd, errors.AllocationFailed(errors.PhaseDescriptor, "descriptor space exhausted")
	}
	t.slots = append(t.slots, tombstone)
	return Fd(len(t.slots) - 1), nil
}

func (t *Table) recycle(fd Fd) {
	t.freeMu.Lock()
	t.freeList = append(t.freeList, fd)
	t.freeMu.Unlock()
}

// install fills a reserved slot.
func (t *Table) install(fd Fd, s *shared) {
	t.slotsMu.Lock()
	defer t.slotsMu.Unlock()

	if t.slots[fd] != tombstone {
		panic("posix: install into an occupied slot")
	}
	t.slots[fd] = s
}

// swapOut replaces a live slot with the placeholder and returns the
// previous occupant, or nil when fd is not live.
func (t *Table) swapOut(fd Fd, check func(File) error) (*shared, error) {
	if fd < 0 {
		return nil, nil
	}

	t.slotsMu.Lock()
	defer t.slotsMu.Unlock()

	if int(fd) >= len(t.slots) {
		return nil, nil
	}
	s := t.slots[fd]
	if s == tombstone {
		return nil, nil
	}
	if check != nil {
		if err := check(s.file); err != nil {
			return nil, err
		}
	}
	t.slots[fd] = tombstone
	return s, nil
}

// acquire takes an extra reference on the object at fd. The count is
// raised under the slot lock so a concurrent release of fd cannot
// observe zero in between.
func (t *Table) acquire(fd Fd) *shared {
	if fd < 0 {
		return nil
	}

	t.slotsMu.RLock()
	defer t.slotsMu.RUnlock()

	if int(fd) >= len(t.slots) {
		return nil
	}
	s := t.slots[fd]
	if s == tombstone {
		return nil
	}
	s.refs.Add(1)
	return s
}

// unref drops one reference and closes the object when it was the last.
func (t *Table) unref(fd Fd, s *shared) error {
	if s.refs.Add(-1) != 0 {
		return nil
	}

	err := s.file.Close()
	if err != nil {
		Logger().Debug("descriptor close failed", zap.Int32("fd", int32(fd)), zap.Error(err))
	}
	t.notify(Event{Type: EventClosed, Fd: fd, File: s.file, Err: err})
	return err
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.obsMu.RUnlock()

	for _, o := range observers {
		o.OnDescriptorEvent(e)
	}
}
