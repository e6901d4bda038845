package abi

import (
	"context"
	"reflect"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

// Slots is the typed record of dispatch table entries. Field order
// follows the Slot layout. The record returned by Get must be treated
// as read-only.
type Slots struct {
	// Memory.
	Alloc       func(size, align uint64) []byte
	AllocZeroed func(size, align uint64) []byte
	Dealloc     func(block []byte, align uint64)
	Realloc     func(block []byte, align, newSize uint64) []byte

	// Time.
	Now             func() uint64
	TicksToNanos    func(ticks uint64) uint64
	NanosToTicks    func(nanos uint64) uint64
	TicksPerSecond  func() uint64
	AbsTicksToNanos func(ticks uint64) uint64

	// Futex. Wait returns false only when the deadline passed.
	FutexWait    func(addr *atomic.Uint32, expected uint32, deadline time.Time) bool
	FutexWake    func(addr *atomic.Uint32) bool
	FutexWakeAll func(addr *atomic.Uint32)

	// Thread-local storage.
	TLSCreate  func(dtor func(uint64)) TLSKey
	TLSSet     func(ctx context.Context, key TLSKey, value uint64)
	TLSGet     func(ctx context.Context, key TLSKey) uint64
	TLSDestroy func(key TLSKey)

	// Threads.
	ThreadSpawn   func(ctx context.Context, fn func(context.Context)) (ThreadHandle, error)
	ThreadYield   func()
	ThreadSleep   func(ctx context.Context, deadline time.Time)
	ThreadSetName func(ctx context.Context, name string) error
	ThreadJoin    func(h ThreadHandle) error

	// Filesystem.
	FsOpen         func(path string, opts OpenOptions) (posix.Fd, error)
	FsClose        func(fd posix.Fd) error
	FsGetAttr      func(fd posix.Fd) (FileAttr, error)
	FsFsync        func(fd posix.Fd) error
	FsDatasync     func(fd posix.Fd) error
	FsTruncate     func(fd posix.Fd, size uint64) error
	FsRead         func(fd posix.Fd, buf []byte) (int, error)
	FsWrite        func(fd posix.Fd, buf []byte) (int, error)
	FsSeek         func(fd posix.Fd, offset int64, whence Whence) (int64, error)
	FsMkdir        func(path string) error
	FsUnlink       func(path string) error
	FsRename       func(oldPath, newPath string) error
	FsRmdir        func(path string) error
	FsRmdirAll     func(path string) error
	FsSetPerm      func(path string, perm uint32) error
	FsStat         func(path string) (FileAttr, error)
	FsCanonicalize func(path string) (string, error)
	FsCopy         func(from, to string) (uint64, error)
	FsOpendir      func(path string) (posix.Fd, error)
	FsClosedir     func(fd posix.Fd) error
	FsReaddir      func(fd posix.Fd) (*DirEntry, error)
	FsGetcwd       func() (string, error)
	FsChdir        func(path string) error

	// Descriptor-level operations.
	PosixFlush     func(fd posix.Fd) error
	PosixDuplicate func(fd posix.Fd) (posix.Fd, error)

	// LogToKernel forwards a UTF-8 message to the kernel log. It never
	// fails from the caller's point of view.
	LogToKernel func(msg []byte)
}

// missing returns the first slot whose entry is nil.
func (s *Slots) missing() (Slot, bool) {
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			return Slot(i), true
		}
	}
	return 0, false
}

// VTable is the dispatch table shared between the loader, the install
// routine and every runtime caller. Slots are written once by Install
// and published by a single trailing store of ready.
type VTable struct {
	slots      Slots
	entry      atomic.Uintptr
	installing atomic.Bool
	ready      atomic.Bool
}

// process is the table of the running process.
var process VTable

// Process returns the process dispatch table.
func Process() *VTable {
	return &process
}

// Get returns the process slot record. Calling it before installation
// is a fatal contract violation.
func Get() *Slots {
	return process.Get()
}

// SetEntry records the install routine's address in the tamper-check
// slot. Only the loader calls it, before running the install routine.
func (t *VTable) SetEntry(addr uintptr) {
	t.entry.Store(addr)
}

// Entry returns the tamper-check slot.
func (t *VTable) Entry() uintptr {
	return t.entry.Load()
}

// Ready reports whether Install has completed.
func (t *VTable) Ready() bool {
	return t.ready.Load()
}

// Install validates the ABI version and the tamper-check slot, copies
// every entry of s into the table and publishes it. self is the address
// of the calling install routine. Any failure aborts via panic.
func (t *VTable) Install(version uint64, self uintptr, s *Slots) {
	if version != Version {
		fatal(errors.VersionMismatch(Version, version))
	}
	if got := t.entry.Load(); got != self {
		fatal(errors.Tamper(self, got))
	}
	if slot, ok := s.missing(); ok {
		fatal(errors.New(errors.PhaseInstall, errors.KindNotInitialized).
			Detail("slot %s has no entry", slot).
			Value(slot).
			Build())
	}
	if !t.installing.CompareAndSwap(false, true) {
		fatal(errors.New(errors.PhaseInstall, errors.KindAlreadyInstalled).
			Detail("dispatch table installed twice").
			Build())
	}

	t.slots = *s

	// Single publication point for every slot written above.
	t.ready.Store(true)

	Logger().Debug("dispatch table installed",
		zap.Uint64("version", version),
		zap.Int("slots", int(SlotCount)))
}

// Get returns the installed slot record. Calling it before Install has
// returned is a fatal contract violation.
func (t *VTable) Get() *Slots {
	if !t.ready.Load() {
		fatal(errors.NotInitialized(errors.PhaseDispatch, "dispatch table"))
	}
	return &t.slots
}

func fatal(err *errors.Error) {
	Logger().Error("dispatch table contract violated", zap.Error(err))
	panic(err)
}
