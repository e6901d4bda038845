package vdso

import (
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/klog"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/alloc"
	"github.com/wippyai/motor-rt/rt/clock"
	"github.com/wippyai/motor-rt/rt/fs"
	"github.com/wippyai/motor-rt/rt/futex"
	"github.com/wippyai/motor-rt/rt/thread"
	"github.com/wippyai/motor-rt/rt/tls"
)

// Boot holds the providers the install routine binds into the dispatch
// table. A nil provider leaves its slots empty, which Install rejects.
type Boot struct {
	Heap        *alloc.Heap
	Clock       *clock.Clock
	Futex       *futex.Table
	Threads     *thread.Registry
	TLS         *tls.Store
	FS          *fs.FS
	Descriptors *posix.Table
	Relay       *klog.Relay
}

var boot atomic.Pointer[Boot]

// SetBoot registers the providers used by the next call to Entry.
func SetBoot(b *Boot) {
	boot.Store(b)
}

// EntryAddress returns the code address of Entry. The loader writes it
// into the tamper-check slot before calling Entry.
func EntryAddress() uintptr {
	return reflect.ValueOf(Entry).Pointer()
}

// Entry is the install routine: it binds the registered providers into
// the process dispatch table. Version or tamper-check mismatches, a
// missing provider and a second call are fatal.
func Entry(version uint64) {
	b := boot.Load()
	if b == nil {
		b = &Boot{}
	}
	Install(abi.Process(), version, b)
}

// Install binds b into vt on behalf of Entry.
func Install(vt *abi.VTable, version uint64, b *Boot) {
	Logger().Debug("running install routine", zap.Uint64("version", version))
	vt.Install(version, EntryAddress(), Bind(b))
}

// Bind builds the slot record for b.
func Bind(b *Boot) *abi.Slots {
	s := &abi.Slots{}

	if h := b.Heap; h != nil {
		s.Alloc = h.Alloc
		s.AllocZeroed = h.AllocZeroed
		s.Dealloc = h.Dealloc
		s.Realloc = h.Realloc
	}

	if c := b.Clock; c != nil {
		s.Now = c.Now
		s.TicksToNanos = c.TicksToNanos
		s.NanosToTicks = c.NanosToTicks
		s.TicksPerSecond = c.TicksPerSecond
		s.AbsTicksToNanos = c.AbsTicksToNanos
	}

	if f := b.Futex; f != nil {
		s.FutexWait = f.Wait
		s.FutexWake = f.Wake
		s.FutexWakeAll = f.WakeAll
	}

	if st := b.TLS; st != nil {
		s.TLSCreate = st.Create
		s.TLSSet = st.Set
		s.TLSGet = st.Get
		s.TLSDestroy = st.Destroy
	}

	if r := b.Threads; r != nil {
		s.ThreadSpawn = r.Spawn
		s.ThreadYield = r.Yield
		s.ThreadSleep = r.Sleep
		s.ThreadSetName = r.SetName
		s.ThreadJoin = r.Join
	}

	if f := b.FS; f != nil {
		s.FsOpen = f.Open
		s.FsClose = f.Close
		s.FsGetAttr = f.GetAttr
		s.FsFsync = f.Fsync
		s.FsDatasync = f.Datasync
		s.FsTruncate = f.Truncate
		s.FsRead = f.Read
		s.FsWrite = f.Write
		s.FsSeek = f.Seek
		s.FsMkdir = f.Mkdir
		s.FsUnlink = f.Unlink
		s.FsRename = f.Rename
		s.FsRmdir = f.Rmdir
		s.FsRmdirAll = f.RmdirAll
		s.FsSetPerm = f.SetPerm
		s.FsStat = f.Stat
		s.FsCanonicalize = f.Canonicalize
		s.FsCopy = f.Copy
		s.FsOpendir = f.Opendir
		s.FsClosedir = f.Closedir
		s.FsReaddir = f.Readdir
		s.FsGetcwd = f.Getcwd
		s.FsChdir = f.Chdir
	}

	if d := b.Descriptors; d != nil {
		s.PosixFlush = d.Flush
		s.PosixDuplicate = d.Duplicate
	}

	if r := b.Relay; r != nil {
		s.LogToKernel = r.Forward
	}

	return s
}
