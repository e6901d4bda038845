package vdso

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/klog"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/alloc"
	"github.com/wippyai/motor-rt/rt/clock"
	"github.com/wippyai/motor-rt/rt/fs"
	"github.com/wippyai/motor-rt/rt/futex"
	"github.com/wippyai/motor-rt/rt/thread"
	"github.com/wippyai/motor-rt/rt/tls"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBoot(t *testing.T, console *syncBuffer) *Boot {
	t.Helper()
	table := posix.NewTable()
	fsys, err := fs.New(t.TempDir(), table)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = table.Clear()
		_ = fsys.Shutdown()
	})

	threads := thread.NewRegistry()
	return &Boot{
		Heap:        alloc.New(),
		Clock:       clock.New(0),
		Futex:       futex.New(),
		Threads:     threads,
		TLS:         tls.New(threads),
		FS:          fsys,
		Descriptors: table,
		Relay:       klog.NewRelay(klog.NewSink(console, zapcore.InfoLevel), "init", rate.Inf, 1),
	}
}

func installed(t *testing.T, b *Boot) *abi.VTable {
	t.Helper()
	vt := &abi.VTable{}
	vt.SetEntry(EntryAddress())
	Install(vt, abi.Version, b)
	require.True(t, vt.Ready())
	return vt
}

func TestEntryAddress_Stable(t *testing.T) {
	assert.NotZero(t, EntryAddress())
	assert.Equal(t, EntryAddress(), EntryAddress())
}

func TestBind_FillsEverySlot(t *testing.T) {
	b := newBoot(t, &syncBuffer{})
	vt := installed(t, b)
	assert.Equal(t, EntryAddress(), vt.Entry())
}

func TestInstall_MissingProvider(t *testing.T) {
	b := newBoot(t, &syncBuffer{})
	b.Futex = nil

	vt := &abi.VTable{}
	vt.SetEntry(EntryAddress())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err := r.(*errors.Error)
		assert.Equal(t, errors.KindNotInitialized, err.Kind)
		assert.Equal(t, abi.SlotFutexWait, err.Value)
		assert.False(t, vt.Ready())
	}()
	Install(vt, abi.Version, b)
}

func TestInstall_Tampered(t *testing.T) {
	vt := &abi.VTable{}
	vt.SetEntry(EntryAddress() + 1)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Equal(t, errors.KindTamper, r.(*errors.Error).Kind)
	}()
	Install(vt, abi.Version, newBoot(t, &syncBuffer{}))
}

func TestSlots_EndToEnd(t *testing.T) {
	console := &syncBuffer{}
	s := installed(t, newBoot(t, console)).Get()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		block := s.AllocZeroed(32, 16)
		require.Len(t, block, 32)
		block = s.Realloc(block, 16, 64)
		require.Len(t, block, 64)
		s.Dealloc(block, 16)
	})

	t.Run("time", func(t *testing.T) {
		now := s.Now()
		assert.Equal(t, now, s.NanosToTicks(s.TicksToNanos(now)))
		assert.NotZero(t, s.TicksPerSecond())
		assert.Greater(t, s.AbsTicksToNanos(now), uint64(0))
	})

	t.Run("futex and threads", func(t *testing.T) {
		var word atomic.Uint32
		key := s.TLSCreate(nil)

		h, err := s.ThreadSpawn(ctx, func(ctx context.Context) {
			require.NoError(t, s.ThreadSetName(ctx, "waiter"))
			s.TLSSet(ctx, key, 5)
			assert.Equal(t, uint64(5), s.TLSGet(ctx, key))
			for word.Load() == 0 {
				s.FutexWait(&word, 0, time.Now().Add(time.Second))
			}
		})
		require.NoError(t, err)

		s.ThreadYield()
		s.ThreadSleep(ctx, time.Now().Add(5*time.Millisecond))
		word.Store(1)
		s.FutexWakeAll(&word)
		s.FutexWake(&word)

		require.NoError(t, s.ThreadJoin(h))
		assert.Zero(t, s.TLSGet(ctx, key))
		s.TLSDestroy(key)
	})

	t.Run("fs and posix", func(t *testing.T) {
		require.NoError(t, s.FsMkdir("/data"))
		require.NoError(t, s.FsChdir("/data"))
		cwd, err := s.FsGetcwd()
		require.NoError(t, err)
		assert.Equal(t, "/data", cwd)

		fd, err := s.FsOpen("f.txt", abi.OpenRead|abi.OpenWrite|abi.OpenCreate)
		require.NoError(t, err)
		_, err = s.FsWrite(fd, []byte("dispatch"))
		require.NoError(t, err)
		require.NoError(t, s.PosixFlush(fd))
		require.NoError(t, s.FsFsync(fd))
		require.NoError(t, s.FsDatasync(fd))

		dup, err := s.PosixDuplicate(fd)
		require.NoError(t, err)
		require.NoError(t, s.FsClose(fd))

		_, err = s.FsSeek(dup, 0, abi.SeekStart)
		require.NoError(t, err)
		buf := make([]byte, 16)
		n, err := s.FsRead(dup, buf)
		require.NoError(t, err)
		assert.Equal(t, "dispatch", string(buf[:n]))

		require.NoError(t, s.FsTruncate(dup, 4))
		attr, err := s.FsGetAttr(dup)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), attr.Size)
		require.NoError(t, s.FsClose(dup))

		copied, err := s.FsCopy("f.txt", "g.txt")
		require.NoError(t, err)
		assert.Equal(t, uint64(4), copied)
		require.NoError(t, s.FsRename("g.txt", "h.txt"))
		require.NoError(t, s.FsSetPerm("h.txt", 0o640))
		st, err := s.FsStat("h.txt")
		require.NoError(t, err)
		assert.Equal(t, uint32(0o640), st.Perm)

		canon, err := s.FsCanonicalize("../data/h.txt")
		require.NoError(t, err)
		assert.Equal(t, "/data/h.txt", canon)

		dir, err := s.FsOpendir(".")
		require.NoError(t, err)
		var names []string
		for {
			e, err := s.FsReaddir(dir)
			require.NoError(t, err)
			if e == nil {
				break
			}
			names = append(names, e.Name)
		}
		assert.ElementsMatch(t, []string{"f.txt", "h.txt"}, names)
		require.NoError(t, s.FsClosedir(dir))

		require.NoError(t, s.FsUnlink("h.txt"))
		require.NoError(t, s.FsChdir("/"))
		require.NoError(t, s.FsMkdir("/empty"))
		require.NoError(t, s.FsRmdir("/empty"))
		require.NoError(t, s.FsRmdirAll("/data"))

		_, err = s.FsOpen("/data/f.txt", abi.OpenRead)
		assert.Equal(t, int64(-10), errors.Negative(err))
	})

	t.Run("log", func(t *testing.T) {
		s.LogToKernel([]byte("hello kernel\n"))
		assert.Contains(t, console.String(), "init: hello kernel")
	})
}
