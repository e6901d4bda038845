package guest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
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
	"github.com/wippyai/motor-rt/vdso"
)

// logModule imports rt.log and exports memory plus run(ptr, len).
var logModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x00,
	0x02, 0x0a, 0x01, 0x02, 0x72, 0x74, 0x03, 0x6c, 0x6f, 0x67, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x10, 0x02, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x01,
	0x0a, 0x0a, 0x01, 0x08, 0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b,
}

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func name(s string) []byte {
	return append(uleb(len(s)), s...)
}

func section(id byte, body []byte) []byte {
	return append(append([]byte{id}, uleb(len(body))...), body...)
}

// forwarder builds a module that imports rt.<fn> and exports memory and
// call, which passes its parameters straight to the import.
func forwarder(fn string, params, results []api.ValueType) []byte {
	sig := []byte{0x01, 0x60}
	sig = append(sig, uleb(len(params))...)
	sig = append(sig, params...)
	sig = append(sig, uleb(len(results))...)
	sig = append(sig, results...)

	imp := append([]byte{0x01}, name(ModuleName)...)
	imp = append(imp, name(fn)...)
	imp = append(imp, 0x00, 0x00)

	exp := []byte{0x02}
	exp = append(exp, name("memory")...)
	exp = append(exp, 0x02, 0x00)
	exp = append(exp, name("call")...)
	exp = append(exp, 0x00, 0x01)

	body := []byte{0x00}
	for i := range params {
		body = append(body, 0x20, byte(i))
	}
	body = append(body, 0x10, 0x00, 0x0b)
	code := append([]byte{0x01}, uleb(len(body))...)
	code = append(code, body...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(0x01, sig)...)
	out = append(out, section(0x02, imp)...)
	out = append(out, section(0x03, []byte{0x01, 0x00})...)
	out = append(out, section(0x05, []byte{0x01, 0x00, 0x01})...)
	out = append(out, section(0x07, exp)...)
	out = append(out, section(0x0a, code)...)
	return out
}

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

func installedTable(t *testing.T, console *syncBuffer) *abi.VTable {
	t.Helper()
	table := posix.NewTable()
	fsys, err := fs.New(t.TempDir(), table)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = table.Clear()
		_ = fsys.Shutdown()
	})

	threads := thread.NewRegistry()
	vt := &abi.VTable{}
	vt.SetEntry(vdso.EntryAddress())
	vdso.Install(vt, abi.Version, &vdso.Boot{
		Heap:        alloc.New(),
		Clock:       clock.New(0),
		Futex:       futex.New(),
		Threads:     threads,
		TLS:         tls.New(threads),
		FS:          fsys,
		Descriptors: table,
		Relay:       klog.NewRelay(klog.NewSink(console, zapcore.InfoLevel), "guest", rate.Inf, 1),
	})
	return vt
}

// guestEnv links one forwarder module against a fresh host.
type guestEnv struct {
	mod  api.Module
	call api.Function
}

func link(t *testing.T, vt *abi.VTable, fn string, params, results []api.ValueType) guestEnv {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	_, err := NewHost(vt).Instantiate(ctx, r)
	require.NoError(t, err)

	mod, err := r.InstantiateWithConfig(ctx, forwarder(fn, params, results),
		wazero.NewModuleConfig().WithName(fn).WithStartFunctions())
	require.NoError(t, err)
	return guestEnv{mod: mod, call: mod.ExportedFunction("call")}
}

func (g guestEnv) put(t *testing.T, off uint32, data []byte) {
	t.Helper()
	require.True(t, g.mod.Memory().Write(off, data))
}

func (g guestEnv) invoke(t *testing.T, args ...uint64) uint64 {
	t.Helper()
	res, err := g.call.Call(context.Background(), args...)
	require.NoError(t, err)
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

func TestForwarder_MatchesHandEncodedModule(t *testing.T) {
	assert.Equal(t, logModule[8:16], forwarder("log", []api.ValueType{i32, i32}, nil)[8:16])
}

func TestRun_Log(t *testing.T) {
	console := &syncBuffer{}
	vt := installedTable(t, console)
	ctx := context.Background()

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	_, err := NewHost(vt).Instantiate(ctx, r)
	require.NoError(t, err)

	mod, err := r.Instantiate(ctx, logModule)
	require.NoError(t, err)

	msg := []byte("hello from wasm")
	require.True(t, mod.Memory().Write(64, msg))
	_, err = mod.ExportedFunction("run").Call(ctx, 64, uint64(len(msg)))
	require.NoError(t, err)

	assert.Contains(t, console.String(), "guest: hello from wasm")

	// Out of bounds buffers are dropped silently.
	_, err = mod.ExportedFunction("run").Call(ctx, 1<<20, 8)
	require.NoError(t, err)
}

func TestRun_Helper(t *testing.T) {
	console := &syncBuffer{}
	vt := installedTable(t, console)

	_, err := Run(context.Background(), vt, logModule, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = Run(context.Background(), vt, []byte("not wasm"), "run")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = Run(context.Background(), vt, logModule, "run", 0, 0)
	require.NoError(t, err)
}

func TestHost_FileRoundTrip(t *testing.T) {
	vt := installedTable(t, &syncBuffer{})

	open := link(t, vt, "fs_open", []api.ValueType{i32, i32, i32}, []api.ValueType{i64})
	write := link(t, vt, "fs_write", []api.ValueType{i32, i32, i32}, []api.ValueType{i64})
	read := link(t, vt, "fs_read", []api.ValueType{i32, i32, i32}, []api.ValueType{i64})
	seek := link(t, vt, "fs_seek", []api.ValueType{i32, i64, i32}, []api.ValueType{i64})
	closeFn := link(t, vt, "fs_close", []api.ValueType{i32}, []api.ValueType{i32})

	path := []byte("/note.txt")
	open.put(t, 0, path)
	fd := int64(open.invoke(t, 0, uint64(len(path)),
		uint64(abi.OpenRead|abi.OpenWrite|abi.OpenCreate)))
	require.GreaterOrEqual(t, fd, int64(0))

	payload := []byte("guest bytes")
	write.put(t, 128, payload)
	n := int64(write.invoke(t, uint64(fd), 128, uint64(len(payload))))
	assert.Equal(t, int64(len(payload)), n)

	pos := int64(seek.invoke(t, uint64(fd), api.EncodeI64(0), uint64(abi.SeekStart)))
	assert.Zero(t, pos)

	n = int64(read.invoke(t, uint64(fd), 256, 64))
	require.Equal(t, int64(len(payload)), n)
	got, ok := read.mod.Memory().Read(256, uint32(n))
	require.True(t, ok)
	assert.Equal(t, payload, got)

	assert.Zero(t, api.DecodeI32(closeFn.invoke(t, uint64(fd))))
	assert.Equal(t, int32(-int32(errors.CodeBadHandle)), api.DecodeI32(closeFn.invoke(t, uint64(fd))))
}

func TestHost_ErrorsAreNegativeCodes(t *testing.T) {
	vt := installedTable(t, &syncBuffer{})

	open := link(t, vt, "fs_open", []api.ValueType{i32, i32, i32}, []api.ValueType{i64})
	missing := []byte("/nope")
	open.put(t, 0, missing)
	assert.Equal(t, -int64(errors.CodeNotFound),
		int64(open.invoke(t, 0, uint64(len(missing)), uint64(abi.OpenRead))))

	assert.Equal(t, -int64(errors.CodeInvalidArgument),
		int64(open.invoke(t, 1<<20, 4, uint64(abi.OpenRead))), "out of bounds path")

	dup := link(t, vt, "posix_dup", []api.ValueType{i32}, []api.ValueType{i64})
	assert.Equal(t, -int64(errors.CodeBadHandle), int64(dup.invoke(t, 77)))

	flush := link(t, vt, "posix_flush", []api.ValueType{i32}, []api.ValueType{i32})
	assert.Equal(t, -int32(errors.CodeBadHandle), api.DecodeI32(flush.invoke(t, 77)))
}

func TestHost_DirectoriesAndStat(t *testing.T) {
	vt := installedTable(t, &syncBuffer{})

	mkdir := link(t, vt, "fs_mkdir", []api.ValueType{i32, i32}, []api.ValueType{i32})
	chdir := link(t, vt, "fs_chdir", []api.ValueType{i32, i32}, []api.ValueType{i32})
	getcwd := link(t, vt, "fs_getcwd", []api.ValueType{i32, i32}, []api.ValueType{i64})
	stat := link(t, vt, "fs_stat", []api.ValueType{i32, i32, i32}, []api.ValueType{i32})
	unlink := link(t, vt, "fs_unlink", []api.ValueType{i32, i32}, []api.ValueType{i32})

	dir := []byte("/work")
	mkdir.put(t, 0, dir)
	require.Zero(t, api.DecodeI32(mkdir.invoke(t, 0, uint64(len(dir)))))
	assert.Equal(t, -int32(errors.CodeAlreadyInUse), api.DecodeI32(mkdir.invoke(t, 0, uint64(len(dir)))))

	chdir.put(t, 0, dir)
	require.Zero(t, api.DecodeI32(chdir.invoke(t, 0, uint64(len(dir)))))

	assert.Equal(t, uint64(len(dir)), getcwd.invoke(t, 0, 2), "short buffer reports required length")
	assert.Equal(t, uint64(len(dir)), getcwd.invoke(t, 0, 64))
	cwd, _ := getcwd.mod.Memory().Read(0, uint32(len(dir)))
	assert.Equal(t, "/work", string(cwd))

	stat.put(t, 0, dir)
	require.Zero(t, api.DecodeI32(stat.invoke(t, 0, uint64(len(dir)), 512)))
	rec, _ := stat.mod.Memory().Read(512, AttrSize)
	assert.Equal(t, byte(abi.FileTypeDir), rec[36])
	assert.NotZero(t, binary.LittleEndian.Uint64(rec[24:]))

	unlink.put(t, 0, dir)
	assert.Equal(t, -int32(errors.CodeIsADirectory), api.DecodeI32(unlink.invoke(t, 0, uint64(len(dir)))))
}

func TestHost_Time(t *testing.T) {
	vt := installedTable(t, &syncBuffer{})
	ctx := context.Background()

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	host, err := NewHost(vt).Instantiate(ctx, r)
	require.NoError(t, err)

	res, err := host.ExportedFunction("ticks_per_second").Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.DefaultTicksPerSecond, res[0])

	res, err = host.ExportedFunction("ticks_to_nanos").Call(ctx, 1500)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), res[0])

	_, err = host.ExportedFunction("thread_sleep").Call(ctx, api.EncodeI64(1000))
	require.NoError(t, err)
	_, err = host.ExportedFunction("thread_yield").Call(ctx)
	require.NoError(t, err)

	res, err = host.ExportedFunction("now").Call(ctx)
	require.NoError(t, err)
	assert.NotZero(t, res[0])
}

func TestHost_Exports(t *testing.T) {
	h := NewHost(&abi.VTable{})
	exports := h.Exports()
	assert.Contains(t, exports, "log")
	assert.Contains(t, exports, "fs_open")
	assert.Contains(t, exports, "posix_dup")
}
