package guest

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

// ModuleName is the import module guests link against.
const ModuleName = "rt"

// AttrSize is the byte size of the attribute record written by fs_stat
// and fs_get_attr: size, created, accessed and modified as u64, then
// perm as u32, then the file type as u8, padded to eight bytes.
const AttrSize = 40

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// Host exposes dispatch table entries to wasm guests. Slots are resolved
// on every call, so a guest calling in before installation hits the
// table's not-initialized failure.
type Host struct {
	vt *abi.VTable
}

// NewHost creates a host bound to vt.
func NewHost(vt *abi.VTable) *Host {
	return &Host{vt: vt}
}

type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func (h *Host) functions() []hostFunc {
	return []hostFunc{
		{h.log, "log", []api.ValueType{i32, i32}, nil},
		{h.now, "now", nil, []api.ValueType{i64}},
		{h.ticksPerSecond, "ticks_per_second", nil, []api.ValueType{i64}},
		{h.ticksToNanos, "ticks_to_nanos", []api.ValueType{i64}, []api.ValueType{i64}},
		{h.threadYield, "thread_yield", nil, nil},
		{h.threadSleep, "thread_sleep", []api.ValueType{i64}, nil},
		{h.fsOpen, "fs_open", []api.ValueType{i32, i32, i32}, []api.ValueType{i64}},
		{h.fsClose, "fs_close", []api.ValueType{i32}, []api.ValueType{i32}},
		{h.fsRead, "fs_read", []api.ValueType{i32, i32, i32}, []api.ValueType{i64}},
		{h.fsWrite, "fs_write", []api.ValueType{i32, i32, i32}, []api.ValueType{i64}},
		{h.fsSeek, "fs_seek", []api.ValueType{i32, i64, i32}, []api.ValueType{i64}},
		{h.fsGetAttr, "fs_get_attr", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{h.fsStat, "fs_stat", []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
		{h.fsMkdir, "fs_mkdir", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{h.fsUnlink, "fs_unlink", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{h.fsGetcwd, "fs_getcwd", []api.ValueType{i32, i32}, []api.ValueType{i64}},
		{h.fsChdir, "fs_chdir", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{h.posixFlush, "posix_flush", []api.ValueType{i32}, []api.ValueType{i32}},
		{h.posixDup, "posix_dup", []api.ValueType{i32}, []api.ValueType{i64}},
	}
}

// Exports lists the function names the host module provides.
func (h *Host) Exports() []string {
	fns := h.functions()
	out := make([]string, len(fns))
	for i, f := range fns {
		out[i] = f.name
	}
	return out
}

// Instantiate registers the host module with r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)
	for _, f := range h.functions() {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInternal, err, "instantiate host module")
	}
	Logger().Debug("guest host module ready", zap.Int("functions", len(h.functions())))
	return mod, nil
}

// status encodes err as 0 or a negated error code.
func status(err error) uint64 {
	return api.EncodeI32(int32(errors.Negative(err)))
}

// result encodes a non-negative value or a negated error code.
func result(v int64, err error) uint64 {
	if err != nil {
		return api.EncodeI64(errors.Negative(err))
	}
	return api.EncodeI64(v)
}

var errBadAddress = errors.New(errors.PhaseGuest, errors.KindInvalidInput).
	Detail("guest buffer out of bounds").
	Build()

func read(mod api.Module, ptr, n uint64) ([]byte, bool) {
	mem := mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(api.DecodeU32(ptr), api.DecodeU32(n))
}

func readString(mod api.Module, ptr, n uint64) (string, bool) {
	b, ok := read(mod, ptr, n)
	if !ok {
		return "", false
	}
	return string(b), true
}

func (h *Host) log(_ context.Context, mod api.Module, stack []uint64) {
	msg, ok := read(mod, stack[0], stack[1])
	if !ok {
		return
	}
	h.vt.Get().LogToKernel(msg)
}

func (h *Host) now(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = h.vt.Get().Now()
}

func (h *Host) ticksPerSecond(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = h.vt.Get().TicksPerSecond()
}

func (h *Host) ticksToNanos(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = h.vt.Get().TicksToNanos(stack[0])
}

func (h *Host) threadYield(context.Context, api.Module, []uint64) {
	h.vt.Get().ThreadYield()
}

func (h *Host) threadSleep(ctx context.Context, _ api.Module, stack []uint64) {
	d := time.Duration(int64(stack[0]))
	h.vt.Get().ThreadSleep(ctx, time.Now().Add(d))
}

func (h *Host) fsOpen(_ context.Context, mod api.Module, stack []uint64) {
	path, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = result(0, errBadAddress)
		return
	}
	fd, err := h.vt.Get().FsOpen(path, abi.OpenOptions(api.DecodeU32(stack[2])))
	stack[0] = result(int64(fd), err)
}

func (h *Host) fsClose(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = status(h.vt.Get().FsClose(posix.Fd(api.DecodeI32(stack[0]))))
}

func (h *Host) fsRead(_ context.Context, mod api.Module, stack []uint64) {
	fd := posix.Fd(api.DecodeI32(stack[0]))
	buf, ok := read(mod, stack[1], stack[2])
	if !ok {
		stack[0] = result(0, errBadAddress)
		return
	}
	n, err := h.vt.Get().FsRead(fd, buf)
	stack[0] = result(int64(n), err)
}

func (h *Host) fsWrite(_ context.Context, mod api.Module, stack []uint64) {
	fd := posix.Fd(api.DecodeI32(stack[0]))
	buf, ok := read(mod, stack[1], stack[2])
	if !ok {
		stack[0] = result(0, errBadAddress)
		return
	}
	n, err := h.vt.Get().FsWrite(fd, buf)
	stack[0] = result(int64(n), err)
}

func (h *Host) fsSeek(_ context.Context, _ api.Module, stack []uint64) {
	fd := posix.Fd(api.DecodeI32(stack[0]))
	pos, err := h.vt.Get().FsSeek(fd, int64(stack[1]), abi.Whence(api.DecodeU32(stack[2])))
	stack[0] = result(pos, err)
}

func encodeAttr(dst []byte, a abi.FileAttr) {
	binary.LittleEndian.PutUint64(dst[0:], a.Size)
	binary.LittleEndian.PutUint64(dst[8:], a.Created)
	binary.LittleEndian.PutUint64(dst[16:], a.Accessed)
	binary.LittleEndian.PutUint64(dst[24:], a.Modified)
	binary.LittleEndian.PutUint32(dst[32:], a.Perm)
	dst[36] = byte(a.Type)
	clear(dst[37:AttrSize])
}

func (h *Host) fsGetAttr(_ context.Context, mod api.Module, stack []uint64) {
	out, ok := read(mod, stack[1], AttrSize)
	if !ok {
		stack[0] = status(errBadAddress)
		return
	}
	attr, err := h.vt.Get().FsGetAttr(posix.Fd(api.DecodeI32(stack[0])))
	if err == nil {
		encodeAttr(out, attr)
	}
	stack[0] = status(err)
}

func (h *Host) fsStat(_ context.Context, mod api.Module, stack []uint64) {
	path, ok := readString(mod, stack[0], stack[1])
	out, ok2 := read(mod, stack[2], AttrSize)
	if !ok || !ok2 {
		stack[0] = status(errBadAddress)
		return
	}
	attr, err := h.vt.Get().FsStat(path)
	if err == nil {
		encodeAttr(out, attr)
	}
	stack[0] = status(err)
}

func (h *Host) pathOp(mod api.Module, stack []uint64, op func(string) error) {
	path, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = status(errBadAddress)
		return
	}
	stack[0] = status(op(path))
}

func (h *Host) fsMkdir(_ context.Context, mod api.Module, stack []uint64) {
	h.pathOp(mod, stack, h.vt.Get().FsMkdir)
}

func (h *Host) fsUnlink(_ context.Context, mod api.Module, stack []uint64) {
	h.pathOp(mod, stack, h.vt.Get().FsUnlink)
}

func (h *Host) fsChdir(_ context.Context, mod api.Module, stack []uint64) {
	h.pathOp(mod, stack, h.vt.Get().FsChdir)
}

// fsGetcwd copies the working directory into the guest buffer and
// returns its length. A buffer that is too small is left untouched and
// the required length is still returned.
func (h *Host) fsGetcwd(_ context.Context, mod api.Module, stack []uint64) {
	cwd, err := h.vt.Get().FsGetcwd()
	if err != nil {
		stack[0] = result(0, err)
		return
	}
	if uint64(len(cwd)) <= uint64(api.DecodeU32(stack[1])) {
		out, ok := read(mod, stack[0], uint64(len(cwd)))
		if !ok {
			stack[0] = result(0, errBadAddress)
			return
		}
		copy(out, cwd)
	}
	stack[0] = result(int64(len(cwd)), nil)
}

func (h *Host) posixFlush(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = status(h.vt.Get().PosixFlush(posix.Fd(api.DecodeI32(stack[0]))))
}

func (h *Host) posixDup(_ context.Context, _ api.Module, stack []uint64) {
	fd, err := h.vt.Get().PosixDuplicate(posix.Fd(api.DecodeI32(stack[0])))
	stack[0] = result(int64(fd), err)
}
