package abi

// Version is the only dispatch table ABI version this runtime accepts.
const Version uint64 = 1

// Slot names one entry of the dispatch table. The numeric order is the
// ABI layout and must not change within a Version.
type Slot uint8

const (
	// Memory.
	SlotAlloc Slot = iota
	SlotAllocZeroed
	SlotDealloc
	SlotRealloc

	// Time.
	SlotTimeNow
	SlotTicksToNanos
	SlotNanosToTicks
	SlotTicksPerSecond
	SlotAbsTicksToNanos

	// Futex.
	SlotFutexWait
	SlotFutexWake
	SlotFutexWakeAll

	// Thread-local storage.
	SlotTLSCreate
	SlotTLSSet
	SlotTLSGet
	SlotTLSDestroy

	// Threads.
	SlotThreadSpawn
	SlotThreadYield
	SlotThreadSleep
	SlotThreadSetName
	SlotThreadJoin

	// Filesystem.
	SlotFsOpen
	SlotFsClose
	SlotFsGetAttr
	SlotFsFsync
	SlotFsDatasync
	SlotFsTruncate
	SlotFsRead
	SlotFsWrite
	SlotFsSeek
	SlotFsMkdir
	SlotFsUnlink
	SlotFsRename
	SlotFsRmdir
	SlotFsRmdirAll
	SlotFsSetPerm
	SlotFsStat
	SlotFsCanonicalize
	SlotFsCopy
	SlotFsOpendir
	SlotFsClosedir
	SlotFsReaddir
	SlotFsGetcwd
	SlotFsChdir

	// Descriptor-level operations shared by every handle variant.
	SlotPosixFlush
	SlotPosixDuplicate

	// Kernel log relay.
	SlotLogToKernel

	// Address of the install routine, written by the loader.
	SlotVdsoEntry

	SlotCount
)

type slotInfo struct {
	group string
	name  string
	field string
}

var slotInfos = [SlotCount]slotInfo{
	SlotAlloc:       {"memory", "alloc", "Alloc"},
	SlotAllocZeroed: {"memory", "alloc_zeroed", "AllocZeroed"},
	SlotDealloc:     {"memory", "dealloc", "Dealloc"},
	SlotRealloc:     {"memory", "realloc", "Realloc"},

	SlotTimeNow:         {"time", "now", "Now"},
	SlotTicksToNanos:    {"time", "ticks_to_nanos", "TicksToNanos"},
	SlotNanosToTicks:    {"time", "nanos_to_ticks", "NanosToTicks"},
	SlotTicksPerSecond:  {"time", "ticks_per_second", "TicksPerSecond"},
	SlotAbsTicksToNanos: {"time", "abs_ticks_to_nanos", "AbsTicksToNanos"},

	SlotFutexWait:    {"futex", "wait", "FutexWait"},
	SlotFutexWake:    {"futex", "wake", "FutexWake"},
	SlotFutexWakeAll: {"futex", "wake_all", "FutexWakeAll"},

	SlotTLSCreate:  {"tls", "create", "TLSCreate"},
	SlotTLSSet:     {"tls", "set", "TLSSet"},
	SlotTLSGet:     {"tls", "get", "TLSGet"},
	SlotTLSDestroy: {"tls", "destroy", "TLSDestroy"},

	SlotThreadSpawn:   {"thread", "spawn", "ThreadSpawn"},
	SlotThreadYield:   {"thread", "yield", "ThreadYield"},
	SlotThreadSleep:   {"thread", "sleep", "ThreadSleep"},
	SlotThreadSetName: {"thread", "set_name", "ThreadSetName"},
	SlotThreadJoin:    {"thread", "join", "ThreadJoin"},

	SlotFsOpen:         {"fs", "open", "FsOpen"},
	SlotFsClose:        {"fs", "close", "FsClose"},
	SlotFsGetAttr:      {"fs", "get_attr", "FsGetAttr"},
	SlotFsFsync:        {"fs", "fsync", "FsFsync"},
	SlotFsDatasync:     {"fs", "datasync", "FsDatasync"},
	SlotFsTruncate:     {"fs", "truncate", "FsTruncate"},
	SlotFsRead:         {"fs", "read", "FsRead"},
	SlotFsWrite:        {"fs", "write", "FsWrite"},
	SlotFsSeek:         {"fs", "seek", "FsSeek"},
	SlotFsMkdir:        {"fs", "mkdir", "FsMkdir"},
	SlotFsUnlink:       {"fs", "unlink", "FsUnlink"},
	SlotFsRename:       {"fs", "rename", "FsRename"},
	SlotFsRmdir:        {"fs", "rmdir", "FsRmdir"},
	SlotFsRmdirAll:     {"fs", "rmdir_all", "FsRmdirAll"},
	SlotFsSetPerm:      {"fs", "set_perm", "FsSetPerm"},
	SlotFsStat:         {"fs", "stat", "FsStat"},
	SlotFsCanonicalize: {"fs", "canonicalize", "FsCanonicalize"},
	SlotFsCopy:         {"fs", "copy", "FsCopy"},
	SlotFsOpendir:      {"fs", "opendir", "FsOpendir"},
	SlotFsClosedir:     {"fs", "closedir", "FsClosedir"},
	SlotFsReaddir:      {"fs", "readdir", "FsReaddir"},
	SlotFsGetcwd:       {"fs", "getcwd", "FsGetcwd"},
	SlotFsChdir:        {"fs", "chdir", "FsChdir"},

	SlotPosixFlush:     {"posix", "flush", "PosixFlush"},
	SlotPosixDuplicate: {"posix", "duplicate", "PosixDuplicate"},

	SlotLogToKernel: {"log", "log_to_kernel", "LogToKernel"},

	SlotVdsoEntry: {"vdso", "entry", ""},
}

// String returns "group.name", e.g. "fs.open".
func (s Slot) String() string {
	if s >= SlotCount {
		return "invalid"
	}
	info := slotInfos[s]
	return info.group + "." + info.name
}

// Group returns the subsystem the slot belongs to.
func (s Slot) Group() string {
	if s >= SlotCount {
		return ""
	}
	return slotInfos[s].group
}

// Name returns the slot name within its group.
func (s Slot) Name() string {
	if s >= SlotCount {
		return ""
	}
	return slotInfos[s].name
}

// Field returns the Slots field bound to this slot. The entry address
// slot lives on the VTable itself and has no field.
func (s Slot) Field() string {
	if s >= SlotCount {
		return ""
	}
	return slotInfos[s].field
}

// Layout returns every slot in ABI order.
func Layout() []Slot {
	out := make([]Slot, SlotCount)
	for i := range out {
		out[i] = Slot(i)
	}
	return out
}
