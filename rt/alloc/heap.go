package alloc

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

const (
	// MaxAlign is the largest alignment Alloc honours.
	MaxAlign = 4096

	// MaxAlloc is the largest block, alignment padding included, that
	// Alloc serves. Larger requests fail with nil.
	MaxAlloc = 1 << 32

	minClassShift = 4  // 16 bytes
	maxClassShift = 20 // 1 MiB; larger blocks bypass the pools
)

// block remembers the backing buffer of an aligned allocation.
type block struct {
	base  []byte
	class int
}

// Stats is a point-in-time view of heap usage.
type Stats struct {
	LiveBytes   uint64
	LiveBlocks  uint64
	Allocs      uint64
	Frees       uint64
	UnknownFree uint64
	Failed      uint64
}

// Heap hands out aligned byte blocks backed by per-size-class pools.
type Heap struct {
	pools [maxClassShift - minClassShift + 1]sync.Pool

	mu   sync.Mutex
	live map[uintptr]block

	liveBytes   atomic.Uint64
	allocs      atomic.Uint64
	frees       atomic.Uint64
	unknownFree atomic.Uint64
	failed      atomic.Uint64
}

// New creates an empty heap.
func New() *Heap {
	h := &Heap{live: make(map[uintptr]block)}
	for i := range h.pools {
		size := 1 << (i + minClassShift)
		h.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return h
}

// classFor returns the pool index for n bytes, or -1 when n is served
// directly.
func classFor(n uint64) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len64(n - 1)
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

func validAlign(align uint64) bool {
	return align != 0 && align <= MaxAlign && align&(align-1) == 0
}

// Alloc returns a block of size bytes aligned to align. The contents are
// unspecified. It returns nil for a zero size, an invalid alignment or a
// request larger than MaxAlloc.
func (h *Heap) Alloc(size, align uint64) []byte {
	if size == 0 || !validAlign(align) {
		return nil
	}

	need, carry := bits.Add64(size, align-1, 0)
	if carry != 0 || need > MaxAlloc {
		h.failed.Add(1)
		Logger().Debug("allocation too large",
			zap.Uint64("size", size),
			zap.Uint64("align", align))
		return nil
	}
	class := classFor(need)

	var base []byte
	if class < 0 {
		base = make([]byte, need)
	} else {
		base = *(h.pools[class].Get().(*[]byte))
	}

	addr := uintptr(unsafe.Pointer(unsafe.SliceData(base)))
	off := int((uintptr(align) - addr%uintptr(align)) % uintptr(align))
	out := base[off : off+int(size) : off+int(size)]

	h.mu.Lock()
	h.live[uintptr(unsafe.Pointer(unsafe.SliceData(out)))] = block{base: base, class: class}
	h.mu.Unlock()

	h.liveBytes.Add(size)
	h.allocs.Add(1)
	return out
}

// AllocZeroed is Alloc with the returned block cleared.
func (h *Heap) AllocZeroed(size, align uint64) []byte {
	b := h.Alloc(size, align)
	clear(b)
	return b
}

// Dealloc returns a block obtained from Alloc. Blocks the heap does not
// know are ignored.
func (h *Heap) Dealloc(b []byte, align uint64) {
	if len(b) == 0 {
		return
	}
	key := uintptr(unsafe.Pointer(unsafe.SliceData(b)))

	h.mu.Lock()
	blk, ok := h.live[key]
	if ok {
		delete(h.live, key)
	}
	h.mu.Unlock()

	if !ok {
		h.unknownFree.Add(1)
		Logger().Debug("dealloc of unknown block",
			zap.Int("size", len(b)),
			zap.Uint64("align", align))
		return
	}

	h.liveBytes.Add(^uint64(len(b) - 1))
	h.frees.Add(1)
	if blk.class >= 0 {
		base := blk.base
		h.pools[blk.class].Put(&base)
	}
}

// Realloc resizes a block, preserving the common prefix. A nil block
// behaves like Alloc and a zero size like Dealloc.
func (h *Heap) Realloc(b []byte, align, newSize uint64) []byte {
	if len(b) == 0 {
		return h.Alloc(newSize, align)
	}
	if newSize == 0 {
		h.Dealloc(b, align)
		return nil
	}

	out := h.Alloc(newSize, align)
	if out == nil {
		return nil
	}
	copy(out, b)
	h.Dealloc(b, align)
	return out
}

// Stats reports current heap usage.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	blocks := uint64(len(h.live))
	h.mu.Unlock()

	return Stats{
		LiveBytes:   h.liveBytes.Load(),
		LiveBlocks:  blocks,
		Allocs:      h.allocs.Load(),
		Frees:       h.frees.Load(),
		UnknownFree: h.unknownFree.Load(),
		Failed:      h.failed.Load(),
	}
}
