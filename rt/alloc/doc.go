// Package alloc implements the memory entries of the dispatch table.
//
// Blocks are byte slices carved out of power-of-two size-class pools.
// Alignment is satisfied by over-allocating and slicing at the first
// aligned offset; the heap keeps the backing buffer so Dealloc can
// return it to its pool.
package alloc
