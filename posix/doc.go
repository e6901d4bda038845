// Package posix exposes a POSIX-style descriptor space over heterogeneous
// resource objects.
//
// Higher level code written against small integer handles keeps working
// while the objects behind them are files, directories, stdio streams or
// anything else implementing File.
//
// # Capability Interface
//
// Every occupant implements File. Variants embed Unimplemented and
// override what they support; the rest fails with a bad handle error
// (poll registration with invalid argument):
//
//	type pipeEnd struct {
//	    posix.Unimplemented
//	    r io.Reader
//	}
//
//	func (p *pipeEnd) Read(buf []byte) (int, error) { return p.r.Read(buf) }
//	func (p *pipeEnd) Close() error                 { return nil }
//
// # Descriptor Table
//
//	table := posix.NewTable()
//
//	// Reserve a handle and build the object that lives there
//	fd, err := table.Allocate(func(fd posix.Fd) posix.File {
//	    return newFile(fd, osFile)
//	})
//
//	f, ok := table.Lookup(fd)     // never mutates
//	fd2, err := table.Duplicate(fd) // same object, second handle
//	_, err = table.Release(fd)    // closes only when fd2 is gone too
//
// Handles are recycled through a free list, so the slot array grows to
// the high-water mark of simultaneously open handles and never shrinks.
// Callers must not assume a handle value is unique over the process
// lifetime.
//
// While a handle is reserved but its constructor has not returned, and
// after it has been released, the slot holds a placeholder that lookups
// report as not found.
//
// # Process Table
//
// Descriptors returns the process-wide table used by the dispatch
// table's filesystem and posix slots. Read, Write, Flush, Close and
// Duplicate operate on it directly and pass object errors through
// unchanged.
package posix
