// Package abi defines the dispatch table contract between the loader,
// the runtime install routine and every userspace caller.
//
// # Layout
//
// The table is a fixed, versioned, ordered set of entries grouped by
// subsystem (memory, time, futex, tls, thread, fs, posix, log) followed
// by the address of the install routine. Slot enumerates the layout and
// Slots holds one typed function per slot, in the same order.
//
// # Lifecycle
//
// The loader writes the install routine's address into the table, then
// calls the routine, which calls Install exactly once:
//
//	vt := abi.Process()
//	vt.SetEntry(entryAddr)               // loader
//	vt.Install(abi.Version, entryAddr, s) // install routine
//
//	// any goroutine, afterwards
//	fd, err := abi.Get().FsOpen("/etc/motd", abi.OpenRead)
//
// Install rejects any version but Version, a table whose entry slot does
// not hold the caller's address, a second installation and an
// incomplete slot record. Get before installation is rejected too. All
// of these are contract violations: they are logged and then panic with
// an *errors.Error that the runtime never recovers.
//
// Slots are written with ordinary stores and published by one atomic
// store of the ready flag, so readers need no further synchronization
// once Get returns.
package abi
