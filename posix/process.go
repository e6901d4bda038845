package posix

import (
	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/errors"
)

// descriptors is the process-wide table behind the fs and posix slots.
var descriptors = NewTable()

// Descriptors returns the process descriptor table.
func Descriptors() *Table {
	return descriptors
}

// NewFile allocates a process handle whose occupant is built by ctor.
// It returns InvalidFd when allocation fails.
func NewFile(ctor func(Fd) File) Fd {
	fd, err := descriptors.Allocate(ctor)
	if err != nil {
		Logger().Warn("descriptor allocation failed", zap.Error(err))
		return InvalidFd
	}
	return fd
}

// PushFile allocates a process handle for f.
func PushFile(f File) Fd {
	return NewFile(func(Fd) File { return f })
}

// GetFile resolves a process handle.
func GetFile(fd Fd) (File, bool) {
	return descriptors.Lookup(fd)
}

// PopFile releases a process handle.
func PopFile(fd Fd) (File, error) {
	return descriptors.Release(fd)
}

// Read resolves fd and reads from its object.
func (t *Table) Read(fd Fd, buf []byte) (int, error) {
	f, ok := t.Lookup(fd)
	if !ok {
		return 0, errors.BadHandle(errors.PhaseDescriptor, fd)
	}
	return f.Read(buf)
}

// Write resolves fd and writes to its object.
func (t *Table) Write(fd Fd, buf []byte) (int, error) {
	f, ok := t.Lookup(fd)
	if !ok {
		return 0, errors.BadHandle(errors.PhaseDescriptor, fd)
	}
	return f.Write(buf)
}

// Flush resolves fd and flushes its object.
func (t *Table) Flush(fd Fd) error {
	f, ok := t.Lookup(fd)
	if !ok {
		return errors.BadHandle(errors.PhaseDescriptor, fd)
	}
	return f.Flush()
}

// Close releases fd. The object's own Close error, if it ran, is
// returned unchanged.
func (t *Table) Close(fd Fd) error {
	_, err := t.Release(fd)
	return err
}

// Read reads from a process handle.
func Read(fd Fd, buf []byte) (int, error) { return descriptors.Read(fd, buf) }

// Write writes to a process handle.
func Write(fd Fd, buf []byte) (int, error) { return descriptors.Write(fd, buf) }

// Flush flushes a process handle.
func Flush(fd Fd) error { return descriptors.Flush(fd) }

// Close closes a process handle.
func Close(fd Fd) error { return descriptors.Close(fd) }

// Duplicate duplicates a process handle.
func Duplicate(fd Fd) (Fd, error) { return descriptors.Duplicate(fd) }
