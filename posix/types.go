package posix

import (
	"github.com/wippyai/motor-rt/errors"
)

// Fd is a small non-negative integer naming a descriptor table entry.
// Values are recycled after release.
type Fd int32

// InvalidFd is returned when an allocation fails. It never collides with
// a valid handle.
const InvalidFd Fd = -1

// Token identifies a registration inside a poll group.
type Token uint64

// Interests is the readiness set a poll registration watches.
type Interests uint32

const (
	InterestReadable Interests = 1 << iota
	InterestWritable
)

// File is the capability interface every descriptor table occupant
// implements. Embed Unimplemented to get the failing defaults and
// override only what the variant supports.
type File interface {
	// Read fills buf and returns the number of bytes written into it.
	Read(buf []byte) (int, error)

	// Write consumes bytes from buf and returns how many were taken.
	Write(buf []byte) (int, error)

	// Flush pushes out buffered writer state. Success means nothing is
	// left outstanding.
	Flush() error

	// Close is called exactly once, when the table drops its last
	// reference to the object.
	Close() error

	// PollAdd registers the object with the poll group pollFd.
	PollAdd(pollFd Fd, token Token, interests Interests) error

	// PollSet updates an existing registration.
	PollSet(pollFd Fd, token Token, interests Interests) error

	// PollDel removes the object from the poll group.
	PollDel(pollFd Fd) error
}

// Unimplemented provides the default behavior for every File method:
// I/O fails with a bad handle error and poll registration is rejected
// as an invalid argument.
type Unimplemented struct{}

func (Unimplemented) Read([]byte) (int, error)  { return 0, errors.ErrBadHandle }
func (Unimplemented) Write([]byte) (int, error) { return 0, errors.ErrBadHandle }
func (Unimplemented) Flush() error              { return errors.ErrBadHandle }
func (Unimplemented) Close() error              { return errors.ErrBadHandle }

func (Unimplemented) PollAdd(Fd, Token, Interests) error { return errors.ErrInvalidArgument }
func (Unimplemented) PollSet(Fd, Token, Interests) error { return errors.ErrInvalidArgument }
func (Unimplemented) PollDel(Fd) error                   { return errors.ErrInvalidArgument }

// placeholder occupies a slot while it is reserved but not yet filled,
// and after its occupant has been released.
type placeholder struct {
	Unimplemented
}

// EventType is a descriptor lifecycle notification kind.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventDuplicated
	EventReleased
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventDuplicated:
		return "duplicated"
	case EventReleased:
		return "released"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event describes a descriptor lifecycle change. Err is set on
// EventClosed when the object's Close failed.
type Event struct {
	File File
	Err  error
	Fd   Fd
	Type EventType
}

// Observer receives descriptor lifecycle events. Observers are called
// outside the table's locks and may use the table.
type Observer interface {
	OnDescriptorEvent(Event)
}
