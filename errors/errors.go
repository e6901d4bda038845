package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which runtime layer produced the error
type Phase string

const (
	PhaseInstall    Phase = "install"    // dispatch table installation
	PhaseDispatch   Phase = "dispatch"   // dispatch slot access
	PhaseDescriptor Phase = "descriptor" // descriptor table
	PhaseMemory     Phase = "memory"     // allocator entries
	PhaseTime       Phase = "time"       // clock entries
	PhaseFutex      Phase = "futex"      // futex entries
	PhaseTLS        Phase = "tls"        // thread-local storage
	PhaseThread     Phase = "thread"     // thread entries
	PhaseFS         Phase = "fs"         // filesystem entries
	PhaseLog        Phase = "log"        // kernel log relay
	PhaseGuest      Phase = "guest"      // wasm guest binding
	PhaseConfig     Phase = "config"     // configuration loading
	PhaseLoad       Phase = "load"       // process bootstrap
)

// Kind categorizes the error
type Kind string

const (
	KindVersionMismatch  Kind = "version_mismatch"
	KindTamper           Kind = "tamper"
	KindNotInitialized   Kind = "not_initialized"
	KindAlreadyInstalled Kind = "already_installed"
	KindBadHandle        Kind = "bad_handle"
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindUnsupported      Kind = "unsupported"
	KindAllocation       Kind = "allocation"
	KindNotAllowed       Kind = "not_allowed"
	KindExists           Kind = "exists"
	KindNotDirectory     Kind = "not_directory"
	KindIsDirectory      Kind = "is_directory"
	KindNotEmpty         Kind = "not_empty"
	KindInvalidFilename  Kind = "invalid_filename"
	KindFileTooLarge     Kind = "file_too_large"
	KindTimedOut         Kind = "timed_out"
	KindUnexpectedEOF    Kind = "unexpected_eof"
	KindIO               Kind = "io"
	KindInternal         Kind = "internal"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Kinds must match; the phase only has to match when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// Code returns the ABI error code for this error
func (e *Error) Code() Code {
	return codeForKind(e.Kind)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path the error refers to
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is comparisons. They carry no phase, so they
// match an error of the same kind raised anywhere.
var (
	ErrBadHandle       = &Error{Kind: KindBadHandle}
	ErrInvalidArgument = &Error{Kind: KindInvalidInput}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrNotInitialized  = &Error{Kind: KindNotInitialized}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrTimedOut        = &Error{Kind: KindTimedOut}
)

// BadHandle creates a bad handle error for an absent or never-allocated handle
func BadHandle(phase Phase, handle any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadHandle,
		Detail: fmt.Sprintf("bad handle %v", handle),
		Value:  handle,
	}
}

// VersionMismatch creates an ABI version mismatch error
func VersionMismatch(want, got uint64) *Error {
	return &Error{
		Phase:  PhaseInstall,
		Kind:   KindVersionMismatch,
		Detail: fmt.Sprintf("unsupported ABI version %d (want %d)", got, want),
		Value:  got,
	}
}

// Tamper creates an entry-address check failure
func Tamper(want, got uintptr) *Error {
	return &Error{
		Phase:  PhaseInstall,
		Kind:   KindTamper,
		Detail: fmt.Sprintf("entry slot holds %#x, install routine is at %#x", got, want),
		Value:  got,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Config creates a configuration error
func Config(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}
