package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseFS,
				Kind:   KindNotFound,
				Path:   []string{"var", "log", "x"},
				Detail: "open",
			},
			contains: []string{"[fs]", "not_found", "var/log/x", "open"},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseDescriptor, Kind: KindBadHandle},
			contains: []string{"[descriptor]", "bad_handle"},
		},
		{
			name:     "sentinel without phase",
			err:      ErrBadHandle,
			contains: []string{"bad_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseMemory,
				Kind:   KindAllocation,
				Detail: "heap exhausted",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[memory]", "allocation", "heap exhausted", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseFS, KindIO, cause, "write")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := BadHandle(PhaseDescriptor, 7)

	assert.True(t, errors.Is(err, ErrBadHandle), "phase-less sentinel matches any phase")
	assert.True(t, errors.Is(err, &Error{Phase: PhaseDescriptor, Kind: KindBadHandle}))
	assert.False(t, errors.Is(err, &Error{Phase: PhaseFS, Kind: KindBadHandle}))
	assert.False(t, errors.Is(err, ErrInvalidArgument))

	wrapped := fmt.Errorf("read: %w", err)
	assert.True(t, errors.Is(wrapped, ErrBadHandle))
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseFS, KindNotDirectory).
		Path("a", "b").
		Value(42).
		Cause(cause).
		Detail("expected %s", "directory").
		Build()

	assert.Equal(t, PhaseFS, err.Phase)
	assert.Equal(t, KindNotDirectory, err.Kind)
	assert.Equal(t, []string{"a", "b"}, err.Path)
	assert.Equal(t, 42, err.Value)
	assert.Equal(t, "expected directory", err.Detail)
	assert.Equal(t, cause, err.Cause)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, CodeOK},
		{ErrBadHandle, CodeBadHandle},
		{ErrInvalidArgument, CodeInvalidArgument},
		{BadHandle(PhaseFS, 3), CodeBadHandle},
		{NotFound(PhaseFS, "file", "x"), CodeNotFound},
		{AllocationFailed(PhaseMemory, "x"), CodeOutOfMemory},
		{VersionMismatch(1, 2), CodeVersionTooHigh},
		{Tamper(1, 2), CodeNotAllowed},
		{fmt.Errorf("wrapped: %w", ErrTimedOut), CodeTimedOut},
		{errors.New("foreign"), CodeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err), "error %v", tt.err)
	}
}

func TestNegative(t *testing.T) {
	require.Equal(t, int64(0), Negative(nil))
	require.Equal(t, -int64(CodeBadHandle), Negative(ErrBadHandle))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "bad handle", CodeBadHandle.String())
	assert.Equal(t, "code(999)", Code(999).String())
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"NotInitialized", NotInitialized(PhaseDispatch, "vtable"), PhaseDispatch, KindNotInitialized},
		{"InvalidInput", InvalidInput(PhaseThread, "bad name"), PhaseThread, KindInvalidInput},
		{"Unsupported", Unsupported(PhaseFS, "symlink"), PhaseFS, KindUnsupported},
		{"Config", Config("parse", nil), PhaseConfig, KindInvalidInput},
		{"VersionMismatch", VersionMismatch(1, 3), PhaseInstall, KindVersionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.phase, tt.err.Phase)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
