package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the numeric error code carried across the dispatch table ABI.
// Zero means success; handle-returning entries encode failures as the
// negated code.
type Code uint16

const (
	CodeOK              Code = 0
	CodeUnspecified     Code = 1
	CodeUnknown         Code = 2
	CodeNotReady        Code = 3
	CodeNotImplemented  Code = 4
	CodeVersionTooHigh  Code = 5
	CodeVersionTooLow   Code = 6
	CodeInvalidArgument Code = 7
	CodeOutOfMemory     Code = 8
	CodeNotAllowed      Code = 9
	CodeNotFound        Code = 10
	CodeInternalError   Code = 11
	CodeTimedOut        Code = 12
	CodeAlreadyInUse    Code = 13
	CodeUnexpectedEOF   Code = 14
	CodeInvalidFilename Code = 15
	CodeNotADirectory   Code = 16
	CodeBadHandle       Code = 17
	CodeFileTooLarge    Code = 18
	CodeIsADirectory    Code = 19
	CodeNotEmpty        Code = 20
)

var codeNames = map[Code]string{
	CodeOK:              "ok",
	CodeUnspecified:     "unspecified",
	CodeUnknown:         "unknown",
	CodeNotReady:        "not ready",
	CodeNotImplemented:  "not implemented",
	CodeVersionTooHigh:  "version too high",
	CodeVersionTooLow:   "version too low",
	CodeInvalidArgument: "invalid argument",
	CodeOutOfMemory:     "out of memory",
	CodeNotAllowed:      "not allowed",
	CodeNotFound:        "not found",
	CodeInternalError:   "internal error",
	CodeTimedOut:        "timed out",
	CodeAlreadyInUse:    "already in use",
	CodeUnexpectedEOF:   "unexpected eof",
	CodeInvalidFilename: "invalid filename",
	CodeNotADirectory:   "not a directory",
	CodeBadHandle:       "bad handle",
	CodeFileTooLarge:    "file too large",
	CodeIsADirectory:    "is a directory",
	CodeNotEmpty:        "directory not empty",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

func codeForKind(k Kind) Code {
	switch k {
	case KindVersionMismatch:
		return CodeVersionTooHigh
	case KindNotInitialized:
		return CodeNotReady
	case KindAlreadyInstalled, KindExists:
		return CodeAlreadyInUse
	case KindBadHandle:
		return CodeBadHandle
	case KindInvalidInput:
		return CodeInvalidArgument
	case KindNotFound:
		return CodeNotFound
	case KindUnsupported:
		return CodeNotImplemented
	case KindAllocation:
		return CodeOutOfMemory
	case KindNotAllowed, KindTamper:
		return CodeNotAllowed
	case KindNotDirectory:
		return CodeNotADirectory
	case KindIsDirectory:
		return CodeIsADirectory
	case KindNotEmpty:
		return CodeNotEmpty
	case KindInvalidFilename:
		return CodeInvalidFilename
	case KindFileTooLarge:
		return CodeFileTooLarge
	case KindTimedOut:
		return CodeTimedOut
	case KindUnexpectedEOF:
		return CodeUnexpectedEOF
	case KindInternal:
		return CodeInternalError
	case KindIO:
		return CodeUnspecified
	default:
		return CodeUnknown
	}
}

// CodeOf extracts the ABI code from any error. nil maps to CodeOK and
// errors outside this package map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var coder interface{ Code() Code }
	if stderrors.As(err, &coder) {
		return coder.Code()
	}
	return CodeUnknown
}

// Negative encodes err as the negated code used by handle- and
// size-returning entries. nil encodes as 0.
func Negative(err error) int64 {
	return -int64(CodeOf(err))
}
