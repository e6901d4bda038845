package fs

import (
	stderrors "errors"
	iofs "io/fs"
	"syscall"

	"github.com/wippyai/motor-rt/errors"
)

// mapOSError converts an os error to a runtime error carrying the ABI
// kind that best matches it.
func mapOSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	kind := errors.KindIO
	var errno syscall.Errno
	switch {
	case stderrors.As(err, &errno):
		kind = kindForErrno(errno)
	case stderrors.Is(err, iofs.ErrNotExist):
		kind = errors.KindNotFound
	case stderrors.Is(err, iofs.ErrPermission):
		kind = errors.KindNotAllowed
	case stderrors.Is(err, iofs.ErrExist):
		kind = errors.KindExists
	}
	return errors.New(errors.PhaseFS, kind).
		Path(path).
		Detail("%s", op).
		Cause(err).
		Build()
}

func kindForErrno(errno syscall.Errno) errors.Kind {
	switch errno {
	case syscall.EACCES, syscall.EPERM, syscall.EROFS:
		return errors.KindNotAllowed
	case syscall.ENOENT:
		return errors.KindNotFound
	case syscall.EEXIST:
		return errors.KindExists
	case syscall.ENOTDIR:
		return errors.KindNotDirectory
	case syscall.EISDIR:
		return errors.KindIsDirectory
	case syscall.ENOTEMPTY:
		return errors.KindNotEmpty
	case syscall.ENAMETOOLONG, syscall.ELOOP:
		return errors.KindInvalidFilename
	case syscall.EFBIG:
		return errors.KindFileTooLarge
	case syscall.EBADF:
		return errors.KindBadHandle
	case syscall.EINVAL:
		return errors.KindInvalidInput
	case syscall.ENOMEM:
		return errors.KindAllocation
	default:
		return errors.KindIO
	}
}

func fsError(kind errors.Kind, op, path, detail string) error {
	return errors.New(errors.PhaseFS, kind).
		Path(path).
		Detail("%s: %s", op, detail).
		Build()
}
