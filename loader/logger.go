package loader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/guest"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/alloc"
	"github.com/wippyai/motor-rt/rt/fs"
	"github.com/wippyai/motor-rt/rt/thread"
	"github.com/wippyai/motor-rt/rt/tls"
	"github.com/wippyai/motor-rt/vdso"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the loader package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the loader's logger and hands a named child to
// every runtime package. Call it before Load.
func SetLogger(l *zap.Logger) {
	logger = l
	abi.SetLogger(l.Named("abi"))
	posix.SetLogger(l.Named("posix"))
	vdso.SetLogger(l.Named("vdso"))
	guest.SetLogger(l.Named("guest"))
	alloc.SetLogger(l.Named("alloc"))
	thread.SetLogger(l.Named("thread"))
	tls.SetLogger(l.Named("tls"))
	fs.SetLogger(l.Named("fs"))
}
