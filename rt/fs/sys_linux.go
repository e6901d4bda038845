//go:build linux

package fs

import (
	iofs "io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func datasync(f *os.File) error {
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}

// sysTimes returns access and status-change times in nanoseconds.
func sysTimes(info iofs.FileInfo) (accessed, created uint64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(st.Atim.Nano()), uint64(st.Ctim.Nano())
}
