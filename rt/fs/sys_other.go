//go:build !linux

package fs

import (
	iofs "io/fs"
	"os"
)

func datasync(f *os.File) error {
	return f.Sync()
}

func sysTimes(iofs.FileInfo) (accessed, created uint64) {
	return 0, 0
}
