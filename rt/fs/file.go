package fs

import (
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

// File is the descriptor variant for an open regular file.
type File struct {
	posix.Unimplemented
	f    *os.File
	path string
	mu   sync.Mutex
}

// Path returns the virtual path the file was opened with.
func (f *File) Path() string { return f.path }

func (f *File) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.f.Read(buf)
	if stderrors.Is(err, io.EOF) {
		return n, nil
	}
	return n, mapOSError("read", f.path, err)
}

func (f *File) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.f.Write(buf)
	return n, mapOSError("write", f.path, err)
}

// Flush succeeds immediately; writes are not buffered in process.
func (f *File) Flush() error { return nil }

func (f *File) Close() error {
	return mapOSError("close", f.path, f.f.Close())
}

func (f *File) stat() (abi.FileAttr, error) {
	info, err := f.f.Stat()
	if err != nil {
		return abi.FileAttr{}, mapOSError("get_attr", f.path, err)
	}
	return attrOf(info), nil
}

func (f *File) sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return mapOSError("fsync", f.path, f.f.Sync())
}

func (f *File) datasync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return mapOSError("datasync", f.path, datasync(f.f))
}

func (f *File) truncate(size uint64) error {
	if size > 1<<63-1 {
		return fsError(errors.KindFileTooLarge, "truncate", f.path, "size out of range")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return mapOSError("truncate", f.path, f.f.Truncate(int64(size)))
}

func (f *File) seek(offset int64, whence abi.Whence) (int64, error) {
	var w int
	switch whence {
	case abi.SeekStart:
		w = io.SeekStart
	case abi.SeekCurrent:
		w = io.SeekCurrent
	case abi.SeekEnd:
		w = io.SeekEnd
	default:
		return 0, fsError(errors.KindInvalidInput, "seek", f.path, "bad whence")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, err := f.f.Seek(offset, w)
	return pos, mapOSError("seek", f.path, err)
}

// Dir is the descriptor variant for an open directory stream.
type Dir struct {
	posix.Unimplemented
	f       *os.File
	path    string
	pending []os.DirEntry
	done    bool
	mu      sync.Mutex
}

// Path returns the virtual path the directory was opened with.
func (d *Dir) Path() string { return d.path }

func (d *Dir) Close() error {
	return mapOSError("closedir", d.path, d.f.Close())
}

const readdirBatch = 32

// next returns the following entry, or nil at the end of the stream.
func (d *Dir) next() (*abi.DirEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.pending) == 0 {
		if d.done {
			return nil, nil
		}
		entries, err := d.f.ReadDir(readdirBatch)
		if stderrors.Is(err, io.EOF) || (err == nil && len(entries) == 0) {
			d.done = true
			continue
		}
		if err != nil {
			return nil, mapOSError("readdir", d.path, err)
		}
		d.pending = entries
	}

	e := d.pending[0]
	d.pending = d.pending[1:]

	entry := &abi.DirEntry{Name: e.Name()}
	if info, err := e.Info(); err == nil {
		entry.Attr = attrOf(info)
	} else {
		entry.Attr.Type = typeOf(e.Type())
	}
	return entry, nil
}

func (d *Dir) stat() (abi.FileAttr, error) {
	info, err := d.f.Stat()
	if err != nil {
		return abi.FileAttr{}, mapOSError("get_attr", d.path, err)
	}
	return attrOf(info), nil
}
