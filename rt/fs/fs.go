package fs

import (
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

// FS serves the filesystem entries from a directory sandbox. Paths are
// virtual: "/" is the sandbox root and relative paths resolve against
// the process working directory.
type FS struct {
	root  *os.Root
	table *posix.Table
	cwd   string
	mu    sync.RWMutex
}

// New opens dir as the sandbox root. Handles are allocated from table.
func New(dir string, table *posix.Table) (*FS, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFS, errors.KindNotFound, err, "open sandbox root "+dir)
	}
	Logger().Debug("filesystem sandbox opened", zap.String("dir", dir))
	return &FS{root: root, table: table, cwd: "/"}, nil
}

// Root returns the host directory backing the sandbox.
func (s *FS) Root() string {
	return s.root.Name()
}

// Shutdown closes the sandbox. Open handles stay usable until closed.
func (s *FS) Shutdown() error {
	return s.root.Close()
}

// abs returns the cleaned virtual absolute form of p.
func (s *FS) abs(op, p string) (string, error) {
	if p == "" || strings.IndexByte(p, 0) >= 0 {
		return "", fsError(errors.KindInvalidFilename, op, p, "invalid path")
	}
	if path.IsAbs(p) {
		return path.Clean(p), nil
	}
	s.mu.RLock()
	cwd := s.cwd
	s.mu.RUnlock()
	return path.Join(cwd, p), nil
}

// rel converts a virtual absolute path to the form os.Root expects.
func rel(abs string) string {
	r := strings.TrimPrefix(abs, "/")
	if r == "" {
		return "."
	}
	return r
}

func (s *FS) resolve(op, p string) (virtual, name string, err error) {
	virtual, err = s.abs(op, p)
	if err != nil {
		return "", "", err
	}
	return virtual, rel(virtual), nil
}

func openFlags(opts abi.OpenOptions) int {
	var flags int
	switch {
	case opts.Has(abi.OpenRead) && (opts.Has(abi.OpenWrite) || opts.Has(abi.OpenAppend)):
		flags = os.O_RDWR
	case opts.Has(abi.OpenWrite) || opts.Has(abi.OpenAppend):
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if opts.Has(abi.OpenAppend) {
		flags |= os.O_APPEND
	}
	if opts.Has(abi.OpenTruncate) {
		flags |= os.O_TRUNC
	}
	if opts.Has(abi.OpenCreate) {
		flags |= os.O_CREATE
	}
	if opts.Has(abi.OpenCreateNew) {
		flags |= os.O_CREATE | os.O_EXCL
	}
	return flags
}

func (s *FS) push(op, virtual string, occupant posix.File) (posix.Fd, error) {
	fd, err := s.table.Push(occupant)
	if err != nil {
		_ = occupant.Close()
		return posix.InvalidFd, err
	}
	Logger().Debug("handle opened",
		zap.String("op", op),
		zap.String("path", virtual),
		zap.Int32("fd", int32(fd)))
	return fd, nil
}

// Open opens a regular file. Directories are refused; use Opendir.
func (s *FS) Open(p string, opts abi.OpenOptions) (posix.Fd, error) {
	virtual, name, err := s.resolve("open", p)
	if err != nil {
		return posix.InvalidFd, err
	}
	f, err := s.root.OpenFile(name, openFlags(opts), 0o644)
	if err != nil {
		return posix.InvalidFd, mapOSError("open", virtual, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return posix.InvalidFd, mapOSError("open", virtual, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return posix.InvalidFd, fsError(errors.KindIsDirectory, "open", virtual, "is a directory")
	}
	return s.push("open", virtual, &File{f: f, path: virtual})
}

// Close releases any handle.
func (s *FS) Close(fd posix.Fd) error {
	return s.table.Close(fd)
}

func (s *FS) file(op string, fd posix.Fd) (*File, error) {
	occupant, ok := s.table.Lookup(fd)
	if !ok {
		return nil, errors.BadHandle(errors.PhaseFS, fd)
	}
	switch f := occupant.(type) {
	case *File:
		return f, nil
	case *Dir:
		return nil, fsError(errors.KindIsDirectory, op, f.path, "handle is a directory")
	default:
		return nil, errors.BadHandle(errors.PhaseFS, fd)
	}
}

// GetAttr describes the object behind a file or directory handle.
func (s *FS) GetAttr(fd posix.Fd) (abi.FileAttr, error) {
	occupant, ok := s.table.Lookup(fd)
	if !ok {
		return abi.FileAttr{}, errors.BadHandle(errors.PhaseFS, fd)
	}
	switch f := occupant.(type) {
	case *File:
		return f.stat()
	case *Dir:
		return f.stat()
	default:
		return abi.FileAttr{}, errors.BadHandle(errors.PhaseFS, fd)
	}
}

// Fsync flushes file data and metadata to storage.
func (s *FS) Fsync(fd posix.Fd) error {
	f, err := s.file("fsync", fd)
	if err != nil {
		return err
	}
	return f.sync()
}

// Datasync flushes file data to storage.
func (s *FS) Datasync(fd posix.Fd) error {
	f, err := s.file("datasync", fd)
	if err != nil {
		return err
	}
	return f.datasync()
}

// Truncate resizes a file.
func (s *FS) Truncate(fd posix.Fd, size uint64) error {
	f, err := s.file("truncate", fd)
	if err != nil {
		return err
	}
	return f.truncate(size)
}

// Read reads from any readable handle.
func (s *FS) Read(fd posix.Fd, buf []byte) (int, error) {
	return s.table.Read(fd, buf)
}

// Write writes to any writable handle.
func (s *FS) Write(fd posix.Fd, buf []byte) (int, error) {
	return s.table.Write(fd, buf)
}

// Seek moves a file's offset and returns the new position.
func (s *FS) Seek(fd posix.Fd, offset int64, whence abi.Whence) (int64, error) {
	f, err := s.file("seek", fd)
	if err != nil {
		return 0, err
	}
	return f.seek(offset, whence)
}

// Mkdir creates a directory.
func (s *FS) Mkdir(p string) error {
	virtual, name, err := s.resolve("mkdir", p)
	if err != nil {
		return err
	}
	return mapOSError("mkdir", virtual, s.root.Mkdir(name, 0o755))
}

// Unlink removes a file. Directories are refused.
func (s *FS) Unlink(p string) error {
	virtual, name, err := s.resolve("unlink", p)
	if err != nil {
		return err
	}
	info, err := s.root.Lstat(name)
	if err != nil {
		return mapOSError("unlink", virtual, err)
	}
	if info.IsDir() {
		return fsError(errors.KindIsDirectory, "unlink", virtual, "is a directory")
	}
	return mapOSError("unlink", virtual, s.root.Remove(name))
}

// Rename moves oldPath to newPath, replacing a file at newPath.
func (s *FS) Rename(oldPath, newPath string) error {
	from, fromName, err := s.resolve("rename", oldPath)
	if err != nil {
		return err
	}
	_, toName, err := s.resolve("rename", newPath)
	if err != nil {
		return err
	}
	return mapOSError("rename", from, s.root.Rename(fromName, toName))
}

// Rmdir removes an empty directory.
func (s *FS) Rmdir(p string) error {
	virtual, name, err := s.resolve("rmdir", p)
	if err != nil {
		return err
	}
	if name == "." {
		return fsError(errors.KindNotAllowed, "rmdir", virtual, "cannot remove the root")
	}
	info, err := s.root.Lstat(name)
	if err != nil {
		return mapOSError("rmdir", virtual, err)
	}
	if !info.IsDir() {
		return fsError(errors.KindNotDirectory, "rmdir", virtual, "not a directory")
	}
	return mapOSError("rmdir", virtual, s.root.Remove(name))
}

// RmdirAll removes a directory tree.
func (s *FS) RmdirAll(p string) error {
	virtual, name, err := s.resolve("rmdir_all", p)
	if err != nil {
		return err
	}
	if name == "." {
		return fsError(errors.KindNotAllowed, "rmdir_all", virtual, "cannot remove the root")
	}
	info, err := s.root.Lstat(name)
	if err != nil {
		return mapOSError("rmdir_all", virtual, err)
	}
	if !info.IsDir() {
		return fsError(errors.KindNotDirectory, "rmdir_all", virtual, "not a directory")
	}
	return mapOSError("rmdir_all", virtual, s.root.RemoveAll(name))
}

// SetPerm changes permission bits.
func (s *FS) SetPerm(p string, perm uint32) error {
	virtual, name, err := s.resolve("set_perm", p)
	if err != nil {
		return err
	}
	return mapOSError("set_perm", virtual, s.root.Chmod(name, os.FileMode(perm&0o7777)))
}

// Stat describes the object at p, following symlinks.
func (s *FS) Stat(p string) (abi.FileAttr, error) {
	virtual, name, err := s.resolve("stat", p)
	if err != nil {
		return abi.FileAttr{}, err
	}
	info, err := s.root.Stat(name)
	if err != nil {
		return abi.FileAttr{}, mapOSError("stat", virtual, err)
	}
	return attrOf(info), nil
}

// Canonicalize returns the absolute virtual path of an existing object.
func (s *FS) Canonicalize(p string) (string, error) {
	virtual, name, err := s.resolve("canonicalize", p)
	if err != nil {
		return "", err
	}
	if _, err := s.root.Stat(name); err != nil {
		return "", mapOSError("canonicalize", virtual, err)
	}
	return virtual, nil
}

// Copy copies the contents and permissions of a file and returns the
// number of bytes copied.
func (s *FS) Copy(from, to string) (uint64, error) {
	src, srcName, err := s.resolve("copy", from)
	if err != nil {
		return 0, err
	}
	dst, dstName, err := s.resolve("copy", to)
	if err != nil {
		return 0, err
	}

	in, err := s.root.Open(srcName)
	if err != nil {
		return 0, mapOSError("copy", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, mapOSError("copy", src, err)
	}
	if info.IsDir() {
		return 0, fsError(errors.KindIsDirectory, "copy", src, "is a directory")
	}

	out, err := s.root.OpenFile(dstName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, mapOSError("copy", dst, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return uint64(n), mapOSError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return uint64(n), mapOSError("copy", dst, err)
	}
	if err := s.root.Chmod(dstName, info.Mode().Perm()); err != nil {
		return uint64(n), mapOSError("copy", dst, err)
	}
	return uint64(n), nil
}

// Opendir opens a directory stream.
func (s *FS) Opendir(p string) (posix.Fd, error) {
	virtual, name, err := s.resolve("opendir", p)
	if err != nil {
		return posix.InvalidFd, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		return posix.InvalidFd, mapOSError("opendir", virtual, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return posix.InvalidFd, mapOSError("opendir", virtual, err)
	}
	if !info.IsDir() {
		_ = f.Close()
		return posix.InvalidFd, fsError(errors.KindNotDirectory, "opendir", virtual, "not a directory")
	}
	return s.push("opendir", virtual, &Dir{f: f, path: virtual})
}

func (s *FS) dir(op string, fd posix.Fd) (*Dir, error) {
	occupant, ok := s.table.Lookup(fd)
	if !ok {
		return nil, errors.BadHandle(errors.PhaseFS, fd)
	}
	return asDir(op, fd, occupant)
}

func asDir(op string, fd posix.Fd, occupant posix.File) (*Dir, error) {
	switch d := occupant.(type) {
	case *Dir:
		return d, nil
	case *File:
		return nil, fsError(errors.KindNotDirectory, op, d.path, "handle is not a directory")
	default:
		return nil, errors.BadHandle(errors.PhaseFS, fd)
	}
}

// Closedir releases a directory handle. The occupant is checked under
// the table's slot lock, so a handle reused by a file is left open.
func (s *FS) Closedir(fd posix.Fd) error {
	_, err := s.table.ReleaseIf(fd, func(f posix.File) error {
		_, err := asDir("closedir", fd, f)
		return err
	})
	return err
}

// Readdir returns the next entry of a directory stream, or nil once the
// stream is exhausted. "." and ".." are never reported.
func (s *FS) Readdir(fd posix.Fd) (*abi.DirEntry, error) {
	d, err := s.dir("readdir", fd)
	if err != nil {
		return nil, err
	}
	return d.next()
}

// Getcwd returns the virtual working directory.
func (s *FS) Getcwd() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd, nil
}

// Chdir changes the virtual working directory.
func (s *FS) Chdir(p string) error {
	virtual, name, err := s.resolve("chdir", p)
	if err != nil {
		return err
	}
	info, err := s.root.Stat(name)
	if err != nil {
		return mapOSError("chdir", virtual, err)
	}
	if !info.IsDir() {
		return fsError(errors.KindNotDirectory, "chdir", virtual, "not a directory")
	}
	s.mu.Lock()
	s.cwd = virtual
	s.mu.Unlock()
	return nil
}
