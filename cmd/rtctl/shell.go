package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/fs"
	"github.com/wippyai/motor-rt/rt/stdio"
)

const shellHelp = `open PATH [rwatcx]  open a file (read, write, append, truncate, create, create-new)
read FD N           read up to N bytes
write FD TEXT       write TEXT
dup FD              duplicate a handle
close FD            close a handle
flush FD            flush a handle
stat PATH           describe a path
ls [PATH]           list a directory
mkdir PATH          create a directory
rm PATH             remove a file or empty directory
cd PATH             change directory
pwd                 print working directory
quit                leave the shell`

// shell runs descriptor commands against an installed slot record.
type shell struct {
	slots *abi.Slots
	table *posix.Table
}

type descriptor struct {
	what string
	fd   posix.Fd
}

// descriptors lists the occupied handles in order.
func (sh *shell) descriptors() []descriptor {
	var out []descriptor
	sh.table.Each(func(fd posix.Fd, f posix.File) bool {
		out = append(out, descriptor{fd: fd, what: describe(f)})
		return true
	})
	return out
}

func describe(f posix.File) string {
	switch v := f.(type) {
	case *fs.File:
		return "file " + v.Path()
	case *fs.Dir:
		return "dir  " + v.Path()
	case *stdio.Input:
		return "stdin"
	case *stdio.Output:
		return v.Name()
	default:
		return fmt.Sprintf("%T", f)
	}
}

func parseFd(s string) (posix.Fd, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return posix.InvalidFd, errors.InvalidInput(errors.PhaseDescriptor, "bad handle number "+strconv.Quote(s))
	}
	return posix.Fd(n), nil
}

func parseOpenFlags(s string) (abi.OpenOptions, error) {
	var opts abi.OpenOptions
	for _, c := range s {
		switch c {
		case 'r':
			opts |= abi.OpenRead
		case 'w':
			opts |= abi.OpenWrite
		case 'a':
			opts |= abi.OpenAppend
		case 't':
			opts |= abi.OpenTruncate
		case 'c':
			opts |= abi.OpenCreate
		case 'x':
			opts |= abi.OpenCreateNew
		default:
			return 0, errors.InvalidInput(errors.PhaseFS, fmt.Sprintf("unknown open flag %q", c))
		}
	}
	return opts, nil
}

func usage(cmd string) error {
	return errors.InvalidInput(errors.PhaseDescriptor, "usage: "+cmd)
}

// exec runs one command line and returns its output.
func (sh *shell) exec(line string) (string, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	s := sh.slots

	switch cmd {
	case "":
		return "", nil

	case "help":
		return shellHelp, nil

	case "open":
		if len(args) < 1 || len(args) > 2 {
			return "", usage("open PATH [rwatcx]")
		}
		flags := "r"
		if len(args) == 2 {
			flags = args[1]
		}
		opts, err := parseOpenFlags(flags)
		if err != nil {
			return "", err
		}
		fd, err := s.FsOpen(args[0], opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("fd %d", fd), nil

	case "read":
		if len(args) != 2 {
			return "", usage("read FD N")
		}
		fd, err := parseFd(args[0])
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return "", usage("read FD N")
		}
		buf := make([]byte, n)
		got, err := s.FsRead(fd, buf)
		if err != nil {
			return "", err
		}
		return strconv.Quote(string(buf[:got])), nil

	case "write":
		fdStr, text, ok := strings.Cut(rest, " ")
		if !ok {
			return "", usage("write FD TEXT")
		}
		fd, err := parseFd(fdStr)
		if err != nil {
			return "", err
		}
		n, err := s.FsWrite(fd, []byte(text))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("wrote %d bytes", n), nil

	case "dup", "close", "flush":
		if len(args) != 1 {
			return "", usage(cmd + " FD")
		}
		fd, err := parseFd(args[0])
		if err != nil {
			return "", err
		}
		switch cmd {
		case "dup":
			dup, err := s.PosixDuplicate(fd)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fd %d", dup), nil
		case "close":
			return "", s.FsClose(fd)
		default:
			return "", s.PosixFlush(fd)
		}

	case "stat":
		if len(args) != 1 {
			return "", usage("stat PATH")
		}
		attr, err := s.FsStat(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s size=%d perm=%04o", attr.Type, attr.Size, attr.Perm), nil

	case "ls":
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return sh.list(dir)

	case "mkdir", "rm", "cd":
		if len(args) != 1 {
			return "", usage(cmd + " PATH")
		}
		switch cmd {
		case "mkdir":
			return "", s.FsMkdir(args[0])
		case "cd":
			return "", s.FsChdir(args[0])
		default:
			err := s.FsUnlink(args[0])
			if errors.CodeOf(err) == errors.CodeIsADirectory {
				err = s.FsRmdir(args[0])
			}
			return "", err
		}

	case "pwd":
		return s.FsGetcwd()

	default:
		return "", errors.Unsupported(errors.PhaseDescriptor, "unknown command "+strconv.Quote(cmd))
	}
}

func (sh *shell) list(dir string) (string, error) {
	s := sh.slots
	fd, err := s.FsOpendir(dir)
	if err != nil {
		return "", err
	}
	defer s.FsClosedir(fd)

	var entries []*abi.DirEntry
	for {
		e, err := s.FsReaddir(fd)
		if err != nil {
			return "", err
		}
		if e == nil {
			break
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.Attr.Type == abi.FileTypeDir {
			name += "/"
		}
		lines = append(lines, fmt.Sprintf("%-8s %8d  %s", e.Attr.Type, e.Attr.Size, name))
	}
	return strings.Join(lines, "\n"), nil
}
