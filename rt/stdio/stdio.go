package stdio

import (
	"bufio"
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

// Standard handles.
const (
	Stdin  posix.Fd = 0
	Stdout posix.Fd = 1
	Stderr posix.Fd = 2
)

// Input is a read-only descriptor over a byte source.
type Input struct {
	posix.Unimplemented
	r  io.Reader
	mu sync.Mutex
}

// NewInput wraps r.
func NewInput(r io.Reader) *Input {
	return &Input{r: r}
}

func (in *Input) Read(buf []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	n, err := in.r.Read(buf)
	if stderrors.Is(err, io.EOF) {
		return n, nil
	}
	if err != nil {
		return n, errors.Wrap(errors.PhaseDescriptor, errors.KindIO, err, "stdin read")
	}
	return n, nil
}

// Close leaves the underlying reader open.
func (in *Input) Close() error { return nil }

// Output is a buffered write-only descriptor.
type Output struct {
	posix.Unimplemented
	w         *bufio.Writer
	name      string
	autoFlush bool
	mu        sync.Mutex
}

// NewOutput wraps w with a buffer of size bytes. A size of zero selects
// the bufio default and a negative size flushes after every write.
func NewOutput(name string, w io.Writer, size int) *Output {
	o := &Output{name: name, autoFlush: size < 0}
	if size <= 0 {
		size = 4096
	}
	o.w = bufio.NewWriterSize(w, size)
	return o
}

// Name returns the stream name given to NewOutput.
func (o *Output) Name() string { return o.name }

func (o *Output) Write(buf []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, err := o.w.Write(buf)
	if err == nil && o.autoFlush {
		err = o.w.Flush()
	}
	if err != nil {
		return n, errors.Wrap(errors.PhaseDescriptor, errors.KindIO, err, o.name+" write")
	}
	return n, nil
}

func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		return errors.Wrap(errors.PhaseDescriptor, errors.KindIO, err, o.name+" flush")
	}
	return nil
}

// Close flushes buffered bytes and leaves the underlying writer open.
func (o *Output) Close() error {
	return o.Flush()
}

// Streams bundles the three standard descriptors.
type Streams struct {
	In  *Input
	Out *Output
	Err *Output
}

// Process returns streams over the process's own standard files. Stderr
// is flushed on every write.
func Process(bufSize int) Streams {
	return Streams{
		In:  NewInput(os.Stdin),
		Out: NewOutput("stdout", os.Stdout, bufSize),
		Err: NewOutput("stderr", os.Stderr, -1),
	}
}

// Install places the streams at handles 0, 1 and 2 of an empty table.
// On failure every handle it pushed is released again.
func (s Streams) Install(table *posix.Table) error {
	want := []struct {
		file posix.File
		fd   posix.Fd
	}{
		{s.In, Stdin},
		{s.Out, Stdout},
		{s.Err, Stderr},
	}
	var pushed []posix.Fd
	undo := func() {
		for _, fd := range pushed {
			_, _ = table.Release(fd)
		}
	}
	for _, w := range want {
		fd, err := table.Push(w.file)
		if err != nil {
			undo()
			return err
		}
		pushed = append(pushed, fd)
		if fd != w.fd {
			undo()
			return errors.New(errors.PhaseLoad, errors.KindInternal).
				Detail("standard stream landed on handle %d, want %d", fd, w.fd).
				Build()
		}
	}
	return nil
}
