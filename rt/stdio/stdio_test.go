package stdio

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/posix"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, stderrors.New("pipe closed") }

func TestStreams_Install(t *testing.T) {
	table := posix.NewTable()
	var out, errOut bytes.Buffer
	s := Streams{
		In:  NewInput(strings.NewReader("input")),
		Out: NewOutput("stdout", &out, 64),
		Err: NewOutput("stderr", &errOut, -1),
	}
	require.NoError(t, s.Install(table))
	assert.Equal(t, 3, table.Len())

	buf := make([]byte, 16)
	n, err := table.Read(Stdin, buf)
	require.NoError(t, err)
	assert.Equal(t, "input", string(buf[:n]))

	n, err = table.Read(Stdin, buf)
	require.NoError(t, err)
	assert.Zero(t, n, "end of input reads as zero bytes")

	_, err = table.Write(Stdout, []byte("buffered"))
	require.NoError(t, err)
	assert.Empty(t, out.String())
	require.NoError(t, table.Flush(Stdout))
	assert.Equal(t, "buffered", out.String())

	_, err = table.Write(Stderr, []byte("now"))
	require.NoError(t, err)
	assert.Equal(t, "now", errOut.String())

	_, err = table.Write(Stdin, []byte("x"))
	assert.ErrorIs(t, err, errors.ErrBadHandle)
	_, err = table.Read(Stdout, buf)
	assert.ErrorIs(t, err, errors.ErrBadHandle)
}

func TestStreams_InstallNeedsEmptyTable(t *testing.T) {
	table := posix.NewTable()
	_, err := table.Push(NewInput(strings.NewReader("")))
	require.NoError(t, err)

	s := Streams{
		In:  NewInput(strings.NewReader("")),
		Out: NewOutput("stdout", &bytes.Buffer{}, 0),
		Err: NewOutput("stderr", &bytes.Buffer{}, 0),
	}
	assert.Error(t, s.Install(table))
}

func TestStreams_InstallReleasesOnFailure(t *testing.T) {
	table := posix.NewTable()
	first, err := table.Push(NewInput(strings.NewReader("")))
	require.NoError(t, err)
	held := NewInput(strings.NewReader(""))
	_, err = table.Push(held)
	require.NoError(t, err)
	_, err = table.Release(first)
	require.NoError(t, err)

	s := Streams{
		In:  NewInput(strings.NewReader("")),
		Out: NewOutput("stdout", &bytes.Buffer{}, 0),
		Err: NewOutput("stderr", &bytes.Buffer{}, 0),
	}
	require.Error(t, s.Install(table))

	assert.Equal(t, 1, table.Len(), "only the pre-existing handle remains")
	_, ok := table.Lookup(Stdin)
	assert.False(t, ok, "stdin placed at 0 was released")
	got, ok := table.Lookup(Stdout)
	require.True(t, ok)
	assert.Same(t, held, got)
}

func TestOutput_CloseFlushes(t *testing.T) {
	var out bytes.Buffer
	o := NewOutput("stdout", &out, 64)
	_, err := o.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, o.Close())
	assert.Equal(t, "tail", out.String())
}

func TestOutput_FlushError(t *testing.T) {
	o := NewOutput("stdout", failingWriter{}, 64)
	_, err := o.Write([]byte("lost"))
	require.NoError(t, err)

	err = o.Flush()
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnspecified, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "pipe closed")
}
