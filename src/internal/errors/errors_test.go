package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureStack(t *testing.T) {
	base := stderrors.New("no stack")
	withStack := EnsureStack(base)
	require.True(t, Is(withStack, base))
	require.NotEqual(t, base, withStack)

	// A second EnsureStack must not wrap again.
	again := EnsureStack(withStack)
	require.Equal(t, withStack, again)

	require.NoError(t, EnsureStack(nil))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "nothing"))
	require.NoError(t, Wrapf(nil, "nothing %d", 42))
}

func TestJoinInto(t *testing.T) {
	var err error
	JoinInto(&err, nil)
	require.NoError(t, err)

	JoinInto(&err, New("first"))
	require.Error(t, err)
	JoinInto(&err, New("second"))
	require.Contains(t, err.Error(), "first")
	require.Contains(t, err.Error(), "second")
}

type failingCloser struct{}

func (failingCloser) Close() error { return stderrors.New("close failed") }

func TestClose(t *testing.T) {
	run := func() (retErr error) {
		defer Close(&retErr, failingCloser{}, "closing %s", "thing")
		return nil
	}
	err := run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "closing thing")
	require.Contains(t, err.Error(), "close failed")
}

func TestForEachStackFrame(t *testing.T) {
	var n int
	ForEachStackFrame(Wrap(New("inner"), "outer"), func(fmt.Formatter) { n++ })
	require.Greater(t, n, 0)

	n = 0
	ForEachStackFrame(io.EOF, func(fmt.Formatter) { n++ })
	require.Equal(t, 0, n)
}
