package logger

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 16)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Write([]byte("line\n")))
		}()
	}
	wg.Wait()
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, 10, bytes.Count(a.Bytes(), []byte("\n")))
	assert.Equal(t, a.String(), b.String())
}

func TestAsyncWriterAfterClose(t *testing.T) {
	w := newAsyncWriter([]io.Writer{&bytes.Buffer{}}, 0)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.NoError(t, w.Flush())
	assert.ErrorIs(t, w.Write([]byte("late")), errWriterClosed)
}

func TestAsyncWriterKeepsHealthySinks(t *testing.T) {
	good := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{failingWriter{}, good}, 0)
	require.NoError(t, w.Write([]byte("first\n")))
	err := w.Close()
	require.Error(t, err)
	assert.Equal(t, "first\n", good.String())
}
