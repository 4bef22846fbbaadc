package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCountingWriter struct {
	bytes.Buffer
	flushes int
}

func (w *flushCountingWriter) Flush() {
	w.flushes++
}

func TestNewCSVStreamRequiresHeaders(t *testing.T) {
	_, err := NewCSVStream(&bytes.Buffer{}, nil, 0)
	assert.Error(t, err)
}

func TestCSVStreamEmitsBOMAndHeaderUpFront(t *testing.T) {
	var buf bytes.Buffer
	stream, err := NewCSVStream(&buf, []string{"a", "b"}, 0)
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	assert.Equal(t, "\xef\xbb\xbfa,b\n", buf.String())
}

func TestCSVStreamFlushesOnCadence(t *testing.T) {
	out := &flushCountingWriter{}
	stream, err := NewCSVStream(out, []string{"a"}, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, stream.Write([]string{"x"}))
	}
	// Rows 2 and 4 hit the cadence; the tail stays buffered until Close.
	assert.Equal(t, 2, out.flushes)

	require.NoError(t, stream.Close())
	assert.Equal(t, 3, out.flushes)

	lines := strings.Count(out.String(), "\n")
	assert.Equal(t, 6, lines)
}
