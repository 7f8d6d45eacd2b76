package recorder

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameProducesExpectedHeaderAndFrameRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	w, err := New(path, 4, 2, 30)
	require.NoError(t, err)

	frame := make([]byte, 4*2*3/2)
	for i := range frame {
		frame[i] = byte(i)
	}

	require.NoError(t, w.WriteFrame(frame))
	require.NoError(t, w.WriteFrame(frame))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r := bufio.NewReader(strings.NewReader(string(data)))
	headerLine, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "YUV4MPEG2 W4 H2 F30:1 Ip A128:117\n", headerLine)

	frameMarker, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "FRAME\n", frameMarker)
}

func TestWriteFrameRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	w, err := New(path, 4, 2, 30)
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteFrame([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNoHeaderWrittenBeforeFirstFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	w, err := New(path, 4, 2, 30)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteFrameAfterCloseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	w, err := New(path, 4, 2, 30)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	frame := make([]byte, 4*2*3/2)
	err = w.WriteFrame(frame)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	w, err := New(path, 4, 2, 30)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
