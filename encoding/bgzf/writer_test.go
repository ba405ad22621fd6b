package bgzf

import (
	"bytes"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"testing"

	biogobgzf "github.com/biogo/hts/bgzf"
	"github.com/grailbio/base/grail"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	// Create random bytes.
	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		t.Logf("length: %d", length)
		for _, blockSize := range []int{DefaultUncompressedBlockSize, 0x0ff05, 1000} {
			input := make([]byte, length)
			n, err := rand.Read(input)
			require.Nil(t, err)
			assert.Equal(t, length, n)

			var buf bytes.Buffer
			w, err := NewWriterBlockSize(&buf, 1, blockSize)
			require.Nil(t, err)
			n, err = w.Write(input)
			assert.Nil(t, err)
			assert.Equal(t, length, n)
			err = w.Close()
			assert.Nil(t, err)

			r, err := gzip.NewReader(&buf)
			require.Nil(t, err)
			actual, err := ioutil.ReadAll(r)
			require.Nil(t, err)
			assert.Equal(t, length, len(actual))
			assert.Equal(t, 0, bytes.Compare(input, actual))
		}
	}
}

func TestBadBlockSize(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriterBlockSize(&buf, 1, 0)
	assert.Error(t, err)
	_, err = NewWriterBlockSize(&buf, 1, MaxUncompressedBlockSize+1)
	assert.Error(t, err)
}

func TestVOffset(t *testing.T) {
	// Set bgzf block size to 5.
	var buf bytes.Buffer
	w, err := NewWriterBlockSize(&buf, 1, 5)
	require.Nil(t, err)

	// Write 4 bytes, should not cause block completion, so voffset should be (0, 4)
	_, err = w.Write([]byte("ABCD"))
	require.Nil(t, err)
	assert.Equal(t, uint64(4), w.VOffset())

	// Write 1 byte, should cause block completion, so voffset should be (non-zero, 0)
	_, err = w.Write([]byte("E"))
	require.Nil(t, err)
	voffset1 := w.VOffset()
	assert.Equal(t, uint64(0), voffset1&uint64(0xffff))
	assert.NotEqual(t, uint64(0), voffset1>>16)

	// Write 1 byte, should not cause block completion.  Coffset
	// should be the same, and uoffset should be 1.
	_, err = w.Write([]byte("F"))
	require.Nil(t, err)
	voffset2 := w.VOffset()
	assert.Equal(t, uint64(1), voffset2&uint64(0xffff))
	assert.Equal(t, voffset1>>16, voffset2>>16)

	// Flush ends the block early.
	require.NoError(t, w.Flush())
	voffset3 := w.VOffset()
	assert.Equal(t, uint64(0), voffset3&uint64(0xffff))
	assert.True(t, voffset3>>16 > voffset2>>16)
	require.NoError(t, w.Close())
}

// The virtual offsets reported while writing must be seekable with a
// standard bgzf reader.
func TestVOffsetSeek(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriterBlockSize(&buf, 1, 7)
	require.NoError(t, err)
	lines := []string{"chr1\t1\n", "chr1\t2\n", "chr1\t3\n", "chr2\t10\n"}
	offsets := make([]uint64, len(lines))
	for i, line := range lines {
		offsets[i] = w.VOffset()
		_, err = w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r, err := biogobgzf.NewReader(bytes.NewReader(buf.Bytes()), 1)
	require.NoError(t, err)
	for i := len(lines) - 1; i >= 0; i-- {
		off := offsets[i]
		require.NoError(t, r.Seek(biogobgzf.Offset{File: int64(off >> 16), Block: uint16(off)}))
		got := make([]byte, len(lines[i]))
		_, err := io.ReadFull(r, got)
		require.NoError(t, err)
		assert.Equal(t, lines[i], string(got))
	}
	require.NoError(t, r.Close())
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
