package linker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBufferFromFileMissing(t *testing.T) {
	_, err := NewByteBufferFromFile(filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read")
}

func TestByteBufferReserveAndClear(t *testing.T) {
	b := NewByteBuffer()
	b.AppendBytes([]byte{1, 2, 3})
	b.ReserveBytes(4)

	assert.Equal(t, uint32(7), b.Size())
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0}, b.Bytes())

	b.Clear()
	assert.Equal(t, uint32(0), b.Size())

	// reserved space after a clear is zeroed again
	b.ReserveBytes(3)
	assert.Equal(t, []byte{0, 0, 0}, b.Bytes())
}

func TestByteBufferMid(t *testing.T) {
	b := NewByteBufferFromBytes([]byte{10, 11, 12, 13, 14})

	assert.Equal(t, []byte{11, 12}, b.Mid(1, 2).Bytes())
	assert.Equal(t, []byte{13, 14}, b.Mid(3, 100).Bytes())
	assert.Equal(t, uint32(0), b.Mid(5, 1).Size())

	// the copy does not alias the source
	m := b.Mid(0, 2)
	m.Bytes()[0] = 99
	assert.Equal(t, byte(10), b.Bytes()[0])
}

func TestByteBufferDoubleWord(t *testing.T) {
	b := NewByteBufferFromBytes([]byte{0x78, 0x56, 0x34, 0x12, 0xFF})

	val, err := b.GetDoubleWord(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), val)

	_, err = b.GetDoubleWord(2)
	assert.Error(t, err)

	require.NoError(t, b.ReplaceDoubleWord(1, 0xAABBCCDD))
	assert.Equal(t, []byte{0x78, 0xDD, 0xCC, 0xBB, 0xAA}, b.Bytes())

	assert.Error(t, b.ReplaceDoubleWord(2, 0))
}

func TestByteBufferCopyAt(t *testing.T) {
	b := NewByteBuffer()
	b.ReserveBytes(4)

	require.NoError(t, b.CopyAt(1, []byte{7, 8}))
	assert.Equal(t, []byte{0, 7, 8, 0}, b.Bytes())

	assert.Error(t, b.CopyAt(3, []byte{1, 2}))
}
