package linker

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// ByteBuffer is an owning, growable byte sequence with aligned 32-bit
// little-endian access at arbitrary byte offsets.
type ByteBuffer struct {
	data []byte
}

func NewByteBuffer() *ByteBuffer {
	return &ByteBuffer{}
}

func NewByteBufferFromFile(path string) (*ByteBuffer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	return &ByteBuffer{data: content}, nil
}

func NewByteBufferFromBytes(content []byte) *ByteBuffer {
	data := make([]byte, len(content))
	copy(data, content)
	return &ByteBuffer{data: data}
}

func (b *ByteBuffer) Size() uint32 {
	return uint32(len(b.data))
}

func (b *ByteBuffer) Bytes() []byte {
	return b.data
}

func (b *ByteBuffer) AppendBytes(content []byte) {
	b.data = append(b.data, content...)
}

// ReserveBytes zero-extends the buffer by n bytes.
func (b *ByteBuffer) ReserveBytes(n uint32) {
	b.data = append(b.data, make([]byte, n)...)
}

// Clear truncates the buffer without releasing its storage.
func (b *ByteBuffer) Clear() {
	b.data = b.data[:0]
}

// Mid returns a copy of size bytes starting at pos. The range is clamped
// to the end of the buffer; an out-of-range pos yields an empty buffer.
func (b *ByteBuffer) Mid(pos, size uint32) *ByteBuffer {
	if pos >= uint32(len(b.data)) {
		return NewByteBuffer()
	}
	end := pos + size
	if end > uint32(len(b.data)) || end < pos {
		end = uint32(len(b.data))
	}
	return NewByteBufferFromBytes(b.data[pos:end])
}

func (b *ByteBuffer) GetDoubleWord(pos uint32) (uint32, error) {
	if pos+4 > uint32(len(b.data)) || pos+4 < pos {
		return 0, errors.Errorf("read of 4 bytes at %#x exceeds buffer size %#x", pos, len(b.data))
	}
	return binary.LittleEndian.Uint32(b.data[pos:]), nil
}

func (b *ByteBuffer) ReplaceDoubleWord(pos uint32, val uint32) error {
	if pos+4 > uint32(len(b.data)) || pos+4 < pos {
		return errors.Errorf("write of 4 bytes at %#x exceeds buffer size %#x", pos, len(b.data))
	}
	binary.LittleEndian.PutUint32(b.data[pos:], val)
	return nil
}

// CopyAt overwrites the buffer contents at pos with content. The target
// range must already exist.
func (b *ByteBuffer) CopyAt(pos uint32, content []byte) error {
	if pos+uint32(len(content)) > uint32(len(b.data)) {
		return errors.Errorf("copy of %d bytes at %#x exceeds buffer size %#x", len(content), pos, len(b.data))
	}
	copy(b.data[pos:], content)
	return nil
}
