package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Buffer is a byte buffer whose capacity is fixed when it is created.
// Appends that would grow past the capacity fail and leave it unchanged.
type Buffer struct {
	b []byte
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

func (b *Buffer) Append(p ...byte) error {
	if len(b.b)+len(p) > cap(b.b) {
		return fmt.Errorf("%w: %d + %d bytes > capacity %d", ErrBufferFull, len(b.b), len(p), cap(b.b))
	}
	b.b = append(b.b, p...)
	return nil
}

// AppendUint16 appends v little-endian, the byte order of every multi-byte
// 802.15.4 field.
func (b *Buffer) AppendUint16(v uint16) error {
	return b.Append(binary.LittleEndian.AppendUint16(nil, v)...)
}

func (b *Buffer) Len() int { return len(b.b) }
func (b *Buffer) Cap() int { return cap(b.b) }

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	return bytes.Clone(b.b)
}

func (b *Buffer) Reset() {
	b.b = b.b[:0]
}
