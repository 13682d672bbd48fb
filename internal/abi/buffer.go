package abi

// Buffer is a length-prefixed, non-terminated view over bytes.
//
// The zero Buffer is empty and valid.
type Buffer struct {
	data []byte
}

// NewBuffer copies s into a new Buffer.
func NewBuffer(s string) Buffer {
	return Buffer{data: []byte(s)}
}

// CopyBuffer copies b into a new Buffer. The caller may reuse b afterwards.
func CopyBuffer(b []byte) Buffer {
	if len(b) == 0 {
		return Buffer{}
	}
	dup := make([]byte, len(b))
	copy(dup, b)
	return Buffer{data: dup}
}

// BorrowBuffer wraps b without copying. The caller must keep b unchanged
// for as long as the Buffer is in use.
func BorrowBuffer(b []byte) Buffer {
	return Buffer{data: b}
}

// Len returns the recorded length in bytes.
func (b Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the underlying bytes. The slice aliases the Buffer.
func (b Buffer) Bytes() []byte {
	return b.data
}

// String returns a copy of the bytes as a string.
func (b Buffer) String() string {
	return string(b.data)
}

// Clone returns a Buffer that owns its own copy of the bytes.
func (b Buffer) Clone() Buffer {
	return CopyBuffer(b.data)
}
