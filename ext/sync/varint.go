package syncext

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// errTruncated marks a message that ran out of bytes mid-field — one of
// spec.md §4.9's "truncated or empty messages" that must be dropped
// without effect, never thrown.
var errTruncated = errors.New("syncext: truncated message")

func appendUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func appendBytes(buf *bytes.Buffer, b []byte) {
	appendUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

// byteReader walks a decoded message's bytes left to right, reporting
// errTruncated rather than panicking on any short read.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{buf: b}
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, errTruncated
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return append([]byte{}, out...), nil
}
