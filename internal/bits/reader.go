// Package bits provides bit access operations and binary decoding algorithms.
package bits

import (
	"io"

	"github.com/icza/bitio"
)

// A Reader handles bit reading operations. It buffers no more than a single
// byte of the underlying reader when it implements io.ByteReader.
type Reader struct {
	br *bitio.Reader
	// Number of bits read.
	n uint64
}

// NewReader returns a new Reader that reads bits from r.
func NewReader(r io.Reader) *Reader {
	if _, ok := r.(io.ByteReader); !ok {
		r = &byteReader{r: r}
	}
	return &Reader{br: bitio.NewReader(r)}
}

// byteReader implements io.ByteReader on top of an io.Reader without read
// ahead.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

func (r *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// Read reads and returns the next n bits, at most 64. It buffers bits up to
// the next byte boundary.
func (br *Reader) Read(n uint) (x uint64, err error) {
	if n == 0 {
		return 0, nil
	}
	if n > 64 {
		panic("bits.Reader.Read: too many bits requested")
	}
	x, err = br.br.ReadBits(uint8(n))
	if err != nil {
		return 0, err
	}
	br.n += uint64(n)
	return x, nil
}

// Align skips the remaining bits of the current partially read byte.
func (br *Reader) Align() {
	skipped := br.br.Align()
	br.n += uint64(skipped)
}

// Aligned reports whether the reader is positioned at a byte boundary.
func (br *Reader) Aligned() bool {
	return br.n%8 == 0
}

// BitsRead returns the number of bits read so far.
func (br *Reader) BitsRead() uint64 {
	return br.n
}
