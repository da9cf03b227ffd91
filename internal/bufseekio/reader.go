// Package bufseekio implements a buffered byte source which retains every byte
// read since the last mark, so that a partially consumed unit may be re-read
// after the underlying reader temporarily runs dry.
package bufseekio

import (
	"errors"
	"io"
)

const (
	defaultBufSize    = 4096
	minReadBufferSize = 16
	// Number of consecutive empty reads before giving up.
	maxConsecutiveEmptyReads = 100
)

var (
	errNegativeRead = errors.New("bufseekio: reader returned negative count from Read")
	// ErrNotSeekable is returned when seeking a Reader whose underlying reader
	// does not implement io.Seeker.
	ErrNotSeekable = errors.New("bufseekio: underlying reader is not seekable")
)

// Reader implements buffering for an io.Reader object, with optional support
// for seeking when the underlying reader implements io.Seeker.
//
// Bytes from the mark up to the read position are retained in the buffer;
// Rewind returns to the mark. The buffer grows as needed to hold the marked
// region, so callers should Mark once a unit of input has been consumed.
type Reader struct {
	buf []byte
	pos int64     // absolute start position of buf
	rd  io.Reader // reader provided by the client
	s   io.Seeker // rd as an io.Seeker; nil if not seekable
	m   int       // mark position within buf
	r   int       // read position within buf
	w   int       // write position within buf
	err error
}

// NewReaderSize returns a new Reader whose buffer has at least the specified
// size.
func NewReaderSize(rd io.Reader, size int) *Reader {
	if size < minReadBufferSize {
		size = minReadBufferSize
	}
	b := &Reader{
		buf: make([]byte, size),
		rd:  rd,
	}
	if s, ok := rd.(io.Seeker); ok {
		b.s = s
	}
	return b
}

// NewReader returns a new Reader whose buffer has the default size.
func NewReader(rd io.Reader) *Reader {
	return NewReaderSize(rd, defaultBufSize)
}

// Seekable reports whether the underlying reader implements io.Seeker.
func (b *Reader) Seekable() bool {
	return b.s != nil
}

func (b *Reader) readErr() error {
	err := b.err
	b.err = nil
	return err
}

// fill reads a new chunk into the buffer, discarding bytes before the mark.
func (b *Reader) fill() {
	if b.m > 0 {
		copy(b.buf, b.buf[b.m:b.w])
		b.pos += int64(b.m)
		b.w -= b.m
		b.r -= b.m
		b.m = 0
	}
	if b.w == len(b.buf) {
		buf := make([]byte, 2*len(b.buf))
		copy(buf, b.buf[:b.w])
		b.buf = buf
	}
	for i := maxConsecutiveEmptyReads; i > 0; i-- {
		n, err := b.rd.Read(b.buf[b.w:])
		if n < 0 {
			panic(errNegativeRead)
		}
		b.w += n
		if err != nil {
			b.err = err
			return
		}
		if n > 0 {
			return
		}
	}
	b.err = io.ErrNoProgress
}

// ReadByte reads and returns a single byte.
func (b *Reader) ReadByte() (byte, error) {
	for b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		b.fill()
	}
	c := b.buf[b.r]
	b.r++
	return c, nil
}

// Read reads data into p.
// It returns the number of bytes read into p.
// The bytes are taken from at most one Read on the underlying Reader,
// hence n may be less than len(p).
// To read exactly len(p) bytes, use io.ReadFull(b, p).
// An error returned by the underlying reader is reported once; a subsequent
// Read tries the underlying reader again.
func (b *Reader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		if b.buffered() > 0 {
			return 0, nil
		}
		return 0, b.readErr()
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		b.fill()
		if b.r == b.w {
			return 0, b.readErr()
		}
	}
	n = copy(p, b.buf[b.r:b.w])
	b.r += n
	return n, nil
}

// buffered returns the number of bytes that can be read from the current buffer.
func (b *Reader) buffered() int { return b.w - b.r }

// Mark commits every byte read so far; a later Rewind returns to the current
// read position.
func (b *Reader) Mark() {
	b.m = b.r
}

// Rewind moves the read position back to the last mark.
func (b *Reader) Rewind() {
	b.r = b.m
}

// Offset returns the absolute offset of the next byte to be read.
func (b *Reader) Offset() int64 {
	return b.pos + int64(b.r)
}

// Discard skips the next n bytes, returning the number of bytes discarded.
// Discarded bytes are committed as if by Mark. When the underlying reader is
// seekable, bytes beyond the buffer are skipped by seeking.
func (b *Reader) Discard(n int64) (discarded int64, err error) {
	for n > 0 {
		if k := int64(b.buffered()); k > 0 {
			if k > n {
				k = n
			}
			b.r += int(k)
			n -= k
			discarded += k
			continue
		}
		b.m = b.r
		if b.err != nil {
			return discarded, b.readErr()
		}
		if b.s != nil {
			if err := b.seek(b.Offset() + n); err != nil {
				return discarded, err
			}
			return discarded + n, nil
		}
		b.fill()
	}
	b.m = b.r
	return discarded, nil
}

// Seek implements io.Seeker. Seeking commits the new position as if by Mark.
// Seeks within the buffered region do not touch the underlying reader.
func (b *Reader) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekCurrent {
		return b.Offset(), nil
	}
	if b.s == nil {
		return 0, ErrNotSeekable
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.Offset() + offset
	case io.SeekEnd:
		// The absolute position of the end is unknown to Reader.
		pos, err := b.s.Seek(offset, whence)
		if err != nil {
			return 0, err
		}
		b.reset(pos)
		return pos, nil
	default:
		return 0, errors.New("bufseekio.Reader.Seek: invalid whence")
	}
	if abs >= b.pos && abs <= b.pos+int64(b.w) {
		b.r = int(abs - b.pos)
		b.m = b.r
		b.err = nil
		return abs, nil
	}
	if err := b.seek(abs); err != nil {
		return 0, err
	}
	return abs, nil
}

func (b *Reader) seek(abs int64) error {
	pos, err := b.s.Seek(abs, io.SeekStart)
	if err != nil {
		return err
	}
	b.reset(pos)
	return nil
}

func (b *Reader) reset(pos int64) {
	b.pos = pos
	b.m = 0
	b.r = 0
	b.w = 0
	b.err = nil
}

// Sync seeks the underlying reader to the read position, handing back any
// bytes read ahead, and empties the buffer.
func (b *Reader) Sync() error {
	if b.s == nil {
		return ErrNotSeekable
	}
	return b.seek(b.Offset())
}

// Size returns the total size of the underlying stream, as reported by seeking
// to its end. The read position is preserved.
func (b *Reader) Size() (int64, error) {
	if b.s == nil {
		return 0, ErrNotSeekable
	}
	end, err := b.s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := b.s.Seek(b.pos+int64(b.w), io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}
