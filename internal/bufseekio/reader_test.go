package bufseekio

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func TestNewReaderSize(t *testing.T) {
	buf := bytes.NewReader(make([]byte, 100))

	// Test custom buffer size.
	if rs := NewReaderSize(buf, 20); len(rs.buf) != 20 {
		t.Fatalf("want %d got %d", 20, len(rs.buf))
	}

	// Test too small buffer size.
	if rs := NewReaderSize(buf, 1); len(rs.buf) != minReadBufferSize {
		t.Fatalf("want %d got %d", minReadBufferSize, len(rs.buf))
	}

	if rs := NewReader(buf); len(rs.buf) != defaultBufSize || !rs.Seekable() {
		t.Fatalf("want seekable reader of size %d got %d", defaultBufSize, len(rs.buf))
	}
	if rs := NewReader(&readAndError{}); rs.Seekable() {
		t.Fatal("expected non-seekable reader")
	}
}

func TestReaderRead(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	rs := NewReaderSize(bytes.NewReader(data), 20)

	// Test small read.
	got := make([]byte, 5)
	if n, err := rs.Read(got); err != nil || n != 5 || !reflect.DeepEqual(got, []byte{0, 1, 2, 3, 4}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 5, n, []byte{0, 1, 2, 3, 4}, got, err)
	}
	if p := rs.Offset(); p != 5 {
		t.Fatalf("want %d got %d", 5, p)
	}

	// Test big read with initially filled buffer.
	got = make([]byte, 25)
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if n, err := rs.Read(got); err != nil || n != 15 || !reflect.DeepEqual(got, want) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 15, n, want, got, err)
	}

	// Marking lets the buffer slide instead of grow.
	rs.Mark()
	if n, err := rs.Read(got); err != nil || n != 20 || got[0] != 20 || got[19] != 39 {
		t.Fatalf("want n read %d got %d, buffer %v, err=%v", 20, n, got, err)
	}
	if len(rs.buf) != 20 {
		t.Fatalf("buffer grew to %d bytes", len(rs.buf))
	}

	// Test EOF.
	if p, err := rs.Seek(98, io.SeekStart); err != nil || p != 98 {
		t.Fatalf("want %d got %d, err=%v", 98, p, err)
	}
	got = make([]byte, 5)
	if n, err := rs.Read(got); err != nil || n != 2 || !reflect.DeepEqual(got, []byte{98, 99, 0, 0, 0}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 2, n, []byte{98, 99, 0, 0, 0}, got, err)
	}
	if n, err := rs.Read(got); err != io.EOF || n != 0 {
		t.Fatalf("want n read %d got %d, err=%v", 0, n, err)
	}

	// Test source that returns bytes and an error at the same time.
	rs = NewReaderSize(&readAndError{bytes: []byte{2, 3, 5}}, 20)
	got = make([]byte, 5)
	if n, err := rs.Read(got); err != nil || n != 3 || !reflect.DeepEqual(got, []byte{2, 3, 5, 0, 0}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 3, n, []byte{2, 3, 5, 0, 0}, got, err)
	}
	if n, err := rs.Read(got); err != expectedErr || n != 0 {
		t.Fatalf("want n read %d got %d, want error %v, got %v", 0, n, expectedErr, err)
	}

	// Test read nothing with a non-empty buffer and a queued error.
	rs = NewReaderSize(&readAndError{bytes: []byte{2, 3, 5}}, 20)
	got = make([]byte, 1)
	if n, err := rs.Read(got); err != nil || n != 1 || !reflect.DeepEqual(got, []byte{2}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 1, n, []byte{2}, got, err)
	}
	if n, err := rs.Read(nil); err != nil || n != 0 {
		t.Fatalf("want n read %d got %d, err=%v", 0, n, err)
	}
}

func TestReaderMarkRewind(t *testing.T) {
	src := &dripReader{chunks: [][]byte{{1, 2}, nil, {3, 4, 5}}}
	rs := NewReaderSize(src, 16)

	rs.Mark()
	for _, want := range []byte{1, 2} {
		c, err := rs.ReadByte()
		if err != nil || c != want {
			t.Fatalf("want %d got %d, err=%v", want, c, err)
		}
	}
	// Source temporarily dry.
	if _, err := rs.ReadByte(); err != errDry {
		t.Fatalf("want error %v, got %v", errDry, err)
	}
	rs.Rewind()
	if p := rs.Offset(); p != 0 {
		t.Fatalf("want offset 0 after rewind, got %d", p)
	}
	var got []byte
	for {
		c, err := rs.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, c)
	}
	if want := []byte{1, 2, 3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

func TestReaderGrow(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	rs := NewReaderSize(bytes.NewReader(data), 16)
	rs.Mark()
	buf := make([]byte, 60)
	if _, err := io.ReadFull(rs, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rs.Rewind()
	if _, err := io.ReadFull(rs, buf); err != nil || buf[59] != 59 {
		t.Fatalf("unexpected result after rewind; buf=%v, err=%v", buf, err)
	}
	if len(rs.buf) < 60 {
		t.Fatalf("buffer too small to retain marked region; got %d bytes", len(rs.buf))
	}
}

func TestReaderDiscard(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	golden := []struct {
		name string
		r    io.Reader
	}{
		{name: "seekable", r: bytes.NewReader(data)},
		{name: "stream", r: &dripReader{chunks: [][]byte{data[:30], data[30:70], data[70:]}, end: true}},
	}
	for _, g := range golden {
		rs := NewReaderSize(g.r, 16)
		n, err := rs.Discard(50)
		if err != nil || n != 50 {
			t.Errorf("%s: want %d discarded got %d, err=%v", g.name, 50, n, err)
			continue
		}
		c, err := rs.ReadByte()
		if err != nil || c != 50 {
			t.Errorf("%s: want byte %d got %d, err=%v", g.name, 50, c, err)
			continue
		}
		n, err = rs.Discard(100)
		if g.name == "stream" {
			if err != io.EOF || n != 49 {
				t.Errorf("%s: want %d discarded and io.EOF got %d, err=%v", g.name, 49, n, err)
			}
		} else if err != nil || n != 100 {
			t.Errorf("%s: want %d discarded got %d, err=%v", g.name, 100, n, err)
		}
	}
}

func TestReaderSync(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	src := bytes.NewReader(data)
	rs := NewReaderSize(src, 20)
	got := make([]byte, 7)
	if n, err := rs.Read(got); err != nil || n != 7 {
		t.Fatalf("want 7 bytes got %d (%v)", n, err)
	}
	// The underlying reader has read ahead.
	if pos, _ := src.Seek(0, io.SeekCurrent); pos == 7 {
		t.Fatalf("want read-ahead past offset 7")
	}
	if err := rs.Sync(); err != nil {
		t.Fatal(err)
	}
	if pos, _ := src.Seek(0, io.SeekCurrent); pos != 7 {
		t.Fatalf("want underlying offset 7 got %d", pos)
	}
	if off := rs.Offset(); off != 7 {
		t.Fatalf("want offset 7 got %d", off)
	}
	if c, err := rs.ReadByte(); err != nil || c != 7 {
		t.Fatalf("want byte 7 got %d (%v)", c, err)
	}

	if err := NewReader(&readAndError{}).Sync(); err != ErrNotSeekable {
		t.Fatalf("want %v got %v", ErrNotSeekable, err)
	}
}

func TestReaderSeek(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	r := &seekRecorder{rs: bytes.NewReader(data)}
	rs := NewReaderSize(r, 20)

	size, err := rs.Size()
	if err != nil || size != 100 {
		t.Fatalf("want size %d got %d, err=%v", 100, size, err)
	}
	r.assertSeeked(t, []seekRecord{{0, io.SeekEnd}, {0, io.SeekStart}})

	got := make([]byte, 5)

	// Test with io.SeekStart
	if p, err := rs.Seek(10, io.SeekStart); err != nil || p != 10 {
		t.Fatalf("want %d got %d, err=%v", 10, p, err)
	}
	r.assertSeeked(t, []seekRecord{{10, io.SeekStart}})
	if n, err := rs.Read(got); err != nil || n != 5 || !reflect.DeepEqual(got, []byte{10, 11, 12, 13, 14}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 5, n, []byte{10, 11, 12, 13, 14}, got, err)
	}

	// Test with io.SeekCurrent and offset within buffer.
	if p, err := rs.Seek(5, io.SeekCurrent); err != nil || p != 20 {
		t.Fatalf("want %d got %d, err=%v", 20, p, err)
	}
	if p, err := rs.Seek(-5, io.SeekCurrent); err != nil || p != 15 {
		t.Fatalf("want %d got %d, err=%v", 15, p, err)
	}
	r.assertSeeked(t, nil)
	if n, err := rs.Read(got); err != nil || n != 5 || !reflect.DeepEqual(got, []byte{15, 16, 17, 18, 19}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 5, n, []byte{15, 16, 17, 18, 19}, got, err)
	}

	// Test with io.SeekCurrent and offset outside buffer.
	if p, err := rs.Seek(30, io.SeekCurrent); err != nil || p != 50 {
		t.Fatalf("want %d got %d, err=%v", 50, p, err)
	}
	r.assertSeeked(t, []seekRecord{{50, io.SeekStart}})
	if n, err := rs.Read(got); err != nil || n != 5 || !reflect.DeepEqual(got, []byte{50, 51, 52, 53, 54}) {
		t.Fatalf("want n read %d got %d, want buffer %v got %v, err=%v", 5, n, []byte{50, 51, 52, 53, 54}, got, err)
	}

	// Test seek with error.
	if _, err := rs.Seek(-100, io.SeekStart); err == nil || err.Error() != "bytes.Reader.Seek: negative position" {
		t.Fatalf("want error 'bytes.Reader.Seek: negative position' got %v", err)
	}
	r.assertSeeked(t, []seekRecord{{-100, io.SeekStart}})

	// Test unseekable reader.
	if _, err := NewReader(&readAndError{}).Seek(1, io.SeekStart); err != ErrNotSeekable {
		t.Fatalf("want error %v got %v", ErrNotSeekable, err)
	}
}

var (
	expectedErr = errors.New("expected error")
	errDry      = errors.New("source temporarily dry")
)

type readAndError struct {
	bytes []byte
}

func (r *readAndError) Read(p []byte) (n int, err error) {
	for i, b := range r.bytes {
		p[i] = b
	}
	return len(r.bytes), expectedErr
}

// dripReader returns one chunk per Read; a nil chunk reports errDry.
type dripReader struct {
	chunks [][]byte
	end    bool
}

func (r *dripReader) Read(p []byte) (n int, err error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := r.chunks[0]
	if chunk == nil {
		r.chunks = r.chunks[1:]
		return 0, errDry
	}
	n = copy(p, chunk)
	if n < len(chunk) {
		r.chunks[0] = chunk[n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type seekRecord struct {
	offset int64
	whence int
}

type seekRecorder struct {
	rs    io.ReadSeeker
	seeks []seekRecord
}

func (r *seekRecorder) Read(p []byte) (n int, err error) {
	return r.rs.Read(p)
}

func (r *seekRecorder) Seek(offset int64, whence int) (int64, error) {
	r.seeks = append(r.seeks, seekRecord{offset: offset, whence: whence})
	return r.rs.Seek(offset, whence)
}

func (r *seekRecorder) assertSeeked(t *testing.T, expected []seekRecord) {
	t.Helper()

	if !reflect.DeepEqual(expected, r.seeks) {
		t.Fatalf("seek mismatch; expected %#v, got %#v", expected, r.seeks)
	}
	r.reset()
}

func (r *seekRecorder) reset() {
	r.seeks = nil
}
