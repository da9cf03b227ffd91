package bits

import (
	"bytes"
	"io"
	"testing"

	"github.com/icza/mighty"
)

func TestReaderRead(t *testing.T) {
	eq := mighty.Eq(t)
	br := NewReader(bytes.NewReader([]byte{0xFF, 0xF8, 0x69, 0x08}))
	x, err := br.Read(14)
	eq(nil, err)
	eq(uint64(0x3FFE), x)
	x, err = br.Read(1)
	eq(nil, err)
	eq(uint64(0), x)
	eq(false, br.Aligned())
	x, err = br.Read(1)
	eq(nil, err)
	eq(uint64(0), x)
	eq(true, br.Aligned())
	x, err = br.Read(4)
	eq(nil, err)
	eq(uint64(0x6), x)
	br.Align()
	eq(uint64(24), br.BitsRead())
	x, err = br.Read(8)
	eq(nil, err)
	eq(uint64(0x08), x)
	_, err = br.Read(1)
	eq(io.EOF, err)
}
