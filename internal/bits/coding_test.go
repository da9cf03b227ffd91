package bits

import (
	"bytes"
	"io"
	"testing"

	"github.com/icza/bitio"
	"github.com/icza/mighty"
)

func TestUnary(t *testing.T) {
	eq := mighty.Eq(t)
	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	const n = 300
	for x := uint64(0); x < n; x++ {
		eq(nil, WriteUnary(bw, x))
	}
	eq(nil, bw.Close())

	br := NewReader(buf)
	for want := uint64(0); want < n; want++ {
		got, err := br.ReadUnary()
		eq(nil, err)
		if got != want {
			t.Fatalf("unary mismatch; expected %d, got %d", want, got)
		}
	}
}

func TestUnaryEOF(t *testing.T) {
	br := NewReader(bytes.NewReader([]byte{0x00, 0x00}))
	if _, err := br.ReadUnary(); err != io.EOF {
		t.Errorf("error mismatch; expected %v, got %v", io.EOF, err)
	}
}

func TestIntN(t *testing.T) {
	golden := []struct {
		x    uint64
		n    uint
		want int64
	}{
		{x: 0b011, n: 3, want: 3},
		{x: 0b010, n: 3, want: 2},
		{x: 0b000, n: 3, want: 0},
		{x: 0b111, n: 3, want: -1},
		{x: 0b100, n: 3, want: -4},
		{x: 0x7FFF, n: 16, want: 32767},
		{x: 0x8000, n: 16, want: -32768},
		{x: 0xFFFFFFFF, n: 32, want: -1},
		{x: 0x1FFFFFFFF, n: 33, want: -1},
		{x: 0x0FFFFFFFF, n: 33, want: 0xFFFFFFFF},
	}
	for _, g := range golden {
		got := IntN(g.x, g.n)
		if g.want != got {
			t.Errorf("result mismatch of IntN(x=%#x, n=%d); expected %d, got %d", g.x, g.n, g.want, got)
		}
	}
}

func TestZigZag(t *testing.T) {
	golden := []struct {
		folded uint32
		x      int32
	}{
		{folded: 0, x: 0},
		{folded: 1, x: -1},
		{folded: 2, x: 1},
		{folded: 3, x: -2},
		{folded: 4, x: 2},
		{folded: 0xFFFFFFFE, x: 0x7FFFFFFF},
		{folded: 0xFFFFFFFF, x: -0x80000000},
	}
	for _, g := range golden {
		if got := DecodeZigZag(g.folded); got != g.x {
			t.Errorf("result mismatch of DecodeZigZag(%d); expected %d, got %d", g.folded, g.x, got)
		}
		if got := EncodeZigZag(g.x); got != g.folded {
			t.Errorf("result mismatch of EncodeZigZag(%d); expected %d, got %d", g.x, g.folded, got)
		}
	}
}
