package bits

import (
	"github.com/icza/bitio"
)

// ReadUnary reads a unary coded integer; the number of zero bits preceding the
// next one bit.
//
//	1     => 0
//	01    => 1
//	001   => 2
//	0001  => 3
func (br *Reader) ReadUnary() (uint64, error) {
	var x uint64
	for {
		bit, err := br.Read(1)
		if err != nil {
			return 0, err
		}
		if bit != 0 {
			return x, nil
		}
		x++
	}
}

// WriteUnary writes x as x zero bits followed by a one bit.
func WriteUnary(bw *bitio.Writer, x uint64) error {
	// Whole bytes of zeros first; WriteBits handles at most 64 bits.
	for ; x >= 8; x -= 8 {
		if err := bw.WriteByte(0); err != nil {
			return err
		}
	}
	return bw.WriteBits(1, uint8(x+1))
}

// IntN sign extends the n-bit two's complement value x.
//
//	n=3: 0b011 => 3, 0b000 => 0, 0b111 => -1, 0b100 => -4
func IntN(x uint64, n uint) int64 {
	shift := 64 - n
	return int64(x<<shift) >> shift
}

// DecodeZigZag maps the folded residual x back to a signed integer.
//
//	0 => 0, 1 => -1, 2 => 1, 3 => -2, 4 => 2
func DecodeZigZag(x uint32) int32 {
	return int32(x>>1) ^ -int32(x&1)
}

// EncodeZigZag folds x into an unsigned integer; the inverse of DecodeZigZag.
func EncodeZigZag(x int32) uint32 {
	return uint32(x<<1) ^ uint32(x>>31)
}
