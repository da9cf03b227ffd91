package frame

import (
	"github.com/mewkiz/flacstream/internal/bits"
)

const (
	tx = 0x80 // 1000 0000
	t2 = 0xC0 // 1100 0000
	t3 = 0xE0 // 1110 0000
	t4 = 0xF0 // 1111 0000
	t5 = 0xF8 // 1111 1000
	t6 = 0xFC // 1111 1100
	t7 = 0xFE // 1111 1110
	t8 = 0xFF // 1111 1111

	maskx = 0x3F // 0011 1111
	mask2 = 0x1F // 0001 1111
	mask3 = 0x0F // 0000 1111
	mask4 = 0x07 // 0000 0111
	mask5 = 0x03 // 0000 0011
	mask6 = 0x01 // 0000 0001
)

// decodeUTF8 decodes a "UTF-8" coded number and returns it.
//
// ref: http://permalink.gmane.org/gmane.comp.audio.compression.flac.devel/3033
//
// Algorithm description:
//   - read one byte B0 from the stream
//   - if B0 = 0xxxxxxx then the read value is B0 -> end
//   - if B0 = 10xxxxxx, the encoding is invalid
//   - if B0 = 11xxxxxx, set L to the number of leading binary 1s minus 1:
//     B0 = 110xxxxx -> L = 1
//     B0 = 1110xxxx -> L = 2
//     B0 = 11110xxx -> L = 3
//     B0 = 111110xx -> L = 4
//     B0 = 1111110x -> L = 5
//     B0 = 11111110 -> L = 6
//   - assign the bits following the encoding (the x bits in the examples) to
//     a variable R with a magnitude of at least 36 bits
//   - loop from 1 to L
//   - left shift R 6 bits
//   - read B from the stream
//   - if B does not match 10xxxxxx, the encoding is invalid
//   - set R = R or <the lower 6 bits from B>
//   - the read value is R
func decodeUTF8(br *bits.Reader) (x uint64, err error) {
	c0, err := br.Read(8)
	if err != nil {
		return 0, unexpected(err)
	}
	var l int
	switch {
	case c0 < tx:
		// 1-byte, 7-bit sequence?
		return c0, nil
	case c0 < t2:
		// unexpected continuation byte?
		return 0, invalid("frame.decodeUTF8: unexpected continuation byte 0x%02X", c0)
	case c0 < t3:
		// 2-byte, 11-bit sequence?
		l = 1
		x = c0 & mask2
	case c0 < t4:
		// 3-byte, 16-bit sequence?
		l = 2
		x = c0 & mask3
	case c0 < t5:
		// 4-byte, 21-bit sequence?
		l = 3
		x = c0 & mask4
	case c0 < t6:
		// 5-byte, 26-bit sequence?
		l = 4
		x = c0 & mask5
	case c0 < t7:
		// 6-byte, 31-bit sequence?
		l = 5
		x = c0 & mask6
	case c0 < t8:
		// 7-byte, 36-bit sequence?
		l = 6
		x = 0
	default:
		return 0, invalid("frame.decodeUTF8: invalid leading byte 0x%02X", c0)
	}

	// store bits from continuation bytes.
	for i := 0; i < l; i++ {
		c, err := br.Read(8)
		if err != nil {
			return 0, unexpected(err)
		}
		if c&t2 != tx {
			return 0, invalid("frame.decodeUTF8: expected continuation byte, got 0x%02X", c)
		}
		x <<= 6
		x |= c & maskx
	}
	return x, nil
}
