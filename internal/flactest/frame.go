package flactest

import (
	"bytes"
	"encoding/binary"

	"github.com/icza/bitio"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/pkg/errutil"
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
)

// encoder encodes audio frames.
type encoder struct {
	cfg *Config
}

// encodeFrame encodes a block of audio samples, one slice per channel, as an
// audio frame with the given frame or sample number.
func (enc *encoder) encodeFrame(num uint64, block [][]int32) ([]byte, error) {
	cfg := enc.cfg
	hdr := frame.Header{
		HasFixedBlockSize: !cfg.VariableBlockSize,
		BlockSize:         uint16(len(block[0])),
		SampleRate:        cfg.SampleRate,
		Channels:          frame.Channels(len(block) - 1),
		BitsPerSample:     cfg.BitsPerSample,
		Num:               num,
	}
	if cfg.Channels != 0 {
		hdr.Channels = cfg.Channels
	}

	// Inter-channel decorrelation operates on a copy of the samples.
	f := &frame.Frame{Header: hdr}
	for _, samples := range block {
		f.Subframes = append(f.Subframes, &frame.Subframe{Samples: append([]int32(nil), samples...)})
	}
	f.Decorrelate()

	var buf bytes.Buffer
	if err := encodeFrameHeader(&buf, hdr); err != nil {
		return nil, errutil.Err(err)
	}
	bw := bitio.NewWriter(&buf)
	for channel, subframe := range f.Subframes {
		bps := uint(hdr.BitsPerSample)
		switch {
		case hdr.Channels == frame.ChannelsSideRight && channel == 0,
			(hdr.Channels == frame.ChannelsLeftSide || hdr.Channels == frame.ChannelsMidSide) && channel == 1:
			bps++
		}
		if err := enc.encodeSubframe(bw, bps, subframe.Samples); err != nil {
			return nil, errutil.Err(err)
		}
	}
	// Zero-padding to byte alignment.
	if err := bw.Close(); err != nil {
		return nil, errutil.Err(err)
	}

	// CRC-16 of everything before the footer, header included.
	h := crc16.NewIBM()
	h.Write(buf.Bytes())
	if err := binary.Write(&buf, binary.BigEndian, h.Sum16()); err != nil {
		return nil, errutil.Err(err)
	}
	return buf.Bytes(), nil
}

// encodeFrameHeader encodes the given frame header, followed by its CRC-8
// checksum, to buf.
func encodeFrameHeader(buf *bytes.Buffer, hdr frame.Header) error {
	start := buf.Len()
	bw := bitio.NewWriter(buf)

	// Sync code: 11111111111110
	if err := bw.WriteBits(frame.SyncCode, 14); err != nil {
		return errutil.Err(err)
	}

	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	// Blocking strategy:
	//    0 : fixed-blocksize stream; frame header encodes the frame number
	//    1 : variable-blocksize stream; frame header encodes the sample number
	if err := bw.WriteBool(!hdr.HasFixedBlockSize); err != nil {
		return errutil.Err(err)
	}

	// Block size in inter-channel samples:
	//    0001 : 192 samples
	//    0010-0101 : 576 * (2^(n-2)) samples
	//    0110 : get 8 bit (blocksize-1) from end of header
	//    0111 : get 16 bit (blocksize-1) from end of header
	//    1000-1111 : 256 * (2^(n-8)) samples
	var (
		bits uint64
		// number of bits used to store block size after the frame header.
		nblockSizeSuffixBits uint8
	)
	switch hdr.BlockSize {
	case 192:
		bits = 0x1
	case 576:
		bits = 0x2
	case 1152:
		bits = 0x3
	case 2304:
		bits = 0x4
	case 4608:
		bits = 0x5
	case 256, 512, 1024, 2048, 4096, 8192, 16384, 32768:
		bits = 0x8
		for n := hdr.BlockSize / 256; n > 1; n >>= 1 {
			bits++
		}
	default:
		if hdr.BlockSize <= 256 {
			bits = 0x6
			nblockSizeSuffixBits = 8
		} else {
			bits = 0x7
			nblockSizeSuffixBits = 16
		}
	}
	if err := bw.WriteBits(bits, 4); err != nil {
		return errutil.Err(err)
	}

	// Sample rate:
	//    0000 : get from STREAMINFO metadata block
	//    0001-1011 : predefined sample rates
	//    1100 : get 8 bit sample rate (in kHz) from end of header
	//    1101 : get 16 bit sample rate (in Hz) from end of header
	//    1110 : get 16 bit sample rate (in tens of Hz) from end of header
	var (
		// bits used to store sample rate after the frame header.
		sampleRateSuffixBits uint64
		// number of bits used to store sample rate after the frame header.
		nsampleRateSuffixBits uint8
	)
	if code, ok := sampleRateCodes[hdr.SampleRate]; ok {
		bits = code
	} else {
		switch {
		case hdr.SampleRate <= 255000 && hdr.SampleRate%1000 == 0:
			bits = 0xC
			sampleRateSuffixBits = uint64(hdr.SampleRate / 1000)
			nsampleRateSuffixBits = 8
		case hdr.SampleRate <= 65535:
			bits = 0xD
			sampleRateSuffixBits = uint64(hdr.SampleRate)
			nsampleRateSuffixBits = 16
		case hdr.SampleRate <= 655350 && hdr.SampleRate%10 == 0:
			bits = 0xE
			sampleRateSuffixBits = uint64(hdr.SampleRate / 10)
			nsampleRateSuffixBits = 16
		default:
			// Get from StreamInfo.
			bits = 0x0
		}
	}
	if err := bw.WriteBits(bits, 4); err != nil {
		return errutil.Err(err)
	}

	// Channel assignment.
	//    0000-0111 : (number of independent channels)-1
	//    1000 : left/side stereo
	//    1001 : side/right stereo
	//    1010 : mid/side stereo
	if err := bw.WriteBits(uint64(hdr.Channels), 4); err != nil {
		return errutil.Err(err)
	}

	// Sample size in bits:
	//    000 : get from STREAMINFO metadata block
	//    001 : 8 bits per sample
	//    010 : 12 bits per sample
	//    100 : 16 bits per sample
	//    101 : 20 bits per sample
	//    110 : 24 bits per sample
	//    111 : 32 bits per sample
	bits = bitsPerSampleCodes[hdr.BitsPerSample]
	if err := bw.WriteBits(bits, 3); err != nil {
		return errutil.Err(err)
	}

	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	//    if (variable blocksize)
	//       <8-56>:"UTF-8" coded sample number (decoded number is 36 bits)
	//    else
	//       <8-48>:"UTF-8" coded frame number (decoded number is 31 bits)
	if err := encodeUTF8(bw, hdr.Num); err != nil {
		return errutil.Err(err)
	}

	// Write block size after the frame header (used for uncommon block sizes).
	if nblockSizeSuffixBits > 0 {
		if err := bw.WriteBits(uint64(hdr.BlockSize-1), nblockSizeSuffixBits); err != nil {
			return errutil.Err(err)
		}
	}

	// Write sample rate after the frame header (used for uncommon sample rates).
	if nsampleRateSuffixBits > 0 {
		if err := bw.WriteBits(sampleRateSuffixBits, nsampleRateSuffixBits); err != nil {
			return errutil.Err(err)
		}
	}
	if err := bw.Close(); err != nil {
		return errutil.Err(err)
	}

	// CRC-8 (polynomial = x^8 + x^2 + x^1 + x^0, initialized with 0) of
	// everything before the crc, including the sync code.
	h := crc8.NewATM()
	h.Write(buf.Bytes()[start:])
	return buf.WriteByte(h.Sum8())
}

// sampleRateCodes maps from predefined sample rates to their frame header bit
// patterns.
var sampleRateCodes = map[uint32]uint64{
	88200:  0x1,
	176400: 0x2,
	192000: 0x3,
	8000:   0x4,
	16000:  0x5,
	22050:  0x6,
	24000:  0x7,
	32000:  0x8,
	44100:  0x9,
	48000:  0xA,
	96000:  0xB,
}

// bitsPerSampleCodes maps from sample sizes to their frame header bit
// patterns; sizes not present are read from StreamInfo.
var bitsPerSampleCodes = map[uint8]uint64{
	8:  0x1,
	12: 0x2,
	16: 0x4,
	20: 0x5,
	24: 0x6,
	32: 0x7,
}
