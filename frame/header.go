package frame

import (
	"fmt"

	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/pkg/errors"
)

// A Header contains the basic properties of an audio frame, such as its sample
// rate and channel count. To facilitate random access decoding each frame
// header starts with a sync-code. This allows the decoder to synchronize and
// locate the start of a frame header.
//
// ref: https://www.xiph.org/flac/format.html#frame_header
type Header struct {
	// Specifies if the block size is fixed or variable.
	HasFixedBlockSize bool
	// Block size in inter-channel samples, i.e. the number of audio samples in
	// each subframe.
	BlockSize uint16
	// Sample rate in Hz; a 0 value implies unknown, get sample rate from
	// StreamInfo.
	SampleRate uint32
	// Specifies the number of channels (subframes) that exist in the frame,
	// their order and possible inter-channel decorrelation.
	Channels Channels
	// Sample size in bits-per-sample; a 0 value implies unknown, get sample size
	// from StreamInfo.
	BitsPerSample uint8
	// Specifies the frame number if the block size is fixed, and the first
	// sample number in the frame otherwise. When using fixed block size, the
	// first sample number in the frame can be derived by multiplying the frame
	// number with the block size (in samples).
	Num uint64
}

// SampleNumber returns the first sample number contained within the frame,
// given the nominal block size of a fixed block size stream.
func (hdr *Header) SampleNumber(nominal uint16) uint64 {
	if !hdr.HasFixedBlockSize {
		return hdr.Num
	}
	if nominal == 0 {
		nominal = hdr.BlockSize
	}
	return hdr.Num * uint64(nominal)
}

// SyncCode is the frame header sync code; 11111111111110 in binary.
const SyncCode = 0x3FFE

// IsSync reports whether the two bytes a and b may start a frame header; the
// sync code followed by a zero reserved bit.
func IsSync(a, b byte) bool {
	return a == 0xFF && b&0xFE == 0xF8
}

// invalid returns an error with cause ErrInvalidHeader.
func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidHeader, format, args...)
}

// parseHeader reads and parses the header of an audio frame.
//
// Frame header format (pseudo code):
//
//	type FRAME_HEADER struct {
//	   sync_code          uint14
//	   _                  uint1
//	   has_variable_size  bool
//	   block_size_spec    uint4
//	   sample_rate_spec   uint4
//	   channel_assignment uint4
//	   sample_size_spec   uint3
//	   _                  uint1
//	   num                "UTF-8" coded uint36 (frame number of at most 31 bits)
//	   block_size         uint8 or uint16, depending on block_size_spec
//	   sample_rate        uint8 or uint16, depending on sample_rate_spec
//	   crc8               uint8
//	}
func (frame *Frame) parseHeader() error {
	// Every byte read through br is added to the running CRC-8 and CRC-16
	// hashes of hr.
	br := frame.br

	// 14 bits: sync-code (11111111111110)
	x, err := br.Read(14)
	if err != nil {
		// This is the only place an audio frame may return io.EOF, which
		// signals a graceful end of a FLAC stream.
		return err
	}
	if x != SyncCode {
		return invalid("frame.Frame.parseHeader: invalid sync-code; expected '11111111111110', got '%014b'", x)
	}

	// 1 bit: reserved.
	x, err = br.Read(1)
	if err != nil {
		return unexpected(err)
	}
	if x != 0 {
		return invalid("frame.Frame.parseHeader: non-zero reserved value (%d)", x)
	}

	// 1 bit: HasFixedBlockSize.
	x, err = br.Read(1)
	if err != nil {
		return unexpected(err)
	}
	frame.HasFixedBlockSize = x == 0

	// 4 bits: BlockSize. The block size parsing is simplified by deferring it to
	// the end of the header.
	blockSize, err := br.Read(4)
	if err != nil {
		return unexpected(err)
	}

	// 4 bits: SampleRate. The sample rate parsing is simplified by deferring it
	// to the end of the header.
	sampleRate, err := br.Read(4)
	if err != nil {
		return unexpected(err)
	}
	if sampleRate == 0xF {
		return invalid("frame.Frame.parseHeader: invalid sample rate bit pattern (1111)")
	}

	// Parse channels.
	if err := frame.parseChannels(br); err != nil {
		return err
	}

	// Parse bits per sample.
	if err := frame.parseBitsPerSample(br); err != nil {
		return err
	}

	// 1 bit: reserved.
	x, err = br.Read(1)
	if err != nil {
		return unexpected(err)
	}
	if x != 0 {
		return invalid("frame.Frame.parseHeader: non-zero reserved value (%d)", x)
	}

	// if (fixed block size)
	//    1-6 bytes: UTF-8 encoded frame number.
	// else
	//    1-7 bytes: UTF-8 encoded sample number.
	frame.Num, err = decodeUTF8(br)
	if err != nil {
		return err
	}
	if frame.HasFixedBlockSize && frame.Num >= 1<<31 {
		return invalid("frame.Frame.parseHeader: frame number %d exceeds 31 bits", frame.Num)
	}

	// Block size.
	if err := frame.parseBlockSize(br, blockSize); err != nil {
		return err
	}

	// Sample rate.
	if err := frame.parseSampleRate(br, sampleRate); err != nil {
		return err
	}

	// Get CRC-8 of all bytes read so far, and compare against the 8 bits
	// CRC-8 checksum.
	got := frame.hr.crc8.Sum8()
	x, err = br.Read(8)
	if err != nil {
		return unexpected(err)
	}
	if want := uint8(x); got != want {
		return errors.Wrapf(ErrHeaderCRC, "frame.Frame.parseHeader: expected 0x%02X, got 0x%02X", want, got)
	}
	return nil
}

// parseBlockSize parses the block size of the header.
func (frame *Frame) parseBlockSize(br *bits.Reader, blockSize uint64) error {
	// 4 bits: BlockSize.
	//    0000: reserved.
	//    0001: 192 samples.
	//    0010-0101: 576 * 2^(n-2) samples.
	//    0110: get 8 bit (block size)-1 from the end of the header.
	//    0111: get 16 bit (block size)-1 from the end of the header.
	//    1000-1111: 256 * 2^(n-8) samples.
	n := blockSize
	switch {
	case n == 0x0:
		// 0000: reserved.
		return invalid("frame.Frame.parseHeader: reserved block size bit pattern (0000)")
	case n == 0x1:
		// 0001: 192 samples.
		frame.BlockSize = 192
	case n >= 0x2 && n <= 0x5:
		// 0010-0101: 576 * 2^(n-2) samples.
		frame.BlockSize = uint16(576 * (1 << (n - 2)))
	case n == 0x6:
		// 0110: get 8 bit (block size)-1 from the end of the header.
		x, err := br.Read(8)
		if err != nil {
			return unexpected(err)
		}
		frame.BlockSize = uint16(x + 1)
	case n == 0x7:
		// 0111: get 16 bit (block size)-1 from the end of the header.
		x, err := br.Read(16)
		if err != nil {
			return unexpected(err)
		}
		if x == 0xFFFF {
			return invalid("frame.Frame.parseHeader: block size of 65536 samples exceeds maximum")
		}
		frame.BlockSize = uint16(x + 1)
	default:
		//    1000-1111: 256 * 2^(n-8) samples.
		frame.BlockSize = uint16(256 * (1 << (n - 8)))
	}
	return nil
}

// parseSampleRate parses the sample rate of the header.
func (frame *Frame) parseSampleRate(br *bits.Reader, sampleRate uint64) error {
	// 4 bits: SampleRate.
	//    0000: unknown sample rate; get from StreamInfo.
	//    0001: 88.2 kHz.
	//    0010: 176.4 kHz.
	//    0011: 192 kHz.
	//    0100: 8 kHz.
	//    0101: 16 kHz.
	//    0110: 22.05 kHz.
	//    0111: 24 kHz.
	//    1000: 32 kHz.
	//    1001: 44.1 kHz.
	//    1010: 48 kHz.
	//    1011: 96 kHz.
	//    1100: get 8 bit sample rate (in kHz) from the end of the header.
	//    1101: get 16 bit sample rate (in Hz) from the end of the header.
	//    1110: get 16 bit sample rate (in daHz) from the end of the header.
	//    1111: invalid.
	switch sampleRate {
	case 0x0:
		// 0000: unknown sample rate; get from StreamInfo.
	case 0x1:
		frame.SampleRate = 88200
	case 0x2:
		frame.SampleRate = 176400
	case 0x3:
		frame.SampleRate = 192000
	case 0x4:
		frame.SampleRate = 8000
	case 0x5:
		frame.SampleRate = 16000
	case 0x6:
		frame.SampleRate = 22050
	case 0x7:
		frame.SampleRate = 24000
	case 0x8:
		frame.SampleRate = 32000
	case 0x9:
		frame.SampleRate = 44100
	case 0xA:
		frame.SampleRate = 48000
	case 0xB:
		frame.SampleRate = 96000
	case 0xC:
		// 1100: get 8 bit sample rate (in kHz) from the end of the header.
		x, err := br.Read(8)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x * 1000)
	case 0xD:
		// 1101: get 16 bit sample rate (in Hz) from the end of the header.
		x, err := br.Read(16)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x)
	case 0xE:
		// 1110: get 16 bit sample rate (in daHz) from the end of the header.
		x, err := br.Read(16)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x * 10)
	default:
		// 1111: invalid.
		return invalid("frame.Frame.parseHeader: invalid sample rate bit pattern (%04b)", sampleRate)
	}
	return nil
}

// parseChannels parses the channels of the header.
func (frame *Frame) parseChannels(br *bits.Reader) error {
	// 4 bits: Channels.
	//
	// The 4 bits are used to specify the channels as follows:
	//    0000: (1 channel) mono.
	//    0001: (2 channels) left, right.
	//    0010: (3 channels) left, right, center.
	//    0011: (4 channels) left, right, left surround, right surround.
	//    0100: (5 channels) left, right, center, left surround, right surround.
	//    0101: (6 channels) left, right, center, LFE, left surround, right surround.
	//    0110: (7 channels) left, right, center, LFE, center surround, side left, side right.
	//    0111: (8 channels) left, right, center, LFE, left surround, right surround, side left, side right.
	//    1000: (2 channels) left, side; using inter-channel decorrelation.
	//    1001: (2 channels) side, right; using inter-channel decorrelation.
	//    1010: (2 channels) mid, side; using inter-channel decorrelation.
	//    1011: reserved.
	//    1100: reserved.
	//    1101: reserved.
	//    1111: reserved.
	x, err := br.Read(4)
	if err != nil {
		return unexpected(err)
	}
	if x >= 0xB {
		return invalid("frame.Frame.parseHeader: reserved channels bit pattern (%04b)", x)
	}
	frame.Channels = Channels(x)
	return nil
}

// parseBitsPerSample parses the bits per sample of the header.
func (frame *Frame) parseBitsPerSample(br *bits.Reader) error {
	// 3 bits: BitsPerSample.
	//    000: unknown bits-per-sample; get from StreamInfo.
	//    001: 8 bits-per-sample.
	//    010: 12 bits-per-sample.
	//    011: reserved.
	//    100: 16 bits-per-sample.
	//    101: 20 bits-per-sample.
	//    110: 24 bits-per-sample.
	//    111: 32 bits-per-sample.
	x, err := br.Read(3)
	if err != nil {
		return unexpected(err)
	}
	switch x {
	case 0x0:
		// 000: unknown bits-per-sample; get from StreamInfo.
	case 0x1:
		frame.BitsPerSample = 8
	case 0x2:
		frame.BitsPerSample = 12
	case 0x4:
		frame.BitsPerSample = 16
	case 0x5:
		frame.BitsPerSample = 20
	case 0x6:
		frame.BitsPerSample = 24
	case 0x7:
		frame.BitsPerSample = 32
	default:
		// 011: reserved.
		return invalid("frame.Frame.parseHeader: reserved sample size bit pattern (%03b)", x)
	}
	return nil
}

// Channels specifies the number of channels (subframes) that exist in a frame,
// their order and possible inter-channel decorrelation.
type Channels uint8

// Channel assignments. The following abbreviations are used:
//
//	C:   center (directly in front)
//	R:   right (standard stereo)
//	Sr:  side right (directly to the right)
//	Rs:  right surround (back right)
//	Cs:  center surround (rear center)
//	Ls:  left surround (back left)
//	Sl:  side left (directly to the left)
//	L:   left (standard stereo)
//	Lfe: low-frequency effect (placed according to room acoustics)
//
// The first 6 channel constants follow the SMPTE/ITU-R channel order:
//
//	L R C Lfe Ls Rs
const (
	ChannelsMono           Channels = iota // 1 channel: mono.
	ChannelsLR                             // 2 channels: left, right.
	ChannelsLRC                            // 3 channels: left, right, center.
	ChannelsLRLsRs                         // 4 channels: left, right, left surround, right surround.
	ChannelsLRCLsRs                        // 5 channels: left, right, center, left surround, right surround.
	ChannelsLRCLfeLsRs                     // 6 channels: left, right, center, LFE, left surround, right surround.
	ChannelsLRCLfeCsSlSr                   // 7 channels: left, right, center, LFE, center surround, side left, side right.
	ChannelsLRCLfeLsRsSlSr                 // 8 channels: left, right, center, LFE, left surround, right surround, side left, side right.
	ChannelsLeftSide                       // 2 channels: left, side; using inter-channel decorrelation.
	ChannelsSideRight                      // 2 channels: side, right; using inter-channel decorrelation.
	ChannelsMidSide                        // 2 channels: mid, side; using inter-channel decorrelation.
)

// nChannels specifies the number of channels used by each channel assignment.
var nChannels = [...]int{
	ChannelsMono:           1,
	ChannelsLR:             2,
	ChannelsLRC:            3,
	ChannelsLRLsRs:         4,
	ChannelsLRCLsRs:        5,
	ChannelsLRCLfeLsRs:     6,
	ChannelsLRCLfeCsSlSr:   7,
	ChannelsLRCLfeLsRsSlSr: 8,
	ChannelsLeftSide:       2,
	ChannelsSideRight:      2,
	ChannelsMidSide:        2,
}

// Count returns the number of channels (subframes) used by the provided
// channel assignment.
func (channels Channels) Count() int {
	if int(channels) >= len(nChannels) {
		return 0
	}
	return nChannels[channels]
}

func (channels Channels) String() string {
	switch channels {
	case ChannelsLeftSide:
		return "left/side"
	case ChannelsSideRight:
		return "side/right"
	case ChannelsMidSide:
		return "mid/side"
	default:
		return fmt.Sprintf("%d channel(s)", channels.Count())
	}
}
