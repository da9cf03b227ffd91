package meta

import (
	"fmt"
	"io"

	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/pkg/errors"
)

// StreamInfo contains the basic properties of a FLAC audio stream, such as its
// sample rate and channel count. It is the only mandatory metadata block and
// must be present as the first metadata block of a FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_streaminfo
type StreamInfo struct {
	// Minimum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMin uint16
	// Maximum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMax uint16
	// Minimum frame size in bytes; a 0 value implies unknown.
	FrameSizeMin uint32
	// Maximum frame size in bytes; a 0 value implies unknown.
	FrameSizeMax uint32
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate uint32
	// Number of channels; between 1 and 8 channels.
	NChannels uint8
	// Sample size in bits-per-sample; between 4 and 32 bits.
	BitsPerSample uint8
	// Total number of inter-channel samples in the stream. One second of 44.1
	// KHz audio will have 44100 samples regardless of the number of channels.
	// A 0 value implies unknown.
	NSamples uint64
	// MD5 checksum of the unencoded audio data; all zeros if absent.
	MD5sum [16]uint8
}

// StreamInfoSize is the size in bytes of a StreamInfo metadata block body.
const StreamInfoSize = 34

// Errors returned by StreamInfo validation.
var (
	ErrStreamInfoLength  = errors.New("meta.Block.parseStreamInfo: invalid stream info length")
	ErrInvalidStreamInfo = errors.New("meta.StreamInfo.Validate: invalid stream info")
)

// parseStreamInfo reads and parses the body of a StreamInfo metadata block.
func (block *Block) parseStreamInfo() error {
	if block.Length != StreamInfoSize {
		return errors.Wrapf(ErrStreamInfoLength, "expected %d bytes, got %d", StreamInfoSize, block.Length)
	}
	si, err := ParseStreamInfo(block.lr)
	if err != nil {
		return err
	}
	block.Body = si
	return nil
}

// ParseStreamInfo reads and parses the 34 byte body of a StreamInfo metadata
// block.
func ParseStreamInfo(r io.Reader) (*StreamInfo, error) {
	// 16 bits: BlockSizeMin.
	br := bits.NewReader(r)
	x, err := br.Read(16)
	if err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si := new(StreamInfo)
	si.BlockSizeMin = uint16(x)

	// 16 bits: BlockSizeMax.
	if x, err = br.Read(16); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.BlockSizeMax = uint16(x)

	// 24 bits: FrameSizeMin.
	if x, err = br.Read(24); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.FrameSizeMin = uint32(x)

	// 24 bits: FrameSizeMax.
	if x, err = br.Read(24); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.FrameSizeMax = uint32(x)

	// 20 bits: SampleRate.
	if x, err = br.Read(20); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.SampleRate = uint32(x)

	// 3 bits: NChannels; stored as (number of channels) - 1.
	if x, err = br.Read(3); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.NChannels = uint8(x + 1)

	// 5 bits: BitsPerSample; stored as (bits-per-sample) - 1.
	if x, err = br.Read(5); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.BitsPerSample = uint8(x + 1)

	// 36 bits: NSamples.
	if x, err = br.Read(36); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	si.NSamples = x

	// 16 bytes: MD5sum.
	if _, err = io.ReadFull(r, si.MD5sum[:]); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	if err := si.Validate(); err != nil {
		return nil, err
	}
	return si, nil
}

// Validate checks the internal consistency of the stream info fields.
func (si *StreamInfo) Validate() error {
	switch {
	case si.BlockSizeMin < 16:
		return errors.Wrapf(ErrInvalidStreamInfo, "minimum block size %d below 16", si.BlockSizeMin)
	case si.BlockSizeMax < si.BlockSizeMin:
		return errors.Wrapf(ErrInvalidStreamInfo, "maximum block size %d below minimum block size %d", si.BlockSizeMax, si.BlockSizeMin)
	case si.SampleRate == 0:
		return errors.Wrap(ErrInvalidStreamInfo, "sample rate of 0 Hz")
	case si.BitsPerSample < 4:
		return errors.Wrapf(ErrInvalidStreamInfo, "%d bits-per-sample below 4", si.BitsPerSample)
	case si.FrameSizeMin != 0 && si.FrameSizeMax != 0 && si.FrameSizeMax < si.FrameSizeMin:
		return errors.Wrapf(ErrInvalidStreamInfo, "maximum frame size %d below minimum frame size %d", si.FrameSizeMax, si.FrameSizeMin)
	}
	return nil
}

// HasMD5 reports whether the stream info carries an MD5 checksum of the
// unencoded audio data.
func (si *StreamInfo) HasMD5() bool {
	return si.MD5sum != [16]uint8{}
}

func (si *StreamInfo) String() string {
	return fmt.Sprintf("%d Hz, %d channel(s), %d bits-per-sample, %d samples", si.SampleRate, si.NChannels, si.BitsPerSample, si.NSamples)
}
