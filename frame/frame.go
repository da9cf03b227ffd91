// Package frame implements access to FLAC audio frames.
//
// A brief introduction of the FLAC audio frame format [1] follows. FLAC
// encoders divide the audio stream into blocks through a process called
// blocking [2]. A block contains the unencoded audio samples from all channels
// during a short period of time. Each audio block is divided into subblocks,
// one per channel.
//
// There is often a correlation between the left and right channel of stereo
// audio. Using inter-channel decorrelation [3] it is possible to store only one
// of the channels and the difference between the channels, or store the
// average of the channels and their difference. An encoder decorrelates audio
// samples as follows:
//
//	mid = (left + right)/2
//	side = left - right
//
// The blocks are encoded using a variety of prediction methods [4][5] and
// stored in frames. Blocks and subblocks contains unencoded audio samples while
// frames and subframes contain encoded audio samples. A FLAC stream contains
// one or more audio frames.
//
//	[1]: https://www.xiph.org/flac/format.html#frame
//	[2]: https://www.xiph.org/flac/format.html#blocking
//	[3]: https://www.xiph.org/flac/format.html#interchannel
//	[4]: https://www.xiph.org/flac/format.html#prediction
//	[5]: https://godoc.org/github.com/mewkiz/flacstream/frame#Pred
package frame

import (
	"hash"
	"io"

	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/mewkiz/pkg/hashutil"
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
	"github.com/pkg/errors"
)

// Errors returned while parsing audio frames. Errors caused by the underlying
// reader, including io.ErrUnexpectedEOF, are returned as is.
var (
	// ErrInvalidHeader is the cause of errors for frame headers which are
	// structurally invalid, such as reserved bit patterns.
	ErrInvalidHeader = errors.New("frame: invalid frame header")
	// ErrHeaderCRC is the cause of errors for frame headers whose CRC-8
	// checksum does not match.
	ErrHeaderCRC = errors.New("frame: frame header CRC-8 checksum mismatch")
	// ErrInvalidSubframe is the cause of errors for subframes which cannot be
	// decoded.
	ErrInvalidSubframe = errors.New("frame: invalid subframe")
	// ErrFrameCRC is the cause of errors for frames whose CRC-16 checksum does
	// not match.
	ErrFrameCRC = errors.New("frame: frame CRC-16 checksum mismatch")
)

// A Frame contains the header and subframes of an audio frame. It holds the
// encoded samples from a block (a part) of the audio stream. Each subframe
// holding the samples from one of its channel.
//
// ref: https://www.xiph.org/flac/format.html#frame
type Frame struct {
	// Audio frame header.
	Header
	// One subframe per channel, containing encoded audio samples.
	Subframes []*Subframe
	// Sample number of the first sample in the frame, as positioned within the
	// stream.
	Sample uint64
	// CRC-8 and CRC-16 hash reader, wrapping read operations to r.
	hr *crcReader
	// A bit reader, wrapping read operations to hr.
	br *bits.Reader
}

// New creates a new Frame for accessing the audio samples of r. It reads and
// parses an audio frame header, and verifies its CRC-8 checksum. Call
// Frame.Parse to parse the audio samples of its subframes.
//
// The reader is consumed one byte at a time; no bytes beyond the frame are
// read.
func New(r io.Reader) (frame *Frame, err error) {
	hr := newCRCReader(r)
	frame = &Frame{hr: hr, br: bits.NewReader(hr)}
	if err := frame.parseHeader(); err != nil {
		return frame, err
	}
	return frame, nil
}

// Parse reads and parses the header, and the audio samples from each subframe
// of a frame. If the samples are inter-channel decorrelated between the
// subframes, it correlates them. It returns io.EOF to signal a graceful end of
// FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#interchannel
func Parse(r io.Reader) (frame *Frame, err error) {
	frame, err = New(r)
	if err != nil {
		return frame, err
	}
	if err := frame.Parse(); err != nil {
		return frame, err
	}
	return frame, nil
}

// Parse reads and parses the audio samples from each subframe of the frame. If
// the samples are inter-channel decorrelated between the subframes, it
// correlates them. A BitsPerSample of 0 must be replaced by the value from
// StreamInfo before calling Parse.
//
// ref: https://www.xiph.org/flac/format.html#interchannel
func (frame *Frame) Parse() error {
	if frame.BitsPerSample == 0 {
		return errors.Wrap(ErrInvalidHeader, "frame.Frame.Parse: unknown sample size")
	}
	// Parse subframes.
	frame.Subframes = make([]*Subframe, frame.Channels.Count())
	var err error
	for channel := range frame.Subframes {
		// The side channel requires an extra bit per sample when using
		// inter-channel decorrelation.
		bps := uint(frame.BitsPerSample)
		switch frame.Channels {
		case ChannelsSideRight:
			// channel 0 is the side channel.
			if channel == 0 {
				bps++
			}
		case ChannelsLeftSide, ChannelsMidSide:
			// channel 1 is the side channel.
			if channel == 1 {
				bps++
			}
		}

		// Parse subframe.
		frame.Subframes[channel], err = frame.parseSubframe(frame.br, bps)
		if err != nil {
			return err
		}
	}

	// Inter-channel correlation of subframe samples.
	frame.Correlate()

	// 2 bytes: CRC-16 checksum.
	frame.br.Align()
	got := frame.hr.crc16.Sum16()
	x, err := frame.br.Read(16)
	if err != nil {
		return unexpected(err)
	}
	if want := uint16(x); got != want {
		return errors.Wrapf(ErrFrameCRC, "frame.Frame.Parse: expected 0x%04X, got 0x%04X", want, got)
	}
	return nil
}

// Size returns the number of bytes of the frame read so far; the total frame
// size once Parse has returned successfully.
func (frame *Frame) Size() int64 {
	return frame.hr.n
}

// Hash adds the decoded audio samples of the frame to a running MD5 hash. It
// can be used in conjunction with StreamInfo.MD5sum to verify the integrity of
// the decoded audio samples.
//
// Samples are interleaved by channel and written in little-endian byte order,
// using the smallest whole number of bytes holding the sample size.
//
// Note: The audio samples of the frame must be decoded before calling Hash.
func (frame *Frame) Hash(md5sum hash.Hash) {
	var buf [4]byte
	n := (int(frame.BitsPerSample) + 7) / 8
	if n < 1 || n > 4 {
		return
	}
	// Write decoded samples to a running MD5 hash.
	for i := 0; i < int(frame.BlockSize); i++ {
		for _, subframe := range frame.Subframes {
			sample := subframe.Samples[i]
			buf[0] = uint8(sample)
			buf[1] = uint8(sample >> 8)
			buf[2] = uint8(sample >> 16)
			buf[3] = uint8(sample >> 24)
			md5sum.Write(buf[:n])
		}
	}
}

// Correlate reverts any inter-channel decorrelation between the samples of the
// subframes.
//
// An encoder decorrelates audio samples as follows:
//
//	mid = (left + right)/2
//	side = left - right
func (frame *Frame) Correlate() {
	switch frame.Channels {
	case ChannelsLeftSide:
		// 2 channels: left, side; using inter-channel decorrelation.
		left := frame.Subframes[0].Samples
		side := frame.Subframes[1].Samples
		for i := range side {
			// right = left - side
			side[i] = left[i] - side[i]
		}
	case ChannelsSideRight:
		// 2 channels: side, right; using inter-channel decorrelation.
		side := frame.Subframes[0].Samples
		right := frame.Subframes[1].Samples
		for i := range side {
			// left = right + side
			side[i] = right[i] + side[i]
		}
	case ChannelsMidSide:
		// 2 channels: mid, side; using inter-channel decorrelation.
		mid := frame.Subframes[0].Samples
		side := frame.Subframes[1].Samples
		for i := range side {
			// left = (2*mid + side)/2
			// right = (2*mid - side)/2
			m := int64(mid[i])
			s := int64(side[i])
			m *= 2
			// Notice that the integer division in mid = (left + right)/2 discards
			// the least significant bit. It can be reconstructed however, since a
			// sum A+B and a difference A-B has the same least significant bit.
			//
			// ref: Data Compression: The Complete Reference (ch. 7, Decorrelation)
			m |= s & 1
			mid[i] = int32((m + s) / 2)
			side[i] = int32((m - s) / 2)
		}
	}
}

// Decorrelate performs inter-channel decorrelation between the samples of the
// subframes. It is the inverse of Correlate.
func (frame *Frame) Decorrelate() {
	switch frame.Channels {
	case ChannelsLeftSide:
		left := frame.Subframes[0].Samples
		right := frame.Subframes[1].Samples
		for i := range left {
			// side = left - right
			right[i] = left[i] - right[i]
		}
	case ChannelsSideRight:
		left := frame.Subframes[0].Samples
		right := frame.Subframes[1].Samples
		for i := range left {
			left[i] = left[i] - right[i]
		}
	case ChannelsMidSide:
		left := frame.Subframes[0].Samples
		right := frame.Subframes[1].Samples
		for i := range left {
			l := int64(left[i])
			r := int64(right[i])
			// NOTE: using `(left + right) >> 1`, not the same as `(left + right) / 2`.
			left[i] = int32((l + r) >> 1)
			right[i] = int32(l - r)
		}
	}
}

// crcReader computes the CRC-8 and CRC-16 checksums of every byte read through
// it. It reads a single byte at a time from the underlying reader.
type crcReader struct {
	r     io.ByteReader
	crc8  hashutil.Hash8
	crc16 hashutil.Hash16
	// Number of bytes read.
	n int64
}

func newCRCReader(r io.Reader) *crcReader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	return &crcReader{r: br, crc8: crc8.NewATM(), crc16: crc16.NewIBM()}
}

func (hr *crcReader) ReadByte() (byte, error) {
	c, err := hr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	buf := [1]byte{c}
	hr.crc8.Write(buf[:])
	hr.crc16.Write(buf[:])
	hr.n++
	return c, nil
}

func (hr *crcReader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		c, err := hr.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = c
		n++
	}
	return n, nil
}

// byteReader implements io.ByteReader on top of an io.Reader without read
// ahead.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (r *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// unexpected returns io.ErrUnexpectedEOF if err is io.EOF, and returns err
// otherwise.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
