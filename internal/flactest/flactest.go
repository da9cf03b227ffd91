// Package flactest generates synthetic FLAC streams with known content, for
// use in tests of the decoder and its packages.
//
// The encoder favours coverage of the bitstream over compression: it exposes
// the choice of prediction method, residual coding method, partition order,
// wasted bits and inter-channel decorrelation, and records the position of
// every frame it writes.
package flactest

import (
	"bytes"
	"crypto/md5"
	"math/rand"

	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/meta"
	"github.com/mewkiz/pkg/errutil"
)

// Method specifies the prediction method used to encode subframes.
type Method uint8

// Prediction methods.
const (
	// MethodAuto picks the cheapest of constant, verbatim and fixed prediction
	// for each subframe.
	MethodAuto Method = iota
	// MethodVerbatim stores samples unencoded.
	MethodVerbatim
	// MethodFixed uses fixed polynomial prediction of order 2.
	MethodFixed
	// MethodFIR uses linear prediction with coefficients stored in the
	// subframe.
	MethodFIR
)

// Config describes a synthetic stream.
type Config struct {
	// Sample rate in Hz; 44100 if zero.
	SampleRate uint32
	// Number of channels; 2 if zero.
	NChannels int
	// Sample size in bits-per-sample; 16 if zero.
	BitsPerSample uint8
	// Nominal block size in samples; 1024 if zero.
	BlockSize int
	// Number of inter-channel samples in the stream; 4 blocks if zero.
	NSamples int
	// Inter-channel decorrelation of stereo streams; independent channels if
	// zero.
	Channels frame.Channels
	// Subframe prediction method.
	Method Method
	// Number of wasted low-order bits shared by every sample.
	Wasted uint
	// Use the 5-bit Rice parameter residual coding method.
	Rice2 bool
	// Rice partition order, reduced as needed to divide each block.
	PartOrder uint
	// Alternate between the nominal block size and half of it, writing sample
	// numbers instead of frame numbers.
	VariableBlockSize bool
	// Write a seek point for every SeekEvery frames; no seek table if zero.
	SeekEvery int
	// Additional metadata blocks, written in order after StreamInfo and the
	// seek table.
	Blocks []*meta.Block
	// Leave the MD5 signature of StreamInfo zeroed.
	OmitMD5 bool
	// Leave the total sample count of StreamInfo zeroed.
	OmitNSamples bool
	// Prefix the stream with an ID3v2 tag.
	ID3 bool
	// Seed of the pseudo-random signal.
	Seed int64
	// Signal returns the sample of the given channel at index i; a noisy
	// waveform is used if nil.
	Signal func(channel, i int) int32
}

// Stream is a synthetic FLAC stream together with its decoded content.
type Stream struct {
	// Encoded stream.
	Data []byte
	// StreamInfo as written to the stream.
	Info *meta.StreamInfo
	// Seek table as written to the stream, if any.
	SeekTable *meta.SeekTable
	// Offset of the first frame header.
	DataStart int64
	// Offset of each frame header.
	FrameOffsets []int64
	// Size in bytes of each frame.
	FrameSizes []int64
	// First sample number of each frame.
	FrameSamples []uint64
	// Block size of each frame.
	BlockSizes []int
	// Audio samples per channel.
	Samples [][]int32
	// MD5 signature of the audio samples.
	MD5 [16]byte
}

// Frame returns the encoded bytes of the i:th frame.
func (s *Stream) Frame(i int) []byte {
	return s.Data[s.FrameOffsets[i] : s.FrameOffsets[i]+s.FrameSizes[i]]
}

// FrameAt returns the index of the frame containing the given sample.
func (s *Stream) FrameAt(sample uint64) int {
	for i := len(s.FrameSamples) - 1; i >= 0; i-- {
		if s.FrameSamples[i] <= sample {
			return i
		}
	}
	return 0
}

// Interleaved returns the audio samples between start and end, interleaved by
// channel.
func (s *Stream) Interleaved(start, end int) []int32 {
	out := make([]int32, 0, (end-start)*len(s.Samples))
	for i := start; i < end; i++ {
		for _, ch := range s.Samples {
			out = append(out, ch[i])
		}
	}
	return out
}

func (cfg *Config) defaults() {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.NChannels == 0 {
		cfg.NChannels = 2
	}
	if cfg.BitsPerSample == 0 {
		cfg.BitsPerSample = 16
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 1024
	}
	if cfg.NSamples == 0 {
		cfg.NSamples = 4 * cfg.BlockSize
	}
}

// Encode generates the synthetic stream described by cfg.
func Encode(cfg Config) (*Stream, error) {
	cfg.defaults()
	if cfg.NChannels < 1 || cfg.NChannels > 8 {
		return nil, errutil.Newf("flactest.Encode: invalid channel count %d", cfg.NChannels)
	}
	if cfg.BitsPerSample < 4 || cfg.BitsPerSample > 32 {
		return nil, errutil.Newf("flactest.Encode: invalid sample size %d", cfg.BitsPerSample)
	}
	if cfg.BlockSize < 16 || cfg.BlockSize > 65535 {
		return nil, errutil.Newf("flactest.Encode: invalid block size %d", cfg.BlockSize)
	}
	if cfg.Channels != 0 && (cfg.NChannels != 2 || cfg.Channels < frame.ChannelsLeftSide || cfg.Channels > frame.ChannelsMidSide) {
		return nil, errutil.Newf("flactest.Encode: invalid channel assignment %v for %d channels", cfg.Channels, cfg.NChannels)
	}
	if cfg.Channels != 0 && cfg.BitsPerSample == 32 {
		return nil, errutil.Newf("flactest.Encode: inter-channel decorrelation of 32 bit samples")
	}
	if cfg.Wasted >= uint(cfg.BitsPerSample) {
		return nil, errutil.Newf("flactest.Encode: %d wasted bits of %d bit samples", cfg.Wasted, cfg.BitsPerSample)
	}
	s := &Stream{Samples: generate(&cfg)}

	// Encode frames.
	var frames bytes.Buffer
	enc := &encoder{cfg: &cfg}
	info := &meta.StreamInfo{
		SampleRate:    cfg.SampleRate,
		NChannels:     uint8(cfg.NChannels),
		BitsPerSample: cfg.BitsPerSample,
		BlockSizeMin:  uint16(cfg.BlockSize),
		BlockSizeMax:  uint16(cfg.BlockSize),
	}
	if cfg.VariableBlockSize {
		info.BlockSizeMin = uint16(cfg.BlockSize / 2)
		if info.BlockSizeMin < 16 {
			info.BlockSizeMin = 16
		}
	}
	for pos, i := 0, 0; pos < cfg.NSamples; i++ {
		n := cfg.BlockSize
		if cfg.VariableBlockSize && i%2 == 1 {
			n = int(info.BlockSizeMin)
		}
		if pos+n > cfg.NSamples {
			n = cfg.NSamples - pos
		}
		block := make([][]int32, cfg.NChannels)
		for ch := range block {
			block[ch] = s.Samples[ch][pos : pos+n]
		}
		num := uint64(i)
		if cfg.VariableBlockSize {
			num = uint64(pos)
		}
		buf, err := enc.encodeFrame(num, block)
		if err != nil {
			return nil, errutil.Err(err)
		}
		size := uint32(len(buf))
		if info.FrameSizeMin == 0 || size < info.FrameSizeMin {
			info.FrameSizeMin = size
		}
		if size > info.FrameSizeMax {
			info.FrameSizeMax = size
		}
		s.FrameOffsets = append(s.FrameOffsets, int64(frames.Len()))
		s.FrameSizes = append(s.FrameSizes, int64(len(buf)))
		s.FrameSamples = append(s.FrameSamples, uint64(pos))
		s.BlockSizes = append(s.BlockSizes, n)
		frames.Write(buf)
		pos += n
	}

	// Compute MD5 signature of the interleaved little-endian samples.
	h := md5.New()
	nbytes := (int(cfg.BitsPerSample) + 7) / 8
	var b [4]byte
	for i := 0; i < cfg.NSamples; i++ {
		for _, ch := range s.Samples {
			x := ch[i]
			b[0], b[1], b[2], b[3] = byte(x), byte(x>>8), byte(x>>16), byte(x>>24)
			h.Write(b[:nbytes])
		}
	}
	copy(s.MD5[:], h.Sum(nil))
	if !cfg.OmitMD5 {
		info.MD5sum = s.MD5
	}
	if !cfg.OmitNSamples {
		info.NSamples = uint64(cfg.NSamples)
	}
	s.Info = info

	// Seek table.
	if cfg.SeekEvery > 0 {
		table := &meta.SeekTable{}
		for i := 0; i < len(s.FrameOffsets); i += cfg.SeekEvery {
			table.Points = append(table.Points, meta.SeekPoint{
				SampleNum: s.FrameSamples[i],
				Offset:    uint64(s.FrameOffsets[i]),
				NSamples:  uint16(s.BlockSizes[i]),
			})
		}
		table.Points = append(table.Points, meta.SeekPoint{SampleNum: meta.PlaceholderPoint})
		s.SeekTable = table
	}

	// Metadata.
	var out bytes.Buffer
	if cfg.ID3 {
		writeID3(&out)
	}
	out.WriteString("fLaC")
	blocks := []*meta.Block{{Header: meta.Header{Type: meta.TypeStreamInfo}, Body: info}}
	if s.SeekTable != nil {
		blocks = append(blocks, &meta.Block{Header: meta.Header{Type: meta.TypeSeekTable}, Body: s.SeekTable})
	}
	blocks = append(blocks, cfg.Blocks...)
	for i, block := range blocks {
		if err := writeBlock(&out, block, i == len(blocks)-1); err != nil {
			return nil, errutil.Err(err)
		}
	}
	s.DataStart = int64(out.Len())
	for i := range s.FrameOffsets {
		s.FrameOffsets[i] += s.DataStart
	}
	out.Write(frames.Bytes())
	s.Data = out.Bytes()
	return s, nil
}

// generate returns the audio samples of each channel.
func generate(cfg *Config) [][]int32 {
	r := rand.New(rand.NewSource(cfg.Seed))
	bps := uint(cfg.BitsPerSample)
	max := int64(1)<<(bps-1) - 1
	min := -int64(1) << (bps - 1)
	samples := make([][]int32, cfg.NChannels)
	for ch := range samples {
		samples[ch] = make([]int32, cfg.NSamples)
		for i := range samples[ch] {
			var x int64
			if cfg.Signal != nil {
				x = int64(cfg.Signal(ch, i))
			} else {
				// Sawtooth wave with a small amount of noise.
				period := int64(64 + 16*ch)
				amp := max / 2
				phase := int64(i) % period
				x = amp*phase/period*2 - amp/2
				if noise := max >> 6; noise > 0 {
					x += r.Int63n(2*noise+1) - noise
				}
			}
			// Clear wasted bits.
			x = x >> cfg.Wasted << cfg.Wasted
			if x > max {
				x = max >> cfg.Wasted << cfg.Wasted
			}
			if x < min {
				x = min
			}
			samples[ch][i] = int32(x)
		}
	}
	return samples
}

// writeID3 writes an ID3v2 tag of 16 padding bytes.
func writeID3(buf *bytes.Buffer) {
	// "ID3", version 2.4.0, no flags, syncsafe tag size.
	buf.Write([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 16})
	buf.Write(make([]byte, 16))
}
