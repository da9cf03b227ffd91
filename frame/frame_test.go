package frame_test

import (
	"bytes"
	"crypto/md5"
	"io"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/internal/flactest"
	"github.com/pkg/errors"
)

var golden = []struct {
	name string
	cfg  flactest.Config
}{
	{name: "mono 8 bps verbatim", cfg: flactest.Config{NChannels: 1, BitsPerSample: 8, Method: flactest.MethodVerbatim}},
	{name: "stereo 16 bps", cfg: flactest.Config{}},
	{name: "left/side", cfg: flactest.Config{Channels: frame.ChannelsLeftSide}},
	{name: "side/right", cfg: flactest.Config{Channels: frame.ChannelsSideRight, Method: flactest.MethodFixed}},
	{name: "mid/side", cfg: flactest.Config{Channels: frame.ChannelsMidSide, BitsPerSample: 24}},
	{name: "FIR rice2", cfg: flactest.Config{Method: flactest.MethodFIR, Rice2: true, PartOrder: 3}},
	{name: "wasted bits", cfg: flactest.Config{Wasted: 3, BitsPerSample: 20, Channels: frame.ChannelsMidSide}},
	{name: "variable block size", cfg: flactest.Config{VariableBlockSize: true, BlockSize: 4608, NSamples: 20000}},
	{name: "32 bps", cfg: flactest.Config{NChannels: 1, BitsPerSample: 32, Method: flactest.MethodFixed, PartOrder: 2}},
	{name: "odd block size", cfg: flactest.Config{BlockSize: 100, SampleRate: 12345, NChannels: 3, NSamples: 1000}},
	{name: "kHz sample rate", cfg: flactest.Config{BlockSize: 192, SampleRate: 11000, NSamples: 500}},
	{name: "daHz sample rate", cfg: flactest.Config{BlockSize: 576, SampleRate: 96010, NChannels: 8, BitsPerSample: 12}},
	{name: "constant", cfg: flactest.Config{Signal: func(ch, i int) int32 { return int32(-100 * (ch + 1)) }}},
	{name: "escaped partitions", cfg: flactest.Config{Method: flactest.MethodFixed, PartOrder: 4, Signal: func(ch, i int) int32 { return int32(i) }}},
	{name: "long frame numbers", cfg: flactest.Config{BlockSize: 16, NSamples: 16 * 3000, NChannels: 1, BitsPerSample: 8}},
}

func TestParse(t *testing.T) {
	for i, g := range golden {
		s, err := flactest.Encode(g.cfg)
		if err != nil {
			t.Fatalf("i=%d (%s): unable to encode stream; %v", i, g.name, err)
		}
		for frameNum := range s.FrameOffsets {
			buf := s.Frame(frameNum)
			f, err := frame.Parse(bytes.NewReader(buf))
			if err != nil {
				t.Errorf("i=%d (%s), frameNum=%d: unable to parse frame; %v", i, g.name, frameNum, err)
				continue
			}
			if got, want := f.Size(), int64(len(buf)); got != want {
				t.Errorf("i=%d (%s), frameNum=%d: frame size mismatch; expected %d, got %d", i, g.name, frameNum, want, got)
			}
			if got, want := int(f.BlockSize), s.BlockSizes[frameNum]; got != want {
				t.Errorf("i=%d (%s), frameNum=%d: block size mismatch; expected %d, got %d", i, g.name, frameNum, want, got)
			}
			if got, want := f.SampleNumber(s.Info.BlockSizeMax), s.FrameSamples[frameNum]; got != want {
				t.Errorf("i=%d (%s), frameNum=%d: sample number mismatch; expected %d, got %d", i, g.name, frameNum, want, got)
			}
			if got, want := f.SampleRate, s.Info.SampleRate; got != want {
				t.Errorf("i=%d (%s), frameNum=%d: sample rate mismatch; expected %d, got %d", i, g.name, frameNum, want, got)
			}
			start := int(s.FrameSamples[frameNum])
			end := start + int(f.BlockSize)
			for ch, subframe := range f.Subframes {
				if diff := pretty.Compare(s.Samples[ch][start:end], subframe.Samples); diff != "" {
					t.Errorf("i=%d (%s), frameNum=%d, channel=%d: samples mismatch; diff (-want +got):\n%s", i, g.name, frameNum, ch, diff)
				}
			}
		}
	}
}

func TestFrameHash(t *testing.T) {
	for i, g := range golden {
		s, err := flactest.Encode(g.cfg)
		if err != nil {
			t.Fatalf("i=%d (%s): unable to encode stream; %v", i, g.name, err)
		}
		md5sum := md5.New()
		r := bytes.NewReader(s.Data[s.DataStart:])
		for frameNum := 0; ; frameNum++ {
			f, err := frame.Parse(r)
			if err != nil {
				if err == io.EOF {
					break
				}
				t.Errorf("i=%d (%s), frameNum=%d: error while parsing frame; %v", i, g.name, frameNum, err)
				break
			}
			f.Hash(md5sum)
		}
		want := s.MD5[:]
		got := md5sum.Sum(nil)
		if !bytes.Equal(got, want) {
			t.Errorf("i=%d (%s): MD5 checksum mismatch for decoded audio samples; expected %32x, got %32x", i, g.name, want, got)
		}
	}
}

func TestUnknownSampleSize(t *testing.T) {
	// 10 bits-per-sample has no frame header bit pattern.
	s, err := flactest.Encode(flactest.Config{NChannels: 1, BitsPerSample: 10})
	if err != nil {
		t.Fatal(err)
	}
	f, err := frame.New(bytes.NewReader(s.Frame(1)))
	if err != nil {
		t.Fatal(err)
	}
	if f.BitsPerSample != 0 {
		t.Fatalf("expected unknown sample size, got %d", f.BitsPerSample)
	}
	if err := f.Parse(); errors.Cause(err) != frame.ErrInvalidHeader {
		t.Fatalf("error mismatch; expected %v, got %v", frame.ErrInvalidHeader, err)
	}

	f, err = frame.New(bytes.NewReader(s.Frame(1)))
	if err != nil {
		t.Fatal(err)
	}
	f.BitsPerSample = s.Info.BitsPerSample
	if err := f.Parse(); err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Compare(s.Samples[0][1024:2048], f.Subframes[0].Samples); diff != "" {
		t.Errorf("samples mismatch; diff (-want +got):\n%s", diff)
	}
}

func TestChecksumMismatch(t *testing.T) {
	s, err := flactest.Encode(flactest.Config{})
	if err != nil {
		t.Fatal(err)
	}

	// Frame number 0 changed to 1; still a valid header.
	buf := append([]byte(nil), s.Frame(0)...)
	buf[4] ^= 0x01
	f, err := frame.New(bytes.NewReader(buf))
	if errors.Cause(err) != frame.ErrHeaderCRC {
		t.Fatalf("header: error mismatch; expected %v, got %v", frame.ErrHeaderCRC, err)
	}
	if f.Num != 1 {
		t.Errorf("header: expected frame number 1, got %d", f.Num)
	}

	// Corrupt CRC-16 footer.
	buf = append([]byte(nil), s.Frame(0)...)
	buf[len(buf)-1] ^= 0xFF
	if _, err := frame.Parse(bytes.NewReader(buf)); errors.Cause(err) != frame.ErrFrameCRC {
		t.Fatalf("footer: error mismatch; expected %v, got %v", frame.ErrFrameCRC, err)
	}
}

func TestInvalidHeader(t *testing.T) {
	golden := []struct {
		name string
		buf  []byte
	}{
		{name: "sync code", buf: []byte{0xFF, 0xF0, 0xC9, 0x08, 0x00}},
		{name: "reserved bit after sync code", buf: []byte{0xFF, 0xFA, 0xC9, 0x08, 0x00}},
		{name: "reserved block size", buf: []byte{0xFF, 0xF8, 0x09, 0x08, 0x00}},
		{name: "invalid sample rate", buf: []byte{0xFF, 0xF8, 0xCF, 0x08, 0x00}},
		{name: "reserved channels", buf: []byte{0xFF, 0xF8, 0xC9, 0xB8, 0x00}},
		{name: "reserved sample size", buf: []byte{0xFF, 0xF8, 0xC9, 0x06, 0x00}},
		{name: "reserved bit", buf: []byte{0xFF, 0xF8, 0xC9, 0x09, 0x00}},
		{name: "continuation byte", buf: []byte{0xFF, 0xF8, 0xC9, 0x08, 0x80}},
		{name: "invalid continuation", buf: []byte{0xFF, 0xF8, 0xC9, 0x08, 0xC2, 0x00}},
		{name: "frame number", buf: []byte{0xFF, 0xF8, 0xC9, 0x08, 0xFE, 0x82, 0x80, 0x80, 0x80, 0x80, 0x80}},
		{name: "block size", buf: []byte{0xFF, 0xF8, 0x79, 0x08, 0x00, 0xFF, 0xFF}},
	}
	for _, g := range golden {
		buf := append(g.buf, make([]byte, 16)...)
		_, err := frame.New(bytes.NewReader(buf))
		if errors.Cause(err) != frame.ErrInvalidHeader {
			t.Errorf("%s: error mismatch; expected %v, got %v", g.name, frame.ErrInvalidHeader, err)
		}
	}
}

func TestInvalidSubframe(t *testing.T) {
	s, err := flactest.Encode(flactest.Config{NChannels: 1, BitsPerSample: 8})
	if err != nil {
		t.Fatal(err)
	}
	// Frame header of the first frame: sync code, block size and sample rate,
	// channels and sample size, frame number and CRC-8.
	hdr := s.Frame(0)[:6]
	golden := []struct {
		name string
		body []byte
	}{
		{name: "non-zero padding", body: []byte{0x80}},
		{name: "reserved prediction method", body: []byte{0x04}},
		{name: "reserved fixed order", body: []byte{0x1A}},
		{name: "wasted bits", body: []byte{0x03, 0x01}},
		{name: "reserved residual coding method", body: []byte{0x10, 0x80}},
		{name: "partition count", body: []byte{0x10, 0x3C}},
		{name: "coefficient precision", body: []byte{0x40, 0x00, 0xF0}},
	}
	for _, g := range golden {
		buf := append(append([]byte(nil), hdr...), g.body...)
		buf = append(buf, make([]byte, 64)...)
		_, err := frame.Parse(bytes.NewReader(buf))
		if errors.Cause(err) != frame.ErrInvalidSubframe {
			t.Errorf("%s: error mismatch; expected %v, got %v", g.name, frame.ErrInvalidSubframe, err)
		}
	}
}

func TestTruncated(t *testing.T) {
	s, err := flactest.Encode(flactest.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := frame.Parse(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("empty: error mismatch; expected %v, got %v", io.EOF, err)
	}
	buf := s.Frame(0)
	for _, n := range []int{3, 5, 7, len(buf) / 2, len(buf) - 1} {
		if _, err := frame.Parse(bytes.NewReader(buf[:n])); errors.Cause(err) != io.ErrUnexpectedEOF {
			t.Errorf("n=%d: error mismatch; expected %v, got %v", n, io.ErrUnexpectedEOF, err)
		}
	}
}

func TestCorrelate(t *testing.T) {
	left := []int32{0, 1, -1, 1<<30 - 1, -1 << 30, 12345, -54321}
	right := []int32{0, -1, 1, -1 << 30, 1<<30 - 1, -12345, 54320}
	for _, channels := range []frame.Channels{frame.ChannelsLR, frame.ChannelsLeftSide, frame.ChannelsSideRight, frame.ChannelsMidSide} {
		f := &frame.Frame{
			Header: frame.Header{Channels: channels},
			Subframes: []*frame.Subframe{
				{Samples: append([]int32(nil), left...)},
				{Samples: append([]int32(nil), right...)},
			},
		}
		f.Decorrelate()
		f.Correlate()
		if diff := pretty.Compare(left, f.Subframes[0].Samples); diff != "" {
			t.Errorf("%v: left channel mismatch; diff (-want +got):\n%s", channels, diff)
		}
		if diff := pretty.Compare(right, f.Subframes[1].Samples); diff != "" {
			t.Errorf("%v: right channel mismatch; diff (-want +got):\n%s", channels, diff)
		}
	}
}

func TestSampleNumber(t *testing.T) {
	golden := []struct {
		hdr     frame.Header
		nominal uint16
		want    uint64
	}{
		{hdr: frame.Header{HasFixedBlockSize: true, BlockSize: 4096, Num: 3}, nominal: 4096, want: 12288},
		// Last frame of a fixed block size stream is shorter.
		{hdr: frame.Header{HasFixedBlockSize: true, BlockSize: 100, Num: 3}, nominal: 4096, want: 12288},
		{hdr: frame.Header{HasFixedBlockSize: true, BlockSize: 100, Num: 3}, want: 300},
		{hdr: frame.Header{BlockSize: 100, Num: 777}, nominal: 4096, want: 777},
	}
	for i, g := range golden {
		if got := g.hdr.SampleNumber(g.nominal); got != g.want {
			t.Errorf("i=%d: sample number mismatch; expected %d, got %d", i, g.want, got)
		}
	}
}

func TestIsSync(t *testing.T) {
	golden := []struct {
		a, b byte
		want bool
	}{
		{0xFF, 0xF8, true},
		{0xFF, 0xF9, true},
		{0xFF, 0xFA, false},
		{0xFF, 0xFF, false},
		{0xFE, 0xF8, false},
		{0xFF, 0x00, false},
	}
	for _, g := range golden {
		if got := frame.IsSync(g.a, g.b); got != g.want {
			t.Errorf("IsSync(0x%02X, 0x%02X): expected %v, got %v", g.a, g.b, g.want, got)
		}
	}
}
