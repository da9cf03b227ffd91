package flacstream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mewkiz/flacstream"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/internal/flactest"
	"github.com/mewkiz/flacstream/meta"
)

// Fuzzer options, selected by the bits of the flags argument.
const (
	fuzzIgnoreAll = 1 << iota
	fuzzRespondAll
	fuzzIgnoreApplication
	fuzzSingleFrame
	fuzzNoMD5
	fuzzSeek
	fuzzProcessSingle
	fuzzUnseekable
)

func FuzzDecoder(f *testing.F) {
	seeds := []flactest.Config{
		{NSamples: 3000, BlockSize: 1024},
		{NChannels: 1, BitsPerSample: 8, BlockSize: 64, NSamples: 300, SeekEvery: 1},
		{Channels: frame.ChannelsMidSide, BitsPerSample: 24, BlockSize: 256, NSamples: 700, Method: flactest.MethodFIR, Rice2: true},
		{VariableBlockSize: true, BlockSize: 128, NSamples: 500, ID3: true, Blocks: []*meta.Block{
			{Body: &meta.Application{ID: "ABCD", Data: []byte("data")}},
			{Body: &meta.VorbisComment{Vendor: "fuzz", Tags: [][2]string{{"TITLE", "seed"}}}},
		}},
	}
	for i, cfg := range seeds {
		s, err := flactest.Encode(cfg)
		if err != nil {
			f.Fatalf("i=%d: unable to encode seed; %v", i, err)
		}
		f.Add(s.Data, uint8(0), uint64(0))
		f.Add(s.Data, uint8(fuzzSeek|fuzzRespondAll), uint64(cfg.NSamples/2))
		f.Add(s.Data, uint8(fuzzProcessSingle|fuzzUnseekable|fuzzSingleFrame), uint64(0))
	}
	f.Add([]byte("fLaC"), uint8(0), uint64(0))

	f.Fuzz(func(t *testing.T, data []byte, flags uint8, target uint64) {
		var r io.Reader = bytes.NewReader(data)
		if flags&fuzzUnseekable != 0 {
			r = unseekable{r}
		}
		dec := flacstream.NewDecoder(r, flacstream.NopHandler{})
		if flags&fuzzIgnoreAll != 0 {
			dec.SetMetadataIgnoreAll()
		}
		if flags&fuzzRespondAll != 0 {
			dec.SetMetadataRespondAll()
		}
		if flags&fuzzIgnoreApplication != 0 {
			dec.SetMetadataIgnoreApplication("ABCD")
			dec.SetMetadataRespondApplication("WXYZ")
		}
		dec.SetSingleFrame(flags&fuzzSingleFrame != 0)
		dec.SetMD5Checking(flags&fuzzNoMD5 == 0)
		if err := dec.Init(); err != nil {
			t.Fatalf("unable to initialize decoder; %v", err)
		}
		if flags&fuzzSeek != 0 {
			dec.SeekSample(target)
		}
		if flags&fuzzProcessSingle != 0 {
			// Every unit consumes at least one byte.
			for i := 0; ; i++ {
				if i > 2*len(data)+64 {
					t.Fatalf("no progress after %d units in state %v", i, dec.State())
				}
				st, err := dec.ProcessSingle()
				if err != nil || st == flacstream.StateEndOfStream || st == flacstream.StateAborted {
					break
				}
			}
		} else {
			dec.ProcessUntilEndOfStream()
		}
		if _, err := dec.Finish(); err != nil {
			t.Fatalf("unable to finish decoder; %v", err)
		}
	})
}
