package main

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flacstream"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
)

// wavFormatPCM is the WAVE format tag of integer PCM.
const wavFormatPCM = 1

// flac2wav converts the given FLAC file to a WAV file.
func flac2wav(path string, force bool) error {
	r, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	// Create WAV file.
	wavPath := pathutil.TrimExt(path) + ".wav"
	if !force && osutil.Exists(wavPath) {
		return errors.Errorf("WAV file %q already present; use -f flag to force overwrite", wavPath)
	}

	conv := &converter{path: path}
	dec := flacstream.NewDecoder(r, conv)
	if err := dec.SetMetadataIgnoreAll(); err != nil {
		return errors.WithStack(err)
	}
	if err := dec.Init(); err != nil {
		return errors.WithStack(err)
	}
	if _, err := dec.ProcessUntilEndOfMetadata(); err != nil {
		return errors.WithStack(err)
	}
	info := dec.Info()

	w, err := os.Create(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()
	// WAV samples are stored in whole bytes.
	depth := (int(info.BitsPerSample) + 7) / 8 * 8
	conv.shift = uint(depth) - uint(info.BitsPerSample)
	conv.enc = wav.NewEncoder(w, int(info.SampleRate), depth, int(info.NChannels), wavFormatPCM)
	conv.buf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(info.NChannels),
			SampleRate:  int(info.SampleRate),
		},
		SourceBitDepth: depth,
	}

	if _, err := dec.ProcessUntilEndOfStream(); err != nil {
		return errors.WithStack(err)
	}
	if conv.err != nil {
		return conv.err
	}
	status, err := dec.Finish()
	if err != nil {
		return errors.WithStack(err)
	}
	plog.Infof("%s: %d samples written to %q; MD5 %v", path, conv.n, wavPath, status)
	if err := conv.enc.Close(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// converter writes decoded frames to a WAV encoder.
type converter struct {
	flacstream.NopHandler
	path  string
	enc   *wav.Encoder
	buf   *audio.IntBuffer
	shift uint
	// Number of inter-channel samples written.
	n   int
	err error
}

// OnFrame implements flacstream.Handler.
func (conv *converter) OnFrame(f *frame.Frame) error {
	data := conv.buf.Data[:0]
	for i := 0; i < int(f.BlockSize); i++ {
		for _, subframe := range f.Subframes {
			sample := int(subframe.Samples[i]) << conv.shift
			if conv.buf.SourceBitDepth == 8 {
				// 8-bit WAV samples are unsigned.
				sample += 0x80
			}
			data = append(data, sample)
		}
	}
	conv.buf.Data = data
	if err := conv.enc.Write(conv.buf); err != nil {
		conv.err = errors.WithStack(err)
		return conv.err
	}
	conv.n += int(f.BlockSize)
	return nil
}

// OnError implements flacstream.Handler.
func (conv *converter) OnError(kind flacstream.ErrorKind, err error) {
	plog.Warningf("%s: %v; %v", conv.path, kind, err)
}
