package flacstream

import (
	"io"

	"github.com/mewkiz/flacstream/frame"
	"github.com/pkg/errors"
)

// nextFrame searches for the next frame header and decodes the frame. A nil
// frame with a nil error is returned when the unit ended without a frame, such
// as on damaged input or at the end of the stream.
func (dec *Decoder) nextFrame(deliver bool) (*frame.Frame, error) {
	f, err := dec.search(false)
	if err != nil || f == nil {
		return nil, err
	}
	dec.nextSample = f.Sample + uint64(f.BlockSize)
	if dec.md5Checking {
		f.Hash(dec.md5)
	}
	if deliver {
		if err := dec.h.OnFrame(f); err != nil {
			return nil, dec.abort(errors.Wrapf(err, "flacstream.Decoder.nextFrame: frame at sample %d", f.Sample))
		}
		if dec.singleFrame {
			dec.setState(StateEndOfStream)
			return f, nil
		}
	}
	dec.setState(StateSyncSearch)
	return f, nil
}

// search scans the byte source for a valid frame header and decodes the frame
// following it.
//
// In probe mode nothing is reported, the decoder state is left untouched and
// the end of the stream is returned as io.EOF; used by the seek engine.
func (dec *Decoder) search(probe bool) (*frame.Frame, error) {
	garbage := &dec.garbage
	if probe {
		garbage = new(int64)
	}
	report := func(kind ErrorKind, err error) {
		if !probe {
			dec.h.OnError(kind, err)
		}
	}
	// skip discards the first byte of the current candidate.
	skip := func() {
		dec.r.Rewind()
		dec.r.ReadByte()
		dec.r.Mark()
	}
	// end ends the stream.
	end := func() (*frame.Frame, error) {
		dec.unitDone()
		if probe {
			return nil, io.EOF
		}
		dec.reportLostSync(dec.r.Offset())
		dec.setState(StateEndOfStream)
		return nil, nil
	}
	fail := func(err error) (*frame.Frame, error) {
		if probe {
			return nil, err
		}
		return nil, dec.abort(err)
	}

	limit := dec.maxFrameSize()
	for {
		if dec.State() == StateAborted {
			return nil, nil
		}
		if !probe && *garbage >= limit {
			dec.reportLostSync(dec.r.Offset())
			return nil, nil
		}

		// Sync code.
		start := dec.r.Offset()
		a, err := dec.r.ReadByte()
		if err != nil {
			if dec.wouldBlock(err) {
				return nil, ErrWouldBlock
			}
			if isEOF(err) {
				return end()
			}
			return fail(errors.WithStack(err))
		}
		if a != 0xFF {
			dec.r.Mark()
			*garbage++
			continue
		}
		b, err := dec.r.ReadByte()
		if err != nil {
			if dec.wouldBlock(err) {
				return nil, ErrWouldBlock
			}
			if isEOF(err) {
				*garbage++
				return end()
			}
			return fail(errors.WithStack(err))
		}
		if !frame.IsSync(a, b) {
			skip()
			*garbage++
			continue
		}

		// Frame header.
		dec.r.Rewind()
		f, err := frame.New(dec.r)
		if err != nil {
			switch {
			case dec.wouldBlock(err):
				return nil, ErrWouldBlock
			case isEOF(err):
				report(KindTruncatedFrame, errors.Wrapf(err, "flacstream.Decoder.search: truncated frame header at offset %d", start))
				return end()
			case errors.Is(err, frame.ErrInvalidHeader):
				skip()
				*garbage++
				continue
			case errors.Is(err, frame.ErrHeaderCRC):
				report(KindHeaderCRCMismatch, errors.Wrapf(err, "flacstream.Decoder.search: frame header at offset %d", start))
				skip()
				*garbage++
				continue
			}
			return fail(errors.WithStack(err))
		}
		if err := dec.checkHeader(f, probe); err != nil {
			kind := KindHeaderMismatch
			if errors.Is(err, errSampleCount) {
				kind = KindSampleCountExceeded
			}
			report(kind, errors.Wrapf(err, "flacstream.Decoder.search: frame header at offset %d", start))
			skip()
			*garbage++
			continue
		}

		// Frame body.
		if !probe {
			dec.reportLostSync(start)
			dec.setState(StateReadingFrame)
		}
		if err := f.Parse(); err != nil {
			switch {
			case dec.wouldBlock(err):
				if !probe {
					dec.setState(StateSyncSearch)
				}
				return nil, ErrWouldBlock
			case isEOF(err):
				report(KindTruncatedFrame, errors.Wrapf(err, "flacstream.Decoder.search: truncated frame at offset %d", start))
				return end()
			case errors.Is(err, frame.ErrInvalidSubframe), errors.Is(err, frame.ErrInvalidHeader):
				// The declared end of the frame is unreliable; resume the scan
				// right after the sync code.
				report(KindUnparseableFrame, errors.Wrapf(err, "flacstream.Decoder.search: frame at offset %d", start))
				skip()
			case errors.Is(err, frame.ErrFrameCRC):
				report(KindFrameCRCMismatch, errors.Wrapf(err, "flacstream.Decoder.search: frame at offset %d", start))
				dec.unitDone()
			default:
				return fail(errors.WithStack(err))
			}
			if probe {
				continue
			}
			dec.setState(StateSyncSearch)
			return nil, nil
		}
		dec.unitDone()
		return f, nil
	}
}

// errSampleCount is the cause of frames running past the total number of
// samples of the stream.
var errSampleCount = errors.New("frame exceeds total sample count")

// checkHeader completes the frame header with the properties of StreamInfo
// and validates it. Frames starting before the next expected sample are
// rejected, except in probe mode.
func (dec *Decoder) checkHeader(f *frame.Frame, probe bool) error {
	info := dec.info
	hdr := &f.Header
	if hdr.SampleRate == 0 {
		hdr.SampleRate = info.SampleRate
	}
	if hdr.BitsPerSample == 0 {
		hdr.BitsPerSample = info.BitsPerSample
	}
	switch {
	case hdr.Channels.Count() != int(info.NChannels):
		return errors.Errorf("channel count mismatch; expected %d, got %d", info.NChannels, hdr.Channels.Count())
	case hdr.BitsPerSample != info.BitsPerSample:
		return errors.Errorf("sample size mismatch; expected %d, got %d", info.BitsPerSample, hdr.BitsPerSample)
	case hdr.BlockSize > info.BlockSizeMax:
		return errors.Errorf("block size %d above maximum block size %d", hdr.BlockSize, info.BlockSizeMax)
	}
	f.Sample = hdr.SampleNumber(dec.nominalBlockSize(hdr))
	if !probe && f.Sample < dec.nextSample {
		return errors.Errorf("frame starts at sample %d, before expected sample %d", f.Sample, dec.nextSample)
	}
	if info.NSamples != 0 && f.Sample+uint64(hdr.BlockSize) > info.NSamples {
		return errors.Wrapf(errSampleCount, "samples [%d, %d) past total of %d", f.Sample, f.Sample+uint64(hdr.BlockSize), info.NSamples)
	}
	return nil
}

// nominalBlockSize returns the block size used to derive sample numbers from
// frame numbers in fixed block size streams.
func (dec *Decoder) nominalBlockSize(hdr *frame.Header) uint16 {
	if dec.info.BlockSizeMin == dec.info.BlockSizeMax {
		return dec.info.BlockSizeMax
	}
	return hdr.BlockSize
}

// maxFrameSize returns the upper bound on the size of a frame in bytes; a
// frame header search discarding more bytes than this has lost sync.
func (dec *Decoder) maxFrameSize() int64 {
	info := dec.info
	if info.FrameSizeMax != 0 {
		return int64(info.FrameSizeMax)
	}
	// Verbatim subframes, one extra bit for side channels, plus the frame
	// header and subframe headers.
	ch := int64(info.NChannels)
	bps := int64(info.BitsPerSample) + 1
	return int64(info.BlockSizeMax)*ch*bps/8 + 16*ch + 32
}

// reportLostSync reports the bytes discarded by the current frame header
// search before offset off, if any.
func (dec *Decoder) reportLostSync(off int64) {
	if dec.garbage == 0 {
		return
	}
	err := errors.Errorf("flacstream.Decoder.search: skipped %d bytes before offset %d", dec.garbage, off)
	plog.Warningf("lost sync; %v", err)
	dec.garbage = 0
	dec.h.OnError(KindLostSync, err)
}
