package flacstream

import (
	"io"
	"math"

	"github.com/mewkiz/flacstream/frame"
	"github.com/pkg/errors"
)

// SeekSample positions the decoder on the frame containing the given sample
// and returns the sample number of the first sample of that frame. The next
// decoded frame is the located frame. Remaining metadata blocks are read
// first.
//
// Seeking requires a byte source implementing io.Seeker. The running MD5 hash
// no longer covers the whole stream after a seek; Finish reports
// DigestForfeited. On failure the position of the decoder is left unchanged.
func (dec *Decoder) SeekSample(target uint64) (uint64, error) {
	switch dec.State() {
	case StateUninitialized:
		return 0, ErrInvalidState
	case StateAborted:
		return 0, ErrInvalidState
	}
	if !dec.r.Seekable() {
		return 0, ErrSeekUnsupported
	}
	if dec.State() == StateReadingMetadata {
		if _, err := dec.ProcessUntilEndOfMetadata(); err != nil {
			return 0, err
		}
		if dec.State() == StateAborted {
			return 0, dec.Err()
		}
	}
	if dec.dataStart == 0 {
		// The stream ended within the metadata.
		return 0, ErrInvalidState
	}
	info := dec.info
	switch {
	case info.NSamples != 0 && target >= info.NSamples:
		return 0, errors.Wrapf(ErrSeekOutOfRange, "flacstream.Decoder.SeekSample: sample %d beyond total of %d", target, info.NSamples)
	case dec.seekTable == nil && (info.NSamples == 0 || dec.size < 0):
		return 0, errors.Wrap(ErrSeekUnsupported, "flacstream.Decoder.SeekSample: stream of unknown length without seek table")
	}

	off := dec.r.Offset()
	f, start, err := dec.locate(target)
	if err != nil {
		if _, serr := dec.r.Seek(off, io.SeekStart); serr != nil {
			return 0, dec.abort(errors.WithStack(serr))
		}
		if err == io.EOF {
			err = errors.Wrapf(ErrSeekOutOfRange, "flacstream.Decoder.SeekSample: no frame containing sample %d", target)
		}
		return 0, err
	}
	if _, err := dec.r.Seek(start, io.SeekStart); err != nil {
		return 0, dec.abort(errors.WithStack(err))
	}
	plog.Debugf("seek to sample %d; frame at offset %d starting at sample %d", target, start, f.Sample)
	dec.nextSample = f.Sample
	dec.garbage = 0
	dec.md5.Reset()
	dec.forfeited = true
	dec.setState(StateSyncSearch)
	return f.Sample, nil
}

// locate returns the frame containing the target sample and its offset. When
// no frame contains it, the nearest following frame is returned. io.EOF is
// returned when no such frame exists.
//
// A seek point which does not lead to the target frame is ignored.
func (dec *Decoder) locate(target uint64) (*frame.Frame, int64, error) {
	if dec.seekTable != nil {
		if point, ok := dec.seekTable.Search(target); ok && point.Offset < dec.dataSize() {
			f, start, err := dec.scan(dec.dataStart+int64(point.Offset), target)
			switch {
			case err == nil && f.Sample <= target:
				return f, start, nil
			case errors.Is(err, ErrAborted):
				return nil, 0, err
			}
			plog.Debugf("seek point at offset %d does not lead to sample %d", point.Offset, target)
		}
		if dec.size < 0 {
			return dec.scan(dec.dataStart, target)
		}
	}
	return dec.bisect(target)
}

// dataSize returns the number of bytes following the first frame header
// offset, or the largest valid offset when the stream size is unknown.
func (dec *Decoder) dataSize() uint64 {
	if dec.size < 0 {
		return uint64(math.MaxInt64 - dec.dataStart)
	}
	return uint64(dec.size - dec.dataStart)
}

// bisect narrows the byte range holding the target sample by probing frames,
// then scans it linearly.
func (dec *Decoder) bisect(target uint64) (*frame.Frame, int64, error) {
	lo, hi := dec.dataStart, dec.size
	gap := int64(dec.info.FrameSizeMin)
	if gap < 16 {
		gap = 16
	}
	for hi-lo > gap {
		mid := lo + (hi-lo)/2
		f, start, err := dec.probe(mid)
		if err == io.EOF {
			hi = mid
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		switch {
		case f.Sample > target:
			hi = mid
		case target < f.Sample+uint64(f.BlockSize):
			return f, start, nil
		default:
			lo = start
		}
	}
	return dec.scan(lo, target)
}

// scan decodes frames from the given offset onwards until reaching the frame
// containing the target sample.
func (dec *Decoder) scan(off int64, target uint64) (*frame.Frame, int64, error) {
	for {
		f, start, err := dec.probe(off)
		if err != nil {
			return nil, 0, err
		}
		if target < f.Sample+uint64(f.BlockSize) {
			return f, start, nil
		}
		off = dec.r.Offset()
	}
}

// probe decodes the first valid frame at or after the given offset, without
// delivering it.
func (dec *Decoder) probe(off int64) (*frame.Frame, int64, error) {
	if _, err := dec.r.Seek(off, io.SeekStart); err != nil {
		return nil, 0, errors.WithStack(err)
	}
	f, err := dec.search(true)
	if err != nil {
		return nil, 0, err
	}
	if f == nil {
		return nil, 0, ErrAborted
	}
	return f, dec.r.Offset() - f.Size(), nil
}
