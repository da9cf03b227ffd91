package flacstream

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/meta"
	"github.com/pkg/errors"
)

// signature marks the beginning of a FLAC stream.
const signature = "fLaC"

// id3Signature marks the beginning of an ID3v2 tag.
const id3Signature = "ID3"

// readMetadata reads the next metadata block. The first unit also reads the
// stream signature.
func (dec *Decoder) readMetadata() error {
	if dec.skip > 0 {
		return dec.skipBlock()
	}
	first := dec.info == nil
	if !dec.sigRead {
		if err := dec.readSignature(); err != nil {
			if dec.wouldBlock(err) {
				return ErrWouldBlock
			}
			if isEOF(err) {
				err = errors.Wrap(ErrBadSignature, "flacstream.Decoder.readSignature: stream too short")
			}
			return dec.abort(err)
		}
		dec.unitDone()
	}

	// Metadata block header.
	start := dec.r.Offset()
	hdr, err := meta.ParseHeader(dec.r)
	if err != nil {
		if dec.wouldBlock(err) {
			return ErrWouldBlock
		}
		if isEOF(err) {
			if first {
				return dec.abort(errors.Wrap(ErrBadStreamInfo, "flacstream.Decoder.readMetadata: missing StreamInfo block"))
			}
			return dec.truncatedMetadata(errors.Wrapf(err, "flacstream.Decoder.readMetadata: truncated metadata block header at offset %d", start))
		}
		return dec.abort(errors.WithStack(err))
	}

	if first {
		return dec.readStreamInfo(hdr)
	}

	// A frame header in place of a metadata block header; the last-block flag
	// of the previous block was missing.
	if hdr.Type == meta.TypeInvalid && hdr.IsLast && frame.IsSync(0xFF, uint8(hdr.Length>>16)) {
		dec.h.OnError(KindBadMetadata, errors.Errorf("flacstream.Decoder.readMetadata: frame header at offset %d; missing last metadata block flag", start))
		dec.r.Rewind()
		dec.endMetadata()
		return nil
	}

	// Blocks running past the known end of the stream are reported, and the frame
	// search takes over from the start of the block.
	if dec.size >= 0 && dec.r.Offset()+hdr.Length > dec.size {
		dec.h.OnError(KindBadMetadata, errors.Errorf("flacstream.Decoder.readMetadata: length %d of %v block at offset %d exceeds stream size %d", hdr.Length, hdr.Type, start, dec.size))
		dec.r.Rewind()
		dec.endMetadata()
		return nil
	}

	switch {
	case hdr.Type == meta.TypeInvalid:
		dec.h.OnError(KindBadMetadata, errors.Wrapf(meta.ErrInvalidType, "flacstream.Decoder.readMetadata: block at offset %d", start))
		return dec.startSkip(hdr)
	case hdr.Type == meta.TypeSeekTable:
		// Always parsed; needed for seeking.
	case !dec.filter.Wants(hdr.Type):
		return dec.startSkip(hdr)
	}

	block, err := dec.readBlock(hdr)
	if err != nil {
		if dec.wouldBlock(err) {
			return ErrWouldBlock
		}
		if isEOF(err) {
			return dec.truncatedMetadata(errors.Wrapf(err, "flacstream.Decoder.readMetadata: truncated %v block at offset %d", hdr.Type, start))
		}
		if err == errBadBlock {
			// Reported by readBlock.
			dec.unitDone()
			return dec.nextBlock(hdr.IsLast)
		}
		return dec.abort(errors.WithStack(err))
	}
	dec.unitDone()

	deliver := dec.filter.Wants(hdr.Type)
	switch body := block.Body.(type) {
	case *meta.SeekTable:
		dec.seekTable = body
	case *meta.Application:
		deliver = dec.filter.WantsApplication(body.ID)
	}
	if deliver {
		dec.h.OnMetadata(block)
	}
	return dec.nextBlock(hdr.IsLast)
}

// readSignature reads the "fLaC" signature, skipping a leading ID3v2 tag.
func (dec *Decoder) readSignature() error {
	var buf [4]byte
	if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
		return err
	}
	if string(buf[:3]) == id3Signature {
		if err := dec.skipID3(buf[3]); err != nil {
			return err
		}
		if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
			return err
		}
	}
	if string(buf[:]) != signature {
		return errors.Wrapf(ErrBadSignature, "flacstream.Decoder.readSignature: expected %q, got %q", signature, buf[:])
	}
	dec.sigRead = true
	return nil
}

// skipID3 skips the remainder of an ID3v2 tag, whose first version byte has
// been read.
//
// ID3v2 header format (pseudo code):
//
//	type ID3V2_HEADER struct {
//	   signature [3]byte // "ID3"
//	   version   [2]byte
//	   flags     uint8
//	   size      [4]byte // syncsafe; 7 bits per byte
//	}
func (dec *Decoder) skipID3(major byte) error {
	var buf [6]byte
	if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
		return err
	}
	// buf[0]: revision; buf[1]: flags.
	var size int64
	for _, b := range buf[2:] {
		size = size<<7 | int64(b&0x7F)
	}
	const footerPresent = 0x10
	if major >= 4 && buf[1]&footerPresent != 0 {
		size += 10
	}
	if _, err := io.CopyN(ioutil.Discard, dec.r, size); err != nil {
		return err
	}
	return nil
}

// readStreamInfo reads the body of the first metadata block, which must be a
// valid StreamInfo block.
func (dec *Decoder) readStreamInfo(hdr meta.Header) error {
	if hdr.Type != meta.TypeStreamInfo {
		return dec.abort(errors.Wrapf(ErrBadStreamInfo, "flacstream.Decoder.readStreamInfo: first metadata block is of type %v", hdr.Type))
	}
	if hdr.Length != meta.StreamInfoSize {
		return dec.abort(errors.Wrapf(ErrBadStreamInfo, "flacstream.Decoder.readStreamInfo: invalid length %d", hdr.Length))
	}
	block := meta.New(hdr, dec.r)
	if err := block.Parse(); err != nil {
		if dec.wouldBlock(err) {
			return ErrWouldBlock
		}
		return dec.abort(errors.Wrapf(ErrBadStreamInfo, "flacstream.Decoder.readStreamInfo: %v", err))
	}
	info := block.Body.(*meta.StreamInfo)
	if err := info.Validate(); err != nil {
		return dec.abort(errors.Wrapf(ErrBadStreamInfo, "flacstream.Decoder.readStreamInfo: %v", err))
	}
	dec.unitDone()
	dec.info = info
	plog.Debugf("stream info: %v", info)
	if dec.filter.Wants(meta.TypeStreamInfo) {
		dec.h.OnMetadata(block)
	}
	return dec.nextBlock(hdr.IsLast)
}

// errBadBlock signals a metadata block body which could not be parsed.
var errBadBlock = errors.New("flacstream: bad metadata block")

// readBlock reads the body of a metadata block into memory and parses it.
// Errors of the byte source are returned as is; parse errors are reported
// through the handler and errBadBlock returned.
func (dec *Decoder) readBlock(hdr meta.Header) (*meta.Block, error) {
	body, err := ioutil.ReadAll(io.LimitReader(dec.r, hdr.Length))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) < hdr.Length {
		return nil, io.ErrUnexpectedEOF
	}
	block := meta.New(hdr, bytes.NewReader(body))
	if err := block.Parse(); err != nil {
		dec.h.OnError(KindBadMetadata, errors.Wrapf(err, "flacstream.Decoder.readBlock: invalid %v block", hdr.Type))
		return nil, errBadBlock
	}
	return block, nil
}

// startSkip skips the body of a metadata block which is not delivered.
func (dec *Decoder) startSkip(hdr meta.Header) error {
	dec.unitDone()
	if hdr.Length == 0 {
		return dec.nextBlock(hdr.IsLast)
	}
	dec.skip = hdr.Length
	dec.skipLast = hdr.IsLast
	return dec.skipBlock()
}

// skipBlock skips the remaining bytes of an ignored metadata block. Skipped
// bytes are committed as they go, so that a skip interrupted by ErrWouldBlock
// resumes where it left off.
func (dec *Decoder) skipBlock() error {
	n, err := dec.r.Discard(dec.skip)
	dec.skip -= n
	if err != nil {
		if dec.wouldBlock(err) {
			return ErrWouldBlock
		}
		if isEOF(err) {
			dec.skip = 0
			return dec.truncatedMetadata(errors.Wrap(io.ErrUnexpectedEOF, "flacstream.Decoder.skipBlock: truncated metadata block"))
		}
		return dec.abort(errors.WithStack(err))
	}
	if dec.skip > 0 {
		// Skipped past the end of a seekable stream.
		dec.skip = 0
		return dec.truncatedMetadata(errors.Wrap(io.ErrUnexpectedEOF, "flacstream.Decoder.skipBlock: truncated metadata block"))
	}
	return dec.nextBlock(dec.skipLast)
}

// nextBlock ends the metadata section after the last block.
func (dec *Decoder) nextBlock(last bool) error {
	if last {
		dec.endMetadata()
	}
	return nil
}

// endMetadata transitions to the frame search.
func (dec *Decoder) endMetadata() {
	dec.dataStart = dec.r.Offset()
	plog.Debugf("end of metadata at offset %d", dec.dataStart)
	dec.setState(StateSyncSearch)
}

// truncatedMetadata reports a metadata block cut short by the end of the
// stream, which ends the stream.
func (dec *Decoder) truncatedMetadata(err error) error {
	dec.h.OnError(KindBadMetadata, err)
	dec.unitDone()
	dec.setState(StateEndOfStream)
	return nil
}
