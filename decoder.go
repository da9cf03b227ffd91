// Package flacstream implements a streaming decoder for FLAC (Free Lossless
// Audio Codec) streams. [1]
//
// The basic structure of a FLAC bitstream is:
//   - The four byte string signature "fLaC", optionally preceded by an ID3v2
//     tag.
//   - The StreamInfo metadata block.
//   - Zero or more other metadata blocks.
//   - One or more audio frames.
//
// A Decoder pulls bytes from an io.Reader on demand and advances one unit, a
// metadata block or an audio frame, at a time. Metadata blocks, decoded frames
// and recoverable errors are delivered to a Handler. Damaged input is never
// fatal beyond the StreamInfo block: the decoder reports the damage and
// resynchronizes on the next valid frame header.
//
// A byte source may return ErrWouldBlock to signal that no data is available
// yet; the decoder rewinds the current unit and returns ErrWouldBlock, and the
// operation may be retried once more data has arrived.
//
// [1]: https://www.xiph.org/flac/format.html
package flacstream

import (
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"sync/atomic"

	"github.com/mewkiz/flacstream/internal/bufseekio"
	"github.com/mewkiz/flacstream/meta"
	"github.com/pkg/errors"
)

// State specifies the decoding phase of a Decoder.
type State int32

// Decoder states.
const (
	// StateUninitialized is the state before Init and after Finish.
	StateUninitialized State = iota
	// StateReadingMetadata is the state while metadata blocks remain.
	StateReadingMetadata
	// StateSyncSearch is the state while searching for the next frame header.
	StateSyncSearch
	// StateReadingFrame is the state while decoding a frame.
	StateReadingFrame
	// StateEndOfStream is the terminal state reached at the end of the stream.
	StateEndOfStream
	// StateAborted is the terminal state reached on fatal errors and on
	// request.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReadingMetadata:
		return "reading metadata"
	case StateSyncSearch:
		return "sync search"
	case StateReadingFrame:
		return "reading frame"
	case StateEndOfStream:
		return "end of stream"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("<unknown state %d>", int32(s))
}

// terminal reports whether s is a terminal state.
func (s State) terminal() bool {
	return s == StateEndOfStream || s == StateAborted
}

// A Decoder decodes a FLAC stream read from an io.Reader.
//
// Decoding is synchronous; every method except Abort must be called from a
// single goroutine.
type Decoder struct {
	// Current state; accessed atomically.
	state int32
	// Byte source provided by the client.
	src io.Reader
	// Receiver of metadata blocks, frames and errors.
	h Handler

	// Configuration.
	filter      *meta.Filter
	md5Checking bool
	singleFrame bool

	// Buffered byte source; retains the bytes of the current unit.
	r *bufseekio.Reader
	// Size of the stream in bytes; -1 if unknown.
	size int64
	// Fatal cause of the abort.
	err error

	// Metadata.
	info      *meta.StreamInfo
	seekTable *meta.SeekTable
	// The "fLaC" signature has been read.
	sigRead bool
	// Bytes left to skip of an ignored metadata block, and whether it is the
	// last one.
	skip     int64
	skipLast bool
	// Offset of the first frame header.
	dataStart int64

	// Frames.
	// Sample number of the first sample of the next frame.
	nextSample uint64
	// Number of bytes discarded by the current frame header search.
	garbage int64

	// Integrity.
	md5       hash.Hash
	forfeited bool
}

// NewDecoder returns a new decoder reading from r and delivering to h. Use
// NopHandler{} to ignore every callback; a nil handler panics.
//
// The decoder is configured with the setters and must then be initialized
// with Init.
func NewDecoder(r io.Reader, h Handler) *Decoder {
	if h == nil {
		panic("flacstream.NewDecoder: nil handler")
	}
	return &Decoder{
		src:         r,
		h:           h,
		filter:      meta.NewFilter(),
		md5Checking: true,
		size:        -1,
	}
}

// Init prepares the decoder for reading metadata. The stream size is probed
// when the byte source implements io.Seeker.
func (dec *Decoder) Init() error {
	if dec.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if dec.r != nil && !dec.r.Seekable() {
		// Continue reading the buffered unseekable source of the previous
		// session.
		dec.size = -1
		return dec.reset()
	}
	src := dec.src
	var start int64
	if s, ok := src.(io.Seeker); ok {
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			// Hide the io.Seeker of pipes and other unseekable files.
			src = struct{ io.Reader }{src}
		}
		start = pos
	}
	dec.r = bufseekio.NewReader(src)
	dec.size = -1
	if dec.r.Seekable() {
		if start != 0 {
			if _, err := dec.r.Seek(start, io.SeekStart); err != nil {
				return errors.WithStack(err)
			}
		}
		if size, err := dec.r.Size(); err == nil {
			dec.size = size
		}
	}
	return dec.reset()
}

// reset clears the per-stream state and enters StateReadingMetadata.
func (dec *Decoder) reset() error {
	dec.err = nil
	dec.info = nil
	dec.seekTable = nil
	dec.sigRead = false
	dec.skip, dec.skipLast = 0, false
	dec.dataStart = 0
	dec.nextSample = 0
	dec.garbage = 0
	dec.md5 = md5.New()
	dec.forfeited = false
	if !atomic.CompareAndSwapInt32(&dec.state, int32(StateUninitialized), int32(StateReadingMetadata)) {
		return ErrAlreadyInitialized
	}
	plog.Debugf("decoder initialized; stream size %d", dec.size)
	return nil
}

// State returns the current state of the decoder.
func (dec *Decoder) State() State {
	return State(atomic.LoadInt32(&dec.state))
}

// setState transitions to s, unless the decoder has been aborted.
func (dec *Decoder) setState(s State) {
	for {
		old := atomic.LoadInt32(&dec.state)
		if State(old) == StateAborted {
			return
		}
		if atomic.CompareAndSwapInt32(&dec.state, old, int32(s)) {
			if State(old) != s {
				plog.Debugf("state %v -> %v", State(old), s)
			}
			return
		}
	}
}

// abort transitions to StateAborted with the given fatal cause, and returns
// the cause.
func (dec *Decoder) abort(cause error) error {
	if dec.err == nil {
		dec.err = cause
	}
	atomic.StoreInt32(&dec.state, int32(StateAborted))
	plog.Errorf("decoding aborted; %v", cause)
	return cause
}

// Abort stops decoding; the decoder transitions to StateAborted unless it is
// uninitialized or has already reached a terminal state. Abort may be called
// from a Handler method or from another goroutine, in which case the
// ProcessUntil operations stop between units.
func (dec *Decoder) Abort() {
	for {
		old := State(atomic.LoadInt32(&dec.state))
		if old == StateUninitialized || old.terminal() {
			return
		}
		if atomic.CompareAndSwapInt32(&dec.state, int32(old), int32(StateAborted)) {
			plog.Infof("decoding aborted on request in state %v", old)
			return
		}
	}
}

// Err returns the fatal cause of an abort, or nil if the decoder has not
// been aborted.
func (dec *Decoder) Err() error {
	if dec.State() != StateAborted {
		return nil
	}
	if dec.err == nil {
		return ErrAborted
	}
	return dec.err
}

// Offset returns the byte offset of the next unread byte of the stream.
func (dec *Decoder) Offset() int64 {
	if dec.r == nil {
		return 0
	}
	return dec.r.Offset()
}

// NextSample returns the sample number of the first sample of the next frame.
func (dec *Decoder) NextSample() uint64 {
	return dec.nextSample
}

// Info returns the StreamInfo block, or nil if it has not been read.
func (dec *Decoder) Info() *meta.StreamInfo {
	return dec.info
}

// SeekTable returns the seek table of the stream, or nil if none has been
// read.
func (dec *Decoder) SeekTable() *meta.SeekTable {
	return dec.seekTable
}

// ProcessSingle decodes a single unit of the stream: one metadata block, or
// one audio frame. It returns the new state.
//
// On terminal states ProcessSingle does nothing. When the byte source
// returns ErrWouldBlock the unit is rewound and ErrWouldBlock returned, with
// the state unchanged. When the unit aborts decoding, the fatal cause is
// returned with StateAborted.
func (dec *Decoder) ProcessSingle() (State, error) {
	var err error
	switch st := dec.State(); st {
	case StateUninitialized:
		return st, ErrNotInitialized
	case StateEndOfStream, StateAborted:
		return st, nil
	case StateReadingMetadata:
		err = dec.readMetadata()
	default:
		_, err = dec.nextFrame(true)
	}
	return dec.State(), err
}

// ProcessUntilEndOfMetadata decodes metadata blocks until every metadata
// block has been read.
func (dec *Decoder) ProcessUntilEndOfMetadata() (State, error) {
	for {
		st := dec.State()
		if st != StateReadingMetadata {
			if st == StateUninitialized {
				return st, ErrNotInitialized
			}
			return st, nil
		}
		if _, err := dec.ProcessSingle(); err != nil {
			return dec.State(), err
		}
	}
}

// ProcessUntilEndOfStream decodes the remaining metadata blocks and audio
// frames until the stream ends or decoding is aborted.
func (dec *Decoder) ProcessUntilEndOfStream() (State, error) {
	for {
		st := dec.State()
		switch {
		case st == StateUninitialized:
			return st, ErrNotInitialized
		case st == StateAborted:
			return st, dec.Err()
		case st.terminal():
			return st, nil
		}
		if _, err := dec.ProcessSingle(); err != nil {
			return dec.State(), err
		}
	}
}

// SkipFrame decodes the next audio frame without delivering it to the
// handler. The frame is still verified and accounted for in the MD5
// signature. Every metadata block must have been read first.
func (dec *Decoder) SkipFrame() (State, error) {
	switch st := dec.State(); st {
	case StateUninitialized:
		return st, ErrNotInitialized
	case StateReadingMetadata:
		return st, ErrMetadataIncomplete
	case StateEndOfStream, StateAborted:
		return st, nil
	}
	_, err := dec.nextFrame(false)
	return dec.State(), err
}

// Finish verifies the MD5 signature of the decoded audio samples, reporting a
// mismatch through the handler, and releases the resources of the decoder.
// The decoder returns to StateUninitialized and may be initialized again to
// continue reading the byte source from the first unread byte; a seekable
// source is repositioned there, an unseekable one keeps its read-ahead
// buffer.
func (dec *Decoder) Finish() (DigestStatus, error) {
	st := dec.State()
	if st == StateUninitialized {
		return DigestUnchecked, ErrNotInitialized
	}
	status := dec.digestStatus(st)
	if status == DigestMismatch {
		err := errors.Errorf("flacstream.Decoder.Finish: MD5 checksum mismatch; expected %032x, got %032x", dec.info.MD5sum, dec.md5.Sum(nil))
		plog.Warningf("%v", err)
		dec.h.OnError(KindDigestMismatch, err)
	}
	// Leave the byte source at the first unread byte. The buffer of an
	// unseekable source is kept for the next Init instead.
	if dec.r.Seekable() {
		if err := dec.r.Sync(); err != nil {
			plog.Warningf("unable to restore position of byte source; %v", err)
		}
		dec.r = nil
	} else {
		dec.r.Mark()
	}
	dec.md5 = nil
	atomic.StoreInt32(&dec.state, int32(StateUninitialized))
	return status, nil
}

// unitDone commits the bytes of a completed unit.
func (dec *Decoder) unitDone() {
	dec.r.Mark()
}

// wouldBlock rewinds the current unit and returns ErrWouldBlock if err is
// caused by it.
func (dec *Decoder) wouldBlock(err error) bool {
	if errors.Is(err, ErrWouldBlock) {
		dec.r.Rewind()
		return true
	}
	return false
}

// isEOF reports whether err signals the end of the byte source.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
