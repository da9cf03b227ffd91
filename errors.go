package flacstream

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by the decoder. Fatal causes are wrapped; use errors.Is to
// test for them.
var (
	// ErrAlreadyInitialized is returned by Init when the decoder is already
	// initialized, and by configuration setters after Init.
	ErrAlreadyInitialized = errors.New("flacstream: decoder already initialized")
	// ErrNotInitialized is returned by operations invoked before Init.
	ErrNotInitialized = errors.New("flacstream: decoder not initialized")
	// ErrInvalidState is returned by operations not valid in the current
	// state.
	ErrInvalidState = errors.New("flacstream: operation invalid in current decoder state")
	// ErrMetadataIncomplete is returned by frame operations requested before
	// every metadata block has been read.
	ErrMetadataIncomplete = errors.New("flacstream: metadata not fully read")
	// ErrWouldBlock is returned by a byte source which has no data available
	// yet. The decoder returns it unchanged after rewinding the current unit;
	// the call may be retried once more data is available.
	ErrWouldBlock = errors.New("flacstream: byte source would block")
	// ErrSeekUnsupported is returned when seeking a stream which is not
	// seekable, or whose length is unknown and which carries no seek table.
	ErrSeekUnsupported = errors.New("flacstream: seeking not supported")
	// ErrSeekOutOfRange is returned when seeking past the end of the stream.
	ErrSeekOutOfRange = errors.New("flacstream: seek target out of range")
	// ErrBadSignature is the cause of aborts on streams lacking the "fLaC"
	// signature.
	ErrBadSignature = errors.New("flacstream: invalid stream signature")
	// ErrBadStreamInfo is the cause of aborts on streams whose first metadata
	// block is not a valid StreamInfo block.
	ErrBadStreamInfo = errors.New("flacstream: missing or invalid stream info")
	// ErrAborted is the cause of aborts requested through Abort.
	ErrAborted = errors.New("flacstream: decoding aborted")
)

// ErrorKind specifies a recoverable or advisory decoding error, reported
// through Handler.OnError.
type ErrorKind uint8

// Error kinds.
const (
	// KindLostSync reports bytes skipped while searching for a frame header.
	KindLostSync ErrorKind = iota + 1
	// KindHeaderCRCMismatch reports a frame header with an invalid CRC-8.
	KindHeaderCRCMismatch
	// KindHeaderMismatch reports a frame header inconsistent with StreamInfo
	// or with the preceding frames.
	KindHeaderMismatch
	// KindFrameCRCMismatch reports a frame with an invalid CRC-16; the frame
	// is dropped.
	KindFrameCRCMismatch
	// KindUnparseableFrame reports a frame whose subframes cannot be decoded.
	KindUnparseableFrame
	// KindTruncatedFrame reports a frame cut short by the end of the stream.
	KindTruncatedFrame
	// KindSampleCountExceeded reports a frame running past the total number
	// of samples declared by StreamInfo.
	KindSampleCountExceeded
	// KindBadMetadata reports a metadata block which cannot be parsed.
	KindBadMetadata
	// KindDigestMismatch reports decoded audio not matching the MD5 signature
	// of StreamInfo.
	KindDigestMismatch
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindLostSync:
		return "lost sync"
	case KindHeaderCRCMismatch:
		return "frame header CRC mismatch"
	case KindHeaderMismatch:
		return "frame header mismatch"
	case KindFrameCRCMismatch:
		return "frame CRC mismatch"
	case KindUnparseableFrame:
		return "unparseable frame"
	case KindTruncatedFrame:
		return "truncated frame"
	case KindSampleCountExceeded:
		return "sample count exceeded"
	case KindBadMetadata:
		return "bad metadata"
	case KindDigestMismatch:
		return "digest mismatch"
	}
	return fmt.Sprintf("<unknown error kind %d>", uint8(kind))
}
