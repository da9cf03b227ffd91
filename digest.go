package flacstream

import (
	"bytes"
	"fmt"
)

// DigestStatus specifies the outcome of the MD5 signature verification
// performed by Finish.
type DigestStatus uint8

// Digest statuses.
const (
	// DigestUnchecked: MD5 checking is disabled, or StreamInfo carries no MD5
	// signature.
	DigestUnchecked DigestStatus = iota
	// DigestVerified: the decoded audio matches the MD5 signature.
	DigestVerified
	// DigestMismatch: the decoded audio does not match the MD5 signature.
	DigestMismatch
	// DigestForfeited: a seek made the running digest meaningless.
	DigestForfeited
	// DigestIncomplete: the stream was not decoded to the end, or only a single
	// frame was requested.
	DigestIncomplete
)

func (status DigestStatus) String() string {
	switch status {
	case DigestUnchecked:
		return "unchecked"
	case DigestVerified:
		return "verified"
	case DigestMismatch:
		return "mismatch"
	case DigestForfeited:
		return "forfeited"
	case DigestIncomplete:
		return "incomplete"
	}
	return fmt.Sprintf("<unknown digest status %d>", uint8(status))
}

// DigestForfeited reports whether a seek has forfeited verification of the
// MD5 signature.
func (dec *Decoder) DigestForfeited() bool {
	return dec.forfeited
}

// digestStatus compares the running MD5 hash against the signature of
// StreamInfo, given the state of the decoder.
func (dec *Decoder) digestStatus(st State) DigestStatus {
	switch {
	case !dec.md5Checking, dec.info == nil, !dec.info.HasMD5():
		return DigestUnchecked
	case dec.forfeited:
		return DigestForfeited
	case st != StateEndOfStream, dec.singleFrame:
		return DigestIncomplete
	}
	if !bytes.Equal(dec.md5.Sum(nil), dec.info.MD5sum[:]) {
		return DigestMismatch
	}
	return DigestVerified
}
