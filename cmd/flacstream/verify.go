package main

import (
	"fmt"
	"os"

	"github.com/mewkiz/flacstream"
	"github.com/pkg/errors"
)

// verify decodes the given FLAC file and reports whether it decoded without
// errors and its MD5 signature matches. When seek is non-zero, decoding starts
// at the frame containing that sample.
func verify(path string, seek uint64) (bool, error) {
	r, err := os.Open(path)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer r.Close()

	counts := make(map[flacstream.ErrorKind]int)
	h := flacstream.HandlerFuncs{
		Error: func(kind flacstream.ErrorKind, err error) {
			counts[kind]++
			plog.Debugf("%s: %v; %v", path, kind, err)
		},
	}
	dec := flacstream.NewDecoder(r, h)
	if err := dec.SetMetadataIgnoreAll(); err != nil {
		return false, errors.WithStack(err)
	}
	if err := dec.Init(); err != nil {
		return false, errors.WithStack(err)
	}
	if seek != 0 {
		sample, err := dec.SeekSample(seek)
		if err != nil {
			return false, errors.WithStack(err)
		}
		plog.Infof("%s: seeked to sample %d", path, sample)
	}
	st, err := dec.ProcessUntilEndOfStream()
	if err != nil {
		fmt.Printf("%s: decoding aborted; %v\n", path, err)
		dec.Finish()
		return false, nil
	}
	status, err := dec.Finish()
	if err != nil {
		return false, errors.WithStack(err)
	}
	nerrs := 0
	for kind, n := range counts {
		fmt.Printf("%s: %v: %d\n", path, kind, n)
		nerrs += n
	}
	fmt.Printf("%s: %v, MD5 %v\n", path, st, status)
	ok := nerrs == 0 && (status == flacstream.DigestVerified || status == flacstream.DigestUnchecked || status == flacstream.DigestForfeited)
	return ok, nil
}
