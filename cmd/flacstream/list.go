package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/kylelemons/godebug/pretty"
	"github.com/mewkiz/flacstream"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/meta"
	"github.com/pkg/errors"
)

// list prints the metadata blocks of the given FLAC file, and optionally its
// audio frames. Only the given block numbers are printed, unless empty.
func list(path string, blockNums []int, frames bool) error {
	r, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	l := &lister{path: path, frames: frames}
	if len(blockNums) > 0 {
		l.blockNums = make(map[int]bool)
		for _, blockNum := range blockNums {
			l.blockNums[blockNum] = true
		}
	}
	dec := flacstream.NewDecoder(r, l)
	if err := dec.SetMetadataRespondAll(); err != nil {
		return errors.WithStack(err)
	}
	if err := dec.Init(); err != nil {
		return errors.WithStack(err)
	}
	if frames {
		_, err = dec.ProcessUntilEndOfStream()
	} else {
		_, err = dec.ProcessUntilEndOfMetadata()
	}
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := dec.Finish(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// lister prints metadata blocks and frames as they are decoded.
type lister struct {
	path      string
	blockNums map[int]bool
	frames    bool
	// Number of the next metadata block.
	blockNum int
	frameNum int
}

// OnMetadata implements flacstream.Handler.
func (l *lister) OnMetadata(block *meta.Block) {
	blockNum := l.blockNum
	l.blockNum++
	if l.blockNums != nil && !l.blockNums[blockNum] {
		return
	}
	listHeader(&block.Header, blockNum)
	switch body := block.Body.(type) {
	case *meta.StreamInfo:
		listStreamInfo(body)
	case *meta.Application:
		listApplication(body)
	case *meta.SeekTable:
		listSeekTable(body)
	case *meta.VorbisComment:
		listVorbisComment(body)
	case *meta.CueSheet:
		listCueSheet(body)
	case *meta.Picture:
		listPicture(body)
	case *meta.Unknown:
		fmt.Printf("  data length: %d\n", len(body.Data))
		fmt.Print(hex.Dump(body.Data))
	}
}

// OnFrame implements flacstream.Handler.
//
// Example:
//
//	FRAME #0
//	  header: (frame.Header) {HasFixedBlockSize: true, BlockSize: 4096, ...}
//	  sample: 0
//	  size: 9361 bytes
//	  subframe[0]: FIR, order 8, wasted bits 0
func (l *lister) OnFrame(f *frame.Frame) error {
	fmt.Printf("FRAME #%d\n", l.frameNum)
	l.frameNum++
	fmt.Printf("  header: %s\n", pretty.Sprint(f.Header))
	fmt.Printf("  sample: %d\n", f.Sample)
	fmt.Printf("  size: %d bytes\n", f.Size())
	for i, subframe := range f.Subframes {
		fmt.Printf("  subframe[%d]: %v, order %d, wasted bits %d\n", i, subframe.Pred, subframe.Order, subframe.Wasted)
	}
	return nil
}

// OnError implements flacstream.Handler.
func (l *lister) OnError(kind flacstream.ErrorKind, err error) {
	plog.Warningf("%s: %v; %v", l.path, kind, err)
}

// typeName maps from metadata block type to a string version of its name.
var typeName = map[meta.Type]string{
	meta.TypeStreamInfo:    "STREAMINFO",
	meta.TypePadding:       "PADDING",
	meta.TypeApplication:   "APPLICATION",
	meta.TypeSeekTable:     "SEEKTABLE",
	meta.TypeVorbisComment: "VORBIS_COMMENT",
	meta.TypeCueSheet:      "CUESHEET",
	meta.TypePicture:       "PICTURE",
}

// Example:
//
//	METADATA block #0
//	  type: 0 (STREAMINFO)
//	  is last: false
//	  length: 34
func listHeader(header *meta.Header, blockNum int) {
	name, ok := typeName[header.Type]
	if !ok {
		name = "UNKNOWN"
	}
	fmt.Printf("METADATA block #%d\n", blockNum)
	fmt.Printf("  type: %d (%s)\n", header.Type, name)
	fmt.Printf("  is last: %t\n", header.IsLast)
	fmt.Printf("  length: %d\n", header.Length)
}

// Example:
//
//	minimum blocksize: 4608 samples
//	maximum blocksize: 4608 samples
//	minimum framesize: 0 bytes
//	maximum framesize: 19024 bytes
//	sample_rate: 44100 Hz
//	channels: 2
//	bits-per-sample: 16
//	total samples: 151007220
//	MD5 signature: 2e6238f5d9fe5c19f3ead628f750fd3d
func listStreamInfo(si *meta.StreamInfo) {
	fmt.Printf("  minimum blocksize: %d samples\n", si.BlockSizeMin)
	fmt.Printf("  maximum blocksize: %d samples\n", si.BlockSizeMax)
	fmt.Printf("  minimum framesize: %d bytes\n", si.FrameSizeMin)
	fmt.Printf("  maximum framesize: %d bytes\n", si.FrameSizeMax)
	fmt.Printf("  sample_rate: %d Hz\n", si.SampleRate)
	fmt.Printf("  channels: %d\n", si.NChannels)
	fmt.Printf("  bits-per-sample: %d\n", si.BitsPerSample)
	fmt.Printf("  total samples: %d\n", si.NSamples)
	fmt.Printf("  MD5 signature: %x\n", si.MD5sum)
}

// Example:
//
//	application ID: 46696361 (Medieval CUE Splitter)
//	data contents:
//	Medieval CUE Splitter (www.medieval.it)
func listApplication(app *meta.Application) {
	fmt.Printf("  application ID: %x (%v)\n", string(app.ID), app.ID)
	fmt.Println("  data contents:")
	if len(app.Data) > 0 {
		fmt.Println(string(app.Data))
	}
}

func listSeekTable(st *meta.SeekTable) {
	fmt.Printf("  seek points: %d\n", len(st.Points))
	for pointNum, point := range st.Points {
		if point.IsPlaceholder() {
			fmt.Printf("    point %d: PLACEHOLDER\n", pointNum)
			continue
		}
		fmt.Printf("    point %d: sample_number=%d, stream_offset=%d, frame_samples=%d\n", pointNum, point.SampleNum, point.Offset, point.NSamples)
	}
}

func listVorbisComment(vc *meta.VorbisComment) {
	fmt.Printf("  vendor string: %s\n", vc.Vendor)
	fmt.Printf("  comments: %d\n", len(vc.Tags))
	for tagNum, tag := range vc.Tags {
		fmt.Printf("    comment[%d]: %s=%s\n", tagNum, tag[0], tag[1])
	}
}

// trackTypeName maps from the audio flag of a track to its name.
var trackTypeName = map[bool]string{
	false: "DATA",
	true:  "AUDIO",
}

func listCueSheet(cs *meta.CueSheet) {
	fmt.Printf("  media catalog number: %s\n", cs.MCN)
	fmt.Printf("  lead-in: %d\n", cs.LeadInSampleCount)
	fmt.Printf("  is CD: %t\n", cs.IsCompactDisc)
	fmt.Printf("  number of tracks: %d\n", len(cs.Tracks))
	for trackNum, track := range cs.Tracks {
		fmt.Printf("    track[%d]\n", trackNum)
		fmt.Printf("      offset: %d\n", track.Offset)
		if trackNum == len(cs.Tracks)-1 {
			// Lead-out track.
			fmt.Printf("      number: %d (LEAD-OUT)\n", track.TrackNum)
			continue
		}
		fmt.Printf("      number: %d\n", track.TrackNum)
		fmt.Printf("      ISRC: %s\n", track.ISRC)
		fmt.Printf("      type: %s\n", trackTypeName[track.IsAudio])
		fmt.Printf("      pre-emphasis: %t\n", track.HasPreEmphasis)
		fmt.Printf("      number of index points: %d\n", len(track.TrackIndexes))
		for indexNum, index := range track.TrackIndexes {
			fmt.Printf("        index[%d]\n", indexNum)
			fmt.Printf("          offset: %d\n", index.Offset)
			fmt.Printf("          number: %d\n", index.IndexPointNum)
		}
	}
}

// pictureTypeName maps from picture type to its description, according to the
// ID3v2 APIC frame.
var pictureTypeName = map[uint32]string{
	0:  "Other",
	1:  "32x32 pixels 'file icon' (PNG only)",
	2:  "Other file icon",
	3:  "Cover (front)",
	4:  "Cover (back)",
	5:  "Leaflet page",
	6:  "Media (e.g. label side of CD)",
	7:  "Lead artist/lead performer/soloist",
	8:  "Artist/performer",
	9:  "Conductor",
	10: "Band/Orchestra",
	11: "Composer",
	12: "Lyricist/text writer",
	13: "Recording Location",
	14: "During recording",
	15: "During performance",
	16: "Movie/video screen capture",
	17: "A bright coloured fish",
	18: "Illustration",
	19: "Band/artist logotype",
	20: "Publisher/Studio logotype",
}

func listPicture(pic *meta.Picture) {
	fmt.Printf("  type: %d (%s)\n", pic.Type, pictureTypeName[pic.Type])
	fmt.Printf("  MIME type: %s\n", pic.MIME)
	fmt.Printf("  description: %s\n", pic.Desc)
	fmt.Printf("  width: %d\n", pic.Width)
	fmt.Printf("  height: %d\n", pic.Height)
	fmt.Printf("  depth: %d\n", pic.Depth)
	fmt.Printf("  colors: %d", pic.NPalColors)
	if pic.NPalColors == 0 {
		fmt.Print(" (unindexed)")
	}
	fmt.Println()
	fmt.Printf("  data length: %d\n", len(pic.Data))
	fmt.Printf("  data:\n")
	fmt.Print(hex.Dump(pic.Data))
}
