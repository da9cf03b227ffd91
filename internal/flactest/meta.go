package flactest

import (
	"bytes"
	"encoding/binary"

	"github.com/icza/bitio"
	"github.com/mewkiz/flacstream/meta"
	"github.com/mewkiz/pkg/errutil"
)

// writeBlock writes the header and body of a metadata block to out. The body
// type selects the encoding; an Unknown body is written as is using the type
// of the block header, and a block without a body is written as padding of
// Header.Length bytes.
func writeBlock(out *bytes.Buffer, block *meta.Block, last bool) error {
	var body bytes.Buffer
	hdr := block.Header
	hdr.IsLast = last
	switch b := block.Body.(type) {
	case *meta.StreamInfo:
		hdr.Type = meta.TypeStreamInfo
		if err := writeStreamInfo(&body, b); err != nil {
			return errutil.Err(err)
		}
	case *meta.Application:
		hdr.Type = meta.TypeApplication
		body.WriteString(string(b.ID))
		body.Write(b.Data)
	case *meta.SeekTable:
		hdr.Type = meta.TypeSeekTable
		for _, point := range b.Points {
			if err := binary.Write(&body, binary.BigEndian, point); err != nil {
				return errutil.Err(err)
			}
		}
	case *meta.VorbisComment:
		hdr.Type = meta.TypeVorbisComment
		writeVorbisComment(&body, b)
	case *meta.Picture:
		hdr.Type = meta.TypePicture
		writePicture(&body, b)
	case *meta.Unknown:
		body.Write(b.Data)
	case nil:
		hdr.Type = meta.TypePadding
		body.Write(make([]byte, hdr.Length))
	default:
		return errutil.Newf("flactest.writeBlock: unsupported block body %T", block.Body)
	}
	hdr.Length = int64(body.Len())
	if err := writeBlockHeader(out, hdr); err != nil {
		return errutil.Err(err)
	}
	out.Write(body.Bytes())
	return nil
}

// writeBlockHeader writes the header of a metadata block.
func writeBlockHeader(out *bytes.Buffer, hdr meta.Header) error {
	bw := bitio.NewWriter(out)
	// 1 bit: IsLast.
	if err := bw.WriteBool(hdr.IsLast); err != nil {
		return errutil.Err(err)
	}
	// 7 bits: Type.
	if err := bw.WriteBits(uint64(hdr.Type), 7); err != nil {
		return errutil.Err(err)
	}
	// 24 bits: Length.
	if err := bw.WriteBits(uint64(hdr.Length), 24); err != nil {
		return errutil.Err(err)
	}
	return bw.Close()
}

// writeStreamInfo writes the body of a StreamInfo metadata block.
func writeStreamInfo(out *bytes.Buffer, si *meta.StreamInfo) error {
	bw := bitio.NewWriter(out)
	fields := []struct {
		x uint64
		n uint8
	}{
		{uint64(si.BlockSizeMin), 16},
		{uint64(si.BlockSizeMax), 16},
		{uint64(si.FrameSizeMin), 24},
		{uint64(si.FrameSizeMax), 24},
		{uint64(si.SampleRate), 20},
		// Stored as (number of channels) - 1.
		{uint64(si.NChannels - 1), 3},
		// Stored as (bits-per-sample) - 1.
		{uint64(si.BitsPerSample - 1), 5},
		{si.NSamples, 36},
	}
	for _, f := range fields {
		if err := bw.WriteBits(f.x, f.n); err != nil {
			return errutil.Err(err)
		}
	}
	// 16 bytes: MD5sum.
	if _, err := bw.Write(si.MD5sum[:]); err != nil {
		return errutil.Err(err)
	}
	return bw.Close()
}

// writeVorbisComment writes the body of a VorbisComment metadata block; its
// lengths are stored in little-endian byte order.
func writeVorbisComment(out *bytes.Buffer, comment *meta.VorbisComment) {
	binary.Write(out, binary.LittleEndian, uint32(len(comment.Vendor)))
	out.WriteString(comment.Vendor)
	binary.Write(out, binary.LittleEndian, uint32(len(comment.Tags)))
	for _, tag := range comment.Tags {
		// NAME=VALUE
		vector := tag[0] + "=" + tag[1]
		binary.Write(out, binary.LittleEndian, uint32(len(vector)))
		out.WriteString(vector)
	}
}

// writePicture writes the body of a Picture metadata block.
func writePicture(out *bytes.Buffer, pic *meta.Picture) {
	be := func(x uint32) {
		binary.Write(out, binary.BigEndian, x)
	}
	be(pic.Type)
	be(uint32(len(pic.MIME)))
	out.WriteString(pic.MIME)
	be(uint32(len(pic.Desc)))
	out.WriteString(pic.Desc)
	be(pic.Width)
	be(pic.Height)
	be(pic.Depth)
	be(pic.NPalColors)
	be(uint32(len(pic.Data)))
	out.Write(pic.Data)
}
