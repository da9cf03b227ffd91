package meta

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// VorbisComment contains a list of name-value pairs.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_vorbis_comment
type VorbisComment struct {
	// Vendor name.
	Vendor string
	// A list of tags, each represented by a name-value pair.
	Tags [][2]string
}

// parseVorbisComment reads and parses the body of a VorbisComment metadata
// block. Contrary to the rest of FLAC, the lengths of a vorbis comment are
// stored in little-endian byte order.
//
// Vorbis comment format (pseudo code):
//
//	type METADATA_BLOCK_VORBIS_COMMENT struct {
//	   vendor_length uint32
//	   vendor_string [vendor_length]byte
//	   comment_count uint32
//	   comments      [comment_count]comment
//	}
//
//	type comment struct {
//	   vector_length uint32
//	   // vector_string is a name/value pair. Example: "NAME=value".
//	   vector_string [length]byte
//	}
func (block *Block) parseVorbisComment() error {
	// 32 bits: vendor length.
	var x uint32
	if err := binary.Read(block.lr, binary.LittleEndian, &x); err != nil {
		return errors.WithStack(unexpected(err))
	}

	// (vendor length) bytes: Vendor.
	buf, err := block.readBytes(int64(x))
	if err != nil {
		return err
	}
	comment := &VorbisComment{Vendor: string(buf)}

	// Parse tags.
	// 32 bits: number of tags.
	if err := binary.Read(block.lr, binary.LittleEndian, &x); err != nil {
		return errors.WithStack(unexpected(err))
	}
	// Each tag occupies at least 4 bytes.
	if int64(x) > block.lr.N/4 {
		return errors.Errorf("meta.Block.parseVorbisComment: %d tags do not fit in the remaining %d bytes", x, block.lr.N)
	}
	if x < 1 {
		block.Body = comment
		return nil
	}
	comment.Tags = make([][2]string, x)
	for i := range comment.Tags {
		// 32 bits: vector length
		if err := binary.Read(block.lr, binary.LittleEndian, &x); err != nil {
			return errors.WithStack(unexpected(err))
		}

		// (vector length): vector.
		buf, err := block.readBytes(int64(x))
		if err != nil {
			return err
		}
		vector := string(buf)

		// Parse tag, which has the following format:
		//    NAME=VALUE
		pos := strings.Index(vector, "=")
		if pos == -1 {
			return errors.Errorf("meta.Block.parseVorbisComment: unable to locate '=' in vector %q", vector)
		}
		comment.Tags[i][0] = vector[:pos]
		comment.Tags[i][1] = vector[pos+1:]
	}
	block.Body = comment
	return nil
}
