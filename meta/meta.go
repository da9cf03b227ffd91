// Package meta contains functions for parsing FLAC metadata.
package meta

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/pkg/errors"
)

// A Block contains the header and body of a metadata block.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block
type Block struct {
	// Metadata block header.
	Header
	// Metadata block body of type *StreamInfo, *Application, ... etc. Body is
	// initially nil, and gets populated by a call to Block.Parse. Padding
	// blocks keep a nil body.
	Body interface{}
	// Underlying io.Reader; limited by the length of the block body.
	lr *io.LimitedReader
}

// New creates a new Block for accessing the metadata of r. The body of the
// block, as described by hdr, is read from r. Call Block.Parse to parse the
// body, or Block.Skip to ignore it.
func New(hdr Header, r io.Reader) *Block {
	return &Block{
		Header: hdr,
		lr:     &io.LimitedReader{R: r, N: hdr.Length},
	}
}

// Parse reads and parses the header and body of a metadata block. Use New for
// additional granularity.
func Parse(r io.Reader) (block *Block, err error) {
	hdr, err := ParseHeader(r)
	if err != nil {
		return nil, err
	}
	block = New(hdr, r)
	if err := block.Parse(); err != nil {
		return block, err
	}
	return block, nil
}

// Errors returned by Parse.
var (
	ErrReservedType = errors.New("meta.Block.Parse: reserved block type")
	ErrInvalidType  = errors.New("meta.Block.Parse: invalid block type")
)

// Parse reads and parses the metadata block body. Bytes of the body left over
// by the type specific parser are discarded.
func (block *Block) Parse() error {
	var err error
	switch block.Type {
	case TypeStreamInfo:
		err = block.parseStreamInfo()
	case TypePadding:
		err = block.verifyPadding()
	case TypeApplication:
		err = block.parseApplication()
	case TypeSeekTable:
		err = block.parseSeekTable()
	case TypeVorbisComment:
		err = block.parseVorbisComment()
	case TypeCueSheet:
		err = block.parseCueSheet()
	case TypePicture:
		err = block.parsePicture()
	case TypeInvalid:
		return ErrInvalidType
	default:
		err = block.parseUnknown()
	}
	if err != nil {
		return err
	}
	return block.Skip()
}

// Skip ignores the contents of the metadata block body.
func (block *Block) Skip() error {
	if block.lr.N == 0 {
		return nil
	}
	if _, err := io.Copy(ioutil.Discard, block.lr); err != nil {
		return errors.WithStack(err)
	}
	if block.lr.N != 0 {
		return errors.WithStack(io.ErrUnexpectedEOF)
	}
	return nil
}

// An Unknown metadata block holds the raw body of a block of reserved type.
type Unknown struct {
	// Raw block body.
	Data []byte
}

// parseUnknown reads the body of a metadata block of reserved type.
func (block *Block) parseUnknown() error {
	data, err := block.readBytes(block.lr.N)
	if err != nil {
		return err
	}
	block.Body = &Unknown{Data: data}
	return nil
}

// Header contains information about the type and length of a metadata block.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_header
type Header struct {
	// Metadata block body type.
	Type Type
	// Length of body data in bytes.
	Length int64
	// IsLast specifies if the block is the last metadata block.
	IsLast bool
}

// HeaderSize is the size in bytes of an encoded metadata block header.
const HeaderSize = 4

// ParseHeader reads and parses the header of a metadata block.
//
// Block header format (pseudo code):
//
//	type METADATA_BLOCK_HEADER struct {
//	   is_last    bool
//	   block_type uint7
//	   length     uint24
//	}
func ParseHeader(r io.Reader) (hdr Header, err error) {
	br := bits.NewReader(r)
	// 1 bit: IsLast.
	x, err := br.Read(1)
	if err != nil {
		return hdr, err
	}
	hdr.IsLast = x != 0

	// 7 bits: Type.
	//    0:     Streaminfo
	//    1:     Padding
	//    2:     Application
	//    3:     Seektable
	//    4:     Vorbis_comment
	//    5:     Cuesheet
	//    6:     Picture
	//    7-126: reserved
	//    127:   invalid, to avoid confusion with a frame sync code
	x, err = br.Read(7)
	if err != nil {
		return hdr, unexpected(err)
	}
	hdr.Type = Type(x)

	// 24 bits: Length.
	x, err = br.Read(24)
	if err != nil {
		return hdr, unexpected(err)
	}
	hdr.Length = int64(x)
	return hdr, nil
}

// Type represents the type of a metadata block body.
type Type uint8

// Metadata block body types.
const (
	TypeStreamInfo    Type = 0
	TypePadding       Type = 1
	TypeApplication   Type = 2
	TypeSeekTable     Type = 3
	TypeVorbisComment Type = 4
	TypeCueSheet      Type = 5
	TypePicture       Type = 6
	TypeInvalid       Type = 127
)

// IsReserved reports whether t is one of the reserved block types 7-126.
func (t Type) IsReserved() bool {
	return t > TypePicture && t < TypeInvalid
}

func (t Type) String() string {
	switch t {
	case TypeStreamInfo:
		return "stream info"
	case TypePadding:
		return "padding"
	case TypeApplication:
		return "application"
	case TypeSeekTable:
		return "seek table"
	case TypeVorbisComment:
		return "vorbis comment"
	case TypeCueSheet:
		return "cue sheet"
	case TypePicture:
		return "picture"
	case TypeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("<reserved block type %d>", uint8(t))
	}
}

// readBytes reads and returns exactly n bytes of the block body. Lengths
// exceeding the remainder of the body are rejected before allocation.
func (block *Block) readBytes(n int64) ([]byte, error) {
	if n > block.lr.N {
		return nil, errors.Errorf("meta.Block.readBytes: length %d exceeds remaining %d bytes of %v block", n, block.lr.N, block.Type)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(block.lr, buf); err != nil {
		return nil, errors.WithStack(unexpected(err))
	}
	return buf, nil
}

// unexpected returns io.ErrUnexpectedEOF if err is io.EOF, and returns err
// otherwise.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
