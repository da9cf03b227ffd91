package meta

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// SeekTable contains one or more pre-calculated audio frame seek points.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_seektable
type SeekTable struct {
	// One or more seek points.
	Points []SeekPoint
}

// PlaceholderPoint represents the sample number used to specify placeholders
// in the seek table.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

// SeekPointSize is the size in bytes of an encoded seek point.
const SeekPointSize = 18

// ErrInvalidSeekTable is returned for seek tables whose points are not sorted
// in ascending order of sample number.
var ErrInvalidSeekTable = errors.New("meta.Block.parseSeekTable: invalid seek table")

// parseSeekTable reads and parses the body of a SeekTable metadata block.
//
// Seek table format (pseudo code):
//
//	type METADATA_BLOCK_SEEKTABLE struct {
//	   // The number of seek points is implied by the metadata header 'length'
//	   // field, i.e. equal to length / 18.
//	   points []point
//	}
//
//	type point struct {
//	   sample_num uint64
//	   offset     uint64
//	   n_samples  uint16
//	}
func (block *Block) parseSeekTable() error {
	// The number of seek points is derived from the header length, divided by
	// the size of a SeekPoint; which is 18 bytes.
	if block.Length%SeekPointSize != 0 {
		return errors.Errorf("meta.Block.parseSeekTable: total length of seek points (%d) is not a multiple of %d", block.Length, SeekPointSize)
	}
	n := block.Length / SeekPointSize
	if n < 1 {
		return errors.New("meta.Block.parseSeekTable: at least one seek point is required")
	}
	table := &SeekTable{Points: make([]SeekPoint, n)}
	for i := range table.Points {
		if err := binary.Read(block.lr, binary.BigEndian, &table.Points[i]); err != nil {
			return errors.WithStack(unexpected(err))
		}
	}
	if err := table.validate(); err != nil {
		return err
	}
	block.Body = table
	return nil
}

// validate checks that seek points are sorted in ascending order of sample
// number, with placeholder points last. Duplicate sample numbers are
// tolerated.
func (table *SeekTable) validate() error {
	for i := 1; i < len(table.Points); i++ {
		prev, cur := table.Points[i-1].SampleNum, table.Points[i].SampleNum
		if cur < prev {
			return errors.Wrapf(ErrInvalidSeekTable, "seek point %d (sample %d) precedes seek point %d (sample %d)", i, cur, i-1, prev)
		}
	}
	return nil
}

// Search returns the last seek point whose sample number is less than or equal
// to sample. Placeholder points are never returned.
func (table *SeekTable) Search(sample uint64) (SeekPoint, bool) {
	// Points are sorted, so placeholders are trailing.
	n := sort.Search(len(table.Points), func(i int) bool {
		return table.Points[i].SampleNum == PlaceholderPoint
	})
	points := table.Points[:n]
	i := sort.Search(len(points), func(i int) bool {
		return points[i].SampleNum > sample
	})
	if i == 0 {
		return SeekPoint{}, false
	}
	return points[i-1], true
}

// A SeekPoint specifies the byte offset and initial sample number of a given
// target frame.
//
// ref: https://www.xiph.org/flac/format.html#seekpoint
type SeekPoint struct {
	// Sample number of the first sample in the target frame, or
	// 0xFFFFFFFFFFFFFFFF for a placeholder point.
	SampleNum uint64
	// Offset in bytes from the first byte of the first frame header to the first
	// byte of the target frame's header.
	Offset uint64
	// Number of samples in the target frame.
	NSamples uint16
}

// IsPlaceholder reports whether the seek point is a placeholder.
func (point SeekPoint) IsPlaceholder() bool {
	return point.SampleNum == PlaceholderPoint
}
