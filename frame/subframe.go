package frame

import (
	"fmt"

	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/pkg/errors"
)

// A Subframe contains the encoded audio samples from one channel of an audio
// block (a part of the audio stream).
//
// ref: https://www.xiph.org/flac/format.html#subframe
type Subframe struct {
	// Subframe header.
	SubHeader
	// Decoded audio samples of the subframe; one per inter-channel sample of
	// the block.
	Samples []int32
}

// SubHeader specifies the prediction method and order of a subframe.
//
// ref: https://www.xiph.org/flac/format.html#subframe_header
type SubHeader struct {
	// Specifies the prediction method used to encode the audio sample of the
	// subframe.
	Pred Pred
	// Prediction order used by fixed and FIR linear prediction decoding.
	Order int
	// Wasted bits-per-sample.
	Wasted uint
	// Residual coding method used by fixed and FIR linear prediction decoding.
	ResidualCodingMethod ResidualCodingMethod
	// Coefficients' precision in bits used by FIR linear prediction decoding.
	CoeffPrec uint
	// Predictor coefficient shift needed in bits used by FIR linear prediction
	// decoding.
	CoeffShift int32
	// Predictor coefficients used by FIR linear prediction decoding.
	Coeffs []int32
}

// Pred specifies a prediction method.
type Pred uint8

// Prediction methods.
const (
	// PredConstant specifies that the subframe contains a constant sound. The
	// audio samples are encoded using run-length encoding. Since every audio
	// sample has the same constant value, a single unencoded audio sample is
	// stored in practice. It is replicated a number of times, as specified by
	// BlockSize in the frame header.
	PredConstant Pred = iota
	// PredVerbatim specifies that the subframe contains unencoded audio samples.
	// Random sound is often stored verbatim, since no prediction method can
	// compress it sufficiently.
	PredVerbatim
	// PredFixed specifies that the subframe contains linear prediction coded
	// audio samples. The coefficients of the prediction polynomial are selected
	// from a fixed set, and can represent 0th through fourth-order polynomials.
	// The prediction order (0 through 4) is stored within the subframe along
	// with the same number of unencoded warm-up samples. The remaining samples
	// are encoded using Rice encoding.
	PredFixed
	// PredFIR specifies that the subframe contains linear prediction coded audio
	// samples. The coefficients of the prediction polynomial are stored in the
	// subframe, and can represent 1st through 32nd-order polynomials. The
	// prediction order (1 through 32) is stored within the subframe along with
	// the same number of unencoded warm-up samples. The remaining samples are
	// encoded using Rice encoding.
	PredFIR
)

func (pred Pred) String() string {
	switch pred {
	case PredConstant:
		return "constant"
	case PredVerbatim:
		return "verbatim"
	case PredFixed:
		return "fixed"
	case PredFIR:
		return "FIR"
	}
	return fmt.Sprintf("<unknown prediction method %d>", uint8(pred))
}

// ResidualCodingMethod specifies a residual coding method.
type ResidualCodingMethod uint8

// Residual coding methods.
const (
	// Rice coding with a 4-bit Rice parameter (rice1).
	ResidualCodingMethodRice1 ResidualCodingMethod = 0
	// Rice coding with a 5-bit Rice parameter (rice2).
	ResidualCodingMethodRice2 ResidualCodingMethod = 1
)

// subframeError returns an error with cause ErrInvalidSubframe.
func subframeError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidSubframe, format, args...)
}

// parseSubframe reads and parses the header, and the audio samples of a
// subframe.
func (frame *Frame) parseSubframe(br *bits.Reader, bps uint) (*Subframe, error) {
	if bps > 32 {
		return nil, subframeError("frame.Frame.parseSubframe: unsupported sample size of %d bits", bps)
	}
	// Parse subframe header.
	subframe := new(Subframe)
	if err := subframe.parseHeader(br); err != nil {
		return subframe, err
	}
	// Adjust bps of subframe for wasted bits-per-sample.
	if subframe.Wasted >= bps {
		return subframe, subframeError("frame.Frame.parseSubframe: %d wasted bits-per-sample of %d bit sample size", subframe.Wasted, bps)
	}
	bps -= subframe.Wasted

	// Decode subframe audio samples.
	n := int(frame.BlockSize)
	if subframe.Order > n {
		return subframe, subframeError("frame.Frame.parseSubframe: prediction order %d exceeds block size %d", subframe.Order, n)
	}
	subframe.Samples = make([]int32, 0, n)
	var err error
	switch subframe.Pred {
	case PredConstant:
		err = subframe.decodeConstant(br, bps, n)
	case PredVerbatim:
		err = subframe.decodeVerbatim(br, bps, n)
	case PredFixed:
		err = subframe.decodeFixed(br, bps, n)
	case PredFIR:
		err = subframe.decodeFIR(br, bps, n)
	}

	// Left shift to account for wasted bits-per-sample.
	if subframe.Wasted > 0 {
		for i := range subframe.Samples {
			subframe.Samples[i] <<= subframe.Wasted
		}
	}
	return subframe, err
}

// parseHeader reads and parses the header of a subframe.
func (subframe *Subframe) parseHeader(br *bits.Reader) error {
	// 1 bit: zero-padding.
	x, err := br.Read(1)
	if err != nil {
		return unexpected(err)
	}
	if x != 0 {
		return subframeError("frame.Subframe.parseHeader: non-zero padding")
	}

	// 6 bits: Pred.
	x, err = br.Read(6)
	if err != nil {
		return unexpected(err)
	}
	// The 6 bits are used to specify the prediction method and order as
	// follows:
	//    000000: Constant prediction method.
	//    000001: Verbatim prediction method.
	//    00001x: reserved.
	//    0001xx: reserved.
	//    001xxx:
	//       if (xxx <= 4)
	//          Fixed prediction method; xxx=order
	//       else
	//          reserved.
	//    01xxxx: reserved.
	//    1xxxxx: FIR prediction method; xxxxx=order-1
	switch {
	case x < 1:
		// 000000: Constant prediction method.
		subframe.Pred = PredConstant
	case x < 2:
		// 000001: Verbatim prediction method.
		subframe.Pred = PredVerbatim
	case x < 8:
		// 00001x: reserved.
		// 0001xx: reserved.
		return subframeError("frame.Subframe.parseHeader: reserved prediction method bit pattern (%06b)", x)
	case x < 16:
		// 001xxx:
		//    if (xxx <= 4)
		//       Fixed prediction method; xxx=order
		//    else
		//       reserved.
		order := int(x & 0x07)
		if order > 4 {
			return subframeError("frame.Subframe.parseHeader: reserved prediction method bit pattern (%06b)", x)
		}
		subframe.Pred = PredFixed
		subframe.Order = order
	case x < 32:
		// 01xxxx: reserved.
		return subframeError("frame.Subframe.parseHeader: reserved prediction method bit pattern (%06b)", x)
	default:
		// 1xxxxx: FIR prediction method; xxxxx=order-1
		subframe.Pred = PredFIR
		subframe.Order = int(x&0x1F) + 1
	}

	// 1 bit: hasWastedBits.
	x, err = br.Read(1)
	if err != nil {
		return unexpected(err)
	}
	if x != 0 {
		// k wasted bits-per-sample in source subblock, k-1 follows, unary coded;
		// e.g. k=3 => 001 follows, k=7 => 0000001 follows.
		x, err = br.ReadUnary()
		if err != nil {
			return unexpected(err)
		}
		subframe.Wasted = uint(x) + 1
	}
	return nil
}

// decodeConstant reads an unencoded audio sample of the subframe. Each sample
// of the subframe has this constant value. The constant encoding can be
// thought of as run-length encoding.
//
// ref: https://www.xiph.org/flac/format.html#subframe_constant
func (subframe *Subframe) decodeConstant(br *bits.Reader, bps uint, n int) error {
	// (bits-per-sample) bits: Unencoded constant value of the subblock.
	x, err := br.Read(bps)
	if err != nil {
		return unexpected(err)
	}

	// Each sample of the subframe has the same constant value.
	sample := int32(bits.IntN(x, bps))
	for i := 0; i < n; i++ {
		subframe.Samples = append(subframe.Samples, sample)
	}
	return nil
}

// decodeVerbatim reads the unencoded audio samples of the subframe.
//
// ref: https://www.xiph.org/flac/format.html#subframe_verbatim
func (subframe *Subframe) decodeVerbatim(br *bits.Reader, bps uint, n int) error {
	// Parse the unencoded audio samples of the subframe.
	for i := 0; i < n; i++ {
		// (bits-per-sample) bits: Unencoded constant value of the subblock.
		x, err := br.Read(bps)
		if err != nil {
			return unexpected(err)
		}
		subframe.Samples = append(subframe.Samples, int32(bits.IntN(x, bps)))
	}
	return nil
}

// FixedCoeffs maps from prediction order to the LPC coefficients used in fixed
// encoding.
//
//	x_0[n] = 0
//	x_1[n] = x[n-1]
//	x_2[n] = 2*x[n-1] - x[n-2]
//	x_3[n] = 3*x[n-1] - 3*x[n-2] + x[n-3]
//	x_4[n] = 4*x[n-1] - 6*x[n-2] + 4*x[n-3] - x[n-4]
var FixedCoeffs = [...][]int32{
	// ref: Section 2.2 of http://www.hpl.hp.com/techreports/1999/HPL-1999-144.pdf
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	// ref: Data Compression: The Complete Reference (7.10.1)
	4: {4, -6, 4, -1},
}

// decodeFixed decodes the linear prediction coded samples of the subframe,
// using a fixed set of predefined polynomial coefficients.
//
// ref: https://www.xiph.org/flac/format.html#subframe_fixed
func (subframe *Subframe) decodeFixed(br *bits.Reader, bps uint, n int) error {
	// Parse unencoded warm-up samples.
	for i := 0; i < subframe.Order; i++ {
		// (bits-per-sample) bits: Unencoded warm-up sample.
		x, err := br.Read(bps)
		if err != nil {
			return unexpected(err)
		}
		subframe.Samples = append(subframe.Samples, int32(bits.IntN(x, bps)))
	}

	// Decode subframe residuals.
	if err := subframe.decodeResiduals(br, n); err != nil {
		return err
	}

	// Predict the audio samples of the subframe using a polynomial with
	// predefined coefficients of a given order. Correct signal errors using the
	// decoded residuals.
	if subframe.Order == 0 {
		return nil
	}
	subframe.lpcDecode(FixedCoeffs[subframe.Order], 0)
	return nil
}

// decodeFIR decodes the linear prediction coded samples of the subframe, using
// polynomial coefficients stored in the stream.
//
// ref: https://www.xiph.org/flac/format.html#subframe_lpc
func (subframe *Subframe) decodeFIR(br *bits.Reader, bps uint, n int) error {
	// Parse unencoded warm-up samples.
	for i := 0; i < subframe.Order; i++ {
		// (bits-per-sample) bits: Unencoded warm-up sample.
		x, err := br.Read(bps)
		if err != nil {
			return unexpected(err)
		}
		subframe.Samples = append(subframe.Samples, int32(bits.IntN(x, bps)))
	}

	// 4 bits: (coefficients' precision in bits) - 1.
	x, err := br.Read(4)
	if err != nil {
		return unexpected(err)
	}
	if x == 0xF {
		return subframeError("frame.Subframe.decodeFIR: invalid coefficient precision bit pattern (1111)")
	}
	prec := uint(x) + 1
	subframe.CoeffPrec = prec

	// 5 bits: predictor coefficient shift needed in bits.
	x, err = br.Read(5)
	if err != nil {
		return unexpected(err)
	}
	shift := int32(bits.IntN(x, 5))
	if shift < 0 {
		return subframeError("frame.Subframe.decodeFIR: negative coefficient shift (%d)", shift)
	}
	subframe.CoeffShift = shift

	// Parse coefficients.
	coeffs := make([]int32, subframe.Order)
	for i := range coeffs {
		// (prec) bits: Predictor coefficient.
		x, err = br.Read(prec)
		if err != nil {
			return unexpected(err)
		}
		coeffs[i] = int32(bits.IntN(x, prec))
	}
	subframe.Coeffs = coeffs

	// Decode subframe residuals.
	if err := subframe.decodeResiduals(br, n); err != nil {
		return err
	}

	// Predict the audio samples of the subframe using a polynomial with
	// predefined coefficients of a given order. Correct signal errors using the
	// decoded residuals.
	subframe.lpcDecode(coeffs, shift)
	return nil
}

// decodeResiduals decodes the residuals (signal errors) of the subframe and
// appends them to the warm-up samples.
//
// ref: https://www.xiph.org/flac/format.html#residual
func (subframe *Subframe) decodeResiduals(br *bits.Reader, n int) error {
	// 2 bits: Residual coding method.
	x, err := br.Read(2)
	if err != nil {
		return unexpected(err)
	}
	// The 2 bits are used to specify the residual coding method as follows:
	//    00: Rice coding with a 4-bit Rice parameter.
	//    01: Rice coding with a 5-bit Rice parameter.
	//    10: reserved.
	//    11: reserved.
	switch x {
	case 0x0:
		subframe.ResidualCodingMethod = ResidualCodingMethodRice1
		return subframe.decodeRicePart(br, 4, n)
	case 0x1:
		subframe.ResidualCodingMethod = ResidualCodingMethodRice2
		return subframe.decodeRicePart(br, 5, n)
	default:
		return subframeError("frame.Subframe.decodeResiduals: reserved residual coding method bit pattern (%02b)", x)
	}
}

// decodeRicePart decodes a Rice partition of encoded residuals from the
// subframe, using a Rice parameter of the specified size in bits.
//
// ref: https://www.xiph.org/flac/format.html#partitioned_rice
// ref: https://www.xiph.org/flac/format.html#partitioned_rice2
func (subframe *Subframe) decodeRicePart(br *bits.Reader, paramSize uint, n int) error {
	// 4 bits: Partition order.
	x, err := br.Read(4)
	if err != nil {
		return unexpected(err)
	}
	partOrder := uint(x)

	// Parse Rice partitions; in total 2^partOrder partitions.
	//
	// ref: https://www.xiph.org/flac/format.html#rice_partition
	// ref: https://www.xiph.org/flac/format.html#rice2_partition
	nparts := 1 << partOrder
	if n%nparts != 0 {
		return subframeError("frame.Subframe.decodeRicePart: block size %d not divisible by %d partitions", n, nparts)
	}
	partLen := n / nparts
	if partLen < subframe.Order {
		return subframeError("frame.Subframe.decodeRicePart: partition length %d below prediction order %d", partLen, subframe.Order)
	}
	escape := uint64(1)<<paramSize - 1
	for i := 0; i < nparts; i++ {
		// (4 or 5) bits: Rice parameter.
		param, err := br.Read(paramSize)
		if err != nil {
			return unexpected(err)
		}

		// Determine the number of Rice encoded samples in the partition.
		var nsamples int
		if i == 0 {
			nsamples = partLen - subframe.Order
		} else {
			nsamples = partLen
		}

		if param == escape {
			// 1111 or 11111: Escape code, meaning the partition is in unencoded
			// binary form using n bits per sample; n follows as a 5-bit number.
			x, err := br.Read(5)
			if err != nil {
				return unexpected(err)
			}
			nbits := uint(x)
			for j := 0; j < nsamples; j++ {
				var sample int32
				if nbits > 0 {
					x, err := br.Read(nbits)
					if err != nil {
						return unexpected(err)
					}
					sample = int32(bits.IntN(x, nbits))
				}
				subframe.Samples = append(subframe.Samples, sample)
			}
			continue
		}

		// Decode the Rice encoded residuals of the partition.
		for j := 0; j < nsamples; j++ {
			residual, err := subframe.decodeRiceResidual(br, uint(param))
			if err != nil {
				return err
			}
			subframe.Samples = append(subframe.Samples, residual)
		}
	}
	return nil
}

// decodeRiceResidual decodes and returns a Rice encoded residual (error
// signal).
func (subframe *Subframe) decodeRiceResidual(br *bits.Reader, k uint) (int32, error) {
	// Read unary encoded most significant bits.
	high, err := br.ReadUnary()
	if err != nil {
		return 0, unexpected(err)
	}
	if high > 1<<32 {
		return 0, subframeError("frame.Subframe.decodeRiceResidual: unary quotient %d exceeds 32 bits", high)
	}

	// Read binary encoded least significant bits.
	low, err := br.Read(k)
	if err != nil {
		return 0, unexpected(err)
	}
	folded := uint32(high<<k | low)

	// ZigZag decode.
	residual := bits.DecodeZigZag(folded)
	return residual, nil
}

// lpcDecode decodes a number of audio samples, using the given LPC
// coefficients, and corrects signal errors using the residuals stored in the
// subframe samples.
func (subframe *Subframe) lpcDecode(coeffs []int32, shift int32) {
	for i := subframe.Order; i < len(subframe.Samples); i++ {
		var sample int64
		for j, c := range coeffs {
			sample += int64(c) * int64(subframe.Samples[i-j-1])
		}
		subframe.Samples[i] += int32(sample >> uint(shift))
	}
}
