package flactest

import (
	mathbits "math/bits"

	"github.com/icza/bitio"
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/internal/bits"
	"github.com/mewkiz/pkg/errutil"
)

// firCoeffs and firShift define the order 2 linear predictor used by
// MethodFIR; equivalent to the order 2 fixed predictor.
var firCoeffs = []int32{4, -2}

const (
	firShift = 1
	firPrec  = 5
)

// subframe holds the encoding parameters of a subframe.
type subframe struct {
	frame.SubHeader
	// Sample size in bits-per-sample, excluding wasted bits.
	bps uint
	// Audio samples, shifted right by the wasted bits.
	samples []int32
	// Rice partition order.
	partOrder uint
}

// encodeSubframe encodes the samples of a subframe, writing to bw.
func (enc *encoder) encodeSubframe(bw *bitio.Writer, bps uint, samples []int32) error {
	sf := &subframe{bps: bps}
	sf.Wasted = wastedBits(samples, enc.cfg.Wasted)
	sf.bps -= sf.Wasted
	sf.samples = make([]int32, len(samples))
	for i, sample := range samples {
		sf.samples[i] = sample >> sf.Wasted
	}
	sf.ResidualCodingMethod = frame.ResidualCodingMethodRice1
	if enc.cfg.Rice2 {
		sf.ResidualCodingMethod = frame.ResidualCodingMethodRice2
	}

	switch enc.cfg.Method {
	case MethodAuto:
		analyzeSubframe(sf)
	case MethodVerbatim:
		sf.Pred = frame.PredVerbatim
	case MethodFixed:
		sf.Pred = frame.PredFixed
		sf.Order = 2
	case MethodFIR:
		sf.Pred = frame.PredFIR
		sf.Order = len(firCoeffs)
		sf.Coeffs = firCoeffs
		sf.CoeffShift = firShift
		sf.CoeffPrec = firPrec
	}
	if sf.Order >= len(sf.samples) {
		sf.Pred = frame.PredVerbatim
		sf.Order = 0
	}
	sf.partOrder = partitionOrder(len(sf.samples), sf.Order, enc.cfg.PartOrder)

	// Encode subframe header.
	if err := encodeSubframeHeader(bw, sf.SubHeader); err != nil {
		return errutil.Err(err)
	}

	// Encode audio samples.
	switch sf.Pred {
	case frame.PredConstant:
		return encodeConstantSamples(bw, sf)
	case frame.PredVerbatim:
		return encodeVerbatimSamples(bw, sf)
	case frame.PredFixed:
		return encodeLPCSamples(bw, sf, frame.FixedCoeffs[sf.Order], 0)
	default:
		return encodeLPCSamples(bw, sf, sf.Coeffs, sf.CoeffShift)
	}
}

// wastedBits returns the number of low-order zero bits shared by all samples,
// at most max.
func wastedBits(samples []int32, max uint) uint {
	var or int32
	for _, sample := range samples {
		or |= sample
	}
	if or == 0 {
		return max
	}
	if tz := uint(mathbits.TrailingZeros32(uint32(or))); tz < max {
		return tz
	}
	return max
}

// partitionOrder returns the largest partition order up to max, which divides
// n samples into partitions holding at least order samples.
func partitionOrder(n, order int, max uint) uint {
	for p := max; p > 0; p-- {
		nparts := 1 << p
		if n%nparts == 0 && n/nparts >= order {
			return p
		}
	}
	return 0
}

// --- [ Subframe header ] -----------------------------------------------------

// encodeSubframeHeader encodes the given subframe header, writing to bw.
func encodeSubframeHeader(bw *bitio.Writer, subHdr frame.SubHeader) error {
	// Zero bit padding, to prevent sync-fooling string of 1s.
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	// Subframe type:
	//     000000 : SUBFRAME_CONSTANT
	//     000001 : SUBFRAME_VERBATIM
	//     001xxx : if(xxx <= 4) SUBFRAME_FIXED, xxx=order ; else reserved
	//     1xxxxx : SUBFRAME_LPC, xxxxx=order-1
	var x uint64
	switch subHdr.Pred {
	case frame.PredConstant:
		x = 0x00
	case frame.PredVerbatim:
		x = 0x01
	case frame.PredFixed:
		x = 0x08 | uint64(subHdr.Order)
	case frame.PredFIR:
		x = 0x20 | uint64(subHdr.Order-1)
	}
	if err := bw.WriteBits(x, 6); err != nil {
		return errutil.Err(err)
	}

	// <1+k> 'Wasted bits-per-sample' flag:
	//
	//     0 : no wasted bits-per-sample in source subblock, k=0
	//     1 : k wasted bits-per-sample in source subblock, k-1 follows, unary coded
	hasWastedBits := subHdr.Wasted > 0
	if err := bw.WriteBool(hasWastedBits); err != nil {
		return errutil.Err(err)
	}
	if hasWastedBits {
		if err := bits.WriteUnary(bw, uint64(subHdr.Wasted-1)); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// writeSample writes the lower n bits of the two's complement representation of
// sample.
func writeSample(bw *bitio.Writer, sample int32, n uint) error {
	x := uint64(int64(sample)) & (1<<n - 1)
	return bw.WriteBits(x, uint8(n))
}

// --- [ Constant samples ] ----------------------------------------------------

// encodeConstantSamples stores the constant sample of the subframe, writing to
// bw.
func encodeConstantSamples(bw *bitio.Writer, sf *subframe) error {
	sample := sf.samples[0]
	for _, s := range sf.samples[1:] {
		if sample != s {
			return errutil.Newf("constant sample mismatch; expected %v, got %v", sample, s)
		}
	}
	if err := writeSample(bw, sample, sf.bps); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// --- [ Verbatim samples ] ----------------------------------------------------

// encodeVerbatimSamples stores the samples of the subframe verbatim, writing to
// bw.
func encodeVerbatimSamples(bw *bitio.Writer, sf *subframe) error {
	for _, sample := range sf.samples {
		if err := writeSample(bw, sample, sf.bps); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// --- [ LPC samples ] ---------------------------------------------------------

// encodeLPCSamples stores the samples of the subframe using linear prediction
// with the given coefficients, writing to bw. Coefficients of FIR subframes
// are written after the warm-up samples.
func encodeLPCSamples(bw *bitio.Writer, sf *subframe, coeffs []int32, shift int32) error {
	// Encode unencoded warm-up samples.
	for _, sample := range sf.samples[:sf.Order] {
		if err := writeSample(bw, sample, sf.bps); err != nil {
			return errutil.Err(err)
		}
	}

	if sf.Pred == frame.PredFIR {
		// 4 bits: (coefficients' precision in bits) - 1.
		if err := bw.WriteBits(uint64(sf.CoeffPrec-1), 4); err != nil {
			return errutil.Err(err)
		}
		// 5 bits: predictor coefficient shift needed in bits.
		if err := bw.WriteBits(uint64(shift), 5); err != nil {
			return errutil.Err(err)
		}
		for _, c := range coeffs {
			if err := writeSample(bw, c, sf.CoeffPrec); err != nil {
				return errutil.Err(err)
			}
		}
	}

	// Compute residuals (signal errors of the prediction) between audio
	// samples and LPC predicted audio samples.
	residuals := getLPCResiduals(sf.samples, coeffs, shift)
	if err := encodeResiduals(bw, sf, residuals); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// encodeResiduals encodes the residuals (prediction method error signals) of
// the subframe.
//
// ref: https://www.xiph.org/flac/format.html#residual
func encodeResiduals(bw *bitio.Writer, sf *subframe, residuals []int32) error {
	// 2 bits: Residual coding method.
	//    00: Rice coding with a 4-bit Rice parameter.
	//    01: Rice coding with a 5-bit Rice parameter.
	if err := bw.WriteBits(uint64(sf.ResidualCodingMethod), 2); err != nil {
		return errutil.Err(err)
	}
	paramSize := uint(4)
	if sf.ResidualCodingMethod == frame.ResidualCodingMethodRice2 {
		paramSize = 5
	}
	return encodeRicePart(bw, sf, paramSize, residuals)
}

// encodeRicePart encodes the Rice partitions of residuals from the subframe,
// using a Rice parameter of the specified size in bits. Each partition uses
// the cheapest Rice parameter, or the escape code when storing the residuals
// unencoded is cheaper.
//
// ref: https://www.xiph.org/flac/format.html#partitioned_rice
// ref: https://www.xiph.org/flac/format.html#partitioned_rice2
func encodeRicePart(bw *bitio.Writer, sf *subframe, paramSize uint, residuals []int32) error {
	// 4 bits: Partition order.
	if err := bw.WriteBits(uint64(sf.partOrder), 4); err != nil {
		return errutil.Err(err)
	}

	escape := uint(1)<<paramSize - 1
	nparts := 1 << sf.partOrder
	partLen := len(sf.samples) / nparts
	for i := 0; i < nparts; i++ {
		// Determine the number of Rice encoded samples in the partition.
		nsamples := partLen
		if i == 0 {
			nsamples -= sf.Order
		}
		part := residuals[:nsamples]
		residuals = residuals[nsamples:]

		k, cost := chooseRice(part, escape-1)
		if nbits := escapeBits(part); nbits <= 31 && uint64(5+nbits*uint(len(part))) < cost {
			// Escape code, followed by 5 bits of sample size and the
			// unencoded residuals.
			if err := bw.WriteBits(uint64(escape), uint8(paramSize)); err != nil {
				return errutil.Err(err)
			}
			if err := bw.WriteBits(uint64(nbits), 5); err != nil {
				return errutil.Err(err)
			}
			if nbits == 0 {
				continue
			}
			for _, residual := range part {
				if err := writeSample(bw, residual, nbits); err != nil {
					return errutil.Err(err)
				}
			}
			continue
		}

		// (4 or 5) bits: Rice parameter.
		if err := bw.WriteBits(uint64(k), uint8(paramSize)); err != nil {
			return errutil.Err(err)
		}
		for _, residual := range part {
			if err := encodeRiceResidual(bw, k, residual); err != nil {
				return errutil.Err(err)
			}
		}
	}
	return nil
}

// encodeRiceResidual encodes a Rice residual (error signal).
func encodeRiceResidual(bw *bitio.Writer, k uint, residual int32) error {
	// ZigZag encode.
	folded := bits.EncodeZigZag(residual)

	// unfold into low- and high.
	high := folded >> k
	low := folded & (1<<k - 1)

	// Write unary encoded most significant bits.
	if err := bits.WriteUnary(bw, uint64(high)); err != nil {
		return errutil.Err(err)
	}

	// Write binary encoded least significant bits.
	if err := bw.WriteBits(uint64(low), uint8(k)); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// getLPCResiduals returns the residuals (signal errors of the prediction)
// between the given audio samples and the LPC predicted audio samples, using
// the coefficients of a given polynomial and len(coeffs) unencoded warm-up
// samples. The arithmetic wraps around like the decoder's.
func getLPCResiduals(samples, coeffs []int32, shift int32) []int32 {
	order := len(coeffs)
	residuals := make([]int32, 0, len(samples)-order)
	for i := order; i < len(samples); i++ {
		var sample int64
		for j, c := range coeffs {
			sample += int64(c) * int64(samples[i-j-1])
		}
		residuals = append(residuals, samples[i]-int32(sample>>uint(shift)))
	}
	return residuals
}

// --- [ Analysis ] ------------------------------------------------------------

// chooseRice returns the Rice parameter k, at most max, that minimizes the
// encoded length of residuals, and the resulting length in bits.
func chooseRice(residuals []int32, max uint) (uint, uint64) {
	bestK := uint(0)
	bestBits := ^uint64(0)
	for k := uint(0); k <= max; k++ {
		var n uint64
		for _, r := range residuals {
			folded := bits.EncodeZigZag(r)
			// unary + stop bit + k LSBs
			n += uint64(folded>>k) + 1 + uint64(k)
		}
		if n < bestBits {
			bestBits = n
			bestK = k
		}
	}
	return bestK, bestBits
}

// escapeBits returns the number of bits needed to store each of the residuals
// in two's complement; 0 if all are zero.
func escapeBits(residuals []int32) uint {
	var n uint
	for _, r := range residuals {
		if r < 0 {
			r = ^r
		}
		if m := uint(mathbits.Len32(uint32(r))) + 1; m > n {
			n = m
		}
	}
	return n
}

// analyzeSubframe decides on the cheapest of constant, verbatim and fixed
// prediction for the subframe, assuming a single Rice partition.
func analyzeSubframe(sf *subframe) {
	samples := sf.samples
	n := len(samples)
	sf.Pred = frame.PredVerbatim
	sf.Order = 0

	// Constant predictor.
	allEqual := true
	for _, s := range samples[1:] {
		if s != samples[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		sf.Pred = frame.PredConstant
		return
	}

	// Verbatim predictor.
	best := uint64(n) * uint64(sf.bps)

	// Fixed predictor, orders 0 through 4.
	for order := 0; order <= 4 && order < n; order++ {
		residuals := getLPCResiduals(samples, frame.FixedCoeffs[order], 0)
		_, cost := chooseRice(residuals, 14)
		cost += uint64(order) * uint64(sf.bps)
		if cost < best {
			best = cost
			sf.Pred = frame.PredFixed
			sf.Order = order
		}
	}
}
