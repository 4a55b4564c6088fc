package ebm

import (
	"log"

	"gorgonia.org/tensor"
)

//addRecordFrom accumulates record iSrc of src into record iDst.
func (bt *BinTensor) addRecordFrom(iDst int, src *BinTensor, iSrc int) {
	dst := bt.binBase(iDst)
	from := src.binBase(iSrc)
	for k := 0; k < bt.cSlotsPerBin; k++ {
		bt.data[dst+k] += src.data[from+k]
	}
}

//projectDim collapses a bin tensor onto one of its dimensions, summing
//whole records. 2-D tensors go through a dense axis reduction; higher
//dimensions decode coordinates record by record.
func projectDim(bt *BinTensor, dim int) *BinTensor {
	proj := NewBinTensor([]int{bt.shape[dim]}, bt.cScores, bt.classification)
	if len(bt.shape) == 2 {
		//the flat layout a + cBinsA*b is row-major (cBinsB, cBinsA,
		//slots) with the record payload innermost
		dense := tensor.New(
			tensor.WithShape(bt.shape[1], bt.shape[0], bt.cSlotsPerBin),
			tensor.WithBacking(bt.data),
		)
		axis := 0
		if dim == 1 {
			axis = 1
		}
		summed, err := dense.Sum(axis)
		HandleError(err)
		copy(proj.data, summed.Data().([]float64))
		return proj
	}
	stride := 1
	for d := 0; d < dim; d++ {
		stride *= bt.shape[d]
	}
	for i := 0; i < bt.cTensorBins; i++ {
		coord := (i / stride) % bt.shape[dim]
		proj.addRecordFrom(coord, bt, i)
	}
	return proj
}

//interactionStrength reduces a fully aggregated interaction tensor to a
//nonnegative scalar: the best joint-split gain minus the sum of the best
//marginal main-effect gains, averaged by the total weight. A target that
//decomposes into independent marginals gains nothing jointly over its
//marginals and scores zero; NaN from overflowed sums passes through.
func interactionStrength(bt *BinTensor, minSamplesLeaf int, weightTotal float64) float64 {
	if len(bt.shape) < 2 {
		log.Panicf("interaction strength needs at least 2 dimensions, got %d", len(bt.shape))
	}
	maxBins := 0
	for _, cBins := range bt.shape {
		if cBins > maxBins {
			maxBins = cBins
		}
	}
	sweep := NewTreeSweepSet(maxBins, bt.cScores, bt.classification)

	marginal := 0.0
	for dim := range bt.shape {
		proj := projectDim(bt, dim)
		gain, _, ok := scanLeafRange(proj, 0, bt.shape[dim]-1, minSamplesLeaf, sweep, nil)
		if ok {
			marginal += gain
		}
	}

	var joint float64
	if len(bt.shape) == 2 {
		joint = FindBestSplitPair(bt, minSamplesLeaf, nil).Gain
	} else {
		joint = findBestSplitDense(bt, minSamplesLeaf).Gain
	}

	strength := (joint - marginal) / weightTotal
	if strength < 0 {
		strength = 0
	}
	return strength
}
