package ebm

import (
	"log"
	"math"

	"gorgonia.org/tensor"
)

//Bin record layout inside the flat tensor buffer, in float64 slots:
//slot 0 holds the sample count, slot 1 the accumulated weight, and the
//remaining slots hold one gradient sum per score, with a hessian sum
//interleaved after each gradient when the objective is a classification.
//The count is kept in the float buffer so a record is a plain contiguous
//span that can be copied or reduced with no layout knowledge beyond its
//slot width; integer counts stay exact below 2^53.
const (
	binSlotCount  = 0
	binSlotWeight = 1
	binSlotPairs  = 2
)

//BinSize returns the number of float64 slots occupied by one bin record.
func BinSize(cScores int, classification bool) int {
	if classification {
		return binSlotPairs + 2*cScores
	}
	return binSlotPairs + cScores
}

//IsOverflowBinSize reports whether a bin record of the requested width
//cannot be represented. Checked once per tensor before any allocation.
func IsOverflowBinSize(cScores int, classification bool) bool {
	if cScores < 1 {
		return true
	}
	perScore := 1
	if classification {
		perScore = 2
	}
	if cScores > (math.MaxInt-binSlotPairs)/perScore {
		return true
	}
	return false
}

//IsOverflowTensorSize reports whether a tensor of cTensorBins records of
//cSlotsPerBin slots each overflows the address space.
func IsOverflowTensorSize(cTensorBins, cSlotsPerBin int) bool {
	if cTensorBins < 1 || cSlotsPerBin < 1 {
		return true
	}
	return cTensorBins > math.MaxInt/cSlotsPerBin
}

//BinTensor is a D-dimensional histogram for one term, flattened row major
//with dimension 0 fastest. The records live in one dense float64 buffer.
type BinTensor struct {
	data           []float64
	cTensorBins    int
	cSlotsPerBin   int
	cScores        int
	classification bool
	shape          []int
}

//NewBinTensor allocates a zeroed tensor outside any arena. Used by tests,
//by the interaction projections and by the splitter's running accumulator.
func NewBinTensor(shape []int, cScores int, classification bool) *BinTensor {
	cTensorBins := 1
	for _, cBins := range shape {
		cTensorBins *= cBins
	}
	if IsOverflowBinSize(cScores, classification) {
		log.Panicf("bin record overflow: cScores=%d classification=%v", cScores, classification)
	}
	slots := BinSize(cScores, classification)
	if IsOverflowTensorSize(cTensorBins, slots) {
		log.Panicf("bin tensor overflow: %d bins of %d slots", cTensorBins, slots)
	}
	backing := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(cTensorBins, slots))
	return &BinTensor{
		data:           backing.Data().([]float64),
		cTensorBins:    cTensorBins,
		cSlotsPerBin:   slots,
		cScores:        cScores,
		classification: classification,
		shape:          append([]int(nil), shape...),
	}
}

//Reset zeroes every record so the tensor can be aggregated into again.
func (bt *BinTensor) Reset() {
	for i := range bt.data {
		bt.data[i] = 0
	}
}

//CountTensorBins returns the number of bin records.
func (bt *BinTensor) CountTensorBins() int {
	return bt.cTensorBins
}

//CountScores returns the per-bin gradient pair count.
func (bt *BinTensor) CountScores() int {
	return bt.cScores
}

//Shape returns the per-dimension bin counts.
func (bt *BinTensor) Shape() []int {
	return bt.shape
}

//binBase returns the first slot of record i.
func (bt *BinTensor) binBase(i int) int {
	return i * bt.cSlotsPerBin
}

//Count returns the sample count of bin i.
func (bt *BinTensor) Count(i int) int {
	return int(bt.data[bt.binBase(i)+binSlotCount])
}

//Weight returns the accumulated weight of bin i.
func (bt *BinTensor) Weight(i int) float64 {
	return bt.data[bt.binBase(i)+binSlotWeight]
}

//SumGradients returns the gradient sum of score k in bin i.
func (bt *BinTensor) SumGradients(i, k int) float64 {
	if bt.classification {
		return bt.data[bt.binBase(i)+binSlotPairs+2*k]
	}
	return bt.data[bt.binBase(i)+binSlotPairs+k]
}

//SumHessians returns the hessian sum of score k in bin i. For regression
//tensors the hessian is implicit in the weight.
func (bt *BinTensor) SumHessians(i, k int) float64 {
	if !bt.classification {
		log.Panicf("hessian sums are not stored for regression tensors")
	}
	return bt.data[bt.binBase(i)+binSlotPairs+2*k+1]
}

//Add accumulates all records of other into the receiver. Both tensors must
//share a layout; the reduction order across workers is unspecified.
func (bt *BinTensor) Add(other *BinTensor) {
	if len(bt.data) != len(other.data) || bt.cSlotsPerBin != other.cSlotsPerBin {
		log.Panicf("cannot reduce bin tensors of different layouts: %d/%d vs %d/%d slots",
			len(bt.data), bt.cSlotsPerBin, len(other.data), other.cSlotsPerBin)
	}
	for i, v := range other.data {
		bt.data[i] += v
	}
}

//BinArena hands out zeroed bin tensors from one growable backing buffer.
//Each worker owns a private arena during aggregation, so no allocation or
//locking happens on the hot path once the backing has grown to fit.
type BinArena struct {
	backing []float64
}

//Acquire returns a zeroed tensor view of the arena backing, growing the
//backing when the requested layout does not fit.
func (arena *BinArena) Acquire(shape []int, cScores int, classification bool) *BinTensor {
	cTensorBins := 1
	for _, cBins := range shape {
		cTensorBins *= cBins
	}
	if IsOverflowBinSize(cScores, classification) {
		log.Panicf("bin record overflow: cScores=%d classification=%v", cScores, classification)
	}
	slots := BinSize(cScores, classification)
	if IsOverflowTensorSize(cTensorBins, slots) {
		log.Panicf("bin tensor overflow: %d bins of %d slots", cTensorBins, slots)
	}
	need := cTensorBins * slots
	if cap(arena.backing) < need {
		grown := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(need))
		arena.backing = grown.Data().([]float64)
	}
	data := arena.backing[:need]
	for i := range data {
		data[i] = 0
	}
	return &BinTensor{
		data:           data,
		cTensorBins:    cTensorBins,
		cSlotsPerBin:   slots,
		cScores:        cScores,
		classification: classification,
		shape:          append([]int(nil), shape...),
	}
}
