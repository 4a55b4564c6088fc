package ebm

import "log"

//Tree-sweep records let the splitter defer tie-breaks: each record stores a
//candidate boundary position plus one bin's worth of best-left accumulated
//statistics, so tied boundaries are compared afterwards instead of
//rescanning the histogram. The bin payload trails the header and its width
//comes from the same BinSize the histogram uses, so a record is
//header + cSlotsPerBin slots in one shared buffer.
const treeSweepHeaderSlots = 1

//TreeSweepSize returns the number of float64 slots per sweep record.
func TreeSweepSize(cScores int, classification bool) int {
	return treeSweepHeaderSlots + BinSize(cScores, classification)
}

//IsOverflowTreeSweepSize reports whether a sweep record of the requested
//width cannot be represented. The bin size must already have been checked.
func IsOverflowTreeSweepSize(cScores int, classification bool) bool {
	return IsOverflowBinSize(cScores, classification)
}

//TreeSweepSet is a fixed-capacity array of sweep records over one flat
//buffer; appending past the capacity panics.
type TreeSweepSet struct {
	data           []float64
	cSlotsPerSweep int
	cSlotsPerBin   int
	count          int
}

//NewTreeSweepSet sizes a sweep set for at most capacity candidate
//boundaries of the given bin layout.
func NewTreeSweepSet(capacity, cScores int, classification bool) *TreeSweepSet {
	if IsOverflowTreeSweepSize(cScores, classification) {
		log.Panicf("tree sweep record overflow: cScores=%d classification=%v", cScores, classification)
	}
	slots := TreeSweepSize(cScores, classification)
	return &TreeSweepSet{
		data:           make([]float64, capacity*slots),
		cSlotsPerSweep: slots,
		cSlotsPerBin:   BinSize(cScores, classification),
	}
}

//Reset forgets all recorded candidates without releasing the buffer.
func (ss *TreeSweepSet) Reset() {
	ss.count = 0
}

//Count returns the number of recorded candidates.
func (ss *TreeSweepSet) Count() int {
	return ss.count
}

//Append records a candidate boundary and snapshots the left-accumulated
//statistics from record iBin of acc (the splitter's running accumulator).
func (ss *TreeSweepSet) Append(boundary int, acc *BinTensor, iBin int) {
	base := ss.count * ss.cSlotsPerSweep
	if base+ss.cSlotsPerSweep > len(ss.data) {
		log.Panicf("tree sweep overflow: %d candidates exceed capacity %d", ss.count+1, len(ss.data)/ss.cSlotsPerSweep)
	}
	ss.data[base] = float64(boundary)
	src := acc.binBase(iBin)
	copy(ss.data[base+treeSweepHeaderSlots:base+ss.cSlotsPerSweep], acc.data[src:src+ss.cSlotsPerBin])
	ss.count++
}

//Boundary returns the boundary position of candidate i.
func (ss *TreeSweepSet) Boundary(i int) int {
	return int(ss.data[i*ss.cSlotsPerSweep])
}

//leftSlot returns slot k of candidate i's best-left bin payload.
func (ss *TreeSweepSet) leftSlot(i, k int) float64 {
	return ss.data[i*ss.cSlotsPerSweep+treeSweepHeaderSlots+k]
}

//LeftCount returns the accumulated left sample count of candidate i.
func (ss *TreeSweepSet) LeftCount(i int) int {
	return int(ss.leftSlot(i, binSlotCount))
}

//LeftWeight returns the accumulated left weight of candidate i.
func (ss *TreeSweepSet) LeftWeight(i int) float64 {
	return ss.leftSlot(i, binSlotWeight)
}

//Range is an iterator over the half interval [begin, end) with the given
//step, which may be negative to walk backward. The splitter walks bin
//sequences forward with it and the aggregation coordinator shards sample
//ranges with it.
type Range struct {
	begin, end, step, pos int
}

//NewRange initializes a new iterator over a half interval.
func NewRange(begin, end, step int) *Range {
	return &Range{begin, end, step, begin}
}

//GetNext returns the next element and advances the iterator.
func (r *Range) GetNext() int {
	val := r.pos
	r.pos += r.step
	return val
}

//HasNext checks whether there are more values in the iterator.
func (r *Range) HasNext() bool {
	if r.step > 0 {
		return r.pos < r.end
	}
	return r.pos > r.end
}
