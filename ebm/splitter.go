package ebm

import "log"

//kHessianMin floors the gain and update denominators; a region with less
//hessian mass than this contributes no gain and takes no update.
const kHessianMin = 1e-12

//BestSplit carries the outcome of one histogram split search: the summed
//gain over the parent region and the per-bin score deltas, cScores entries
//per tensor bin, before learning-rate scaling.
type BestSplit struct {
	Gain   float64
	Update []float64
	Valid  bool
}

//regionStats accumulates one region's totals, per score.
type regionStats struct {
	count  int
	weight float64
	grad   []float64
	hess   []float64
}

func newRegionStats(cScores int) *regionStats {
	return &regionStats{grad: make([]float64, cScores), hess: make([]float64, cScores)}
}

func (rs *regionStats) reset() {
	rs.count = 0
	rs.weight = 0
	for k := range rs.grad {
		rs.grad[k] = 0
		rs.hess[k] = 0
	}
}

//addBin folds bin i of the tensor into the region. For regression the
//accumulated weight doubles as the hessian mass.
func (rs *regionStats) addBin(bt *BinTensor, i int) {
	rs.count += bt.Count(i)
	rs.weight += bt.Weight(i)
	for k := range rs.grad {
		rs.grad[k] += bt.SumGradients(i, k)
		if bt.classification {
			rs.hess[k] += bt.SumHessians(i, k)
		} else {
			rs.hess[k] += bt.Weight(i)
		}
	}
}

//partialGain is the splitter's gain kernel: Σ_k G_k²/H_k.
func (rs *regionStats) partialGain() float64 {
	gain := 0.0
	for k := range rs.grad {
		if rs.hess[k] < kHessianMin {
			continue
		}
		gain += rs.grad[k] * rs.grad[k] / rs.hess[k]
	}
	return gain
}

//newtonDelta writes the region's update step -G_k/H_k into out.
func (rs *regionStats) newtonDelta(out []float64) {
	for k := range rs.grad {
		if rs.hess[k] < kHessianMin {
			out[k] = 0
			continue
		}
		out[k] = -rs.grad[k] / rs.hess[k]
	}
}

//scanLeafRange sweeps the candidate boundaries inside the inclusive bin
//range [first, last], accumulating left statistics bin by bin. Equal-gain
//boundaries are recorded into the sweep scratch and one of them is picked
//with the handle RNG once the sweep finishes, so the choice never depends
//on scan order alone.
func scanLeafRange(
	bt *BinTensor,
	first, last int,
	minSamplesLeaf int,
	sweep *TreeSweepSet,
	rng *Rand,
) (gain float64, boundary int, ok bool) {
	total := newRegionStats(bt.cScores)
	bins := NewRange(first, last+1, 1)
	for bins.HasNext() {
		total.addBin(bt, bins.GetNext())
	}
	parentGain := total.partialGain()

	sweep.Reset()
	left := newRegionStats(bt.cScores)
	leftAcc := NewBinTensor([]int{1}, bt.cScores, bt.classification)
	bestGain := 0.0
	found := false

	candidates := NewRange(first, last, 1)
	for candidates.HasNext() {
		i := candidates.GetNext()
		left.addBin(bt, i)
		leftAcc.copyRecordFromStats(left)
		if left.count < minSamplesLeaf || total.count-left.count < minSamplesLeaf {
			continue
		}
		right := newRegionStats(bt.cScores)
		right.count = total.count - left.count
		right.weight = total.weight - left.weight
		for k := range right.grad {
			right.grad[k] = total.grad[k] - left.grad[k]
			right.hess[k] = total.hess[k] - left.hess[k]
		}
		splitGain := left.partialGain() + right.partialGain() - parentGain
		if splitGain <= 0 {
			continue
		}
		switch {
		case !found || splitGain > bestGain:
			found = true
			bestGain = splitGain
			sweep.Reset()
			sweep.Append(i, leftAcc, 0)
		case splitGain == bestGain:
			sweep.Append(i, leftAcc, 0)
		}
	}
	if !found {
		return 0, 0, false
	}
	pick := 0
	if sweep.Count() > 1 && rng != nil {
		pick = rng.Intn(sweep.Count())
	}
	return bestGain, sweep.Boundary(pick), true
}

//copyRecordFromStats mirrors a running accumulator into record 0 so the
//sweep scratch can snapshot it with its ordinary record copy.
func (bt *BinTensor) copyRecordFromStats(rs *regionStats) {
	bt.data[binSlotCount] = float64(rs.count)
	bt.data[binSlotWeight] = rs.weight
	for k := range rs.grad {
		if bt.classification {
			bt.data[binSlotPairs+2*k] = rs.grad[k]
			bt.data[binSlotPairs+2*k+1] = rs.hess[k]
		} else {
			bt.data[binSlotPairs+k] = rs.grad[k]
		}
	}
}

//mainLeaf is one leaf of the growing 1-D cut tree: an inclusive bin range
//plus its cached best interior split.
type mainLeaf struct {
	first, last   int
	gain          float64
	boundary      int
	splitOK       bool
}

//FindBestSplitMain grows a greedy cut tree over a 1-D histogram: starting
//from one leaf spanning every bin, it repeatedly applies the best
//remaining split until leavesMax leaves exist or no split clears
//minSamplesLeaf with positive gain. The update assigns each leaf its
//newton step.
func FindBestSplitMain(bt *BinTensor, minSamplesLeaf, leavesMax int, rng *Rand) BestSplit {
	if len(bt.shape) != 1 {
		log.Panicf("main-effect splitter needs a 1-D tensor, got %d dimensions", len(bt.shape))
	}
	cBins := bt.shape[0]
	if leavesMax < 2 {
		leavesMax = 2
	}
	sweep := NewTreeSweepSet(cBins, bt.cScores, bt.classification)

	scan := func(first, last int) mainLeaf {
		leaf := mainLeaf{first: first, last: last}
		if first < last {
			leaf.gain, leaf.boundary, leaf.splitOK = scanLeafRange(bt, first, last, minSamplesLeaf, sweep, rng)
		}
		return leaf
	}

	leaves := []mainLeaf{scan(0, cBins-1)}
	totalGain := 0.0
	for len(leaves) < leavesMax {
		best := -1
		for i, leaf := range leaves {
			if leaf.splitOK && (best < 0 || leaf.gain > leaves[best].gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		leaf := leaves[best]
		totalGain += leaf.gain
		leaves[best] = scan(leaf.first, leaf.boundary)
		leaves = append(leaves, scan(leaf.boundary+1, leaf.last))
	}

	update := make([]float64, cBins*bt.cScores)
	delta := make([]float64, bt.cScores)
	for _, leaf := range leaves {
		stats := newRegionStats(bt.cScores)
		for i := leaf.first; i <= leaf.last; i++ {
			stats.addBin(bt, i)
		}
		stats.newtonDelta(delta)
		for i := leaf.first; i <= leaf.last; i++ {
			for k := 0; k < bt.cScores; k++ {
				update[i*bt.cScores+k] = delta[k]
			}
		}
	}
	return BestSplit{Gain: totalGain, Update: update, Valid: totalGain > 0}
}

//pairCut is one candidate quadrant split of a 2-D histogram: a cut after
//bin cutA on dimension 0 and after bin cutB on dimension 1.
type pairCut struct {
	cutA, cutB int
}

//FindBestSplitPair searches every quadrant split of a 2-D histogram and
//assigns each quadrant its newton step. Ties are broken with the RNG.
func FindBestSplitPair(bt *BinTensor, minSamplesLeaf int, rng *Rand) BestSplit {
	if len(bt.shape) != 2 {
		log.Panicf("pair splitter needs a 2-D tensor, got %d dimensions", len(bt.shape))
	}
	cBinsA, cBinsB := bt.shape[0], bt.shape[1]
	cScores := bt.cScores

	quadrants := func(cut pairCut) [4]*regionStats {
		var q [4]*regionStats
		for i := range q {
			q[i] = newRegionStats(cScores)
		}
		for b := 0; b < cBinsB; b++ {
			for a := 0; a < cBinsA; a++ {
				iQuad := 0
				if a > cut.cutA {
					iQuad++
				}
				if b > cut.cutB {
					iQuad += 2
				}
				q[iQuad].addBin(bt, a+cBinsA*b)
			}
		}
		return q
	}

	parent := newRegionStats(cScores)
	for i := 0; i < bt.cTensorBins; i++ {
		parent.addBin(bt, i)
	}
	parentGain := parent.partialGain()

	bestGain := 0.0
	found := false
	var ties []pairCut
	for cutA := 0; cutA < cBinsA-1; cutA++ {
		for cutB := 0; cutB < cBinsB-1; cutB++ {
			cut := pairCut{cutA, cutB}
			q := quadrants(cut)
			legal := true
			gain := -parentGain
			for _, region := range q {
				if region.count < minSamplesLeaf {
					legal = false
					break
				}
				gain += region.partialGain()
			}
			if !legal || gain <= 0 {
				continue
			}
			switch {
			case !found || gain > bestGain:
				found = true
				bestGain = gain
				ties = ties[:0]
				ties = append(ties, cut)
			case gain == bestGain:
				ties = append(ties, cut)
			}
		}
	}
	if !found {
		return BestSplit{Update: make([]float64, bt.cTensorBins*cScores)}
	}

	pick := 0
	if len(ties) > 1 && rng != nil {
		pick = rng.Intn(len(ties))
	}
	cut := ties[pick]
	q := quadrants(cut)
	deltas := make([][]float64, 4)
	for i, region := range q {
		deltas[i] = make([]float64, cScores)
		region.newtonDelta(deltas[i])
	}
	update := make([]float64, bt.cTensorBins*cScores)
	for b := 0; b < cBinsB; b++ {
		for a := 0; a < cBinsA; a++ {
			iQuad := 0
			if a > cut.cutA {
				iQuad++
			}
			if b > cut.cutB {
				iQuad += 2
			}
			iBin := a + cBinsA*b
			copy(update[iBin*cScores:(iBin+1)*cScores], deltas[iQuad])
		}
	}
	return BestSplit{Gain: bestGain, Update: update, Valid: true}
}

//findBestSplitDense assigns every bin its own newton step; used for terms
//beyond two dimensions, where the cut-tree policy has no counterpart.
func findBestSplitDense(bt *BinTensor, minSamplesLeaf int) BestSplit {
	cScores := bt.cScores
	parent := newRegionStats(cScores)
	for i := 0; i < bt.cTensorBins; i++ {
		parent.addBin(bt, i)
	}
	gain := -parent.partialGain()
	update := make([]float64, bt.cTensorBins*cScores)
	delta := make([]float64, cScores)
	stats := newRegionStats(cScores)
	for i := 0; i < bt.cTensorBins; i++ {
		if bt.Count(i) < minSamplesLeaf {
			continue
		}
		stats.reset()
		stats.addBin(bt, i)
		gain += stats.partialGain()
		stats.newtonDelta(delta)
		copy(update[i*cScores:(i+1)*cScores], delta)
	}
	if gain < 0 {
		gain = 0
	}
	return BestSplit{Gain: gain, Update: update, Valid: gain > 0}
}
