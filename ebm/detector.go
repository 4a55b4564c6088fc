package ebm

import "fmt"

//InteractionFlags is the bit set accepted by CalcInteractionStrength. No
//flag changes the computation here; the set exists for interface
//compatibility with callers that pass purification or privacy options.
type InteractionFlags uint32

const InteractionFlagsNone InteractionFlags = 0

//InteractionParams collects everything a detector handle is created from.
type InteractionParams struct {
	Seed       int64
	Dataset    *Dataset
	Bag        []int
	InitScores []float64
	Objective  string
	Threads    int
}

//InteractionDetector scores candidate feature sets. Unlike boosting there
//is no holdout: every nonzero bag entry is in scope, and sample weights
//are folded into the gradients once at initialization time.
type InteractionDetector struct {
	dataset        *Dataset
	objective      Objective
	classification bool
	cScores        int
	sub            *subset
	threads        int
	arenas         []*BinArena
	resultArena    *BinArena
	freed          bool
}

//NewInteractionDetector validates the inputs and initializes the expanded
//sample view with interaction-flavor gradients.
func NewInteractionDetector(params InteractionParams) (*InteractionDetector, error) {
	if params.Dataset == nil {
		return nil, fmt.Errorf("interaction detector needs a dataset")
	}
	ds := params.Dataset
	if params.Bag != nil && len(params.Bag) != ds.cSamples {
		return nil, fmt.Errorf("bag holds %d entries for %d samples", len(params.Bag), ds.cSamples)
	}
	objective, err := NewObjective(params.Objective, ds.cClasses)
	if err != nil {
		return nil, err
	}
	cScores := objective.CountScores()
	if params.InitScores != nil && len(params.InitScores) != ds.cSamples*cScores {
		return nil, fmt.Errorf("got %d init scores, need %d samples times %d scores", len(params.InitScores), ds.cSamples, cScores)
	}
	threads := params.Threads
	if threads < 1 {
		threads = 1
	}

	classification := objective.Classification()
	detector := &InteractionDetector{
		dataset:        ds,
		objective:      objective,
		classification: classification,
		cScores:        cScores,
		sub:            expandSubset(ds, params.Bag, bagEverything, cScores, classification),
		threads:        threads,
		arenas:         make([]*BinArena, threads),
		resultArena:    &BinArena{},
	}
	for i := range detector.arenas {
		detector.arenas[i] = &BinArena{}
	}

	if classification {
		initializeScores(params.InitScores, params.Bag, cScores, bagEverything, detector.sub.scores)
		refreshGradHess(objective, detector.sub)
		scaleInteractionGradients(detector.sub, cScores)
	} else {
		InitializeRmseGradientsInteraction(ds.targetsReg, params.Bag, params.InitScores, detector.sub.weights, detector.sub.gradHess)
	}
	return detector, nil
}

//CalcInteractionStrength aggregates the candidate term's histogram and
//reduces it to the interaction strength: how much the best joint split
//beats the best additive fit over the same features, averaged over the
//total weight, clamped at zero. NaN from overflowed sums passes through.
func (detector *InteractionDetector) CalcInteractionStrength(
	featureIndices []int,
	flags InteractionFlags,
	minSamplesLeaf int,
) (float64, error) {
	if detector.freed {
		return 0, fmt.Errorf("interaction detector handle was freed")
	}
	if len(featureIndices) < 2 {
		return 0, fmt.Errorf("interaction strength needs at least 2 features, got %d", len(featureIndices))
	}
	term, err := NewTerm(featureIndices, detector.dataset.features)
	if err != nil {
		return 0, err
	}
	result := detector.resultArena.Acquire(term.Shape(), detector.cScores, detector.classification)
	data := termDataForSubset(detector.sub, term, detector.cScores, detector.classification)
	parallelBinSums(result, term, data, detector.threads, detector.arenas)
	return interactionStrength(result, minSamplesLeaf, detector.sub.weightTotal), nil
}

//Free releases the handle. Every later operation fails.
func (detector *InteractionDetector) Free() {
	detector.freed = true
	detector.sub = nil
	detector.arenas = nil
	detector.resultArena = nil
}
