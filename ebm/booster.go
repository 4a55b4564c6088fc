package ebm

import (
	"fmt"
	"math"
)

//BoostFlags is the bit set steering GenerateTermUpdate.
type BoostFlags uint32

const (
	BoostFlagsNone BoostFlags = 0
	//BoostFlagGradientSums forces the update tensor to the raw per-bin
	//gradient sums with zero gain; used for sum-only diagnostic rounds.
	BoostFlagGradientSums BoostFlags = 1 << 0
	//BoostFlagDifferentialPrivacy and BoostFlagPurifyUpdate are accepted
	//for interface compatibility and change nothing here.
	BoostFlagDifferentialPrivacy BoostFlags = 1 << 1
	BoostFlagPurifyUpdate        BoostFlags = 1 << 2
)

//BoosterParams collects everything a booster handle is created from.
type BoosterParams struct {
	Seed    int64
	Dataset *Dataset
	//Bag holds one signed multiplicity per dataset sample: positive for
	//training, negative for validation, zero excluded. Nil means every
	//sample trains once.
	Bag []int
	//InitScores holds cScores starting scores per dataset sample, or nil.
	InitScores []float64
	//Terms lists the feature tuples to boost over.
	Terms [][]int
	//Objective selects the loss by registered name.
	Objective string
	//Threads bounds the aggregation workers; 0 or 1 runs single-threaded.
	Threads int
	//CountInnerBags is accepted for interface compatibility; inner
	//bagging multiplicities travel through Bag here.
	CountInnerBags int
}

//Booster is the boosting handle. Each round runs GenerateTermUpdate (or
//SetTermUpdate) followed by ApplyTermUpdate; gradients are fresh again
//once the update has been applied, and rounds must not interleave terms
//in between.
type Booster struct {
	dataset        *Dataset
	objective      Objective
	classification bool
	cScores        int
	terms          []*Term
	train          *subset
	valid          *subset

	termScores     [][]float64
	bestTermScores [][]float64

	pendingTerm   int
	pendingUpdate []float64

	rng         *Rand
	threads     int
	arenas      []*BinArena
	resultArena *BinArena

	metricHistory []float64
	bestMetric    float64
	freed         bool
}

//NewBooster validates the inputs and prepares the expanded training and
//validation sides, including initial gradients. All failures here are
//construction errors; no handle is produced.
func NewBooster(params BoosterParams) (*Booster, error) {
	if params.Dataset == nil {
		return nil, fmt.Errorf("booster needs a dataset")
	}
	ds := params.Dataset
	if params.Bag != nil && len(params.Bag) != ds.cSamples {
		return nil, fmt.Errorf("bag holds %d entries for %d samples", len(params.Bag), ds.cSamples)
	}
	if params.CountInnerBags < 0 {
		return nil, fmt.Errorf("inner bag count cannot be negative")
	}
	objective, err := NewObjective(params.Objective, ds.cClasses)
	if err != nil {
		return nil, err
	}
	cScores := objective.CountScores()
	if params.InitScores != nil && len(params.InitScores) != ds.cSamples*cScores {
		return nil, fmt.Errorf("got %d init scores, need %d samples times %d scores", len(params.InitScores), ds.cSamples, cScores)
	}
	if len(params.Terms) == 0 {
		return nil, fmt.Errorf("booster needs at least one term")
	}
	terms := make([]*Term, len(params.Terms))
	for iTerm, featureIndices := range params.Terms {
		term, err := NewTerm(featureIndices, ds.features)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", iTerm, err)
		}
		terms[iTerm] = term
	}
	threads := params.Threads
	if threads < 1 {
		threads = 1
	}

	classification := objective.Classification()
	booster := &Booster{
		dataset:        ds,
		objective:      objective,
		classification: classification,
		cScores:        cScores,
		terms:          terms,
		train:          expandSubset(ds, params.Bag, bagTraining, cScores, classification),
		valid:          expandSubset(ds, params.Bag, bagValidation, cScores, classification),
		pendingTerm:    -1,
		rng:            NewRand(params.Seed),
		threads:        threads,
		arenas:         make([]*BinArena, threads),
		resultArena:    &BinArena{},
		bestMetric:     math.Inf(1),
	}
	for i := range booster.arenas {
		booster.arenas[i] = &BinArena{}
	}

	if classification {
		initializeScores(params.InitScores, params.Bag, cScores, bagTraining, booster.train.scores)
		initializeScores(params.InitScores, params.Bag, cScores, bagValidation, booster.valid.scores)
		refreshGradHess(objective, booster.train)
	} else {
		InitializeRmseGradientsBoosting(ds.targetsReg, params.Bag, params.InitScores, bagTraining, booster.train.gradHess)
		InitializeRmseGradientsBoosting(ds.targetsReg, params.Bag, params.InitScores, bagValidation, booster.valid.gradHess)
	}

	booster.termScores = make([][]float64, len(terms))
	booster.bestTermScores = make([][]float64, len(terms))
	for iTerm, term := range terms {
		booster.termScores[iTerm] = make([]float64, term.CountTensorBins()*cScores)
		booster.bestTermScores[iTerm] = make([]float64, term.CountTensorBins()*cScores)
	}
	return booster, nil
}

//termDataForSubset assembles the aggregation view of one subset for one term.
func termDataForSubset(sub *subset, term *Term, cScores int, classification bool) *TermData {
	columns := make([][]uint16, term.CountDimensions())
	for d, iFeature := range term.FeatureIndices {
		columns[d] = sub.columns[iFeature]
	}
	return &TermData{
		Columns:        columns,
		GradHess:       sub.gradHess,
		Weights:        sub.weights,
		CSamples:       sub.cSamples,
		CScores:        cScores,
		Classification: classification,
		WeightTotal:    sub.weightTotal,
	}
}

//GenerateTermUpdate aggregates the term's histogram over the training
//side, finds the update the splitter proposes, scales it by the learning
//rate, and holds it pending until ApplyTermUpdate. Returns the split gain
//averaged over the training weight.
func (booster *Booster) GenerateTermUpdate(
	iTerm int,
	flags BoostFlags,
	learningRate float64,
	minSamplesLeaf int,
	leavesMax int,
) (float64, error) {
	if booster.freed {
		return 0, fmt.Errorf("booster handle was freed")
	}
	if iTerm < 0 || iTerm >= len(booster.terms) {
		return 0, fmt.Errorf("term index %d out of range, booster has %d terms", iTerm, len(booster.terms))
	}
	term := booster.terms[iTerm]
	result := booster.resultArena.Acquire(term.Shape(), booster.cScores, booster.classification)
	data := termDataForSubset(booster.train, term, booster.cScores, booster.classification)
	parallelBinSums(result, term, data, booster.threads, booster.arenas)

	cScores := booster.cScores
	update := make([]float64, term.CountTensorBins()*cScores)

	if flags&BoostFlagGradientSums != 0 {
		for iBin := 0; iBin < term.CountTensorBins(); iBin++ {
			for k := 0; k < cScores; k++ {
				update[iBin*cScores+k] = result.SumGradients(iBin, k)
			}
		}
		booster.pendingTerm = iTerm
		booster.pendingUpdate = update
		return 0, nil
	}

	var split BestSplit
	switch term.CountDimensions() {
	case 1:
		split = FindBestSplitMain(result, minSamplesLeaf, leavesMax, booster.rng)
	case 2:
		split = FindBestSplitPair(result, minSamplesLeaf, booster.rng)
	default:
		split = findBestSplitDense(result, minSamplesLeaf)
	}
	for i, delta := range split.Update {
		update[i] = delta * learningRate
	}
	booster.pendingTerm = iTerm
	booster.pendingUpdate = update
	return split.Gain / booster.train.weightTotal, nil
}

//SetTermUpdate overrides the pending update with caller-provided per-bin
//score deltas, cScores entries per tensor bin.
func (booster *Booster) SetTermUpdate(iTerm int, update []float64) error {
	if booster.freed {
		return fmt.Errorf("booster handle was freed")
	}
	if iTerm < 0 || iTerm >= len(booster.terms) {
		return fmt.Errorf("term index %d out of range, booster has %d terms", iTerm, len(booster.terms))
	}
	term := booster.terms[iTerm]
	if len(update) != term.CountTensorBins()*booster.cScores {
		return fmt.Errorf("update holds %d entries, term needs %d", len(update), term.CountTensorBins()*booster.cScores)
	}
	booster.pendingTerm = iTerm
	booster.pendingUpdate = append([]float64(nil), update...)
	return nil
}

//ApplyTermUpdate folds the pending update into the model and every
//per-sample score, refreshes the training gradients, and returns the
//validation metric. A NaN metric means sums overflowed somewhere; callers
//stop boosting on it.
func (booster *Booster) ApplyTermUpdate() (float64, error) {
	if booster.freed {
		return 0, fmt.Errorf("booster handle was freed")
	}
	if booster.pendingTerm < 0 {
		return 0, fmt.Errorf("no pending term update; call GenerateTermUpdate or SetTermUpdate first")
	}
	iTerm := booster.pendingTerm
	term := booster.terms[iTerm]
	update := booster.pendingUpdate

	booster.applyToSubset(booster.train, term, update)
	booster.applyToSubset(booster.valid, term, update)

	model := booster.termScores[iTerm]
	for i, delta := range update {
		model[i] += delta
	}

	if booster.classification {
		refreshGradHess(booster.objective, booster.train)
	}

	metric := booster.validationMetric()
	booster.metricHistory = append(booster.metricHistory, metric)
	if metric < booster.bestMetric {
		booster.bestMetric = metric
		for i := range booster.termScores {
			copy(booster.bestTermScores[i], booster.termScores[i])
		}
	}

	booster.pendingTerm = -1
	booster.pendingUpdate = nil
	return metric, nil
}

//applyToSubset adds the per-bin deltas to each sample's state: scores for
//classification, the gradient directly for RMSE, where the gradient is the
//score minus the target and shifts with the score.
func (booster *Booster) applyToSubset(sub *subset, term *Term, update []float64) {
	if sub.cSamples == 0 {
		return
	}
	cScores := booster.cScores
	columns := make([][]uint16, term.CountDimensions())
	for d, iFeature := range term.FeatureIndices {
		columns[d] = sub.columns[iFeature]
	}
	shape := term.Shape()
	cDims := term.CountDimensions()
	for s := 0; s < sub.cSamples; s++ {
		iBin := tensorIndex(columns, shape, cDims, s)
		if booster.classification {
			for k := 0; k < cScores; k++ {
				sub.scores[s*cScores+k] += update[iBin*cScores+k]
			}
		} else {
			sub.gradHess[s] += update[iBin]
		}
	}
}

//validationMetric folds the validation samples into the objective's
//metric. With no validation side the metric is 0.
func (booster *Booster) validationMetric() float64 {
	valid := booster.valid
	if valid.cSamples == 0 {
		return 0
	}
	lossSum := 0.0
	if booster.classification {
		cScores := booster.cScores
		for s := 0; s < valid.cSamples; s++ {
			w := 1.0
			if valid.weights != nil {
				w = valid.weights[s]
			}
			scores := valid.scores[s*cScores : (s+1)*cScores]
			lossSum += w * booster.objective.SampleMetric(scores, float64(valid.targetsClass[s]))
		}
	} else {
		for s := 0; s < valid.cSamples; s++ {
			w := 1.0
			if valid.weights != nil {
				w = valid.weights[s]
			}
			g := valid.gradHess[s]
			lossSum += w * g * g
		}
	}
	return booster.objective.FinishMetric(lossSum, valid.weightTotal)
}

//readTermScores copies one term's tensor, applying the multiclass
//reference-subtraction rendering convention at read time.
func (booster *Booster) readTermScores(iTerm int, source [][]float64) ([]float64, error) {
	if booster.freed {
		return nil, fmt.Errorf("booster handle was freed")
	}
	if iTerm < 0 || iTerm >= len(booster.terms) {
		return nil, fmt.Errorf("term index %d out of range, booster has %d terms", iTerm, len(booster.terms))
	}
	scores := append([]float64(nil), source[iTerm]...)
	if logLoss, ok := booster.objective.(*LogLossObjective); ok && booster.cScores > 1 {
		iZero := logLoss.ZeroClassificationLogit
		cScores := booster.cScores
		for iBin := 0; iBin < len(scores)/cScores; iBin++ {
			ref := scores[iBin*cScores+iZero]
			for k := 0; k < cScores; k++ {
				scores[iBin*cScores+k] -= ref
			}
		}
	}
	return scores, nil
}

//GetCurrentTermScores returns the term tensor of the model as boosted so
//far, cScores entries per tensor bin.
func (booster *Booster) GetCurrentTermScores(iTerm int) ([]float64, error) {
	return booster.readTermScores(iTerm, booster.termScores)
}

//GetBestTermScores returns the term tensor as of the round with the best
//validation metric seen.
func (booster *Booster) GetBestTermScores(iTerm int) ([]float64, error) {
	return booster.readTermScores(iTerm, booster.bestTermScores)
}

//MetricHistory returns the validation metric of every applied round.
func (booster *Booster) MetricHistory() []float64 {
	return append([]float64(nil), booster.metricHistory...)
}

//Free releases the handle. Every later operation fails.
func (booster *Booster) Free() {
	booster.freed = true
	booster.train = nil
	booster.valid = nil
	booster.termScores = nil
	booster.bestTermScores = nil
	booster.pendingUpdate = nil
	booster.arenas = nil
	booster.resultArena = nil
}
