package ebm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustTerm(t *testing.T, featureIndices []int, features []Feature) *Term {
	t.Helper()
	term, err := NewTerm(featureIndices, features)
	require.NoError(t, err)
	return term
}

func TestBinSumsSingleRegressionSample(t *testing.T) {
	features := []Feature{{CountBins: 3}}
	term := mustTerm(t, []int{0}, features)

	gradients := make([]float64, 1)
	InitializeRmseGradientsBoosting([]float64{4.0}, nil, []float64{1.0}, bagTraining, gradients)
	require.Equal(t, -3.0, gradients[0])

	bt := NewBinTensor(term.Shape(), 1, false)
	BinSums(bt, term, &TermData{
		Columns:  [][]uint16{{1}},
		GradHess: gradients,
		CSamples: 1,
		CScores:  1,
	})

	require.Equal(t, 1, bt.Count(1))
	require.Equal(t, 1.0, bt.Weight(1))
	require.Equal(t, -3.0, bt.SumGradients(1, 0))
	for _, iBin := range []int{0, 2} {
		require.Zero(t, bt.Count(iBin))
		require.Zero(t, bt.Weight(iBin))
		require.Zero(t, bt.SumGradients(iBin, 0))
	}
}

func TestBinSumsWeighted(t *testing.T) {
	features := []Feature{{CountBins: 3}}
	term := mustTerm(t, []int{0}, features)

	bt := NewBinTensor(term.Shape(), 1, false)
	BinSums(bt, term, &TermData{
		Columns:     [][]uint16{{0, 0}},
		GradHess:    []float64{1, -1},
		Weights:     []float64{2, 3},
		CSamples:    2,
		CScores:     1,
		WeightTotal: 5,
	})

	require.Equal(t, 2, bt.Count(0))
	require.Equal(t, 5.0, bt.Weight(0))
	require.Equal(t, -1.0, bt.SumGradients(0, 0))
}

func TestBinSumsPairIndex(t *testing.T) {
	features := []Feature{{CountBins: 2}, {CountBins: 3}}
	term := mustTerm(t, []int{0, 1}, features)

	bt := NewBinTensor(term.Shape(), 1, false)
	BinSums(bt, term, &TermData{
		Columns:  [][]uint16{{1}, {2}},
		GradHess: []float64{0.5},
		CSamples: 1,
		CScores:  1,
	})

	//flat index = 1 + 2*2
	require.Equal(t, 1, bt.Count(5))
	for iBin := 0; iBin < bt.CountTensorBins(); iBin++ {
		if iBin != 5 {
			require.Zero(t, bt.Count(iBin))
		}
	}
}

func TestBinSumsBinaryClassificationHessian(t *testing.T) {
	objective, err := NewObjective("log_loss", 2)
	require.NoError(t, err)

	gh := make([]float64, 2)
	objective.SampleGradHess([]float64{0}, 1, gh)
	require.Equal(t, -0.5, gh[0])
	require.Equal(t, 0.25, gh[1])

	features := []Feature{{CountBins: 2}}
	term := mustTerm(t, []int{0}, features)
	bt := NewBinTensor(term.Shape(), 1, true)
	BinSums(bt, term, &TermData{
		Columns:        [][]uint16{{0}},
		GradHess:       gh,
		CSamples:       1,
		CScores:        1,
		Classification: true,
	})

	require.Equal(t, -0.5, bt.SumGradients(0, 0))
	require.Equal(t, 0.25, bt.SumHessians(0, 0))
}

//randomTermData builds uniform random bins and bounded random gradients for
//invariant checks.
func randomTermData(src *rand.Rand, shape []int, cSamples, cScores int, classification, weighted bool) ([][]uint16, *TermData) {
	columns := make([][]uint16, len(shape))
	for d, cBins := range shape {
		columns[d] = make([]uint16, cSamples)
		for s := range columns[d] {
			columns[d][s] = uint16(src.Intn(cBins))
		}
	}
	perSample := cScores
	if classification {
		perSample = 2 * cScores
	}
	gradHess := make([]float64, cSamples*perSample)
	for s := 0; s < cSamples; s++ {
		for k := 0; k < cScores; k++ {
			if classification {
				p := src.Float64()
				gradHess[s*perSample+2*k] = p*2 - 1
				gradHess[s*perSample+2*k+1] = p * (1 - p)
			} else {
				gradHess[s*perSample+k] = src.NormFloat64()
			}
		}
	}
	data := &TermData{
		Columns:        columns,
		GradHess:       gradHess,
		CSamples:       cSamples,
		CScores:        cScores,
		Classification: classification,
	}
	if weighted {
		data.Weights = make([]float64, cSamples)
		total := 0.0
		for s := range data.Weights {
			data.Weights[s] = src.Float64() + 0.5
			total += data.Weights[s]
		}
		data.WeightTotal = total
	}
	return columns, data
}

func TestBinSumsCountAndWeightInvariants(t *testing.T) {
	src := rand.New(rand.NewSource(7))
	features := []Feature{{CountBins: 5}, {CountBins: 3}}
	term := mustTerm(t, []int{0, 1}, features)
	cSamples := 500

	_, data := randomTermData(src, term.Shape(), cSamples, 1, false, false)
	bt := NewBinTensor(term.Shape(), 1, false)
	BinSums(bt, term, data)

	countTotal := 0
	weightTotal := 0.0
	for iBin := 0; iBin < bt.CountTensorBins(); iBin++ {
		countTotal += bt.Count(iBin)
		weightTotal += bt.Weight(iBin)
	}
	require.Equal(t, cSamples, countTotal)
	//uniform weights make the weight sum equal the count sum
	require.Equal(t, float64(cSamples), weightTotal)
}

func TestBinSumsHessianBound(t *testing.T) {
	src := rand.New(rand.NewSource(11))
	features := []Feature{{CountBins: 4}}
	term := mustTerm(t, []int{0}, features)
	_, data := randomTermData(src, term.Shape(), 300, 1, true, false)

	bt := NewBinTensor(term.Shape(), 1, true)
	BinSums(bt, term, data)

	const slack = 1e-9
	for iBin := 0; iBin < bt.CountTensorBins(); iBin++ {
		hess := bt.SumHessians(iBin, 0)
		require.GreaterOrEqual(t, hess, -slack)
		require.LessOrEqual(t, hess, 0.25*float64(bt.Count(iBin))+slack)
	}
}

func TestBinSumsPermutationInvariance(t *testing.T) {
	src := rand.New(rand.NewSource(13))
	features := []Feature{{CountBins: 6}, {CountBins: 4}}
	term := mustTerm(t, []int{0, 1}, features)
	cSamples := 400
	columns, data := randomTermData(src, term.Shape(), cSamples, 1, false, true)

	reference := NewBinTensor(term.Shape(), 1, false)
	BinSums(reference, term, data)

	perm := src.Perm(cSamples)
	shuffled := &TermData{
		Columns:     make([][]uint16, len(columns)),
		GradHess:    make([]float64, cSamples),
		Weights:     make([]float64, cSamples),
		CSamples:    cSamples,
		CScores:     1,
		WeightTotal: data.WeightTotal,
	}
	for d := range columns {
		shuffled.Columns[d] = make([]uint16, cSamples)
	}
	for to, from := range perm {
		for d := range columns {
			shuffled.Columns[d][to] = columns[d][from]
		}
		shuffled.GradHess[to] = data.GradHess[from]
		shuffled.Weights[to] = data.Weights[from]
	}
	permuted := NewBinTensor(term.Shape(), 1, false)
	BinSums(permuted, term, shuffled)

	for iBin := 0; iBin < reference.CountTensorBins(); iBin++ {
		require.Equal(t, reference.Count(iBin), permuted.Count(iBin))
		require.InEpsilon(t, reference.Weight(iBin)+1, permuted.Weight(iBin)+1, 1e-10)
		a := reference.SumGradients(iBin, 0)
		b := permuted.SumGradients(iBin, 0)
		require.InDelta(t, a, b, 1e-10*(math.Abs(a)+1))
	}
}

func TestBinSumsNaNPropagates(t *testing.T) {
	features := []Feature{{CountBins: 2}}
	term := mustTerm(t, []int{0}, features)
	bt := NewBinTensor(term.Shape(), 1, false)
	BinSums(bt, term, &TermData{
		Columns:  [][]uint16{{0, 0}},
		GradHess: []float64{1, math.NaN()},
		CSamples: 2,
		CScores:  1,
	})
	require.True(t, math.IsNaN(bt.SumGradients(0, 0)))
	require.Equal(t, 2, bt.Count(0))
}

func TestBinSumsOutOfRangeBinPanics(t *testing.T) {
	features := []Feature{{CountBins: 2}}
	term := mustTerm(t, []int{0}, features)
	bt := NewBinTensor(term.Shape(), 1, false)
	require.Panics(t, func() {
		BinSums(bt, term, &TermData{
			Columns:  [][]uint16{{2}},
			GradHess: []float64{1},
			CSamples: 1,
			CScores:  1,
		})
	})
}

func TestBinSumsWrongTensorShapePanics(t *testing.T) {
	features := []Feature{{CountBins: 2}, {CountBins: 3}}
	term := mustTerm(t, []int{0, 1}, features)
	bt := NewBinTensor([]int{2}, 1, false)
	require.Panics(t, func() {
		BinSums(bt, term, &TermData{
			Columns:  [][]uint16{{0}, {0}},
			GradHess: []float64{1},
			CSamples: 1,
			CScores:  1,
		})
	})
}
