package ebm

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func rampDataset(t *testing.T) (*Dataset, []int) {
	t.Helper()
	column := []uint16{0, 1, 2, 0, 1, 2, 0, 1, 2}
	targets := []float64{1, 2, 3, 1, 2, 3, 1, 2, 3}
	bag := []int{1, 1, 1, 1, 1, 1, -1, -1, -1}
	ds := regressionDataset(t, []Feature{{CountBins: 3}}, [][]uint16{column}, nil, targets)
	return ds, bag
}

func TestBoosterRmseEndToEnd(t *testing.T) {
	ds, bag := rampDataset(t)
	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "rmse",
	})
	require.NoError(t, err)
	defer booster.Free()

	var metric float64
	for round := 0; round < 30; round++ {
		gain, err := booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 3)
		require.NoError(t, err)
		if round == 0 {
			require.Greater(t, gain, 0.0)
		}
		metric, err = booster.ApplyTermUpdate()
		require.NoError(t, err)
	}
	require.Less(t, metric, 0.05)

	scores, err := booster.GetCurrentTermScores(0)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for iBin, want := range []float64{1, 2, 3} {
		require.InDelta(t, want, scores[iBin], 0.05)
	}
}

func TestBoosterGradientSumsFlag(t *testing.T) {
	ds, bag := rampDataset(t)
	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "rmse",
	})
	require.NoError(t, err)
	defer booster.Free()

	gain, err := booster.GenerateTermUpdate(0, BoostFlagGradientSums, 0.5, 1, 3)
	require.NoError(t, err)
	require.Zero(t, gain)
	//two training samples per bin, gradient -target each
	require.Equal(t, []float64{-2, -4, -6}, booster.pendingUpdate)
}

func TestBoosterUpdateLifecycle(t *testing.T) {
	ds, bag := rampDataset(t)
	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "rmse",
	})
	require.NoError(t, err)

	_, err = booster.ApplyTermUpdate()
	require.Error(t, err)

	_, err = booster.GenerateTermUpdate(3, BoostFlagsNone, 0.5, 1, 3)
	require.Error(t, err)

	require.Error(t, booster.SetTermUpdate(0, []float64{1}))
	require.NoError(t, booster.SetTermUpdate(0, []float64{0.5, 0, -0.5}))
	_, err = booster.ApplyTermUpdate()
	require.NoError(t, err)

	_, err = booster.ApplyTermUpdate()
	require.Error(t, err)

	booster.Free()
	_, err = booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 3)
	require.Error(t, err)
}

func TestBoosterBestScoresSurviveBadRound(t *testing.T) {
	ds, bag := rampDataset(t)
	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "rmse",
	})
	require.NoError(t, err)
	defer booster.Free()

	for round := 0; round < 20; round++ {
		_, err := booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 3)
		require.NoError(t, err)
		_, err = booster.ApplyTermUpdate()
		require.NoError(t, err)
	}
	good, err := booster.GetBestTermScores(0)
	require.NoError(t, err)

	//a deliberately terrible override worsens the metric
	require.NoError(t, booster.SetTermUpdate(0, []float64{100, -100, 100}))
	metric, err := booster.ApplyTermUpdate()
	require.NoError(t, err)
	require.Greater(t, metric, 1.0)

	best, err := booster.GetBestTermScores(0)
	require.NoError(t, err)
	require.Equal(t, good, best)

	current, err := booster.GetCurrentTermScores(0)
	require.NoError(t, err)
	require.NotEqual(t, best, current)
}

func TestBoosterConstructionErrors(t *testing.T) {
	ds, bag := rampDataset(t)

	_, err := NewBooster(BoosterParams{Dataset: ds, Bag: bag, Terms: [][]int{{0}}, Objective: "no_such_loss"})
	require.Error(t, err)

	_, err = NewBooster(BoosterParams{Dataset: ds, Bag: bag, Terms: [][]int{{1}}, Objective: "rmse"})
	require.Error(t, err)

	_, err = NewBooster(BoosterParams{Dataset: ds, Bag: []int{1}, Terms: [][]int{{0}}, Objective: "rmse"})
	require.Error(t, err)

	_, err = NewBooster(BoosterParams{Dataset: ds, Bag: bag, Terms: nil, Objective: "rmse"})
	require.Error(t, err)

	_, err = NewBooster(BoosterParams{Dataset: ds, Bag: bag, Terms: [][]int{{0}}, Objective: "rmse",
		InitScores: []float64{1, 2}})
	require.Error(t, err)
}

func TestBoosterMulticlass(t *testing.T) {
	column := make([]uint16, 0, 24)
	targets := make([]int, 0, 24)
	bag := make([]int, 0, 24)
	for rep := 0; rep < 8; rep++ {
		for class := 0; class < 3; class++ {
			column = append(column, uint16(class))
			targets = append(targets, class)
			if rep < 6 {
				bag = append(bag, 1)
			} else {
				bag = append(bag, -1)
			}
		}
	}
	ds, err := NewDataset([]Feature{{CountBins: 3}}, [][]uint16{column}, nil, nil, targets, 3)
	require.NoError(t, err)

	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "log_loss",
	})
	require.NoError(t, err)
	defer booster.Free()

	var metric float64
	for round := 0; round < 25; round++ {
		_, err := booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 3)
		require.NoError(t, err)
		metric, err = booster.ApplyTermUpdate()
		require.NoError(t, err)
	}
	require.Less(t, metric, 0.5)
	require.Less(t, metric, math.Log(3))

	//reference subtraction zeroes the class-0 column at read time
	scores, err := booster.GetCurrentTermScores(0)
	require.NoError(t, err)
	require.Len(t, scores, 9)
	for iBin := 0; iBin < 3; iBin++ {
		require.Zero(t, scores[iBin*3])
	}
}

func TestBoosterPairTerm(t *testing.T) {
	colA := []uint16{0, 0, 1, 1, 0, 0, 1, 1}
	colB := []uint16{0, 1, 0, 1, 0, 1, 0, 1}
	targets := []float64{0, 1, 1, 0, 0, 1, 1, 0}
	bag := []int{1, 1, 1, 1, -1, -1, -1, -1}
	ds := regressionDataset(t,
		[]Feature{{CountBins: 2}, {CountBins: 2}},
		[][]uint16{colA, colB}, nil, targets)

	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0, 1}},
		Objective: "rmse",
	})
	require.NoError(t, err)
	defer booster.Free()

	var metric float64
	for round := 0; round < 20; round++ {
		_, err := booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 4)
		require.NoError(t, err)
		metric, err = booster.ApplyTermUpdate()
		require.NoError(t, err)
	}
	require.Less(t, metric, 0.05)
}

func TestModelRoundTripAndPrediction(t *testing.T) {
	ds, bag := rampDataset(t)
	booster, err := NewBooster(BoosterParams{
		Dataset:   ds,
		Bag:       bag,
		Terms:     [][]int{{0}},
		Objective: "rmse",
	})
	require.NoError(t, err)
	defer booster.Free()

	for round := 0; round < 30; round++ {
		_, err := booster.GenerateTermUpdate(0, BoostFlagsNone, 0.5, 1, 3)
		require.NoError(t, err)
		_, err = booster.ApplyTermUpdate()
		require.NoError(t, err)
	}

	model := booster.Model(false)
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	model.Save(modelPath)
	loaded := LoadModel(modelPath)
	require.Equal(t, model.TermScores, loaded.TermScores)
	require.Equal(t, model.MetricHistory, loaded.MetricHistory)

	prediction := loaded.PredictScores([][]uint16{{0, 1, 2}})
	require.Len(t, prediction, 3)
	for s, want := range []float64{1, 2, 3} {
		require.InDelta(t, want, prediction[s][0], 0.05)
	}

	curvesPath := filepath.Join(dir, "curves.json")
	loaded.DumpLearningCurves(curvesPath)
	require.FileExists(t, curvesPath)
}
