package ebm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildClassificationBlob(t *testing.T) []byte {
	t.Helper()
	builder := NewDatasetBuilder()
	require.NoError(t, builder.AddFeature(3, true, false, false, []uint16{0, 1, 2, 1}))
	require.NoError(t, builder.AddFeature(2, false, false, true, []uint16{1, 0, 1, 0}))
	require.NoError(t, builder.SetWeights([]float64{1, 2, 3, 4}))
	require.NoError(t, builder.SetClassificationTargets(2, []int{0, 1, 1, 0}))

	size, err := builder.Measure()
	require.NoError(t, err)
	blob := make([]byte, size)
	require.NoError(t, builder.Fill(blob))
	return blob
}

func TestDatasetBlobRoundTrip(t *testing.T) {
	blob := buildClassificationBlob(t)
	ds, err := NewDatasetFromBlob(blob)
	require.NoError(t, err)

	require.Equal(t, 4, ds.CountSamples())
	require.Equal(t, 2, ds.CountFeatures())
	require.Equal(t, 2, ds.CountClasses())
	require.True(t, ds.HasWeights())
	require.Equal(t, Feature{CountBins: 3, Missing: true}, ds.Features()[0])
	require.Equal(t, Feature{CountBins: 2, Nominal: true}, ds.Features()[1])
	require.Equal(t, []uint16{0, 1, 2, 1}, ds.columns[0])
	require.Equal(t, []uint16{1, 0, 1, 0}, ds.columns[1])
	require.Equal(t, []float64{1, 2, 3, 4}, ds.weights)
	require.Equal(t, []int{0, 1, 1, 0}, ds.targetsClass)
}

func TestDatasetBlobRegressionRoundTrip(t *testing.T) {
	builder := NewDatasetBuilder()
	require.NoError(t, builder.AddFeature(2, false, false, false, []uint16{0, 1}))
	require.NoError(t, builder.SetRegressionTargets([]float64{-1.5, 2.25}))

	size, err := builder.Measure()
	require.NoError(t, err)
	blob := make([]byte, size)
	require.NoError(t, builder.Fill(blob))

	ds, err := NewDatasetFromBlob(blob)
	require.NoError(t, err)
	require.Equal(t, 0, ds.CountClasses())
	require.False(t, ds.HasWeights())
	require.Equal(t, []float64{-1.5, 2.25}, ds.targetsReg)
}

func TestDatasetBlobErrors(t *testing.T) {
	blob := buildClassificationBlob(t)

	_, err := NewDatasetFromBlob(blob[:len(blob)-3])
	require.Error(t, err)

	corrupted := append([]byte(nil), blob...)
	corrupted[0] ^= 0xFF
	_, err = NewDatasetFromBlob(corrupted)
	require.Error(t, err)

	trailing := append(append([]byte(nil), blob...), 0)
	_, err = NewDatasetFromBlob(trailing)
	require.Error(t, err)
}

func TestDatasetBuilderErrors(t *testing.T) {
	builder := NewDatasetBuilder()
	require.Error(t, builder.AddFeature(1, false, false, false, []uint16{0}))
	require.Error(t, builder.AddFeature(2, false, false, false, []uint16{0, 2}))
	require.NoError(t, builder.AddFeature(2, false, false, false, []uint16{0, 1}))
	require.Error(t, builder.AddFeature(2, false, false, false, []uint16{0, 1, 0}))

	require.Error(t, builder.SetClassificationTargets(2, []int{0, 2}))
	require.NoError(t, builder.SetRegressionTargets([]float64{1, 2}))
	require.Error(t, builder.SetRegressionTargets([]float64{1, 2}))

	size, err := builder.Measure()
	require.NoError(t, err)
	require.Error(t, builder.Fill(make([]byte, size-1)))

	empty := NewDatasetBuilder()
	_, err = empty.Measure()
	require.Error(t, err)
}
