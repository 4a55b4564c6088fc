package ebm

import "fmt"

//Feature is one discrete, pre-binned attribute. Bin 0 holds missing values.
//Features are immutable after dataset construction.
type Feature struct {
	CountBins int
	Missing   bool
	Unknown   bool
	Nominal   bool
}

//kDimensionsHardMax bounds the number of features a single term may reference.
const kDimensionsHardMax = 8

//Term is an ordered tuple of feature indices jointly defining a bin tensor.
//One feature is a main effect, two an interaction pair.
type Term struct {
	FeatureIndices []int

	cTensorBins int
	shape       []int
}

//NewTerm validates the feature tuple against the dataset features and
//precomputes the tensor shape. Dimension 0 is the fastest-moving index.
func NewTerm(featureIndices []int, features []Feature) (*Term, error) {
	if len(featureIndices) < 1 {
		return nil, fmt.Errorf("a term needs at least one feature")
	}
	if len(featureIndices) > kDimensionsHardMax {
		return nil, fmt.Errorf("a term may reference at most %d features, got %d", kDimensionsHardMax, len(featureIndices))
	}
	term := &Term{
		FeatureIndices: append([]int(nil), featureIndices...),
		cTensorBins:    1,
		shape:          make([]int, 0, len(featureIndices)),
	}
	for _, iFeature := range featureIndices {
		if iFeature < 0 || iFeature >= len(features) {
			return nil, fmt.Errorf("term feature index %d out of range, dataset has %d features", iFeature, len(features))
		}
		cBins := features[iFeature].CountBins
		if cBins < 2 {
			return nil, fmt.Errorf("feature %d has %d bins, single-bin features must be stripped before term construction", iFeature, cBins)
		}
		next := term.cTensorBins * cBins
		if next/cBins != term.cTensorBins {
			return nil, fmt.Errorf("tensor shape overflow for term %v", featureIndices)
		}
		term.cTensorBins = next
		term.shape = append(term.shape, cBins)
	}
	return term, nil
}

//CountDimensions returns the number of features in the term.
func (term *Term) CountDimensions() int {
	return len(term.FeatureIndices)
}

//CountTensorBins returns the product of the per-dimension bin counts.
func (term *Term) CountTensorBins() int {
	return term.cTensorBins
}

//Shape returns the per-dimension bin counts, dimension 0 first.
func (term *Term) Shape() []int {
	return term.shape
}
