package ebm

import (
	"fmt"
	"log"
)

//Dataset holds pre-binned immutable training data shared by every handle.
//Classification targets are class ids; regression targets are floats. The
//replication bag is not part of the dataset: each handle brings its own.
type Dataset struct {
	features     []Feature
	columns      [][]uint16
	weights      []float64
	targetsReg   []float64
	targetsClass []int
	cClasses     int
	cSamples     int
}

//kStorageBinMax is the largest bin index one storage cell can carry. A
//feature with more than kStorageBinMax+1 bins is a construction error; the shared cell
//width keeps the aggregation kernel monomorphic over storage.
const kStorageBinMax = 1<<16 - 1

//NewDataset validates and assembles a dataset. cClasses is 0 for regression;
//classification requires cClasses >= 2 and targetsClass entries within range.
func NewDataset(
	features []Feature,
	columns [][]uint16,
	weights []float64,
	targetsReg []float64,
	targetsClass []int,
	cClasses int,
) (*Dataset, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("a dataset needs at least one feature")
	}
	if len(columns) != len(features) {
		return nil, fmt.Errorf("got %d bin columns for %d features", len(columns), len(features))
	}
	cSamples := len(columns[0])
	for iFeature, feature := range features {
		if feature.CountBins < 2 {
			return nil, fmt.Errorf("feature %d has %d bins, need at least 2", iFeature, feature.CountBins)
		}
		if feature.CountBins > kStorageBinMax+1 {
			return nil, fmt.Errorf("feature %d has %d bins, storage carries at most %d", iFeature, feature.CountBins, kStorageBinMax+1)
		}
		if len(columns[iFeature]) != cSamples {
			return nil, fmt.Errorf("feature %d column has %d samples, feature 0 has %d", iFeature, len(columns[iFeature]), cSamples)
		}
		for s, iBin := range columns[iFeature] {
			if int(iBin) >= feature.CountBins {
				return nil, fmt.Errorf("feature %d sample %d holds bin %d outside [0, %d)", iFeature, s, iBin, feature.CountBins)
			}
		}
	}
	if weights != nil && len(weights) != cSamples {
		return nil, fmt.Errorf("got %d weights for %d samples", len(weights), cSamples)
	}
	if cClasses == 0 {
		if len(targetsReg) != cSamples {
			return nil, fmt.Errorf("got %d regression targets for %d samples", len(targetsReg), cSamples)
		}
		if targetsClass != nil {
			return nil, fmt.Errorf("regression datasets carry no class targets")
		}
	} else {
		if cClasses < 2 {
			return nil, fmt.Errorf("classification needs at least 2 classes, got %d", cClasses)
		}
		if len(targetsClass) != cSamples {
			return nil, fmt.Errorf("got %d class targets for %d samples", len(targetsClass), cSamples)
		}
		for s, class := range targetsClass {
			if class < 0 || class >= cClasses {
				return nil, fmt.Errorf("sample %d holds class %d outside [0, %d)", s, class, cClasses)
			}
		}
		if targetsReg != nil {
			return nil, fmt.Errorf("classification datasets carry no regression targets")
		}
	}
	return &Dataset{
		features:     features,
		columns:      columns,
		weights:      weights,
		targetsReg:   targetsReg,
		targetsClass: targetsClass,
		cClasses:     cClasses,
		cSamples:     cSamples,
	}, nil
}

//CountSamples returns the number of samples before bag replication.
func (ds *Dataset) CountSamples() int {
	return ds.cSamples
}

//CountFeatures returns the number of features.
func (ds *Dataset) CountFeatures() int {
	return len(ds.features)
}

//CountClasses returns 0 for regression, otherwise the class count.
func (ds *Dataset) CountClasses() int {
	return ds.cClasses
}

//Features returns the feature descriptors.
func (ds *Dataset) Features() []Feature {
	return ds.features
}

//HasWeights reports whether a weight column is present.
func (ds *Dataset) HasWeights() bool {
	return ds.weights != nil
}

//GetCountScores maps a class count to the per-sample score width: regression
//and binary classification train a single score, K-way multiclass trains K.
func GetCountScores(cClasses int) int {
	if cClasses <= 2 {
		return 1
	}
	return cClasses
}

//bagDirection selects which bag entries a subset expansion consumes.
type bagDirection int

const (
	bagTraining   bagDirection = 1
	bagValidation bagDirection = -1
	//bagEverything accepts every nonzero entry; used by interaction
	//detection where no holdout exists.
	bagEverything bagDirection = 0
)

//countBagSamples returns the expanded sample count a pass will produce.
//A nil bag means every sample once, training side only.
func countBagSamples(bag []int, cSamples int, direction bagDirection) int {
	if bag == nil {
		if direction == bagValidation {
			return 0
		}
		return cSamples
	}
	if len(bag) != cSamples {
		log.Panicf("bag holds %d entries for %d samples", len(bag), cSamples)
	}
	total := 0
	for _, replication := range bag {
		switch {
		case replication > 0 && direction != bagValidation:
			total += replication
		case replication < 0 && direction != bagTraining:
			total += -replication
		}
	}
	return total
}

//subset is the expanded, replication-applied view of one bag side. Every
//parallel array is indexed by expanded sample position.
type subset struct {
	cSamples     int
	columns      [][]uint16
	weights      []float64
	targetsReg   []float64
	targetsClass []int
	//gradHess holds cScores entries per sample, or interleaved
	//gradient/hessian pairs (2*cScores) for classification.
	gradHess []float64
	//scores holds the model scores per sample for classification
	//objectives; RMSE regression keeps no scores, only gradients.
	scores      []float64
	weightTotal float64
}

//expandSubset replicates columns, weights and targets according to the bag.
//Gradient buffers are sized but not filled; the initializers own that.
func expandSubset(ds *Dataset, bag []int, direction bagDirection, cScores int, classification bool) *subset {
	cExpanded := countBagSamples(bag, ds.cSamples, direction)
	sub := &subset{
		cSamples: cExpanded,
		columns:  make([][]uint16, len(ds.features)),
	}
	for iFeature := range ds.features {
		sub.columns[iFeature] = make([]uint16, 0, cExpanded)
	}
	if ds.weights != nil {
		sub.weights = make([]float64, 0, cExpanded)
	}
	if ds.cClasses == 0 {
		sub.targetsReg = make([]float64, 0, cExpanded)
	} else {
		sub.targetsClass = make([]int, 0, cExpanded)
	}

	for s := 0; s < ds.cSamples; s++ {
		replication := 1
		if bag != nil {
			replication = bag[s]
		}
		switch {
		case replication == 0:
			continue
		case replication > 0 && direction == bagValidation:
			continue
		case replication < 0 && direction == bagTraining:
			continue
		case replication < 0:
			replication = -replication
		}
		for r := 0; r < replication; r++ {
			for iFeature := range ds.features {
				sub.columns[iFeature] = append(sub.columns[iFeature], ds.columns[iFeature][s])
			}
			if ds.weights != nil {
				sub.weights = append(sub.weights, ds.weights[s])
			}
			if ds.cClasses == 0 {
				sub.targetsReg = append(sub.targetsReg, ds.targetsReg[s])
			} else {
				sub.targetsClass = append(sub.targetsClass, ds.targetsClass[s])
			}
		}
	}

	perSample := cScores
	if classification {
		perSample = 2 * cScores
		sub.scores = make([]float64, cExpanded*cScores)
	}
	sub.gradHess = make([]float64, cExpanded*perSample)

	sub.weightTotal = float64(cExpanded)
	if sub.weights != nil {
		sub.weightTotal = 0
		for _, w := range sub.weights {
			sub.weightTotal += w
		}
	}
	return sub
}
