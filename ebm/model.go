package ebm

import (
	"encoding/json"
	"log"
	"os"
)

//Model is the persisted form of a boosted additive model: one score tensor
//per term plus the metric history of the run that produced it.
type Model struct {
	Objective     string
	CClasses      int
	CScores       int
	TermFeatures  [][]int
	TermShapes    [][]int
	TermScores    [][]float64
	MetricHistory []float64
}

//Model snapshots the booster into its persistable form; best selects the
//best-validation-round tensors instead of the current ones.
func (booster *Booster) Model(best bool) *Model {
	source := booster.termScores
	if best {
		source = booster.bestTermScores
	}
	model := &Model{
		Objective:     booster.objective.Name(),
		CClasses:      booster.dataset.cClasses,
		CScores:       booster.cScores,
		MetricHistory: booster.MetricHistory(),
	}
	for iTerm, term := range booster.terms {
		model.TermFeatures = append(model.TermFeatures, append([]int(nil), term.FeatureIndices...))
		model.TermShapes = append(model.TermShapes, append([]int(nil), term.Shape()...))
		model.TermScores = append(model.TermScores, append([]float64(nil), source[iTerm]...))
	}
	return model
}

//PredictScores sums every term's contribution for each sample. columns is
//one bin column per dataset feature; the result holds cScores entries per
//sample.
func (model *Model) PredictScores(columns [][]uint16) [][]float64 {
	if len(columns) == 0 {
		return nil
	}
	cSamples := len(columns[0])
	prediction := make([][]float64, cSamples)
	for s := range prediction {
		prediction[s] = make([]float64, model.CScores)
	}
	for iTerm, featureIndices := range model.TermFeatures {
		shape := model.TermShapes[iTerm]
		scores := model.TermScores[iTerm]
		termColumns := make([][]uint16, len(featureIndices))
		for d, iFeature := range featureIndices {
			termColumns[d] = columns[iFeature]
		}
		for s := 0; s < cSamples; s++ {
			iBin := tensorIndex(termColumns, shape, len(shape), s)
			for k := 0; k < model.CScores; k++ {
				prediction[s][k] += scores[iBin*model.CScores+k]
			}
		}
	}
	return prediction
}

func (model *Model) Save(filename string) {
	dest, err := os.Create(filename)
	if err != nil {
		log.Print("can't open file ", filename, " to write")
	}
	HandleError(err)
	defer func() { HandleError(dest.Close()) }()

	modelByteRepr, err := json.MarshalIndent(model, "", "  ")
	HandleError(err)

	_, err = dest.Write(modelByteRepr)
	HandleError(err)
}

func LoadModel(filename string) (model Model) {
	source, err := os.Open(filename)
	HandleError(err)
	defer func() { HandleError(source.Close()) }()

	decoder := json.NewDecoder(source)
	HandleError(decoder.Decode(&model))
	return
}

//LearningCurvesDump pairs the metric name with the per-round values.
type LearningCurvesDump struct {
	Title  string
	Values []float64
}

func (model *Model) DumpLearningCurves(filenameLearningCurves string) {
	destination, err := os.Create(filenameLearningCurves)
	HandleError(err)
	defer func() { HandleError(destination.Close()) }()

	dump := LearningCurvesDump{Title: model.Objective, Values: model.MetricHistory}

	bytesResult, err := json.MarshalIndent(dump, "", "  ")
	HandleError(err)
	_, err = destination.Write(bytesResult)
	HandleError(err)
}
