package ebm

import (
	"fmt"
	"math"
)

//Objective supplies the closed-form per-sample derivatives of a loss and
//the validation metric reported after each applied update.
type Objective interface {
	Name() string
	Classification() bool
	CountScores() int
	//SampleGradHess writes the gradient (and, for classification, the
	//interleaved hessian) of one sample into gh given its score vector
	//and target. Classification targets are class ids cast to float.
	SampleGradHess(scores []float64, target float64, gh []float64)
	//SampleMetric returns one sample's contribution to the validation
	//loss sum.
	SampleMetric(scores []float64, target float64) float64
	//FinishMetric folds the weighted loss sum into the reported metric.
	FinishMetric(lossSum, weightTotal float64) float64
}

//ObjectiveFactory builds an objective for a dataset's class count
//(0 for regression).
type ObjectiveFactory func(cClasses int) (Objective, error)

var objectiveRegistry = map[string]ObjectiveFactory{}

//RegisterObjective makes an objective constructible by name. Additional
//objectives may be registered by callers before handle creation.
func RegisterObjective(name string, factory ObjectiveFactory) {
	objectiveRegistry[name] = factory
}

//NewObjective resolves an objective name for the given class count.
//Unknown names are construction errors, not panics.
func NewObjective(name string, cClasses int) (Objective, error) {
	factory, ok := objectiveRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q", name)
	}
	return factory(cClasses)
}

func init() {
	RegisterObjective("rmse", func(cClasses int) (Objective, error) {
		if cClasses != 0 {
			return nil, fmt.Errorf("rmse requires a regression dataset, got %d classes", cClasses)
		}
		return RmseObjective{}, nil
	})
	RegisterObjective("log_loss", func(cClasses int) (Objective, error) {
		if cClasses < 2 {
			return nil, fmt.Errorf("log_loss requires at least 2 classes, got %d", cClasses)
		}
		return &LogLossObjective{cClasses: cClasses}, nil
	})
}

//RmseObjective is squared-error regression. The hessian is the constant 1
//and is never stored; the trainer exploits that the gradient alone carries
//the model state (gradient = score - target).
type RmseObjective struct{}

func (RmseObjective) Name() string         { return "rmse" }
func (RmseObjective) Classification() bool { return false }
func (RmseObjective) CountScores() int     { return 1 }

func (RmseObjective) SampleGradHess(scores []float64, target float64, gh []float64) {
	gh[0] = scores[0] - target
}

func (RmseObjective) SampleMetric(scores []float64, target float64) float64 {
	diff := scores[0] - target
	return diff * diff
}

func (RmseObjective) FinishMetric(lossSum, weightTotal float64) float64 {
	return math.Sqrt(lossSum / weightTotal)
}

//rmseGradientInit is the initializer form of the rmse gradient.
func rmseGradientInit(initScore, target float64) float64 {
	return initScore - target
}

//LogLossObjective is logistic loss. Binary classification trains one logit
//measuring the non-reference class against the reference class selected by
//ZeroClassificationLogit; K-way multiclass trains all K logits and the
//reference subtraction is applied only when scores are read out.
type LogLossObjective struct {
	cClasses int
	//ZeroClassificationLogit selects which class plays the reference
	//role in the binary single-logit convention.
	ZeroClassificationLogit int
}

func (o *LogLossObjective) Name() string         { return "log_loss" }
func (o *LogLossObjective) Classification() bool { return true }

func (o *LogLossObjective) CountScores() int {
	return GetCountScores(o.cClasses)
}

func (o *LogLossObjective) SampleGradHess(scores []float64, target float64, gh []float64) {
	class := int(target)
	if o.cClasses == 2 {
		p := sigmoid(scores[0])
		y := 0.0
		if class != o.ZeroClassificationLogit {
			y = 1.0
		}
		gh[0] = p - y
		gh[1] = p * (1 - p)
		return
	}
	shift := maxScore(scores)
	sumExp := 0.0
	for _, s := range scores {
		sumExp += math.Exp(s - shift)
	}
	for k, s := range scores {
		p := math.Exp(s-shift) / sumExp
		y := 0.0
		if k == class {
			y = 1.0
		}
		gh[2*k] = p - y
		gh[2*k+1] = p * (1 - p)
	}
}

func (o *LogLossObjective) SampleMetric(scores []float64, target float64) float64 {
	class := int(target)
	if o.cClasses == 2 {
		s := scores[0]
		y := 0.0
		if class != o.ZeroClassificationLogit {
			y = 1.0
		}
		//log(1+exp(s)) - y*s, computed without overflowing for large |s|
		return logOnePlusExp(s) - y*s
	}
	shift := maxScore(scores)
	sumExp := 0.0
	for _, s := range scores {
		sumExp += math.Exp(s - shift)
	}
	return shift + math.Log(sumExp) - scores[class]
}

func (o *LogLossObjective) FinishMetric(lossSum, weightTotal float64) float64 {
	return lossSum / weightTotal
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func logOnePlusExp(s float64) float64 {
	if s > 0 {
		return s + math.Log1p(math.Exp(-s))
	}
	return math.Log1p(math.Exp(s))
}

func maxScore(scores []float64) float64 {
	m := scores[0]
	for _, s := range scores[1:] {
		if s > m {
			m = s
		}
	}
	return m
}
