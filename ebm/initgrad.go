package ebm

import "log"

//InitializeRmseGradientsBoosting writes the initial per-sample gradients of
//one bag side into the expanded gradient buffer. RMSE keeps no score
//buffer: the gradient itself (initScore - target) carries the model state.
//The walk advances through the shared target and init-score arrays by the
//magnitudes the bag dictates, accepting only entries whose sign matches the
//pass, and writes each accepted gradient |replication| times.
func InitializeRmseGradientsBoosting(
	targets []float64,
	bag []int,
	initScores []float64,
	direction bagDirection,
	gradients []float64,
) {
	if direction != bagTraining && direction != bagValidation {
		log.Panicf("boosting initialization needs a training or validation pass, got %d", direction)
	}
	isLoopValidation := direction == bagValidation
	if bag == nil && isLoopValidation {
		if len(gradients) != 0 {
			log.Panicf("no bag means no validation samples, yet %d gradients were requested", len(gradients))
		}
		return
	}

	iShared := 0
	iOut := 0
	for iOut < len(gradients) {
		replication := 1
		if bag != nil {
			for {
				for bag[iShared] == 0 {
					iShared++
				}
				if (bag[iShared] < 0) == isLoopValidation {
					break
				}
				iShared++
			}
			replication = bag[iShared]
			if replication < 0 {
				replication = -replication
			}
		}
		initScore := 0.0
		if initScores != nil {
			initScore = initScores[iShared]
		}
		//NaN targets pass through; propagation stops boosting at the
		//next metric read rather than here.
		gradient := rmseGradientInit(initScore, targets[iShared])
		for r := 0; r < replication; r++ {
			gradients[iOut] = gradient
			iOut++
		}
		iShared++
	}
}

//InitializeRmseGradientsInteraction is the interaction-detection flavor.
//It differs from the boosting flavor in exactly two ways: every nonzero bag
//entry is in scope regardless of sign, and when a weight array is present
//the gradient is multiplied by the sample weight here, once, before
//replication. Boosting instead applies weights during bin summation. The
//weights array is the
//expanded one, aligned with the output buffer.
func InitializeRmseGradientsInteraction(
	targets []float64,
	bag []int,
	initScores []float64,
	weights []float64,
	gradients []float64,
) {
	iShared := 0
	iOut := 0
	for iOut < len(gradients) {
		replication := 1
		if bag != nil {
			for bag[iShared] == 0 {
				iShared++
			}
			replication = bag[iShared]
			if replication < 0 {
				replication = -replication
			}
		}
		initScore := 0.0
		if initScores != nil {
			initScore = initScores[iShared]
		}
		gradient := rmseGradientInit(initScore, targets[iShared])
		if weights != nil {
			gradient *= weights[iOut]
		}
		for r := 0; r < replication; r++ {
			gradients[iOut] = gradient
			iOut++
		}
		iShared++
	}
}

//initializeScores copies the shared per-sample init scores into the
//expanded score buffer of one bag side, honoring replication. A nil
//initScores leaves the buffer at zero. cScores entries per sample.
func initializeScores(
	initScores []float64,
	bag []int,
	cScores int,
	direction bagDirection,
	scores []float64,
) {
	if initScores == nil {
		return
	}
	isLoopValidation := direction == bagValidation
	iShared := 0
	iOut := 0
	for iOut < len(scores) {
		replication := 1
		if bag != nil {
			for {
				for bag[iShared] == 0 {
					iShared++
				}
				if direction == bagEverything {
					break
				}
				if (bag[iShared] < 0) == isLoopValidation {
					break
				}
				iShared++
			}
			replication = bag[iShared]
			if replication < 0 {
				replication = -replication
			}
		}
		src := initScores[iShared*cScores : (iShared+1)*cScores]
		for r := 0; r < replication; r++ {
			copy(scores[iOut:iOut+cScores], src)
			iOut += cScores
		}
		iShared++
	}
}

//refreshGradHess rewrites the classification gradient/hessian pairs in
//place from the current scores. Called once at construction and again
//after every applied term update.
func refreshGradHess(obj Objective, sub *subset) {
	cScores := obj.CountScores()
	for s := 0; s < sub.cSamples; s++ {
		scores := sub.scores[s*cScores : (s+1)*cScores]
		gh := sub.gradHess[s*2*cScores : (s+1)*2*cScores]
		obj.SampleGradHess(scores, float64(sub.targetsClass[s]), gh)
	}
}

//scaleInteractionGradients applies the interaction-time weight
//premultiplication to an already-computed classification gradient buffer.
//Only the gradients are scaled; bin summation weights both halves.
func scaleInteractionGradients(sub *subset, cScores int) {
	if sub.weights == nil {
		return
	}
	for s := 0; s < sub.cSamples; s++ {
		w := sub.weights[s]
		for k := 0; k < cScores; k++ {
			sub.gradHess[s*2*cScores+2*k] *= w
		}
	}
}
