package ebm

//The aggregation loop must not read its class or dimension structure from
//memory on every sample, so a finite family of kernel variants is
//monomorphized here over (cClasses, cDimensions) and selected once per
//call. Each specialized wrapper feeds literal bounds into binSumsBody; the
//dynamic fallbacks read the same values from the arguments and produce
//bit-identical sums. The family is the Go rendition of a recursive
//template ladder: a jump table keyed by the two runtime values.
const (
	//kCompilerClassesMax is the largest class count with its own kernel;
	//beyond it the dynamic-classification variant runs.
	kCompilerClassesMax = 4
	//kCompilerDimensionsMax is the largest dimension count with its own
	//kernel per class variant.
	kCompilerDimensionsMax = 3
)

//Regression variants. Regression always trains a single score.
func binSumsR1(a *binSumsArgs) { binSumsBody(a, 1, false, 1) }
func binSumsR2(a *binSumsArgs) { binSumsBody(a, 1, false, 2) }
func binSumsR3(a *binSumsArgs) { binSumsBody(a, 1, false, 3) }
func binSumsRDyn(a *binSumsArgs) {
	binSumsBody(a, 1, false, len(a.data.Columns))
}

//Binary classification trains a single logit.
func binSumsC2D1(a *binSumsArgs) { binSumsBody(a, 1, true, 1) }
func binSumsC2D2(a *binSumsArgs) { binSumsBody(a, 1, true, 2) }
func binSumsC2D3(a *binSumsArgs) { binSumsBody(a, 1, true, 3) }
func binSumsC2DDyn(a *binSumsArgs) {
	binSumsBody(a, 1, true, len(a.data.Columns))
}

func binSumsC3D1(a *binSumsArgs) { binSumsBody(a, 3, true, 1) }
func binSumsC3D2(a *binSumsArgs) { binSumsBody(a, 3, true, 2) }
func binSumsC3D3(a *binSumsArgs) { binSumsBody(a, 3, true, 3) }
func binSumsC3DDyn(a *binSumsArgs) {
	binSumsBody(a, 3, true, len(a.data.Columns))
}

func binSumsC4D1(a *binSumsArgs) { binSumsBody(a, 4, true, 1) }
func binSumsC4D2(a *binSumsArgs) { binSumsBody(a, 4, true, 2) }
func binSumsC4D3(a *binSumsArgs) { binSumsBody(a, 4, true, 3) }
func binSumsC4DDyn(a *binSumsArgs) {
	binSumsBody(a, 4, true, len(a.data.Columns))
}

//Dynamic-classification variants read the score width from the arguments.
func binSumsCDynD1(a *binSumsArgs) { binSumsBody(a, a.data.CScores, true, 1) }
func binSumsCDynD2(a *binSumsArgs) { binSumsBody(a, a.data.CScores, true, 2) }
func binSumsCDynD3(a *binSumsArgs) { binSumsBody(a, a.data.CScores, true, 3) }

//binSumsDynamic is the fully generic kernel: both the class and the
//dimension structure come from the arguments. Every specialized variant
//must agree with it to the last bit.
func binSumsDynamic(a *binSumsArgs) {
	binSumsBody(a, a.data.CScores, a.data.Classification, len(a.data.Columns))
}

//lookupBinSums walks the target ladder first (classification class counts
//2..kCompilerClassesMax, then the dynamic-classification fallback) and the
//dimension ladder second. Regression enters the dimension ladder directly.
func lookupBinSums(cClasses int, classification bool, cDims int) binSumsFunc {
	if !classification {
		switch cDims {
		case 1:
			return binSumsR1
		case 2:
			return binSumsR2
		case 3:
			return binSumsR3
		default:
			return binSumsRDyn
		}
	}
	switch cClasses {
	case 2:
		switch cDims {
		case 1:
			return binSumsC2D1
		case 2:
			return binSumsC2D2
		case 3:
			return binSumsC2D3
		default:
			return binSumsC2DDyn
		}
	case 3:
		switch cDims {
		case 1:
			return binSumsC3D1
		case 2:
			return binSumsC3D2
		case 3:
			return binSumsC3D3
		default:
			return binSumsC3DDyn
		}
	case 4:
		switch cDims {
		case 1:
			return binSumsC4D1
		case 2:
			return binSumsC4D2
		case 3:
			return binSumsC4D3
		default:
			return binSumsC4DDyn
		}
	default:
		switch cDims {
		case 1:
			return binSumsCDynD1
		case 2:
			return binSumsCDynD2
		case 3:
			return binSumsCDynD3
		default:
			return binSumsDynamic
		}
	}
}
