package ebm

import (
	"encoding/binary"
	"fmt"
	"math"
)

//The dataset travels between the binning front end and the handles as one
//self-describing packed blob: a header, then per feature its bin count,
//flags and bin column, then the optional weight column, then the targets.
//Callers size the buffer with Measure and write it with Fill, the same
//double-call convention the front ends already use for score reads.
const (
	blobMagic   = 0x4D424531 //"1EBM"
	blobVersion = 1

	blobTargetRegression     = 0
	blobTargetClassification = 1

	featureFlagMissing = 1 << 0
	featureFlagUnknown = 1 << 1
	featureFlagNominal = 1 << 2
)

//DatasetBuilder assembles a dataset blob column by column.
type DatasetBuilder struct {
	cSamples     int
	features     []Feature
	columns      [][]uint16
	weights      []float64
	targetsReg   []float64
	targetsClass []int
	cClasses     int
	hasTargets   bool
}

//NewDatasetBuilder starts an empty builder.
func NewDatasetBuilder() *DatasetBuilder {
	return &DatasetBuilder{cSamples: -1}
}

func (b *DatasetBuilder) checkSamples(n int) error {
	if b.cSamples < 0 {
		b.cSamples = n
		return nil
	}
	if b.cSamples != n {
		return fmt.Errorf("got %d entries, earlier columns hold %d", n, b.cSamples)
	}
	return nil
}

//AddFeature appends one pre-binned feature column.
func (b *DatasetBuilder) AddFeature(cBins int, missing, unknown, nominal bool, binIndices []uint16) error {
	if cBins < 2 {
		return fmt.Errorf("feature needs at least 2 bins, got %d", cBins)
	}
	if cBins > kStorageBinMax+1 {
		return fmt.Errorf("feature has %d bins, storage carries at most %d", cBins, kStorageBinMax+1)
	}
	if err := b.checkSamples(len(binIndices)); err != nil {
		return err
	}
	for s, iBin := range binIndices {
		if int(iBin) >= cBins {
			return fmt.Errorf("sample %d holds bin %d outside [0, %d)", s, iBin, cBins)
		}
	}
	b.features = append(b.features, Feature{CountBins: cBins, Missing: missing, Unknown: unknown, Nominal: nominal})
	b.columns = append(b.columns, append([]uint16(nil), binIndices...))
	return nil
}

//SetWeights attaches the optional nonnegative weight column.
func (b *DatasetBuilder) SetWeights(weights []float64) error {
	if err := b.checkSamples(len(weights)); err != nil {
		return err
	}
	b.weights = append([]float64(nil), weights...)
	return nil
}

//SetRegressionTargets attaches float targets.
func (b *DatasetBuilder) SetRegressionTargets(targets []float64) error {
	if b.hasTargets {
		return fmt.Errorf("targets were already set")
	}
	if err := b.checkSamples(len(targets)); err != nil {
		return err
	}
	b.targetsReg = append([]float64(nil), targets...)
	b.cClasses = 0
	b.hasTargets = true
	return nil
}

//SetClassificationTargets attaches integer class ids.
func (b *DatasetBuilder) SetClassificationTargets(cClasses int, targets []int) error {
	if b.hasTargets {
		return fmt.Errorf("targets were already set")
	}
	if cClasses < 2 {
		return fmt.Errorf("classification needs at least 2 classes, got %d", cClasses)
	}
	if err := b.checkSamples(len(targets)); err != nil {
		return err
	}
	for s, class := range targets {
		if class < 0 || class >= cClasses {
			return fmt.Errorf("sample %d holds class %d outside [0, %d)", s, class, cClasses)
		}
	}
	b.targetsClass = append([]int(nil), targets...)
	b.cClasses = cClasses
	b.hasTargets = true
	return nil
}

func (b *DatasetBuilder) validate() error {
	if len(b.features) == 0 {
		return fmt.Errorf("a dataset needs at least one feature")
	}
	if !b.hasTargets {
		return fmt.Errorf("a dataset needs targets")
	}
	return nil
}

//Measure returns the byte size the blob needs.
func (b *DatasetBuilder) Measure() (int, error) {
	if err := b.validate(); err != nil {
		return 0, err
	}
	size := 4 + 4 + 4 + 4 + 1 + 1 + 4 //magic, version, cFeatures, cSamples, weight flag, target kind, cClasses
	for range b.features {
		size += 4 + 1 + 2*b.cSamples
	}
	if b.weights != nil {
		size += 8 * b.cSamples
	}
	if b.cClasses == 0 {
		size += 8 * b.cSamples
	} else {
		size += 4 * b.cSamples
	}
	return size, nil
}

//Fill writes the blob into buf, which must hold exactly Measure() bytes.
func (b *DatasetBuilder) Fill(buf []byte) error {
	need, err := b.Measure()
	if err != nil {
		return err
	}
	if len(buf) != need {
		return fmt.Errorf("buffer holds %d bytes, blob needs %d", len(buf), need)
	}
	le := binary.LittleEndian
	pos := 0
	put32 := func(v uint32) {
		le.PutUint32(buf[pos:], v)
		pos += 4
	}
	put32(blobMagic)
	put32(blobVersion)
	put32(uint32(len(b.features)))
	put32(uint32(b.cSamples))
	if b.weights != nil {
		buf[pos] = 1
	} else {
		buf[pos] = 0
	}
	pos++
	if b.cClasses == 0 {
		buf[pos] = blobTargetRegression
	} else {
		buf[pos] = blobTargetClassification
	}
	pos++
	put32(uint32(b.cClasses))

	for iFeature, feature := range b.features {
		put32(uint32(feature.CountBins))
		flags := byte(0)
		if feature.Missing {
			flags |= featureFlagMissing
		}
		if feature.Unknown {
			flags |= featureFlagUnknown
		}
		if feature.Nominal {
			flags |= featureFlagNominal
		}
		buf[pos] = flags
		pos++
		for _, iBin := range b.columns[iFeature] {
			le.PutUint16(buf[pos:], iBin)
			pos += 2
		}
	}
	if b.weights != nil {
		for _, w := range b.weights {
			le.PutUint64(buf[pos:], math.Float64bits(w))
			pos += 8
		}
	}
	if b.cClasses == 0 {
		for _, target := range b.targetsReg {
			le.PutUint64(buf[pos:], math.Float64bits(target))
			pos += 8
		}
	} else {
		for _, class := range b.targetsClass {
			put32(uint32(class))
		}
	}
	return nil
}

//NewDatasetFromBlob parses a blob back into a dataset.
func NewDatasetFromBlob(blob []byte) (*Dataset, error) {
	le := binary.LittleEndian
	pos := 0
	get32 := func() (uint32, error) {
		if pos+4 > len(blob) {
			return 0, fmt.Errorf("blob truncated at byte %d", pos)
		}
		v := le.Uint32(blob[pos:])
		pos += 4
		return v, nil
	}
	magic, err := get32()
	if err != nil {
		return nil, err
	}
	if magic != blobMagic {
		return nil, fmt.Errorf("bad blob magic %#x", magic)
	}
	version, err := get32()
	if err != nil {
		return nil, err
	}
	if version != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", version)
	}
	cFeatures32, err := get32()
	if err != nil {
		return nil, err
	}
	cSamples32, err := get32()
	if err != nil {
		return nil, err
	}
	cFeatures := int(cFeatures32)
	cSamples := int(cSamples32)
	if pos+2 > len(blob) {
		return nil, fmt.Errorf("blob truncated at byte %d", pos)
	}
	hasWeights := blob[pos] != 0
	targetKind := blob[pos+1]
	pos += 2
	cClasses32, err := get32()
	if err != nil {
		return nil, err
	}
	cClasses := int(cClasses32)

	features := make([]Feature, cFeatures)
	columns := make([][]uint16, cFeatures)
	for iFeature := 0; iFeature < cFeatures; iFeature++ {
		cBins32, err := get32()
		if err != nil {
			return nil, err
		}
		if pos+1+2*cSamples > len(blob) {
			return nil, fmt.Errorf("blob truncated in feature %d", iFeature)
		}
		flags := blob[pos]
		pos++
		features[iFeature] = Feature{
			CountBins: int(cBins32),
			Missing:   flags&featureFlagMissing != 0,
			Unknown:   flags&featureFlagUnknown != 0,
			Nominal:   flags&featureFlagNominal != 0,
		}
		column := make([]uint16, cSamples)
		for s := 0; s < cSamples; s++ {
			column[s] = le.Uint16(blob[pos:])
			pos += 2
		}
		columns[iFeature] = column
	}

	var weights []float64
	if hasWeights {
		if pos+8*cSamples > len(blob) {
			return nil, fmt.Errorf("blob truncated in weights")
		}
		weights = make([]float64, cSamples)
		for s := 0; s < cSamples; s++ {
			weights[s] = math.Float64frombits(le.Uint64(blob[pos:]))
			pos += 8
		}
	}

	var targetsReg []float64
	var targetsClass []int
	switch targetKind {
	case blobTargetRegression:
		if pos+8*cSamples > len(blob) {
			return nil, fmt.Errorf("blob truncated in targets")
		}
		targetsReg = make([]float64, cSamples)
		for s := 0; s < cSamples; s++ {
			targetsReg[s] = math.Float64frombits(le.Uint64(blob[pos:]))
			pos += 8
		}
		cClasses = 0
	case blobTargetClassification:
		targetsClass = make([]int, cSamples)
		for s := 0; s < cSamples; s++ {
			class, err := get32()
			if err != nil {
				return nil, err
			}
			targetsClass[s] = int(class)
		}
	default:
		return nil, fmt.Errorf("unknown target kind %d", targetKind)
	}
	if pos != len(blob) {
		return nil, fmt.Errorf("blob holds %d trailing bytes", len(blob)-pos)
	}
	return NewDataset(features, columns, weights, targetsReg, targetsClass, cClasses)
}
