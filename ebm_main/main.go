package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime/pprof"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/fvinas/interpret/ebm"
)

func newLogger(logFile string) *zap.Logger {
	if logFile == "" {
		logger, err := zap.NewProduction()
		ebm.HandleError(err)
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout", logFile}
	logger, err := cfg.Build()
	ebm.HandleError(err)
	return logger
}

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	ebm.HandleError(err)
	defer func() { ebm.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	ebm.HandleError(decoder.Decode(out))
}

type TrainConfig struct {
	FileNameBinned  string  `json:"filename_binned"`
	FileNameTargets string  `json:"filename_targets"`
	FileNameWeights string  `json:"filename_weights"`
	FileNameBag     string  `json:"filename_bag"`
	FileNameModel   string  `json:"filename_model"`
	FileNameCurves  string  `json:"filename_learning_curves"`
	RenderDirectory string  `json:"render_directory"`
	Objective       string  `json:"objective"`
	CountClasses    int     `json:"count_classes"`
	Pairs           [][]int `json:"pairs"`
	Rounds          int     `json:"rounds"`
	LearningRate    float64 `json:"learning_rate"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	LeavesMax       int     `json:"leaves_max"`
	ThreadsNum      int     `json:"threads_num"`
	Seed            int64   `json:"seed"`
}

//buildDataset assembles the dataset through the blob builder so the CLI
//exercises the same measure/fill path FFI front ends use.
func buildDataset(cfg TrainConfig, logger *zap.SugaredLogger) (*ebm.Dataset, []int) {
	binned := ebm.ReadNpy(cfg.FileNameBinned)
	columns, maxBins := ebm.BinColumnsFromDense(binned)

	builder := ebm.NewDatasetBuilder()
	for q, column := range columns {
		ebm.HandleError(builder.AddFeature(maxBins[q], true, false, false, column))
	}
	if cfg.FileNameWeights != "" {
		weightsMat := ebm.ReadNpy(cfg.FileNameWeights)
		h, _ := weightsMat.Dims()
		weights := make([]float64, h)
		for p := 0; p < h; p++ {
			weights[p] = weightsMat.At(p, 0)
		}
		ebm.HandleError(builder.SetWeights(weights))
	}
	targetsMat := ebm.ReadNpy(cfg.FileNameTargets)
	h, _ := targetsMat.Dims()
	if cfg.Objective == "rmse" {
		targets := make([]float64, h)
		for p := 0; p < h; p++ {
			targets[p] = targetsMat.At(p, 0)
		}
		ebm.HandleError(builder.SetRegressionTargets(targets))
	} else {
		targets := make([]int, h)
		cClasses := cfg.CountClasses
		for p := 0; p < h; p++ {
			targets[p] = int(targetsMat.At(p, 0))
			if targets[p]+1 > cClasses {
				cClasses = targets[p] + 1
			}
		}
		ebm.HandleError(builder.SetClassificationTargets(cClasses, targets))
	}

	size, err := builder.Measure()
	ebm.HandleError(err)
	blob := make([]byte, size)
	ebm.HandleError(builder.Fill(blob))
	dataset, err := ebm.NewDatasetFromBlob(blob)
	ebm.HandleError(err)
	logger.Infow("dataset ready", "samples", dataset.CountSamples(), "features", dataset.CountFeatures(), "blob_bytes", size)

	var bag []int
	if cfg.FileNameBag != "" {
		bagMat := ebm.ReadNpy(cfg.FileNameBag)
		bagH, _ := bagMat.Dims()
		bag = make([]int, bagH)
		for p := 0; p < bagH; p++ {
			bag[p] = int(bagMat.At(p, 0))
		}
	}
	return dataset, bag
}

func train(srcConfig string, logger *zap.SugaredLogger) {
	var cfg TrainConfig
	decodeConfig(srcConfig, &cfg)
	dataset, bag := buildDataset(cfg, logger)

	var terms [][]int
	for q := 0; q < dataset.CountFeatures(); q++ {
		terms = append(terms, []int{q})
	}
	terms = append(terms, cfg.Pairs...)

	booster, err := ebm.NewBooster(ebm.BoosterParams{
		Seed:      cfg.Seed,
		Dataset:   dataset,
		Bag:       bag,
		Terms:     terms,
		Objective: cfg.Objective,
		Threads:   cfg.ThreadsNum,
	})
	ebm.HandleError(err)
	defer booster.Free()

	for round := 0; round < cfg.Rounds; round++ {
		var metric float64
		for iTerm := range terms {
			_, err := booster.GenerateTermUpdate(iTerm, ebm.BoostFlagsNone, cfg.LearningRate, cfg.MinSamplesLeaf, cfg.LeavesMax)
			ebm.HandleError(err)
			metric, err = booster.ApplyTermUpdate()
			ebm.HandleError(err)
		}
		logger.Infow("round done", "round", round+1, "validation_metric", metric)
	}

	model := booster.Model(true)
	model.Save(cfg.FileNameModel)
	if cfg.FileNameCurves != "" {
		model.DumpLearningCurves(cfg.FileNameCurves)
	}
	if cfg.RenderDirectory != "" {
		model.RenderTerms("term", "svg", cfg.RenderDirectory)
	}
	logger.Infow("model saved", "path", cfg.FileNameModel, "terms", len(terms))
}

type PredictConfig struct {
	FileNameBinned     string `json:"filename_binned"`
	FileNameModel      string `json:"filename_model"`
	FileNamePrediction string `json:"filename_prediction"`
}

func predict(srcConfig string, logger *zap.SugaredLogger) {
	var cfg PredictConfig
	decodeConfig(srcConfig, &cfg)

	binned := ebm.ReadNpy(cfg.FileNameBinned)
	columns, _ := ebm.BinColumnsFromDense(binned)

	model := ebm.LoadModel(cfg.FileNameModel)
	prediction := model.PredictScores(columns)

	out := mat.NewDense(len(prediction), model.CScores, nil)
	for s, scores := range prediction {
		out.SetRow(s, scores)
	}
	ebm.HandleError(ebm.WriteNpy(cfg.FileNamePrediction, out))
	logger.Infow("prediction written", "path", cfg.FileNamePrediction, "samples", len(prediction))
}

type InteractionsConfig struct {
	TrainConfig
	FileNameRanking string `json:"filename_ranking"`
	TopPairs        int    `json:"top_pairs"`
}

type rankedPair struct {
	Features []int   `json:"features"`
	Strength float64 `json:"strength"`
}

func interactions(srcConfig string, logger *zap.SugaredLogger) {
	var cfg InteractionsConfig
	decodeConfig(srcConfig, &cfg)
	dataset, bag := buildDataset(cfg.TrainConfig, logger)

	detector, err := ebm.NewInteractionDetector(ebm.InteractionParams{
		Seed:      cfg.Seed,
		Dataset:   dataset,
		Bag:       bag,
		Objective: cfg.Objective,
		Threads:   cfg.ThreadsNum,
	})
	ebm.HandleError(err)
	defer detector.Free()

	var ranking []rankedPair
	for a := 0; a < dataset.CountFeatures(); a++ {
		for b := a + 1; b < dataset.CountFeatures(); b++ {
			strength, err := detector.CalcInteractionStrength([]int{a, b}, ebm.InteractionFlagsNone, cfg.MinSamplesLeaf)
			ebm.HandleError(err)
			ranking = append(ranking, rankedPair{Features: []int{a, b}, Strength: strength})
		}
	}
	sort.Slice(ranking, func(i, j int) bool { return ranking[i].Strength > ranking[j].Strength })
	if cfg.TopPairs > 0 && len(ranking) > cfg.TopPairs {
		ranking = ranking[:cfg.TopPairs]
	}
	for _, pair := range ranking {
		logger.Infow("interaction", "features", pair.Features, "strength", pair.Strength)
	}

	if cfg.FileNameRanking != "" {
		dst, err := os.Create(cfg.FileNameRanking)
		ebm.HandleError(err)
		defer func() { ebm.HandleError(dst.Close()) }()
		bytesResult, err := json.MarshalIndent(ranking, "", "  ")
		ebm.HandleError(err)
		_, err = dst.Write(bytesResult)
		ebm.HandleError(err)
	}
}

func main() {
	mode := flag.String("mode", "train", "train, predict or interactions")
	config := flag.String("config", "", "path to the json config for the selected mode")
	logFile := flag.String("logfile", "", "optional log destination in addition to stdout")
	cpuprofile := flag.String("cpuprofile", "", "write a cpu profile to this file")
	flag.Parse()

	logger := newLogger(*logFile)
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()
	log.SetFlags(0)
	log.SetOutput(zap.NewStdLog(logger).Writer())

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		ebm.HandleError(err)
		ebm.HandleError(pprof.StartCPUProfile(f))
		defer pprof.StopCPUProfile()
	}

	if *config == "" {
		sugar.Fatal("a -config file is required")
	}

	switch *mode {
	case "train":
		train(*config, sugar)
	case "predict":
		predict(*config, sugar)
	case "interactions":
		interactions(*config, sugar)
	default:
		sugar.Fatalw("unknown mode", "mode", *mode)
	}
}
