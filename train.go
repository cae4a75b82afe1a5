// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gomlx/ui/gonb/plotly"
	"github.com/janpfeifer/must"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

// LoadCorpus downloads (if needed) and preprocesses the corpus selected by
// the "dataset" hyperparameter. Panics on an unknown dataset name, before
// any download starts.
func LoadCorpus(ctx *context.Context, dataDir string) (*Corpus, error) {
	name := context.GetParamOr(ctx, "dataset", "")
	loader, found := Datasets[name]
	if !found {
		exceptions.Panicf("unknown \"dataset\" %q: valid values are %v", name, maps.Keys(Datasets))
	}
	return loader(dataDir)
}

// TrainModel trains (or continues training) the model configured in ctx.
// Raw and preprocessed data are kept under dataDir; checkpoints under
// checkpointDir, if not empty.
func TrainModel(ctx *context.Context, dataDir, checkpointDir string) {
	dataDir = data.ReplaceTildeInDir(dataDir)
	if !data.FileExists(dataDir) {
		must.M(os.MkdirAll(dataDir, 0777))
	}
	if charHiddenSize := context.GetParamOr(ctx, "char_hidden_size", 0); charHiddenSize%2 != 0 {
		exceptions.Panicf("\"char_hidden_size\" must be even, it is split between the two directions of the char LSTM, got %d", charHiddenSize)
	}

	corpus := must.M1(LoadCorpus(ctx, dataDir))
	ctx.SetParam("num_classes", corpus.NumClasses)
	ctx.SetParam("word_vocab_size", corpus.Words.Size())
	ctx.SetParam("char_vocab_size", corpus.Chars.Size())

	backend := backends.New()

	// Datasets: the training one is infinite when training by steps, finite
	// (one epoch per pass) when training by epochs.
	batchSize := context.GetParamOr(ctx, "batch_size", 0)
	evalBatchSize := context.GetParamOr(ctx, "eval_batch_size", 0)
	maxLen := context.GetParamOr(ctx, "max_sentence_len", 0)
	maxWordLen := context.GetParamOr(ctx, "max_word_len", 0)
	numTrainSteps := context.GetParamOr(ctx, "train_steps", 0)
	shuffle := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	trainDS := NewDataset("train", corpus, Train, maxLen, maxWordLen, batchSize, numTrainSteps > 0, shuffle)
	trainEvalDS := NewDataset("train-eval", corpus, Train, maxLen, maxWordLen, evalBatchSize, false, nil)
	devEvalDS := NewDataset("dev-eval", corpus, Dev, maxLen, maxWordLen, evalBatchSize, false, nil)
	testEvalDS := NewDataset("test-eval", corpus, Test, maxLen, maxWordLen, evalBatchSize, false, nil)

	// Metrics we are interested in.
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)

	trainer := train.NewTrainer(backend, ctx,
		BuildModelGraph,
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	// Checkpoints: loading a previous one (with its hyperparameters and
	// global step) happens here, so it must precede the pretrained
	// embeddings installation below.
	var checkpoint *checkpoints.Handler
	if checkpointDir != "" {
		numCheckpointsToKeep := context.GetParamOr(ctx, "num_checkpoints", 3)
		checkpoint = must.M1(checkpoints.Build(ctx).
			DirFromBase(checkpointDir, dataDir).
			Keep(numCheckpointsToKeep).
			ExcludeParams(ParamsExcludedFromSaving...).
			Done())
		fmt.Printf("Checkpointing model to %q\n", checkpoint.Dir())
		period := time.Minute * 3
		train.PeriodicCallback(loop, period, true, "saving checkpoint", 100,
			func(loop *train.Loop, metrics []*tensors.Tensor) error {
				return checkpoint.Save()
			})
	}
	must.M(InstallPretrainedEmbeddings(ctx, dataDir, corpus))

	// Periodic log of the training metrics.
	if printInterval := context.GetParamOr(ctx, "print_interval", 0); printInterval > 0 {
		train.EveryNSteps(loop, printInterval, "log training metrics", 100,
			func(loop *train.Loop, trainMetrics []*tensors.Tensor) error {
				parts := make([]string, 0, len(trainMetrics))
				for ii, metric := range trainer.TrainMetrics() {
					parts = append(parts, fmt.Sprintf("%s=%v", metric.ShortName(), trainMetrics[ii].Value()))
				}
				klog.Infof("step %d: %s", loop.LoopStep, strings.Join(parts, ", "))
				return nil
			})
	}

	// Attach Plotly plots: plot points at exponential steps.
	// The points generated are saved along the checkpoint directory (if one is given).
	if context.GetParamOr(ctx, plotly.ParamPlots, false) {
		_ = plotly.New().
			WithCheckpoint(checkpoint).
			Dynamic().
			WithDatasets(trainEvalDS, devEvalDS).
			ScheduleExponential(loop, 200, 1.2)
	}

	globalStep := int(optimizers.GetGlobalStep(ctx))
	if globalStep > 0 {
		trainer.SetContext(ctx.Reuse())
	}
	if numTrainSteps > 0 {
		if globalStep < numTrainSteps {
			_ = must.M1(loop.RunSteps(data.Parallel(trainDS), numTrainSteps-globalStep))
			fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
				loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
		} else {
			fmt.Printf("\t - target train_steps=%d already reached. To train further, set a number additional "+
				"to current global step.\n", numTrainSteps)
		}
	} else {
		numEpochs := context.GetParamOr(ctx, "epochs", 0)
		_ = must.M1(loop.RunEpochs(data.Parallel(trainDS), numEpochs))
		fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
			loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
	}

	// Finally, print an evaluation on train, dev and test datasets.
	fmt.Println()
	must.M(commandline.ReportEval(trainer, trainEvalDS, devEvalDS, testEvalDS))
	fmt.Println()
}

var sampleStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	Padding(1, 4, 1, 4).
	Width(72)

// PrintSample renders n random training pairs with their labels.
func PrintSample(corpus *Corpus, n int) {
	shuffle := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	examples := corpus.Split(Train)
	for ii := 0; ii < n && len(examples) > 0; ii++ {
		e := examples[shuffle.Intn(len(examples))]
		label := fmt.Sprintf("%d", e.Label)
		if corpus.Name == "snli" && e.Label < len(SNLIClassNames) {
			label = SNLIClassNames[e.Label]
		}
		fmt.Println(sampleStyle.Render(fmt.Sprintf("A: %s\nB: %s\nLabel: %s",
			corpus.SentenceString(e.A), corpus.SentenceString(e.B), label)))
	}
}
