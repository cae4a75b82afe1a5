// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Demo trainer and classifier for the sentence-pair matching model:
//
//  1. With `demo --download`: downloads and preprocesses the selected
//     dataset (`--set dataset=quora` or `--set dataset=snli`).
//  2. With `demo --train`: trains the model, checkpointing to --checkpoint.
//  3. With `demo --sample=N`: prints N random training pairs.
//  4. With `demo --classify -a "..." -b "..."`: classifies one sentence
//     pair with a previously trained model.
package main

import (
	"flag"
	"fmt"

	"github.com/gomlx/bimpm"
	"github.com/gomlx/bimpm/classifier"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/xla"
)

var (
	flagDataDir    = flag.String("data", "~/tmp/bimpm", "Directory to cache downloaded and generated dataset files.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory to save and load checkpoints from. If left empty, no checkpoints are created.")
	flagDownload   = flag.Bool("download", false, "Download and preprocess the dataset, then exit.")
	flagTrain      = flag.Bool("train", false, "Train the model.")
	flagSample     = flag.Int("sample", 0, "Print this many random training pairs.")
	flagClassify   = flag.Bool("classify", false, "Classify the sentence pair given by -a and -b, using the model in -checkpoint.")
	flagSentenceA  = flag.String("a", "", "First sentence, for -classify.")
	flagSentenceB  = flag.String("b", "", "Second sentence, for -classify.")
)

func main() {
	ctx := bimpm.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	_ = must.M1(commandline.ParseContextSettings(ctx, *settings))

	err := exceptions.TryCatch[error](func() {
		switch {
		case *flagDownload:
			corpus := must.M1(bimpm.LoadCorpus(ctx, *flagDataDir))
			klog.Infof("%s: %d examples, %d words, %d chars",
				corpus.Name, len(corpus.Examples), corpus.Words.Size(), corpus.Chars.Size())
		case *flagSample > 0:
			corpus := must.M1(bimpm.LoadCorpus(ctx, *flagDataDir))
			bimpm.PrintSample(corpus, *flagSample)
		case *flagTrain:
			bimpm.TrainModel(ctx, *flagDataDir, *flagCheckpoint)
		case *flagClassify:
			c := must.M1(classifier.New(*flagCheckpoint, *flagDataDir))
			classID, probabilities := must.M2(c.Classify(*flagSentenceA, *flagSentenceB))
			fmt.Printf("%s (class %d, probabilities %v)\n", c.ClassName(classID), classID, probabilities)
		default:
			klog.Info("exit: usage -download, -train, -sample=N or -classify, optional -data and -checkpoint")
		}
	})
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}
