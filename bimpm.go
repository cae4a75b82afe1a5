// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bimpm implements the Bilateral Multi-Perspective Matching (BiMPM)
// model [1] for sentence-pair classification: paraphrase detection on the
// Quora question pairs dataset (2 classes) and natural language inference on
// SNLI (3 classes).
//
// The model encodes both sentences with a shared bidirectional LSTM over
// word + character-composition embeddings, cross-compares every contextual
// state of one sentence against the other with four multi-perspective
// matching strategies (see matching.go), aggregates the matching vectors
// with a second BiLSTM and classifies with a small feed-forward head.
//
// The package holds the library: datasets, model graph and training. See the
// sub-package `demo` for a command-line trainer and `classifier` for serving
// a trained checkpoint.
//
// [1] Zhiguo Wang, Wael Hamza, Radu Florian, "Bilateral Multi-Perspective
// Matching for Natural Language Sentences", IJCAI 2017.
// https://arxiv.org/abs/1702.03814
package bimpm

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/gonb/plotly"
	"github.com/gomlx/gopjrt/dtypes"
)

// DType used by the model.
var DType = dtypes.Float32

// Dataset names accepted by the "dataset" hyperparameter, mapped to their
// corpus loaders. Anything else is a configuration error, reported before
// any download or computation starts.
var Datasets = map[string]func(baseDir string) (*Corpus, error){
	"quora": DownloadQuora,
	"snli":  DownloadSNLI,
}

// ParamsExcludedFromSaving is the list of parameters (see
// CreateDefaultContext) that shouldn't be saved along the model checkpoints,
// and may be overwritten in further training sessions.
var ParamsExcludedFromSaving = []string{
	"data_dir", "train_steps", "epochs", "num_checkpoints", "plots",
}

// CreateDefaultContext sets the context with default hyperparameters to use
// with TrainModel.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		// Dataset to train on: "quora" (paraphrase, 2 classes) or
		// "snli" (entailment, 3 classes).
		"dataset": "quora",

		// Model shape.
		"word_dim":         300, // GloVe dimension: one of 50, 100, 200 or 300.
		"char_dim":         20,  // Character embedding size.
		"char_hidden_size": 50,  // Char-composition output width; must be even (split between directions).
		"hidden_size":      100, // Context and aggregation LSTM hidden size, per direction.
		"num_perspectives": 20,  // L: perspectives per matching strategy.

		// Sequences are padded/truncated to fixed sizes so a single
		// computation graph is compiled. They also bound the O(m·n·L)
		// cost of the maxpooling matching.
		"max_sentence_len": 50,
		"max_word_len":     16,

		// Training.
		"batch_size":      64,
		"eval_batch_size": 200,
		"epochs":          10, // Used when train_steps == 0.
		"train_steps":     0,  // If > 0, takes precedence over epochs.
		"print_interval":  500,
		"num_checkpoints": 3,

		// "plots" trigger generating intermediary eval data for plotting,
		// and if running in GoNB, to actually draw the plot with Plotly.
		plotly.ParamPlots: false,

		optimizers.ParamOptimizer:       "adam",
		optimizers.ParamLearningRate:    1e-3,
		optimizers.ParamAdamEpsilon:     1e-8,
		optimizers.ParamClipStepByValue: 0.0, // Gradient-step clipping; 0 disables.
		activations.ParamActivation:     "relu",
		layers.ParamDropoutRate:         0.1,

		// Set from the loaded corpus by TrainModel, and restored from
		// checkpoints at inference time, so the model graph can be
		// rebuilt with identical shapes.
		"num_classes":     2,
		"word_vocab_size": 0,
		"char_vocab_size": 0,
	})
	return ctx
}
