// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier serves a trained sentence-pair model for inference.
// It loads a checkpoint plus the preprocessed corpus cache (for the
// vocabularies) and offers a Classify method for individual sentence pairs.
//
// This is an example of how to serve a model for inference.
package classifier

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/bimpm"
)

// Classifier holds the compiled sentence-pair model.
// It will use XLA with GPU if available or CPU by default. The backend can
// be configured with GOMLX_BACKEND.
type Classifier struct {
	backend backends.Backend

	// ctx with the model's weights and the hyperparameters it was trained
	// with.
	ctx *context.Context

	// corpus provides the vocabularies used to encode input sentences.
	corpus *bimpm.Corpus

	// exec executes the model with the context.
	exec *context.Exec

	maxSentenceLen, maxWordLen int
}

// New creates a Classifier from the checkpoint in checkpointDir. The
// preprocessed corpus cache is looked up in dataDir, under the dataset name
// recorded in the checkpoint.
func New(checkpointDir, dataDir string) (*Classifier, error) {
	c := &Classifier{
		backend: backends.MustNew(),
		ctx:     context.New(),
	}

	// All hyperparameters are read from the checkpoint as well, so the
	// exact same model is rebuilt.
	// The checkpoint handler isn't kept: nothing is saved back.
	_, err := checkpoints.Load(c.ctx).
		Dir(checkpointDir).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed while loading model from %q", checkpointDir)
	}
	c.ctx = c.ctx.Reuse() // It becomes an error to create a new variable -- for extra sanity checking.

	datasetName := context.GetParamOr(c.ctx, "dataset", "")
	c.corpus, err = bimpm.LoadCachedCorpus(dataDir, datasetName)
	if err != nil {
		return nil, err
	}
	c.maxSentenceLen = context.GetParamOr(c.ctx, "max_sentence_len", 50)
	c.maxWordLen = context.GetParamOr(c.ctx, "max_word_len", 16)

	c.exec = context.NewExec(c.backend, c.ctx, func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
		logits := bimpm.BuildModelGraph(ctx, nil, inputs)[0]
		choice := graph.Reshape(graph.ArgMax(logits, -1, dtypes.Int32)) // Scalar, batch size is 1.
		probabilities := graph.Reshape(graph.Softmax(logits), logits.Shape().Dim(-1))
		return []*graph.Node{choice, probabilities}
	})
	return c, nil
}

// NumClasses of the loaded model: 2 for quora, 3 for snli.
func (c *Classifier) NumClasses() int { return c.corpus.NumClasses }

// ClassName describes a class id of the loaded model.
func (c *Classifier) ClassName(classID int32) string {
	if c.corpus.Name == "snli" && int(classID) < len(bimpm.SNLIClassNames) {
		return bimpm.SNLIClassNames[classID]
	}
	if classID == 1 {
		return "duplicate"
	}
	return "different"
}

// Classify a sentence pair. Returns the predicted class id and the per-class
// probabilities.
func (c *Classifier) Classify(textA, textB string) (classID int32, probabilities []float32, err error) {
	inputs := c.corpus.PairTensors(textA, textB, c.maxSentenceLen, c.maxWordLen)
	var outputs []*tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		args := make([]any, len(inputs))
		for ii, input := range inputs {
			args[ii] = input
		}
		outputs = c.exec.Call(args...)
	})
	if err != nil {
		return 0, nil, err
	}
	classID = tensors.ToScalar[int32](outputs[0])
	probabilities = tensors.CopyFlatData[float32](outputs[1])
	return classID, probabilities, nil
}
