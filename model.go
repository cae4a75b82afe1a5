// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/lstm"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// ModelScope is the variable scope under which all model variables live,
// including the frozen pretrained word embeddings.
const ModelScope = "model"

// BuildModelGraph builds the BiMPM graph. It implements train.ModelFn.
//
// inputs are the 6 tensors yielded by Dataset: words, chars and lengths of
// sentence A, then of sentence B. It returns the logits, shaped
// [batch, num_classes].
func BuildModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	ctx = ctx.In(ModelScope)
	wordsA, charsA, lenA := inputs[0], inputs[1], inputs[2]
	wordsB, charsB, lenB := inputs[3], inputs[4], inputs[5]

	hiddenSize := context.GetParamOr(ctx, "hidden_size", 100)
	numPerspectives := context.GetParamOr(ctx, "num_perspectives", 20)
	numClasses := context.GetParamOr(ctx, "num_classes", 2)

	// Word representation layer: both sentences share all variables, so the
	// scope is reused unchecked for the second one.
	reprCtx := ctx.In("representation")
	reprA := wordRepresentation(reprCtx, wordsA, charsA)
	reprB := wordRepresentation(reprCtx.Checked(false), wordsB, charsB)

	// Context representation layer, also shared between the sentences.
	encCtx := ctx.In("context_encoding")
	p := encodeSentence(encCtx, reprA, lenA, hiddenSize)
	q := encodeSentence(encCtx.Checked(false), reprB, lenB, hiddenSize)

	matchP, matchQ := MatchSentences(ctx, p, q, numPerspectives)
	matchP = layers.DropoutFromContext(ctx, matchP)
	matchQ = layers.DropoutFromContext(ctx, matchQ)

	aggregated := aggregate(ctx.In("aggregation"), matchP, lenA, matchQ, lenB, hiddenSize)

	// Prediction layer.
	predCtx := ctx.In("prediction")
	hidden := layers.DenseWithBias(predCtx.In("hidden"), aggregated, 2*hiddenSize)
	hidden = activations.ApplyFromContext(predCtx, hidden)
	hidden = layers.DropoutFromContext(predCtx, hidden)
	logits := layers.DenseWithBias(predCtx.In("output"), hidden, numClasses)
	return []*Node{logits}
}

// wordRepresentation builds the per-word vectors of one sentence: the frozen
// pretrained embedding concatenated with the char-composition vector,
// followed by dropout. words is (int32)[batch, seqLen] and chars
// (int32)[batch, seqLen, wordLen]; returns
// [batch, seqLen, word_dim+char_hidden_size].
func wordRepresentation(ctx *context.Context, words, chars *Node) *Node {
	embedded := pretrainedEmbeddings(ctx, words)
	charVecs := charComposition(ctx, chars)
	return layers.DropoutFromContext(ctx, Concatenate([]*Node{embedded, charVecs}, -1))
}

// pretrainedEmbeddings gathers the frozen GloVe vectors of each word. The
// table variable is created by InstallPretrainedEmbeddings (or restored from
// a checkpoint); if neither happened it comes up randomly initialized, which
// tests rely on. Either way it is never trained.
func pretrainedEmbeddings(ctx *context.Context, words *Node) *Node {
	g := words.Graph()
	wordDim := context.GetParamOr(ctx, "word_dim", 300)
	vocabSize := context.GetParamOr(ctx, "word_vocab_size", 0)
	v := ctx.In(pretrainedScope).Checked(false).
		VariableWithShape(pretrainedVarName, shapes.Make(DType, vocabSize, wordDim))
	v.SetTrainable(false)
	return Gather(v.ValueGraph(g), InsertAxes(words, -1))
}

// charComposition encodes the characters of each word with a bidirectional
// LSTM and returns the concatenated final states of both directions, one
// char_hidden_size vector per word, shaped [batch, seqLen, char_hidden_size].
//
// Words run through the LSTM independently: the sentence axis is folded into
// the batch axis. Fully padded positions keep a zero vector.
func charComposition(ctx *context.Context, chars *Node) *Node {
	charDim := context.GetParamOr(ctx, "char_dim", 20)
	charHiddenSize := context.GetParamOr(ctx, "char_hidden_size", 50)
	charVocabSize := context.GetParamOr(ctx, "char_vocab_size", 0)
	batchSize := chars.Shape().Dim(0)
	seqLen := chars.Shape().Dim(1)
	wordLen := chars.Shape().Dim(2)

	flat := Reshape(chars, batchSize*seqLen, wordLen)
	embedded := layers.Embedding(ctx.In("char_embedding"), flat, DType, charVocabSize, charDim, false)
	charLens := ReduceSum(ConvertDType(NotEqual(flat, ZerosLike(flat)), dtypes.Int32), -1)
	_, lastState, _ := lstm.New(ctx.In("char_lstm"), embedded, charHiddenSize/2).
		Direction(lstm.DirBidirectional).
		Ragged(charLens).
		Done()
	// lastState: [2, batch*seqLen, charHiddenSize/2].
	fwd := Squeeze(Slice(lastState, AxisElem(0)), 0)
	bwd := Squeeze(Slice(lastState, AxisElem(1)), 0)
	return Reshape(Concatenate([]*Node{fwd, bwd}, -1), batchSize, seqLen, charHiddenSize)
}

// encodeSentence runs the shared bidirectional context encoder over one
// sentence, shaped [batch, seqLen, features], and repacks its outputs for
// the matching layer.
func encodeSentence(ctx *context.Context, x, lengths *Node, hiddenSize int) *EncodedSentence {
	g := x.Graph()
	batchSize := x.Shape().Dim(0)
	seqLen := x.Shape().Dim(1)

	allStates, lastState, _ := lstm.New(ctx, x, hiddenSize).
		Direction(lstm.DirBidirectional).
		Ragged(lengths).
		Done()
	// allStates: [seqLen, 2, batch, hidden]; lastState: [2, batch, hidden].
	fwdSeq := TransposeAllDims(Squeeze(Slice(allStates, AxisRange(), AxisElem(0)), 1), 1, 0, 2)
	bwdSeq := TransposeAllDims(Squeeze(Slice(allStates, AxisRange(), AxisElem(1)), 1), 1, 0, 2)

	// The backward direction's final state is at position 0 of the sentence.
	lastFwd := Squeeze(Slice(lastState, AxisElem(0)), 0)
	firstBwd := Squeeze(Slice(lastState, AxisElem(1)), 0)

	positions := Iota(g, shapes.Make(dtypes.Int32, batchSize, seqLen), 1)
	mask := LessThan(positions, InsertAxes(lengths, -1))

	return &EncodedSentence{
		Fwd:      fwdSeq,
		Bwd:      bwdSeq,
		LastFwd:  lastFwd,
		FirstBwd: firstBwd,
		Mask:     mask,
	}
}

// aggregate runs the shared aggregation LSTM over the matching vectors of
// both sentences and concatenates the 4 final states (2 directions per
// sentence) into a [batch, 4*hiddenSize] vector.
func aggregate(ctx *context.Context, matchP, lenP, matchQ, lenQ *Node, hiddenSize int) *Node {
	_, lastP, _ := lstm.New(ctx, matchP, hiddenSize).
		Direction(lstm.DirBidirectional).
		Ragged(lenP).
		Done()
	_, lastQ, _ := lstm.New(ctx.Checked(false), matchQ, hiddenSize).
		Direction(lstm.DirBidirectional).
		Ragged(lenQ).
		Done()
	parts := make([]*Node, 0, 4)
	for _, lastState := range []*Node{lastP, lastQ} {
		parts = append(parts,
			Squeeze(Slice(lastState, AxisElem(0)), 0),
			Squeeze(Slice(lastState, AxisElem(1)), 0))
	}
	return Concatenate(parts, -1)
}
