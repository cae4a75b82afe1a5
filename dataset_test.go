// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"io"
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetYield(t *testing.T) {
	c := testCorpus(t)
	const (
		maxLen     = 4 // Shorter than "what is the best way to learn go" to exercise truncation.
		maxWordLen = 3
		batchSize  = 2
	)
	ds := NewDataset("train", c, Train, maxLen, maxWordLen, batchSize, false, nil)
	require.Equal(t, 2, ds.NumExamples())
	require.Equal(t, 1, ds.BatchesPerEpoch())

	spec, inputs, labels, err := ds.Yield()
	require.NoError(t, err)
	assert.Nil(t, spec)
	require.Len(t, inputs, 6)
	require.Len(t, labels, 1)

	wordsA, charsA, lenA := inputs[0], inputs[1], inputs[2]
	assert.Equal(t, []int{batchSize, maxLen}, wordsA.Shape().Dimensions)
	assert.Equal(t, []int{batchSize, maxLen, maxWordLen}, charsA.Shape().Dimensions)
	assert.Equal(t, []int{batchSize}, lenA.Shape().Dimensions)
	assert.Equal(t, []int{batchSize, 1}, labels[0].Shape().Dimensions)

	// "how do i learn go" truncates to 4 words; length reports the cap.
	lens := tensors.CopyFlatData[int32](lenA)
	for _, l := range lens {
		assert.Equal(t, int32(maxLen), l)
	}
	words := tensors.CopyFlatData[int32](wordsA)
	assert.Equal(t, int32(c.Words.ID("how")), words[0])

	// The sole full batch was consumed.
	_, _, _, err = ds.Yield()
	require.Equal(t, io.EOF, err)
	ds.Reset()
	_, _, _, err = ds.Yield()
	require.NoError(t, err)
}

func TestDatasetPadding(t *testing.T) {
	c := testCorpus(t)
	const maxLen, maxWordLen = 10, 8
	ds := NewDataset("dev", c, Dev, maxLen, maxWordLen, 1, false, nil)
	_, inputs, _, err := ds.Yield()
	require.NoError(t, err)

	// "is go hard to learn" has 5 words: the rest must be padding id 0, and
	// the reported length the true one.
	words := tensors.CopyFlatData[int32](inputs[0])
	lens := tensors.CopyFlatData[int32](inputs[2])
	require.Equal(t, int32(5), lens[0])
	for pos := 5; pos < maxLen; pos++ {
		assert.Equal(t, int32(PadID), words[pos])
	}
	chars := tensors.CopyFlatData[int32](inputs[1])
	// "is" has 2 chars, positions 2+ of the first word are padding.
	assert.NotEqual(t, int32(PadID), chars[0])
	assert.NotEqual(t, int32(PadID), chars[1])
	for pos := 2; pos < maxWordLen; pos++ {
		assert.Equal(t, int32(PadID), chars[pos])
	}
}

func TestDatasetInfinite(t *testing.T) {
	c := testCorpus(t)
	ds := NewDataset("train", c, Train, 4, 3, 2, true, nil)
	for ii := 0; ii < 5; ii++ { // More batches than one epoch holds.
		_, inputs, _, err := ds.Yield()
		require.NoError(t, err)
		require.Len(t, inputs, 6)
	}
}

func TestPairTensors(t *testing.T) {
	c := testCorpus(t)
	const maxLen, maxWordLen = 6, 4
	inputs := c.PairTensors("how do I learn Go", "", maxLen, maxWordLen)
	require.Len(t, inputs, 6)
	assert.Equal(t, []int{1, maxLen}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{1, maxLen, maxWordLen}, inputs[1].Shape().Dimensions)
	assert.Equal(t, []int{1}, inputs[2].Shape().Dimensions)

	lens := tensors.CopyFlatData[int32](inputs[2])
	assert.Equal(t, int32(5), lens[0])
	// An empty sentence still reports one (padding) position.
	lensB := tensors.CopyFlatData[int32](inputs[5])
	assert.Equal(t, int32(1), lensB[0])
}
