// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
)

// Dataset implements train.Dataset over a corpus split, yielding batches of
// sentence pairs. It allows concurrent Yield calls, so it can be wrapped in
// data.Parallel.
type Dataset struct {
	name      string
	corpus    *Corpus
	examples  []*Example
	maxLen    int // Sentence length cap, in words.
	maxWord   int // Word length cap, in characters.
	batchSize int

	// mu protects the cursor, the only mutable part, allowing concurrent
	// calls to Yield.
	mu       sync.Mutex
	pos      int
	infinite bool
	shuffle  *rand.Rand
}

var _ train.Dataset = &Dataset{}

// NewDataset creates a Dataset over one split of the corpus.
//
// If infinite is true it reshuffles and continues at the end of the split
// instead of reporting io.EOF, the mode the training loop's step counting
// expects. Evaluation datasets should be finite and typically not shuffled
// (pass a nil shuffle).
func NewDataset(name string, corpus *Corpus, set SetType, maxSentenceLen, maxWordLen, batchSize int, infinite bool, shuffle *rand.Rand) *Dataset {
	if infinite && shuffle == nil {
		shuffle = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	}
	ds := &Dataset{
		name:      name,
		corpus:    corpus,
		examples:  corpus.Split(set),
		maxLen:    maxSentenceLen,
		maxWord:   maxWordLen,
		batchSize: batchSize,
		infinite:  infinite,
		shuffle:   shuffle,
	}
	ds.resetLocked()
	return ds
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// NumExamples in the selected split.
func (ds *Dataset) NumExamples() int { return len(ds.examples) }

// BatchesPerEpoch is how many full batches one pass over the split yields.
func (ds *Dataset) BatchesPerEpoch() int { return len(ds.examples) / ds.batchSize }

// Yield implements train.Dataset. It returns:
//
//   - spec: not used, left as nil.
//   - inputs: words and chars of each sentence, padded with id 0 and
//     truncated to the maximum lengths, plus the true (capped) lengths:
//     `[wordsA, charsA, lenA, wordsB, charsB, lenB]`, shaped
//     `(int32)[batch, maxLen]`, `(int32)[batch, maxLen, maxWord]` and
//     `(int32)[batch]` respectively.
//   - labels: the class ids, shaped `(int32)[batch, 1]`.
//
// If not infinite, returns io.EOF at the end of the split.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	// Lock only while taking a batch worth of examples.
	ds.mu.Lock()
	if ds.pos+ds.batchSize > len(ds.examples) {
		if !ds.infinite {
			ds.mu.Unlock()
			return nil, nil, nil, io.EOF
		}
		ds.resetLocked()
	}
	batch := ds.examples[ds.pos : ds.pos+ds.batchSize]
	ds.pos += ds.batchSize
	ds.mu.Unlock()

	wordsA, charsA, lenA := ds.batchSentences(batch, func(e *Example) Sentence { return e.A })
	wordsB, charsB, lenB := ds.batchSentences(batch, func(e *Example) Sentence { return e.B })

	label := tensors.FromScalarAndDimensions(int32(0), ds.batchSize, 1)
	tensors.MutableFlatData(label, func(flat []int32) {
		for ii, e := range batch {
			flat[ii] = int32(e.Label)
		}
	})
	inputs = []*tensors.Tensor{wordsA, charsA, lenA, wordsB, charsB, lenB}
	labels = []*tensors.Tensor{label}
	return
}

// batchSentences assembles the padded words, chars and lengths tensors for
// one side of the pair.
func (ds *Dataset) batchSentences(batch []*Example, side func(e *Example) Sentence) (words, chars, lengths *tensors.Tensor) {
	words = tensors.FromScalarAndDimensions(int32(0), ds.batchSize, ds.maxLen)
	chars = tensors.FromScalarAndDimensions(int32(0), ds.batchSize, ds.maxLen, ds.maxWord)
	lengths = tensors.FromScalarAndDimensions(int32(0), ds.batchSize)

	tensors.MutableFlatData(words, func(wordsFlat []int32) {
		tensors.MutableFlatData(chars, func(charsFlat []int32) {
			tensors.MutableFlatData(lengths, func(lenFlat []int32) {
				for batchIdx, e := range batch {
					s := side(e)
					n := min(s.Len(), ds.maxLen)
					// Even an empty sentence takes one (padding) position, so
					// the LSTMs and the matching always see >= 1 valid step.
					lenFlat[batchIdx] = int32(max(n, 1))
					copy(wordsFlat[batchIdx*ds.maxLen:], s.Words[:n])
					for wordIdx := 0; wordIdx < n; wordIdx++ {
						word := s.Chars[wordIdx]
						nChars := min(len(word), ds.maxWord)
						copy(charsFlat[(batchIdx*ds.maxLen+wordIdx)*ds.maxWord:], word[:nChars])
					}
				}
			})
		})
	})
	return
}

// PairTensors encodes one sentence pair as the six input tensors the model
// graph takes (see Dataset.Yield), with a batch size of 1. Used for
// inference on individual pairs.
func (c *Corpus) PairTensors(textA, textB string, maxSentenceLen, maxWordLen int) []*tensors.Tensor {
	out := make([]*tensors.Tensor, 0, 6)
	for _, text := range []string{textA, textB} {
		s := c.EncodeText(text)
		n := min(s.Len(), maxSentenceLen)
		words := tensors.FromScalarAndDimensions(int32(0), 1, maxSentenceLen)
		tensors.MutableFlatData(words, func(flat []int32) {
			copy(flat, s.Words[:n])
		})
		chars := tensors.FromScalarAndDimensions(int32(0), 1, maxSentenceLen, maxWordLen)
		tensors.MutableFlatData(chars, func(flat []int32) {
			for wordIdx := 0; wordIdx < n; wordIdx++ {
				word := s.Chars[wordIdx]
				nChars := min(len(word), maxWordLen)
				copy(flat[wordIdx*maxWordLen:], word[:nChars])
			}
		})
		lengths := tensors.FromFlatDataAndDimensions([]int32{int32(max(n, 1))}, 1)
		out = append(out, words, chars, lengths)
	}
	return out
}

// Reset restarts the dataset from the beginning. Can be called after io.EOF
// is reached, for instance before another evaluation pass.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.resetLocked()
}

func (ds *Dataset) resetLocked() {
	if ds.shuffle != nil {
		ds.shuffle.Shuffle(len(ds.examples), func(i, j int) {
			ds.examples[i], ds.examples[j] = ds.examples[j], ds.examples[i]
		})
	}
	ds.pos = 0
}
