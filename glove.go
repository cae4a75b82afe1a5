// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"bufio"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	GloVeURL     = "https://nlp.stanford.edu/data/glove.6B.zip"
	GloVeZipFile = "glove.6B.zip"

	// Scope (under the model root scope) and name of the frozen pretrained
	// word-embeddings variable.
	pretrainedScope   = "pretrained_words"
	pretrainedVarName = "embeddings"
)

// gloveDims are the dimensions available in the GloVe 6B distribution, the
// valid values for the "word_dim" hyperparameter.
var gloveDims = map[int]bool{50: true, 100: true, 200: true, 300: true}

// InstallPretrainedEmbeddings downloads GloVe (if not yet in baseDir) and
// registers the frozen word-embedding table as a non-trainable variable in
// ctx, one row per corpus word id. Words missing from GloVe, including the
// padding and unknown ids, get zero vectors.
//
// It is a no-op if the variable already exists in ctx, typically because it
// was restored from a checkpoint.
func InstallPretrainedEmbeddings(ctx *context.Context, baseDir string, corpus *Corpus) error {
	scoped := ctx.In(ModelScope).In(pretrainedScope)
	if ctx.InspectVariable(scoped.Scope(), pretrainedVarName) != nil {
		return nil
	}
	wordDim := context.GetParamOr(ctx, "word_dim", 300)
	if !gloveDims[wordDim] {
		exceptions.Panicf("invalid \"word_dim\" %d: GloVe 6B provides dimensions 50, 100, 200 or 300", wordDim)
	}

	baseDir = data.ReplaceTildeInDir(baseDir)
	gloveDir := path.Join(baseDir, "glove.6B")
	if err := data.DownloadAndUnzipIfMissing(GloVeURL, path.Join(baseDir, GloVeZipFile), gloveDir, gloveDir, ""); err != nil {
		return errors.Wrap(err, "failed to download GloVe embeddings")
	}
	gloveFile := path.Join(gloveDir, "glove.6B."+strconv.Itoa(wordDim)+"d.txt")

	table, matched, err := parseGloVe(gloveFile, corpus.Words, wordDim)
	if err != nil {
		return err
	}
	klog.Infof("GloVe %dd: %s of %s corpus words have pretrained vectors",
		wordDim, humanize.Comma(int64(matched)), humanize.Comma(int64(corpus.Words.Size())))

	v := scoped.VariableWithValue(pretrainedVarName, tensors.FromFlatDataAndDimensions(table, corpus.Words.Size(), wordDim))
	v.SetTrainable(false)
	return nil
}

// parseGloVe reads the embeddings text file (one "word v1 v2 ..." line per
// word) and returns a flat [vocab.Size(), wordDim] table with the vectors of
// the words present in vocab, plus how many vocab words were found.
func parseGloVe(filePath string, vocab *Vocab, wordDim int) (table []float32, matched int, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to open GloVe file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	table = make([]float32, vocab.Size()*wordDim)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		word, values, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		id, known := vocab.MapTokens[word]
		if !known || id < 2 { // Reserved ids keep their zero vectors.
			continue
		}
		fields := strings.Fields(values)
		if len(fields) != wordDim {
			return nil, 0, errors.Errorf("GloVe file %q: word %q has %d values, expected %d",
				filePath, word, len(fields), wordDim)
		}
		row := table[id*wordDim : (id+1)*wordDim]
		for ii, field := range fields {
			value, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "GloVe file %q: bad value for word %q", filePath, word)
			}
			row[ii] = float32(value)
		}
		matched++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read GloVe file %q", filePath)
	}
	return table, matched, nil
}
