// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"encoding/gob"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
)

// SetType refers to the train, dev or test split of a corpus.
type SetType int

const (
	Train SetType = iota
	Dev
	Test
)

func (s SetType) String() string {
	switch s {
	case Train:
		return "train"
	case Dev:
		return "dev"
	case Test:
		return "test"
	}
	return fmt.Sprintf("SetType(%d)", int(s))
}

// reTokens captures what is considered a token. Same for words and for the
// GloVe vocabulary keys.
var reTokens = regexp.MustCompile("[[:word:]]+")

// Tokenize splits text into lowercased word tokens.
func Tokenize(text string) []string {
	return reTokens.FindAllString(strings.ToLower(text), -1)
}

// Sentence is one tokenized and id-encoded sentence: word ids plus the
// character ids of each word. Lengths are the true ones, padding and
// truncation to fixed sizes happen at batching time (see Dataset).
type Sentence struct {
	Words []int32
	Chars [][]int32
}

// Len returns the number of words.
func (s Sentence) Len() int { return len(s.Words) }

// Example is one labeled sentence pair.
type Example struct {
	Set   SetType
	Label int
	A, B  Sentence
}

// Corpus is a fully preprocessed sentence-pair dataset: vocabularies built
// over the training split and the encoded examples of all splits.
type Corpus struct {
	Name       string
	NumClasses int
	Words      *Vocab
	Chars      *Vocab
	Examples   []*Example
}

// rawPair is a not-yet-encoded example, as parsed from the dataset files.
type rawPair struct {
	a, b  string
	label int
	set   SetType
}

// newCorpus builds the vocabularies over the training pairs and encodes all
// pairs. Tokens outside the training split map to UnknownID.
func newCorpus(name string, numClasses int, pairs []rawPair) *Corpus {
	c := &Corpus{
		Name:       name,
		NumClasses: numClasses,
		Words:      NewVocab(),
		Chars:      NewVocab(),
	}
	for _, p := range pairs {
		if p.set != Train {
			continue
		}
		for _, text := range []string{p.a, p.b} {
			for _, token := range Tokenize(text) {
				c.Words.RegisterToken(token)
				for _, r := range token {
					c.Chars.RegisterToken(string(r))
				}
			}
		}
	}
	c.Words.SortByFrequency()
	c.Chars.SortByFrequency()

	c.Examples = make([]*Example, 0, len(pairs))
	for _, p := range pairs {
		c.Examples = append(c.Examples, &Example{
			Set:   p.set,
			Label: p.label,
			A:     c.EncodeText(p.a),
			B:     c.EncodeText(p.b),
		})
	}
	return c
}

// EncodeText tokenizes and encodes one sentence with the corpus
// vocabularies. Used both during preprocessing and at inference time.
func (c *Corpus) EncodeText(text string) Sentence {
	tokens := Tokenize(text)
	s := Sentence{
		Words: make([]int32, len(tokens)),
		Chars: make([][]int32, len(tokens)),
	}
	for ii, token := range tokens {
		s.Words[ii] = int32(c.Words.ID(token))
		runes := []rune(token)
		chars := make([]int32, len(runes))
		for jj, r := range runes {
			chars[jj] = int32(c.Chars.ID(string(r)))
		}
		s.Chars[ii] = chars
	}
	return s
}

// SentenceString renders an encoded sentence back to readable tokens.
func (c *Corpus) SentenceString(s Sentence) string {
	parts := make([]string, 0, len(s.Words))
	for _, id := range s.Words {
		parts = append(parts, c.Words.Token(int(id)))
	}
	return strings.Join(parts, " ")
}

// Split returns the examples of one split.
func (c *Corpus) Split(set SetType) []*Example {
	var split []*Example
	for _, e := range c.Examples {
		if e.Set == set {
			split = append(split, e)
		}
	}
	return split
}

// LoadCachedCorpus loads the preprocessed corpus cache previously created
// by DownloadQuora or DownloadSNLI. It fails if the cache doesn't exist:
// inference requires the exact vocabularies the model was trained with.
func LoadCachedCorpus(baseDir, name string) (*Corpus, error) {
	baseDir = data.ReplaceTildeInDir(baseDir)
	c, found, err := loadCorpus(baseDir, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("no preprocessed corpus %q found in %q: train a model first", name, baseDir)
	}
	return c, nil
}

// binaryFile is where the preprocessed corpus is cached, next to the raw
// downloads, keyed by the dataset name.
func binaryFile(baseDir, name string) string {
	return path.Join(baseDir, name+"-preprocessed.bin")
}

// loadCorpus loads a previously preprocessed corpus, if it exists.
func loadCorpus(baseDir, name string) (c *Corpus, found bool, err error) {
	filePath := binaryFile(baseDir, name)
	f, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to open preprocessed corpus %q", filePath)
	}
	defer func() { _ = f.Close() }()

	c = &Corpus{}
	if err := gob.NewDecoder(f).Decode(c); err != nil {
		return nil, false, errors.Wrapf(err, "failed to decode preprocessed corpus %q", filePath)
	}
	return c, true, nil
}

// saveCorpus caches the preprocessed corpus so later runs skip parsing.
func saveCorpus(baseDir string, c *Corpus) error {
	filePath := binaryFile(baseDir, c.Name)
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create preprocessed corpus %q", filePath)
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()
	if err := gob.NewEncoder(f).Encode(c); err != nil {
		return errors.Wrapf(err, "failed to encode preprocessed corpus %q", filePath)
	}
	err = f.Close()
	closed = true
	return errors.Wrapf(err, "failed to close preprocessed corpus %q", filePath)
}
