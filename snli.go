// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
)

const (
	SNLIURL      = "https://nlp.stanford.edu/projects/snli/snli_1.0.zip"
	SNLIZipFile  = "snli_1.0.zip"
	SNLILocalDir = "snli_1.0"
)

// snliLabels maps SNLI gold labels to class ids. Examples whose annotators
// reached no consensus carry the gold label "-" and are dropped.
var snliLabels = map[string]int{
	"entailment":    0,
	"contradiction": 1,
	"neutral":       2,
}

// SNLIClassNames, indexed by class id.
var SNLIClassNames = []string{"entailment", "contradiction", "neutral"}

// DownloadSNLI downloads the SNLI 1.0 corpus to baseDir (if not yet there),
// parses the three JSONL split files and builds the preprocessed corpus,
// cached as a binary file for future calls. 3 classes, see SNLIClassNames.
func DownloadSNLI(baseDir string) (*Corpus, error) {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if c, found, err := loadCorpus(baseDir, "snli"); found || err != nil {
		return c, err
	}
	if err := data.DownloadAndUnzipIfMissing(SNLIURL, path.Join(baseDir, SNLIZipFile), baseDir, path.Join(baseDir, SNLILocalDir), ""); err != nil {
		return nil, errors.Wrap(err, "failed to download SNLI dataset")
	}
	var pairs []rawPair
	for _, part := range []struct {
		set      SetType
		fileName string
	}{
		{Train, "snli_1.0_train.jsonl"},
		{Dev, "snli_1.0_dev.jsonl"},
		{Test, "snli_1.0_test.jsonl"},
	} {
		split, err := parseSNLIFile(path.Join(baseDir, SNLILocalDir, part.fileName), part.set)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, split...)
	}
	fmt.Printf("> Preprocessing %d SNLI sentence pairs.\n", len(pairs))
	c := newCorpus("snli", len(SNLIClassNames), pairs)
	if err := saveCorpus(baseDir, c); err != nil {
		return nil, err
	}
	return c, nil
}

// snliRecord holds the fields used from each JSONL line.
type snliRecord struct {
	GoldLabel string `json:"gold_label"`
	Sentence1 string `json:"sentence1"`
	Sentence2 string `json:"sentence2"`
}

func parseSNLIFile(filePath string, set SetType) ([]rawPair, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var pairs []rawPair
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var record snliRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, errors.Wrapf(err, "failed to parse JSONL line of %q", filePath)
		}
		label, found := snliLabels[record.GoldLabel]
		if !found {
			continue
		}
		pairs = append(pairs, rawPair{
			a:     record.Sentence1,
			b:     record.Sentence2,
			label: label,
			set:   set,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", filePath)
	}
	return pairs, nil
}
