// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"strconv"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
)

const (
	QuoraURL       = "http://qim.fs.quoracdn.net/quora_duplicate_questions.tsv"
	QuoraLocalFile = "quora_duplicate_questions.tsv"

	// Deterministic split of the raw Quora file, which ships without an
	// official partition: percentage of pairs assigned to dev and to test.
	quoraDevPercent  = 5
	quoraTestPercent = 5
)

// DownloadQuora downloads the Quora duplicate-questions dataset to baseDir
// (if not yet there), parses it and builds the preprocessed corpus, cached
// as a binary file for future calls. 2 classes: 1 if the questions are
// duplicates (paraphrases), 0 otherwise.
func DownloadQuora(baseDir string) (*Corpus, error) {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if c, found, err := loadCorpus(baseDir, "quora"); found || err != nil {
		return c, err
	}
	filePath := path.Join(baseDir, QuoraLocalFile)
	if err := data.DownloadIfMissing(QuoraURL, filePath, ""); err != nil {
		return nil, errors.Wrap(err, "failed to download Quora dataset")
	}
	pairs, err := parseQuora(filePath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("> Preprocessing %d Quora question pairs.\n", len(pairs))
	c := newCorpus("quora", 2, pairs)
	if err := saveCorpus(baseDir, c); err != nil {
		return nil, err
	}
	return c, nil
}

// parseQuora reads the raw TSV. Columns: id, qid1, qid2, question1,
// question2, is_duplicate. Some questions span lines within quotes, which
// csv.Reader handles.
func parseQuora(filePath string) ([]rawPair, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %q", filePath)
	}
	pairs := make([]rawPair, 0, len(records))
	for ii, record := range records {
		if ii == 0 || len(record) < 6 {
			// Header, or a malformed trailing line.
			continue
		}
		label, err := strconv.Atoi(record[5])
		if err != nil || label < 0 || label > 1 {
			continue
		}
		pairs = append(pairs, rawPair{
			a:     record[3],
			b:     record[4],
			label: label,
			set:   quoraSplit(record[0]),
		})
	}
	return pairs, nil
}

// quoraSplit deterministically assigns a pair to a split by hashing its id,
// so re-downloads reproduce the same partition.
func quoraSplit(id string) SetType {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	switch bucket := h.Sum32() % 100; {
	case bucket < quoraTestPercent:
		return Test
	case bucket < quoraTestPercent+quoraDevPercent:
		return Dev
	default:
		return Train
	}
}
