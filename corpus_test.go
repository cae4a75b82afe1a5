// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "s", "the", "answer", "42"}, Tokenize("What's the ANSWER? 42!"))
	assert.Empty(t, Tokenize("  ... "))
}

func testCorpus(t *testing.T) *Corpus {
	t.Helper()
	return newCorpus("test", 2, []rawPair{
		{"how do I learn go", "what is the best way to learn go", 1, Train},
		{"how do I learn go", "why is the sky blue", 0, Train},
		{"is go hard to learn", "how hard is go to learn", 1, Dev},
		{"unseen tokens here", "why is the sky blue", 0, Test},
	})
}

func TestCorpusEncoding(t *testing.T) {
	c := testCorpus(t)
	require.Len(t, c.Examples, 4)
	require.Len(t, c.Split(Train), 2)
	require.Len(t, c.Split(Dev), 1)
	require.Len(t, c.Split(Test), 1)

	// Training tokens are registered; words and chars round-trip.
	e := c.Split(Train)[0]
	assert.Equal(t, "how do i learn go", c.SentenceString(e.A))
	assert.Equal(t, len(e.A.Words), len(e.A.Chars))
	assert.Equal(t, 3, len(e.A.Chars[0])) // Chars of "how".
	for _, id := range e.A.Words {
		assert.Greater(t, id, int32(UnknownID))
	}

	// Tokens that only show up outside the training split map to UnknownID.
	test := c.Split(Test)[0]
	for _, id := range test.A.Words {
		assert.Equal(t, int32(UnknownID), id)
	}

	// Encoding arbitrary text works for inference.
	s := c.EncodeText("LEARN Go!")
	require.Equal(t, 2, s.Len())
	assert.Equal(t, int32(c.Words.ID("learn")), s.Words[0])
	assert.Equal(t, int32(c.Words.ID("go")), s.Words[1])
}

func TestCorpusCacheRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	c := testCorpus(t)
	require.NoError(t, saveCorpus(baseDir, c))

	loaded, err := LoadCachedCorpus(baseDir, "test")
	require.NoError(t, err)
	assert.Equal(t, c.NumClasses, loaded.NumClasses)
	assert.Equal(t, c.Words.Size(), loaded.Words.Size())
	assert.Equal(t, len(c.Examples), len(loaded.Examples))
	assert.Equal(t, c.Examples[0].A.Words, loaded.Examples[0].A.Words)

	_, err = LoadCachedCorpus(baseDir, "missing")
	require.Error(t, err)
}

func TestParseQuora(t *testing.T) {
	filePath := path.Join(t.TempDir(), QuoraLocalFile)
	content := "id\tqid1\tqid2\tquestion1\tquestion2\tis_duplicate\n" +
		"0\t1\t2\tWhat is Go?\tWhat is the Go language?\t1\n" +
		"1\t3\t4\tWhat is Go?\tWhy is the sky blue?\t0\n" +
		"2\t5\t6\tbroken line\n"
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	pairs, err := parseQuora(filePath)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is Go?", pairs[0].a)
	assert.Equal(t, 1, pairs[0].label)
	assert.Equal(t, 0, pairs[1].label)
}

func TestQuoraSplitIsDeterministic(t *testing.T) {
	counts := make(map[SetType]int)
	for ii := 0; ii < 10000; ii++ {
		id := string(rune('a'+ii%26)) + string(rune('0'+ii%10))
		require.Equal(t, quoraSplit(id), quoraSplit(id))
	}
	for ii := 0; ii < 10000; ii++ {
		counts[quoraSplit(string(rune(ii)))]++
	}
	// Roughly 90/5/5.
	assert.Greater(t, counts[Train], counts[Dev])
	assert.Greater(t, counts[Train], counts[Test])
	assert.Greater(t, counts[Dev], 0)
	assert.Greater(t, counts[Test], 0)
}

func TestParseSNLIFile(t *testing.T) {
	filePath := path.Join(t.TempDir(), "snli_1.0_dev.jsonl")
	content := `{"gold_label": "entailment", "sentence1": "A dog runs.", "sentence2": "An animal moves."}
{"gold_label": "-", "sentence1": "Dropped.", "sentence2": "No consensus."}
{"gold_label": "contradiction", "sentence1": "A dog runs.", "sentence2": "The dog sleeps."}
`
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	pairs, err := parseSNLIFile(filePath, Dev)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, snliLabels["entailment"], pairs[0].label)
	assert.Equal(t, snliLabels["contradiction"], pairs[1].label)
	assert.Equal(t, Dev, pairs[0].set)
}
