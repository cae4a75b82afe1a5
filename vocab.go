// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import "sort"

// Reserved token ids, shared by the word and the character vocabularies.
// Id 0 is the padding id: the model masks it out of every computation, so it
// must never be assigned to a real token.
const (
	PadID     = 0
	UnknownID = 1

	PadToken     = "<PAD>"
	UnknownToken = "<UNK>"
)

// VocabEntry holds a token and its count over the training split.
type VocabEntry struct {
	Token string
	Count int
}

// Vocab maps tokens (words or single characters) to dense ids. It is built
// over the training split only; tokens seen elsewhere resolve to UnknownID.
//
// All fields are exported so it can be serialized with gob.
type Vocab struct {
	ListEntries []VocabEntry
	MapTokens   map[string]int
	TotalCount  int
}

// NewVocab creates an empty vocabulary with the reserved padding and
// unknown tokens pre-registered at ids 0 and 1.
func NewVocab() *Vocab {
	v := &Vocab{
		ListEntries: []VocabEntry{{PadToken, 0}, {UnknownToken, 0}},
		MapTokens:   make(map[string]int),
	}
	for ii, entry := range v.ListEntries {
		v.MapTokens[entry.Token] = ii
	}
	return v
}

// Size returns the number of entries, including the reserved ones. It is the
// value to use for the embedding table size.
func (v *Vocab) Size() int { return len(v.ListEntries) }

// RegisterToken returns the id for the token, registering it if new, and
// increments its count.
func (v *Vocab) RegisterToken(token string) (id int) {
	v.TotalCount++
	var found bool
	id, found = v.MapTokens[token]
	if !found {
		id = len(v.ListEntries)
		v.MapTokens[token] = id
		v.ListEntries = append(v.ListEntries, VocabEntry{token, 1})
	} else {
		v.ListEntries[id].Count++
	}
	return id
}

// ID returns the id of the token, or UnknownID if it was never registered.
func (v *Vocab) ID(token string) int {
	if id, found := v.MapTokens[token]; found {
		return id
	}
	return UnknownID
}

// Token returns the token for the given id.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.ListEntries) {
		return UnknownToken
	}
	return v.ListEntries[id].Token
}

// SortByFrequency reorders the entries (except the reserved ones) from most
// to least frequent and rebuilds the token map. Call it after registration
// and before any id is taken as final.
func (v *Vocab) SortByFrequency() {
	subSlice := v.ListEntries[2:] // Reserved ids stay in place.
	sort.SliceStable(subSlice, func(i, j int) bool {
		return subSlice[i].Count > subSlice[j].Count
	})
	for ii, entry := range v.ListEntries {
		v.MapTokens[entry.Token] = ii
	}
}
