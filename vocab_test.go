// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocab(t *testing.T) {
	v := NewVocab()
	require.Equal(t, 2, v.Size())
	assert.Equal(t, PadID, v.ID(PadToken))
	assert.Equal(t, UnknownID, v.ID("never registered"))

	idHello := v.RegisterToken("hello")
	idWorld := v.RegisterToken("world")
	assert.NotEqual(t, idHello, idWorld)
	assert.Equal(t, idHello, v.RegisterToken("hello"))
	assert.Equal(t, idHello, v.ID("hello"))
	assert.Equal(t, "hello", v.Token(idHello))
	assert.Equal(t, 3, v.TotalCount)
}

func TestVocabSortByFrequency(t *testing.T) {
	v := NewVocab()
	for range 2 {
		v.RegisterToken("rare")
	}
	for range 5 {
		v.RegisterToken("common")
	}
	v.SortByFrequency()

	// Reserved ids stay in place, the most frequent token comes right after.
	assert.Equal(t, PadToken, v.Token(PadID))
	assert.Equal(t, UnknownToken, v.Token(UnknownID))
	assert.Equal(t, 2, v.ID("common"))
	assert.Equal(t, 3, v.ID("rare"))
	// The map is in sync with the entries.
	for ii, entry := range v.ListEntries {
		assert.Equal(t, ii, v.MapTokens[entry.Token])
	}
}
