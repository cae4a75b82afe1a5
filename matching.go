// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bimpm

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// NumMatchingStrategies applied per time direction: full, maxpooling,
// attentive and max-attentive matching. Each contributes num_perspectives
// values per position, so the matching output width is
// 2*NumMatchingStrategies*num_perspectives.
const NumMatchingStrategies = 4

// cosineEpsilon floors each operand norm of every cosine in the matching
// layer, so near-zero vectors yield a score near 0 instead of NaN or Inf.
const cosineEpsilon = 1e-8

// EncodedSentence bundles the context-encoder outputs of one sentence that
// the matching layer consumes.
type EncodedSentence struct {
	// Fwd and Bwd are the per-position hidden states of the forward and
	// backward encoder directions, shaped [batch, seqLen, hidden].
	Fwd, Bwd *Node

	// LastFwd is the forward state at the last valid position and FirstBwd
	// the backward state at position 0, both shaped [batch, hidden]. They
	// summarize the whole sentence in their respective directions.
	LastFwd, FirstBwd *Node

	// Mask is true on valid (non-padding) positions, shaped
	// (bool)[batch, seqLen].
	Mask *Node
}

// MatchSentences runs the multi-perspective matching bilaterally: every
// position of p is matched against all of q and vice versa. Returns one
// matching vector per position, shaped
// [batch, seqLen, 2*NumMatchingStrategies*numPerspectives].
//
// The perspective weights are created under ctx.In("matching") and shared
// between the two bilateral directions: there is one bank per strategy per
// time direction.
func MatchSentences(ctx *context.Context, p, q *EncodedSentence, numPerspectives int) (matchP, matchQ *Node) {
	ctx = ctx.In("matching").Checked(false)
	matchP = matchOneSide(ctx, p, q, numPerspectives)
	matchQ = matchOneSide(ctx, q, p, numPerspectives)
	return
}

// matchOneSide computes the matching vectors of source against other, per
// time direction and strategy.
func matchOneSide(ctx *context.Context, source, other *EncodedSentence, numPerspectives int) *Node {
	directions := []struct {
		name       string
		src, oth   *Node
		othSummary *Node
	}{
		{"forward", source.Fwd, other.Fwd, other.LastFwd},
		{"backward", source.Bwd, other.Bwd, other.FirstBwd},
	}
	parts := make([]*Node, 0, 2*NumMatchingStrategies)
	for _, dir := range directions {
		parts = append(parts,
			fullMatch(ctx.In("full_"+dir.name), dir.src, dir.othSummary, numPerspectives),
			maxPoolingMatch(ctx.In("maxpooling_"+dir.name), dir.src, dir.oth, other.Mask, numPerspectives),
			attentiveMatch(ctx.In("attentive_"+dir.name), dir.src, dir.oth, other.Mask, numPerspectives, false),
			attentiveMatch(ctx.In("max_attentive_"+dir.name), dir.src, dir.oth, other.Mask, numPerspectives, true),
		)
	}
	return Concatenate(parts, -1)
}

// perspectiveWeights returns the [numPerspectives, hidden] trainable bank of
// the current scope, creating it on first use.
func perspectiveWeights(ctx *context.Context, g *Graph, numPerspectives, hidden int) *Node {
	v := ctx.VariableWithShape("weights", shapes.Make(DType, numPerspectives, hidden))
	return v.ValueGraph(g)
}

// applyPerspectives element-wise scales the hidden vectors of v, shaped
// [batch, seqLen, hidden], by each perspective of w, shaped
// [numPerspectives, hidden]. Returns [batch, seqLen, numPerspectives, hidden].
func applyPerspectives(v, w *Node) *Node {
	return Mul(ExpandAxes(v, 2), ExpandAxes(w, 0, 1))
}

// flooredNorm is the L2 norm over the last axis, floored at cosineEpsilon.
func flooredNorm(x *Node) *Node {
	return MaxScalar(L2Norm(x, -1), cosineEpsilon)
}

// cosineLastAxis is the epsilon-floored cosine over the last axis of a and
// b, whose other axes must be mutually broadcastable.
func cosineLastAxis(a, b *Node) *Node {
	dot := ReduceSum(Mul(a, b), -1)
	return Div(dot, Mul(flooredNorm(a), flooredNorm(b)))
}

// fullMatch compares each position of src, shaped [batch, srcLen, hidden],
// against the single summary state of the other sentence, shaped
// [batch, hidden]. Returns [batch, srcLen, numPerspectives].
//
// No mask is needed: the summary state comes from a length-aware encoder,
// so it never reflects padding.
func fullMatch(ctx *context.Context, src, othSummary *Node, numPerspectives int) *Node {
	g := src.Graph()
	w := perspectiveWeights(ctx, g, numPerspectives, src.Shape().Dim(-1))
	a := applyPerspectives(src, w)                       // [b, m, L, h]
	b := applyPerspectives(InsertAxes(othSummary, 1), w) // [b, 1, L, h]
	return cosineLastAxis(a, b)
}

// maxPoolingMatch compares each position of src against every valid position
// of oth and keeps, per perspective, the maximum cosine. Returns
// [batch, srcLen, numPerspectives].
func maxPoolingMatch(ctx *context.Context, src, oth, othMask *Node, numPerspectives int) *Node {
	g := src.Graph()
	w := perspectiveWeights(ctx, g, numPerspectives, src.Shape().Dim(-1))
	a := applyPerspectives(src, w) // [b, m, L, h]
	o := applyPerspectives(oth, w) // [b, n, L, h]

	dot := Einsum("bmlh,bnlh->bmnl", a, o)
	normA := ExpandAxes(flooredNorm(a), 2) // [b, m, 1, L]
	normO := ExpandAxes(flooredNorm(o), 1) // [b, 1, n, L]
	cos := Div(dot, Mul(normA, normO))     // [b, m, n, L]

	// Padded positions of the other sentence must not win the max: replace
	// their cosines by -1, the smallest possible value.
	mask := BroadcastToShape(ExpandAxes(othMask, 1, -1), cos.Shape())
	cos = Where(mask, cos, MulScalar(OnesLike(cos), -1))
	return ReduceMax(cos, 2)
}

// attentiveMatch compares each position of src against an attention-derived
// summary of oth: the cosine-weighted mean of oth's positions, or, if
// takeMax, the single position with the highest cosine. Returns
// [batch, srcLen, numPerspectives].
func attentiveMatch(ctx *context.Context, src, oth, othMask *Node, numPerspectives int, takeMax bool) *Node {
	g := src.Graph()

	// Raw (unweighted) cosine between every position pair, [b, m, n].
	dot := Einsum("bmh,bnh->bmn", src, oth)
	normS := ExpandAxes(flooredNorm(src), -1) // [b, m, 1]
	normO := ExpandAxes(flooredNorm(oth), 1)  // [b, 1, n]
	att := Div(dot, Mul(normS, normO))

	mask := BroadcastToShape(ExpandAxes(othMask, 1), att.Shape())
	var attended *Node
	if takeMax {
		att = Where(mask, att, MulScalar(OnesLike(att), -1))
		best := ArgMax(att, -1, dtypes.Int32)                 // [b, m]
		pick := OneHot(best, oth.Shape().Dim(1), att.DType()) // [b, m, n]
		attended = Einsum("bmn,bnh->bmh", pick, oth)
	} else {
		att = Where(mask, att, ZerosLike(att))
		weighted := Einsum("bmn,bnh->bmh", att, oth)
		total := AddScalar(ReduceSum(att, -1), cosineEpsilon) // [b, m]
		attended = Div(weighted, ExpandAxes(total, -1))
	}

	w := perspectiveWeights(ctx, g, numPerspectives, src.Shape().Dim(-1))
	return cosineLastAxis(applyPerspectives(src, w), applyPerspectives(attended, w))
}
