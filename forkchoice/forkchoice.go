// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package forkchoice implements the weight-aware fork-choice engine: a
// strict total order over competing tips (cumulative weight, then height,
// then lexicographically smallest hash) and LCA-based reorg path
// computation between the previous and new best tip.
package forkchoice

import (
	"bytes"

	"github.com/luxfi/log"

	"github.com/animica/consensus/metrics"
	"github.com/animica/consensus/types"
)

type node struct {
	hash          types.Hash32
	parent        types.Hash32
	hasParent     bool
	height        uint64
	weightMicro   int64
	cumWeightMicro int64
	children      []types.Hash32
}

// BestTip describes the engine's current canonical tip.
type BestTip struct {
	Hash          types.Hash32
	Height        uint64
	CumWeightMicro int64
}

// AddResult reports what happened when a block was added.
type AddResult struct {
	Accepted    bool
	BecameBest  bool
	Best        BestTip
	ReorgDepth  int
	Detached    []types.Hash32
	Attached    []types.Hash32
}

// Engine is the fork-choice tree. It is not safe for concurrent use —
// consensus is single-writer; readers should snapshot BestTip/TipSet.
type Engine struct {
	Log           log.Logger
	Metrics       *metrics.ConsensusMetrics
	nodes         map[types.Hash32]*node
	orphans       map[types.Hash32][]orphanEntry
	best          types.Hash32
	maxReorgDepth int // 0 means unbounded
}

type orphanEntry struct {
	hash        types.Hash32
	height      uint64
	weightMicro int64
}

// New creates an Engine rooted at genesis. maxReorgDepth of 0 means no
// bound is enforced.
func New(genesisHash types.Hash32, genesisWeightMicro int64, genesisHeight uint64, maxReorgDepth int, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	e := &Engine{
		Log:           logger,
		nodes:         make(map[types.Hash32]*node),
		orphans:       make(map[types.Hash32][]orphanEntry),
		best:          genesisHash,
		maxReorgDepth: maxReorgDepth,
	}
	e.nodes[genesisHash] = &node{
		hash:           genesisHash,
		height:         genesisHeight,
		weightMicro:    genesisWeightMicro,
		cumWeightMicro: genesisWeightMicro,
	}
	return e
}

// Best returns the current canonical tip.
func (e *Engine) Best() BestTip {
	n := e.nodes[e.best]
	return BestTip{Hash: n.hash, Height: n.height, CumWeightMicro: n.cumWeightMicro}
}

// AddBlock inserts a block. A duplicate hash is a no-op; an unknown parent
// buffers the block as an orphan until its parent arrives.
func (e *Engine) AddBlock(h, parent types.Hash32, height uint64, weightMicro int64) AddResult {
	if _, exists := e.nodes[h]; exists {
		return AddResult{Accepted: false, Best: e.Best()}
	}
	parentNode, ok := e.nodes[parent]
	if !ok {
		e.orphans[parent] = append(e.orphans[parent], orphanEntry{hash: h, height: height, weightMicro: weightMicro})
		return AddResult{Accepted: false, Best: e.Best()}
	}
	result := e.attachKnownParent(h, parentNode, height, weightMicro)
	e.connectOrphans(h)
	return result
}

func (e *Engine) attachKnownParent(h types.Hash32, parentNode *node, height uint64, weightMicro int64) AddResult {
	if height <= parentNode.height {
		height = parentNode.height + 1
	}
	n := &node{
		hash:           h,
		parent:         parentNode.hash,
		hasParent:      true,
		height:         height,
		weightMicro:    weightMicro,
		cumWeightMicro: parentNode.cumWeightMicro + weightMicro,
	}
	e.nodes[h] = n
	parentNode.children = append(parentNode.children, h)

	best := e.maybeUpdateBest(n)
	return best
}

func (e *Engine) connectOrphans(parent types.Hash32) {
	queue := []types.Hash32{parent}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		pending := e.orphans[p]
		delete(e.orphans, p)
		for _, o := range pending {
			e.attachKnownParent(o.hash, e.nodes[p], o.height, o.weightMicro)
			queue = append(queue, o.hash)
		}
	}
}

// better implements the strict total order: cumulative weight desc, then
// height desc, then lexicographically smallest hash.
func better(a, b *node) bool {
	if a.cumWeightMicro != b.cumWeightMicro {
		return a.cumWeightMicro > b.cumWeightMicro
	}
	if a.height != b.height {
		return a.height > b.height
	}
	return bytes.Compare(a.hash[:], b.hash[:]) < 0
}

func (e *Engine) maybeUpdateBest(candidate *node) AddResult {
	current := e.nodes[e.best]
	if !better(candidate, current) {
		return AddResult{Accepted: true, BecameBest: false, Best: e.Best()}
	}

	detached, attached := e.reorgPath(current.hash, candidate.hash)
	if e.maxReorgDepth > 0 && len(detached) > e.maxReorgDepth {
		e.Log.Warn("reorg depth exceeds bound, ignoring candidate tip")
		return AddResult{Accepted: true, BecameBest: false, Best: e.Best()}
	}

	e.best = candidate.hash
	if len(detached) > 0 {
		e.Log.Info("reorg", "depth", len(detached), "detached", len(detached), "attached", len(attached))
		e.Metrics.RecordReorg(len(detached))
	}
	return AddResult{
		Accepted:   true,
		BecameBest: true,
		Best:       e.Best(),
		ReorgDepth: len(detached),
		Detached:   detached,
		Attached:   attached,
	}
}

// reorgPath computes the path from fromHash down to the LCA (detach, in
// descending order from the old tip) and from the LCA up to toHash
// (attach, in ascending order toward the new tip).
func (e *Engine) reorgPath(fromHash, toHash types.Hash32) (detached, attached []types.Hash32) {
	a := e.nodes[fromHash]
	b := e.nodes[toHash]

	var detachedPath, attachedPath []types.Hash32
	for a.height > b.height {
		detachedPath = append(detachedPath, a.hash)
		a = e.parentOf(a)
	}
	for b.height > a.height {
		attachedPath = append(attachedPath, b.hash)
		b = e.parentOf(b)
	}
	for a.hash != b.hash {
		detachedPath = append(detachedPath, a.hash)
		attachedPath = append(attachedPath, b.hash)
		a = e.parentOf(a)
		b = e.parentOf(b)
	}

	reversed := make([]types.Hash32, len(attachedPath))
	for i, h := range attachedPath {
		reversed[len(attachedPath)-1-i] = h
	}
	return detachedPath, reversed
}

func (e *Engine) parentOf(n *node) *node {
	if !n.hasParent {
		return n
	}
	return e.nodes[n.parent]
}

// IterChainBack walks tip back to genesis, returning hashes from tip to
// root inclusive.
func (e *Engine) IterChainBack(tip types.Hash32) []types.Hash32 {
	var out []types.Hash32
	n, ok := e.nodes[tip]
	if !ok {
		return out
	}
	for {
		out = append(out, n.hash)
		if !n.hasParent {
			return out
		}
		n = e.nodes[n.parent]
	}
}

// TipSet returns the hashes of every node with no children — the current
// set of branch tips.
func (e *Engine) TipSet() []types.Hash32 {
	var out []types.Hash32
	for h, n := range e.nodes {
		if len(n.children) == 0 {
			out = append(out, h)
		}
	}
	return out
}
