// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package forkchoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animica/consensus/types"
)

func h(b byte) types.Hash32 {
	var out types.Hash32
	out[31] = b
	return out
}

func TestAddBlock_ExtendsBestTipOnHeavierWeight(t *testing.T) {
	e := New(h(0), 100, 0, 0, nil)
	res := e.AddBlock(h(1), h(0), 1, 50)
	require.True(t, res.Accepted)
	assert.True(t, res.BecameBest)
	assert.Equal(t, h(1), e.Best().Hash)
	assert.Equal(t, int64(150), e.Best().CumWeightMicro)
}

func TestAddBlock_DuplicateIsNoOp(t *testing.T) {
	e := New(h(0), 100, 0, 0, nil)
	e.AddBlock(h(1), h(0), 1, 50)
	res := e.AddBlock(h(1), h(0), 1, 50)
	assert.False(t, res.Accepted)
}

func TestAddBlock_UnknownParentBuffersAsOrphan(t *testing.T) {
	e := New(h(0), 100, 0, 0, nil)
	res := e.AddBlock(h(2), h(1), 2, 50)
	assert.False(t, res.Accepted)
	assert.Equal(t, h(0), e.Best().Hash, "an orphan must not become best")
}

func TestAddBlock_OrphanReconnectsWhenParentArrives(t *testing.T) {
	e := New(h(0), 100, 0, 0, nil)
	e.AddBlock(h(2), h(1), 2, 10) // orphan, parent h(1) unknown yet
	res := e.AddBlock(h(1), h(0), 1, 10)
	require.True(t, res.Accepted)
	assert.Equal(t, h(2), e.Best().Hash, "orphan chain should reconnect and become best once its parent is known")
}

func TestBetterOrder_HeavierWeightWins(t *testing.T) {
	e := New(h(0), 0, 0, 0, nil)
	e.AddBlock(h(1), h(0), 1, 10)
	e.AddBlock(h(2), h(0), 1, 20)
	assert.Equal(t, h(2), e.Best().Hash)
}

func TestBetterOrder_TiesBrokenByHeightThenHash(t *testing.T) {
	e := New(h(0), 0, 0, 0, nil)
	e.AddBlock(h(5), h(0), 1, 10)
	res := e.AddBlock(h(3), h(0), 1, 10)
	// Equal cumulative weight and height: lexicographically smaller hash wins.
	assert.True(t, res.Accepted)
	assert.Equal(t, h(3), e.Best().Hash)
}

func TestAddBlock_ReorgSwitchesToHeavierFork(t *testing.T) {
	e := New(h(0), 0, 0, 0, nil)
	e.AddBlock(h(1), h(0), 1, 10)
	e.AddBlock(h(2), h(1), 2, 10) // chain A: 0 -> 1 -> 2, weight 20

	e.AddBlock(h(10), h(0), 1, 5)
	res := e.AddBlock(h(11), h(10), 2, 5)
	assert.False(t, res.BecameBest, "lighter fork should not become best")

	res = e.AddBlock(h(12), h(11), 3, 100) // chain B now heavier
	require.True(t, res.Accepted)
	assert.True(t, res.BecameBest)
	assert.Equal(t, h(12), e.Best().Hash)
	assert.ElementsMatch(t, []types.Hash32{h(2), h(1)}, res.Detached)
	assert.ElementsMatch(t, []types.Hash32{h(10), h(11), h(12)}, res.Attached)
}

func TestAddBlock_RespectsMaxReorgDepth(t *testing.T) {
	e := New(h(0), 0, 0, 1, nil) // max reorg depth of 1
	e.AddBlock(h(1), h(0), 1, 10)
	e.AddBlock(h(2), h(1), 2, 10)
	e.AddBlock(h(3), h(2), 3, 10) // chain A: depth 3, weight 30

	e.AddBlock(h(10), h(0), 1, 5)
	res := e.AddBlock(h(11), h(10), 2, 100) // would require detaching 3 blocks
	assert.False(t, res.BecameBest, "reorg deeper than maxReorgDepth must be rejected")
	assert.Equal(t, h(3), e.Best().Hash)
}

func TestIterChainBack_WalksToGenesis(t *testing.T) {
	e := New(h(0), 0, 0, 0, nil)
	e.AddBlock(h(1), h(0), 1, 10)
	e.AddBlock(h(2), h(1), 2, 10)
	chain := e.IterChainBack(h(2))
	assert.Equal(t, []types.Hash32{h(2), h(1), h(0)}, chain)
}

func TestTipSet_ReturnsAllLeaves(t *testing.T) {
	e := New(h(0), 0, 0, 0, nil)
	e.AddBlock(h(1), h(0), 1, 10)
	e.AddBlock(h(2), h(0), 1, 5)
	tips := e.TipSet()
	assert.ElementsMatch(t, []types.Hash32{h(1), h(2)}, tips)
}
