// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animica/consensus/caps"
	"github.com/animica/consensus/policy"
	"github.com/animica/consensus/types"
)

func emptyPolicy(gamma int64, typeCaps map[types.ProofTypeID]caps.TypeCap) *policy.Policy {
	return &policy.Policy{
		GammaCap: gamma,
		Caps:     typeCaps,
		Weights:  map[types.ProofTypeID]policy.Weights{},
	}
}

func TestHashHook_UsesDefaultWhenWeightZero(t *testing.T) {
	psi := HashHook(types.ProofMetrics{DRatio: 1.0}, policy.Weights{})
	assert.Greater(t, psi, int64(0))
}

func TestHashHook_RejectsNegativeDRatio(t *testing.T) {
	psi := HashHook(types.ProofMetrics{DRatio: -1}, policy.Weights{})
	assert.Equal(t, int64(0), psi)
}

func TestAIHook_TrapRampGatesContribution(t *testing.T) {
	base := types.ProofMetrics{AIUnits: 10, Redundancy: 1, QoS: 1}
	below := base
	below.TrapsRatio = 0
	above := base
	above.TrapsRatio = 1

	psiBelow := AIHook(below, policy.Weights{})
	psiAbove := AIHook(above, policy.Weights{})
	assert.Equal(t, int64(0), psiBelow)
	assert.Greater(t, psiAbove, int64(0))
}

func TestAIHook_DefaultKUnitsMatchesReference(t *testing.T) {
	m := types.ProofMetrics{AIUnits: 10, Redundancy: 1, QoS: 1, TrapsRatio: 1}
	psi := AIHook(m, policy.Weights{})
	withExplicitOne := AIHook(m, policy.Weights{KUnitsMicro: 1_000_000})
	assert.Equal(t, withExplicitOne, psi, "an unset k_units weight must default to 1.0, not 1.2")
}

func TestAIHook_RedundancyPenalizes(t *testing.T) {
	m1 := types.ProofMetrics{AIUnits: 10, Redundancy: 1, QoS: 1, TrapsRatio: 1}
	m2 := m1
	m2.Redundancy = 4
	psi1 := AIHook(m1, policy.Weights{})
	psi2 := AIHook(m2, policy.Weights{})
	assert.Greater(t, psi1, psi2)
}

func TestQuantumHook_IgnoresRedundancy(t *testing.T) {
	m1 := types.ProofMetrics{QuantumUnits: 10, Redundancy: 1, QoS: 1, TrapsRatio: 1}
	m2 := m1
	m2.Redundancy = 4
	psi1 := QuantumHook(m1, policy.Weights{})
	psi2 := QuantumHook(m2, policy.Weights{})
	assert.Equal(t, psi1, psi2, "quantum scoring has no redundancy-penalty term")
}

func TestStorageHook_GatedOnHeartbeat(t *testing.T) {
	m := types.ProofMetrics{SizeGiB: 10, Availability: 0.99, HeartbeatOK: false, RetrievalBonus: 1}
	assert.Equal(t, int64(0), StorageHook(m, policy.Weights{}))
	m.HeartbeatOK = true
	assert.Greater(t, StorageHook(m, policy.Weights{}), int64(0))
}

func TestVDFHook_MonotoneInSeconds(t *testing.T) {
	short := VDFHook(types.ProofMetrics{VDFSeconds: 1}, policy.Weights{})
	long := VDFHook(types.ProofMetrics{VDFSeconds: 100}, policy.Weights{})
	assert.Greater(t, long, short)
}

func TestSum_NegativeHookOutputsClampedToZero(t *testing.T) {
	hooks := map[types.ProofTypeID]Hook{
		types.ProofAI: func(types.ProofMetrics, policy.Weights) int64 { return -5 },
	}
	pol := emptyPolicy(1_000_000, map[types.ProofTypeID]caps.TypeCap{
		types.ProofAI: {PerTypeMicro: 1_000_000, PerProofMicroMax: 1_000_000},
	})
	out, err := Sum([]Item{{TypeID: types.ProofAI}}, pol, hooks)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.PsiMicro)
}

func TestAggregate_AcceptsWhenScoreMeetsTheta(t *testing.T) {
	hooks := map[types.ProofTypeID]Hook{
		types.ProofVDF: func(types.ProofMetrics, policy.Weights) int64 { return 500_000 },
	}
	pol := emptyPolicy(1_000_000, map[types.ProofTypeID]caps.TypeCap{
		types.ProofVDF: {PerTypeMicro: 1_000_000, PerProofMicroMax: 1_000_000},
	})
	out, err := Aggregate([]Item{{TypeID: types.ProofVDF}}, pol, 400_000, 0, hooks)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, int64(500_000), out.ScoreMicro)
}

func TestAggregate_RejectsBelowTheta(t *testing.T) {
	hooks := map[types.ProofTypeID]Hook{
		types.ProofVDF: func(types.ProofMetrics, policy.Weights) int64 { return 100_000 },
	}
	pol := emptyPolicy(1_000_000, map[types.ProofTypeID]caps.TypeCap{
		types.ProofVDF: {PerTypeMicro: 1_000_000, PerProofMicroMax: 1_000_000},
	})
	out, err := Aggregate([]Item{{TypeID: types.ProofVDF}}, pol, 400_000, 0, hooks)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
}
