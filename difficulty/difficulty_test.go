// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package difficulty

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_IgnoresNonPositiveOrNonFiniteDt(t *testing.T) {
	s := Init(DefaultParams(), 2_000_000)
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		got := Update(s, dt, 1)
		assert.Equal(t, s, got)
	}
}

func TestUpdate_FasterThanTargetRaisesTheta(t *testing.T) {
	p := DefaultParams()
	s := Init(p, 2_000_000)
	next := Update(s, p.TargetBlockTimeS/2, 1)
	assert.Greater(t, next.ThetaMicro, s.ThetaMicro, "blocks arriving faster than target should raise theta")
}

func TestUpdate_SlowerThanTargetLowersTheta(t *testing.T) {
	p := DefaultParams()
	s := Init(p, 2_000_000)
	next := Update(s, p.TargetBlockTimeS*2, 1)
	assert.Less(t, next.ThetaMicro, s.ThetaMicro, "blocks arriving slower than target should lower theta")
}

func TestUpdate_StepIsClamped(t *testing.T) {
	p := DefaultParams()
	s := Init(p, 2_000_000)
	next := Update(s, p.TargetBlockTimeS*1000, 1)
	delta := s.ThetaMicro - next.ThetaMicro
	assert.LessOrEqual(t, delta, p.StepClampMicro)
}

func TestUpdate_GlobalClampRespected(t *testing.T) {
	p := DefaultParams()
	s := Init(p, p.ThetaMinMicro)
	for i := 0; i < 1000; i++ {
		s = Update(s, p.TargetBlockTimeS*5, 1)
	}
	assert.GreaterOrEqual(t, s.ThetaMicro, p.ThetaMinMicro)

	s2 := Init(p, p.ThetaMaxMicro)
	for i := 0; i < 1000; i++ {
		s2 = Update(s2, p.TargetBlockTimeS/5, 1)
	}
	assert.LessOrEqual(t, s2.ThetaMicro, p.ThetaMaxMicro)
}

func TestUpdateMulti_ConvergesTowardTargetRate(t *testing.T) {
	p := DefaultParams()
	s := Init(p, 2_000_000)
	dts := make([]float64, 200)
	for i := range dts {
		dts[i] = p.TargetBlockTimeS
	}
	final := UpdateMulti(s, dts)
	assert.InDelta(t, 2_000_000, final.ThetaMicro, 50_000, "a constant on-target dt stream should leave theta roughly stable")
}

func TestShareMicro_ClippedToWindow(t *testing.T) {
	v := ShareMicro(1_000_000, 1)
	assert.GreaterOrEqual(t, v, int64(0))
	assert.Less(t, v, int64(1_000_000))
}

func TestShareTiers_MonotoneInK(t *testing.T) {
	tiers := ShareTiers(5_000_000, []int64{2, 4, 8, 16})
	require.Len(t, tiers, 4)
	for i := 1; i < len(tiers); i++ {
		assert.LessOrEqual(t, tiers[i].ThetaShareMicro, tiers[i-1].ThetaShareMicro, "higher K should require a lower per-share threshold")
		assert.LessOrEqual(t, tiers[i].DRatioMin, tiers[i-1].DRatioMin)
	}
}

func TestShareTiers_SkipsNonPositiveFactors(t *testing.T) {
	tiers := ShareTiers(1_000_000, []int64{0, -1, 2})
	require.Len(t, tiers, 1)
	assert.Equal(t, int64(2), tiers[0].K)
}

func TestValidateWindow_RejectsNonPositive(t *testing.T) {
	assert.Error(t, ValidateWindow(0, 1))
	assert.Error(t, ValidateWindow(-1, 1))
	assert.NoError(t, ValidateWindow(1, 1))
}
