// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package difficulty maintains the acceptance threshold Θ via a bounded EMA
// retarget loop over observed block intervals. Unlike fixedpoint's H(u),
// this loop is ordinary float64 arithmetic — the reference implementation
// never demands decimal precision here, only monotone, clamped movement.
package difficulty

import (
	"math"

	"github.com/animica/consensus/consensuserrors"
)

// Params configures the retarget loop.
type Params struct {
	TargetBlockTimeS float64
	HalfLifeBlocks   float64
	GainBeta         float64
	StepClampMicro   int64
	ThetaMinMicro    int64
	ThetaMaxMicro    int64
}

// DefaultParams matches the reference retarget defaults.
func DefaultParams() Params {
	return Params{
		TargetBlockTimeS: 12.0,
		HalfLifeBlocks:   24.0,
		GainBeta:         0.75,
		StepClampMicro:   400_000,
		ThetaMinMicro:    500_000,
		ThetaMaxMicro:    30_000_000,
	}
}

// State is the replayable retarget state: (theta_micro, r̂, α, params).
type State struct {
	ThetaMicro  int64
	TauNats     float64
	EMALogDtOverT float64
	Alpha       float64
	Params      Params
}

// Init derives state from params and an initial Θ, computing
// alpha = 1 - 2^(-1/halfLifeBlocks).
func Init(p Params, thetaInitMicro int64) State {
	alpha := 1 - math.Pow(2, -1/p.HalfLifeBlocks)
	return State{
		ThetaMicro:    thetaInitMicro,
		TauNats:       float64(thetaInitMicro) / 1_000_000.0,
		EMALogDtOverT: 0,
		Alpha:         alpha,
		Params:        p,
	}
}

// Update folds one observed inter-block interval (seconds) with an optional
// skipped-block count into the state, returning the new state. Pathological
// dt (<=0 or non-finite) is ignored: the state is returned unchanged. m
// defaults to 1 when 0 is passed.
func Update(s State, dtSeconds float64, blocksSkipped int) State {
	if dtSeconds <= 0 || math.IsNaN(dtSeconds) || math.IsInf(dtSeconds, 0) {
		return s
	}
	m := blocksSkipped
	if m <= 0 {
		m = 1
	}

	rK := math.Log(dtSeconds / s.Params.TargetBlockTimeS)
	decay := math.Pow(1-s.Alpha, float64(m))
	rHat := decay*s.EMALogDtOverT + (1-decay)*rK

	tauNext := s.TauNats - s.Params.GainBeta*rHat
	thetaNext := natsToMicroRound(tauNext)

	delta := thetaNext - s.ThetaMicro
	if delta > s.Params.StepClampMicro {
		thetaNext = s.ThetaMicro + s.Params.StepClampMicro
	} else if delta < -s.Params.StepClampMicro {
		thetaNext = s.ThetaMicro - s.Params.StepClampMicro
	}

	if thetaNext < s.Params.ThetaMinMicro {
		thetaNext = s.Params.ThetaMinMicro
	} else if thetaNext > s.Params.ThetaMaxMicro {
		thetaNext = s.Params.ThetaMaxMicro
	}

	return State{
		ThetaMicro:    thetaNext,
		TauNats:       float64(thetaNext) / 1_000_000.0,
		EMALogDtOverT: rHat,
		Alpha:         s.Alpha,
		Params:        s.Params,
	}
}

// UpdateMulti folds a sequence of observed dt samples (each with an implicit
// skip count of 1) in order, returning the final state. Used by chain
// replay and by convergence tests.
func UpdateMulti(s State, dtSeconds []float64) State {
	for _, dt := range dtSeconds {
		s = Update(s, dt, 1)
	}
	return s
}

func natsToMicroRound(nats float64) int64 {
	return int64(math.Round(nats * 1_000_000))
}

// ShareMicro computes the per-share threshold for a K-shares-per-block
// target: tau_share = theta_nats - ln(K), clipped to [0, theta_micro-1].
func ShareMicro(thetaMicro int64, sharesPerBlock float64) int64 {
	thetaNats := float64(thetaMicro) / 1_000_000.0
	tauShare := thetaNats - math.Log(sharesPerBlock)
	v := natsToMicroRound(tauShare)
	if v < 0 {
		v = 0
	}
	if v > thetaMicro-1 {
		v = thetaMicro - 1
	}
	return v
}

// ShareTier is one row of a share-threshold table: the K factor, its
// derived per-share threshold, and the minimum d_ratio a HASH proof needs
// to clear it (d_ratio_min = exp(tau_share_nats) - 1).
type ShareTier struct {
	K             int64
	ThetaShareMicro int64
	DRatioMin     float64
}

// ShareTiers builds a share-threshold table for the given K factors (e.g.
// 2,4,8,...,256), a mining-facing view of the retarget schedule.
func ShareTiers(thetaMicro int64, factors []int64) []ShareTier {
	out := make([]ShareTier, 0, len(factors))
	for _, k := range factors {
		if k <= 0 {
			continue
		}
		share := ShareMicro(thetaMicro, float64(k))
		dRatioMin := math.Exp(float64(share)/1_000_000.0) - 1
		out = append(out, ShareTier{K: k, ThetaShareMicro: share, DRatioMin: dRatioMin})
	}
	return out
}

// ValidateWindow returns a ThetaScheduleError if window is non-positive —
// used by callers that fold multiple dt samples over an explicit window
// size before calling UpdateMulti.
func ValidateWindow(window int, height uint64) error {
	if window <= 0 {
		return consensuserrors.ThetaInvalidWindow(window, height, true)
	}
	return nil
}
