// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package scorer maps verified proof metrics to ψ contributions (per-kind
// hooks), applies the cap engine, and aggregates the acceptance score
// S = base_entropy + Σψ_capped.
package scorer

import (
	"math"

	"github.com/animica/consensus/caps"
	"github.com/animica/consensus/policy"
	"github.com/animica/consensus/types"
)

// Hook maps one proof's normalized metrics to a raw, uncapped ψ in
// micro-nats. Hooks must be pure and must never return a negative value.
type Hook func(m types.ProofMetrics, w policy.Weights) int64

// Hook defaults, matching the reference scorer's built-in constants for
// knobs a policy leaves at zero.
const (
	defaultKLn     = 0.25
	defaultAIKUnits = 1.0
	defaultAIRho    = 1.0
	defaultAITMin   = 0.6
	defaultAITTarget = 0.85
	defaultQKUnits  = 1.5
	defaultQTMin    = 0.65
	defaultQTTarget = 0.9
	defaultKSize    = 0.02
	defaultAlpha    = 1.2
	defaultKSec     = 0.05
)

func microOr(v int64, def float64) float64 {
	if v == 0 {
		return def
	}
	return float64(v) / 1_000_000.0
}

// toMicro converts a real, possibly non-finite value x into a non-negative
// micro-nat integer: max(0, floor(x*1e6 + eps)). The reference implements
// this as a half-rounding-avoidance epsilon rather than true rounding.
func toMicro(x float64) int64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 0
	}
	const eps = 1e-9
	v := math.Floor(x*1_000_000 + eps)
	if v < 0 {
		return 0
	}
	return int64(v)
}

// trapRamp is the piecewise-linear Q(t): 0 below tMin, 1 at/above tTarget,
// linear in between.
func trapRamp(t, tMin, tTarget float64) float64 {
	switch {
	case t <= tMin:
		return 0
	case t >= tTarget:
		return 1
	case tTarget <= tMin:
		return 1
	default:
		return (t - tMin) / (tTarget - tMin)
	}
}

// HashHook implements ψ = k_ln * ln(1 + d_ratio).
func HashHook(m types.ProofMetrics, w policy.Weights) int64 {
	kLn := microOr(w.KLnMicro, defaultKLn)
	if m.DRatio < 0 || math.IsNaN(m.DRatio) || math.IsInf(m.DRatio, 0) {
		return 0
	}
	return toMicro(kLn * math.Log1p(m.DRatio))
}

// AIHook implements ψ = k_units * ai_units * qos * Q(traps_ratio) / redundancy^rho.
func AIHook(m types.ProofMetrics, w policy.Weights) int64 {
	kUnits := microOr(w.KUnitsMicro, defaultAIKUnits)
	rho := microOr(w.RhoMicro, defaultAIRho)
	tMin := microOr(w.TMinMicro, defaultAITMin)
	tTarget := microOr(w.TTargetMicro, defaultAITTarget)

	redundancy := m.Redundancy
	if redundancy < 1 {
		redundancy = 1
	}
	q := trapRamp(m.TrapsRatio, tMin, tTarget)
	val := kUnits * m.AIUnits * m.QoS * q / math.Pow(redundancy, rho)
	return toMicro(val)
}

// QuantumHook implements ψ = k_units * quantum_units * qos * Q(traps_ratio),
// with an optional units synthesis: units = depth*width*ln(1+shots) when
// QuantumUnits is absent. The depth/width/shots synthesis path is carried by
// the verifier (it populates QuantumUnits itself); this hook only consumes
// the normalized field. Unlike AIHook, there is no redundancy-penalty term.
func QuantumHook(m types.ProofMetrics, w policy.Weights) int64 {
	kUnits := microOr(w.KUnitsMicro, defaultQKUnits)
	tMin := microOr(w.TMinMicro, defaultQTMin)
	tTarget := microOr(w.TTargetMicro, defaultQTTarget)

	q := trapRamp(m.TrapsRatio, tMin, tTarget)
	val := kUnits * m.QuantumUnits * m.QoS * q
	return toMicro(val)
}

// StorageHook implements ψ = k_size * size_gib * availability^alpha *
// (1 + 0.25*retrieval_bonus), gated on heartbeat_ok.
func StorageHook(m types.ProofMetrics, w policy.Weights) int64 {
	if !m.HeartbeatOK {
		return 0
	}
	kSize := microOr(w.KSizeMicro, defaultKSize)
	alpha := microOr(w.AlphaMicro, defaultAlpha)

	if m.SizeGiB <= 0 || m.Availability <= 0 {
		return 0
	}
	val := kSize * m.SizeGiB * math.Pow(m.Availability, alpha) * (1 + 0.25*m.RetrievalBonus)
	return toMicro(val)
}

// VDFHook implements ψ = k_sec * ln(1 + seconds_equivalent).
func VDFHook(m types.ProofMetrics, w policy.Weights) int64 {
	kSec := microOr(w.KSecMicro, defaultKSec)
	if m.VDFSeconds < 0 || math.IsNaN(m.VDFSeconds) || math.IsInf(m.VDFSeconds, 0) {
		return 0
	}
	return toMicro(kSec * math.Log1p(m.VDFSeconds))
}

// DefaultHooks returns the standard per-kind hook table.
func DefaultHooks() map[types.ProofTypeID]Hook {
	return map[types.ProofTypeID]Hook{
		types.ProofHashShare: HashHook,
		types.ProofAI:        AIHook,
		types.ProofQuantum:   QuantumHook,
		types.ProofStorage:   StorageHook,
		types.ProofVDF:       VDFHook,
	}
}

// Item pairs a verified proof's kind and metrics with the nullifier used as
// the cap engine's deterministic tie-break key.
type Item struct {
	TypeID    types.ProofTypeID
	Metrics   types.ProofMetrics
	Nullifier types.Hash32
}

// PerProofOut is one proof's contribution before and after capping.
type PerProofOut struct {
	TypeID   types.ProofTypeID
	RawMicro int64
	Capped   int64
}

// SumOutcome is the result of Sum: scoring and capping without a Θ
// comparison, used by mining-side proof selection / what-if tooling.
type SumOutcome struct {
	PsiMicro  int64
	PerProof  []PerProofOut
	CapStats  caps.Stats
}

// Sum scores and caps items without comparing to a threshold.
func Sum(items []Item, pol *policy.Policy, hooks map[types.ProofTypeID]Hook) (SumOutcome, error) {
	if hooks == nil {
		hooks = DefaultHooks()
	}
	contribs := make([]types.Contribution, len(items))
	raw := make([]int64, len(items))
	for i, it := range items {
		hook, ok := hooks[it.TypeID]
		var psi int64
		if ok {
			psi = hook(it.Metrics, pol.Weights[it.TypeID])
		}
		if psi < 0 {
			psi = 0
		}
		raw[i] = psi
		contribs[i] = types.Contribution{ProofID: it.Nullifier, ProofType: it.TypeID, PsiMicro: psi}
	}

	cappedVals, stats := caps.ApplyAll(contribs, pol.Caps, pol.GammaCap)

	out := SumOutcome{PerProof: make([]PerProofOut, len(items)), CapStats: stats}
	var total int64
	for i, it := range items {
		out.PerProof[i] = PerProofOut{TypeID: it.TypeID, RawMicro: raw[i], Capped: cappedVals[i]}
		total += cappedVals[i]
	}
	out.PsiMicro = total
	return out, nil
}

// Outcome is the result of Aggregate: the full acceptance decision.
type Outcome struct {
	Accepted        bool
	ScoreMicro      int64
	ThetaMicro      int64
	BaseEntropyMicro int64
	PsiMicro        int64
	PerProof        []PerProofOut
	CapStats        caps.Stats
}

// Aggregate scores items, applies caps, and compares
// base_entropy + Σψ_capped against thetaMicro.
func Aggregate(items []Item, pol *policy.Policy, thetaMicro, baseEntropyMicro int64, hooks map[types.ProofTypeID]Hook) (Outcome, error) {
	sum, err := Sum(items, pol, hooks)
	if err != nil {
		return Outcome{}, err
	}
	s := baseEntropyMicro + sum.PsiMicro
	return Outcome{
		Accepted:         s >= thetaMicro,
		ScoreMicro:       s,
		ThetaMicro:       thetaMicro,
		BaseEntropyMicro: baseEntropyMicro,
		PsiMicro:         sum.PsiMicro,
		PerProof:         sum.PerProof,
		CapStats:         sum.CapStats,
	}, nil
}
