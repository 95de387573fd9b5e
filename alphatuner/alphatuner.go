// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package alphatuner implements the fairness controller: slow-moving,
// integer-only multiplicative weights per proof kind that keep the
// network's observed proof mix near its configured target, independent of
// the scorer's own per-kind formulas.
package alphatuner

import (
	"sort"

	"github.com/animica/consensus/metrics"
	"github.com/animica/consensus/types"
)

// Scale is the fixed-point base every alpha value is expressed in.
const Scale = 1_000_000_000

// PPM is parts-per-million, the base shares and ratios are expressed in.
const PPM = 1_000_000

// Config configures the tuner. Shift controls the EMA window (~2^Shift
// blocks); Cooldown is the minimum block spacing between updates.
type Config struct {
	Shift           uint
	Cooldown        uint64
	TargetMixPPM    map[types.ProofTypeID]int64
	EpsilonSharePPM int64
	MinAlpha        int64
	MaxAlpha        int64
	StepUpPPM       int64
	StepDownPPM     int64
	Normalize       bool
}

// DefaultConfig matches the reference tuner's defaults.
func DefaultConfig() Config {
	return Config{
		Shift:    8,
		Cooldown: 32,
		TargetMixPPM: map[types.ProofTypeID]int64{
			types.ProofHashShare: 600_000,
			types.ProofAI:        200_000,
			types.ProofQuantum:   120_000,
			types.ProofStorage:   50_000,
			types.ProofVDF:       30_000,
		},
		EpsilonSharePPM: 10,
		MinAlpha:        Scale / 4,
		MaxAlpha:        Scale * 4,
		StepUpPPM:       1_050_000,
		StepDownPPM:     950_000,
		Normalize:       true,
	}
}

// normalizeTargets nudges the largest target entry so the map sums to
// exactly 1e6 ppm, matching the reference's drift-correction on construction.
func normalizeTargets(targets map[types.ProofTypeID]int64) map[types.ProofTypeID]int64 {
	out := make(map[types.ProofTypeID]int64, len(targets))
	var sum int64
	for k, v := range targets {
		out[k] = v
		sum += v
	}
	if sum == PPM || len(out) == 0 {
		return out
	}
	biggest := argmax(out)
	out[biggest] += PPM - sum
	return out
}

func argmax(m map[types.ProofTypeID]int64) types.ProofTypeID {
	kinds := sortedKinds(m)
	best := kinds[0]
	for _, k := range kinds[1:] {
		if m[k] > m[best] {
			best = k
		}
	}
	return best
}

func sortedKinds(m map[types.ProofTypeID]int64) []types.ProofTypeID {
	kinds := make([]types.ProofTypeID, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// State is the tuner's replayable, mutable state.
type State struct {
	Alphas         map[types.ProofTypeID]int64
	EMAUnitsScaled map[types.ProofTypeID]int64
	LastUpdateHeight int64 // -1 means never updated
}

// NewState returns initial state with every alpha at Scale.
func NewState(config Config) State {
	alphas := make(map[types.ProofTypeID]int64, len(config.TargetMixPPM))
	ema := make(map[types.ProofTypeID]int64, len(config.TargetMixPPM))
	for k := range config.TargetMixPPM {
		alphas[k] = Scale
		ema[k] = 0
	}
	return State{Alphas: alphas, EMAUnitsScaled: ema, LastUpdateHeight: -1}
}

// Tuner owns a Config and State and exposes the per-block/per-cooldown
// operations. It is not safe for concurrent use — callers must serialize
// access, consistent with the single-writer consensus model.
type Tuner struct {
	Config  Config
	State   State
	Metrics *metrics.ConsensusMetrics
}

// New builds a Tuner with normalized targets and fresh state.
func New(config Config) *Tuner {
	config.TargetMixPPM = normalizeTargets(config.TargetMixPPM)
	return &Tuner{Config: config, State: NewState(config)}
}

// GetAlpha returns the current multiplicative weight for kind t.
func (tu *Tuner) GetAlpha(t types.ProofTypeID) int64 {
	if a, ok := tu.State.Alphas[t]; ok {
		return a
	}
	return Scale
}

// RecordBlock folds one block's observed per-kind units into the EMA:
// ema <- ema - (ema >> S) + (units << S).
func (tu *Tuner) RecordBlock(unitsByType map[types.ProofTypeID]int64) {
	shift := tu.Config.Shift
	for kind := range tu.State.EMAUnitsScaled {
		units := unitsByType[kind]
		ema := tu.State.EMAUnitsScaled[kind]
		tu.State.EMAUnitsScaled[kind] = ema - (ema >> shift) + (units << shift)
	}
}

// ReadyToUpdate reports whether height is far enough past the last update
// (or past genesis, if never updated) to run MaybeUpdate.
func (tu *Tuner) ReadyToUpdate(height uint64) bool {
	if tu.State.LastUpdateHeight < 0 {
		return height >= tu.Config.Cooldown
	}
	return height-uint64(tu.State.LastUpdateHeight) >= tu.Config.Cooldown
}

// Delta describes one Update call's effect, for telemetry and replay audits.
type Delta struct {
	Height           uint64
	Before           map[types.ProofTypeID]int64
	After            map[types.ProofTypeID]int64
	NormalizedFactor int64 // PPM-scaled; PPM means "no normalization applied"
	SharesPPM        map[types.ProofTypeID]int64
}

// MaybeUpdate runs Update if ReadyToUpdate(height), otherwise returns a
// no-op Delta with Before == After.
func (tu *Tuner) MaybeUpdate(height uint64) Delta {
	if !tu.ReadyToUpdate(height) {
		return Delta{Height: height, Before: copyMap(tu.State.Alphas), After: copyMap(tu.State.Alphas), NormalizedFactor: PPM}
	}
	return tu.Update(height)
}

// Update recomputes observed shares from the EMA, derives a clamped ratio
// adjustment per kind, and updates every alpha. When Normalize is set, the
// result is rescaled so the target-weighted average alpha stays at Scale.
func (tu *Tuner) Update(height uint64) Delta {
	before := copyMap(tu.State.Alphas)
	shares := tu.observedSharesPPM()
	if shares == nil {
		tu.State.LastUpdateHeight = int64(height)
		return Delta{Height: height, Before: before, After: before, NormalizedFactor: PPM}
	}

	for kind, alpha := range tu.State.Alphas {
		target := tu.Config.TargetMixPPM[kind]
		observed := shares[kind]
		if observed <= 0 {
			observed = tu.Config.EpsilonSharePPM
		}
		ratio := clamp(mulDiv(target, PPM, observed), tu.Config.StepDownPPM, tu.Config.StepUpPPM)
		next := clampGlobal(mulDiv(alpha, ratio, PPM), tu.Config.MinAlpha, tu.Config.MaxAlpha)
		tu.State.Alphas[kind] = next
	}

	normFactor := int64(PPM)
	if tu.Config.Normalize {
		norm := tu.targetWeightedAvgPPM()
		if norm > 0 {
			normFactor = mulDiv(PPM, PPM, norm)
			for kind, alpha := range tu.State.Alphas {
				rescaled := mulDiv(alpha, normFactor, PPM)
				tu.State.Alphas[kind] = clampGlobal(rescaled, tu.Config.MinAlpha, tu.Config.MaxAlpha)
			}
		}
	}

	tu.State.LastUpdateHeight = int64(height)
	for kind, alpha := range tu.State.Alphas {
		tu.Metrics.SetAlpha(kind, alpha)
	}
	return Delta{
		Height:           height,
		Before:           before,
		After:            copyMap(tu.State.Alphas),
		NormalizedFactor: normFactor,
		SharesPPM:        shares,
	}
}

// observedSharesPPM converts the EMA table to a ppm share table, nudging
// the largest entry so shares sum to exactly PPM. Returns nil if no kind has
// recorded any EMA mass yet (total <= 0) — there is no observed-mix signal
// to adjust alphas against, so the caller must treat this as a no-op.
func (tu *Tuner) observedSharesPPM() map[types.ProofTypeID]int64 {
	var total int64
	for _, v := range tu.State.EMAUnitsScaled {
		total += v
	}
	if total <= 0 {
		return nil
	}
	shares := make(map[types.ProofTypeID]int64, len(tu.State.EMAUnitsScaled))
	var sum int64
	for kind, v := range tu.State.EMAUnitsScaled {
		s := mulDiv(v, PPM, total)
		if s < tu.Config.EpsilonSharePPM {
			s = tu.Config.EpsilonSharePPM
		}
		shares[kind] = s
		sum += s
	}
	if sum != PPM {
		biggest := argmax(shares)
		shares[biggest] += PPM - sum
	}
	return shares
}

// targetWeightedAvgPPM computes floor(Σ alpha_i*target_i / Scale).
func (tu *Tuner) targetWeightedAvgPPM() int64 {
	var sum int64
	for kind, alpha := range tu.State.Alphas {
		target := tu.Config.TargetMixPPM[kind]
		sum += mulDiv(alpha, target, Scale)
	}
	return sum
}

func copyMap(m map[types.ProofTypeID]int64) map[types.ProofTypeID]int64 {
	out := make(map[types.ProofTypeID]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampGlobal(v, lo, hi int64) int64 { return clamp(v, lo, hi) }

// mulDiv computes floor(a*num/den) with a plain int64 multiply and divide;
// it does not guard against overflow of a*num.
func mulDiv(a, num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (a * num) / den
}

// ExportState returns a snapshot keyed by the kind's stable string name,
// suitable for JSON/YAML persistence.
func (tu *Tuner) ExportState() map[string]int64 {
	out := make(map[string]int64, 2*len(tu.State.Alphas)+1)
	for kind, v := range tu.State.Alphas {
		out["alpha:"+kind.String()] = v
	}
	for kind, v := range tu.State.EMAUnitsScaled {
		out["ema:"+kind.String()] = v
	}
	out["last_update_height"] = tu.State.LastUpdateHeight
	return out
}

// ImportState restores a snapshot produced by ExportState.
func (tu *Tuner) ImportState(snapshot map[string]int64) {
	for _, kind := range types.AllProofTypes() {
		if v, ok := snapshot["alpha:"+kind.String()]; ok {
			tu.State.Alphas[kind] = v
		}
		if v, ok := snapshot["ema:"+kind.String()]; ok {
			tu.State.EMAUnitsScaled[kind] = v
		}
	}
	if v, ok := snapshot["last_update_height"]; ok {
		tu.State.LastUpdateHeight = v
	}
}
