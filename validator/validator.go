// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package validator recomputes the PoIES acceptance score for a candidate
// block and enforces policy/root binding and nullifier freshness. Heavy
// cryptography lives behind the verifier registry; this package only
// orchestrates the pipeline described in SPEC_FULL.md §4.8.
package validator

import (
	"math"
	"sort"

	"github.com/luxfi/log"

	"github.com/animica/consensus/metrics"
	"github.com/animica/consensus/policy"
	"github.com/animica/consensus/scorer"
	"github.com/animica/consensus/types"
	"github.com/animica/consensus/verifier"
)

// Scorer maps a batch of verified (type_id, metrics) items to a total ψ in
// micro-nats plus a human-readable breakdown. Implementations are
// responsible for any caps/Γ/fairness weighting and must never return a
// negative total.
type Scorer interface {
	Score(items []scorer.Item) (psiMicro int64, breakdown map[string]float64, err error)
}

// PolicyScorer adapts scorer.Sum (hooks + cap engine) to the Scorer
// interface the validator depends on. Hooks may be nil to use
// scorer.DefaultHooks. It applies the per-kind hooks and the cap engine
// only; α-tuner fairness weights are not applied.
type PolicyScorer struct {
	Policy *policy.Policy
	Hooks  map[types.ProofTypeID]scorer.Hook
}

// NewPolicyScorer builds a PolicyScorer with the default hook table.
func NewPolicyScorer(pol *policy.Policy) *PolicyScorer {
	return &PolicyScorer{Policy: pol, Hooks: scorer.DefaultHooks()}
}

func (p *PolicyScorer) Score(items []scorer.Item) (int64, map[string]float64, error) {
	out, err := scorer.Sum(items, p.Policy, p.Hooks)
	if err != nil {
		return 0, nil, err
	}
	breakdown := make(map[string]float64, len(out.PerProof)+4)
	breakdown["psi_total_micro"] = float64(out.PsiMicro)
	breakdown["raw_sum_micro"] = float64(out.CapStats.RawSum)
	breakdown["after_per_proof_micro"] = float64(out.CapStats.AfterPerProof)
	breakdown["after_per_type_micro"] = float64(out.CapStats.AfterPerType)
	breakdown["after_gamma_micro"] = float64(out.CapStats.AfterGamma)
	for kind, sum := range out.CapStats.PerTypeSums {
		breakdown["type:"+kind.String()] = float64(sum)
	}
	return out.PsiMicro, breakdown, nil
}

// NullifierStore is the sliding-window TTL replay-prevention store. A
// production implementation is persistence-backed; tests may use an
// in-memory one implementing the same two methods.
type NullifierStore interface {
	Seen(nullifier types.Hash32) bool
	Record(nullifier types.Hash32, height uint64)
}

// Stage names a rejection's pipeline stage.
type Stage string

const (
	StageDuplicateNullifier Stage = "duplicate-nullifier"
	StageVerifier           Stage = "verifier"
	StageScore              Stage = "score"
)

// Outcome is the full result of Validate.
type Outcome struct {
	OK                  bool
	Reason              string
	ThetaMicro          int64
	HMicro              int64
	PsiMicro            int64
	SMicro              int64
	BadIndex            int // -1 when not applicable
	BadStage            Stage
	NormalizedEnvelopes []types.ProofEnvelope
	Breakdown           map[string]float64
}

// Validate runs the end-to-end pipeline: root binding, nullifier
// freshness, per-proof verification, scoring, H(u) computation from
// hash-share metrics, acceptance comparison, and nullifier commit. Only
// nullifiers.Record mutates state, and only after acceptance is known.
// logger may be nil, in which case rejections and acceptances are not
// logged.
func Validate(
	logger log.Logger,
	header types.HeaderView,
	proofs []types.ProofEnvelope,
	policySnap types.PolicySnapshot,
	verifiers *verifier.Registry,
	sc Scorer,
	nullifiers NullifierStore,
) Outcome {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	// (1) Policy root binding.
	if header.PolicyAlgRoot != policySnap.AlgPolicyRoot {
		return reject(logger, "alg-policy-root-mismatch", header.ThetaMicro, -1, StageScore)
	}

	// (2) Nullifier freshness (pre-check).
	local := make(map[types.Hash32]struct{}, len(proofs))
	for i, env := range proofs {
		if _, dup := local[env.Nullifier]; dup || nullifiers.Seen(env.Nullifier) {
			return reject(logger, "duplicate-nullifier", header.ThetaMicro, i, StageDuplicateNullifier)
		}
		local[env.Nullifier] = struct{}{}
	}

	// (3) Verify each proof.
	verified := make([]scorer.Item, 0, len(proofs))
	normalized := make([]types.ProofEnvelope, 0, len(proofs))
	for i, env := range proofs {
		res, err := verifiers.Verify(env, header, policySnap)
		if err != nil {
			return reject(logger, "verifier-exception:"+err.Error(), header.ThetaMicro, i, StageVerifier)
		}
		if !res.OK {
			reason := res.Reason
			if reason == "" {
				reason = "unspecified"
			}
			return reject(logger, "proof-invalid:"+reason, header.ThetaMicro, i, StageVerifier)
		}
		normalized = append(normalized, types.ProofEnvelope{
			TypeID: env.TypeID, BodyCBOR: res.NormalizedBodyCBOR, Nullifier: env.Nullifier,
		})
		verified = append(verified, scorer.Item{TypeID: env.TypeID, Metrics: res.Metrics, Nullifier: env.Nullifier})
	}

	// (4) Score.
	psiMicro, breakdown, err := sc.Score(verified)
	if err != nil {
		return reject(logger, "score-error:"+err.Error(), header.ThetaMicro, -1, StageScore)
	}
	if psiMicro < 0 {
		logger.Warn("consensus: scorer returned negative psi, rejecting block", "height", header.Height)
		return Outcome{
			Reason: "score-negative", ThetaMicro: header.ThetaMicro, PsiMicro: psiMicro, SMicro: psiMicro,
			BadIndex: -1, BadStage: StageScore, Breakdown: breakdown,
		}
	}

	// (5) H(u) from hash-share metrics.
	hMicro := computeHMicroFromHashShares(verified)
	sMicro := hMicro + psiMicro
	theta := header.ThetaMicro
	if theta < 0 {
		theta = 0
	}

	if sMicro < theta {
		logger.Warn("consensus: block rejected below theta", "height", header.Height, "s_micro", sMicro, "theta_micro", theta)
		return Outcome{
			Reason: "below-theta", ThetaMicro: theta, HMicro: hMicro, PsiMicro: psiMicro, SMicro: sMicro,
			BadIndex: -1, BadStage: StageScore,
			NormalizedEnvelopes: normalized,
			Breakdown:           topN(breakdown, 3),
		}
	}

	// (6) Commit: record nullifiers after acceptance.
	for _, env := range proofs {
		nullifiers.Record(env.Nullifier, header.Height)
	}

	logger.Info("consensus: block accepted", "height", header.Height, "s_micro", sMicro, "theta_micro", theta)
	return Outcome{
		OK: true, ThetaMicro: theta, HMicro: hMicro, PsiMicro: psiMicro, SMicro: sMicro,
		BadIndex: -1, NormalizedEnvelopes: normalized, Breakdown: breakdown,
	}
}

func reject(logger log.Logger, reason string, thetaMicro int64, badIndex int, stage Stage) Outcome {
	logger.Warn("consensus: block rejected", "reason", reason, "stage", string(stage))
	return Outcome{Reason: reason, ThetaMicro: thetaMicro, BadIndex: badIndex, BadStage: stage}
}

// computeHMicroFromHashShares takes the max ln(d_ratio) across verified
// HASH proofs (clamped at 0) and converts it to micro-nats. Returns 0 if no
// HASH proof is present. This is the consensus-critical resolution of
// SPEC_FULL.md's H(u)-source open question.
func computeHMicroFromHashShares(items []scorer.Item) int64 {
	best := 0.0
	for _, it := range items {
		if it.TypeID != types.ProofHashShare {
			continue
		}
		v := lnClamped(it.Metrics.DRatio)
		if v > best {
			best = v
		}
	}
	if best <= 0 {
		return 0
	}
	return int64(math.Round(best * 1_000_000))
}

func lnClamped(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	if x <= 1.0 {
		return 0
	}
	return math.Log(x)
}

func topN(breakdown map[string]float64, n int) map[string]float64 {
	type kv struct {
		k string
		v float64
	}
	entries := make([]kv, 0, len(breakdown))
	for k, v := range breakdown {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return math.Abs(entries[i].v) > math.Abs(entries[j].v)
	})
	out := make(map[string]float64, n)
	for i := 0; i < len(entries) && i < n; i++ {
		out[entries[i].k] = entries[i].v
	}
	return out
}

// Engine bundles the dependencies Validate needs behind a single
// injectable struct, the way the teacher's poll engine bundles a logger
// and metrics factory behind a set.
type Engine struct {
	Log        log.Logger
	Metrics    *metrics.ConsensusMetrics
	Verifiers  *verifier.Registry
	Scorer     Scorer
	Nullifiers NullifierStore
}

// NewEngine builds an Engine. logger and m may both be nil.
func NewEngine(logger log.Logger, m *metrics.ConsensusMetrics, verifiers *verifier.Registry, sc Scorer, nullifiers NullifierStore) *Engine {
	return &Engine{Log: logger, Metrics: m, Verifiers: verifiers, Scorer: sc, Nullifiers: nullifiers}
}

// Validate runs the pipeline and folds the outcome into e.Metrics.
func (e *Engine) Validate(header types.HeaderView, proofs []types.ProofEnvelope, policySnap types.PolicySnapshot) Outcome {
	out := Validate(e.Log, header, proofs, policySnap, e.Verifiers, e.Scorer, e.Nullifiers)
	e.Metrics.RecordOutcome(out.OK, out.ThetaMicro, out.SMicro, out.PsiMicro, out.HMicro)
	return out
}

// MemoryNullifierStore is an in-memory NullifierStore reference
// implementation for tests and tooling. It is not bounded by a TTL window
// and is not suitable for production use.
type MemoryNullifierStore struct {
	seen map[types.Hash32]uint64
}

// NewMemoryNullifierStore returns an empty store.
func NewMemoryNullifierStore() *MemoryNullifierStore {
	return &MemoryNullifierStore{seen: make(map[types.Hash32]uint64)}
}

func (m *MemoryNullifierStore) Seen(n types.Hash32) bool {
	_, ok := m.seen[n]
	return ok
}

func (m *MemoryNullifierStore) Record(n types.Hash32, height uint64) {
	m.seen[n] = height
}
