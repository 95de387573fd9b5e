// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus provides a clean, single-import interface to the PoIES
// consensus core: scoring, caps, difficulty retargeting, fairness tuning,
// fork choice and block validation.
//
// For the per-component APIs (hook customization, cap-engine internals,
// canonical policy encoding), import the relevant subpackage directly;
// this file only re-exports the surface most callers need.
package consensus

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/animica/consensus/alphatuner"
	"github.com/animica/consensus/caps"
	"github.com/animica/consensus/difficulty"
	"github.com/animica/consensus/fixedpoint"
	"github.com/animica/consensus/forkchoice"
	"github.com/animica/consensus/metrics"
	"github.com/animica/consensus/policy"
	"github.com/animica/consensus/scorer"
	"github.com/animica/consensus/types"
	"github.com/animica/consensus/validator"
	"github.com/animica/consensus/verifier"
)

// Type aliases for a clean single-import experience.
type (
	// Shared types
	Hash32         = types.Hash32
	MicroNat       = types.MicroNat
	ProofTypeID    = types.ProofTypeID
	HeaderView     = types.HeaderView
	PolicySnapshot = types.PolicySnapshot
	ProofEnvelope  = types.ProofEnvelope
	ProofMetrics   = types.ProofMetrics

	// Policy
	Policy  = policy.Policy
	Weights = policy.Weights
	TypeCap = caps.TypeCap

	// Verification
	Registry           = verifier.Registry
	ProofVerifier      = verifier.ProofVerifier
	VerificationResult = types.VerificationResult

	// Scoring
	Hook       = scorer.Hook
	Item       = scorer.Item
	SumOutcome = scorer.SumOutcome

	// Validation
	Outcome         = validator.Outcome
	Scorer          = validator.Scorer
	NullifierStore  = validator.NullifierStore
	PolicyScorer    = validator.PolicyScorer
	ValidatorEngine = validator.Engine

	// Telemetry
	ConsensusMetrics = metrics.ConsensusMetrics

	// Difficulty / Θ
	ThetaState  = difficulty.State
	ThetaParams = difficulty.Params

	// Fairness
	TunerConfig = alphatuner.Config
	TunerState  = alphatuner.State

	// Fork choice
	ForkChoiceEngine = forkchoice.Engine
	BestTip          = forkchoice.BestTip
	AddResult        = forkchoice.AddResult
)

// Canonical proof kinds, re-exported for convenience.
const (
	ProofHashShare = types.ProofHashShare
	ProofAI        = types.ProofAI
	ProofQuantum   = types.ProofQuantum
	ProofStorage   = types.ProofStorage
	ProofVDF       = types.ProofVDF
)

// LoadPolicy reads and validates a PoIES policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	return policy.Load(path)
}

// NewRegistry returns an empty proof-verifier registry.
func NewRegistry() *Registry {
	return verifier.NewRegistry()
}

// NewPolicyScorer builds a Scorer backed by pol and the default per-kind
// hook table.
func NewPolicyScorer(pol *Policy) *PolicyScorer {
	return validator.NewPolicyScorer(pol)
}

// NewMemoryNullifierStore returns an in-memory NullifierStore suitable for
// tests and single-process tooling.
func NewMemoryNullifierStore() *validator.MemoryNullifierStore {
	return validator.NewMemoryNullifierStore()
}

// NewConsensusMetrics registers the PoIES telemetry gauges/counters
// against reg. reg may be nil.
func NewConsensusMetrics(reg prometheus.Registerer) *ConsensusMetrics {
	return metrics.NewConsensusMetrics(reg)
}

// NewValidatorEngine bundles a logger, telemetry, verifier registry,
// scorer and nullifier store behind a single Validate method.
func NewValidatorEngine(logger log.Logger, m *ConsensusMetrics, verifiers *Registry, sc Scorer, nullifiers NullifierStore) *ValidatorEngine {
	return validator.NewEngine(logger, m, verifiers, sc, nullifiers)
}

// ValidateBlock runs the full acceptance pipeline described in
// SPEC_FULL.md §4.8: policy root binding, nullifier freshness, per-proof
// verification, scoring with caps, H(u) from hash-share metrics, and the
// S >= Θ comparison. logger may be nil.
func ValidateBlock(
	logger log.Logger,
	header HeaderView,
	proofs []ProofEnvelope,
	policySnap PolicySnapshot,
	verifiers *Registry,
	sc Scorer,
	nullifiers NullifierStore,
) Outcome {
	return validator.Validate(logger, header, proofs, policySnap, verifiers, sc, nullifiers)
}

// HOfU computes H(u) = -ln(u) in micro-nats using 80-digit decimal
// precision, given a 32-byte big-endian draw mapped to u = (n+1)/2^256.
func HOfU(hash [32]byte) (int64, error) {
	return fixedpoint.HFromHash256(hash)
}

// DefaultThetaParams returns the reference difficulty-retarget parameters.
func DefaultThetaParams() ThetaParams {
	return difficulty.DefaultParams()
}

// InitTheta derives initial retarget state from params and an initial Θ.
func InitTheta(p ThetaParams, thetaInitMicro int64) ThetaState {
	return difficulty.Init(p, thetaInitMicro)
}

// DefaultTunerConfig returns the reference fairness-tuner configuration.
func DefaultTunerConfig() TunerConfig {
	return alphatuner.DefaultConfig()
}

// NewTuner builds a fairness tuner from config. m may be nil.
func NewTuner(cfg TunerConfig, m *ConsensusMetrics) *alphatuner.Tuner {
	tu := alphatuner.New(cfg)
	tu.Metrics = m
	return tu
}

// NewForkChoice creates a fork-choice engine rooted at genesis. m may be
// nil.
func NewForkChoice(genesisHash Hash32, genesisWeightMicro int64, genesisHeight uint64, maxReorgDepth int, logger log.Logger, m *ConsensusMetrics) *ForkChoiceEngine {
	e := forkchoice.New(genesisHash, genesisWeightMicro, genesisHeight, maxReorgDepth, logger)
	e.Metrics = m
	return e
}
