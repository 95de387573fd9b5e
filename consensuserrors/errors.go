// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensuserrors carries the stable, numbered error taxonomy
// consensus components return, so callers across process and language
// boundaries can branch on Code rather than parsing Error() strings.
package consensuserrors

import "fmt"

// Code is a stable, never-renumbered error identifier.
type Code int

const (
	CodeConsensusGeneric Code = 2000
	CodePolicy           Code = 2001
	CodeThetaSchedule    Code = 2002
	CodeNullifier        Code = 2003
)

func (c Code) String() string {
	switch c {
	case CodeConsensusGeneric:
		return "consensus_generic"
	case CodePolicy:
		return "policy"
	case CodeThetaSchedule:
		return "theta_schedule"
	case CodeNullifier:
		return "nullifier"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// ConsensusError is the base error type every consensus component returns.
// Context carries free-form, log/test-safe fields describing the failure;
// it must never hold anything that can't be serialized to JSON.
type ConsensusError struct {
	Code    Code
	Message string
	Context map[string]interface{}
	Cause   error
}

func (e *ConsensusError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConsensusError) Unwrap() error { return e.Cause }

// New builds a generic ConsensusError (code 2000).
func New(message string, context map[string]interface{}) *ConsensusError {
	return &ConsensusError{Code: CodeConsensusGeneric, Message: message, Context: context}
}

// PolicyErrorFields is the context of a policy error (code 2001), which
// reports a policy validation or binding failure:
// a cap exceeding gamma_cap, an escort rule with no useful types, or a
// header's policy_alg_root not matching the active policy snapshot.
type PolicyErrorFields struct {
	Section    string
	Path       string
	Expected   string
	Actual     string
	PolicyRoot string
}

// NewPolicyError builds a ConsensusError carrying PolicyErrorFields.
func NewPolicyError(message string, f PolicyErrorFields) *ConsensusError {
	return &ConsensusError{
		Code:    CodePolicy,
		Message: message,
		Context: map[string]interface{}{
			"section":     f.Section,
			"path":        f.Path,
			"expected":    f.Expected,
			"actual":      f.Actual,
			"policy_root": f.PolicyRoot,
		},
	}
}

// PolicyMismatch reports a binding mismatch between an expected and actual
// value at path within section, optionally attributing it to a policy root.
func PolicyMismatch(section, path, expected, actual, policyRoot string) *ConsensusError {
	return NewPolicyError("policy mismatch", PolicyErrorFields{
		Section: section, Path: path, Expected: expected, Actual: actual, PolicyRoot: policyRoot,
	})
}

// ThetaScheduleErrorFields describes a difficulty-retarget failure.
type ThetaScheduleErrorFields struct {
	ThetaPrev     MicroNat
	ThetaNext     MicroNat
	IntervalObs   float64
	IntervalTgt   float64
	Window        int
	Clamp         MicroNat
	Height        uint64
	HeightPresent bool
}

// MicroNat avoids importing the types package purely for an int64 alias.
type MicroNat = int64

// NewThetaScheduleError builds a ConsensusError carrying retarget context.
func NewThetaScheduleError(message string, f ThetaScheduleErrorFields) *ConsensusError {
	ctx := map[string]interface{}{
		"theta_prev":   f.ThetaPrev,
		"theta_next":   f.ThetaNext,
		"interval_obs": f.IntervalObs,
		"interval_tgt": f.IntervalTgt,
		"window":       f.Window,
		"clamp":        f.Clamp,
	}
	if f.HeightPresent {
		ctx["height"] = f.Height
	}
	return &ConsensusError{Code: CodeThetaSchedule, Message: message, Context: ctx}
}

// ThetaInvalidWindow reports a non-positive or non-finite retarget window.
func ThetaInvalidWindow(window int, height uint64, heightPresent bool) *ConsensusError {
	return NewThetaScheduleError("invalid retarget window", ThetaScheduleErrorFields{
		Window: window, Height: height, HeightPresent: heightPresent,
	})
}

// ThetaClampOverflow reports a computed theta that the global clamp had to
// saturate away from — informational context for telemetry, not a hard
// failure (the schedule still returns the clamped value).
func ThetaClampOverflow(thetaPrev, computed, clamp MicroNat, height uint64, heightPresent bool) *ConsensusError {
	return NewThetaScheduleError("theta clamp overflow", ThetaScheduleErrorFields{
		ThetaPrev: thetaPrev, ThetaNext: computed, Clamp: clamp, Height: height, HeightPresent: heightPresent,
	})
}

// NullifierErrorFields describes a replay or domain-binding violation.
type NullifierErrorFields struct {
	ProofType       int
	Nullifier       []byte
	FirstSeenHeight uint64
	TTLBlocks       uint64
	Reason          string
}

// NewNullifierError builds a ConsensusError carrying nullifier context.
func NewNullifierError(message string, f NullifierErrorFields) *ConsensusError {
	return &ConsensusError{
		Code:    CodeNullifier,
		Message: message,
		Context: map[string]interface{}{
			"proof_type":        f.ProofType,
			"nullifier":         f.Nullifier,
			"first_seen_height": f.FirstSeenHeight,
			"ttl_blocks":        f.TTLBlocks,
			"reason":            f.Reason,
		},
	}
}

// NullifierReused reports a nullifier already recorded within its TTL window.
func NullifierReused(proofType int, nullifier []byte, firstSeenHeight, ttlBlocks uint64) *ConsensusError {
	return NewNullifierError("nullifier reused", NullifierErrorFields{
		ProofType: proofType, Nullifier: nullifier, FirstSeenHeight: firstSeenHeight,
		TTLBlocks: ttlBlocks, Reason: "reused",
	})
}

// NullifierDomainMismatch reports a nullifier computed under the wrong
// domain-separation tag for its proof type.
func NullifierDomainMismatch(proofType int, nullifier []byte) *ConsensusError {
	return NewNullifierError("nullifier domain mismatch", NullifierErrorFields{
		ProofType: proofType, Nullifier: nullifier, Reason: "domain-mismatch",
	})
}
