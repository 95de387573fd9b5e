// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package verifier defines the narrow protocol proof-kind verifiers
// implement and a small registry the block validator dispatches through.
// Verifiers themselves (TEE attestation, QPU provider checks, VDF proof
// checks) live outside this module; this package only carries the
// dependency boundary.
package verifier

import (
	"fmt"

	"github.com/animica/consensus/types"
)

// ProofVerifier is implemented by each proof-kind verifier. Implementations
// must be pure functions of their inputs: no clocks, network, filesystem or
// environment access, and must canonicalize envelope.BodyCBOR into
// NormalizedBodyCBOR before returning.
type ProofVerifier interface {
	TypeID() types.ProofTypeID
	Verify(envelope types.ProofEnvelope, header types.HeaderView, policy types.PolicySnapshot) types.VerificationResult
}

// Registry is a map of type-id to ProofVerifier, used by validator.Validate
// to dispatch each envelope in a block to the right checker.
type Registry struct {
	byID map[types.ProofTypeID]ProofVerifier
}

// NewRegistry returns an empty verifier registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[types.ProofTypeID]ProofVerifier)}
}

// Register adds v under its TypeID. It panics on a duplicate registration —
// that is a wiring bug, not a runtime condition.
func (r *Registry) Register(v ProofVerifier) {
	id := v.TypeID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("verifier: duplicate verifier for type_id=%d", id))
	}
	r.byID[id] = v
}

// Get returns the verifier registered for id, or an error if none is.
func (r *Registry) Get(id types.ProofTypeID) (ProofVerifier, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("verifier: no verifier registered for type_id=%d", id)
	}
	return v, nil
}

// Verify dispatches envelope to its registered verifier.
func (r *Registry) Verify(envelope types.ProofEnvelope, header types.HeaderView, policy types.PolicySnapshot) (types.VerificationResult, error) {
	v, err := r.Get(envelope.TypeID)
	if err != nil {
		return types.VerificationResult{}, err
	}
	return v.Verify(envelope, header, policy), nil
}
