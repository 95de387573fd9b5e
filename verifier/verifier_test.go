// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animica/consensus/types"
)

type stubVerifier struct {
	id types.ProofTypeID
}

func (s stubVerifier) TypeID() types.ProofTypeID { return s.id }

func (s stubVerifier) Verify(env types.ProofEnvelope, _ types.HeaderView, _ types.PolicySnapshot) types.VerificationResult {
	return types.VerificationResult{OK: true, NormalizedBodyCBOR: env.BodyCBOR}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubVerifier{id: types.ProofAI})

	v, err := r.Get(types.ProofAI)
	require.NoError(t, err)
	assert.Equal(t, types.ProofAI, v.TypeID())
}

func TestRegistry_GetUnregisteredKindErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(types.ProofVDF)
	assert.Error(t, err)
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(stubVerifier{id: types.ProofAI})
	assert.Panics(t, func() { r.Register(stubVerifier{id: types.ProofAI}) })
}

func TestRegistry_VerifyDispatchesToRegisteredVerifier(t *testing.T) {
	r := NewRegistry()
	r.Register(stubVerifier{id: types.ProofStorage})

	env := types.ProofEnvelope{TypeID: types.ProofStorage, BodyCBOR: []byte{1, 2, 3}}
	res, err := r.Verify(env, types.HeaderView{}, types.PolicySnapshot{})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, env.BodyCBOR, res.NormalizedBodyCBOR)
}

func TestRegistry_VerifyErrorsOnUnregisteredKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Verify(types.ProofEnvelope{TypeID: types.ProofVDF}, types.HeaderView{}, types.PolicySnapshot{})
	assert.Error(t, err)
}
