// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/animica/consensus/codec"

// Encode serializes the envelope to canonical CBOR (RFC 8949 §4.2.1): the
// same bytes every time for the same (TypeID, BodyCBOR, Nullifier), so two
// nodes that agree on an envelope's fields always agree on its wire form.
func (e ProofEnvelope) Encode() ([]byte, error) {
	return codec.MarshalCanonicalCBOR(wireEnvelope{
		TypeID:    int64(e.TypeID),
		BodyCBOR:  e.BodyCBOR,
		Nullifier: e.Nullifier[:],
	})
}

// DecodeProofEnvelope parses an envelope previously produced by Encode.
func DecodeProofEnvelope(data []byte) (ProofEnvelope, error) {
	var w wireEnvelope
	if err := codec.UnmarshalCBOR(data, &w); err != nil {
		return ProofEnvelope{}, err
	}
	var env ProofEnvelope
	env.TypeID = ProofTypeID(w.TypeID)
	env.BodyCBOR = w.BodyCBOR
	copy(env.Nullifier[:], w.Nullifier)
	return env, nil
}

// wireEnvelope is the CBOR-friendly shape of ProofEnvelope: Hash32 is a
// fixed-size array, which the cbor library would otherwise encode as a
// byte-array major type that's awkward to canonicalize alongside a slice.
type wireEnvelope struct {
	TypeID    int64  `cbor:"1,keyasint"`
	BodyCBOR  []byte `cbor:"2,keyasint"`
	Nullifier []byte `cbor:"3,keyasint"`
}
