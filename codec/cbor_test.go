// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	B int64  `cbor:"2,keyasint"`
	A string `cbor:"1,keyasint"`
}

func TestMarshalCanonicalCBOR_RoundTrips(t *testing.T) {
	in := sample{A: "hello", B: 7}
	data, err := MarshalCanonicalCBOR(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, UnmarshalCBOR(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalCanonicalCBOR_IsDeterministicAcrossCalls(t *testing.T) {
	in := sample{A: "hello", B: 7}
	d1, err := MarshalCanonicalCBOR(in)
	require.NoError(t, err)
	d2, err := MarshalCanonicalCBOR(in)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestUnmarshalCBOR_RejectsGarbage(t *testing.T) {
	var out sample
	assert.Error(t, UnmarshalCBOR([]byte{0xff, 0xff, 0xff}, &out))
}
