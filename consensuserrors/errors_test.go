// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package consensuserrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_StringIsStableForKnownCodes(t *testing.T) {
	assert.Equal(t, "consensus_generic", CodeConsensusGeneric.String())
	assert.Equal(t, "policy", CodePolicy.String())
	assert.Equal(t, "theta_schedule", CodeThetaSchedule.String())
	assert.Equal(t, "nullifier", CodeNullifier.String())
}

func TestCode_StringFallsBackForUnknownCode(t *testing.T) {
	assert.Equal(t, "code(9999)", Code(9999).String())
}

func TestConsensusError_ErrorIncludesCodeAndMessage(t *testing.T) {
	err := New("something broke", nil)
	assert.Contains(t, err.Error(), "consensus_generic")
	assert.Contains(t, err.Error(), "something broke")
}

func TestConsensusError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := &ConsensusError{Code: CodeConsensusGeneric, Cause: cause}
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestPolicyMismatch_CarriesFieldsInContext(t *testing.T) {
	err := PolicyMismatch("caps", "ai.per_type_micro", "<=1000", "2000", "deadbeef")
	assert.Equal(t, CodePolicy, err.Code)
	assert.Equal(t, "caps", err.Context["section"])
	assert.Equal(t, "deadbeef", err.Context["policy_root"])
}

func TestThetaInvalidWindow_SetsThetaScheduleCode(t *testing.T) {
	err := ThetaInvalidWindow(-1, 42, true)
	assert.Equal(t, CodeThetaSchedule, err.Code)
	assert.Equal(t, uint64(42), err.Context["height"])
}

func TestThetaScheduleError_OmitsHeightWhenNotPresent(t *testing.T) {
	err := ThetaInvalidWindow(-1, 0, false)
	_, ok := err.Context["height"]
	assert.False(t, ok)
}

func TestNullifierReused_SetsNullifierCode(t *testing.T) {
	err := NullifierReused(1, []byte{1, 2, 3}, 10, 100)
	assert.Equal(t, CodeNullifier, err.Code)
	assert.Equal(t, "reused", err.Context["reason"])
}

func TestNullifierDomainMismatch_SetsReason(t *testing.T) {
	err := NullifierDomainMismatch(2, []byte{9})
	assert.Equal(t, "domain-mismatch", err.Context["reason"])
}
