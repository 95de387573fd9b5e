// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/animica/consensus/types"
)

func TestNewConsensusMetrics_NilRegistererIsSafe(t *testing.T) {
	cm := NewConsensusMetrics(nil)
	assert.NotNil(t, cm)
	cm.RecordOutcome(true, 100, 200, 150, 50)
}

func TestRecordOutcome_TracksAcceptedAndRejectedCounts(t *testing.T) {
	cm := NewConsensusMetrics(prometheus.NewRegistry())
	cm.RecordOutcome(true, 100, 200, 150, 50)
	cm.RecordOutcome(false, 100, 0, 10, 5)
	assert.Equal(t, int64(1), cm.Accepted.Read())
	assert.Equal(t, int64(1), cm.Rejected.Read())
}

func TestRecordOutcome_OnlyObservesSOnAcceptance(t *testing.T) {
	cm := NewConsensusMetrics(prometheus.NewRegistry())
	cm.RecordOutcome(false, 100, 999, 10, 5)
	assert.Equal(t, float64(0), cm.SMicro.Read(), "S must not be observed on rejection")
}

func TestRecordReorg_UpdatesAverage(t *testing.T) {
	cm := NewConsensusMetrics(prometheus.NewRegistry())
	cm.RecordReorg(2)
	cm.RecordReorg(4)
	assert.Equal(t, float64(3), cm.ReorgDepth.Read())
}

func TestSetAlpha_RoundTripsThroughNamedRegistry(t *testing.T) {
	cm := NewConsensusMetrics(prometheus.NewRegistry())
	cm.SetAlpha(types.ProofAI, 2_000_000_000)
	assert.Equal(t, float64(2_000_000_000), cm.Alpha(types.ProofAI))
}

func TestAlpha_UnknownKindReturnsZero(t *testing.T) {
	cm := NewConsensusMetrics(prometheus.NewRegistry())
	assert.Equal(t, float64(0), cm.Alpha(types.ProofTypeID(999)))
}

func TestConsensusMetrics_NilReceiverMethodsAreNoOps(t *testing.T) {
	var cm *ConsensusMetrics
	assert.NotPanics(t, func() {
		cm.RecordOutcome(true, 1, 2, 3, 4)
		cm.RecordReorg(1)
		cm.SetAlpha(types.ProofAI, 1)
		_ = cm.Alpha(types.ProofAI)
	})
}
