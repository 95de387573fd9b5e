// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/animica/consensus/types"
)

// ConsensusMetrics is the set of observability hooks wired into the
// validator, fork-choice engine and fairness tuner: acceptance score
// components and per-kind alpha weights. named is the in-memory Registry
// backing the per-kind alpha gauges, so ops tooling can look one up by its
// stable name without holding a reference to the ConsensusMetrics value.
type ConsensusMetrics struct {
	ThetaMicro Averager
	SMicro     Averager
	PsiMicro   Averager
	HMicro     Averager
	Accepted   Counter
	Rejected   Counter
	ReorgDepth Averager

	named Registry
}

// NewConsensusMetrics registers the PoIES gauges/counters against reg using
// the reference metrics.Averager/NewAverager registration idiom. reg may be
// nil, in which case the averagers are registered against a fresh, private
// prometheus registry and still record values.
func NewConsensusMetrics(reg prometheus.Registerer) *ConsensusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	cm := &ConsensusMetrics{
		ThetaMicro: MustAverager("poies_theta_micro", "acceptance threshold in micro-nats", reg),
		SMicro:     MustAverager("poies_s_micro", "acceptance score in micro-nats", reg),
		PsiMicro:   MustAverager("poies_psi_micro", "summed proof-of-useful-work contribution in micro-nats", reg),
		HMicro:     MustAverager("poies_h_micro", "entropy term in micro-nats", reg),
		Accepted:   NewCounter(),
		Rejected:   NewCounter(),
		ReorgDepth: MustAverager("poies_reorg_depth", "fork-choice reorg depth in blocks", reg),
		named:      NewRegistry(),
	}
	for _, kind := range types.AllProofTypes() {
		cm.named.NewGauge(alphaGaugeName(kind))
	}
	return cm
}

func alphaGaugeName(kind types.ProofTypeID) string {
	return "poies_alpha:" + kind.String()
}

// Alpha returns the current alpha gauge reading for kind, or 0 if kind was
// never registered (e.g. a name not in types.AllProofTypes()).
func (cm *ConsensusMetrics) Alpha(kind types.ProofTypeID) float64 {
	if cm == nil {
		return 0
	}
	g, err := cm.named.GetGauge(alphaGaugeName(kind))
	if err != nil {
		return 0
	}
	return g.Read()
}

// RecordOutcome folds one validated block's score components into the
// running telemetry.
func (cm *ConsensusMetrics) RecordOutcome(accepted bool, thetaMicro, sMicro, psiMicro, hMicro int64) {
	if cm == nil {
		return
	}
	cm.ThetaMicro.Observe(float64(thetaMicro))
	cm.PsiMicro.Observe(float64(psiMicro))
	cm.HMicro.Observe(float64(hMicro))
	if accepted {
		cm.SMicro.Observe(float64(sMicro))
		cm.Accepted.Inc()
	} else {
		cm.Rejected.Inc()
	}
}

// RecordReorg folds a fork-choice reorg depth into the running telemetry.
func (cm *ConsensusMetrics) RecordReorg(depth int) {
	if cm == nil {
		return
	}
	cm.ReorgDepth.Observe(float64(depth))
}

// SetAlpha records the fairness tuner's current weight for kind.
func (cm *ConsensusMetrics) SetAlpha(kind types.ProofTypeID, alphaScaled int64) {
	if cm == nil {
		return
	}
	g, err := cm.named.GetGauge(alphaGaugeName(kind))
	if err != nil {
		return
	}
	g.Set(float64(alphaScaled))
}
