// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package caps implements the staged cap engine: per-proof clipping,
// per-type proportional downscale, and a final global Γ downscale, applied
// in that order to a block's raw per-proof contributions before they are
// summed into the acceptance score.
package caps

import (
	"bytes"
	"sort"

	"github.com/animica/consensus/types"
)

// TypeCap bounds a single proof kind: per_proof_micro_max clips any one
// proof's psi before grouping; per_type_micro is the post-clip ceiling for
// the kind's summed contribution.
type TypeCap struct {
	PerTypeMicro     int64
	PerProofMicroMax int64
}

// Stats records the running sum at each stage of the pipeline, useful for
// telemetry and for tests asserting a specific stage actually clipped.
type Stats struct {
	RawSum        int64
	AfterPerProof int64
	AfterPerType  int64
	AfterGamma    int64
	PerTypeSums   map[types.ProofTypeID]int64
}

// ApplyAll runs the full three-stage pipeline over contributions and
// returns the capped per-contribution values (same order as the input) plus
// a Stats breakdown. gammaCap is the global ceiling across all kinds;
// typeCaps gives each kind's TypeCap, with kinds absent from the map
// treated as disabled (capped to zero).
func ApplyAll(contribs []types.Contribution, typeCaps map[types.ProofTypeID]TypeCap, gammaCap int64) ([]int64, Stats) {
	n := len(contribs)
	stats := Stats{PerTypeSums: make(map[types.ProofTypeID]int64)}

	// Stage 0: sanitize negatives to zero.
	values := make([]int64, n)
	for i, c := range contribs {
		v := c.PsiMicro
		if v < 0 {
			v = 0
		}
		values[i] = v
		stats.RawSum += v
	}

	// Stage 1: per-proof cap.
	for i, c := range contribs {
		cap, ok := typeCaps[c.ProofType]
		if !ok {
			values[i] = 0
			continue
		}
		if values[i] > cap.PerProofMicroMax {
			values[i] = cap.PerProofMicroMax
		}
		stats.AfterPerProof += values[i]
	}

	// Stage 2: per-type proportional downscale.
	byType := make(map[types.ProofTypeID][]int)
	for i, c := range contribs {
		byType[c.ProofType] = append(byType[c.ProofType], i)
	}
	for kind, idxs := range byType {
		cap, ok := typeCaps[kind]
		if !ok {
			continue
		}
		sum := int64(0)
		for _, i := range idxs {
			sum += values[i]
		}
		if cap.PerTypeMicro >= 0 && sum > cap.PerTypeMicro {
			scaled := proportionalDownscale(values, idxs, contribs, cap.PerTypeMicro)
			for j, i := range idxs {
				values[i] = scaled[j]
			}
		}
		stats.PerTypeSums[kind] = sumAt(values, idxs)
	}
	for _, v := range values {
		stats.AfterPerType += v
	}

	// Stage 3: global gamma downscale.
	total := stats.AfterPerType
	if gammaCap >= 0 && total > gammaCap {
		allIdx := make([]int, n)
		for i := range allIdx {
			allIdx[i] = i
		}
		scaled := proportionalDownscale(values, allIdx, contribs, gammaCap)
		copy(values, scaled)
	}
	for _, v := range values {
		stats.AfterGamma += v
	}

	return values, stats
}

func sumAt(values []int64, idxs []int) int64 {
	var s int64
	for _, i := range idxs {
		s += values[i]
	}
	return s
}

// proportionalDownscale scales values[idxs] down so their sum equals
// targetSum, using a largest-remainder allocation so the result is exact
// and deterministic. Ties in fractional remainder are broken first by the
// lexicographically smallest proof_id (the contribution's nullifier bytes),
// then by the contribution's original position in the full block — never by
// map/slice iteration order, which Go does not guarantee to be stable.
func proportionalDownscale(values []int64, idxs []int, contribs []types.Contribution, targetSum int64) []int64 {
	out := make([]int64, len(idxs))
	var total int64
	for i, idx := range idxs {
		out[i] = values[idx]
		total += values[idx]
	}
	if total <= targetSum {
		return out
	}
	if total == 0 || targetSum <= 0 {
		for i := range out {
			out[i] = 0
		}
		return out
	}

	type rem struct {
		pos       int // position within idxs/out
		base      int64
		fracNum   int64 // remainder numerator, i.e. (value*target) mod total
		proofID   []byte
		origIndex int
	}
	rems := make([]rem, len(idxs))
	var baseSum int64
	for i, idx := range idxs {
		v := values[idx]
		scaledNum := v * targetSum
		base := scaledNum / total
		frac := scaledNum % total
		out[i] = base
		baseSum += base
		rems[i] = rem{
			pos:       i,
			base:      base,
			fracNum:   frac,
			proofID:   contribs[idx].ProofID[:],
			origIndex: idx,
		}
	}

	remainder := targetSum - baseSum
	sort.Slice(rems, func(a, b int) bool {
		if rems[a].fracNum != rems[b].fracNum {
			return rems[a].fracNum > rems[b].fracNum // largest remainder first
		}
		cmp := bytes.Compare(rems[a].proofID, rems[b].proofID)
		if cmp != 0 {
			return cmp < 0 // lexicographically smallest proof_id first
		}
		return rems[a].origIndex < rems[b].origIndex // then insertion order
	})

	for i := int64(0); i < remainder && i < int64(len(rems)); i++ {
		out[rems[i].pos]++
	}
	return out
}
