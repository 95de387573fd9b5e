// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package policy defines the PoIES policy object — per-type caps, the
// escort rule, and scoring weights — and its canonical-JSON commitment
// (policy_root) that gets bound into block headers.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"

	"github.com/animica/consensus/caps"
	"github.com/animica/consensus/consensuserrors"
	"github.com/animica/consensus/types"
)

// EscortRule requires a minimum share of "useful" proof kinds before a
// block may rely on low-effort HASH draws alone.
type EscortRule struct {
	Enabled         bool                    `yaml:"enabled" json:"enabled"`
	MinUsefulRatioBP int                    `yaml:"min_useful_ratio_bp" json:"min_useful_ratio_bp"`
	UsefulTypes     []types.ProofTypeID `yaml:"useful_types" json:"-"`
}

// Weights holds the per-unit scoring coefficients the scorer's hooks read.
// Zero value fields mean "use the scorer hook's built-in default" — see
// scorer.DefaultHooks. Every knob is an integer fixed at MicroScale (10^6)
// so the policy itself never carries a float, only the hooks' internal
// arithmetic does.
type Weights struct {
	KLnMicro     int64 `yaml:"k_ln_micro" json:"k_ln_micro"`         // HASH
	KUnitsMicro  int64 `yaml:"k_units_micro" json:"k_units_micro"`   // AI, QUANTUM
	RhoMicro     int64 `yaml:"rho_micro" json:"rho_micro"`           // AI, QUANTUM: redundancy exponent
	TMinMicro    int64 `yaml:"t_min_micro" json:"t_min_micro"`       // AI, QUANTUM: trap ramp floor
	TTargetMicro int64 `yaml:"t_target_micro" json:"t_target_micro"` // AI, QUANTUM: trap ramp ceiling
	KSizeMicro   int64 `yaml:"k_size_micro" json:"k_size_micro"`     // STORAGE
	AlphaMicro   int64 `yaml:"alpha_micro" json:"alpha_micro"`       // STORAGE: availability exponent
	KSecMicro    int64 `yaml:"k_sec_micro" json:"k_sec_micro"`       // VDF
}

// Policy is the full PoIES policy: Γ budget, per-kind caps, the escort
// rule, and scoring weights. Root is computed from the rest of the fields
// and is never part of its own canonical JSON.
type Policy struct {
	Version int                                   `yaml:"version" json:"version"`
	GammaCap int64                                `yaml:"gamma_cap" json:"gamma_cap"`
	Caps     map[types.ProofTypeID]caps.TypeCap   `yaml:"-" json:"-"`
	Escort   EscortRule                            `yaml:"escort" json:"escort"`
	Weights  map[types.ProofTypeID]Weights        `yaml:"-" json:"-"`

	root      types.Hash32
	rootValid bool
}

// yamlTypeCap and the raw yaml document shape let us key caps/weights maps
// by the proof kind's stable string name in YAML/JSON while keeping
// types.ProofTypeID as the map key everywhere else in the module.
type yamlTypeCap struct {
	PerTypeMicro     int64 `yaml:"per_type_micro"`
	PerProofMicroMax int64 `yaml:"per_proof_micro_max"`
}

type yamlDoc struct {
	Version  int                    `yaml:"version"`
	GammaCap int64                  `yaml:"gamma_cap"`
	Caps     map[string]yamlTypeCap `yaml:"caps"`
	Escort   struct {
		Enabled          bool     `yaml:"enabled"`
		MinUsefulRatioBP int      `yaml:"min_useful_ratio_bp"`
		UsefulTypes      []string `yaml:"useful_types"`
	} `yaml:"escort"`
	Weights map[string]Weights `yaml:"weights"`
}

// Load reads and validates a PoIES policy from a YAML file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: reading %s: %w", path, err)
	}
	return FromBytes(data)
}

// FromBytes parses and validates a PoIES policy from YAML bytes.
func FromBytes(data []byte) (*Policy, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: parsing yaml: %w", err)
	}
	return fromDoc(doc)
}

func fromDoc(doc yamlDoc) (*Policy, error) {
	p := &Policy{
		Version:  doc.Version,
		GammaCap: doc.GammaCap,
		Caps:     make(map[types.ProofTypeID]caps.TypeCap),
		Weights:  make(map[types.ProofTypeID]Weights),
	}

	for _, kind := range types.AllProofTypes() {
		p.Caps[kind] = caps.TypeCap{} // unlisted types are disabled (0, 0)
	}
	for name, c := range doc.Caps {
		kind, ok := types.ProofTypeByName(name)
		if !ok {
			return nil, consensuserrors.NewPolicyError("unknown proof kind in caps", consensuserrors.PolicyErrorFields{
				Section: "caps", Path: name,
			})
		}
		if c.PerTypeMicro > p.GammaCap {
			return nil, consensuserrors.NewPolicyError("per_type_micro exceeds gamma_cap", consensuserrors.PolicyErrorFields{
				Section: "caps", Path: name + ".per_type_micro",
				Expected: fmt.Sprintf("<= %d", p.GammaCap), Actual: fmt.Sprintf("%d", c.PerTypeMicro),
			})
		}
		if c.PerProofMicroMax > c.PerTypeMicro {
			return nil, consensuserrors.NewPolicyError("per_proof_micro_max exceeds per_type_micro", consensuserrors.PolicyErrorFields{
				Section: "caps", Path: name + ".per_proof_micro_max",
				Expected: fmt.Sprintf("<= %d", c.PerTypeMicro), Actual: fmt.Sprintf("%d", c.PerProofMicroMax),
			})
		}
		p.Caps[kind] = caps.TypeCap{PerTypeMicro: c.PerTypeMicro, PerProofMicroMax: c.PerProofMicroMax}
	}

	for name, w := range doc.Weights {
		kind, ok := types.ProofTypeByName(name)
		if !ok {
			return nil, consensuserrors.NewPolicyError("unknown proof kind in weights", consensuserrors.PolicyErrorFields{
				Section: "weights", Path: name,
			})
		}
		p.Weights[kind] = w
	}

	p.Escort = EscortRule{
		Enabled:          doc.Escort.Enabled,
		MinUsefulRatioBP: doc.Escort.MinUsefulRatioBP,
	}
	for _, name := range doc.Escort.UsefulTypes {
		kind, ok := types.ProofTypeByName(name)
		if !ok {
			return nil, consensuserrors.NewPolicyError("unknown proof kind in escort.useful_types", consensuserrors.PolicyErrorFields{
				Section: "escort", Path: "useful_types:" + name,
			})
		}
		p.Escort.UsefulTypes = append(p.Escort.UsefulTypes, kind)
	}
	if p.Escort.Enabled && len(p.Escort.UsefulTypes) == 0 && p.Escort.MinUsefulRatioBP > 0 {
		return nil, consensuserrors.NewPolicyError("escort enabled with empty useful_types and positive ratio", consensuserrors.PolicyErrorFields{
			Section: "escort", Path: "useful_types",
		})
	}

	return p, nil
}

// canonicalCap, canonicalEscort and canonicalDoc are the name-keyed shape
// used for the commitment hash: stable across map iteration order, enum
// values rendered as names.
type canonicalCap struct {
	PerTypeMicro     int64 `json:"per_type_micro"`
	PerProofMicroMax int64 `json:"per_proof_micro_max"`
}

type canonicalEscort struct {
	Enabled          bool     `json:"enabled"`
	MinUsefulRatioBP int      `json:"min_useful_ratio_bp"`
	UsefulTypes      []string `json:"useful_types"`
}

type canonicalDoc struct {
	Version  int                     `json:"version"`
	GammaCap int64                   `json:"gamma_cap"`
	Caps     map[string]canonicalCap `json:"caps"`
	Escort   canonicalEscort         `json:"escort"`
	Weights  map[string]Weights      `json:"weights"`
}

// ToCanonicalJSON renders the policy (excluding its own root) with sorted
// object keys and proof kinds rendered as stable names, so the same policy
// always hashes to the same root regardless of map iteration order.
func (p *Policy) ToCanonicalJSON() ([]byte, error) {
	doc := canonicalDoc{
		Version:  p.Version,
		GammaCap: p.GammaCap,
		Caps:     make(map[string]canonicalCap, len(p.Caps)),
		Weights:  make(map[string]Weights, len(p.Weights)),
		Escort: canonicalEscort{
			Enabled:          p.Escort.Enabled,
			MinUsefulRatioBP: p.Escort.MinUsefulRatioBP,
		},
	}
	for kind, c := range p.Caps {
		doc.Caps[kind.String()] = canonicalCap{PerTypeMicro: c.PerTypeMicro, PerProofMicroMax: c.PerProofMicroMax}
	}
	for kind, w := range p.Weights {
		doc.Weights[kind.String()] = w
	}
	useful := make([]types.ProofTypeID, len(p.Escort.UsefulTypes))
	copy(useful, p.Escort.UsefulTypes)
	sort.Slice(useful, func(i, j int) bool { return useful[i] < useful[j] })
	for _, kind := range useful {
		doc.Escort.UsefulTypes = append(doc.Escort.UsefulTypes, kind.String())
	}

	return marshalSortedKeys(doc)
}

// marshalSortedKeys marshals v to JSON with object keys sorted
// lexicographically at every nesting level. encoding/json emits struct
// fields in declaration order, so v is first decoded into generic maps
// (numbers kept exact via UseNumber) and re-encoded, which sorts every key.
func marshalSortedKeys(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Root returns the policy's sha3-256 commitment, computing and caching it
// on first use.
func (p *Policy) Root() (types.Hash32, error) {
	if p.rootValid {
		return p.root, nil
	}
	canon, err := p.ToCanonicalJSON()
	if err != nil {
		return types.Hash32{}, fmt.Errorf("policy: canonicalizing: %w", err)
	}
	digest := sha3.Sum256(canon)
	p.root = digest
	p.rootValid = true
	return p.root, nil
}
