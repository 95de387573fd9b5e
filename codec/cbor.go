package codec

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// canonicalMode is a package-level singleton core-deterministic CBOR mode:
// sorted map keys, shortest-form integers, no indefinite-length items. Proof
// envelopes are encoded through this mode (types.ProofEnvelope.Encode) so two
// envelopes with equal fields always serialize identically; the opaque body
// bytes inside an envelope are carried as given, not re-encoded.
var canonicalMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic("codec: invalid canonical cbor options: " + err.Error())
	}
	canonicalMode = mode
}

var decModeOnce sync.Once
var decMode cbor.DecMode

func decoder() cbor.DecMode {
	decModeOnce.Do(func() {
		m, err := cbor.DecOptions{}.DecMode()
		if err != nil {
			panic("codec: invalid cbor decode options: " + err.Error())
		}
		decMode = m
	})
	return decMode
}

// MarshalCanonicalCBOR encodes v using core deterministic CBOR (RFC 8949
// §4.2.1): map keys sorted by bytewise-lexicographic key encoding, integers
// in shortest form. Used by types.ProofEnvelope.Encode for the whole
// envelope, so that equal envelopes always encode to the same bytes.
func MarshalCanonicalCBOR(v interface{}) ([]byte, error) {
	return canonicalMode.Marshal(v)
}

// UnmarshalCBOR decodes CBOR bytes into v.
func UnmarshalCBOR(data []byte, v interface{}) error {
	return decoder().Unmarshal(data, v)
}
