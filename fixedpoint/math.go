// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the deterministic, platform-independent
// entropy math the acceptance score is built on: H(u) = -ln(u), computed
// with an 80-digit decimal context and round-half-even rounding rather than
// a hardware log() call, so every validator in the network derives the same
// micro-nat value from the same draw.
package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/apd/v2"
)

// MicroScale is the fixed-point scale every acceptance score, threshold and
// weight is expressed in: one unit is 10^-6 of a natural-log unit (nat).
const MicroScale = 1_000_000

// DecPrecision is the number of significant decimal digits carried through
// every Ln evaluation, matching the reference implementation's Decimal
// context precision.
const DecPrecision = 80

// twoPow256 is 2^256 as a decimal, used to derive minU below.
var twoPow256 = mustDecimalFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256))

// minU is the smallest draw value H(u) will accept before clamping:
// 1/2^256, the floor of a 256-bit hash-derived draw.
var minU = func() *apd.Decimal {
	ctx := newContext()
	one := apd.New(1, 0)
	out := new(apd.Decimal)
	if _, err := ctx.Quo(out, one, twoPow256); err != nil {
		panic("fixedpoint: computing 1/2^256: " + err.Error())
	}
	return out
}()

// mustDecimalFromBigInt builds an exact-integer Decimal from n, panicking on
// malformed input — only used at init time with trusted literals.
func mustDecimalFromBigInt(n *big.Int) *apd.Decimal {
	d, _, err := apd.NewFromString(n.String())
	if err != nil {
		panic("fixedpoint: decimal from big.Int: " + err.Error())
	}
	return d
}

func newContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(DecPrecision)
	ctx.Rounding = apd.RoundHalfEven
	return ctx
}

// clampUnit clamps u into [1/2^256, 1], mirroring the reference
// implementation's defensive bound on an otherwise-adversarial draw.
func clampUnit(ctx *apd.Context, u *apd.Decimal) *apd.Decimal {
	one := apd.New(1, 0)
	out := new(apd.Decimal)
	*out = *u
	if out.Cmp(minU) < 0 {
		*out = *minU
	}
	if out.Cmp(one) > 0 {
		*out = *one
	}
	return out
}

// HFromDecimal computes H(u) = -ln(u) in micro-nats for u given as an
// 80-digit decimal fraction in (0, 1].
func HFromDecimal(u *apd.Decimal) (int64, error) {
	ctx := newContext()
	clamped := clampUnit(ctx, u)

	lnU := new(apd.Decimal)
	if _, err := ctx.Ln(lnU, clamped); err != nil {
		return 0, fmt.Errorf("fixedpoint: ln: %w", err)
	}

	negLnU := new(apd.Decimal)
	negLnU.Neg(lnU)

	return decimalToMicroNats(ctx, negLnU)
}

// decimalToMicroNats converts a decimal nats value to an integer micro-nat
// count, rounding half-to-even and flooring negative results at zero (H(u)
// is never negative for u in (0,1], but a 0 ln(1) result must not go
// negative due to rounding noise).
func decimalToMicroNats(ctx *apd.Context, nats *apd.Decimal) (int64, error) {
	scale := apd.New(MicroScale, 0)
	scaled := new(apd.Decimal)
	if _, err := ctx.Mul(scaled, nats, scale); err != nil {
		return 0, fmt.Errorf("fixedpoint: scale: %w", err)
	}
	rounded := new(apd.Decimal)
	if _, err := ctx.RoundToIntegralExact(rounded, scaled); err != nil {
		return 0, fmt.Errorf("fixedpoint: round: %w", err)
	}
	i, err := rounded.Int64()
	if err != nil {
		return 0, fmt.Errorf("fixedpoint: overflow converting to int64: %w", err)
	}
	if i < 0 {
		return 0, nil
	}
	return i, nil
}

// HFromHash256 computes H(u) in micro-nats for a 32-byte big-endian draw,
// mapping the draw to u = (n+1) / 2^256.
func HFromHash256(hash [32]byte) (int64, error) {
	n := new(big.Int).SetBytes(hash[:])
	return HFromDraw(n, 256)
}

// HFromDraw generalizes HFromHash256 to an arbitrary bit-width draw:
// u = (n+1) / 2^bits. Used for header mix_seed audits and for draws that
// are not exactly 256 bits wide.
func HFromDraw(n *big.Int, bits int) (int64, error) {
	if bits <= 0 {
		return 0, fmt.Errorf("fixedpoint: bits must be positive, got %d", bits)
	}
	numerator := mustDecimalFromBigInt(new(big.Int).Add(n, big.NewInt(1)))
	denominator := mustDecimalFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(bits)))

	ctx := newContext()
	u := new(apd.Decimal)
	if _, err := ctx.Quo(u, numerator, denominator); err != nil {
		return 0, fmt.Errorf("fixedpoint: draw ratio: %w", err)
	}
	return HFromDecimal(u)
}

// MicroNatsFromFloat converts an already-computed nats value (e.g. a
// score-hook's ln-based formula, evaluated in float64 per spec) to an
// integer micro-nat count, rounding half away from zero and flooring
// negative/non-finite inputs at zero. The scorer's hooks do not call this;
// they convert through scorer's own floor-based toMicro.
func MicroNatsFromFloat(natsValue float64) int64 {
	if natsValue != natsValue || natsValue <= 0 { // NaN or non-positive
		return 0
	}
	v := natsValue*MicroScale + 0.5
	if v > 9.223372036854775e18 {
		return 1<<63 - 1
	}
	return int64(v)
}

// AddMicroNats adds two micro-nat values, saturating at MaxInt64 rather
// than overflowing — acceptance scores are sums of many capped
// contributions and must never wrap.
func AddMicroNats(a, b int64) int64 {
	const maxInt64 = 1<<63 - 1
	if a > 0 && b > maxInt64-a {
		return maxInt64
	}
	return a + b
}

// SubMicroNats subtracts b from a, flooring at zero rather than going
// negative, matching the reference implementation's saturating subtract.
func SubMicroNats(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}
