// internal/math/int128.go
package math

import (
	"fmt"
	"math/big"
)

// Signed 128-bit bounds, matching the contract's i128 type.
var (
	maxI128 = func() *big.Int {
		v := new(big.Int).Lsh(big.NewInt(1), 127)
		return v.Sub(v, big.NewInt(1))
	}()
	minI128 = new(big.Int).Lsh(big.NewInt(-1), 127)
)

// MaxI128 returns a fresh copy of 2^127 - 1.
func MaxI128() *big.Int {
	return new(big.Int).Set(maxI128)
}

// MinI128 returns a fresh copy of -(2^127).
func MinI128() *big.Int {
	return new(big.Int).Set(minI128)
}

// ParseError reports an amount field that is not a base-10 integer.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("field %s: %q is not a valid base-10 integer", e.Field, e.Value)
}

// Clamp returns x clamped into the i128 range. x is not modified.
func Clamp(x *big.Int) *big.Int {
	return clampInPlace(new(big.Int).Set(x))
}

// SaturatingAdd computes a + b, clamped to the i128 range.
// Overflow is saturation, never an error — this mirrors the contract.
func SaturatingAdd(a, b *big.Int) *big.Int {
	return clampInPlace(new(big.Int).Add(a, b))
}

// SaturatingSub computes a - b, clamped to the i128 range.
func SaturatingSub(a, b *big.Int) *big.Int {
	return clampInPlace(new(big.Int).Sub(a, b))
}

// SaturatingMul computes a * b, clamped to the i128 range.
func SaturatingMul(a, b *big.Int) *big.Int {
	return clampInPlace(new(big.Int).Mul(a, b))
}

// ParseI128 converts a decimal-integer string into an i128 value.
// Values outside the representable range are clamped on ingestion
// (stored data is untrusted). A non-numeric string fails with *ParseError.
func ParseI128(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &ParseError{Field: field, Value: s}
	}
	return clampInPlace(v), nil
}

// Min returns the smaller of a and b (no copy).
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// FeeAmount computes the protocol fee the contract deducts on deposit:
// amount * feeRateBps / 10_000, truncating toward zero.
func FeeAmount(amount *big.Int, feeRateBps uint32) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(feeRateBps)))
	fee.Quo(fee, big.NewInt(10_000))
	return clampInPlace(fee)
}

// RatePerSecond derives a stream's accrual rate the way the contract does
// on creation: netAmount / duration with integer truncation. A zero
// duration yields a zero rate (the contract rejects it before division).
func RatePerSecond(netAmount *big.Int, duration uint64) *big.Int {
	if duration == 0 {
		return new(big.Int)
	}
	rate := new(big.Int).Quo(netAmount, new(big.Int).SetUint64(duration))
	return clampInPlace(rate)
}

func clampInPlace(x *big.Int) *big.Int {
	if x.Cmp(maxI128) > 0 {
		return x.Set(maxI128)
	}
	if x.Cmp(minI128) < 0 {
		return x.Set(minI128)
	}
	return x
}
