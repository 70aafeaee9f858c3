// Package math provides overflow-safe integer helpers for weight arithmetic.
// Products of total stake weight and basis-point threshold factors exceed the
// uint64 range, so the multiply-divide helpers route through math/big.
package math

import (
	"math/big"

	"github.com/pkg/errors"
)

// ErrDivByZero is returned on a zero denominator.
var ErrDivByZero = errors.New("integer divide by zero")

// CeilDiv returns ceil(a/b) using only integer arithmetic. Panics on b == 0,
// matching the behavior of the builtin division.
func CeilDiv(a, b uint64) uint64 {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// MulDivFloor returns floor(a*b/den) without intermediate overflow.
func MulDivFloor(a, b, den uint64) uint64 {
	if den == 0 {
		panic(ErrDivByZero)
	}
	n := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	n.Quo(n, new(big.Int).SetUint64(den))
	return n.Uint64()
}

// MulCeilDiv returns ceil(a*b/den) without intermediate overflow.
func MulCeilDiv(a, b, den uint64) uint64 {
	if den == 0 {
		panic(ErrDivByZero)
	}
	n := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	d := new(big.Int).SetUint64(den)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

// Mul3CeilDiv returns ceil(a*b*c/den) without intermediate overflow.
func Mul3CeilDiv(a, b, c, den uint64) uint64 {
	if den == 0 {
		panic(ErrDivByZero)
	}
	n := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	n.Mul(n, new(big.Int).SetUint64(c))
	d := new(big.Int).SetUint64(den)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

// FloorDivBig returns floor(n/den) rounding toward negative infinity, so that
// margins derived from a negative numerator stay on the correct side of zero.
func FloorDivBig(n *big.Int, den uint64) *big.Int {
	if den == 0 {
		panic(ErrDivByZero)
	}
	d := new(big.Int).SetUint64(den)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() < 0 {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
