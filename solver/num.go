package solver

import "math/big"

// Helpers for exact arithmetic on arbitrary-precision integers. All
// coefficients and bounds in the solver are *big.Int and are treated as
// immutable: every operation allocates its result.

var bigOne = big.NewInt(1)

func bigAbs(a *big.Int) *big.Int {
	return new(big.Int).Abs(a)
}

func bigNeg(a *big.Int) *big.Int {
	return new(big.Int).Neg(a)
}

func bigAdd(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

func bigSub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

func bigMul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(a, b)
}

func bigGcd(a, b *big.Int) *big.Int {
	return new(big.Int).GCD(nil, nil, bigAbs(a), bigAbs(b))
}

func bigLcm(a, b *big.Int) *big.Int {
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int)
	}
	g := bigGcd(a, b)
	return bigMul(new(big.Int).Quo(bigAbs(a), g), bigAbs(b))
}

// divFloor returns floor(a/b) for b != 0.
func divFloor(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, bigOne)
	}
	return q
}

// divCeil returns ceil(a/b) for b != 0.
func divCeil(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) == (b.Sign() < 0) {
		q.Add(q, bigOne)
	}
	return q
}

// divides reports whether a divides b.
func divides(a, b *big.Int) bool {
	return new(big.Int).Mod(b, bigAbs(a)).Sign() == 0
}
