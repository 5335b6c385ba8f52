package solver

import (
	"fmt"
	"math/big"
)

// A Lit is one term of a constraint. For clause and cardinality constraints
// the coefficient is ±1 and the term evaluates to 0 or 1; for integer
// constraints the coefficient is any non-zero integer and the term evaluates
// to coefficient times the variable value.
type Lit struct {
	Coef *big.Int
	V    Var
}

// BoolLit returns a 0/1 literal on v, negated if 'negated'.
func BoolLit(v Var, negated bool) Lit {
	if negated {
		return Lit{Coef: big.NewInt(-1), V: v}
	}
	return Lit{Coef: big.NewInt(1), V: v}
}

// IntLit returns an integer literal coef*v. The coefficient must be non-zero.
func IntLit(coef *big.Int, v Var) Lit {
	if coef.Sign() == 0 {
		panic("zero coefficient in integer literal")
	}
	return Lit{Coef: coef, V: v}
}

// Negated is true iff the literal's coefficient is negative.
func (l Lit) Negated() bool {
	return l.Coef.Sign() < 0
}

// boolValue is the 0/1 value of a clause or cardinality literal under the
// given variable value.
func (l Lit) boolValue(val *big.Int) int {
	if l.Negated() == (val.Sign() > 0) {
		return 0
	}
	return 1
}

// intValue is coefficient times the given variable value.
func (l Lit) intValue(val *big.Int) *big.Int {
	return bigMul(l.Coef, val)
}

func (l Lit) String() string {
	return fmt.Sprintf("%v*var[%d]", l.Coef, l.V.ID())
}
