package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntVars(s *Solver, n int, lower, upper int64) []Var {
	vars := make([]Var, n)
	for i := range vars {
		vars[i] = s.NewVar(TypeInt, "x"+string(rune('0'+i)))
		s.SetLower(vars[i], big.NewInt(lower))
		s.SetUpper(vars[i], big.NewInt(upper))
	}
	return vars
}

func TestIntPreprocessGcd(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	p := s.props.props[ConstraintInt].(*intPropagator)

	// 4x + 6y >= 7 becomes 2x + 3y >= 4 (constant rounded up).
	lits := []Lit{IntLit(big.NewInt(4), vars[0]), IntLit(big.NewInt(6), vars[1])}
	out, c, status := p.preprocess(lits, big.NewInt(7), s.st.safeIndex())
	require.Equal(t, PreprocessOK, status)
	assert.Equal(t, int64(2), out[0].Coef.Int64())
	assert.Equal(t, int64(3), out[1].Coef.Int64())
	assert.Equal(t, int64(4), c.Int64())
}

func TestIntPreprocessSubstitution(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	s.SetLower(vars[0], big.NewInt(10)) // x0 = 10 at level 0
	p := s.props.props[ConstraintInt].(*intPropagator)

	// 2*x0 + y >= 25 with x0 = 10 becomes y >= 5.
	lits := []Lit{IntLit(big.NewInt(2), vars[0]), IntLit(big.NewInt(1), vars[1])}
	out, c, status := p.preprocess(lits, big.NewInt(25), s.st.safeIndex())
	require.Equal(t, PreprocessOK, status)
	require.Len(t, out, 1)
	assert.Equal(t, vars[1], out[0].V)
	assert.Equal(t, int64(5), c.Int64())
}

func TestIntPreprocessDegenerate(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 1, 5, 5)
	p := s.props.props[ConstraintInt].(*intPropagator)

	// x = 5 substituted: 5 >= 4 is a tautology, 5 >= 6 inconsistent.
	lits := []Lit{IntLit(big.NewInt(1), vars[0])}
	_, _, status := p.preprocess(lits, big.NewInt(4), s.st.safeIndex())
	assert.Equal(t, PreprocessTautology, status)

	lits = []Lit{IntLit(big.NewInt(1), vars[0])}
	_, _, status = p.preprocess(lits, big.NewInt(6), s.st.safeIndex())
	assert.Equal(t, PreprocessInconsistent, status)
}

func TestIntBoundPropagation(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	x, y := vars[0], vars[1]

	// 2x + 3y >= 24: once y <= 4, x >= ceil((24-12)/2) = 6.
	s.AssertInteger([]Lit{IntLit(big.NewInt(2), x), IntLit(big.NewInt(3), y)}, big.NewInt(24))
	s.SetUpper(y, big.NewInt(4))

	require.True(t, s.st.hasLower(x))
	assert.Equal(t, int64(6), s.st.lowerBound(x).Int64())
}

func TestIntBoundSweep(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	x, y := vars[0], vars[1]

	// 5x - 2y >= 11 bounds x from below and y from above.
	s.AssertInteger([]Lit{IntLit(big.NewInt(5), x), IntLit(big.NewInt(-2), y)}, big.NewInt(11))

	s.computeBounds(x)
	s.propagate()
	require.True(t, s.st.hasLower(x))
	// x >= ceil((11 + 2*lb(y))/5) = ceil(11/5) = 3.
	assert.Equal(t, int64(3), s.st.lowerBound(x).Int64())

	s.computeBounds(y)
	s.propagate()
	// y <= floor((11 - 5*ub(x))/-2)... with ub(x)=10: floor(-39/-2) = 19,
	// no improvement over 10.
	assert.Equal(t, int64(10), s.st.upperBound(y).Int64())
}

func TestIntConflictOnContradiction(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 1, 0, 10)
	x := vars[0]

	// x >= 5 and -x >= -3 cross at level 0.
	s.AssertInteger([]Lit{IntLit(big.NewInt(1), x)}, big.NewInt(5))
	s.AssertInteger([]Lit{IntLit(big.NewInt(-1), x)}, big.NewInt(-3))
	assert.True(t, s.st.inConflict)
}
