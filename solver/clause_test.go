package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBoolVars creates n variables bounded to [0, 1].
func newBoolVars(s *Solver, n int) []Var {
	vars := make([]Var, n)
	for i := range vars {
		vars[i] = s.NewVar(TypeInt, "b"+string(rune('0'+i)))
		s.SetLower(vars[i], big.NewInt(0))
		s.SetUpper(vars[i], big.NewInt(1))
	}
	return vars
}

func TestClausePreprocessTautology(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 2)
	p := s.props.props[ConstraintClause].(*clausePropagator)

	// x0 or ~x0 is a tautology.
	lits := []Lit{BoolLit(vars[0], false), BoolLit(vars[1], false), BoolLit(vars[0], true)}
	_, _, status := p.preprocess(lits, 0, s.st.safeIndex())
	assert.Equal(t, PreprocessTautology, status)
}

func TestClausePreprocessDuplicates(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 2)
	p := s.props.props[ConstraintClause].(*clausePropagator)

	lits := []Lit{BoolLit(vars[0], false), BoolLit(vars[0], false), BoolLit(vars[1], false)}
	out, _, status := p.preprocess(lits, 1, s.st.safeIndex())
	require.Equal(t, PreprocessOK, status)
	assert.Len(t, out, 2)
}

func TestClausePreprocessFalseLiteralsDropped(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 2)
	s.SetUpper(vars[0], big.NewInt(0)) // x0 = 0 at level 0
	p := s.props.props[ConstraintClause].(*clausePropagator)

	lits := []Lit{BoolLit(vars[0], false), BoolLit(vars[1], false)}
	out, _, status := p.preprocess(lits, 0, s.st.safeIndex())
	require.Equal(t, PreprocessOK, status)
	require.Len(t, out, 1)
	assert.Equal(t, vars[1], out[0].V)
}

func TestClausePreprocessInconsistent(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 1)
	s.SetUpper(vars[0], big.NewInt(0))
	p := s.props.props[ConstraintClause].(*clausePropagator)

	lits := []Lit{BoolLit(vars[0], false)}
	_, _, status := p.preprocess(lits, 1, s.st.safeIndex())
	assert.Equal(t, PreprocessInconsistent, status)
}

func TestClauseUnitPropagationChain(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 3)

	// ~x0 | x1, ~x1 | x2, then force x0 = 1: everything propagates.
	s.AssertClause([]Lit{BoolLit(vars[0], true), BoolLit(vars[1], false)})
	s.AssertClause([]Lit{BoolLit(vars[1], true), BoolLit(vars[2], false)})
	s.SetLower(vars[0], big.NewInt(1))

	assert.Equal(t, AssignedEqual, s.st.valueStatus(vars[1]))
	assert.Equal(t, int64(1), s.st.value(vars[1]).Int64())
	assert.Equal(t, AssignedEqual, s.st.valueStatus(vars[2]))
	assert.Equal(t, int64(1), s.st.value(vars[2]).Int64())
}

func TestClauseConflictDetected(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 2)

	s.AssertClause([]Lit{BoolLit(vars[0], false), BoolLit(vars[1], false)})
	s.AssertClause([]Lit{BoolLit(vars[0], true)})
	s.AssertClause([]Lit{BoolLit(vars[1], true)})
	assert.True(t, s.st.inConflict || s.status == Unsat)
}
