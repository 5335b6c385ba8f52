package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCancelsVariable(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 3, 0, 10)
	x, y, z := vars[0], vars[1], vars[2]

	// 2x + y >= 5 and -x + 3z >= 1 resolved over x:
	// 1*(2x + y) + 2*(-x + 3z) >= 5 + 2 gives y + 6z >= 7.
	lower := newCoefMap()
	lower.coefs[x] = big.NewInt(2)
	lower.coefs[y] = big.NewInt(1)
	upper := newCoefMap()
	upper.coefs[x] = big.NewInt(-1)
	upper.coefs[z] = big.NewInt(3)

	result, constant := s.resolveCoefficientMaps(x, lower, big.NewInt(5), upper, big.NewInt(1))
	require.Len(t, result.coefs, 2)
	assert.Equal(t, int64(1), result.coefs[y].Int64())
	assert.Equal(t, int64(6), result.coefs[z].Int64())
	assert.Equal(t, int64(7), constant.Int64())
	assert.Equal(t, ConstraintInt, result.kind)
}

func TestResolveDividesByGcd(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	x, y := vars[0], vars[1]

	// 2x + 4y >= 6 and -2x + 4y >= 2: resolution gives 16y >= 16, divided
	// by the gcd 16 y >= 1.
	lower := newCoefMap()
	lower.coefs[x] = big.NewInt(2)
	lower.coefs[y] = big.NewInt(4)
	upper := newCoefMap()
	upper.coefs[x] = big.NewInt(-2)
	upper.coefs[y] = big.NewInt(4)

	result, constant := s.resolveCoefficientMaps(x, lower, big.NewInt(6), upper, big.NewInt(2))
	require.Len(t, result.coefs, 1)
	assert.Equal(t, int64(1), result.coefs[y].Int64())
	assert.Equal(t, int64(1), constant.Int64())
}

func TestResolveClassifiesClause(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 3)
	x, y, z := vars[0], vars[1], vars[2]

	// Two clauses resolved over x give a clause.
	lower := newCoefMap()
	lower.kind = ConstraintClause
	lower.coefs[x] = big.NewInt(1)
	lower.coefs[y] = big.NewInt(1)
	upper := newCoefMap()
	upper.kind = ConstraintClause
	upper.coefs[x] = big.NewInt(-1)
	upper.coefs[z] = big.NewInt(1)

	result, constant := s.resolveCoefficientMaps(x, lower, big.NewInt(1), upper, big.NewInt(0))
	assert.Equal(t, ConstraintClause, result.kind)
	require.Len(t, result.coefs, 2)
	assert.Equal(t, int64(1), constant.Int64())
}

func TestIsInConflict(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 5)
	x, y := vars[0], vars[1]

	coefs := newCoefMap()
	coefs.coefs[x] = big.NewInt(1)
	coefs.coefs[y] = big.NewInt(1)
	assert.False(t, s.isInConflict(coefs, big.NewInt(10))) // max sum 10
	assert.True(t, s.isInConflict(coefs, big.NewInt(11)))

	// A missing bound makes the constraint satisfiable.
	free := s.NewVar(TypeInt, "free")
	coefs.coefs[free] = big.NewInt(1)
	assert.False(t, s.isInConflict(coefs, big.NewInt(100)))
}

func TestTightCachePurge(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 1, 0, 5)
	x := vars[0]

	for i := 0; i < 5; i++ {
		coefs := newCoefMap()
		coefs.coefs[x] = big.NewInt(1)
		s.cacheTight(propTag{v: x, trailIndex: i, side: LowerRefine}, coefs, big.NewInt(int64(i)))
	}
	require.Len(t, s.tightCache, 5)

	s.purgeTightCache(2)
	assert.Len(t, s.tightCache, 3)
	for tag := range s.tightCache {
		assert.LessOrEqual(t, tag.trailIndex, 2)
	}
	assert.Len(t, s.tightCacheTags, 3)
}

func TestTightenAlreadyTight(t *testing.T) {
	s := NewSolver()
	vars := newIntVars(s, 2, 0, 10)
	x, y := vars[0], vars[1]

	coefs := newCoefMap()
	coefs.coefs[x] = big.NewInt(1)
	coefs.coefs[y] = big.NewInt(3)
	out, constant := s.getTightlyPropagatingConstraint(LowerRefine, true, x, 3, coefs, big.NewInt(7))
	assert.Equal(t, int64(1), out.coefs[x].Int64())
	assert.Equal(t, int64(7), constant.Int64())
	// The tight form is cached under its tag.
	_, ok := s.tightCache[propTag{v: x, trailIndex: 3, side: LowerRefine}]
	assert.True(t, ok)
}

func TestConflictAnalysisLearnsUnit(t *testing.T) {
	// ~x0 | x1 and ~x0 | ~x1: deciding x0 true conflicts and the analysis
	// must learn x0 = 0 as a global fact.
	s := NewSolver()
	vars := newBoolVars(s, 2)
	x0, x1 := vars[0], vars[1]

	s.AssertClause([]Lit{BoolLit(x0, true), BoolLit(x1, false)})
	s.AssertClause([]Lit{BoolLit(x0, true), BoolLit(x1, true)})

	// Make the search try x0 = 1 first so the conflict actually happens.
	s.st.setPhase(x0, false)

	require.Equal(t, Sat, s.Solve())
	assert.Equal(t, int64(0), s.Value(x0).Int64())
	assert.NotZero(t, s.Stats.NbConflicts)
}

func TestAnalysisBumpsActivity(t *testing.T) {
	s := NewSolver()
	vars := newBoolVars(s, 2)
	x0, x1 := vars[0], vars[1]

	s.AssertClause([]Lit{BoolLit(x0, true), BoolLit(x1, false)})
	s.AssertClause([]Lit{BoolLit(x0, true), BoolLit(x1, true)})
	s.st.setPhase(x0, false)

	before := s.st.heur[x1.ID()].value
	require.Equal(t, Sat, s.Solve())
	assert.Greater(t, s.st.heur[x1.ID()].value, before)
}
