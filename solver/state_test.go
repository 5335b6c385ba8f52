package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(nbVars int) (*arena, *state, []Var) {
	cm := newArena()
	st := newState(cm)
	vars := make([]Var, nbVars)
	for i := range vars {
		vars[i] = cm.newVar(TypeInt)
		st.newVar(vars[i], "x", true)
	}
	return cm, st, vars
}

func TestStateBounds(t *testing.T) {
	_, st, vars := newTestState(1)
	x := vars[0]

	assert.False(t, st.hasLower(x))
	assert.False(t, st.hasUpper(x))

	st.enqueueEvent(LowerRefine, x, big.NewInt(-5), HandleNull)
	st.enqueueEvent(UpperRefine, x, big.NewInt(5), HandleNull)
	require.True(t, st.hasLower(x))
	require.True(t, st.hasUpper(x))
	assert.Equal(t, int64(-5), st.lowerBound(x).Int64())
	assert.Equal(t, int64(5), st.upperBound(x).Int64())
	assert.Equal(t, Unassigned, st.valueStatus(x))

	// Refine again; at-index queries see the old values.
	st.enqueueEvent(LowerRefine, x, big.NewInt(0), HandleNull)
	assert.Equal(t, int64(0), st.lowerBound(x).Int64())
	assert.Equal(t, int64(-5), st.lowerBoundAt(x, 0).Int64())
	assert.False(t, st.hasUpperAt(x, 0))
	assert.Equal(t, int64(5), st.upperBoundAt(x, 1).Int64())
}

func TestStateAssignOnEqualBounds(t *testing.T) {
	_, st, vars := newTestState(1)
	x := vars[0]

	st.enqueueEvent(LowerRefine, x, big.NewInt(3), HandleNull)
	st.enqueueEvent(UpperRefine, x, big.NewInt(3), HandleNull)
	assert.Equal(t, AssignedEqual, st.valueStatus(x))
	assert.Equal(t, int64(3), st.value(x).Int64())
	assert.False(t, st.inConflict)
}

func TestStateConflictOnCrossingBounds(t *testing.T) {
	_, st, vars := newTestState(1)
	x := vars[0]

	st.enqueueEvent(LowerRefine, x, big.NewInt(1), HandleNull)
	st.enqueueEvent(UpperRefine, x, big.NewInt(0), HandleNull)
	assert.True(t, st.inConflict)
	assert.Equal(t, x, st.conflictVar)
}

func TestStateBacktrack(t *testing.T) {
	cm, st, vars := newTestState(2)
	x, y := vars[0], vars[1]

	st.enqueueEvent(LowerRefine, x, big.NewInt(0), HandleNull) // index 0, global
	st.enqueueEvent(UpperRefine, x, big.NewInt(1), HandleNull) // index 1, global
	h := cm.allocate(ConstraintClause, []Lit{BoolLit(x, false), BoolLit(y, false)}, big.NewInt(1), false)

	st.decideValue(x) // index 2: x decided to 0
	require.Equal(t, AssignedToLower, st.valueStatus(x))
	st.enqueueEvent(LowerRefine, y, big.NewInt(1), h) // index 3, propagated
	assert.True(t, cm.get(h).inUse())

	st.cancelUntil(1)
	assert.Equal(t, 2, st.trailSize())
	assert.Equal(t, 2, len(st.bounds))
	assert.Equal(t, Unassigned, st.valueStatus(x))
	assert.False(t, st.hasLower(y))
	assert.False(t, cm.get(h).inUse())
	assert.True(t, st.inQueue(x))

	// The decision must not be re-asserted, and the propagated bound had a
	// reason, so nothing is pending.
	st.reassertGlobalBounds()
	assert.Equal(t, 2, st.trailSize())
}

func TestStateGlobalBoundSurvivesBacktrack(t *testing.T) {
	_, st, vars := newTestState(2)
	x, y := vars[0], vars[1]

	st.enqueueEvent(LowerRefine, x, big.NewInt(0), HandleNull)
	st.enqueueEvent(UpperRefine, x, big.NewInt(1), HandleNull)
	st.decideValue(x)
	// A global fact learned above the decision.
	st.enqueueEvent(LowerRefine, y, big.NewInt(7), HandleNull)

	st.cancelUntil(1)
	assert.False(t, st.hasLower(y))
	st.reassertGlobalBounds()
	require.True(t, st.hasLower(y))
	assert.Equal(t, int64(7), st.lowerBound(y).Int64())
}

func TestStateDecideValuePhase(t *testing.T) {
	_, st, vars := newTestState(1)
	x := vars[0]

	st.enqueueEvent(LowerRefine, x, big.NewInt(2), HandleNull)
	st.enqueueEvent(UpperRefine, x, big.NewInt(9), HandleNull)

	st.setPhase(x, false) // prefer the upper bound
	st.decideValue(x)
	assert.Equal(t, AssignedToUpper, st.valueStatus(x))
	assert.Equal(t, int64(9), st.value(x).Int64())
	assert.Equal(t, 1, st.trail.decisionLevel())
}

func TestStateDecideVariablePrefersBounded(t *testing.T) {
	_, st, vars := newTestState(2)
	unbounded, bounded := vars[0], vars[1]

	st.enqueueEvent(LowerRefine, bounded, big.NewInt(0), HandleNull)
	st.enqueueEvent(UpperRefine, bounded, big.NewInt(1), HandleNull)

	v := st.decideVariable()
	assert.Equal(t, bounded, v)
	assert.NotEqual(t, unbounded, v)
}
