package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailLevels(t *testing.T) {
	var trail searchTrail
	v := mkVar(TypeInt, 0)

	trail.push(LowerRefine, v, true)  // index 0, level 0
	trail.push(UpperRefine, v, true)  // index 1, level 0
	trail.newDecisionLevel()
	trail.push(LowerRefine, v, false) // index 2, level 1
	trail.newDecisionLevel()
	trail.push(UpperRefine, v, false) // index 3, level 2

	assert.Equal(t, 4, trail.size())
	assert.Equal(t, 2, trail.decisionLevel())
	assert.Equal(t, 0, trail.levelOf(0))
	assert.Equal(t, 0, trail.levelOf(1))
	assert.Equal(t, 1, trail.levelOf(2))
	assert.Equal(t, 2, trail.levelOf(3))
	assert.Equal(t, 1, trail.lastIndexAtLevel(0))
	assert.Equal(t, 2, trail.lastIndexAtLevel(1))
	assert.Equal(t, 3, trail.lastIndexAtLevel(2))
}

func TestTrailCancelUntil(t *testing.T) {
	var trail searchTrail
	v := mkVar(TypeInt, 3)

	trail.push(LowerRefine, v, true)
	trail.newDecisionLevel()
	trail.push(UpperRefine, v, false)
	trail.push(LowerRefine, v, false)

	var undone []EventType
	trail.cancelUntil(0, func(e trailElem) {
		undone = append(undone, e.kind)
		assert.Equal(t, v, e.v)
	})

	// Events come back in reverse order and the decision boundary is gone.
	assert.Equal(t, []EventType{LowerRefine, UpperRefine}, undone)
	assert.Equal(t, 1, trail.size())
	assert.Equal(t, 0, trail.decisionLevel())
}
