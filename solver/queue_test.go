package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOrder(t *testing.T) {
	activity := []float64{1.0, 5.0, 3.0, 4.0, 2.0}
	q := newQueue(func(i, j int) bool { return activity[i] > activity[j] })
	for i := range activity {
		q.insert(i)
	}

	var popped []int
	for !q.empty() {
		popped = append(popped, q.removeMin())
	}
	assert.Equal(t, []int{1, 3, 2, 4, 0}, popped)
}

func TestQueueUpdate(t *testing.T) {
	activity := []float64{1.0, 2.0, 3.0}
	q := newQueue(func(i, j int) bool { return activity[i] > activity[j] })
	for i := range activity {
		q.insert(i)
	}

	activity[0] = 10.0
	q.update(0)
	assert.Equal(t, 0, q.removeMin())
	assert.True(t, q.contains(1))
	assert.False(t, q.contains(0))
}

func TestQueueErase(t *testing.T) {
	activity := []float64{4.0, 3.0, 2.0, 1.0}
	q := newQueue(func(i, j int) bool { return activity[i] > activity[j] })
	for i := range activity {
		q.insert(i)
	}

	q.erase(1)
	assert.False(t, q.contains(1))

	var popped []int
	for !q.empty() {
		popped = append(popped, q.removeMin())
	}
	assert.Equal(t, []int{0, 2, 3}, popped)
}
