package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleEncoding(t *testing.T) {
	h := mkHandle(ConstraintCard, 42)
	assert.Equal(t, ConstraintCard, h.Kind())
	assert.Equal(t, 42, h.Offset())
	assert.False(t, h.Flagged())

	flagged := h.SetFlag()
	assert.True(t, flagged.Flagged())
	assert.Equal(t, ConstraintCard, flagged.Kind())
	assert.Equal(t, 42, flagged.Offset())
	assert.Equal(t, h, flagged.ClearFlag())
}

func TestArenaAllocate(t *testing.T) {
	a := newArena()
	x := a.newVar(TypeInt)
	y := a.newVar(TypeInt)

	h := a.allocate(ConstraintInt, []Lit{IntLit(big.NewInt(2), x), IntLit(big.NewInt(-3), y)}, big.NewInt(4), false)
	c := a.get(h)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, ConstraintInt, h.Kind())
	assert.Equal(t, int64(4), c.constant.Int64())
	assert.Equal(t, 1, a.occCount(x, false))
	assert.Equal(t, 1, a.occCount(y, true))
	assert.False(t, c.deleted)
	assert.Zero(t, a.wasted)
}

func TestArenaEraseAndWaste(t *testing.T) {
	a := newArena()
	x := a.newVar(TypeInt)
	y := a.newVar(TypeInt)
	h := a.allocate(ConstraintClause, []Lit{BoolLit(x, false), BoolLit(y, true)}, big.NewInt(1), false)

	a.erase(h)
	assert.True(t, a.get(h).deleted)
	assert.Equal(t, 3, a.wasted)
	assert.Zero(t, a.occCount(x, false))
	assert.Zero(t, a.occCount(y, true))
}

func TestArenaGC(t *testing.T) {
	a := newArena()
	x := a.newVar(TypeInt)
	y := a.newVar(TypeInt)

	dead := a.allocate(ConstraintClause, []Lit{BoolLit(x, false), BoolLit(y, false)}, big.NewInt(1), false)
	live := a.allocate(ConstraintInt, []Lit{IntLit(big.NewInt(5), x), IntLit(big.NewInt(7), y)}, big.NewInt(9), true)
	a.erase(dead)

	// The live handle goes through GC flagged: the flag must survive
	// relocation.
	list := []Handle{live.SetFlag()}
	reloc := map[Handle]Handle{}
	a.gcBegin()
	a.gcMove(list, reloc)
	a.gcEnd()

	require.Len(t, reloc, 1)
	moved := list[0]
	assert.True(t, moved.Flagged())
	c := a.get(moved)
	assert.Equal(t, int64(9), c.constant.Int64())
	assert.Equal(t, int64(5), c.lits[0].Coef.Int64())
	assert.True(t, c.learnt)
	assert.Zero(t, a.wasted)

	// GC on a state with zero waste must leave every observable datum
	// unchanged.
	before := a.get(list[0].ClearFlag()).constant.Int64()
	reloc2 := map[Handle]Handle{}
	a.gcBegin()
	a.gcMove(list, reloc2)
	a.gcEnd()
	assert.Equal(t, before, a.get(list[0].ClearFlag()).constant.Int64())
	assert.Zero(t, a.wasted)
}

func TestArenaGCSharedHandle(t *testing.T) {
	a := newArena()
	x := a.newVar(TypeInt)
	y := a.newVar(TypeInt)
	h := a.allocate(ConstraintClause, []Lit{BoolLit(x, false), BoolLit(y, false)}, big.NewInt(1), false)

	// The same constraint referenced from two lists relocates once.
	l1 := []Handle{h}
	l2 := []Handle{h.SetFlag(), HandleNull}
	reloc := map[Handle]Handle{}
	a.gcBegin()
	a.gcMove(l1, reloc)
	a.gcMove(l2, reloc)
	a.gcEnd()

	assert.Equal(t, l1[0], l2[0].ClearFlag())
	assert.Equal(t, HandleNull, l2[1])
}
