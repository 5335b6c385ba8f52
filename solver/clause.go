package solver

import (
	"math/big"
	"sort"
)

// The clause propagator implements the classic 2-watched-literal scheme over
// 0/1 literals. A watch on a negated literal subscribes to the variable's
// lower-bound refinements (the literal becomes false when the variable goes
// to 1), a watch on a positive literal to the upper-bound refinements.

type clausePropagator struct {
	cm      *arena
	st      *state
	watches watchManager
	propVar Var
}

func newClausePropagator(cm *arena, st *state) *clausePropagator {
	return &clausePropagator{cm: cm, st: st, watches: newWatchManager(cm), propVar: VarNull}
}

func (p *clausePropagator) addVar(v Var) {
	p.watches.addVar(v)
}

func (p *clausePropagator) setPropagationVar(v Var) {
	p.propVar = v
}

func (p *clausePropagator) cleanAll() {
	p.watches.cleanAll()
}

func (p *clausePropagator) gcUpdate(reloc map[Handle]Handle) {
	p.watches.gcUpdate(reloc)
}

func (p *clausePropagator) eventList(v Var, event EventType) *watchList {
	return p.watches.get(v, event)
}

// watchLit registers a watch for the literal becoming false.
func (p *clausePropagator) watchLit(l Lit, h Handle) {
	if l.Negated() {
		p.watches.get(l.V, LowerRefine).push(h, false)
	} else {
		p.watches.get(l.V, UpperRefine).push(h, true)
	}
}

// propagateLit enqueues the unit refinement making the literal true.
func (p *clausePropagator) propagateLit(l Lit, h Handle) {
	if l.Negated() {
		// Propagate upper bound, i.e. var <= 0.
		p.st.enqueueEvent(UpperRefine, l.V, big.NewInt(0), h)
	} else {
		// Propagate lower bound, i.e. var >= 1.
		p.st.enqueueEvent(LowerRefine, l.V, big.NewInt(1), h)
	}
}

// onEvent doesn't care which bound got refined: the constraint is on the
// right watch-list for its literal to have become false.
func (p *clausePropagator) onEvent(v Var, h Handle, event EventType) bool {
	c := p.cm.get(h)

	// Make sure that the triggering variable is at position 1.
	if c.lits[0].V == v {
		c.swapLits(0, 1)
	}

	// If the 0th watch is true, the clause is already satisfied.
	first := c.lits[0]
	if p.st.isAssigned(first.V) && p.st.litBoolValue(first) == 1 {
		return false
	}

	// Try to find a new watch.
	newWatch := 0
	for i := 2; i < c.Len(); i++ {
		l := c.lits[i]
		if !p.st.isAssigned(l.V) {
			newWatch = i
			break
		} else if p.st.litBoolValue(l) == 1 {
			// Clause already satisfied.
			return false
		}
	}

	if newWatch == 0 {
		// No watch found: the first literal is unit.
		p.propagateLit(first, h)
		return false
	}

	// Put the new watch on the spot and register it.
	c.swapLits(1, newWatch)
	p.watchLit(c.lits[1], h)
	return true
}

func (p *clausePropagator) attach(h Handle) {
	c := p.cm.get(h)

	// Move the unassigned literals (up to two) to the first spots.
	j := 0
	for i := 0; i < c.Len() && j < 2; i++ {
		if !p.st.isAssigned(c.lits[i].V) {
			c.swapLits(i, j)
			j++
		}
	}

	p.watchLit(c.lits[0], h)

	// With a single unassigned literal the clause propagates right away; the
	// second watch is then chosen with the highest modification index so
	// backtracks re-arm it earliest.
	if j == 1 {
		p.propagateLit(c.lits[0], h)
		for i := 2; i < c.Len(); i++ {
			if p.st.lastModification(c.lits[1].V, true) < p.st.lastModification(c.lits[i].V, true) {
				c.swapLits(1, i)
			}
		}
	}

	p.watchLit(c.lits[1], h)
}

func (p *clausePropagator) detach(h Handle) {
	c := p.cm.get(h)
	if c.inUse() {
		panic("detaching constraint in use")
	}
	for _, l := range c.lits {
		if l.Negated() {
			p.watches.markCleanup(l.V, LowerRefine)
		} else {
			p.watches.markCleanup(l.V, UpperRefine)
		}
	}
}

// repropagate re-fires the cached propagation if the first literal is still
// unassigned and all others are false.
func (p *clausePropagator) repropagate(h Handle) {
	c := p.cm.get(h)

	// The first literal should be unchanged: propagation cannot have
	// happened before it.
	first := c.lits[0]
	if p.propVar != first.V || p.st.isAssigned(p.propVar) {
		return
	}

	// Check that the others are false. Checking just the second one is not
	// enough, as reassertions of learned unit constraints may have happened.
	for i := 1; i < c.Len(); i++ {
		l := c.lits[i]
		if !p.st.isAssigned(l.V) || p.st.litBoolValue(l) == 1 {
			return
		}
	}

	p.propagateLit(first, h)
}

func (p *clausePropagator) bound(v Var) {}

// preprocess normalizes a clause against the level-0 state: literals are
// sorted, duplicates merged, globally false literals dropped (adjusting the
// constant), and complementary occurrences make the clause a tautology.
func (p *clausePropagator) preprocess(lits []Lit, constant int, zeroLevelIndex int) ([]Lit, int, PreprocessStatus) {
	if len(lits) == 0 {
		return nil, constant, PreprocessInconsistent
	}

	sort.Slice(lits, func(i, j int) bool {
		if lits[i].V != lits[j].V {
			return lits[i].V < lits[j].V
		}
		return !lits[i].Negated() && lits[j].Negated()
	})

	i := -1 // Last literal we are done with.
	j := 0  // The literal we are currently considering.
	for j < len(lits) {
		if zeroLevelIndex >= 0 && p.st.isAssignedAt(lits[j].V, zeroLevelIndex) {
			if p.st.litBoolValueAt(lits[j], zeroLevelIndex) > 0 {
				return nil, constant, PreprocessTautology
			}
			// Literal is false so we can just skip it.
			if lits[j].Negated() {
				constant++
			}
			j++
			continue
		}
		if i >= 0 && lits[j].V == lits[i].V {
			if lits[j].Negated() == lits[i].Negated() {
				// Same literal, just skip.
				if lits[j].Negated() {
					constant++
				}
				j++
				continue
			}
			// Complementary literal, tautology.
			return nil, constant, PreprocessTautology
		}
		i++
		lits[i] = lits[j]
		j++
	}

	if i < 0 {
		return nil, constant, PreprocessInconsistent
	}
	return lits[:i+1], constant, PreprocessOK
}
