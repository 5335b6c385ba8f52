package solver

import (
	"math/big"
	"sort"
)

// The cardinality propagator generalizes the watched-literal scheme: for
// Σ lᵢ >= k the first k+1 literals are watched. When one of them becomes
// false and no replacement is found, the remaining k watches are all forced
// true.

type cardPropagator struct {
	cm      *arena
	st      *state
	watches watchManager
	propVar Var
}

func newCardPropagator(cm *arena, st *state) *cardPropagator {
	return &cardPropagator{cm: cm, st: st, watches: newWatchManager(cm), propVar: VarNull}
}

func (p *cardPropagator) addVar(v Var) {
	p.watches.addVar(v)
}

func (p *cardPropagator) setPropagationVar(v Var) {
	p.propVar = v
}

func (p *cardPropagator) cleanAll() {
	p.watches.cleanAll()
}

func (p *cardPropagator) gcUpdate(reloc map[Handle]Handle) {
	p.watches.gcUpdate(reloc)
}

func (p *cardPropagator) eventList(v Var, event EventType) *watchList {
	return p.watches.get(v, event)
}

func (p *cardPropagator) watchLit(l Lit, h Handle) {
	if l.Negated() {
		p.watches.get(l.V, LowerRefine).push(h, false)
	} else {
		p.watches.get(l.V, UpperRefine).push(h, true)
	}
}

// forceLit enqueues the refinement making the literal true, unless the
// matching bound is already there.
func (p *cardPropagator) forceLit(l Lit, h Handle) {
	if l.Negated() {
		if p.st.upperBound(l.V).Cmp(bigOne) == 0 {
			p.st.enqueueEvent(UpperRefine, l.V, big.NewInt(0), h)
		}
	} else {
		if p.st.lowerBound(l.V).Sign() == 0 {
			p.st.enqueueEvent(LowerRefine, l.V, big.NewInt(1), h)
		}
	}
}

func (p *cardPropagator) onEvent(v Var, h Handle, event EventType) bool {
	c := p.cm.get(h)
	k := int(c.constant.Int64())

	// Make sure that the triggering literal sits at position k.
	for i := 0; i < k; i++ {
		if c.lits[i].V == v {
			c.swapLits(i, k)
			break
		}
	}

	// Try to find a new watch among the unwatched literals.
	newWatch := 0
	for i := k + 1; i < c.Len(); i++ {
		l := c.lits[i]
		if !p.st.isAssigned(l.V) || p.st.litBoolValue(l) == 1 {
			newWatch = i
			break
		}
	}

	if newWatch == 0 {
		// No replacement: the first k literals must all be true.
		for i := 0; i < k && !p.st.inConflict; i++ {
			p.forceLit(c.lits[i], h)
		}
		return false
	}

	watched := c.lits[k]
	c.swapLits(k, newWatch)
	p.watchLit(watched, h)
	return true
}

func (p *cardPropagator) attach(h Handle) {
	c := p.cm.get(h)
	k := int(c.constant.Int64())

	// Sort the literals in order to attach: unassigned first, then true
	// ones by decreasing trail index, then false ones by decreasing trail
	// index.
	st := p.st
	sort.SliceStable(c.lits, func(i, j int) bool {
		li, lj := c.lits[i], c.lits[j]
		if !st.isAssigned(li.V) {
			return st.isAssigned(lj.V) || li.V < lj.V
		}
		if !st.isAssigned(lj.V) {
			return false
		}
		iTrue := st.litBoolValue(li) == 1
		jTrue := st.litBoolValue(lj) == 1
		if iTrue != jTrue {
			return iTrue
		}
		return st.lastModification(li.V, true) > st.lastModification(lj.V, true)
	})

	// Watch the first k+1 literals; a false literal among them means it is
	// propagation time.
	propagate := false
	for i := 0; i <= k; i++ {
		l := c.lits[i]
		p.watchLit(l, h)
		if st.isAssigned(l.V) && st.litBoolValue(l) == 0 {
			propagate = true
		}
	}

	if propagate {
		for i := k - 1; i >= 0 && !st.inConflict; i-- {
			p.forceLit(c.lits[i], h)
		}
	}
}

func (p *cardPropagator) detach(h Handle) {
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

func (p *cardPropagator) repropagate(h Handle) {
	c := p.cm.get(h)
	k := int(c.constant.Int64())

	for i := k; i < c.Len(); i++ {
		l := c.lits[i]
		if !p.st.isAssigned(l.V) || p.st.litBoolValue(l) == 1 {
			// We are not propagating.
			return
		}
	}

	for i := k - 1; i >= 0 && !p.st.inConflict; i-- {
		p.forceLit(c.lits[i], h)
	}
}

func (p *cardPropagator) bound(v Var) {}

// preprocess normalizes a cardinality constraint against the level-0 state:
// level-0-assigned literals are removed (true ones decrement the constant)
// and the usual degenerate cases are detected. Duplicate variables are not
// allowed in cardinality constraints.
func (p *cardPropagator) preprocess(lits []Lit, constant int, zeroLevelIndex int) ([]Lit, int, PreprocessStatus) {
	if len(lits) == 0 {
		return nil, constant, PreprocessInconsistent
	}
	if constant <= 0 {
		return nil, constant, PreprocessTautology
	}

	sort.Slice(lits, func(i, j int) bool {
		if lits[i].V != lits[j].V {
			return lits[i].V < lits[j].V
		}
		return !lits[i].Negated() && lits[j].Negated()
	})

	i := -1
	j := 0
	trueCount := 0
	for j < len(lits) {
		if zeroLevelIndex >= 0 && p.st.isAssignedAt(lits[j].V, zeroLevelIndex) {
			if p.st.litBoolValueAt(lits[j], zeroLevelIndex) > 0 {
				trueCount++
				if trueCount >= constant {
					return nil, constant, PreprocessTautology
				}
			}
			j++
			continue
		}
		if i >= 0 && lits[j].V == lits[i].V {
			panic("duplicate variable in cardinality constraint")
		}
		i++
		lits[i] = lits[j]
		j++
	}

	if i < 0 {
		return nil, constant, PreprocessInconsistent
	}

	lits = lits[:i+1]
	constant -= trueCount

	if len(lits) < constant {
		return nil, constant, PreprocessInconsistent
	}

	// With exactly as many literals as the constant they must all be true.
	if len(lits) == constant {
		for _, l := range lits {
			if l.Negated() {
				// 1-x >= 1 => x <= 0
				if p.st.upperBound(l.V).Cmp(bigOne) == 0 {
					p.st.enqueueEvent(UpperRefine, l.V, big.NewInt(0), HandleNull)
				}
			} else {
				// x >= 1
				if p.st.lowerBound(l.V).Sign() == 0 {
					p.st.enqueueEvent(LowerRefine, l.V, big.NewInt(1), HandleNull)
				}
			}
		}
		return nil, constant, PreprocessTautology
	}

	return lits, constant, PreprocessOK
}
