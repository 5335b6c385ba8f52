package solver

import "math/big"

// The integer propagator is bound-based: every literal of a constraint is on
// the any-event watch-list of its variable. From Σ aᵢyᵢ >= C, the bound of a
// variable x with coefficient a is implied by the extremal value of the
// remaining sum: x >= ceil((C − maxΣ)/a) when a > 0, and symmetrically an
// upper bound when a < 0. A variable missing the required bound is moved to
// position 0. Waking does not depend on that position: the constraint stays
// on the any-event list of each of its variables, so it is woken by every
// refinement of any of them, not only when the missing bound appears.

type intPropagator struct {
	cm      *arena
	st      *state
	watches watchManager
	propVar Var
}

func newIntPropagator(cm *arena, st *state) *intPropagator {
	return &intPropagator{cm: cm, st: st, watches: newWatchManager(cm), propVar: VarNull}
}

func (p *intPropagator) addVar(v Var) {
	p.watches.addVar(v)
}

func (p *intPropagator) setPropagationVar(v Var) {
	p.propVar = v
}

func (p *intPropagator) cleanAll() {
	p.watches.cleanAll()
}

func (p *intPropagator) gcUpdate(reloc map[Handle]Handle) {
	p.watches.gcUpdate(reloc)
}

// eventList always consults the any-event list: integer constraints must
// wake on either side.
func (p *intPropagator) eventList(v Var, event EventType) *watchList {
	return p.watches.get(v, AnyRefine)
}

// contribution returns the extremal contribution of the literal to the sum:
// upper bound of positively-coefficiented variables, lower bound of
// negatively-coefficiented ones. ok is false when the required bound is
// missing.
func (p *intPropagator) contribution(l Lit) (sum *big.Int, ok bool) {
	if l.Coef.Sign() > 0 {
		if !p.st.hasUpper(l.V) {
			return nil, false
		}
		return bigMul(l.Coef, p.st.upperBound(l.V)), true
	}
	if !p.st.hasLower(l.V) {
		return nil, false
	}
	return bigMul(l.Coef, p.st.lowerBound(l.V)), true
}

// propagateBound enqueues the implied bound on the literal's variable if it
// strictly improves the current one. othersSum is the extremal sum over the
// remaining literals.
func (p *intPropagator) propagateBound(l Lit, othersSum *big.Int, c *constraint, h Handle) {
	rest := bigSub(c.constant, othersSum)
	if l.Coef.Sign() > 0 {
		bound := divCeil(rest, l.Coef)
		if !p.st.hasLower(l.V) || p.st.lowerBound(l.V).Cmp(bound) < 0 {
			p.st.enqueueEvent(LowerRefine, l.V, bound, h)
		}
	} else {
		bound := divFloor(rest, l.Coef)
		if !p.st.hasUpper(l.V) || p.st.upperBound(l.V).Cmp(bound) > 0 {
			p.st.enqueueEvent(UpperRefine, l.V, bound, h)
		}
	}
}

// onEvent runs a bounds-consistency pass over the constraint. With all
// contributions known every variable's implied bound is tried; with exactly
// one missing only that variable can be bounded; with more than one missing
// no propagation is possible yet.
func (p *intPropagator) onEvent(v Var, h Handle, event EventType) bool {
	c := p.cm.get(h)

	total := new(big.Int)
	missing := -1
	for i, l := range c.lits {
		contrib, ok := p.contribution(l)
		if !ok {
			if missing >= 0 {
				// Second missing bound: park the first as the sentinel.
				c.swapLits(0, missing)
				return false
			}
			missing = i
			continue
		}
		total.Add(total, contrib)
	}

	if missing >= 0 {
		l := c.lits[missing]
		p.propagateBound(l, total, c, h)
		c.swapLits(0, missing)
		return false
	}

	for _, l := range c.lits {
		if p.st.inConflict {
			break
		}
		contrib, _ := p.contribution(l)
		p.propagateBound(l, bigSub(total, contrib), c, h)
	}
	return false
}

func (p *intPropagator) attach(h Handle) {
	c := p.cm.get(h)

	// Attach every literal to the any-event list of its variable.
	for _, l := range c.lits {
		p.watches.get(l.V, AnyRefine).push(h, l.Coef.Sign() > 0)
	}

	if !c.learnt {
		return
	}

	// A learnt constraint must immediately enforce the propagation that
	// gave rise to its learning.
	sum := new(big.Int)
	var propCoef *big.Int
	for _, l := range c.lits {
		if l.V == p.propVar {
			propCoef = l.Coef
			continue
		}
		contrib, ok := p.contribution(l)
		if !ok {
			return
		}
		sum.Add(sum, contrib)
	}
	if propCoef == nil {
		return
	}
	rest := bigSub(c.constant, sum)
	if propCoef.Sign() > 0 {
		bound := divCeil(rest, propCoef)
		if !p.st.hasLower(p.propVar) || p.st.lowerBound(p.propVar).Cmp(bound) < 0 {
			p.st.enqueueEvent(LowerRefine, p.propVar, bound, h)
		}
	} else {
		bound := divFloor(rest, propCoef)
		if !p.st.hasUpper(p.propVar) || p.st.upperBound(p.propVar).Cmp(bound) > 0 {
			p.st.enqueueEvent(UpperRefine, p.propVar, bound, h)
		}
	}
}

func (p *intPropagator) detach(h Handle) {
	c := p.cm.get(h)
	if c.inUse() {
		panic("detaching constraint in use")
	}
	for _, l := range c.lits {
		p.watches.markCleanup(l.V, AnyRefine)
	}
}

// repropagate re-derives the bound on the propagation variable, guarding
// against bounds that disappeared in the backtrack.
func (p *intPropagator) repropagate(h Handle) {
	c := p.cm.get(h)

	sum := new(big.Int)
	var propCoef *big.Int
	for _, l := range c.lits {
		if l.V == p.propVar {
			propCoef = l.Coef
			continue
		}
		contrib, ok := p.contribution(l)
		if !ok {
			// Propagation not possible.
			return
		}
		sum.Add(sum, contrib)
	}
	if propCoef == nil {
		return
	}

	rest := bigSub(c.constant, sum)
	if propCoef.Sign() > 0 {
		bound := divCeil(rest, propCoef)
		if !p.st.hasLower(p.propVar) || p.st.lowerBound(p.propVar).Cmp(bound) < 0 {
			p.st.enqueueEvent(LowerRefine, p.propVar, bound, h)
		}
	} else {
		bound := divFloor(rest, propCoef)
		if !p.st.hasUpper(p.propVar) || p.st.upperBound(p.propVar).Cmp(bound) > 0 {
			p.st.enqueueEvent(UpperRefine, p.propVar, bound, h)
		}
	}
}

// bound is the incomplete-propagator sweep: every integer constraint in the
// variable's list is asked for an implied bound, the tightest lower and
// upper bounds over the whole list are kept, and enqueued if they strictly
// improve the current ones.
func (p *intPropagator) bound(v Var) {
	list := p.watches.get(v, AnyRefine)

	var bestLower, bestUpper *big.Int
	bestLowerReason := HandleNull
	bestUpperReason := HandleNull

	j := 0
	for _, h := range list.watched {
		c := p.cm.get(h)
		if c.deleted {
			continue
		}
		list.watched[j] = h
		j++

		sum := new(big.Int)
		doBounding := true
		var varCoef *big.Int
		for i, l := range c.lits {
			if l.V == v {
				varCoef = l.Coef
				continue
			}
			contrib, ok := p.contribution(l)
			if !ok {
				c.swapLits(0, i)
				doBounding = false
				break
			}
			sum.Add(sum, contrib)
		}
		if !doBounding || varCoef == nil {
			continue
		}

		// We have (1) ax >= c - sum or (2) -ax >= c - sum:
		// (1) x >= ceil((c - sum) / a)
		// (2) x <= floor((c - sum) / -a)
		rest := bigSub(c.constant, sum)
		if varCoef.Sign() > 0 {
			bound := divCeil(rest, varCoef)
			if bestLower == nil || bound.Cmp(bestLower) > 0 {
				bestLower = bound
				bestLowerReason = h
			}
		} else {
			bound := divFloor(rest, varCoef)
			if bestUpper == nil || bound.Cmp(bestUpper) < 0 {
				bestUpper = bound
				bestUpperReason = h
			}
		}
	}
	list.watched = list.watched[:j]

	if bestLower != nil {
		if !p.st.hasLower(v) || bestLower.Cmp(p.st.lowerBound(v)) > 0 {
			p.st.enqueueEvent(LowerRefine, v, bestLower, bestLowerReason)
		}
	}
	if bestUpper != nil {
		if !p.st.hasUpper(v) || bestUpper.Cmp(p.st.upperBound(v)) < 0 {
			p.st.enqueueEvent(UpperRefine, v, bestUpper, bestUpperReason)
		}
	}
}

// preprocess substitutes level-0-assigned variables into the constant and
// divides coefficients and constant by their gcd, rounding the constant up.
func (p *intPropagator) preprocess(lits []Lit, constant *big.Int, zeroLevelIndex int) ([]Lit, *big.Int, PreprocessStatus) {
	gcd := new(big.Int)
	j := 0
	for _, l := range lits {
		if zeroLevelIndex >= 0 && p.st.isAssignedAt(l.V, zeroLevelIndex) {
			constant = bigSub(constant, l.intValue(p.st.valueAt(l.V, zeroLevelIndex)))
			continue
		}
		if gcd.Sign() > 0 {
			gcd = bigGcd(gcd, l.Coef)
		} else {
			gcd = bigAbs(l.Coef)
		}
		lits[j] = l
		j++
	}
	lits = lits[:j]

	if gcd.Cmp(bigOne) > 0 {
		for i := range lits {
			lits[i].Coef = new(big.Int).Quo(lits[i].Coef, gcd)
		}
		constant = divCeil(constant, gcd)
	}

	if len(lits) == 0 {
		if constant.Sign() > 0 {
			return nil, constant, PreprocessInconsistent
		}
		return nil, constant, PreprocessTautology
	}
	return lits, constant, PreprocessOK
}
