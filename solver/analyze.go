package solver

import (
	"container/heap"
	"math/big"
	"sort"
)

// Conflict analysis. A conflict means some variable x has lower(x) >
// upper(x). The two constraints blaming the bounds of x are resolved, either
// directly by Fourier-Motzkin when the resolvent is still conflicting, or
// after lifting the non-resolvent side into tightly propagating form by
// coefficient-divisibility reasoning. The resulting cut is asserted, the
// search backtracks, and the loop continues until the state is conflict
// free.

// A coefMap is a constraint under construction: a map from variables to
// coefficients, a constant, and the kind the constraint will be asserted
// as. Semantics: Σ coef·var >= constant.
type coefMap struct {
	kind  ConstraintType
	coefs map[Var]*big.Int
}

func newCoefMap() coefMap {
	return coefMap{kind: ConstraintInt, coefs: map[Var]*big.Int{}}
}

func (m *coefMap) add(v Var, delta *big.Int) {
	if old, ok := m.coefs[v]; ok {
		m.coefs[v] = bigAdd(old, delta)
	} else {
		m.coefs[v] = delta
	}
}

// vars returns the variables of the map in id order, for reproducible
// iteration.
func (m *coefMap) vars() []Var {
	vars := make([]Var, 0, len(m.coefs))
	for v := range m.coefs {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// A propTag identifies the propagation that established a bound: the
// variable, the trail index, and which side was refined.
type propTag struct {
	v          Var
	trailIndex int
	side       EventType
}

func tagLess(a, b propTag) bool {
	if a.trailIndex != b.trailIndex {
		return a.trailIndex < b.trailIndex
	}
	if a.v != b.v {
		return a.v < b.v
	}
	return a.side < b.side
}

// tagHeap is a max-heap of propagation tags: the most recent propagation is
// eliminated first during tightening.
type tagHeap []propTag

func (h tagHeap) Len() int            { return len(h) }
func (h tagHeap) Less(i, j int) bool  { return tagLess(h[j], h[i]) }
func (h tagHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *tagHeap) Push(x interface{}) { *h = append(*h, x.(propTag)) }
func (h *tagHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// tightEntry is a cached tightly propagating constraint.
type tightEntry struct {
	coefs    coefMap
	constant *big.Int
}

// cacheTight stores a tight constraint under its tag, keeping the purge
// index sorted by (trailIndex, variable, side).
func (s *Solver) cacheTight(tag propTag, coefs coefMap, constant *big.Int) {
	if _, ok := s.tightCache[tag]; !ok {
		i := sort.Search(len(s.tightCacheTags), func(i int) bool {
			return tagLess(tag, s.tightCacheTags[i])
		})
		s.tightCacheTags = append(s.tightCacheTags, propTag{})
		copy(s.tightCacheTags[i+1:], s.tightCacheTags[i:])
		s.tightCacheTags[i] = tag
	}
	s.tightCache[tag] = tightEntry{coefs: coefs, constant: constant}
}

// purgeTightCache drops every cached constraint established above the trail
// index: an O(log n) split plus truncation.
func (s *Solver) purgeTightCache(trailIndex int) {
	i := sort.Search(len(s.tightCacheTags), func(i int) bool {
		return s.tightCacheTags[i].trailIndex > trailIndex
	})
	for _, tag := range s.tightCacheTags[i:] {
		delete(s.tightCache, tag)
	}
	s.tightCacheTags = s.tightCacheTags[:i]
}

// setUpConstraintMap builds the coefficient map of the constraint that
// pushed the given side of the variable's bound at the trail index. A
// global bound or decision yields the synthetic ±x >= ±b.
func (s *Solver) setUpConstraintMap(v Var, trailIndex int, side EventType) (coefMap, *big.Int) {
	coefs := newCoefMap()
	var reason Handle

	// We prefer the variables that propagate without being assigned.
	const bumpValue = 1

	switch side {
	case LowerRefine:
		reason = s.st.lowerReasonAt(v, trailIndex)
		if reason == HandleNull {
			// var >= bound
			bound := s.st.lowerBoundAt(v, trailIndex)
			coefs.coefs[v] = big.NewInt(1)
			if bound.Sign() >= 0 && s.st.hasUpperAt(v, trailIndex) && s.st.upperBoundAt(v, trailIndex).Cmp(bigOne) <= 0 {
				coefs.kind = ConstraintClause
			}
			s.conflictVars[v] += bumpValue
			return coefs, new(big.Int).Set(bound)
		}
	case UpperRefine:
		reason = s.st.upperReasonAt(v, trailIndex)
		if reason == HandleNull {
			// -x >= -bound
			bound := s.st.upperBoundAt(v, trailIndex)
			coefs.coefs[v] = big.NewInt(-1)
			if bound.Cmp(bigOne) <= 0 && s.st.hasLowerAt(v, trailIndex) && s.st.lowerBoundAt(v, trailIndex).Sign() >= 0 {
				coefs.kind = ConstraintClause
			}
			s.conflictVars[v] += bumpValue
			return coefs, bigNeg(bound)
		}
	default:
		panic("invalid bound side")
	}

	s.conflictConstraints[reason.ClearFlag()] = struct{}{}

	c := s.cm.get(reason)
	coefs.kind = c.kind
	var constant *big.Int
	switch c.kind {
	case ConstraintClause:
		for _, l := range c.lits {
			coefs.coefs[l.V] = l.Coef
			s.conflictVars[l.V] += bumpValue
		}
		constant = c.constant
	case ConstraintCard:
		negatives := 0
		for _, l := range c.lits {
			coefs.coefs[l.V] = l.Coef
			if l.Negated() {
				negatives++
			}
			s.conflictVars[l.V] += bumpValue
		}
		constant = bigSub(c.constant, big.NewInt(int64(negatives)))
	default:
		for _, l := range c.lits {
			coefs.coefs[l.V] = l.Coef
			s.conflictVars[l.V] += bumpValue
		}
		constant = c.constant
	}
	return coefs, new(big.Int).Set(constant)
}

// resolveCoefficientMaps performs the Fourier-Motzkin resolution of the
// lower and the upper bound constraint over var: −aU·L + aL·U with x
// canceled, zero coefficients dropped and the result divided by its gcd.
// The result's kind is re-derived from its shape.
func (s *Solver) resolveCoefficientMaps(v Var, lower coefMap, cLower *big.Int, upper coefMap, cUpper *big.Int) (coefMap, *big.Int) {
	result := newCoefMap()

	// I1: aL x + p >= c1 with aL > 0
	// I2: aU x + q >= c2 with aU < 0
	// resolved as usual: -aU I1 + aL I2.
	aLower := lower.coefs[v]
	aUpper := upper.coefs[v]

	boolean := true
	bothClauses := lower.kind == ConstraintClause && upper.kind == ConstraintClause

	negAUpper := bigNeg(aUpper)
	for _, lv := range lower.vars() {
		if !s.isBoolean(lv) {
			boolean = false
		}
		result.coefs[lv] = bigMul(negAUpper, lower.coefs[lv])
	}
	for _, uv := range upper.vars() {
		if !s.isBoolean(uv) {
			boolean = false
		}
		result.add(uv, bigMul(aLower, upper.coefs[uv]))
	}

	// Remove the canceled variables, collapse clause coefficients to ±1,
	// and compute the gcd.
	negatives := 0
	gcd := new(big.Int)
	for _, rv := range result.vars() {
		coef := result.coefs[rv]
		if coef.Sign() == 0 {
			delete(result.coefs, rv)
			continue
		}
		if coef.Sign() > 0 {
			if bothClauses {
				coef = big.NewInt(1)
				result.coefs[rv] = coef
			}
		} else {
			if bothClauses {
				coef = big.NewInt(-1)
				result.coefs[rv] = coef
			}
			negatives++
		}
		if gcd.Sign() == 0 {
			gcd = bigAbs(coef)
		} else {
			gcd = bigGcd(gcd, coef)
		}
	}

	// If everything got canceled the gcd stays 1.
	if gcd.Sign() == 0 {
		gcd = big.NewInt(1)
	}

	cardinality := boolean
	for _, rv := range result.vars() {
		coef := new(big.Int).Quo(result.coefs[rv], gcd)
		result.coefs[rv] = coef
		if cardinality && bigAbs(coef).Cmp(bigOne) != 0 {
			cardinality = false
		}
	}

	constant := divCeil(bigAdd(bigMul(negAUpper, cLower), bigMul(aLower, cUpper)), gcd)

	// Classify: clause when the coefficients are ±1 and the constant
	// matches the clause form, cardinality when only the coefficients
	// match, general integer otherwise.
	if !cardinality {
		result.kind = ConstraintInt
	} else if bothClauses || constant.Cmp(big.NewInt(int64(1-negatives))) == 0 {
		result.kind = ConstraintClause
		constant = big.NewInt(int64(1 - negatives))
	} else {
		result.kind = ConstraintCard
	}
	return result, constant
}

// isInConflict reports whether the constraint is infeasible under the
// current bounds: the extremal sum of its left-hand side stays below the
// constant. A missing bound makes the constraint satisfiable.
func (s *Solver) isInConflict(coefs coefMap, constant *big.Int) bool {
	sum := new(big.Int)
	for v, coef := range coefs.coefs {
		if coef.Sign() > 0 {
			if !s.st.hasUpper(v) {
				return false
			}
			sum.Add(sum, bigMul(s.st.upperBound(v), coef))
		} else {
			if !s.st.hasLower(v) {
				return false
			}
			sum.Add(sum, bigMul(s.st.lowerBound(v), coef))
		}
	}
	return sum.Cmp(constant) < 0
}

// getTopTrailInfo returns the variable of the constraint with the most
// recent trail activity, and the index to backtrack to so the constraint
// can propagate an improvement there.
func (s *Solver) getTopTrailInfo(coefs coefMap) (Var, int) {
	topTrailIndex := -1
	topVariable := VarNull
	for _, v := range coefs.vars() {
		var trailIndex int
		switch s.st.valueStatus(v) {
		case AssignedToLower:
			trailIndex = s.st.upperTrailIndex(v) - 1
			if trailIndex >= topTrailIndex {
				topTrailIndex = trailIndex
				topVariable = v
			}
		case AssignedToUpper:
			trailIndex = s.st.lowerTrailIndex(v) - 1
			if trailIndex >= topTrailIndex {
				topTrailIndex = trailIndex
				topVariable = v
			}
		default:
			trailIndex = s.st.lastModification(v, true)
			if trailIndex > topTrailIndex {
				topTrailIndex = trailIndex
				topVariable = v
			}
		}
	}
	return topVariable, topTrailIndex
}

// propTagOf computes the (variable, trailIndex, side) tag under which the
// propagation of the variable's bound is to be explained, relative to the
// given trail index.
func (s *Solver) propTagOf(v Var, coef *big.Int, trailIndex int) propTag {
	switch s.st.valueStatusAt(v, trailIndex) {
	case AssignedToLower:
		return propTag{v: v, trailIndex: s.st.lowerTrailIndexAt(v, trailIndex), side: LowerRefine}
	case AssignedToUpper:
		return propTag{v: v, trailIndex: s.st.upperTrailIndexAt(v, trailIndex), side: UpperRefine}
	default:
		if coef.Sign() > 0 {
			return propTag{v: v, trailIndex: s.st.upperTrailIndexAt(v, trailIndex), side: UpperRefine}
		}
		return propTag{v: v, trailIndex: s.st.lowerTrailIndexAt(v, trailIndex), side: LowerRefine}
	}
}

// getTightlyPropagatingConstraint turns the constraint into a tightly
// propagating one for x: one where x's coefficient is ±1, so the propagated
// bound needs no rounding. Non-divisible contributions of other variables
// are eliminated by combining in their own propagating constraints, most
// recent first. Results are cached by (x, trailIndex, side); pass replace
// to bypass the cache lookup, as conflict analysis does for the side it
// lifts.
func (s *Solver) getTightlyPropagatingConstraint(side EventType, replace bool, x Var, trailIndex int, coefs coefMap, constant *big.Int) (coefMap, *big.Int) {
	xCoef := coefs.coefs[x]
	if xCoef == nil || xCoef.Sign() == 0 {
		panic("tightening constraint without the variable")
	}
	xCoefAbs := bigAbs(xCoef)

	// The constraint is already tight if the coefficient of x is ±1.
	if xCoefAbs.Cmp(bigOne) == 0 {
		s.cacheTight(propTag{v: x, trailIndex: trailIndex, side: side}, coefs, constant)
		return coefs, constant
	}

	if !replace {
		if found, ok := s.tightCache[propTag{v: x, trailIndex: trailIndex, side: side}]; ok {
			return found.coefs, found.constant
		}
	}

	// The working coefficients are keyed by propagation tags; tags are
	// eliminated most recent first.
	coefficients := map[propTag]*big.Int{}
	inQueue := map[propTag]struct{}{}
	queue := &tagHeap{}

	xTag := propTag{v: x, trailIndex: trailIndex, side: nbEventTypes}
	for _, v := range coefs.vars() {
		coef := coefs.coefs[v]
		if v == x {
			coefficients[xTag] = coef
			continue
		}
		tag := s.propTagOf(v, coef, trailIndex)
		heap.Push(queue, tag)
		inQueue[tag] = struct{}{}
		if old, ok := coefficients[tag]; ok {
			coefficients[tag] = bigAdd(old, coef)
		} else {
			coefficients[tag] = coef
		}
	}
	outConstant := new(big.Int).Set(constant)

	for queue.Len() > 0 {
		tag := heap.Pop(queue).(propTag)
		delete(inQueue, tag)
		variable := tag.v
		variableCoef := coefficients[tag]
		variableIndex := tag.trailIndex

		// Contributions divisible by the coefficient of x need no
		// elimination.
		if divides(xCoefAbs, variableCoef) {
			continue
		}

		// Fetch, or recursively compute, the tight constraint for this tag.
		var tightCoefs coefMap
		var tightRHS *big.Int
		if found, ok := s.tightCache[tag]; ok {
			tightCoefs = found.coefs
			tightRHS = found.constant
		} else {
			tightCoefs, tightRHS = s.setUpConstraintMap(variable, variableIndex, tag.side)
			tightCoefs, tightRHS = s.getTightlyPropagatingConstraint(tag.side, false, variable, variableIndex, tightCoefs, tightRHS)
		}

		variableCoefTight := tightCoefs.coefs[variable]
		if bigAbs(variableCoefTight).Cmp(bigOne) != 0 {
			panic("tightened constraint is not tight")
		}

		// With the non-tight coefficient a and the tight coefficient b, the
		// multiplier cancels a modulo |coef(x)|: straight cancellation when
		// non-negative, else bumped by the least multiple of |coef(x)| that
		// makes it so.
		multiplier := bigNeg(bigMul(variableCoef, variableCoefTight))
		if multiplier.Sign() < 0 {
			bump := bigMul(divCeil(bigNeg(multiplier), xCoefAbs), xCoefAbs)
			multiplier = bigAdd(multiplier, bump)
		}

		for _, tv := range tightCoefs.vars() {
			delta := bigMul(tightCoefs.coefs[tv], multiplier)
			if tv == variable {
				coefficients[tag] = bigAdd(coefficients[tag], delta)
				continue
			}
			tvTag := s.propTagOf(tv, tightCoefs.coefs[tv], variableIndex)
			if _, ok := inQueue[tvTag]; !ok {
				inQueue[tvTag] = struct{}{}
				heap.Push(queue, tvTag)
			}
			if old, ok := coefficients[tvTag]; ok {
				coefficients[tvTag] = bigAdd(old, delta)
			} else {
				coefficients[tvTag] = delta
			}
		}

		outConstant = bigAdd(outConstant, bigMul(tightRHS, multiplier))
	}

	// Every remaining coefficient is divisible by |coef(x)|: divide through,
	// rounding the constant up.
	out := newCoefMap()
	tags := make([]propTag, 0, len(coefficients))
	for tag := range coefficients {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tagLess(tags[i], tags[j]) })
	for _, tag := range tags {
		coef := coefficients[tag]
		if coef.Sign() == 0 {
			continue
		}
		if !divides(xCoefAbs, coef) {
			panic("non-divisible coefficient after tightening")
		}
		out.add(tag.v, divCeil(coef, xCoefAbs))
	}
	outConstant = divCeil(outConstant, xCoefAbs)

	s.cacheTight(propTag{v: x, trailIndex: trailIndex, side: side}, out, outConstant)
	return out, outConstant
}

// assertTightConstraint asserts the analysis result as a constraint of the
// classified kind.
func (s *Solver) assertTightConstraint(coefs coefMap, constant *big.Int) Handle {
	switch coefs.kind {
	case ConstraintInt:
		lits := make([]Lit, 0, len(coefs.coefs))
		for _, v := range coefs.vars() {
			lits = append(lits, IntLit(coefs.coefs[v], v))
		}
		return s.assertIntConstraint(lits, new(big.Int).Set(constant), ClassExplanation)
	case ConstraintCard:
		lits := make([]Lit, 0, len(coefs.coefs))
		negatives := 0
		for _, v := range coefs.vars() {
			negated := coefs.coefs[v].Sign() < 0
			if negated {
				negatives++
			}
			lits = append(lits, BoolLit(v, negated))
		}
		k := int(constant.Int64()) + negatives
		return s.assertCardConstraint(lits, k, ClassExplanation)
	case ConstraintClause:
		lits := make([]Lit, 0, len(coefs.coefs))
		for _, v := range coefs.vars() {
			lits = append(lits, BoolLit(v, coefs.coefs[v].Sign() < 0))
		}
		return s.assertClauseConstraint(lits, ClassExplanation)
	default:
		panic("invalid constraint kind")
	}
}

// analyzeConflict consumes the trail upward to produce a learned cut,
// backtracks and asserts it, iterating while the state stays in conflict.
func (s *Solver) analyzeConflict() {
	if !s.st.inConflict {
		panic("conflict analysis without a conflict")
	}

	// Disable the propagation loop; the prior value is restored on every
	// exit path.
	defer func(prev bool) { s.disablePropagation = prev }(s.disablePropagation)
	s.disablePropagation = true

	// The learned constraint might be stronger than envisioned and conflict
	// again after assertion, so we must check again.
	for s.st.inConflict {
		for v := range s.conflictVars {
			delete(s.conflictVars, v)
		}
		for h := range s.conflictConstraints {
			delete(s.conflictConstraints, h)
		}

		conflictVariable := s.st.conflictVar

		// The two constraints blaming the conflict variable.
		lowerCoefs, cLower := s.setUpConstraintMap(conflictVariable, s.st.trailSize(), LowerRefine)
		upperCoefs, cUpper := s.setUpConstraintMap(conflictVariable, s.st.trailSize(), UpperRefine)

		// The side with the smaller coefficient on the variable is the
		// resolvent; the other side is the one lifted into tight form if
		// needed.
		var resolvent EventType
		if bigAbs(lowerCoefs.coefs[conflictVariable]).Cmp(bigAbs(upperCoefs.coefs[conflictVariable])) < 0 {
			resolvent = LowerRefine
		} else {
			resolvent = UpperRefine
		}

		var resultCoefs coefMap
		var resultConstant *big.Int

		for {
			s.Stats.NbAnalysisConflicts++

			tracef("solver", "LB: %v >= %v", lowerCoefs.coefs, cLower)
			tracef("solver", "UB: %v >= %v", upperCoefs.coefs, cUpper)

			// Try plain Fourier-Motzkin first if allowed.
			fmDone := false
			if s.tryFourierMotzkin {
				resultCoefs, resultConstant = s.resolveCoefficientMaps(conflictVariable, lowerCoefs, cLower, upperCoefs, cUpper)
				fmDone = s.isInConflict(resultCoefs, resultConstant)
			}
			if fmDone {
				s.Stats.NbFourierMotzkinCuts++
			} else {
				// Lift the non-resolvent sides into tightly propagating
				// form, then resolve.
				if resolvent != LowerRefine {
					lowerCoefs, cLower = s.getTightlyPropagatingConstraint(LowerRefine, true, conflictVariable, s.st.trailSize()-1, lowerCoefs, cLower)
				}
				if resolvent != UpperRefine {
					upperCoefs, cUpper = s.getTightlyPropagatingConstraint(UpperRefine, true, conflictVariable, s.st.trailSize()-1, upperCoefs, cUpper)
				}
				resultCoefs, resultConstant = s.resolveCoefficientMaps(conflictVariable, lowerCoefs, cLower, upperCoefs, cUpper)
				s.Stats.NbDynamicCuts++
			}

			// An empty resolvent with a positive constant is the empty
			// inconsistency.
			if len(resultCoefs.coefs) == 0 {
				if resultConstant.Sign() <= 0 {
					panic("empty resolvent is not inconsistent")
				}
				s.status = Unsat
				return
			}

			// Backtrack to where the result can propagate an improvement.
			var topTrailIndex int
			conflictVariable, topTrailIndex = s.getTopTrailInfo(resultCoefs)
			s.backtrack(topTrailIndex)

			// Asserting might conflict again on the top variable.
			if !s.isInConflict(resultCoefs, resultConstant) {
				break
			}
			if s.st.isSafe() {
				s.status = Unsat
				return
			}
			// Keep the result on one side and fetch the opposite bound's
			// constraint as the other.
			if resultCoefs.coefs[conflictVariable].Sign() > 0 {
				lowerCoefs, cLower = resultCoefs, resultConstant
				upperCoefs, cUpper = s.setUpConstraintMap(conflictVariable, s.st.trailSize(), UpperRefine)
				resolvent = LowerRefine
			} else {
				upperCoefs, cUpper = resultCoefs, resultConstant
				lowerCoefs, cLower = s.setUpConstraintMap(conflictVariable, s.st.trailSize(), LowerRefine)
				resolvent = UpperRefine
			}
		}

		// Assert the new constraint; its attach enforces the propagation.
		s.props.setPropagationVar(conflictVariable)
		conflictConstraint := s.assertTightConstraint(resultCoefs, resultConstant)

		// Bump the variables and reasons that took part in the analysis.
		for v, times := range s.conflictVars {
			s.st.bumpVar(v, times)
		}
		for h := range s.conflictConstraints {
			s.bumpConstraint(h)
		}
		if conflictConstraint != HandleNull {
			s.bumpConstraint(conflictConstraint)
			if s.verbosity >= VerbosityDetailed {
				traceLog.Infof("learned cut: %s", s.constraintString(conflictConstraint))
			}
		}

		// Go through the cached tight constraints and assert the unit ones
		// that improve a current bound.
		for _, tag := range append([]propTag(nil), s.tightCacheTags...) {
			entry, ok := s.tightCache[tag]
			if !ok || len(entry.coefs.coefs) != 1 {
				continue
			}
			for v, coef := range entry.coefs.coefs {
				if coef.Sign() > 0 {
					bound := divCeil(entry.constant, coef)
					if !s.st.hasLower(v) || bound.Cmp(s.st.lowerBound(v)) > 0 {
						s.assertTightConstraint(entry.coefs, entry.constant)
					}
				} else {
					bound := divFloor(entry.constant, coef)
					if !s.st.hasUpper(v) || bound.Cmp(s.st.upperBound(v)) < 0 {
						s.assertTightConstraint(entry.coefs, entry.constant)
					}
				}
			}
		}
	}
}
