package solver

import (
	"fmt"
	"math/big"
	"sort"
	"time"
)

// A Solver decides satisfiability of a conjunction of clause, cardinality
// and general integer constraints over bounded integer variables, in the
// conflict-driven cutting-planes style. It is the main data structure.
type Solver struct {
	cm    *arena
	st    *state
	props *propagatorCollection

	// Statistics about the solving process.
	Stats Stats

	restartHeuristic lubyRestart
	removalHeuristic explanationRemoval

	// Constraint databases by class.
	problemConstraints     []Handle
	explanationConstraints []Handle
	globalCutConstraints   []Handle

	constraintInc   float64
	constraintDecay float64

	nameToVar     map[string]Var
	varToPosSlack map[Var]Var
	varToNegSlack map[Var]Var

	// Index into the trail, to know what we've propagated so far.
	propagationTrailIndex int
	// Last trail index filled by problem loading.
	initialTrailIndex int

	status Status

	// Conflict analysis state (analyze.go).
	conflictVars        map[Var]float64
	conflictConstraints map[Handle]struct{}
	tightCache          map[propTag]tightEntry
	tightCacheTags      []propTag

	// Configuration.
	checkModel            bool
	disablePropagation    bool
	replaceVarsWithSlacks bool
	tryFourierMotzkin     bool
	verbosity             Verbosity
	boundEstimate         *big.Int
	defaultBound          *big.Int // nil means none

	slackVar   Var
	slackLower []Handle
	slackUpper []Handle
}

// NewSolver returns an empty solver with default options.
func NewSolver() *Solver {
	registerTraceTag("solver")
	registerTraceTag("solver::state")
	registerTraceTag("propagators")
	cm := newArena()
	st := newState(cm)
	s := &Solver{
		cm:                  cm,
		st:                  st,
		props:               newPropagatorCollection(cm, st),
		restartHeuristic:    newLubyRestart(),
		constraintInc:       1,
		constraintDecay:     1.001,
		nameToVar:           map[string]Var{},
		varToPosSlack:       map[Var]Var{},
		varToNegSlack:       map[Var]Var{},
		status:              Unknown,
		conflictVars:        map[Var]float64{},
		conflictConstraints: map[Handle]struct{}{},
		tightCache:          map[propTag]tightEntry{},
		slackVar:            VarNull,
		boundEstimate:       big.NewInt(0),
		initialTrailIndex:   -1,
	}
	s.removalHeuristic = newExplanationRemoval(&s.Stats)
	s.Stats.Start = time.Now()
	return s
}

// SetPropagation enables or disables propagation (debugging aid).
func (s *Solver) SetPropagation(on bool) {
	s.disablePropagation = !on
}

// SetDynamicOrder selects the dynamic (activity-based) or the linear
// variable order.
func (s *Solver) SetDynamicOrder(on bool) {
	s.st.dynamicOrder = on
}

// SetCheckModel enables the post-Sat verification pass.
func (s *Solver) SetCheckModel(on bool) {
	s.checkModel = on
}

// SetTryFourierMotzkin allows plain Fourier-Motzkin resolution before
// falling back to tight cuts during conflict analysis.
func (s *Solver) SetTryFourierMotzkin(on bool) {
	s.tryFourierMotzkin = on
}

// SetReplaceVarsWithSlacks rewrites each declared x as x⁺ − x⁻ with
// x⁺, x⁻ >= 0.
func (s *Solver) SetReplaceVarsWithSlacks(on bool) {
	s.replaceVarsWithSlacks = on
}

// SetDefaultBound gives each new variable symmetric initial bounds
// [-bound, bound]. A nil bound means none.
func (s *Solver) SetDefaultBound(bound *big.Int) {
	s.defaultBound = bound
}

// SetBoundEstimate sets the initial lower bound of the global slack
// variable.
func (s *Solver) SetBoundEstimate(estimate *big.Int) {
	if estimate.Sign() < 0 {
		panic("negative bound estimate")
	}
	s.boundEstimate = estimate
}

// SetVerbosity sets the output verbosity.
func (s *Solver) SetVerbosity(v Verbosity) {
	s.verbosity = v
}

// Status returns the current solver status.
func (s *Solver) Status() Status {
	return s.status
}

// NbVars returns the number of variables created so far.
func (s *Solver) NbVars() int {
	return s.st.nbVars()
}

// Vars returns all declared variables by name.
func (s *Solver) Vars() map[string]Var {
	return s.nameToVar
}

// VarByName returns a previously declared variable.
func (s *Solver) VarByName(name string) (Var, bool) {
	v, ok := s.nameToVar[name]
	return v, ok
}

// VarName returns the name of the variable.
func (s *Solver) VarName(v Var) string {
	return s.st.varName(v)
}

// NewVar creates a fresh variable. Rational input is expected to be
// normalized to integer coefficients before reaching the core, so the type
// tag is carried but the solver reasons over integers only.
func (s *Solver) NewVar(t VarType, name string) Var {
	tracef("solver", "newVariable(%v)", name)

	v := s.cm.newVar(t)
	s.Stats.NbVariables++
	s.st.newVar(v, name, !s.replaceVarsWithSlacks)

	slackID := v.ID()
	if !s.replaceVarsWithSlacks {
		s.nameToVar[name] = v
		s.props.addVar(v)
	} else {
		// Introduce the positive and the negative slack, both >= 0; the
		// declared variable itself stays out of the decision queue.
		plus := s.cm.newVar(t)
		s.st.newVar(plus, name+"_plus", true)
		s.nameToVar[name+"_plus"] = plus
		s.props.addVar(plus)
		s.varToPosSlack[v] = plus
		s.st.enqueueEvent(LowerRefine, plus, big.NewInt(0), HandleNull)

		minus := s.cm.newVar(t)
		s.st.newVar(minus, name+"_minus", true)
		s.nameToVar[name+"_minus"] = minus
		s.props.addVar(minus)
		s.varToNegSlack[v] = minus
		s.st.enqueueEvent(LowerRefine, minus, big.NewInt(0), HandleNull)

		slackID = minus.ID()
	}

	for len(s.slackLower) <= slackID {
		s.slackLower = append(s.slackLower, HandleNull)
		s.slackUpper = append(s.slackUpper, HandleNull)
	}

	if s.defaultBound != nil {
		s.st.enqueueEvent(LowerRefine, v, bigNeg(s.defaultBound), HandleNull)
		s.st.enqueueEvent(UpperRefine, v, new(big.Int).Set(s.defaultBound), HandleNull)
	}

	s.initialTrailIndex = s.st.trailSize() - 1

	return v
}

// SetLower asserts a global lower bound for the variable.
func (s *Solver) SetLower(v Var, bound *big.Int) {
	if s.status == Unsat {
		return
	}
	if s.st.hasLower(v) && bound.Cmp(s.st.lowerBound(v)) <= 0 {
		return
	}
	s.st.enqueueEvent(LowerRefine, v, bound, HandleNull)
	s.propagate()
}

// SetUpper asserts a global upper bound for the variable.
func (s *Solver) SetUpper(v Var, bound *big.Int) {
	if s.status == Unsat {
		return
	}
	if s.st.hasUpper(v) && bound.Cmp(s.st.upperBound(v)) >= 0 {
		return
	}
	s.st.enqueueEvent(UpperRefine, v, bound, HandleNull)
	s.propagate()
}

// LowerBound returns the current lower bound of the variable, or nil.
func (s *Solver) LowerBound(v Var) *big.Int {
	if !s.st.hasLower(v) {
		return nil
	}
	return s.st.lowerBound(v)
}

// UpperBound returns the current upper bound of the variable, or nil.
func (s *Solver) UpperBound(v Var) *big.Int {
	if !s.st.hasUpper(v) {
		return nil
	}
	return s.st.upperBound(v)
}

// Value returns the value of the variable in the model. It must only be
// called after Solve returned Sat.
func (s *Solver) Value(v Var) *big.Int {
	if s.status != Sat {
		panic("cannot call Value on a non-Sat solver")
	}
	if plus, ok := s.varToPosSlack[v]; ok {
		return bigSub(s.st.value(plus), s.st.value(s.varToNegSlack[v]))
	}
	return s.st.value(v)
}

// isBoolean is true iff the variable is 0/1 at level 0.
func (s *Solver) isBoolean(v Var) bool {
	safe := s.st.safeIndex()
	return s.st.hasLowerAt(v, safe) && s.st.hasUpperAt(v, safe) &&
		s.st.lowerBoundAt(v, safe).Sign() >= 0 &&
		s.st.upperBoundAt(v, safe).Cmp(bigOne) <= 0
}

// AssertClause asserts l1 || l2 || ... || ln over 0/1 variables.
func (s *Solver) AssertClause(lits []Lit) Handle {
	return s.assertClauseConstraint(lits, ClassProblem)
}

// AssertCardinality asserts l1 + l2 + ... + ln >= k over 0/1 variables.
func (s *Solver) AssertCardinality(lits []Lit, k int) Handle {
	return s.assertCardConstraint(lits, k, ClassProblem)
}

// AssertInteger asserts a1*x1 + a2*x2 + ... + an*xn >= c.
func (s *Solver) AssertInteger(lits []Lit, c *big.Int) Handle {
	return s.assertIntConstraint(lits, c, ClassProblem)
}

func (s *Solver) assertClauseConstraint(lits []Lit, class ConstraintClass) Handle {
	tracef("solver", "assertClause(%v)", lits)

	if s.status != Unknown || s.st.inConflict {
		return HandleNull
	}

	// The clause as an integer inequality: Σ ±x >= 1 - #negative.
	constant := 1
	for _, l := range lits {
		if l.Negated() {
			constant--
		}
	}

	clauseProp := s.props.props[ConstraintClause].(*clausePropagator)
	lits, constant, status := clauseProp.preprocess(lits, constant, s.st.safeIndex())
	switch status {
	case PreprocessOK:
		if len(lits) > 1 {
			h := s.cm.allocate(ConstraintClause, lits, big.NewInt(int64(constant)), class != ClassProblem)
			s.attachConstraint(h, class)
			s.propagate()
			return h
		}
		// Unary clauses are absorbed into the variable bounds directly.
		l := lits[0]
		if l.Negated() {
			if s.st.upperBound(l.V).Cmp(bigOne) == 0 {
				s.SetUpper(l.V, big.NewInt(0))
			}
		} else {
			if s.st.lowerBound(l.V).Sign() == 0 {
				s.SetLower(l.V, big.NewInt(1))
			}
		}
		s.propagate()
	case PreprocessTautology:
	case PreprocessInconsistent:
		s.status = Unsat
	}
	return HandleNull
}

func (s *Solver) assertCardConstraint(lits []Lit, k int, class ConstraintClass) Handle {
	tracef("solver", "assertCardinality(%v >= %d)", lits, k)

	if s.status != Unknown || s.st.inConflict {
		return HandleNull
	}

	cardProp := s.props.props[ConstraintCard].(*cardPropagator)
	lits, k, status := cardProp.preprocess(lits, k, s.st.safeIndex())
	switch status {
	case PreprocessOK:
		h := s.cm.allocate(ConstraintCard, lits, big.NewInt(int64(k)), class != ClassProblem)
		s.attachConstraint(h, class)
		s.propagate()
		return h
	case PreprocessTautology:
	case PreprocessInconsistent:
		s.status = Unsat
	}
	return HandleNull
}

func (s *Solver) assertIntConstraint(lits []Lit, c *big.Int, class ConstraintClass) Handle {
	tracef("solver", "assertInteger(%v >= %v)", lits, c)

	if s.status != Unknown || s.st.inConflict {
		return HandleNull
	}

	// If we are adding slacks, replace every declared x with x⁺ − x⁻.
	if s.replaceVarsWithSlacks && class == ClassProblem {
		n := len(lits)
		for i := 0; i < n; i++ {
			v := lits[i].V
			plus, ok := s.varToPosSlack[v]
			if !ok {
				continue
			}
			coef := lits[i].Coef
			lits[i] = IntLit(coef, plus)
			lits = append(lits, IntLit(bigNeg(coef), s.varToNegSlack[v]))
		}
	}

	intProp := s.props.props[ConstraintInt].(*intPropagator)
	lits, c, status := intProp.preprocess(lits, c, s.st.safeIndex())
	switch status {
	case PreprocessOK:
		if len(lits) > 1 {
			h := s.cm.allocate(ConstraintInt, lits, c, class != ClassProblem)
			s.attachConstraint(h, class)
			s.propagate()
			return h
		}
		// Unary constraints are absorbed into the variable bounds.
		l := lits[0]
		if l.Coef.Sign() < 0 {
			bound := divFloor(c, l.Coef)
			if !s.st.hasUpper(l.V) || bound.Cmp(s.st.upperBound(l.V)) < 0 {
				s.SetUpper(l.V, bound)
			}
		} else {
			bound := divCeil(c, l.Coef)
			if !s.st.hasLower(l.V) || bound.Cmp(s.st.lowerBound(l.V)) > 0 {
				s.SetLower(l.V, bound)
			}
		}
		s.propagate()
	case PreprocessTautology:
	case PreprocessInconsistent:
		s.status = Unsat
	}
	return HandleNull
}

// attachConstraint registers the constraint in its class database and hands
// it to the propagators.
func (s *Solver) attachConstraint(h Handle, class ConstraintClass) {
	switch class {
	case ClassProblem:
		s.problemConstraints = append(s.problemConstraints, h)
		s.Stats.NbProblemConstraints++
	case ClassExplanation:
		s.explanationConstraints = append(s.explanationConstraints, h)
		s.Stats.NbExplanations++
	case ClassGlobalCut:
		s.globalCutConstraints = append(s.globalCutConstraints, h)
		s.Stats.NbGlobalCuts++
	}

	switch h.Kind() {
	case ConstraintClause:
		s.Stats.NbClauseConstraints++
	case ConstraintCard:
		s.Stats.NbCardConstraints++
	case ConstraintInt:
		s.Stats.NbIntConstraints++
	}

	s.props.attach(h)
}

// removeConstraint detaches and erases the constraint.
func (s *Solver) removeConstraint(h Handle, class ConstraintClass) {
	switch class {
	case ClassProblem:
		s.Stats.NbProblemConstraints--
	case ClassExplanation:
		s.Stats.NbExplanations--
	case ClassGlobalCut:
		s.Stats.NbGlobalCuts--
	}
	switch h.Kind() {
	case ConstraintClause:
		s.Stats.NbClauseConstraints--
	case ConstraintCard:
		s.Stats.NbCardConstraints--
	case ConstraintInt:
		s.Stats.NbIntConstraints--
	}
	s.props.detach(h)
	s.cm.erase(h)
}

// propagate drains the trail from the propagation index forward, routing
// each event through the watch manager, and stops on conflict.
func (s *Solver) propagate() {
	if s.disablePropagation || s.st.inConflict {
		return
	}

	for ; s.propagationTrailIndex < s.st.trailSize(); s.propagationTrailIndex++ {
		event := s.st.trail.at(s.propagationTrailIndex)
		s.props.propagateEvent(event.v, event.kind)
		if s.st.inConflict {
			return
		}
	}
}

// backtrack undoes the trail down to the given index.
func (s *Solver) backtrack(trailIndex int) {
	tracef("solver", "backtracking to index %d", trailIndex)

	s.st.cancelUntil(trailIndex)
	if s.propagationTrailIndex > s.st.trailSize() {
		s.propagationTrailIndex = s.st.trailSize()
	}
	s.purgeTightCache(trailIndex)
	s.props.cancelUntil(trailIndex)
}

// computeBounds runs the incomplete-propagator sweep on the variable.
func (s *Solver) computeBounds(v Var) {
	s.props.bound(v)
}

// addSlackVariableBound artificially bounds the unbounded variable through
// the global slack variable: x + s >= 0 and s − x >= 0 with s >= estimate.
func (s *Solver) addSlackVariableBound(v Var) {
	if s.slackVar == VarNull {
		s.slackVar = s.NewVar(TypeInt, "slack")
	}

	if s.slackLower[v.ID()] == HandleNull && v != s.slackVar {
		// x >= -slack, i.e. x + slack >= 0.
		lits := []Lit{IntLit(big.NewInt(1), v), IntLit(big.NewInt(1), s.slackVar)}
		s.slackLower[v.ID()] = s.assertIntConstraint(lits, big.NewInt(0), ClassProblem)

		// x <= slack, i.e. slack - x >= 0.
		lits = []Lit{IntLit(big.NewInt(-1), v), IntLit(big.NewInt(1), s.slackVar)}
		s.slackUpper[v.ID()] = s.assertIntConstraint(lits, big.NewInt(0), ClassProblem)
	}

	if !s.st.hasLower(s.slackVar) {
		s.st.enqueueEvent(LowerRefine, s.slackVar, new(big.Int).Set(s.boundEstimate), HandleNull)
	}

	if !s.st.isAssigned(s.slackVar) {
		s.st.decideValue(s.slackVar)
	}

	if s.verbosity >= VerbosityBasic {
		traceLog.Infof("adding slack variable for variable %s", s.st.varName(v))
	}
}

// Solve decides the problem and returns its status.
func (s *Solver) Solve() Status {
	s.Stats.Start = time.Now()
	s.initialTrailIndex = s.st.trailSize() - 1

	if s.status != Unknown {
		return s.status
	}

	// Go through the unbounded variables and add the slack.
	names := make([]string, 0, len(s.nameToVar))
	for name := range s.nameToVar {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := s.nameToVar[name]
		if !s.st.hasLower(v) || !s.st.hasUpper(v) {
			s.addSlackVariableBound(v)
		}
	}

	// Do the search with restarts.
	for s.status == Unknown {
		s.status = s.search()
		s.Stats.ArenaCapacity = s.cm.capacity()
		s.Stats.ArenaSize = s.cm.size()
		s.Stats.ArenaWasted = s.cm.wasted
		if s.verbosity >= VerbosityBasic {
			traceLog.Infof("restart statistics:\n%s", s.Stats.String())
		}
		s.Stats.NbRestarts++
		s.restartHeuristic.restart()
		s.removalHeuristic.restart()
	}

	if s.status != Sat {
		s.backtrack(-1)
	} else if s.checkModel {
		s.verifyModel()
	}

	return s.status
}

// search runs the cut-and-search loop until an answer or a restart.
func (s *Solver) search() Status {
	for s.status != Unsat {
		// Propagate as much as possible.
		s.propagate()

		if s.st.inConflict {
			s.Stats.NbConflicts++
			s.restartHeuristic.conflict()
			s.removalHeuristic.conflict()
			if s.verbosity >= VerbosityExtreme {
				traceLog.Infof("conflict at level %d: %s", s.st.trail.decisionLevel(), s.st.trailString())
			}

			// A conflict at decision level 0 means the problem is unsat.
			if s.st.isSafe() {
				if s.verbosity >= VerbosityBasic {
					traceLog.Info("conflict at level 0")
				}
				return Unsat
			}
			s.analyzeConflict()
			if s.status != Unsat {
				// Constraints attached at higher levels may still be
				// propagating after the backtrack.
				s.props.repropagate()
				s.decayActivities()
			}
			continue
		}

		if s.restartHeuristic.decide() {
			s.backtrack(s.st.safeIndex())
			s.props.repropagate()
			return Unknown
		}
		if s.st.trail.decisionLevel() == 0 {
			s.simplifyConstraintDatabase()
			if s.status != Unknown {
				return s.status
			}
		}
		if s.removalHeuristic.decide() {
			s.reduceConstraintDatabase()
		}

		// Select the next variable and branch on it.
		var decisionVar Var
		if s.slackVar != VarNull && !s.st.isAssigned(s.slackVar) {
			decisionVar = s.slackVar
		} else {
			decisionVar = s.st.decideVariable()
		}
		if decisionVar == VarNull {
			// All variables are assigned.
			return Sat
		}

		s.computeBounds(decisionVar)
		// If the variable has no bounds at all, introduce them.
		if !s.st.hasLower(decisionVar) && !s.st.hasUpper(decisionVar) {
			s.addSlackVariableBound(decisionVar)
			s.computeBounds(decisionVar)
		}
		// The sweep may have assigned the variable or found a conflict.
		if s.st.inConflict || s.st.isAssigned(decisionVar) {
			continue
		}
		// Initialize the phase from the occurrence balance (non-boolean
		// variables only).
		if !s.isBoolean(decisionVar) {
			phase := s.cm.occCount(decisionVar, false) >= s.cm.occCount(decisionVar, true)
			s.st.setPhase(decisionVar, phase)
		}
		s.Stats.NbDecisions++
		s.st.decideValue(decisionVar)
	}

	return s.status
}

func (s *Solver) decayActivities() {
	s.st.decayActivities()
	s.constraintInc *= s.constraintDecay
}

// bumpConstraint raises the score of a learnt constraint, rescaling the
// whole database when the scores grow too large.
func (s *Solver) bumpConstraint(h Handle) {
	c := s.cm.get(h)
	if !c.learnt {
		return
	}
	newValue := c.score + s.constraintInc
	if newValue > 1e20 {
		for _, eh := range s.explanationConstraints {
			ec := s.cm.get(eh)
			ec.score *= 1e-20
		}
		s.constraintInc *= 1e-20
	} else {
		c.score = newValue
	}
}

func (s *Solver) simplifyConstraintDatabase() {
	// Remove satisfied constraints.
}

// reduceConstraintDatabase prunes roughly half the learned explanations by
// lowest score, skipping the ones in use as reasons, and collects garbage
// when half the arena is wasted.
func (s *Solver) reduceConstraintDatabase() {
	sort.Slice(s.explanationConstraints, func(i, j int) bool {
		return s.cm.get(s.explanationConstraints[i]).score < s.cm.get(s.explanationConstraints[j]).score
	})
	j := 0
	size := len(s.explanationConstraints)
	halfSize := size / 2
	for i := 0; i < size; i++ {
		h := s.explanationConstraints[i]
		c := s.cm.get(h)
		if c.deleted {
			continue
		}
		if c.inUse() {
			s.explanationConstraints[j] = h
			j++
			continue
		}
		if i < halfSize {
			s.removeConstraint(h, ClassExplanation)
			s.Stats.NbRemoved++
		} else {
			s.explanationConstraints[j] = h
			j++
		}
	}
	s.explanationConstraints = s.explanationConstraints[:j]

	if 2*s.cm.wasted > s.cm.size() {
		s.collectGarbage()
	}
}

// collectGarbage compacts the arena and rewrites every handle holder
// through the relocation map.
func (s *Solver) collectGarbage() {
	reloc := map[Handle]Handle{}

	s.props.cleanAll()

	s.cm.gcBegin()
	s.cm.gcMove(s.problemConstraints, reloc)
	s.cm.gcMove(s.explanationConstraints, reloc)
	s.cm.gcMove(s.globalCutConstraints, reloc)
	s.cm.gcEnd()

	s.st.gcUpdate(reloc)
	s.props.gcUpdate(reloc)

	if s.slackVar != VarNull {
		for i := range s.slackLower {
			if s.slackLower[i] != HandleNull {
				s.slackLower[i] = relocate(s.slackLower[i], reloc)
			}
			if s.slackUpper[i] != HandleNull {
				s.slackUpper[i] = relocate(s.slackUpper[i], reloc)
			}
		}
	}
}

// isSatisfied evaluates the constraint under the current full assignment.
func (s *Solver) isSatisfied(h Handle) bool {
	c := s.cm.get(h)
	switch c.kind {
	case ConstraintClause:
		for _, l := range c.lits {
			if s.st.litBoolValue(l) == 1 {
				return true
			}
		}
		return false
	case ConstraintCard:
		trueCount := 0
		for _, l := range c.lits {
			if s.st.litBoolValue(l) == 1 {
				trueCount++
			}
		}
		return int64(trueCount) >= c.constant.Int64()
	default:
		sum := new(big.Int)
		for _, l := range c.lits {
			sum.Add(sum, l.intValue(s.st.value(l.V)))
		}
		return sum.Cmp(c.constant) >= 0
	}
}

// verifyModel evaluates every problem constraint under the final
// assignment.
func (s *Solver) verifyModel() {
	ok := true
	for _, h := range s.problemConstraints {
		if s.cm.get(h).deleted {
			continue
		}
		if !s.isSatisfied(h) {
			ok = false
			traceLog.Errorf("constraint not satisfied: %s", s.constraintString(h))
		}
	}
	if !ok {
		panic("model verification failed")
	}
	if s.verbosity >= VerbosityBasic {
		traceLog.Info("all constraints satisfied")
	}
}

func (s *Solver) constraintString(h Handle) string {
	c := s.cm.get(h)
	res := c.kind.String() + "["
	for i, l := range c.lits {
		if i > 0 {
			res += " + "
		}
		res += fmt.Sprintf("%v*%s", l.Coef, s.st.varName(l.V))
	}
	return fmt.Sprintf("%s >= %v]", res, c.constant)
}
