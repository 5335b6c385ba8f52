package solver

import (
	"fmt"
	"math/big"
	"strings"
)

// Per-variable bound stacks, the numeric bound table, assignment status and
// the decision heuristic live here. The state is also where bound events
// enter the trail and where conflicts (lower > upper) are detected.

// A boundInfo records one refinement of a bound: where the value sits in the
// bound table, which constraint propagated it (HandleNull for global bounds
// and decisions) and the trail index of the refinement.
type boundInfo struct {
	boundIndex int
	trailIndex int
	reason     Handle
}

// findBound returns the position of the last record with trailIndex <= the
// queried index, or -1.
func findBound(info []boundInfo, trailIndex int) int {
	left, right := 0, len(info)
	for left < right {
		middle := (left + right) >> 1
		if trailIndex < info[middle].trailIndex {
			right = middle
		} else {
			left = middle + 1
		}
	}
	return left - 1
}

type varInfo struct {
	status           ValueStatus
	statusTrailIndex int
	lower            []boundInfo
	upper            []boundInfo
}

func (vi *varInfo) statusAt(trailIndex int) ValueStatus {
	if vi.status != Unassigned && trailIndex < vi.statusTrailIndex {
		return Unassigned
	}
	return vi.status
}

func (vi *varInfo) setStatus(status ValueStatus, trailIndex int) {
	vi.status = status
	if status == Unassigned {
		vi.statusTrailIndex = -1
	} else {
		vi.statusTrailIndex = trailIndex
	}
}

type heurInfo struct {
	hasLower bool
	hasUpper bool
	value    float64
}

// reassertInfo remembers a global bound popped on backtrack so it can be
// re-pushed without a reason: global facts must survive backtracking.
type reassertInfo struct {
	v     Var
	kind  EventType
	value *big.Int
}

type state struct {
	cm *arena

	vars      []varInfo
	types     []VarType
	names     []string
	phase     []bool // true = lower, false = upper
	heur      []heurInfo
	heurInc   float64
	heurDecay float64

	// The bound table, addressed by boundInfo.boundIndex. Entries are
	// pushed in trail order and popped in reverse on backtrack, so the
	// table length always equals the trail length.
	bounds []*big.Int

	trail searchTrail

	inConflict  bool
	conflictVar Var

	dynamicOrder bool
	queueDynamic queue
	queueLinear  queue

	reassertList []reassertInfo
}

func newState(cm *arena) *state {
	s := &state{
		cm:           cm,
		heurInc:      1,
		heurDecay:    1.001,
		conflictVar:  VarNull,
		dynamicOrder: true,
	}
	s.queueDynamic = newQueue(func(i, j int) bool {
		hi, hj := &s.heur[i], &s.heur[j]
		if hi.hasLower != hj.hasLower {
			return hi.hasLower
		}
		if hi.hasUpper != hj.hasUpper {
			return hi.hasUpper
		}
		return hi.value > hj.value
	})
	s.queueLinear = newQueue(func(i, j int) bool { return i < j })
	return s
}

func (s *state) nbVars() int {
	return len(s.vars)
}

func (s *state) newVar(v Var, name string, addToQueue bool) {
	for len(s.vars) <= v.ID() {
		s.vars = append(s.vars, varInfo{statusTrailIndex: -1})
		s.types = append(s.types, TypeInt)
		s.names = append(s.names, "")
		s.phase = append(s.phase, true)
		s.heur = append(s.heur, heurInfo{})
	}
	s.types[v.ID()] = v.Type()
	s.names[v.ID()] = name
	if addToQueue {
		s.heur[v.ID()].value = 1.0
		s.queueDynamic.insert(v.ID())
		s.queueLinear.insert(v.ID())
	}
}

func (s *state) varName(v Var) string {
	if v == VarNull {
		return "null"
	}
	return s.names[v.ID()]
}

func (s *state) trailSize() int {
	return s.trail.size()
}

// safeIndex is the last trail index at level 0.
func (s *state) safeIndex() int {
	return s.trail.lastIndexAtLevel(0)
}

// isSafe is true iff no decisions have been made.
func (s *state) isSafe() bool {
	return s.trail.decisionLevel() == 0
}

func (s *state) hasLower(v Var) bool {
	return len(s.vars[v.ID()].lower) > 0
}

func (s *state) hasLowerAt(v Var, trailIndex int) bool {
	info := s.vars[v.ID()].lower
	return len(info) > 0 && info[0].trailIndex <= trailIndex
}

func (s *state) hasUpper(v Var) bool {
	return len(s.vars[v.ID()].upper) > 0
}

func (s *state) hasUpperAt(v Var, trailIndex int) bool {
	info := s.vars[v.ID()].upper
	return len(info) > 0 && info[0].trailIndex <= trailIndex
}

func (s *state) lowerBound(v Var) *big.Int {
	info := s.vars[v.ID()].lower
	return s.bounds[info[len(info)-1].boundIndex]
}

func (s *state) lowerBoundAt(v Var, trailIndex int) *big.Int {
	info := s.vars[v.ID()].lower
	return s.bounds[info[findBound(info, trailIndex)].boundIndex]
}

func (s *state) upperBound(v Var) *big.Int {
	info := s.vars[v.ID()].upper
	return s.bounds[info[len(info)-1].boundIndex]
}

func (s *state) upperBoundAt(v Var, trailIndex int) *big.Int {
	info := s.vars[v.ID()].upper
	return s.bounds[info[findBound(info, trailIndex)].boundIndex]
}

func (s *state) lowerReason(v Var) Handle {
	info := s.vars[v.ID()].lower
	return info[len(info)-1].reason
}

func (s *state) lowerReasonAt(v Var, trailIndex int) Handle {
	info := s.vars[v.ID()].lower
	return info[findBound(info, trailIndex)].reason
}

func (s *state) upperReason(v Var) Handle {
	info := s.vars[v.ID()].upper
	return info[len(info)-1].reason
}

func (s *state) upperReasonAt(v Var, trailIndex int) Handle {
	info := s.vars[v.ID()].upper
	return info[findBound(info, trailIndex)].reason
}

func (s *state) lowerTrailIndex(v Var) int {
	info := s.vars[v.ID()].lower
	if len(info) == 0 {
		return -1
	}
	return info[len(info)-1].trailIndex
}

func (s *state) lowerTrailIndexAt(v Var, trailIndex int) int {
	info := s.vars[v.ID()].lower
	i := findBound(info, trailIndex)
	if i < 0 {
		return -1
	}
	return info[i].trailIndex
}

func (s *state) upperTrailIndex(v Var) int {
	info := s.vars[v.ID()].upper
	if len(info) == 0 {
		return -1
	}
	return info[len(info)-1].trailIndex
}

func (s *state) upperTrailIndexAt(v Var, trailIndex int) int {
	info := s.vars[v.ID()].upper
	i := findBound(info, trailIndex)
	if i < 0 {
		return -1
	}
	return info[i].trailIndex
}

func (s *state) valueStatus(v Var) ValueStatus {
	return s.vars[v.ID()].status
}

func (s *state) valueStatusAt(v Var, trailIndex int) ValueStatus {
	return s.vars[v.ID()].statusAt(trailIndex)
}

func (s *state) isAssigned(v Var) bool {
	return s.vars[v.ID()].status != Unassigned
}

func (s *state) isAssignedAt(v Var, trailIndex int) bool {
	return s.vars[v.ID()].statusAt(trailIndex) != Unassigned
}

// isDecided is true iff the variable's current value came from a decision.
func (s *state) isDecided(v Var) bool {
	switch s.vars[v.ID()].status {
	case AssignedToLower, AssignedToUpper:
		return true
	}
	return false
}

func (s *state) assignmentIndex(v Var) int {
	return s.vars[v.ID()].statusTrailIndex
}

// value returns the current value of an assigned variable.
func (s *state) value(v Var) *big.Int {
	vi := &s.vars[v.ID()]
	if vi.status == AssignedToLower {
		return s.bounds[vi.lower[len(vi.lower)-1].boundIndex]
	}
	return s.bounds[vi.upper[len(vi.upper)-1].boundIndex]
}

func (s *state) valueAt(v Var, trailIndex int) *big.Int {
	vi := &s.vars[v.ID()]
	if vi.statusAt(trailIndex) == AssignedToLower {
		return s.lowerBoundAt(v, trailIndex)
	}
	return s.upperBoundAt(v, trailIndex)
}

// litValue is the value of a literal of the given constraint kind under the
// current assignment of its variable.
func (s *state) litValue(kind ConstraintType, l Lit) *big.Int {
	if kind == ConstraintInt {
		return l.intValue(s.value(l.V))
	}
	return big.NewInt(int64(l.boolValue(s.value(l.V))))
}

func (s *state) litBoolValue(l Lit) int {
	return l.boolValue(s.value(l.V))
}

func (s *state) litBoolValueAt(l Lit, trailIndex int) int {
	return l.boolValue(s.valueAt(l.V, trailIndex))
}

// lastModificationIndex is the trail index of the variable's most recent
// bound change at or below trailIndex. With includeAssignment false, the
// refinement that completed a decision is skipped.
func (s *state) lastModificationIndex(v Var, trailIndex int, includeAssignment bool) int {
	if !includeAssignment {
		switch s.valueStatusAt(v, trailIndex) {
		case AssignedToLower:
			trailIndex = s.upperTrailIndexAt(v, trailIndex) - 1
		case AssignedToUpper:
			trailIndex = s.lowerTrailIndexAt(v, trailIndex) - 1
		}
	}
	lo := s.lowerTrailIndexAt(v, trailIndex)
	up := s.upperTrailIndexAt(v, trailIndex)
	if lo > up {
		return lo
	}
	return up
}

func (s *state) lastModification(v Var, includeAssignment bool) int {
	top := s.lowerTrailIndex(v)
	if up := s.upperTrailIndex(v); up > top {
		top = up
	}
	return s.lastModificationIndex(v, top, includeAssignment)
}

// Decision queue handling.

func (s *state) inQueue(v Var) bool {
	if s.dynamicOrder {
		return s.queueDynamic.contains(v.ID())
	}
	return s.queueLinear.contains(v.ID())
}

func (s *state) enqueueVar(v Var) {
	if s.dynamicOrder {
		s.queueDynamic.insert(v.ID())
	} else {
		s.queueLinear.insert(v.ID())
	}
}

// decideVariable pops the next undecided variable in the current order, or
// VarNull when none remains.
func (s *state) decideVariable() Var {
	q := &s.queueLinear
	if s.dynamicOrder {
		q = &s.queueDynamic
	}
	for !q.empty() {
		id := q.removeMin()
		v := mkVar(s.types[id], id)
		if !s.isDecided(v) {
			return v
		}
	}
	return VarNull
}

// setHeurBound updates the bounded-ness key of the dynamic order.
func (s *state) setHeurBound(v Var, kind EventType, set bool) {
	if !s.dynamicOrder {
		return
	}
	if kind == LowerRefine {
		s.heur[v.ID()].hasLower = set
	} else {
		s.heur[v.ID()].hasUpper = set
	}
	if s.queueDynamic.contains(v.ID()) {
		s.queueDynamic.update(v.ID())
	}
}

func (s *state) bumpVar(v Var, times float64) {
	if !s.dynamicOrder {
		return
	}
	newValue := s.heur[v.ID()].value + s.heurInc*times
	s.heur[v.ID()].value = newValue
	if s.queueDynamic.contains(v.ID()) {
		s.queueDynamic.update(v.ID())
	}
	if newValue > 1e100 { // Rescaling is needed to avoid overflowing
		for i := range s.heur {
			s.heur[i].value *= 1e-100
		}
		s.heurInc *= 1e-100
	}
}

func (s *state) decayActivities() {
	s.heurInc *= s.heurDecay
}

func (s *state) setPhase(v Var, phase bool) {
	s.phase[v.ID()] = phase
}

// enqueueEvent pushes a bound refinement on the trail and applies it to the
// variable state, detecting assignment and conflict. A HandleNull reason
// marks a global bound or a decision.
func (s *state) enqueueEvent(kind EventType, v Var, newValue *big.Int, reason Handle) {
	// If we are already in conflict, just return.
	if s.inConflict {
		return
	}

	vi := &s.vars[v.ID()]
	trailIndex := s.trail.size()

	if reason != HandleNull {
		s.cm.get(reason).addUser()
	}

	boundIndex := len(s.bounds)
	s.bounds = append(s.bounds, newValue)

	switch kind {
	case LowerRefine:
		first := len(vi.lower) == 0
		s.trail.push(LowerRefine, v, first)
		if first {
			s.setHeurBound(v, LowerRefine, true)
		}
		vi.lower = append(vi.lower, boundInfo{boundIndex: boundIndex, trailIndex: trailIndex, reason: reason})
		if len(vi.upper) > 0 {
			upper := s.bounds[vi.upper[len(vi.upper)-1].boundIndex]
			switch cmp := newValue.Cmp(upper); {
			case cmp == 0 && vi.status == Unassigned:
				vi.setStatus(AssignedEqual, trailIndex)
				s.phase[v.ID()] = false
			case cmp > 0:
				s.inConflict = true
				s.conflictVar = v
			}
		}
	case UpperRefine:
		first := len(vi.upper) == 0
		s.trail.push(UpperRefine, v, first)
		if first {
			s.setHeurBound(v, UpperRefine, true)
		}
		vi.upper = append(vi.upper, boundInfo{boundIndex: boundIndex, trailIndex: trailIndex, reason: reason})
		if len(vi.lower) > 0 {
			lower := s.bounds[vi.lower[len(vi.lower)-1].boundIndex]
			switch cmp := newValue.Cmp(lower); {
			case cmp == 0 && vi.status == Unassigned:
				vi.setStatus(AssignedEqual, trailIndex)
				s.phase[v.ID()] = true
			case cmp < 0:
				s.inConflict = true
				s.conflictVar = v
			}
		}
	default:
		panic("invalid event type")
	}
}

// decideValue assigns the variable to one of its bounds, opening a new
// decision level. The chosen side is implemented by refining the opposite
// bound, which records the assignment and re-enters propagation.
func (s *state) decideValue(v Var) {
	vi := &s.vars[v.ID()]
	s.trail.newDecisionLevel()

	hasLower := s.hasLower(v)
	hasUpper := s.hasUpper(v)
	var chooseLower bool
	switch {
	case hasLower && !hasUpper:
		chooseLower = true
	case !hasLower && hasUpper:
		chooseLower = false
	default:
		chooseLower = s.phase[v.ID()]
	}

	if chooseLower {
		vi.setStatus(AssignedToLower, s.trail.size())
		s.enqueueEvent(UpperRefine, v, s.lowerBound(v), HandleNull)
	} else {
		vi.setStatus(AssignedToUpper, s.trail.size())
		s.enqueueEvent(LowerRefine, v, s.upperBound(v), HandleNull)
	}
}

// undoEvent is the backtrack visitor: it pops the bound record of a single
// trail event and restores the variable state.
func (s *state) undoEvent(elem trailElem) {
	vi := &s.vars[elem.v.ID()]

	switch elem.kind {
	case LowerRefine:
		reason := vi.lower[len(vi.lower)-1].reason
		if reason != HandleNull {
			s.cm.get(reason).removeUser()
		}
		if elem.first {
			s.setHeurBound(elem.v, LowerRefine, false)
		}
		if vi.status != Unassigned {
			justAssigned := vi.statusTrailIndex == vi.lower[len(vi.lower)-1].trailIndex
			if reason == HandleNull {
				// A global bound, unless it was the decision itself;
				// those must be re-asserted after the backtrack.
				if vi.status != AssignedToUpper || !justAssigned {
					s.addToReassertList(elem.v, LowerRefine)
				}
			}
			if justAssigned {
				if !s.inQueue(elem.v) {
					s.enqueueVar(elem.v)
				}
				vi.setStatus(Unassigned, -1)
			}
		} else if reason == HandleNull {
			s.addToReassertList(elem.v, LowerRefine)
		}
		vi.lower = vi.lower[:len(vi.lower)-1]
	case UpperRefine:
		reason := vi.upper[len(vi.upper)-1].reason
		if reason != HandleNull {
			s.cm.get(reason).removeUser()
		}
		if elem.first {
			s.setHeurBound(elem.v, UpperRefine, false)
		}
		if vi.status != Unassigned {
			justAssigned := vi.statusTrailIndex == vi.upper[len(vi.upper)-1].trailIndex
			if reason == HandleNull {
				if vi.status != AssignedToLower || !justAssigned {
					s.addToReassertList(elem.v, UpperRefine)
				}
			}
			if justAssigned {
				if !s.inQueue(elem.v) {
					s.enqueueVar(elem.v)
				}
				vi.setStatus(Unassigned, -1)
			}
		} else if reason == HandleNull {
			s.addToReassertList(elem.v, UpperRefine)
		}
		vi.upper = vi.upper[:len(vi.upper)-1]
	default:
		panic("invalid event type")
	}

	s.bounds = s.bounds[:len(s.bounds)-1]
}

func (s *state) addToReassertList(v Var, kind EventType) {
	var bound *big.Int
	if kind == LowerRefine {
		bound = s.lowerBound(v)
	} else {
		bound = s.upperBound(v)
	}
	s.reassertList = append(s.reassertList, reassertInfo{v: v, kind: kind, value: bound})
}

// cancelUntil backtracks the state to the given trail index.
func (s *state) cancelUntil(trailIndex int) {
	s.trail.cancelUntil(trailIndex, s.undoEvent)
	if s.inConflict {
		if !s.inQueue(s.conflictVar) {
			s.enqueueVar(s.conflictVar)
		}
		s.inConflict = false
	}
}

// reassertGlobalBounds re-pushes the global bounds that were popped by the
// last backtrack, with no reason.
func (s *state) reassertGlobalBounds() {
	for _, info := range s.reassertList {
		if info.kind == LowerRefine {
			if !s.hasLower(info.v) || s.lowerBound(info.v).Cmp(info.value) < 0 {
				s.enqueueEvent(LowerRefine, info.v, info.value, HandleNull)
			}
		} else {
			if !s.hasUpper(info.v) || s.upperBound(info.v).Cmp(info.value) > 0 {
				s.enqueueEvent(UpperRefine, info.v, info.value, HandleNull)
			}
		}
	}
	s.reassertList = s.reassertList[:0]
}

// trailString renders the trail for debugging output.
func (s *state) trailString() string {
	var b strings.Builder
	for i := 0; i < s.trail.size(); i++ {
		elem := s.trail.at(i)
		switch elem.kind {
		case LowerRefine:
			fmt.Fprintf(&b, "[%d:%s>=%v]", i, s.varName(elem.v), s.lowerBoundAt(elem.v, i))
		case UpperRefine:
			fmt.Fprintf(&b, "[%d:%s<=%v]", i, s.varName(elem.v), s.upperBoundAt(elem.v, i))
		}
	}
	return b.String()
}

// gcUpdate rewrites every bound reason through the relocation map.
func (s *state) gcUpdate(reloc map[Handle]Handle) {
	for i := range s.vars {
		vi := &s.vars[i]
		for j := range vi.lower {
			if vi.lower[j].reason != HandleNull {
				vi.lower[j].reason = relocate(vi.lower[j].reason, reloc)
			}
		}
		for j := range vi.upper {
			if vi.upper[j].reason != HandleNull {
				vi.upper[j].reason = relocate(vi.upper[j].reason, reloc)
			}
		}
	}
}
