package solver

// The common propagator contract and the collection dispatching to the three
// engines. Propagators are single-threaded and cooperative: they never
// block, and they report failure to propagate by enqueuing a bound
// refinement that makes the solver state detect the conflict itself.

type propagator interface {
	// addVar makes room in the watch-lists for a new variable.
	addVar(v Var)
	// attach inserts the constraint into the relevant watch-lists; it may
	// immediately enqueue a propagation event.
	attach(h Handle)
	// detach marks the constraint's watch-lists for later cleanup.
	detach(h Handle)
	// onEvent is invoked for every watching constraint; it returns true if
	// the watch should be dropped from the list.
	onEvent(v Var, h Handle, event EventType) bool
	// repropagate re-fires a propagation that may still hold after a
	// backtrack.
	repropagate(h Handle)
	// bound runs the incomplete-propagator sweep for the variable.
	bound(v Var)
	// setPropagationVar tells the propagator which variable the next
	// attach or repropagate must propagate.
	setPropagationVar(v Var)
	// eventList returns the watch list consulted for the event.
	eventList(v Var, event EventType) *watchList
	cleanAll()
	gcUpdate(reloc map[Handle]Handle)
}

// repropInfo remembers a constraint whose attach or propagation extended the
// trail, so it can be re-fired after backtracking past that point.
type repropInfo struct {
	h          Handle
	trailIndex int
	v          Var
}

// propagatorCollection owns the three specialized propagators, indexed by
// constraint kind, and the repropagation bookkeeping.
type propagatorCollection struct {
	cm    *arena
	st    *state
	props [nbConstraintTypes]propagator

	repropList  []repropInfo
	toRepropagate []repropInfo
}

func newPropagatorCollection(cm *arena, st *state) *propagatorCollection {
	pc := &propagatorCollection{cm: cm, st: st}
	pc.props[ConstraintClause] = newClausePropagator(cm, st)
	pc.props[ConstraintCard] = newCardPropagator(cm, st)
	pc.props[ConstraintInt] = newIntPropagator(cm, st)
	return pc
}

func (pc *propagatorCollection) addVar(v Var) {
	for _, p := range pc.props {
		p.addVar(v)
	}
}

func (pc *propagatorCollection) setPropagationVar(v Var) {
	for _, p := range pc.props {
		p.setPropagationVar(v)
	}
}

func (pc *propagatorCollection) cleanAll() {
	for _, p := range pc.props {
		p.cleanAll()
	}
	// No need to clean the repropagation list: its entries are reasons for
	// live bounds and hence cannot be deleted.
}

// attach hands the constraint to its propagator and records a repropagation
// entry if attaching extended the trail.
func (pc *propagatorCollection) attach(h Handle) {
	oldSize := pc.st.trailSize()
	pc.props[h.Kind()].attach(h)
	if oldSize < pc.st.trailSize() {
		pc.repropList = append(pc.repropList, repropInfo{h: h, trailIndex: oldSize, v: pc.st.trail.at(oldSize).v})
	}
}

func (pc *propagatorCollection) detach(h Handle) {
	pc.props[h.Kind()].detach(h)
}

// bound runs every propagator's incomplete bounding sweep on the variable.
func (pc *propagatorCollection) bound(v Var) {
	for _, p := range pc.props {
		p.bound(v)
	}
}

// propagateEvent routes the event to every propagator, in the fixed order
// clause, cardinality, integer. Each propagator filters its own watch list
// in place; on conflict the remaining watches are kept untouched.
func (pc *propagatorCollection) propagateEvent(v Var, event EventType) {
	for _, p := range pc.props {
		list := p.eventList(v, event)
		w := list.watched
		j := 0
		for i := 0; i < len(w); i++ {
			h := w[i]
			if !p.onEvent(v, h, event) {
				w[j] = h
				j++
			}
			if pc.st.inConflict {
				// Copy the remaining watches.
				for i++; i < len(w); i++ {
					w[j] = w[i]
					j++
				}
				break
			}
		}
		list.watched = w[:j]
		if pc.st.inConflict {
			return
		}
	}
}

// cancelUntil moves repropagation entries above the index to the pending
// queue.
func (pc *propagatorCollection) cancelUntil(trailIndex int) {
	for len(pc.repropList) > 0 && pc.repropList[len(pc.repropList)-1].trailIndex > trailIndex {
		pc.toRepropagate = append(pc.toRepropagate, pc.repropList[len(pc.repropList)-1])
		pc.repropList = pc.repropList[:len(pc.repropList)-1]
	}
}

// repropagate first re-asserts popped global bounds, then re-fires every
// pending constraint through its owning propagator. Entries that cannot
// propagate at the current level are re-queued for later.
func (pc *propagatorCollection) repropagate() {
	pc.st.reassertGlobalBounds()

	for len(pc.toRepropagate) > 0 && !pc.st.inConflict {
		oldSize := pc.st.trailSize()
		current := pc.toRepropagate[len(pc.toRepropagate)-1]
		p := pc.props[current.h.Kind()]
		p.setPropagationVar(current.v)
		p.repropagate(current.h)
		if oldSize < pc.st.trailSize() {
			pc.repropList = append(pc.repropList, repropInfo{h: current.h, trailIndex: oldSize, v: pc.st.trail.at(oldSize).v})
		}
		pc.toRepropagate = pc.toRepropagate[:len(pc.toRepropagate)-1]
	}

	// If we got into a conflict we have to try again later.
	for len(pc.toRepropagate) > 0 {
		current := pc.toRepropagate[len(pc.toRepropagate)-1]
		pc.repropList = append(pc.repropList, repropInfo{h: current.h, trailIndex: pc.st.trailSize() - 1, v: current.v})
		pc.toRepropagate = pc.toRepropagate[:len(pc.toRepropagate)-1]
	}
}

func (pc *propagatorCollection) gcUpdate(reloc map[Handle]Handle) {
	for _, p := range pc.props {
		p.gcUpdate(reloc)
	}
	for i := range pc.repropList {
		pc.repropList[i].h = relocate(pc.repropList[i].h, reloc)
	}
	for i := range pc.toRepropagate {
		pc.toRepropagate[i].h = relocate(pc.toRepropagate[i].h, reloc)
	}
}
