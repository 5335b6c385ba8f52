package solver

// Watch-lists subscribe constraints to bound-refinement events. Each
// (variable, event-kind) pair has one list of handles; a handle's polarity
// flag tells the owning propagator which side of the literal is watched.
// Removal is deferred: a list is only swept of deleted entries when it is
// next read.

type watchList struct {
	needsCleanup bool
	watched      []Handle
}

func (w *watchList) push(h Handle, positive bool) {
	if positive {
		w.watched = append(w.watched, h.ClearFlag())
	} else {
		w.watched = append(w.watched, h.SetFlag())
	}
}

// clean sweeps the deleted constraints out of the list.
func (w *watchList) clean(a *arena) {
	j := 0
	for _, h := range w.watched {
		c := a.get(h)
		if !c.deleted {
			w.watched[j] = h
			j++
		} else if c.inUse() {
			panic("deleted constraint still in use")
		}
	}
	w.watched = w.watched[:j]
	w.needsCleanup = false
}

type watchManager struct {
	lists []watchList
	cm    *arena
}

func newWatchManager(cm *arena) watchManager {
	return watchManager{cm: cm}
}

func (m *watchManager) addVar(v Var) {
	needed := (v.ID() + 1) * int(nbEventTypes)
	for len(m.lists) < needed {
		m.lists = append(m.lists, watchList{})
	}
}

// get returns the watch list for the pair, sweeping it first if needed.
func (m *watchManager) get(v Var, event EventType) *watchList {
	list := &m.lists[v.ID()*int(nbEventTypes)+int(event)]
	if list.needsCleanup {
		list.clean(m.cm)
	}
	return list
}

// markCleanup defers removal of deleted entries until the next read.
func (m *watchManager) markCleanup(v Var, event EventType) {
	m.lists[v.ID()*int(nbEventTypes)+int(event)].needsCleanup = true
}

func (m *watchManager) cleanAll() {
	for i := range m.lists {
		if m.lists[i].needsCleanup {
			m.lists[i].clean(m.cm)
		}
	}
}

// gcUpdate rewrites every handle through the relocation map, preserving
// polarity flags.
func (m *watchManager) gcUpdate(reloc map[Handle]Handle) {
	for i := range m.lists {
		list := &m.lists[i]
		if list.needsCleanup {
			panic("gc on dirty watch list")
		}
		for j, h := range list.watched {
			list.watched[j] = relocate(h, reloc)
		}
	}
}
