package solver

import (
	"fmt"
	"strings"
	"time"
)

// Stats are statistics about the resolution of the problem.
// They are provided for information purpose only.
type Stats struct {
	NbDecisions           int // How many decisions were made
	NbVariables           int // How many variables the problem has
	NbConflicts           int // How many conflicts were found during search
	NbAnalysisConflicts   int // How many conflicts were found during conflict analysis
	NbRestarts            int // How many restarts happened
	NbProblemConstraints  int // How many problem constraints are live
	NbExplanations        int // How many explanation constraints are live
	NbGlobalCuts          int // How many global cuts are live
	NbRemoved             int // How many constraints were removed
	NbClauseConstraints   int // How many clause constraints are live
	NbCardConstraints     int // How many cardinality constraints are live
	NbIntConstraints      int // How many integer constraints are live
	NbFourierMotzkinCuts  int // How many Fourier-Motzkin resolutions succeeded
	NbDynamicCuts         int // How many tight-cut resolutions were needed
	ArenaCapacity         int // Allocated arena capacity
	ArenaSize             int // Used arena size
	ArenaWasted           int // Wasted arena size
	Start                 time.Time
}

func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decisions               : %d\n", s.NbDecisions)
	fmt.Fprintf(&b, "Conflicts (search)      : %d\n", s.NbConflicts)
	fmt.Fprintf(&b, "Conflicts (analysis)    : %d\n", s.NbAnalysisConflicts)
	fmt.Fprintf(&b, "Restarts                : %d\n", s.NbRestarts)
	fmt.Fprintf(&b, "Variables               : %d\n", s.NbVariables)
	fmt.Fprintf(&b, "Problem constraints     : %d\n", s.NbProblemConstraints)
	fmt.Fprintf(&b, "Explanations            : %d\n", s.NbExplanations)
	fmt.Fprintf(&b, "Global cuts             : %d\n", s.NbGlobalCuts)
	fmt.Fprintf(&b, "Clause constraints      : %d\n", s.NbClauseConstraints)
	fmt.Fprintf(&b, "Cardinality constraints : %d\n", s.NbCardConstraints)
	fmt.Fprintf(&b, "Integer constraints     : %d\n", s.NbIntConstraints)
	fmt.Fprintf(&b, "Removed constraints     : %d\n", s.NbRemoved)
	fmt.Fprintf(&b, "Fourier-Motzkin cuts    : %d\n", s.NbFourierMotzkinCuts)
	fmt.Fprintf(&b, "Dynamic cuts            : %d\n", s.NbDynamicCuts)
	fmt.Fprintf(&b, "Allocated memory        : %d\n", s.ArenaCapacity)
	fmt.Fprintf(&b, "Used memory             : %d\n", s.ArenaSize)
	fmt.Fprintf(&b, "Wasted memory           : %d\n", s.ArenaWasted)
	fmt.Fprintf(&b, "Elapsed time            : %v\n", time.Since(s.Start))
	return b.String()
}
