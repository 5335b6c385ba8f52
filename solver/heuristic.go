package solver

const (
	restartBase = 2  // The base of the luby sequence powers.
	restartInit = 50 // The initial number of conflicts for the restart.

	removalFactorInit     = 1.0 // The initial removal factor.
	removalFactorIncrease = 1.0 // The increase of the factor over time.
	removalAdjustInit     = 100 // Number of conflicts before we first adjust the factor.
	removalAdjustIncrease = 1.1 // The increase of the adjustment interval.
)

// lubyRestart decides restarts: after k restarts the conflict budget is
// restartInit times the k-th element of the Luby sequence scaled by
// restartBase.
type lubyRestart struct {
	restartsCount  int
	conflictsCount int
	conflictsLimit int
}

func newLubyRestart() lubyRestart {
	return lubyRestart{conflictsLimit: restartInit}
}

func (l *lubyRestart) conflict() {
	l.conflictsCount++
}

func (l *lubyRestart) restart() {
	l.restartsCount++
	l.conflictsCount = 0
	l.conflictsLimit = restartInit * int(luby(uint(l.restartsCount)))
}

func (l *lubyRestart) decide() bool {
	return l.conflictsCount > l.conflictsLimit
}

// explanationRemoval decides when to prune the learned-explanation database:
// when the number of explanations reaches a slowly growing multiple of the
// problem size plus twice the number of variables.
type explanationRemoval struct {
	stats          *Stats
	factor         float64
	adjust         int
	conflictsCount int
}

func newExplanationRemoval(stats *Stats) explanationRemoval {
	return explanationRemoval{
		stats:  stats,
		factor: removalFactorInit,
		adjust: removalAdjustInit,
	}
}

func (e *explanationRemoval) conflict() {
	e.conflictsCount++
	if e.conflictsCount == e.adjust {
		e.conflictsCount = 0
		e.factor += removalFactorIncrease
		e.adjust = int(float64(e.adjust) * removalAdjustIncrease)
	}
}

func (e *explanationRemoval) restart() {}

func (e *explanationRemoval) decide() bool {
	return float64(e.stats.NbExplanations) >=
		float64(e.stats.NbProblemConstraints)*e.factor+2*float64(e.stats.NbVariables)
}
