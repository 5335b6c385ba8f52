// Package solver provides a conflict-driven solver for linear integer
// arithmetic: given integer variables and a conjunction of inequalities
// a1*x1 + ... + an*xn >= c (with clauses and cardinality constraints as
// specializations), it decides satisfiability and produces a model.
//
// The search generalizes CDCL from booleans to bounded integers. Bound
// refinements are recorded on a trail; three specialized propagators
// (2-watched-literal clauses, k+1-watched cardinality constraints and
// bound-based integer constraints) react to trail events through per-variable
// watch-lists. A conflict, i.e. a variable whose lower bound exceeds its
// upper bound, is resolved by combining the two responsible constraints,
// lifting them into tightly propagating form via coefficient-divisibility
// reasoning when plain Fourier-Motzkin resolution is not conflicting. The
// learned cut is asserted, the search backtracks and resumes.
//
// Typical use:
//
//	s := solver.NewSolver()
//	x := s.NewVar(solver.TypeInt, "x")
//	y := s.NewVar(solver.TypeInt, "y")
//	s.SetLower(x, big.NewInt(0))
//	s.SetUpper(x, big.NewInt(10))
//	s.SetLower(y, big.NewInt(0))
//	s.SetUpper(y, big.NewInt(10))
//	s.AssertInteger([]solver.Lit{
//		solver.IntLit(big.NewInt(2), x),
//		solver.IntLit(big.NewInt(3), y),
//	}, big.NewInt(4))
//	if s.Solve() == solver.Sat {
//		fmt.Println(s.Value(x), s.Value(y))
//	}
//
// All coefficients and bounds are exact arbitrary-precision integers.
// The solver is single-threaded; a Solver must not be shared between
// goroutines.
package solver
