package solver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCNF(t *testing.T) {
	cnf := `c a trivially unsat problem
p cnf 3 4
1 2 0
-1 2 0
1 -2 0
-1 -2 0
`
	s := NewSolver()
	require.NoError(t, ParseCNF(strings.NewReader(cnf), s))
	assert.Equal(t, Unsat, s.Solve())
}

func TestParseCNFSat(t *testing.T) {
	cnf := `p cnf 3 2
1 -2 3 0
2 0
`
	s := NewSolver()
	s.SetCheckModel(true)
	require.NoError(t, ParseCNF(strings.NewReader(cnf), s))
	assert.Equal(t, Sat, s.Solve())
}

func TestParseCNFErrors(t *testing.T) {
	s := NewSolver()
	assert.Error(t, ParseCNF(strings.NewReader("p dimacs 3 2\n"), s))
	s = NewSolver()
	assert.Error(t, ParseCNF(strings.NewReader("1 2 0\n"), s))
	s = NewSolver()
	assert.Error(t, ParseCNF(strings.NewReader("p cnf 2 1\n1 x 0\n"), s))
}

func TestParseILP(t *testing.T) {
	ilp := `* bounded feasible problem
1 x0 >= 0 ;
-1 x0 >= -10 ;
1 x1 >= 0 ;
-1 x1 >= -10 ;
2 x0 3 x1 >= 4 ;
`
	s := NewSolver()
	s.SetCheckModel(true)
	require.NoError(t, ParseILP(strings.NewReader(ilp), s))
	assert.Equal(t, Sat, s.Solve())
}

func TestParseILPRationalCoefficients(t *testing.T) {
	// 3/2 x0 >= 3 scales to 3 x0 >= 6, so x0 >= 2.
	ilp := `3/2 x0 >= 3 ;
-1 x0 >= -4 ;
`
	s := NewSolver()
	require.NoError(t, ParseILP(strings.NewReader(ilp), s))
	require.Equal(t, Sat, s.Solve())
	x, ok := s.VarByName("x0")
	require.True(t, ok)
	assert.True(t, s.Value(x).Int64() >= 2)
	assert.True(t, s.Value(x).Int64() <= 4)
}

func TestParseILPErrors(t *testing.T) {
	s := NewSolver()
	assert.Error(t, ParseILP(strings.NewReader("1 x0 ;\n"), s))
	s = NewSolver()
	assert.Error(t, ParseILP(strings.NewReader("foo x0 >= 1 ;\n"), s))
	s = NewSolver()
	assert.Error(t, ParseILP(strings.NewReader("1 y3 >= 1 ;\n"), s))
}
