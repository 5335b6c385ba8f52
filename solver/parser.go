package solver

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseCNF reads a DIMACS CNF problem and asserts it into the solver.
// Boolean variables are integer variables bounded to [0, 1].
func ParseCNF(r io.Reader, s *Solver) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var vars []Var
	makeVars := func(n int) {
		for len(vars) < n {
			v := s.NewVar(TypeInt, fmt.Sprintf("x%d", len(vars)+1))
			s.SetLower(v, big.NewInt(0))
			s.SetUpper(v, big.NewInt(1))
			vars = append(vars, v)
		}
	}

	lineNumber := 0
	headerSeen := false
	var lits []Lit
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}
		if strings.HasPrefix(line, "p") {
			fields := strings.Fields(line)
			if len(fields) != 4 || fields[1] != "cnf" {
				return errors.Errorf("line %d: invalid problem header %q", lineNumber, line)
			}
			nbVars, err := strconv.Atoi(fields[2])
			if err != nil {
				return errors.Wrapf(err, "line %d: invalid variable count", lineNumber)
			}
			makeVars(nbVars)
			headerSeen = true
			continue
		}
		if !headerSeen {
			return errors.Errorf("line %d: clause before problem header", lineNumber)
		}
		for _, field := range strings.Fields(line) {
			val, err := strconv.Atoi(field)
			if err != nil {
				return errors.Wrapf(err, "line %d: invalid literal %q", lineNumber, field)
			}
			if val == 0 {
				s.AssertClause(lits)
				lits = nil
				continue
			}
			negated := val < 0
			if negated {
				val = -val
			}
			makeVars(val)
			lits = append(lits, BoolLit(vars[val-1], negated))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "could not read CNF input")
	}
	if len(lits) > 0 {
		s.AssertClause(lits)
	}
	return nil
}
