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

// ParseILP reads a simple ILP text format: one constraint per line,
//
//	c0 x0 c1 x1 ... >= rhs ;
//
// with '*' starting a comment and 'min:' lines ignored (optimisation is not
// supported). Coefficients may be rationals like 3/2; a line with rational
// coefficients is scaled by the lcm of the denominators before it reaches
// the core, so the solver only ever sees exact integers.
func ParseILP(r io.Reader, s *Solver) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var vars []Var
	makeVars := func(n int) {
		for len(vars) < n {
			vars = append(vars, s.NewVar(TypeInt, fmt.Sprintf("x%d", len(vars))))
		}
	}

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.HasPrefix(line, "min") {
			continue
		}

		fields := strings.Fields(strings.TrimSpace(strings.TrimSuffix(line, ";")))
		var coefs []*big.Rat
		var lineVars []Var
		var rhs *big.Rat
		i := 0
		for i < len(fields) {
			if fields[i] == ">=" {
				if i+1 >= len(fields) {
					return errors.Errorf("line %d: expected a constant after >=", lineNumber)
				}
				var ok bool
				rhs, ok = new(big.Rat).SetString(fields[i+1])
				if !ok {
					return errors.Errorf("line %d: expected a number, got %q", lineNumber, fields[i+1])
				}
				i += 2
				continue
			}
			coef, ok := new(big.Rat).SetString(fields[i])
			if !ok {
				return errors.Errorf("line %d: expected a number, got %q", lineNumber, fields[i])
			}
			if i+1 >= len(fields) || !strings.HasPrefix(fields[i+1], "x") {
				return errors.Errorf("line %d: expected a variable", lineNumber)
			}
			id, err := strconv.Atoi(fields[i+1][1:])
			if err != nil || id < 0 {
				return errors.Errorf("line %d: expected a variable, got %q", lineNumber, fields[i+1])
			}
			makeVars(id + 1)
			coefs = append(coefs, coef)
			lineVars = append(lineVars, vars[id])
			i += 2
		}
		if rhs == nil {
			return errors.Errorf("line %d: expected a relation symbol", lineNumber)
		}

		// Scale the whole line to integers: multiply by the lcm of the
		// denominators. This keeps the core exact regardless of how the
		// input was written.
		scale := big.NewInt(1)
		for _, c := range coefs {
			scale = bigLcm(scale, c.Denom())
		}
		scale = bigLcm(scale, rhs.Denom())

		lits := make([]Lit, 0, len(coefs))
		for j, c := range coefs {
			scaled := new(big.Int).Mul(c.Num(), new(big.Int).Quo(scale, c.Denom()))
			if scaled.Sign() == 0 {
				continue
			}
			lits = append(lits, IntLit(scaled, lineVars[j]))
		}
		constant := new(big.Int).Mul(rhs.Num(), new(big.Int).Quo(scale, rhs.Denom()))
		if len(lits) == 0 {
			if constant.Sign() > 0 {
				s.status = Unsat
			}
			continue
		}
		s.AssertInteger(lits, constant)
	}
	return errors.Wrap(scanner.Err(), "could not read ILP input")
}
