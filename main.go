// Command gophercut solves linear integer arithmetic problems given as
// DIMACS CNF or ILP files.
package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crillab/gophercut/solver"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gophercut [flags] file...",
	Short: "Gophercut is a conflict-driven solver for linear integer arithmetic",
	Long: `Gophercut decides satisfiability of conjunctions of linear integer
inequalities, with clauses and cardinality constraints as specializations.
Problems are read from DIMACS CNF (.cnf) or ILP (.ilp) files.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return errors.Wrap(err, "could not read config")
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := solveFile(path); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.Bool("no-propagation", false, "disable propagation (debugging)")
	flags.Bool("linear-order", false, "use the linear variable order instead of the dynamic one")
	flags.Bool("check-model", false, "verify the model against the problem constraints")
	flags.Bool("fourier-motzkin", false, "try Fourier-Motzkin resolution before dynamic cuts")
	flags.Bool("replace-vars-with-slacks", false, "rewrite each variable x as x+ - x- with x+, x- >= 0")
	flags.Int64("default-bound", -1, "symmetric initial bounds for each variable (-1 for none)")
	flags.Uint64("bound-estimate", 0, "initial lower bound for the global slack variable")
	flags.Count("verbose", "increase verbosity (repeatable)")
	flags.Bool("model", false, "print the model when satisfiable")
	flags.Bool("stats", false, "print solving statistics")
	flags.Bool("parse-only", false, "stop after parsing")
	flags.String("expect", "", "expected answer (sat or unsat); mismatch exits non-zero")
	flags.StringSlice("trace", nil, "trace tags to enable")
	for _, name := range []string{
		"no-propagation", "linear-order", "check-model", "fourier-motzkin",
		"replace-vars-with-slacks", "default-bound", "bound-estimate",
		"verbose", "model", "stats", "parse-only", "expect", "trace",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("gophercut")
	viper.AutomaticEnv()
}

func newSolver() *solver.Solver {
	s := solver.NewSolver()
	s.SetPropagation(!viper.GetBool("no-propagation"))
	s.SetDynamicOrder(!viper.GetBool("linear-order"))
	s.SetCheckModel(viper.GetBool("check-model"))
	s.SetTryFourierMotzkin(viper.GetBool("fourier-motzkin"))
	s.SetReplaceVarsWithSlacks(viper.GetBool("replace-vars-with-slacks"))
	if bound := viper.GetInt64("default-bound"); bound >= 0 {
		s.SetDefaultBound(big.NewInt(bound))
	}
	s.SetBoundEstimate(new(big.Int).SetUint64(viper.GetUint64("bound-estimate")))
	verbosity := viper.GetInt("verbose")
	if verbosity > int(solver.VerbosityExtreme) {
		verbosity = int(solver.VerbosityExtreme)
	}
	s.SetVerbosity(solver.Verbosity(verbosity))
	for _, tag := range viper.GetStringSlice("trace") {
		solver.EnableTrace(tag)
	}
	return s
}

func solveFile(path string) error {
	s := newSolver()
	if err := parse(path, s); err != nil {
		return err
	}
	if viper.GetBool("parse-only") {
		return nil
	}

	result := s.Solve()
	fmt.Println(strings.ToLower(result.String()))

	if result == solver.Sat && viper.GetBool("model") {
		printModel(s)
	}
	if viper.GetBool("stats") {
		fmt.Print(s.Stats.String())
	}

	switch expect := viper.GetString("expect"); expect {
	case "":
	case "sat":
		if result != solver.Sat {
			return errors.Errorf("%s: expected sat, got %v", path, result)
		}
	case "unsat":
		if result != solver.Unsat {
			return errors.Errorf("%s: expected unsat, got %v", path, result)
		}
	default:
		return errors.Errorf("invalid --expect value %q", expect)
	}
	return nil
}

func parse(path string, s *solver.Solver) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open %q", path)
	}
	defer f.Close()
	switch filepath.Ext(path) {
	case ".cnf":
		return errors.Wrapf(solver.ParseCNF(f, s), "could not parse %q", path)
	case ".ilp":
		return errors.Wrapf(solver.ParseILP(f, s), "could not parse %q", path)
	default:
		return errors.Errorf("invalid file format for %q", path)
	}
}

func printModel(s *solver.Solver) {
	names := make([]string, 0, len(s.Vars()))
	for name := range s.Vars() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := s.Vars()[name]
		fmt.Printf("%s = %v\n", name, s.Value(v))
	}
}
