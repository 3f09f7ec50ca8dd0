package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/pattern"
)

var (
	checkPatternFiles []string
	checkEngine       string
	checkSyntax       string
	checkNoGNU        bool
	checkIgnoreCase   bool
)

var checkCmd = &cobra.Command{
	Use:   "check [PATTERN...]",
	Short: "Check that patterns compile with an engine",
	Long: `Compile every pattern on its own and report the ones the engine rejects.

Patterns come from the arguments and from --file. The exit status is 1 when
any pattern fails to compile.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringArrayVarP(&checkPatternFiles, "file", "f", nil, "Read patterns from `FILE`")
	checkCmd.Flags().StringVar(&checkEngine, "engine", matcher.EngineAuto, "Matching engine: auto, hyperscan, portable")
	checkCmd.Flags().StringVar(&checkSyntax, "syntax", "basic", "Pattern syntax: basic, extended, perl")
	checkCmd.Flags().BoolVar(&checkNoGNU, "no-gnu", false, "Do not rewrite GNU word boundaries")
	checkCmd.Flags().BoolVarP(&checkIgnoreCase, "ignore-case", "i", false, "Compile patterns caseless")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(checkPatternFiles) == 0 {
		return usageError("no patterns given")
	}
	syn, err := pattern.ParseSyntax(checkSyntax)
	if err != nil {
		return usageError("%w", err)
	}

	entries, err := pattern.Collect(args, checkPatternFiles)
	if err != nil {
		return &exitError{code: exitTrouble, err: err}
	}
	entries, err = pattern.Convert(entries, pattern.Options{Syntax: syn, NoGNU: checkNoGNU, Caseless: checkIgnoreCase})
	if err != nil {
		return &exitError{code: exitTrouble, err: err}
	}

	eng, err := matcher.New(checkEngine, matcher.WithLogger(newLogger(cmd.ErrOrStderr())))
	if err != nil {
		return usageError("%w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Engine: %s\n", eng.Name())

	failed := 0
	for i, c := range matcher.Check(eng, pattern.Specs(entries)) {
		label := entries[i].Label()
		if c.OK() {
			fmt.Fprintf(out, "  ok    [%d] %s\n", c.Pattern.ID, label)
			continue
		}
		failed++
		fmt.Fprintf(out, "  FAIL  [%d] %s: %v\n", c.Pattern.ID, label, c.Err)
	}
	fmt.Fprintf(out, "%d of %d patterns compiled\n", len(entries)-failed, len(entries))

	if failed > 0 {
		return &exitError{code: exitNoMatch}
	}
	return nil
}
