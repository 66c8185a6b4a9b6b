package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"constvm/internal/driver"
	"constvm/internal/mir"
	"constvm/internal/types"
)

var evalCmd = &cobra.Command{
	Use:   "eval [flags] module.cvm",
	Short: "Evaluate every constant in a serialized module",
	Long:  `Eval decodes a serialized IR module, validates it and evaluates each constant definition to its final value`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().Bool("trace", false, "log every executed statement and terminator to stderr")
	evalCmd.Flags().Bool("trees", false, "also print each constant's value tree where its type has one")
	evalCmd.Flags().Int("jobs", 0, "max parallel evaluations (0 = number of CPUs)")
	evalCmd.Flags().String("config", "", "TOML file with evaluation limits")
}

var (
	constNameColor = color.New(color.FgCyan, color.Bold)
	faultColor     = color.New(color.FgRed, color.Bold)
)

func runEval(cmd *cobra.Command, args []string) error {
	if err := applyColorMode(cmd); err != nil {
		return err
	}

	trace, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return err
	}
	trees, err := cmd.Flags().GetBool("trees")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	var cfg evalConfig
	if configPath != "" {
		cfg, err = loadEvalConfig(configPath)
		if err != nil {
			return err
		}
	}
	if jobs == 0 {
		jobs = cfg.Eval.Jobs
	}

	module, typesIn, err := decodeModuleFile(args[0])
	if err != nil {
		return err
	}

	opts := driver.Options{
		Limits:      cfg.limits(),
		Jobs:        jobs,
		TagPointers: cfg.Eval.TagPointers,
		Trees:       trees,
	}
	if trace {
		opts.Trace = os.Stderr
	}

	results, err := driver.EvalModule(cmd.Context(), module, typesIn, opts)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "module defines no constants")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "%s = %s\n", constNameColor.Sprint(r.Def.Name), faultColor.Sprint(r.Err.Code))
			fmt.Fprint(os.Stderr, r.Err.Format())
			continue
		}
		fmt.Fprintf(out, "%s = %s\n", constNameColor.Sprint(r.Def.Name), r.Value)
		if r.HasTree {
			fmt.Fprintf(out, "  tree: %s\n", r.Tree)
		}
	}

	if n := driver.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d constants failed to evaluate", n, len(results))
	}
	return nil
}

// decodeModuleFile reads a serialized module and rebuilds its type
// environment.
func decodeModuleFile(path string) (*mir.Module, *types.Interner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open module: %w", err)
	}
	defer f.Close()
	return mir.DecodeModule(f)
}
