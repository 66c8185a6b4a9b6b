// Package main implements the constvm CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"constvm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "constvm",
	Short: "Compile-time constant evaluator",
	Long:  `constvm evaluates constant definitions in serialized IR modules`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
