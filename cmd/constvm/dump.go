package main

import (
	"github.com/spf13/cobra"

	"constvm/internal/mir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] module.cvm",
	Short: "Print a serialized module as readable IR",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("validate", false, "validate the module before printing")
}

func runDump(cmd *cobra.Command, args []string) error {
	validate, err := cmd.Flags().GetBool("validate")
	if err != nil {
		return err
	}
	module, typesIn, err := decodeModuleFile(args[0])
	if err != nil {
		return err
	}
	if validate {
		if err := mir.Validate(module, typesIn); err != nil {
			return err
		}
	}
	return mir.DumpModule(cmd.OutOrStdout(), module, typesIn)
}
