package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type colorMode string

const (
	colorModeAuto colorMode = "auto"
	colorModeOn   colorMode = "on"
	colorModeOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorModeAuto, nil
	case "on":
		return colorModeOn, nil
	case "off":
		return colorModeOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

// applyColorMode resolves the persistent --color flag and configures
// the global color state accordingly.
func applyColorMode(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	mode, err := readColorMode(value)
	if err != nil {
		return err
	}
	switch mode {
	case colorModeOn:
		color.NoColor = false
	case colorModeOff:
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
	return nil
}
