package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Show or update configuration",
		Annotations: map[string]string{skipStore: "true"},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, k := range config.ShowAll(a.cfg) {
				fmt.Fprintf(w, "  %s = %s  %s\n", colorize(styleBold, k.Key), k.Value, colorize(styleMuted, "($"+k.EnvVar+")"))
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := config.SetKey(key, value); err != nil {
				return err
			}
			printSuccess("Set %s = %s", key, value)
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd)
	return cmd
}
