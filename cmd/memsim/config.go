package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/timing/config"
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Write the default configuration to a JSON file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "memsim.json"
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.DefaultConfig().SaveConfig(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)

		return nil
	},
}
