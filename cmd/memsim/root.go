package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "MemSim replays memory access traces through per-core CPU controllers.",
	Long: `MemSim replays memory access traces through a simulated memory ` +
		`front end. Each core owns a CPU controller with a pending request ` +
		`queue and an instruction line buffer, linked to its L1 caches.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}
