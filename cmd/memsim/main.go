// Package main provides the entry point for MemSim, a cycle-accurate model
// of the per-core memory front end of a multi-core CPU, built on Akita.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
