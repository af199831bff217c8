// Package main provides a pointer to the MemSim command line tool.
//
// For the full CLI, use: go run ./cmd/memsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("MemSim - per-core memory front end simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: memsim run [options] <trace>...")
	fmt.Println("       memsim config [path]")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/memsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/memsim' instead.")
	}
}
