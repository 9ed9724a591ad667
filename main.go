// Package main provides the entry point for v3dqpu.
// v3dqpu is an assembler for the VideoCore VI QPU found in the Raspberry Pi 4.
//
// For the full CLI, use: go run ./cmd/v3dasm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("v3dqpu - VideoCore VI QPU assembler")
	fmt.Println("")
	fmt.Println("Usage: v3dasm [--verbose] [--config file] <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  kernels          List the bundled kernels")
	fmt.Println("  dump <kernel>    Print or save a kernel's instruction words")
	fmt.Println("  disasm <image>   Decode a program image")
	fmt.Println("  run <kernel>     Run a kernel (--sim for the simulated device)")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/v3dasm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/v3dasm' instead.")
	}
}
