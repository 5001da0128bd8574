// Command ld is the driver for the i386 static linker: it parses flags,
// feeds input files to internal/link, and writes the resulting ELF32
// executable (spec.md §6).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
