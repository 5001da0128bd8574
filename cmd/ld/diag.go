package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	errPrefix  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnPrefix = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// fatal prints a red "ld: error:" diagnostic to stderr and exits 1. Every
// error surfaced by internal/link is fatal to the link (spec.md §7: "all
// errors are fatal ... no recovery or retry is attempted").
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errPrefix("ld: error:"), err)
	os.Exit(1)
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warnPrefix("ld: warning:"), fmt.Sprintf(format, args...))
}
