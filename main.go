// Package main is the entry point for the scoreline server and CLI.
package main

import (
	"fmt"
	"os"

	"scoreline/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
