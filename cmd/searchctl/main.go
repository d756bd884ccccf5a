// Package main is the entry point for the searchctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/searchai/api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
