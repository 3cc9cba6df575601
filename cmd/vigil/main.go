// Package main is the entry point for the vigil CLI.
package main

import (
	"os"

	"github.com/mrz1836/vigil/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
