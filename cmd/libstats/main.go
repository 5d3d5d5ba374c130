// Package main is the entry point of the libstats CLI.
package main

import (
	"os"

	"github.com/aca-libraries/libstats/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
