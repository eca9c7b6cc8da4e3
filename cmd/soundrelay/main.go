// Package main is the entry point for the soundrelay application.
package main

import (
	"os"

	"github.com/jmylchreest/soundrelay/cmd/soundrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
