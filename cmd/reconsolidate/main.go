// Package main provides the entry point for the reconsolidate CLI.
package main

import (
	"os"

	"github.com/openclaw/reconsolidate/cmd/reconsolidate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
