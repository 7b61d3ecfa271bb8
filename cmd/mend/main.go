// Package main is the entry point for the mend failure telemetry service
// and its local monitoring CLI.
package main

import (
	"os"

	"mend-go/cmd/mend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
