// ./main.go
package main

import (
	"github.com/cindralabs/riskcore/cmd"
)

// main is the entry point for the riskcore CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
