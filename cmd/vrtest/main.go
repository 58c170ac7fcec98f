// Command vrtest is the CLI surface for the visual regression engine:
// it wires the capture, diff, baseline, vision, and runner packages
// together behind a small Cobra command tree.
package main

import (
	"os"

	"github.com/vrtest-dev/vrtest/cmd/vrtest/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
