// Command rosie drives the matching engine from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rosie/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
