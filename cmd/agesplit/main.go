// Command agesplit splits contact exports into age-bucketed CSV chunks.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/agesplit/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
