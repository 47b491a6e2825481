// Command derive applies declarative rule specs to JSON documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/derive/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
