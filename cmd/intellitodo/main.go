package main

import (
	"os"

	"github.com/roach88/intellitodo/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
