package main

import (
	"os"

	"github.com/bdlm/log"

	"github.com/roach88/rsparser/internal/cli"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		ForceTTY: true,
	})

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
