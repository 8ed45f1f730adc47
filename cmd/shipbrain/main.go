package main

import (
	"fmt"
	"os"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
