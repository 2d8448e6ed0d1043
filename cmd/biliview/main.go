package main

import (
	"fmt"
	"os"

	"github.com/biliview/biliview/internal/cli"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	cli.RootCmd.Version = Version
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
