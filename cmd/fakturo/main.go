// Package main is the entry point for the Fakturo CLI application
package main

import (
	"fmt"
	"os"

	"github.com/fakturo/fakturo/internal/cli"
	"github.com/fakturo/fakturo/pkg/logger"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	defer logger.Sync()

	cli.SetVersionInfo(Version, BuildDate)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
