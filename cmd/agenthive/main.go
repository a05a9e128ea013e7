package main

import (
	"os"

	"github.com/agenthive/agenthive/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
