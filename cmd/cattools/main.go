package main

import (
	"os"

	"github.com/cattools/cattools/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
