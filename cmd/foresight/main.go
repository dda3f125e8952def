package main

import (
	"os"

	"github.com/foresight-intel/foresight/cmd/foresight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
