package main

import (
	"os"

	"github.com/wonny/ewindex/cmd/ewi/commands"
)

// main is the entry point for the ewindex CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
