package main

import (
	"os"

	"github.com/pinger/rstrength/cmd/screener/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
