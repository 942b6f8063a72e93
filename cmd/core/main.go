package main

import (
	"os"

	"github.com/JoeShih716/go-bank-ledger/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
