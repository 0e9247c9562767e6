package main

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/example/scibot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error("scibot failed", "err", err)
		os.Exit(1)
	}
}
