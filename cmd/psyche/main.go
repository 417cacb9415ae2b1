package main

import (
	"os"

	"github.com/tessierh/psyche/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
