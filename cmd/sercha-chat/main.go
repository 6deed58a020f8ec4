package main

import (
	"os"

	"github.com/custodia-labs/sercha-chat/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
