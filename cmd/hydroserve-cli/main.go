package main

import (
	"os"

	"github.com/hydroserve/hydroserve/cmd/hydroserve-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
