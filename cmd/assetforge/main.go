package main

import (
	"os"

	"github.com/aescanero/assetforge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
