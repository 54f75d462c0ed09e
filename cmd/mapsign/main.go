package main

import (
	"os"

	"github.com/mapsign/mapsign/registry"
)

func main() {
	// commands report their own errors, only the exit code is left to set
	if err := registry.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
