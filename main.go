package main

import (
	"os"

	"github.com/castellanodev/ragserve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
