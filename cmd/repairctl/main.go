package main

import (
	"os"

	"github.com/bitfantasy/nimo-repair/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
