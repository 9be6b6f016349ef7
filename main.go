package main

import (
	"os"

	"github.com/stasyk411/gbr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
