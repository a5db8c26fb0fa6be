package main

import (
	"os"

	"pondwatch/cmd/pondwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
