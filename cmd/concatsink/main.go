package main

import (
	"os"

	"github.com/lawrencejones/concatsink/cmd/concatsink/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
