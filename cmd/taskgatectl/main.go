package main

import (
	"os"

	"github.com/calebrw/taskgate/cmd/taskgatectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
