package main

import (
	"os"

	"github.com/eodrift/jobtracker/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
