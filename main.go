package main

import (
	"os"

	"github.com/jcallum/medley/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		os.Exit(1)
	}
}
