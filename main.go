package main

import (
	"os"

	"github.com/forester-mt/forester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
