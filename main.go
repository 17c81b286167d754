package main

import (
	"os"

	"github.com/lguibr/kamaelia/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
