package main

import (
	"os"

	"github.com/audt-staking/backend/cmd/stakectl/cli"
)

func main() {
	if err := cli.Setup(); err != nil {
		os.Exit(1)
	}
}
