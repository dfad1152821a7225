package main

import (
	"os"

	"github.com/agentgate-oss/agentgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
