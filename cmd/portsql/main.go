// Package main provides the portsql command.
package main

import (
	"os"

	"github.com/leapstack-labs/portsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
