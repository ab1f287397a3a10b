// Package main provides the entry point for abook-cli.
//
// abook-cli logs in to abook-server, reads and replaces the caller's
// address book and runs the admin operations.
package main

import (
	"os"

	"github.com/yndnr/abook-go/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
