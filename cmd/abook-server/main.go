// Package main provides the entry point for abook-server.
//
// abook-server authenticates address-book clients, issues session tokens
// and keeps every user's address book in a write-back cache in front of
// the configured store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/infra/buildinfo"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the configuration file",
		EnvVars: []string{"ABOOK_CONFIG"},
	}

	return &cli.App{
		Name:      "abook-server",
		Usage:     "address book session server",
		Version:   buildinfo.String(),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags:     []cli.Flag{configFlag},
		Action: func(c *cli.Context) error {
			return serve(c.Context, c.String("config"))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the server (default)",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return serve(c.Context, c.String("config"))
				},
			},
			{
				Name:      "hash-password",
				Usage:     "print an argon2id password record",
				ArgsUsage: "[password]",
				Description: "Reads the password from the first argument or, when absent, " +
					"from the first line of standard input.",
				Action: hashPassword,
			},
			{
				Name:  "check-config",
				Usage: "validate the configuration and print a summary with secrets masked",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return checkConfig(c.App.Writer, c.String("config"))
				},
			},
		},
	}
}
