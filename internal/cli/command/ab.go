package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/cli/connection"
	"github.com/yndnr/abook-go/internal/cli/output"
)

type abGetReply struct {
	Error     bool   `json:"error" yaml:"-"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
	Data      string `json:"data" yaml:"data"`
}

type abSetRequest struct {
	Data string `json:"data"`
}

// AddressBookCommand returns the ab subcommand group.
func AddressBookCommand() *cli.Command {
	return &cli.Command{
		Name:    "ab",
		Aliases: []string{"addressbook"},
		Usage:   "read or replace your address book",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "print the address book",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "write the address book to this file instead of stdout",
					},
				},
				Action: abGet,
			},
			{
				Name:  "set",
				Usage: "replace the address book",
				Description: "Reads the address book from --file, or from standard input " +
					"when --file is absent or \"-\".",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "read the address book from this file",
					},
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "send the data even if it is not valid JSON",
					},
				},
				Action: abSet,
			},
		},
	}
}

func abGet(c *cli.Context) error {
	s, err := resolveSession(c)
	if err != nil {
		return err
	}
	format, f, err := formatter(c)
	if err != nil {
		return err
	}
	client, err := s.client(true)
	if err != nil {
		return err
	}

	resp, err := client.Post(c.Context, "/api/ab/get", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var reply abGetReply
	if err := connection.ParseResponse(resp, &reply); err != nil {
		return err
	}

	if path := c.String("file"); path != "" {
		if err := os.WriteFile(path, []byte(reply.Data), 0o600); err != nil {
			return fmt.Errorf("write address book: %w", err)
		}
		return nil
	}

	if format == output.FormatTable {
		fmt.Fprintln(c.App.Writer, reply.Data)
		return nil
	}
	return f.Format(c.App.Writer, reply)
}

func abSet(c *cli.Context) error {
	s, err := resolveSession(c)
	if err != nil {
		return err
	}

	data, err := readInput(c, c.String("file"))
	if err != nil {
		return err
	}
	data = strings.TrimRight(data, "\r\n")
	if data == "" {
		return errors.New("address book data is empty")
	}
	if !c.Bool("raw") && !json.Valid([]byte(data)) {
		return errors.New("address book data is not valid JSON (use --raw to send it anyway)")
	}

	client, err := s.client(true)
	if err != nil {
		return err
	}
	resp, err := client.Post(c.Context, "/api/ab", abSetRequest{Data: data})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Address book saved (%d bytes)\n", len(data))
	return nil
}

func readInput(c *cli.Context, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read address book: %w", err)
	}
	return string(data), nil
}
