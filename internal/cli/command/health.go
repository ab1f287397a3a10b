package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/cli/connection"
	"github.com/yndnr/abook-go/internal/cli/output"
)

type healthStatus struct {
	Status  string `json:"status" yaml:"status"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Time    string `json:"time,omitempty" yaml:"time,omitempty"`
}

// HealthCommand checks the server's liveness or readiness.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check that the server is up",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ready",
				Usage: "also require the store to be reachable",
			},
		},
		Action: health,
	}
}

func health(c *cli.Context) error {
	s, err := resolveSession(c)
	if err != nil {
		return err
	}
	format, f, err := formatter(c)
	if err != nil {
		return err
	}
	client, err := s.client(false)
	if err != nil {
		return err
	}

	path := "/health"
	if c.Bool("ready") {
		path = "/ready"
	}
	resp, err := client.Get(c.Context, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var status healthStatus
	if err := connection.ParseEnvelope(resp, &status); err != nil {
		return err
	}

	if format == output.FormatTable {
		if status.Version != "" {
			fmt.Fprintf(c.App.Writer, "%s %s (version %s)\n", client.BaseURL(), status.Status, status.Version)
		} else {
			fmt.Fprintf(c.App.Writer, "%s %s\n", client.BaseURL(), status.Status)
		}
		return nil
	}
	return f.Format(c.App.Writer, status)
}
