package command

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/cli/connection"
	"github.com/yndnr/abook-go/internal/cli/output"
)

type adminUser struct {
	ID          int64  `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	Active      bool   `json:"active" yaml:"active"`
	Admin       bool   `json:"admin" yaml:"admin"`
	HasPassword bool   `json:"has_password" yaml:"has_password"`
	AddressBook string `json:"address_book" yaml:"address_book"`
}

type adminUsers struct {
	Users []adminUser `json:"users" yaml:"users"`
	Total int         `json:"total" yaml:"total"`
}

type cacheStats struct {
	Tokens                     int     `json:"tokens" yaml:"tokens"`
	Sessions                   int     `json:"sessions" yaml:"sessions"`
	Users                      int     `json:"users" yaml:"users"`
	AddressBooks               int     `json:"address_books" yaml:"address_books"`
	Dirty                      int     `json:"dirty" yaml:"dirty"`
	PendingEvict               int     `json:"pending_evict" yaml:"pending_evict"`
	MaintenanceIntervalSeconds float64 `json:"maintenance_interval_seconds" yaml:"maintenance_interval_seconds"`
}

type flushResult struct {
	Written   int   `json:"written" yaml:"written"`
	Evicted   int   `json:"evicted" yaml:"evicted"`
	ElapsedMS int64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// AdminCommand returns the admin subcommand group. Every subcommand needs
// an admin session.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "server administration",
		Subcommands: []*cli.Command{
			{
				Name:   "users",
				Usage:  "list users",
				Action: adminListUsers,
			},
			{
				Name:   "stats",
				Usage:  "show cache occupancy",
				Action: adminStats,
			},
			{
				Name:   "flush",
				Usage:  "write dirty address books to the store now",
				Action: adminFlush,
			},
		},
	}
}

func adminListUsers(c *cli.Context) error {
	var result adminUsers
	format, f, err := adminCall(c, http.MethodGet, "/admin/v1/users", &result)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return f.Format(c.App.Writer, result)
	}

	table := &output.Table{
		Headers: []string{"ID", "USERNAME", "ACTIVE", "ADMIN", "PASSWORD", "BOOK BYTES"},
	}
	for _, u := range result.Users {
		table.AddRow(
			strconv.FormatInt(u.ID, 10),
			u.Username,
			strconv.FormatBool(u.Active),
			strconv.FormatBool(u.Admin),
			strconv.FormatBool(u.HasPassword),
			strconv.Itoa(len(u.AddressBook)),
		)
	}
	if err := table.Render(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d users\n", result.Total)
	return nil
}

func adminStats(c *cli.Context) error {
	var result cacheStats
	_, f, err := adminCall(c, http.MethodGet, "/admin/v1/cache/stats", &result)
	if err != nil {
		return err
	}
	return f.Format(c.App.Writer, result)
}

func adminFlush(c *cli.Context) error {
	var result flushResult
	format, f, err := adminCall(c, http.MethodPost, "/admin/v1/cache/flush", &result)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		fmt.Fprintf(c.App.Writer, "Flushed %d address books, evicted %d (%d ms)\n",
			result.Written, result.Evicted, result.ElapsedMS)
		return nil
	}
	return f.Format(c.App.Writer, result)
}

// adminCall performs an authenticated admin request and decodes the
// envelope data into target.
func adminCall(c *cli.Context, method, path string, target any) (output.Format, output.Formatter, error) {
	s, err := resolveSession(c)
	if err != nil {
		return "", nil, err
	}
	format, f, err := formatter(c)
	if err != nil {
		return "", nil, err
	}
	client, err := s.client(true)
	if err != nil {
		return "", nil, err
	}

	var resp *http.Response
	if method == http.MethodPost {
		resp, err = client.Post(c.Context, path, nil)
	} else {
		resp, err = client.Get(c.Context, path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseEnvelope(resp, target); err != nil {
		return "", nil, err
	}
	return format, f, nil
}
