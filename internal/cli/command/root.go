package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/cli/config"
	"github.com/yndnr/abook-go/internal/cli/connection"
	"github.com/yndnr/abook-go/internal/cli/output"
	"github.com/yndnr/abook-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "abook-cli",
		Usage:   "address book server command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			AddressBookCommand(),
			AdminCommand(),
			HealthCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server URL (defaults to the saved session's server)",
			EnvVars: []string{"ABOOK_SERVER"},
			Value:   config.DefaultServer,
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "access token (overrides the saved session)",
			EnvVars: []string{"ABOOK_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "credentials",
			Usage:   "credentials file",
			EnvVars: []string{"ABOOK_CREDENTIALS"},
			Value:   config.DefaultPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
	}
}

// GlobalFlags holds the flags every command shares.
type GlobalFlags struct {
	Server      string
	ServerSet   bool
	Token       string
	Credentials string
	Output      string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:      c.String("server"),
		ServerSet:   c.IsSet("server"),
		Token:       c.String("token"),
		Credentials: c.String("credentials"),
		Output:      c.String("output"),
	}
}

// session is the resolved connection target of a command.
type session struct {
	flags  *GlobalFlags
	creds  *config.Credentials
	server string
	token  string
}

// resolveSession merges the flags with the saved credentials. An explicit
// --server wins over the saved one; a saved token is only used against the
// server it was issued by.
func resolveSession(c *cli.Context) (*session, error) {
	flags := ParseGlobalFlags(c)
	creds, err := config.Load(flags.Credentials)
	if err != nil {
		return nil, err
	}

	s := &session{flags: flags, creds: creds, server: flags.Server}
	if !flags.ServerSet && creds.Server != "" {
		s.server = creds.Server
	}

	switch {
	case flags.Token != "":
		s.token = flags.Token
	case creds.LoggedIn() && sameServer(creds.Server, s.server):
		s.token = creds.Token
	}
	return s, nil
}

func sameServer(a, b string) bool {
	return connection.NewHTTPClient(a, "").BaseURL() == connection.NewHTTPClient(b, "").BaseURL()
}

// client returns an HTTP client for the session. With requireToken set, a
// missing token is reported before any request is made.
func (s *session) client(requireToken bool) (*connection.HTTPClient, error) {
	if requireToken && s.token == "" {
		return nil, fmt.Errorf("not logged in to %s; run 'abook-cli login' first", s.server)
	}
	client := connection.NewHTTPClient(s.server, s.token)
	client.SetUserAgent("abook-cli/" + buildinfo.Get().Version)
	return client, nil
}

// formatter returns the formatter chosen by --output.
func formatter(c *cli.Context) (output.Format, output.Formatter, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return "", nil, err
	}
	return format, output.NewFormatter(format), nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
