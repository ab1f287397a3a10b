package command

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/abook-go/internal/cli/config"
	"github.com/yndnr/abook-go/internal/cli/connection"
	"github.com/yndnr/abook-go/internal/cli/output"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginReply struct {
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
}

type currentUserReply struct {
	Error bool   `json:"error"`
	Name  string `json:"name"`
}

// identity is what login and whoami report.
type identity struct {
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username" yaml:"username"`
}

// LoginCommand logs in and saves the session token.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and save the session",
		Description: "Without --password the password is read from the first line of " +
			"standard input.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "user name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password",
				EnvVars: []string{"ABOOK_PASSWORD"},
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	s, err := resolveSession(c)
	if err != nil {
		return err
	}
	format, f, err := formatter(c)
	if err != nil {
		return err
	}

	password := c.String("password")
	if password == "" {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	client, err := s.client(false)
	if err != nil {
		return err
	}
	resp, err := client.Post(c.Context, "/api/login", loginRequest{
		Username: c.String("username"),
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var reply loginReply
	if err := connection.ParseResponse(resp, &reply); err != nil {
		if connection.IsStatus(err, http.StatusForbidden) {
			return errors.New("login failed: wrong user name or password")
		}
		return err
	}
	if reply.AccessToken == "" {
		return errors.New("login failed: server returned no token")
	}

	creds := &config.Credentials{
		Server:   client.BaseURL(),
		Username: reply.User.Name,
		Token:    reply.AccessToken,
		SavedAt:  time.Now().UTC(),
	}
	if err := config.Save(creds, s.flags.Credentials); err != nil {
		return err
	}

	who := identity{Server: creds.Server, Username: creds.Username}
	if format == output.FormatTable {
		fmt.Fprintf(c.App.Writer, "Logged in to %s as %s\n", who.Server, who.Username)
		return nil
	}
	return f.Format(c.App.Writer, who)
}

// LogoutCommand ends the session on the server and forgets it locally.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "end the session and remove the saved token",
		Action: logout,
	}
}

func logout(c *cli.Context) error {
	s, err := resolveSession(c)
	if err != nil {
		return err
	}
	client, err := s.client(true)
	if err != nil {
		return err
	}

	resp, err := client.Post(c.Context, "/api/logout", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	// A token the server no longer knows is as good as logged out.
	if err := connection.ParseResponse(resp, nil); err != nil && !connection.IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	if s.token == s.creds.Token {
		if err := config.Remove(s.flags.Credentials); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.App.Writer, "Logged out")
	return nil
}

// WhoamiCommand prints the user behind the current session.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "show the logged-in user",
		Action: whoami,
	}
}

func whoami(c *cli.Context) error {
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

	resp, err := client.Post(c.Context, "/api/currentUser", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var reply currentUserReply
	if err := connection.ParseResponse(resp, &reply); err != nil {
		return err
	}

	who := identity{Server: client.BaseURL(), Username: reply.Name}
	if format == output.FormatTable {
		fmt.Fprintln(c.App.Writer, who.Username)
		return nil
	}
	return f.Format(c.App.Writer, who)
}
