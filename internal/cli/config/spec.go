package config

import "time"

// DefaultServer is used when neither a flag nor a saved session names one.
const DefaultServer = "http://localhost:21114"

// Credentials is the saved login session.
type Credentials struct {
	Server   string    `yaml:"server"`
	Username string    `yaml:"username,omitempty"`
	Token    string    `yaml:"token,omitempty"`
	SavedAt  time.Time `yaml:"saved_at,omitempty"`
}

// LoggedIn reports whether a token is present.
func (c *Credentials) LoggedIn() bool {
	return c != nil && c.Token != ""
}
