package credentials

import "time"

// Source says where a resolved API key came from.
type Source string

const (
	SourceNone Source = ""
	SourceEnv  Source = "env"
	SourceFile Source = "file"
)

// Credentials is the content of credentials.toml. Keys are stored per agent
// platform base URL, so a staging key can sit next to the production one.
type Credentials struct {
	Version int                       `toml:"version"`
	Hosts   map[string]HostCredential `toml:"hosts"`
}

// HostCredential is the API key stored for one base URL.
type HostCredential struct {
	APIKey  string    `toml:"api_key"`
	SavedAt time.Time `toml:"saved_at,omitempty"`
}

// Key returns the key stored for baseURL, or "".
func (c *Credentials) Key(baseURL string) string {
	return c.Hosts[hostKey(baseURL)].APIKey
}

func (c *Credentials) set(baseURL, key string) {
	if c.Hosts == nil {
		c.Hosts = make(map[string]HostCredential)
	}
	c.Hosts[hostKey(baseURL)] = HostCredential{APIKey: key, SavedAt: time.Now().UTC().Truncate(time.Second)}
}
