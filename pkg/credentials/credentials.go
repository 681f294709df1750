// Package credentials stores agent platform API keys in credentials.toml.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/serenity/pkg/dotdir"
	"github.com/papercomputeco/serenity/pkg/utils"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// EnvAPIKey overrides any stored key.
	EnvAPIKey = "SERENITY_API_KEY"
)

// Manager manages reading and writing credentials.toml in the .serenity/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .serenity/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Hosts:   make(map[string]HostCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Hosts == nil {
		creds.Hosts = make(map[string]HostCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := utils.WriteFileAtomic(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetKey stores an API key for the given base URL.
func (m *Manager) SetKey(baseURL, key string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.set(baseURL, key)

	return m.Save(creds)
}

// GetKey returns the stored API key for the given base URL.
// Returns an empty string if no key is stored.
func (m *Manager) GetKey(baseURL string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Key(baseURL), nil
}

// Resolve returns the API key to use for baseURL. SERENITY_API_KEY wins over
// the stored key.
func (m *Manager) Resolve(baseURL string) (string, Source, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, SourceEnv, nil
	}

	key, err := m.GetKey(baseURL)
	if err != nil {
		return "", SourceNone, err
	}
	if key == "" {
		return "", SourceNone, nil
	}

	return key, SourceFile, nil
}

// RemoveKey deletes the stored credential for a base URL.
func (m *Manager) RemoveKey(baseURL string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Hosts, hostKey(baseURL))

	return m.Save(creds)
}

// ListHosts returns the base URLs that have stored credentials.
func (m *Manager) ListHosts() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(creds.Hosts))
	for name := range creds.Hosts {
		hosts = append(hosts, name)
	}

	sort.Strings(hosts)

	return hosts, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

func hostKey(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
