package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/papercomputeco/serenity/pkg/utils"
)

const stateVersion = 1

// State describes a running bridge.
type State struct {
	Version   int       `json:"version"`
	PID       int       `json:"pid"`
	Listen    string    `json:"listen"`
	URL       string    `json:"url"`
	Agent     string    `json:"agent"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alive reports whether the process recorded in s still exists.
func (s *State) Alive() bool {
	if s == nil || s.PID <= 0 {
		return false
	}
	return syscall.Kill(s.PID, 0) == nil
}

// Uptime is how long the bridge has run at now, to the second.
func (s *State) Uptime(now time.Time) time.Duration {
	if s == nil || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt).Round(time.Second)
}

// LoadState returns the recorded bridge state, or nil when none is recorded.
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.StatePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading bridge state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.StatePath, err)
	}
	return &state, nil
}

// SaveState stamps state with the schema version and update time and writes
// it atomically.
func (m *Manager) SaveState(state *State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}
	if state.Version == 0 {
		state.Version = stateVersion
	}
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bridge state: %w", err)
	}
	if err := utils.WriteFileAtomic(m.StatePath, data, 0o600); err != nil {
		return fmt.Errorf("saving bridge state: %w", err)
	}
	return nil
}

// ClearState removes the state file. A missing file is not an error.
func (m *Manager) ClearState() error {
	err := os.Remove(m.StatePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing bridge state: %w", err)
	}
	return nil
}
