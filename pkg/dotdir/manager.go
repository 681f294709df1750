// Package dotdir resolves the .serenity directory holding config.toml,
// credentials.toml and the local chat history database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the serenity directory.
	DirName = ".serenity"

	// EnvDir names a directory to use when no override is given.
	EnvDir = "SERENITY_DIR"
)

// Manager resolves and creates the serenity directory.
type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{getwd: os.Getwd, homeDir: os.UserHomeDir}
}

// Target returns the absolute path to a .serenity/ directory, creating it
// when missing. The first match wins:
//  1. overrideDir, from --config-dir
//  2. $SERENITY_DIR
//  3. The nearest .serenity/ in the working directory or one of its parents,
//     so a project can pin its own agents
//  4. ~/.serenity/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		dir = os.Getenv(EnvDir)
	}

	if dir == "" {
		home, err := m.homeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		project, err := m.projectDir(home)
		if err != nil {
			return "", err
		}
		dir = project
		if dir == "" {
			dir = filepath.Join(home, DirName)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating serenity directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// File returns the path of name inside the resolved directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// projectDir walks up from the working directory looking for a .serenity/
// directory. The walk stops at home, whose directory is the fallback anyway,
// and returns "" when nothing is found.
func (m *Manager) projectDir(home string) (string, error) {
	cwd, err := m.getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	for dir := cwd; dir != home; {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
