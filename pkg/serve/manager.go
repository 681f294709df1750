// Package serve tracks the editor bridge started by "serenity serve": a lock
// so only one bridge runs per .serenity/ directory, and a state file other
// commands read to find it.
package serve

import (
	"path/filepath"

	"github.com/papercomputeco/serenity/pkg/dotdir"
)

const (
	stateFileName = "bridge.json"
	lockFileName  = "bridge.lock"
)

// Manager owns the bridge files of one .serenity/ directory.
type Manager struct {
	Dir       string
	StatePath string
	LockPath  string
}

func NewManager(configDir string) (*Manager, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}
	return &Manager{
		Dir:       dir,
		StatePath: filepath.Join(dir, stateFileName),
		LockPath:  filepath.Join(dir, lockFileName),
	}, nil
}
