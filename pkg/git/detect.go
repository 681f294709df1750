// Package git detects the repository a command runs in, so published turn
// events can be grouped by project.
package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const detectTimeout = 5 * time.Second

// Root returns the top-level directory of the git repository containing dir,
// or "" when dir is not inside one or git is not installed.
func Root(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// RepoName returns the base name of the repository containing the working
// directory, falling back to the base name of the working directory itself.
func RepoName() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	if top := Root(context.Background(), wd); top != "" {
		return filepath.Base(top)
	}
	return filepath.Base(wd)
}
