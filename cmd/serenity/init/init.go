// Package initcmder provides the init command, which pins serenity settings
// to a project with a local .serenity directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/dotdir"
	"github.com/papercomputeco/serenity/pkg/git"
)

const initLongDesc string = `Initialize a .serenity/ directory for the current project.

The directory is created at the root of the git repository containing the
working directory, or in the working directory itself outside a repository.
Commands run anywhere below it use it instead of ~/.serenity/ for
configuration, credentials and chat history.

A config.toml with default values is written, and a .gitignore keeps API keys,
chat history and logs out of the repository so config.toml can be committed.

Examples:
  serenity init
  serenity init --agent support-bot --explain-agent code-explainer`

const initShortDesc string = "Initialize a project .serenity/ directory"

// gitignore lists what must not be committed from a project directory.
const gitignore = `credentials.toml
history.sqlite*
*.log
bridge.*
`

type initCommander struct {
	agent        string
	explainAgent string
}

func NewInitCmd() *cobra.Command {
	c := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&c.agent, "agent", "a", "", "Default agent for this project")
	cmd.Flags().StringVar(&c.explainAgent, "explain-agent", "", "Agent used by \"serenity explain\" in this project")

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	root := git.Root(ctx, cwd)
	if root == "" {
		root = cwd
	}
	dir := filepath.Join(root, dotdir.DirName)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .serenity directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.NewDefaultConfig()
	cfg.Agents.Default = c.agent
	cfg.Agents.Active = c.agent
	cfg.Agents.ExplainCommand = c.explainAgent
	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Fprintf(out, "Initialized .serenity directory: %s\n", dir)
	return nil
}
