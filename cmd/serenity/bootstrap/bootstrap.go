// Package bootstrap loads what every serenity command starts from: the layered
// configuration, stored credentials and logger. It builds the API client,
// replay log and recording worker pool from them.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/credentials"
	"github.com/papercomputeco/serenity/pkg/dotdir"
	"github.com/papercomputeco/serenity/pkg/logger"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

// ErrSetupIncomplete is returned by commands that need the agent API before
// an API key and a default agent are stored.
var ErrSetupIncomplete = errors.New("setup incomplete, run serenity setup")

// Env is the resolved environment of one command invocation.
type Env struct {
	// ConfigDir is the --config-dir override, empty for dotdir resolution.
	ConfigDir string

	// Dir is the resolved .serenity/ directory.
	Dir string

	Debug bool

	// Config holds flag, env, config.toml and default values, in that order
	// of precedence.
	Config *config.Config

	// Configer writes config.toml.
	Configer *config.Configer

	Credentials *credentials.Manager

	Logger *slog.Logger
}

// Load resolves the environment of cmd. flagKeys name the registry flags
// cmd registered; they are bound so a set flag wins over env and file values.
func Load(cmd *cobra.Command, flagKeys ...string) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	return &Env{
		ConfigDir:   configDir,
		Dir:         dir,
		Debug:       debug,
		Config:      config.FromViper(v),
		Configer:    cfger,
		Credentials: creds,
		Logger: logger.New(
			logger.WithDebug(debug),
			logger.WithPretty(true),
			logger.WithWriter(cmd.ErrOrStderr()),
		),
	}, nil
}

// APIKey resolves the key for the configured base URL, empty when none is
// stored.
func (e *Env) APIKey() (string, error) {
	key, source, err := e.Credentials.Resolve(e.Config.API.BaseURL)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	if key != "" {
		e.Logger.Debug("using api key", "source", source, "key", credentials.Mask(key))
	}
	return key, nil
}

// Client builds an API client. It needs an API key but no default agent, so
// setup can use it to list agents.
func (e *Env) Client() (*serenity.Client, error) {
	key, err := e.APIKey()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrSetupIncomplete
	}
	return e.newClient(key)
}

// RequireSetup builds an API client once both an API key and a default
// agent are set.
func (e *Env) RequireSetup() (*serenity.Client, error) {
	key, err := e.APIKey()
	if err != nil {
		return nil, err
	}
	if !e.Config.SetupComplete(key) {
		return nil, ErrSetupIncomplete
	}
	return e.newClient(key)
}

func (e *Env) newClient(key string) (*serenity.Client, error) {
	client, err := serenity.NewClient(serenity.Config{
		APIKey:  key,
		BaseURL: e.Config.API.BaseURL,
		Logger:  e.Logger.With("component", "client"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return client, nil
}

// TerminalConverter renders markdown for this terminal at the configured
// word wrap width.
func (e *Env) TerminalConverter() (assembler.Converter, error) {
	conv, err := assembler.NewTerminalConverter(cliui.MarkdownStyle(), int(e.Config.Render.WordWrap))
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return conv, nil
}

// ActivateAgent stores agent as agents.active, and as agents.default too
// when setDefault is true.
func (e *Env) ActivateAgent(agent string, setDefault bool) error {
	err := e.Configer.Update(func(cfg *config.Config) error {
		cfg.Agents.Active = agent
		if setDefault {
			cfg.Agents.Default = agent
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving agent: %w", err)
	}

	e.Config.Agents.Active = agent
	if setDefault {
		e.Config.Agents.Default = agent
	}
	return nil
}

// ListAgents fetches the first page of the agent directory.
func ListAgents(ctx context.Context, client *serenity.Client) ([]serenity.Agent, error) {
	agents, err := client.ListAgents(ctx, serenity.DefaultListAgentsOptions)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r any) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether both cmd's input and output are terminals.
func Interactive(cmd *cobra.Command) bool {
	return IsTerminal(cmd.InOrStdin()) && IsTerminal(cmd.OutOrStdout())
}

// ReadAPIKey reads an API key from in. A terminal gets a hidden prompt on
// out; piped input is read up to the first newline.
func ReadAPIKey(in io.Reader, out io.Writer, baseURL string) (string, error) {
	var key string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter API key for %s: ", baseURL)

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		key = string(keyBytes)
	} else {
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("reading stdin: %w", err)
			}
			return "", errors.New("no input received on stdin")
		}
		key = scanner.Text()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("API key cannot be empty")
	}
	return key, nil
}

// ChooseAgent returns the agent with code, or lets the user pick one when
// code is empty and the command runs in a terminal.
func ChooseAgent(cmd *cobra.Command, agents []serenity.Agent, code, current, title string) (serenity.Agent, error) {
	if code != "" {
		for _, a := range agents {
			if a.Code == code {
				return a, nil
			}
		}
		return serenity.Agent{}, fmt.Errorf("unknown agent %q", code)
	}

	if !Interactive(cmd) {
		return serenity.Agent{}, errors.New("no agent given, pass an agent code when not running in a terminal")
	}
	return cliui.PickAgent(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), title, agents, current)
}

// Width returns the terminal width of w, or fallback when w is not a
// terminal.
func Width(w any, fallback int) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return fallback
}

// LogToFile sends later log output to name inside the .serenity/ directory,
// for full screen shells that own the terminal.
func (e *Env) LogToFile(name string) (io.Closer, error) {
	f, err := e.openLog(name)
	if err != nil {
		return nil, err
	}
	e.Logger = logger.New(logger.WithDebug(e.Debug), logger.WithWriter(f))
	return f, nil
}

// TeeToFile keeps the current logger and also writes JSON records at debug
// level to name inside the .serenity/ directory.
func (e *Env) TeeToFile(name string) (io.Closer, error) {
	f, err := e.openLog(name)
	if err != nil {
		return nil, err
	}
	file := logger.New(logger.WithWriter(f), logger.WithJSON(true), logger.WithLevel(slog.LevelDebug))
	e.Logger = logger.Multi(e.Logger, file)
	return f, nil
}

func (e *Env) openLog(name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(e.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
