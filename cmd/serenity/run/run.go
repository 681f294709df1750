// Package runcmder provides the run command, a one-shot call of the
// non-streaming execute endpoint.
package runcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

const runLongDesc string = `Run an agent once and print its response.

Runs the agent with the given code through the non-streaming execute
endpoint. No conversation is opened and nothing is recorded. Each key=value
argument becomes one input parameter.

Examples:
  serenity run translator message="Hola mundo" target=en
  serenity run summarizer message="$(cat notes.md)"`

const runShortDesc string = "Run an agent once"

type runCommander struct {
	baseURL string
}

func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run <code> [key=value...]",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			env, err := bootstrap.Load(cmd, config.FlagBaseURL)
			if err != nil {
				return err
			}
			client, err := env.Client()
			if err != nil {
				return err
			}

			var content string
			if err := client.Run(cmd.Context(), args[0], params, &content); err != nil {
				return fmt.Errorf("running agent %s: %w", args[0], err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)

	return cmd
}

func parseParams(args []string) ([]serenity.Param, error) {
	params := make([]serenity.Param, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		params = append(params, serenity.Param{Key: key, Value: value})
	}
	return params, nil
}
