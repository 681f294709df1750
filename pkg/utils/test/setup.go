package testutils

import (
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/credentials"
)

// APIKey is the key CompleteSetup stores.
const APIKey = "sk-test"

// CompleteSetup writes the config and credentials "serenity setup" leaves in
// dir: a key for baseURL and agent as the default and active agent.
func CompleteSetup(dir, baseURL, agent string) error {
	creds, err := credentials.NewManager(dir)
	if err != nil {
		return err
	}
	if err := creds.SetKey(baseURL, APIKey); err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	return cfger.Update(func(cfg *config.Config) error {
		cfg.API.BaseURL = baseURL
		cfg.Agents.Default = agent
		cfg.Agents.Active = agent
		return nil
	})
}
