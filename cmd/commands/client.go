package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/clients/api"
	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/secrets"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// keyFlags select the report a client command acts on.
func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "group",
			Aliases:  []string{"g"},
			Usage:    "Group (server) id",
			Sources:  cli.EnvVars("NUDGE_GROUP"),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "User id",
			Sources:  cli.EnvVars("NUDGE_USER"),
			Required: true,
		},
	}
}

func keyFrom(cmd *cli.Command) (tasks.Key, error) {
	return tasks.NewKey(cmd.String("group"), cmd.String("user"))
}

// loadConfig reads the config named by --config, falling back to defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// transportToken returns the plaintext bearer token of cfg.
func transportToken(cfg *config.Config) (string, error) {
	return secrets.Resolve(cfg.Transport.Token, secrets.KeyPath())
}

// newAPIClient builds a gateway client from the config.
func newAPIClient(cmd *cli.Command) (*api.Client, tasks.Key, error) {
	key, err := keyFrom(cmd)
	if err != nil {
		return nil, tasks.Key{}, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, tasks.Key{}, err
	}
	token, err := transportToken(cfg)
	if err != nil {
		return nil, tasks.Key{}, err
	}
	return api.New(cfg.Gateway.BaseURL(), token), key, nil
}

// joinArgs returns every positional argument as one string.
func joinArgs(cmd *cli.Command) string {
	return strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
}
