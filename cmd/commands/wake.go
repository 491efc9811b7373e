package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/secrets"
)

// NewWakeCommand returns the onboarding subcommand.
func NewWakeCommand() *cli.Command {
	return &cli.Command{
		Name:   "wake",
		Usage:  "Initialize the nudge home directory (~/.nudge)",
		Action: runWake,
	}
}

func runWake(_ context.Context, _ *cli.Command) error {
	root := config.NudgePath()
	created := false

	for _, d := range []string{root, filepath.Join(root, "logs")} {
		if _, err := os.Stat(d); err != nil {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", d, err)
			}
			fmt.Printf("  Created %s\n", d)
			created = true
		}
	}

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("  Created %s\n", configPath)
		created = true
	}

	keyPath := secrets.KeyPath()
	_, keyErr := os.Stat(keyPath)
	kr, err := secrets.OpenKeyring(keyPath, true)
	if err != nil {
		return err
	}
	if keyErr != nil {
		fmt.Printf("  Created %s\n", keyPath)
		created = true
	}

	dotenvPath := config.DotenvPath()
	if _, err := os.Stat(dotenvPath); err != nil {
		if err := os.WriteFile(dotenvPath, []byte(defaultDotenv), 0o600); err != nil {
			return fmt.Errorf("write .env: %w", err)
		}
		sealed, err := kr.Seal(uuid.NewString())
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		if err := secrets.SetEntry(dotenvPath, secrets.TokenEnvVar, sealed); err != nil {
			return fmt.Errorf("write token: %w", err)
		}
		fmt.Printf("  Created %s with a sealed transport token\n", dotenvPath)
		created = true
	}

	if !created {
		fmt.Printf("Already awake. %s is complete, nothing to do.\n", root)
		return nil
	}

	fmt.Println(wakeMessage(root))
	return nil
}

const defaultConfig = `{
	// nudge configuration

	"timezone": "Asia/Tokyo",

	"store": {
		// file | sqlite | memory
		"driver": "file"
	},

	"gateway": {
		"host": "127.0.0.1",
		"port": 18440
	},

	"events": {
		"buffer_size": 1024
	},

	"reminders": {
		"morning_of": "07:45",
		"nightly_at": "21:30",
		"weekly_first_delay": "5s",
		"weekly_interval": "168h"
	}

	// The bearer token defaults to $NUDGE_TRANSPORT_TOKEN from .env.
	// "transport": { "token": "${{ .Env.NUDGE_TRANSPORT_TOKEN }}" }
}
`

const defaultDotenv = `# nudge environment variables
# This file is loaded automatically. Existing env vars are never overridden.
`

func wakeMessage(root string) string {
	return fmt.Sprintf(`
  Morning. Home set up at %s

  Next steps:
    1. Tweak %s/config.jsonc if you feel like it
    2. Run: nudge serve
    3. Point your chat front-end at the gateway with the token from .env

  Deadlines wait for no one.
`, root, root)
}
