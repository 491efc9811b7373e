package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/secrets"
)

// NewSecretCommand returns the secret subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage the sealed transport token",
		Commands: []*cli.Command{
			{
				Name:  "set-token",
				Usage: "Seal a transport token into .env",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "generate",
						Usage: "Generate a random token instead of prompting",
					},
				},
				Action: runSecretSetToken,
			},
			{
				Name:   "reveal",
				Usage:  "Print the plaintext transport token",
				Action: runSecretReveal,
			},
		},
	}
}

func runSecretSetToken(_ context.Context, cmd *cli.Command) error {
	var token string
	if cmd.Bool("generate") {
		token = uuid.NewString()
	} else {
		var err error
		if token, err = readSecret("Transport token: "); err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("empty token")
	}

	kr, err := secrets.OpenKeyring(secrets.KeyPath(), true)
	if err != nil {
		return err
	}
	sealed, err := kr.Seal(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	if err := secrets.SetEntry(config.DotenvPath(), secrets.TokenEnvVar, sealed); err != nil {
		return fmt.Errorf("write token: %w", err)
	}

	fmt.Printf("Token sealed into %s. Send SIGHUP or restart `nudge serve` to apply.\n", config.DotenvPath())
	return nil
}

func runSecretReveal(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	token, err := transportToken(cfg)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no transport token configured")
	}
	fmt.Println(token)
	return nil
}

// readSecret prompts without echo on a terminal and reads a plain line otherwise.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
