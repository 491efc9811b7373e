package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "nudge",
		Usage: "Deadline reminders and a daily deed ledger for chat groups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
				Sources: cli.EnvVars("NUDGE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewWakeCommand(),
			NewServeCommand(),
			NewStatusCommand(),
			NewReportCommand(),
			NewDoneCommand(),
			NewExportCommand(),
			NewHistoryCommand(),
			NewListenCommand(),
			NewSecretCommand(),
		},
	}
}
