package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/events"
	"github.com/dohr-michael/nudge/internal/storage"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show logged events of a group",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Group id (empty for global events)",
				Sources: cli.EnvVars("NUDGE_GROUP"),
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of events",
				Value:   20,
			},
			&cli.StringSliceFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only these event types (e.g. reminder.checkpoint)",
			},
		},
		Action: runHistory,
	}
}

func runHistory(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var types []events.EventType
	for _, t := range cmd.StringSlice("type") {
		types = append(types, events.EventType(t))
	}

	list, err := storage.ReadEvents(cfg.Events.LogDir, cmd.String("group"), int(cmd.Int("limit")), types...)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No events found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSOURCE\tUSER")
	for _, e := range list {
		user, _ := e.Payload["user_id"].(string)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.DateTime),
			e.Type,
			e.Source,
			orDash(user),
		)
	}
	return w.Flush()
}
