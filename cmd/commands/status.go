package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/heartbeat"
)

// staleAfter is four missed beats.
const staleAfter = 4 * heartbeat.DefaultInterval

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether the nudge daemon is running",
		Action: func(_ context.Context, _ *cli.Command) error {
			status, hb, err := heartbeat.Check(config.HeartbeatPath(), staleAfter)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				fmt.Printf("Daemon: ALIVE (PID %d, uptime %s, listening on %s)\n", hb.PID, hb.Uptime, hb.Addr)
				fmt.Printf("  tasks %d, recorded jobs %d, live jobs %d, deed ledgers %d\n",
					hb.Stats.Tasks, hb.Stats.Jobs, hb.Jobs, hb.Stats.Users)
			case heartbeat.StatusStale:
				fmt.Printf("Daemon: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Daemon: NOT RUNNING")
			}

			return nil
		},
	}
}
