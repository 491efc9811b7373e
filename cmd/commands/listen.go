package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/clients/ws"
	wsprotocol "github.com/dohr-michael/nudge/internal/gateway/ws"
)

// NewListenCommand returns the listen subcommand.
func NewListenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Stream reminders and events from a running daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Only events of this group",
				Sources: cli.EnvVars("NUDGE_GROUP"),
			},
		},
		Action: runListen,
	}
}

func runListen(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	token, err := transportToken(cfg)
	if err != nil {
		return err
	}

	url := "ws" + strings.TrimPrefix(cfg.Gateway.BaseURL(), "http") + "/api/ws"
	client, err := ws.Dial(ctx, url, token)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Subscribe(cmd.String("group")); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		switch frame.Type {
		case wsprotocol.FrameTypeEvent:
			fmt.Printf("[%s] %s %s\n", orDash(frame.GroupID), frame.Event, string(frame.Payload))
		case wsprotocol.FrameTypeResponse:
			if frame.OK != nil && !*frame.OK {
				return fmt.Errorf("gateway: %s", frame.Error)
			}
		}
	}
}
