package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/ledger"
)

// NewDoneCommand returns the deed ledger subcommand.
func NewDoneCommand() *cli.Command {
	return &cli.Command{
		Name:  "done",
		Usage: "Record and review daily deeds",
		Flags: keyFlags(),
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Record something you did today",
				ArgsUsage: "<text>",
				Action:    runDoneAdd,
			},
			{
				Name:   "today",
				Usage:  "List today's deeds",
				Action: runDoneToday,
			},
			{
				Name:   "week",
				Usage:  "Show deed counts for the last seven days",
				Action: runDoneWeek,
			},
			{
				Name:   "streak",
				Usage:  "Show the current streak",
				Action: runDoneStreak,
			},
		},
		DefaultCommand: "today",
	}
}

func runDoneAdd(ctx context.Context, cmd *cli.Command) error {
	text := joinArgs(cmd)
	if text == "" {
		return errors.New("usage: nudge done add <text>")
	}
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	n, err := c.RecordDeed(ctx, key, text)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded. %d today.\n", n)
	return nil
}

func runDoneToday(ctx context.Context, cmd *cli.Command) error {
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	report, err := c.Today(ctx, key)
	if err != nil {
		return err
	}
	if len(report.Deeds) == 0 {
		fmt.Printf("%s: nothing yet.\n", report.Date)
		return nil
	}
	fmt.Printf("%s:\n", report.Date)
	for i, d := range report.Deeds {
		fmt.Printf("  %d. %s\n", i+1, d)
	}
	return nil
}

func runDoneWeek(ctx context.Context, cmd *cli.Command) error {
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	week, err := c.Week(ctx, key)
	if err != nil {
		return err
	}
	printWeek(week, nil)
	return nil
}

func runDoneStreak(ctx context.Context, cmd *cli.Command) error {
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.Streak(ctx, key)
	if err != nil {
		return err
	}
	fmt.Printf("Streak: %d day(s)\n", res.Streak)
	printWeek(res.Week, res.Bars)
	return nil
}

// printWeek renders one line per day. Bars are computed locally when the
// server did not send them.
func printWeek(week []ledger.DayCount, bars []string) {
	for i, day := range week {
		bar := ledger.Bar(day.Count, ledger.BarWidth)
		if i < len(bars) {
			bar = bars[i]
		}
		fmt.Printf("  %s %s %d\n", day.Date, bar, day.Count)
	}
}
