package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/clients/api"
	"github.com/dohr-michael/nudge/internal/tracker"
)

// NewReportCommand returns the report subcommand.
func NewReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Drive a user's report through the gateway",
		Flags: keyFlags(),
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start (or restart) a report",
				ArgsUsage: "<deadline>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "theme", Usage: "Report theme"},
				},
				Action: runReportStart,
			},
			{
				Name:      "theme",
				Usage:     "Set the theme",
				ArgsUsage: "<theme>",
				Action:    runReportTheme,
			},
			{
				Name:      "deadline",
				Usage:     "Set the deadline (YYYY-MM-DD or YYYY-MM-DD HH:MM)",
				ArgsUsage: "<deadline>",
				Action:    runReportDeadline,
			},
			{
				Name:      "log",
				Usage:     "Append a progress note",
				ArgsUsage: "<note>",
				Action:    runReportLog,
			},
			{
				Name:      "mark",
				Usage:     "Mark a milestone as done",
				ArgsUsage: "<milestone>",
				Action:    runReportMark,
			},
			{
				Name:      "thread",
				Usage:     "Attach the conversation thread reminders are posted to",
				ArgsUsage: "<thread_id>",
				Action:    runReportThread,
			},
			{
				Name:   "show",
				Usage:  "Show the report status",
				Action: runReportShow,
			},
		},
		DefaultCommand: "show",
	}
}

func runReportStart(ctx context.Context, cmd *cli.Command) error {
	deadline := joinArgs(cmd)
	if deadline == "" {
		return errors.New("usage: nudge report start <deadline> [--theme <theme>]")
	}
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.StartTask(ctx, key, cmd.String("theme"), deadline)
	if err != nil {
		return err
	}
	return printStatus(st)
}

func runReportTheme(ctx context.Context, cmd *cli.Command) error {
	theme := joinArgs(cmd)
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.SetTheme(ctx, key, theme)
	if err != nil {
		return err
	}
	fmt.Printf("Theme: %s\n", st.Theme)
	return nil
}

func runReportDeadline(ctx context.Context, cmd *cli.Command) error {
	deadline := joinArgs(cmd)
	if deadline == "" {
		return errors.New("usage: nudge report deadline <deadline>")
	}
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.SetDeadline(ctx, key, deadline)
	if err != nil {
		return err
	}
	return printStatus(st)
}

func runReportLog(ctx context.Context, cmd *cli.Command) error {
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	note, err := c.LogProgress(ctx, key, joinArgs(cmd))
	if err != nil {
		return err
	}
	fmt.Printf("Logged %s: %s\n", note.Ts.Format("2006-01-02 15:04"), note.Note)
	return nil
}

func runReportMark(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errors.New("usage: nudge report mark <milestone>")
	}
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	if _, err := c.MarkMilestone(ctx, key, name); err != nil {
		return err
	}
	st, err := c.Status(ctx, key)
	if err != nil {
		return err
	}
	return printStatus(st)
}

func runReportThread(ctx context.Context, cmd *cli.Command) error {
	thread := cmd.Args().First()
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	got, err := c.AttachThread(ctx, key, thread)
	if err != nil {
		return err
	}
	if got != thread {
		fmt.Printf("Thread already attached: %s\n", got)
		return nil
	}
	fmt.Printf("Thread attached: %s\n", got)
	return nil
}

func runReportShow(ctx context.Context, cmd *cli.Command) error {
	c, key, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.Status(ctx, key)
	if errors.Is(err, api.ErrNotFound) {
		fmt.Println("No report yet. Start one with: nudge report start <deadline>")
		return nil
	}
	if err != nil {
		return err
	}
	return printStatus(st)
}

func printStatus(st tracker.Status) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Theme:\t%s\n", st.Theme)
	fmt.Fprintf(w, "Deadline:\t%s\n", orDash(st.Deadline))
	if st.NextCheckpoint != nil {
		fmt.Fprintf(w, "Next reminder:\t%s (%s)\n", st.NextCheckpoint.At, st.NextCheckpoint.Tag)
	}
	fmt.Fprintf(w, "Thread:\t%s\n", orDash(st.ThreadID))
	for _, m := range st.Milestones {
		box := "[ ]"
		if m.Done {
			box = "[x]"
		}
		fmt.Fprintf(w, "  %s\t%s\n", box, m.Name)
	}
	for _, n := range st.Recent {
		fmt.Fprintf(w, "  %s\t%s\n", n.Ts.Format("01-02 15:04"), n.Note)
	}
	fmt.Fprintf(w, "Jobs:\t%d\n", len(st.Jobs))
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
