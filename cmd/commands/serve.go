package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/nudge/internal/clock"
	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/events"
	"github.com/dohr-michael/nudge/internal/gateway"
	"github.com/dohr-michael/nudge/internal/heartbeat"
	"github.com/dohr-michael/nudge/internal/ledger"
	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/state"
	"github.com/dohr-michael/nudge/internal/storage"
	"github.com/dohr-michael/nudge/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand returns the daemon subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduler and the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

// serveStats feeds the heartbeat.
type serveStats struct {
	state    *state.State
	timeline scheduler.Timeline
}

func (s serveStats) Stats() state.Stats {
	var out state.Stats
	_ = s.state.View(func(doc *state.Document) error {
		out = doc.Stats()
		return nil
	})
	return out
}

func (s serveStats) Jobs() int { return len(s.timeline.Jobs()) }

func runServe(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	token, err := transportToken(cfg)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("transport.token is not set: run `nudge wake` or `nudge secret set-token`")
	}

	clk, err := clock.Load(cfg.Timezone)
	if err != nil {
		return err
	}

	store, err := state.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	st, err := state.Open(ctx, store)
	if err != nil {
		store.Close()
		return err
	}
	defer st.Close()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	eventLog := storage.NewEventLogger(cfg.Events.LogDir, bus)
	defer eventLog.Close()

	timeline := scheduler.NewCronTimeline(clk.Location())
	timeline.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		timeline.Stop(stopCtx)
	}()

	notifier := events.NewNotifier(bus)

	mh, mm, _ := cfg.Reminders.Morning()
	reminders := scheduler.NewReminders(timeline, clk, st, notifier, scheduler.ReminderOptions{
		MorningHour:      mh,
		MorningMinute:    mm,
		WeeklyFirstDelay: cfg.Reminders.WeeklyFirstDelay.Duration(),
		WeeklyInterval:   cfg.Reminders.WeeklyInterval.Duration(),
	})
	resumed, err := reminders.Resume(ctx)
	if err != nil {
		slog.Error("serve: resume reminders incomplete", "resumed", resumed, "error", err)
	} else {
		slog.Info("serve: reminders resumed", "tasks", resumed)
	}

	nh, nm, _ := cfg.Reminders.Nightly()
	nightly := scheduler.NewNightly(timeline, clk, st, notifier, nh, nm)
	if err := armNightly(nightly, bus); err != nil {
		return err
	}

	reloader := config.NewReloader(configPath, config.DotenvPath(), cfg)
	reloader.OnReload(func(c *config.Config) {
		h, m, err := c.Reminders.Nightly()
		if err != nil {
			slog.Error("serve: nightly time", "error", err)
			return
		}
		nightly.SetTime(h, m)
		if err := armNightly(nightly, bus); err != nil {
			slog.Error("serve: re-arm nightly", "error", err)
		}
	})
	go reloader.WatchSignals(ctx)

	svc := tracker.New(tracker.Config{
		State:     st,
		Clock:     clk,
		Reminders: reminders,
		Ledger:    ledger.New(st, clk),
		Bus:       bus,
	})

	server := gateway.NewServer(gateway.Options{
		Host:    cfg.Gateway.Host,
		Port:    cfg.Gateway.Port,
		Token:   token,
		Tracker: svc,
		Auditor: reminders,
		Bus:     bus,
	})

	hb := heartbeat.NewWriter(config.HeartbeatPath(), cfg.Gateway.Addr(), serveStats{state: st, timeline: timeline})
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// armNightly arms the roll-call and announces its first firing.
func armNightly(n *scheduler.Nightly, bus *events.Bus) error {
	first, err := n.Arm()
	if err != nil {
		return fmt.Errorf("arm nightly: %w", err)
	}
	bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.NightlyArmedPayload{FirstAt: first}))
	return nil
}
