package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/nudge/internal/state"
)

// NewExportCommand returns the export subcommand.
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Dump the persisted reports and deed ledgers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "json or yaml",
				Value:   "json",
			},
		},
		Action: runExport,
	}
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	doc, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if doc == nil {
		doc = state.NewDocument()
	}

	return writeDocument(doc, cmd.String("format"))
}

func writeDocument(doc *state.Document, format string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	case "yaml", "yml":
		// Through JSON so task keys render as "group:user" strings.
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("convert state: %w", err)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (json or yaml)", format)
	}
}
