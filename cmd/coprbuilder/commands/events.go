package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/yahoon/Copr/internal/eventstore"
	"github.com/yahoon/Copr/internal/foundation/errors"
)

// EventsCmd implements the 'events' command.
type EventsCmd struct {
	BuildID string        `name:"build-id" help:"Show the events of a single build"`
	Since   time.Duration `default:"24h" help:"Summarize builds started within this window"`
	JSON    bool          `help:"Print raw JSON instead of a table"`
}

func (e *EventsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.Events.SQLitePath == "" {
		return errors.ConfigError("events.sqlite_path is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.Events.SQLitePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if e.BuildID != "" {
		events, err := store.GetByBuildID(ctx, e.BuildID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errors.ValidationError(fmt.Sprintf("no events recorded for build %s", e.BuildID)).Build()
		}
		if e.JSON {
			return writeJSON(g, events)
		}
		return printEvents(g, events)
	}

	end := time.Now()
	events, err := store.GetRange(ctx, end.Add(-e.Since), end)
	if err != nil {
		return err
	}
	summaries := eventstore.Summarize(events)
	if e.JSON {
		return writeJSON(g, summaries)
	}
	return printSummaries(g, summaries)
}

func writeJSON(g *Global, v any) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvents(g *Global, events []eventstore.Event) error {
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tPACKAGE\tMESSAGE")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Package, ev.Message)
	}
	return tw.Flush()
}

func printSummaries(g *Global, summaries []eventstore.BuildSummary) error {
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tOWNER/PROJECT\tCHROOT\tSTATUS\tATTEMPTS\tERRORS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\t%d\t%d\n", s.BuildID, s.Owner, s.Project, s.Chroot, s.Status, s.Attempts, len(s.Errors))
	}
	return tw.Flush()
}
