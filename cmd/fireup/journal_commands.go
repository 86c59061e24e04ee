package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fireup-dev/fireup/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

// getStore connects to the database using the global --database-url flag.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db.NewStore(pool), pool.Close, nil
}

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func listEventsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List journal events, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "reference",
				Aliases: []string{"r"},
				Usage:   "Filter by transaction reference",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of events to show",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of events to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			events, err := store.ListEvents(context.Background(), db.ListEventsParams{
				Reference: c.String("reference"),
				Limit:     int32(c.Int("limit")),
				Offset:    int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(events)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tREFERENCE\tKIND\tOUTCOME\tDETAIL")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339),
					e.Reference,
					e.Kind,
					e.Outcome,
					e.Detail,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d events\n", len(events))
			return nil
		},
	}
}

func journalStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show event counts per outcome",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			counts, err := store.OutcomeCounts(context.Background())
			if err != nil {
				return fmt.Errorf("failed to count outcomes: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(counts)
			}

			outcomes := make([]string, 0, len(counts))
			for outcome := range counts {
				outcomes = append(outcomes, outcome)
			}
			sort.Strings(outcomes)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OUTCOME\tCOUNT")
			var total int64
			for _, outcome := range outcomes {
				fmt.Fprintf(w, "%s\t%d\n", outcome, counts[outcome])
				total += counts[outcome]
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d events\n", total)
			return nil
		},
	}
}
