package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"oil-price-watch/internal/history"
)

// Show prints the most recent entries from the local price history artifact.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store := history.NewStore(a.Config.Monitor.HistoryFile, a.Logger)

	entries := store.All()
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no history entries found")
		return nil
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPrice\tCycle\tEvent")

	// Newest first.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		fmt.Fprintf(
			writer,
			"%s\t$%s\t%d\t%s\n",
			formatEntryTime(entry),
			formatDecimal(decimal.NewFromFloat(entry.Price), 2),
			entry.Cycle,
			entry.EventType,
		)
	}

	writer.Flush()
	return nil
}

func formatEntryTime(entry history.Entry) string {
	if ts, err := time.Parse(time.RFC3339Nano, entry.TimestampISO); err == nil {
		return ts.UTC().Format(time.RFC3339)
	}
	seconds := int64(entry.Timestamp)
	nanos := int64((entry.Timestamp - float64(seconds)) * float64(time.Second))
	return time.Unix(seconds, nanos).UTC().Format(time.RFC3339)
}
