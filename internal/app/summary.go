package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"oil-price-watch/internal/history"
)

// Summary prints aggregate statistics over the most recent history window.
func (a *App) Summary(ctx context.Context, opts SummaryOptions) error {
	store := history.NewStore(a.Config.Monitor.HistoryFile, a.Logger)

	summary, err := store.Summary(opts.Window)
	if err != nil {
		if errors.Is(err, history.ErrEmptyHistory) {
			fmt.Fprintln(os.Stdout, "no history entries found")
			return nil
		}
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Window\t%d entries (of %d total)\n", summary.Window, summary.TotalEntries)
	fmt.Fprintf(writer, "Min price\t$%s\n", formatDecimal(decimal.NewFromFloat(summary.MinPrice), 2))
	fmt.Fprintf(writer, "Max price\t$%s\n", formatDecimal(decimal.NewFromFloat(summary.MaxPrice), 2))
	fmt.Fprintf(writer, "Avg price\t$%s\n", formatDecimal(decimal.NewFromFloat(summary.AvgPrice), 2))
	fmt.Fprintf(writer, "Price range\t$%s\n", formatDecimal(decimal.NewFromFloat(summary.PriceRange), 2))
	fmt.Fprintf(writer, "Cycles\t%d..%d\n", summary.MinCycle, summary.MaxCycle)
	writer.Flush()
	return nil
}
