package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Alerts prints the most recent ledger entries.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	total, err := store.TotalAlerts(ctx)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tPair Count\tDelta\tSample Block\tTime (UTC)\tTriggered By\tProcessed")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
			alert.ID,
			alert.PairCount.String(),
			alert.Delta.String(),
			alert.SampleBlock.String(),
			time.Unix(int64(alert.Timestamp), 0).UTC().Format(time.RFC3339),
			alert.TriggeredBy.Hex(),
			alert.Processed,
		)
	}

	writer.Flush()
	fmt.Fprintf(os.Stdout, "total alerts: %d\n", total)
	return nil
}
