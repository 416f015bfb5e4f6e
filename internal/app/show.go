package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"pair-growth-alerts/internal/storage"
)

// Show prints recent observation rows with growth columns.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBlock\tPair Count\tGrowth\tGrowth/Block\tValid\tSource")

	for i, sample := range samples {
		growth, perBlock := "-", "-"
		// Samples arrive newest first; growth compares against the next row.
		if i+1 < len(samples) {
			previous := samples[i+1]
			if sample.Valid && previous.Valid {
				growth, perBlock = growthColumns(sample, previous)
			}
		}

		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.Block.String(),
			sample.PairCount.String(),
			growth,
			perBlock,
			sample.Valid,
			sample.Source,
		)
	}

	writer.Flush()
	return nil
}

func growthColumns(newest, previous storage.PairSample) (string, string) {
	delta := new(big.Int).Sub(newest.PairCount, previous.PairCount)
	growth := delta.String()

	blockDiff := new(big.Int).Sub(newest.Block, previous.Block)
	if blockDiff.Sign() <= 0 {
		return growth, growth
	}

	perBlock := decimal.NewFromBigInt(delta, 0).
		Div(decimal.NewFromBigInt(blockDiff, 0)).
		StringFixed(3)
	return growth, perBlock
}
