package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"pair-growth-alerts/internal/storage"
)

// Export renders historical samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		plottable := validSamples(downsampled)
		if len(plottable) < 2 {
			a.Logger.Warn().Int("valid", len(plottable)).Msg("not enough valid samples to chart; skipping png")
			return nil
		}
		if err := writeSamplesPNG(opts.PNGPath, plottable); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.PairSample, max int) []storage.PairSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.PairSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func validSamples(samples []storage.PairSample) []storage.PairSample {
	out := make([]storage.PairSample, 0, len(samples))
	for _, sample := range samples {
		if sample.Valid {
			out = append(out, sample)
		}
	}
	return out
}

func writeSamplesCSV(path string, samples []storage.PairSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "block_number", "pair_count", "valid", "source", "growth", "growth_per_block"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, sample := range samples {
		growth := ""
		perBlock := ""
		if sample.Valid {
			for j := i - 1; j >= 0; j-- {
				if samples[j].Valid {
					growth, perBlock = growthColumns(sample, samples[j])
					break
				}
			}
		}
		record := []string{
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.Block.String(),
			sample.PairCount.String(),
			strconv.FormatBool(sample.Valid),
			sample.Source,
			growth,
			perBlock,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.PairSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	counts := make([]float64, len(samples))
	perBlock := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.ObservedAt
		counts[i] = decimal.NewFromBigInt(sample.PairCount, 0).InexactFloat64()
		if i == 0 {
			continue
		}
		delta := decimal.NewFromBigInt(new(big.Int).Sub(sample.PairCount, samples[i-1].PairCount), 0)
		blocks := new(big.Int).Sub(sample.Block, samples[i-1].Block)
		if blocks.Sign() > 0 {
			perBlock[i] = delta.Div(decimal.NewFromBigInt(blocks, 0)).InexactFloat64()
		} else {
			perBlock[i] = delta.InexactFloat64()
		}
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Pair Count",
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Growth / Block",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Pair Count",
				XValues: x,
				YValues: counts,
			},
			chart.TimeSeries{
				Name:    "Growth / Block",
				XValues: x,
				YValues: perBlock,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
