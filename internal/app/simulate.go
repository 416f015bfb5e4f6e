package app

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"pair-growth-alerts/internal/detector"
	"pair-growth-alerts/internal/ledger"
	"pair-growth-alerts/internal/storage"
)

// SimulateAlert drives a synthetic sample pair through the real detector,
// ledger, and emitters.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	previous := detector.Sample{
		Count: new(big.Int).SetUint64(opts.PrevCount),
		Block: new(big.Int).SetUint64(opts.PrevBlock),
		Valid: true,
	}
	newest := detector.Sample{
		Count: new(big.Int).SetUint64(opts.Count),
		Block: new(big.Int).SetUint64(opts.Block),
		Valid: true,
	}

	previousBlob, err := detector.EncodeSample(previous)
	if err != nil {
		return fmt.Errorf("encode previous sample: %w", err)
	}
	newestBlob, err := detector.EncodeSample(newest)
	if err != nil {
		return fmt.Errorf("encode newest sample: %w", err)
	}

	decision := a.newDetector().Evaluate([][]byte{newestBlob, previousBlob})
	if !decision.Trigger {
		fmt.Fprintln(os.Stdout, "no trigger: growth stayed within the threshold")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var alertStore storage.AlertStore
	if store != nil {
		alertStore = store
		defer closeStore()
		for _, synthetic := range []detector.Sample{previous, newest} {
			insertErr := store.InsertSample(ctx, storage.PairSample{
				Block:      synthetic.Block,
				PairCount:  synthetic.Count,
				Valid:      true,
				Source:     storage.SourceSimulated,
				ObservedAt: time.Now().UTC(),
			})
			if insertErr != nil {
				a.Logger.Warn().Err(insertErr).Msg("failed to record simulated sample")
			}
		}
	} else {
		a.Logger.Warn().Msg("database not configured; simulated alert will not be persisted")
		alertStore = storage.NewMemory()
	}

	ldg, err := ledger.New(ctx, alertStore, a.Config.Ledger.Owner(), a.newEmitter(), a.Logger)
	if err != nil {
		return err
	}

	payload, err := decision.Payload()
	if err != nil {
		return fmt.Errorf("encode response payload: %w", err)
	}
	pairCount, delta, sampleBlock, err := detector.DecodeResponse(payload)
	if err != nil {
		return fmt.Errorf("decode response payload: %w", err)
	}

	id, err := ldg.Ingest(ctx, pairCount, delta, sampleBlock, a.Config.Ledger.Operator())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %d ingested (pair count %s, delta %s, block %s)\n",
		id, pairCount, delta, sampleBlock)
	return nil
}
