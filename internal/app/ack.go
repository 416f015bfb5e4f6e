package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"pair-growth-alerts/internal/ledger"
)

// Acknowledge marks one alert processed through the ledger. The caller
// identity defaults to the configured owner.
func (a *App) Acknowledge(ctx context.Context, opts AckOptions) error {
	caller := a.Config.Ledger.Owner()
	if opts.Caller != "" {
		if !common.IsHexAddress(opts.Caller) {
			return fmt.Errorf("--caller %q is not a valid address", opts.Caller)
		}
		caller = common.HexToAddress(opts.Caller)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot acknowledge alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	ldg, err := ledger.New(ctx, store, a.Config.Ledger.Owner(), nil, a.Logger)
	if err != nil {
		return err
	}

	if err := ldg.Acknowledge(ctx, opts.ID, caller); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %d acknowledged\n", opts.ID)
	return nil
}
