package app

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/alerting"
	"pair-growth-alerts/internal/config"
	"pair-growth-alerts/internal/detector"
	"pair-growth-alerts/internal/fetcher"
	"pair-growth-alerts/internal/httpapi"
	"pair-growth-alerts/internal/ledger"
	"pair-growth-alerts/internal/scheduler"
	"pair-growth-alerts/internal/service"
	"pair-growth-alerts/internal/storage"
	"pair-growth-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PairCountFetcher {
	return fetcher.NewFactory(fetcher.FactoryOptions{
		RPCURL:         a.Config.Ethereum.RPCURL,
		FactoryAddress: a.Config.Ethereum.FactoryAddress,
		Timeout:        a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newDetector() *detector.Detector {
	return detector.New(detector.Config{
		Threshold: new(big.Int).SetUint64(a.Config.Detector.Threshold),
		Policy:    detector.Policy(a.Config.Detector.Policy),
	})
}

// newEmitter always includes the structured-log emitter; Telegram joins
// the fan-out when configured.
func (a *App) newEmitter() ledger.Emitter {
	emitters := []ledger.Emitter{alerting.NewZerologEmitter(a.Logger)}
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		tg := a.Config.Alerting.Telegram
		emitters = append(emitters, alerting.NewTelegramEmitter(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
	}
	if len(emitters) == 1 {
		return emitters[0]
	}
	return alerting.NewMulti(emitters...)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var sampleStore storage.PairSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; alert history will not survive restarts")
		mem := storage.NewMemory()
		sampleStore = mem
		alertStore = mem
	}

	ldg, err := ledger.New(ctx, alertStore, a.Config.Ledger.Owner(), a.newEmitter(), a.Logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	det := a.newDetector()
	svc := service.New(a.Config, sched, a.newFetcher(), sampleStore, ldg, det, a.Logger)

	if a.Config.API.Enabled {
		stopAPI := a.serveAPI(cancel, ldg)
		defer stopAPI()
	}

	a.Logger.Info().
		Str("version", version.String()).
		Str("threshold", det.Threshold().String()).
		Str("policy", a.Config.Detector.Policy).
		Msg("starting watcher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// serveAPI starts the ledger HTTP surface and returns its stop func.
// A listener failure cancels the whole run.
func (a *App) serveAPI(cancel context.CancelFunc, ldg *ledger.Ledger) func() {
	api := httpapi.NewServer(ldg, a.Config.API.CORSAllowedOrigins, a.Logger)
	srv := &http.Server{Addr: a.Config.API.ListenAddr, Handler: api.Router()}

	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("ledger api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("ledger api failed")
			cancel()
		}
	}()

	return func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("ledger api shutdown failed")
		}
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	Limit int
}

// AckOptions configure the ack command.
type AckOptions struct {
	ID     uint64
	Caller string
}

// SimulateOptions feed a synthetic sample pair through the full pipeline.
type SimulateOptions struct {
	PrevCount uint64
	PrevBlock uint64
	Count     uint64
	Block     uint64
}

// BackfillOptions configure the historical scan.
type BackfillOptions struct {
	FromBlock uint64
	ToBlock   uint64
	Stride    uint64
	DryRun    bool
	Detect    bool
}

// ExportOptions hold parameters for exporting observation history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
