package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/config"
	"pair-growth-alerts/internal/detector"
	"pair-growth-alerts/internal/fetcher"
	"pair-growth-alerts/internal/ledger"
	"pair-growth-alerts/internal/scheduler"
	"pair-growth-alerts/internal/storage"
)

// Service orchestrates sampling, detection, and alert ingestion.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.PairCountFetcher
	store     storage.PairSampleStore
	ledger    *ledger.Ledger
	detector  *detector.Detector
	logger    zerolog.Logger

	operator common.Address
	locker   storage.AdvisoryLocker
	lockKey  int64

	// window holds encoded samples newest first, capped at depth.
	window [][]byte
	depth  int
}

// New constructs the watcher service.
func New(cfg *config.Config, sched *scheduler.Scheduler, fetch fetcher.PairCountFetcher, store storage.PairSampleStore, ldg *ledger.Ledger, det *detector.Detector, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	depth := cfg.Detector.Window
	if depth < 2 {
		depth = 2
	}

	return &Service{
		scheduler: sched,
		fetcher:   fetch,
		store:     store,
		ledger:    ldg,
		detector:  det,
		logger:    logger.With().Str("component", "service").Logger(),
		operator:  cfg.Ledger.Operator(),
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		depth:     depth,
	}
}

// Run begins the sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick samples the factory once and evaluates the updated window.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", at).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, at)
}

func (s *Service) executeTick(ctx context.Context, at time.Time) error {
	sample := s.collectSample(ctx)

	blob, err := detector.EncodeSample(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	s.persistSample(ctx, sample, at)
	s.pushSample(blob)

	decision := s.detector.Evaluate(s.window)
	if !decision.Trigger {
		s.logger.Debug().Time("tick", at).
			Str("pair_count", sample.Count.String()).
			Bool("valid", sample.Valid).
			Msg("no anomalous growth")
		return nil
	}

	payload, err := decision.Payload()
	if err != nil {
		return fmt.Errorf("encode response payload: %w", err)
	}
	pairCount, delta, sampleBlock, err := detector.DecodeResponse(payload)
	if err != nil {
		return fmt.Errorf("decode response payload: %w", err)
	}

	id, err := s.ledger.Ingest(ctx, pairCount, delta, sampleBlock, s.operator)
	if err != nil {
		return fmt.Errorf("ingest alert: %w", err)
	}

	s.logger.Warn().Time("tick", at).
		Uint64("alert_id", id).
		Str("pair_count", pairCount.String()).
		Str("delta", delta.String()).
		Str("sample_block", sampleBlock.String()).
		Msg("pair growth alert raised")

	return nil
}

// collectSample reads the factory counter. A failed read becomes an
// invalid sample, never a fabricated value.
func (s *Service) collectSample(ctx context.Context) detector.Sample {
	count, block, err := s.fetcher.FetchPairCount(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("pair count fetch failed, recording invalid sample")
		return detector.Sample{Count: new(big.Int), Block: new(big.Int), Valid: false}
	}
	return detector.Sample{Count: count, Block: new(big.Int).SetUint64(block), Valid: true}
}

func (s *Service) persistSample(ctx context.Context, sample detector.Sample, at time.Time) {
	if s.store == nil {
		return
	}
	record := storage.PairSample{
		Block:      new(big.Int).Set(sample.Block),
		PairCount:  new(big.Int).Set(sample.Count),
		Valid:      sample.Valid,
		Source:     storage.SourceLive,
		ObservedAt: at.UTC(),
	}
	if err := s.store.InsertSample(ctx, record); err != nil {
		s.logger.Error().Err(err).Time("tick", at).Msg("failed to persist sample")
	}
}

func (s *Service) pushSample(blob []byte) {
	s.window = append([][]byte{blob}, s.window...)
	if len(s.window) > s.depth {
		s.window = s.window[:s.depth]
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
