package financial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
)

// DailyFetcher fetches the most recent days of daily records for a symbol.
// Implemented by alphavantage.Client.
type DailyFetcher interface {
	FetchDaily(ctx context.Context, symbol string, days int) ([]stock.Record, error)
}

// SyncResult 심볼별 수집 결과
type SyncResult struct {
	Symbol  string
	Fetched int
	Written int
	Err     error
}

// Sync fetches each symbol and upserts what it got. A failing symbol does not
// stop the others; the joined error lists every failure.
func (s *Service) Sync(ctx context.Context, fetcher DailyFetcher, symbols []string, days int) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(symbols))
	var errs []error

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := SyncResult{Symbol: symbol}
		records, err := fetcher.FetchDaily(ctx, symbol, days)
		if err == nil {
			res.Fetched = len(records)
			res.Written, err = s.Ingest(ctx, records)
		}
		if err != nil {
			res.Err = err
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			log.Error().Err(err).Str("symbol", symbol).Msg("Sync failed")
		} else {
			log.Info().Str("symbol", symbol).Int("written", res.Written).Msg("Synced daily prices")
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// Syncer runs Sync on a fixed interval until stopped
type Syncer struct {
	svc      *Service
	fetcher  DailyFetcher
	symbols  []string
	days     int
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
	mu      sync.Mutex
}

// NewSyncer 주기 수집기 생성
func NewSyncer(svc *Service, fetcher DailyFetcher, symbols []string, days int, interval time.Duration) *Syncer {
	return &Syncer{svc: svc, fetcher: fetcher, symbols: symbols, days: days, interval: interval}
}

// Start 수집 루프 시작
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("syncer already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop 수집 루프 중지
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Syncer stopped")
}

func (s *Syncer) run() {
	defer s.wg.Done()

	logger := log.With().Str("collector", "alphavantage").Logger()
	logger.Info().Dur("interval", s.interval).Strs("symbols", s.symbols).Msg("Collector started")

	// 초기 수집
	if _, err := s.svc.Sync(s.ctx, s.fetcher, s.symbols, s.days); err != nil {
		logger.Error().Err(err).Msg("Initial collection failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.svc.Sync(s.ctx, s.fetcher, s.symbols, s.days); err != nil {
				logger.Error().Err(err).Msg("Collection failed")
			}
		case <-s.ctx.Done():
			return
		}
	}
}
