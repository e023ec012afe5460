package financial

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
)

// MaxPageSize caps the page size accepted from callers
const MaxPageSize = 100

// DefaultPageSize is used when a caller leaves the page size unset
const DefaultPageSize = 5

// StatsCache is the read-through cache for averages. Implemented by cache.StatsCache.
type StatsCache interface {
	Generation(ctx context.Context, symbol string) (int64, error)
	Get(ctx context.Context, symbol string, gen int64, start, end time.Time) (*stock.Average, bool, error)
	Set(ctx context.Context, gen int64, avg *stock.Average) error
	Invalidate(ctx context.Context, symbol string) (int, error)
}

// Service 일봉 조회/통계/적재 서비스
type Service struct {
	repo      stock.Repository
	cache     StatsCache // nil이면 캐시 없이 동작
	batchSize int
}

// NewService 서비스 생성. cache may be nil.
func NewService(repo stock.Repository, cache StatsCache, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = stock.DefaultBatchSize
	}
	return &Service{repo: repo, cache: cache, batchSize: batchSize}
}

// ListParams are the caller-facing inputs of a paged query
type ListParams struct {
	Symbol    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Page      int
	Order     stock.Order
}

// List returns one page of records. Limit defaults to DefaultPageSize and is capped at MaxPageSize.
func (s *Service) List(ctx context.Context, p ListParams) (*stock.Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageSize
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit < 0 {
		return nil, fmt.Errorf("%w: %w", stock.ErrValidation, stock.ErrInvalidPageSize)
	}
	if p.Page < 0 {
		return nil, fmt.Errorf("%w: %w", stock.ErrValidation, stock.ErrInvalidPage)
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}

	filter := stock.Filter{StartDate: p.StartDate, EndDate: p.EndDate, Order: p.Order}
	if p.Symbol != "" {
		if !stock.ValidateSymbol(p.Symbol) {
			return nil, fmt.Errorf("%w: %w %q", stock.ErrValidation, stock.ErrInvalidSymbol, p.Symbol)
		}
		filter.Symbol = &p.Symbol
	}
	if err := checkRange(p.StartDate, p.EndDate); err != nil {
		return nil, err
	}

	total, records, err := s.repo.Query(ctx, filter, p.Limit, p.Page)
	if err != nil {
		return nil, err
	}

	return &stock.Page{
		Records:    records,
		TotalCount: total,
		Page:       p.Page,
		PageSize:   p.Limit,
	}, nil
}

// Statistics returns the rounded averages of symbol over [start, end],
// served from the cache when present.
func (s *Service) Statistics(ctx context.Context, symbol string, start, end time.Time) (*stock.Average, error) {
	if !stock.ValidateSymbol(symbol) {
		return nil, fmt.Errorf("%w: %w %q", stock.ErrValidation, stock.ErrInvalidSymbol, symbol)
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: %w: start and end date are required", stock.ErrValidation, stock.ErrInvalidDate)
	}
	if err := checkRange(&start, &end); err != nil {
		return nil, err
	}
	start, end = stock.DateOnly(start), stock.DateOnly(end)

	// 세대는 Average 전에 읽는다. 그 사이 Ingest가 끝나면 이 결과는 이전 세대에 저장된다
	useCache := s.cache != nil
	var gen int64
	if useCache {
		g, err := s.cache.Generation(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Stats cache read failed")
			useCache = false
		} else {
			gen = g
			avg, ok, err := s.cache.Get(ctx, symbol, gen, start, end)
			if err != nil {
				log.Warn().Err(err).Str("symbol", symbol).Msg("Stats cache read failed")
			} else if ok {
				return avg, nil
			}
		}
	}

	avg, err := s.repo.Average(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := s.cache.Set(ctx, gen, avg); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Stats cache write failed")
		}
	}
	return avg, nil
}

// Ingest upserts records and drops cached statistics of every symbol written
func (s *Service) Ingest(ctx context.Context, records []stock.Record) (int, error) {
	n, err := s.repo.Upsert(ctx, records, s.batchSize)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, records)
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, records []stock.Record) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Symbol] {
			continue
		}
		seen[r.Symbol] = true
		if _, err := s.cache.Invalidate(ctx, r.Symbol); err != nil {
			log.Warn().Err(err).Str("symbol", r.Symbol).Msg("Stats cache invalidation failed")
		}
	}
}

func checkRange(start, end *time.Time) error {
	if start != nil && end != nil && stock.DateOnly(*start).After(stock.DateOnly(*end)) {
		return fmt.Errorf("%w: %w", stock.ErrValidation, stock.ErrInvalidDateRange)
	}
	return nil
}
