package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

// AggregateEngine computes averages over a symbol and date range
type AggregateEngine struct {
	sessions SessionSource
}

// NewAggregateEngine creates an AggregateEngine
func NewAggregateEngine(sessions SessionSource) *AggregateEngine {
	return &AggregateEngine{sessions: sessions}
}

// Average returns the mean open, close and volume of symbol between startDate
// and endDate inclusive. Prices are rounded half-up to 2 places and volume to
// an integer. No matching rows is stock.ErrNotFound, not a zero average.
func (e *AggregateEngine) Average(ctx context.Context, symbol string, startDate, endDate time.Time) (*stock.Average, error) {
	if symbol == "" {
		return nil, fmt.Errorf("average stocks: %w: %w", stock.ErrValidation, stock.ErrInvalidSymbol)
	}
	if startDate.IsZero() || endDate.IsZero() {
		return nil, fmt.Errorf("average stocks: %w: %w", stock.ErrValidation, stock.ErrInvalidDate)
	}

	sess, err := e.sessions.Session(ctx)
	if err != nil {
		return nil, postgres.ClassifyError("average stocks", err)
	}
	defer sess.Close()

	query := fmt.Sprintf(`
		SELECT COUNT(*), AVG(open_price), AVG(close_price), AVG(volume)
		FROM %s
		WHERE symbol = $1 AND date >= $2 AND date <= $3
	`, postgres.TableName)

	var (
		count                       int64
		avgOpen, avgClose, avgVolume decimal.NullDecimal
	)
	start, end := stock.DateOnly(startDate), stock.DateOnly(endDate)
	if err := sess.QueryRow(ctx, query, symbol, start, end).Scan(&count, &avgOpen, &avgClose, &avgVolume); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("Error happened while query statistic data")
		return nil, postgres.ClassifyError("average stocks", err)
	}

	if count == 0 || !avgOpen.Valid || !avgClose.Valid || !avgVolume.Valid {
		return nil, fmt.Errorf("average stocks: %w", stock.ErrNotFound)
	}

	return &stock.Average{
		Symbol:    symbol,
		StartDate: start,
		EndDate:   end,
		AvgOpen:   stock.RoundPrice(avgOpen.Decimal),
		AvgClose:  stock.RoundPrice(avgClose.Decimal),
		AvgVolume: stock.RoundVolume(avgVolume.Decimal),
		Count:     count,
	}, nil
}
