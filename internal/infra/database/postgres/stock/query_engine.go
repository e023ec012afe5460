package stock

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

// QueryEngine serves filtered, offset-paginated reads.
//
// Offset pagination makes the store skip (page-1)*pageSize matched rows, so the
// cost of a page grows with its number. Keyset pagination on (date, id) would
// avoid that for deep pages.
type QueryEngine struct {
	sessions SessionSource
}

// NewQueryEngine creates a QueryEngine
func NewQueryEngine(sessions SessionSource) *QueryEngine {
	return &QueryEngine{sessions: sessions}
}

// Query returns the total number of rows matching filter and the requested page.
// It fails with stock.ErrNotFound when nothing matches; a page past the end of a
// non-empty result returns the total and no records.
func (e *QueryEngine) Query(ctx context.Context, filter stock.Filter, pageSize, page int) (int, []stock.Record, error) {
	if err := validatePaging(filter, pageSize, page); err != nil {
		return 0, nil, fmt.Errorf("query stocks: %w", err)
	}

	where, args := buildWhere(filter)

	sess, err := e.sessions.Session(ctx)
	if err != nil {
		return 0, nil, postgres.ClassifyError("query stocks", err)
	}
	defer sess.Close()

	// count and page read the same snapshot
	tx, err := sess.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, nil, postgres.ClassifyError("query stocks: begin", err)
	}
	defer rollback(ctx, tx, "query")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", postgres.TableName, where)
	var total int
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error().Err(err).Msg("Error happened while counting stock items")
		return 0, nil, postgres.ClassifyError("count stocks", err)
	}
	if total == 0 {
		return 0, nil, fmt.Errorf("query stocks: %w", stock.ErrNotFound)
	}

	argIndex := len(args) + 1
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, selectColumns, postgres.TableName, where, orderBy(filter.Order), argIndex, argIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("Error happened while query stock items")
		return 0, nil, postgres.ClassifyError("query stocks", err)
	}
	defer rows.Close()

	records := []stock.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return 0, nil, postgres.ClassifyError("scan stock", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, postgres.ClassifyError("iterate stocks", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, postgres.ClassifyError("query stocks: commit", err)
	}

	return total, records, nil
}

func validatePaging(filter stock.Filter, pageSize, page int) error {
	if pageSize < 1 {
		return fmt.Errorf("%w: %w", stock.ErrValidation, stock.ErrInvalidPageSize)
	}
	if page < 1 {
		return fmt.Errorf("%w: %w", stock.ErrValidation, stock.ErrInvalidPage)
	}
	if page-1 > math.MaxInt32/pageSize {
		return fmt.Errorf("%w: %w: offset out of range", stock.ErrValidation, stock.ErrInvalidPage)
	}
	if !filter.Order.IsValid() {
		return fmt.Errorf("%w: %w %q", stock.ErrValidation, stock.ErrInvalidOrder, filter.Order)
	}
	return nil
}

// buildWhere renders the shared predicate of the count and page queries
func buildWhere(filter stock.Filter) (string, []any) {
	whereClauses := []string{}
	args := []any{}
	argIndex := 1

	if filter.Symbol != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("symbol = $%d", argIndex))
		args = append(args, *filter.Symbol)
		argIndex++
	}

	if filter.StartDate != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, stock.DateOnly(*filter.StartDate))
		argIndex++
	}

	if filter.EndDate != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, stock.DateOnly(*filter.EndDate))
	}

	if len(whereClauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(whereClauses, " AND "), args
}

func orderBy(order stock.Order) string {
	switch order {
	case stock.OrderDateAsc:
		return "ORDER BY date ASC, id ASC"
	case stock.OrderDateDesc:
		return "ORDER BY date DESC, id ASC"
	default:
		return "ORDER BY id ASC"
	}
}
