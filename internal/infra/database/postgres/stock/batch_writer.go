package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

// maxBindParams is PostgreSQL's limit on parameters per statement
const maxBindParams = 65535

// MaxBatchSize is the largest chunk that fits in one statement.
// stock.MaxBatchSize divides by 5, the length of recordColumns.
const MaxBatchSize = stock.MaxBatchSize

const upsertClause = `
	ON CONFLICT (symbol, date) DO UPDATE SET
		open_price = EXCLUDED.open_price,
		close_price = EXCLUDED.close_price,
		volume = EXCLUDED.volume`

// BatchWriter writes records in chunks, one transaction per call
type BatchWriter struct {
	sessions SessionSource
}

// NewBatchWriter creates a BatchWriter
func NewBatchWriter(sessions SessionSource) *BatchWriter {
	return &BatchWriter{sessions: sessions}
}

// Insert 일괄 저장. An existing (symbol, date) key, or one repeated within
// records, fails the whole call with stock.ErrIntegrity.
func (w *BatchWriter) Insert(ctx context.Context, records []stock.Record, batchSize int) (int, error) {
	return w.write(ctx, "insert", records, batchSize, false)
}

// Upsert 일괄 저장 (있으면 업데이트, 없으면 생성).
// When a key repeats within records the last occurrence wins.
func (w *BatchWriter) Upsert(ctx context.Context, records []stock.Record, batchSize int) (int, error) {
	return w.write(ctx, "upsert", collapseDuplicates(records), batchSize, true)
}

func (w *BatchWriter) write(ctx context.Context, op string, records []stock.Record, batchSize int, upsert bool) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	size, err := normalizeBatchSize(batchSize)
	if err != nil {
		return 0, fmt.Errorf("%s stocks: %w", op, err)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("%s stocks: record %d: %w", op, i, err)
		}
	}

	sess, err := w.sessions.Session(ctx)
	if err != nil {
		return 0, postgres.ClassifyError(op+" stocks", err)
	}
	defer sess.Close()

	tx, err := sess.Begin(ctx)
	if err != nil {
		return 0, postgres.ClassifyError(op+" stocks: begin", err)
	}

	finished := false
	defer func() {
		if !finished {
			rollback(ctx, tx, op)
		}
	}()

	chunks := 0
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}

		sql, args := buildInsert(records[start:end], upsert)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			log.Error().
				Err(err).
				Str("op", op).
				Int("chunk", chunks).
				Int("rows", len(records)).
				Msg("Error happened while writing stock items, rolling back")
			finished = true
			rollback(ctx, tx, op)
			return 0, postgres.ClassifyError(fmt.Sprintf("%s stocks: chunk %d", op, chunks), err)
		}
		chunks++
	}

	finished = true
	if err := tx.Commit(ctx); err != nil {
		rollback(ctx, tx, op)
		return 0, postgres.ClassifyError(op+" stocks: commit", err)
	}

	log.Info().
		Str("op", op).
		Int("rows", len(records)).
		Int("chunks", chunks).
		Int("batch_size", size).
		Msgf("Wrote %d stock items", len(records))

	return len(records), nil
}

// rollback runs even when ctx is already cancelled
func rollback(ctx context.Context, tx pgx.Tx, op string) {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Warn().Err(err).Str("op", op).Msg("Rollback failed")
	}
}

func normalizeBatchSize(batchSize int) (int, error) {
	if batchSize <= 0 {
		return stock.DefaultBatchSize, nil
	}
	if batchSize > MaxBatchSize {
		return 0, fmt.Errorf("%w: %w: %d exceeds %d", stock.ErrValidation, stock.ErrInvalidBatchSize, batchSize, MaxBatchSize)
	}
	return batchSize, nil
}

// buildInsert renders one multi-row INSERT for a chunk
func buildInsert(rows []stock.Record, upsert bool) (string, []any) {
	var b strings.Builder
	cols := len(recordColumns)
	args := make([]any, 0, len(rows)*cols)

	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", postgres.TableName, strings.Join(recordColumns, ", "))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+c+1)
		}
		b.WriteByte(')')
		args = append(args, recordArgs(r)...)
	}
	if upsert {
		b.WriteString(upsertClause)
	}
	return b.String(), args
}

// collapseDuplicates keeps one record per (symbol, date): it stays at the
// position of the key's first occurrence and carries its last occurrence's values.
func collapseDuplicates(records []stock.Record) []stock.Record {
	if len(records) < 2 {
		return records
	}

	index := make(map[stock.Key]int, len(records))
	out := make([]stock.Record, 0, len(records))
	for _, r := range records {
		key := stock.KeyOf(r)
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}
