package stock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/findata/internal/domain/stock"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(symbol string, dayOffset int, open, close string, volume int64) stock.Record {
	return stock.Record{
		Symbol:     symbol,
		Date:       day0.AddDate(0, 0, dayOffset),
		OpenPrice:  decimal.RequireFromString(open),
		ClosePrice: decimal.RequireFromString(close),
		Volume:     volume,
	}
}

func series(symbol string, n int) []stock.Record {
	out := make([]stock.Record, n)
	for i := range out {
		out[i] = rec(symbol, i, "10.12", "20.12", int64(7892234+i))
	}
	return out
}

// emittedRows flattens the args of every executed chunk back into rows
func emittedRows(execs []recordedQuery) [][]any {
	var rows [][]any
	cols := len(recordColumns)
	for _, q := range execs {
		for i := 0; i < len(q.args); i += cols {
			rows = append(rows, q.args[i:i+cols])
		}
	}
	return rows
}

func TestBatchWriter_EmptyInputIsNoop(t *testing.T) {
	sessions := newFakeSessions()
	w := NewBatchWriter(sessions)

	n, err := w.Upsert(context.Background(), nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = w.Insert(context.Background(), []stock.Record{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, 0, sessions.opened)
}

func TestBatchWriter_ChunksInOneTransaction(t *testing.T) {
	sessions := newFakeSessions()
	w := NewBatchWriter(sessions)

	n, err := w.Upsert(context.Background(), series("IBM", 2001), 1000)
	require.NoError(t, err)
	assert.Equal(t, 2001, n)

	tx := sessions.sess.tx
	require.Len(t, tx.execs, 3)
	assert.Len(t, tx.execs[0].args, 1000*len(recordColumns))
	assert.Len(t, tx.execs[1].args, 1000*len(recordColumns))
	assert.Len(t, tx.execs[2].args, 1*len(recordColumns))

	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
	assert.Equal(t, 1, sessions.opened)
	assert.Equal(t, 1, sessions.sess.closed)
}

func TestBatchWriter_DefaultBatchSize(t *testing.T) {
	sessions := newFakeSessions()
	w := NewBatchWriter(sessions)

	_, err := w.Insert(context.Background(), series("IBM", stock.DefaultBatchSize+1), 0)
	require.NoError(t, err)
	assert.Len(t, sessions.sess.tx.execs, 2)
}

func TestBatchWriter_Statements(t *testing.T) {
	records := []stock.Record{rec("IBM", 0, "10.00", "10.50", 100), rec("IBM", 1, "11.00", "11.50", 200)}

	t.Run("upsert", func(t *testing.T) {
		sessions := newFakeSessions()
		_, err := NewBatchWriter(sessions).Upsert(context.Background(), records, 10)
		require.NoError(t, err)

		sql := sessions.sess.tx.execs[0].sql
		assert.True(t, strings.HasPrefix(sql,
			"INSERT INTO financial_data (symbol, date, open_price, close_price, volume) VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)"))
		assert.Contains(t, sql, "ON CONFLICT (symbol, date) DO UPDATE SET")
		assert.Contains(t, sql, "volume = EXCLUDED.volume")
	})

	t.Run("insert", func(t *testing.T) {
		sessions := newFakeSessions()
		_, err := NewBatchWriter(sessions).Insert(context.Background(), records, 10)
		require.NoError(t, err)

		sql := sessions.sess.tx.execs[0].sql
		assert.NotContains(t, sql, "ON CONFLICT")
	})

	t.Run("args", func(t *testing.T) {
		sessions := newFakeSessions()
		r := rec("IBM", 0, "10.005", "10.5", 100)
		r.Date = r.Date.Add(15 * time.Hour)
		_, err := NewBatchWriter(sessions).Upsert(context.Background(), []stock.Record{r}, 10)
		require.NoError(t, err)

		args := sessions.sess.tx.execs[0].args
		assert.Equal(t, "IBM", args[0])
		assert.Equal(t, day0, args[1])
		assert.Equal(t, "10.01", args[2].(decimal.Decimal).StringFixed(2))
		assert.Equal(t, "10.50", args[3].(decimal.Decimal).StringFixed(2))
		assert.Equal(t, int64(100), args[4])
	})
}

func TestBatchWriter_FailureRollsBackEverything(t *testing.T) {
	sessions := newFakeSessions()
	tx := sessions.sess.tx
	tx.failExecAt = 2
	tx.execErr = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

	n, err := NewBatchWriter(sessions).Insert(context.Background(), series("IBM", 25), 10)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, stock.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "chunk 1")

	assert.Len(t, tx.execs, 2, "no chunk after the failing one")
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 1, sessions.sess.closed)
}

func TestBatchWriter_RollbackSurvivesCancelledContext(t *testing.T) {
	sessions := newFakeSessions()
	tx := sessions.sess.tx
	tx.failExecAt = 1
	tx.execErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBatchWriter(sessions).Upsert(ctx, series("IBM", 3), 1)
	require.Error(t, err)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 1, sessions.sess.closed)
}

func TestBatchWriter_CommitFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sess.tx.commitErr = &pgconn.PgError{Code: "40001"}

	_, err := NewBatchWriter(sessions).Upsert(context.Background(), series("IBM", 3), 2)
	require.Error(t, err)
	assert.True(t, stock.IsTransientError(err))
	assert.Equal(t, 1, sessions.sess.closed)
}

func TestBatchWriter_BeginFailureReleasesSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sess.beginErr = errors.New("conn busy")

	_, err := NewBatchWriter(sessions).Upsert(context.Background(), series("IBM", 3), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrUnknownStore)
	assert.Equal(t, 1, sessions.sess.closed)
}

func TestBatchWriter_SessionFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.err = context.DeadlineExceeded

	_, err := NewBatchWriter(sessions).Upsert(context.Background(), series("IBM", 3), 2)
	assert.True(t, stock.IsTransientError(err))
}

func TestBatchWriter_ValidationBeforeAnyStatement(t *testing.T) {
	sessions := newFakeSessions()
	records := series("IBM", 3)
	records[2].Symbol = "IBM-1"

	_, err := NewBatchWriter(sessions).Upsert(context.Background(), records, 2)
	require.Error(t, err)
	assert.True(t, stock.IsValidationError(err))
	assert.Contains(t, err.Error(), "record 2")
	assert.Equal(t, 0, sessions.opened)
}

func TestBatchWriter_BatchSizeLimit(t *testing.T) {
	sessions := newFakeSessions()

	_, err := NewBatchWriter(sessions).Upsert(context.Background(), series("IBM", 1), MaxBatchSize+1)
	assert.ErrorIs(t, err, stock.ErrInvalidBatchSize)
	assert.True(t, stock.IsValidationError(err))

	_, err = NewBatchWriter(sessions).Upsert(context.Background(), series("IBM", 1), MaxBatchSize)
	assert.NoError(t, err)
}

func TestMaxBatchSizeFitsOneStatement(t *testing.T) {
	assert.Len(t, recordColumns, 5)
	assert.LessOrEqual(t, MaxBatchSize*len(recordColumns), maxBindParams)
	assert.Greater(t, (MaxBatchSize+1)*len(recordColumns), maxBindParams)
}

func TestBatchWriter_LastOccurrenceWins(t *testing.T) {
	sessions := newFakeSessions()
	records := []stock.Record{
		rec("IBM", 0, "10.00", "10.50", 100),
		rec("AAPL", 0, "50.00", "51.00", 500),
		rec("IBM", 1, "11.00", "11.50", 200),
		rec("IBM", 0, "12.00", "12.50", 999),
	}

	n, err := NewBatchWriter(sessions).Upsert(context.Background(), records, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := emittedRows(sessions.sess.tx.execs)
	require.Len(t, rows, 3)
	assert.Equal(t, "IBM", rows[0][0])
	assert.Equal(t, day0, rows[0][1])
	assert.Equal(t, "12.00", rows[0][2].(decimal.Decimal).StringFixed(2))
	assert.Equal(t, int64(999), rows[0][4])
	assert.Equal(t, "AAPL", rows[1][0])
	assert.Equal(t, int64(200), rows[2][4])
}

func TestBatchWriter_InsertKeepsDuplicates(t *testing.T) {
	sessions := newFakeSessions()
	records := []stock.Record{rec("IBM", 0, "1", "1", 1), rec("IBM", 0, "2", "2", 2)}

	_, err := NewBatchWriter(sessions).Insert(context.Background(), records, 10)
	require.NoError(t, err)
	assert.Len(t, emittedRows(sessions.sess.tx.execs), 2, "the store rejects the repeated key")
}

func TestBatchWriter_BatchSizeInvariance(t *testing.T) {
	records := series("IBM", 23)
	records = append(records, rec("IBM", 3, "99.99", "98.98", 1)) // repeated key

	var baseline [][]any
	for _, size := range []int{1, 2, 3, 7, 23, 24, 1000} {
		sessions := newFakeSessions()
		_, err := NewBatchWriter(sessions).Upsert(context.Background(), records, size)
		require.NoError(t, err)

		rows := emittedRows(sessions.sess.tx.execs)
		assert.Equal(t, 1, sessions.sess.tx.commits)
		if baseline == nil {
			baseline = rows
			continue
		}
		assert.Equal(t, baseline, rows, "batch size %d", size)
	}
	assert.Len(t, baseline, 23)
}

func TestCollapseDuplicates(t *testing.T) {
	assert.Empty(t, collapseDuplicates(nil))

	single := []stock.Record{rec("IBM", 0, "1", "1", 1)}
	assert.Equal(t, single, collapseDuplicates(single))

	sameDayDifferentTime := rec("IBM", 0, "3", "3", 3)
	sameDayDifferentTime.Date = sameDayDifferentTime.Date.Add(9 * time.Hour)
	out := collapseDuplicates([]stock.Record{rec("IBM", 0, "1", "1", 1), sameDayDifferentTime})
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].Volume)
}
