package stock

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

type recordedQuery struct {
	sql  string
	args []any
}

// fakeSessions hands out the same fakeSession on every call
type fakeSessions struct {
	sess   *fakeSession
	err    error
	opened int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sess: &fakeSession{tx: &fakeTx{}}}
}

func (f *fakeSessions) Session(ctx context.Context) (postgres.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	return f.sess, nil
}

// fakeSession embeds the interface so unused methods panic if reached
type fakeSession struct {
	postgres.Session

	tx        *fakeTx
	beginErr  error
	txOptions *pgx.TxOptions
	closed    int

	row     fakeRow
	queries []recordedQuery
}

func (s *fakeSession) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func (s *fakeSession) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.txOptions = &opts
	return s.Begin(ctx)
}

func (s *fakeSession) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.queries = append(s.queries, recordedQuery{sql: sql, args: args})
	return s.row
}

func (s *fakeSession) Close() {
	s.closed++
}

// fakeTx records statements. failExecAt is the 1-based Exec call that fails.
type fakeTx struct {
	pgx.Tx

	execs      []recordedQuery
	failExecAt int
	execErr    error

	commitErr error
	commits   int
	rollbacks int
	done      bool

	countRow fakeRow
	rows     *fakeRows
	queries  []recordedQuery
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, recordedQuery{sql: sql, args: args})
	if tx.failExecAt == len(tx.execs) {
		return pgconn.CommandTag{}, tx.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", len(args)/len(recordColumns))), nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.commits++
	return tx.commitErr
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.rollbacks++
	return nil
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx.queries = append(tx.queries, recordedQuery{sql: sql, args: args})
	return tx.countRow
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx.queries = append(tx.queries, recordedQuery{sql: sql, args: args})
	if tx.rows == nil {
		return &fakeRows{}, nil
	}
	return tx.rows, nil
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type fakeRows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(vals[i]))
	}
	return nil
}
