package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/pkg/config"
	"golang.org/x/sync/singleflight"
)

// Pool wraps pgxpool.Pool
type Pool struct {
	*pgxpool.Pool
}

// Session is one unit of work on a dedicated pooled connection.
// It must not be shared between concurrently running operations.
type Session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)

	// Close returns the connection to the pool
	Close()
}

type connector func(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error)

// Manager owns the process-wide connection pool.
// It is built once at start-up and handed to every repository.
type Manager struct {
	cfg    config.DatabaseConfig
	tracer pgx.QueryTracer

	mu   sync.RWMutex
	pool *Pool
	sf   singleflight.Group

	connect connector
}

// Option configures a Manager
type Option func(*Manager)

// WithQueryLogger traces queries to logger. At debug level every statement
// is logged through tracelog; otherwise only slow and failed queries.
func WithQueryLogger(logger zerolog.Logger, level string) Option {
	return func(m *Manager) {
		if level == "debug" || level == "trace" {
			m.tracer = &tracelog.TraceLog{
				Logger:   NewPgxZerologAdapter(logger),
				LogLevel: tracelog.LogLevelDebug,
			}
			return
		}
		m.tracer = NewQueryLogger(logger)
	}
}

// NewManager creates a manager. No connection is made until the first Handle call.
func NewManager(cfg config.DatabaseConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		connect: connectAndPing,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the shared pool, creating it on first use.
// Concurrent first callers share one initialisation; a failed attempt is not cached.
func (m *Manager) Handle(ctx context.Context) (*Pool, error) {
	m.mu.RLock()
	pool := m.pool
	m.mu.RUnlock()
	if pool != nil {
		return pool, nil
	}

	v, err, _ := m.sf.Do("pool", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		// Double-check after acquiring lock
		if m.pool != nil {
			return m.pool, nil
		}

		p, err := m.newPool(ctx)
		if err != nil {
			return nil, err
		}
		m.pool = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

// Session acquires a dedicated connection from the shared pool
func (m *Manager) Session(ctx context.Context) (Session, error) {
	pool, err := m.Handle(ctx)
	if err != nil {
		return nil, ClassifyError("connect", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, ClassifyError("acquire connection", err)
	}
	return &pooledSession{Conn: conn}, nil
}

// Close closes the pool if it was ever created
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil {
		return
	}
	log.Info().Msg("Closing PostgreSQL connection pool...")
	m.pool.Close()
	m.pool = nil
}

func (m *Manager) newPool(ctx context.Context) (*Pool, error) {
	log.Info().
		Str("host", m.cfg.Host).
		Str("port", m.cfg.Port).
		Str("database", m.cfg.Name).
		Str("user", m.cfg.User).
		Msg("Connecting to PostgreSQL...")

	poolConfig, err := pgxpool.ParseConfig(m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if m.cfg.MaxConns > 0 {
		poolConfig.MaxConns = m.cfg.MaxConns
	}
	if m.cfg.MinConns > 0 {
		poolConfig.MinConns = m.cfg.MinConns
	}
	if m.cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = m.cfg.MaxConnLifetime
	}
	if m.cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = m.cfg.MaxConnIdleTime
	}
	if m.tracer != nil {
		poolConfig.ConnConfig.Tracer = m.tracer
	}

	pool, err := m.connect(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("✅ PostgreSQL connected successfully")
	return &Pool{Pool: pool}, nil
}

func connectAndPing(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

type pooledSession struct {
	*pgxpool.Conn
}

func (s *pooledSession) Close() {
	s.Conn.Release()
}
