package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/pkg/config"
)

// lazyConnector builds a pool without dialing; pgxpool only connects on Acquire.
func lazyConnector(calls *int32) connector {
	return func(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
		atomic.AddInt32(calls, 1)
		return pgxpool.NewWithConfig(ctx, poolConfig)
	}
}

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{URL: "postgres://u:p@127.0.0.1:1/none?sslmode=disable", MaxConns: 4}
}

func TestManager_HandleInitializesOnce(t *testing.T) {
	var calls int32
	m := NewManager(testDatabaseConfig())
	m.connect = lazyConnector(&calls)
	defer m.Close()

	const workers = 32
	pools := make([]*Pool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := m.Handle(context.Background())
			assert.NoError(t, err)
			pools[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, p := range pools {
		assert.Same(t, pools[0], p)
	}
}

func TestManager_FailedInitIsRetried(t *testing.T) {
	var calls int32
	m := NewManager(testDatabaseConfig())
	m.connect = func(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("database is starting up")
		}
		return pgxpool.NewWithConfig(ctx, poolConfig)
	}
	defer m.Close()

	_, err := m.Handle(context.Background())
	require.Error(t, err)

	p, err := m.Handle(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestManager_PoolSettings(t *testing.T) {
	var calls int32
	cfg := testDatabaseConfig()
	cfg.MaxConns = 7
	m := NewManager(cfg)
	m.connect = lazyConnector(&calls)
	defer m.Close()

	p, err := m.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(7), p.Config().MaxConns)
}

func TestManager_BadURL(t *testing.T) {
	m := NewManager(config.DatabaseConfig{URL: "postgres://user@%zz/db"})
	_, err := m.Handle(context.Background())
	assert.Error(t, err)
}

func TestManager_SessionClassifiesConnectFailure(t *testing.T) {
	m := NewManager(testDatabaseConfig())
	m.connect = func(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := m.Session(context.Background())
	require.Error(t, err)
	assert.True(t, stock.IsTransientError(err))
}

func TestManager_CloseWithoutPool(t *testing.T) {
	m := NewManager(testDatabaseConfig())
	assert.NotPanics(t, m.Close)
}

// TestManager_Live requires a PostgreSQL reachable through FINDATA_TEST_DATABASE_URL
func TestManager_Live(t *testing.T) {
	url := os.Getenv("FINDATA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires PostgreSQL (set FINDATA_TEST_DATABASE_URL)")
	}

	ctx := context.Background()
	m := NewManager(config.DatabaseConfig{URL: url})
	defer m.Close()

	sess, err := m.Session(ctx)
	require.NoError(t, err)
	defer sess.Close()

	var one int
	require.NoError(t, sess.QueryRow(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	health := m.Health(ctx)
	assert.NotEqual(t, "unhealthy", health.Status)
	assert.Greater(t, health.MaxConns, int32(0))
}
