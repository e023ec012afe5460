package stock

import (
	"context"

	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

// SessionSource hands out units of work; *postgres.Manager implements it
type SessionSource interface {
	Session(ctx context.Context) (postgres.Session, error)
}

// Repository PostgreSQL 일봉 저장소 (financial_data)
type Repository struct {
	*BatchWriter
	*QueryEngine
	*AggregateEngine
}

var _ stock.Repository = (*Repository)(nil)

// NewRepository 저장소 생성
func NewRepository(sessions SessionSource) *Repository {
	return &Repository{
		BatchWriter:     NewBatchWriter(sessions),
		QueryEngine:     NewQueryEngine(sessions),
		AggregateEngine: NewAggregateEngine(sessions),
	}
}
