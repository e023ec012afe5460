package stock

import (
	"context"
	"time"
)

// DefaultBatchSize is the chunk size used when a caller passes a non-positive one
const DefaultBatchSize = 1000

// MaxBatchSize is the largest chunk one statement can carry:
// PostgreSQL's 65535 bind parameters over the 5 columns each record binds.
const MaxBatchSize = 65535 / 5

// Writer persists records in chunks inside a single transaction
type Writer interface {
	// Insert fails with ErrIntegrity when a (symbol, date) key already exists
	Insert(ctx context.Context, records []Record, batchSize int) (int, error)

	// Upsert overwrites open_price, close_price and volume of existing keys
	Upsert(ctx context.Context, records []Record, batchSize int) (int, error)
}

// Reader returns a filtered page plus the total matching count
type Reader interface {
	Query(ctx context.Context, filter Filter, pageSize, page int) (int, []Record, error)
}

// Aggregator computes rounded means over a symbol and inclusive date range
type Aggregator interface {
	Average(ctx context.Context, symbol string, startDate, endDate time.Time) (*Average, error)
}

// Repository combines all financial data operations
type Repository interface {
	Writer
	Reader
	Aggregator
}
