package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wonny/findata/internal/domain/stock"
)

// SQLSTATE codes that are safe to retry
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// ClassifyError wraps err with the stock error class it belongs to.
// Errors that already carry a class are only annotated with op.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	for _, class := range []error{
		stock.ErrValidation, stock.ErrNotFound, stock.ErrIntegrity,
		stock.ErrTransientStore, stock.ErrUnknownStore,
	} {
		if errors.Is(err, class) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return fmt.Errorf("%s: %w: %w", op, classOf(err), err)
}

func classOf(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"): // integrity_constraint_violation
			return stock.ErrIntegrity
		case strings.HasPrefix(pgErr.Code, "22"): // data_exception (e.g. numeric overflow)
			return stock.ErrValidation
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"):
			return stock.ErrTransientStore
		case transientCodes[pgErr.Code]:
			return stock.ErrTransientStore
		default:
			return stock.ErrUnknownStore
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return stock.ErrTransientStore
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return stock.ErrTransientStore
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return stock.ErrTransientStore
	}

	return stock.ErrUnknownStore
}
