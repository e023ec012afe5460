package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/api/middleware"
	"github.com/wonny/findata/internal/domain/stock"
)

// StatusOf maps an error class to an HTTP status
func StatusOf(err error) int {
	switch {
	case stock.IsValidationError(err):
		return http.StatusBadRequest
	case stock.IsNotFoundError(err):
		return http.StatusNotFound
	case stock.IsIntegrityError(err):
		return http.StatusConflict
	case stock.IsTransientError(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageOf hides store internals from clients
func messageOf(status int, err error) string {
	switch status {
	case http.StatusNotFound:
		return stock.ErrNotFound.Error()
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable, please retry"
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

// Error sends an error response. body is the empty response of the endpoint;
// setInfo puts the message on it.
func Error(w http.ResponseWriter, r *http.Request, err error, body interface{}, setInfo func(Info)) {
	status := StatusOf(err)
	message := messageOf(status, err)
	setInfo(Info{Error: message})

	event := log.Warn()
	if status >= 500 {
		event = log.Error()
	}
	event.
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Int("status", status).
		Msg("API error response")

	JSON(w, status, body)
}

// FinancialDataError sends an error on the list endpoint
func FinancialDataError(w http.ResponseWriter, r *http.Request, err error) {
	resp := FinancialDataResponse{Data: []StockItem{}}
	Error(w, r, err, &resp, func(i Info) { resp.Info = i })
}

// StatisticError sends an error on the statistics endpoint
func StatisticError(w http.ResponseWriter, r *http.Request, err error) {
	resp := StatisticResponse{}
	Error(w, r, err, &resp, func(i Info) { resp.Info = i })
}
