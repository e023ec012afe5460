package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/findata/internal/api/response"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/service/financial"
)

// FinancialService is the part of financial.Service the handlers use
type FinancialService interface {
	List(ctx context.Context, p financial.ListParams) (*stock.Page, error)
	Statistics(ctx context.Context, symbol string, start, end time.Time) (*stock.Average, error)
}

// FinancialHandler serves the financial data and statistics endpoints
type FinancialHandler struct {
	svc        FinancialService
	dateLayout string
}

// NewFinancialHandler creates a new FinancialHandler. dateLayout is used for
// both parsing query dates and formatting response dates.
func NewFinancialHandler(svc FinancialService, dateLayout string) *FinancialHandler {
	if dateLayout == "" {
		dateLayout = stock.DateLayout
	}
	return &FinancialHandler{svc: svc, dateLayout: dateLayout}
}

// GetFinancialData returns a page of daily records
// GET /api/financial_data?symbol=IBM&start_date=2024-01-01&end_date=2024-01-14&limit=5&page=1
func (h *FinancialHandler) GetFinancialData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := h.optionalDate(q.Get("start_date"), "start_date")
	if err != nil {
		response.FinancialDataError(w, r, err)
		return
	}
	end, err := h.optionalDate(q.Get("end_date"), "end_date")
	if err != nil {
		response.FinancialDataError(w, r, err)
		return
	}
	limit, err := positiveInt(q.Get("limit"), "limit", financial.DefaultPageSize)
	if err != nil {
		response.FinancialDataError(w, r, err)
		return
	}
	page, err := positiveInt(q.Get("page"), "page", 1)
	if err != nil {
		response.FinancialDataError(w, r, err)
		return
	}

	result, err := h.svc.List(r.Context(), financial.ListParams{
		Symbol:    strings.TrimSpace(q.Get("symbol")),
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Page:      page,
		Order:     stock.Order(q.Get("order")),
	})
	if err != nil {
		response.FinancialDataError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NewFinancialData(result, h.dateLayout))
}

// GetStatistics returns the averages of a symbol over a date range
// GET /api/statistics?symbol=IBM&start_date=2024-01-01&end_date=2024-01-14
func (h *FinancialHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		response.StatisticError(w, r, fmt.Errorf("%w: symbol is required", stock.ErrValidation))
		return
	}
	start, err := h.requiredDate(q.Get("start_date"), "start_date")
	if err != nil {
		response.StatisticError(w, r, err)
		return
	}
	end, err := h.requiredDate(q.Get("end_date"), "end_date")
	if err != nil {
		response.StatisticError(w, r, err)
		return
	}

	avg, err := h.svc.Statistics(r.Context(), symbol, start, end)
	if err != nil {
		response.StatisticError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NewStatistic(avg, h.dateLayout))
}

func (h *FinancialHandler) optionalDate(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := h.requiredDate(raw, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *FinancialHandler) requiredDate(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", stock.ErrValidation, name)
	}
	t, err := time.Parse(h.dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w: %s %q does not match %s", stock.ErrValidation, stock.ErrInvalidDate, name, raw, h.dateLayout)
	}
	return t, nil
}

func positiveInt(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", stock.ErrValidation, name, raw)
	}
	return n, nil
}
