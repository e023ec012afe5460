package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
)

// Info carries the error message of a response; empty on success
type Info struct {
	Error string `json:"error"`
}

// Pagination represents pagination information
type Pagination struct {
	Count int `json:"count"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// StockItem is one record on the wire. Numbers are strings so prices keep two places.
type StockItem struct {
	Symbol     string `json:"symbol"`
	Date       string `json:"date"`
	OpenPrice  string `json:"open_price"`
	ClosePrice string `json:"close_price"`
	Volume     string `json:"volume"`
}

// FinancialDataResponse GET /api/financial_data
type FinancialDataResponse struct {
	Data       []StockItem `json:"data"`
	Pagination *Pagination `json:"pagination"`
	Info       Info        `json:"info"`
}

// Statistic is the average block of GET /api/statistics
type Statistic struct {
	Symbol                 string      `json:"symbol"`
	StartDate              string      `json:"start_date"`
	EndDate                string      `json:"end_date"`
	AverageDailyOpenPrice  json.Number `json:"average_daily_open_price"`
	AverageDailyClosePrice json.Number `json:"average_daily_close_price"`
	AverageDailyVolume     int64       `json:"average_daily_volume"`
}

// StatisticResponse GET /api/statistics
type StatisticResponse struct {
	Data *Statistic `json:"data"`
	Info Info       `json:"info"`
}

// NewFinancialData builds the list response of a page, dates formatted with layout
func NewFinancialData(page *stock.Page, layout string) FinancialDataResponse {
	items := make([]StockItem, 0, len(page.Records))
	for _, r := range page.Records {
		items = append(items, StockItem{
			Symbol:     r.Symbol,
			Date:       r.Date.Format(layout),
			OpenPrice:  r.OpenPrice.StringFixed(stock.PricePlaces),
			ClosePrice: r.ClosePrice.StringFixed(stock.PricePlaces),
			Volume:     strconv.FormatInt(r.Volume, 10),
		})
	}
	return FinancialDataResponse{
		Data: items,
		Pagination: &Pagination{
			Count: page.TotalCount,
			Page:  page.Page,
			Limit: page.PageSize,
			Pages: page.TotalPages(),
		},
	}
}

// NewStatistic builds the statistics response, dates formatted with layout
func NewStatistic(avg *stock.Average, layout string) StatisticResponse {
	return StatisticResponse{
		Data: &Statistic{
			Symbol:                 avg.Symbol,
			StartDate:              avg.StartDate.Format(layout),
			EndDate:                avg.EndDate.Format(layout),
			AverageDailyOpenPrice:  json.Number(avg.AvgOpen.StringFixed(stock.PricePlaces)),
			AverageDailyClosePrice: json.Number(avg.AvgClose.StringFixed(stock.PricePlaces)),
			AverageDailyVolume:     avg.AvgVolume,
		},
	}
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
