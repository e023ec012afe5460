package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/pkg/config"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"
	defaultTimeout = 30 * time.Second
)

// ErrRateLimited is returned when the API answers with a throttling note instead of data
var ErrRateLimited = errors.New("alpha vantage rate limit")

// Client Alpha Vantage 일봉 클라이언트
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient 클라이언트 생성
func NewClient(cfg config.AlphaVantageConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
	}
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailyResponse struct {
	MetaData     map[string]string   `json:"Meta Data"`
	TimeSeries   map[string]dailyBar `json:"Time Series (Daily)"`
	ErrorMessage string              `json:"Error Message"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
}

// FetchDaily 일봉 수집 (TIME_SERIES_DAILY, compact)
// Returns at most days records, most recent first.
func (c *Client) FetchDaily(ctx context.Context, symbol string, days int) ([]stock.Record, error) {
	if !stock.ValidateSymbol(symbol) {
		return nil, fmt.Errorf("%w: %w %q", stock.ErrValidation, stock.ErrInvalidSymbol, symbol)
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("outputsize", "compact")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case payload.ErrorMessage != "":
		return nil, fmt.Errorf("alpha vantage %s: %s", symbol, payload.ErrorMessage)
	case payload.Note != "":
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, payload.Note)
	case payload.TimeSeries == nil && payload.Information != "":
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, payload.Information)
	}

	records, err := toRecords(symbol, payload.TimeSeries, days)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("symbol", symbol).
		Int("count", len(records)).
		Msg("Fetched daily prices from Alpha Vantage")

	return records, nil
}

// toRecords keeps the most recent days entries, newest first
func toRecords(symbol string, series map[string]dailyBar, days int) ([]stock.Record, error) {
	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	// ISO 날짜는 문자열 정렬 = 시간 정렬
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if days > 0 && len(dates) > days {
		dates = dates[:days]
	}

	records := make([]stock.Record, 0, len(dates))
	for _, d := range dates {
		bar := series[d]

		date, err := time.Parse(stock.DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", d, err)
		}
		open, err := decimal.NewFromString(bar.Open)
		if err != nil {
			return nil, fmt.Errorf("parse open %s: %w", d, err)
		}
		closePrice, err := decimal.NewFromString(bar.Close)
		if err != nil {
			return nil, fmt.Errorf("parse close %s: %w", d, err)
		}
		volume, err := strconv.ParseInt(bar.Volume, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume %s: %w", d, err)
		}

		records = append(records, stock.Record{
			Symbol:     symbol,
			Date:       date,
			OpenPrice:  stock.RoundPrice(open),
			ClosePrice: stock.RoundPrice(closePrice),
			Volume:     volume,
		})
	}
	return records, nil
}
