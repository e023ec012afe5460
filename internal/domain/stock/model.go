package stock

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// MaxSymbolLength matches the width of the symbol column
const MaxSymbolLength = 32

// PricePlaces is the number of fractional digits stored for prices
const PricePlaces = 2

var symbolPattern = regexp.MustCompile(`^[A-Za-z_.]+$`)

// Record represents one daily observation of a ticker
// Maps to financial_data table
type Record struct {
	ID         int64           `json:"id"`          // 저장소가 부여 (입력으로 사용하지 않음)
	Symbol     string          `json:"symbol"`      // letters, underscore, dot
	Date       time.Time       `json:"date"`        // 일자 (시간 성분 없음)
	OpenPrice  decimal.Decimal `json:"open_price"`  // NUMERIC(19,2)
	ClosePrice decimal.Decimal `json:"close_price"` // NUMERIC(19,2)
	Volume     int64           `json:"volume"`
}

// Key is the natural key of a record
type Key struct {
	Symbol string
	Date   time.Time
}

// KeyOf returns the (symbol, date) key of a record with the date truncated to a calendar day
func KeyOf(r Record) Key {
	return Key{Symbol: r.Symbol, Date: DateOnly(r.Date)}
}

// DateOnly drops the time-of-day component, keeping the calendar day of t
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateSymbol reports whether symbol is non-empty, fits the column
// and only contains letters, underscore or dot
func ValidateSymbol(symbol string) bool {
	if symbol == "" || len(symbol) > MaxSymbolLength {
		return false
	}
	return symbolPattern.MatchString(symbol)
}

// Validate checks a record before it is written
func (r Record) Validate() error {
	if !ValidateSymbol(r.Symbol) {
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrInvalidSymbol, r.Symbol)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: %w for %s", ErrValidation, ErrInvalidDate, r.Symbol)
	}
	if r.OpenPrice.IsNegative() || r.ClosePrice.IsNegative() {
		return fmt.Errorf("%w: %w for %s on %s", ErrValidation, ErrInvalidPrice, r.Symbol, r.Date.Format(DateLayout))
	}
	if r.Volume < 0 {
		return fmt.Errorf("%w: %w for %s on %s", ErrValidation, ErrInvalidVolume, r.Symbol, r.Date.Format(DateLayout))
	}
	return nil
}

// DateLayout is the calendar date format used on the wire and in logs
const DateLayout = "2006-01-02"

// Order selects the ordering of a paged query
type Order string

const (
	// OrderInsertion returns rows in insertion order (surrogate id)
	OrderInsertion Order = ""
	OrderDateAsc   Order = "date_asc"
	OrderDateDesc  Order = "date_desc"
)

// IsValid checks if order is known
func (o Order) IsValid() bool {
	switch o {
	case OrderInsertion, OrderDateAsc, OrderDateDesc:
		return true
	default:
		return false
	}
}

// Filter narrows a query. A nil field matches every value of that dimension.
// StartDate and EndDate are inclusive; StartDate > EndDate simply matches nothing.
type Filter struct {
	Symbol    *string
	StartDate *time.Time
	EndDate   *time.Time
	Order     Order
}

// Average holds the rounded means over a date range
type Average struct {
	Symbol    string          `json:"symbol"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	AvgOpen   decimal.Decimal `json:"avg_open"`
	AvgClose  decimal.Decimal `json:"avg_close"`
	AvgVolume int64           `json:"avg_volume"`
	Count     int64           `json:"count"` // number of rows averaged
}

// Page is one slice of a filtered query together with the size of the full matching set
type Page struct {
	Records    []Record
	TotalCount int
	Page       int
	PageSize   int
}

// TotalPages returns ceil(TotalCount / PageSize)
func (p Page) TotalPages() int {
	return TotalPages(p.TotalCount, p.PageSize)
}

// TotalPages returns the number of pages needed for count rows
func TotalPages(count, pageSize int) int {
	if pageSize < 1 || count < 1 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
