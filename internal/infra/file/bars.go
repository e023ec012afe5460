package file

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
	"github.com/wonny/findata/internal/domain/stock"
)

// Bar is one OHLCV bar as written by bar crawlers (csv, parquet, json).
// Timestamp is Unix milliseconds.
type Bar struct {
	Timestamp    int64   `json:"t" parquet:"t"`
	Open         float64 `json:"o" parquet:"o"`
	High         float64 `json:"h" parquet:"h"`
	Low          float64 `json:"l" parquet:"l"`
	Close        float64 `json:"c" parquet:"c"`
	Volume       int64   `json:"v" parquet:"v"`
	VWAP         float64 `json:"vw,omitempty" parquet:"vw,optional"`
	Transactions int64   `json:"n,omitempty" parquet:"n,optional"`
}

// Time returns the bar's open time in UTC
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// ErrUnsupportedFormat is returned for file extensions other than csv, parquet and json
var ErrUnsupportedFormat = errors.New("unsupported bar file format")

// LoadBars reads bars from path, picking the decoder by extension
func LoadBars(path string) ([]Bar, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "parquet":
		bars, err := parquet.ReadFile[Bar](path)
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
		return bars, nil
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case "json":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var bars []Bar
		if err := json.Unmarshal(b, &bars); err != nil {
			return nil, fmt.Errorf("read json %s: %w", path, err)
		}
		return bars, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// WriteParquet writes bars to path
func WriteParquet(path string, bars []Bar) error {
	return parquet.WriteFile(path, bars)
}

// ReadCSV parses a csv with a header row. Columns t,o,c,v are required;
// h,l,vw,n are optional and columns may come in any order.
func ReadCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"t", "o", "c", "v"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}

	var bars []Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		p := fieldParser{rec: rec, col: col}
		bar := Bar{
			Timestamp:    p.int("t"),
			Open:         p.float("o"),
			High:         p.float("h"),
			Low:          p.float("l"),
			Close:        p.float("c"),
			Volume:       p.int("v"),
			VWAP:         p.float("vw"),
			Transactions: p.int("n"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, p.err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// fieldParser keeps the first parse error; absent or empty columns are zero
type fieldParser struct {
	rec []string
	col map[string]int
	err error
}

func (p *fieldParser) raw(name string) string {
	i, ok := p.col[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *fieldParser) int(name string) int64 {
	s := p.raw(name)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}

func (p *fieldParser) float(name string) float64 {
	s := p.raw(name)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}

// DailyRecords folds bars into one record per UTC calendar day: the open of
// the day's first bar, the close of its last bar and the summed volume.
// Records are returned in date order.
func DailyRecords(symbol string, bars []Bar) []stock.Record {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var records []stock.Record
	for _, b := range sorted {
		day := stock.DateOnly(b.Time())
		n := len(records)
		if n > 0 && records[n-1].Date.Equal(day) {
			records[n-1].ClosePrice = stock.RoundPrice(decimal.NewFromFloat(b.Close))
			records[n-1].Volume += b.Volume
			continue
		}
		records = append(records, stock.Record{
			Symbol:     symbol,
			Date:       day,
			OpenPrice:  stock.RoundPrice(decimal.NewFromFloat(b.Open)),
			ClosePrice: stock.RoundPrice(decimal.NewFromFloat(b.Close)),
			Volume:     b.Volume,
		})
	}
	return records
}
