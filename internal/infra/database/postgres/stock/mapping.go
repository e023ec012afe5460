package stock

import (
	"github.com/jackc/pgx/v5"
	"github.com/wonny/findata/internal/domain/stock"
)

// recordColumns are the writable columns of financial_data, in bind order
var recordColumns = []string{"symbol", "date", "open_price", "close_price", "volume"}

// selectColumns are read back by the query engine, in scan order
const selectColumns = "id, symbol, date, open_price, close_price, volume"

// recordArgs maps a record to statement arguments in recordColumns order
func recordArgs(r stock.Record) []any {
	return []any{
		r.Symbol,
		stock.DateOnly(r.Date),
		stock.RoundPrice(r.OpenPrice),
		stock.RoundPrice(r.ClosePrice),
		r.Volume,
	}
}

// scanRecord reads one row selected with selectColumns
func scanRecord(row pgx.Row) (stock.Record, error) {
	var r stock.Record
	err := row.Scan(&r.ID, &r.Symbol, &r.Date, &r.OpenPrice, &r.ClosePrice, &r.Volume)
	return r, err
}
