package stock

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateSymbol(t *testing.T) {
	valid := []string{"IBM", "AAPL", "BRK.B", "my_ticker", "a"}
	for _, s := range valid {
		assert.True(t, ValidateSymbol(s), s)
	}

	invalid := []string{"", "IBM1", "BRK-B", "A B", "티커", "ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFG"}
	for _, s := range invalid {
		assert.False(t, ValidateSymbol(s), s)
	}
}

func TestRecordValidate(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ok := Record{Symbol: "IBM", Date: day, OpenPrice: decimal.NewFromInt(10), ClosePrice: decimal.NewFromInt(11), Volume: 100}
	assert.NoError(t, ok.Validate())

	t.Run("bad symbol", func(t *testing.T) {
		r := ok
		r.Symbol = "IBM!"
		err := r.Validate()
		assert.True(t, IsValidationError(err))
		assert.True(t, errors.Is(err, ErrInvalidSymbol))
	})

	t.Run("zero date", func(t *testing.T) {
		r := ok
		r.Date = time.Time{}
		assert.ErrorIs(t, r.Validate(), ErrInvalidDate)
	})

	t.Run("negative price", func(t *testing.T) {
		r := ok
		r.ClosePrice = decimal.NewFromFloat(-0.01)
		assert.ErrorIs(t, r.Validate(), ErrInvalidPrice)
	})

	t.Run("negative volume", func(t *testing.T) {
		r := ok
		r.Volume = -1
		err := r.Validate()
		assert.ErrorIs(t, err, ErrInvalidVolume)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestKeyOf_TruncatesTime(t *testing.T) {
	morning := Record{Symbol: "IBM", Date: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	evening := Record{Symbol: "IBM", Date: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)}
	assert.Equal(t, KeyOf(morning), KeyOf(evening))

	next := Record{Symbol: "IBM", Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}
	assert.NotEqual(t, KeyOf(morning), KeyOf(next))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 5))
	assert.Equal(t, 1, TotalPages(3, 5))
	assert.Equal(t, 2, TotalPages(3, 2))
	assert.Equal(t, 3, TotalPages(3, 1))
	assert.Equal(t, 2, TotalPages(10, 5))
	assert.Equal(t, 0, TotalPages(10, 0))

	p := Page{TotalCount: 2001, PageSize: 1000}
	assert.Equal(t, 3, p.TotalPages())
}

func TestOrderIsValid(t *testing.T) {
	assert.True(t, OrderInsertion.IsValid())
	assert.True(t, OrderDateAsc.IsValid())
	assert.True(t, OrderDateDesc.IsValid())
	assert.False(t, Order("random").IsValid())
}
