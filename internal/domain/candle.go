package domain

import (
	"github.com/shopspring/decimal"
)

// Tuple is the exchange-native candle encoding:
// [time, low, high, open, close, volume], most recent first.
type Tuple [6]float64

// Candle is one hourly OHLCV observation.
type Candle struct {
	Time   int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Series is a chronologically ordered sequence of candles for one symbol.
type Series []Candle

// SeriesFromTuples converts exchange-native tuples into a chronological
// series. The source feed returns candles most recent first, so the order
// is reversed and the [time, low, high, open, close, volume] fields are
// mapped to named OHLCV fields.
func SeriesFromTuples(raw []Tuple) Series {
	series := make(Series, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		t := raw[i]
		series = append(series, Candle{
			Time:   int64(t[0]),
			Low:    decimal.NewFromFloat(t[1]),
			High:   decimal.NewFromFloat(t[2]),
			Open:   decimal.NewFromFloat(t[3]),
			Close:  decimal.NewFromFloat(t[4]),
			Volume: decimal.NewFromFloat(t[5]),
		})
	}
	return series
}
