// Package window slices aligned candle series into fixed-length lookback
// windows and serializes them into the data block appended to the prompt.
package window

import (
	"fmt"
	"strings"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"promptune/internal/domain"
)

// DefaultLookback is the window length in hourly candles.
const DefaultLookback = 24

const (
	emaPeriod = 20
	rsiPeriod = 14
)

// Builder produces aligned windows and their textual serialization.
type Builder struct {
	lookback          int
	includeIndicators bool
}

// NewBuilder creates a window builder with the given lookback length.
// When includeIndicators is set, an EMA/RSI summary line per symbol is
// appended after the raw tuples.
func NewBuilder(lookback int, includeIndicators bool) *Builder {
	return &Builder{
		lookback:          lookback,
		includeIndicators: includeIndicators,
	}
}

// Lookback returns the configured window length.
func (b *Builder) Lookback() int {
	return b.lookback
}

// Eligible reports whether a window ending at index i exists in all three
// series. It requires i >= lookback and at least i elements everywhere.
func (b *Builder) Eligible(i, ethLen, btcLen, solLen int) bool {
	if i < b.lookback {
		return false
	}
	return ethLen >= i && btcLen >= i && solLen >= i
}

// Slice returns the window series[i-lookback .. i).
func (b *Builder) Slice(series domain.Series, i int) domain.Series {
	return series[i-b.lookback : i]
}

// DataSection serializes the three windows into the deterministic block
// appended after the base prompt. Prices are fixed at 2 decimal places
// and volume at 6 so identical numeric windows yield byte-identical text.
func (b *Builder) DataSection(eth, btc, sol domain.Series) string {
	var sb strings.Builder

	sb.WriteString("Data provided (hourly candles, format: [timestamp, open, high, low, close, volume]):\n")
	sb.WriteString("ETH: ")
	sb.WriteString(formatCandles(eth))
	sb.WriteByte('\n')
	sb.WriteString("BTC: ")
	sb.WriteString(formatCandles(btc))
	sb.WriteByte('\n')
	sb.WriteString("SOL: ")
	sb.WriteString(formatCandles(sol))
	sb.WriteByte('\n')

	if b.includeIndicators {
		sb.WriteString(indicatorSummary("ETH", eth))
		sb.WriteString(indicatorSummary("BTC", btc))
		sb.WriteString(indicatorSummary("SOL", sol))
	}

	return sb.String()
}

func formatCandles(series domain.Series) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range series {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("[%s,%s,%s,%s,%s,%s]",
			decimal.NewFromInt(c.Time).StringFixed(2),
			c.Open.StringFixed(2),
			c.High.StringFixed(2),
			c.Low.StringFixed(2),
			c.Close.StringFixed(2),
			c.Volume.StringFixed(6),
		))
	}
	sb.WriteByte(']')
	return sb.String()
}

// indicatorSummary appends the latest EMA20/RSI14 over the window closes.
// Returns an empty string when the window is too short for the periods.
func indicatorSummary(symbol string, series domain.Series) string {
	if len(series) < rsiPeriod+1 || len(series) < emaPeriod {
		return ""
	}

	closes := make([]float64, len(series))
	for i, c := range series {
		closes[i], _ = c.Close.Float64()
	}

	ema := trend.NewEmaWithPeriod[float64](emaPeriod)
	emaValues := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))

	rsi := momentum.NewRsiWithPeriod[float64](rsiPeriod)
	rsiValues := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))

	if len(emaValues) == 0 || len(rsiValues) == 0 {
		return ""
	}

	return fmt.Sprintf("%s indicators: EMA%d=%.2f RSI%d=%.2f\n",
		symbol, emaPeriod, emaValues[len(emaValues)-1], rsiPeriod, rsiValues[len(rsiValues)-1])
}
