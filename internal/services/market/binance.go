package market

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"promptune/internal/domain"
)

// BinanceProvider adapts Binance klines to the native tuple encoding so
// cache artifacts stay byte-compatible regardless of the provider in use.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a Binance-backed candle provider.
// Public kline endpoints do not require credentials.
func NewBinanceProvider(client *binance.Client) *BinanceProvider {
	return &BinanceProvider{client: client}
}

// Candles fetches hourly klines for symbol (quoted in USDT) and converts
// them to [time, low, high, open, close, volume] tuples, most recent first.
func (p *BinanceProvider) Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tuple, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(symbol + "USDT").
		Interval("1h").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines from Binance for %s", symbol)
	}

	tuples := make([]domain.Tuple, 0, len(klines))
	for i := len(klines) - 1; i >= 0; i-- {
		k := klines[i]

		open, err := strconv.ParseFloat(k.Open, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse open price at index %d", i)
		}
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse high price at index %d", i)
		}
		low, err := strconv.ParseFloat(k.Low, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse low price at index %d", i)
		}
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse close price at index %d", i)
		}
		volume, err := strconv.ParseFloat(k.Volume, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse volume at index %d", i)
		}

		tuples = append(tuples, domain.Tuple{
			float64(k.OpenTime / 1000),
			low,
			high,
			open,
			closePrice,
			volume,
		})
	}

	return tuples, nil
}
