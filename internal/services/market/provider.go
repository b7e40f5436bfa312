// Package market provides hourly candle retrieval and local caching for
// the symbols used by the backtest.
package market

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"promptune/internal/domain"
)

// Sentinel errors for the data path. Both are fatal to the current pass.
var (
	// ErrDataUnavailable indicates the market data provider failed.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrCacheCorrupt indicates a cached artifact failed to deserialize.
	ErrCacheCorrupt = errors.New("candle cache corrupt")
)

// CandleProvider fetches hourly candles for a symbol over a time range.
// Implementations return candles in the exchange-native tuple encoding,
// most recent first.
type CandleProvider interface {
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tuple, error)
}
