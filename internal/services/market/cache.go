package market

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"promptune/internal/domain"
)

// Cache persists raw candle tuples per symbol on disk and serves them on
// subsequent runs. The cache key is the symbol only: a cached artifact
// short-circuits the requested date range entirely.
type Cache struct {
	dir      string
	provider CandleProvider
	logger   *zap.Logger
}

// NewCache creates a cache rooted at dir, backed by provider on misses.
func NewCache(dir string, provider CandleProvider, logger *zap.Logger) *Cache {
	return &Cache{
		dir:      dir,
		provider: provider,
		logger:   logger,
	}
}

// LoadOrFetch returns cached tuples for symbol if an artifact exists,
// otherwise fetches from the provider and persists the raw result.
func (c *Cache) LoadOrFetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tuple, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cache dir")
	}

	path := filepath.Join(c.dir, symbol+"_data.json")

	if data, err := os.ReadFile(path); err == nil {
		var tuples []domain.Tuple
		if err := json.Unmarshal(data, &tuples); err != nil {
			return nil, errors.Wrapf(ErrCacheCorrupt, "%s: %v", path, err)
		}
		c.logger.Debug("candle cache hit",
			zap.String("symbol", symbol),
			zap.Int("candles", len(tuples)))
		return tuples, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read cache file %s", path)
	}

	tuples, err := c.provider.Candles(ctx, symbol, start, end)
	if err != nil {
		return nil, errors.Wrapf(ErrDataUnavailable, "%s: %v", symbol, err)
	}

	data, err := json.Marshal(tuples)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal candles for %s", symbol)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "write cache file %s", path)
	}

	c.logger.Info("fetched and cached candles",
		zap.String("symbol", symbol),
		zap.Int("candles", len(tuples)))

	return tuples, nil
}
