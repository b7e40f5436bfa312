package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"promptune/internal/domain"
)

const (
	coinbaseBaseURL    = "https://api.exchange.coinbase.com"
	hourlyGranularity  = 3600
	coinbaseHTTPExpiry = 30 * time.Second
)

// CoinbaseProvider fetches hourly candles from the Coinbase Exchange REST API.
// Responses arrive as [time, low, high, open, close, volume] tuples,
// most recent first.
type CoinbaseProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinbaseProvider creates a provider against the public Coinbase Exchange API.
func NewCoinbaseProvider() *CoinbaseProvider {
	return NewCoinbaseProviderWithBaseURL(coinbaseBaseURL)
}

// NewCoinbaseProviderWithBaseURL creates a provider against a custom endpoint.
func NewCoinbaseProviderWithBaseURL(baseURL string) *CoinbaseProvider {
	return &CoinbaseProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: coinbaseHTTPExpiry,
		},
	}
}

// Candles fetches hourly candles for symbol (quoted in USD) between start and end.
func (p *CoinbaseProvider) Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tuple, error) {
	url := fmt.Sprintf("%s/products/%s-USD/candles?start=%d&end=%d&granularity=%d",
		p.baseURL, symbol, start.Unix(), end.Unix(), hourlyGranularity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build candles request for %s", symbol)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch candles for %s", symbol)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read candles response for %s", symbol)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("candles request for %s: status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var tuples []domain.Tuple
	if err := json.Unmarshal(body, &tuples); err != nil {
		return nil, errors.Wrapf(err, "decode candles for %s", symbol)
	}

	return tuples, nil
}
