package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"promptune/internal/domain"
	"promptune/internal/services/evaluator"
)

func TestDefaults(t *testing.T) {
	cfg, err := fromTmp(configTmp{})
	require.NoError(t, err)

	require.Equal(t, "coinbase", cfg.Provider)
	require.Equal(t, "o1-mini", cfg.EvalModel)
	require.Equal(t, "o1", cfg.ImproverModel)
	require.Equal(t, 24, cfg.Lookback)
	require.Equal(t, 20, cfg.Concurrency)
	require.True(t, cfg.LongThreshold.Equal(decimal.NewFromFloat(1.003)))
	require.True(t, cfg.ShortThreshold.Equal(decimal.NewFromFloat(0.997)))
	require.Equal(t, domain.ActionShort, cfg.TieBreak)
	require.Equal(t, 0.7, cfg.TargetAccuracy)
	require.Equal(t, 10, cfg.MaxIterations)
	require.Equal(t, 48*time.Hour, cfg.DataEndOffset)
	require.Equal(t, 96*time.Hour, cfg.DataSpan)
	require.Equal(t, evaluator.PolicyAbort, cfg.OnMalformed)
	require.False(t, cfg.IncludeIndicators)
}

func TestYamlOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `provider: binance
eval_model: gpt-4o-mini
improver_model: gpt-4o
lookback: 48
concurrency: 5
long_threshold: "1.01"
short_threshold: "0.99"
tie_break: long
target_accuracy: 0.8
max_iterations: 5
data_end_offset: 24h
data_span: 168h
on_malformed: count_wrong
include_indicators: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := getYaml(path)
	require.NoError(t, err)

	require.Equal(t, "binance", cfg.Provider)
	require.Equal(t, "gpt-4o-mini", cfg.EvalModel)
	require.Equal(t, "gpt-4o", cfg.ImproverModel)
	require.Equal(t, 48, cfg.Lookback)
	require.Equal(t, 5, cfg.Concurrency)
	require.True(t, cfg.LongThreshold.Equal(decimal.NewFromFloat(1.01)))
	require.True(t, cfg.ShortThreshold.Equal(decimal.NewFromFloat(0.99)))
	require.Equal(t, domain.ActionLong, cfg.TieBreak)
	require.Equal(t, 0.8, cfg.TargetAccuracy)
	require.Equal(t, 5, cfg.MaxIterations)
	require.Equal(t, 24*time.Hour, cfg.DataEndOffset)
	require.Equal(t, 7*24*time.Hour, cfg.DataSpan)
	require.Equal(t, evaluator.PolicyCountWrong, cfg.OnMalformed)
	require.True(t, cfg.IncludeIndicators)
}

func TestInvalidParams(t *testing.T) {
	tests := []struct {
		name string
		tmp  configTmp
	}{
		{"bad tie_break", configTmp{TieBreak: "up"}},
		{"bad on_malformed", configTmp{OnMalformed: "ignore"}},
		{"bad provider", configTmp{Provider: "kraken"}},
		{"long threshold below 1", configTmp{LongThresholdStr: "0.9"}},
		{"short threshold above 1", configTmp{ShortThresholdStr: "1.1"}},
		{"lookback too small", configTmp{Lookback: 1}},
		{"negative concurrency", configTmp{Concurrency: -1}},
		{"target above 1", configTmp{TargetAccuracy: 1.5}},
		{"threshold not a decimal", configTmp{LongThresholdStr: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromTmp(tt.tmp)
			require.Error(t, err)
		})
	}
}
