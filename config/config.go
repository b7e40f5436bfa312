package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"promptune/internal/domain"
	"promptune/internal/services/evaluator"
)

// Defaults mirror the historical deployment: Coinbase data, ±0.3%
// labeling thresholds with the short tie-break, 24-candle windows, 20
// concurrent model calls, 70% accuracy target, 10 iterations.
const (
	defaultProvider       = "coinbase"
	defaultAPIURL         = "https://api.openai.com/v1/chat/completions"
	defaultEvalModel      = "o1-mini"
	defaultImproverModel  = "o1"
	defaultPromptFile     = "prompt.txt"
	defaultCacheDir       = "cache"
	defaultLedgerFile     = "cache/prompt_history.json"
	defaultPassWALDir     = "wal/passes"
	defaultLookback       = 24
	defaultConcurrency    = 20
	defaultLongThreshold  = "1.003"
	defaultShortThreshold = "0.997"
	defaultTieBreak       = "short"
	defaultTargetAccuracy = 0.7
	defaultMaxIterations  = 10
	defaultDataEndOffset  = 48 * time.Hour
	defaultDataSpan       = 96 * time.Hour
	defaultOnMalformed    = "abort"
)

// Config holds every knob of the backtest-and-improve loop.
type Config struct {
	Provider          string
	APIURL            string
	EvalModel         string
	ImproverModel     string
	PromptFile        string
	CacheDir          string
	LedgerFile        string
	PassWALDir        string
	Lookback          int
	Concurrency       int
	LongThreshold     decimal.Decimal
	ShortThreshold    decimal.Decimal
	TieBreak          domain.Action
	TargetAccuracy    float64
	MaxIterations     int
	DataEndOffset     time.Duration
	DataSpan          time.Duration
	OnMalformed       evaluator.MalformedPolicy
	IncludeIndicators bool
}

type configTmp struct {
	Provider          string  `yaml:"provider,omitempty"`
	APIURL            string  `yaml:"api_url,omitempty"`
	EvalModel         string  `yaml:"eval_model,omitempty"`
	ImproverModel     string  `yaml:"improver_model,omitempty"`
	PromptFile        string  `yaml:"prompt_file,omitempty"`
	CacheDir          string  `yaml:"cache_dir,omitempty"`
	LedgerFile        string  `yaml:"ledger_file,omitempty"`
	PassWALDir        string  `yaml:"pass_wal_dir,omitempty"`
	Lookback          int     `yaml:"lookback,omitempty"`
	Concurrency       int     `yaml:"concurrency,omitempty"`
	LongThresholdStr  string  `yaml:"long_threshold,omitempty"`
	ShortThresholdStr string  `yaml:"short_threshold,omitempty"`
	TieBreak          string  `yaml:"tie_break,omitempty"`
	TargetAccuracy    float64 `yaml:"target_accuracy,omitempty"`
	MaxIterations     int     `yaml:"max_iterations,omitempty"`
	DataEndOffsetStr  string  `yaml:"data_end_offset,omitempty"`
	DataSpanStr       string  `yaml:"data_span,omitempty"`
	OnMalformed       string  `yaml:"on_malformed,omitempty"`
	IncludeIndicators bool    `yaml:"include_indicators,omitempty"`
}

// Get loads configuration from a yaml file when --config is provided,
// otherwise from CLI flags with defaults.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	promptFile := flag.String("prompt", defaultPromptFile, "path to the base prompt file")
	target := flag.Float64("target", defaultTargetAccuracy, "accuracy threshold that stops the loop")
	maxIter := flag.Int("maxiter", defaultMaxIterations, "iteration cap")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg, err := fromTmp(configTmp{
		PromptFile:     *promptFile,
		TargetAccuracy: *target,
		MaxIterations:  *maxIter,
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	return fromTmp(tmp)
}

func fromTmp(tmp configTmp) (Config, error) {
	cfg := Config{
		Provider:          orDefault(tmp.Provider, defaultProvider),
		APIURL:            orDefault(tmp.APIURL, defaultAPIURL),
		EvalModel:         orDefault(tmp.EvalModel, defaultEvalModel),
		ImproverModel:     orDefault(tmp.ImproverModel, defaultImproverModel),
		PromptFile:        orDefault(tmp.PromptFile, defaultPromptFile),
		CacheDir:          orDefault(tmp.CacheDir, defaultCacheDir),
		LedgerFile:        orDefault(tmp.LedgerFile, defaultLedgerFile),
		PassWALDir:        orDefault(tmp.PassWALDir, defaultPassWALDir),
		Lookback:          tmp.Lookback,
		Concurrency:       tmp.Concurrency,
		TargetAccuracy:    tmp.TargetAccuracy,
		MaxIterations:     tmp.MaxIterations,
		IncludeIndicators: tmp.IncludeIndicators,
	}

	if cfg.Lookback == 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TargetAccuracy == 0 {
		cfg.TargetAccuracy = defaultTargetAccuracy
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	var err error
	cfg.DataEndOffset = defaultDataEndOffset
	if tmp.DataEndOffsetStr != "" {
		cfg.DataEndOffset, err = time.ParseDuration(tmp.DataEndOffsetStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'data_end_offset' param (must be a duration like 48h), error: %w", err)
		}
	}
	cfg.DataSpan = defaultDataSpan
	if tmp.DataSpanStr != "" {
		cfg.DataSpan, err = time.ParseDuration(tmp.DataSpanStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'data_span' param (must be a duration like 96h), error: %w", err)
		}
	}

	cfg.LongThreshold, err = decimal.NewFromString(orDefault(tmp.LongThresholdStr, defaultLongThreshold))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'long_threshold' param (must be a decimal), error: %w", err)
	}
	cfg.ShortThreshold, err = decimal.NewFromString(orDefault(tmp.ShortThresholdStr, defaultShortThreshold))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'short_threshold' param (must be a decimal), error: %w", err)
	}

	switch orDefault(tmp.TieBreak, defaultTieBreak) {
	case "short":
		cfg.TieBreak = domain.ActionShort
	case "long":
		cfg.TieBreak = domain.ActionLong
	default:
		return Config{}, fmt.Errorf("incorrect 'tie_break' param: %q (must be 'short' or 'long')", tmp.TieBreak)
	}

	switch orDefault(tmp.OnMalformed, defaultOnMalformed) {
	case "abort":
		cfg.OnMalformed = evaluator.PolicyAbort
	case "count_wrong":
		cfg.OnMalformed = evaluator.PolicyCountWrong
	default:
		return Config{}, fmt.Errorf("incorrect 'on_malformed' param: %q (must be 'abort' or 'count_wrong')", tmp.OnMalformed)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Provider != "coinbase" && c.Provider != "binance" {
		return fmt.Errorf("incorrect 'provider' param: %q (must be 'coinbase' or 'binance')", c.Provider)
	}
	if c.Lookback < 2 {
		return fmt.Errorf("'lookback' must be at least 2, got %d", c.Lookback)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("'concurrency' must be at least 1, got %d", c.Concurrency)
	}
	if c.TargetAccuracy < 0 || c.TargetAccuracy > 1 {
		return fmt.Errorf("'target_accuracy' must be in [0,1], got %v", c.TargetAccuracy)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("'max_iterations' must be at least 1, got %d", c.MaxIterations)
	}
	if c.LongThreshold.LessThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("'long_threshold' must be greater than 1, got %s", c.LongThreshold)
	}
	if c.ShortThreshold.GreaterThanOrEqual(decimal.NewFromInt(1)) || c.ShortThreshold.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("'short_threshold' must be in (0,1), got %s", c.ShortThreshold)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
