// Command promptune backtests a trading prompt against labeled hourly
// candle data and iteratively rewrites it with the model until the
// accuracy target is met or the iteration budget runs out.
//
// Usage:
//
//	promptune --config config.yaml
//	promptune --prompt prompt.txt --target 0.7 --maxiter 10
//
// Required environment variables:
//
//	OPENAI_API_KEY (or any OpenAI-compatible API key for --api_url)
package main

import (
	"context"
	"log"
	"os"

	"github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"promptune/config"
	"promptune/internal/clients"
	"promptune/internal/services/driver"
	"promptune/internal/services/evaluator"
	"promptune/internal/services/improver"
	"promptune/internal/services/labeler"
	"promptune/internal/services/ledger"
	"promptune/internal/services/market"
	"promptune/internal/services/window"
	"promptune/internal/storage/passes"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Fatal("OPENAI_API_KEY environment variable must be set")
	}

	var provider market.CandleProvider
	switch cfg.Provider {
	case "binance":
		// public kline endpoints need no credentials
		provider = market.NewBinanceProvider(binance.NewClient("", ""))
	default:
		provider = market.NewCoinbaseProvider()
	}

	llm := clients.NewOpenAICompatibleClient(cfg.APIURL, apiKey)
	cache := market.NewCache(cfg.CacheDir, provider, logger)
	lbl := labeler.New(cfg.LongThreshold, cfg.ShortThreshold, cfg.TieBreak)
	windows := window.NewBuilder(cfg.Lookback, cfg.IncludeIndicators)
	eval := evaluator.New(llm, lbl, windows, cfg.EvalModel, cfg.Concurrency, cfg.OnMalformed, logger)
	history := ledger.New(cfg.LedgerFile)
	imp := improver.New(llm, cfg.ImproverModel, cfg.PromptFile, logger)

	passLog, err := passes.NewWALStore(cfg.PassWALDir)
	if err != nil {
		logger.Fatal("failed to open pass log", zap.Error(err))
	}
	defer passLog.Close()

	d := driver.New(driver.Config{
		PromptPath:     cfg.PromptFile,
		TargetAccuracy: cfg.TargetAccuracy,
		MaxIterations:  cfg.MaxIterations,
		DataEndOffset:  cfg.DataEndOffset,
		DataSpan:       cfg.DataSpan,
	}, cache, eval, history, imp, passLog, logger)

	logger.Info("starting backtest and improvement process",
		zap.String("provider", cfg.Provider),
		zap.String("eval_model", cfg.EvalModel),
		zap.String("improver_model", cfg.ImproverModel),
		zap.Float64("target_accuracy", cfg.TargetAccuracy),
		zap.Int("max_iterations", cfg.MaxIterations))

	outcome, err := d.Run(context.Background())
	if err != nil {
		logger.Error("backtest and improvement failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("backtest and improvement completed", zap.String("outcome", outcome.String()))
}
