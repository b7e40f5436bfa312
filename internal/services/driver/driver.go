// Package driver runs the backtest-and-improve loop until the accuracy
// target is met or the iteration budget is exhausted.
package driver

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"promptune/internal/domain"
	"promptune/internal/services/evaluator"
)

// Symbols evaluated each pass. ETH is the prediction target; BTC and SOL
// provide market context.
const (
	TargetSymbol = "ETH"
	ctxSymbolBTC = "BTC"
	ctxSymbolSOL = "SOL"
)

// Outcome is the terminal state of a run.
type Outcome int

const (
	// Converged means the accuracy target was met.
	Converged Outcome = iota
	// Exhausted means the iteration cap was reached without convergence.
	Exhausted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type candleSource interface {
	LoadOrFetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tuple, error)
}

type passEvaluator interface {
	Run(ctx context.Context, basePrompt string, eth, btc, sol domain.Series) (evaluator.Result, error)
}

type historyLedger interface {
	Append(prompt string, score float64) ([]domain.PromptRecord, error)
}

type promptImprover interface {
	Improve(ctx context.Context, basePrompt string, failures []domain.Failure, history []domain.PromptRecord) (string, error)
}

type passLog interface {
	Append(report domain.PassReport) error
}

// Config holds the driver's loop parameters.
type Config struct {
	PromptPath     string
	TargetAccuracy float64
	MaxIterations  int
	// DataEndOffset is how far behind now the data range ends; DataSpan
	// is the length of the range.
	DataEndOffset time.Duration
	DataSpan      time.Duration
}

// Driver owns the base prompt's lifecycle across iterations: read at the
// start of each pass, possibly overwritten at the end.
type Driver struct {
	cfg      Config
	candles  candleSource
	eval     passEvaluator
	history  historyLedger
	improver promptImprover
	passes   passLog
	logger   *zap.Logger
}

// New creates a convergence driver.
func New(
	cfg Config,
	candles candleSource,
	eval passEvaluator,
	history historyLedger,
	improver promptImprover,
	passes passLog,
	logger *zap.Logger,
) *Driver {
	return &Driver{
		cfg:      cfg,
		candles:  candles,
		eval:     eval,
		history:  history,
		improver: improver,
		passes:   passes,
		logger:   logger,
	}
}

// Run repeats {evaluate, improve} until accuracy reaches the target or
// the iteration cap is hit. Any pass error aborts the whole run; ledger
// and pass-log entries already written remain.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	for iteration := 1; iteration <= d.cfg.MaxIterations; iteration++ {
		accuracy, err := d.runPass(ctx, iteration)
		if err != nil {
			return Exhausted, errors.Wrapf(err, "iteration %d", iteration)
		}

		d.logger.Info("backtest and improvement iteration completed",
			zap.Int("iteration", iteration),
			zap.Float64("accuracy", accuracy))

		if accuracy >= d.cfg.TargetAccuracy {
			return Converged, nil
		}
	}

	return Exhausted, nil
}

func (d *Driver) runPass(ctx context.Context, iteration int) (float64, error) {
	passID := uuid.NewString()
	logger := d.logger.With(zap.String("pass_id", passID), zap.Int("iteration", iteration))

	end := time.Now().Add(-d.cfg.DataEndOffset)
	start := end.Add(-d.cfg.DataSpan)

	logger.Debug("starting backtest pass",
		zap.Time("data_start", start),
		zap.Time("data_end", end))

	ethTuples, err := d.candles.LoadOrFetch(ctx, TargetSymbol, start, end)
	if err != nil {
		return 0, err
	}
	btcTuples, err := d.candles.LoadOrFetch(ctx, ctxSymbolBTC, start, end)
	if err != nil {
		return 0, err
	}
	solTuples, err := d.candles.LoadOrFetch(ctx, ctxSymbolSOL, start, end)
	if err != nil {
		return 0, err
	}

	eth := domain.SeriesFromTuples(ethTuples)
	btc := domain.SeriesFromTuples(btcTuples)
	sol := domain.SeriesFromTuples(solTuples)

	promptBytes, err := os.ReadFile(d.cfg.PromptPath)
	if err != nil {
		return 0, errors.Wrapf(err, "read base prompt file %s", d.cfg.PromptPath)
	}
	basePrompt := string(promptBytes)

	result, err := d.eval.Run(ctx, basePrompt, eth, btc, sol)
	if err != nil {
		return 0, err
	}

	history, err := d.history.Append(basePrompt, result.Accuracy)
	if err != nil {
		return 0, err
	}

	if err := d.passes.Append(domain.PassReport{
		PassID:     passID,
		Iteration:  iteration,
		Accuracy:   result.Accuracy,
		Windows:    result.Windows,
		Failures:   len(result.Failures),
		PromptLen:  len(basePrompt),
		FinishedAt: time.Now().UTC(),
	}); err != nil {
		return 0, errors.Wrap(err, "append pass report")
	}

	if len(result.Failures) > 0 {
		if _, err := d.improver.Improve(ctx, basePrompt, result.Failures, history); err != nil {
			return 0, err
		}
	} else {
		logger.Info("no failures this pass, base prompt left unchanged")
	}

	return result.Accuracy, nil
}
