package evaluator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promptune/internal/domain"
	"promptune/internal/services/labeler"
	"promptune/internal/services/window"
)

type fakeLLM func(ctx context.Context, model, prompt string) (string, error)

func (f fakeLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

// flatSeries yields candles whose successors never breach the ±0.3%
// thresholds, so every label is none.
func flatSeries(n int) domain.Series {
	series := make(domain.Series, n)
	for i := range series {
		series[i] = domain.Candle{
			Time:   int64(i) * 3600,
			Open:   decimal.NewFromFloat(100),
			High:   decimal.NewFromFloat(100.1),
			Low:    decimal.NewFromFloat(99.9),
			Close:  decimal.NewFromFloat(100),
			Volume: decimal.NewFromFloat(500),
		}
	}
	return series
}

func newTestEvaluator(client fakeLLM, policy MalformedPolicy) *Evaluator {
	return New(
		client,
		labeler.NewDefault(),
		window.NewBuilder(24, false),
		"test-model",
		5,
		policy,
		zap.NewNop(),
	)
}

func TestRunAllCorrect(t *testing.T) {
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return `{"action":"none","rationale":"flat market"}`, nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(30)
	result, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)

	require.Equal(t, 1.0, result.Accuracy)
	require.Equal(t, 6, result.Windows)
	require.Empty(t, result.Failures)
}

func TestRunAllWrongRetainsWindowIndexes(t *testing.T) {
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return `{"action":"long","rationale":"momentum"}`, nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(30)
	result, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)

	require.Equal(t, 0.0, result.Accuracy)
	require.Len(t, result.Failures, 6)
	for i, f := range result.Failures {
		require.Equal(t, 24+i, f.WindowIndex)
		require.Equal(t, domain.ActionLong, f.Predicted)
		require.Equal(t, domain.ActionNone, f.Correct)
		require.Equal(t, "momentum", f.Rationale)
	}
}

func TestRunAccuracyBounds(t *testing.T) {
	var calls int64
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		// alternate correct/incorrect
		if atomic.AddInt64(&calls, 1)%2 == 0 {
			return `{"action":"long"}`, nil
		}
		return `{"action":"none"}`, nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(30)
	result, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Accuracy, 0.0)
	require.LessOrEqual(t, result.Accuracy, 1.0)
	require.Equal(t, 0.5, result.Accuracy)
}

func TestRunZeroEligibleWindows(t *testing.T) {
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		t.Fatal("model must not be called with zero eligible windows")
		return "", nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	// exactly the lookback length: no end-index beyond the window exists
	series := flatSeries(24)
	result, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Accuracy)
	require.Zero(t, result.Windows)
	require.Empty(t, result.Failures)
}

func TestRunInsufficientData(t *testing.T) {
	e := newTestEvaluator(fakeLLM(func(context.Context, string, string) (string, error) {
		return `{"action":"none"}`, nil
	}), PolicyAbort)

	series := flatSeries(10)
	_, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestRunSkipsShortContextSeries(t *testing.T) {
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return `{"action":"none"}`, nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	eth := flatSeries(30)
	btc := flatSeries(27)
	sol := flatSeries(30)

	result, err := e.Run(context.Background(), "base prompt", eth, btc, sol)
	require.NoError(t, err)
	// indexes 28..29 are ineligible because BTC has only 27 candles
	require.Equal(t, 4, result.Windows)
}

func TestRunMalformedAborts(t *testing.T) {
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return "I think the market looks bullish", nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(30)
	_, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRunMalformedCountedWrong(t *testing.T) {
	raw := "I think the market looks bullish"
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return raw, nil
	})
	e := newTestEvaluator(client, PolicyCountWrong)

	series := flatSeries(30)
	result, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)

	require.Equal(t, 0.0, result.Accuracy)
	require.Len(t, result.Failures, 6)
	for _, f := range result.Failures {
		require.Equal(t, raw, f.Rationale, "raw text retained for diagnostics")
	}
}

func TestRunModelErrorAbortsPass(t *testing.T) {
	wantErr := errors.New("boom")
	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		return "", wantErr
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(30)
	_, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.ErrorIs(t, err, wantErr)
}

func TestRunConcurrencyCeiling(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	client := fakeLLM(func(ctx context.Context, model, prompt string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		return `{"action":"none"}`, nil
	})
	e := newTestEvaluator(client, PolicyAbort)

	series := flatSeries(60)
	_, err := e.Run(context.Background(), "base prompt", series, series, series)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, peak, 5)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		action    domain.Action
		rationale string
		wantErr   bool
	}{
		{
			name:      "plain json",
			raw:       `{"action":"long","rationale":"higher highs"}`,
			action:    domain.ActionLong,
			rationale: "higher highs",
		},
		{
			name:   "code fences stripped",
			raw:    "```json\n{\"action\":\"short\"}\n```",
			action: domain.ActionShort,
		},
		{
			name:   "rationale optional",
			raw:    `{"action":"none"}`,
			action: domain.ActionNone,
		},
		{
			name:   "unrecognized action maps to none",
			raw:    `{"action":"buy"}`,
			action: domain.ActionNone,
		},
		{
			name:    "not json",
			raw:     "the market looks good",
			wantErr: true,
		},
		{
			name:    "missing action field",
			raw:     `{"rationale":"no action here"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, rationale, err := ParseResponse(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.action, action)
			require.Equal(t, tt.rationale, rationale)
		})
	}
}
