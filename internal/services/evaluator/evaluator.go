// Package evaluator scores a base prompt over every eligible candle
// window, querying the model concurrently under a fixed ceiling.
package evaluator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promptune/internal/clients"
	"promptune/internal/domain"
	"promptune/internal/services/labeler"
	"promptune/internal/services/window"
)

// DefaultConcurrency is the ceiling on in-flight model calls per pass.
const DefaultConcurrency = 20

var (
	// ErrInsufficientData indicates fewer candles than the lookback requires.
	ErrInsufficientData = errors.New("not enough candles to perform backtesting")
	// ErrMalformedResponse indicates a per-window model response that is
	// not valid JSON or lacks the required action field.
	ErrMalformedResponse = errors.New("malformed model response")
)

// MalformedPolicy decides what a malformed per-window response does to the pass.
type MalformedPolicy int

const (
	// PolicyAbort fails the whole pass on the first malformed response.
	PolicyAbort MalformedPolicy = iota
	// PolicyCountWrong scores the window as incorrect and keeps the raw
	// text as the failure rationale.
	PolicyCountWrong
)

// Result is the outcome of one full evaluation pass.
type Result struct {
	Accuracy float64
	Windows  int
	Failures []domain.Failure
}

// Evaluator runs scoring passes against the model.
type Evaluator struct {
	client      clients.LLMClient
	labeler     *labeler.Labeler
	windows     *window.Builder
	model       string
	concurrency int
	onMalformed MalformedPolicy
	logger      *zap.Logger
}

// New creates an evaluator. model is the per-window evaluation model
// identifier; concurrency bounds in-flight model calls.
func New(
	client clients.LLMClient,
	lbl *labeler.Labeler,
	windows *window.Builder,
	model string,
	concurrency int,
	onMalformed MalformedPolicy,
	logger *zap.Logger,
) *Evaluator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Evaluator{
		client:      client,
		labeler:     lbl,
		windows:     windows,
		model:       model,
		concurrency: concurrency,
		onMalformed: onMalformed,
		logger:      logger,
	}
}

type outcome struct {
	predicted domain.Action
	rationale string
	label     domain.Action
	malformed bool
}

// Run evaluates basePrompt over every eligible window. Each window's
// prediction is compared against the label of the last fully observed
// candle (labels[i-1]). Accuracy is correct/total, 0.0 when no window
// was eligible.
func (e *Evaluator) Run(ctx context.Context, basePrompt string, eth, btc, sol domain.Series) (Result, error) {
	if len(eth) < e.windows.Lookback() {
		return Result{}, errors.Wrapf(ErrInsufficientData, "have %d ETH candles, need %d", len(eth), e.windows.Lookback())
	}

	labels := e.labeler.Label(eth)

	outcomes := make([]*outcome, len(eth))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := e.windows.Lookback(); i < len(eth); i++ {
		if !e.windows.Eligible(i, len(eth), len(btc), len(sol)) {
			continue
		}

		dataSection := e.windows.DataSection(
			e.windows.Slice(eth, i),
			e.windows.Slice(btc, i),
			e.windows.Slice(sol, i),
		)
		fullPrompt := basePrompt + "\n\n" + dataSection
		label := labels[i-1]

		i := i
		g.Go(func() error {
			response, err := e.client.Complete(gctx, e.model, fullPrompt)
			if err != nil {
				return errors.Wrapf(err, "window %d", i)
			}

			predicted, rationale, err := ParseResponse(response)
			if err != nil {
				if e.onMalformed == PolicyAbort {
					return errors.Wrapf(err, "window %d", i)
				}
				outcomes[i] = &outcome{
					predicted: domain.ActionNone,
					rationale: response,
					label:     label,
					malformed: true,
				}
				return nil
			}

			outcomes[i] = &outcome{
				predicted: predicted,
				rationale: rationale,
				label:     label,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var total, correct int
	var failures []domain.Failure

	for i, o := range outcomes {
		if o == nil {
			continue
		}
		total++
		if !o.malformed && o.predicted == o.label {
			correct++
			continue
		}
		failures = append(failures, domain.Failure{
			WindowIndex: i,
			Predicted:   o.predicted,
			Correct:     o.label,
			Rationale:   o.rationale,
		})
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	e.logger.Info("backtesting pass complete",
		zap.Float64("accuracy", accuracy),
		zap.Int("windows", total),
		zap.Int("failures", len(failures)))

	return Result{
		Accuracy: accuracy,
		Windows:  total,
		Failures: failures,
	}, nil
}

// ParseResponse extracts the predicted action and rationale from a raw
// model response. Code-fence markers are stripped before parsing. A
// response that is not valid JSON or lacks the action field is reported
// as ErrMalformedResponse; an unrecognized action value maps to none.
func ParseResponse(raw string) (domain.Action, string, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))

	var parsed struct {
		Action    *string `json:"action"`
		Rationale string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return domain.ActionNone, "", errors.Wrapf(ErrMalformedResponse, "not valid JSON: %s", clean)
	}
	if parsed.Action == nil {
		return domain.ActionNone, "", errors.Wrap(ErrMalformedResponse, "missing 'action' field")
	}

	return domain.ParseAction(*parsed.Action), parsed.Rationale, nil
}
