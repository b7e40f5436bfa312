// Package labeler derives ground-truth actions from future price movement.
// It is the scoring oracle for the backtest: pure, deterministic, and
// threshold-driven.
package labeler

import (
	"github.com/shopspring/decimal"

	"promptune/internal/domain"
)

// Default profit threshold multipliers: +0.3% / -0.3%.
var (
	DefaultLongThreshold  = decimal.NewFromFloat(1.003)
	DefaultShortThreshold = decimal.NewFromFloat(0.997)
)

// Labeler assigns an action to each candle based on what the next candle
// did. Thresholds and the tie-break direction are pinned configuration:
// tuning them changes labeling semantics materially.
type Labeler struct {
	longThreshold  decimal.Decimal
	shortThreshold decimal.Decimal
	tieBreak       domain.Action
}

// New creates a labeler. tieBreak resolves candles where both the long
// and short conditions fire; deployments historically used Short here,
// one snapshot used Long.
func New(longThreshold, shortThreshold decimal.Decimal, tieBreak domain.Action) *Labeler {
	return &Labeler{
		longThreshold:  longThreshold,
		shortThreshold: shortThreshold,
		tieBreak:       tieBreak,
	}
}

// NewDefault creates a labeler with ±0.3% thresholds and the Short tie-break.
func NewDefault() *Labeler {
	return New(DefaultLongThreshold, DefaultShortThreshold, domain.ActionShort)
}

// Label returns one action per candle. For each adjacent pair the long
// condition is next.High >= close*longThreshold and the short condition
// is next.Low <= close*shortThreshold. The final candle has no successor
// and is always ActionNone.
func (l *Labeler) Label(series domain.Series) []domain.Action {
	labels := make([]domain.Action, 0, len(series))

	for i := 0; i+1 < len(series); i++ {
		current := series[i]
		next := series[i+1]

		longCond := next.High.GreaterThanOrEqual(current.Close.Mul(l.longThreshold))
		shortCond := next.Low.LessThanOrEqual(current.Close.Mul(l.shortThreshold))

		switch {
		case longCond && shortCond:
			labels = append(labels, l.tieBreak)
		case longCond:
			labels = append(labels, domain.ActionLong)
		case shortCond:
			labels = append(labels, domain.ActionShort)
		default:
			labels = append(labels, domain.ActionNone)
		}
	}

	if len(series) > 0 {
		labels = append(labels, domain.ActionNone)
	}

	return labels
}
