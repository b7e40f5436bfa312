package domain

import "time"

// PredictionResult is the outcome of scoring a single window.
type PredictionResult struct {
	WindowIndex int
	Predicted   Action
	Rationale   string
	Label       Action
}

// Failure is a mispredicted window retained for the current pass only.
type Failure struct {
	WindowIndex int
	Predicted   Action
	Correct     Action
	Rationale   string
}

// PromptRecord is one ledger entry: a prompt and the accuracy it scored.
type PromptRecord struct {
	Prompt string  `json:"prompt"`
	Score  float64 `json:"score"`
}

// PassReport summarizes one completed backtest pass for the audit log.
type PassReport struct {
	PassID     string    `json:"pass_id"`
	Iteration  int       `json:"iteration"`
	Accuracy   float64   `json:"accuracy"`
	Windows    int       `json:"windows"`
	Failures   int       `json:"failures"`
	PromptLen  int       `json:"prompt_len"`
	FinishedAt time.Time `json:"finished_at"`
}
