// Package improver rewrites the base prompt using the model itself,
// seeded with the pass's concrete failures and the prompt history.
package improver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"promptune/internal/clients"
	"promptune/internal/domain"
)

// maxFailureExamples bounds how many failures are quoted in the meta-prompt.
const maxFailureExamples = 10

// snippetLen is how much of each historical prompt is quoted.
const snippetLen = 50

// Improver builds the improvement meta-prompt and persists the revised
// base prompt returned by the model.
type Improver struct {
	client     clients.LLMClient
	model      string
	promptPath string
	logger     *zap.Logger
}

// New creates an improver. model is typically a more capable identifier
// than the per-window evaluator's.
func New(client clients.LLMClient, model, promptPath string, logger *zap.Logger) *Improver {
	return &Improver{
		client:     client,
		model:      model,
		promptPath: promptPath,
		logger:     logger,
	}
}

// Improve submits the meta-prompt and overwrites the prompt file with the
// model's raw response. Any non-empty response is accepted verbatim.
// Callers only invoke this when failures is non-empty.
func (im *Improver) Improve(ctx context.Context, basePrompt string, failures []domain.Failure, history []domain.PromptRecord) (string, error) {
	metaPrompt := BuildMetaPrompt(basePrompt, failures, history)

	revised, err := im.client.Complete(ctx, im.model, metaPrompt)
	if err != nil {
		return "", errors.Wrap(err, "request improved prompt")
	}
	if strings.TrimSpace(revised) == "" {
		return "", errors.New("model returned an empty improved prompt")
	}

	if err := os.WriteFile(im.promptPath, []byte(revised), 0o644); err != nil {
		return "", errors.Wrapf(err, "write improved prompt to %s", im.promptPath)
	}

	im.logger.Info("prompt improved and saved",
		zap.String("path", im.promptPath),
		zap.Int("prompt_len", len(revised)))

	return revised, nil
}

// BuildMetaPrompt constructs the improvement instruction: the task
// domain, up to the first ten failures verbatim, every history record as
// a score plus a truncated snippet, explicit improvement goals, and the
// current base prompt verbatim.
func BuildMetaPrompt(basePrompt string, failures []domain.Failure, history []domain.PromptRecord) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that improves trading prompts.\n")
	sb.WriteString("We have a base prompt (below) that instructs the model to produce an action (long, short, or none) and a brief rationale based on provided ETH, BTC, and SOL market data.\n")
	sb.WriteString("We performed backtesting and found some instances where the model's predicted action did not match the correct action.\n\n")

	sb.WriteString("Below are some examples of these failures:\n")
	for i, f := range failures {
		if i >= maxFailureExamples {
			break
		}
		fmt.Fprintf(&sb, "Window %d: Model predicted %s, but the correct action was %s. Model's rationale: %s\n",
			f.WindowIndex, f.Predicted, f.Correct, f.Rationale)
	}

	sb.WriteString("\nWe also have a history of previous prompts and their overall accuracy scores:\n")
	for _, r := range history {
		fmt.Fprintf(&sb, "- Prompt score: %.2f%% | Prompt snippet: %s...\n",
			r.Score*100, snippet(r.Prompt))
	}

	sb.WriteString("\nWe need to improve the prompt so that:\n")
	sb.WriteString("- The model is more likely to produce correct 'action' decisions.\n")
	sb.WriteString("- The rationale remains concise and well-aligned with the chosen action.\n")
	sb.WriteString("- The model should not provide disclaimers or mention hypothetical scenarios.\n")
	sb.WriteString("- The model should consistently rely on patterns, correlations, and recent price changes from the data.\n")
	sb.WriteString("- The data is appended directly after the prompt.\n")

	sb.WriteString("\nOriginal Prompt:\n")
	sb.WriteString(basePrompt)
	sb.WriteString("\n\nPlease suggest an improved version of the prompt text (without adding any external formatting or code fences), incorporating the above improvements.\n")

	return sb.String()
}

func snippet(prompt string) string {
	flat := strings.ReplaceAll(prompt, "\n", " ")
	runes := []rune(flat)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen])
	}
	return flat
}
