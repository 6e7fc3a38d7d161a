package ai

import (
	"context"
	"errors"
)

// Result is the validated outcome of a single essay evaluation.
type Result struct {
	Score         int      `json:"score"`
	Feedback      string   `json:"feedback"`
	Highlights    []string `json:"highlights"`
	AnnotatedText string   `json:"highlightSubmitText"`
	LatencyMs     int64    `json:"latencyMs"`
}

// Evaluator scores an essay and returns a safe result.
type Evaluator interface {
	Evaluate(ctx context.Context, submitText string) (Result, error)
}

// Prompt is a single request to an upstream language model.
type Prompt struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer performs one raw completion call against an LLM provider.
// An empty string with a nil error means the provider answered without content.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	Provider() string
}

// EvaluationError reports that the upstream AI call itself failed.
// Malformed model output never produces this error.
type EvaluationError struct {
	Message string
	Err     error
}

func (e *EvaluationError) Error() string {
	return "ai evaluation failed: " + e.Message
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsEvaluationError reports whether err carries an *EvaluationError.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr)
}
