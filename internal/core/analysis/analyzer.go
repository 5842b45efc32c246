package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core/common"
	"github.com/agenthands/depo/internal/core/model"
	"github.com/agenthands/depo/internal/llm"
)

type Analyzer struct {
	Oracle   llm.Oracle
	Prompts  config.Prompts
	MaxChars int
}

func NewAnalyzer(oracle llm.Oracle, prompts config.Prompts, maxChars int) *Analyzer {
	return &Analyzer{
		Oracle:   oracle,
		Prompts:  prompts,
		MaxChars: maxChars,
	}
}

// Questions asks the oracle for follow-up questions on the transcript excerpt and
// returns them as a JSON array.
func (a *Analyzer) Questions(ctx context.Context, content string) (string, error) {
	items, err := generate[model.FollowUpQuestion](ctx, a, a.Prompts.Questions, content, "questions")
	if err != nil {
		return "", fmt.Errorf("failed to generate questions: %w", err)
	}
	return encode(items)
}

// Insights asks the oracle for key insights on the transcript excerpt and returns
// them as a JSON array.
func (a *Analyzer) Insights(ctx context.Context, content string) (string, error) {
	items, err := generate[model.Insight](ctx, a, a.Prompts.Insights, content, "insights")
	if err != nil {
		return "", fmt.Errorf("failed to generate insights: %w", err)
	}
	return encode(items)
}

func generate[T any](ctx context.Context, a *Analyzer, prompt config.Prompt, content, key string) ([]T, error) {
	excerpt := common.Truncate(content, a.MaxChars)
	userPrompt := fmt.Sprintf(prompt.User, excerpt)

	response, err := a.Oracle.Complete(ctx, prompt.System, userPrompt)
	if err != nil {
		return nil, err
	}

	return common.DecodeArray[T](response, key)
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis: %w", err)
	}
	return string(b), nil
}
