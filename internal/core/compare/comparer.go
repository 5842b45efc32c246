package compare

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core/common"
	"github.com/agenthands/depo/internal/core/model"
	"github.com/agenthands/depo/internal/llm"
)

type Comparer struct {
	Oracle   llm.Oracle
	Prompt   config.Prompt
	MaxChars int
}

func NewComparer(oracle llm.Oracle, prompt config.Prompt, maxChars int) *Comparer {
	return &Comparer{
		Oracle:   oracle,
		Prompt:   prompt,
		MaxChars: maxChars,
	}
}

// Pair is an unordered pair of transcripts, First preceding Second in resolution order.
type Pair struct {
	First  model.Transcript
	Second model.Transcript
}

// Pairs returns every pair (i, j) with i < j.
func Pairs(transcripts []model.Transcript) []Pair {
	var pairs []Pair
	for i := 0; i < len(transcripts); i++ {
		for j := i + 1; j < len(transcripts); j++ {
			pairs = append(pairs, Pair{First: transcripts[i], Second: transcripts[j]})
		}
	}
	return pairs
}

// FindContradictions makes one oracle call for the pair and returns the findings.
// Findings without a description are dropped.
func (c *Comparer) FindContradictions(ctx context.Context, p Pair) ([]model.ContradictionFinding, error) {
	userPrompt := fmt.Sprintf(c.Prompt.User,
		common.Truncate(p.First.Content, c.MaxChars),
		common.Truncate(p.Second.Content, c.MaxChars),
	)

	response, err := c.Oracle.Complete(ctx, c.Prompt.System, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate contradiction check: %w", err)
	}

	findings, err := common.DecodeArray[model.ContradictionFinding](response, "contradictions")
	if err != nil {
		return nil, fmt.Errorf("failed to parse contradiction result: %w", err)
	}

	out := findings[:0]
	for _, f := range findings {
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		if f.Confidence != nil && (*f.Confidence < 0 || *f.Confidence > 100) {
			f.Confidence = nil
		}
		out = append(out, f)
	}
	return out, nil
}
