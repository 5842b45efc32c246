package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agenthands/depo/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	calls int
	block bool
}

func (s *stubOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return `{"ok": true}`, nil
}

func TestRateLimitedPassesThrough(t *testing.T) {
	stub := &stubOracle{}
	rl := NewRateLimited(stub, 600)

	resp, err := rl.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp)
	assert.Equal(t, 1, stub.calls)
}

func TestRateLimitedHonoursContext(t *testing.T) {
	stub := &stubOracle{}
	rl := NewRateLimited(stub, 1)

	_, err := rl.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rl.Complete(ctx, "sys", "user")
	assert.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestWithTimeout(t *testing.T) {
	stub := &stubOracle{block: true}
	o := WithTimeout(stub, 10*time.Millisecond)

	_, err := o.Complete(context.Background(), "sys", "user")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewClientProviders(t *testing.T) {
	ctx := context.Background()

	o, err := NewClient(ctx, config.LLMConfig{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, o)

	o, err = NewClient(ctx, config.LLMConfig{Provider: "claude", Model: "claude-3-5-sonnet-latest"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, o)

	o, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "llama3", RequestsPerMinute: 30})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, o)

	_, err = NewClient(ctx, config.LLMConfig{Provider: "unknown"})
	assert.Error(t, err)
}
