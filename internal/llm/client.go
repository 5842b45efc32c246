package llm

import (
	"context"
)

// Oracle is an opaque text-completion service that answers with a JSON object.
type Oracle interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
