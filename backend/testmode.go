package backend

import (
	"context"
	"strings"
)

// testAdapter is an in-process canned backend used when
// config.TestMode is set, so the node can run end to end without a
// live LLM server. Token counts are a character-count heuristic, not
// a real tokenizer.
type testAdapter struct {
	defaultModel string
}

func newTestAdapter(defaultModel string) Adapter {
	return &testAdapter{defaultModel: defaultModel}
}

func (t *testAdapter) Name() string { return "testmode" }

func (t *testAdapter) ChatCompletion(ctx context.Context, req ChallengeEnvelope) (*InferenceResult, error) {
	var prompt strings.Builder
	for _, m := range req.Messages {
		prompt.WriteString(m.Content)
	}
	if prompt.Len() == 0 {
		prompt.WriteString(req.Prompt)
	}

	content := "echo: " + prompt.String()
	promptTokens := estimateTokens(prompt.String())
	completionTokens := estimateTokens(content)

	return &InferenceResult{
		Content:      content,
		FinishReason: "stop",
		Model:        t.defaultModel,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (t *testAdapter) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

// estimateTokens applies a coarse characters-per-token heuristic,
// good enough for exercising the usage-reporting path in tests.
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}
