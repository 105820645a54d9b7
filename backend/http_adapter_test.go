package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHTTPAdapter(t *testing.T, baseURL string) *httpAdapter {
	t.Helper()
	return newHTTPAdapter(httpAdapterConfig{
		name:         "vllm",
		baseURL:      baseURL,
		apiKey:       "EMPTY",
		defaultModel: "test-model",
		maxTokens:    128,
		temperature:  0.5,
		topP:         1.0,
		timeout:      5 * time.Second,
	}, zap.NewNop())
}

func TestHTTPAdapter_ChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer EMPTY", r.Header.Get("Authorization"))

		var body openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	adapter := newTestHTTPAdapter(t, srv.URL)
	result, err := adapter.ChatCompletion(context.Background(), ChallengeEnvelope{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, "stop", result.FinishReason)
	assert.Equal(t, 4, result.Usage.TotalTokens)
}

func TestHTTPAdapter_ChatCompletion_UsesOnlyFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "first"}, "finish_reason": "stop"},
				{"message": map[string]string{"role": "assistant", "content": "second"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	adapter := newTestHTTPAdapter(t, srv.URL)
	result, err := adapter.ChatCompletion(context.Background(), ChallengeEnvelope{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "first", result.Content)
}

func TestHTTPAdapter_ChatCompletion_PropagatesToolsAndNormalizesFinishReason(t *testing.T) {
	tools := []ToolDef{{Type: "function", Function: ToolFunction{Name: "get_weather"}}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "get_weather", body.Tools[0].Function.Name)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{
							{"id": "call_1", "type": "function", "function": map[string]string{"name": "get_weather", "arguments": `{"city":"nyc"}`}},
						},
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	adapter := newTestHTTPAdapter(t, srv.URL)
	result, err := adapter.ChatCompletion(context.Background(), ChallengeEnvelope{
		Messages: []ChatMessage{{Role: "user", Content: "what's the weather"}},
		Tools:    tools,
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", result.FinishReason)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "get_weather", result.ToolCalls[0].Function.Name)
}

func TestHTTPAdapter_ChatCompletion_RejectsEmptyEnvelope(t *testing.T) {
	adapter := newTestHTTPAdapter(t, "http://example.invalid")
	_, err := adapter.ChatCompletion(context.Background(), ChallengeEnvelope{})
	assert.Error(t, err)
}

func TestHTTPAdapter_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := newTestHTTPAdapter(t, srv.URL)
	status, err := adapter.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestHTTPAdapter_HealthCheck_UnhealthyOnNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := newTestHTTPAdapter(t, srv.URL)
	status, err := adapter.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

func TestTestAdapter_EchoesPrompt(t *testing.T) {
	adapter := newTestAdapter("default-model")
	result, err := adapter.ChatCompletion(context.Background(), ChallengeEnvelope{Prompt: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", result.Content)
	assert.Greater(t, result.Usage.TotalTokens, 0)

	status, err := adapter.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
