package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/apierr"
	"github.com/loosh-ai/miner-core/internal/tlsutil"
)

// httpAdapterConfig configures the shared OpenAI-protocol HTTP client;
// a vllm/ollama/llamacpp constructor differs from another only in
// these fields.
type httpAdapterConfig struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	maxTokens    int
	temperature  float64
	topP         float64
	timeout      time.Duration
}

// httpAdapter is the shared OpenAI-compatible chat-completion client
// embedded by every HTTP-backed adapter.
type httpAdapter struct {
	cfg    httpAdapterConfig
	client *http.Client
	logger *zap.Logger
}

func newHTTPAdapter(cfg httpAdapterConfig, logger *zap.Logger) *httpAdapter {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpAdapter{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger,
	}
}

func (a *httpAdapter) Name() string { return a.cfg.name }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ChatMessage   `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Tools       []ToolDef       `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
}

type openAIChatChoice struct {
	Message struct {
		Role      string     `json:"role"`
		Content   string     `json:"content"`
		ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIChatResponse struct {
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *httpAdapter) endpoint(path string) string {
	return strings.TrimRight(a.cfg.baseURL, "/") + path
}

func (a *httpAdapter) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.apiKey)
	}
}

// ChatCompletion sends a non-streaming completion request. The
// model the peer asked for is ignored in favor of the configured
// default, matching the reference implementation's behavior.
func (a *httpAdapter) ChatCompletion(ctx context.Context, req ChallengeEnvelope) (*InferenceResult, error) {
	messages := req.Messages
	if len(messages) == 0 && req.Prompt != "" {
		messages = []ChatMessage{{Role: "user", Content: req.Prompt}}
	}
	if len(messages) == 0 {
		return nil, apierr.New(apierr.BadEnvelope, "challenge has neither messages nor prompt")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.cfg.maxTokens
	}
	temperature := a.cfg.temperature
	if req.Temperature != 0 {
		temperature = req.Temperature
	}
	topP := a.cfg.topP
	if req.TopP != 0 {
		topP = req.TopP
	}

	body := openAIChatRequest{
		Model:       a.cfg.defaultModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build chat request", err)
	}
	a.buildHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, fmt.Sprintf("%s: request failed", a.cfg.name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apierr.New(apierr.BackendError, fmt.Sprintf("%s: status %d: %s", a.cfg.name, resp.StatusCode, msg))
	}

	var oaResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, apierr.Wrap(apierr.BackendError, fmt.Sprintf("%s: decode response", a.cfg.name), err)
	}
	if len(oaResp.Choices) == 0 {
		return nil, apierr.New(apierr.BackendError, fmt.Sprintf("%s: empty choices", a.cfg.name))
	}

	// Only choices[0] is authoritative; the server may return
	// alternates under n>1 but the protocol here never requests them.
	choice := oaResp.Choices[0]

	finish := choice.FinishReason
	if finish == "" {
		finish = "stop"
	}
	if len(choice.Message.ToolCalls) > 0 && finish == "stop" {
		finish = "tool_calls"
	}

	model := oaResp.Model
	if model == "" {
		model = a.cfg.defaultModel
	}

	return &InferenceResult{
		Content:      choice.Message.Content,
		FinishReason: finish,
		Model:        model,
		ToolCalls:    choice.Message.ToolCalls,
		Usage: Usage{
			PromptTokens:     oaResp.Usage.PromptTokens,
			CompletionTokens: oaResp.Usage.CompletionTokens,
			TotalTokens:      oaResp.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck probes the backend's model-listing endpoint.
func (a *httpAdapter) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint("/models"), nil)
	if err != nil {
		return &HealthStatus{Healthy: false, Detail: err.Error()}, err
	}
	a.buildHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return &HealthStatus{Healthy: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HealthStatus{Healthy: false, Detail: fmt.Sprintf("status %d", resp.StatusCode)}, nil
	}
	return &HealthStatus{Healthy: true}, nil
}
