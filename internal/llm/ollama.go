package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// OllamaClient talks to a local Ollama instance for chat and embeddings.
type OllamaClient struct {
	baseURL    string
	chatModel  string
	embedModel string
	embedDim   int
	httpClient *http.Client
	retry      RetryConfig
	logger     *logrus.Logger
}

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	EmbedDim   int
	Timeout    time.Duration
	Retry      RetryConfig
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(cfg OllamaConfig, logger *logrus.Logger) *OllamaClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		embedDim:   cfg.EmbedDim,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
		logger:     logger,
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Chat sends a non-streaming generate request.
func (c *OllamaClient) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  c.chatModel,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	var result ollamaGenerateResponse
	err := Do(ctx, c.retry, func(ctx context.Context) error {
		return c.post(ctx, "/api/generate", reqBody, &result)
	})
	if err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", result.Error)
	}
	return result.Response, nil
}

// Embed returns the embedding vector for text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model:  c.embedModel,
		Prompt: text,
	}

	var result ollamaEmbedResponse
	err := Do(ctx, c.retry, func(ctx context.Context) error {
		return c.post(ctx, "/api/embeddings", reqBody, &result)
	})
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("ollama embeddings: %s", result.Error)
	}
	return result.Embedding, nil
}

// Dimension returns the configured embedding dimensionality.
func (c *OllamaClient) Dimension() int {
	return c.embedDim
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("ollama request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, truncate(string(data), 200))
		if IsRetryableStatusCode(resp.StatusCode) {
			return Transient(err)
		}
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
