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

// HTTPReranker calls an external cross-encoder rerank endpoint. The service
// runs without one; callers must treat a nil Reranker as "rerank by grade
// confidence only".
type HTTPReranker struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPReranker creates a reranker client for the given endpoint.
func NewHTTPReranker(endpoint, apiKey string, timeout time.Duration, logger *logrus.Logger) *HTTPReranker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPReranker{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// Rerank scores each passage against the query, returning scores in passage
// order, each in [0,1].
func (r *HTTPReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Documents: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var result rerankResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("rerank: %s", result.Error)
	}
	if len(result.Scores) != len(passages) {
		return nil, fmt.Errorf("rerank: got %d scores for %d passages", len(result.Scores), len(passages))
	}
	return result.Scores, nil
}
