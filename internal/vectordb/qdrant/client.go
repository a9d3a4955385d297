package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client is a thin HTTP client for Qdrant.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
	mu         sync.RWMutex
	connected  bool
}

// NewClient creates a Qdrant client.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Connect verifies connectivity to Qdrant. The retriever calls this once at
// warmup; readiness gates on it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.healthCheckLocked(ctx); err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	c.connected = true
	c.logger.WithField("url", c.config.URL).Info("connected to qdrant")
	return nil
}

// Close marks the client disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck probes the Qdrant root endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthCheckLocked(ctx)
}

func (c *Client) healthCheckLocked(ctx context.Context) error {
	// Root endpoint works across Qdrant versions; 1.16+ dropped /health.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.baseURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	url := c.config.baseURL() + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// CollectionInfo describes a collection, including the vector size the
// warmup check compares against the embedder's dimension.
type CollectionInfo struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	PointsCount int64  `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
}

// GetCollectionInfo returns collection status, point count and vector size.
func (c *Client) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected to qdrant")
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("get collection info: %w", err)
	}

	var response struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &CollectionInfo{
		Name:        name,
		Status:      response.Result.Status,
		PointsCount: response.Result.PointsCount,
		VectorSize:  response.Result.Config.Params.Vectors.Size,
	}, nil
}

// ScoredPoint is one similarity search hit.
type ScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Search runs a vector similarity search against a collection.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, opts *SearchOptions) ([]ScoredPoint, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected to qdrant")
	}
	if opts == nil {
		opts = DefaultSearchOptions()
	}

	reqBody := map[string]interface{}{
		"vector":       vector,
		"limit":        opts.Limit,
		"with_payload": opts.WithPayload,
	}
	if opts.ScoreThreshold > 0 {
		reqBody["score_threshold"] = opts.ScoreThreshold
	}
	if opts.Filter != nil {
		reqBody["filter"] = opts.Filter
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/search", reqBody)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var response struct {
		Result []struct {
			ID      json.RawMessage        `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	points := make([]ScoredPoint, len(response.Result))
	for i, r := range response.Result {
		points[i] = ScoredPoint{
			ID:      decodePointID(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		}
	}
	return points, nil
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Scroll pages through a collection's points. It returns the page and the
// offset for the next page, or nil when exhausted. The lexical index builder
// uses this to read the full corpus at warmup.
func (c *Client) Scroll(ctx context.Context, collection string, limit int, offset *string) ([]Point, *string, error) {
	if !c.IsConnected() {
		return nil, nil, fmt.Errorf("not connected to qdrant")
	}

	reqBody := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != nil {
		reqBody["offset"] = *offset
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("scroll: %w", err)
	}

	var response struct {
		Result struct {
			NextPageOffset json.RawMessage `json:"next_page_offset"`
			Points         []struct {
				ID      json.RawMessage        `json:"id"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, nil, fmt.Errorf("parse response: %w", err)
	}

	points := make([]Point, len(response.Result.Points))
	for i, r := range response.Result.Points {
		points[i] = Point{
			ID:      decodePointID(r.ID),
			Payload: r.Payload,
		}
	}

	var next *string
	if raw := response.Result.NextPageOffset; len(raw) > 0 && string(raw) != "null" {
		s := decodePointID(raw)
		next = &s
	}
	return points, next, nil
}

// CountPoints returns the exact number of points in a collection.
func (c *Client) CountPoints(ctx context.Context, collection string) (int64, error) {
	if !c.IsConnected() {
		return 0, fmt.Errorf("not connected to qdrant")
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/count",
		map[string]interface{}{"exact": true})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}

	var response struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	return response.Result.Count, nil
}

// decodePointID normalizes a point ID that may arrive as a JSON string or an
// integer.
func decodePointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return string(raw)
}
