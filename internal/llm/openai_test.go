package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func newOpenAITestClient(srv *httptest.Server) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		ChatModel:  "gpt-test",
		EmbedModel: "embed-test",
		EmbedDim:   4,
		Retry:      fastRetry(),
	}, nil)
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "hi there"}}]}`))
	}))
	defer srv.Close()

	answer, err := newOpenAITestClient(srv).Chat(context.Background(), "hello", ChatOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
}

func TestOpenAIChatRetriesOn429(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "recovered"}}]}`))
	}))
	defer srv.Close()

	answer, err := newOpenAITestClient(srv).Chat(context.Background(), "q", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestOpenAIChatDoesNotRetryOn400(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request"}}`))
	}))
	defer srv.Close()

	_, err := newOpenAITestClient(srv).Chat(context.Background(), "q", ChatOptions{})
	assert.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3, 0.4]}]}`))
	}))
	defer srv.Close()

	client := newOpenAITestClient(srv)
	vec, err := client.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vec)
	assert.Equal(t, 4, client.Dimension())
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := newOpenAITestClient(srv).Chat(context.Background(), "q", ChatOptions{})
	assert.ErrorContains(t, err, "empty response")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefghij", 5))
}
