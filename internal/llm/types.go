// Package llm provides the chat, embedding and rerank capabilities the
// pipeline consumes, with retry and circuit-breaker protection.
package llm

import "context"

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatModel is the synthesis capability. Implementations must honour the
// deadline carried by ctx.
type ChatModel interface {
	Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error)
}

// Embedder turns text into a fixed-dimension vector. Dimension must match
// the target collection's vector size; the retriever checks this once at
// warmup and refuses to run on a mismatch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Reranker is the optional external rerank capability. Scores are returned
// in passage order, each in [0,1].
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}
