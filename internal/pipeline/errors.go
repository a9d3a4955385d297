// Package pipeline implements the agentic query pipeline: intent routing,
// hybrid retrieval, parallel relevance grading, confidence reranking and
// grounded answer generation, with a degraded linear path behind a circuit
// breaker.
package pipeline

import "errors"

// Error taxonomy. Handlers map these to HTTP statuses; everything else is an
// internal error.
var (
	// ErrDeadlineExceeded means the request ran out of its time budget.
	ErrDeadlineExceeded = errors.New("query deadline exceeded")
	// ErrOverloaded means the inflight cap rejected the request. Retryable.
	ErrOverloaded = errors.New("service overloaded")
	// ErrUnavailable means both pipeline paths are down.
	ErrUnavailable = errors.New("assistant unavailable")
	// ErrUnknownDomain means the request named a domain with no collection.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrNotReady means warmup has not completed.
	ErrNotReady = errors.New("service not ready")
)
