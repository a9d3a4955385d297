package llm

import "context"

// GuardedChat wraps a ChatModel with a circuit breaker. An open breaker
// fails calls fast with ErrCircuitOpen.
type GuardedChat struct {
	chat    ChatModel
	breaker *CircuitBreaker
}

// NewGuardedChat wraps chat with breaker.
func NewGuardedChat(chat ChatModel, breaker *CircuitBreaker) *GuardedChat {
	return &GuardedChat{chat: chat, breaker: breaker}
}

// Chat runs the call if the breaker admits it, recording the outcome.
func (g *GuardedChat) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	if !g.breaker.Allow() {
		return "", ErrCircuitOpen
	}
	answer, err := g.chat.Chat(ctx, prompt, opts)
	if err != nil {
		g.breaker.RecordFailure()
		return "", err
	}
	g.breaker.RecordSuccess()
	return answer, nil
}
