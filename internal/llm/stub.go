package llm

import "context"

// StubClient satisfies Port without calling out to any provider, for local
// development and the config default (LLM_PROVIDER=stub). It always
// returns an empty payload, which downstream callers treat as a pass that
// produced no fields rather than an error (spec §4.4's tolerant-parsing
// rule).
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (s *StubClient) Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, string, int, int, int, error) {
	return "{}", "stub", 0, 0, 0, nil
}

func (s *StubClient) ChatImage(ctx context.Context, systemPrompt, userPrompt string, imageData []byte, mimeType string, maxTokens int) (string, string, int, int, int, error) {
	return "", "stub", 0, 0, 0, nil
}
