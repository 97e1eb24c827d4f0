package llm

import "context"

// PassResult is what a single extraction pass produces, including the
// AICallLog fields callers must persist regardless of outcome (spec §4.4).
type PassResult struct {
	RawJSON          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int
	Err              error
}

// RunPass1 transcribes the invoice text conservatively, against any Port.
func RunPass1(ctx context.Context, port Port, rawText string, maxTokens int) PassResult {
	return runPass(ctx, port, pass1SystemPrompt, rawText, maxTokens)
}

// RunPass2 independently normalizes the same text; its system prompt asks a
// structurally different question than pass 1 so the two passes act as a
// genuine cross-check (spec §4.4).
func RunPass2(ctx context.Context, port Port, rawText string, maxTokens int) PassResult {
	return runPass(ctx, port, pass2SystemPrompt, rawText, maxTokens)
}

func runPass(ctx context.Context, port Port, systemPrompt, rawText string, maxTokens int) PassResult {
	content, model, promptTokens, completionTokens, latencyMs, err := port.Chat(ctx, systemPrompt, extractionUserPrompt(rawText), maxTokens)
	if err != nil {
		return PassResult{Model: model, LatencyMs: latencyMs, Err: err}
	}
	return PassResult{
		RawJSON:          ExtractJSON(content),
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		LatencyMs:        latencyMs,
	}
}
