// Package ocr implements spec §4.10 stage 2: turning a downloaded invoice
// blob into raw text, either by rendering a PDF's pages and transcribing
// each with the LLM vision port, or by transcribing a single image
// directly.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dukerupert/apcore/internal/llm"
)

const (
	transcribeSystemPrompt = `You are an OCR engine. Transcribe every piece of text visible on this
invoice page exactly as printed, preserving line breaks where they separate
distinct fields or table rows. Output plain text only, no commentary.`

	pdfMimeType = "application/pdf"
)

// Result is what Run hands the extraction stage: concatenated raw text, a
// confidence estimate, and per-page call details (model, tokens, latency,
// error). The pipeline does not write Calls to AICallLog.
type Result struct {
	RawText    string
	Confidence float64
	Calls      []PageCall
}

type PageCall struct {
	Page             int
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int
	Err              error
}

type Service struct {
	port      llm.Port
	maxTokens int
}

func NewService(port llm.Port, maxTokens int) *Service {
	return &Service{port: port, maxTokens: maxTokens}
}

// Run dispatches on MIME type: a PDF is split into single-page documents and
// each page is transcribed independently then concatenated; anything else
// is treated as a single image and transcribed directly (spec §4.10 stage
// 2).
func (s *Service) Run(ctx context.Context, blob []byte, mimeType string) (Result, error) {
	if mimeType == pdfMimeType {
		return s.runPDF(ctx, blob)
	}
	return s.runImage(ctx, blob, mimeType)
}

func (s *Service) runImage(ctx context.Context, blob []byte, mimeType string) (Result, error) {
	text, call := s.transcribePage(ctx, blob, mimeType, 1)
	return Result{
		RawText:    text,
		Confidence: confidenceFor(call),
		Calls:      []PageCall{call},
	}, nil
}

func (s *Service) runPDF(ctx context.Context, blob []byte) (Result, error) {
	pageCount, err := api.PageCountFile(bytes.NewReader(blob))
	if err != nil {
		return Result{}, fmt.Errorf("ocr: page count: %w", err)
	}

	var texts []string
	var calls []PageCall
	minConfidence := 1.0

	for page := 1; page <= pageCount; page++ {
		pageBytes, err := extractPage(blob, page)
		if err != nil {
			calls = append(calls, PageCall{Page: page, Err: err})
			minConfidence = 0
			continue
		}

		text, call := s.transcribePage(ctx, pageBytes, pdfMimeType, page)
		calls = append(calls, call)
		if c := confidenceFor(call); c < minConfidence {
			minConfidence = c
		}
		texts = append(texts, text)
	}

	return Result{
		RawText:    strings.Join(texts, "\n\n"),
		Confidence: minConfidence,
		Calls:      calls,
	}, nil
}

func extractPage(blob []byte, page int) ([]byte, error) {
	var out bytes.Buffer
	if err := api.TrimFile(bytes.NewReader(blob), &out, []string{fmt.Sprint(page)}, nil); err != nil {
		return nil, fmt.Errorf("ocr: extract page %d: %w", page, err)
	}
	return out.Bytes(), nil
}

func (s *Service) transcribePage(ctx context.Context, pageBlob []byte, mimeType string, page int) (string, PageCall) {
	content, model, promptTokens, completionTokens, latencyMs, err := s.port.ChatImage(
		ctx, transcribeSystemPrompt, "Transcribe this invoice page.", pageBlob, mimeType, s.maxTokens,
	)
	call := PageCall{Page: page, Model: model, PromptTokens: promptTokens, CompletionTokens: completionTokens, LatencyMs: latencyMs, Err: err}
	if err != nil {
		return "", call
	}
	return content, call
}

// confidenceFor is a coarse proxy: a page that transcribed without error is
// full confidence, a failed page is zero. There is no OCR engine
// confidence score to read since transcription runs through the LLM vision
// port rather than a dedicated OCR library.
func confidenceFor(call PageCall) float64 {
	if call.Err != nil {
		return 0
	}
	return 1.0
}
