package extraction

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/llm"
	"github.com/dukerupert/apcore/internal/repository"
)

const (
	extractOperation = "extract"
	lowConfidence     = 0.70
)

// Config carries the settings run_extraction_pass needs beyond the
// database and LLM port (spec §4.4).
type Config struct {
	MaxTokens int
}

type Service struct {
	q    *repository.Queries
	port llm.Port
	cfg  Config
}

func NewService(q *repository.Queries, port llm.Port, cfg Config) *Service {
	return &Service{q: q, port: port, cfg: cfg}
}

// Result is what Run hands back to the pipeline orchestrator: the merged
// fields, whether both passes failed outright, and the discrepancy list
// persisted alongside pass 2.
type Result struct {
	Merged        Fields
	Discrepancies []string
	BothFailed    bool
}

// Run executes both extraction passes over an invoice's OCR text, logs each
// pass to AICallLog and extraction_results regardless of outcome, compares
// and merges them, persists the invoice's scalar fields and line items, and
// records an extraction_discrepancy AiFeedback row per disagreeing field
// (SPEC_FULL supplemental feature #8). Caller is responsible for the
// invoice's state transition (spec §4.10 stage 4).
func (s *Service) Run(ctx context.Context, inv domain.Invoice, rawText string, ocrConfidence float64) (Result, error) {
	pass1 := llm.RunPass1(ctx, s.port, rawText, s.cfg.MaxTokens)
	pass2 := llm.RunPass2(ctx, s.port, rawText, s.cfg.MaxTokens)

	p1Fields := ParseFields(pass1.RawJSON)
	p2Fields := ParseFields(pass2.RawJSON)

	discrepancies := ComparePasses(p1Fields, p2Fields)

	if err := s.logPass(ctx, inv.ID, 1, pass1, nil); err != nil {
		return Result{}, err
	}
	if err := s.logPass(ctx, inv.ID, 2, pass2, discrepancies); err != nil {
		return Result{}, err
	}

	if pass1.Err != nil && pass2.Err != nil {
		return Result{BothFailed: true}, nil
	}

	merged := MergePasses(p1Fields, p2Fields)

	if err := s.persist(ctx, inv, merged, pass1.Model, ocrConfidence); err != nil {
		return Result{}, err
	}

	for _, field := range discrepancies {
		if field == "line_items_count" {
			continue
		}
		if err := s.q.InsertAiFeedback(ctx, domain.AiFeedback{
			InvoiceID: inv.ID,
			Type:      domain.FeedbackExtractionDiscrepancy,
			Field:     field,
			OldValue:  p1Fields.scalar(field),
			NewValue:  p2Fields.scalar(field),
		}); err != nil {
			return Result{}, err
		}
	}

	return Result{Merged: merged, Discrepancies: discrepancies}, nil
}

func (s *Service) logPass(ctx context.Context, invoiceID uuid.UUID, passNumber int, pass llm.PassResult, discrepancies []string) error {
	errMsg := ""
	if pass.Err != nil {
		errMsg = pass.Err.Error()
	}
	if err := s.q.InsertAICallLog(ctx, domain.AICallLog{
		InvoiceID:        &invoiceID,
		Operation:        extractOperation,
		Model:            pass.Model,
		PromptTokens:     pass.PromptTokens,
		CompletionTokens: pass.CompletionTokens,
		LatencyMs:        pass.LatencyMs,
		Error:            errMsg,
	}); err != nil {
		return err
	}

	raw, _ := json.Marshal(struct {
		Pass int    `json:"pass"`
		JSON string `json:"json"`
	}{passNumber, pass.RawJSON})

	return s.q.InsertExtractionResult(ctx, invoiceID, passNumber, pass.Model, raw, pass.PromptTokens, pass.CompletionTokens, pass.LatencyMs, discrepancies)
}

func (s *Service) persist(ctx context.Context, inv domain.Invoice, f Fields, model string, ocrConfidence float64) error {
	invoiceDate := parseDatePtr(f.InvoiceDate)
	dueDate := parseDatePtr(f.DueDate)

	if err := s.q.UpdateExtractedFields(ctx, repository.UpdateExtractedFieldsParams{
		ID:              inv.ID,
		InvoiceNumber:   f.InvoiceNumber,
		VendorID:        inv.VendorID,
		VendorNameRaw:   f.VendorName,
		VendorAddrRaw:   f.VendorAddress,
		Currency:        f.Currency,
		Subtotal:        f.Subtotal,
		TaxAmount:       f.TaxAmount,
		TotalAmount:     f.TotalAmount,
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		PaymentTerms:    f.PaymentTerms,
		RemitTo:         f.RemitTo,
		OCRConfidence:   ocrConfidence,
		ExtractionModel: model,
	}); err != nil {
		return err
	}

	lines := make([]domain.InvoiceLineItem, 0, len(f.LineItems))
	for i, li := range f.LineItems {
		lines = append(lines, domain.InvoiceLineItem{
			InvoiceID:   inv.ID,
			LineNumber:  i + 1,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.Amount,
		})
	}
	return s.q.ReplaceInvoiceLineItems(ctx, inv.ID, lines)
}
