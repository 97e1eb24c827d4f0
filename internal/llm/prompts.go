package llm

// Field names match the fixed scalar set spec §4.4 compares across the two
// extraction passes: invoice_number, vendor_name, vendor_address,
// invoice_date, due_date, currency, subtotal, tax_amount, total_amount,
// payment_terms, plus line_items.
const extractionSchema = `{
  "invoice_number": "string",
  "vendor_name": "string",
  "vendor_address": "string",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "currency": "ISO 4217 code, e.g. USD",
  "subtotal": "decimal string",
  "tax_amount": "decimal string",
  "total_amount": "decimal string",
  "payment_terms": "string, e.g. Net 30",
  "remit_to": "string",
  "line_items": [
    {
      "description": "string",
      "quantity": "decimal string",
      "unit_price": "decimal string",
      "amount": "decimal string",
      "po_line_number": "string or null"
    }
  ]
}`

// pass1SystemPrompt asks for a literal, conservative transcription of the
// document — no normalization, no inference beyond what is printed.
const pass1SystemPrompt = `You are an invoice data extraction engine. Read the invoice text
and return ONLY a JSON object matching the schema below. Transcribe values
exactly as printed; do not infer or normalize beyond trimming whitespace. If
a field is not present on the invoice, use an empty string (or empty array
for line_items). Return JSON only, no prose, no Markdown fence.

Schema:
` + extractionSchema

// pass2SystemPrompt asks a structurally different question of the same
// text — normalized values and a best-effort fill for ambiguous fields —
// so its answer is an independent check on pass 1 rather than a repeat of
// the same reasoning (spec §4.4's two-pass design).
const pass2SystemPrompt = `You are an invoice data extraction auditor. Read the invoice text
and return ONLY a JSON object matching the schema below. Normalize dates to
YYYY-MM-DD and amounts to plain decimal strings (no currency symbols or
thousands separators). Where a value is ambiguous, use your best judgment
and fill it rather than leaving it blank. Return JSON only, no prose, no
Markdown fence.

Schema:
` + extractionSchema

func extractionUserPrompt(rawText string) string {
	return "Invoice text:\n\n" + rawText
}

// narrationSystemPrompt asks for a short, specific root-cause explanation
// of an exception, grounded in the invoice's own fields and the exception's
// description — not a restatement of the exception code.
const narrationSystemPrompt = `You are an accounts payable analyst. Given an invoice's details and an
exception raised against it, write a 2-3 sentence root-cause explanation a
human reviewer can act on. Be specific about amounts and dates where they
are the cause. Do not repeat the exception code verbatim; explain it.`
