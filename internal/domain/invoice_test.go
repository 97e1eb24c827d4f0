package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from InvoiceStatus
		to   InvoiceStatus
		want bool
	}{
		{"ingested to extracting", InvoiceIngested, InvoiceExtracting, true},
		{"ingested to matched skips stages", InvoiceIngested, InvoiceMatched, false},
		{"matching to matched", InvoiceMatching, InvoiceMatched, true},
		{"matching to exception", InvoiceMatching, InvoiceException, true},
		{"exception to matched re-run", InvoiceException, InvoiceMatched, true},
		{"exception to approved", InvoiceException, InvoiceApproved, true},
		{"approved to paid", InvoiceApproved, InvoicePaid, true},
		{"paid is terminal", InvoicePaid, InvoiceCancelled, false},
		{"cancelled is terminal", InvoiceCancelled, InvoiceIngested, false},
		{"rejected to cancelled", InvoiceRejected, InvoiceCancelled, true},
		{"unknown from state", InvoiceStatus("bogus"), InvoiceExtracting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
