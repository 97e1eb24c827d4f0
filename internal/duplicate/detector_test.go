package duplicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/apcore/internal/domain"
)

func TestReferenceDatePrefersInvoiceDate(t *testing.T) {
	invoiceDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	inv := domain.Invoice{InvoiceDate: &invoiceDate, CreatedAt: created}

	assert.True(t, referenceDate(inv).Equal(invoiceDate))
}

func TestReferenceDateFallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	inv := domain.Invoice{CreatedAt: created}

	assert.True(t, referenceDate(inv).Equal(created))
}
