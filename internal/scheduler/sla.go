package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/apcore/internal/domain"
)

// runSLASweep implements spec §4.11's daily SLA sweep: every pending
// invoice with a due date gets a warning or critical alert depending on
// how close (or past) its due date is. InsertSLAAlert's unique index
// dedups repeat runs within the same day.
func (s *Scheduler) runSLASweep(ctx context.Context) {
	invoices, err := s.q.ListPendingInvoicesWithDueDate(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sla sweep: list pending invoices")
		return
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)

	for _, inv := range invoices {
		if inv.DueDate == nil {
			continue
		}
		daysUntilDue := int(inv.DueDate.Sub(now).Hours() / 24)

		var severity domain.SLAAlertSeverity
		switch {
		case daysUntilDue < 0:
			severity = domain.SLACritical
		case daysUntilDue <= s.cfg.SLAWarningDaysBefore:
			severity = domain.SLAWarning
		default:
			continue
		}

		if err := s.q.InsertSLAAlert(ctx, domain.SLAAlert{
			InvoiceID:    inv.ID,
			Severity:     severity,
			DaysUntilDue: daysUntilDue,
			AlertDate:    today,
		}); err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID.String()).Msg("sla sweep: insert alert")
		}
	}
}
