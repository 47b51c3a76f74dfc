package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/books"
	"tally/internal/core"
)

// RetainerAddedBy marks invoices the generator created.
const RetainerAddedBy = "retainer"

// RetainerService emits at most one draft invoice per retainer client
// per calendar month. The existing invoice set is the sole dedup oracle:
// editing a generated invoice's date out of the current month defeats
// it, which is accepted.
type RetainerService struct {
	store  books.Store
	events ChangePublisher
}

func NewRetainerService(store books.Store, events ChangePublisher) *RetainerService {
	return &RetainerService{store: store, events: events}
}

// GenerateDue scans retainer clients against the full invoice set and
// creates the missing invoices for now's calendar month in a single
// transaction. It returns how many invoices were created; running it
// again within the same month creates none.
func (s *RetainerService) GenerateDue(ctx context.Context, now time.Time) (int, error) {
	period := core.PeriodLabel(now)

	clientRecords, err := s.store.List(ctx, books.Clients)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}
	invoiceRecords, err := s.store.List(ctx, books.Invoices)
	if err != nil {
		return 0, fmt.Errorf("list invoices: %w", err)
	}

	// Client names that already have an invoice in this period.
	covered := make(map[string]bool)
	for _, inv := range core.InvoicesFrom(invoiceRecords) {
		if !inv.Date.IsZero() && core.PeriodLabel(inv.Date) == period {
			covered[inv.Client] = true
		}
	}

	tx := books.NewTransaction()
	for _, c := range core.ClientsFrom(clientRecords) {
		if !c.IsRetainer() || covered[c.Name] {
			continue
		}
		// Duplicate client names still get exactly one invoice per run.
		covered[c.Name] = true
		inv := core.Invoice{
			Client: c.Name,
			Date:   now,
			Items: []core.LineItem{{
				Description: fmt.Sprintf("Monthly Retainer - %s", period),
				Quantity:    1,
				Rate:        c.RetainerAmount,
			}},
			TaxRate: 0,
			Status:  core.InvoiceDraft,
			AddedBy: RetainerAddedBy,
		}
		tx.Create(books.Invoices, inv.Record())
		slog.InfoContext(ctx, "Retainer invoice due",
			"client", c.Name, "period", period, "rate", c.RetainerAmount)
	}

	if tx.Empty() {
		slog.InfoContext(ctx, "No retainer invoices pending", "period", period)
		return 0, nil
	}

	changes, err := s.store.Apply(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("create retainer invoices: %w", err)
	}

	if s.events != nil {
		for _, c := range changes {
			if err := s.events.PublishRecordChange(ctx, c); err != nil {
				slog.ErrorContext(ctx, "Failed to publish record change",
					"collection", c.Collection, "id", c.ID, "error", err)
			}
		}
	}

	slog.InfoContext(ctx, "Retainer invoices generated",
		"period", period, "created", len(changes))
	return len(changes), nil
}
