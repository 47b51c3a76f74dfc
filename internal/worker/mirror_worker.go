package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/books"
	"tally/internal/core"
	"tally/internal/mirror"
)

// MirrorWorker copies committed record changes into the accountant's
// spreadsheet. It re-reads each record from the store before writing,
// so a stale or re-delivered message never mirrors old data.
type MirrorWorker struct {
	store     books.Store
	appender  mirror.RowAppender
	batchSize int
}

func NewMirrorWorker(store books.Store, appender mirror.RowAppender, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleChangeMessage processes a single record change message from AMQP
func (w *MirrorWorker) HandleChangeMessage(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		"collection", msg.Collection,
		"id", msg.ID,
		"op", msg.Op)

	row := mirror.Row{
		When:       msg.Timestamp,
		Collection: msg.Collection,
		RecordID:   msg.ID,
		Op:         msg.Op,
	}

	if msg.Op != string(books.OpDelete) {
		rec, err := w.store.Get(ctx, msg.Collection, msg.ID)
		if err != nil {
			// Deleted between publish and consume: mirror the tombstone.
			if errors.Is(err, books.ErrNotFound) {
				row.Summary = "(record no longer exists)"
			} else {
				return fmt.Errorf("get record from store: %w", err)
			}
		} else {
			row.Summary = summarize(msg.Collection, rec)
			row.Amount = recordAmount(msg.Collection, rec)
		}
	}

	ref, err := w.appender.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append mirror row: %w", err)
	}

	slog.InfoContext(ctx, "Record change mirrored",
		"collection", msg.Collection, "id", msg.ID, "row_ref", ref)
	return nil
}

// MirrorCollection re-mirrors every record in a collection, batched to
// stay inside the Sheets write quota. Used by the startup catch-up.
func (w *MirrorWorker) MirrorCollection(ctx context.Context, collection string) (int, error) {
	records, err := w.store.List(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", collection, err)
	}

	mirrored := 0
	for i, rec := range records {
		if i > 0 && i%w.batchSize == 0 {
			select {
			case <-ctx.Done():
				return mirrored, ctx.Err()
			default:
			}
		}

		row := mirror.Row{
			When:       rec.CreatedAt(),
			Collection: collection,
			RecordID:   rec.ID(),
			Op:         string(books.OpCreate),
			Summary:    summarize(collection, rec),
			Amount:     recordAmount(collection, rec),
		}
		if _, err := w.appender.Append(ctx, row); err != nil {
			return mirrored, fmt.Errorf("append row for %s/%s: %w", collection, rec.ID(), err)
		}
		mirrored++
	}
	return mirrored, nil
}

// summarize builds the human-readable cell for one record.
func summarize(collection string, rec books.Record) string {
	switch collection {
	case books.Clients, books.Vendors:
		return rec.Str(core.KeyName)
	case books.Invoices:
		return "Invoice for " + rec.Str(core.KeyClient)
	case books.VendorBills:
		return fmt.Sprintf("Bill #%s from %s", rec.Str(core.KeyBillNumber), rec.Str(core.KeyVendor))
	case books.Salaries:
		return "Salary for " + rec.Str(core.KeyEmployeeName)
	default:
		return rec.Str(core.KeyDescription)
	}
}

// recordAmount picks the figure worth mirroring per collection.
func recordAmount(collection string, rec books.Record) int64 {
	switch collection {
	case books.Clients:
		return rec.Amount(core.KeyAdvanceReceived)
	case books.VendorBills:
		return rec.Amount(core.KeyAmount)
	case books.PettyCash:
		return rec.Amount(core.KeyCashIn) - rec.Amount(core.KeyCashOut)
	case books.BankRecords, books.Expenses:
		return rec.Amount(core.KeyAmount)
	case books.Salaries:
		return rec.Amount(core.KeyTotalPayable)
	case books.Invoices:
		return core.InvoiceFrom(rec).Total()
	default:
		return 0
	}
}
