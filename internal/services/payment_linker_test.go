package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/books"
	"tally/internal/books/memory"
	"tally/internal/core"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
}

func seedBill(t *testing.T, s books.Store) string {
	t.Helper()
	id, err := s.Create(context.Background(), books.VendorBills, core.VendorBill{
		Vendor:     "Print Studio",
		BillNumber: "PS-101",
		Amount:     8000,
	}.Record())
	if err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return id
}

func seedInvoice(t *testing.T, s books.Store) string {
	t.Helper()
	id, err := s.Create(context.Background(), books.Invoices, core.Invoice{
		Client: "Acme",
		Status: core.InvoiceDraft,
		Items:  []core.LineItem{{Description: "Design", Quantity: 1, Rate: 5000}},
	}.Record())
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return id
}

func TestLinkBillPaymentFromBank(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil).WithClock(fixedClock())
	billID := seedBill(t, store)

	err := svc.Link(ctx, LinkRequest{
		Kind:         KindBill,
		ObligationID: billID,
		Amount:       8000,
		Account:      AccountBank,
	})
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	bill := core.VendorBillFrom(mustGet(t, store, books.VendorBills, billID))
	if bill.Status() != core.BillPaid {
		t.Errorf("bill status = %q, want %q", bill.Status(), core.BillPaid)
	}
	if bill.PaidAmount != 8000 {
		t.Errorf("paidAmount = %d, want 8000", bill.PaidAmount)
	}

	bank := mustList(t, store, books.BankRecords)
	if len(bank) != 1 {
		t.Fatalf("bank records = %d, want exactly 1", len(bank))
	}
	movement := core.BankRecordFrom(bank[0])
	if movement.Description != "Bill Payment: Print Studio (#PS-101)" {
		t.Errorf("description = %q", movement.Description)
	}
	if movement.Amount != -8000 {
		t.Errorf("bank amount = %d, bill payments are outflows", movement.Amount)
	}
	if movement.Status != core.BankCleared {
		t.Errorf("bank status = %q, want %q", movement.Status, core.BankCleared)
	}
	if !movement.Date.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("movement date = %v, want the pinned clock's day", movement.Date)
	}
}

func TestLinkBillPaymentFromPettyCash(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil).WithClock(fixedClock())
	billID := seedBill(t, store)

	if err := svc.Link(ctx, LinkRequest{
		Kind:         KindBill,
		ObligationID: billID,
		Amount:       8000,
		Account:      AccountPetty,
	}); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	petty := mustList(t, store, books.PettyCash)
	if len(petty) != 1 {
		t.Fatalf("petty cash entries = %d, want 1", len(petty))
	}
	entry := core.PettyCashFrom(petty[0])
	if entry.CashOut != 8000 || entry.CashIn != 0 {
		t.Errorf("entry = cashIn %d cashOut %d, bill payment must be cash out", entry.CashIn, entry.CashOut)
	}

	if got := mustList(t, store, books.BankRecords); len(got) != 0 {
		t.Errorf("bank records = %d, petty settlement must not touch the bank ledger", len(got))
	}
}

func TestLinkInvoicePaymentFromBank(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil).WithClock(fixedClock())
	invID := seedInvoice(t, store)

	if err := svc.Link(ctx, LinkRequest{
		Kind:         KindInvoice,
		ObligationID: invID,
		Amount:       5000,
		Account:      AccountBank,
	}); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	inv := core.InvoiceFrom(mustGet(t, store, books.Invoices, invID))
	if inv.Status != core.InvoicePaid {
		t.Errorf("invoice status = %q, want %q", inv.Status, core.InvoicePaid)
	}

	bank := mustList(t, store, books.BankRecords)
	if len(bank) != 1 {
		t.Fatalf("bank records = %d, want 1", len(bank))
	}
	movement := core.BankRecordFrom(bank[0])
	if movement.Description != "Inv Payment: Acme" {
		t.Errorf("description = %q", movement.Description)
	}
	if movement.Amount != 5000 {
		t.Errorf("bank amount = %d, invoice receipts are inflows", movement.Amount)
	}
}

func TestLinkInvoicePaymentFromPettyCash(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil).WithClock(fixedClock())
	invID := seedInvoice(t, store)

	if err := svc.Link(ctx, LinkRequest{
		Kind:         KindInvoice,
		ObligationID: invID,
		Amount:       5000,
		Account:      AccountPetty,
	}); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	petty := mustList(t, store, books.PettyCash)
	if len(petty) != 1 {
		t.Fatalf("petty cash entries = %d, want 1", len(petty))
	}
	entry := core.PettyCashFrom(petty[0])
	if entry.CashIn != 5000 || entry.CashOut != 0 {
		t.Errorf("entry = cashIn %d cashOut %d, invoice receipt must be cash in", entry.CashIn, entry.CashOut)
	}
}

func TestLinkRejectsDoubleSettlement(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil).WithClock(fixedClock())
	billID := seedBill(t, store)

	req := LinkRequest{Kind: KindBill, ObligationID: billID, Amount: 8000, Account: AccountBank}
	if err := svc.Link(ctx, req); err != nil {
		t.Fatalf("first Link() error = %v", err)
	}

	if err := svc.Link(ctx, req); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second Link() error = %v, want ErrAlreadySettled", err)
	}

	// The failed retry must not have written a second movement.
	if bank := mustList(t, store, books.BankRecords); len(bank) != 1 {
		t.Errorf("bank records = %d, want exactly 1 after rejected retry", len(bank))
	}
}

func TestLinkValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPaymentService(store, nil)
	billID := seedBill(t, store)

	tests := []struct {
		name    string
		req     LinkRequest
		wantErr error
	}{
		{
			name:    "zero amount",
			req:     LinkRequest{Kind: KindBill, ObligationID: billID, Amount: 0, Account: AccountBank},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     LinkRequest{Kind: KindBill, ObligationID: billID, Amount: -100, Account: AccountBank},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "missing obligation id",
			req:     LinkRequest{Kind: KindBill, Amount: 100, Account: AccountBank},
			wantErr: books.ErrMissingID,
		},
		{
			name:    "unknown account",
			req:     LinkRequest{Kind: KindBill, ObligationID: billID, Amount: 100, Account: "wallet"},
			wantErr: ErrUnknownAccount,
		},
		{
			name:    "unknown kind",
			req:     LinkRequest{Kind: "loan", ObligationID: billID, Amount: 100, Account: AccountBank},
			wantErr: ErrUnknownKind,
		},
		{
			name:    "missing obligation record",
			req:     LinkRequest{Kind: KindBill, ObligationID: "ghost", Amount: 100, Account: AccountBank},
			wantErr: books.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Link(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Link() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// None of the rejected requests may have produced a ledger entry.
	if bank := mustList(t, store, books.BankRecords); len(bank) != 0 {
		t.Errorf("bank records = %d, rejected requests must write nothing", len(bank))
	}
	if petty := mustList(t, store, books.PettyCash); len(petty) != 0 {
		t.Errorf("petty cash entries = %d, rejected requests must write nothing", len(petty))
	}
}

func TestLinkConflictOnConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	billID := seedBill(t, store)

	// conflictStore mutates the bill between the service's read and its
	// Apply, simulating a concurrent editor.
	svc := NewPaymentService(&conflictStore{Store: store, collection: books.VendorBills, id: billID}, nil)

	err := svc.Link(ctx, LinkRequest{Kind: KindBill, ObligationID: billID, Amount: 8000, Account: AccountBank})
	if !errors.Is(err, books.ErrConflict) {
		t.Fatalf("Link() error = %v, want ErrConflict", err)
	}

	bill := core.VendorBillFrom(mustGet(t, store, books.VendorBills, billID))
	if bill.Status() == core.BillPaid {
		t.Error("bill marked paid despite conflicted transaction")
	}
	if bank := mustList(t, store, books.BankRecords); len(bank) != 0 {
		t.Errorf("bank records = %d, conflicted transaction must write nothing", len(bank))
	}
}

// conflictStore interposes on Get to bump the target record's version
// right after it is read.
type conflictStore struct {
	books.Store
	collection string
	id         string
}

func (c *conflictStore) Get(ctx context.Context, collection, id string) (books.Record, error) {
	rec, err := c.Store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if collection == c.collection && id == c.id {
		if err := c.Store.Update(ctx, collection, id, map[string]any{"description": "edited meanwhile"}); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func mustGet(t *testing.T, s books.Store, collection, id string) books.Record {
	t.Helper()
	rec, err := s.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("Get(%s/%s): %v", collection, id, err)
	}
	return rec
}

func mustList(t *testing.T, s books.Store, collection string) []books.Record {
	t.Helper()
	records, err := s.List(context.Background(), collection)
	if err != nil {
		t.Fatalf("List(%s): %v", collection, err)
	}
	return records
}
