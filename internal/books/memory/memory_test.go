package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/books"
)

func TestCreateStampsReservedFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return now })

	id, err := s.Create(ctx, books.Clients, books.Record{"name": "Acme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	rec, err := s.Get(ctx, books.Clients, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.ID() != id {
		t.Errorf("stored id = %q, want %q", rec.ID(), id)
	}
	if rec.Version() != 1 {
		t.Errorf("new record version = %d, want 1", rec.Version())
	}
	if !rec.CreatedAt().Equal(now) {
		t.Errorf("createdAt = %v, want %v", rec.CreatedAt(), now)
	}
}

func TestUpdateMergesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, _ := s.Create(ctx, books.Clients, books.Record{"name": "Acme", "status": "Ongoing"})

	if err := s.Update(ctx, books.Clients, id, map[string]any{"status": "Completed"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, _ := s.Get(ctx, books.Clients, id)
	if rec.Str("status") != "Completed" {
		t.Errorf("status = %q, want merged value", rec.Str("status"))
	}
	if rec.Str("name") != "Acme" {
		t.Errorf("name = %q, untouched fields must survive a merge", rec.Str("name"))
	}
	if rec.Version() != 2 {
		t.Errorf("version = %d, want 2 after one update", rec.Version())
	}
}

func TestUpdateCannotOverwriteReservedFields(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, _ := s.Create(ctx, books.Clients, books.Record{"name": "Acme"})
	if err := s.Update(ctx, books.Clients, id, map[string]any{"id": "forged", "version": int64(99)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, _ := s.Get(ctx, books.Clients, id)
	if rec.ID() != id {
		t.Errorf("id = %q, reserved fields must not be writable", rec.ID())
	}
	if rec.Version() != 2 {
		t.Errorf("version = %d, want normal bump, not forged value", rec.Version())
	}
}

func TestApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()

	billID, _ := s.Create(ctx, books.VendorBills, books.Record{"vendor": "Studio", "amount": int64(5000)})

	// Second op targets a record that does not exist, so the whole
	// transaction must be rejected.
	tx := books.NewTransaction().
		Update(books.VendorBills, billID, 0, map[string]any{"status": "Paid"}).
		Update(books.BankRecords, "missing", 0, map[string]any{"amount": int64(1)})

	if _, err := s.Apply(ctx, tx); !errors.Is(err, books.ErrNotFound) {
		t.Fatalf("Apply() error = %v, want ErrNotFound", err)
	}

	rec, _ := s.Get(ctx, books.VendorBills, billID)
	if rec.Str("status") == "Paid" {
		t.Error("first op was applied despite a failing second op")
	}
	if rec.Version() != 1 {
		t.Errorf("version = %d, rejected transaction must leave no trace", rec.Version())
	}
}

func TestApplyVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, _ := s.Create(ctx, books.Invoices, books.Record{"client": "Acme", "status": "Draft"})

	// Concurrent edit bumps the version to 2.
	if err := s.Update(ctx, books.Invoices, id, map[string]any{"taxRate": int64(10)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	tx := books.NewTransaction().
		Update(books.Invoices, id, 1, map[string]any{"status": "Paid"}).
		Create(books.BankRecords, books.Record{"description": "Inv Payment: Acme", "amount": int64(5000)})

	if _, err := s.Apply(ctx, tx); !errors.Is(err, books.ErrConflict) {
		t.Fatalf("Apply() error = %v, want ErrConflict on stale expected version", err)
	}

	// Neither the status flip nor the bank record may exist.
	rec, _ := s.Get(ctx, books.Invoices, id)
	if rec.Str("status") != "Draft" {
		t.Errorf("status = %q, conflict must reject the whole transaction", rec.Str("status"))
	}
	bank, _ := s.List(ctx, books.BankRecords)
	if len(bank) != 0 {
		t.Errorf("bank records = %d, want 0 after rejected transaction", len(bank))
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, _ = s.Create(ctx, books.Expenses, books.Record{"description": "old", "date": "2025-01-01"})
	_, _ = s.Create(ctx, books.Expenses, books.Record{"description": "new", "date": "2025-03-01"})
	_, _ = s.Create(ctx, books.Expenses, books.Record{"description": "mid", "date": "2025-02-01"})

	records, err := s.List(ctx, books.Expenses)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Str("description"))
	}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() order = %v, want %v", got, want)
		}
	}
}

func TestListReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, _ := s.Create(ctx, books.Clients, books.Record{"name": "Acme"})

	records, _ := s.List(ctx, books.Clients)
	records[0]["name"] = "Mutated"

	rec, _ := s.Get(ctx, books.Clients, id)
	if rec.Str("name") != "Acme" {
		t.Errorf("mutating a listed record changed stored state: name = %q", rec.Str("name"))
	}
}

func TestSubscribeReceivesCommittedChanges(t *testing.T) {
	ctx := context.Background()
	s := New()

	ch, cancel := s.Subscribe(4)
	defer cancel()

	id, _ := s.Create(ctx, books.Clients, books.Record{"name": "Acme"})
	_ = s.Delete(ctx, books.Clients, id)

	first := <-ch
	if first.Kind != books.OpCreate || first.ID != id {
		t.Errorf("first change = %+v, want create of %s", first, id)
	}
	second := <-ch
	if second.Kind != books.OpDelete || second.ID != id {
		t.Errorf("second change = %+v, want delete of %s", second, id)
	}
}

func TestGetMissingRecord(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), books.Clients, "nope"); !errors.Is(err, books.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(context.Background(), books.Clients, ""); !errors.Is(err, books.ErrMissingID) {
		t.Errorf("Get() with empty id error = %v, want ErrMissingID", err)
	}
}
