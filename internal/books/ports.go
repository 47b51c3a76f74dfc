package books

import (
	"context"
	"errors"
)

// Collection names for the flat record sets kept by the store.
const (
	Clients     = "clients"
	Vendors     = "vendors"
	Invoices    = "invoices"
	VendorBills = "vendor_bills"
	PettyCash   = "petty_cash"
	BankRecords = "bank_records"
	Salaries    = "salaries"
	Expenses    = "expenses"
	Users       = "users"
)

var (
	// ErrNotFound is returned when no record with the given id exists.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a transaction is rejected because a
	// record changed between read and commit. Nothing is written.
	ErrConflict = errors.New("transaction conflict")
	// ErrMissingID is returned for operations that need an identifier.
	ErrMissingID = errors.New("missing record id")
)

// Change describes one committed mutation. Apply reports them in op order
// so callers can publish change events after the commit.
type Change struct {
	Collection string
	ID         string
	Kind       OpKind
}

// Store is the persistent collection store. Reads return snapshots:
// mutating a returned Record never affects stored state. List orders
// newest first by date, then createdAt.
type Store interface {
	List(ctx context.Context, collection string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)

	// Create stamps id and createdAt and returns the generated id.
	Create(ctx context.Context, collection string, r Record) (string, error)
	// Update merges fields into the record and bumps its version.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error

	// Apply commits every op in the transaction or none of them.
	// A version mismatch on any update rejects the whole transaction
	// with ErrConflict.
	Apply(ctx context.Context, tx *Transaction) ([]Change, error)

	Close() error
}
