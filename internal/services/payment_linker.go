package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/books"
	"tally/internal/core"
)

// ObligationKind selects which collection the obligation lives in.
type ObligationKind string

const (
	KindInvoice ObligationKind = "invoice"
	KindBill    ObligationKind = "bill"
)

// SettlementAccount selects the sub-ledger that records the cash side.
type SettlementAccount string

const (
	AccountBank  SettlementAccount = "bank"
	AccountPetty SettlementAccount = "petty"
)

var (
	// ErrAlreadySettled means the obligation was fully paid before this
	// call. Nothing is written; the call is a no-op for the caller.
	ErrAlreadySettled = errors.New("obligation already settled")
	ErrUnknownKind    = errors.New("unknown obligation kind")
	ErrUnknownAccount = errors.New("unknown settlement account")
)

// ChangePublisher fans committed record changes out to subscribers.
// Implementations must tolerate being called after the commit; delivery
// failures never undo the write.
type ChangePublisher interface {
	PublishRecordChange(ctx context.Context, c books.Change) error
}

// LinkRequest binds one settlement to one obligation.
type LinkRequest struct {
	Kind         ObligationKind
	ObligationID string
	Amount       int64
	Account      SettlementAccount
}

// PaymentService is the transactional core: it marks an obligation
// settled and appends exactly one cash movement to the chosen
// sub-ledger, committed together or not at all.
type PaymentService struct {
	store  books.Store
	events ChangePublisher
	now    func() time.Time
}

func NewPaymentService(store books.Store, events ChangePublisher) *PaymentService {
	return &PaymentService{store: store, events: events, now: time.Now}
}

// WithClock pins "now" for ledger record dates, for tests.
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// Link validates the request, then commits the obligation mutation and
// the ledger append as one transaction. On any failure no partial state
// is left: a books.ErrConflict from a concurrent edit rejects both
// writes and the whole operation is safe to retry.
func (s *PaymentService) Link(ctx context.Context, req LinkRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("settlement amount %d: %w", req.Amount, core.ErrInvalidAmount)
	}
	if req.ObligationID == "" {
		return books.ErrMissingID
	}
	if req.Account != AccountBank && req.Account != AccountPetty {
		return fmt.Errorf("%q: %w", req.Account, ErrUnknownAccount)
	}

	var (
		collection string
		fields     map[string]any
		ledger     string
		movement   books.Record
	)

	switch req.Kind {
	case KindBill:
		collection = books.VendorBills
		rec, err := s.store.Get(ctx, collection, req.ObligationID)
		if err != nil {
			return fmt.Errorf("load bill: %w", err)
		}
		bill := core.VendorBillFrom(rec)
		if bill.Status() == core.BillPaid {
			return fmt.Errorf("bill %s: %w", bill.BillNumber, ErrAlreadySettled)
		}
		fields = map[string]any{
			core.KeyPaidAmount: req.Amount,
			core.KeyStatus:     core.BillPaid,
		}
		desc := fmt.Sprintf("Bill Payment: %s (#%s)", bill.Vendor, bill.BillNumber)
		movement = s.movementRecord(req.Account, desc, -req.Amount, -req.Amount)
		ledger = s.ledgerCollection(req.Account)
		return s.commit(ctx, collection, rec, fields, ledger, movement)

	case KindInvoice:
		collection = books.Invoices
		rec, err := s.store.Get(ctx, collection, req.ObligationID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		inv := core.InvoiceFrom(rec)
		if inv.Status == core.InvoicePaid {
			return fmt.Errorf("invoice for %s: %w", inv.Client, ErrAlreadySettled)
		}
		fields = map[string]any{core.KeyStatus: core.InvoicePaid}
		desc := fmt.Sprintf("Inv Payment: %s", inv.Client)
		movement = s.movementRecord(req.Account, desc, req.Amount, req.Amount)
		ledger = s.ledgerCollection(req.Account)
		return s.commit(ctx, collection, rec, fields, ledger, movement)

	default:
		return fmt.Errorf("%q: %w", req.Kind, ErrUnknownKind)
	}
}

// movementRecord builds the cash-movement side. bankAmount is signed;
// pettyAmount is the absolute flow, negative meaning cash out.
func (s *PaymentService) movementRecord(account SettlementAccount, desc string, bankAmount, pettyAmount int64) books.Record {
	today := s.now()
	if account == AccountBank {
		return core.BankRecord{
			Date:        today,
			Description: desc,
			Amount:      bankAmount,
			Status:      core.BankCleared,
		}.Record()
	}
	entry := core.PettyCashEntry{Date: today, Description: desc}
	if pettyAmount >= 0 {
		entry.CashIn = pettyAmount
	} else {
		entry.CashOut = -pettyAmount
	}
	return entry.Record()
}

func (s *PaymentService) ledgerCollection(account SettlementAccount) string {
	if account == AccountBank {
		return books.BankRecords
	}
	return books.PettyCash
}

func (s *PaymentService) commit(ctx context.Context, collection string, obligation books.Record, fields map[string]any, ledger string, movement books.Record) error {
	tx := books.NewTransaction().
		Update(collection, obligation.ID(), obligation.Version(), fields).
		Create(ledger, movement)

	changes, err := s.store.Apply(ctx, tx)
	if err != nil {
		return fmt.Errorf("link payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment linked",
		"obligation", collection,
		"obligation_id", obligation.ID(),
		"ledger", ledger,
		"description", movement.Str(core.KeyDescription))

	s.publish(ctx, changes)
	return nil
}

func (s *PaymentService) publish(ctx context.Context, changes []books.Change) {
	if s.events == nil {
		return
	}
	for _, c := range changes {
		if err := s.events.PublishRecordChange(ctx, c); err != nil {
			// The commit already happened; a lost event only delays
			// the mirror, it cannot corrupt the books.
			slog.ErrorContext(ctx, "Failed to publish record change",
				"collection", c.Collection, "id", c.ID, "error", err)
		}
	}
}
