package core

import (
	"errors"
	"strings"
	"time"
)

// Client engagement status.
const (
	ClientOngoing   = "Ongoing"
	ClientCompleted = "Completed"
)

// Invoice status. Partial invoice payment is not tracked: an invoice is
// either an open draft or fully settled.
const (
	InvoiceDraft = "Draft"
	InvoicePaid  = "Paid"
)

// Vendor bill status, derived from paidAmount vs amount.
const (
	BillDue  = "Due"
	BillPaid = "Paid"
)

// Bank record status.
const (
	BankCleared = "Cleared"
	BankPending = "Pending"
)

// Salary status.
const (
	SalaryUnpaid  = "Unpaid"
	SalaryPending = "Pending"
	SalaryPaid    = "Paid"
)

// User roles.
const (
	RoleAdmin  = "Admin"
	RoleEditor = "Editor"
	RoleViewer = "Viewer"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrNoLineItems   = errors.New("invoice has no line items")
)

type (
	// Client is a customer engagement. RetainerAmount > 0 marks a
	// retainer client for the recurring invoice generator.
	Client struct {
		ID              string
		Name            string
		ProjectTotal    int64
		AdvanceReceived int64
		RetainerAmount  int64
		Status          string
		CreatedAt       time.Time
	}

	Vendor struct {
		ID            string
		Name          string
		ServiceType   string
		AmountPayable int64
		AmountPaid    int64
	}

	LineItem struct {
		Description string
		Quantity    int64
		Rate        int64
	}

	// Invoice references its client by name, not id. A client rename
	// silently orphans historic invoices; that is an accepted property
	// of the data model, documented rather than fixed.
	Invoice struct {
		ID        string
		Client    string
		Date      time.Time
		Items     []LineItem
		TaxRate   int64 // percent
		Status    string
		CreatedAt time.Time
		AddedBy   string
	}

	VendorBill struct {
		ID          string
		Vendor      string
		BillNumber  string
		Description string
		Date        time.Time
		Amount      int64
		PaidAmount  int64
	}

	// PettyCashEntry records one cash movement. CashIn and CashOut are
	// intended to be mutually exclusive per entry but not enforced.
	PettyCashEntry struct {
		ID          string
		Date        time.Time
		Description string
		CashIn      int64
		CashOut     int64
		BankRef     string
	}

	// BankRecord amount is signed: positive inflow, negative outflow.
	BankRecord struct {
		ID          string
		Date        time.Time
		Bank        string
		Description string
		Amount      int64
		Status      string
	}

	SalaryEntry struct {
		ID           string
		Date         time.Time
		EmployeeName string
		TotalPayable int64
		Status       string
		PaymentRef   string
	}

	Expense struct {
		ID          string
		Date        time.Time
		Description string
		Category    string
		Amount      int64
	}

	// User carries only the one-way password hash, never the password.
	User struct {
		ID           string
		Username     string
		Email        string
		PasswordHash string
		Role         string
	}
)

// Balance is the outstanding client amount. Negative means overpaid.
func (c Client) Balance() int64 { return c.ProjectTotal - c.AdvanceReceived }

// IsRetainer reports whether the client owes a recurring monthly fee.
func (c Client) IsRetainer() bool { return c.RetainerAmount > 0 }

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Subtotal sums quantity times rate over the line items.
func (inv Invoice) Subtotal() int64 {
	var sum int64
	for _, it := range inv.Items {
		sum += it.Quantity * it.Rate
	}
	return sum
}

// Tax applies the percent rate to the subtotal in integer units.
func (inv Invoice) Tax() int64 { return inv.Subtotal() * inv.TaxRate / 100 }

// Total is subtotal plus tax.
func (inv Invoice) Total() int64 { return inv.Subtotal() + inv.Tax() }

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.Client) == "" {
		return ErrEmptyName
	}
	if len(inv.Items) == 0 {
		return ErrNoLineItems
	}
	for _, it := range inv.Items {
		if it.Quantity < 0 || it.Rate < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Outstanding is the unpaid remainder, negative when overpaid.
func (b VendorBill) Outstanding() int64 { return b.Amount - b.PaidAmount }

// Status derives Paid once the paid amount covers the bill.
func (b VendorBill) Status() string {
	if b.PaidAmount >= b.Amount {
		return BillPaid
	}
	return BillDue
}

func (b VendorBill) Validate() error {
	if strings.TrimSpace(b.Vendor) == "" {
		return ErrEmptyName
	}
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// PeriodLabel reduces a date to the calendar-month key used to label and
// deduplicate recurring invoices, e.g. "March 2025".
func PeriodLabel(t time.Time) string { return t.Format("January 2006") }

// FindClientByName resolves a denormalized client reference. The ok
// result makes an unmatched reference explicit instead of propagating a
// zero value silently.
func FindClientByName(clients []Client, name string) (Client, bool) {
	for _, c := range clients {
		if c.Name == name {
			return c, true
		}
	}
	return Client{}, false
}

// FindVendorByName resolves a denormalized vendor reference.
func FindVendorByName(vendors []Vendor, name string) (Vendor, bool) {
	for _, v := range vendors {
		if v.Name == name {
			return v, true
		}
	}
	return Vendor{}, false
}
