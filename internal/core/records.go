package core

import (
	"time"

	"tally/internal/books"
)

// Record field keys, matching the shapes bulk import and export trade in.
const (
	KeyName            = "name"
	KeyProjectTotal    = "projectTotal"
	KeyAdvanceReceived = "advanceReceived"
	KeyRetainerAmount  = "retainerAmount"
	KeyStatus          = "status"
	KeyServiceType     = "serviceType"
	KeyAmountPayable   = "amountPayable"
	KeyAmountPaid      = "amountPaid"
	KeyClient          = "client"
	KeyVendor          = "vendor"
	KeyItems           = "items"
	KeyDescription     = "description"
	KeyQuantity        = "quantity"
	KeyRate            = "rate"
	KeyTaxRate         = "taxRate"
	KeyAddedBy         = "addedBy"
	KeyBillNumber      = "billNumber"
	KeyAmount          = "amount"
	KeyPaidAmount      = "paidAmount"
	KeyCashIn          = "cashIn"
	KeyCashOut         = "cashOut"
	KeyBankRef         = "bankRef"
	KeyBank            = "bank"
	KeyEmployeeName    = "employeeName"
	KeyTotalPayable    = "totalPayable"
	KeyPaymentRef      = "paymentRef"
	KeyCategory        = "category"
	KeyUsername        = "username"
	KeyEmail           = "email"
	KeyPasswordHash    = "passwordHash"
	KeyRole            = "role"
)

// DateLayout is the display form dates are stored in.
const DateLayout = "2006-01-02"

func dateValue(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ClientFrom decodes a client record. Malformed numeric fields read as 0.
func ClientFrom(r books.Record) Client {
	return Client{
		ID:              r.ID(),
		Name:            r.Str(KeyName),
		ProjectTotal:    r.Amount(KeyProjectTotal),
		AdvanceReceived: r.Amount(KeyAdvanceReceived),
		RetainerAmount:  r.Amount(KeyRetainerAmount),
		Status:          r.Str(KeyStatus),
		CreatedAt:       r.CreatedAt(),
	}
}

// Record encodes the client for storage.
func (c Client) Record() books.Record {
	return books.Record{
		KeyName:            c.Name,
		KeyProjectTotal:    c.ProjectTotal,
		KeyAdvanceReceived: c.AdvanceReceived,
		KeyRetainerAmount:  c.RetainerAmount,
		KeyStatus:          c.Status,
	}
}

func VendorFrom(r books.Record) Vendor {
	return Vendor{
		ID:            r.ID(),
		Name:          r.Str(KeyName),
		ServiceType:   r.Str(KeyServiceType),
		AmountPayable: r.Amount(KeyAmountPayable),
		AmountPaid:    r.Amount(KeyAmountPaid),
	}
}

func (v Vendor) Record() books.Record {
	return books.Record{
		KeyName:          v.Name,
		KeyServiceType:   v.ServiceType,
		KeyAmountPayable: v.AmountPayable,
		KeyAmountPaid:    v.AmountPaid,
	}
}

// InvoiceFrom decodes an invoice record, line items included. Items that
// are not maps are skipped; numeric item fields degrade to 0.
func InvoiceFrom(r books.Record) Invoice {
	inv := Invoice{
		ID:        r.ID(),
		Client:    r.Str(KeyClient),
		Date:      books.TimeOf(r[books.FieldDate]),
		TaxRate:   r.Amount(KeyTaxRate),
		Status:    r.Str(KeyStatus),
		CreatedAt: r.CreatedAt(),
		AddedBy:   r.Str(KeyAddedBy),
	}
	items, _ := r[KeyItems].([]any)
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		inv.Items = append(inv.Items, LineItem{
			Description: books.StringOf(m[KeyDescription]),
			Quantity:    books.AmountOf(m[KeyQuantity]),
			Rate:        books.AmountOf(m[KeyRate]),
		})
	}
	return inv
}

func (inv Invoice) Record() books.Record {
	items := make([]any, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = map[string]any{
			KeyDescription: it.Description,
			KeyQuantity:    it.Quantity,
			KeyRate:        it.Rate,
		}
	}
	return books.Record{
		KeyClient:       inv.Client,
		books.FieldDate: dateValue(inv.Date),
		KeyItems:        items,
		KeyTaxRate:      inv.TaxRate,
		KeyStatus:       inv.Status,
		KeyAddedBy:      inv.AddedBy,
	}
}

func VendorBillFrom(r books.Record) VendorBill {
	return VendorBill{
		ID:          r.ID(),
		Vendor:      r.Str(KeyVendor),
		BillNumber:  r.Str(KeyBillNumber),
		Description: r.Str(KeyDescription),
		Date:        books.TimeOf(r[books.FieldDate]),
		Amount:      r.Amount(KeyAmount),
		PaidAmount:  r.Amount(KeyPaidAmount),
	}
}

func (b VendorBill) Record() books.Record {
	return books.Record{
		KeyVendor:       b.Vendor,
		KeyBillNumber:   b.BillNumber,
		KeyDescription:  b.Description,
		books.FieldDate: dateValue(b.Date),
		KeyAmount:       b.Amount,
		KeyPaidAmount:   b.PaidAmount,
		KeyStatus:       b.Status(),
	}
}

func PettyCashFrom(r books.Record) PettyCashEntry {
	return PettyCashEntry{
		ID:          r.ID(),
		Date:        books.TimeOf(r[books.FieldDate]),
		Description: r.Str(KeyDescription),
		CashIn:      r.Amount(KeyCashIn),
		CashOut:     r.Amount(KeyCashOut),
		BankRef:     r.Str(KeyBankRef),
	}
}

func (p PettyCashEntry) Record() books.Record {
	return books.Record{
		books.FieldDate: dateValue(p.Date),
		KeyDescription:  p.Description,
		KeyCashIn:       p.CashIn,
		KeyCashOut:      p.CashOut,
		KeyBankRef:      p.BankRef,
	}
}

func BankRecordFrom(r books.Record) BankRecord {
	return BankRecord{
		ID:          r.ID(),
		Date:        books.TimeOf(r[books.FieldDate]),
		Bank:        r.Str(KeyBank),
		Description: r.Str(KeyDescription),
		Amount:      r.Amount(KeyAmount),
		Status:      r.Str(KeyStatus),
	}
}

func (b BankRecord) Record() books.Record {
	return books.Record{
		books.FieldDate: dateValue(b.Date),
		KeyBank:         b.Bank,
		KeyDescription:  b.Description,
		KeyAmount:       b.Amount,
		KeyStatus:       b.Status,
	}
}

func SalaryFrom(r books.Record) SalaryEntry {
	return SalaryEntry{
		ID:           r.ID(),
		Date:         books.TimeOf(r[books.FieldDate]),
		EmployeeName: r.Str(KeyEmployeeName),
		TotalPayable: r.Amount(KeyTotalPayable),
		Status:       r.Str(KeyStatus),
		PaymentRef:   r.Str(KeyPaymentRef),
	}
}

func (s SalaryEntry) Record() books.Record {
	return books.Record{
		books.FieldDate: dateValue(s.Date),
		KeyEmployeeName: s.EmployeeName,
		KeyTotalPayable: s.TotalPayable,
		KeyStatus:       s.Status,
		KeyPaymentRef:   s.PaymentRef,
	}
}

func ExpenseFrom(r books.Record) Expense {
	return Expense{
		ID:          r.ID(),
		Date:        books.TimeOf(r[books.FieldDate]),
		Description: r.Str(KeyDescription),
		Category:    r.Str(KeyCategory),
		Amount:      r.Amount(KeyAmount),
	}
}

func (e Expense) Record() books.Record {
	return books.Record{
		books.FieldDate: dateValue(e.Date),
		KeyDescription:  e.Description,
		KeyCategory:     e.Category,
		KeyAmount:       e.Amount,
	}
}

func UserFrom(r books.Record) User {
	return User{
		ID:           r.ID(),
		Username:     r.Str(KeyUsername),
		Email:        r.Str(KeyEmail),
		PasswordHash: r.Str(KeyPasswordHash),
		Role:         r.Str(KeyRole),
	}
}

func (u User) Record() books.Record {
	return books.Record{
		KeyUsername:     u.Username,
		KeyEmail:        u.Email,
		KeyPasswordHash: u.PasswordHash,
		KeyRole:         u.Role,
	}
}

// ClientsFrom decodes a whole collection snapshot.
func ClientsFrom(records []books.Record) []Client {
	out := make([]Client, len(records))
	for i, r := range records {
		out[i] = ClientFrom(r)
	}
	return out
}

// InvoicesFrom decodes a whole collection snapshot.
func InvoicesFrom(records []books.Record) []Invoice {
	out := make([]Invoice, len(records))
	for i, r := range records {
		out[i] = InvoiceFrom(r)
	}
	return out
}
