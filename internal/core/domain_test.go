package core

import (
	"errors"
	"testing"
	"time"
)

func TestInvoiceMath(t *testing.T) {
	tests := []struct {
		name         string
		invoice      Invoice
		wantSubtotal int64
		wantTax      int64
		wantTotal    int64
	}{
		{
			name: "single item no tax",
			invoice: Invoice{
				Client: "Acme",
				Items:  []LineItem{{Description: "Design", Quantity: 2, Rate: 500}},
			},
			wantSubtotal: 1000,
			wantTax:      0,
			wantTotal:    1000,
		},
		{
			name: "multiple items with tax",
			invoice: Invoice{
				Client:  "Acme",
				TaxRate: 18,
				Items: []LineItem{
					{Description: "Design", Quantity: 1, Rate: 50000},
					{Description: "Hosting", Quantity: 12, Rate: 1000},
				},
			},
			wantSubtotal: 62000,
			wantTax:      11160,
			wantTotal:    73160,
		},
		{
			name: "tax truncates toward zero",
			invoice: Invoice{
				Client:  "Acme",
				TaxRate: 18,
				Items:   []LineItem{{Quantity: 1, Rate: 99}},
			},
			wantSubtotal: 99,
			wantTax:      17, // 99*18/100 = 17.82
			wantTotal:    116,
		},
		{
			name:         "no items",
			invoice:      Invoice{Client: "Acme", TaxRate: 18},
			wantSubtotal: 0,
			wantTax:      0,
			wantTotal:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invoice.Subtotal(); got != tt.wantSubtotal {
				t.Errorf("Subtotal() = %d, want %d", got, tt.wantSubtotal)
			}
			if got := tt.invoice.Tax(); got != tt.wantTax {
				t.Errorf("Tax() = %d, want %d", got, tt.wantTax)
			}
			if got := tt.invoice.Total(); got != tt.wantTotal {
				t.Errorf("Total() = %d, want %d", got, tt.wantTotal)
			}
		})
	}
}

func TestInvoiceValidate(t *testing.T) {
	tests := []struct {
		name    string
		invoice Invoice
		wantErr error
	}{
		{
			name:    "valid",
			invoice: Invoice{Client: "Acme", Items: []LineItem{{Quantity: 1, Rate: 100}}},
		},
		{
			name:    "missing client",
			invoice: Invoice{Items: []LineItem{{Quantity: 1, Rate: 100}}},
			wantErr: ErrEmptyName,
		},
		{
			name:    "no line items",
			invoice: Invoice{Client: "Acme"},
			wantErr: ErrNoLineItems,
		},
		{
			name:    "negative rate",
			invoice: Invoice{Client: "Acme", Items: []LineItem{{Quantity: 1, Rate: -5}}},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.invoice.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVendorBillStatus(t *testing.T) {
	tests := []struct {
		name            string
		bill            VendorBill
		wantStatus      string
		wantOutstanding int64
	}{
		{name: "unpaid", bill: VendorBill{Amount: 5000}, wantStatus: BillDue, wantOutstanding: 5000},
		{name: "partially paid", bill: VendorBill{Amount: 5000, PaidAmount: 2000}, wantStatus: BillDue, wantOutstanding: 3000},
		{name: "fully paid", bill: VendorBill{Amount: 5000, PaidAmount: 5000}, wantStatus: BillPaid, wantOutstanding: 0},
		{name: "overpaid", bill: VendorBill{Amount: 5000, PaidAmount: 6000}, wantStatus: BillPaid, wantOutstanding: -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bill.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %q, want %q", got, tt.wantStatus)
			}
			if got := tt.bill.Outstanding(); got != tt.wantOutstanding {
				t.Errorf("Outstanding() = %d, want %d", got, tt.wantOutstanding)
			}
		})
	}
}

func TestClientBalance(t *testing.T) {
	c := Client{ProjectTotal: 100000, AdvanceReceived: 30000}
	if got := c.Balance(); got != 70000 {
		t.Errorf("Balance() = %d, want 70000", got)
	}

	overpaid := Client{ProjectTotal: 100000, AdvanceReceived: 120000}
	if got := overpaid.Balance(); got != -20000 {
		t.Errorf("Balance() = %d, overpayment must stay negative, not clamp", got)
	}
}

func TestIsRetainer(t *testing.T) {
	if (Client{RetainerAmount: 0}).IsRetainer() {
		t.Error("zero retainer amount must not mark a retainer client")
	}
	if !(Client{RetainerAmount: 15000}).IsRetainer() {
		t.Error("positive retainer amount must mark a retainer client")
	}
}

func TestPeriodLabel(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "March 2025"},
		{time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), "March 2025"},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "April 2025"},
		{time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), "December 2024"},
	}
	for _, tt := range tests {
		if got := PeriodLabel(tt.date); got != tt.want {
			t.Errorf("PeriodLabel(%v) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestFindClientByName(t *testing.T) {
	clients := []Client{{Name: "Acme"}, {Name: "Globex"}}

	if c, ok := FindClientByName(clients, "Globex"); !ok || c.Name != "Globex" {
		t.Errorf("FindClientByName() = (%+v, %v), want Globex match", c, ok)
	}
	if _, ok := FindClientByName(clients, "acme"); ok {
		t.Error("FindClientByName() matched case-insensitively, names are exact")
	}
	if _, ok := FindClientByName(clients, "Nobody"); ok {
		t.Error("FindClientByName() matched a missing name")
	}
}

func TestInvoiceRecordRoundTrip(t *testing.T) {
	inv := Invoice{
		Client:  "Acme",
		Date:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TaxRate: 18,
		Status:  InvoiceDraft,
		AddedBy: "admin",
		Items: []LineItem{
			{Description: "Design", Quantity: 2, Rate: 500},
		},
	}

	got := InvoiceFrom(inv.Record())
	if got.Client != inv.Client || got.TaxRate != inv.TaxRate || got.Status != inv.Status {
		t.Errorf("decoded invoice = %+v, want fields of %+v", got, inv)
	}
	if !got.Date.Equal(inv.Date) {
		t.Errorf("decoded date = %v, want %v", got.Date, inv.Date)
	}
	if len(got.Items) != 1 || got.Items[0] != inv.Items[0] {
		t.Errorf("decoded items = %+v, want %+v", got.Items, inv.Items)
	}
	if got.Total() != 1180 {
		t.Errorf("decoded Total() = %d, want 1180", got.Total())
	}
}

func TestInvoiceFromSkipsMalformedItems(t *testing.T) {
	rec := Invoice{Client: "Acme", Items: []LineItem{{Quantity: 1, Rate: 100}}}.Record()
	items := rec[KeyItems].([]any)
	rec[KeyItems] = append(items, "not an item", map[string]any{KeyQuantity: "oops", KeyRate: 200})

	inv := InvoiceFrom(rec)
	if len(inv.Items) != 2 {
		t.Fatalf("decoded %d items, want 2 (string entry skipped)", len(inv.Items))
	}
	if inv.Items[1].Quantity != 0 || inv.Items[1].Rate != 200 {
		t.Errorf("malformed quantity = %+v, want degraded to 0 with rate kept", inv.Items[1])
	}
}
