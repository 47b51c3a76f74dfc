package report

import (
	"tally/internal/books"
	"tally/internal/core"
)

// Expense breakdown bucket names.
const (
	BucketPettyCash = "Petty Cash"
	BucketExpenses  = "Expenses"
	BucketSalaries  = "Salaries"
)

// Input carries the collection snapshots the fold runs over. PettyCash,
// Expenses, Salaries and Bills are expected pre-filtered by the active
// time/text filter; Clients is always the full set. Flows are period
// facts, balances are point-in-time facts, so client advances and
// pending balances deliberately ignore the filter.
type Input struct {
	PettyCash []books.Record
	Expenses  []books.Record
	Salaries  []books.Record
	Bills     []books.Record
	Clients   []books.Record
}

// Bucket is one slice of the expense breakdown.
type Bucket struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Totals are the headline dashboard figures.
type Totals struct {
	Revenue       int64 `json:"revenue"`
	Expense       int64 `json:"expense"`
	Profit        int64 `json:"profit"`
	VendorPending int64 `json:"vendorPending"`
	ClientPending int64 `json:"clientPending"`

	// ExpenseBreakdown splits Expense into its three sources; zero
	// buckets are omitted. The bucket sum always equals Expense.
	ExpenseBreakdown []Bucket `json:"expenseBreakdown,omitempty"`
}

// Aggregate folds the snapshots into totals. Absent or malformed numeric
// fields count as 0; the fold never fails.
func Aggregate(in Input) Totals {
	var cashIn, cashOut int64
	for _, r := range in.PettyCash {
		cashIn += r.Amount(core.KeyCashIn)
		cashOut += r.Amount(core.KeyCashOut)
	}

	var generalExpenses int64
	for _, r := range in.Expenses {
		generalExpenses += r.Amount(core.KeyAmount)
	}

	var salaries int64
	for _, r := range in.Salaries {
		salaries += r.Amount(core.KeyTotalPayable)
	}

	var advances, clientPending int64
	for _, r := range in.Clients {
		advance := r.Amount(core.KeyAdvanceReceived)
		advances += advance
		clientPending += r.Amount(core.KeyProjectTotal) - advance
	}

	// May go negative when a bill is overpaid; not clamped.
	var vendorPending int64
	for _, r := range in.Bills {
		vendorPending += r.Amount(core.KeyAmount) - r.Amount(core.KeyPaidAmount)
	}

	t := Totals{
		Revenue:       advances + cashIn,
		Expense:       generalExpenses + salaries + cashOut,
		VendorPending: vendorPending,
		ClientPending: clientPending,
	}
	t.Profit = t.Revenue - t.Expense

	for _, b := range []Bucket{
		{Name: BucketPettyCash, Amount: cashOut},
		{Name: BucketExpenses, Amount: generalExpenses},
		{Name: BucketSalaries, Amount: salaries},
	} {
		if b.Amount != 0 {
			t.ExpenseBreakdown = append(t.ExpenseBreakdown, b)
		}
	}
	return t
}
