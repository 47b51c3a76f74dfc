package http

import (
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/books"
	"tally/internal/report"
)

// dashboardResponse bundles the headline totals with the filtered
// record sets the dashboard tables render from.
type dashboardResponse struct {
	Month  string        `json:"month"`
	Year   string        `json:"year"`
	Query  string        `json:"query,omitempty"`
	Totals report.Totals `json:"totals"`

	Invoices  []books.Record `json:"invoices"`
	Bills     []books.Record `json:"bills"`
	PettyCash []books.Record `json:"pettyCash"`
	Expenses  []books.Record `json:"expenses"`
	Salaries  []books.Record `json:"salaries"`
	Bank      []books.Record `json:"bank"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := strings.TrimSpace(q.Get("month"))
	year := strings.TrimSpace(q.Get("year"))
	search := strings.TrimSpace(q.Get("q"))
	if month == "" {
		month = report.All
	}
	if year == "" {
		year = report.All
	}

	key := month + "|" + year + "|" + search
	if cached, found := s.dashCache.Get(key); found {
		slog.DebugContext(r.Context(), "Dashboard cache hit", "month", month, "year", year)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	resp, err := s.buildDashboard(r, month, year, search)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	s.dashCache.Set(key, resp)
	slog.DebugContext(r.Context(), "Dashboard cached", "month", month, "year", year, "query", search)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildDashboard(r *http.Request, month, year, search string) (dashboardResponse, error) {
	store := s.records.Store()
	ctx := r.Context()

	load := func(collection string) ([]books.Record, []books.Record, error) {
		all, err := store.List(ctx, collection)
		if err != nil {
			return nil, nil, err
		}
		return all, report.Filter(all, month, year, search), nil
	}

	_, invoices, err := load(books.Invoices)
	if err != nil {
		return dashboardResponse{}, err
	}
	_, bills, err := load(books.VendorBills)
	if err != nil {
		return dashboardResponse{}, err
	}
	_, petty, err := load(books.PettyCash)
	if err != nil {
		return dashboardResponse{}, err
	}
	_, expenses, err := load(books.Expenses)
	if err != nil {
		return dashboardResponse{}, err
	}
	_, salaries, err := load(books.Salaries)
	if err != nil {
		return dashboardResponse{}, err
	}
	_, bank, err := load(books.BankRecords)
	if err != nil {
		return dashboardResponse{}, err
	}

	// Client advances stay unfiltered: the revenue figure counts every
	// advance regardless of the active period.
	clients, err := store.List(ctx, books.Clients)
	if err != nil {
		return dashboardResponse{}, err
	}

	totals := report.Aggregate(report.Input{
		PettyCash: petty,
		Expenses:  expenses,
		Salaries:  salaries,
		Bills:     bills,
		Clients:   clients,
	})

	resp := dashboardResponse{
		Month:     month,
		Year:      year,
		Query:     search,
		Totals:    totals,
		Invoices:  invoices,
		Bills:     bills,
		PettyCash: petty,
		Expenses:  expenses,
		Salaries:  salaries,
		Bank:      bank,
	}
	for _, set := range []*[]books.Record{&resp.Invoices, &resp.Bills, &resp.PettyCash, &resp.Expenses, &resp.Salaries, &resp.Bank} {
		if *set == nil {
			*set = []books.Record{}
		}
	}
	return resp, nil
}
