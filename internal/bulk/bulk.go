// Package bulk moves record sets in and out as CSV or JSON. Rows map
// one to one onto collection records; import is a plain sequence of
// creates with createdAt stamped at import time.
package bulk

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"tally/internal/books"
	"tally/internal/core"
	"tally/internal/services"
)

// ExportCSV writes the records as one table. The header is the union of
// field names; invoice line items are flattened to a single delimited
// column.
func ExportCSV(w io.Writer, records []books.Record) error {
	cw := csv.NewWriter(w)
	header := columnSet(records)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = cellValue(r[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the records as a JSON array, line items intact.
func ExportJSON(w io.Writer, records []books.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []books.Record{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// ImportCSV reads a header row then creates one record per data row.
// Cell values stay strings; numeric fields coerce lazily on read, so a
// malformed cell degrades to 0 instead of failing the import.
func ImportCSV(ctx context.Context, svc *services.BooksService, collection string, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	created := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return created, fmt.Errorf("read csv row: %w", err)
		}
		rec := books.Record{}
		for i, col := range header {
			col = strings.TrimSpace(col)
			if col == "" || i >= len(row) || reservedColumn(col) {
				continue
			}
			rec[col] = row[i]
		}
		if len(rec) == 0 {
			continue
		}
		if _, err := svc.Create(ctx, collection, rec); err != nil {
			return created, fmt.Errorf("import row %d: %w", created+1, err)
		}
		created++
	}
	return created, nil
}

// ImportJSON reads an array of objects and creates one record each.
func ImportJSON(ctx context.Context, svc *services.BooksService, collection string, r io.Reader) (int, error) {
	var rows []books.Record
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return 0, fmt.Errorf("decode records: %w", err)
	}
	created := 0
	for _, rec := range rows {
		for col := range rec {
			if reservedColumn(col) {
				delete(rec, col)
			}
		}
		if len(rec) == 0 {
			continue
		}
		if _, err := svc.Create(ctx, collection, rec); err != nil {
			return created, fmt.Errorf("import record %d: %w", created+1, err)
		}
		created++
	}
	return created, nil
}

// reservedColumn filters fields the store stamps itself.
func reservedColumn(col string) bool {
	return col == books.FieldID || col == books.FieldCreatedAt || col == books.FieldVersion
}

// columnSet returns the union of field names, stable across exports:
// id, date and createdAt lead, the rest sorted.
func columnSet(records []books.Record) []string {
	seen := map[string]bool{}
	var rest []string
	for _, r := range records {
		for k := range r {
			if k == books.FieldVersion || seen[k] {
				continue
			}
			seen[k] = true
			rest = append(rest, k)
		}
	}
	lead := []string{books.FieldID, books.FieldDate, books.FieldCreatedAt}
	var out []string
	for _, k := range lead {
		if seen[k] {
			out = append(out, k)
		}
	}
	rest = removeAll(rest, lead)
	sort.Strings(rest)
	return append(out, rest...)
}

func removeAll(cols, drop []string) []string {
	out := cols[:0]
	for _, c := range cols {
		keep := true
		for _, d := range drop {
			if c == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

// cellValue stringifies one field for CSV, flattening line-item lists.
func cellValue(v any) string {
	items, ok := v.([]any)
	if !ok {
		return books.StringOf(v)
	}
	parts := make([]string, 0, len(items))
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			parts = append(parts, books.StringOf(raw))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s x%d @%d",
			books.StringOf(m[core.KeyDescription]),
			books.AmountOf(m[core.KeyQuantity]),
			books.AmountOf(m[core.KeyRate])))
	}
	return strings.Join(parts, "; ")
}
