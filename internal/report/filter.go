// Package report holds the pure reporting engine: time/text filtering
// over record snapshots and the fold into dashboard totals. Nothing here
// mutates its inputs or touches the store.
package report

import (
	"strconv"
	"strings"

	"tally/internal/books"
)

// All disables a filter dimension.
const All = "All"

// Filter narrows records by calendar month name, 4-digit year, and a
// case-insensitive substring over the string form of every field. The
// predicates AND together; input order is preserved. A record's date
// falls back to createdAt when the date field is absent; records with
// neither cannot match an active time predicate.
func Filter(records []books.Record, month, year, query string) []books.Record {
	monthActive := month != "" && !strings.EqualFold(month, All)
	yearActive := year != "" && !strings.EqualFold(year, All)
	needle := strings.ToLower(strings.TrimSpace(query))

	out := make([]books.Record, 0, len(records))
	for _, r := range records {
		if monthActive || yearActive {
			d := r.Date()
			if d.IsZero() {
				continue
			}
			if monthActive && !strings.EqualFold(d.Month().String(), month) {
				continue
			}
			if yearActive && strconv.Itoa(d.Year()) != year {
				continue
			}
		}
		if needle != "" && !r.MatchesText(needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}
