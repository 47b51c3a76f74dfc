package mirror

import (
	"context"
	"time"
)

// Row is one record change flattened for the accountant's spreadsheet.
type Row struct {
	When       time.Time
	Collection string
	RecordID   string
	Op         string
	Summary    string
	Amount     int64
}

// Ports for outbound adapters.
type (
	RowAppender interface {
		Append(ctx context.Context, row Row) (rowRef string, err error)
	}
)
