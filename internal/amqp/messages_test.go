package amqp

import (
	"testing"
	"time"

	"tally/internal/books"
)

func TestRecordChangeMessageJSON(t *testing.T) {
	msg := NewRecordChangeMessage(books.Change{
		Collection: books.Invoices,
		ID:         "inv-1",
		Kind:       books.OpUpdate,
	})

	if msg.Timestamp.IsZero() {
		t.Error("NewRecordChangeMessage() must stamp a timestamp")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := RecordChangeMessageFromJSON(data)
	if err != nil {
		t.Fatalf("RecordChangeMessageFromJSON() error = %v", err)
	}
	if got.Collection != books.Invoices || got.ID != "inv-1" || got.Op != string(books.OpUpdate) {
		t.Errorf("round-tripped message = %+v", got)
	}
	if !got.Timestamp.Equal(msg.Timestamp.Truncate(time.Nanosecond)) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, msg.Timestamp)
	}
}

func TestRecordChangeMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := RecordChangeMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("RecordChangeMessageFromJSON() must fail on malformed payloads")
	}
}
