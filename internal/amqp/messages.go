package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/books"
)

// RecordChangeMessage is the lightweight change event: collection, id
// and op only. Consumers fetch the current record from the store, so a
// stale message can never overwrite newer data.
type RecordChangeMessage struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(c books.Change) *RecordChangeMessage {
	return &RecordChangeMessage{
		Collection: c.Collection,
		ID:         c.ID,
		Op:         string(c.Kind),
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
