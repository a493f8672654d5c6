package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-colony/internal/world"
)

const (
	SubjectChanges = "world.changes"
	SubjectEvents  = "world.events"
)

// Record is one change or event on the wire.
type Record struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Batch is everything one unit of world work produced on one subject.
type Batch struct {
	Seq     uint64   `json:"seq"`
	Tick    int      `json:"tick"`
	Records []Record `json:"records"`
}

// encodeRecords marshals each value with kindOf naming it.
func encodeRecords[T any](values []T, kindOf func(T) string) ([]Record, error) {
	records := make([]Record, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshalling %s: %w", kindOf(v), err)
		}
		records = append(records, Record{Kind: kindOf(v), Data: data})
	}
	return records, nil
}

// ChangeRecords encodes a flushed change list.
func ChangeRecords(changes []world.Change) ([]Record, error) {
	return encodeRecords(changes, world.Change.ChangeKind)
}

// EventRecords encodes a flushed event list.
func EventRecords(events []world.Event) ([]Record, error) {
	return encodeRecords(events, world.Event.EventKind)
}

// DecodeBatch parses a message published by a Publisher.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("decoding batch: %w", err)
	}
	return b, nil
}

// Decode unmarshals the record's payload into out.
func (r Record) Decode(out any) error {
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", r.Kind, err)
	}
	return nil
}
