// Package events is the append-only event log. Each aggregate instance has its
// own ordered stream; every record also carries a global position used by
// subscribers to keep their cursor.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrConcurrencyConflict is returned by Append when the stream moved past the
// expected version.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

type Record struct {
	Position      int64           `json:"position"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Version       int64           `json:"version"`
	Type          string          `json:"type"`
	ActorID       string          `json:"actorId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Time          time.Time       `json:"time"`
}

// Store is implemented by SQLStore and MemStore.
type Store interface {
	// Append stores rec as version expectedVersion+1 of its stream.
	Append(ctx context.Context, rec Record, expectedVersion int64) (Record, error)
	// Load returns a stream in version order.
	Load(ctx context.Context, aggregateType, aggregateID string) ([]Record, error)
	// After returns up to limit records with a position greater than position.
	After(ctx context.Context, position int64, limit int) ([]Record, error)
	// Head returns the position of the last record, 0 for an empty log.
	Head(ctx context.Context) (int64, error)
}

// CheckContinuity verifies a loaded stream starts at version 1 without gaps.
func CheckContinuity(records []Record) error {
	for i, rec := range records {
		if want := int64(i + 1); rec.Version != want {
			return fmt.Errorf("event version gap in %s/%s: expected %d got %d", rec.AggregateType, rec.AggregateID, want, rec.Version)
		}
	}
	return nil
}

func conflict(rec Record, expected, actual int64) error {
	return fmt.Errorf("%w: %s/%s expected version %d, stream at %d", ErrConcurrencyConflict, rec.AggregateType, rec.AggregateID, expected, actual)
}
