package events

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	tblEvents = "events"
	idxID     = "id"
	idxStream = "stream"
)

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblEvents: {
			Name: tblEvents,
			Indexes: map[string]*memdb.IndexSchema{
				idxID: {
					Name:    idxID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				idxStream: {
					Name:    idxStream,
					Indexer: &memdb.StringFieldIndex{Field: "Stream"},
				},
			},
		},
	},
}

// memRecord wraps a Record with index keys. Key is the zero padded position so
// that index order equals log order.
type memRecord struct {
	Key    string
	Stream string
	Record Record
}

// MemStore is an in-memory log for tests and throwaway servers.
type MemStore struct {
	db  *memdb.MemDB
	Now func() time.Time
}

func NewMemStore() (*MemStore, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &MemStore{db: db}, nil
}

func positionKey(p int64) string {
	return fmt.Sprintf("%020d", p)
}

func streamKey(aggregateType, aggregateID string) string {
	return aggregateType + "/" + aggregateID
}

func (m *MemStore) Append(_ context.Context, rec Record, expectedVersion int64) (Record, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	stream := streamKey(rec.AggregateType, rec.AggregateID)
	it, err := txn.Get(tblEvents, idxStream, stream)
	if err != nil {
		return Record{}, fmt.Errorf("read stream %s: %w", stream, err)
	}
	var current int64
	for obj := it.Next(); obj != nil; obj = it.Next() {
		current = obj.(*memRecord).Record.Version
	}
	if current != expectedVersion {
		return Record{}, conflict(rec, expectedVersion, current)
	}

	last, err := txn.Last(tblEvents, idxID)
	if err != nil {
		return Record{}, fmt.Errorf("read head: %w", err)
	}
	rec.Position = 1
	if last != nil {
		rec.Position = last.(*memRecord).Record.Position + 1
	}
	rec.Version = expectedVersion + 1
	if rec.Time.IsZero() {
		if m.Now != nil {
			rec.Time = m.Now()
		} else {
			rec.Time = time.Now()
		}
	}
	rec.Time = rec.Time.UTC()
	rec.Payload = append([]byte(nil), rec.Payload...)

	if err := txn.Insert(tblEvents, &memRecord{Key: positionKey(rec.Position), Stream: stream, Record: rec}); err != nil {
		return Record{}, fmt.Errorf("insert event: %w", err)
	}
	txn.Commit()
	return rec, nil
}

func (m *MemStore) Load(_ context.Context, aggregateType, aggregateID string) ([]Record, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblEvents, idxStream, streamKey(aggregateType, aggregateID))
	if err != nil {
		return nil, err
	}
	var out []Record
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, obj.(*memRecord).Record)
	}
	if err := CheckContinuity(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemStore) After(_ context.Context, position int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.LowerBound(tblEvents, idxID, positionKey(position+1))
	if err != nil {
		return nil, err
	}
	var out []Record
	for obj := it.Next(); obj != nil && len(out) < limit; obj = it.Next() {
		out = append(out, obj.(*memRecord).Record)
	}
	return out, nil
}

func (m *MemStore) Head(_ context.Context) (int64, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	last, err := txn.Last(tblEvents, idxID)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return last.(*memRecord).Record.Position, nil
}
