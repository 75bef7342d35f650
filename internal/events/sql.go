package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"taskline/internal/db"
)

// SQLStore keeps the log in the events table of a sqlite or postgres database.
type SQLStore struct {
	DB      *sql.DB
	Dialect db.Dialect
	Now     func() time.Time
}

func (s SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s SQLStore) Append(ctx context.Context, rec Record, expectedVersion int64) (Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRowContext(ctx, s.Dialect.Rebind(`SELECT COALESCE(MAX(version),0) FROM events WHERE aggregate_type=? AND aggregate_id=?`),
		rec.AggregateType, rec.AggregateID).Scan(&current); err != nil {
		return Record{}, fmt.Errorf("read stream version: %w", err)
	}
	if current != expectedVersion {
		return Record{}, conflict(rec, expectedVersion, current)
	}
	rec.Version = expectedVersion + 1
	if rec.Time.IsZero() {
		rec.Time = s.now()
	}
	rec.Time = rec.Time.UTC()
	err = tx.QueryRowContext(ctx, s.Dialect.Rebind(`INSERT INTO events(aggregate_type,aggregate_id,version,type,actor_id,payload_json,ts) VALUES (?,?,?,?,?,?,?) RETURNING position`),
		rec.AggregateType, rec.AggregateID, rec.Version, rec.Type, nullable(rec.ActorID), string(rec.Payload), rec.Time.Format(time.RFC3339Nano)).Scan(&rec.Position)
	if err != nil {
		if isConstraintError(err) {
			return Record{}, conflict(rec, expectedVersion, expectedVersion+1)
		}
		return Record{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isConstraintError(err) {
			return Record{}, conflict(rec, expectedVersion, expectedVersion+1)
		}
		return Record{}, err
	}
	return rec, nil
}

func (s SQLStore) Load(ctx context.Context, aggregateType, aggregateID string) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(`SELECT position,aggregate_type,aggregate_id,version,type,actor_id,payload_json,ts FROM events WHERE aggregate_type=? AND aggregate_id=? ORDER BY version`),
		aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := CheckContinuity(records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s SQLStore) After(ctx context.Context, position int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(`SELECT position,aggregate_type,aggregate_id,version,type,actor_id,payload_json,ts FROM events WHERE position>? ORDER BY position LIMIT ?`),
		position, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s SQLStore) Head(ctx context.Context) (int64, error) {
	var head int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM events`).Scan(&head); err != nil {
		return 0, err
	}
	return head, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var actor sql.NullString
		var payload, ts string
		if err := rows.Scan(&rec.Position, &rec.AggregateType, &rec.AggregateID, &rec.Version, &rec.Type, &actor, &payload, &ts); err != nil {
			return nil, err
		}
		rec.ActorID = actor.String
		rec.Payload = []byte(payload)
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", ts, err)
		}
		rec.Time = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
