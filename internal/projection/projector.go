// Package projection keeps the read-model tables in step with the event log.
package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskline/internal/domain"
	"taskline/internal/domain/codec"
	"taskline/internal/domain/person"
	"taskline/internal/domain/project"
	"taskline/internal/domain/user"
	"taskline/internal/events"
	"taskline/internal/logging"
	"taskline/internal/metrics"
	"taskline/internal/repo"
)

const (
	DefaultName     = "read-model"
	DefaultInterval = time.Second
	DefaultBatch    = 100
)

// ErrProjectionTimeout is returned by WaitFor when the read model did not reach
// the requested position in time.
var ErrProjectionTimeout = errors.New("read model not caught up")

var errUnhandled = errors.New("event not handled by projector")

// Projector is a log subscriber with a cursor persisted next to the read
// tables. Events are applied at least once; every write is idempotent.
type Projector struct {
	Name     string
	Store    events.Store
	Repo     repo.Repo
	Interval time.Duration
	Batch    int
	Logger   logging.Logger
	Metrics  *metrics.Metrics

	applyMu sync.Mutex

	mu       sync.Mutex
	loaded   bool
	position int64
	advanced chan struct{}
	wake     chan struct{}
}

func New(store events.Store, r repo.Repo) *Projector {
	return &Projector{
		Name:     DefaultName,
		Store:    store,
		Repo:     r,
		Interval: DefaultInterval,
		Batch:    DefaultBatch,
		Logger:   logging.New("projector"),
		advanced: make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Position returns the last applied log position.
func (p *Projector) Position(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadLocked(ctx); err != nil {
		return 0, err
	}
	return p.position, nil
}

func (p *Projector) loadLocked(ctx context.Context) error {
	if p.loaded {
		return nil
	}
	pos, err := p.Repo.Cursor(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("load cursor %s: %w", p.Name, err)
	}
	p.position = pos
	p.loaded = true
	return nil
}

func (p *Projector) setPosition(pos int64) {
	p.mu.Lock()
	p.position = pos
	p.loaded = true
	close(p.advanced)
	p.advanced = make(chan struct{})
	p.mu.Unlock()
}

// Notify wakes a running loop without waiting for the next tick.
func (p *Projector) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// WaitFor blocks until position has been applied or ctx is done.
func (p *Projector) WaitFor(ctx context.Context, position int64) error {
	p.Notify()
	for {
		p.mu.Lock()
		if err := p.loadLocked(ctx); err != nil {
			p.mu.Unlock()
			return err
		}
		if p.position >= position {
			p.mu.Unlock()
			return nil
		}
		current := p.position
		ch := p.advanced
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("%w: at %d, waiting for %d", ErrProjectionTimeout, current, position)
		}
	}
}

// Run applies new events until ctx is done.
func (p *Projector) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.CatchUp(ctx); err != nil && ctx.Err() == nil {
			p.Logger.Warnw("catch up failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.wake:
		}
	}
}

// CatchUp applies every pending event and returns how many were handled.
func (p *Projector) CatchUp(ctx context.Context) (int, error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	pos, err := p.Position(ctx)
	if err != nil {
		return 0, err
	}
	batch := p.Batch
	if batch <= 0 {
		batch = DefaultBatch
	}
	total := 0
	for {
		records, err := p.Store.After(ctx, pos, batch)
		if err != nil {
			return total, fmt.Errorf("read log after %d: %w", pos, err)
		}
		if len(records) == 0 {
			return total, nil
		}
		if err := p.applyBatch(ctx, records); err != nil {
			return total, err
		}
		pos = records[len(records)-1].Position
		total += len(records)
		p.setPosition(pos)
	}
}

func (p *Projector) applyBatch(ctx context.Context, records []events.Record) error {
	tx, err := p.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range records {
		evt, err := codec.Decode(rec.AggregateType, domain.EventType(rec.Type), rec.Payload)
		if err != nil {
			p.Logger.Warnw("skip undecodable event", "position", rec.Position, "type", rec.Type, "error", err)
			p.Metrics.Projected("skipped", rec.Position)
			continue
		}
		if err := p.apply(ctx, tx, rec, evt); err != nil {
			if errors.Is(err, errUnhandled) {
				p.Logger.Warnw("skip unhandled event", "position", rec.Position, "type", rec.Type)
				p.Metrics.Projected("skipped", rec.Position)
				continue
			}
			p.Metrics.Projected("error", rec.Position)
			return fmt.Errorf("apply %s at %d: %w", rec.Type, rec.Position, err)
		}
		p.Metrics.Projected("ok", rec.Position)
	}
	if err := p.Repo.SetCursorTx(ctx, tx, p.Name, records[len(records)-1].Position); err != nil {
		return fmt.Errorf("store cursor: %w", err)
	}
	return tx.Commit()
}

func (p *Projector) apply(ctx context.Context, tx *sql.Tx, rec events.Record, evt domain.Event) error {
	r := p.Repo
	switch e := evt.(type) {
	case project.ProjectCreated:
		return r.InsertProjectTx(ctx, tx, e.ProjectID, e.Title)
	case project.StatusCreated:
		return r.InsertStatusTx(ctx, tx, domain.Status{ID: e.StatusID, ProjectID: e.ProjectID, Name: e.Name, Color: e.Color})
	case project.StatusDeleted:
		return r.DeleteStatusTx(ctx, tx, rec.AggregateID, e.StatusID)
	case project.StatusesUpdated:
		return r.ReorderStatusesTx(ctx, tx, rec.AggregateID, e.OrderedStatuses)
	case project.TaskCreated:
		return r.InsertTaskTx(ctx, tx, domain.Task{
			ID:        e.TaskID,
			ProjectID: e.ProjectID,
			Title:     e.Title,
			StatusID:  e.StatusID,
			Assignees: e.Assignees,
		}, rec.Position)
	case project.TaskRenamed:
		return r.RenameTaskTx(ctx, tx, e.TaskID, e.Title)
	case project.TaskStatusUpdated:
		return r.UpdateTaskStatusTx(ctx, tx, e.TaskID, e.StatusID)
	case project.MemberAssigned:
		return r.InsertAssigneeTx(ctx, tx, e.TaskID, e.MemberID, rec.Position*1000)
	case project.MemberCreated:
		return r.InsertMemberTx(ctx, tx, rec.AggregateID, domain.Member{
			ID:         e.MemberID,
			Username:   e.Username,
			FirstName:  e.FirstName,
			MiddleName: e.MiddleName,
			LastName:   e.LastName,
		})
	case project.ProjectDiscarded:
		return r.DeleteProjectTx(ctx, tx, rec.AggregateID)
	case user.UserCreated:
		return r.InsertUserTx(ctx, tx, domain.User{
			Username:   e.Username,
			FirstName:  e.FirstName,
			MiddleName: e.MiddleName,
			LastName:   e.LastName,
			Password:   e.Password,
		})
	case person.PersonCreated:
		return r.InsertPersonTx(ctx, tx, domain.Person{
			ID:         e.PersonID,
			Username:   e.Username,
			FirstName:  e.FirstName,
			MiddleName: e.MiddleName,
			LastName:   e.LastName,
			UserID:     e.UserID,
		})
	default:
		return fmt.Errorf("%w: %T", errUnhandled, evt)
	}
}

// Rebuild empties the read model and replays the whole log into it.
func (p *Projector) Rebuild(ctx context.Context) (int, error) {
	p.applyMu.Lock()
	tx, err := p.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		p.applyMu.Unlock()
		return 0, err
	}
	if err := p.Repo.ResetTx(ctx, tx, p.Name); err != nil {
		tx.Rollback()
		p.applyMu.Unlock()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		p.applyMu.Unlock()
		return 0, err
	}
	p.setPosition(0)
	p.applyMu.Unlock()
	return p.CatchUp(ctx)
}
