package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskline/internal/domain"
	"taskline/internal/domain/codec"
	"taskline/internal/domain/person"
	"taskline/internal/domain/project"
	"taskline/internal/domain/user"
	"taskline/internal/events"
	"taskline/internal/locker"
	"taskline/internal/logging"
	"taskline/internal/metrics"
	"taskline/internal/repo"
	"taskline/internal/telemetry"
)

const DefaultMaxRetries = 3

// Engine runs commands against aggregates: it replays the stream, lets the
// command decide, and appends the resulting event at the expected version.
type Engine struct {
	Store events.Store
	// Repo is the read model, used only for lookups that span aggregates.
	Repo   repo.Repo
	Locker *locker.Locker
	Now    func() time.Time
	NewID  func() string
	// MaxRetries bounds how often a command is re-run after a concurrency conflict.
	MaxRetries int
	BcryptCost int
	Logger     logging.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
	// Notify is called after every successful append.
	Notify func()
}

func New(store events.Store, r repo.Repo) Engine {
	return Engine{
		Store:      store,
		Repo:       r,
		Locker:     locker.New(),
		Now:        time.Now,
		NewID:      uuid.NewString,
		MaxRetries: DefaultMaxRetries,
		Logger:     logging.New("engine"),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) logger() logging.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Nop()
}

func (e Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return telemetry.Tracer()
}

var validate = validator.New()

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// aggregate binds an aggregate type to its decoder and replay function.
type aggregate[S any, E domain.Event] struct {
	kind   string
	decode func(domain.EventType, []byte) (E, error)
	replay func([]E) (S, error)
}

var (
	projectAggregate = aggregate[project.State, project.Event]{domain.AggregateProject, project.Decode, project.Replay}
	userAggregate    = aggregate[user.State, user.Event]{domain.AggregateUser, user.Decode, user.Replay}
	personAggregate  = aggregate[person.State, person.Event]{domain.AggregatePerson, person.Decode, person.Replay}
)

// load replays a stream and returns its state and version.
func load[S any, E domain.Event](ctx context.Context, store events.Store, agg aggregate[S, E], id string) (S, int64, error) {
	var zero S
	records, err := store.Load(ctx, agg.kind, id)
	if err != nil {
		return zero, 0, fmt.Errorf("load %s %s: %w", agg.kind, id, err)
	}
	evts := make([]E, 0, len(records))
	for _, rec := range records {
		evt, err := agg.decode(domain.EventType(rec.Type), rec.Payload)
		if err != nil {
			return zero, 0, fmt.Errorf("%s %s version %d: %w", agg.kind, id, rec.Version, err)
		}
		evts = append(evts, evt)
	}
	state, err := agg.replay(evts)
	if err != nil {
		return zero, 0, fmt.Errorf("replay %s %s: %w", agg.kind, id, err)
	}
	return state, int64(len(records)), nil
}

// execute runs one command. The aggregate id is locked for the whole
// load/decide/append sequence; conflicts from other processes are retried.
func execute[S any, E domain.Event](ctx context.Context, e Engine, agg aggregate[S, E], id, command, actorID string, decide func(S) (E, error)) (rec events.Record, err error) {
	ctx, span := e.tracer().Start(ctx, agg.kind+"."+command, trace.WithAttributes(
		attribute.String("aggregate.type", agg.kind),
		attribute.String("aggregate.id", id),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.Metrics.CommandDone(agg.kind, command, err)
	}()

	if e.Locker != nil {
		key := agg.kind + "/" + id
		e.Locker.Lock(key)
		defer e.Locker.Unlock(key)
	}

	retries := e.MaxRetries
	if retries < 0 {
		retries = 0
	}
	for attempt := 0; ; attempt++ {
		state, version, err := load(ctx, e.Store, agg, id)
		if err != nil {
			return events.Record{}, err
		}
		evt, err := decide(state)
		if err != nil {
			return events.Record{}, err
		}
		payload, err := codec.Encode(evt)
		if err != nil {
			return events.Record{}, err
		}
		rec, err := e.Store.Append(ctx, events.Record{
			AggregateType: agg.kind,
			AggregateID:   id,
			Type:          string(evt.EventType()),
			ActorID:       actorID,
			Payload:       payload,
			Time:          e.now(),
		}, version)
		if errors.Is(err, events.ErrConcurrencyConflict) {
			e.Metrics.Conflict(agg.kind)
			if attempt < retries {
				e.logger().Debugw("retrying after conflict", "aggregate", agg.kind, "id", id, "command", command, "attempt", attempt+1)
				continue
			}
			return events.Record{}, fmt.Errorf("%s %s: gave up after %d attempts: %w", agg.kind, command, attempt+1, err)
		}
		if err != nil {
			return events.Record{}, fmt.Errorf("append %s: %w", evt.EventType(), err)
		}
		if e.Notify != nil {
			e.Notify()
		}
		return rec, nil
	}
}

// Project replays the project stream and returns the current project.
func (e Engine) Project(ctx context.Context, id string) (domain.Project, error) {
	state, _, err := load(ctx, e.Store, projectAggregate, id)
	if err != nil {
		return domain.Project{}, err
	}
	return project.Current(state)
}

// Person replays the person stream.
func (e Engine) Person(ctx context.Context, id string) (domain.Person, error) {
	state, _, err := load(ctx, e.Store, personAggregate, id)
	if err != nil {
		return domain.Person{}, err
	}
	return person.Profile(state)
}

// User replays the user stream.
func (e Engine) User(ctx context.Context, username string) (domain.User, error) {
	state, _, err := load(ctx, e.Store, userAggregate, username)
	if err != nil {
		return domain.User{}, err
	}
	active, ok := state.(user.Active)
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
	}
	return active.User, nil
}
