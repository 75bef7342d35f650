package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"taskline/internal/domain"
	"taskline/internal/domain/person"
	"taskline/internal/domain/project"
	"taskline/internal/domain/user"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/repo"
	"taskline/internal/saga"
)

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Title           string `validate:"required"`
	CreatorPersonID string `validate:"required"`
	ActorID         string
}

// CreateProject creates the project, its default status and adds the creator
// as first member. A failure after the first step discards the project.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) ([]events.Record, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}
	creator, err := e.Person(ctx, opts.CreatorPersonID)
	if err != nil {
		return nil, fmt.Errorf("creator %s: %w", opts.CreatorPersonID, err)
	}

	projectID := e.newID()
	statusID := e.newID()
	var out []events.Record
	record := func(ctx context.Context, command string, decide func(project.State) (project.Event, error)) error {
		rec, err := execute(ctx, e, projectAggregate, projectID, command, opts.ActorID, decide)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	}
	s := saga.New("create_project", e.logger(), e.Metrics).
		Step("create project",
			func(ctx context.Context) error {
				return record(ctx, "create", func(s project.State) (project.Event, error) {
					return project.Create(s, projectID, opts.Title)
				})
			},
			func(ctx context.Context) error {
				return record(ctx, "discard", func(s project.State) (project.Event, error) {
					return project.Discard(s, "project creation did not complete")
				})
			}).
		Step("create default status",
			func(ctx context.Context) error {
				return record(ctx, "create_status", func(s project.State) (project.Event, error) {
					return project.CreateStatus(s, statusID, domain.DefaultStatusName, domain.DefaultStatusColor)
				})
			},
			func(ctx context.Context) error {
				return record(ctx, "delete_status", func(s project.State) (project.Event, error) {
					return project.DeleteStatus(s, statusID)
				})
			}).
		Step("add creator",
			func(ctx context.Context) error {
				return record(ctx, "add_member", func(s project.State) (project.Event, error) {
					return project.AddMember(s, creator.Member())
				})
			}, nil)
	if err := s.Run(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// StatusCreateOptions are parameters for creating a status.
type StatusCreateOptions struct {
	ProjectID string `validate:"required"`
	Name      string
	Color     string `validate:"omitempty,hexcolor"`
	ActorID   string
}

// CreateStatus appends a status and then writes the new canonical order,
// existing ids followed by the new one.
func (e Engine) CreateStatus(ctx context.Context, opts StatusCreateOptions) ([]events.Record, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}
	if _, err := e.Project(ctx, opts.ProjectID); err != nil {
		return nil, err
	}
	statusID := e.newID()

	var out []events.Record
	s := saga.New("create_status", e.logger(), e.Metrics).
		Step("create status",
			func(ctx context.Context) error {
				rec, err := execute(ctx, e, projectAggregate, opts.ProjectID, "create_status", opts.ActorID, func(s project.State) (project.Event, error) {
					return project.CreateStatus(s, statusID, opts.Name, opts.Color)
				})
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			},
			func(ctx context.Context) error {
				rec, err := execute(ctx, e, projectAggregate, opts.ProjectID, "delete_status", opts.ActorID, func(s project.State) (project.Event, error) {
					return project.DeleteStatus(s, statusID)
				})
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}).
		Step("update status order",
			func(ctx context.Context) error {
				rec, err := execute(ctx, e, projectAggregate, opts.ProjectID, "update_status_order", opts.ActorID, func(s project.State) (project.Event, error) {
					ordered, err := orderWith(s, statusID, -1)
					if err != nil {
						return nil, err
					}
					return project.UpdateStatusOrder(s, ordered)
				})
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}, nil)
	if err := s.Run(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// DeleteStatus removes the status and writes the remaining order. Deleting
// first lets StatusInUse reject the request before any event is stored; when
// the reorder fails the status is recreated at its former position.
//
// Orders are always derived from the state replayed under the aggregate lock,
// so statuses created or deleted between the steps are kept.
func (e Engine) DeleteStatus(ctx context.Context, projectID, statusID, actorID string) ([]events.Record, error) {
	current, err := e.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if current.StatusIndex(statusID) < 0 {
		return nil, fmt.Errorf("status %s: %w", statusID, domain.ErrNotFound)
	}

	var (
		out     []events.Record
		removed domain.Status
		idx     int
	)
	record := func(ctx context.Context, command string, decide func(project.State) (project.Event, error)) error {
		rec, err := execute(ctx, e, projectAggregate, projectID, command, actorID, decide)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	}
	s := saga.New("delete_status", e.logger(), e.Metrics).
		Step("delete status",
			func(ctx context.Context) error {
				return record(ctx, "delete_status", func(s project.State) (project.Event, error) {
					evt, err := project.DeleteStatus(s, statusID)
					if err != nil {
						return nil, err
					}
					p, _ := project.Current(s)
					idx = p.StatusIndex(statusID)
					removed = p.Statuses[idx]
					return evt, nil
				})
			},
			func(ctx context.Context) error {
				if err := record(ctx, "create_status", func(s project.State) (project.Event, error) {
					return project.CreateStatus(s, removed.ID, removed.Name, removed.Color)
				}); err != nil {
					return err
				}
				return record(ctx, "update_status_order", func(s project.State) (project.Event, error) {
					ordered, err := orderWith(s, removed.ID, idx)
					if err != nil {
						return nil, err
					}
					return project.UpdateStatusOrder(s, ordered)
				})
			}).
		Step("update status order",
			func(ctx context.Context) error {
				return record(ctx, "update_status_order", func(s project.State) (project.Event, error) {
					p, err := project.Current(s)
					if err != nil {
						return nil, err
					}
					return project.UpdateStatusOrder(s, p.StatusIDs())
				})
			}, nil)
	if err := s.Run(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// orderWith returns the project's current status ids with id moved to
// position at. A negative or out of range position puts it last.
func orderWith(s project.State, id string, at int) ([]string, error) {
	p, err := project.Current(s)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(p.Statuses))
	for _, sid := range p.StatusIDs() {
		if sid != id {
			ids = append(ids, sid)
		}
	}
	if at < 0 || at > len(ids) {
		at = len(ids)
	}
	return slices.Insert(ids, at, id), nil
}

// SignupOptions are parameters for registering a user.
type SignupOptions struct {
	Username   string `validate:"required"`
	FirstName  string `validate:"required"`
	MiddleName string `validate:"required"`
	LastName   string `validate:"required"`
	Password   string `validate:"required"`
	ActorID    string
}

// Signup creates the user and its person profile. The user cannot be
// removed again, so a failed profile step leaves the user in place.
func (e Engine) Signup(ctx context.Context, opts SignupOptions) ([]events.Record, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}
	existing := ""
	if e.Repo.DB != nil {
		switch _, err := e.Repo.GetUserByUsername(ctx, opts.Username); {
		case err == nil:
			existing = opts.Username
		case errors.Is(err, repo.ErrNotFound):
		default:
			return nil, fmt.Errorf("lookup user %s: %w", opts.Username, err)
		}
	}
	hash, err := auth.HashPassword(opts.Password, e.BcryptCost)
	if err != nil {
		return nil, err
	}

	personID := e.newID()
	var out []events.Record
	var created domain.User
	s := saga.New("signup", e.logger(), e.Metrics).
		Step("create user",
			func(ctx context.Context) error {
				rec, err := execute(ctx, e, userAggregate, opts.Username, "create", opts.ActorID, func(s user.State) (user.Event, error) {
					return user.Create(s, opts.Username, opts.FirstName, opts.MiddleName, opts.LastName, hash, existing)
				})
				if err != nil {
					return err
				}
				out = append(out, rec)
				created = domain.User{
					Username:   opts.Username,
					FirstName:  opts.FirstName,
					MiddleName: opts.MiddleName,
					LastName:   opts.LastName,
				}
				return nil
			}, nil).
		Step("create person",
			func(ctx context.Context) error {
				rec, err := execute(ctx, e, personAggregate, personID, "create", opts.ActorID, func(s person.State) (person.Event, error) {
					return person.Create(s, personID, created)
				})
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}, nil)
	if err := s.Run(ctx); err != nil {
		return out, err
	}
	return out, nil
}
