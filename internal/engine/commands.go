package engine

import (
	"context"
	"errors"
	"fmt"

	"taskline/internal/domain"
	"taskline/internal/domain/project"
	"taskline/internal/events"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID string `validate:"required"`
	Title     string `validate:"required"`
	StatusID  string `validate:"required"`
	Assignees []string
	ActorID   string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) ([]events.Record, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}
	taskID := e.newID()
	rec, err := execute(ctx, e, projectAggregate, opts.ProjectID, "create_task", opts.ActorID, func(s project.State) (project.Event, error) {
		return project.CreateTask(s, taskID, opts.Title, opts.StatusID, opts.Assignees)
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}

func (e Engine) AssignMember(ctx context.Context, projectID, taskID, memberID, actorID string) ([]events.Record, error) {
	if memberID == "" {
		return nil, fmt.Errorf("%w: member id required", domain.ErrInvalidArgument)
	}
	rec, err := execute(ctx, e, projectAggregate, projectID, "assign_member", actorID, func(s project.State) (project.Event, error) {
		return project.AssignMember(s, taskID, memberID)
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}

func (e Engine) UpdateTaskStatus(ctx context.Context, projectID, taskID, statusID, actorID string) ([]events.Record, error) {
	rec, err := execute(ctx, e, projectAggregate, projectID, "update_task_status", actorID, func(s project.State) (project.Event, error) {
		return project.UpdateTaskStatus(s, taskID, statusID)
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}

func (e Engine) RenameTask(ctx context.Context, projectID, taskID, title, actorID string) ([]events.Record, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title required", domain.ErrInvalidArgument)
	}
	rec, err := execute(ctx, e, projectAggregate, projectID, "rename_task", actorID, func(s project.State) (project.Event, error) {
		return project.RenameTask(s, taskID, title)
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}

func (e Engine) UpdateStatusOrder(ctx context.Context, projectID string, ordered []string, actorID string) ([]events.Record, error) {
	rec, err := execute(ctx, e, projectAggregate, projectID, "update_status_order", actorID, func(s project.State) (project.Event, error) {
		return project.UpdateStatusOrder(s, ordered)
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}

// AddMember adds the person as a member of the project. A person that was
// never created yields ErrMissingProfile.
func (e Engine) AddMember(ctx context.Context, projectID, personID, actorID string) ([]events.Record, error) {
	if personID == "" {
		return nil, fmt.Errorf("%w: person id required", domain.ErrInvalidArgument)
	}
	p, err := e.Person(ctx, personID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingProfile) {
			return nil, fmt.Errorf("person %s: %w", personID, err)
		}
		return nil, err
	}
	rec, err := execute(ctx, e, projectAggregate, projectID, "add_member", actorID, func(s project.State) (project.Event, error) {
		return project.AddMember(s, p.Member())
	})
	if err != nil {
		return nil, err
	}
	return []events.Record{rec}, nil
}
