package project

import (
	"fmt"

	"taskline/internal/domain"
)

// State is either Uninitialized, Active or Discarded.
type State interface {
	isState()
}

// Uninitialized is the state before ProjectCreated.
type Uninitialized struct{}

// Active carries the project once it has been created.
type Active struct {
	Project domain.Project
}

// Discarded is a project whose creation was compensated.
type Discarded struct {
	ProjectID string
}

func (Uninitialized) isState() {}
func (Active) isState()        {}
func (Discarded) isState()     {}

// Replay folds events in order starting from Uninitialized.
func Replay(events []Event) (State, error) {
	var s State = Uninitialized{}
	for _, evt := range events {
		next, err := Fold(s, evt)
		if err != nil {
			return nil, err
		}
		s = next
	}
	return s, nil
}

// Fold applies one event to the state. It is pure: the input state is never
// modified and no clock or id source is consulted.
func Fold(s State, e Event) (State, error) {
	if evt, ok := e.(ProjectCreated); ok {
		if _, ok := s.(Uninitialized); !ok {
			return nil, fmt.Errorf("%w: %s on existing project", domain.ErrCorruptHistory, evt.EventType())
		}
		return Active{Project: domain.Project{
			ID:       evt.ProjectID,
			Title:    evt.Title,
			Members:  []domain.Member{},
			Tasks:    []domain.Task{},
			Statuses: []domain.Status{},
		}}, nil
	}

	active, ok := s.(Active)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %T", domain.ErrCorruptHistory, e.EventType(), s)
	}
	p := active.Project.Clone()

	switch evt := e.(type) {
	case StatusCreated:
		p.Statuses = append(p.Statuses, domain.Status{
			ID:        evt.StatusID,
			ProjectID: evt.ProjectID,
			Name:      evt.Name,
			Color:     evt.Color,
		})
	case StatusDeleted:
		i := p.StatusIndex(evt.StatusID)
		if i < 0 {
			return nil, fmt.Errorf("%w: status %s is missing", domain.ErrCorruptHistory, evt.StatusID)
		}
		p.Statuses = append(p.Statuses[:i], p.Statuses[i+1:]...)
	case StatusesUpdated:
		ordered := make([]domain.Status, 0, len(evt.OrderedStatuses))
		for _, id := range evt.OrderedStatuses {
			i := p.StatusIndex(id)
			if i < 0 {
				return nil, fmt.Errorf("%w: status %s in order is missing", domain.ErrCorruptHistory, id)
			}
			ordered = append(ordered, p.Statuses[i])
		}
		p.Statuses = ordered
	case TaskCreated:
		p.Tasks = append(p.Tasks, domain.Task{
			ID:        evt.TaskID,
			ProjectID: evt.ProjectID,
			Title:     evt.Title,
			StatusID:  evt.StatusID,
			Assignees: append([]string{}, evt.Assignees...),
		})
	case TaskRenamed:
		i := p.TaskIndex(evt.TaskID)
		if i < 0 {
			return nil, fmt.Errorf("%w: task %s is missing", domain.ErrCorruptHistory, evt.TaskID)
		}
		p.Tasks[i].Title = evt.Title
	case TaskStatusUpdated:
		i := p.TaskIndex(evt.TaskID)
		if i < 0 {
			return nil, fmt.Errorf("%w: task %s is missing", domain.ErrCorruptHistory, evt.TaskID)
		}
		p.Tasks[i].StatusID = evt.StatusID
	case MemberAssigned:
		i := p.TaskIndex(evt.TaskID)
		if i < 0 {
			return nil, fmt.Errorf("%w: task %s is missing", domain.ErrCorruptHistory, evt.TaskID)
		}
		if !p.Tasks[i].HasAssignee(evt.MemberID) {
			p.Tasks[i].Assignees = append(p.Tasks[i].Assignees, evt.MemberID)
		}
	case MemberCreated:
		p.Members = append(p.Members, domain.Member{
			ID:         evt.MemberID,
			Username:   evt.Username,
			FirstName:  evt.FirstName,
			MiddleName: evt.MiddleName,
			LastName:   evt.LastName,
		})
	case ProjectDiscarded:
		return Discarded{ProjectID: p.ID}, nil
	default:
		return nil, fmt.Errorf("unhandled project event %T", e)
	}
	return Active{Project: p}, nil
}

// Current returns the active project or ErrUninitialized.
func Current(s State) (domain.Project, error) {
	switch st := s.(type) {
	case Active:
		return st.Project, nil
	case Discarded:
		return domain.Project{}, fmt.Errorf("project %s discarded: %w", st.ProjectID, domain.ErrNotFound)
	default:
		return domain.Project{}, domain.ErrUninitialized
	}
}
