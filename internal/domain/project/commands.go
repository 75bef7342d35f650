package project

import (
	"fmt"

	"taskline/internal/domain"
)

// Create starts a new project.
func Create(s State, projectID, title string) (ProjectCreated, error) {
	if _, ok := s.(Uninitialized); !ok {
		return ProjectCreated{}, fmt.Errorf("project %s: %w", projectID, domain.ErrAlreadyExists)
	}
	return ProjectCreated{ProjectID: projectID, Title: title}, nil
}

// CreateStatus adds a status at the end of the order. Empty name and color
// fall back to the project defaults.
func CreateStatus(s State, statusID, name, color string) (StatusCreated, error) {
	p, err := Current(s)
	if err != nil {
		return StatusCreated{}, err
	}
	if name == "" {
		name = domain.DefaultStatusName
	}
	if color == "" {
		color = domain.DefaultStatusColor
	}
	return StatusCreated{StatusID: statusID, ProjectID: p.ID, Name: name, Color: color}, nil
}

// UpdateStatusOrder accepts only a permutation of the current status ids.
func UpdateStatusOrder(s State, ordered []string) (StatusesUpdated, error) {
	p, err := Current(s)
	if err != nil {
		return StatusesUpdated{}, err
	}
	if len(ordered) != len(p.Statuses) {
		return StatusesUpdated{}, fmt.Errorf("%w: order has %d statuses, project has %d", domain.ErrUnknownStatus, len(ordered), len(p.Statuses))
	}
	seen := make(map[string]struct{}, len(ordered))
	for _, id := range ordered {
		if p.StatusIndex(id) < 0 {
			return StatusesUpdated{}, fmt.Errorf("%w: %s", domain.ErrUnknownStatus, id)
		}
		if _, dup := seen[id]; dup {
			return StatusesUpdated{}, fmt.Errorf("%w: %s listed twice", domain.ErrUnknownStatus, id)
		}
		seen[id] = struct{}{}
	}
	return StatusesUpdated{OrderedStatuses: append([]string{}, ordered...)}, nil
}

// DeleteStatus removes a status no task references.
func DeleteStatus(s State, statusID string) (StatusDeleted, error) {
	p, err := Current(s)
	if err != nil {
		return StatusDeleted{}, err
	}
	if p.StatusIndex(statusID) < 0 {
		return StatusDeleted{}, fmt.Errorf("status %s: %w", statusID, domain.ErrNotFound)
	}
	for _, t := range p.Tasks {
		if t.StatusID == statusID {
			return StatusDeleted{}, fmt.Errorf("%w: %s used by task %s", domain.ErrStatusInUse, statusID, t.ID)
		}
	}
	return StatusDeleted{StatusID: statusID}, nil
}

// CreateTask requires an existing status. Assignees are not checked against
// membership; repeated ids are collapsed.
func CreateTask(s State, taskID, title, statusID string, assignees []string) (TaskCreated, error) {
	p, err := Current(s)
	if err != nil {
		return TaskCreated{}, err
	}
	if p.StatusIndex(statusID) < 0 {
		return TaskCreated{}, fmt.Errorf("%w: %s", domain.ErrUnknownStatus, statusID)
	}
	unique := make([]string, 0, len(assignees))
	seen := make(map[string]struct{}, len(assignees))
	for _, id := range assignees {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return TaskCreated{
		TaskID:    taskID,
		ProjectID: p.ID,
		Title:     title,
		StatusID:  statusID,
		Assignees: unique,
	}, nil
}

func AssignMember(s State, taskID, memberID string) (MemberAssigned, error) {
	p, err := Current(s)
	if err != nil {
		return MemberAssigned{}, err
	}
	ti := p.TaskIndex(taskID)
	if ti < 0 {
		return MemberAssigned{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if p.MemberIndex(memberID) < 0 {
		return MemberAssigned{}, fmt.Errorf("%w: %s", domain.ErrUnknownMember, memberID)
	}
	if p.Tasks[ti].HasAssignee(memberID) {
		return MemberAssigned{}, fmt.Errorf("%w: %s on task %s", domain.ErrAlreadyAssigned, memberID, taskID)
	}
	return MemberAssigned{TaskID: taskID, MemberID: memberID}, nil
}

func UpdateTaskStatus(s State, taskID, statusID string) (TaskStatusUpdated, error) {
	p, err := Current(s)
	if err != nil {
		return TaskStatusUpdated{}, err
	}
	if p.TaskIndex(taskID) < 0 {
		return TaskStatusUpdated{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if p.StatusIndex(statusID) < 0 {
		return TaskStatusUpdated{}, fmt.Errorf("%w: %s", domain.ErrUnknownStatus, statusID)
	}
	return TaskStatusUpdated{TaskID: taskID, StatusID: statusID}, nil
}

func RenameTask(s State, taskID, title string) (TaskRenamed, error) {
	p, err := Current(s)
	if err != nil {
		return TaskRenamed{}, err
	}
	if p.TaskIndex(taskID) < 0 {
		return TaskRenamed{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return TaskRenamed{TaskID: taskID, Title: title}, nil
}

// AddMember records a person as a project member. The profile must carry a
// username and all three names.
func AddMember(s State, m domain.Member) (MemberCreated, error) {
	p, err := Current(s)
	if err != nil {
		return MemberCreated{}, err
	}
	if m.ID == "" || m.Username == "" || m.FirstName == "" || m.MiddleName == "" || m.LastName == "" {
		return MemberCreated{}, fmt.Errorf("%w: member %q", domain.ErrMissingProfile, m.ID)
	}
	for _, existing := range p.Members {
		if existing.ID == m.ID || existing.Username == m.Username {
			return MemberCreated{}, fmt.Errorf("%w: %s", domain.ErrAlreadyMember, m.Username)
		}
	}
	return MemberCreated{
		MemberID:   m.ID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		MiddleName: m.MiddleName,
		LastName:   m.LastName,
	}, nil
}

// Discard retires a project whose creation could not be completed.
func Discard(s State, reason string) (ProjectDiscarded, error) {
	p, err := Current(s)
	if err != nil {
		return ProjectDiscarded{}, err
	}
	return ProjectDiscarded{ProjectID: p.ID, Reason: reason}, nil
}
