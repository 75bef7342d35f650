// Package project holds the Project aggregate: its events, its state fold and
// the command functions that validate requests against replayed state.
package project

import (
	"encoding/json"
	"fmt"

	"taskline/internal/domain"
)

const (
	TypeProjectCreated    domain.EventType = "PROJECT_CREATED_EVENT"
	TypeStatusCreated     domain.EventType = "STATUS_CREATED_EVENT"
	TypeStatusDeleted     domain.EventType = "STATUS_DELETED_EVENT"
	TypeStatusesUpdated   domain.EventType = "STATUSES_UPDATED_EVENT"
	TypeTaskCreated       domain.EventType = "TASK_CREATED_EVENT"
	TypeTaskRenamed       domain.EventType = "TASK_RENAMED_EVENT"
	TypeTaskStatusUpdated domain.EventType = "TASK_STATUS_UPDATED_EVENT"
	TypeMemberAssigned    domain.EventType = "MEMBER_ASSIGNED_EVENT"
	TypeMemberCreated     domain.EventType = "MEMBER_CREATED_EVENT"
	TypeProjectDiscarded  domain.EventType = "PROJECT_DISCARDED_EVENT"
)

// Types lists every event kind of the aggregate.
var Types = []domain.EventType{
	TypeProjectCreated,
	TypeStatusCreated,
	TypeStatusDeleted,
	TypeStatusesUpdated,
	TypeTaskCreated,
	TypeTaskRenamed,
	TypeTaskStatusUpdated,
	TypeMemberAssigned,
	TypeMemberCreated,
	TypeProjectDiscarded,
}

// Event is the closed set of project events.
type Event interface {
	domain.Event
	isProjectEvent()
}

type ProjectCreated struct {
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
}

type StatusCreated struct {
	StatusID  string `json:"statusId"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

type StatusDeleted struct {
	StatusID string `json:"statusId"`
}

// StatusesUpdated replaces the status order of the project.
type StatusesUpdated struct {
	OrderedStatuses []string `json:"orderedStatuses"`
}

type TaskCreated struct {
	TaskID    string   `json:"taskId"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	StatusID  string   `json:"statusId"`
	Assignees []string `json:"assignees"`
}

type TaskRenamed struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

type TaskStatusUpdated struct {
	TaskID   string `json:"taskId"`
	StatusID string `json:"statusId"`
}

type MemberAssigned struct {
	TaskID   string `json:"taskId"`
	MemberID string `json:"memberId"`
}

type MemberCreated struct {
	MemberID   string `json:"memberId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

// ProjectDiscarded compensates a project creation that could not be completed.
type ProjectDiscarded struct {
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

func (ProjectCreated) EventType() domain.EventType    { return TypeProjectCreated }
func (StatusCreated) EventType() domain.EventType     { return TypeStatusCreated }
func (StatusDeleted) EventType() domain.EventType     { return TypeStatusDeleted }
func (StatusesUpdated) EventType() domain.EventType   { return TypeStatusesUpdated }
func (TaskCreated) EventType() domain.EventType       { return TypeTaskCreated }
func (TaskRenamed) EventType() domain.EventType       { return TypeTaskRenamed }
func (TaskStatusUpdated) EventType() domain.EventType { return TypeTaskStatusUpdated }
func (MemberAssigned) EventType() domain.EventType    { return TypeMemberAssigned }
func (MemberCreated) EventType() domain.EventType     { return TypeMemberCreated }
func (ProjectDiscarded) EventType() domain.EventType  { return TypeProjectDiscarded }

func (ProjectCreated) isProjectEvent()    {}
func (StatusCreated) isProjectEvent()     {}
func (StatusDeleted) isProjectEvent()     {}
func (StatusesUpdated) isProjectEvent()   {}
func (TaskCreated) isProjectEvent()       {}
func (TaskRenamed) isProjectEvent()       {}
func (TaskStatusUpdated) isProjectEvent() {}
func (MemberAssigned) isProjectEvent()    {}
func (MemberCreated) isProjectEvent()     {}
func (ProjectDiscarded) isProjectEvent()  {}

// Decode maps a stored event type and JSON payload back to its event.
func Decode(t domain.EventType, data []byte) (Event, error) {
	switch t {
	case TypeProjectCreated:
		return decode[ProjectCreated](t, data)
	case TypeStatusCreated:
		return decode[StatusCreated](t, data)
	case TypeStatusDeleted:
		return decode[StatusDeleted](t, data)
	case TypeStatusesUpdated:
		return decode[StatusesUpdated](t, data)
	case TypeTaskCreated:
		return decode[TaskCreated](t, data)
	case TypeTaskRenamed:
		return decode[TaskRenamed](t, data)
	case TypeTaskStatusUpdated:
		return decode[TaskStatusUpdated](t, data)
	case TypeMemberAssigned:
		return decode[MemberAssigned](t, data)
	case TypeMemberCreated:
		return decode[MemberCreated](t, data)
	case TypeProjectDiscarded:
		return decode[ProjectDiscarded](t, data)
	default:
		return nil, fmt.Errorf("unknown project event type %q", t)
	}
}

func decode[E Event](t domain.EventType, data []byte) (Event, error) {
	var evt E
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return evt, nil
}
