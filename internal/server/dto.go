package server

import (
	"encoding/json"
	"time"

	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// Request payloads

type SignupRequest struct {
	Username   string `json:"username" minLength:"1"`
	FirstName  string `json:"firstName" minLength:"1"`
	MiddleName string `json:"middleName" minLength:"1"`
	LastName   string `json:"lastName" minLength:"1"`
	Password   string `json:"password" minLength:"1"`
}

type CreateProjectRequest struct {
	Title           string `json:"title" minLength:"1"`
	CreatorPersonID string `json:"creatorPersonId" minLength:"1"`
}

type AddMemberRequest struct {
	PersonID string `json:"personId" minLength:"1"`
}

type CreateTaskRequest struct {
	Title     string   `json:"title" minLength:"1"`
	StatusID  string   `json:"statusId" minLength:"1"`
	Assignees []string `json:"assignees,omitempty"`
}

type AssignMemberRequest struct {
	MemberID string `json:"memberId" minLength:"1"`
}

type UpdateTaskStatusRequest struct {
	StatusID string `json:"statusId" minLength:"1"`
}

type RenameTaskRequest struct {
	Title string `json:"title" minLength:"1"`
}

type CreateStatusRequest struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty" example:"#00aa00"`
}

type UpdateStatusOrderRequest struct {
	OrderedStatuses []string `json:"orderedStatuses"`
}

// Responses

type EventResponse struct {
	Position      int64          `json:"position"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   string         `json:"aggregateId"`
	Version       int64          `json:"version"`
	Type          string         `json:"type"`
	ActorID       string         `json:"actorId,omitempty"`
	Payload       map[string]any `json:"payload"`
	Time          string         `json:"time" format:"date-time"`
}

// CommandResponse carries the events a command appended, compensations included.
type CommandResponse struct {
	ID       string          `json:"id,omitempty"`
	Position int64           `json:"position"`
	Events   []EventResponse `json:"events"`
}

type paginatedEvents struct {
	Items     []EventResponse `json:"items"`
	NextAfter int64           `json:"nextAfter,omitempty"`
}

type ProjectSummaryResponse struct {
	ID    string `json:"projectId"`
	Title string `json:"title"`
}

type MemberResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

type StatusResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

type TaskResponse struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	StatusID  string   `json:"statusId"`
	Assignees []string `json:"assignees"`
}

type ProjectResponse struct {
	ID       string           `json:"projectId"`
	Title    string           `json:"title"`
	Members  []MemberResponse `json:"members"`
	Statuses []StatusResponse `json:"statuses"`
	Tasks    []TaskResponse   `json:"tasks"`
}

type UserResponse struct {
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

type PersonResponse struct {
	ID         string `json:"personId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	UserID     string `json:"userId"`
}

// eventResponse renders a stored record. Password hashes never leave the server.
func eventResponse(r events.Record) EventResponse {
	payload := decodeJSONMap(r.Payload)
	delete(payload, "password")
	return EventResponse{
		Position:      r.Position,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		Version:       r.Version,
		Type:          r.Type,
		ActorID:       r.ActorID,
		Payload:       payload,
		Time:          r.Time.UTC().Format(time.RFC3339Nano),
	}
}

func commandResponse(id string, recs []events.Record) CommandResponse {
	res := CommandResponse{ID: id, Events: make([]EventResponse, 0, len(recs))}
	for _, r := range recs {
		res.Events = append(res.Events, eventResponse(r))
		if r.Position > res.Position {
			res.Position = r.Position
		}
	}
	return res
}

func projectSummaryResponse(p repo.ProjectSummary) ProjectSummaryResponse {
	return ProjectSummaryResponse{ID: p.ID, Title: p.Title}
}

func memberResponse(m domain.Member) MemberResponse {
	return MemberResponse(m)
}

func statusResponse(s domain.Status) StatusResponse {
	return StatusResponse(s)
}

func taskResponse(t domain.Task) TaskResponse {
	res := TaskResponse(t)
	if res.Assignees == nil {
		res.Assignees = []string{}
	}
	return res
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:       p.ID,
		Title:    p.Title,
		Members:  mapMembers(p.Members),
		Statuses: mapStatuses(p.Statuses),
		Tasks:    mapTasks(p.Tasks),
	}
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		Username:   u.Username,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
	}
}

func personResponse(p domain.Person) PersonResponse {
	return PersonResponse(p)
}

func mapMembers(items []domain.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		out = append(out, memberResponse(m))
	}
	return out
}

func mapStatuses(items []domain.Status) []StatusResponse {
	out := make([]StatusResponse, 0, len(items))
	for _, s := range items {
		out = append(out, statusResponse(s))
	}
	return out
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func decodeJSONMap(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
