package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskline HTTP API client.
type Client struct {
	BaseURL string
	// BasePath is the API prefix, "/v0" when empty.
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no bearer token is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Event is a stored event as returned by commands and the log tail.
type Event struct {
	Position      int64          `json:"position"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   string         `json:"aggregateId"`
	Version       int64          `json:"version"`
	Type          string         `json:"type"`
	ActorID       string         `json:"actorId,omitempty"`
	Payload       map[string]any `json:"payload"`
	Time          string         `json:"time"`
}

// CommandResult lists the events a command appended. ID is the id of the
// created entity for create commands.
type CommandResult struct {
	ID       string  `json:"id,omitempty"`
	Position int64   `json:"position"`
	Events   []Event `json:"events"`
}

// PaginatedEvents is a page of the event log.
type PaginatedEvents struct {
	Items     []Event `json:"items"`
	NextAfter int64   `json:"nextAfter,omitempty"`
}

type ProjectSummary struct {
	ID    string `json:"projectId"`
	Title string `json:"title"`
}

type Member struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

type Status struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

type Task struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	StatusID  string   `json:"statusId"`
	Assignees []string `json:"assignees"`
}

type Project struct {
	ID       string   `json:"projectId"`
	Title    string   `json:"title"`
	Members  []Member `json:"members"`
	Statuses []Status `json:"statuses"`
	Tasks    []Task   `json:"tasks"`
}

type User struct {
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

type Person struct {
	ID         string `json:"personId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	UserID     string `json:"userId"`
}

// Signup are the fields of a new user.
type Signup struct {
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Password   string `json:"password"`
}

// APIError wraps non-2xx responses. Code and Message are filled from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Signup registers a user; the result ID is the new person id.
func (c *Client) Signup(ctx context.Context, s Signup) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, "users/signup", s, &resp)
	return resp, err
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users/all", nil, &resp)
	return resp, err
}

func (c *Client) GetUser(ctx context.Context, username string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "users/get?username="+url.QueryEscape(username), nil, &resp)
	return resp, err
}

// GetPerson returns the person profile of a user.
func (c *Client) GetPerson(ctx context.Context, username string) (Person, error) {
	var resp Person
	err := c.do(ctx, http.MethodGet, "users/person?username="+url.QueryEscape(username), nil, &resp)
	return resp, err
}

// CreateProject creates a project with its default status and the creator as
// first member; the result ID is the project id.
func (c *Client) CreateProject(ctx context.Context, title, creatorPersonID string) (CommandResult, error) {
	body := map[string]any{
		"title":           title,
		"creatorPersonId": creatorPersonID,
	}
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var resp []ProjectSummary
	err := c.do(ctx, http.MethodGet, "projects/all", nil, &resp)
	return resp, err
}

// ListProjectsByPerson returns the projects the person is a member of.
func (c *Client) ListProjectsByPerson(ctx context.Context, personID string) ([]ProjectSummary, error) {
	var resp []ProjectSummary
	err := c.do(ctx, http.MethodGet, "projects/users/"+url.PathEscape(personID), nil, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, projectPath(projectID, ""), nil, &resp)
	return resp, err
}

func (c *Client) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	var resp []Member
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "members"), nil, &resp)
	return resp, err
}

func (c *Client) AddMember(ctx context.Context, projectID, personID string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "members"), map[string]any{"personId": personID}, &resp)
	return resp, err
}

func (c *Client) ListAllTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "projects/tasks/all", nil, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "tasks"), nil, &resp)
	return resp, err
}

func (c *Client) ListTasksByStatus(ctx context.Context, projectID, statusID string) ([]Task, error) {
	var resp []Task
	endpoint := projectPath(projectID, "tasks/by_status") + "?statusId=" + url.QueryEscape(statusID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(projectID, taskID, ""), nil, &resp)
	return resp, err
}

func (c *Client) GetTaskStatus(ctx context.Context, projectID, taskID string) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, taskPath(projectID, taskID, "status"), nil, &resp)
	return resp, err
}

// CreateTask creates a task; the result ID is the task id.
func (c *Client) CreateTask(ctx context.Context, projectID, title, statusID string, assignees []string) (CommandResult, error) {
	body := map[string]any{
		"title":    title,
		"statusId": statusID,
	}
	if len(assignees) > 0 {
		body["assignees"] = assignees
	}
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "tasks"), body, &resp)
	return resp, err
}

func (c *Client) AssignMember(ctx context.Context, projectID, taskID, memberID string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, taskPath(projectID, taskID, "assignees"), map[string]any{"memberId": memberID}, &resp)
	return resp, err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, projectID, taskID, statusID string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, taskPath(projectID, taskID, "status"), map[string]any{"statusId": statusID}, &resp)
	return resp, err
}

func (c *Client) RenameTask(ctx context.Context, projectID, taskID, title string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, taskPath(projectID, taskID, "name"), map[string]any{"title": title}, &resp)
	return resp, err
}

// ListStatuses returns the project statuses in display order.
func (c *Client) ListStatuses(ctx context.Context, projectID string) ([]Status, error) {
	var resp []Status
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "statuses"), nil, &resp)
	return resp, err
}

// CreateStatus appends a status; empty name and color use the defaults. The
// result ID is the status id.
func (c *Client) CreateStatus(ctx context.Context, projectID, name, color string) (CommandResult, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if color != "" {
		body["color"] = color
	}
	var resp CommandResult
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "statuses"), body, &resp)
	return resp, err
}

func (c *Client) UpdateStatusOrder(ctx context.Context, projectID string, ordered []string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodPatch, projectPath(projectID, "statuses"), map[string]any{"orderedStatuses": ordered}, &resp)
	return resp, err
}

func (c *Client) DeleteStatus(ctx context.Context, projectID, statusID string) (CommandResult, error) {
	var resp CommandResult
	err := c.do(ctx, http.MethodDelete, projectPath(projectID, "statuses/"+url.PathEscape(statusID)), nil, &resp)
	return resp, err
}

// EventsPage returns up to limit events after the given log position.
func (c *Client) EventsPage(ctx context.Context, after int64, limit int) (PaginatedEvents, error) {
	q := url.Values{}
	if after > 0 {
		q.Set("after", fmt.Sprint(after))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func projectPath(projectID, p string) string {
	out := "projects/" + url.PathEscape(projectID)
	if p != "" {
		out += "/" + strings.TrimLeft(p, "/")
	}
	return out
}

func taskPath(projectID, taskID, p string) string {
	out := "tasks/" + url.PathEscape(taskID)
	if p != "" {
		out += "/" + p
	}
	return projectPath(projectID, out)
}

func (c *Client) base() string {
	basePath := c.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(basePath, "/")
}
