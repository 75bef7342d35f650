package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/engine/auth"
	"taskline/internal/logging"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	app    *app.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.BcryptCost = 4
	cfg.Auth.JWTSecret = testSecret
	a, err := app.Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err)
	a.Projector.Logger = logging.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Projector.Run(ctx)
	}()

	handler, err := New(Config{
		Engine:            a.Engine,
		Repo:              a.Repo,
		Projector:         a.Projector,
		Metrics:           a.Metrics,
		BasePath:          "/v0",
		Auth:              AuthConfig{JWTSecret: testSecret, AllowActorHeader: true},
		WaitForProjection: true,
		ProjectionTimeout: 5 * time.Second,
		Logger:            logging.Nop(),
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		cancel()
		<-done
		a.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String() + "/v0", client: &http.Client{}, app: a}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

// decode asserts the status code and unmarshals the body into out.
func (s *testServer) decode(t *testing.T, method, path string, body any, want int, out any) {
	t.Helper()
	res, data := s.do(t, method, path, body, nil)
	require.Equal(t, want, res.StatusCode, string(data))
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

func (s *testServer) errorCode(t *testing.T, method, path string, body any, want int) string {
	t.Helper()
	res, data := s.do(t, method, path, body, nil)
	require.Equal(t, want, res.StatusCode, string(data))
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Error.Code
}

func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	var res CommandResponse
	s.decode(t, http.MethodPost, "/users/signup", SignupRequest{
		Username:   username,
		FirstName:  "Ada",
		MiddleName: "King",
		LastName:   "Lovelace",
		Password:   "secret",
	}, http.StatusCreated, &res)
	require.NotEmpty(t, res.ID)
	return res.ID
}

func (s *testServer) createProject(t *testing.T, title, personID string) string {
	t.Helper()
	var res CommandResponse
	s.decode(t, http.MethodPost, "/projects", CreateProjectRequest{Title: title, CreatorPersonID: personID}, http.StatusCreated, &res)
	require.NotEmpty(t, res.ID)
	return res.ID
}

func TestSignupAndCreateProject(t *testing.T) {
	srv := newTestServer(t)
	personID := srv.signup(t, "ada")

	var u UserResponse
	srv.decode(t, http.MethodGet, "/users/get?username=ada", nil, http.StatusOK, &u)
	assert.Equal(t, "Lovelace", u.LastName)

	var users []UserResponse
	srv.decode(t, http.MethodGet, "/users/all", nil, http.StatusOK, &users)
	assert.Len(t, users, 1)

	var res CommandResponse
	srv.decode(t, http.MethodPost, "/projects", CreateProjectRequest{Title: "P1", CreatorPersonID: personID}, http.StatusCreated, &res)
	require.Len(t, res.Events, 3)
	assert.Equal(t, "PROJECT_CREATED_EVENT", res.Events[0].Type)
	assert.Equal(t, "STATUS_CREATED_EVENT", res.Events[1].Type)
	assert.Equal(t, "CREATED", res.Events[1].Payload["name"])
	assert.Equal(t, "#000000", res.Events[1].Payload["color"])
	assert.Equal(t, "MEMBER_CREATED_EVENT", res.Events[2].Type)

	var p ProjectResponse
	srv.decode(t, http.MethodGet, "/projects/"+res.ID, nil, http.StatusOK, &p)
	assert.Equal(t, "P1", p.Title)
	require.Len(t, p.Statuses, 1)
	assert.Equal(t, "CREATED", p.Statuses[0].Name)
	require.Len(t, p.Members, 1)
	assert.Equal(t, personID, p.Members[0].ID)
	assert.Equal(t, "ada", p.Members[0].Username)

	var mine []ProjectSummaryResponse
	srv.decode(t, http.MethodGet, "/projects/users/"+personID, nil, http.StatusOK, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, res.ID, mine[0].ID)

	var all []ProjectSummaryResponse
	srv.decode(t, http.MethodGet, "/projects/all", nil, http.StatusOK, &all)
	assert.Len(t, all, 1)
}

func TestDuplicateSignupRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada")
	code := srv.errorCode(t, http.MethodPost, "/users/signup", SignupRequest{
		Username:   "ada",
		FirstName:  "A",
		MiddleName: "B",
		LastName:   "C",
		Password:   "x",
	}, http.StatusBadRequest)
	assert.Equal(t, "duplicate_username", code)
}

func TestCreateProjectWithoutProfile(t *testing.T) {
	srv := newTestServer(t)
	code := srv.errorCode(t, http.MethodPost, "/projects", CreateProjectRequest{Title: "P", CreatorPersonID: "nobody"}, http.StatusBadRequest)
	assert.Equal(t, "missing_profile", code)

	var all []ProjectSummaryResponse
	srv.decode(t, http.MethodGet, "/projects/all", nil, http.StatusOK, &all)
	assert.Empty(t, all)
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)
	personID := srv.signup(t, "ada")
	projectID := srv.createProject(t, "P1", personID)

	var statuses []StatusResponse
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/statuses", nil, http.StatusOK, &statuses)
	require.Len(t, statuses, 1)
	created := statuses[0].ID

	var taskRes CommandResponse
	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/tasks", CreateTaskRequest{Title: "write docs", StatusID: created}, http.StatusCreated, &taskRes)
	taskID := taskRes.ID
	require.NotEmpty(t, taskID)
	assert.Equal(t, []any{}, taskRes.Events[0].Payload["assignees"])

	code := srv.errorCode(t, http.MethodPost, "/projects/"+projectID+"/tasks/"+taskID+"/status", UpdateTaskStatusRequest{StatusID: "missing"}, http.StatusBadRequest)
	assert.Equal(t, "unknown_status", code)

	var statusRes CommandResponse
	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/statuses", CreateStatusRequest{Name: "DONE", Color: "#00aa00"}, http.StatusCreated, &statusRes)
	done := statusRes.ID
	require.Len(t, statusRes.Events, 2)

	srv.decode(t, http.MethodPatch, "/projects/"+projectID+"/statuses", UpdateStatusOrderRequest{OrderedStatuses: []string{done, created}}, http.StatusOK, nil)
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/statuses", nil, http.StatusOK, &statuses)
	require.Len(t, statuses, 2)
	assert.Equal(t, done, statuses[0].ID)
	assert.Equal(t, created, statuses[1].ID)

	code = srv.errorCode(t, http.MethodDelete, "/projects/"+projectID+"/statuses/"+created, nil, http.StatusBadRequest)
	assert.Equal(t, "status_in_use", code)

	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/tasks/"+taskID+"/status", UpdateTaskStatusRequest{StatusID: done}, http.StatusOK, nil)
	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/tasks/"+taskID+"/name", RenameTaskRequest{Title: "write more docs"}, http.StatusOK, nil)
	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/tasks/"+taskID+"/assignees", AssignMemberRequest{MemberID: personID}, http.StatusOK, nil)
	code = srv.errorCode(t, http.MethodPost, "/projects/"+projectID+"/tasks/"+taskID+"/assignees", AssignMemberRequest{MemberID: personID}, http.StatusBadRequest)
	assert.Equal(t, "already_assigned", code)

	var task TaskResponse
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/tasks/"+taskID, nil, http.StatusOK, &task)
	assert.Equal(t, "write more docs", task.Title)
	assert.Equal(t, done, task.StatusID)
	assert.Equal(t, []string{personID}, task.Assignees)

	var taskStatus StatusResponse
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/tasks/"+taskID+"/status", nil, http.StatusOK, &taskStatus)
	assert.Equal(t, "DONE", taskStatus.Name)

	var byStatus []TaskResponse
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/tasks/by_status?statusId="+done, nil, http.StatusOK, &byStatus)
	assert.Len(t, byStatus, 1)

	var deleted CommandResponse
	srv.decode(t, http.MethodDelete, "/projects/"+projectID+"/statuses/"+created, nil, http.StatusOK, &deleted)
	require.Len(t, deleted.Events, 2)
	assert.Equal(t, "STATUS_DELETED_EVENT", deleted.Events[0].Type)
	assert.Equal(t, "STATUSES_UPDATED_EVENT", deleted.Events[1].Type)

	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/statuses", nil, http.StatusOK, &statuses)
	require.Len(t, statuses, 1)
	assert.Equal(t, done, statuses[0].ID)

	var tasks []TaskResponse
	srv.decode(t, http.MethodGet, "/projects/tasks/all", nil, http.StatusOK, &tasks)
	assert.Len(t, tasks, 1)
}

func TestAddMember(t *testing.T) {
	srv := newTestServer(t)
	ada := srv.signup(t, "ada")
	bob := srv.signup(t, "bob")
	projectID := srv.createProject(t, "P1", ada)

	var res CommandResponse
	srv.decode(t, http.MethodPost, "/projects/"+projectID+"/members", AddMemberRequest{PersonID: bob}, http.StatusOK, &res)
	assert.Equal(t, bob, res.ID)

	code := srv.errorCode(t, http.MethodPost, "/projects/"+projectID+"/members", AddMemberRequest{PersonID: bob}, http.StatusBadRequest)
	assert.Equal(t, "already_member", code)
	code = srv.errorCode(t, http.MethodPost, "/projects/"+projectID+"/members", AddMemberRequest{PersonID: "ghost"}, http.StatusBadRequest)
	assert.Equal(t, "missing_profile", code)

	var members []MemberResponse
	srv.decode(t, http.MethodGet, "/projects/"+projectID+"/members", nil, http.StatusOK, &members)
	assert.Len(t, members, 2)
}

func TestNotFoundAndValidation(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, "not_found", srv.errorCode(t, http.MethodGet, "/projects/nope", nil, http.StatusNotFound))
	assert.Equal(t, "not_found", srv.errorCode(t, http.MethodGet, "/users/get?username=nobody", nil, http.StatusNotFound))
	assert.Equal(t, "not_found", srv.errorCode(t, http.MethodPost, "/projects/nope/tasks", CreateTaskRequest{Title: "t", StatusID: "s"}, http.StatusBadRequest))

	res, data := srv.do(t, http.MethodPost, "/projects", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestActorIdentity(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodPost, "/users/signup", SignupRequest{
		Username: "ada", FirstName: "A", MiddleName: "B", LastName: "C", Password: "x",
	}, map[string]string{"X-Actor-Id": "cli"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var cmd CommandResponse
	require.NoError(t, json.Unmarshal(data, &cmd))
	assert.Equal(t, "cli", cmd.Events[0].ActorID)

	token, err := auth.IssueToken(testSecret, "ada", time.Hour, time.Now())
	require.NoError(t, err)
	res, data = srv.do(t, http.MethodPost, "/projects", CreateProjectRequest{Title: "P", CreatorPersonID: cmd.ID},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &cmd))
	assert.Equal(t, "ada", cmd.Events[0].ActorID)

	res, _ = srv.do(t, http.MethodGet, "/projects/all", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestEventsTail(t *testing.T) {
	srv := newTestServer(t)
	personID := srv.signup(t, "ada")
	srv.createProject(t, "P1", personID)

	var page paginatedEvents
	srv.decode(t, http.MethodGet, "/events?limit=2", nil, http.StatusOK, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "USER_CREATED_EVENT", page.Items[0].Type)
	assert.NotContains(t, page.Items[0].Payload, "password")
	assert.Equal(t, int64(2), page.NextAfter)

	srv.decode(t, http.MethodGet, "/events?after=2", nil, http.StatusOK, &page)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "PROJECT_CREATED_EVENT", page.Items[0].Type)
	assert.Zero(t, page.NextAfter)
}

func TestHealthMetricsAndOpenAPI(t *testing.T) {
	srv := newTestServer(t)
	res, _ := srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	srv.signup(t, "ada")
	res, data := srv.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "taskline_engine_commands_total")

	res, data = srv.do(t, http.MethodGet, "/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v0/projects/{projectId}/statuses")
}
