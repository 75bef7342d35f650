package tasklinesdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/logging"
	"taskline/internal/server"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Engine.BcryptCost = 4
	a, err := app.Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err)
	a.Projector.Logger = logging.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Projector.Run(ctx)
	}()

	handler, err := server.New(server.Config{
		Engine:            a.Engine,
		Repo:              a.Repo,
		Projector:         a.Projector,
		Auth:              server.AuthConfig{AllowActorHeader: true},
		WaitForProjection: true,
		ProjectionTimeout: 5 * time.Second,
		Logger:            logging.Nop(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		a.Close()
	})
	c := New(ts.URL)
	c.ActorID = "sdk"
	return c
}

func TestClientWorkflow(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	require.NoError(t, c.Health(ctx))

	signup, err := c.Signup(ctx, Signup{Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "Lovelace", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, signup.Events, 2)
	assert.Equal(t, "sdk", signup.Events[0].ActorID)

	person, err := c.GetPerson(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, signup.ID, person.ID)
	assert.Equal(t, "ada", person.UserID)

	created, err := c.CreateProject(ctx, "P1", person.ID)
	require.NoError(t, err)
	projectID := created.ID

	statuses, err := c.ListStatuses(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	todo := statuses[0].ID

	st, err := c.CreateStatus(ctx, projectID, "DONE", "")
	require.NoError(t, err)
	done := st.ID

	_, err = c.UpdateStatusOrder(ctx, projectID, []string{done, todo})
	require.NoError(t, err)
	statuses, err = c.ListStatuses(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{done, todo}, []string{statuses[0].ID, statuses[1].ID})
	assert.Equal(t, "#000000", statuses[0].Color)

	task, err := c.CreateTask(ctx, projectID, "write", todo, nil)
	require.NoError(t, err)
	_, err = c.AssignMember(ctx, projectID, task.ID, person.ID)
	require.NoError(t, err)
	_, err = c.UpdateTaskStatus(ctx, projectID, task.ID, done)
	require.NoError(t, err)
	_, err = c.RenameTask(ctx, projectID, task.ID, "write more")
	require.NoError(t, err)

	got, err := c.GetTask(ctx, projectID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write more", got.Title)
	assert.Equal(t, []string{person.ID}, got.Assignees)

	status, err := c.GetTaskStatus(ctx, projectID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "DONE", status.Name)

	byStatus, err := c.ListTasksByStatus(ctx, projectID, done)
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = c.DeleteStatus(ctx, projectID, todo)
	require.NoError(t, err)

	p, err := c.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, p.Statuses, 1)
	assert.Len(t, p.Tasks, 1)
	assert.Len(t, p.Members, 1)

	page, err := c.EventsPage(ctx, 0, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, page.Items)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.GetProject(ctx, "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = c.CreateProject(ctx, "P", "ghost")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing_profile", apiErr.Code)
}
