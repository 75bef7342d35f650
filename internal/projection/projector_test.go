package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/logging"
	"taskline/internal/projection"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.BcryptCost = 4
	a, err := app.Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	a.Projector.Logger = logging.Nop()
	a.Engine.Logger = logging.Nop()
	return a
}

// seed signs up ada, creates a project with one extra status and one task.
func seed(t *testing.T, a *app.App) domain.Project {
	t.Helper()
	ctx := context.Background()
	recs, err := a.Engine.Signup(ctx, engine.SignupOptions{Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "Lovelace", Password: "pw"})
	require.NoError(t, err)
	personID := recs[1].AggregateID

	recs, err = a.Engine.CreateProject(ctx, engine.ProjectCreateOptions{Title: "P1", CreatorPersonID: personID})
	require.NoError(t, err)
	projectID := recs[0].AggregateID

	_, err = a.Engine.CreateStatus(ctx, engine.StatusCreateOptions{ProjectID: projectID, Name: "DONE", Color: "#00ff00"})
	require.NoError(t, err)
	p, err := a.Engine.Project(ctx, projectID)
	require.NoError(t, err)
	_, err = a.Engine.CreateTask(ctx, engine.TaskCreateOptions{ProjectID: projectID, Title: "write", StatusID: p.Statuses[1].ID, Assignees: []string{personID}})
	require.NoError(t, err)

	p, err = a.Engine.Project(ctx, projectID)
	require.NoError(t, err)
	return p
}

func TestCatchUpBuildsReadModel(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	want := seed(t, a)

	n, err := a.Projector.CatchUp(ctx)
	require.NoError(t, err)
	head, err := a.Store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(head), n)

	pos, err := a.Projector.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, pos)

	got, err := a.Repo.GetProject(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	users, err := a.Repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Username)

	person, err := a.Repo.GetPersonByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, want.Members[0].ID, person.ID)

	n, err = a.Projector.CatchUp(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	want := seed(t, a)
	_, err := a.Projector.CatchUp(ctx)
	require.NoError(t, err)

	tx, err := a.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, a.Repo.SetCursorTx(ctx, tx, a.Projector.Name, 0))
	require.NoError(t, tx.Commit())

	again := projection.New(a.Store, a.Repo)
	again.Name = a.Projector.Name
	again.Logger = logging.Nop()
	_, err = again.CatchUp(ctx)
	require.NoError(t, err)

	got, err := a.Repo.GetProject(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	want := seed(t, a)
	_, err := a.Projector.CatchUp(ctx)
	require.NoError(t, err)

	_, err = a.Engine.DeleteStatus(ctx, want.ID, want.Statuses[0].ID, "")
	require.NoError(t, err)
	n, err := a.Projector.Rebuild(ctx)
	require.NoError(t, err)
	head, err := a.Store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(head), n)

	got, err := a.Repo.GetProject(ctx, want.ID)
	require.NoError(t, err)
	require.Len(t, got.Statuses, 1)
	assert.Equal(t, "DONE", got.Statuses[0].Name)
}

func TestRejectedProjectLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Engine.CreateProject(ctx, engine.ProjectCreateOptions{Title: "P1", CreatorPersonID: "ghost"})
	require.ErrorIs(t, err, domain.ErrMissingProfile)

	_, err = a.Projector.CatchUp(ctx)
	require.NoError(t, err)
	projects, err := a.Repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestWaitFor(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	seed(t, a)
	head, err := a.Store.Head(ctx)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Projector.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitCtx, cancelWait := context.WithTimeout(ctx, 5*time.Second)
	defer cancelWait()
	require.NoError(t, a.Projector.WaitFor(waitCtx, head))

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	err = a.Projector.WaitFor(short, head+100)
	require.ErrorIs(t, err, projection.ErrProjectionTimeout)
}
