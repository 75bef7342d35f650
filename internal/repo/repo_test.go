package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/migrate"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Memory: true})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, db.SQLite))
	return Repo{DB: conn, Dialect: db.SQLite}
}

func inTx(t *testing.T, r Repo, fn func(ctx context.Context, tx *sql.Tx) error) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	if err := fn(ctx, tx); err != nil {
		tx.Rollback()
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

func seedProject(t *testing.T, r Repo) {
	t.Helper()
	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		steps := []func() error{
			func() error { return r.InsertProjectTx(ctx, tx, "p1", "P1") },
			func() error {
				return r.InsertStatusTx(ctx, tx, domain.Status{ID: "s1", ProjectID: "p1", Name: "CREATED", Color: "#000000"})
			},
			func() error {
				return r.InsertStatusTx(ctx, tx, domain.Status{ID: "s2", ProjectID: "p1", Name: "DONE", Color: "#000000"})
			},
			func() error {
				return r.InsertMemberTx(ctx, tx, "p1", domain.Member{ID: "m1", Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "L"})
			},
			func() error {
				return r.InsertTaskTx(ctx, tx, domain.Task{ID: "t1", ProjectID: "p1", Title: "a", StatusID: "s1", Assignees: []string{"m1"}}, 5)
			},
			func() error {
				return r.InsertTaskTx(ctx, tx, domain.Task{ID: "t2", ProjectID: "p1", Title: "b", StatusID: "s2"}, 6)
			},
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestProjectQueries(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r)
	seedProject(t, r)

	projects, err := r.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ProjectSummary{{ID: "p1", Title: "P1"}}, projects)

	p, err := r.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, p.StatusIDs())
	require.Len(t, p.Tasks, 2)
	assert.Equal(t, []string{"m1"}, p.Tasks[0].Assignees)
	assert.Equal(t, []string{}, p.Tasks[1].Assignees)

	byPerson, err := r.ListProjectsByPerson(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, byPerson, 1)

	_, err = r.GetProject(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.ListStatuses(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskQueries(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r)

	done, err := r.ListTasksByStatus(ctx, "p1", "s2")
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "t2", done[0].ID)

	status, err := r.GetTaskStatus(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "CREATED", status.Name)

	_, err = r.GetTask(ctx, "p1", "t9")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := r.ListAllTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStatusReorderAndDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r)

	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		return r.ReorderStatusesTx(ctx, tx, "p1", []string{"s2", "s1"})
	})
	statuses, err := r.ListStatuses(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s2", statuses[0].ID)

	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		return r.DeleteStatusTx(ctx, tx, "p1", "s2")
	})
	statuses, err = r.ListStatuses(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "s1", statuses[0].ID)
}

func TestDeleteProjectAndReset(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r)
	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.SetCursorTx(ctx, tx, "read-model", 9); err != nil {
			return err
		}
		return r.DeleteProjectTx(ctx, tx, "p1")
	})
	_, err := r.GetProject(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)
	tasks, err := r.ListAllTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	pos, err := r.Cursor(ctx, "read-model")
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		return r.ResetTx(ctx, tx, "read-model")
	})
	pos, err = r.Cursor(ctx, "read-model")
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestUsersAndPersons(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	inTx(t, r, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.InsertUserTx(ctx, tx, domain.User{Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "L", Password: "hash"}); err != nil {
			return err
		}
		return r.InsertPersonTx(ctx, tx, domain.Person{ID: "pp1", Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "L", UserID: "ada"})
	})

	u, err := r.GetUserByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
	_, err = r.GetUserByUsername(ctx, "bob")
	require.ErrorIs(t, err, ErrNotFound)

	p, err := r.GetPersonByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "pp1", p.ID)
	p, err = r.GetPerson(ctx, "pp1")
	require.NoError(t, err)
	assert.Equal(t, "ada", p.UserID)
}
