package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskline/internal/domain"
)

// The Tx methods below are used by the projector. Each one is idempotent so a
// redelivered event leaves the tables unchanged.

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, id, title string) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO projects(id,title) VALUES (?,?) ON CONFLICT(id) DO NOTHING`), id, title)
	return err
}

// DeleteProjectTx removes a project and every row that hangs off it.
func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	stmts := []string{
		`DELETE FROM task_assignees WHERE task_id IN (SELECT id FROM tasks WHERE project_id=?)`,
		`DELETE FROM tasks WHERE project_id=?`,
		`DELETE FROM statuses WHERE project_id=?`,
		`DELETE FROM project_members WHERE project_id=?`,
		`DELETE FROM projects WHERE id=?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, r.q(stmt), id); err != nil {
			return fmt.Errorf("delete project %s: %w", id, err)
		}
	}
	return nil
}

func (r Repo) InsertMemberTx(ctx context.Context, tx *sql.Tx, projectID string, m domain.Member) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO project_members(project_id,member_id,username,first_name,middle_name,last_name) VALUES (?,?,?,?,?,?)
ON CONFLICT(project_id,member_id) DO NOTHING`), projectID, m.ID, m.Username, m.FirstName, m.MiddleName, m.LastName)
	return err
}

// InsertStatusTx appends a status after the current last one.
func (r Repo) InsertStatusTx(ctx context.Context, tx *sql.Tx, s domain.Status) error {
	var next int64
	if err := tx.QueryRowContext(ctx, r.q(`SELECT COALESCE(MAX(position),-1)+1 FROM statuses WHERE project_id=?`), s.ProjectID).Scan(&next); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO statuses(id,project_id,name,color,position) VALUES (?,?,?,?,?) ON CONFLICT(id) DO NOTHING`),
		s.ID, s.ProjectID, s.Name, s.Color, next)
	return err
}

func (r Repo) DeleteStatusTx(ctx context.Context, tx *sql.Tx, projectID, statusID string) error {
	_, err := tx.ExecContext(ctx, r.q(`DELETE FROM statuses WHERE project_id=? AND id=?`), projectID, statusID)
	return err
}

// ReorderStatusesTx stores ids as the new order of the project statuses.
func (r Repo) ReorderStatusesTx(ctx context.Context, tx *sql.Tx, projectID string, ids []string) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, r.q(`UPDATE statuses SET position=? WHERE project_id=? AND id=?`), i, projectID, id); err != nil {
			return err
		}
	}
	return nil
}

// InsertTaskTx stores a task; seq is the log position of its creation event.
func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task, seq int64) error {
	if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO tasks(id,project_id,title,status_id,seq) VALUES (?,?,?,?,?) ON CONFLICT(id) DO NOTHING`),
		t.ID, t.ProjectID, t.Title, t.StatusID, seq); err != nil {
		return err
	}
	for i, memberID := range t.Assignees {
		if err := r.InsertAssigneeTx(ctx, tx, t.ID, memberID, seq*1000+int64(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) RenameTaskTx(ctx context.Context, tx *sql.Tx, taskID, title string) error {
	_, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET title=? WHERE id=?`), title, taskID)
	return err
}

func (r Repo) UpdateTaskStatusTx(ctx context.Context, tx *sql.Tx, taskID, statusID string) error {
	_, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET status_id=? WHERE id=?`), statusID, taskID)
	return err
}

func (r Repo) InsertAssigneeTx(ctx context.Context, tx *sql.Tx, taskID, memberID string, seq int64) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO task_assignees(task_id,member_id,seq) VALUES (?,?,?) ON CONFLICT(task_id,member_id) DO NOTHING`),
		taskID, memberID, seq)
	return err
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO users(username,first_name,middle_name,last_name,password_hash) VALUES (?,?,?,?,?) ON CONFLICT(username) DO NOTHING`),
		u.Username, u.FirstName, u.MiddleName, u.LastName, u.Password)
	return err
}

func (r Repo) InsertPersonTx(ctx context.Context, tx *sql.Tx, p domain.Person) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO persons(id,username,first_name,middle_name,last_name,user_id) VALUES (?,?,?,?,?,?) ON CONFLICT(id) DO NOTHING`),
		p.ID, p.Username, p.FirstName, p.MiddleName, p.LastName, p.UserID)
	return err
}

func (r Repo) SetCursorTx(ctx context.Context, tx *sql.Tx, name string, position int64) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO subscriber_cursors(name,position,updated_at) VALUES (?,?,?)
ON CONFLICT(name) DO UPDATE SET position=excluded.position, updated_at=excluded.updated_at`),
		name, position, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ResetTx empties every read table and the subscriber cursor.
func (r Repo) ResetTx(ctx context.Context, tx *sql.Tx, subscriber string) error {
	for _, table := range []string{"task_assignees", "tasks", "statuses", "project_members", "projects", "persons", "users"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	_, err := tx.ExecContext(ctx, r.q(`DELETE FROM subscriber_cursors WHERE name=?`), subscriber)
	return err
}
