// Package repo reads and writes the denormalized read-model tables maintained
// by the projector.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskline/internal/db"
	"taskline/internal/domain"
)

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

// ProjectSummary is a row of the project list.
type ProjectSummary struct {
	ID    string `json:"projectId"`
	Title string `json:"title"`
}

// TaskFilters narrows ListTasks; empty fields are ignored.
type TaskFilters struct {
	ProjectID string
	StatusID  string
	TaskID    string
}

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

func (r Repo) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title FROM projects ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	return scanProjectSummaries(rows)
}

// ListProjectsByPerson returns the projects the person is a member of.
func (r Repo) ListProjectsByPerson(ctx context.Context, personID string) ([]ProjectSummary, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT p.id,p.title FROM projects p JOIN project_members m ON m.project_id=p.id WHERE m.member_id=? ORDER BY p.title, p.id`), personID)
	if err != nil {
		return nil, err
	}
	return scanProjectSummaries(rows)
}

func scanProjectSummaries(rows *sql.Rows) ([]ProjectSummary, error) {
	defer rows.Close()
	res := []ProjectSummary{}
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Title); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) projectExists(ctx context.Context, id string) error {
	var one int
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT 1 FROM projects WHERE id=?`), id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// GetProject assembles the full project view from its tables.
func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id,title FROM projects WHERE id=?`), id).Scan(&p.ID, &p.Title)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if p.Members, err = r.ListMembers(ctx, id); err != nil {
		return p, err
	}
	if p.Statuses, err = r.ListStatuses(ctx, id); err != nil {
		return p, err
	}
	if p.Tasks, err = r.ListTasks(ctx, TaskFilters{ProjectID: id}); err != nil {
		return p, err
	}
	return p, nil
}

func (r Repo) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	if err := r.projectExists(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT member_id,username,first_name,middle_name,last_name FROM project_members WHERE project_id=? ORDER BY username`), projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.FirstName, &m.MiddleName, &m.LastName); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListStatuses returns the project statuses in display order.
func (r Repo) ListStatuses(ctx context.Context, projectID string) ([]domain.Status, error) {
	if err := r.projectExists(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,project_id,name,color FROM statuses WHERE project_id=? ORDER BY position`), projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Status{}
	for rows.Next() {
		var s domain.Status
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Color); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetStatus(ctx context.Context, projectID, statusID string) (domain.Status, error) {
	var s domain.Status
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id,project_id,name,color FROM statuses WHERE project_id=? AND id=?`), projectID, statusID).
		Scan(&s.ID, &s.ProjectID, &s.Name, &s.Color)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListAllTasks(ctx context.Context) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{})
}

func (r Repo) ListTasksByStatus(ctx context.Context, projectID, statusID string) ([]domain.Task, error) {
	if err := r.projectExists(ctx, projectID); err != nil {
		return nil, err
	}
	return r.ListTasks(ctx, TaskFilters{ProjectID: projectID, StatusID: statusID})
}

// ListTasks returns tasks in creation order with their assignees.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.StatusID != "" {
		clauses = append(clauses, "t.status_id=?")
		args = append(args, f.StatusID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "t.id=?")
		args = append(args, f.TaskID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT t.id,t.project_id,t.title,t.status_id FROM tasks t`+where+` ORDER BY t.seq`), args...)
	if err != nil {
		return nil, err
	}
	res := []domain.Task{}
	for rows.Next() {
		t := domain.Task{Assignees: []string{}}
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.StatusID); err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(res) == 0 {
		return res, nil
	}

	// assignees are read after the task cursor is closed: sqlite runs on a single connection
	arows, err := r.DB.QueryContext(ctx, r.q(`SELECT a.task_id,a.member_id FROM task_assignees a JOIN tasks t ON t.id=a.task_id`+where+` ORDER BY a.seq`), args...)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	assignees := map[string][]string{}
	for arows.Next() {
		var taskID, memberID string
		if err := arows.Scan(&taskID, &memberID); err != nil {
			return nil, err
		}
		assignees[taskID] = append(assignees[taskID], memberID)
	}
	for i := range res {
		if a, ok := assignees[res[i].ID]; ok {
			res[i].Assignees = a
		}
	}
	return res, arows.Err()
}

func (r Repo) GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error) {
	tasks, err := r.ListTasks(ctx, TaskFilters{ProjectID: projectID, TaskID: taskID})
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, ErrNotFound
	}
	return tasks[0], nil
}

// GetTaskStatus returns the status the task currently sits in.
func (r Repo) GetTaskStatus(ctx context.Context, projectID, taskID string) (domain.Status, error) {
	t, err := r.GetTask(ctx, projectID, taskID)
	if err != nil {
		return domain.Status{}, err
	}
	return r.GetStatus(ctx, projectID, t.StatusID)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT username,first_name,middle_name,last_name FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.FirstName, &u.MiddleName, &u.LastName); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// GetUserByUsername returns the user including the stored password hash.
func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT username,first_name,middle_name,last_name,password_hash FROM users WHERE username=?`), username).
		Scan(&u.Username, &u.FirstName, &u.MiddleName, &u.LastName, &u.Password)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	return r.getPerson(ctx, `id=?`, id)
}

func (r Repo) GetPersonByUsername(ctx context.Context, username string) (domain.Person, error) {
	return r.getPerson(ctx, `username=?`, username)
}

func (r Repo) getPerson(ctx context.Context, clause, arg string) (domain.Person, error) {
	var p domain.Person
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id,username,first_name,middle_name,last_name,user_id FROM persons WHERE `+clause), arg).
		Scan(&p.ID, &p.Username, &p.FirstName, &p.MiddleName, &p.LastName, &p.UserID)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// Cursor returns the stored position of a subscriber, 0 when it never ran.
func (r Repo) Cursor(ctx context.Context, name string) (int64, error) {
	var pos int64
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT position FROM subscriber_cursors WHERE name=?`), name).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return pos, err
}
