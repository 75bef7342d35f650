package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/domain"
)

var ada = domain.Member{ID: "m1", Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "Lovelace"}

// apply decides and folds in one go, failing the test on any error.
func apply[E Event](t *testing.T, s State, decide func(State) (E, error)) State {
	t.Helper()
	evt, err := decide(s)
	require.NoError(t, err)
	next, err := Fold(s, evt)
	require.NoError(t, err)
	return next
}

func newProject(t *testing.T) State {
	t.Helper()
	s := apply(t, Uninitialized{}, func(s State) (ProjectCreated, error) { return Create(s, "p1", "P1") })
	s = apply(t, s, func(s State) (StatusCreated, error) { return CreateStatus(s, "s1", "", "") })
	return apply(t, s, func(s State) (MemberCreated, error) { return AddMember(s, ada) })
}

func current(t *testing.T, s State) domain.Project {
	t.Helper()
	p, err := Current(s)
	require.NoError(t, err)
	return p
}

func TestCreateProject(t *testing.T) {
	s := newProject(t)
	p := current(t, s)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "P1", p.Title)
	require.Len(t, p.Statuses, 1)
	assert.Equal(t, domain.Status{ID: "s1", ProjectID: "p1", Name: "CREATED", Color: "#000000"}, p.Statuses[0])
	assert.Equal(t, []domain.Member{ada}, p.Members)

	_, err := Create(s, "p1", "again")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCommandsRejectUninitialized(t *testing.T) {
	s := Uninitialized{}
	_, err := CreateStatus(s, "s", "", "")
	assert.ErrorIs(t, err, domain.ErrUninitialized)
	_, err = CreateTask(s, "t", "x", "s", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = RenameTask(s, "t", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = AddMember(s, ada)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = Discard(s, "why")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTask(t *testing.T) {
	s := newProject(t)

	_, err := CreateTask(s, "t1", "write", "nope", nil)
	require.ErrorIs(t, err, domain.ErrUnknownStatus)

	evt, err := CreateTask(s, "t1", "write", "s1", []string{"m1", "m1", "m9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m9"}, evt.Assignees)

	s, err = Fold(s, evt)
	require.NoError(t, err)
	p := current(t, s)
	require.Len(t, p.Tasks, 1)
	assert.Equal(t, domain.Task{ID: "t1", ProjectID: "p1", Title: "write", StatusID: "s1", Assignees: []string{"m1", "m9"}}, p.Tasks[0])
}

func TestAssignMember(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (TaskCreated, error) { return CreateTask(s, "t1", "write", "s1", nil) })

	_, err := AssignMember(s, "t1", "stranger")
	require.ErrorIs(t, err, domain.ErrUnknownMember)
	_, err = AssignMember(s, "t9", "m1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	s = apply(t, s, func(s State) (MemberAssigned, error) { return AssignMember(s, "t1", "m1") })
	assert.Equal(t, []string{"m1"}, current(t, s).Tasks[0].Assignees)

	_, err = AssignMember(s, "t1", "m1")
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
}

func TestUpdateTaskStatusAndRename(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (StatusCreated, error) { return CreateStatus(s, "s2", "DONE", "#00ff00") })
	s = apply(t, s, func(s State) (TaskCreated, error) { return CreateTask(s, "t1", "write", "s1", nil) })

	_, err := UpdateTaskStatus(s, "t1", "nope")
	require.ErrorIs(t, err, domain.ErrUnknownStatus)
	_, err = UpdateTaskStatus(s, "t9", "s2")
	require.ErrorIs(t, err, domain.ErrNotFound)

	s = apply(t, s, func(s State) (TaskStatusUpdated, error) { return UpdateTaskStatus(s, "t1", "s2") })
	s = apply(t, s, func(s State) (TaskRenamed, error) { return RenameTask(s, "t1", "write more") })
	task := current(t, s).Tasks[0]
	assert.Equal(t, "s2", task.StatusID)
	assert.Equal(t, "write more", task.Title)
}

func TestUpdateStatusOrder(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (StatusCreated, error) { return CreateStatus(s, "s2", "DOING", "") })
	s = apply(t, s, func(s State) (StatusCreated, error) { return CreateStatus(s, "s3", "DONE", "") })

	for name, order := range map[string][]string{
		"short":     {"s1", "s2"},
		"unknown":   {"s1", "s2", "s9"},
		"duplicate": {"s1", "s1", "s2"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UpdateStatusOrder(s, order)
			require.ErrorIs(t, err, domain.ErrUnknownStatus)
		})
	}

	s = apply(t, s, func(s State) (StatusesUpdated, error) { return UpdateStatusOrder(s, []string{"s3", "s1", "s2"}) })
	assert.Equal(t, []string{"s3", "s1", "s2"}, current(t, s).StatusIDs())
}

func TestDeleteStatus(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (StatusCreated, error) { return CreateStatus(s, "s2", "DONE", "") })
	s = apply(t, s, func(s State) (TaskCreated, error) { return CreateTask(s, "t1", "write", "s1", nil) })

	_, err := DeleteStatus(s, "s1")
	require.ErrorIs(t, err, domain.ErrStatusInUse)
	_, err = DeleteStatus(s, "s9")
	require.ErrorIs(t, err, domain.ErrNotFound)

	s = apply(t, s, func(s State) (StatusDeleted, error) { return DeleteStatus(s, "s2") })
	assert.Equal(t, []string{"s1"}, current(t, s).StatusIDs())
}

func TestAddMember(t *testing.T) {
	s := newProject(t)

	_, err := AddMember(s, ada)
	require.ErrorIs(t, err, domain.ErrAlreadyMember)
	_, err = AddMember(s, domain.Member{ID: "m2", Username: "ada", FirstName: "A", MiddleName: "B", LastName: "C"})
	require.ErrorIs(t, err, domain.ErrAlreadyMember)
	_, err = AddMember(s, domain.Member{ID: "m2", Username: "bob", FirstName: "Bob"})
	require.ErrorIs(t, err, domain.ErrMissingProfile)

	bob := domain.Member{ID: "m2", Username: "bob", FirstName: "Bob", MiddleName: "J", LastName: "Smith"}
	s = apply(t, s, func(s State) (MemberCreated, error) { return AddMember(s, bob) })
	assert.Equal(t, []domain.Member{ada, bob}, current(t, s).Members)
}

func TestDiscard(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (ProjectDiscarded, error) { return Discard(s, "failed") })
	_, ok := s.(Discarded)
	require.True(t, ok)

	_, err := Current(s)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = CreateTask(s, "t1", "x", "s1", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFoldDoesNotMutateInput(t *testing.T) {
	s := newProject(t)
	s = apply(t, s, func(s State) (TaskCreated, error) { return CreateTask(s, "t1", "write", "s1", nil) })
	before := current(t, s)

	_, err := Fold(s, MemberAssigned{TaskID: "t1", MemberID: "m1"})
	require.NoError(t, err)
	_, err = Fold(s, StatusesUpdated{OrderedStatuses: []string{"s1"}})
	require.NoError(t, err)
	_, err = Fold(s, TaskRenamed{TaskID: "t1", Title: "changed"})
	require.NoError(t, err)

	assert.Equal(t, before, current(t, s))
}

func TestReplay(t *testing.T) {
	history := []Event{
		ProjectCreated{ProjectID: "p1", Title: "P1"},
		StatusCreated{StatusID: "s1", ProjectID: "p1", Name: "CREATED", Color: "#000000"},
		MemberCreated{MemberID: "m1", Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "Lovelace"},
		StatusCreated{StatusID: "s2", ProjectID: "p1", Name: "DONE", Color: "#000000"},
		StatusesUpdated{OrderedStatuses: []string{"s2", "s1"}},
		TaskCreated{TaskID: "t1", ProjectID: "p1", Title: "write", StatusID: "s1"},
		MemberAssigned{TaskID: "t1", MemberID: "m1"},
		TaskStatusUpdated{TaskID: "t1", StatusID: "s2"},
		StatusDeleted{StatusID: "s1"},
	}
	first, err := Replay(history)
	require.NoError(t, err)
	second, err := Replay(history)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p := current(t, first)
	assert.Equal(t, []string{"s2"}, p.StatusIDs())
	assert.Equal(t, "s2", p.Tasks[0].StatusID)
	assert.Equal(t, []string{"m1"}, p.Tasks[0].Assignees)
}

func TestReplayRejectsCorruptHistory(t *testing.T) {
	_, err := Replay([]Event{TaskCreated{TaskID: "t1"}})
	require.ErrorIs(t, err, domain.ErrCorruptHistory)

	_, err = Replay([]Event{
		ProjectCreated{ProjectID: "p1"},
		ProjectCreated{ProjectID: "p1"},
	})
	require.ErrorIs(t, err, domain.ErrCorruptHistory)

	_, err = Replay([]Event{
		ProjectCreated{ProjectID: "p1"},
		TaskRenamed{TaskID: "missing", Title: "x"},
	})
	require.ErrorIs(t, err, domain.ErrCorruptHistory)
	assert.False(t, domain.IsDomainError(err))

	_, err = Replay([]Event{
		ProjectCreated{ProjectID: "p1"},
		StatusCreated{StatusID: "s1", ProjectID: "p1", Name: "CREATED"},
		StatusDeleted{StatusID: "s2"},
	})
	require.ErrorIs(t, err, domain.ErrCorruptHistory)
}

func TestDecode(t *testing.T) {
	evt, err := Decode(TypeStatusesUpdated, []byte(`{"orderedStatuses":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, StatusesUpdated{OrderedStatuses: []string{"a", "b"}}, evt)

	_, err = Decode("SOMETHING_ELSE", []byte(`{}`))
	require.Error(t, err)
	_, err = Decode(TypeTaskCreated, []byte(`{`))
	require.Error(t, err)
}
