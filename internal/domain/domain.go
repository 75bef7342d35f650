package domain

// Aggregate types stored alongside every event.
const (
	AggregateProject = "project"
	AggregateUser    = "user"
	AggregatePerson  = "person"
)

// Defaults applied to the status every new project starts with.
const (
	DefaultStatusName  = "CREATED"
	DefaultStatusColor = "#000000"
)

// EventType is the wire name of an event, e.g. "PROJECT_CREATED_EVENT".
type EventType string

// Event is implemented by every event payload of every aggregate.
type Event interface {
	EventType() EventType
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

// HasAssignee reports whether memberID is already assigned to the task.
func (t Task) HasAssignee(memberID string) bool {
	for _, id := range t.Assignees {
		if id == memberID {
			return true
		}
	}
	return false
}

// Project is the aggregate root for statuses, tasks and membership.
// Statuses are kept in display order.
type Project struct {
	ID       string   `json:"projectId"`
	Title    string   `json:"title"`
	Members  []Member `json:"members"`
	Tasks    []Task   `json:"tasks"`
	Statuses []Status `json:"statuses"`
}

func (p Project) StatusIndex(id string) int {
	for i, s := range p.Statuses {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (p Project) TaskIndex(id string) int {
	for i, t := range p.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (p Project) MemberIndex(id string) int {
	for i, m := range p.Members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// StatusIDs returns the ids of the project statuses in order.
func (p Project) StatusIDs() []string {
	ids := make([]string, 0, len(p.Statuses))
	for _, s := range p.Statuses {
		ids = append(ids, s.ID)
	}
	return ids
}

// Clone returns a deep copy so folds never mutate a previous state.
func (p Project) Clone() Project {
	out := Project{
		ID:       p.ID,
		Title:    p.Title,
		Members:  append(make([]Member, 0, len(p.Members)), p.Members...),
		Statuses: append(make([]Status, 0, len(p.Statuses)), p.Statuses...),
		Tasks:    make([]Task, 0, len(p.Tasks)),
	}
	for _, t := range p.Tasks {
		t.Assignees = append(make([]string, 0, len(t.Assignees)), t.Assignees...)
		out.Tasks = append(out.Tasks, t)
	}
	return out
}

type User struct {
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Password   string `json:"-"`
}

// Person is the profile of a user; project members are created from it.
type Person struct {
	ID         string `json:"personId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	UserID     string `json:"userId"`
}

// Member returns the membership record for the person.
func (p Person) Member() Member {
	return Member{
		ID:         p.ID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		MiddleName: p.MiddleName,
		LastName:   p.LastName,
	}
}
