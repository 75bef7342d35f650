// Package person holds the Person aggregate, the profile that project
// membership is derived from.
package person

import (
	"encoding/json"
	"fmt"

	"taskline/internal/domain"
)

const TypePersonCreated domain.EventType = "PERSON_CREATED_EVENT"

var Types = []domain.EventType{TypePersonCreated}

type Event interface {
	domain.Event
	isPersonEvent()
}

type PersonCreated struct {
	PersonID   string `json:"personId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	UserID     string `json:"userId"`
}

func (PersonCreated) EventType() domain.EventType { return TypePersonCreated }
func (PersonCreated) isPersonEvent()              {}

func Decode(t domain.EventType, data []byte) (Event, error) {
	switch t {
	case TypePersonCreated:
		var evt PersonCreated
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("unknown person event type %q", t)
	}
}

type State interface {
	isState()
}

type Uninitialized struct{}

type Active struct {
	Person domain.Person
}

func (Uninitialized) isState() {}
func (Active) isState()        {}

func Replay(events []Event) (State, error) {
	var s State = Uninitialized{}
	for _, evt := range events {
		next, err := Fold(s, evt)
		if err != nil {
			return nil, err
		}
		s = next
	}
	return s, nil
}

func Fold(s State, e Event) (State, error) {
	switch evt := e.(type) {
	case PersonCreated:
		if _, ok := s.(Uninitialized); !ok {
			return nil, fmt.Errorf("%w: %s on existing person", domain.ErrCorruptHistory, evt.EventType())
		}
		return Active{Person: domain.Person{
			ID:         evt.PersonID,
			Username:   evt.Username,
			FirstName:  evt.FirstName,
			MiddleName: evt.MiddleName,
			LastName:   evt.LastName,
			UserID:     evt.UserID,
		}}, nil
	default:
		return nil, fmt.Errorf("unhandled person event %T", e)
	}
}

// Create records the profile of an existing user.
func Create(s State, personID string, u domain.User) (PersonCreated, error) {
	if _, ok := s.(Active); ok {
		return PersonCreated{}, fmt.Errorf("person %s: %w", personID, domain.ErrAlreadyExists)
	}
	if u.Username == "" {
		return PersonCreated{}, fmt.Errorf("%w: username required", domain.ErrMissingProfile)
	}
	if u.FirstName == "" || u.MiddleName == "" || u.LastName == "" {
		return PersonCreated{}, fmt.Errorf("%w: first, middle and last name required", domain.ErrMissingProfile)
	}
	return PersonCreated{
		PersonID:   personID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
		UserID:     u.Username,
	}, nil
}

// Profile returns the person behind s, or ErrMissingProfile when it was never created.
func Profile(s State) (domain.Person, error) {
	active, ok := s.(Active)
	if !ok {
		return domain.Person{}, domain.ErrMissingProfile
	}
	return active.Person, nil
}
