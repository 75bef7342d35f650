// Package user holds the User aggregate. The aggregate id is the username,
// so a second creation for the same name is rejected by replay alone.
package user

import (
	"encoding/json"
	"fmt"

	"taskline/internal/domain"
)

const TypeUserCreated domain.EventType = "USER_CREATED_EVENT"

var Types = []domain.EventType{TypeUserCreated}

type Event interface {
	domain.Event
	isUserEvent()
}

type UserCreated struct {
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Password   string `json:"password"`
}

func (UserCreated) EventType() domain.EventType { return TypeUserCreated }
func (UserCreated) isUserEvent()                {}

func Decode(t domain.EventType, data []byte) (Event, error) {
	switch t {
	case TypeUserCreated:
		var evt UserCreated
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("unknown user event type %q", t)
	}
}

type State interface {
	isState()
}

type Uninitialized struct{}

type Active struct {
	User domain.User
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
	case UserCreated:
		if _, ok := s.(Uninitialized); !ok {
			return nil, fmt.Errorf("%w: %s on existing user", domain.ErrCorruptHistory, evt.EventType())
		}
		return Active{User: domain.User{
			Username:   evt.Username,
			FirstName:  evt.FirstName,
			MiddleName: evt.MiddleName,
			LastName:   evt.LastName,
			Password:   evt.Password,
		}}, nil
	default:
		return nil, fmt.Errorf("unhandled user event %T", e)
	}
}

// Create registers a user. existingUsername is the result of the caller's
// lookup in the read model; a non-empty value rejects the command, as does an
// already active aggregate.
func Create(s State, username, firstName, middleName, lastName, password, existingUsername string) (UserCreated, error) {
	if existingUsername != "" {
		return UserCreated{}, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, existingUsername)
	}
	if _, ok := s.(Active); ok {
		return UserCreated{}, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, username)
	}
	return UserCreated{
		Username:   username,
		FirstName:  firstName,
		MiddleName: middleName,
		LastName:   lastName,
		Password:   password,
	}, nil
}
