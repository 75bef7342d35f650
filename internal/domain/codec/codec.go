// Package codec is the single mapping between stored event records and the
// typed events of each aggregate.
package codec

import (
	"encoding/json"
	"fmt"

	"taskline/internal/domain"
	"taskline/internal/domain/person"
	"taskline/internal/domain/project"
	"taskline/internal/domain/user"
)

// Decode returns the typed event for a stored aggregate type and event type.
func Decode(aggregateType string, t domain.EventType, data []byte) (domain.Event, error) {
	switch aggregateType {
	case domain.AggregateProject:
		evt, err := project.Decode(t, data)
		if err != nil {
			return nil, err
		}
		return evt, nil
	case domain.AggregateUser:
		evt, err := user.Decode(t, data)
		if err != nil {
			return nil, err
		}
		return evt, nil
	case domain.AggregatePerson:
		evt, err := person.Decode(t, data)
		if err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("unknown aggregate type %q", aggregateType)
	}
}

// AggregateType returns the aggregate an event belongs to.
func AggregateType(e domain.Event) (string, error) {
	switch e.(type) {
	case project.Event:
		return domain.AggregateProject, nil
	case user.Event:
		return domain.AggregateUser, nil
	case person.Event:
		return domain.AggregatePerson, nil
	default:
		return "", fmt.Errorf("event %T belongs to no aggregate", e)
	}
}

func Encode(e domain.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

// Types lists every known event type per aggregate type.
func Types() map[string][]domain.EventType {
	return map[string][]domain.EventType{
		domain.AggregateProject: project.Types,
		domain.AggregateUser:    user.Types,
		domain.AggregatePerson:  person.Types,
	}
}
