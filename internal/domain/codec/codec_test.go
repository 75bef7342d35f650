package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/domain"
	"taskline/internal/domain/person"
	"taskline/internal/domain/project"
	"taskline/internal/domain/user"
)

func TestDecodeEveryType(t *testing.T) {
	for aggregateType, types := range Types() {
		for _, et := range types {
			t.Run(aggregateType+"/"+string(et), func(t *testing.T) {
				evt, err := Decode(aggregateType, et, []byte(`{}`))
				require.NoError(t, err)
				assert.Equal(t, et, evt.EventType())

				got, err := AggregateType(evt)
				require.NoError(t, err)
				assert.Equal(t, aggregateType, got)
			})
		}
	}
}

func TestDecodeRejectsMismatch(t *testing.T) {
	_, err := Decode(domain.AggregateUser, project.TypeTaskCreated, []byte(`{}`))
	require.Error(t, err)
	_, err = Decode("order", user.TypeUserCreated, []byte(`{}`))
	require.Error(t, err)
}

func TestEncode(t *testing.T) {
	data, err := Encode(project.StatusesUpdated{OrderedStatuses: []string{"a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderedStatuses":["a"]}`, string(data))

	data, err = Encode(person.PersonCreated{PersonID: "p1", Username: "ada"})
	require.NoError(t, err)
	evt, err := Decode(domain.AggregatePerson, person.TypePersonCreated, data)
	require.NoError(t, err)
	assert.Equal(t, person.PersonCreated{PersonID: "p1", Username: "ada"}, evt)
}
