package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskline/internal/domain"
)

func TestCreate(t *testing.T) {
	evt, err := Create(Uninitialized{}, "ada", "Ada", "K", "Lovelace", "hash", "")
	require.NoError(t, err)

	s, err := Fold(Uninitialized{}, evt)
	require.NoError(t, err)
	active, ok := s.(Active)
	require.True(t, ok)
	assert.Equal(t, domain.User{Username: "ada", FirstName: "Ada", MiddleName: "K", LastName: "Lovelace", Password: "hash"}, active.User)

	_, err = Create(s, "ada", "Ada", "K", "Lovelace", "hash", "")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestCreateRejectsNameKnownToReadModel(t *testing.T) {
	_, err := Create(Uninitialized{}, "ada", "Ada", "K", "Lovelace", "hash", "ada")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestReplay(t *testing.T) {
	s, err := Replay(nil)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized{}, s)

	_, err = Replay([]Event{UserCreated{Username: "ada"}, UserCreated{Username: "ada"}})
	require.ErrorIs(t, err, domain.ErrCorruptHistory)
}

func TestDecode(t *testing.T) {
	evt, err := Decode(TypeUserCreated, []byte(`{"username":"ada","password":"h"}`))
	require.NoError(t, err)
	assert.Equal(t, UserCreated{Username: "ada", Password: "h"}, evt)

	_, err = Decode("PERSON_CREATED_EVENT", []byte(`{}`))
	require.Error(t, err)
}
