package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateUser_UniqueConstraint(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	u := User{ID: "u1", Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(t.Context(), u))

	// same username, different id: the constraint itself must reject it,
	// this is what settles concurrent signups
	dup := User{ID: "u2", Username: "alice", PasswordHash: "hash2"}
	err := repo.CreateUser(t.Context(), dup)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUsernameTaken))
}

func TestGetByUsername_Missing(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	u, err := repo.GetByUsername(t.Context(), "nobody")
	require.NoError(t, err)
	require.Nil(t, u)
}
