package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "books", "reviews"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_ReviewPairUnique(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))

	_, err = db.Exec(`INSERT INTO users (id, username, password_hash) VALUES ('u1', 'alice', 'x')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (id, title, author, genre) VALUES ('b1', 'Dune', 'Herbert', 'SciFi')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO reviews (id, book_id, user_id, rating, comment) VALUES ('r1', 'b1', 'u1', 5, 'great')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO reviews (id, book_id, user_id, rating, comment) VALUES ('r2', 'b1', 'u1', 3, 'meh')`)
	require.Error(t, err, "second review for the same (book, user) pair must violate the unique constraint")
}
