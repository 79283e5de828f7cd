package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"etm/internal/introspect"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE dept (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE emp (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			dept_id INTEGER REFERENCES dept(id)
		)
	`)
	require.NoError(t, err)
	return db
}

func TestIntrospect(t *testing.T) {
	db := openTestDB(t)
	ic, err := introspect.New(introspect.DialectSQLite)
	require.NoError(t, err)

	got, err := ic.Introspect(context.Background(), db)
	require.NoError(t, err)

	emp, ok := got.Table("emp")
	require.True(t, ok)
	require.True(t, emp.IsPrimaryKey("id"))
	require.True(t, emp.IsNonNull("name"))
	require.True(t, emp.IsUnique("name"))
	ref, ok := emp.ForeignKey("dept_id")
	require.True(t, ok)
	require.Equal(t, "dept.id", ref)

	dept, ok := got.Table("dept")
	require.True(t, ok)
	require.True(t, dept.IsPrimaryKey("id"))
	require.True(t, dept.IsNonNull("name"))
}
