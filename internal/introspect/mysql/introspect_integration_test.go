package mysql

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"etm/internal/introspect"
)

func TestIntrospectIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))

	_, err = db.ExecContext(ctx, `
		CREATE TABLE dept (
			id INT PRIMARY KEY,
			name VARCHAR(100) NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE emp (
			id INT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			dept_id INT,
			UNIQUE KEY emp_name_uk (name),
			FOREIGN KEY (dept_id) REFERENCES dept(id)
		)
	`)
	require.NoError(t, err)

	ic, err := introspect.New(introspect.DialectMySQL)
	require.NoError(t, err)

	got, err := ic.Introspect(ctx, db)
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
