// Package sqlite introspects a SQLite database file into a schema.Database
// using modernc.org/sqlite (pure Go, no cgo), per SPEC_FULL.md §6's
// <db>/<db_name>/<db_name>.sqlite contract.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"etm/internal/introspect"
	"etm/internal/schema"
)

func init() {
	introspect.Register(introspect.DialectSQLite, New)
}

type sqliteIntrospecter struct{}

func New() introspect.Introspecter {
	return &sqliteIntrospecter{}
}

func (i *sqliteIntrospecter) Introspect(ctx context.Context, db *sql.DB) (*schema.Database, error) {
	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	out := schema.NewDatabase()
	for _, name := range names {
		t, err := introspectTable(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: table %q: %w", name, err)
		}
		out.AddTable(t)
	}
	return out, nil
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// introspectTable reads one table's columns, primary key, and NOT NULL
// constraints from PRAGMA table_info, its unique indexes from PRAGMA
// index_list/index_info, and its foreign keys from PRAGMA foreign_key_list -
// the three pragmas the original get_schema() used via sqlite3's own
// cursor.description/PRAGMA calls, reimplemented as real SQL here instead of
// the Python driver-level introspection.
func introspectTable(ctx context.Context, db *sql.DB, name string) (*schema.Table, error) {
	cols, pk, nonNull, err := tableInfo(ctx, db, name)
	if err != nil {
		return nil, err
	}

	t := schema.NewTable(name, cols)
	for _, c := range pk {
		t.MarkPrimaryKey(c)
	}
	for _, c := range nonNull {
		t.MarkNonNull(c)
	}

	uniqueCols, err := uniqueColumns(ctx, db, name)
	if err != nil {
		return nil, err
	}
	for _, c := range uniqueCols {
		t.MarkUnique(c)
	}

	fks, err := foreignKeys(ctx, db, name)
	if err != nil {
		return nil, err
	}
	for col, ref := range fks {
		t.SetForeignKey(col, ref)
	}

	return t, nil
}

func tableInfo(ctx context.Context, db *sql.DB, table string) (cols, pk, nonNull []string, err error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("table_info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pkIndex int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pkIndex); err != nil {
			return nil, nil, nil, err
		}
		cols = append(cols, name)
		if notNull != 0 {
			nonNull = append(nonNull, name)
		}
		if pkIndex != 0 {
			pk = append(pk, name)
		}
	}
	return cols, pk, nonNull, rows.Err()
}

func uniqueColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("index_list: %w", err)
	}
	defer rows.Close()

	var indexNames []string
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		if unique != 0 && partial == 0 {
			indexNames = append(indexNames, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var cols []string
	for _, idx := range indexNames {
		single, err := singleColumnIndex(ctx, db, idx)
		if err != nil {
			return nil, err
		}
		if single != "" {
			cols = append(cols, single)
		}
	}
	return cols, nil
}

// singleColumnIndex returns the indexed column name if the index covers
// exactly one column - the schema's uniqueness fact is per column, so only
// single-column keys contribute it - and "" otherwise.
func singleColumnIndex(ctx context.Context, db *sql.DB, index string) (string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return "", fmt.Errorf("index_info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return "", err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(cols) == 1 {
		return cols[0], nil
	}
	return "", nil
}

func foreignKeys(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		out[from] = refTable + "." + to
	}
	return out, rows.Err()
}
