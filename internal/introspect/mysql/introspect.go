// Package mysql introspects a live MySQL/MariaDB/TiDB INFORMATION_SCHEMA
// into a schema.Database, adapted from the teacher's
// introspectTables/introspectColumns/introspectIndexes trio - same
// information_schema.{tables,columns,statistics} queries, narrowed to the
// §3 descriptor (columns, primary_keys, unique, non_null, foreign_keys)
// instead of full column/index/engine metadata.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"etm/internal/introspect"
	"etm/internal/schema"
)

func init() {
	introspect.Register(introspect.DialectMySQL, New)
}

type introspecter struct{}

func New() introspect.Introspecter {
	return &introspecter{}
}

func (i *introspecter) Introspect(ctx context.Context, db *sql.DB) (*schema.Database, error) {
	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}

	out := schema.NewDatabase()
	for _, name := range names {
		t, err := introspectTable(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("mysql: table %q: %w", name, err)
		}
		out.AddTable(t)
	}
	return out, nil
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
	`)
	if err != nil {
		return nil, err
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

func introspectTable(ctx context.Context, db *sql.DB, name string) (*schema.Table, error) {
	cols, nonNull, err := introspectColumns(ctx, db, name)
	if err != nil {
		return nil, err
	}
	t := schema.NewTable(name, cols)
	for _, c := range nonNull {
		t.MarkNonNull(c)
	}

	pk, unique, err := introspectKeys(ctx, db, name)
	if err != nil {
		return nil, err
	}
	for _, c := range pk {
		t.MarkPrimaryKey(c)
	}
	for _, c := range unique {
		t.MarkUnique(c)
	}

	fks, err := introspectForeignKeys(ctx, db, name)
	if err != nil {
		return nil, err
	}
	for col, ref := range fks {
		t.SetForeignKey(col, ref)
	}
	return t, nil
}

func introspectColumns(ctx context.Context, db *sql.DB, table string) (cols, nonNull []string, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, nullable string
		if err := rows.Scan(&name, &nullable); err != nil {
			return nil, nil, err
		}
		cols = append(cols, name)
		if nullable == "NO" {
			nonNull = append(nonNull, name)
		}
	}
	return cols, nonNull, rows.Err()
}

// introspectKeys reads information_schema.statistics, grouping by index to
// find the primary key and every other single-column unique index - the
// schema's uniqueness fact is per column, so, like the teacher's
// introspectIndexes, only single-column keys are kept (a multi-column
// primary key is not recorded).
func introspectKeys(ctx context.Context, db *sql.DB, table string) (pk, unique []string, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT index_name, non_unique, column_name, seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index
	`, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type indexCols struct {
		nonUnique bool
		cols      []string
	}
	byIndex := map[string]*indexCols{}
	var order []string
	for rows.Next() {
		var indexName, colName string
		var nonUnique int
		var seq int
		if err := rows.Scan(&indexName, &nonUnique, &colName, &seq); err != nil {
			return nil, nil, err
		}
		ic, ok := byIndex[indexName]
		if !ok {
			ic = &indexCols{nonUnique: nonUnique != 0}
			byIndex[indexName] = ic
			order = append(order, indexName)
		}
		ic.cols = append(ic.cols, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, name := range order {
		ic := byIndex[name]
		if ic.nonUnique || len(ic.cols) != 1 {
			continue
		}
		if name == "PRIMARY" {
			pk = append(pk, ic.cols[0])
		} else {
			unique = append(unique, ic.cols[0])
		}
	}
	return pk, unique, nil
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var col, refTable, refCol string
		if err := rows.Scan(&col, &refTable, &refCol); err != nil {
			return nil, err
		}
		out[col] = refTable + "." + refCol
	}
	return out, rows.Err()
}
