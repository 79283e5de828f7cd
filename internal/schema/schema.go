// Package schema is the adapted descendant of the teacher's core.Database:
// the same "per-database, per-table metadata" idea, narrowed to exactly
// what the rewrite engine's semantic rules read (spec.md §3) instead of
// full DDL (engine/charset/index options have no equivalence-rule reader
// and were dropped, see DESIGN.md).
package schema

import "strings"

// Database is a read-only-by-convention collection of table descriptors,
// keyed by lowercased table name to match rule 100's lowercasing pass.
type Database struct {
	Tables map[string]*Table
}

// Table is the §3 schema descriptor for one table.
type Table struct {
	Name    string
	Columns []string

	unique      map[string]bool
	nonNull     map[string]bool
	primaryKeys map[string]bool
	foreignKeys map[string]string // local column -> "table.column"
}

func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:        name,
		Columns:     append([]string(nil), columns...),
		unique:      map[string]bool{},
		nonNull:     map[string]bool{},
		primaryKeys: map[string]bool{},
		foreignKeys: map[string]string{},
	}
}

func (t *Table) MarkUnique(col string)     { t.unique[col] = true }
func (t *Table) MarkNonNull(col string)    { t.nonNull[col] = true }
func (t *Table) MarkPrimaryKey(col string) { t.primaryKeys[col] = true; t.unique[col] = true; t.nonNull[col] = true }
func (t *Table) SetForeignKey(col, refTableCol string) { t.foreignKeys[col] = refTableCol }

func (t *Table) IsUnique(col string) bool  { return t.unique[col] }
func (t *Table) IsNonNull(col string) bool { return t.nonNull[col] }
func (t *Table) IsPrimaryKey(col string) bool { return t.primaryKeys[col] }

// PrimaryKeyColumns returns the table's primary key columns; len > 1 means
// the key is composite (rule 14 requires a non-composite key).
func (t *Table) PrimaryKeyColumns() []string {
	var out []string
	for c := range t.primaryKeys {
		out = append(out, c)
	}
	return out
}

// ForeignKey returns the "table.column" the given local column references,
// and whether it is a foreign key at all.
func (t *Table) ForeignKey(col string) (string, bool) {
	ref, ok := t.foreignKeys[col]
	return ref, ok
}

func NewDatabase() *Database {
	return &Database{Tables: map[string]*Table{}}
}

func (d *Database) AddTable(t *Table) {
	d.Tables[strings.ToLower(t.Name)] = t
}

func (d *Database) Table(name string) (*Table, bool) {
	t, ok := d.Tables[name]
	return t, ok
}

// Clone returns a deep copy. spec.md §3 invariant I2/§4.1.2 rule 19: rule 19
// mutates unique/non_null sets, and that mutation must stay local to a
// single top-level comparison — callers clone once per oracle.Compare call.
func (d *Database) Clone() *Database {
	out := NewDatabase()
	for name, t := range d.Tables {
		nt := NewTable(t.Name, t.Columns)
		for c := range t.unique {
			nt.unique[c] = true
		}
		for c := range t.nonNull {
			nt.nonNull[c] = true
		}
		for c := range t.primaryKeys {
			nt.primaryKeys[c] = true
		}
		for c, ref := range t.foreignKeys {
			nt.foreignKeys[c] = ref
		}
		out.Tables[name] = nt
	}
	return out
}
