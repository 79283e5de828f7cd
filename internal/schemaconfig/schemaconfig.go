// Package schemaconfig reads the optional declarative schema-override file
// named by the CLI's --schema-config flag (SPEC_FULL.md §6), adapted from
// the teacher's internal/parser/toml: the same "decode TOML into a small
// intermediate struct, then convert" shape, narrowed to the §3 descriptor
// (columns/unique/non_null/primary_keys/foreign_keys) instead of full DDL.
package schemaconfig

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"etm/internal/schema"
)

// file is the top-level TOML document: a list of table overrides.
//
//	[[tables]]
//	name = "emp"
//	columns = ["id", "name", "dept_id"]
//	primary_keys = ["id"]
//	non_null = ["name"]
//	unique = ["id"]
//	[tables.foreign_keys]
//	dept_id = "dept.id"
type file struct {
	Tables []tomlTable `toml:"tables"`
}

type tomlTable struct {
	Name        string            `toml:"name"`
	Columns     []string          `toml:"columns"`
	PrimaryKeys []string          `toml:"primary_keys"`
	Unique      []string          `toml:"unique"`
	NonNull     []string          `toml:"non_null"`
	ForeignKeys map[string]string `toml:"foreign_keys"`
}

// Load parses the TOML file at path into a schema.Database.
func Load(path string) (*schema.Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schemaconfig: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads TOML content from r and returns the corresponding schema.Database.
func Parse(r io.Reader) (*schema.Database, error) {
	var doc file
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schemaconfig: decode: %w", err)
	}
	return convert(&doc), nil
}

func convert(doc *file) *schema.Database {
	db := schema.NewDatabase()
	for _, tt := range doc.Tables {
		t := schema.NewTable(tt.Name, tt.Columns)
		for _, c := range tt.PrimaryKeys {
			t.MarkPrimaryKey(c)
		}
		for _, c := range tt.Unique {
			t.MarkUnique(c)
		}
		for _, c := range tt.NonNull {
			t.MarkNonNull(c)
		}
		for col, ref := range tt.ForeignKeys {
			t.SetForeignKey(col, ref)
		}
		db.AddTable(t)
	}
	return db
}

// Merge overlays override on top of base, adding any table/fact override
// names that base lacks and setting any fact override marks on tables base
// already has. base may be nil, in which case a clone of override is
// returned - the --db introspection result and the --schema-config file are
// optional independently (SPEC_FULL.md §6).
func Merge(base, override *schema.Database) *schema.Database {
	if base == nil {
		return override.Clone()
	}
	if override == nil {
		return base.Clone()
	}
	out := base.Clone()
	for name, ot := range override.Tables {
		bt, ok := out.Table(name)
		if !ok {
			out.AddTable(ot)
			continue
		}
		mergeFacts(bt, ot)
	}
	return out
}

func mergeFacts(dst, src *schema.Table) {
	for _, c := range src.Columns {
		if src.IsPrimaryKey(c) {
			dst.MarkPrimaryKey(c)
		}
		if src.IsUnique(c) {
			dst.MarkUnique(c)
		}
		if src.IsNonNull(c) {
			dst.MarkNonNull(c)
		}
		if ref, ok := src.ForeignKey(c); ok {
			dst.SetForeignKey(c, ref)
		}
	}
}
