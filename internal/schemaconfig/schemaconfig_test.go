package schemaconfig_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etm/internal/schema"
	"etm/internal/schemaconfig"
)

const sampleTOML = `
[[tables]]
name = "emp"
columns = ["id", "name", "dept_id"]
primary_keys = ["id"]
non_null = ["name"]

[tables.foreign_keys]
dept_id = "dept.id"
`

func TestParse(t *testing.T) {
	db, err := schemaconfig.Parse(strings.NewReader(sampleTOML))
	require.NoError(t, err)

	emp, ok := db.Table("emp")
	require.True(t, ok)
	assert.True(t, emp.IsPrimaryKey("id"))
	assert.True(t, emp.IsNonNull("name"))
	ref, ok := emp.ForeignKey("dept_id")
	require.True(t, ok)
	assert.Equal(t, "dept.id", ref)
}

func TestMergeAddsOverrideFactsOntoIntrospectedTable(t *testing.T) {
	base := schema.NewDatabase()
	emp := schema.NewTable("emp", []string{"id", "name", "dept_id"})
	emp.MarkPrimaryKey("id")
	base.AddTable(emp)

	override, err := schemaconfig.Parse(strings.NewReader(sampleTOML))
	require.NoError(t, err)

	merged := schemaconfig.Merge(base, override)
	mergedEmp, ok := merged.Table("emp")
	require.True(t, ok)
	assert.True(t, mergedEmp.IsPrimaryKey("id"))
	assert.True(t, mergedEmp.IsNonNull("name"))
	ref, ok := mergedEmp.ForeignKey("dept_id")
	require.True(t, ok)
	assert.Equal(t, "dept.id", ref)
}

func TestMergeWithNilBaseClonesOverride(t *testing.T) {
	override, err := schemaconfig.Parse(strings.NewReader(sampleTOML))
	require.NoError(t, err)
	merged := schemaconfig.Merge(nil, override)
	_, ok := merged.Table("emp")
	assert.True(t, ok)
}
