package rewrite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etm/internal/ast"
	"etm/internal/rewrite"
	"etm/internal/rules"
	"etm/internal/schema"
)

func empTable() *schema.Database {
	db := schema.NewDatabase()
	emp := schema.NewTable("emp", []string{"id", "name"})
	emp.MarkPrimaryKey("id")
	emp.MarkNonNull("name")
	db.AddTable(emp)
	return db
}

func col(table, name string) *ast.Column {
	return &ast.Column{This: &ast.Identifier{This: name}, Table: &ast.Identifier{This: table}}
}

func TestDriverRunsRuleSetToFixedPoint(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{col("emp", "name")},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
		Where: &ast.Where{This: &ast.Between{
			This: col("emp", "id"),
			Low:  &ast.Literal{This: "1"},
			High: &ast.Literal{This: "10"},
		}},
	}
	driver := rewrite.New(empTable(), []int{22})
	out := driver.Apply(ast.Clone(tree))

	sel, ok := out.(*ast.Select)
	require.True(t, ok)
	where, ok := sel.Where.(*ast.Where)
	require.True(t, ok)
	assert.IsType(t, &ast.And{}, where.This)
}

func TestDriverEmptyRuleSetIsNoOp(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{col("emp", "name")},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
		Where:       &ast.Where{This: &ast.EQ{This: col("emp", "id"), Expression: &ast.Literal{This: "1"}}},
	}
	driver := rewrite.New(empTable(), nil)
	out := driver.Apply(ast.Clone(tree))
	assert.True(t, ast.Equal(tree, out))
}

func TestDriverTraceRecordsAppliedRules(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{col("emp", "name")},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
		Where: &ast.Where{This: &ast.Between{
			This: col("emp", "id"),
			Low:  &ast.Literal{This: "1"},
			High: &ast.Literal{This: "10"},
		}},
	}
	driver := rewrite.New(empTable(), []int{22})
	var lines []string
	driver.Trace = func(s string) { lines = append(lines, s) }
	driver.Apply(tree)
	assert.Contains(t, lines, "Applied Rule 22")
}

func TestDriverCollapsesIdenticalUnionArms(t *testing.T) {
	arm := func() *ast.Select {
		return &ast.Select{
			Expressions: []ast.Node{col("emp", "name")},
			From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
		}
	}
	u := &ast.Union{This: arm(), Expression: arm()}
	driver := rewrite.New(empTable(), rules.SetOperationRuleIDs())
	out := driver.Apply(u)
	assert.IsType(t, &ast.Select{}, out)
}
