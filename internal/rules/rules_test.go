package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"etm/internal/ast"
	"etm/internal/rules"
	"etm/internal/schema"
)

func empTable() *schema.Database {
	db := schema.NewDatabase()
	emp := schema.NewTable("emp", []string{"id", "name", "dept_id"})
	emp.MarkPrimaryKey("id")
	emp.MarkNonNull("name")
	db.AddTable(emp)
	return db
}

func col(table, name string) *ast.Column {
	return &ast.Column{This: &ast.Identifier{This: name}, Table: &ast.Identifier{This: table}}
}

func TestRule22BetweenToGTEAndLTE(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{col("emp", "name")},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
		Where: &ast.Where{This: &ast.Between{
			This: col("emp", "id"),
			Low:  &ast.Literal{This: "1"},
			High: &ast.Literal{This: "10"},
		}},
	}
	out := rules.Rule22(tree, empTable())
	where, ok := out.Where.(*ast.Where)
	assert.True(t, ok)
	and, ok := where.This.(*ast.And)
	assert.True(t, ok)
	assert.IsType(t, &ast.GTE{}, and.This)
	assert.IsType(t, &ast.LTE{}, and.Expression)
}

func TestRule6CountColumnToCountStarWhenNonNull(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{&ast.Count{This: col("emp", "name")}},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
	}
	out := rules.Rule6(tree, empTable())
	count, ok := out.Expressions[0].(*ast.Count)
	assert.True(t, ok)
	_, isStar := count.This.(*ast.Star)
	assert.True(t, isStar)
}

func TestRule6LeavesNullableColumnAlone(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{&ast.Count{This: col("emp", "dept_id")}},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
	}
	out := rules.Rule6(tree, empTable())
	count, ok := out.Expressions[0].(*ast.Count)
	assert.True(t, ok)
	_, isStar := count.This.(*ast.Star)
	assert.False(t, isStar)
}

func TestRule105SortsEQOperandsDeterministically(t *testing.T) {
	a := &ast.And{
		This:       &ast.EQ{This: col("emp", "dept_id"), Expression: &ast.Literal{This: "2"}},
		Expression: &ast.EQ{This: col("emp", "id"), Expression: &ast.Literal{This: "1"}},
	}
	b := &ast.And{
		This:       &ast.EQ{This: col("emp", "id"), Expression: &ast.Literal{This: "1"}},
		Expression: &ast.EQ{This: col("emp", "dept_id"), Expression: &ast.Literal{This: "2"}},
	}
	treeA := &ast.Select{Expressions: []ast.Node{col("emp", "name")}, Where: &ast.Where{This: a}}
	treeB := &ast.Select{Expressions: []ast.Node{col("emp", "name")}, Where: &ast.Where{This: b}}

	outA := rules.Rule105(treeA, empTable())
	outB := rules.Rule105(treeB, empTable())
	assert.True(t, ast.Equal(outA, outB))
}

func TestRule8CastSumDivCountToAvgWhenNonNull(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{&ast.Div{
			This: &ast.Cast{
				This: &ast.Sum{This: col("emp", "name")},
				To:   &ast.DataType{This: "float"},
			},
			Expression: &ast.Count{This: &ast.Star{}},
		}},
		From: &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
	}
	out := rules.Rule8(tree, empTable())
	avg, ok := out.Expressions[0].(*ast.Avg)
	assert.True(t, ok)
	assert.True(t, ast.Equal(avg.This, col("emp", "name")))
}

func TestRule8LeavesNullableColumnAlone(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{&ast.Div{
			This: &ast.Cast{
				This: &ast.Sum{This: col("emp", "dept_id")},
				To:   &ast.DataType{This: "float"},
			},
			Expression: &ast.Count{This: &ast.Star{}},
		}},
		From: &ast.From{This: &ast.Table{This: &ast.Identifier{This: "emp"}}},
	}
	out := rules.Rule8(tree, empTable())
	_, ok := out.Expressions[0].(*ast.Avg)
	assert.False(t, ok)
}

func TestRule108UnquotesIdentifiers(t *testing.T) {
	tree := &ast.Select{
		Expressions: []ast.Node{&ast.Column{This: &ast.Identifier{This: "name", Quoted: true}}},
	}
	out := rules.Rule108(tree, empTable())
	id := out.Expressions[0].(*ast.Column).This.(*ast.Identifier)
	assert.False(t, id.Quoted)
}
