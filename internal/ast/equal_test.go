package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"etm/internal/ast"
)

func TestEqualStructural(t *testing.T) {
	a := &ast.EQ{
		This:       &ast.Column{This: &ast.Identifier{This: "id"}, Table: &ast.Identifier{This: "emp"}},
		Expression: &ast.Literal{This: "1", IsString: false},
	}
	b := &ast.EQ{
		This:       &ast.Column{This: &ast.Identifier{This: "id"}, Table: &ast.Identifier{This: "emp"}},
		Expression: &ast.Literal{This: "1", IsString: false},
	}
	assert.True(t, ast.Equal(a, b))

	c := &ast.EQ{
		This:       &ast.Column{This: &ast.Identifier{This: "id"}, Table: &ast.Identifier{This: "emp"}},
		Expression: &ast.Literal{This: "2", IsString: false},
	}
	assert.False(t, ast.Equal(a, c))
}

func TestEqualNilHandling(t *testing.T) {
	assert.True(t, ast.Equal(nil, nil))
	assert.False(t, ast.Equal(nil, &ast.Star{}))
	assert.False(t, ast.Equal(&ast.Star{}, nil))
}

func TestSortNodesIsDeterministicAcrossPermutations(t *testing.T) {
	a := &ast.Literal{This: "1"}
	b := &ast.Literal{This: "2"}
	c := &ast.Column{This: &ast.Identifier{This: "x"}}

	orderings := [][]ast.Node{
		{a, b, c},
		{c, a, b},
		{b, c, a},
	}
	var sorted [][]ast.Node
	for _, o := range orderings {
		cp := append([]ast.Node(nil), o...)
		ast.SortNodes(cp)
		sorted = append(sorted, cp)
	}
	want := &ast.Anonymous{This: "x", Expressions: sorted[0]}
	for _, s := range sorted[1:] {
		got := &ast.Anonymous{This: "x", Expressions: s}
		assert.True(t, ast.Equal(want, got))
	}
}
