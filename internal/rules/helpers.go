// Package rules is the canonicalization and semantic rule library: one
// function per rule number from spec.md §4.1, each grounded directly on the
// corresponding ruleNNN function of the original treeMatch.py. Every rule has
// the shape func(*ast.Select, *schema.Database) *ast.Select and is expected
// to be idempotent - the driver in package rewrite runs the whole set to a
// fixed point.
package rules

import (
	"strconv"
	"strings"

	"etm/internal/ast"
)

// ColumnParts exposes columnParts for package rewrite's set-operation rules
// (3, 5), which need the same "is this a table-qualified column" check the
// per-Select rules use.
func ColumnParts(n ast.Node) (table, name string, ok bool) {
	return columnParts(n)
}

// columnParts returns the table and column name of a Column node, and
// whether both were resolvable (i.e. the column carries an explicit table).
func columnParts(n ast.Node) (table, name string, ok bool) {
	col, isCol := n.(*ast.Column)
	if !isCol || col.Table == nil || col.This == nil {
		return "", "", false
	}
	tbl, isTbl := col.Table.(*ast.Identifier)
	id, isID := col.This.(*ast.Identifier)
	if !isTbl || !isID {
		return "", "", false
	}
	return tbl.This, id.This, true
}

func isStarColumn(n ast.Node) bool {
	col, ok := n.(*ast.Column)
	if !ok {
		return false
	}
	_, ok = col.This.(*ast.Star)
	return ok
}

func tableName(n ast.Node) (string, bool) {
	tbl, ok := n.(*ast.Table)
	if !ok {
		return "", false
	}
	id, ok := tbl.This.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return id.This, true
}

// selectTables returns the FROM table plus every joined table of tree, in
// order, skipping subqueries.
func selectTables(tree *ast.Select) []*ast.Table {
	var out []*ast.Table
	if from, ok := tree.From.(*ast.From); ok {
		if t, ok := from.This.(*ast.Table); ok {
			out = append(out, t)
		}
	}
	for _, j := range tree.Joins {
		join, ok := j.(*ast.Join)
		if !ok {
			continue
		}
		if t, ok := join.This.(*ast.Table); ok {
			out = append(out, t)
		}
	}
	return out
}

func isLiteralTrue(n ast.Node) bool {
	eq, ok := n.(*ast.EQ)
	if !ok {
		return false
	}
	lit, ok := eq.This.(*ast.Literal)
	if !ok || lit.This != literalOneTrue {
		return false
	}
	return ast.Equal(eq.This, eq.Expression)
}

func literalFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatFloat mimics Python's str(float(x)): always carries a decimal point,
// e.g. 150 -> "150.0", matching the literal spelling rule12/rule16 produce.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func trimTrailingDotZero(s string) string {
	if strings.HasSuffix(s, ".0") {
		return s[:len(s)-2]
	}
	return s
}

// flattenAnd collects the leaves of a left/right-nested chain of And nodes.
func flattenAnd(n ast.Node) []ast.Node {
	and, ok := n.(*ast.And)
	if !ok {
		return []ast.Node{n}
	}
	return append(flattenAnd(and.This), flattenAnd(and.Expression)...)
}

// buildAnd rebuilds a left-associative And chain from a non-empty list.
func buildAnd(nodes []ast.Node) ast.Node {
	result := nodes[0]
	for _, n := range nodes[1:] {
		result = &ast.And{This: result, Expression: n}
	}
	return result
}

func oneLiteral(tree string) *ast.Literal {
	return &ast.Literal{This: tree, IsString: false}
}

const literalOneTrue = "1.0"

func trueEQ() ast.Node {
	return &ast.EQ{This: oneLiteral(literalOneTrue), Expression: oneLiteral(literalOneTrue)}
}
