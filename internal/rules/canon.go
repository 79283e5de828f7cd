package rules

import (
	"etm/internal/ast"
	"etm/internal/schema"
)

// Rule100 lowercases every identifier, function name, and data-type name in
// the tree. Grounded on rule100 of treeMatch.py. Literal string contents are
// untouched - sqlglot's rule100 skips Literal nodes for the same reason.
func Rule100(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, ast.Lowercase)
	return out.(*ast.Select)
}

// Rule101 fills in the table qualifier of an unqualified column reference
// when it can be inferred: a single FROM table, or a join where exactly one
// joined table's schema has a matching column. Grounded on rule101.
func Rule101(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil {
		return tree
	}
	tables := selectTables(tree)

	resolve := func(col ast.Node) ast.Node {
		c, ok := col.(*ast.Column)
		if !ok || c.Table != nil {
			return col
		}
		if len(tree.Joins) == 0 {
			from, ok := tree.From.(*ast.From)
			if !ok {
				return col
			}
			if _, isSub := from.This.(*ast.Subquery); isSub {
				return col
			}
			name, ok := tableName(from.This)
			if !ok {
				return col
			}
			nc := *c
			nc.Table = &ast.Identifier{This: name}
			return &nc
		}
		if isStarColumn(c) {
			return col
		}
		id, ok := c.This.(*ast.Identifier)
		if !ok {
			return col
		}
		var match string
		for _, t := range tables {
			name, ok := tableName(t)
			if !ok {
				continue
			}
			sTable, ok := db.Table(name)
			if !ok {
				continue
			}
			if containsColumn(sTable.Columns, id.This) {
				if match != "" {
					return col
				}
				match = name
			}
		}
		if match == "" {
			return col
		}
		nc := *c
		nc.Table = &ast.Identifier{This: match}
		return &nc
	}

	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		if _, ok := n.(*ast.Column); ok {
			return resolve(n)
		}
		return n
	})
	return out.(*ast.Select)
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// Rule102 sorts the top-level SELECT expressions into canonical order.
func Rule102(tree *ast.Select, db *schema.Database) *ast.Select {
	if len(tree.Expressions) == 0 {
		return tree
	}
	sorted := append([]ast.Node(nil), tree.Expressions...)
	ast.SortNodes(sorted)
	out := *tree
	out.Expressions = sorted
	return &out
}

// Rule103 drops every table alias and rewrites references to it back to the
// bare table name, since an alias and its underlying table name are
// interchangeable for equivalence purposes.
func Rule103(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil {
		return tree
	}
	type rename struct{ alias, table string }
	var renames []rename
	for _, t := range selectTables(tree) {
		if t.Alias == nil {
			continue
		}
		ta, ok := t.Alias.(*ast.TableAlias)
		if !ok {
			continue
		}
		aliasID, ok := ta.This.(*ast.Identifier)
		if !ok {
			continue
		}
		tableID, ok := t.This.(*ast.Identifier)
		if !ok {
			continue
		}
		renames = append(renames, rename{alias: aliasID.This, table: tableID.This})
	}
	if len(renames) == 0 {
		return tree
	}

	stripAlias := func(n ast.Node) ast.Node {
		t, ok := n.(*ast.Table)
		if !ok {
			return n
		}
		out := *t
		out.Alias = nil
		return &out
	}

	renameIdentifier := func(n ast.Node) ast.Node {
		id, ok := n.(*ast.Identifier)
		if !ok {
			return n
		}
		for _, r := range renames {
			if id.This == r.alias {
				return &ast.Identifier{This: r.table, Quoted: id.Quoted}
			}
		}
		return n
	}

	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		if _, isAlias := n.(*ast.TableAlias); isAlias {
			return n
		}
		n = renameIdentifier(n)
		return stripAlias(n)
	})
	return out.(*ast.Select)
}

// Rule104 orders FROM/JOIN tables canonically and merges all join
// conditions into a single AND chain on the first join. It leaves the tree
// unchanged when any join has an explicit side, since reordering is only
// sound with no side.
func Rule104(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil || len(tree.Joins) == 0 {
		return tree
	}
	from, ok := tree.From.(*ast.From)
	if !ok {
		return tree
	}
	tables := []ast.Node{from.This}
	var ons []ast.Node
	for _, j := range tree.Joins {
		join, ok := j.(*ast.Join)
		if !ok {
			return tree
		}
		if join.Side != nil {
			return tree
		}
		tables = append(tables, join.This)
		if join.On != nil {
			ons = append(ons, join.On)
		}
	}
	ast.SortNodes(tables)
	ast.SortNodes(ons)

	var combined ast.Node
	if len(ons) > 0 {
		combined = ons[0]
		for _, on := range ons[1:] {
			combined = &ast.And{This: combined, Expression: on}
		}
	} else {
		combined = trueEQ()
	}

	newJoins := make([]ast.Node, 0, len(tables)-1)
	for i, t := range tables[1:] {
		if i == 0 {
			if isLiteralTrue(combined) {
				newJoins = append(newJoins, &ast.Join{This: t})
			} else {
				newJoins = append(newJoins, &ast.Join{This: t, On: combined})
			}
			continue
		}
		newJoins = append(newJoins, &ast.Join{This: t})
	}

	out := *tree
	newFrom := *from
	newFrom.This = tables[0]
	out.From = &newFrom
	out.Joins = newJoins
	return &out
}

// Rule105 sorts the operands of every commutative EQ/And/Or node, first
// flattening same-type chains so e.g. a AND b AND c sorts all three operands
// together rather than pairwise.
func Rule105(tree *ast.Select, db *schema.Database) *ast.Select {
	sortCommutative := func(n ast.Node) ast.Node {
		switch v := n.(type) {
		case *ast.EQ:
			vals := []ast.Node{v.This, v.Expression}
			ast.SortNodes(vals)
			return &ast.EQ{This: vals[0], Expression: vals[1]}
		case *ast.And:
			vals := flattenAnd(n)
			ast.SortNodes(vals)
			return buildAnd(vals)
		case *ast.Or:
			vals := flattenOr(n)
			ast.SortNodes(vals)
			return buildOr(vals)
		default:
			return n
		}
	}
	out := ast.Transform(tree, sortCommutative)
	return out.(*ast.Select)
}

func flattenOr(n ast.Node) []ast.Node {
	or, ok := n.(*ast.Or)
	if !ok {
		return []ast.Node{n}
	}
	return append(flattenOr(or.This), flattenOr(or.Expression)...)
}

func buildOr(nodes []ast.Node) ast.Node {
	result := nodes[0]
	for _, n := range nodes[1:] {
		result = &ast.Or{This: result, Expression: n}
	}
	return result
}

// Rule106 removes every Alias node, substituting bare references to the
// alias name with the aliased expression itself.
func Rule106(tree *ast.Select, db *schema.Database) *ast.Select {
	var aliasNames []string
	var aliasExprs []ast.Node
	collectAlias := func(n ast.Node) {
		a, ok := n.(*ast.Alias)
		if !ok {
			return
		}
		id, ok := a.Alias.(*ast.Identifier)
		if !ok {
			return
		}
		aliasNames = append(aliasNames, id.This)
		aliasExprs = append(aliasExprs, a.This)
	}
	for _, e := range tree.Expressions {
		collectAlias(e)
	}

	stripAndSubst := func(n ast.Node) ast.Node {
		if a, ok := n.(*ast.Alias); ok {
			return a.This
		}
		if id, ok := n.(*ast.Identifier); ok {
			for i, name := range aliasNames {
				if id.This == name {
					return aliasExprs[i]
				}
			}
		}
		return n
	}
	out := ast.Transform(tree, stripAndSubst)
	return out.(*ast.Select)
}

// Rule107 removes parentheses that wrap a single inner expression.
func Rule107(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		if p, ok := n.(*ast.Paren); ok {
			return p.This
		}
		return n
	})
	return out.(*ast.Select)
}

// Rule108 drops the "quoted" distinction on identifiers: "table" and table
// refer to the same name.
func Rule108(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		if id, ok := n.(*ast.Identifier); ok && id.Quoted {
			return &ast.Identifier{This: id.This, Quoted: false}
		}
		return n
	})
	return out.(*ast.Select)
}
