package rules

import (
	"etm/internal/ast"
	"etm/internal/schema"
)

// pkFkPair describes one join equality recognized as a primary/foreign key
// relationship, in the direction foreign -> primary.
type pkFkPair struct {
	eq                       *ast.EQ
	primaryTable, primaryCol string
	foreignTable, foreignCol string
}

// Rule14 drops a joined table entirely when the join is keyed on that
// table's single-column primary key referenced by a foreign key elsewhere,
// and nothing outside the join condition reads any other column of that
// table - the join can only ever narrow by existence, never by value.
func Rule14(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil || len(tree.Joins) == 0 || len(tree.Expressions) == 0 {
		return tree
	}
	var eqs []*ast.EQ
	for _, j := range tree.Joins {
		join, ok := j.(*ast.Join)
		if !ok || join.Side != nil {
			return tree
		}
		if join.On == nil {
			continue
		}
		switch on := join.On.(type) {
		case *ast.And:
			for _, n := range flattenAnd(on) {
				if eq, ok := n.(*ast.EQ); ok {
					eqs = append(eqs, eq)
				}
			}
		case *ast.EQ:
			eqs = append(eqs, on)
		}
	}

	var pairs []pkFkPair
	for _, eq := range eqs {
		t1, c1, ok1 := columnParts(eq.This)
		t2, c2, ok2 := columnParts(eq.Expression)
		if !ok1 || !ok2 {
			continue
		}
		if p, ok := matchPkFk(db, t1, c1, t2, c2); ok {
			p.eq = eq
			pairs = append(pairs, p)
		} else if p, ok := matchPkFk(db, t2, c2, t1, c1); ok {
			p.eq = eq
			pairs = append(pairs, p)
		}
	}

	changed := false
	result := tree
	for _, p := range pairs {
		pkTable, ok := db.Table(p.primaryTable)
		if !ok || len(pkTable.PrimaryKeyColumns()) > 1 {
			continue
		}
		if !treeOnlyReadsPK(result, p.primaryTable, p.primaryCol) {
			continue
		}
		newTree, ok := removeJoinedTable(result, p)
		if !ok {
			continue
		}
		result = newTree
		changed = true
	}
	if !changed {
		return tree
	}
	return result
}

func matchPkFk(db *schema.Database, table1, col1, table2, col2 string) (pkFkPair, bool) {
	t1, ok := db.Table(table1)
	if !ok || !t1.IsPrimaryKey(col1) {
		return pkFkPair{}, false
	}
	t2, ok := db.Table(table2)
	if !ok {
		return pkFkPair{}, false
	}
	ref, ok := t2.ForeignKey(col2)
	if !ok || ref != table1+"."+col1 {
		return pkFkPair{}, false
	}
	return pkFkPair{primaryTable: table1, primaryCol: col1, foreignTable: table2, foreignCol: col2}, true
}

// treeOnlyReadsPK reports whether every Column referencing pkTable anywhere
// in tree names exactly pkCol.
func treeOnlyReadsPK(tree *ast.Select, pkTable, pkCol string) bool {
	ok := true
	ast.Transform(tree, func(n ast.Node) ast.Node {
		if col, isCol := n.(*ast.Column); isCol {
			table, name, resolved := columnParts(col)
			if resolved && table == pkTable && name != pkCol {
				ok = false
			}
		}
		return n
	})
	return ok
}

func removeJoinedTable(tree *ast.Select, p pkFkPair) (*ast.Select, bool) {
	from, ok := tree.From.(*ast.From)
	if !ok {
		return nil, false
	}
	tables := []ast.Node{from.This}
	tables = append(tables, tree.Joins...)

	var keptTables []ast.Node
	var keptOns []ast.Node
	removedTable := false
	removedEq := false
	keptTables = append(keptTables, from.This)
	if name, ok := tableName(from.This); ok && name == p.primaryTable {
		removedTable = true
		keptTables = keptTables[:0]
	}
	for _, j := range tree.Joins {
		join := j.(*ast.Join)
		name, ok := tableName(join.This)
		if ok && name == p.primaryTable && !removedTable {
			removedTable = true
			if join.On != nil && ast.Equal(join.On, p.eq) {
				removedEq = true
			}
			continue
		}
		keptTables = append(keptTables, join.This)
		if join.On != nil {
			if eq, ok := join.On.(*ast.EQ); ok && ast.Equal(eq, p.eq) {
				removedEq = true
				continue
			}
			for _, n := range flattenAnd(join.On) {
				if ast.Equal(n, p.eq) {
					removedEq = true
					continue
				}
				keptOns = append(keptOns, n)
			}
			continue
		}
	}
	if !removedTable {
		return nil, false
	}
	_ = removedEq

	substitute := func(n ast.Node) ast.Node {
		col, ok := n.(*ast.Column)
		if !ok {
			return n
		}
		table, name, resolved := columnParts(col)
		if resolved && table == p.primaryTable && name == p.primaryCol {
			return &ast.Column{This: &ast.Identifier{This: p.foreignCol}, Table: &ast.Identifier{This: p.foreignTable}}
		}
		return n
	}

	out := *tree
	if len(keptTables) == 0 {
		return &out, false
	}
	newFrom := &ast.From{This: keptTables[0]}
	var newJoins []ast.Node
	for i, t := range keptTables[1:] {
		if i == 0 && len(keptOns) > 0 {
			on := keptOns[0]
			for _, extra := range keptOns[1:] {
				on = &ast.And{This: on, Expression: extra}
			}
			newJoins = append(newJoins, &ast.Join{This: t, On: on})
			continue
		}
		newJoins = append(newJoins, &ast.Join{This: t})
	}
	out.From = newFrom
	out.Joins = newJoins
	rewritten := ast.Transform(&out, substitute)
	return rewritten.(*ast.Select), true
}

// substringRange bundles a substr(col, start, length) reference found inside
// a comparison, for rule15's merge pass.
type substringRange struct {
	col           ast.Node
	start, length float64
	lit           ast.Node
	node          ast.Node
}

// Rule15 merges a pair of predicates over the same substr(col, a, b) value -
// one equality at the string's start, one comparison over the very next
// slice - into a single comparison of the whole column against the
// concatenated literals, keeping the second predicate's operator.
func Rule15(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		and, ok := n.(*ast.And)
		if !ok {
			return n
		}
		leaves := flattenAnd(and)
		var ranges []substringRange
		for _, leaf := range leaves {
			if r, ok := asSubstringComparison(leaf); ok {
				ranges = append(ranges, r)
			}
		}
		if len(ranges) < 2 {
			return n
		}
		var eqRanges []substringRange
		for _, r := range ranges {
			if _, isEQ := r.node.(*ast.EQ); isEQ {
				eqRanges = append(eqRanges, r)
			}
		}
		kept := append([]ast.Node(nil), leaves...)
		for _, eq := range eqRanges {
			if eq.start != 1 {
				continue
			}
			for _, other := range ranges {
				if _, isEQ := other.node.(*ast.EQ); isEQ {
					continue
				}
				if !ast.Equal(eq.col, other.col) {
					continue
				}
				if eq.start+eq.length != other.start {
					continue
				}
				merged := trimTrailingDotZero(literalText(eq.lit)) + trimTrailingDotZero(literalText(other.lit))
				var replacement ast.Node
				switch other.node.(type) {
				case *ast.GTE:
					replacement = &ast.GTE{This: eq.col, Expression: &ast.Literal{This: merged, IsString: true}}
				case *ast.LTE:
					replacement = &ast.LTE{This: eq.col, Expression: &ast.Literal{This: merged, IsString: true}}
				case *ast.GT:
					replacement = &ast.GT{This: eq.col, Expression: &ast.Literal{This: merged, IsString: true}}
				case *ast.LT:
					replacement = &ast.LT{This: eq.col, Expression: &ast.Literal{This: merged, IsString: true}}
				default:
					continue
				}
				kept = removeEqual(kept, eq.node)
				kept = removeEqual(kept, other.node)
				kept = append(kept, replacement)
			}
		}
		if len(kept) == len(leaves) {
			return n
		}
		if len(kept) == 0 {
			return n
		}
		return buildAnd(kept)
	})
	return out.(*ast.Select)
}

func literalText(n ast.Node) string {
	if l, ok := n.(*ast.Literal); ok {
		return l.This
	}
	return ""
}

func removeEqual(list []ast.Node, target ast.Node) []ast.Node {
	out := list[:0:0]
	removed := false
	for _, n := range list {
		if !removed && ast.Equal(n, target) {
			removed = true
			continue
		}
		out = append(out, n)
	}
	return out
}

func asSubstringComparison(n ast.Node) (substringRange, bool) {
	extract := func(a, b ast.Node) (substringRange, bool) {
		sub, ok := a.(*ast.Substring)
		if !ok {
			return substringRange{}, false
		}
		startLit, ok := sub.Start.(*ast.Literal)
		if !ok {
			return substringRange{}, false
		}
		lenLit, ok := sub.Length.(*ast.Literal)
		if !ok {
			return substringRange{}, false
		}
		start, ok := literalFloat(startLit.This)
		if !ok {
			return substringRange{}, false
		}
		length, ok := literalFloat(lenLit.This)
		if !ok {
			return substringRange{}, false
		}
		return substringRange{col: sub.This, start: start, length: length, lit: b, node: n}, true
	}
	switch v := n.(type) {
	case *ast.EQ:
		if r, ok := extract(v.This, v.Expression); ok {
			return r, true
		}
		return extract(v.Expression, v.This)
	case *ast.GTE:
		if r, ok := extract(v.This, v.Expression); ok {
			return r, true
		}
	case *ast.LTE:
		if r, ok := extract(v.This, v.Expression); ok {
			return r, true
		}
	case *ast.GT:
		if r, ok := extract(v.This, v.Expression); ok {
			return r, true
		}
	case *ast.LT:
		if r, ok := extract(v.This, v.Expression); ok {
			return r, true
		}
	}
	return substringRange{}, false
}
