package rules

import (
	"etm/internal/ast"
	"etm/internal/schema"
)

// Rule1 recognizes `where c1 = (select min/max(c1) from t)` and rewrites it
// to an ORDER BY/LIMIT 1 form, valid only when c1 is unique (so the
// subquery's single row is the same row the ordering would pick).
func Rule1(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Order != nil || tree.Where == nil || tree.Limit != nil {
		return tree
	}
	where, ok := tree.Where.(*ast.Where)
	if !ok {
		return tree
	}
	var newOrder, newLimit ast.Node
	rewritten := ast.Transform(where.This, func(n ast.Node) ast.Node {
		eq, ok := n.(*ast.EQ)
		if !ok {
			return n
		}
		var sub *ast.Subquery
		var col ast.Node
		if s, ok := eq.Expression.(*ast.Subquery); ok {
			sub, col = s, eq.This
		} else if s, ok := eq.This.(*ast.Subquery); ok {
			sub, col = s, eq.Expression
		} else {
			return n
		}
		inner, ok := sub.This.(*ast.Select)
		if !ok || len(inner.Expressions) != 1 || inner.From == nil || len(inner.Joins) != 0 {
			return n
		}
		ex := inner.Expressions[0]
		var desc bool
		var target ast.Node
		switch v := ex.(type) {
		case *ast.Min:
			desc, target = false, v.This
		case *ast.Max:
			desc, target = true, v.This
		default:
			return n
		}
		if !ast.Equal(target, col) {
			return n
		}
		table, name, ok := columnParts(col)
		if !ok {
			return n
		}
		st, ok := db.Table(table)
		if !ok || !st.IsUnique(name) {
			return n
		}
		newOrder = &ast.Order{Expressions: []ast.Node{&ast.Ordered{This: col, Desc: desc}}}
		newLimit = &ast.Limit{Expression: oneLiteral(literalOneTrue)}
		return trueEQ()
	})
	if newOrder == nil {
		return tree
	}
	out := *tree
	out.Where = &ast.Where{This: rewritten}
	out.Order = newOrder
	out.Limit = newLimit
	return &out
}

// Rule2 drops a redundant DISTINCT over a single already-unique column, and
// removes a top-level DISTINCT modifier when at least one selected column is
// already unique (with no joins present).
func Rule2(tree *ast.Select, db *schema.Database) *ast.Select {
	out := *tree
	if out.Distinct && len(out.Joins) == 0 {
		for _, ex := range out.Expressions {
			table, name, ok := columnParts(ex)
			if ok {
				if t, ok := db.Table(table); ok && t.IsUnique(name) {
					out.Distinct = false
					break
				}
			}
		}
	}
	process := func(n ast.Node) ast.Node {
		dist, ok := n.(*ast.Distinct)
		if !ok || len(dist.Expressions) != 1 || len(tree.Joins) != 0 {
			return n
		}
		table, name, ok := columnParts(dist.Expressions[0])
		if !ok {
			return n
		}
		if t, ok := db.Table(table); ok && t.IsUnique(name) {
			return dist.Expressions[0]
		}
		return n
	}
	rewritten := ast.Transform(&out, process)
	return rewritten.(*ast.Select)
}

// Rule4 replaces the GROUP BY list with its first column that is unique in
// its table, dropping every other grouping column before or after it, since
// grouping by a unique column already yields one group per row. It does
// nothing when an ORDER BY is present.
func Rule4(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Group == nil || tree.Order != nil {
		return tree
	}
	group, ok := tree.Group.(*ast.Group)
	if !ok {
		return tree
	}
	var newExprs []ast.Node
	for _, ex := range group.Expressions {
		table, name, ok := columnParts(ex)
		if ok {
			if t, ok := db.Table(table); ok && t.IsUnique(name) {
				newExprs = []ast.Node{ex}
				break
			}
		}
		newExprs = append(newExprs, ex)
	}
	out := *tree
	out.Group = &ast.Group{Expressions: newExprs}
	return &out
}

// Rule6 rewrites COUNT(c1) to COUNT(*) when c1 is declared non-null, since
// counting a non-null column counts every row anyway.
func Rule6(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		count, ok := n.(*ast.Count)
		if !ok {
			return n
		}
		table, name, ok := columnParts(count.This)
		if !ok {
			return n
		}
		if t, ok := db.Table(table); ok && t.IsNonNull(name) {
			return &ast.Count{This: &ast.Star{}, BigInt: true}
		}
		return n
	})
	return out.(*ast.Select)
}

// Rule7 drops a `col IS NOT NULL` predicate when col is declared non-null,
// replacing it with an always-true marker for cleanTrues to absorb.
func Rule7(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Where == nil {
		return tree
	}
	where := tree.Where.(*ast.Where)
	rewritten := ast.Transform(where.This, func(n ast.Node) ast.Node {
		not, ok := n.(*ast.Not)
		if !ok {
			return n
		}
		is, ok := not.This.(*ast.Is)
		if !ok {
			return n
		}
		if _, ok := is.Expression.(*ast.Null); !ok {
			return n
		}
		table, name, ok := columnParts(is.This)
		if !ok {
			return n
		}
		if t, ok := db.Table(table); ok && t.IsNonNull(name) {
			return trueEQ()
		}
		return n
	})
	out := *tree
	out.Where = &ast.Where{This: rewritten}
	return &out
}

// Rule8 rewrites CAST(SUM(c) AS FLOAT) / COUNT(*) to AVG(c), valid when c is
// non-null (so SUM/COUNT(*) and SUM/COUNT(c) agree).
func Rule8(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		div, ok := n.(*ast.Div)
		if !ok {
			return n
		}
		cast, ok := div.This.(*ast.Cast)
		if !ok {
			return n
		}
		dt, ok := cast.To.(*ast.DataType)
		if !ok || dt.This != "float" {
			return n
		}
		sum, ok := cast.This.(*ast.Sum)
		if !ok {
			return n
		}
		col, ok := sum.This.(*ast.Column)
		if !ok {
			return n
		}
		count, ok := div.Expression.(*ast.Count)
		if !ok {
			return n
		}
		if _, ok := count.This.(*ast.Star); !ok {
			return n
		}
		table, name, ok := columnParts(col)
		if !ok {
			return n
		}
		if t, ok := db.Table(table); ok && t.IsNonNull(name) {
			return &ast.Avg{This: col}
		}
		return n
	})
	return out.(*ast.Select)
}

// Rule9 rewrites COUNT(CASE WHEN cond THEN 1|col ELSE NULL END) to
// SUM(CASE WHEN cond THEN 1 ELSE 0 END), valid when the THEN arm is the
// literal 1 or a declared-non-null column.
func Rule9(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		count, ok := n.(*ast.Count)
		if !ok {
			return n
		}
		c, ok := count.This.(*ast.Case)
		if !ok || len(c.Ifs) != 1 {
			return n
		}
		if c.Default != nil {
			if _, ok := c.Default.(*ast.Null); !ok {
				return n
			}
		}
		ifexp, ok := c.Ifs[0].(*ast.If)
		if !ok {
			return n
		}
		switch v := ifexp.True.(type) {
		case *ast.Literal:
			if v.This != literalOneTrue {
				return n
			}
		case *ast.Column:
			table, name, ok := columnParts(v)
			if !ok {
				return n
			}
			if t, ok := db.Table(table); !ok || !t.IsNonNull(name) {
				return n
			}
		default:
			return n
		}
		return &ast.Sum{This: &ast.Case{
			Ifs:     []ast.Node{&ast.If{This: ifexp.This, True: oneLiteral(literalOneTrue)}},
			Default: &ast.Literal{This: "0", IsString: false},
		}}
	})
	return out.(*ast.Select)
}

// Rule10 rewrites `select a ... order by a asc/desc limit 1` to
// `select min/max(a)`, the inverse of rule1's source shape.
func Rule10(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil || tree.Order == nil || tree.Limit == nil {
		return tree
	}
	order, ok := tree.Order.(*ast.Order)
	if !ok || len(order.Expressions) != 1 {
		return tree
	}
	ordered, ok := order.Expressions[0].(*ast.Ordered)
	if !ok {
		return tree
	}
	limit, ok := tree.Limit.(*ast.Limit)
	if !ok {
		return tree
	}
	lit, ok := limit.Expression.(*ast.Literal)
	if !ok || lit.This != literalOneTrue {
		return tree
	}
	var newExprs []ast.Node
	applied := false
	for _, ex := range tree.Expressions {
		if ast.Equal(ex, ordered.This) {
			if ordered.Desc {
				newExprs = append(newExprs, &ast.Max{This: ex})
			} else {
				newExprs = append(newExprs, &ast.Min{This: ex})
			}
			applied = true
			continue
		}
		newExprs = append(newExprs, ex)
	}
	if !applied {
		return tree
	}
	out := *tree
	out.Expressions = newExprs
	out.Order = nil
	out.Limit = nil
	return &out
}

// Rule11 expands a `table.*` (or bare `*` with joins) wildcard into an
// explicit column list drawn from the schema. A wildcard with no schema
// table to draw columns from is kept as it is.
func Rule11(tree *ast.Select, db *schema.Database) *ast.Select {
	if len(tree.Expressions) == 0 {
		return tree
	}
	var newExprs []ast.Node
	changed := false
	for _, ex := range tree.Expressions {
		col, ok := ex.(*ast.Column)
		if !ok || !isStarColumn(col) {
			newExprs = append(newExprs, ex)
			continue
		}
		changed = true
		if col.Table != nil {
			id, ok := col.Table.(*ast.Identifier)
			if !ok {
				newExprs = append(newExprs, ex)
				continue
			}
			t, ok := db.Table(id.This)
			if !ok {
				newExprs = append(newExprs, ex)
				continue
			}
			for _, c := range t.Columns {
				newExprs = append(newExprs, &ast.Column{This: &ast.Identifier{This: c}, Table: col.Table})
			}
			continue
		}
		before := len(newExprs)
		for _, table := range selectTables(tree) {
			name, ok := tableName(table)
			if !ok {
				continue
			}
			t, ok := db.Table(name)
			if !ok {
				continue
			}
			for _, c := range t.Columns {
				newExprs = append(newExprs, &ast.Column{This: &ast.Identifier{This: c}, Table: table.This})
			}
		}
		if len(newExprs) == before {
			newExprs = append(newExprs, ex)
		}
	}
	if !changed {
		return tree
	}
	out := *tree
	out.Expressions = newExprs
	return &out
}

// Rule12 normalizes numeric literals to a real (float) representation so
// `150`, `150.0`, and `'150'` compare equal.
func Rule12(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		lit, ok := n.(*ast.Literal)
		if !ok || lit.This == "" || lit.This[0] == '0' {
			return n
		}
		f, ok := literalFloat(lit.This)
		if !ok {
			return n
		}
		return &ast.Literal{This: formatFloat(f), IsString: false}
	})
	return out.(*ast.Select)
}

// Rule13 rewrites `from t2 where c2 in/= (select c1 from t1 [where cond])`
// into `from t2 join t1 on t1.c1 = t2.c2 where cond`, valid when c1 is t1's
// primary key and c2 is a foreign key referencing it. The `=` form needs an
// inner WHERE that is a single equality on a unique column.
func Rule13(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.From == nil || len(tree.Joins) != 0 || tree.Where == nil {
		return tree
	}
	where, ok := tree.Where.(*ast.Where)
	if !ok {
		return tree
	}
	from, ok := tree.From.(*ast.From)
	if !ok {
		return tree
	}
	outerTableName, ok := tableName(from.This)
	if !ok {
		return tree
	}

	var outerCol ast.Node
	var subquery *ast.Subquery
	eqMode := false
	switch cond := where.This.(type) {
	case *ast.In:
		if cond.Query == nil {
			return tree
		}
		sub, ok := cond.Query.(*ast.Subquery)
		if !ok {
			return tree
		}
		subquery, outerCol = sub, cond.This
	case *ast.EQ:
		sub, ok := cond.Expression.(*ast.Subquery)
		if !ok {
			return tree
		}
		subquery, outerCol, eqMode = sub, cond.This, true
	default:
		return tree
	}
	if _, ok := outerCol.(*ast.Column); !ok {
		return tree
	}
	innerSelect, ok := subquery.This.(*ast.Select)
	if !ok || len(innerSelect.Expressions) != 1 || innerSelect.From == nil || innerSelect.Group != nil || innerSelect.Order != nil {
		return tree
	}
	innerCol := innerSelect.Expressions[0]
	innerFrom, ok := innerSelect.From.(*ast.From)
	if !ok {
		return tree
	}
	innerTable, ok := innerFrom.This.(*ast.Table)
	if !ok {
		return tree
	}
	innerTableName, ok := tableName(innerTable)
	if !ok {
		return tree
	}
	_, innerColName, ok := columnParts(innerCol)
	if !ok {
		return tree
	}
	outerTableSchema, ok := db.Table(innerTableName)
	if !ok || !outerTableSchema.IsPrimaryKey(innerColName) {
		return tree
	}
	_, outerColName, ok := columnParts(outerCol)
	if !ok {
		return tree
	}
	outerSchema, ok := db.Table(outerTableName)
	if !ok {
		return tree
	}
	ref, ok := outerSchema.ForeignKey(outerColName)
	if !ok || ref != innerTableName+"."+innerColName {
		return tree
	}

	var newWhere ast.Node
	if innerSelect.Where != nil && !eqMode {
		newWhere = innerSelect.Where.(*ast.Where).This
	} else if innerSelect.Where != nil {
		innerWhere := innerSelect.Where.(*ast.Where)
		eq, ok := innerWhere.This.(*ast.EQ)
		if !ok {
			return tree
		}
		table, name, ok := columnParts(eq.This)
		if !ok {
			return tree
		}
		if t, ok := db.Table(table); !ok || !t.IsUnique(name) {
			return tree
		}
		newWhere = eq
	} else {
		if eqMode {
			return tree
		}
		newWhere = trueEQ()
	}

	out := *tree
	out.Where = &ast.Where{This: newWhere}
	out.Joins = []ast.Node{&ast.Join{
		This: innerTable,
		On: &ast.EQ{
			This:       &ast.Column{This: &ast.Identifier{This: innerColName}, Table: &ast.Identifier{This: innerTableName}},
			Expression: &ast.Column{This: &ast.Identifier{This: outerColName}, Table: &ast.Identifier{This: outerTableName}},
		},
	}}
	return &out
}

// Rule16 rewrites `a LIKE 'prefix%'` to `substr(a,1,len(prefix)) = 'prefix'`.
func Rule16(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		like, ok := n.(*ast.Like)
		if !ok {
			return n
		}
		lit, ok := like.Expression.(*ast.Literal)
		if !ok {
			return n
		}
		idx := indexByte(lit.This, '%')
		if idx < 0 || idx != len(lit.This)-1 {
			return n
		}
		prefix := lit.This[:idx]
		return &ast.EQ{
			This: &ast.Substring{
				This:   like.This,
				Start:  &ast.Literal{This: "1.0", IsString: true},
				Length: &ast.Literal{This: formatFloat(float64(len(prefix))), IsString: true},
			},
			Expression: &ast.Literal{This: prefix, IsString: true},
		}
	})
	return out.(*ast.Select)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// Rule17 rewrites `order by julianday(date)` to `order by date` - julianday
// is monotonic so it never changes the ordering.
func Rule17(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Order == nil {
		return tree
	}
	order, ok := tree.Order.(*ast.Order)
	if !ok || len(order.Expressions) != 1 {
		return tree
	}
	ordered, ok := order.Expressions[0].(*ast.Ordered)
	if !ok {
		return tree
	}
	anon, ok := ordered.This.(*ast.Anonymous)
	if !ok || anon.This != "julianday" || len(anon.Expressions) == 0 {
		return tree
	}
	out := *tree
	out.Order = &ast.Order{Expressions: []ast.Node{&ast.Ordered{This: anon.Expressions[0], Desc: ordered.Desc}}}
	return &out
}

// Rule18 rewrites `c IN (a,b)` to `c=a OR c=b` and `c NOT IN (a,b)` to
// `c!=a AND c!=b`.
func Rule18(tree *ast.Select, db *schema.Database) *ast.Select {
	negated := ast.Transform(tree, func(n ast.Node) ast.Node {
		not, ok := n.(*ast.Not)
		if !ok {
			return n
		}
		in, ok := not.This.(*ast.In)
		if !ok || len(in.Expressions) == 0 {
			return n
		}
		result := ast.Node(&ast.NEQ{This: in.This, Expression: in.Expressions[0]})
		for _, e := range in.Expressions[1:] {
			result = &ast.And{This: result, Expression: &ast.NEQ{This: in.This, Expression: e}}
		}
		return result
	})
	out := ast.Transform(negated, func(n ast.Node) ast.Node {
		in, ok := n.(*ast.In)
		if !ok || len(in.Expressions) == 0 {
			return n
		}
		result := ast.Node(&ast.EQ{This: in.This, Expression: in.Expressions[0]})
		for _, e := range in.Expressions[1:] {
			result = &ast.Or{This: result, Expression: &ast.EQ{This: in.This, Expression: e}}
		}
		return result
	})
	return out.(*ast.Select)
}

// Rule19 propagates unique/non_null schema facts across a join's equality
// condition(s) and substitutes one side's column references with the
// other's, picking a single canonical spelling for values known equal by
// the join predicate.
func Rule19(tree *ast.Select, db *schema.Database) *ast.Select {
	var eqs []*ast.EQ
	for _, j := range tree.Joins {
		join, ok := j.(*ast.Join)
		if !ok || join.On == nil || join.Side != nil {
			continue
		}
		switch on := join.On.(type) {
		case *ast.EQ:
			eqs = append(eqs, on)
		case *ast.And:
			for _, n := range flattenAnd(on) {
				if eq, ok := n.(*ast.EQ); ok {
					eqs = append(eqs, eq)
				}
			}
		}
	}
	if len(eqs) == 0 {
		return tree
	}

	result := tree
	for _, eq := range eqs {
		table1, col1, ok1 := columnParts(eq.This)
		table2, col2, ok2 := columnParts(eq.Expression)
		if !ok1 || !ok2 {
			continue
		}
		t1, ok1 := db.Table(table1)
		t2, ok2 := db.Table(table2)
		if !ok1 || !ok2 {
			continue
		}
		if t1.IsUnique(col1) && !t2.IsUnique(col2) {
			t2.MarkUnique(col2)
		}
		if t2.IsUnique(col2) && !t1.IsUnique(col1) {
			t1.MarkUnique(col1)
		}
		if t1.IsNonNull(col1) && !t2.IsNonNull(col2) {
			t2.MarkNonNull(col2)
		}
		if t2.IsNonNull(col2) && !t1.IsNonNull(col1) {
			t1.MarkNonNull(col1)
		}

		replaced := ast.Transform(result, func(n ast.Node) ast.Node {
			if ast.Equal(n, eq.Expression) {
				return eq.This
			}
			return n
		})
		result = replaced.(*ast.Select)
	}
	return result
}

// Rule20 unwraps `t1.c1 IN (select c1 from t1 where cond)` back to `cond`
// when the subquery selects and filters the same table/column the outer
// predicate is testing.
func Rule20(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Where == nil {
		return tree
	}
	where := tree.Where.(*ast.Where)
	rewritten := ast.Transform(where.This, func(n ast.Node) ast.Node {
		in, ok := n.(*ast.In)
		if !ok || in.Query == nil {
			return n
		}
		sub, ok := in.Query.(*ast.Subquery)
		if !ok {
			return n
		}
		inner, ok := sub.This.(*ast.Select)
		if !ok || len(inner.Expressions) != 1 || !ast.Equal(inner.Expressions[0], in.This) {
			return n
		}
		innerFrom, ok := inner.From.(*ast.From)
		if !ok {
			return n
		}
		col, ok := in.This.(*ast.Column)
		if !ok || col.Table == nil {
			return n
		}
		innerTableName, ok := tableName(innerFrom.This)
		outerTableID, ok2 := col.Table.(*ast.Identifier)
		if !ok || !ok2 || innerTableName != outerTableID.This {
			return n
		}
		if inner.Where != nil {
			return inner.Where.(*ast.Where).This
		}
		return n
	})
	out := *tree
	out.Where = &ast.Where{This: rewritten}
	return &out
}

// Rule22 rewrites `a BETWEEN lo AND hi` to `a >= lo AND a <= hi`.
func Rule22(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		b, ok := n.(*ast.Between)
		if !ok {
			return n
		}
		return &ast.And{
			This:       &ast.GTE{This: b.This, Expression: b.Low},
			Expression: &ast.LTE{This: b.This, Expression: b.High},
		}
	})
	return out.(*ast.Select)
}

// Rule23 pushes NOT through a comparison operator by flipping it:
// NOT(a=b) -> a!=b, NOT(a>b) -> a<=b, and so on.
func Rule23(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		not, ok := n.(*ast.Not)
		if !ok {
			return n
		}
		switch v := not.This.(type) {
		case *ast.EQ:
			return &ast.NEQ{This: v.This, Expression: v.Expression}
		case *ast.NEQ:
			return &ast.EQ{This: v.This, Expression: v.Expression}
		case *ast.GT:
			return &ast.LTE{This: v.This, Expression: v.Expression}
		case *ast.GTE:
			return &ast.LT{This: v.This, Expression: v.Expression}
		case *ast.LT:
			return &ast.GTE{This: v.This, Expression: v.Expression}
		case *ast.LTE:
			return &ast.GT{This: v.This, Expression: v.Expression}
		default:
			return n
		}
	})
	return out.(*ast.Select)
}

// Rule24 rewrites IF(cond,true,false) to CASE WHEN cond THEN true ELSE false END.
func Rule24(tree *ast.Select, db *schema.Database) *ast.Select {
	out := ast.Transform(tree, func(n ast.Node) ast.Node {
		iif, ok := n.(*ast.If)
		if !ok || iif.False == nil {
			return n
		}
		return &ast.Case{
			Ifs:     []ast.Node{&ast.If{This: iif.This, True: iif.True}},
			Default: iif.False,
		}
	})
	return out.(*ast.Select)
}

// Rule25 rewrites `a LEFT JOIN b ON a.x=b.y WHERE b.<col> IS NULL` to
// `a WHERE a.x NOT IN (select b.y from b)` - the classic anti-join rewrite.
func Rule25(tree *ast.Select, db *schema.Database) *ast.Select {
	if tree.Where == nil || len(tree.Joins) != 1 || tree.From == nil {
		return tree
	}
	join, ok := tree.Joins[0].(*ast.Join)
	if !ok || join.Side == nil || *join.Side != "left" {
		return tree
	}
	where := tree.Where.(*ast.Where)
	is, ok := where.This.(*ast.Is)
	if !ok {
		return tree
	}
	if _, ok := is.Expression.(*ast.Null); !ok {
		return tree
	}
	condCol, ok := is.This.(*ast.Column)
	if !ok || condCol.Table == nil {
		return tree
	}
	condTable, ok := condCol.Table.(*ast.Identifier)
	if !ok {
		return tree
	}
	eq, ok := join.On.(*ast.EQ)
	if !ok {
		return tree
	}
	from, ok := tree.From.(*ast.From)
	if !ok {
		return tree
	}
	fromTableName, ok := tableName(from.This)
	if !ok {
		return tree
	}
	v1Table, _, ok1 := columnParts(eq.This)
	v2Table, _, ok2 := columnParts(eq.Expression)
	if !ok1 || !ok2 {
		return tree
	}
	var outerSide, innerSide ast.Node
	if v1Table == fromTableName && v2Table == condTable.This {
		outerSide, innerSide = eq.This, eq.Expression
	} else if v2Table == fromTableName && v1Table == condTable.This {
		outerSide, innerSide = eq.Expression, eq.This
	} else {
		return tree
	}

	subSelect := &ast.Select{
		Expressions: []ast.Node{innerSide},
		From:        &ast.From{This: &ast.Table{This: &ast.Identifier{This: condTable.This}}},
	}
	out := *tree
	out.Where = &ast.Where{This: &ast.Not{This: &ast.In{This: outerSide, Query: &ast.Subquery{This: subSelect}}}}
	out.Joins = nil
	return &out
}
