// Package rewrite drives the rule library in package rules to a fixed
// point. It mirrors the structure of treeMatch.py's applyRules: CTE bodies
// are inlined, every nested subquery is canonicalized before the query that
// contains it, the three set-operation-level rules (3, 5, 21) apply to
// Intersect/Union/Except nodes, and every remaining Select is rewritten by
// repeatedly running the ordered rule list until nothing changes.
package rewrite

import (
	"fmt"

	"etm/internal/ast"
	"etm/internal/rules"
	"etm/internal/schema"
)

// MaxIterations bounds the per-Select fixed-point loop. treeMatch.py loops
// until the tree stops changing with no cap; a handful of hand-written rules
// interacting badly could in principle oscillate, so this is the safety net
// spec.md §9 calls for - it is far above any rule set's real convergence
// depth.
const MaxIterations = 64

// Driver holds the state one call to the rewrite engine needs: which rules
// are enabled, the schema they read (and rule 19 mutates), and an optional
// trace sink.
type Driver struct {
	DB      *schema.Database
	RuleSet map[int]bool
	Trace   func(string)
}

// New builds a Driver with every rule in ruleIDs enabled.
func New(db *schema.Database, ruleIDs []int) *Driver {
	set := make(map[int]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		set[id] = true
	}
	return &Driver{DB: db, RuleSet: set}
}

func (d *Driver) enabled(id int) bool { return d.RuleSet[id] }

func (d *Driver) trace(format string, args ...any) {
	if d.Trace != nil {
		d.Trace(fmt.Sprintf(format, args...))
	}
}

// Apply canonicalizes tree (rooted at Select, Union, Intersect, or Except)
// to a fixed point and returns the rewritten tree.
func (d *Driver) Apply(tree ast.Node) ast.Node {
	if tree == nil {
		return nil
	}
	return ast.Transform(tree, d.visit)
}

// visit is ast.Transform's callback: by the time it sees a node, every
// descendant has already been visited (and, for Select/set-op nodes,
// rule-applied), so nested subqueries are always canonicalized before the
// query that contains them - invariant I3.
func (d *Driver) visit(n ast.Node) ast.Node {
	switch v := n.(type) {
	case *ast.Select:
		return d.applySelect(v)
	case *ast.Intersect:
		return d.applyIntersect(v)
	case *ast.Union:
		return d.applyUnion(v)
	case *ast.Except:
		return d.applyExcept(v)
	default:
		return n
	}
}

func (d *Driver) applySelect(tree *ast.Select) *ast.Select {
	tree = d.inlineCTEs(tree)

	current := tree
	for i := 0; i < MaxIterations; i++ {
		before := current
		for _, r := range rules.All() {
			if !d.enabled(r.ID()) {
				continue
			}
			next := r.Apply(current, d.DB)
			if !ast.Equal(next, current) {
				d.trace("Applied Rule %d", r.ID())
			}
			current = next
		}
		cleaned := rules.CleanTrues(current, d.DB)
		if !ast.Equal(cleaned, current) {
			d.trace("Cleaned Trues")
		}
		current = cleaned
		if ast.Equal(current, before) {
			break
		}
	}
	return current
}

// inlineCTEs implements rule 26: every CTE body is spliced in as a subquery
// at each reference to its alias, and rule-applied itself before splicing so
// it reaches the same fixed point a subquery reached via FROM would.
func (d *Driver) inlineCTEs(tree *ast.Select) *ast.Select {
	if tree.With == nil || !d.enabled(26) {
		return tree
	}
	with, ok := tree.With.(*ast.With)
	if !ok {
		return tree
	}
	out := *tree
	out.With = nil
	result := ast.Node(&out)
	for _, e := range with.Expressions {
		cte, ok := e.(*ast.CTE)
		if !ok {
			continue
		}
		aliasID, ok := cte.Alias.(*ast.Identifier)
		if !ok {
			continue
		}
		body := d.Apply(ast.Clone(cte.This))
		replacement := &ast.Subquery{This: body}
		result = ast.Transform(result, func(n ast.Node) ast.Node {
			if tbl, ok := n.(*ast.Table); ok {
				if id, ok := tbl.This.(*ast.Identifier); ok && id.This == aliasID.This {
					return replacement
				}
				return n
			}
			col, ok := n.(*ast.Column)
			if !ok || col.Table == nil {
				return n
			}
			id, ok := col.Table.(*ast.Identifier)
			if ok && id.This == aliasID.This {
				nc := *col
				nc.Table = nil
				nc.This = replacement
				return &nc
			}
			return n
		})
	}
	d.trace("Applied Rule 26")
	return result.(*ast.Select)
}

func (d *Driver) applyIntersect(v *ast.Intersect) ast.Node {
	if d.enabled(21) && ast.Equal(v.This, v.Expression) {
		d.trace("Applied Rule 21")
		return v.This
	}
	if d.enabled(3) {
		if merged, ok := mergeSetOpUnique(v.This, v.Expression, d.DB, true); ok {
			d.trace("Applied Rule 3")
			return d.applySelect(merged)
		}
	}
	return v
}

func (d *Driver) applyUnion(v *ast.Union) ast.Node {
	if d.enabled(21) && ast.Equal(v.This, v.Expression) {
		d.trace("Applied Rule 21")
		return v.This
	}
	if d.enabled(3) {
		if merged, ok := mergeSetOpUnique(v.This, v.Expression, d.DB, false); ok {
			d.trace("Applied Rule 3")
			return d.applySelect(merged)
		}
	}
	return v
}

func (d *Driver) applyExcept(v *ast.Except) ast.Node {
	if !d.enabled(5) {
		return v
	}
	if merged, ok := exceptToNotIn(v.This, v.Expression, d.DB); ok {
		d.trace("Applied Rule 5")
		return d.applySelect(merged)
	}
	return v
}

// mergeSetOpUnique implements rules 3: `select c1 from t where a INTERSECT
// select c1 from t where b` collapses to `select c1 from t where a and b`
// (or `or` for UNION) when c1 is a single unique column and both sides read
// the same table.
func mergeSetOpUnique(left, right ast.Node, db *schema.Database, and bool) (*ast.Select, bool) {
	l, ok := left.(*ast.Select)
	if !ok {
		return nil, false
	}
	r, ok := right.(*ast.Select)
	if !ok {
		return nil, false
	}
	if len(l.Expressions) != 1 || len(r.Expressions) != 1 {
		return nil, false
	}
	if !ast.Equal(l.Expressions[0], r.Expressions[0]) {
		return nil, false
	}
	table, name, ok := rules.ColumnParts(l.Expressions[0])
	if !ok {
		return nil, false
	}
	t, ok := db.Table(table)
	if !ok || !t.IsUnique(name) {
		return nil, false
	}
	if !ast.Equal(l.From, r.From) {
		return nil, false
	}
	if l.Where == nil || r.Where == nil {
		return nil, false
	}
	lw := l.Where.(*ast.Where)
	rw := r.Where.(*ast.Where)
	var combined ast.Node
	if and {
		combined = &ast.And{This: lw.This, Expression: rw.This}
	} else {
		combined = &ast.Or{This: lw.This, Expression: rw.This}
	}
	out := *l
	out.Where = &ast.Where{This: combined}
	return &out, true
}

// exceptToNotIn implements rule 5: `select c1 from t EXCEPT q` becomes
// `select c1 from t where c1 not in (q) [and <existing where>]` when c1 is
// unique and non-null.
func exceptToNotIn(left, right ast.Node, db *schema.Database) (*ast.Select, bool) {
	outer, ok := left.(*ast.Select)
	if !ok || len(outer.Expressions) != 1 {
		return nil, false
	}
	col := outer.Expressions[0]
	table, name, ok := rules.ColumnParts(col)
	if !ok {
		return nil, false
	}
	t, ok := db.Table(table)
	if !ok || !t.IsUnique(name) || !t.IsNonNull(name) {
		return nil, false
	}
	notIn := &ast.Not{This: &ast.In{This: col, Query: &ast.Subquery{This: right}}}
	out := *outer
	if out.Where != nil {
		w := out.Where.(*ast.Where)
		out.Where = &ast.Where{This: &ast.And{This: notIn, Expression: w.This}}
	} else {
		out.Where = &ast.Where{This: notIn}
	}
	return &out, true
}
