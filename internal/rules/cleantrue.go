package rules

import (
	"etm/internal/ast"
	"etm/internal/schema"
)

// CleanTrues removes the literal-true markers (1.0 = 1.0) that several rules
// leave behind in place of a predicate they proved always holds, folding
// them out of AND/OR and dropping an all-true WHERE clause entirely.
// Grounded on cleanTrues in treeMatch.py; run after every rule pass.
func CleanTrues(tree *ast.Select, db *schema.Database) *ast.Select {
	fold := func(n ast.Node) ast.Node {
		switch v := n.(type) {
		case *ast.And:
			if isLiteralTrue(v.This) {
				return v.Expression
			}
			if isLiteralTrue(v.Expression) {
				return v.This
			}
		case *ast.Or:
			if isLiteralTrue(v.This) {
				return v.Expression
			}
			if isLiteralTrue(v.Expression) {
				return v.This
			}
		}
		return n
	}
	out := ast.Transform(tree, fold).(*ast.Select)
	if out.Where != nil {
		if w, ok := out.Where.(*ast.Where); ok && isLiteralTrue(w.This) {
			clone := *out
			clone.Where = nil
			return &clone
		}
	}
	return out
}
