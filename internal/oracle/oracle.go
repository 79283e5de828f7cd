// Package oracle is the equivalence oracle of spec.md §5: given two parsed
// queries and the schema they run against, canonicalize both with the same
// rule set and report whether the canonical forms are structurally equal.
package oracle

import (
	"etm/internal/ast"
	"etm/internal/rewrite"
	"etm/internal/rules"
	"etm/internal/schema"
)

// Trace receives rule-application messages when non-nil, the same shape the
// CLI's --verbose flag surfaces (spec.md §6).
type Trace func(string)

// DefaultRuleIDs is every rule the ALLRULES constant of treeMatch.py names.
func DefaultRuleIDs() []int {
	ids := append([]int(nil), rules.AllIDs()...)
	return append(ids, rules.SetOperationRuleIDs()...)
}

// Compare canonicalizes pred and gold against a single clone of db - shared
// between both calls so rule 19's schema-fact propagation on one side is
// visible while canonicalizing the other, matching compareTrees in
// treeMatch.py - and reports whether the results are structurally equal.
func Compare(pred, gold ast.Node, db *schema.Database, ruleIDs []int, trace Trace) bool {
	canonPred, canonGold := CanonicalizeBoth(pred, gold, db, ruleIDs, trace)
	return ast.Equal(canonPred, canonGold)
}

// CanonicalizeBoth runs the rewrite engine on gold then pred, sharing one
// schema clone, and returns both canonical trees - exposed separately from
// Compare so callers (the CLI's --verbose trace) can print them. Gold is
// canonicalized first to match compareTrees(treegold, treepred, ...) in
// treeMatch.py: rule 19 mutates the shared clone, so which side runs first
// determines which side's derived facts (e.g. a join-induced uniqueness)
// are visible while canonicalizing the other.
func CanonicalizeBoth(pred, gold ast.Node, db *schema.Database, ruleIDs []int, trace Trace) (ast.Node, ast.Node) {
	clone := db.Clone()
	driver := rewrite.New(clone, ruleIDs)
	driver.Trace = trace

	canonGold := driver.Apply(gold)
	canonPred := driver.Apply(pred)
	return canonPred, canonGold
}
