package rules

import (
	"etm/internal/ast"
	"etm/internal/schema"
)

// Func is the shape of every canonicalization/semantic rule: given a Select
// and the schema it runs against, return a (possibly) rewritten Select.
type Func func(tree *ast.Select, db *schema.Database) *ast.Select

// entry pairs a rule's spec number with its implementation, in the exact
// order applyRules walks them in treeMatch.py - canonicalization rules
// first, then semantic rules in ascending number order (21/3/5/26 are
// set-operation-level and applied by package rewrite directly, not here).
type entry struct {
	id int
	fn Func
}

var ordered = []entry{
	{100, Rule100},
	{101, Rule101},
	{102, Rule102},
	{103, Rule103},
	{104, Rule104},
	{105, Rule105},
	{106, Rule106},
	{107, Rule107},
	{108, Rule108},
	{1, Rule1},
	{2, Rule2},
	{4, Rule4},
	{6, Rule6},
	{7, Rule7},
	{8, Rule8},
	{9, Rule9},
	{10, Rule10},
	{11, Rule11},
	{12, Rule12},
	{13, Rule13},
	{14, Rule14},
	{15, Rule15},
	{16, Rule16},
	{17, Rule17},
	{18, Rule18},
	{19, Rule19},
	{20, Rule20},
	{22, Rule22},
	{23, Rule23},
	{24, Rule24},
	{25, Rule25},
}

// All returns the select-level rules in canonical application order.
func All() []entry { return ordered }

// ID returns the rule's spec number.
func (e entry) ID() int { return e.id }

// Apply runs the rule.
func (e entry) Apply(tree *ast.Select, db *schema.Database) *ast.Select { return e.fn(tree, db) }

// AllIDs lists every select-level rule number, for validating --rules flags.
func AllIDs() []int {
	ids := make([]int, len(ordered))
	for i, e := range ordered {
		ids[i] = e.id
	}
	return ids
}

// SetOperationRuleIDs lists the rule numbers handled outside this package by
// the fixed-point driver, because they act on Intersect/Union/Except/With
// nodes rather than a single Select.
func SetOperationRuleIDs() []int { return []int{3, 5, 21, 26} }
