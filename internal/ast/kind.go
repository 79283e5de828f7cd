// Package ast defines the tagged-variant query tree that the rewrite engine
// operates on. Nodes are immutable by convention: every transformation in
// package rules returns a new node instead of mutating one in place.
package ast

// Kind names a node variant. Rule 102/104/105 sort siblings by
// (Kind, String()) so Kind strings double as the first half of that order;
// they must stay stable across releases.
type Kind string

const (
	KindSelect    Kind = "Select"
	KindIntersect Kind = "Intersect"
	KindUnion     Kind = "Union"
	KindExcept    Kind = "Except"

	KindFrom  Kind = "From"
	KindJoin  Kind = "Join"
	KindWhere Kind = "Where"
	KindGroup Kind = "Group"
	KindOrder Kind = "Order"
	KindLimit Kind = "Limit"
	KindWith  Kind = "With"
	KindCTE   Kind = "CTE"

	KindColumn     Kind = "Column"
	KindLiteral    Kind = "Literal"
	KindIdentifier Kind = "Identifier"
	KindStar       Kind = "Star"
	KindTable      Kind = "Table"
	KindTableAlias Kind = "TableAlias"
	KindAlias      Kind = "Alias"
	KindParen      Kind = "Paren"
	KindSubquery   Kind = "Subquery"

	KindEQ      Kind = "EQ"
	KindNEQ     Kind = "NEQ"
	KindGT      Kind = "GT"
	KindGTE     Kind = "GTE"
	KindLT      Kind = "LT"
	KindLTE     Kind = "LTE"
	KindAnd     Kind = "And"
	KindOr      Kind = "Or"
	KindNot     Kind = "Not"
	KindIn      Kind = "In"
	KindBetween Kind = "Between"
	KindIs      Kind = "Is"
	KindLike    Kind = "Like"

	KindCount     Kind = "Count"
	KindSum       Kind = "Sum"
	KindAvg       Kind = "Avg"
	KindMin       Kind = "Min"
	KindMax       Kind = "Max"
	KindCast      Kind = "Cast"
	KindSubstring Kind = "Substring"
	KindCase      Kind = "Case"
	KindIf        Kind = "If"
	KindOrdered   Kind = "Ordered"
	KindAnonymous Kind = "Anonymous"
	KindDiv       Kind = "Div"
	KindDistinct  Kind = "Distinct"
	KindNull      Kind = "Null"
	KindDataType  Kind = "DataType"
)

// Node is implemented by every query-tree variant.
type Node interface {
	Kind() Kind
	// Slots returns the variant's named slots in declaration order. A slot
	// value is one of: Node, []Node, string, bool, float64, or nil.
	Slots() []Slot
}

// Slot is one named child of a node: a scalar, a single child, or an
// ordered list of children.
type Slot struct {
	Name  string
	Value any
}

func (s Slot) Node() (Node, bool) {
	n, ok := s.Value.(Node)
	return n, ok
}

func (s Slot) List() ([]Node, bool) {
	l, ok := s.Value.([]Node)
	return l, ok
}
