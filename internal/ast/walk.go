package ast

// Transform walks n in post-order (children rewritten before their parent)
// and applies fn to every node, rebuilding parents whose children changed.
// Rules in package rules are written as a single Transform call with a
// type-switching fn, mirroring the "visit every node" shape every
// canonicalization and semantic rule needs.
func Transform(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	rebuilt := rebuildChildren(n, func(c Node) Node { return Transform(c, fn) })
	return fn(rebuilt)
}

func transformList(list []Node, fn func(Node) Node) []Node {
	if list == nil {
		return nil
	}
	out := make([]Node, len(list))
	for i, c := range list {
		out[i] = Transform(c, fn)
	}
	return out
}

// rebuildChildren applies walkChild to every Node/[]Node slot of n and
// returns a new node of the same concrete type with the results. It is the
// one place that knows every variant's shape, matching the "generic
// visit-all-children helper driven by a per-variant schema" called for in
// the design notes.
func rebuildChildren(n Node, walkChild func(Node) Node) Node {
	switch v := n.(type) {
	case *Select:
		return &Select{
			Expressions: transformList(v.Expressions, walkChild),
			Distinct:    v.Distinct,
			From:        walkChild(v.From),
			Joins:       transformList(v.Joins, walkChild),
			Where:       walkChild(v.Where),
			Group:       walkChild(v.Group),
			Order:       walkChild(v.Order),
			Limit:       walkChild(v.Limit),
			With:        walkChild(v.With),
		}
	case *Intersect:
		return &Intersect{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Union:
		return &Union{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Except:
		return &Except{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *From:
		return &From{This: walkChild(v.This)}
	case *Join:
		return &Join{This: walkChild(v.This), On: walkChild(v.On), Side: v.Side}
	case *Where:
		return &Where{This: walkChild(v.This)}
	case *Group:
		return &Group{Expressions: transformList(v.Expressions, walkChild)}
	case *Order:
		return &Order{Expressions: transformList(v.Expressions, walkChild)}
	case *Limit:
		return &Limit{Expression: walkChild(v.Expression)}
	case *With:
		return &With{Expressions: transformList(v.Expressions, walkChild)}
	case *CTE:
		return &CTE{This: walkChild(v.This), Alias: walkChild(v.Alias)}
	case *Column:
		return &Column{This: walkChild(v.This), Table: walkChild(v.Table)}
	case *Literal:
		return &Literal{This: v.This, IsString: v.IsString}
	case *Identifier:
		return &Identifier{This: v.This, Quoted: v.Quoted}
	case *Star:
		return &Star{}
	case *Table:
		return &Table{This: walkChild(v.This), Alias: walkChild(v.Alias)}
	case *TableAlias:
		return &TableAlias{This: walkChild(v.This)}
	case *Alias:
		return &Alias{This: walkChild(v.This), Alias: walkChild(v.Alias)}
	case *Paren:
		return &Paren{This: walkChild(v.This)}
	case *Subquery:
		return &Subquery{This: walkChild(v.This)}
	case *EQ:
		return &EQ{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *NEQ:
		return &NEQ{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *GT:
		return &GT{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *GTE:
		return &GTE{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *LT:
		return &LT{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *LTE:
		return &LTE{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *And:
		return &And{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Or:
		return &Or{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Not:
		return &Not{This: walkChild(v.This)}
	case *In:
		return &In{This: walkChild(v.This), Expressions: transformList(v.Expressions, walkChild), Query: walkChild(v.Query)}
	case *Between:
		return &Between{This: walkChild(v.This), Low: walkChild(v.Low), High: walkChild(v.High)}
	case *Is:
		return &Is{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Like:
		return &Like{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Count:
		return &Count{This: walkChild(v.This), BigInt: v.BigInt}
	case *Sum:
		return &Sum{This: walkChild(v.This)}
	case *Avg:
		return &Avg{This: walkChild(v.This)}
	case *Min:
		return &Min{This: walkChild(v.This)}
	case *Max:
		return &Max{This: walkChild(v.This)}
	case *Cast:
		return &Cast{This: walkChild(v.This), To: walkChild(v.To)}
	case *Substring:
		return &Substring{This: walkChild(v.This), Start: walkChild(v.Start), Length: walkChild(v.Length)}
	case *Case:
		return &Case{Ifs: transformList(v.Ifs, walkChild), Default: walkChild(v.Default)}
	case *If:
		return &If{This: walkChild(v.This), True: walkChild(v.True), False: walkChild(v.False)}
	case *Ordered:
		return &Ordered{This: walkChild(v.This), Desc: v.Desc}
	case *Anonymous:
		return &Anonymous{This: v.This, Expressions: transformList(v.Expressions, walkChild)}
	case *Div:
		return &Div{This: walkChild(v.This), Expression: walkChild(v.Expression)}
	case *Distinct:
		return &Distinct{Expressions: transformList(v.Expressions, walkChild)}
	case *Null:
		return &Null{}
	case *DataType:
		return &DataType{This: v.This}
	default:
		return n
	}
}

// Children returns every direct Node child of n (flattening list slots),
// skipping nils. Used by rules that only need "every immediate child",
// not a full recursive rewrite.
func Children(n Node) []Node {
	var out []Node
	for _, s := range n.Slots() {
		if c, ok := s.Node(); ok && c != nil {
			out = append(out, c)
		}
		if l, ok := s.List(); ok {
			for _, c := range l {
				if c != nil {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// Lowercase lowercases every string scalar slot in n (but not Literal
// values, and not the node's own identity) without descending into
// children — rule 100 drives recursion itself via Transform.
func Lowercase(n Node) Node {
	switch v := n.(type) {
	case *Identifier:
		return &Identifier{This: lower(v.This), Quoted: v.Quoted}
	case *Anonymous:
		return &Anonymous{This: lower(v.This), Expressions: v.Expressions}
	case *DataType:
		return &DataType{This: lower(v.This)}
	default:
		return n
	}
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
