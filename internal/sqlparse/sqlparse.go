// Package sqlparse is the external "SQL parser" of spec.md §1: it owns no
// rewrite semantics, it only turns SQL text into this repository's own
// internal/ast tree. It wraps github.com/pingcap/tidb/pkg/parser, the same
// MySQL-compatible parser the teacher already used for schema DDL, reused
// here for DML.
package sqlparse

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	tidbast "github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"etm/internal/ast"
)

// Parser parses a single SQL statement into this repository's query tree.
type Parser struct {
	p *parser.Parser
}

func New() *Parser {
	return &Parser{p: parser.New()}
}

// Parse parses sql, which must contain exactly one statement, and converts
// it into an ast.Node rooted at Select/Union/Intersect/Except (invariant I1).
func (p *Parser) Parse(sql string) (ast.Node, error) {
	stmt, err := p.p.ParseOneStmt(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("sqlparse: %w", err)
	}
	return convertStmt(stmt)
}

func convertStmt(stmt tidbast.StmtNode) (ast.Node, error) {
	switch s := stmt.(type) {
	case *tidbast.SelectStmt:
		return convertSelect(s)
	case *tidbast.SetOprStmt:
		return convertSetOpr(s)
	default:
		return nil, fmt.Errorf("sqlparse: unsupported statement %T", stmt)
	}
}

func convertSetOpr(s *tidbast.SetOprStmt) (ast.Node, error) {
	if s.SelectList == nil || len(s.SelectList.Selects) == 0 {
		return nil, fmt.Errorf("sqlparse: empty set operation")
	}
	selects := s.SelectList.Selects
	first, err := convertResultSet(selects[0])
	if err != nil {
		return nil, err
	}
	result := first
	for _, sel := range selects[1:] {
		right, err := convertResultSet(sel)
		if err != nil {
			return nil, err
		}
		op := tidbast.Union
		if ss, ok := sel.(*tidbast.SelectStmt); ok {
			op = ss.AfterSetOperator.ToString2Opr()
		}
		result = combineSetOp(result, right, op)
	}
	return result, nil
}

// combineSetOp builds the node for one set-operator step. TiDB's AfterSetOperator
// enumerates Union/UnionAll/Intersect/IntersectAll/Except/ExceptAll; set
// quantifiers (ALL/DISTINCT) carry no separate node in spec.md §3's model.
func combineSetOp(left, right ast.Node, op string) ast.Node {
	switch strings.ToUpper(op) {
	case "INTERSECT", "INTERSECT ALL":
		return &ast.Intersect{This: left, Expression: right}
	case "EXCEPT", "EXCEPT ALL":
		return &ast.Except{This: left, Expression: right}
	default:
		return &ast.Union{This: left, Expression: right}
	}
}

func convertResultSet(n tidbast.ResultSetNode) (ast.Node, error) {
	switch v := n.(type) {
	case *tidbast.SelectStmt:
		return convertSelect(v)
	case *tidbast.SetOprStmt:
		return convertSetOpr(v)
	default:
		return nil, fmt.Errorf("sqlparse: unsupported result set %T", n)
	}
}

func convertSelect(s *tidbast.SelectStmt) (ast.Node, error) {
	sel := &ast.Select{Distinct: s.Distinct}

	if s.With != nil {
		with, err := convertWith(s.With)
		if err != nil {
			return nil, err
		}
		sel.With = with
	}

	if s.Fields != nil {
		for _, f := range s.Fields.Fields {
			expr, err := convertSelectField(f)
			if err != nil {
				return nil, err
			}
			sel.Expressions = append(sel.Expressions, expr)
		}
	}

	if s.From != nil && s.From.TableRefs != nil {
		from, joins, err := convertTableRefs(s.From.TableRefs)
		if err != nil {
			return nil, err
		}
		sel.From = from
		sel.Joins = joins
	}

	if s.Where != nil {
		where, err := convertExpr(s.Where)
		if err != nil {
			return nil, err
		}
		sel.Where = &ast.Where{This: where}
	}

	if s.GroupBy != nil {
		var exprs []ast.Node
		for _, item := range s.GroupBy.Items {
			e, err := convertExpr(item.Expr)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		sel.Group = &ast.Group{Expressions: exprs}
	}

	if s.OrderBy != nil {
		var exprs []ast.Node
		for _, item := range s.OrderBy.Items {
			e, err := convertExpr(item.Expr)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, &ast.Ordered{This: e, Desc: item.Desc})
		}
		sel.Order = &ast.Order{Expressions: exprs}
	}

	if s.Limit != nil {
		e, err := convertExpr(s.Limit.Count)
		if err != nil {
			return nil, err
		}
		sel.Limit = &ast.Limit{Expression: e}
	}

	return sel, nil
}

func convertWith(w *tidbast.WithClause) (ast.Node, error) {
	var exprs []ast.Node
	for _, cte := range w.CTEs {
		var body ast.Node
		var err error
		switch q := cte.Query.Query.(type) {
		case *tidbast.SelectStmt:
			body, err = convertSelect(q)
		case *tidbast.SetOprStmt:
			body, err = convertSetOpr(q)
		default:
			err = fmt.Errorf("sqlparse: unsupported CTE body %T", q)
		}
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, &ast.CTE{
			This:  body,
			Alias: &ast.Identifier{This: cte.Name.L},
		})
	}
	return &ast.With{Expressions: exprs}, nil
}

func convertSelectField(f *tidbast.SelectField) (ast.Node, error) {
	if f.WildCard != nil {
		col := &ast.Column{This: &ast.Star{}}
		if f.WildCard.Table.L != "" {
			col.Table = &ast.Identifier{This: f.WildCard.Table.L}
		}
		return col, nil
	}
	expr, err := convertExpr(f.Expr)
	if err != nil {
		return nil, err
	}
	if f.AsName.L != "" {
		return &ast.Alias{This: expr, Alias: &ast.Identifier{This: f.AsName.L}}, nil
	}
	return expr, nil
}

func convertTableRefs(join *tidbast.Join) (from ast.Node, joins []ast.Node, err error) {
	tables, ons, sides, err := flattenJoin(join)
	if err != nil {
		return nil, nil, err
	}
	if len(tables) == 0 {
		return nil, nil, fmt.Errorf("sqlparse: empty FROM")
	}
	from = &ast.From{This: tables[0]}
	for i := 1; i < len(tables); i++ {
		joins = append(joins, &ast.Join{This: tables[i], On: ons[i-1], Side: sides[i-1]})
	}
	return from, joins, nil
}

// flattenJoin linearizes TiDB's binary *Join tree into FROM-table order plus
// the ON condition/side that introduced each subsequent table.
func flattenJoin(join *tidbast.Join) (tables []ast.Node, ons []ast.Node, sides []*string, err error) {
	left, right := join.Left, join.Right
	if lj, ok := left.(*tidbast.Join); ok && lj.Right != nil {
		tables, ons, sides, err = flattenJoin(lj)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		t, convErr := convertResultSetSource(left)
		if convErr != nil {
			return nil, nil, nil, convErr
		}
		tables = []ast.Node{t}
	}

	if right == nil {
		return tables, ons, sides, nil
	}

	t, convErr := convertResultSetSource(right)
	if convErr != nil {
		return nil, nil, nil, convErr
	}
	tables = append(tables, t)

	var on ast.Node
	if join.On != nil {
		on, err = convertExpr(join.On.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	ons = append(ons, on)
	sides = append(sides, joinSide(join.Tp))
	return tables, ons, sides, nil
}

func joinSide(tp tidbast.JoinType) *string {
	var s string
	switch tp {
	case tidbast.LeftJoin:
		s = "left"
	case tidbast.RightJoin:
		s = "right"
	case tidbast.CrossJoin:
		return nil
	default:
		return nil
	}
	return &s
}

func convertResultSetSource(n tidbast.ResultSetNode) (ast.Node, error) {
	switch v := n.(type) {
	case *tidbast.TableSource:
		inner, err := convertTableSourceInner(v.Source)
		if err != nil {
			return nil, err
		}
		if v.AsName.L != "" {
			if tbl, ok := inner.(*ast.Table); ok {
				tbl.Alias = &ast.TableAlias{This: &ast.Identifier{This: v.AsName.L}}
				return tbl, nil
			}
			return inner, nil
		}
		return inner, nil
	case *tidbast.Join:
		from, joins, err := convertTableRefs(v)
		if err != nil {
			return nil, err
		}
		if len(joins) != 0 {
			return nil, fmt.Errorf("sqlparse: nested multi-table join in FROM is not supported")
		}
		return from.(*ast.From).This, nil
	default:
		return nil, fmt.Errorf("sqlparse: unsupported table reference %T", n)
	}
}

func convertTableSourceInner(n tidbast.ResultSetNode) (ast.Node, error) {
	switch v := n.(type) {
	case *tidbast.TableName:
		return &ast.Table{This: &ast.Identifier{This: v.Name.L}}, nil
	case *tidbast.SelectStmt:
		sub, err := convertSelect(v)
		if err != nil {
			return nil, err
		}
		return &ast.Subquery{This: sub}, nil
	case *tidbast.SetOprStmt:
		sub, err := convertSetOpr(v)
		if err != nil {
			return nil, err
		}
		return &ast.Subquery{This: sub}, nil
	default:
		return nil, fmt.Errorf("sqlparse: unsupported table source %T", n)
	}
}

func convertExpr(e tidbast.ExprNode) (ast.Node, error) {
	switch v := e.(type) {
	case *tidbast.ColumnNameExpr:
		col := &ast.Column{This: &ast.Identifier{This: v.Name.Name.L}}
		if v.Name.Table.L != "" {
			col.Table = &ast.Identifier{This: v.Name.Table.L}
		}
		return col, nil
	case tidbast.ValueExpr:
		return convertValue(v)
	case *tidbast.ParenthesesExpr:
		inner, err := convertExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.Paren{This: inner}, nil
	case *tidbast.BinaryOperationExpr:
		return convertBinary(v)
	case *tidbast.UnaryOperationExpr:
		if v.Op == opcode.Not {
			inner, err := convertExpr(v.V)
			if err != nil {
				return nil, err
			}
			return &ast.Not{This: inner}, nil
		}
		return convertExpr(v.V)
	case *tidbast.IsNullExpr:
		inner, err := convertExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		is := &ast.Is{This: inner, Expression: &ast.Null{}}
		if v.Not {
			return &ast.Not{This: is}, nil
		}
		return is, nil
	case *tidbast.BetweenExpr:
		expr, err := convertExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		lo, err := convertExpr(v.Left)
		if err != nil {
			return nil, err
		}
		hi, err := convertExpr(v.Right)
		if err != nil {
			return nil, err
		}
		b := &ast.Between{This: expr, Low: lo, High: hi}
		if v.Not {
			return &ast.Not{This: b}, nil
		}
		return b, nil
	case *tidbast.PatternInExpr:
		return convertIn(v)
	case *tidbast.PatternLikeOrIlikeExpr:
		expr, err := convertExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		pat, err := convertExpr(v.Pattern)
		if err != nil {
			return nil, err
		}
		like := &ast.Like{This: expr, Expression: pat}
		if v.Not {
			return &ast.Not{This: like}, nil
		}
		return like, nil
	case *tidbast.SubqueryExpr:
		inner, err := convertResultSet(v.Query)
		if err != nil {
			return nil, err
		}
		return &ast.Subquery{This: inner}, nil
	case *tidbast.AggregateFuncExpr:
		return convertAggregate(v)
	case *tidbast.FuncCallExpr:
		return convertFuncCall(v)
	case *tidbast.FuncCastExpr:
		inner, err := convertExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.Cast{This: inner, To: &ast.DataType{This: strings.ToUpper(v.Tp.String())}}, nil
	case *tidbast.CaseExpr:
		return convertCase(v)
	default:
		return nil, fmt.Errorf("sqlparse: unsupported expression %T", e)
	}
}

func convertBinary(v *tidbast.BinaryOperationExpr) (ast.Node, error) {
	l, err := convertExpr(v.L)
	if err != nil {
		return nil, err
	}
	r, err := convertExpr(v.R)
	if err != nil {
		return nil, err
	}
	switch v.Op {
	case opcode.EQ:
		return &ast.EQ{This: l, Expression: r}, nil
	case opcode.NE:
		return &ast.NEQ{This: l, Expression: r}, nil
	case opcode.GT:
		return &ast.GT{This: l, Expression: r}, nil
	case opcode.GE:
		return &ast.GTE{This: l, Expression: r}, nil
	case opcode.LT:
		return &ast.LT{This: l, Expression: r}, nil
	case opcode.LE:
		return &ast.LTE{This: l, Expression: r}, nil
	case opcode.LogicAnd:
		return &ast.And{This: l, Expression: r}, nil
	case opcode.LogicOr:
		return &ast.Or{This: l, Expression: r}, nil
	case opcode.Div, opcode.IntDiv:
		return &ast.Div{This: l, Expression: r}, nil
	default:
		return nil, fmt.Errorf("sqlparse: unsupported operator %v", v.Op)
	}
}

func convertIn(v *tidbast.PatternInExpr) (ast.Node, error) {
	expr, err := convertExpr(v.Expr)
	if err != nil {
		return nil, err
	}
	var in *ast.In
	if v.Sel != nil {
		sub, err := convertExpr(v.Sel)
		if err != nil {
			return nil, err
		}
		in = &ast.In{This: expr, Query: sub}
	} else {
		var list []ast.Node
		for _, e := range v.List {
			item, err := convertExpr(e)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		in = &ast.In{This: expr, Expressions: list}
	}
	if v.Not {
		return &ast.Not{This: in}, nil
	}
	return in, nil
}

func convertAggregate(v *tidbast.AggregateFuncExpr) (ast.Node, error) {
	name := strings.ToUpper(v.F)
	if name == "COUNT" && len(v.Args) == 1 {
		if _, ok := v.Args[0].(*tidbast.WildCardField); ok {
			return &ast.Count{This: &ast.Star{}, BigInt: true}, nil
		}
	}
	var arg ast.Node = &ast.Star{}
	if len(v.Args) > 0 {
		a, err := convertExpr(v.Args[0])
		if err != nil {
			return nil, err
		}
		arg = a
	}
	if v.Distinct {
		arg = &ast.Distinct{Expressions: []ast.Node{arg}}
	}
	switch name {
	case "COUNT":
		return &ast.Count{This: arg}, nil
	case "SUM":
		return &ast.Sum{This: arg}, nil
	case "AVG":
		return &ast.Avg{This: arg}, nil
	case "MIN":
		return &ast.Min{This: arg}, nil
	case "MAX":
		return &ast.Max{This: arg}, nil
	default:
		return nil, fmt.Errorf("sqlparse: unsupported aggregate %s", v.F)
	}
}

func convertFuncCall(v *tidbast.FuncCallExpr) (ast.Node, error) {
	name := strings.ToLower(v.FnName.L)
	var args []ast.Node
	for _, a := range v.Args {
		c, err := convertExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, c)
	}
	switch name {
	case "substr", "substring":
		if len(args) != 3 {
			return nil, fmt.Errorf("sqlparse: substr requires 3 arguments")
		}
		return &ast.Substring{This: args[0], Start: args[1], Length: args[2]}, nil
	case "if":
		if len(args) != 3 {
			return nil, fmt.Errorf("sqlparse: if requires 3 arguments")
		}
		return &ast.If{This: args[0], True: args[1], False: args[2]}, nil
	default:
		return &ast.Anonymous{This: name, Expressions: args}, nil
	}
}

func convertCase(v *tidbast.CaseExpr) (ast.Node, error) {
	var ifs []ast.Node
	for _, w := range v.WhenClauses {
		cond, err := convertExpr(w.Expr)
		if err != nil {
			return nil, err
		}
		res, err := convertExpr(w.Result)
		if err != nil {
			return nil, err
		}
		ifs = append(ifs, &ast.If{This: cond, True: res})
	}
	var def ast.Node
	if v.ElseClause != nil {
		d, err := convertExpr(v.ElseClause)
		if err != nil {
			return nil, err
		}
		def = d
	}
	return &ast.Case{Ifs: ifs, Default: def}, nil
}

func convertValue(v tidbast.ValueExpr) (ast.Node, error) {
	datum := v.GetValue()
	if datum == nil {
		return &ast.Null{}, nil
	}
	switch val := datum.(type) {
	case string:
		return &ast.Literal{This: val, IsString: true}, nil
	case []byte:
		return &ast.Literal{This: string(val), IsString: true}, nil
	default:
		return &ast.Literal{This: fmt.Sprint(val), IsString: false}, nil
	}
}
