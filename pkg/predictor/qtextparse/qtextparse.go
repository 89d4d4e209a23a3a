// Package qtextparse lowers a stored representative query text (the qtext
// table, keyed by fs) back into the plan-independent clause/relation shape
// the hasher (pkg/predictor/hash) consumes. Instead of rebuilding a
// domain-level query plan from the parsed AST, it walks straight to a
// []hash.Clause plus the relation signatures the statement touches, so a
// query class recovered from disk can be re-hashed without ever having
// re-observed the planner's own node tree.
package qtextparse

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
)

// ParsedClause is one restriction or join predicate recovered from the
// query text, together with the single relation it was attributed to.
// Relation is hash.NoOIDSignature() when the predicate spans more than one
// table (a join condition) or references an unqualified column.
type ParsedClause struct {
	Clause   hash.Clause
	Relation uint64
}

// ParsedQuery is the result of parsing one representative query string.
type ParsedQuery struct {
	RelSigs []uint64
	Clauses []ParsedClause
}

// Parse parses sql (expected to be a single SELECT statement, the shape
// representative query text is always stored in) and lowers its WHERE and
// JOIN...ON predicates into ParsedClause values. Only the first statement
// in sql is considered; trailing statements are ignored.
func Parse(sql string) (ParsedQuery, error) {
	p := parser.New()
	stmtNodes, _, err := p.ParseSQL(sql)
	if err != nil {
		return ParsedQuery{}, fmt.Errorf("qtextparse: parse: %w", err)
	}
	if len(stmtNodes) == 0 {
		return ParsedQuery{}, fmt.Errorf("qtextparse: no statement in query text")
	}
	selStmt, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return ParsedQuery{}, fmt.Errorf("qtextparse: statement is not a SELECT")
	}

	tables := make(map[string]uint64) // bare or aliased name -> relation signature
	var relSigs []uint64
	if selStmt.From != nil && selStmt.From.TableRefs != nil {
		collectTables(selStmt.From.TableRefs, tables, &relSigs)
	}

	var clauses []ParsedClause
	if selStmt.Where != nil {
		for _, conjunct := range flattenConjuncts(selStmt.Where) {
			clauses = append(clauses, toClause(conjunct, tables))
		}
	}
	if selStmt.From != nil && selStmt.From.TableRefs != nil {
		clauses = append(clauses, joinConditions(selStmt.From.TableRefs, tables)...)
	}

	return ParsedQuery{RelSigs: relSigs, Clauses: clauses}, nil
}

// collectTables walks a join tree left-to-right, recording each base table's
// alias (or its own name, when unaliased) against its relation signature
// and appending every signature to *relSigs in the order encountered.
func collectTables(node ast.ResultSetNode, tables map[string]uint64, relSigs *[]uint64) {
	switch n := node.(type) {
	case *ast.Join:
		if n.Left != nil {
			collectTables(n.Left, tables, relSigs)
		}
		if n.Right != nil {
			collectTables(n.Right, tables, relSigs)
		}
	case *ast.TableSource:
		if tableName, ok := n.Source.(*ast.TableName); ok {
			qualified := tableName.Name.O
			if tableName.Schema.O != "" {
				qualified = tableName.Schema.O + "." + qualified
			}
			sig := hash.PermanentTableSignature(qualified)
			key := tableName.Name.O
			if n.AsName.O != "" {
				key = n.AsName.O
			}
			tables[key] = sig
			*relSigs = append(*relSigs, sig)
		} else {
			collectTables(n.Source, tables, relSigs)
		}
	}
}

// joinConditions walks the join tree a second time, lowering every ON
// clause it finds into ParsedClause values through toClause: a conjunct
// whose columns span two relations is attributed to NoOIDSignature, one
// whose columns all belong to a single relation is attributed to it.
func joinConditions(node ast.ResultSetNode, tables map[string]uint64) []ParsedClause {
	join, ok := node.(*ast.Join)
	if !ok {
		return nil
	}
	var out []ParsedClause
	out = append(out, joinConditions(join.Left, tables)...)
	if join.On != nil && join.On.Expr != nil {
		for _, conjunct := range flattenConjuncts(join.On.Expr) {
			out = append(out, toClause(conjunct, tables))
		}
	}
	out = append(out, joinConditions(join.Right, tables)...)
	return out
}

// flattenConjuncts splits a WHERE/ON expression on its top-level ANDs,
// mirroring how a planner presents a conjunction as a list of independent
// restriction clauses rather than a single tree.
func flattenConjuncts(e ast.ExprNode) []ast.ExprNode {
	if paren, ok := e.(*ast.ParenthesesExpr); ok {
		return flattenConjuncts(paren.Expr)
	}
	if bin, ok := e.(*ast.BinaryOperationExpr); ok && bin.Op.String() == "and" {
		return append(flattenConjuncts(bin.L), flattenConjuncts(bin.R)...)
	}
	return []ast.ExprNode{e}
}

// toClause converts one top-level conjunct into a ParsedClause, attributing
// it to the single relation its columns belong to, or NoOIDSignature when
// it references more than one table (or none at all).
func toClause(e ast.ExprNode, tables map[string]uint64) ParsedClause {
	refs := make(map[uint64]struct{})
	collectColumnRelations(e, tables, refs)

	relation := hash.NoOIDSignature()
	if len(refs) == 1 {
		for sig := range refs {
			relation = sig
		}
	}

	expr := convertExpr(e)
	equality := false
	if bin, ok := e.(*ast.BinaryOperationExpr); ok {
		equality = bin.Op == opcode.EQ
	}
	return ParsedClause{Clause: hash.Clause{Expr: expr, Equality: equality}, Relation: relation}
}

func collectColumnRelations(e ast.ExprNode, tables map[string]uint64, out map[uint64]struct{}) {
	switch n := e.(type) {
	case *ast.ColumnNameExpr:
		if n.Name == nil {
			return
		}
		if sig, ok := tables[n.Name.Table.O]; ok {
			out[sig] = struct{}{}
		}
	case *ast.BinaryOperationExpr:
		collectColumnRelations(n.L, tables, out)
		collectColumnRelations(n.R, tables, out)
	case *ast.UnaryOperationExpr:
		collectColumnRelations(n.V, tables, out)
	case *ast.FuncCallExpr:
		for _, arg := range n.Args {
			collectColumnRelations(arg, tables, out)
		}
	case *ast.ParenthesesExpr:
		collectColumnRelations(n.Expr, tables, out)
	case *ast.PatternLikeOrIlikeExpr:
		collectColumnRelations(n.Expr, tables, out)
		collectColumnRelations(n.Pattern, tables, out)
	case *ast.PatternInExpr:
		collectColumnRelations(n.Expr, tables, out)
		for _, item := range n.List {
			collectColumnRelations(item, tables, out)
		}
	case *ast.BetweenExpr:
		collectColumnRelations(n.Expr, tables, out)
		collectColumnRelations(n.Left, tables, out)
		collectColumnRelations(n.Right, tables, out)
	case *ast.IsNullExpr:
		collectColumnRelations(n.Expr, tables, out)
	}
}

// convertExpr lowers a tidb expression node into the hasher's canonical
// tree. Node kinds the hasher has no use for (window functions, subqueries)
// fall through to the default case and are treated as an opaque constant
// leaf, so unfamiliar syntax degrades the clause rather than rejecting it.
func convertExpr(e ast.ExprNode) *hash.Expr {
	switch n := e.(type) {
	case *ast.BinaryOperationExpr:
		return &hash.Expr{Kind: hash.ExprOp, Operator: opLiteral(n.Op), Args: []*hash.Expr{convertExpr(n.L), convertExpr(n.R)}}

	case *ast.UnaryOperationExpr:
		return &hash.Expr{Kind: hash.ExprOp, Operator: n.Op.String(), Args: []*hash.Expr{convertExpr(n.V)}}

	case *ast.ParenthesesExpr:
		return convertExpr(n.Expr)

	case *ast.ColumnNameExpr:
		return &hash.Expr{Kind: hash.ExprColumn, Column: columnRef(n.Name)}

	case *ast.FuncCallExpr:
		args := make([]*hash.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = convertExpr(a)
		}
		return &hash.Expr{Kind: hash.ExprFunc, Function: n.FnName.O, Args: args}

	case *ast.AggregateFuncExpr:
		args := make([]*hash.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = convertExpr(a)
		}
		return &hash.Expr{Kind: hash.ExprFunc, Function: n.F, Args: args}

	case *ast.PatternLikeOrIlikeExpr:
		op := "like"
		if n.Not {
			op = "not like"
		}
		return &hash.Expr{Kind: hash.ExprOp, Operator: op, Args: []*hash.Expr{convertExpr(n.Expr), convertExpr(n.Pattern)}}

	case *ast.PatternInExpr:
		op := "in"
		if n.Not {
			op = "not in"
		}
		items := make([]*hash.Expr, len(n.List))
		for i, v := range n.List {
			items[i] = convertExpr(v)
		}
		return &hash.Expr{Kind: hash.ExprOp, Operator: op, Args: []*hash.Expr{
			convertExpr(n.Expr),
			{Kind: hash.ExprList, Args: items},
		}}

	case *ast.BetweenExpr:
		op := "between"
		if n.Not {
			op = "not between"
		}
		return &hash.Expr{Kind: hash.ExprOp, Operator: op, Args: []*hash.Expr{
			convertExpr(n.Expr), convertExpr(n.Left), convertExpr(n.Right),
		}}

	case *ast.IsNullExpr:
		op := "is null"
		if n.Not {
			op = "is not null"
		}
		return &hash.Expr{Kind: hash.ExprOp, Operator: op, Args: []*hash.Expr{convertExpr(n.Expr)}}

	case ast.ValueExpr:
		return &hash.Expr{Kind: hash.ExprConst, Column: fmt.Sprintf("%v", n.GetValue())}

	default:
		return &hash.Expr{Kind: hash.ExprConst, Column: e.Text()}
	}
}

// opLiteral returns an operator's SQL symbol ("=", ">", "AND") rather than
// the parser's internal name ("eq", "gt", "and") that Op.String() gives.
func opLiteral(op opcode.Op) string {
	var b strings.Builder
	op.Format(&b)
	return b.String()
}

func columnRef(name *ast.ColumnName) string {
	if name.Table.O != "" {
		return name.Table.O + "." + name.Name.O
	}
	return name.Name.O
}
