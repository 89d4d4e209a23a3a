package qtextparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
)

func TestParse_SingleTableEquality(t *testing.T) {
	parsed, err := Parse(`SELECT * FROM orders WHERE status = 'shipped'`)
	require.NoError(t, err)

	require.Len(t, parsed.RelSigs, 1)
	ordersSig := hash.PermanentTableSignature("orders")
	assert.Equal(t, ordersSig, parsed.RelSigs[0])

	require.Len(t, parsed.Clauses, 1)
	c := parsed.Clauses[0]
	assert.Equal(t, hash.NoOIDSignature(), c.Relation)
	assert.True(t, c.Clause.Equality)
	require.Equal(t, hash.ExprOp, c.Clause.Expr.Kind)
	assert.Equal(t, "=", c.Clause.Expr.Operator)
	require.Len(t, c.Clause.Expr.Args, 2)
	assert.Equal(t, hash.ExprColumn, c.Clause.Expr.Args[0].Kind)
	assert.Equal(t, "status", c.Clause.Expr.Args[0].Column)
	assert.Equal(t, hash.ExprConst, c.Clause.Expr.Args[1].Kind)
}

func TestParse_ConjunctionSplitsIntoSeparateClauses(t *testing.T) {
	parsed, err := Parse(`SELECT * FROM orders WHERE status = 'shipped' AND customer_id = 7`)
	require.NoError(t, err)
	assert.Len(t, parsed.Clauses, 2)
}

func TestParse_JoinProducesCrossRelationClause(t *testing.T) {
	parsed, err := Parse(`SELECT * FROM orders o JOIN customers c ON c.id = o.customer_id WHERE c.region = 'west'`)
	require.NoError(t, err)

	require.Len(t, parsed.RelSigs, 2)
	ordersSig := hash.PermanentTableSignature("orders")
	customersSig := hash.PermanentTableSignature("customers")
	assert.ElementsMatch(t, []uint64{ordersSig, customersSig}, parsed.RelSigs)

	var sawJoinClause, sawRegionClause bool
	for _, c := range parsed.Clauses {
		if c.Relation == hash.NoOIDSignature() {
			sawJoinClause = true
			assert.True(t, c.Clause.Equality)
		}
		if c.Relation == customersSig {
			sawRegionClause = true
		}
	}
	assert.True(t, sawJoinClause, "expected the ON condition to produce a cross-relation clause")
	assert.True(t, sawRegionClause, "expected the WHERE clause to attribute to customers")
}

func TestParse_ClauseWithNoColumnHasNoSingleRelation(t *testing.T) {
	parsed, err := Parse(`SELECT * FROM orders WHERE 1 = 1`)
	require.NoError(t, err)
	require.Len(t, parsed.Clauses, 1)
	assert.Equal(t, hash.NoOIDSignature(), parsed.Clauses[0].Relation)
}

func TestParse_RejectsNonSelect(t *testing.T) {
	_, err := Parse(`INSERT INTO orders (id) VALUES (1)`)
	assert.Error(t, err)
}

func TestParse_RejectsUnparseableSQL(t *testing.T) {
	_, err := Parse(`SELECT FROM WHERE`)
	assert.Error(t, err)
}

func TestParse_InAndBetweenLowerToOpNodes(t *testing.T) {
	parsed, err := Parse(`SELECT * FROM orders WHERE status IN ('shipped', 'delivered') AND amount BETWEEN 10 AND 20`)
	require.NoError(t, err)
	require.Len(t, parsed.Clauses, 2)

	inClause := parsed.Clauses[0].Clause.Expr
	assert.Equal(t, "in", inClause.Operator)
	require.Len(t, inClause.Args, 2)
	assert.Equal(t, hash.ExprList, inClause.Args[1].Kind)
	assert.Len(t, inClause.Args[1].Args, 2)

	betweenClause := parsed.Clauses[1].Clause.Expr
	assert.Equal(t, "between", betweenClause.Operator)
	assert.Len(t, betweenClause.Args, 3)
}
