package hash

import (
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
)

// noOIDSentinel is the fixed signature contributed by a relation that has
// no oid of its own (e.g. a subquery result or VALUES list).
const noOIDSentinel uint64 = 0x5151_5151_5151_5151

// identFold is the caseless-matching fold applied to every identifier
// before it enters a relation signature, so "T"/"t" hash identically on
// catalogs that treat identifiers case-insensitively. Unlike strings.ToLower
// this is correct for identifiers outside ASCII (e.g. Turkish İ/i).
var identFold = cases.Fold()

func foldIdent(s string) string { return identFold.String(s) }

// ColumnDescriptor describes one column of a temporary table's tuple
// descriptor, used to build a signature for relations that have no stable
// catalog identity.
type ColumnDescriptor struct {
	Name string
	Type string
}

// PermanentTableSignature hashes a fully-qualified table name. Table
// rewrites (e.g. a view redirected to its backing table) should resolve to
// the same qualifiedName here so the rewritten relation keeps its original
// signature.
func PermanentTableSignature(qualifiedName string) uint64 {
	return xxhash.Sum64String("TBL:" + foldIdent(qualifiedName))
}

// TemporaryTableSignature hashes a temporary table's tuple descriptor,
// since it has no durable catalog name to key on.
func TemporaryTableSignature(cols []ColumnDescriptor) uint64 {
	var b strings.Builder
	b.WriteString("TMP:")
	for _, c := range cols {
		b.WriteString(foldIdent(c.Name))
		b.WriteByte(':')
		b.WriteString(foldIdent(c.Type))
		b.WriteByte(',')
	}
	return xxhash.Sum64String(b.String())
}

// NoOIDSignature is the fixed sentinel signature for a relation without an
// oid of its own.
func NoOIDSignature() uint64 { return noOIDSentinel }

// logSelectivity returns log(sel), which the caller is responsible for
// clamping to the configured floor.
func logSelectivity(sel float64) float64 {
	if sel <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sel)
}
