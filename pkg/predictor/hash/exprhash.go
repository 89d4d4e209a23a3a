package hash

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// constSentinel stands in for every constant's rendered payload. Source
// locations have no Go-side equivalent (there is no annotation to strip),
// so unlike the original C implementation there is nothing to replace there;
// the constant-payload substitution alone is what makes ExprHash insensitive
// to literal values (§8 property 1).
const constSentinel = "\x00C\x00"

// ExprHash serialises an expression tree to a canonical textual form with
// every constant's payload replaced by a fixed sentinel, then hashes the
// resulting bytes. Two trees that differ only in constant values produce
// the same hash.
func ExprHash(e *Expr) uint64 {
	var b strings.Builder
	writeCanonical(&b, e)
	return xxhash.Sum64String(b.String())
}

func writeCanonical(b *strings.Builder, e *Expr) {
	if e == nil {
		b.WriteString("\x00nil\x00")
		return
	}
	switch e.Kind {
	case ExprConst:
		b.WriteString(constSentinel)
	case exprECPlaceholder:
		b.WriteString("EC(")
		b.WriteString(strconv.FormatUint(e.ecHash, 16))
		b.WriteByte(')')
	case ExprColumn:
		b.WriteString("COL(")
		b.WriteString(e.Column)
		b.WriteByte(')')
	case ExprOp:
		b.WriteString("OP(")
		b.WriteString(e.Operator)
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(len(e.Args)))
		for _, a := range e.Args {
			b.WriteByte(',')
			writeCanonical(b, a)
		}
		b.WriteByte(')')
	case ExprFunc:
		b.WriteString("FN(")
		b.WriteString(e.Function)
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(len(e.Args)))
		for _, a := range e.Args {
			b.WriteByte(',')
			writeCanonical(b, a)
		}
		b.WriteByte(')')
	case ExprList:
		b.WriteString("LIST(")
		b.WriteString(strconv.Itoa(len(e.Args)))
		for _, a := range e.Args {
			b.WriteByte(',')
			writeCanonical(b, a)
		}
		b.WriteByte(')')
	default:
		b.WriteString("\x00unk\x00")
	}
}

// hashUint64Multiset combines a set of hashes in an order-independent way:
// sort them first, then hash the sorted sequence. Used for equivalence-class
// hashes and for any other "multiset of hashes" the spec calls for.
func hashUint64Multiset(vals []uint64) uint64 {
	sorted := make([]uint64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	for _, v := range sorted {
		b.WriteString(strconv.FormatUint(v, 16))
		b.WriteByte(',')
	}
	return xxhash.Sum64String(b.String())
}
