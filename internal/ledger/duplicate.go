package ledger

import (
	"strings"

	"finanzas/internal/core"
)

// FindDuplicate reports whether a candidate collides with an already recorded
// transaction of the same kind, returning the first match.
//
// Two tiers, checked in order:
//
//  1. Payment reference. Expenses only: a bank reference identifies exactly
//     one payment, so a repeated non-empty reference is always a duplicate.
//  2. Same day, same base amount, and related concepts. Two blank concepts
//     count as related, and so does either concept containing the other,
//     case-insensitively.
func FindDuplicate(existing []core.Transaction, tx core.Transaction) (core.Transaction, bool) {
	for _, prev := range existing {
		if prev.Kind != tx.Kind {
			continue
		}
		if tx.Kind == core.KindExpense && referenceMatch(prev.Reference, tx.Reference) {
			return prev, true
		}
		if !prev.Date.Equal(tx.Date) {
			continue
		}
		if prev.AmountBase.Cents != tx.AmountBase.Cents {
			continue
		}
		if conceptsRelated(prev.Concept, tx.Concept) {
			return prev, true
		}
	}
	return core.Transaction{}, false
}

// Bank references are opaque identifiers, so the comparison is exact; only
// surrounding whitespace is forgiven.
func referenceMatch(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && a == b
}

func conceptsRelated(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
