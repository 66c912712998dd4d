// Package finder resolves page membership across several categories at once.
//
// CategoryFinder is the contract the rest of the module depends on: given
// page ids, category names and a combination mode it returns the subset of
// ids that satisfy the mode. SQLFinder is the default implementation.
package finder

import (
	"context"
	"fmt"
	"strings"
)

// Mode combines memberships across categories
type Mode int

const (
	// ModeAll keeps pages that belong to every category
	ModeAll Mode = iota
	// ModeAny keeps pages that belong to at least one category
	ModeAny
)

// String returns the canonical name of the mode
func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "ALL"
	case ModeAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses ALL/ANY (also AND/OR), case-insensitively.
// The empty string means ALL.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL", "AND":
		return ModeAll, nil
	case "ANY", "OR":
		return ModeAny, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (expected ALL or ANY)", s)
	}
}

// CategoryFinder filters page ids by category membership
type CategoryFinder interface {
	Find(ctx context.Context, pageIDs []int64, categories []string, mode Mode) ([]int64, error)
}
