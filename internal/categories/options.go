package categories

import "math"

const (
	// DefaultLimit is the row limit when the caller gives none. Queries
	// asking for more are reported as expensive.
	DefaultLimit = 25

	// MaxLimit caps the row limit; larger requests are clamped
	MaxLimit = 500

	// MaxPageID is the largest page id (page_id is an unsigned 32-bit column)
	MaxPageID = math.MaxUint32
)

// Limits bounds the size of a compiled query
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits returns the built-in limits
func DefaultLimits() Limits {
	return Limits{Default: DefaultLimit, Max: MaxLimit}
}

// PagesOptions are the optional restrictions of a category listing.
// A nil field means "not given".
type PagesOptions struct {
	// SortkeyPrefix restricts to links with exactly this sort key prefix
	SortkeyPrefix *string
	// OrderByRecency orders by link timestamp, newest first when true and
	// oldest first when false, and adds the timestamp to each row
	OrderByRecency *bool
	// Limit defaults to Limits.Default
	Limit *int
	// Offset defaults to 0
	Offset *int
}

// Request is the input of the filter compiler
type Request struct {
	Category  string
	Namespace *int
	Title     *string
	Options   PagesOptions
}

// Int returns a pointer to n
func Int(n int) *int { return &n }

// String returns a pointer to s
func String(s string) *string { return &s }

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }
