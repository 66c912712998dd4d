package categories

import (
	"context"
	"strings"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/metrics"
	"github.com/cattools/cattools/internal/store"
	"github.com/cattools/cattools/internal/store/query"
)

// QuerySpec is a compiled, bounded category query
type QuerySpec struct {
	// Category is the target category in storage form
	Category string
	// Namespace, Title and SortkeyPrefix are nil when unrestricted
	Namespace     *int
	Title         *string
	SortkeyPrefix *string
	// OrderByRecency is nil when no timestamp ordering was requested
	OrderByRecency *bool
	Limit          int
	Offset         int
	// Expensive is set when the query was reported to the budget
	Expensive bool
}

// WithTimestamp reports whether rows carry the link timestamp
func (s QuerySpec) WithTimestamp() bool {
	return s.OrderByRecency != nil
}

// Compile validates req and turns it into a QuerySpec.
//
// A query is broad when the namespace or the title is unrestricted, or when
// it asks for more than l.Default rows. Broad queries are reported to cost
// exactly once before Compile returns; if cost refuses, so does Compile.
func (l Limits) Compile(ctx context.Context, req Request, cost budget.Counter) (QuerySpec, error) {
	if strings.TrimSpace(req.Category) == "" {
		return QuerySpec{}, invalidArgument("category name is required")
	}

	limit := l.Default
	if req.Options.Limit != nil {
		limit = *req.Options.Limit
	}
	if limit < 1 {
		return QuerySpec{}, invalidArgument("limit must be a positive integer, got %d", limit)
	}
	if l.Max > 0 && limit > l.Max {
		limit = l.Max
	}

	offset := 0
	if req.Options.Offset != nil {
		offset = *req.Options.Offset
	}
	if offset < 0 {
		return QuerySpec{}, invalidArgument("offset must not be negative, got %d", offset)
	}

	qs := QuerySpec{
		Category:       normalizeTitle(req.Category),
		Namespace:      req.Namespace,
		SortkeyPrefix:  req.Options.SortkeyPrefix,
		OrderByRecency: req.Options.OrderByRecency,
		Limit:          limit,
		Offset:         offset,
	}
	if req.Title != nil {
		title := normalizeTitle(*req.Title)
		qs.Title = &title
	}

	qs.Expensive = qs.Namespace == nil || qs.Title == nil || qs.Limit > l.Default
	if qs.Expensive {
		if cost == nil {
			return QuerySpec{}, ErrNoBudget
		}
		metrics.ExpensiveSignals.Inc()
		if err := cost.IncrementExpensive(ctx); err != nil {
			if budget.IsLimitExceeded(err) {
				metrics.BudgetExhausted.Inc()
			}
			return QuerySpec{}, err
		}
	}

	return qs, nil
}

// Build renders the query as a SELECT over categorylinks joined to page
func (s QuerySpec) Build(schema store.Schema) *query.Builder {
	qb := schema.SelectLinkedPages(
		store.ColPageID,
		store.ColPageNamespace,
		store.ColPageTitle,
		store.ColType,
	).Where(store.ColTo, query.OpEqual, s.Category)

	if s.Namespace != nil {
		qb.Where(store.ColPageNamespace, query.OpEqual, *s.Namespace)
	}
	if s.Title != nil {
		qb.Where(store.ColPageTitle, query.OpEqual, *s.Title)
	}
	if s.SortkeyPrefix != nil {
		qb.Where(store.ColSortkeyPrefix, query.OpEqual, *s.SortkeyPrefix)
	}

	if s.OrderByRecency != nil {
		qb.Column(store.ColTimestamp)
		dir := "ASC"
		if *s.OrderByRecency {
			dir = "DESC"
		}
		qb.OrderBy(store.ColTimestamp, dir).OrderBy(store.ColFrom, dir)
	} else {
		qb.OrderBy(store.ColSortkey, "ASC").OrderBy(store.ColFrom, "ASC")
	}

	qb.Limit(s.Limit)
	if s.Offset > 0 {
		qb.Offset(s.Offset)
	}
	return qb
}
