// Package categories answers category-membership questions against a wiki
// replica: single-page checks, bounded category listings and multi-category
// membership through a CategoryFinder.
package categories

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/luatable"
	"github.com/cattools/cattools/internal/metrics"
	"github.com/cattools/cattools/internal/store"
	"github.com/cattools/cattools/internal/store/query"
	"github.com/cattools/cattools/internal/tracing"
)

// Operation names used in logs and metrics
const (
	OpHasPage    = "categoryHasPage"
	OpPages      = "categoryPages"
	OpMembership = "arePagesInCategories"
)

// Toolbox runs category queries for one host. It holds no per-call state;
// ForRender binds the expensive-call counter of a render.
type Toolbox struct {
	db     query.Querier
	schema store.Schema
	finder finder.CategoryFinder
	limits Limits
	cost   budget.Counter
	logger *zap.Logger
}

// Option configures a Toolbox
type Option func(*Toolbox)

// WithFinder replaces the default SQL finder
func WithFinder(f finder.CategoryFinder) Option {
	return func(t *Toolbox) { t.finder = f }
}

// WithLimits overrides the default and maximum row limits
func WithLimits(l Limits) Option {
	return func(t *Toolbox) { t.limits = l }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Toolbox) { t.logger = l }
}

// WithCounter sets the counter used when no render is bound
func WithCounter(c budget.Counter) Option {
	return func(t *Toolbox) { t.cost = c }
}

// New creates a Toolbox reading from db. Without WithCounter, expensive
// calls are counted but never refused.
func New(db query.Querier, schema store.Schema, opts ...Option) *Toolbox {
	t := &Toolbox{
		db:     db,
		schema: schema,
		limits: DefaultLimits(),
		cost:   budget.NewLimited(0),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.finder == nil {
		t.finder = finder.NewSQLFinder(db, schema, t.logger)
	}
	return t
}

// ForRender returns a copy of t that reports expensive calls to c
func (t *Toolbox) ForRender(c budget.Counter) *Toolbox {
	clone := *t
	clone.cost = c
	return &clone
}

// Limits returns the configured limits
func (t *Toolbox) Limits() Limits {
	return t.limits
}

// CategoryHasPage reports whether the page namespace:title is a member of category
func (t *Toolbox) CategoryHasPage(ctx context.Context, category string, namespace int, title string) (bool, error) {
	rows, err := t.run(ctx, OpHasPage, Request{
		Category:  category,
		Namespace: &namespace,
		Title:     &title,
		Options:   PagesOptions{Limit: Int(1)},
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// CategoryPages lists members of category, optionally restricted to a namespace
func (t *Toolbox) CategoryPages(ctx context.Context, category string, namespace *int, opts PagesOptions) ([]PageRecord, error) {
	rows, err := t.run(ctx, OpPages, Request{
		Category:  category,
		Namespace: namespace,
		Options:   opts,
	})
	if err != nil {
		return nil, err
	}

	records := make([]PageRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}
	return records, nil
}

// CategoryPagesTable is CategoryPages shaped as a 1-indexed table
func (t *Toolbox) CategoryPagesTable(ctx context.Context, category string, namespace *int, opts PagesOptions) (luatable.Value, error) {
	records, err := t.CategoryPages(ctx, category, namespace, opts)
	if err != nil {
		return luatable.Value{}, err
	}
	return RecordsTable(records), nil
}

// ArePagesInCategories reports, for every page id, whether it satisfies mode
// over categories. The call is always reported as expensive.
func (t *Toolbox) ArePagesInCategories(ctx context.Context, pageIDs []int64, categories []string, mode finder.Mode) (map[int64]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "categories."+OpMembership)
	defer span.End()

	for _, id := range pageIDs {
		if id <= 0 {
			return nil, invalidArgument("page id must be positive, got %d", id)
		}
		if id > MaxPageID {
			return nil, invalidArgument("page id %d out of range", id)
		}
	}
	if len(categories) == 0 {
		return nil, invalidArgument("at least one category is required")
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		if c = normalizeTitle(c); c == "" {
			return nil, invalidArgument("category name is required")
		}
		names[i] = c
	}

	if t.cost == nil {
		return nil, ErrNoBudget
	}
	metrics.ExpensiveSignals.Inc()
	if err := t.cost.IncrementExpensive(ctx); err != nil {
		if budget.IsLimitExceeded(err) {
			metrics.BudgetExhausted.Inc()
		}
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("cattools.pages", len(pageIDs)),
		attribute.Int("cattools.categories", len(names)),
		attribute.String("cattools.mode", mode.String()),
	)

	start := time.Now()
	matched, err := t.finder.Find(ctx, pageIDs, names, mode)
	metrics.ObserveQuery(OpMembership, start, len(matched), err)
	if err != nil {
		tracing.RecordError(span, err)
		t.logger.Warn("membership query failed", zap.Error(err), zap.Strings("categories", names))
		return nil, err
	}

	result := make(map[int64]bool, len(pageIDs))
	for _, id := range pageIDs {
		result[id] = false
	}
	for _, id := range matched {
		result[id] = true
	}
	return result, nil
}

// ArePagesInCategoriesTable is ArePagesInCategories shaped as a table keyed
// by page id, in input order
func (t *Toolbox) ArePagesInCategoriesTable(ctx context.Context, pageIDs []int64, categories []string, mode finder.Mode) (luatable.Value, error) {
	result, err := t.ArePagesInCategories(ctx, pageIDs, categories, mode)
	if err != nil {
		return luatable.Value{}, err
	}

	entries := make([]luatable.Entry, 0, len(result))
	seen := make(map[int64]struct{}, len(result))
	for _, id := range pageIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, luatable.Entry{Key: luatable.IntKey(id), Value: luatable.Scalar(result[id])})
	}
	return luatable.Normalize(luatable.Map(entries...)), nil
}

// run compiles req, executes it and scans the rows
func (t *Toolbox) run(ctx context.Context, op string, req Request) ([]CategoryLinkRow, error) {
	ctx, span := tracing.StartSpan(ctx, "categories."+op)
	defer span.End()

	qs, err := t.limits.Compile(ctx, req, t.cost)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.AddCategoryAttributes(span, qs.Category, qs.Expensive)

	start := time.Now()
	rows, err := t.query(ctx, qs)
	metrics.ObserveQuery(op, start, len(rows), err)
	if err != nil {
		tracing.RecordError(span, err)
		t.logger.Warn("category query failed",
			zap.String("operation", op),
			zap.String("category", qs.Category),
			zap.Error(err),
		)
		return nil, err
	}

	t.logger.Debug("category query",
		zap.String("operation", op),
		zap.String("category", qs.Category),
		zap.Bool("expensive", qs.Expensive),
		zap.Int("limit", qs.Limit),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

func (t *Toolbox) query(ctx context.Context, qs QuerySpec) ([]CategoryLinkRow, error) {
	rows, err := qs.Build(t.schema).Query(ctx, t.db)
	if err != nil {
		return nil, store.ConvertDBError(err)
	}
	defer rows.Close()

	return scanLinkRows(rows, qs.WithTimestamp())
}
