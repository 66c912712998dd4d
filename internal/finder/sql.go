package finder

import (
	"context"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/store"
	"github.com/cattools/cattools/internal/store/query"
)

// DefaultBatchSize is the number of page ids sent per membership query
const DefaultBatchSize = 50

// SQLFinder answers membership questions from the categorylinks table.
// Memberships are loaded into one bitmap per category and combined with
// bitmap intersection (ALL) or union (ANY).
type SQLFinder struct {
	db        query.Querier
	schema    store.Schema
	batchSize int
	logger    *zap.Logger
}

// NewSQLFinder creates a finder reading through db
func NewSQLFinder(db query.Querier, schema store.Schema, logger *zap.Logger) *SQLFinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLFinder{
		db:        db,
		schema:    schema,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize sets how many page ids go into one query
func (f *SQLFinder) WithBatchSize(n int) *SQLFinder {
	if n > 0 {
		f.batchSize = n
	}
	return f
}

// Find returns the ids from pageIDs that satisfy mode, in input order and
// without duplicates
func (f *SQLFinder) Find(ctx context.Context, pageIDs []int64, categories []string, mode Mode) ([]int64, error) {
	candidates := roaring.New()
	for _, id := range pageIDs {
		if id <= 0 || id > math.MaxUint32 {
			return nil, fmt.Errorf("page id %d out of range", id)
		}
		candidates.Add(uint32(id))
	}

	wanted := dedupe(categories)
	if candidates.IsEmpty() || len(wanted) == 0 {
		return []int64{}, nil
	}

	members, err := f.loadMemberships(ctx, candidates.ToArray(), wanted)
	if err != nil {
		return nil, err
	}

	var result *roaring.Bitmap
	switch mode {
	case ModeAll:
		result = candidates.Clone()
		for _, cat := range wanted {
			bm, ok := members[cat]
			if !ok {
				return []int64{}, nil
			}
			result.And(bm)
		}
	case ModeAny:
		result = roaring.New()
		for _, bm := range members {
			result.Or(bm)
		}
		result.And(candidates)
	default:
		return nil, fmt.Errorf("unsupported mode %v", mode)
	}

	f.logger.Debug("resolved category membership",
		zap.Int("pages", int(candidates.GetCardinality())),
		zap.Int("categories", len(wanted)),
		zap.Stringer("mode", mode),
		zap.Uint64("matched", result.GetCardinality()),
	)

	out := make([]int64, 0, result.GetCardinality())
	for _, id := range pageIDs {
		if result.Contains(uint32(id)) {
			out = append(out, id)
			result.Remove(uint32(id))
		}
	}
	return out, nil
}

// loadMemberships builds one bitmap of member page ids per category
func (f *SQLFinder) loadMemberships(ctx context.Context, ids []uint32, categories []string) (map[string]*roaring.Bitmap, error) {
	cats := make([]interface{}, len(categories))
	for i, c := range categories {
		cats[i] = c
	}

	members := make(map[string]*roaring.Bitmap, len(categories))
	for start := 0; start < len(ids); start += f.batchSize {
		end := start + f.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		batch := make([]interface{}, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, int64(id))
		}

		qb := f.schema.Select(f.schema.CategoryLinks(), store.ColFrom, store.ColTo).
			WhereIn(store.ColFrom, batch).
			WhereIn(store.ColTo, cats)

		if err := f.scanInto(ctx, qb, members); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func (f *SQLFinder) scanInto(ctx context.Context, qb *query.Builder, members map[string]*roaring.Bitmap) error {
	rows, err := qb.Query(ctx, f.db)
	if err != nil {
		return store.ConvertDBError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var from int64
		var to string
		if err := rows.Scan(&from, &to); err != nil {
			return fmt.Errorf("failed to scan membership: %w", store.ConvertDBError(err))
		}
		bm, ok := members[to]
		if !ok {
			bm = roaring.New()
			members[to] = bm
		}
		bm.Add(uint32(from))
	}
	if err := rows.Err(); err != nil {
		return store.ConvertDBError(err)
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
