package categories

import (
	"database/sql"
	"fmt"

	"github.com/cattools/cattools/internal/luatable"
	"github.com/cattools/cattools/internal/store"
)

// LinkType is the kind of category member
type LinkType string

const (
	LinkPage   LinkType = "page"
	LinkSubcat LinkType = "subcat"
	LinkFile   LinkType = "file"
)

// CategoryLinkRow is one membership fact as stored
type CategoryLinkRow struct {
	PageID    int64
	Namespace int
	// Title is in storage form (underscores)
	Title string
	Type  LinkType
	// Timestamp is only set when recency ordering was requested
	Timestamp *string
}

// PageRecord is the caller-facing shape of a row
type PageRecord struct {
	ID    int64    `json:"id"`
	Title string   `json:"title"`
	NS    int      `json:"ns"`
	Type  LinkType `json:"type"`
	Date  *string  `json:"date,omitempty"`
}

// Record shapes a row for callers, converting the title to display form
func (r CategoryLinkRow) Record() PageRecord {
	return PageRecord{
		ID:    r.PageID,
		Title: Underscore2Space(r.Title),
		NS:    r.Namespace,
		Type:  r.Type,
		Date:  r.Timestamp,
	}
}

// Value converts a record into a Lua-ready map
func (p PageRecord) Value() luatable.Value {
	entries := []luatable.Entry{
		luatable.Field("id", luatable.Scalar(p.ID)),
		luatable.Field("title", luatable.Scalar(p.Title)),
		luatable.Field("ns", luatable.Scalar(p.NS)),
		luatable.Field("type", luatable.Scalar(string(p.Type))),
	}
	if p.Date != nil {
		entries = append(entries, luatable.Field("date", luatable.Scalar(*p.Date)))
	}
	return luatable.Map(entries...)
}

// RecordsTable converts records into a normalized (1-indexed) list
func RecordsTable(records []PageRecord) luatable.Value {
	items := make([]luatable.Value, len(records))
	for i, r := range records {
		items[i] = r.Value()
	}
	return luatable.Normalize(luatable.List(items...))
}

// scanLinkRows reads rows produced by QuerySpec.Build
func scanLinkRows(rows *sql.Rows, withTimestamp bool) ([]CategoryLinkRow, error) {
	results := make([]CategoryLinkRow, 0)
	for rows.Next() {
		var row CategoryLinkRow
		var linkType string
		dest := []interface{}{&row.PageID, &row.Namespace, &row.Title, &linkType}

		var ts sql.NullString
		if withTimestamp {
			dest = append(dest, &ts)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan category link: %w", store.ConvertDBError(err))
		}

		row.Type = LinkType(linkType)
		if ts.Valid {
			value := ts.String
			row.Timestamp = &value
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, store.ConvertDBError(err)
	}
	return results, nil
}
