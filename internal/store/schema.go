package store

import (
	"fmt"

	"github.com/cattools/cattools/internal/store/query"
)

// Column names of the MediaWiki tables read by this module.
const (
	ColPageID        = "page_id"
	ColPageNamespace = "page_namespace"
	ColPageTitle     = "page_title"

	ColFrom          = "cl_from"
	ColTo            = "cl_to"
	ColType          = "cl_type"
	ColTimestamp     = "cl_timestamp"
	ColSortkey       = "cl_sortkey"
	ColSortkeyPrefix = "cl_sortkey_prefix"
)

// Schema names the tables of one wiki database. Prefix mirrors MediaWiki's
// $wgDBprefix and is prepended to every table name.
type Schema struct {
	Prefix  string
	Dialect query.Dialect
}

// Validate checks that the prefix yields safe identifiers
func (s Schema) Validate() error {
	if s.Prefix != "" && !query.IsValidIdentifier(s.Prefix) {
		return fmt.Errorf("invalid table prefix %q", s.Prefix)
	}
	return nil
}

// CategoryLinks returns the categorylinks table name
func (s Schema) CategoryLinks() string {
	return s.Prefix + "categorylinks"
}

// Page returns the page table name
func (s Schema) Page() string {
	return s.Prefix + "page"
}

// Select starts a SELECT over table using the schema dialect
func (s Schema) Select(table string, columns ...string) *query.Builder {
	return query.Select(table, columns...).WithDialect(s.Dialect)
}

// SelectLinkedPages starts a SELECT over categorylinks joined to page
func (s Schema) SelectLinkedPages(columns ...string) *query.Builder {
	return s.Select(s.CategoryLinks(), columns...).
		InnerJoin(s.Page(), fmt.Sprintf("%s.%s = %s.%s", s.Page(), ColPageID, s.CategoryLinks(), ColFrom))
}
