// Package query provides a small SELECT builder for read-only category queries
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is the read side of *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// JoinType represents the type of SQL join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	default:
		return "INNER"
	}
}

// Join represents a SQL join clause
type Join struct {
	Type      JoinType
	Table     string
	Condition string
}

// Builder provides a fluent API for building SELECT statements
type Builder struct {
	table      string
	columns    []string
	dialect    Dialect
	joins      []*Join
	conditions []*Condition
	orderBy    []string
	limit      *int
	offset     *int
}

// Select starts a query over table returning the given columns
func Select(table string, columns ...string) *Builder {
	validateIdentifier(table)
	for _, c := range columns {
		validateIdentifier(c)
	}
	return &Builder{
		table:      table,
		columns:    append([]string(nil), columns...),
		dialect:    DialectPostgres,
		joins:      make([]*Join, 0),
		conditions: make([]*Condition, 0),
		orderBy:    make([]string, 0),
	}
}

// WithDialect sets the placeholder dialect
func (b *Builder) WithDialect(d Dialect) *Builder {
	b.dialect = d
	return b
}

// Column appends a column to the select list
func (b *Builder) Column(column string) *Builder {
	validateIdentifier(column)
	b.columns = append(b.columns, column)
	return b
}

// Columns returns the selected columns in order
func (b *Builder) Columns() []string {
	return append([]string(nil), b.columns...)
}

// Where adds a WHERE condition to the query
func (b *Builder) Where(field string, op Operator, value interface{}) *Builder {
	validateIdentifier(field)
	b.conditions = append(b.conditions, &Condition{
		Field:    field,
		Operator: op,
		Value:    value,
	})
	return b
}

// WhereIn adds a WHERE IN condition
func (b *Builder) WhereIn(field string, values []interface{}) *Builder {
	return b.Where(field, OpIn, values)
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, direction string) *Builder {
	validateIdentifier(field)
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", field, dir))
	return b
}

// Limit sets the LIMIT clause
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset sets the OFFSET clause
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Join adds a JOIN clause
func (b *Builder) Join(joinType JoinType, table string, condition string) *Builder {
	validateIdentifier(table)
	if !isValidJoinCondition(condition) {
		panic(fmt.Sprintf("invalid join condition: %s", condition))
	}
	b.joins = append(b.joins, &Join{
		Type:      joinType,
		Table:     table,
		Condition: condition,
	})
	return b
}

// InnerJoin adds an INNER JOIN clause
func (b *Builder) InnerJoin(table string, condition string) *Builder {
	return b.Join(InnerJoin, table, condition)
}

// ToSQL generates the SQL query and parameter bindings
func (b *Builder) ToSQL() (string, []interface{}, error) {
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("no columns selected from %s", b.table)
	}

	var sql strings.Builder
	p := newParams(b.dialect)

	sql.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(b.columns, ", "), b.table))

	for _, join := range b.joins {
		sql.WriteString(fmt.Sprintf(" %s JOIN %s ON %s",
			join.Type.String(),
			join.Table,
			join.Condition,
		))
	}

	if len(b.conditions) > 0 {
		sql.WriteString(" WHERE ")
		for i, cond := range b.conditions {
			if i > 0 {
				sql.WriteString(" AND ")
			}
			condSQL, err := conditionToSQL(cond, p)
			if err != nil {
				return "", nil, fmt.Errorf("failed to build condition: %w", err)
			}
			sql.WriteString(condSQL)
		}
	}

	if len(b.orderBy) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit != nil {
		sql.WriteString(" LIMIT " + p.bind(*b.limit))
	}

	if b.offset != nil {
		sql.WriteString(" OFFSET " + p.bind(*b.offset))
	}

	return sql.String(), p.args, nil
}

// Query renders the statement and runs it against q
func (b *Builder) Query(ctx context.Context, q Querier) (*sql.Rows, error) {
	sqlStr, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// Clone creates a copy of the builder
func (b *Builder) Clone() *Builder {
	clone := &Builder{
		table:      b.table,
		columns:    append([]string(nil), b.columns...),
		dialect:    b.dialect,
		joins:      make([]*Join, len(b.joins)),
		conditions: make([]*Condition, len(b.conditions)),
		orderBy:    make([]string, len(b.orderBy)),
	}

	copy(clone.joins, b.joins)
	copy(clone.conditions, b.conditions)
	copy(clone.orderBy, b.orderBy)

	if b.limit != nil {
		limit := *b.limit
		clone.limit = &limit
	}

	if b.offset != nil {
		offset := *b.offset
		clone.offset = &offset
	}

	return clone
}

// validateIdentifier validates that an identifier only contains safe characters
// (letters, digits, underscore, and dot for qualified names).
// Panics if invalid characters are found.
func validateIdentifier(identifier string) {
	if identifier == "" {
		panic("invalid identifier: empty")
	}
	for _, char := range identifier {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_' || char == '.') {
			panic(fmt.Sprintf("invalid identifier: %s (contains invalid character: %c)", identifier, char))
		}
	}
}

// isValidJoinCondition validates that a join condition is a chain of
// "table.column = table.column" comparisons joined with AND
func isValidJoinCondition(condition string) bool {
	for _, sub := range strings.Split(condition, " AND ") {
		sides := strings.Split(sub, "=")
		if len(sides) != 2 {
			return false
		}
		for _, side := range sides {
			token := strings.TrimSpace(side)
			parts := strings.Split(token, ".")
			if len(parts) != 2 {
				return false // Must be exactly table.column
			}
			for _, part := range parts {
				if !IsValidIdentifier(part) {
					return false
				}
			}
		}
	}
	return true
}

// IsValidIdentifier checks if a string is a valid unqualified SQL identifier
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for _, char := range s {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}
