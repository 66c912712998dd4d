// Package query provides predicate construction for WHERE clauses
package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpLessThan
	OpIn
	OpLike
	OpIsNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpIn:
		return "IN"
	case OpLike:
		return "LIKE"
	case OpIsNull:
		return "IS NULL"
	default:
		return "UNKNOWN"
	}
}

// Condition represents a WHERE condition. Conditions are always joined with AND.
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Dialect selects the bind parameter syntax of the target database
type Dialect int

const (
	// DialectPostgres uses numbered parameters ($1, $2, ...)
	DialectPostgres Dialect = iota
	// DialectSQLite uses positional parameters (?)
	DialectSQLite
)

// String returns the name of the dialect
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind parameter for the n-th argument (1-based)
func (d Dialect) Placeholder(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// params accumulates bind arguments while a statement is rendered
type params struct {
	dialect Dialect
	counter int
	args    []interface{}
}

func newParams(d Dialect) *params {
	return &params{dialect: d, counter: 1, args: make([]interface{}, 0)}
}

// bind appends a value and returns its placeholder
func (p *params) bind(v interface{}) string {
	p.args = append(p.args, v)
	ph := p.dialect.Placeholder(p.counter)
	p.counter++
	return ph
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(cond *Condition, p *params) (string, error) {
	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpLike:
		if cond.Value == nil {
			return "", fmt.Errorf("operator %s on %s requires a value", cond.Operator, cond.Field)
		}
		return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, p.bind(cond.Value)), nil

	case OpIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("IN operator requires []interface{} value")
		}
		if len(values) == 0 {
			// IN with empty array always returns false
			return "1 = 0", nil
		}

		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = p.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", cond.Field, strings.Join(placeholders, ", ")), nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", cond.Field), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}
