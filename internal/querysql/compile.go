// Package querysql compiles journal queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/syntheticore/skip/internal/queryir"
)

// table describes how one journal table is read.
type table struct {
	columns string
	order   string
	exprs   map[string]string
}

var tables = map[queryir.Table]table{
	queryir.CallSites: {
		columns: "token, func_name, func_hash, arity, seq",
		order:   "seq ASC, token COLLATE BINARY ASC",
		exprs: map[string]string{
			"token":    "token",
			"function": "func_name",
			"hash":     "func_hash",
			"arity":    "arity",
			"seq":      "seq",
		},
	},
	queryir.Compilations: {
		columns: "id, token, seq, state, signature, witness_args, witness_value, duration_ns, diagnostics, error",
		order:   "seq ASC, id ASC",
		exprs: map[string]string{
			"token":     "token",
			"function":  "(SELECT cs.func_name FROM call_sites cs WHERE cs.token = compilations.token)",
			"state":     "state",
			"signature": "signature",
			"error":     "error",
			"seq":       "seq",
		},
	},
}

// Columns returns the column list that compiled queries over t select.
// Rows must be scanned in this order.
func Columns(t queryir.Table) string {
	return tables[t].columns
}

// SQLCompiler compiles queryir queries to SQL for SQLite.
//
// Every query has an ORDER BY with a deterministic tiebreaker, and every
// value is passed as a parameter, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to SQL and its parameters. Queries that fail
// queryir.Validate are not compiled.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	t := tables[q.From]

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(t, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		t.columns,
		q.From,
		whereClause,
		t.order)

	return sql, params, nil
}

func (c *SQLCompiler) compilePredicate(t table, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(t, pred)
	case *queryir.Equals:
		return c.compileEquals(t, *pred)
	case queryir.AtLeast:
		return t.exprs[pred.Field] + " >= ?", []any{pred.Value}, nil
	case *queryir.AtLeast:
		return t.exprs[pred.Field] + " >= ?", []any{pred.Value}, nil
	case queryir.And:
		return c.compileAnd(t, pred)
	case *queryir.And:
		return c.compileAnd(t, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(t table, eq queryir.Equals) (string, []any, error) {
	param := eq.Value
	if n, ok := param.(int); ok {
		param = int64(n)
	}
	return t.exprs[eq.Field] + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(t table, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(t, pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}
