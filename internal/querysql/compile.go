// Package querysql compiles queryir queries to parameterized SQL for the
// SQLite provenance store.
//
// Every compiled query carries an ORDER BY with a deterministic tiebreaker
// so result order never depends on SQLite internals. Literal values are
// always bound as parameters, never interpolated into the SQL text.
// Identifiers (tables, columns) are emitted verbatim; callers must run
// queryir.Validate first.
package querysql

import (
	"fmt"
	"strings"

	"github.com/quantprep/quantprep/internal/queryir"
)

// Compile converts a queryir query to SQL plus its bind parameters.
func Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case queryir.Select:
		return compileSelect(query)
	case *queryir.Select:
		return compileSelect(*query)
	case queryir.Join:
		return compileJoin(query)
	case *queryir.Join:
		return compileJoin(*query)
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(q))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return b.String(), params, nil
}

func compileJoin(j queryir.Join) (string, []any, error) {
	if j.On == nil {
		return "", nil, fmt.Errorf("join requires an ON predicate")
	}

	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(j.Left.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(j.Left.From)
	b.WriteString(" INNER JOIN ")
	b.WriteString(j.Right.From)

	onSQL, onParams, err := compilePredicate(j.On)
	if err != nil {
		return "", nil, fmt.Errorf("compile join ON: %w", err)
	}
	b.WriteString(" ON ")
	b.WriteString(onSQL)
	params = append(params, onParams...)

	filters := []queryir.Predicate{}
	if j.Left.Filter != nil {
		filters = append(filters, j.Left.Filter)
	}
	if j.Right.Filter != nil {
		filters = append(filters, j.Right.Filter)
	}
	if len(filters) > 0 {
		filterSQL, filterParams, err := compilePredicate(queryir.And{Predicates: filters})
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(j.Left))

	if j.Left.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, j.Left.Limit)
	}

	return b.String(), params, nil
}

// stableKeys lists each table's primary key columns, used as the
// deterministic ORDER BY tiebreaker.
var stableKeys = map[string][]string{
	"runs":           {"id"},
	"run_groups":     {"run_id", "seq"},
	"run_observers":  {"run_id", "group_id"},
	"run_insertions": {"run_id", "seq"},
}

// orderClause builds the mandatory ORDER BY body. COLLATE BINARY keeps
// text ordering stable across SQLite builds. When a sort column is given,
// the table's primary key is appended ascending as a tiebreaker.
func orderClause(q queryir.Select) string {
	var parts []string
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s COLLATE BINARY", q.OrderBy, dir))
	}
	for _, col := range stableKeys[q.From] {
		parts = append(parts, q.From+"."+col+" ASC COLLATE BINARY")
	}
	return strings.Join(parts, ", ")
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.ColumnEquals:
		return pred.Left + " = " + pred.Right, nil, nil
	case *queryir.ColumnEquals:
		return pred.Left + " = " + pred.Right, nil, nil
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("column %s: %w", eq.Column, err)
	}
	return eq.Column + " = ?", []any{param}, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(parts, " AND "), allParams, nil
}

// valueToParam converts a queryir literal to a driver-native bind value.
// Booleans become 0/1 to match the store's integer columns.
func valueToParam(v queryir.Value) (any, error) {
	switch val := v.(type) {
	case queryir.StringValue:
		return string(val), nil
	case queryir.IntValue:
		return int64(val), nil
	case queryir.BoolValue:
		if val {
			return 1, nil
		}
		return 0, nil
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}
