package queryir

import (
	"fmt"
	"strings"
)

// schema lists the queryable provenance tables and their columns. It must
// stay in sync with the store's schema.sql.
var schema = map[string]map[string]bool{
	"runs": {
		"id": true, "graph_hash": true, "training": true,
		"tool_version": true, "nodes_before": true, "nodes_after": true,
		"created_at": true,
	},
	"run_groups": {
		"run_id": true, "seq": true, "position": true,
		"group_id": true, "observer_id": true,
	},
	"run_observers": {
		"run_id": true, "group_id": true, "observer_id": true,
		"kind": true, "dtype": true, "dynamic": true,
	},
	"run_insertions": {
		"run_id": true, "seq": true, "observer_node": true,
		"source": true, "observer_id": true,
	},
}

// ValidationResult reports whether a query is well formed against the
// provenance schema.
type ValidationResult struct {
	IsValid  bool
	Problems []string
}

// Validate checks a query against the provenance schema: known tables,
// known columns, explicit projections, and qualified references inside
// joins. Invalid queries must not be compiled; the SQL backend assumes
// identifiers have been validated here and emits them verbatim.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Join:
		v.validateJoin(query)
	case *Join:
		v.validateJoin(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

// scope maps the tables a column reference may resolve against.
type scope map[string]bool

func (v *validator) validateSelect(sel Select) {
	if !v.validateTable(sel.From) {
		return
	}
	sc := scope{sel.From: true}
	if len(sel.Columns) == 0 {
		v.addProblem("select on %q has no columns: explicit projection required", sel.From)
	}
	for _, col := range sel.Columns {
		v.validateColumn(col, sc, false)
	}
	v.validatePredicate(sel.Filter, sc, false)
	if sel.OrderBy != "" {
		v.validateColumn(sel.OrderBy, sc, false)
	}
}

func (v *validator) validateJoin(join Join) {
	leftOK := v.validateTable(join.Left.From)
	rightOK := v.validateTable(join.Right.From)
	if !leftOK || !rightOK {
		return
	}
	if join.Left.From == join.Right.From {
		v.addProblem("join of %q with itself is not supported", join.Left.From)
		return
	}
	sc := scope{join.Left.From: true, join.Right.From: true}

	if len(join.Left.Columns) == 0 {
		v.addProblem("join projects no columns: explicit projection required")
	}
	for _, col := range join.Left.Columns {
		v.validateColumn(col, sc, true)
	}
	v.validatePredicate(join.Left.Filter, sc, true)
	v.validatePredicate(join.Right.Filter, sc, true)
	if join.Left.OrderBy != "" {
		v.validateColumn(join.Left.OrderBy, sc, true)
	}
	if len(join.Right.Columns) != 0 {
		v.addProblem("join right side must not project columns")
	}

	if join.On == nil {
		v.addProblem("join requires an ON predicate: cross joins are not supported")
	} else {
		v.validatePredicate(join.On, sc, true)
	}
}

func (v *validator) validateTable(name string) bool {
	if _, ok := schema[name]; !ok {
		v.addProblem("unknown table %q", name)
		return false
	}
	return true
}

// validateColumn resolves a column reference against the tables in scope.
// Inside joins all references must be qualified so resolution is never
// ambiguous.
func (v *validator) validateColumn(ref string, sc scope, mustQualify bool) {
	table, col, qualified := strings.Cut(ref, ".")
	if !qualified {
		if mustQualify {
			v.addProblem("column %q must be table-qualified inside a join", ref)
			return
		}
		for t := range sc {
			if !schema[t][ref] {
				v.addProblem("unknown column %q on table %q", ref, t)
			}
		}
		return
	}
	if !sc[table] {
		v.addProblem("column %q references table %q which is not in scope", ref, table)
		return
	}
	if !schema[table][col] {
		v.addProblem("unknown column %q on table %q", col, table)
	}
}

func (v *validator) validatePredicate(p Predicate, sc scope, mustQualify bool) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred, sc, mustQualify)
	case *Equals:
		v.validateEquals(*pred, sc, mustQualify)
	case ColumnEquals:
		v.validateColumn(pred.Left, sc, mustQualify)
		v.validateColumn(pred.Right, sc, mustQualify)
	case *ColumnEquals:
		v.validateColumn(pred.Left, sc, mustQualify)
		v.validateColumn(pred.Right, sc, mustQualify)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, sc, mustQualify)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, sc, mustQualify)
		}
	case nil:
		// nil predicate means no filter
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals, sc scope, mustQualify bool) {
	v.validateColumn(eq.Column, sc, mustQualify)
	if eq.Value == nil {
		v.addProblem("column %q compared to nil value", eq.Column)
	}
}
