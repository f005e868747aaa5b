package queryir

// Query represents an abstract query over the provenance schema.
//
// This is a sealed interface. Only types in this package implement it,
// which enables exhaustive type switches in backend compilers.
//
// Query types:
//   - Select: single-table access with filtering, ordering, and a limit
//   - Join: inner join of two Selects
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface. Predicate types:
//   - Equals: column = literal value
//   - ColumnEquals: column = column (equi-join condition)
//   - And: conjunction, all predicates must hold
//
// OR predicates and subqueries are deliberately absent. Run separate
// queries instead.
type Predicate interface {
	predicateNode()
}

// Value is a literal usable in an Equals predicate.
//
// This is a sealed interface. Only strings, integers, and booleans are
// representable; floats are forbidden throughout the provenance schema.
type Value interface {
	valueNode()
}

// StringValue is a string literal.
type StringValue string

// IntValue is an integer literal.
type IntValue int64

// BoolValue is a boolean literal. The SQL backend stores booleans as
// integer 0/1, matching the store's marshaling.
type BoolValue bool

func (StringValue) valueNode() {}
func (IntValue) valueNode()    {}
func (BoolValue) valueNode()   {}

// Select represents a single-table query.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY ... LIMIT <limit>
//
// Columns must be listed explicitly; there is no SELECT *. OrderBy names
// the primary sort column (empty means primary key order). The backend
// always appends a deterministic tiebreaker. Limit <= 0 means unlimited.
type Select struct {
	From       string
	Columns    []string
	Filter     Predicate // nil = no filter
	OrderBy    string    // "" = primary key order
	Descending bool
	Limit      int
}

func (Select) queryNode() {}

// Join represents an inner join of two Selects.
//
// Semantics:
//
//	SELECT <left.columns> FROM <left> INNER JOIN <right> ON <on>
//
// Only the left side's columns are projected; the right side exists to
// constrain the result set. Because two tables are in scope, every column
// reference in a Join must be table-qualified ("runs.id"). Ordering and
// the limit are taken from the left Select.
type Join struct {
	Left  Select
	Right Select
	On    Predicate // required
}

func (Join) queryNode() {}

// Equals represents a column-equals-literal predicate.
//
// The value is always parameterized by the backend, never interpolated.
type Equals struct {
	Column string
	Value  Value
}

func (Equals) predicateNode() {}

// ColumnEquals represents a column-equals-column predicate, the usual
// ON condition of a Join.
type ColumnEquals struct {
	Left  string
	Right string
}

func (ColumnEquals) predicateNode() {}

// And represents a conjunction of predicates. An empty Predicates slice
// is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
