// Package queryir provides an abstract query intermediate representation
// for the run provenance store.
//
// QueryIR is the boundary between query construction (CLI flags, future
// programmatic callers) and the SQL backend. Callers build a Query value,
// validate it against the provenance schema, and hand it to querysql for
// compilation to parameterized SQLite.
//
//	[CLI flags] → [Query IR] → [SQL backend]
//
// SEALED INTERFACES:
//
// Query, Predicate, and Value are sealed interfaces using the marker
// method pattern. Only types in this package implement them, which keeps
// type switches in the backend compiler exhaustive.
//
// DETERMINISM:
//
// The IR carries no ordering guarantees itself; the SQL backend appends a
// deterministic ORDER BY to every compiled query. Float values are not
// representable in the IR at all, matching the store schema.
package queryir
