// Package prepare implements the observer-sharing preparation pass.
//
// The pass partitions a graph's observable positions (node outputs and
// input edges) into sharing groups driven by quantization annotations,
// materializes exactly one observer instance per group, and mutates the
// graph in place: observer nodes are inserted at group boundaries and
// downstream consumers are rewired through them.
//
// Pipeline, run synchronously on one goroutine per graph:
//
//	annotations -> sharing relation (union-find) -> group ids
//	            -> observer instances -> graph mutation
//
// All intermediate state (the registry, group map, instance cache) is
// scoped to a single Run invocation; only the mutated graph and the
// returned Report outlive it. Failures abort the whole pass - there is
// no partial-success state and no rollback (callers that need one must
// snapshot the graph first).
package prepare
