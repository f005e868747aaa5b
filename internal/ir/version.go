package ir

// ToolVersion is stamped into run records so stored provenance can be
// traced back to the pass implementation that produced it.
const ToolVersion = "0.1.0"

// IRVersion identifies the IR schema version used by the store.
const IRVersion = "v1"
