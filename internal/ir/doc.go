// Package ir defines the intermediate representation shared by all
// quantprep components: the computation graph (nodes, ordered arguments,
// consumer sets), observable positions (node outputs and input edges),
// the quantization spec model, and the canonical serialization used for
// content-addressed identity.
//
// The IR is deliberately value-oriented where identity matters: Position
// is a comparable value key (never a pointer into the mutating graph),
// so sharing maps stay valid across graph mutation.
package ir
