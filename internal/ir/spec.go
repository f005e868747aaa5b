package ir

// DType names a tensor element type in a quantization spec.
// DTypeUnset marks an absent dtype field - absent is NOT the same as
// float32, and never compares equal to anything (see prepare's sharing
// equality rules).
type DType string

const (
	DTypeUnset   DType = ""
	DTypeFloat32 DType = "float32"
	DTypeFloat16 DType = "float16"
	DTypeInt8    DType = "int8"
	DTypeUInt8   DType = "uint8"
	DTypeInt16   DType = "int16"
	DTypeInt32   DType = "int32"
)

// ValidDTypes defines the dtype names accepted by the compiler front-end.
var ValidDTypes = map[DType]bool{
	DTypeFloat32: true,
	DTypeFloat16: true,
	DTypeInt8:    true,
	DTypeUInt8:   true,
	DTypeInt16:   true,
	DTypeInt32:   true,
}

// Spec is a sealed union describing how a position should be observed.
// Only QuantSpec and SharedWith implement it.
//
// A nil Spec means "not annotated" - callers must check before use.
type Spec interface {
	spec() // Sealed - only ir types implement it.
}

// QuantSpec is a concrete observation descriptor.
//
// Both fields are optional: DType may be DTypeUnset and IsDynamic may be
// nil. Absence is semantically meaningful (it makes equality checks fail),
// so neither field defaults to a concrete value.
type QuantSpec struct {
	DType DType

	// IsDynamic is nil when the annotation did not specify dynamic-ness.
	IsDynamic *bool
}

func (QuantSpec) spec() {}

// Dynamic reports the dynamic flag, treating absent as false.
func (s QuantSpec) Dynamic() bool {
	return s.IsDynamic != nil && *s.IsDynamic
}

// SharedWith is a reference spec: the annotated position must share one
// observer instance with Target.
type SharedWith struct {
	Target Position
}

func (SharedWith) spec() {}

// Bool returns a pointer to b. Convenience for building QuantSpec values
// in compilers and tests.
func Bool(b bool) *bool {
	return &b
}
