// Package ir defines the compile-time program representation the lowering
// pipeline rewrites: a small typed instruction set that spans both the
// mid-level tensor dialect (distributed tensor values carrying layouts) and
// the low-level target dialect (scalar/vector/struct values, shared-memory
// access, barriers, inline target assembly). Lowering is the act of
// replacing every mid-level opcode in a program with target opcodes.
package ir

import (
	"fmt"
	"strings"

	"github.com/warp-lang/warpc/internal/layout"
)

// Scalar enumerates the primitive element types.
type Scalar int

const (
	I1 Scalar = iota
	I8
	I16
	I32
	I64
	F16
	F32
	F64
)

// Bits returns the width of the scalar type in bits.
func (s Scalar) Bits() int {
	switch s {
	case I1:
		return 1
	case I8:
		return 8
	case I16, F16:
		return 16
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	default:
		panic(fmt.Sprintf("unknown scalar type %d", int(s)))
	}
}

// IsInt reports whether the scalar is an integer type.
func (s Scalar) IsInt() bool { return s <= I64 }

// IsFloat reports whether the scalar is a floating-point type.
func (s Scalar) IsFloat() bool { return s >= F16 }

// String returns the printed form of the scalar type.
func (s Scalar) String() string {
	switch s {
	case I1:
		return "i1"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F16:
		return "f16"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("scalar(%d)", int(s))
	}
}

// TypeKind discriminates the closed set of type variants.
type TypeKind int

const (
	ScalarKind TypeKind = iota
	PointerKind
	TensorKind
	StructKind
	VectorKind
	ArrayKind
	VoidKind
)

// Type is a closed tagged union over the IR types. Use the constructors;
// only the fields of the constructed kind are meaningful.
type Type struct {
	Kind TypeKind

	Scalar Scalar  // ScalarKind
	Elem   *Type   // PointerKind, TensorKind, VectorKind, ArrayKind
	Space  int     // PointerKind address space
	Count  int     // VectorKind, ArrayKind
	Fields []*Type // StructKind

	// TensorKind: logical shape and distribution.
	Shape  layout.Shape
	Layout *layout.Layout
}

// Void is the type of value-less operations.
var Void = &Type{Kind: VoidKind}

// ScalarOf returns the type of a primitive scalar.
func ScalarOf(s Scalar) *Type { return &Type{Kind: ScalarKind, Scalar: s} }

// PointerTo returns a pointer type in the given address space.
// Address space 0 is generic/global memory, SharedAddressSpace is the
// CTA-shared staging memory.
func PointerTo(elem *Type, space int) *Type {
	return &Type{Kind: PointerKind, Elem: elem, Space: space}
}

// SharedAddressSpace is the address space of the CTA-shared staging buffer.
const SharedAddressSpace = 3

// TensorOf returns a ranked tensor type with a distribution layout.
func TensorOf(elem *Type, shape layout.Shape, l *layout.Layout) *Type {
	return &Type{Kind: TensorKind, Elem: elem, Shape: shape.Clone(), Layout: l}
}

// StructOf returns a literal struct type over the given field types.
func StructOf(fields ...*Type) *Type {
	return &Type{Kind: StructKind, Fields: fields}
}

// RecordOf returns the struct type of a lowered tensor record: count
// repetitions of the element type. A record type is structurally determined
// by (element type, slot count) only; the layout is erased.
func RecordOf(elem *Type, count int) *Type {
	fields := make([]*Type, count)
	for i := range fields {
		fields[i] = elem
	}
	return StructOf(fields...)
}

// VectorOf returns a fixed vector type.
func VectorOf(elem *Type, count int) *Type {
	return &Type{Kind: VectorKind, Elem: elem, Count: count}
}

// ArrayOf returns a fixed array type.
func ArrayOf(elem *Type, count int) *Type {
	return &Type{Kind: ArrayKind, Elem: elem, Count: count}
}

// IsTensor reports whether the type is a ranked tensor.
func (t *Type) IsTensor() bool { return t != nil && t.Kind == TensorKind }

// IsPointer reports whether the type is a pointer.
func (t *Type) IsPointer() bool { return t != nil && t.Kind == PointerKind }

// IsInteger reports whether the type is an integer scalar.
func (t *Type) IsInteger() bool { return t != nil && t.Kind == ScalarKind && t.Scalar.IsInt() }

// Bits returns the bit width of a scalar type and panics otherwise.
func (t *Type) Bits() int {
	if t.Kind != ScalarKind {
		panic(fmt.Sprintf("Bits on non-scalar type %s", t))
	}
	return t.Scalar.Bits()
}

// Equal reports structural type equality. Tensor types compare shape,
// element type and layout.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case ScalarKind:
		return t.Scalar == o.Scalar
	case PointerKind:
		return t.Space == o.Space && t.Elem.Equal(o.Elem)
	case TensorKind:
		return t.Shape.Equal(o.Shape) && t.Elem.Equal(o.Elem) && t.Layout.Equal(o.Layout)
	case StructKind:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case VectorKind, ArrayKind:
		return t.Count == o.Count && t.Elem.Equal(o.Elem)
	case VoidKind:
		return true
	default:
		return false
	}
}

// String returns the printed form of the type.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case ScalarKind:
		return t.Scalar.String()
	case PointerKind:
		if t.Space != 0 {
			return fmt.Sprintf("!ptr<%s, %d>", t.Elem, t.Space)
		}
		return fmt.Sprintf("!ptr<%s>", t.Elem)
	case TensorKind:
		dims := make([]string, len(t.Shape))
		for i, d := range t.Shape {
			dims[i] = fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("tensor<%sx%s, %s>", strings.Join(dims, "x"), t.Elem, t.Layout)
	case StructKind:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.String()
		}
		return fmt.Sprintf("!struct<(%s)>", strings.Join(fields, ", "))
	case VectorKind:
		return fmt.Sprintf("vector<%dx%s>", t.Count, t.Elem)
	case ArrayKind:
		return fmt.Sprintf("!array<%dx%s>", t.Count, t.Elem)
	case VoidKind:
		return "void"
	default:
		return fmt.Sprintf("type(%d)", int(t.Kind))
	}
}
