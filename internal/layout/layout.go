// Package layout describes how a tensor's elements are distributed across
// the GPU execution hierarchy (CTA → warp → thread → per-thread slot) and
// provides the pure index arithmetic the lowering engine is built on:
// linear ⇄ multi-dimensional index conversion, per-thread base offsets and
// full per-thread element enumeration, plus the planning arithmetic for
// moving a value between two incompatible distributions.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// WarpSize is the number of threads scheduled together in one warp.
const WarpSize = 32

// ErrUnsupportedLayout reports a layout variant the lowering engine does not
// implement. Operations touching MMA or Shared layouts fail with this error
// instead of silently miscompiling.
var ErrUnsupportedLayout = errors.New("unsupported layout")

// Kind discriminates the closed set of layout variants.
type Kind int

const (
	// BlockedKind tiles the tensor densely and periodically across the
	// thread hierarchy.
	BlockedKind Kind = iota
	// SlicedKind projects a parent layout, dropping one dimension.
	SlicedKind
	// MMAKind is a matrix-accelerator operand/result layout. Unimplemented.
	MMAKind
	// SharedKind is a shared-memory-resident layout. Unimplemented.
	SharedKind
)

// String returns a human-readable name for the layout kind.
func (k Kind) String() string {
	switch k {
	case BlockedKind:
		return "blocked"
	case SlicedKind:
		return "sliced"
	case MMAKind:
		return "mma"
	case SharedKind:
		return "shared"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Layout is a closed tagged union over the layout variants. Use the
// constructors; the parameter fields are only meaningful for the kind the
// constructor set.
type Layout struct {
	kind Kind

	// Blocked parameters, one entry per tensor dimension.
	SizePerThread  []int // contiguous elements owned by one thread
	ThreadsPerWarp []int // threads of one warp along this dimension
	WarpsPerCTA    []int // warps of the CTA along this dimension
	Order          []int // dimension visitation order, Order[0] fastest

	// Sliced parameters.
	Parent *Layout
	Dim    int // the dimension removed from the parent
}

// NewBlocked builds a Blocked layout. All parameter slices must have the
// same rank and Order must be a permutation of the dimensions.
func NewBlocked(sizePerThread, threadsPerWarp, warpsPerCTA, order []int) *Layout {
	rank := len(sizePerThread)
	if len(threadsPerWarp) != rank || len(warpsPerCTA) != rank || len(order) != rank {
		panic(fmt.Sprintf("blocked layout parameter ranks disagree: %d/%d/%d/%d",
			len(sizePerThread), len(threadsPerWarp), len(warpsPerCTA), len(order)))
	}
	seen := make([]bool, rank)
	for _, d := range order {
		if d < 0 || d >= rank || seen[d] {
			panic(fmt.Sprintf("order %v is not a permutation of %d dimensions", order, rank))
		}
		seen[d] = true
	}
	return &Layout{
		kind:           BlockedKind,
		SizePerThread:  append([]int(nil), sizePerThread...),
		ThreadsPerWarp: append([]int(nil), threadsPerWarp...),
		WarpsPerCTA:    append([]int(nil), warpsPerCTA...),
		Order:          append([]int(nil), order...),
	}
}

// NewSliced builds a layout that drops dimension dim of parent.
func NewSliced(parent *Layout, dim int) *Layout {
	if parent == nil {
		panic("sliced layout requires a parent")
	}
	return &Layout{kind: SlicedKind, Parent: parent, Dim: dim}
}

// NewMMA builds the matrix-accelerator placeholder layout.
func NewMMA() *Layout { return &Layout{kind: MMAKind} }

// NewShared builds the shared-memory-resident placeholder layout.
func NewShared() *Layout { return &Layout{kind: SharedKind} }

// Kind returns the layout variant.
func (l *Layout) Kind() Kind { return l.kind }

// Rank returns the tensor rank this layout applies to.
func (l *Layout) Rank() int {
	switch l.kind {
	case BlockedKind:
		return len(l.SizePerThread)
	case SlicedKind:
		return l.Parent.Rank() - 1
	default:
		return 0
	}
}

// Equal reports whether two layouts describe the same distribution.
func (l *Layout) Equal(o *Layout) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil || l.kind != o.kind {
		return false
	}
	switch l.kind {
	case BlockedKind:
		return intsEqual(l.SizePerThread, o.SizePerThread) &&
			intsEqual(l.ThreadsPerWarp, o.ThreadsPerWarp) &&
			intsEqual(l.WarpsPerCTA, o.WarpsPerCTA) &&
			intsEqual(l.Order, o.Order)
	case SlicedKind:
		return l.Dim == o.Dim && l.Parent.Equal(o.Parent)
	default:
		return true
	}
}

// ShapePerCTA returns the extent of the tensor region one full CTA tiling
// period covers along dimension d. Blocked layouts only.
func (l *Layout) ShapePerCTA(d int) int {
	if l.kind != BlockedKind {
		panic(fmt.Sprintf("ShapePerCTA on %s layout", l.kind))
	}
	return l.SizePerThread[d] * l.ThreadsPerWarp[d] * l.WarpsPerCTA[d]
}

// ElemsPerThread returns how many elements of a tensor with the given shape
// each thread owns. The record representation of a lowered tensor has
// exactly this many slots, so the result must be identical wherever the
// tensor is produced or consumed.
func (l *Layout) ElemsPerThread(shape Shape) (int, error) {
	switch l.kind {
	case BlockedKind:
		if len(shape) != l.Rank() {
			return 0, fmt.Errorf("shape %v has rank %d, layout has rank %d", shape, len(shape), l.Rank())
		}
		elems := 1
		for k := range shape {
			elems *= CeilDiv(shape[k], l.ShapePerCTA(k)) * l.SizePerThread[k]
		}
		return elems, nil
	case SlicedKind:
		return l.Parent.ElemsPerThread(shape.Insert(l.Dim, 1))
	default:
		return 0, fmt.Errorf("elemsPerThread for %s layout: %w", l.kind, ErrUnsupportedLayout)
	}
}

// String returns a compact description of the layout.
func (l *Layout) String() string {
	switch l.kind {
	case BlockedKind:
		return fmt.Sprintf("blocked<szPerThread=%v, thrPerWarp=%v, warpsPerCTA=%v, order=%v>",
			l.SizePerThread, l.ThreadsPerWarp, l.WarpsPerCTA, l.Order)
	case SlicedKind:
		var b strings.Builder
		fmt.Fprintf(&b, "sliced<dim=%d, parent=%s>", l.Dim, l.Parent)
		return b.String()
	default:
		return l.kind.String()
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
