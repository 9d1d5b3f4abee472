// Package analysis declares the two pre-pass results the lowering engine
// consumes: pointer alignment facts (AxisInfo) that license vectorized
// memory access, and the shared-memory assignment (Allocation) that gives
// each layout conversion its scratch region. The engine only reads these
// through the interfaces here; producing them is a separate concern, and
// the Static implementations let callers and tests supply the facts
// directly.
package analysis

import "github.com/warp-lang/warpc/internal/ir"

// Info is the per-value alignment lattice element: for every tensor
// dimension, how many consecutive elements are contiguous in memory, what
// power divides every address, and across how many elements the value is
// constant. The pessimistic element is all ones.
type Info struct {
	Contiguity   []int
	Divisibility []int
	Constancy    []int
}

// Pessimistic returns the all-ones element for the given rank, the safe
// answer when nothing is known about a value.
func Pessimistic(rank int) Info {
	ones := func() []int {
		s := make([]int, rank)
		for i := range s {
			s[i] = 1
		}
		return s
	}
	return Info{Contiguity: ones(), Divisibility: ones(), Constancy: ones()}
}

func at(s []int, d int) int {
	if d < 0 || d >= len(s) {
		return 1
	}
	return s[d]
}

// Contig returns the contiguity along dimension d, defaulting to 1.
func (in Info) Contig(d int) int { return at(in.Contiguity, d) }

// Div returns the divisibility along dimension d, defaulting to 1.
func (in Info) Div(d int) int { return at(in.Divisibility, d) }

// Const returns the constancy along dimension d, defaulting to 1.
func (in Info) Const(d int) int { return at(in.Constancy, d) }

// AxisInfo answers alignment queries for the pointer and mask operands of
// memory operations.
type AxisInfo interface {
	// Of returns the alignment facts for v. Implementations return the
	// pessimistic element for values they know nothing about.
	Of(v *ir.Value) Info
}

// Allocation answers scratch-region queries for operations that stage data
// through shared memory.
type Allocation interface {
	// OffsetOf returns the byte offset of the scratch region assigned to
	// op within the shared buffer. ok is false when op has no assignment.
	OffsetOf(op *ir.Op) (offset int, ok bool)
	// SharedSize returns the total shared buffer size in bytes.
	SharedSize() int
}

// StaticAxisInfo is a map-backed AxisInfo for facts computed elsewhere.
type StaticAxisInfo struct {
	rank  int
	facts map[*ir.Value]Info
}

// NewStaticAxisInfo creates an empty table answering Pessimistic(rank) for
// unknown values.
func NewStaticAxisInfo(rank int) *StaticAxisInfo {
	return &StaticAxisInfo{rank: rank, facts: map[*ir.Value]Info{}}
}

// Set records the facts for v and returns the table for chaining.
func (s *StaticAxisInfo) Set(v *ir.Value, info Info) *StaticAxisInfo {
	s.facts[v] = info
	return s
}

// Of implements AxisInfo.
func (s *StaticAxisInfo) Of(v *ir.Value) Info {
	if info, ok := s.facts[v]; ok {
		return info
	}
	return Pessimistic(s.rank)
}

// StaticAllocation is a map-backed Allocation.
type StaticAllocation struct {
	offsets map[*ir.Op]int
	size    int
}

// NewStaticAllocation creates an empty assignment.
func NewStaticAllocation() *StaticAllocation {
	return &StaticAllocation{offsets: map[*ir.Op]int{}}
}

// Assign places op's scratch region at the given byte offset and extends
// the shared size to cover it.
func (s *StaticAllocation) Assign(op *ir.Op, offset, sizeBytes int) *StaticAllocation {
	s.offsets[op] = offset
	if end := offset + sizeBytes; end > s.size {
		s.size = end
	}
	return s
}

// OffsetOf implements Allocation.
func (s *StaticAllocation) OffsetOf(op *ir.Op) (int, bool) {
	off, ok := s.offsets[op]
	return off, ok
}

// SharedSize implements Allocation.
func (s *StaticAllocation) SharedSize() int { return s.size }
