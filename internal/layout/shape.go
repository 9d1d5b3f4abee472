package layout

import "fmt"

// Shape represents the logical dimensions of a tensor.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that all dimensions are positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Insert returns a new shape with size inserted at dimension d.
func (s Shape) Insert(d, size int) Shape {
	if d < 0 || d > len(s) {
		panic(fmt.Sprintf("insert position %d out of range for rank %d", d, len(s)))
	}
	out := make(Shape, 0, len(s)+1)
	out = append(out, s[:d]...)
	out = append(out, size)
	out = append(out, s[d:]...)
	return out
}

// Drop returns a new shape with dimension d removed.
func (s Shape) Drop(d int) Shape {
	if d < 0 || d >= len(s) {
		panic(fmt.Sprintf("drop position %d out of range for rank %d", d, len(s)))
	}
	out := make(Shape, 0, len(s)-1)
	out = append(out, s[:d]...)
	out = append(out, s[d+1:]...)
	return out
}
