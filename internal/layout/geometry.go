package layout

import "fmt"

// CeilDiv returns ceil(a/b) for positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Product returns the product of all entries, 1 for an empty slice.
func Product(xs []int) int {
	p := 1
	for _, x := range xs {
		p *= x
	}
	return p
}

// Delinearize converts a linear index into per-dimension coordinates using
// row-major divisor/remainder decomposition over shape (last dimension
// fastest-varying).
func Delinearize(linear int, shape []int) []int {
	rank := len(shape)
	multi := make([]int, rank)
	remain := linear
	for i := rank - 1; i > 0; i-- {
		multi[i] = remain % shape[i]
		remain /= shape[i]
	}
	if rank > 0 {
		multi[0] = remain
	}
	return multi
}

// DelinearizeOrdered delinearizes with a dimension visitation order:
// the shape is permuted by order before decomposition and the coordinates
// are un-permuted afterwards, so order[0] becomes the fastest-varying
// dimension regardless of its position.
func DelinearizeOrdered(linear int, shape, order []int) []int {
	rank := len(shape)
	if len(order) != rank {
		panic(fmt.Sprintf("order %v does not match rank %d", order, rank))
	}
	reordered := make([]int, rank)
	for i := 0; i < rank; i++ {
		reordered[rank-1-i] = shape[order[i]]
	}
	decomposed := Delinearize(linear, reordered)
	multi := make([]int, rank)
	for i := 0; i < rank; i++ {
		multi[order[i]] = decomposed[rank-1-i]
	}
	return multi
}

// Linearize is the inverse of Delinearize, accumulating coordinates by
// Horner's rule. Linearize(Delinearize(i, s), s) == i for all valid i.
func Linearize(multi, shape []int) int {
	if len(multi) != len(shape) {
		panic(fmt.Sprintf("index rank %d does not match shape rank %d", len(multi), len(shape)))
	}
	linear := 0
	for i, c := range multi {
		linear = linear*shape[i] + c
	}
	return linear
}

// Reorder permutes input so that the dimension order[i] lands at position
// rank-1-i: the layout's fastest-varying dimension becomes the last
// (fastest) dimension of the result. Used to linearize scratch offsets in a
// layout's native order.
func Reorder(input, order []int) []int {
	rank := len(order)
	if len(input) != rank {
		panic(fmt.Sprintf("input rank %d does not match order rank %d", len(input), rank))
	}
	out := make([]int, rank)
	for i, d := range order {
		out[rank-1-i] = input[d]
	}
	return out
}

// BaseIndex computes, per dimension, the first tensor index owned by the
// given thread of the CTA. Warp and lane coordinates wrap around when the
// shape is smaller than one full tiling period. Blocked layouts only.
func (l *Layout) BaseIndex(threadID int, shape Shape) ([]int, error) {
	if l.kind != BlockedKind {
		return nil, fmt.Errorf("base index for %s layout: %w", l.kind, ErrUnsupportedLayout)
	}
	rank := l.Rank()
	if len(shape) != rank {
		return nil, fmt.Errorf("shape %v has rank %d, layout has rank %d", shape, len(shape), rank)
	}
	laneID := threadID % WarpSize
	warpID := threadID / WarpSize
	warpCoord := DelinearizeOrdered(warpID, l.WarpsPerCTA, l.Order)
	laneCoord := DelinearizeOrdered(laneID, l.ThreadsPerWarp, l.Order)
	base := make([]int, rank)
	for k := 0; k < rank; k++ {
		maxWarps := CeilDiv(shape[k], l.SizePerThread[k]*l.ThreadsPerWarp[k])
		maxLanes := CeilDiv(shape[k], l.SizePerThread[k])
		wc := warpCoord[k] % maxWarps
		lc := laneCoord[k] % maxLanes
		base[k] = l.SizePerThread[k] * (lc + wc*l.ThreadsPerWarp[k])
	}
	return base, nil
}

// ElementOffsets returns, for every record slot of one thread, the
// per-dimension offset of that element relative to the thread's base index.
// Slots are ordered tile-major: the outer level walks the CTA tile
// replication row-major, the inner level walks the sizePerThread tile
// row-major, so the elements of one contiguous tile occupy adjacent slots.
// Every other component assumes exactly this ordering.
func (l *Layout) ElementOffsets(shape Shape) ([][]int, error) {
	if l.kind != BlockedKind {
		return nil, fmt.Errorf("element offsets for %s layout: %w", l.kind, ErrUnsupportedLayout)
	}
	rank := l.Rank()
	if len(shape) != rank {
		return nil, fmt.Errorf("shape %v has rank %d, layout has rank %d", shape, len(shape), rank)
	}
	tilesPerDim := make([]int, rank)
	for k := 0; k < rank; k++ {
		tilesPerDim[k] = CeilDiv(shape[k], l.ShapePerCTA(k))
	}
	elemsPerTile := Product(l.SizePerThread)
	elems := Product(tilesPerDim) * elemsPerTile
	offsets := make([][]int, elems)
	for n := 0; n < elems; n++ {
		tileCoord := Delinearize(n/elemsPerTile, tilesPerDim)
		elemCoord := Delinearize(n%elemsPerTile, l.SizePerThread)
		off := make([]int, rank)
		for k := 0; k < rank; k++ {
			off[k] = tileCoord[k]*l.ShapePerCTA(k) + elemCoord[k]
		}
		offsets[n] = off
	}
	return offsets, nil
}

// LaneIndices enumerates the full per-dimension tensor indices owned by the
// given thread, in record-slot order. Blocked layouts combine BaseIndex and
// ElementOffsets; Sliced layouts enumerate the parent over the shape padded
// with a size-1 dimension at the sliced axis and drop that axis from every
// produced index.
func (l *Layout) LaneIndices(threadID int, shape Shape) ([][]int, error) {
	switch l.kind {
	case BlockedKind:
		base, err := l.BaseIndex(threadID, shape)
		if err != nil {
			return nil, err
		}
		offsets, err := l.ElementOffsets(shape)
		if err != nil {
			return nil, err
		}
		indices := make([][]int, len(offsets))
		for n, off := range offsets {
			idx := make([]int, len(off))
			for k := range off {
				idx[k] = base[k] + off[k]
			}
			indices[n] = idx
		}
		return indices, nil
	case SlicedKind:
		padded, err := l.Parent.LaneIndices(threadID, shape.Insert(l.Dim, 1))
		if err != nil {
			return nil, err
		}
		indices := make([][]int, len(padded))
		for n, idx := range padded {
			out := make([]int, 0, len(idx)-1)
			for d, c := range idx {
				if d != l.Dim {
					out = append(out, c)
				}
			}
			indices[n] = out
		}
		return indices, nil
	default:
		return nil, fmt.Errorf("lane indices for %s layout: %w", l.kind, ErrUnsupportedLayout)
	}
}
