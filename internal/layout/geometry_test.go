package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearizeDelinearizeRoundTrip(t *testing.T) {
	shapes := [][]int{
		{1},
		{7},
		{4, 8},
		{3, 5, 7},
		{2, 2, 2, 2},
	}
	for _, shape := range shapes {
		n := Product(shape)
		for i := 0; i < n; i++ {
			multi := Delinearize(i, shape)
			assert.Equal(t, i, Linearize(multi, shape), "shape %v index %d", shape, i)
		}
	}
}

func TestDelinearizeOrdered(t *testing.T) {
	// With order {1, 0} dimension 1 varies fastest.
	shape := []int{4, 8}
	order := []int{1, 0}
	got := DelinearizeOrdered(0, shape, order)
	assert.Equal(t, []int{0, 0}, got)
	got = DelinearizeOrdered(1, shape, order)
	assert.Equal(t, []int{0, 1}, got)
	got = DelinearizeOrdered(8, shape, order)
	assert.Equal(t, []int{1, 0}, got)

	// Round trip through the permuted decomposition.
	for i := 0; i < Product(shape); i++ {
		multi := DelinearizeOrdered(i, shape, order)
		reordered := Reorder(multi, order)
		reorderedShape := Reorder(shape, order)
		assert.Equal(t, i, Linearize(reordered, reorderedShape), "index %d", i)
	}
}

func TestElemsPerThread1D(t *testing.T) {
	l := NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	elems, err := l.ElemsPerThread(Shape{128})
	require.NoError(t, err)
	assert.Equal(t, 4, elems)

	// Shape larger than one tiling period replicates.
	elems, err = l.ElemsPerThread(Shape{256})
	require.NoError(t, err)
	assert.Equal(t, 8, elems)

	// Shape smaller than one period still owns one full tile per thread.
	elems, err = l.ElemsPerThread(Shape{64})
	require.NoError(t, err)
	assert.Equal(t, 4, elems)
}

func TestLaneIndicesCoverage1D(t *testing.T) {
	// Shape [128], sizePerThread [4], 32 lanes, 1 warp: lane t owns
	// {4t, 4t+1, 4t+2, 4t+3}, covering [0, 128) exactly once.
	l := NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	shape := Shape{128}
	seen := make(map[int]int)
	for lane := 0; lane < 32; lane++ {
		indices, err := l.LaneIndices(lane, shape)
		require.NoError(t, err)
		require.Len(t, indices, 4)
		for j, idx := range indices {
			assert.Equal(t, 4*lane+j, idx[0], "lane %d slot %d", lane, j)
			seen[idx[0]]++
		}
	}
	require.Len(t, seen, 128)
	for i, count := range seen {
		assert.Equal(t, 1, count, "index %d", i)
	}
}

func TestLaneIndicesCoverage2D(t *testing.T) {
	// Full 2-D tiling: 2 warps x 32 lanes covering [32, 64] exactly once.
	l := NewBlocked([]int{1, 4}, []int{4, 8}, []int{2, 2}, []int{1, 0})
	shape := Shape{32, 64}
	threads := WarpSize * Product(l.WarpsPerCTA)
	seen := make(map[string]int)
	for tid := 0; tid < threads; tid++ {
		indices, err := l.LaneIndices(tid, shape)
		require.NoError(t, err)
		for _, idx := range indices {
			seen[fmt.Sprintf("%d,%d", idx[0], idx[1])]++
		}
	}
	require.Len(t, seen, shape.NumElements())
	for key, count := range seen {
		assert.Equal(t, 1, count, "index %s", key)
	}
}

func TestLaneIndicesWrapAround(t *testing.T) {
	// Shape smaller than one tiling period: lanes beyond the needed count
	// wrap and own duplicate elements, but every element stays in bounds
	// and the full index space is covered.
	l := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	shape := Shape{8}
	seen := make(map[int]bool)
	for lane := 0; lane < 32; lane++ {
		indices, err := l.LaneIndices(lane, shape)
		require.NoError(t, err)
		require.Len(t, indices, 1)
		assert.Less(t, indices[0][0], 8, "lane %d", lane)
		seen[indices[0][0]] = true
	}
	assert.Len(t, seen, 8)
}

func TestLaneIndicesTileMajorOrder(t *testing.T) {
	// Elements of one sizePerThread tile must occupy adjacent record slots,
	// with tile replication on the outer level.
	l := NewBlocked([]int{2}, []int{32}, []int{1}, []int{0})
	shape := Shape{128} // two tiling periods
	indices, err := l.LaneIndices(0, shape)
	require.NoError(t, err)
	require.Len(t, indices, 4)
	// Tile 0 (offset 0) then tile 1 (offset 64), each contiguous.
	assert.Equal(t, 0, indices[0][0])
	assert.Equal(t, 1, indices[1][0])
	assert.Equal(t, 64, indices[2][0])
	assert.Equal(t, 65, indices[3][0])
}

func TestSlicedLaneIndices(t *testing.T) {
	parent := NewBlocked([]int{1, 4}, []int{1, 32}, []int{1, 1}, []int{1, 0})
	l := NewSliced(parent, 0)
	require.Equal(t, 1, l.Rank())

	elems, err := l.ElemsPerThread(Shape{128})
	require.NoError(t, err)
	assert.Equal(t, 4, elems)

	indices, err := l.LaneIndices(3, Shape{128})
	require.NoError(t, err)
	require.Len(t, indices, 4)
	for j, idx := range indices {
		require.Len(t, idx, 1, "sliced axis must be dropped")
		assert.Equal(t, 4*3+j, idx[0])
	}
}

func TestUnsupportedLayoutFailsFast(t *testing.T) {
	for _, l := range []*Layout{NewMMA(), NewShared()} {
		_, err := l.ElemsPerThread(Shape{16})
		assert.ErrorIs(t, err, ErrUnsupportedLayout, l.Kind())
		_, err = l.LaneIndices(0, Shape{16})
		assert.ErrorIs(t, err, ErrUnsupportedLayout, l.Kind())
	}
}

func TestBaseIndexUnsupported(t *testing.T) {
	parent := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	_, err := NewSliced(parent, 0).BaseIndex(0, Shape{})
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}
