package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanConvert1D(t *testing.T) {
	src := NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	dst := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	p, err := PlanConvert(src, dst, Shape{128})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, p.NumReplicates)
	assert.Equal(t, []int{1}, p.InCTAsPerRep)
	assert.Equal(t, []int{4}, p.OutCTAsPerRep)
	assert.Equal(t, 4, p.InVec)
	assert.Equal(t, 1, p.OutVec)
	// 128 elements plus padding on the fastest dimension.
	assert.Equal(t, []int{132}, p.ScratchShape)
	assert.Equal(t, 1, p.Rounds())
}

func TestPlanConvertDisjointOrders(t *testing.T) {
	src := NewBlocked([]int{1, 2}, []int{8, 4}, []int{1, 1}, []int{1, 0})
	dst := NewBlocked([]int{2, 1}, []int{4, 8}, []int{1, 1}, []int{0, 1})
	p, err := PlanConvert(src, dst, Shape{16, 16})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, p.NumReplicates)
	assert.Equal(t, 4, p.Rounds())
	// Orders disagree, so scratch stores cannot vectorize.
	assert.Equal(t, 1, p.InVec)
	assert.Equal(t, 2, p.OutVec)
	assert.Equal(t, []int{10, 8}, p.ScratchShape)
}

func TestPlanConvertRejectsNonBlocked(t *testing.T) {
	src := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	_, err := PlanConvert(src, NewMMA(), Shape{32})
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}

func TestPlanConvertRejectsNonNestedPeriods(t *testing.T) {
	src := NewBlocked([]int{1}, []int{4}, []int{1}, []int{0})  // period 4
	dst := NewBlocked([]int{3}, []int{2}, []int{1}, []int{0}) // period 6
	_, err := PlanConvert(src, dst, Shape{12})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not nested")
}

// simulateConvert runs the redistribution as data movement through a model
// scratch array: every round stores the source-side record slots at their
// scratch offsets, then reads the destination-side slots back out. Record
// values are the linearized logical element indices, so correctness is that
// each destination record ends up holding exactly its own lane indices.
func simulateConvert(t *testing.T, src, dst *Layout, shape Shape) {
	t.Helper()
	p, err := PlanConvert(src, dst, shape)
	require.NoError(t, err)

	threads := WarpSize * Product(src.WarpsPerCTA)
	require.Equal(t, threads, WarpSize*Product(dst.WarpsPerCTA), "both layouts must use the same thread count")

	srcElems, err := src.ElemsPerThread(shape)
	require.NoError(t, err)
	dstElems, err := dst.ElemsPerThread(shape)
	require.NoError(t, err)

	srcRecords := make([][]int, threads)
	dstRecords := make([][]int, threads)
	for tid := 0; tid < threads; tid++ {
		indices, err := src.LaneIndices(tid, shape)
		require.NoError(t, err)
		require.Len(t, indices, srcElems)
		srcRecords[tid] = make([]int, srcElems)
		for i, idx := range indices {
			srcRecords[tid][i] = Linearize(idx, shape)
		}
		dstRecords[tid] = make([]int, dstElems)
		for i := range dstRecords[tid] {
			dstRecords[tid][i] = -1
		}
	}

	scratch := make([]int, p.ScratchElems())
	for round := 0; round < p.Rounds(); round++ {
		repID := Delinearize(round, p.NumReplicates)
		// Store half.
		for tid := 0; tid < threads; tid++ {
			elems, err := p.ReplicaElements(src, p.InCTAsPerRep, repID, tid)
			require.NoError(t, err)
			for _, e := range elems {
				scratch[Linearize(e.Offset, p.ScratchShape)] = srcRecords[tid][e.Slot]
			}
		}
		// Load half.
		for tid := 0; tid < threads; tid++ {
			elems, err := p.ReplicaElements(dst, p.OutCTAsPerRep, repID, tid)
			require.NoError(t, err)
			for _, e := range elems {
				dstRecords[tid][e.Slot] = scratch[Linearize(e.Offset, p.ScratchShape)]
			}
		}
	}

	for tid := 0; tid < threads; tid++ {
		indices, err := dst.LaneIndices(tid, shape)
		require.NoError(t, err)
		for i, idx := range indices {
			assert.Equal(t, Linearize(idx, shape), dstRecords[tid][i],
				"thread %d slot %d", tid, i)
		}
	}
}

func TestConvertConservation1D(t *testing.T) {
	src := NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	dst := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	simulateConvert(t, src, dst, Shape{128})
}

func TestConvertConservation2D(t *testing.T) {
	src := NewBlocked([]int{1, 2}, []int{8, 4}, []int{1, 1}, []int{1, 0})
	dst := NewBlocked([]int{2, 1}, []int{4, 8}, []int{1, 1}, []int{0, 1})
	simulateConvert(t, src, dst, Shape{16, 16})
}

func TestConvertConservationMultiWarp(t *testing.T) {
	src := NewBlocked([]int{1, 4}, []int{4, 8}, []int{2, 2}, []int{1, 0})
	dst := NewBlocked([]int{4, 1}, []int{8, 4}, []int{2, 2}, []int{0, 1})
	simulateConvert(t, src, dst, Shape{32, 64})
}

func TestConvertReplicatedRounds(t *testing.T) {
	// Shape spans several tiling periods on both sides, forcing more than
	// one barrier-delimited round.
	src := NewBlocked([]int{2}, []int{32}, []int{1}, []int{0}) // period 64
	dst := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0}) // period 32
	p, err := PlanConvert(src, dst, Shape{256})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Rounds())
	simulateConvert(t, src, dst, Shape{256})
}

func TestReplicaElementsScratchBounds(t *testing.T) {
	src := NewBlocked([]int{2}, []int{32}, []int{1}, []int{0})
	dst := NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	p, err := PlanConvert(src, dst, Shape{256})
	require.NoError(t, err)
	for round := 0; round < p.Rounds(); round++ {
		repID := Delinearize(round, p.NumReplicates)
		for tid := 0; tid < WarpSize; tid++ {
			elems, err := p.ReplicaElements(src, p.InCTAsPerRep, repID, tid)
			require.NoError(t, err)
			for _, e := range elems {
				off := Linearize(e.Offset, p.ScratchShape)
				assert.GreaterOrEqual(t, off, 0)
				assert.Less(t, off, p.ScratchElems())
			}
		}
	}
}
