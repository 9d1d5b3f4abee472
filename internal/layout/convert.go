package layout

import "fmt"

// ConvertPlan is the derived geometry of one layout conversion: how many
// replication rounds are needed, how many native CTA tiling periods of each
// side fit inside one round, and the padded scratch shape the staging buffer
// is addressed with. Computed once per conversion op and discarded.
type ConvertPlan struct {
	Shape Shape

	NumReplicates []int // replication rounds per dimension
	InCTAsPerRep  []int // source tiling periods per round, per dimension
	OutCTAsPerRep []int // destination tiling periods per round, per dimension

	InVec  int // store vectorization width into the scratch buffer
	OutVec int // load vectorization width out of the scratch buffer

	ScratchShape []int // per-round scratch region, padded on the fastest dim
}

// Rounds returns the total number of replication rounds.
func (p *ConvertPlan) Rounds() int {
	return Product(p.NumReplicates)
}

// PlanConvert derives the redistribution plan for converting a tensor of the
// given shape from layout src to layout dst. Both layouts must be Blocked;
// anything else is unimplemented and fails with ErrUnsupportedLayout.
func PlanConvert(src, dst *Layout, shape Shape) (*ConvertPlan, error) {
	if src.Kind() != BlockedKind || dst.Kind() != BlockedKind {
		return nil, fmt.Errorf("layout conversion %s -> %s: %w", src.Kind(), dst.Kind(), ErrUnsupportedLayout)
	}
	rank := len(shape)
	if src.Rank() != rank || dst.Rank() != rank {
		return nil, fmt.Errorf("conversion rank mismatch: shape %v, src rank %d, dst rank %d",
			shape, src.Rank(), dst.Rank())
	}
	p := &ConvertPlan{
		Shape:         shape.Clone(),
		NumReplicates: make([]int, rank),
		InCTAsPerRep:  make([]int, rank),
		OutCTAsPerRep: make([]int, rank),
		ScratchShape:  make([]int, rank),
	}
	for d := 0; d < rank; d++ {
		inPerCTA := minInt(shape[d], src.ShapePerCTA(d))
		outPerCTA := minInt(shape[d], dst.ShapePerCTA(d))
		maxPerCTA := maxInt(inPerCTA, outPerCTA)
		if maxPerCTA%inPerCTA != 0 || maxPerCTA%outPerCTA != 0 {
			return nil, fmt.Errorf("conversion tiling periods are not nested at dim %d: in %d, out %d",
				d, inPerCTA, outPerCTA)
		}
		p.NumReplicates[d] = CeilDiv(shape[d], maxPerCTA)
		p.InCTAsPerRep[d] = maxPerCTA / inPerCTA
		p.OutCTAsPerRep[d] = maxPerCTA / outPerCTA
		p.ScratchShape[d] = maxPerCTA
	}
	// Scratch accesses are vectorized along each side's fastest dimension.
	// Stores only vectorize when both sides agree on it.
	p.OutVec = dst.SizePerThread[dst.Order[0]]
	if src.Order[0] == dst.Order[0] {
		p.InVec = src.SizePerThread[src.Order[0]]
	} else {
		p.InVec = 1
	}
	// Pad the fastest dimension to keep successive rows off the same banks.
	p.ScratchShape[dst.Order[0]] += maxInt(p.InVec, p.OutVec)
	return p, nil
}

// ScratchElems returns the element capacity of the padded scratch region.
func (p *ConvertPlan) ScratchElems() int {
	return Product(p.ScratchShape)
}

// ReplicaElem binds one record slot of a thread to its location in the
// scratch region during one replication round.
type ReplicaElem struct {
	Slot   int   // index into the thread's record
	Offset []int // per-dimension offset within the scratch region
}

// ReplicaElements enumerates, for one side of a conversion round, every
// record slot the given thread moves through the scratch buffer and the
// scratch offset it uses. ctasPerRep selects the side (InCTAsPerRep for the
// store half, OutCTAsPerRep for the load half); repID is the round index
// delinearized over NumReplicates. Consecutive returned elements along the
// destination's fastest dimension are contiguous in scratch, which is what
// makes the vectorized scratch access legal.
func (p *ConvertPlan) ReplicaElements(side *Layout, ctasPerRep []int, repID []int, threadID int) ([]ReplicaElem, error) {
	if side.Kind() != BlockedKind {
		return nil, fmt.Errorf("replica elements for %s layout: %w", side.Kind(), ErrUnsupportedLayout)
	}
	rank := len(p.Shape)
	base, err := side.BaseIndex(threadID, p.Shape)
	if err != nil {
		return nil, err
	}
	numCTAs := make([]int, rank)
	for d := 0; d < rank; d++ {
		numCTAs[d] = CeilDiv(p.Shape[d], side.ShapePerCTA(d))
	}
	elemsPerTile := Product(side.SizePerThread)
	var out []ReplicaElem
	for ctaID := 0; ctaID < Product(ctasPerRep); ctaID++ {
		ctaInRep := Delinearize(ctaID, ctasPerRep)
		ctaCoord := make([]int, rank)
		for d := 0; d < rank; d++ {
			ctaCoord[d] = repID[d]*ctasPerRep[d] + ctaInRep[d]
		}
		linearCTA := Linearize(ctaCoord, numCTAs)
		for elemID := 0; elemID < elemsPerTile; elemID++ {
			elemCoord := Delinearize(elemID, side.SizePerThread)
			off := make([]int, rank)
			for d := 0; d < rank; d++ {
				off[d] = base[d] + ctaInRep[d]*side.ShapePerCTA(d) + elemCoord[d]
			}
			out = append(out, ReplicaElem{
				Slot:   linearCTA*elemsPerTile + elemID,
				Offset: off,
			})
		}
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
