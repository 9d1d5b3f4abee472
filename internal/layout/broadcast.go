package layout

import "fmt"

// BroadcastMap computes the record-slot fan-out of a broadcast from srcShape
// to dstShape under one shared Blocked layout: result[i] lists the
// destination record slots that receive the source record slot i. Broadcast
// dimensions are those where srcShape is 1 and dstShape is larger; both
// shapes must agree everywhere else.
//
// The computation works in a doubled logical index space, (ctaTile coords,
// intra-tile coords): each side's record order is exactly the row-major
// order of that space, so fanning out a slot is adding every scaled
// replication coordinate to its logical index and re-linearizing.
func BroadcastMap(l *Layout, srcShape, dstShape Shape) ([][]int, error) {
	if l.Kind() != BlockedKind {
		return nil, fmt.Errorf("broadcast under %s layout: %w", l.Kind(), ErrUnsupportedLayout)
	}
	rank := l.Rank()
	if len(srcShape) != rank || len(dstShape) != rank {
		return nil, fmt.Errorf("broadcast rank mismatch: src %v, dst %v, layout rank %d", srcShape, dstShape, rank)
	}

	srcLogical := make([]int, 2*rank)
	dstLogical := make([]int, 2*rank)
	var broadcastDims []int
	for d := 0; d < rank; d++ {
		numCTAs := CeilDiv(dstShape[d], l.ShapePerCTA(d))
		if srcShape[d] != dstShape[d] {
			if srcShape[d] != 1 {
				return nil, fmt.Errorf("broadcast dim %d: source extent %d, want 1", d, srcShape[d])
			}
			broadcastDims = append(broadcastDims, d)
			srcLogical[d] = 1
			srcLogical[d+rank] = maxInt(1, l.SizePerThread[d])
		} else {
			srcLogical[d] = numCTAs
			srcLogical[d+rank] = l.SizePerThread[d]
		}
		dstLogical[d] = numCTAs
		dstLogical[d+rank] = l.SizePerThread[d]
	}

	// A source slot may already hold a replicated element (the layout claims
	// more intra-tile extent than the size-1 source dimension has), in which
	// case the per-dimension ratio is 1 and no fan-out happens there.
	nb := len(broadcastDims)
	broadcastSizes := make([]int, 2*nb)
	duplicates := 1
	for i, d := range broadcastDims {
		broadcastSizes[i] = dstLogical[d] / srcLogical[d]
		broadcastSizes[i+nb] = dstLogical[d+rank] / srcLogical[d+rank]
		duplicates *= broadcastSizes[i] * broadcastSizes[i+nb]
	}

	srcElems := Product(srcLogical)
	fanout := make([][]int, srcElems)
	for i := 0; i < srcElems; i++ {
		srcMulti := Delinearize(i, srcLogical)
		slots := make([]int, 0, duplicates)
		for j := 0; j < duplicates; j++ {
			dstMulti := append([]int(nil), srcMulti...)
			rep := Delinearize(j, broadcastSizes)
			for bi, d := range broadcastDims {
				dstMulti[d] += rep[bi]
				dstMulti[d+rank] += rep[bi+nb] * srcLogical[d+rank]
			}
			slots = append(slots, Linearize(dstMulti, dstLogical))
		}
		fanout[i] = slots
	}
	return fanout, nil
}
