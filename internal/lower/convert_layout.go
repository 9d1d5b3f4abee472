package lower

import (
	"fmt"

	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
)

// lowerConvertLayout redistributes a tensor between two blocked layouts by
// staging rounds through the shared scratch buffer. Each round is fenced
// twice: a barrier before the stores separates this round's writers from
// the previous round's readers, and a barrier between the stores and the
// loads makes the round's writes visible to every thread.
func (e *emitter) lowerConvertLayout(op *ir.Op) error {
	src := op.Operands[0].Type
	dst := op.Result.Type
	if !src.IsTensor() || !dst.IsTensor() {
		return fmt.Errorf("convert_layout wants tensors, got %s -> %s", src, dst)
	}
	if src.Layout.Equal(dst.Layout) {
		e.lowered[op.Result] = e.value(op.Operands[0])
		return nil
	}
	plan, err := layout.PlanConvert(src.Layout, dst.Layout, src.Shape)
	if err != nil {
		return err
	}
	elemTy, err := convertType(dst.Elem)
	if err != nil {
		return err
	}
	dstElems, err := dst.Layout.ElemsPerThread(dst.Shape)
	if err != nil {
		return err
	}

	if e.opts.Allocation == nil {
		return fmt.Errorf("convert_layout requires a shared allocation")
	}
	offset, ok := e.opts.Allocation.OffsetOf(op)
	if !ok {
		return fmt.Errorf("convert_layout has no scratch assignment")
	}
	base, err := e.sharedBase()
	if err != nil {
		return err
	}
	raw := e.emit(ir.NewOp(ir.OpGEP, base.Type, base, e.iconst(offset)))
	scratchTy := ir.PointerTo(elemTy, ir.SharedAddressSpace)
	scratch := e.emit(ir.NewOp(ir.OpBitcast, scratchTy, raw))

	srcSlots := e.recordSlots(op.Operands[0])
	dstSlots := make([]*ir.Value, dstElems)

	srcBase, err := e.baseIndex(src.Layout, src.Shape)
	if err != nil {
		return err
	}
	dstBase, err := e.baseIndex(dst.Layout, dst.Shape)
	if err != nil {
		return err
	}

	rank := len(src.Shape)
	inVec := scratchVec(plan.InVec, src.Layout, rank)
	outVec := scratchVec(plan.OutVec, dst.Layout, rank)

	for round := 0; round < plan.Rounds(); round++ {
		repID := layout.Delinearize(round, plan.NumReplicates)

		e.emit(ir.NewOp(ir.OpBarrier, ir.Void))
		stores, err := plan.ReplicaElements(src.Layout, plan.InCTAsPerRep, repID, 0)
		if err != nil {
			return err
		}
		for g := 0; g < len(stores); g += inVec {
			group := stores[g : g+inVec]
			addr := e.scratchAddr(scratch, scratchTy, srcBase, group[0].Offset, plan.ScratchShape)
			if inVec == 1 {
				e.emit(ir.NewOp(ir.OpSharedStore, ir.Void, srcSlots[group[0].Slot], addr))
				continue
			}
			vecTy := ir.VectorOf(elemTy, inVec)
			v := e.emit(ir.NewOp(ir.OpUndef, vecTy))
			for i, el := range group {
				ins := ir.NewOp(ir.OpInsertElement, vecTy, v, srcSlots[el.Slot])
				ins.Index = i
				v = e.emit(ins)
			}
			vaddr := e.emit(ir.NewOp(ir.OpBitcast, ir.PointerTo(vecTy, ir.SharedAddressSpace), addr))
			e.emit(ir.NewOp(ir.OpSharedStore, ir.Void, v, vaddr))
		}

		e.emit(ir.NewOp(ir.OpBarrier, ir.Void))
		loads, err := plan.ReplicaElements(dst.Layout, plan.OutCTAsPerRep, repID, 0)
		if err != nil {
			return err
		}
		for g := 0; g < len(loads); g += outVec {
			group := loads[g : g+outVec]
			addr := e.scratchAddr(scratch, scratchTy, dstBase, group[0].Offset, plan.ScratchShape)
			if outVec == 1 {
				dstSlots[group[0].Slot] = e.emit(ir.NewOp(ir.OpSharedLoad, elemTy, addr))
				continue
			}
			vecTy := ir.VectorOf(elemTy, outVec)
			vaddr := e.emit(ir.NewOp(ir.OpBitcast, ir.PointerTo(vecTy, ir.SharedAddressSpace), addr))
			v := e.emit(ir.NewOp(ir.OpSharedLoad, vecTy, vaddr))
			for i, el := range group {
				ext := ir.NewOp(ir.OpExtractElement, elemTy, v)
				ext.Index = i
				dstSlots[el.Slot] = e.emit(ext)
			}
		}
	}

	e.lowered[op.Result] = e.packRecord(elemTy, dstSlots)
	return nil
}

// scratchVec clamps a side's planned vector width to what the element
// enumeration keeps contiguous in the scratch region: consecutive slots
// step along the innermost dimension, so any other fastest dimension forces
// scalar access.
func scratchVec(planned int, side *layout.Layout, rank int) int {
	if side.Order[0] != rank-1 {
		return 1
	}
	vec := planned
	for vec&(vec-1) != 0 {
		vec--
	}
	for planned%vec != 0 {
		vec /= 2
	}
	return vec
}

// scratchAddr combines the thread's runtime base index with one element's
// compile-time offset (ReplicaElements of thread 0 has a zero base, so its
// offsets are exactly the per-slot constants) and addresses the scratch
// region row-major over the padded scratch shape.
func (e *emitter) scratchAddr(scratch *ir.Value, scratchTy *ir.Type, base []*ir.Value, constOff, scratchShape []int) *ir.Value {
	coords := make([]*ir.Value, len(constOff))
	for d := range coords {
		coords[d] = e.add(base[d], e.iconst(constOff[d]))
	}
	linear := e.linearize(coords, scratchShape)
	return e.emit(ir.NewOp(ir.OpGEP, scratchTy, scratch, linear))
}
