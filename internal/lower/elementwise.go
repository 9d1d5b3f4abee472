package lower

import (
	"fmt"

	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
)

func (e *emitter) lowerSplat(op *ir.Op) error {
	t := op.Result.Type
	if !t.IsTensor() {
		return fmt.Errorf("splat result is %s, want a tensor", t)
	}
	elems, err := t.Layout.ElemsPerThread(t.Shape)
	if err != nil {
		return err
	}
	elemTy, err := convertType(t.Elem)
	if err != nil {
		return err
	}
	scalar := e.value(op.Operands[0])
	slots := make([]*ir.Value, elems)
	for i := range slots {
		slots[i] = scalar
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

func (e *emitter) lowerConstantSplat(op *ir.Op) error {
	t := op.Result.Type
	if !t.IsTensor() {
		return fmt.Errorf("constant splat result is %s, want a tensor", t)
	}
	elemTy, err := convertType(t.Elem)
	if err != nil {
		return err
	}
	c := ir.NewOp(ir.OpConst, elemTy)
	c.IVal = op.IVal
	c.FVal = op.FVal
	scalar := e.emit(c)
	elems, err := t.Layout.ElemsPerThread(t.Shape)
	if err != nil {
		return err
	}
	slots := make([]*ir.Value, elems)
	for i := range slots {
		slots[i] = scalar
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

func (e *emitter) lowerMakeRange(op *ir.Op) error {
	t := op.Result.Type
	if !t.IsTensor() || len(t.Shape) != 1 {
		return fmt.Errorf("make_range result is %s, want a rank-1 tensor", t)
	}
	indices, err := e.laneIndices(t.Layout, t.Shape)
	if err != nil {
		return err
	}
	start := e.iconst(int(op.IVal))
	slots := make([]*ir.Value, len(indices))
	for i, idx := range indices {
		slots[i] = e.add(start, idx[0])
	}
	e.lowered[op.Result] = e.packRecord(indexTy, slots)
	return nil
}

func (e *emitter) lowerBroadcast(op *ir.Op) error {
	src := op.Operands[0].Type
	dst := op.Result.Type
	if !src.IsTensor() || !dst.IsTensor() {
		return fmt.Errorf("broadcast wants tensors, got %s -> %s", src, dst)
	}
	if !src.Layout.Equal(dst.Layout) {
		return fmt.Errorf("broadcast must not change the layout")
	}
	fanout, err := layout.BroadcastMap(dst.Layout, src.Shape, dst.Shape)
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
	srcSlots := e.recordSlots(op.Operands[0])
	slots := make([]*ir.Value, dstElems)
	for i, targets := range fanout {
		for _, j := range targets {
			slots[j] = srcSlots[i]
		}
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

func (e *emitter) lowerAddPtr(op *ir.Op) error {
	t := op.Result.Type
	if !t.IsTensor() {
		// Scalar pointer displacement.
		ptrTy, err := convertType(t)
		if err != nil {
			return err
		}
		g := ir.NewOp(ir.OpGEP, ptrTy, e.value(op.Operands[0]), e.value(op.Operands[1]))
		e.lowered[op.Result] = e.emit(g)
		return nil
	}
	elemTy, err := convertType(t.Elem)
	if err != nil {
		return err
	}
	ptrs := e.recordSlots(op.Operands[0])
	offs := e.recordSlots(op.Operands[1])
	if len(ptrs) != len(offs) {
		return fmt.Errorf("addptr record sizes disagree: %d pointers, %d offsets", len(ptrs), len(offs))
	}
	slots := make([]*ir.Value, len(ptrs))
	for i := range slots {
		g := ir.NewOp(ir.OpGEP, elemTy, ptrs[i], offs[i])
		slots[i] = e.emit(g)
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

var binaryLowering = map[ir.OpKind]ir.OpKind{
	ir.OpAddI: ir.OpIAdd,
	ir.OpAddF: ir.OpFAdd,
	ir.OpMulI: ir.OpIMul,
	ir.OpMulF: ir.OpFMul,
}

func (e *emitter) lowerBinary(op *ir.Op) error {
	target := binaryLowering[op.Kind]
	t := op.Result.Type
	if !t.IsTensor() {
		e.lowered[op.Result] = e.emit(ir.NewOp(target, t, e.value(op.Operands[0]), e.value(op.Operands[1])))
		return nil
	}
	elemTy, err := convertType(t.Elem)
	if err != nil {
		return err
	}
	lhs := e.recordSlots(op.Operands[0])
	rhs := e.recordSlots(op.Operands[1])
	if len(lhs) != len(rhs) {
		return fmt.Errorf("%s record sizes disagree: %d vs %d", op.Kind, len(lhs), len(rhs))
	}
	slots := make([]*ir.Value, len(lhs))
	for i := range slots {
		slots[i] = e.emit(ir.NewOp(target, elemTy, lhs[i], rhs[i]))
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

// lowerReshape handles view and expand_dims: both reinterpret the logical
// shape while the per-thread record stays untouched, so lowering is a
// slot-count check and a remap.
func (e *emitter) lowerReshape(op *ir.Op) error {
	want, err := convertType(op.Result.Type)
	if err != nil {
		return err
	}
	got := e.value(op.Operands[0])
	if got.Type.Kind != ir.StructKind || len(got.Type.Fields) != len(want.Fields) {
		return fmt.Errorf("%s changes the per-thread record from %s to %s", op.Kind, got.Type, want)
	}
	e.lowered[op.Result] = got
	return nil
}

func (e *emitter) lowerGetProgramID(op *ir.Op) error {
	e.lowered[op.Result] = e.emit(ir.NewOp(ir.OpBlockID, indexTy))
	return nil
}
