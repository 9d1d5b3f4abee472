// Package lower rewrites programs from the mid-level tensor dialect into the
// low-level target dialect. Every distributed tensor value becomes a record
// of per-thread scalar slots, memory operations become predicated inline
// target assembly, and layout conversions become barrier-delimited staging
// rounds through the shared scratch buffer. The engine consumes alignment
// and allocation facts through the interfaces in the analysis package.
package lower

import (
	"fmt"

	"github.com/warp-lang/warpc/internal/analysis"
	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
)

// Options configures one lowering run.
type Options struct {
	// NumWarps is the number of warps one cooperative group is launched
	// with; it bounds the kernel's thread count.
	NumWarps int
	// Allocation assigns scratch regions to layout conversions. Optional
	// when the program converts no layouts.
	Allocation analysis.Allocation
	// AxisInfo supplies pointer alignment facts. Optional; memory access
	// degrades to scalar width without it.
	AxisInfo analysis.AxisInfo
}

// indexTy is the type of all emitted index arithmetic.
var indexTy = ir.ScalarOf(ir.I32)

// emitter builds the lowered body of one function. It tracks the mapping
// from mid-level values to their lowered records and lazily materializes
// the values every lowering needs (thread id, shared buffer base).
type emitter struct {
	opts Options
	out  []*ir.Op

	lowered map[*ir.Value]*ir.Value
	tid     *ir.Value
	shared  *ir.Value // shared buffer base, !ptr<i8, 3>
}

func newEmitter(opts Options) *emitter {
	return &emitter{opts: opts, lowered: map[*ir.Value]*ir.Value{}}
}

func (e *emitter) emit(op *ir.Op) *ir.Value {
	e.out = append(e.out, op)
	return op.Result
}

// value resolves an operand to its lowered replacement, or to itself when
// it never needed lowering (parameters, already-low values).
func (e *emitter) value(v *ir.Value) *ir.Value {
	if lv, ok := e.lowered[v]; ok {
		return lv
	}
	return v
}

func (e *emitter) iconst(v int) *ir.Value {
	op := ir.NewOp(ir.OpConst, indexTy)
	op.IVal = int64(v)
	return e.emit(op)
}

func isConst(v *ir.Value, c int64) bool {
	return v.Def != nil && v.Def.Kind == ir.OpConst && v.Def.IVal == c
}

func (e *emitter) add(a, b *ir.Value) *ir.Value {
	if isConst(a, 0) {
		return b
	}
	if isConst(b, 0) {
		return a
	}
	return e.emit(ir.NewOp(ir.OpIAdd, indexTy, a, b))
}

func (e *emitter) mul(a, b *ir.Value) *ir.Value {
	if isConst(a, 1) {
		return b
	}
	if isConst(b, 1) {
		return a
	}
	if isConst(a, 0) {
		return a
	}
	if isConst(b, 0) {
		return b
	}
	return e.emit(ir.NewOp(ir.OpIMul, indexTy, a, b))
}

func (e *emitter) udiv(a, b *ir.Value) *ir.Value {
	if isConst(b, 1) {
		return a
	}
	return e.emit(ir.NewOp(ir.OpUDiv, indexTy, a, b))
}

func (e *emitter) urem(a, b *ir.Value) *ir.Value {
	if isConst(b, 1) {
		return e.iconst(0)
	}
	return e.emit(ir.NewOp(ir.OpURem, indexTy, a, b))
}

func (e *emitter) threadID() *ir.Value {
	if e.tid == nil {
		e.tid = e.emit(ir.NewOp(ir.OpThreadID, indexTy))
	}
	return e.tid
}

// sharedBase returns the base of this function's shared scratch buffer,
// materializing the address-of on first use.
func (e *emitter) sharedBase() (*ir.Value, error) {
	if e.shared == nil {
		if e.opts.Allocation == nil || e.opts.Allocation.SharedSize() == 0 {
			return nil, fmt.Errorf("shared scratch required but no allocation was provided")
		}
		op := ir.NewOp(ir.OpAddressOf, ir.PointerTo(ir.ScalarOf(ir.I8), ir.SharedAddressSpace))
		op.Sym = sharedSym
		e.shared = e.emit(op)
	}
	return e.shared, nil
}

// packRecord assembles per-slot values into one record struct through an
// insertvalue chain.
func (e *emitter) packRecord(elemTy *ir.Type, elems []*ir.Value) *ir.Value {
	rec := ir.RecordOf(elemTy, len(elems))
	v := e.emit(ir.NewOp(ir.OpUndef, rec))
	for i, el := range elems {
		op := ir.NewOp(ir.OpInsertValue, rec, v, el)
		op.Index = i
		v = e.emit(op)
	}
	return v
}

// unpackRecord splits a record struct back into its per-slot values.
func (e *emitter) unpackRecord(v *ir.Value) []*ir.Value {
	if v.Type.Kind != ir.StructKind {
		panic(fmt.Sprintf("unpackRecord on %s", v.Type))
	}
	out := make([]*ir.Value, len(v.Type.Fields))
	for i := range out {
		op := ir.NewOp(ir.OpExtractValue, v.Type.Fields[i], v)
		op.Index = i
		out[i] = e.emit(op)
	}
	return out
}

// delinearizeOrdered is the runtime counterpart of the same-named index
// arithmetic: it decomposes a linear value into per-dimension coordinates
// with order[0] varying fastest.
func (e *emitter) delinearizeOrdered(linear *ir.Value, shape, order []int) []*ir.Value {
	rank := len(shape)
	multi := make([]*ir.Value, rank)
	remain := linear
	for i := 0; i < rank; i++ {
		d := order[i]
		if i == rank-1 {
			multi[d] = remain
			break
		}
		dim := e.iconst(shape[d])
		multi[d] = e.urem(remain, dim)
		remain = e.udiv(remain, dim)
	}
	return multi
}

// baseIndex emits this thread's first owned index per dimension, with the
// same wrap-around the compile-time layout arithmetic applies.
func (e *emitter) baseIndex(l *layout.Layout, shape layout.Shape) ([]*ir.Value, error) {
	if l.Kind() != layout.BlockedKind {
		return nil, fmt.Errorf("base index for %s layout: %w", l.Kind(), layout.ErrUnsupportedLayout)
	}
	tid := e.threadID()
	warpSize := e.iconst(layout.WarpSize)
	lane := e.urem(tid, warpSize)
	warp := e.udiv(tid, warpSize)
	laneCoord := e.delinearizeOrdered(lane, l.ThreadsPerWarp, l.Order)
	warpCoord := e.delinearizeOrdered(warp, l.WarpsPerCTA, l.Order)
	rank := l.Rank()
	base := make([]*ir.Value, rank)
	for k := 0; k < rank; k++ {
		maxWarps := layout.CeilDiv(shape[k], l.SizePerThread[k]*l.ThreadsPerWarp[k])
		maxLanes := layout.CeilDiv(shape[k], l.SizePerThread[k])
		lc := e.urem(laneCoord[k], e.iconst(maxLanes))
		wc := e.urem(warpCoord[k], e.iconst(maxWarps))
		scaled := e.add(lc, e.mul(wc, e.iconst(l.ThreadsPerWarp[k])))
		base[k] = e.mul(e.iconst(l.SizePerThread[k]), scaled)
	}
	return base, nil
}

// laneIndices emits the full per-dimension index of every record slot this
// thread owns, in record-slot order.
func (e *emitter) laneIndices(l *layout.Layout, shape layout.Shape) ([][]*ir.Value, error) {
	switch l.Kind() {
	case layout.BlockedKind:
		base, err := e.baseIndex(l, shape)
		if err != nil {
			return nil, err
		}
		offsets, err := l.ElementOffsets(shape)
		if err != nil {
			return nil, err
		}
		indices := make([][]*ir.Value, len(offsets))
		for n, off := range offsets {
			idx := make([]*ir.Value, len(off))
			for k := range off {
				idx[k] = e.add(base[k], e.iconst(off[k]))
			}
			indices[n] = idx
		}
		return indices, nil
	case layout.SlicedKind:
		parent := l.Parent
		padded, err := e.laneIndices(parent, shape.Insert(l.Dim, 1))
		if err != nil {
			return nil, err
		}
		indices := make([][]*ir.Value, len(padded))
		for n, idx := range padded {
			out := make([]*ir.Value, 0, len(idx)-1)
			for d, c := range idx {
				if d != l.Dim {
					out = append(out, c)
				}
			}
			indices[n] = out
		}
		return indices, nil
	default:
		return nil, fmt.Errorf("lane indices for %s layout: %w", l.Kind(), layout.ErrUnsupportedLayout)
	}
}

// linearize emits the row-major linear index of a coordinate within shape.
func (e *emitter) linearize(multi []*ir.Value, shape []int) *ir.Value {
	linear := e.iconst(0)
	for i, c := range multi {
		linear = e.add(e.mul(linear, e.iconst(shape[i])), c)
	}
	return linear
}

// convertType rewrites a mid-level type to its lowered form: tensors become
// records with one slot per owned element, everything else maps through.
func convertType(t *ir.Type) (*ir.Type, error) {
	if t == nil || !t.IsTensor() {
		return t, nil
	}
	elems, err := t.Layout.ElemsPerThread(t.Shape)
	if err != nil {
		return nil, err
	}
	elem, err := convertType(t.Elem)
	if err != nil {
		return nil, err
	}
	return ir.RecordOf(elem, elems), nil
}

// recordSlots returns the lowered per-slot values of a tensor operand, or a
// single-entry slice when the operand is a scalar.
func (e *emitter) recordSlots(v *ir.Value) []*ir.Value {
	lv := e.value(v)
	if lv.Type.Kind == ir.StructKind {
		return e.unpackRecord(lv)
	}
	return []*ir.Value{lv}
}
