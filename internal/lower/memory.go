package lower

import (
	"fmt"

	"github.com/warp-lang/warpc/internal/analysis"
	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
	"github.com/warp-lang/warpc/internal/ptx"
)

// accessPlan is the derived shape of one tensor memory access: how many
// consecutive record slots one instruction covers and how they split into
// machine words.
type accessPlan struct {
	vec          int // elements per instruction
	width        int // bits per word
	nWords       int
	elemsPerWord int
	elemBits     int
	wordTy       *ir.Type
}

func wordScalar(bits int) ir.Scalar {
	switch bits {
	case 8:
		return ir.I8
	case 16:
		return ir.I16
	case 32:
		return ir.I32
	case 64:
		return ir.I64
	default:
		panic(fmt.Sprintf("no word scalar of %d bits", bits))
	}
}

func wordConstraint(bits int) string {
	switch bits {
	case 64:
		return "l"
	case 32:
		return "r"
	default:
		return "c"
	}
}

// planAccess sizes the vectorized access for a tensor of pointers. The
// width is bounded by what the alignment facts license along the fastest
// dimension and by how many elements one thread holds contiguously there.
func planAccess(ptrTy *ir.Type, info analysis.Info) (*accessPlan, error) {
	l := ptrTy.Layout
	if l.Kind() != layout.BlockedKind {
		return nil, fmt.Errorf("memory access under %s layout: %w", l.Kind(), layout.ErrUnsupportedLayout)
	}
	order0 := l.Order[0]
	elemBits := ptrTy.Elem.Elem.Bits()

	vec := minInt(info.Contig(order0), info.Div(order0))
	vec = minInt(vec, l.SizePerThread[order0])
	vec = minInt(vec, ptrTy.Shape[order0])
	// Record slots are only memory-consecutive when the fastest dimension
	// is the innermost one; otherwise every access is scalar.
	if order0 != l.Rank()-1 {
		vec = 1
	}
	// Keep the width a power of two that evenly divides the contiguous
	// run, so groups never straddle a row boundary.
	for vec&(vec-1) != 0 {
		vec--
	}
	for l.SizePerThread[order0]%vec != 0 {
		vec /= 2
	}

	totalBits := elemBits * vec
	width := minInt(maxInt(32, elemBits), totalBits)
	return &accessPlan{
		vec:          vec,
		width:        width,
		nWords:       totalBits / width,
		elemsPerWord: width / elemBits,
		elemBits:     elemBits,
		wordTy:       ir.ScalarOf(wordScalar(width)),
	}, nil
}

// packWord assembles consecutive element slots into one machine word.
func (e *emitter) packWord(p *accessPlan, elemTy *ir.Type, elems []*ir.Value) *ir.Value {
	if p.elemsPerWord == 1 {
		if elemTy.Equal(p.wordTy) {
			return elems[0]
		}
		return e.emit(ir.NewOp(ir.OpBitcast, p.wordTy, elems[0]))
	}
	vecTy := ir.VectorOf(elemTy, p.elemsPerWord)
	v := e.emit(ir.NewOp(ir.OpUndef, vecTy))
	for i, el := range elems {
		op := ir.NewOp(ir.OpInsertElement, vecTy, v, el)
		op.Index = i
		v = e.emit(op)
	}
	return e.emit(ir.NewOp(ir.OpBitcast, p.wordTy, v))
}

// unpackWord splits one machine word back into element slots.
func (e *emitter) unpackWord(p *accessPlan, elemTy *ir.Type, word *ir.Value) []*ir.Value {
	if p.elemsPerWord == 1 {
		if elemTy.Equal(p.wordTy) {
			return []*ir.Value{word}
		}
		return []*ir.Value{e.emit(ir.NewOp(ir.OpBitcast, elemTy, word))}
	}
	vecTy := ir.VectorOf(elemTy, p.elemsPerWord)
	v := e.emit(ir.NewOp(ir.OpBitcast, vecTy, word))
	out := make([]*ir.Value, p.elemsPerWord)
	for i := range out {
		op := ir.NewOp(ir.OpExtractElement, elemTy, v)
		op.Index = i
		out[i] = e.emit(op)
	}
	return out
}

// splatIntOf reports whether v is an integer constant splat and returns its
// value, which the load fallback can embed as an immediate.
func splatIntOf(v *ir.Value) (int64, bool) {
	if v.Def == nil || v.Def.Kind != ir.OpConstantSplat {
		return 0, false
	}
	t := v.Type
	if !t.IsTensor() || t.Elem.Kind != ir.ScalarKind || !t.Elem.Scalar.IsInt() {
		return 0, false
	}
	return v.Def.IVal, true
}

func loadSuffixes(in *ptx.Instr, attrs *ir.LoadAttrs) {
	if attrs == nil {
		return
	}
	in.SuffixIf("volatile", attrs.Volatile)
}

func loadQualifiers(in *ptx.Instr, attrs *ir.LoadAttrs) {
	if attrs == nil {
		return
	}
	if attrs.Cache != "" {
		in.Suffix(attrs.Cache)
	}
	switch attrs.Evict {
	case "evict_first":
		in.Suffix("L1::evict_first")
	case "evict_last":
		in.Suffix("L1::evict_last")
	}
}

func (e *emitter) lowerLoad(op *ir.Op) error {
	t := op.Result.Type
	if !t.IsTensor() {
		return fmt.Errorf("load result is %s, want a tensor", t)
	}
	ptrTy := op.Operands[0].Type
	info := analysis.Pessimistic(len(ptrTy.Shape))
	if e.opts.AxisInfo != nil {
		info = e.opts.AxisInfo.Of(op.Operands[0])
	}
	p, err := planAccess(ptrTy, info)
	if err != nil {
		return err
	}
	elemTy, err := convertType(t.Elem)
	if err != nil {
		return err
	}

	ptrs := e.recordSlots(op.Operands[0])
	var masks, others []*ir.Value
	var otherImm int64
	otherIsImm := false
	if len(op.Operands) > 1 {
		masks = e.recordSlots(op.Operands[1])
	}
	if len(op.Operands) > 2 {
		otherImm, otherIsImm = splatIntOf(op.Operands[2])
		if !otherIsImm {
			others = e.recordSlots(op.Operands[2])
		}
	}

	slots := make([]*ir.Value, 0, len(ptrs))
	for s := 0; s < len(ptrs); s += p.vec {
		b := ptx.NewBuilder()
		rets := make([]*ptx.Operand, p.nWords)
		for w := range rets {
			rets[w] = b.NewResultOperand("=" + wordConstraint(p.width))
		}
		var dst *ptx.Operand
		if p.nWords > 1 {
			dst = b.NewListOperand(rets...)
		} else {
			dst = rets[0]
		}

		ld := b.Create("ld")
		if masks != nil {
			ld.Predicate(masks[s], "b")
		}
		loadSuffixes(ld, op.Load)
		ld.Global()
		loadQualifiers(ld, op.Load)
		ld.V(p.nWords).B(p.width)
		ld.Call(dst, b.NewAddrOperand(ptrs[s], "l", 0))

		// When masked out, each word still needs a defined value.
		if masks != nil && (otherIsImm || others != nil) {
			for w := 0; w < p.nWords; w++ {
				mov := b.Create("mov")
				mov.PredicateNot(masks[s], "b").U(p.width)
				if otherIsImm {
					mov.Call(rets[w], b.NewConstantOperand(otherImm))
				} else {
					word := e.packWord(p, elemTy, others[s+w*p.elemsPerWord:s+(w+1)*p.elemsPerWord])
					mov.Call(rets[w], b.NewOperand(word, wordConstraint(p.width)))
				}
			}
		}

		resultTy := p.wordTy
		if p.nWords > 1 {
			resultTy = ir.RecordOf(p.wordTy, p.nWords)
		}
		asm := ir.NewOp(ir.OpInlineAsm, resultTy, b.Args()...)
		asm.Asm = &ir.AsmAttrs{Text: b.Dump(), Constraints: b.Constraints(), HasSideEffects: true}
		packed := e.emit(asm)

		words := []*ir.Value{packed}
		if p.nWords > 1 {
			words = e.unpackRecord(packed)
		}
		for _, word := range words {
			slots = append(slots, e.unpackWord(p, elemTy, word)...)
		}
	}
	e.lowered[op.Result] = e.packRecord(elemTy, slots)
	return nil
}

func (e *emitter) lowerStore(op *ir.Op) error {
	ptrTy := op.Operands[0].Type
	if !ptrTy.IsTensor() {
		return fmt.Errorf("store pointer is %s, want a tensor", ptrTy)
	}
	info := analysis.Pessimistic(len(ptrTy.Shape))
	if e.opts.AxisInfo != nil {
		info = e.opts.AxisInfo.Of(op.Operands[0])
	}
	p, err := planAccess(ptrTy, info)
	if err != nil {
		return err
	}
	elemTy, err := convertType(op.Operands[1].Type.Elem)
	if err != nil {
		return err
	}

	ptrs := e.recordSlots(op.Operands[0])
	vals := e.recordSlots(op.Operands[1])
	if len(ptrs) != len(vals) {
		return fmt.Errorf("store record sizes disagree: %d pointers, %d values", len(ptrs), len(vals))
	}
	var masks []*ir.Value
	if len(op.Operands) > 2 {
		masks = e.recordSlots(op.Operands[2])
	}

	for s := 0; s < len(ptrs); s += p.vec {
		b := ptx.NewBuilder()
		st := b.Create("st")
		if masks != nil {
			st.Predicate(masks[s], "b")
		}
		st.Global().V(p.nWords).B(p.width)

		addr := b.NewAddrOperand(ptrs[s], "l", 0)
		words := make([]*ptx.Operand, p.nWords)
		for w := range words {
			word := e.packWord(p, elemTy, vals[s+w*p.elemsPerWord:s+(w+1)*p.elemsPerWord])
			words[w] = b.NewOperand(word, wordConstraint(p.width))
		}
		var src *ptx.Operand
		if p.nWords > 1 {
			src = b.NewListOperand(words...)
		} else {
			src = words[0]
		}
		st.Call(addr, src)

		asm := ir.NewOp(ir.OpInlineAsm, ir.Void, b.Args()...)
		asm.Asm = &ir.AsmAttrs{Text: b.Dump(), Constraints: b.Constraints(), HasSideEffects: true}
		e.emit(asm)
	}
	return nil
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
