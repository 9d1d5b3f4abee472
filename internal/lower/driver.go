package lower

import (
	"fmt"

	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
)

// sharedSym is the module-level shared scratch buffer every function's
// staging traffic goes through.
const sharedSym = "global_smem"

// Lowering drives the rewrite of a program from the tensor dialect to the
// target dialect.
type Lowering struct {
	opts Options
}

// New creates a lowering pass from the given options.
func New(opts Options) *Lowering {
	if opts.NumWarps <= 0 {
		opts.NumWarps = 1
	}
	return &Lowering{opts: opts}
}

// Lower rewrites p in place. It runs in three phases: function signatures
// are converted and annotated first, the shared scratch global is
// materialized second, and every function body is rewritten last. A
// mid-level op surviving the body rewrite is a pipeline failure and aborts
// with an error; p is left partially rewritten in that case.
func (lw *Lowering) Lower(p *ir.Program) error {
	for _, f := range p.Funcs {
		if err := lw.convertSignature(f); err != nil {
			return fmt.Errorf("converting signature of %s: %w", f.Name, err)
		}
	}

	if lw.opts.Allocation != nil && lw.opts.Allocation.SharedSize() > 0 {
		p.AddGlobal(sharedSym, lw.opts.Allocation.SharedSize())
	}

	for _, f := range p.Funcs {
		if err := lw.convertBody(f); err != nil {
			return fmt.Errorf("lowering %s: %w", f.Name, err)
		}
	}
	return nil
}

func (lw *Lowering) convertSignature(f *ir.Function) error {
	for _, prm := range f.Params {
		ct, err := convertType(prm.Type)
		if err != nil {
			return err
		}
		prm.Type = ct
	}
	f.Kernel = true
	f.MaxNTID = layout.WarpSize * lw.opts.NumWarps
	f.Converted = true
	return nil
}

func (lw *Lowering) convertBody(f *ir.Function) error {
	e := newEmitter(lw.opts)
	for _, op := range f.Body {
		if err := e.lowerOp(op); err != nil {
			return fmt.Errorf("%s: %w", op.Kind, err)
		}
	}
	for _, op := range e.out {
		if op.Kind.IsMidLevel() {
			return fmt.Errorf("%s survived lowering", op.Kind)
		}
	}
	f.Body = e.out
	return nil
}

// lowerOp rewrites one op. Target-dialect ops pass through with their
// operands remapped to lowered values.
func (e *emitter) lowerOp(op *ir.Op) error {
	switch op.Kind {
	case ir.OpSplat:
		return e.lowerSplat(op)
	case ir.OpConstantSplat:
		return e.lowerConstantSplat(op)
	case ir.OpMakeRange:
		return e.lowerMakeRange(op)
	case ir.OpBroadcast:
		return e.lowerBroadcast(op)
	case ir.OpAddPtr:
		return e.lowerAddPtr(op)
	case ir.OpLoad:
		return e.lowerLoad(op)
	case ir.OpStore:
		return e.lowerStore(op)
	case ir.OpConvertLayout:
		return e.lowerConvertLayout(op)
	case ir.OpGetProgramID:
		return e.lowerGetProgramID(op)
	case ir.OpView, ir.OpExpandDims:
		return e.lowerReshape(op)
	case ir.OpAddI, ir.OpAddF, ir.OpMulI, ir.OpMulF:
		return e.lowerBinary(op)
	case ir.OpReturn:
		if len(op.Operands) > 0 {
			// Kernels return nothing. Leave the op unconverted; the
			// leftover scan turns it into a pipeline failure.
			e.emit(op)
			return nil
		}
		e.emit(ir.NewOp(ir.OpRet, ir.Void))
		return nil
	default:
		for i, v := range op.Operands {
			op.Operands[i] = e.value(v)
		}
		e.emit(op)
		return nil
	}
}
