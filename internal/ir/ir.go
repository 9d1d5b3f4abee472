package ir

import "fmt"

// OpKind enumerates every opcode. Mid-level tensor opcodes come first; the
// lowering driver is done exactly when no mid-level opcode remains.
type OpKind int

const (
	// Mid-level tensor dialect.
	OpSplat         OpKind = iota // replicate a scalar into every record slot
	OpConstantSplat               // constant tensor with a splat initializer
	OpMakeRange                   // iota tensor, IVal holds the range start
	OpBroadcast                   // expand size-1 dimensions under one layout
	OpAddPtr                      // element-wise pointer + offset
	OpLoad                        // predicated tensor load: ptr[, mask[, other]]
	OpStore                       // predicated tensor store: ptr, value[, mask]
	OpConvertLayout               // redistribute a tensor between layouts
	OpGetProgramID                // cooperative-group id query
	OpView                        // reinterpret shape, data unchanged
	OpExpandDims                  // insert a size-1 dimension, Index holds the axis
	OpAddI                        // tensor-or-scalar integer add
	OpAddF                        // tensor-or-scalar float add
	OpMulI                        // tensor-or-scalar integer mul
	OpMulF                        // tensor-or-scalar float mul
	OpReturn                      // function return

	midLevelEnd

	// Low-level target dialect.
	OpConst          // scalar constant, IVal or FVal
	OpUndef          // undefined value of the result type
	OpInsertValue    // struct insert at Index
	OpExtractValue   // struct extract at Index
	OpInsertElement  // vector insert at Index
	OpExtractElement // vector extract at Index
	OpBitcast        // reinterpret bits as the result type
	OpSExt           // sign-extend to the result type
	OpGEP            // pointer displacement by an element count
	OpIAdd
	OpFAdd
	OpIMul
	OpFMul
	OpUDiv
	OpURem
	OpThreadID    // lane index within the CTA
	OpBlockID     // CTA index within the launch grid
	OpBarrier     // full-CTA synchronization barrier
	OpSharedLoad  // load from the shared staging buffer
	OpSharedStore // store to the shared staging buffer
	OpInlineAsm   // inline target-assembly with bound operands
	OpAddressOf   // address of a module global, Sym names it
	OpGlobal      // module-level byte array, Sym names it, IVal is the size
	OpRet         // lowered function return
)

// IsMidLevel reports whether the opcode belongs to the tensor dialect that
// lowering must eliminate.
func (k OpKind) IsMidLevel() bool { return k < midLevelEnd }

var opNames = map[OpKind]string{
	OpSplat:          "warp.splat",
	OpConstantSplat:  "warp.constant_splat",
	OpMakeRange:      "warp.make_range",
	OpBroadcast:      "warp.broadcast",
	OpAddPtr:         "warp.addptr",
	OpLoad:           "warp.load",
	OpStore:          "warp.store",
	OpConvertLayout:  "warp.convert_layout",
	OpGetProgramID:   "warp.get_program_id",
	OpView:           "warp.view",
	OpExpandDims:     "warp.expand_dims",
	OpAddI:           "warp.addi",
	OpAddF:           "warp.addf",
	OpMulI:           "warp.muli",
	OpMulF:           "warp.mulf",
	OpReturn:         "warp.return",
	OpConst:          "llvm.constant",
	OpUndef:          "llvm.undef",
	OpInsertValue:    "llvm.insertvalue",
	OpExtractValue:   "llvm.extractvalue",
	OpInsertElement:  "llvm.insertelement",
	OpExtractElement: "llvm.extractelement",
	OpBitcast:        "llvm.bitcast",
	OpSExt:           "llvm.sext",
	OpGEP:            "llvm.getelementptr",
	OpIAdd:           "llvm.add",
	OpFAdd:           "llvm.fadd",
	OpIMul:           "llvm.mul",
	OpFMul:           "llvm.fmul",
	OpUDiv:           "llvm.udiv",
	OpURem:           "llvm.urem",
	OpThreadID:       "nvvm.read.tid.x",
	OpBlockID:        "nvvm.read.ctaid.x",
	OpBarrier:        "nvvm.barrier0",
	OpSharedLoad:     "llvm.load",
	OpSharedStore:    "llvm.store",
	OpInlineAsm:      "llvm.inline_asm",
	OpAddressOf:      "llvm.addressof",
	OpGlobal:         "llvm.global",
	OpRet:            "llvm.return",
}

// String returns the dialect-qualified opcode name.
func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Value is an SSA value: the result of an op or a function parameter.
type Value struct {
	Type *Type
	Name string // set for function parameters
	Def  *Op    // nil for parameters
}

// NewValue creates a detached value of the given type.
func NewValue(t *Type) *Value { return &Value{Type: t} }

// LoadAttrs carries the memory-access modifiers of a mid-level load.
type LoadAttrs struct {
	Volatile bool
	Cache    string // "", "ca", "cg"
	Evict    string // "", "evict_first", "evict_last"
}

// AsmAttrs carries the payload of an inline-assembly op: the instruction
// text with $N operand placeholders, the matching constraint list, and the
// side-effect flag that pins the op against reordering and elimination.
type AsmAttrs struct {
	Text           string
	Constraints    string
	HasSideEffects bool
}

// Op is one instruction. The attribute fields' meaning depends on Kind.
type Op struct {
	Kind     OpKind
	Operands []*Value
	Result   *Value // nil for value-less ops

	IVal  int64      // OpConst, OpConstantSplat, OpMakeRange, OpGlobal
	FVal  float64    // OpConst, OpConstantSplat with float element type
	Index int        // insert/extract positions, OpExpandDims axis
	Sym   string     // OpAddressOf, OpGlobal
	Load  *LoadAttrs // OpLoad
	Asm   *AsmAttrs  // OpInlineAsm
}

// NewOp builds an op producing a value of the given result type, or no
// value when resultTy is Void.
func NewOp(kind OpKind, resultTy *Type, operands ...*Value) *Op {
	op := &Op{Kind: kind, Operands: operands}
	if resultTy != nil && resultTy.Kind != VoidKind {
		op.Result = &Value{Type: resultTy, Def: op}
	}
	return op
}

// Function is a single-block kernel function body.
type Function struct {
	Name   string
	Params []*Value
	Body   []*Op

	// Set by signature conversion (lowering phase 1).
	Converted bool
	Kernel    bool
	MaxNTID   int
}

// NewFunction creates a function with one parameter value per type.
func NewFunction(name string, paramTypes ...*Type) *Function {
	f := &Function{Name: name}
	for i, t := range paramTypes {
		f.Params = append(f.Params, &Value{Type: t, Name: fmt.Sprintf("arg%d", i)})
	}
	return f
}

// Append adds an op to the end of the body and returns its result value
// (nil for value-less ops).
func (f *Function) Append(op *Op) *Value {
	f.Body = append(f.Body, op)
	return op.Result
}

// Program is a module: global definitions plus functions.
type Program struct {
	Globals []*Op // OpGlobal entries
	Funcs   []*Function
}

// AddFunc appends a function to the program.
func (p *Program) AddFunc(f *Function) *Function {
	p.Funcs = append(p.Funcs, f)
	return f
}

// AddGlobal appends a module-level byte-array global and returns it.
func (p *Program) AddGlobal(sym string, sizeBytes int) *Op {
	g := &Op{Kind: OpGlobal, Sym: sym, IVal: int64(sizeBytes)}
	p.Globals = append(p.Globals, g)
	return g
}
