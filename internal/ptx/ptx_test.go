package ptx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-lang/warpc/internal/ir"
)

func TestPredicatedVectorLoad(t *testing.T) {
	b := NewBuilder()
	ret0 := b.NewResultOperand("=r")
	ret1 := b.NewResultOperand("=r")
	dst := b.NewListOperand(ret0, ret1)

	pred := ir.NewValue(ir.ScalarOf(ir.I1))
	addr := ir.NewValue(ir.PointerTo(ir.ScalarOf(ir.F32), 0))

	ld := b.Create("ld")
	ld.Predicate(pred, "b").Global().V(2).B(32)
	ld.Call(dst, b.NewAddrOperand(addr, "l", 0))

	assert.Equal(t, "@$2 ld.global.v2.b32 {$0, $1}, [$3+0];", b.Dump())
	assert.Equal(t, "=r,=r,b,l", b.Constraints())

	args := b.Args()
	require.Len(t, args, 2)
	assert.Same(t, pred, args[0])
	assert.Same(t, addr, args[1])
}

func TestFallbackMov(t *testing.T) {
	b := NewBuilder()
	ret := b.NewResultOperand("=r")
	pred := ir.NewValue(ir.ScalarOf(ir.I1))
	addr := ir.NewValue(ir.PointerTo(ir.ScalarOf(ir.I32), 0))

	ld := b.Create("ld")
	ld.Predicate(pred, "b").Global().B(32)
	ld.Call(ret, b.NewAddrOperand(addr, "l", 0))

	mov := b.Create("mov")
	mov.PredicateNot(pred, "b").U(32)
	mov.Call(ret, b.NewConstantOperand(0))

	assert.Equal(t, "@$1 ld.global.b32 $0, [$2+0];\n@!$3 mov.u32 $0, 0;", b.Dump())
	assert.Equal(t, "=r,b,l,b", b.Constraints())
	// The predicate value is bound twice, once per instruction.
	assert.Len(t, b.Args(), 3)
}

func TestImmediateOperandConsumesNoPlaceholder(t *testing.T) {
	b := NewBuilder()
	ret := b.NewResultOperand("=l")
	imm := b.NewConstantOperand(42)
	src := b.NewOperand(ir.NewValue(ir.ScalarOf(ir.I64)), "l")

	add := b.Create("add").Suffix("s64")
	add.Call(ret, src, imm)

	assert.Equal(t, "add.s64 $0, $1, 42;", b.Dump())
	assert.Equal(t, "=l,l", b.Constraints())
}

func TestVectorSuffixOnlyAboveOne(t *testing.T) {
	b := NewBuilder()
	st := b.Create("st").Global().V(1).B(64)
	st.Call(b.NewAddrOperand(ir.NewValue(ir.ScalarOf(ir.I64)), "l", 16),
		b.NewOperand(ir.NewValue(ir.ScalarOf(ir.I64)), "l"))
	assert.Equal(t, "st.global.b64 [$0+16], $1;", b.Dump())
}

func TestSuffixIf(t *testing.T) {
	b := NewBuilder()
	ld := b.Create("ld")
	ld.SuffixIf("volatile", true).Global().SuffixIf("ca", false).B(32)
	ld.Call(b.NewResultOperand("=r"),
		b.NewAddrOperand(ir.NewValue(ir.ScalarOf(ir.I64)), "l", 0))
	assert.Equal(t, "ld.volatile.global.b32 $0, [$1+0];", b.Dump())
}

func TestResultOperandRequiresWriteConstraint(t *testing.T) {
	b := NewBuilder()
	assert.Panics(t, func() { b.NewResultOperand("r") })
}
