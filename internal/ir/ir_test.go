package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-lang/warpc/internal/layout"
)

func TestTypeEquality(t *testing.T) {
	i32 := ScalarOf(I32)
	f32 := ScalarOf(F32)
	assert.True(t, i32.Equal(ScalarOf(I32)))
	assert.False(t, i32.Equal(f32))

	assert.True(t, PointerTo(f32, 0).Equal(PointerTo(f32, 0)))
	assert.False(t, PointerTo(f32, 0).Equal(PointerTo(f32, SharedAddressSpace)))

	l := layout.NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	a := TensorOf(f32, layout.Shape{128}, l)
	b := TensorOf(f32, layout.Shape{128}, l)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(TensorOf(f32, layout.Shape{64}, l)))

	assert.True(t, RecordOf(f32, 4).Equal(StructOf(f32, f32, f32, f32)))
}

func TestRecordErasesLayout(t *testing.T) {
	f16 := ScalarOf(F16)
	r1 := RecordOf(f16, 8)
	r2 := RecordOf(f16, 8)
	require.Len(t, r1.Fields, 8)
	// Records of the same element type and slot count are interchangeable
	// regardless of which layout produced them.
	assert.True(t, r1.Equal(r2))
}

func TestMidLevelBoundary(t *testing.T) {
	assert.True(t, OpSplat.IsMidLevel())
	assert.True(t, OpReturn.IsMidLevel())
	assert.False(t, OpConst.IsMidLevel())
	assert.False(t, OpInlineAsm.IsMidLevel())
}

func TestFunctionPrinting(t *testing.T) {
	i32 := ScalarOf(I32)
	f := NewFunction("kern", PointerTo(ScalarOf(F32), 0), i32)
	c := f.Append(NewOp(OpConst, i32))
	c.Def.IVal = 7
	sum := f.Append(NewOp(OpIAdd, i32, f.Params[1], c))
	f.Append(NewOp(OpRet, Void, sum))
	f.Kernel = true
	f.MaxNTID = 128

	got := f.String()
	assert.Contains(t, got, "func @kern(%arg0: !ptr<f32>, %arg1: i32)")
	assert.Contains(t, got, "attributes {nvvm.kernel, nvvm.maxntid = 128}")
	assert.Contains(t, got, "%0 = llvm.constant 7 : i32")
	assert.Contains(t, got, "%1 = llvm.add %arg1, %0 : i32")
	assert.Contains(t, got, "llvm.return %1")
}

func TestProgramGlobals(t *testing.T) {
	p := &Program{}
	p.AddGlobal("global_smem", 1056)
	got := p.String()
	assert.Contains(t, got, "@global_smem")
	assert.Contains(t, got, "1056")
}
