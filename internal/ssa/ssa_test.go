package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStraightLine(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	bld.SealBlock(entry)

	bld.WriteVar("x", entry, 1)
	assert.Equal(t, 1, bld.ReadVar("x", entry))

	next := bld.NewBlock()
	bld.AddEdge(entry, next)
	bld.SealBlock(next)
	// A single predecessor forwards the definition, no phi.
	assert.Equal(t, 1, bld.ReadVar("x", next))
}

func TestUndefinedRead(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	bld.SealBlock(entry)
	assert.Equal(t, Undef{Name: "y"}, bld.ReadVar("y", entry))
}

func TestDiamondJoin(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	left := bld.NewBlock()
	right := bld.NewBlock()
	join := bld.NewBlock()
	bld.SealBlock(entry)
	bld.AddEdge(entry, left)
	bld.AddEdge(entry, right)
	bld.SealBlock(left)
	bld.SealBlock(right)
	bld.AddEdge(left, join)
	bld.AddEdge(right, join)
	bld.SealBlock(join)

	bld.WriteVar("x", left, "a")
	bld.WriteVar("x", right, "b")

	v := bld.ReadVar("x", join)
	phi, ok := v.(*Phi)
	require.True(t, ok, "differing paths must join in a phi")
	assert.Equal(t, []Value{"a", "b"}, phi.Operands)
	// The phi is memoized as the block's definition.
	assert.Same(t, phi, bld.ReadVar("x", join))
}

func TestDiamondSameValueCollapses(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	left := bld.NewBlock()
	right := bld.NewBlock()
	join := bld.NewBlock()
	bld.SealBlock(entry)
	bld.AddEdge(entry, left)
	bld.AddEdge(entry, right)
	bld.SealBlock(left)
	bld.SealBlock(right)
	bld.AddEdge(left, join)
	bld.AddEdge(right, join)
	bld.SealBlock(join)

	bld.WriteVar("x", entry, 7)
	assert.Equal(t, 7, bld.ReadVar("x", join))
}

func TestLoopSealAfterBackEdge(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	header := bld.NewBlock()
	body := bld.NewBlock()
	exit := bld.NewBlock()

	bld.SealBlock(entry)
	bld.WriteVar("i", entry, 0)

	bld.AddEdge(entry, header)
	// The header stays unsealed until the back edge exists.
	bld.AddEdge(header, body)
	bld.SealBlock(body)

	// The body increments i: reading through the unsealed header yields an
	// incomplete phi.
	iv := bld.ReadVar("i", body)
	phi, ok := iv.(*Phi)
	require.True(t, ok)
	require.Empty(t, phi.Operands, "operands must wait for the seal")

	bld.WriteVar("i", body, "i+1")
	bld.AddEdge(body, header)
	bld.SealBlock(header)

	require.Len(t, phi.Operands, 2)
	assert.Equal(t, Value(0), phi.Operands[0])
	assert.Equal(t, Value("i+1"), phi.Operands[1])

	bld.AddEdge(header, exit)
	bld.SealBlock(exit)
	assert.Same(t, phi, bld.ReadVar("i", exit))
}

func TestLoopInvariantCollapses(t *testing.T) {
	bld := NewBuilder()
	entry := bld.NewBlock()
	header := bld.NewBlock()
	body := bld.NewBlock()

	bld.SealBlock(entry)
	bld.WriteVar("c", entry, "k")

	bld.AddEdge(entry, header)
	bld.AddEdge(header, body)
	bld.SealBlock(body)

	// The body reads but never writes c.
	v := bld.ReadVar("c", body)
	_, isPhi := v.(*Phi)
	require.True(t, isPhi)

	bld.AddEdge(body, header)
	bld.SealBlock(header)

	// Sealing discovers the phi is trivial and the definition collapses to
	// the loop-invariant value.
	assert.Equal(t, Value("k"), bld.ReadVar("c", header))
	assert.Equal(t, Value("k"), bld.ReadVar("c", body))
}

func TestSealTwiceIsIdempotent(t *testing.T) {
	bld := NewBuilder()
	b := bld.NewBlock()
	bld.SealBlock(b)
	assert.NotPanics(t, func() { bld.SealBlock(b) })
}

func TestEdgeToSealedBlockPanics(t *testing.T) {
	bld := NewBuilder()
	a := bld.NewBlock()
	b := bld.NewBlock()
	bld.SealBlock(b)
	assert.Panics(t, func() { bld.AddEdge(a, b) })
}
