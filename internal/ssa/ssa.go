// Package ssa builds SSA form on the fly while a function is being
// generated, without a separate dominance pass. Definitions are written per
// block; reads walk predecessors and place phi nodes at joins. Blocks whose
// predecessor set is still growing stay unsealed and collect incomplete
// phis that are completed when the block is sealed, which makes loops
// generable in one forward pass: seal the header after the back edge is
// added.
package ssa

import "fmt"

// Value is any value the caller's code generator produces. Phi nodes
// created here are Values too.
type Value interface{}

// Undef marks a read of a variable with no reaching definition.
type Undef struct{ Name string }

func (u Undef) String() string { return "undef(" + u.Name + ")" }

// Phi is a join point for one variable. Operands are ordered like the
// block's predecessors.
type Phi struct {
	Block    *Block
	Name     string
	Operands []Value

	users []*Phi
}

func (p *Phi) String() string { return fmt.Sprintf("phi(%s)", p.Name) }

// Block is one basic block of the function under construction.
type Block struct {
	preds  []*Block
	sealed bool

	defs       map[string]Value
	incomplete map[string]*Phi
}

// Preds returns the block's predecessors.
func (b *Block) Preds() []*Block { return b.preds }

// Sealed reports whether the block's predecessor set is final.
func (b *Block) Sealed() bool { return b.sealed }

// Builder constructs SSA form across a growing control-flow graph.
type Builder struct {
	blocks []*Block
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// NewBlock creates an unsealed block with no predecessors.
func (bld *Builder) NewBlock() *Block {
	b := &Block{
		defs:       map[string]Value{},
		incomplete: map[string]*Phi{},
	}
	bld.blocks = append(bld.blocks, b)
	return b
}

// AddEdge records pred as a predecessor of succ. Adding an edge to a sealed
// block is a construction-order bug.
func (bld *Builder) AddEdge(pred, succ *Block) {
	if succ.sealed {
		panic("edge added to a sealed block")
	}
	succ.preds = append(succ.preds, pred)
}

// WriteVar records the current definition of name in block.
func (bld *Builder) WriteVar(name string, b *Block, v Value) {
	b.defs[name] = v
}

// ReadVar returns the definition of name reaching the end of block,
// creating phi nodes where paths join.
func (bld *Builder) ReadVar(name string, b *Block) Value {
	if v, ok := b.defs[name]; ok {
		return v
	}
	return bld.readRecursive(name, b)
}

func (bld *Builder) readRecursive(name string, b *Block) Value {
	var v Value
	switch {
	case !b.sealed:
		// The predecessor set may still grow; leave a placeholder.
		phi := &Phi{Block: b, Name: name}
		b.incomplete[name] = phi
		v = phi
	case len(b.preds) == 0:
		v = Undef{Name: name}
	case len(b.preds) == 1:
		v = bld.ReadVar(name, b.preds[0])
	default:
		// Write the phi before descending to terminate cycles through
		// loop back edges.
		phi := &Phi{Block: b, Name: name}
		bld.WriteVar(name, b, phi)
		v = bld.addPhiOperands(phi)
	}
	bld.WriteVar(name, b, v)
	return v
}

// SealBlock marks the predecessor set of b final and completes its pending
// phis.
func (bld *Builder) SealBlock(b *Block) {
	if b.sealed {
		return
	}
	b.sealed = true
	for name, phi := range b.incomplete {
		v := bld.addPhiOperands(phi)
		if v != Value(phi) {
			bld.replaceDefs(name, phi, v)
		}
	}
	b.incomplete = map[string]*Phi{}
}

func (bld *Builder) addPhiOperands(phi *Phi) Value {
	for _, pred := range phi.Block.preds {
		op := bld.ReadVar(phi.Name, pred)
		phi.Operands = append(phi.Operands, op)
		if p, ok := op.(*Phi); ok && p != phi {
			p.users = append(p.users, phi)
		}
	}
	return bld.tryRemoveTrivial(phi)
}

// tryRemoveTrivial collapses a phi whose operands are all the same value or
// the phi itself, rewriting its phi users and rechecking them.
func (bld *Builder) tryRemoveTrivial(phi *Phi) Value {
	var same Value
	for _, op := range phi.Operands {
		if op == Value(phi) || op == same {
			continue
		}
		if same != nil {
			return phi
		}
		same = op
	}
	if same == nil {
		same = Undef{Name: phi.Name}
	}

	users := phi.users
	phi.users = nil
	bld.replaceDefs(phi.Name, phi, same)
	for _, u := range users {
		if u == phi {
			continue
		}
		for i, op := range u.Operands {
			if op == Value(phi) {
				u.Operands[i] = same
			}
		}
	}
	if p, ok := same.(*Phi); ok {
		p.users = append(p.users, users...)
	}
	for _, u := range users {
		if u != phi {
			bld.tryRemoveTrivial(u)
		}
	}
	return same
}

func (bld *Builder) replaceDefs(name string, from *Phi, to Value) {
	for _, b := range bld.blocks {
		if b.defs[name] == Value(from) {
			b.defs[name] = to
		}
	}
}
