// Package ptx assembles PTX inline-assembly fragments: instructions built
// from dotted suffix chains, operands rendered as $N placeholders with an
// LLVM-style constraint list, and optional guard predicates. A Builder
// collects the operands of all instructions it creates so the caller can
// bind them, in placeholder order, to an inline-asm IR op.
package ptx

import (
	"fmt"
	"strings"

	"github.com/warp-lang/warpc/internal/ir"
)

// Operand is one bound asm operand. Placeholder numbers are assigned in
// creation order, so callers create result operands before inputs to keep
// the conventional outputs-before-inputs constraint order.
type Operand struct {
	idx        int
	constraint string
	value      *ir.Value // nil for results and immediates
	imm        int64
	isImm      bool
	addrOff    int
	isAddr     bool
	list       []*Operand
}

func (o *Operand) isList() bool { return o.list != nil }

// ListGet returns the i-th member of a list operand.
func (o *Operand) ListGet(i int) *Operand {
	if !o.isList() {
		panic("ListGet on a non-list operand")
	}
	return o.list[i]
}

func (o *Operand) render() string {
	switch {
	case o.isList():
		parts := make([]string, len(o.list))
		for i, m := range o.list {
			parts[i] = m.render()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case o.isImm:
		return fmt.Sprintf("%d", o.imm)
	case o.isAddr:
		return fmt.Sprintf("[$%d+%d]", o.idx, o.addrOff)
	default:
		return fmt.Sprintf("$%d", o.idx)
	}
}

// Builder owns the operands and instructions of one inline-asm emission.
type Builder struct {
	operands []*Operand
	instrs   []*Instr
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) newIndexed(constraint string, value *ir.Value) *Operand {
	o := &Operand{idx: b.numbered(), constraint: constraint, value: value}
	b.operands = append(b.operands, o)
	return o
}

func (b *Builder) numbered() int {
	n := 0
	for _, o := range b.operands {
		if !o.isImm && !o.isList() {
			n++
		}
	}
	return n
}

// NewResultOperand creates an output operand with a write constraint such
// as "=r" and no bound value; the caller reads the result off the
// inline-asm op instead.
func (b *Builder) NewResultOperand(constraint string) *Operand {
	if !strings.HasPrefix(constraint, "=") {
		panic(fmt.Sprintf("result operand needs a write constraint, got %q", constraint))
	}
	return b.newIndexed(constraint, nil)
}

// NewOperand creates an input operand bound to value.
func (b *Builder) NewOperand(value *ir.Value, constraint string) *Operand {
	return b.newIndexed(constraint, value)
}

// NewAddrOperand creates an input operand rendered as a [reg+offset]
// address expression.
func (b *Builder) NewAddrOperand(value *ir.Value, constraint string, offset int) *Operand {
	o := b.newIndexed(constraint, value)
	o.isAddr = true
	o.addrOff = offset
	return o
}

// NewConstantOperand creates an immediate operand embedded directly into
// the instruction text. It consumes no placeholder.
func (b *Builder) NewConstantOperand(v int64) *Operand {
	o := &Operand{imm: v, isImm: true}
	b.operands = append(b.operands, o)
	return o
}

// NewListOperand groups operands into one braced vector operand.
func (b *Builder) NewListOperand(members ...*Operand) *Operand {
	o := &Operand{list: append([]*Operand(nil), members...)}
	b.operands = append(b.operands, o)
	return o
}

// Create starts a new instruction with the given opcode root.
func (b *Builder) Create(opcode string) *Instr {
	in := &Instr{builder: b, parts: []string{opcode}}
	b.instrs = append(b.instrs, in)
	return in
}

// Dump renders all created instructions, one per line, each terminated
// with a semicolon.
func (b *Builder) Dump() string {
	lines := make([]string, len(b.instrs))
	for i, in := range b.instrs {
		lines[i] = in.render()
	}
	return strings.Join(lines, "\n")
}

// Constraints returns the comma-joined constraint list in placeholder
// order.
func (b *Builder) Constraints() string {
	var cs []string
	for _, o := range b.operands {
		if o.isImm || o.isList() {
			continue
		}
		cs = append(cs, o.constraint)
	}
	return strings.Join(cs, ",")
}

// Args returns the IR values bound to input operands, in placeholder
// order. Result operands contribute no value.
func (b *Builder) Args() []*ir.Value {
	var args []*ir.Value
	for _, o := range b.operands {
		if o.isImm || o.isList() || o.value == nil {
			continue
		}
		args = append(args, o.value)
	}
	return args
}

// Instr is one instruction under construction.
type Instr struct {
	builder  *Builder
	parts    []string // opcode root plus dotted suffixes
	operands []*Operand
	pred     *Operand
	predNeg  bool
}

// Suffix appends a dotted suffix to the opcode.
func (i *Instr) Suffix(s string) *Instr {
	i.parts = append(i.parts, s)
	return i
}

// SuffixIf appends the suffix only when cond holds.
func (i *Instr) SuffixIf(s string, cond bool) *Instr {
	if cond {
		i.Suffix(s)
	}
	return i
}

// Global marks the access as global-memory.
func (i *Instr) Global() *Instr { return i.Suffix("global") }

// V appends the vector-arity suffix for n > 1 words.
func (i *Instr) V(n int) *Instr {
	if n > 1 {
		i.Suffix(fmt.Sprintf("v%d", n))
	}
	return i
}

// B appends the untyped bit-width suffix.
func (i *Instr) B(width int) *Instr { return i.Suffix(fmt.Sprintf("b%d", width)) }

// U appends the unsigned bit-width suffix.
func (i *Instr) U(width int) *Instr { return i.Suffix(fmt.Sprintf("u%d", width)) }

// Call sets the instruction's operand list in textual order.
func (i *Instr) Call(operands ...*Operand) *Instr {
	i.operands = operands
	return i
}

// Predicate guards the instruction on value, creating the predicate
// operand with the given constraint.
func (i *Instr) Predicate(value *ir.Value, constraint string) *Instr {
	i.pred = i.builder.NewOperand(value, constraint)
	return i
}

// PredicateNot guards the instruction on the negation of value.
func (i *Instr) PredicateNot(value *ir.Value, constraint string) *Instr {
	i.pred = i.builder.NewOperand(value, constraint)
	i.predNeg = true
	return i
}

func (i *Instr) render() string {
	var b strings.Builder
	if i.pred != nil {
		if i.predNeg {
			fmt.Fprintf(&b, "@!$%d ", i.pred.idx)
		} else {
			fmt.Fprintf(&b, "@$%d ", i.pred.idx)
		}
	}
	b.WriteString(strings.Join(i.parts, "."))
	if len(i.operands) > 0 {
		args := make([]string, len(i.operands))
		for k, o := range i.operands {
			args[k] = o.render()
		}
		b.WriteString(" " + strings.Join(args, ", "))
	}
	b.WriteString(";")
	return b.String()
}
