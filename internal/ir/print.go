package ir

import (
	"fmt"
	"strings"
)

// String renders the program in a readable single-block textual form.
func (p *Program) String() string {
	var b strings.Builder
	for _, g := range p.Globals {
		fmt.Fprintf(&b, "%s @%s : !array<%dxi8>\n", g.Kind, g.Sym, g.IVal)
	}
	for _, f := range p.Funcs {
		b.WriteString(f.String())
	}
	return b.String()
}

// String renders one function.
func (f *Function) String() string {
	var b strings.Builder
	names := map[*Value]string{}
	for _, p := range f.Params {
		names[p] = "%" + p.Name
	}
	next := 0
	name := func(v *Value) string {
		if v == nil {
			return "%?"
		}
		if n, ok := names[v]; ok {
			return n
		}
		n := fmt.Sprintf("%%%d", next)
		next++
		names[v] = n
		return n
	}

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%%%s: %s", p.Name, p.Type)
	}
	var attrs []string
	if f.Kernel {
		attrs = append(attrs, "nvvm.kernel")
	}
	if f.MaxNTID > 0 {
		attrs = append(attrs, fmt.Sprintf("nvvm.maxntid = %d", f.MaxNTID))
	}
	fmt.Fprintf(&b, "func @%s(%s)", f.Name, strings.Join(params, ", "))
	if len(attrs) > 0 {
		fmt.Fprintf(&b, " attributes {%s}", strings.Join(attrs, ", "))
	}
	b.WriteString(" {\n")
	for _, op := range f.Body {
		b.WriteString("  ")
		if op.Result != nil {
			fmt.Fprintf(&b, "%s = ", name(op.Result))
		}
		b.WriteString(op.Kind.String())
		if len(op.Operands) > 0 {
			args := make([]string, len(op.Operands))
			for i, v := range op.Operands {
				args[i] = name(v)
			}
			fmt.Fprintf(&b, " %s", strings.Join(args, ", "))
		}
		b.WriteString(opAttrText(op))
		if op.Result != nil {
			fmt.Fprintf(&b, " : %s", op.Result.Type)
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func opAttrText(op *Op) string {
	var parts []string
	switch op.Kind {
	case OpConst, OpConstantSplat:
		if op.Result != nil && op.Result.Type.Kind == ScalarKind && op.Result.Type.Scalar.IsFloat() {
			parts = append(parts, fmt.Sprintf("%g", op.FVal))
		} else {
			parts = append(parts, fmt.Sprintf("%d", op.IVal))
		}
	case OpMakeRange:
		parts = append(parts, fmt.Sprintf("start = %d", op.IVal))
	case OpInsertValue, OpExtractValue, OpInsertElement, OpExtractElement, OpExpandDims:
		parts = append(parts, fmt.Sprintf("[%d]", op.Index))
	case OpAddressOf:
		parts = append(parts, "@"+op.Sym)
	case OpInlineAsm:
		parts = append(parts, fmt.Sprintf("%q, %q", op.Asm.Text, op.Asm.Constraints))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
