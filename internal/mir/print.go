package mir

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"constvm/internal/types"
)

// DumpModule writes a human-readable representation of a module.
func DumpModule(w io.Writer, m *Module, typesIn *types.Interner) error {
	if w == nil || m == nil {
		return nil
	}

	if len(m.Consts) > 0 {
		fmt.Fprintf(w, "consts=%d\n", len(m.Consts))
		for _, c := range m.Consts {
			fmt.Fprintf(w, "  %s: %s = fn#%d\n", c.Name, typeStr(typesIn, c.Type), c.Fn)
		}
	}

	funcs := make([]*Body, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	slices.SortStableFunc(funcs, func(a, b *Body) int {
		if a.ID != b.ID {
			if a.ID < b.ID {
				return -1
			}
			return 1
		}
		return 0
	})

	fmt.Fprintf(w, "funcs=%d\n", len(funcs))
	for _, f := range funcs {
		if err := dumpBody(w, f, typesIn); err != nil {
			return err
		}
	}
	return nil
}

func dumpBody(w io.Writer, f *Body, typesIn *types.Interner) error {
	if w == nil || f == nil {
		return nil
	}
	if f.IsIntrinsic() {
		fmt.Fprintf(w, "\nfn %s = intrinsic %s(%s)\n", f.Name, f.Intrinsic, typeStr(typesIn, f.TypeArg))
		return nil
	}
	fmt.Fprintf(w, "\nfn %s (args=%d):\n", f.Name, f.ArgCount)

	fmt.Fprintf(w, "  locals:\n")
	for i := range f.Locals {
		l := f.Locals[i]
		name := l.Name
		if name == "" {
			name = "_"
		}
		fmt.Fprintf(w, "    L%d: %s name=%s\n", i, typeStr(typesIn, l.Type), name)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", bb.ID)
		for j := range bb.Stmts {
			fmt.Fprintf(w, "    %s\n", FormatStatement(&bb.Stmts[j]))
		}
		fmt.Fprintf(w, "    %s\n", FormatTerminator(&bb.Term))
	}
	return nil
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if typesIn == nil {
		return fmt.Sprintf("type#%d", id)
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	switch tt.Kind {
	case types.KindInt:
		return fmt.Sprintf("i%d", tt.Width)
	case types.KindUint:
		return fmt.Sprintf("u%d", tt.Width)
	case types.KindFloat:
		return fmt.Sprintf("f%d", tt.Width)
	case types.KindRef:
		return "&" + typeStr(typesIn, tt.Elem)
	case types.KindRawPtr:
		return "*" + typeStr(typesIn, tt.Elem)
	case types.KindArray:
		return fmt.Sprintf("[%s; %d]", typeStr(typesIn, tt.Elem), tt.Count)
	case types.KindSlice:
		return fmt.Sprintf("[%s]", typeStr(typesIn, tt.Elem))
	case types.KindStruct, types.KindEnum, types.KindUnion:
		if info, ok := typesIn.AdtInfo(id); ok {
			return info.Name
		}
		return tt.Kind.String()
	case types.KindTuple:
		info, ok := typesIn.TupleInfo(id)
		if !ok {
			return "()"
		}
		parts := make([]string, len(info.Elems))
		for i, e := range info.Elems {
			parts[i] = typeStr(typesIn, e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return tt.Kind.String()
	}
}

// FormatPlace renders a place as "L0.2[*L3]" style text.
func FormatPlace(p Place) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "L%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			sb.WriteString(".*")
		case PlaceProjField:
			fmt.Fprintf(&sb, ".%d", proj.FieldIdx)
		case PlaceProjIndex:
			fmt.Fprintf(&sb, "[L%d]", proj.IndexLocal)
		case PlaceProjDowncast:
			fmt.Fprintf(&sb, " as variant#%d", proj.Variant)
		}
	}
	return sb.String()
}

func formatOperand(op *Operand) string {
	switch op.Kind {
	case OperandCopy:
		return "copy " + FormatPlace(op.Place)
	case OperandMove:
		return "move " + FormatPlace(op.Place)
	case OperandConst:
		switch op.Const.Kind {
		case ConstScalar:
			return fmt.Sprintf("const %#x", op.Const.Bits)
		case ConstZeroSized:
			return "const ()"
		case ConstFn:
			return fmt.Sprintf("const fn#%d", op.Const.Fn)
		case ConstStr:
			return fmt.Sprintf("const %q", op.Const.Str)
		}
	}
	return "<operand?>"
}

func formatRValue(rv *RValue) string {
	switch rv.Kind {
	case RValueUse:
		return formatOperand(&rv.Use)
	case RValueUnaryOp:
		return fmt.Sprintf("un%d %s", rv.Unary.Op, formatOperand(&rv.Unary.Operand))
	case RValueBinaryOp:
		checked := ""
		if rv.Binary.Checked {
			checked = " checked"
		}
		return fmt.Sprintf("bin%d%s %s, %s", rv.Binary.Op, checked,
			formatOperand(&rv.Binary.Left), formatOperand(&rv.Binary.Right))
	case RValueRef:
		return "&" + FormatPlace(rv.Ref.Place)
	case RValueAggregate:
		parts := make([]string, len(rv.Aggregate.Elems))
		for i := range rv.Aggregate.Elems {
			parts[i] = formatOperand(&rv.Aggregate.Elems[i])
		}
		return fmt.Sprintf("aggregate type#%d v%d (%s)", rv.Aggregate.Type, rv.Aggregate.Variant,
			strings.Join(parts, ", "))
	case RValueCast:
		return fmt.Sprintf("%s as type#%d", formatOperand(&rv.Cast.Value), rv.Cast.TargetTy)
	case RValueDiscriminant:
		return "discriminant " + FormatPlace(rv.Discriminant)
	case RValueLen:
		return "len " + FormatPlace(rv.Len)
	}
	return "<rvalue?>"
}

// FormatStatement renders one statement.
func FormatStatement(st *Statement) string {
	switch st.Kind {
	case StmtAssign:
		return fmt.Sprintf("%s = %s", FormatPlace(st.Assign.Dst), formatRValue(&st.Assign.Src))
	case StmtSetDiscriminant:
		return fmt.Sprintf("discriminant(%s) = %d", FormatPlace(st.SetDiscriminant.Place), st.SetDiscriminant.Variant)
	case StmtStorageLive:
		return fmt.Sprintf("storage_live L%d", st.Storage.Local)
	case StmtStorageDead:
		return fmt.Sprintf("storage_dead L%d", st.Storage.Local)
	case StmtNop:
		return "nop"
	}
	return "<statement?>"
}

// FormatTerminator renders one terminator.
func FormatTerminator(t *Terminator) string {
	switch t.Kind {
	case TermReturn:
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermSwitchInt:
		parts := make([]string, len(t.SwitchInt.Values))
		for i, v := range t.SwitchInt.Values {
			parts[i] = fmt.Sprintf("%d: bb%d", v, t.SwitchInt.Targets[i])
		}
		return fmt.Sprintf("switch_int %s [%s, otherwise: bb%d]",
			formatOperand(&t.SwitchInt.Discr), strings.Join(parts, ", "), t.SwitchInt.Otherwise)
	case TermCall:
		parts := make([]string, len(t.Call.Args))
		for i := range t.Call.Args {
			parts[i] = formatOperand(&t.Call.Args[i])
		}
		return fmt.Sprintf("%s = call %s(%s) -> bb%d", FormatPlace(t.Call.Dst),
			formatOperand(&t.Call.Callee), strings.Join(parts, ", "), t.Call.Target)
	case TermAssert:
		return fmt.Sprintf("assert %s == %v (%q) -> bb%d",
			formatOperand(&t.Assert.Cond), t.Assert.Expected, t.Assert.Msg, t.Assert.Target)
	case TermUnreachable:
		return "unreachable"
	case TermNone:
		return "<none>"
	}
	return "<terminator?>"
}
