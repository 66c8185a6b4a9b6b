package mir

import (
	"errors"
	"fmt"

	"constvm/internal/types"
)

// Validate checks module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module, typesIn *types.Interner) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := validateBody(f, typesIn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	for _, c := range m.Consts {
		f, ok := m.Funcs[c.Fn]
		if !ok || f == nil {
			errs = append(errs, fmt.Errorf("const %s: body fn#%d missing", c.Name, c.Fn))
			continue
		}
		if f.ArgCount != 0 {
			errs = append(errs, fmt.Errorf("const %s: initializer takes arguments", c.Name))
		}
		if f.Result() != c.Type {
			errs = append(errs, fmt.Errorf("const %s: initializer returns type#%d, const is type#%d",
				c.Name, f.Result(), c.Type))
		}
	}
	return errors.Join(errs...)
}

func validateBody(f *Body, typesIn *types.Interner) error {
	if f.IsIntrinsic() {
		if len(f.Blocks) != 0 {
			return fmt.Errorf("intrinsic %s has blocks", f.Intrinsic)
		}
		return nil
	}

	var errs []error
	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateLocalIDs(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateTypes(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateBlocksTerminated checks that every block ends with a terminator.
func validateBlocksTerminated(f *Body) error {
	var errs []error
	if len(f.Blocks) == 0 {
		errs = append(errs, errors.New("body has no blocks"))
	}
	if int(f.Entry) < 0 || int(f.Entry) >= len(f.Blocks) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlockTargets checks that all block target IDs exist.
func validateBlockTargets(f *Body) error {
	var errs []error

	blockExists := func(id BlockID) bool {
		return id >= 0 && int(id) < len(f.Blocks)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		switch bb.Term.Kind {
		case TermGoto:
			if !blockExists(bb.Term.Goto.Target) {
				errs = append(errs, fmt.Errorf("bb%d: goto target bb%d does not exist", i, bb.Term.Goto.Target))
			}
		case TermSwitchInt:
			sw := &bb.Term.SwitchInt
			if len(sw.Values) != len(sw.Targets) {
				errs = append(errs, fmt.Errorf("bb%d: switch_int has %d values but %d targets",
					i, len(sw.Values), len(sw.Targets)))
			}
			for j, t := range sw.Targets {
				if !blockExists(t) {
					errs = append(errs, fmt.Errorf("bb%d: switch_int case %d target bb%d does not exist", i, j, t))
				}
			}
			if !blockExists(sw.Otherwise) {
				errs = append(errs, fmt.Errorf("bb%d: switch_int otherwise target bb%d does not exist", i, sw.Otherwise))
			}
		case TermCall:
			if !blockExists(bb.Term.Call.Target) {
				errs = append(errs, fmt.Errorf("bb%d: call continuation bb%d does not exist", i, bb.Term.Call.Target))
			}
		case TermAssert:
			if !blockExists(bb.Term.Assert.Target) {
				errs = append(errs, fmt.Errorf("bb%d: assert continuation bb%d does not exist", i, bb.Term.Assert.Target))
			}
		case TermReturn, TermUnreachable, TermNone:
		default:
			errs = append(errs, fmt.Errorf("bb%d: unknown terminator kind %d", i, bb.Term.Kind))
		}
	}
	return errors.Join(errs...)
}

// validateLocalIDs checks that every referenced local slot exists.
func validateLocalIDs(f *Body) error {
	var errs []error

	localExists := func(id LocalID) bool {
		return id >= 0 && int(id) < len(f.Locals)
	}
	checkPlace := func(where string, p Place) {
		if !localExists(p.Local) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", where, p.Local))
		}
		for _, proj := range p.Proj {
			if proj.Kind == PlaceProjIndex && !localExists(proj.IndexLocal) {
				errs = append(errs, fmt.Errorf("%s: index local L%d does not exist", where, proj.IndexLocal))
			}
		}
	}
	var checkOperand func(where string, op *Operand)
	checkOperand = func(where string, op *Operand) {
		switch op.Kind {
		case OperandCopy, OperandMove:
			checkPlace(where, op.Place)
		case OperandConst:
		}
	}
	checkRValue := func(where string, rv *RValue) {
		switch rv.Kind {
		case RValueUse:
			checkOperand(where, &rv.Use)
		case RValueUnaryOp:
			checkOperand(where, &rv.Unary.Operand)
		case RValueBinaryOp:
			checkOperand(where, &rv.Binary.Left)
			checkOperand(where, &rv.Binary.Right)
		case RValueRef:
			checkPlace(where, rv.Ref.Place)
		case RValueAggregate:
			for i := range rv.Aggregate.Elems {
				checkOperand(where, &rv.Aggregate.Elems[i])
			}
		case RValueCast:
			checkOperand(where, &rv.Cast.Value)
		case RValueDiscriminant:
			checkPlace(where, rv.Discriminant)
		case RValueLen:
			checkPlace(where, rv.Len)
		}
	}

	if f.ArgCount < 0 || f.ArgCount >= len(f.Locals) {
		errs = append(errs, fmt.Errorf("arg count %d out of range for %d locals", f.ArgCount, len(f.Locals)))
	}

	for bi := range f.Blocks {
		bb := &f.Blocks[bi]
		for si := range bb.Stmts {
			where := fmt.Sprintf("bb%d[%d]", bi, si)
			st := &bb.Stmts[si]
			switch st.Kind {
			case StmtAssign:
				checkPlace(where, st.Assign.Dst)
				checkRValue(where, &st.Assign.Src)
			case StmtSetDiscriminant:
				checkPlace(where, st.SetDiscriminant.Place)
			case StmtStorageLive, StmtStorageDead:
				if !localExists(st.Storage.Local) {
					errs = append(errs, fmt.Errorf("%s: storage marker for missing local L%d", where, st.Storage.Local))
				}
			}
		}
		where := fmt.Sprintf("bb%d[term]", bi)
		switch bb.Term.Kind {
		case TermSwitchInt:
			checkOperand(where, &bb.Term.SwitchInt.Discr)
		case TermCall:
			checkOperand(where, &bb.Term.Call.Callee)
			for i := range bb.Term.Call.Args {
				checkOperand(where, &bb.Term.Call.Args[i])
			}
			checkPlace(where, bb.Term.Call.Dst)
		case TermAssert:
			checkOperand(where, &bb.Term.Assert.Cond)
		}
	}
	return errors.Join(errs...)
}

// validateTypes checks that every local carries a resolvable type.
func validateTypes(f *Body, typesIn *types.Interner) error {
	if typesIn == nil {
		return nil
	}
	var errs []error
	for i, l := range f.Locals {
		if l.Type == types.NoTypeID {
			errs = append(errs, fmt.Errorf("local L%d has no type", i))
			continue
		}
		if _, ok := typesIn.Lookup(l.Type); !ok {
			errs = append(errs, fmt.Errorf("local L%d has unknown type#%d", i, l.Type))
		}
	}
	return errors.Join(errs...)
}
