package interp

import (
	"fmt"

	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
)

// evalRValue computes a right-hand side and stores it into dst.
func (ev *Eval) evalRValue(frameIdx int, rv *mir.RValue, dst PlaceTy) *EvalError {
	switch rv.Kind {
	case mir.RValueUse:
		src, err := ev.evalOperand(frameIdx, &rv.Use)
		if err != nil {
			return err
		}
		return ev.WriteOperand(dst, src)

	case mir.RValueUnaryOp:
		v, err := ev.evalOperand(frameIdx, &rv.Unary.Operand)
		if err != nil {
			return err
		}
		out, err := ev.unaryOp(rv.Unary.Op, v)
		if err != nil {
			return err
		}
		return ev.WriteImmediate(dst, ScalarImm(out))

	case mir.RValueBinaryOp:
		left, err := ev.evalOperand(frameIdx, &rv.Binary.Left)
		if err != nil {
			return err
		}
		right, err := ev.evalOperand(frameIdx, &rv.Binary.Right)
		if err != nil {
			return err
		}
		out, overflowed, err := ev.binaryOp(rv.Binary.Op, left, right)
		if err != nil {
			return err
		}
		if rv.Binary.Checked {
			return ev.WriteImmediate(dst, PairImm(out, mem.FromBool(overflowed)))
		}
		if overflowed {
			return ev.eb.overflow(binOpName(rv.Binary.Op))
		}
		return ev.WriteImmediate(dst, ScalarImm(out))

	case mir.RValueRef:
		return ev.evalRef(frameIdx, rv.Ref.Place, dst)

	case mir.RValueAggregate:
		return ev.evalAggregate(frameIdx, &rv.Aggregate, dst)

	case mir.RValueCast:
		v, err := ev.evalOperand(frameIdx, &rv.Cast.Value)
		if err != nil {
			return err
		}
		out, err := ev.castOp(v, rv.Cast.TargetTy)
		if err != nil {
			return err
		}
		return ev.WriteImmediate(dst, ScalarImm(out))

	case mir.RValueDiscriminant:
		pl, err := ev.evalPlace(frameIdx, rv.Discriminant)
		if err != nil {
			return err
		}
		v, err := ev.ReadDiscriminant(pl)
		if err != nil {
			return err
		}
		return ev.WriteImmediate(dst, ScalarImm(mem.BitsFrom(uint64(v), dst.Layout.A.Size)))

	case mir.RValueLen:
		pl, err := ev.evalPlace(frameIdx, rv.Len)
		if err != nil {
			return err
		}
		n, err := ev.placeLen(pl)
		if err != nil {
			return err
		}
		return ev.WriteImmediate(dst, ScalarImm(mem.BitsFrom(uint64(n), ev.Mem.PtrSize())))

	default:
		panic(fmt.Sprintf("interp: unknown rvalue kind %d", rv.Kind))
	}
}

// evalRef takes the address of a place. The destination type decides
// the pointer width: a sized pointee makes a thin pointer, an unsized
// one a (ptr, len) pair. Referencing an array through a slice-typed
// destination is the unsizing coercion.
func (ev *Eval) evalRef(frameIdx int, place mir.Place, dst PlaceTy) *EvalError {
	pl, err := ev.evalPlace(frameIdx, place)
	if err != nil {
		return err
	}
	if err := ev.ForceAllocation(&pl); err != nil {
		return err
	}

	dstTT := ev.Types.MustLookup(dst.Type)
	switch dstTT.Kind {
	case types.KindRef, types.KindRawPtr:
	default:
		return ev.eb.typeMismatch("pointer destination", dstTT.Kind.String())
	}

	ptr := pl.Mem.Ptr
	if ev.tagPointers && ptr.Tag == mem.ProvNone {
		if dstTT.Kind == types.KindRef {
			ptr.Tag = mem.ProvShared
		}
	}

	if !ev.Types.IsUnsized(dstTT.Elem) {
		return ev.WriteImmediate(dst, ScalarImm(mem.FromPointer(ptr)))
	}

	// Wide pointer: find the element count for the metadata half.
	elems, err := ev.refMetadata(pl, dstTT.Elem)
	if err != nil {
		return err
	}
	lenScalar := mem.BitsFrom(uint64(elems), ev.Mem.PtrSize())
	return ev.WriteImmediate(dst, PairImm(mem.FromPointer(ptr), lenScalar))
}

func (ev *Eval) refMetadata(pl PlaceTy, pointee types.TypeID) (int, *EvalError) {
	srcTT := ev.Types.MustLookup(pl.Type)
	dstTT := ev.Types.MustLookup(pointee)

	switch dstTT.Kind {
	case types.KindSlice:
		if srcTT.Kind == types.KindArray && srcTT.Elem == dstTT.Elem {
			return int(srcTT.Count), nil
		}
		if srcTT.Kind == types.KindSlice && pl.Mem.HasLen {
			return pl.Mem.Len, nil
		}
	case types.KindStr:
		if srcTT.Kind == types.KindStr && pl.Mem.HasLen {
			return pl.Mem.Len, nil
		}
	case types.KindStruct:
		if pl.Type == pointee && pl.Mem.HasLen {
			return pl.Mem.Len, nil
		}
	}
	return 0, ev.eb.typeMismatch(
		fmt.Sprintf("place coercible to %s", dstTT.Kind), srcTT.Kind.String())
}

// placeLen is the element count behind a Len rvalue.
func (ev *Eval) placeLen(pl PlaceTy) (int, *EvalError) {
	tt := ev.Types.MustLookup(pl.Type)
	switch tt.Kind {
	case types.KindArray:
		return int(tt.Count), nil
	case types.KindSlice, types.KindStr:
		if pl.Mem.HasLen {
			return pl.Mem.Len, nil
		}
	}
	return 0, ev.eb.typeMismatch("place with a length", tt.Kind.String())
}

// evalAggregate builds a compound value field by field directly in the
// destination. Enum aggregates write the discriminant last, after the
// payload, so a fault mid-construction never leaves a tagged but
// half-written variant.
func (ev *Eval) evalAggregate(frameIdx int, agg *mir.Aggregate, dst PlaceTy) *EvalError {
	if dst.Layout.IsZeroSized() {
		return ev.WriteImmediate(dst, ScalarImm(mem.ZeroSized()))
	}
	if err := ev.ForceAllocation(&dst); err != nil {
		return err
	}

	tt := ev.Types.MustLookup(dst.Type)
	switch agg.Agg {
	case mir.AggTuple, mir.AggArray:
		for i := range agg.Elems {
			fieldDst, err := ev.aggregateFieldPlace(dst, tt, -1, i)
			if err != nil {
				return err
			}
			src, err := ev.evalOperand(frameIdx, &agg.Elems[i])
			if err != nil {
				return err
			}
			if err := ev.WriteOperand(fieldDst, src); err != nil {
				return err
			}
		}
		return nil

	case mir.AggAdt:
		variant := agg.Variant
		if tt.Kind != types.KindEnum {
			variant = -1
		}
		for i := range agg.Elems {
			fieldDst, err := ev.aggregateFieldPlace(dst, tt, variant, i)
			if err != nil {
				return err
			}
			src, err := ev.evalOperand(frameIdx, &agg.Elems[i])
			if err != nil {
				return err
			}
			if err := ev.WriteOperand(fieldDst, src); err != nil {
				return err
			}
		}
		if tt.Kind == types.KindEnum {
			return ev.WriteDiscriminant(dst, agg.Variant)
		}
		return nil

	default:
		panic(fmt.Sprintf("interp: unknown aggregate kind %d", agg.Agg))
	}
}

// aggregateFieldPlace resolves the i-th element destination of an
// aggregate under construction.
func (ev *Eval) aggregateFieldPlace(dst PlaceTy, tt types.Type, variant, i int) (PlaceTy, *EvalError) {
	if tt.Kind == types.KindArray {
		return ev.PlaceIndex(dst, i)
	}
	if variant >= 0 {
		d, err := ev.PlaceDowncast(dst, variant)
		if err != nil {
			return PlaceTy{}, err
		}
		return ev.PlaceField(d, i)
	}
	return ev.PlaceField(dst, i)
}

func binOpName(op mir.BinOp) string {
	switch op {
	case mir.BinAdd:
		return "add"
	case mir.BinSub:
		return "sub"
	case mir.BinMul:
		return "mul"
	case mir.BinDiv:
		return "div"
	case mir.BinRem:
		return "rem"
	case mir.BinBitAnd:
		return "bitand"
	case mir.BinBitOr:
		return "bitor"
	case mir.BinBitXor:
		return "bitxor"
	case mir.BinShl:
		return "shl"
	case mir.BinShr:
		return "shr"
	case mir.BinEq:
		return "eq"
	case mir.BinNe:
		return "ne"
	case mir.BinLt:
		return "lt"
	case mir.BinLe:
		return "le"
	case mir.BinGt:
		return "gt"
	case mir.BinGe:
		return "ge"
	default:
		return fmt.Sprintf("binop#%d", op)
	}
}
