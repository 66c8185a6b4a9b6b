package interp

import (
	"fmt"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/types"
)

// The exported place API below is what the valtree converter and other
// consumers drive the evaluator's memory model through, without going
// via IR statements.

// Errorf builds an evaluation fault carrying the current backtrace.
func (ev *Eval) Errorf(code EvalCode, format string, args ...any) *EvalError {
	return ev.eb.makeError(code, fmt.Sprintf(format, args...))
}

// LayoutFor is the evaluator's layout oracle with faults instead of
// plain errors.
func (ev *Eval) LayoutFor(t types.TypeID) (layout.TypeLayout, *EvalError) {
	return ev.layoutOf(t)
}

// AllocatePlace reserves fresh zeroed-tracked memory for a sized type.
func (ev *Eval) AllocatePlace(t types.TypeID, kind mem.AllocKind) (PlaceTy, *EvalError) {
	l, err := ev.layoutOf(t)
	if err != nil {
		return PlaceTy{}, err
	}
	if l.Unsized {
		return PlaceTy{}, ev.eb.typeMismatch("sized type", "unsized")
	}
	ptr, aerr := ev.Mem.Allocate(l.Size, l.Align, kind)
	if aerr != nil {
		return PlaceTy{}, ev.eb.memFault(aerr)
	}
	return PlaceTy{
		Kind:    PlaceMem,
		Mem:     MemPlace{Ptr: ptr, Align: l.Align},
		Type:    t,
		Layout:  l,
		Variant: -1,
	}, nil
}

// AllocateUnsizedPlace reserves memory for an unsized type with a known
// trailing element count: the sized prefix plus elems tail elements.
// The count becomes the place's length metadata.
func (ev *Eval) AllocateUnsizedPlace(t types.TypeID, elems int, kind mem.AllocKind) (PlaceTy, *EvalError) {
	l, err := ev.layoutOf(t)
	if err != nil {
		return PlaceTy{}, err
	}
	if !l.Unsized {
		return PlaceTy{}, ev.eb.typeMismatch("unsized type", "sized")
	}
	if elems < 0 {
		return PlaceTy{}, ev.eb.typeMismatch("non-negative element count", fmt.Sprintf("%d", elems))
	}

	tail, ok := ev.Types.UnsizedTail(t)
	if !ok {
		return PlaceTy{}, ev.eb.typeMismatch("type with an unsized tail", "none found")
	}
	tt := ev.Types.MustLookup(tail)
	stride := 1 // str tail: bytes
	if tt.Kind == types.KindSlice {
		el, err := ev.layoutOf(tt.Elem)
		if err != nil {
			return PlaceTy{}, err
		}
		stride = layout.Stride(el)
	}

	ptr, aerr := ev.Mem.Allocate(l.Size+elems*stride, l.Align, kind)
	if aerr != nil {
		return PlaceTy{}, ev.eb.memFault(aerr)
	}
	return PlaceTy{
		Kind:    PlaceMem,
		Mem:     MemPlace{Ptr: ptr, Align: l.Align, HasLen: true, Len: elems},
		Type:    t,
		Layout:  l,
		Variant: -1,
	}, nil
}

// InternPlace freezes the allocation graph behind a memory-backed
// place. No-op for immediate-backed locals.
func (ev *Eval) InternPlace(pl PlaceTy) *EvalError {
	if pl.Kind != PlaceMem {
		return nil
	}
	if aerr := ev.Mem.InternRecursive(pl.Mem.Ptr.Alloc); aerr != nil {
		return ev.eb.memFault(aerr)
	}
	return nil
}

// OpToPlace gives an operand an address, spilling immediates into a
// fresh value allocation.
func (ev *Eval) OpToPlace(op OpTy) (PlaceTy, *EvalError) {
	if !op.IsImm {
		return PlaceTy{
			Kind:    PlaceMem,
			Mem:     op.Mem,
			Type:    op.Type,
			Layout:  op.Layout,
			Variant: -1,
		}, nil
	}
	pl, err := ev.AllocatePlace(op.Type, mem.AllocValue)
	if err != nil {
		return PlaceTy{}, err
	}
	if op.Imm.Kind != ImmUninit {
		if err := ev.writeImmediateToMem(pl.Mem, pl.Layout, op.Imm); err != nil {
			return PlaceTy{}, err
		}
	}
	return pl, nil
}
