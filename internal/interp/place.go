package interp

import (
	"fmt"

	"fortio.org/safecast"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
)

// evalPlace resolves a place expression against a frame: start at the
// local, then apply projections left to right.
func (ev *Eval) evalPlace(frameIdx int, p mir.Place) (PlaceTy, *EvalError) {
	frame := &ev.Stack[frameIdx]
	if int(p.Local) < 0 || int(p.Local) >= len(frame.Locals) {
		return PlaceTy{}, ev.eb.makeError(EvalTypeMismatch, fmt.Sprintf("local L%d does not exist", p.Local))
	}
	slot := frame.slot(p.Local)
	if slot.State == slotDead {
		return PlaceTy{}, ev.eb.deadLocal(slot.Name)
	}

	l, err := ev.layoutOf(slot.TypeID)
	if err != nil {
		return PlaceTy{}, err
	}
	cur := PlaceTy{
		Kind:     PlaceLocal,
		FrameIdx: frameIdx,
		Local:    p.Local,
		Type:     slot.TypeID,
		Layout:   l,
		Variant:  -1,
	}
	if slot.State == slotMem {
		cur.Kind = PlaceMem
		cur.Mem = slot.Mem
	}

	for _, proj := range p.Proj {
		switch proj.Kind {
		case mir.PlaceProjDeref:
			cur, err = ev.DerefPlace(cur)
		case mir.PlaceProjField:
			cur, err = ev.PlaceField(cur, proj.FieldIdx)
		case mir.PlaceProjIndex:
			var idx int
			idx, err = ev.readIndexLocal(frameIdx, proj.IndexLocal)
			if err == nil {
				cur, err = ev.PlaceIndex(cur, idx)
			}
		case mir.PlaceProjDowncast:
			cur, err = ev.PlaceDowncast(cur, proj.Variant)
		default:
			panic(fmt.Sprintf("interp: unknown projection kind %d", proj.Kind))
		}
		if err != nil {
			return PlaceTy{}, err
		}
	}
	return cur, nil
}

// readIndexLocal reads an index operand from a local as an unsigned
// machine integer.
func (ev *Eval) readIndexLocal(frameIdx int, l mir.LocalID) (int, *EvalError) {
	pl, err := ev.evalPlace(frameIdx, mir.PlaceOf(l))
	if err != nil {
		return 0, err
	}
	im, err := ev.ReadImmediate(ev.PlaceAsOp(pl))
	if err != nil {
		return 0, err
	}
	if im.Kind != ImmScalar {
		return 0, ev.eb.typeMismatch("integer index", im.String())
	}
	bits, aerr := im.A.ToBits()
	if aerr != nil {
		return 0, ev.eb.memFault(aerr)
	}
	idx, cerr := safecast.Conv[int](bits)
	if cerr != nil {
		return 0, ev.eb.makeError(EvalMemoryFault,
			fmt.Sprintf("index %d does not fit the address space", bits))
	}
	return idx, nil
}

// DerefPlace loads the pointer stored in a place and continues from the
// pointee. Mutable global state is off limits: a constant's value may
// not depend on anything that could still change.
func (ev *Eval) DerefPlace(cur PlaceTy) (PlaceTy, *EvalError) {
	tt := ev.Types.MustLookup(cur.Type)
	switch tt.Kind {
	case types.KindRef, types.KindRawPtr:
	default:
		return PlaceTy{}, ev.eb.typeMismatch("pointer type", tt.Kind.String())
	}

	op := ev.PlaceAsOp(cur)
	im, err := ev.ReadImmediate(op)
	if err != nil {
		return PlaceTy{}, err
	}

	pointeeLayout, err := ev.layoutOf(tt.Elem)
	if err != nil {
		return PlaceTy{}, err
	}

	var ptrScalar mem.Scalar
	hasLen := false
	elems := 0
	switch im.Kind {
	case ImmScalar:
		ptrScalar = im.A
	case ImmPair:
		ptrScalar = im.A
		lenBits, aerr := im.B.ToBits()
		if aerr != nil {
			return PlaceTy{}, ev.eb.memFault(aerr)
		}
		n, cerr := safecast.Conv[int](lenBits)
		if cerr != nil {
			return PlaceTy{}, ev.eb.makeError(EvalMemoryFault,
				fmt.Sprintf("slice length %d does not fit the address space", lenBits))
		}
		hasLen = true
		elems = n
	default:
		return PlaceTy{}, ev.eb.typeMismatch("pointer value", im.String())
	}

	if ptrScalar.Kind != mem.SKPointer {
		return PlaceTy{}, ev.eb.nullDeref(ptrScalar.Bits)
	}
	ptr := ptrScalar.Ptr

	a, aerr := ev.Mem.Get(ptr.Alloc)
	if aerr != nil {
		return PlaceTy{}, ev.eb.memFault(aerr)
	}
	if a.Kind() == mem.AllocGlobal && a.Mutable() {
		return PlaceTy{}, ev.eb.makeError(EvalMutableGlobal,
			fmt.Sprintf("read through %s reaches mutable global state", ptr))
	}

	if pointeeLayout.Unsized && !hasLen {
		return PlaceTy{}, ev.eb.typeMismatch("wide pointer", "thin pointer")
	}
	return PlaceTy{
		Kind:    PlaceMem,
		Mem:     MemPlace{Ptr: ptr, Align: pointeeLayout.Align, HasLen: hasLen, Len: elems},
		Type:    tt.Elem,
		Layout:  pointeeLayout,
		Variant: -1,
	}, nil
}

// PlaceField narrows to a field by declaration index. Enum fields
// require a prior downcast.
func (ev *Eval) PlaceField(cur PlaceTy, idx int) (PlaceTy, *EvalError) {
	tt := ev.Types.MustLookup(cur.Type)

	var fieldTy types.TypeID
	var offset int
	switch tt.Kind {
	case types.KindTuple:
		info, ok := ev.Types.TupleInfo(cur.Type)
		if !ok || idx < 0 || idx >= len(info.Elems) {
			return PlaceTy{}, ev.eb.typeMismatch(fmt.Sprintf("tuple with field %d", idx), "fewer fields")
		}
		fieldTy = info.Elems[idx]
		offset = cur.Layout.FieldOffsets[idx]

	case types.KindStruct, types.KindUnion:
		fields, ok := ev.Types.VariantFieldTypes(cur.Type, 0)
		if !ok || idx < 0 || idx >= len(fields) {
			return PlaceTy{}, ev.eb.typeMismatch(fmt.Sprintf("%s with field %d", tt.Kind, idx), "fewer fields")
		}
		fieldTy = fields[idx]
		offset = cur.Layout.FieldOffsets[idx]

	case types.KindEnum:
		if cur.Variant < 0 {
			return PlaceTy{}, ev.eb.typeMismatch("downcast enum place", "enum place without variant")
		}
		v, ok := ev.Types.Variant(cur.Type, cur.Variant)
		if !ok || idx < 0 || idx >= len(v.Fields) {
			return PlaceTy{}, ev.eb.typeMismatch(fmt.Sprintf("variant with field %d", idx), "fewer fields")
		}
		fieldTy = v.Fields[idx].Type
		offset = cur.Layout.Variants[cur.Variant].FieldOffsets[idx]

	default:
		return PlaceTy{}, ev.eb.typeMismatch("aggregate place", tt.Kind.String())
	}

	if err := ev.ForceAllocation(&cur); err != nil {
		return PlaceTy{}, err
	}
	fl, err := ev.layoutOf(fieldTy)
	if err != nil {
		return PlaceTy{}, err
	}
	out := PlaceTy{
		Kind:    PlaceMem,
		Mem:     MemPlace{Ptr: cur.Mem.Ptr.WithOffset(offset), Align: fl.Align},
		Type:    fieldTy,
		Layout:  fl,
		Variant: -1,
	}
	if fl.Unsized {
		// The unsized tail inherits the parent's element count.
		out.Mem.HasLen = cur.Mem.HasLen
		out.Mem.Len = cur.Mem.Len
	}
	return out, nil
}

// PlaceIndex narrows to one element of an array or slice place.
func (ev *Eval) PlaceIndex(cur PlaceTy, idx int) (PlaceTy, *EvalError) {
	tt := ev.Types.MustLookup(cur.Type)

	var elemTy types.TypeID
	var length int
	switch tt.Kind {
	case types.KindArray:
		elemTy = tt.Elem
		length = int(tt.Count)
	case types.KindSlice:
		if !cur.Mem.HasLen {
			return PlaceTy{}, ev.eb.typeMismatch("slice place with length metadata", "thin place")
		}
		elemTy = tt.Elem
		length = cur.Mem.Len
	default:
		return PlaceTy{}, ev.eb.typeMismatch("indexable place", tt.Kind.String())
	}
	if idx < 0 || idx >= length {
		return PlaceTy{}, ev.eb.makeError(EvalMemoryFault,
			fmt.Sprintf("index %d out of bounds for length %d", idx, length))
	}

	if err := ev.ForceAllocation(&cur); err != nil {
		return PlaceTy{}, err
	}
	el, err := ev.layoutOf(elemTy)
	if err != nil {
		return PlaceTy{}, err
	}
	stride := layout.Stride(el)
	return PlaceTy{
		Kind:    PlaceMem,
		Mem:     MemPlace{Ptr: cur.Mem.Ptr.WithOffset(idx * stride), Align: el.Align},
		Type:    elemTy,
		Layout:  el,
		Variant: -1,
	}, nil
}

// PlaceDowncast reinterprets an enum place as one variant's payload.
// It does not touch memory; only field resolution changes.
func (ev *Eval) PlaceDowncast(cur PlaceTy, variant int) (PlaceTy, *EvalError) {
	tt := ev.Types.MustLookup(cur.Type)
	if tt.Kind != types.KindEnum {
		return PlaceTy{}, ev.eb.typeMismatch("enum place", tt.Kind.String())
	}
	info, ok := ev.Types.AdtInfo(cur.Type)
	if !ok || variant < 0 || variant >= len(info.Variants) {
		return PlaceTy{}, ev.eb.badVariant(uint64(variant), len(info.Variants))
	}
	cur.Variant = variant
	return cur, nil
}

// ForceAllocation gives a place a concrete address, spilling an
// immediate-backed local into a fresh stack allocation if needed.
func (ev *Eval) ForceAllocation(pl *PlaceTy) *EvalError {
	if pl.Kind == PlaceMem {
		return nil
	}
	slot := ev.Stack[pl.FrameIdx].slot(pl.Local)
	if slot.State == slotMem {
		pl.Kind = PlaceMem
		pl.Mem = slot.Mem
		return nil
	}
	if slot.State == slotDead {
		return ev.eb.deadLocal(slot.Name)
	}

	ptr, aerr := ev.Mem.Allocate(pl.Layout.Size, pl.Layout.Align, mem.AllocStack)
	if aerr != nil {
		return ev.eb.memFault(aerr)
	}
	mp := MemPlace{Ptr: ptr, Align: pl.Layout.Align}
	if slot.Imm.Kind != ImmUninit {
		if err := ev.writeImmediateToMem(mp, pl.Layout, slot.Imm); err != nil {
			return err
		}
	}
	slot.State = slotMem
	slot.Mem = mp
	pl.Kind = PlaceMem
	pl.Mem = mp
	return nil
}
