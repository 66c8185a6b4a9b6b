package valtree

import (
	"fmt"

	"constvm/internal/interp"
	"constvm/internal/mem"
	"constvm/internal/types"
)

// ValTreeToConstValue materializes a tree back into fresh interned
// allocations and returns the resulting constant. The tree's shape
// must match the type; a mismatch is a caller bug and panics. An
// out-of-range variant index in the tree fails with a clean error.
func ValTreeToConstValue(ev *interp.Eval, t Tree, ty types.TypeID) (interp.ConstValue, *interp.EvalError) {
	return NewConverter(ev).ToConst(t, ty)
}

// ToConst materializes a tree as a value of the given type.
func (c *Converter) ToConst(t Tree, ty types.TypeID) (interp.ConstValue, *interp.EvalError) {
	if !c.supported(ty) {
		tt, _ := c.ev.Types.Lookup(ty)
		return interp.ConstValue{}, c.ev.Errorf(interp.EvalTypeMismatch,
			"type kind %s has no tree representation", tt.Kind)
	}
	// A bare unsized value would come out as a by-ref constant with no
	// length metadata, and the reverse conversion could not re-condense
	// it. Only references to unsized values are materializable.
	if c.ev.Types.IsUnsized(ty) {
		tt, _ := c.ev.Types.Lookup(ty)
		return interp.ConstValue{}, c.ev.Errorf(interp.EvalTypeMismatch,
			"bare unsized %s constant; wrap it in a reference", tt.Kind)
	}
	pl, err := c.materialize(t, ty)
	if err != nil {
		return interp.ConstValue{}, err
	}
	return c.ev.PlaceToConstValue(pl)
}

// materialize allocates, fills and interns a place for one tree. It
// handles unsized pointee types too: their tail element count is read
// off the tree itself.
func (c *Converter) materialize(t Tree, ty types.TypeID) (interp.PlaceTy, *interp.EvalError) {
	ev := c.ev
	l, err := ev.LayoutFor(ty)
	if err != nil {
		return interp.PlaceTy{}, err
	}

	var pl interp.PlaceTy
	if l.Unsized {
		n, ok := TrailingElemCount(ev.Types, ty, t)
		if !ok {
			panic(fmt.Sprintf("valtree: no trailing element count for type#%d from %s", ty, t))
		}
		pl, err = ev.AllocateUnsizedPlace(ty, n, mem.AllocValue)
	} else {
		pl, err = ev.AllocatePlace(ty, mem.AllocValue)
	}
	if err != nil {
		return interp.PlaceTy{}, err
	}

	if err := c.fillPlace(pl, t); err != nil {
		return interp.PlaceTy{}, err
	}
	if err := ev.InternPlace(pl); err != nil {
		return interp.PlaceTy{}, err
	}
	return pl, nil
}

// fillPlace writes one tree into an already-allocated place. Shape
// disagreements between tree and type panic: the forward conversion
// never produces them, so they mean the caller hand-built a bad tree.
// The one tree-carried datum that is validated, not trusted, is the
// enum variant index.
func (c *Converter) fillPlace(pl interp.PlaceTy, t Tree) *interp.EvalError {
	ev := c.ev
	tt := ev.Types.MustLookup(pl.Type)

	switch tt.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat:
		if !t.IsLeaf() {
			panic(fmt.Sprintf("valtree: branch tree for %s place", tt.Kind))
		}
		return ev.WriteImmediate(pl, interp.ScalarImm(t.Leaf))

	case types.KindFnDef:
		// Zero-sized; nothing to write.
		return nil

	case types.KindRef:
		pointee, err := c.materialize(t, tt.Elem)
		if err != nil {
			return err
		}
		ptrScalar := mem.FromPointer(pointee.Mem.Ptr)
		if pointee.Layout.Unsized {
			n := mem.BitsFrom(uint64(pointee.Mem.Len), ev.Mem.PtrSize())
			return ev.WriteImmediate(pl, interp.PairImm(ptrScalar, n))
		}
		return ev.WriteImmediate(pl, interp.ScalarImm(ptrScalar))

	case types.KindStr:
		raw := c.leafBytes(t)
		if aerr := ev.Mem.WriteBytes(pl.Mem.Ptr, raw); aerr != nil {
			return ev.Errorf(interp.EvalMemoryFault, "%s", aerr)
		}
		return nil

	case types.KindArray:
		if t.IsLeaf() || len(t.Children) != int(tt.Count) {
			panic(fmt.Sprintf("valtree: tree %s does not fit array of %d", t, tt.Count))
		}
		return c.fillElems(pl, t.Children)

	case types.KindSlice:
		if t.IsLeaf() {
			panic("valtree: leaf tree for slice place")
		}
		return c.fillElems(pl, t.Children)

	case types.KindTuple:
		info, ok := ev.Types.TupleInfo(pl.Type)
		if !ok || t.IsLeaf() || len(t.Children) != len(info.Elems) {
			panic(fmt.Sprintf("valtree: tree %s does not fit %d-tuple", t, len(info.Elems)))
		}
		return c.fillFields(pl, t.Children)

	case types.KindStruct:
		fields, ok := ev.Types.VariantFieldTypes(pl.Type, 0)
		if !ok || t.IsLeaf() || len(t.Children) != len(fields) {
			panic(fmt.Sprintf("valtree: tree %s does not fit struct with %d fields", t, len(fields)))
		}
		return c.fillFields(pl, t.Children)

	case types.KindEnum:
		if t.IsLeaf() || len(t.Children) == 0 || !t.Children[0].IsLeaf() {
			panic(fmt.Sprintf("valtree: tree %s is not an enum encoding", t))
		}
		raw, aerr := t.Children[0].Leaf.ToBits()
		if aerr != nil {
			return ev.Errorf(interp.EvalBadVariant, "variant leaf is not an integer: %s", aerr)
		}
		variant := int(raw)
		down, err := ev.PlaceDowncast(pl, variant)
		if err != nil {
			return err
		}
		v, _ := ev.Types.Variant(pl.Type, variant)
		if len(t.Children)-1 != len(v.Fields) {
			panic(fmt.Sprintf("valtree: tree %s does not fit variant %s with %d fields",
				t, v.Name, len(v.Fields)))
		}
		if err := c.fillFields(down, t.Children[1:]); err != nil {
			return err
		}
		// Tag last, so a fault mid-fill never leaves a value that
		// claims a variant whose fields were not written.
		return ev.WriteDiscriminant(pl, variant)

	default:
		panic(fmt.Sprintf("valtree: materialization of %s place", tt.Kind))
	}
}

func (c *Converter) fillElems(pl interp.PlaceTy, elems []Tree) *interp.EvalError {
	for i, sub := range elems {
		el, err := c.ev.PlaceIndex(pl, i)
		if err != nil {
			return err
		}
		if err := c.fillPlace(el, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) fillFields(pl interp.PlaceTy, fields []Tree) *interp.EvalError {
	for i, sub := range fields {
		f, err := c.ev.PlaceField(pl, i)
		if err != nil {
			return err
		}
		if err := c.fillPlace(f, sub); err != nil {
			return err
		}
	}
	return nil
}

// leafBytes flattens a branch of one-byte leaves, the str encoding.
func (c *Converter) leafBytes(t Tree) []byte {
	if t.IsLeaf() {
		panic("valtree: leaf tree for str place")
	}
	out := make([]byte, len(t.Children))
	for i, ch := range t.Children {
		if !ch.IsLeaf() {
			panic("valtree: branch inside str encoding")
		}
		bits, aerr := ch.Leaf.ToBits()
		if aerr != nil || ch.Leaf.Size != 1 {
			panic(fmt.Sprintf("valtree: str byte leaf is %s", ch.Leaf))
		}
		out[i] = byte(bits)
	}
	return out
}

// TrailingElemCount derives, from a tree, how many trailing tail
// elements an unsized type needs when materialized: the length of a
// slice or str branch, found by recursing through the last field of
// unsized structs. ok is false when the type is not unsized in a way
// the tree can size.
func TrailingElemCount(in *types.Interner, ty types.TypeID, t Tree) (int, bool) {
	tt, ok := in.Lookup(ty)
	if !ok {
		return 0, false
	}
	switch tt.Kind {
	case types.KindSlice, types.KindStr:
		if t.IsLeaf() {
			return 0, false
		}
		return len(t.Children), true
	case types.KindStruct:
		fields, ok := in.VariantFieldTypes(ty, 0)
		if !ok || len(fields) == 0 {
			return 0, false
		}
		if t.IsLeaf() || len(t.Children) != len(fields) {
			return 0, false
		}
		last := len(fields) - 1
		return TrailingElemCount(in, fields[last], t.Children[last])
	default:
		return 0, false
	}
}
