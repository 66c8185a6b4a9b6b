package valtree

import (
	"constvm/internal/interp"
	"constvm/internal/mem"
	"constvm/internal/types"
)

// Converter walks places of one evaluator in both directions. It does
// not own the evaluator; conversions share its arena and type
// environment.
type Converter struct {
	ev *interp.Eval
}

// NewConverter wraps an evaluator.
func NewConverter(ev *interp.Eval) *Converter {
	return &Converter{ev: ev}
}

// ConstToValTree condenses an evaluated constant. ok is false when the
// constant's type has no tree representation; nothing is allocated or
// interned in that case.
func ConstToValTree(ev *interp.Eval, cv interp.ConstValue) (Tree, bool) {
	return NewConverter(ev).FromConst(cv)
}

// FromConst condenses a ConstValue into a tree.
func (c *Converter) FromConst(cv interp.ConstValue) (Tree, bool) {
	// Types without a tree form are rejected before touching memory.
	if !c.supported(cv.Type) {
		return Tree{}, false
	}
	op, err := c.ev.OperandFromConstValue(cv)
	if err != nil {
		return Tree{}, false
	}
	pl, err := c.ev.OpToPlace(op)
	if err != nil {
		return Tree{}, false
	}
	return c.fromPlace(pl)
}

// supported reports whether a type can be represented as a tree at
// all. The walk itself re-checks; this early gate keeps unsupported
// conversions free of side effects.
func (c *Converter) supported(ty types.TypeID) bool {
	tt, ok := c.ev.Types.Lookup(ty)
	if !ok {
		return false
	}
	// Values that may change behind a shared reference have no stable
	// tree form.
	if c.ev.Types.HasInteriorMutability(ty) {
		return false
	}
	switch tt.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindFnDef, types.KindStr:
		return true
	case types.KindRef, types.KindArray, types.KindSlice:
		return c.supported(tt.Elem)
	case types.KindTuple:
		info, ok := c.ev.Types.TupleInfo(ty)
		if !ok {
			return false
		}
		for _, e := range info.Elems {
			if !c.supported(e) {
				return false
			}
		}
		return true
	case types.KindStruct, types.KindEnum:
		info, ok := c.ev.Types.AdtInfo(ty)
		if !ok {
			return false
		}
		for _, v := range info.Variants {
			for _, f := range v.Fields {
				if !c.supported(f.Type) {
					return false
				}
			}
		}
		return true
	default:
		// Raw pointers, function pointers, trait objects, closures,
		// generators, placeholders.
		return false
	}
}

// fromPlace is the recursive structural walk, keyed on the place's
// type kind. The kind switch is exhaustive on purpose: a new kind has
// to decide its tree encoding here and in fillPlace.
func (c *Converter) fromPlace(pl interp.PlaceTy) (Tree, bool) {
	ev := c.ev
	tt, ok := ev.Types.Lookup(pl.Type)
	if !ok {
		return Tree{}, false
	}

	switch tt.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat:
		im, err := ev.ReadImmediate(ev.PlaceAsOp(pl))
		if err != nil || im.Kind != interp.ImmScalar {
			return Tree{}, false
		}
		return Leaf(im.A), true

	case types.KindFnDef:
		// Zero-sized: the item is named by the type, not the value.
		return Branch(), true

	case types.KindRef:
		// The reference itself contributes no node.
		pointee, err := ev.DerefPlace(pl)
		if err != nil {
			return Tree{}, false
		}
		return c.fromPlace(pointee)

	case types.KindStr:
		if !pl.Mem.HasLen {
			return Tree{}, false
		}
		raw, aerr := ev.Mem.ReadBytes(pl.Mem.Ptr, pl.Mem.Len)
		if aerr != nil {
			return Tree{}, false
		}
		children := make([]Tree, len(raw))
		for i, b := range raw {
			children[i] = Leaf(mem.NewBits(uint64(b), 1))
		}
		return Branch(children...), true

	case types.KindArray, types.KindSlice:
		var n int
		if tt.Kind == types.KindArray {
			n = int(tt.Count)
		} else {
			if !pl.Mem.HasLen {
				return Tree{}, false
			}
			n = pl.Mem.Len
		}
		children := make([]Tree, 0, n)
		for i := 0; i < n; i++ {
			el, err := ev.PlaceIndex(pl, i)
			if err != nil {
				return Tree{}, false
			}
			sub, ok := c.fromPlace(el)
			if !ok {
				return Tree{}, false
			}
			children = append(children, sub)
		}
		return Branch(children...), true

	case types.KindTuple:
		info, ok := ev.Types.TupleInfo(pl.Type)
		if !ok {
			return Tree{}, false
		}
		children := make([]Tree, 0, len(info.Elems))
		for i := range info.Elems {
			f, err := ev.PlaceField(pl, i)
			if err != nil {
				return Tree{}, false
			}
			sub, ok := c.fromPlace(f)
			if !ok {
				return Tree{}, false
			}
			children = append(children, sub)
		}
		return Branch(children...), true

	case types.KindStruct:
		fields, ok := ev.Types.VariantFieldTypes(pl.Type, 0)
		if !ok {
			return Tree{}, false
		}
		children := make([]Tree, 0, len(fields))
		for i := range fields {
			f, err := ev.PlaceField(pl, i)
			if err != nil {
				return Tree{}, false
			}
			sub, ok := c.fromPlace(f)
			if !ok {
				return Tree{}, false
			}
			children = append(children, sub)
		}
		return Branch(children...), true

	case types.KindEnum:
		info, ok := ev.Types.AdtInfo(pl.Type)
		if !ok {
			return Tree{}, false
		}
		if len(info.Variants) == 0 {
			// A value of an uninhabited enum cannot have been built.
			panic("valtree: conversion of zero-variant enum value")
		}
		variant, err := ev.ReadDiscriminant(pl)
		if err != nil {
			return Tree{}, false
		}
		down, err := ev.PlaceDowncast(pl, variant)
		if err != nil {
			return Tree{}, false
		}
		children := make([]Tree, 0, len(info.Variants[variant].Fields)+1)
		children = append(children, LeafBits(uint64(variant), variantLeafSize))
		for i := range info.Variants[variant].Fields {
			f, err := ev.PlaceField(down, i)
			if err != nil {
				return Tree{}, false
			}
			sub, ok := c.fromPlace(f)
			if !ok {
				return Tree{}, false
			}
			children = append(children, sub)
		}
		return Branch(children...), true

	default:
		// Raw pointers, function pointers, trait objects, unions,
		// never, closures, generators, placeholders.
		return Tree{}, false
	}
}

// variantLeafSize is the byte width of the variant-index leaf that
// heads every enum branch.
const variantLeafSize = 4
