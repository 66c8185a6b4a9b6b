package types

// IsUnsized reports whether values of the type have a size only known
// at runtime (slices, str, trait objects, and structs whose last field
// is unsized).
func (in *Interner) IsUnsized(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindSlice, KindStr, KindDynamic:
		return true
	case KindStruct:
		info, ok := in.AdtInfo(id)
		if !ok || len(info.Variants) != 1 {
			return false
		}
		fields := info.Variants[0].Fields
		if len(fields) == 0 {
			return false
		}
		return in.IsUnsized(fields[len(fields)-1].Type)
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok || len(info.Elems) == 0 {
			return false
		}
		return in.IsUnsized(info.Elems[len(info.Elems)-1])
	default:
		return false
	}
}

// UnsizedTail returns the innermost unsized type reachable through
// trailing struct fields: the slice/str/dyn that gives the value its
// runtime length. ok=false for sized types.
func (in *Interner) UnsizedTail(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID, false
	}
	switch tt.Kind {
	case KindSlice, KindStr, KindDynamic:
		return id, true
	case KindStruct:
		info, ok := in.AdtInfo(id)
		if !ok || len(info.Variants) != 1 {
			return NoTypeID, false
		}
		fields := info.Variants[0].Fields
		if len(fields) == 0 {
			return NoTypeID, false
		}
		return in.UnsizedTail(fields[len(fields)-1].Type)
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok || len(info.Elems) == 0 {
			return NoTypeID, false
		}
		return in.UnsizedTail(info.Elems[len(info.Elems)-1])
	default:
		return NoTypeID, false
	}
}

// HasInteriorMutability is a hook for rejecting types whose values may
// change behind a shared reference. The current type universe has no
// cell-like kinds, so only unions qualify.
func (in *Interner) HasInteriorMutability(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	return tt.Kind == KindUnion
}
