package types

// Snapshot is a serializable image of an interner: the descriptor
// table plus the tuple/ADT side tables. TypeIDs index Types directly,
// so a restored interner resolves the same IDs.
type Snapshot struct {
	Types  []Type
	Tuples []TupleInfo
	Adts   []AdtInfo
}

// Snapshot captures the interner's current state.
func (in *Interner) Snapshot() Snapshot {
	return Snapshot{
		Types:  append([]Type(nil), in.types...),
		Tuples: append([]TupleInfo(nil), in.tuples...),
		Adts:   append([]AdtInfo(nil), in.adts...),
	}
}

// FromSnapshot rebuilds an interner from a snapshot, restoring the
// structural index and the builtin IDs.
func FromSnapshot(s Snapshot) *Interner {
	in := NewInterner()
	if len(s.Types) < len(in.types) {
		// A snapshot always contains at least the builtins.
		return in
	}
	in.types = append([]Type(nil), s.Types...)
	in.tuples = append([]TupleInfo(nil), s.Tuples...)
	in.adts = append([]AdtInfo(nil), s.Adts...)
	in.index = make(map[typeKey]TypeID, len(in.types))
	for i, t := range in.types {
		in.index[typeKey(t)] = TypeID(uint32(i))
	}
	return in
}
