package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID // the empty tuple
	Bool    TypeID
	Char    TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	F32     TypeID
	F64     TypeID
	Str     TypeID
	Never   TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Tuples and ADTs carry variable-size payloads and live in side tables
// indexed through Type.Payload.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	tuples   []TupleInfo
	adts     []AdtInfo
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.tuples = append(in.tuples, TupleInfo{}) // reserve 0 as invalid sentinel
	in.adts = append(in.adts, AdtInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.InternTuple(nil)
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
	in.builtins.Str = in.Intern(Type{Kind: KindStr})
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	key := typeKey(t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Width   Width
	Payload uint32
}
