package types

import (
	"fmt"

	"fortio.org/safecast"
)

// FieldInfo describes one field of a struct or enum variant.
type FieldInfo struct {
	Name string
	Type TypeID
}

// VariantInfo describes one variant of an enum, or the single body of a
// struct/union.
type VariantInfo struct {
	Name   string
	Fields []FieldInfo
}

// AdtInfo describes a nominal struct, enum or union.
// Structs and unions have exactly one variant.
type AdtInfo struct {
	Name     string
	Variants []VariantInfo
}

// DeclareStruct interns a struct type with the given fields.
func (in *Interner) DeclareStruct(name string, fields []FieldInfo) TypeID {
	return in.declareAdt(KindStruct, AdtInfo{
		Name:     name,
		Variants: []VariantInfo{{Name: name, Fields: append([]FieldInfo(nil), fields...)}},
	})
}

// DeclareEnum interns an enum type with the given variants.
// Zero-variant enums are legal to declare (they are uninhabited).
func (in *Interner) DeclareEnum(name string, variants []VariantInfo) TypeID {
	return in.declareAdt(KindEnum, AdtInfo{
		Name:     name,
		Variants: append([]VariantInfo(nil), variants...),
	})
}

// DeclareUnion interns an untagged union type with the given fields.
func (in *Interner) DeclareUnion(name string, fields []FieldInfo) TypeID {
	return in.declareAdt(KindUnion, AdtInfo{
		Name:     name,
		Variants: []VariantInfo{{Name: name, Fields: append([]FieldInfo(nil), fields...)}},
	})
}

func (in *Interner) declareAdt(kind Kind, info AdtInfo) TypeID {
	payload, err := safecast.Conv[uint32](len(in.adts))
	if err != nil {
		panic(fmt.Errorf("adt payload overflow: %w", err))
	}
	in.adts = append(in.adts, info)
	// Nominal identity: every declaration is a fresh type.
	return in.internRaw(Type{Kind: kind, Payload: payload})
}

// AdtInfo returns the declaration for a struct/enum/union TypeID.
func (in *Interner) AdtInfo(id TypeID) (*AdtInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil, false
	}
	switch tt.Kind {
	case KindStruct, KindEnum, KindUnion:
	default:
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.adts) {
		return nil, false
	}
	return &in.adts[tt.Payload], true
}

// Variant returns one variant of an ADT.
func (in *Interner) Variant(id TypeID, idx int) (*VariantInfo, bool) {
	info, ok := in.AdtInfo(id)
	if !ok || idx < 0 || idx >= len(info.Variants) {
		return nil, false
	}
	return &info.Variants[idx], true
}

// VariantFieldTypes collects the field types of one ADT variant.
func (in *Interner) VariantFieldTypes(id TypeID, idx int) ([]TypeID, bool) {
	v, ok := in.Variant(id, idx)
	if !ok {
		return nil, false
	}
	out := make([]TypeID, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Type
	}
	return out, true
}
