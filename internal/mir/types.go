package mir

import (
	"constvm/internal/types"
)

type FuncID int32
type BlockID int32
type LocalID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

// ReturnLocal is the local slot holding a body's result. Arguments
// occupy the slots immediately after it.
const ReturnLocal LocalID = 0

// Local declares one local slot of a body.
type Local struct {
	Type types.TypeID
	Name string
}

type PlaceProjKind uint8

const (
	// PlaceProjDeref loads a pointer from the place so far and
	// continues from the pointee.
	PlaceProjDeref PlaceProjKind = iota
	// PlaceProjField narrows to a field by declaration index.
	PlaceProjField
	// PlaceProjIndex narrows to an element, index read from a local.
	PlaceProjIndex
	// PlaceProjDowncast reinterprets an enum place as one variant's
	// payload. Reading fields of an enum requires this step.
	PlaceProjDowncast
)

type PlaceProj struct {
	Kind PlaceProjKind

	FieldIdx   int     // PlaceProjField
	IndexLocal LocalID // PlaceProjIndex
	Variant    int     // PlaceProjDowncast
}

// Place is an lvalue expression: a local plus a projection chain.
type Place struct {
	Local LocalID
	Proj  []PlaceProj
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// PlaceOf builds a projection-free place for a local.
func PlaceOf(l LocalID) Place {
	return Place{Local: l}
}

// Field extends the place with a field projection.
func (p Place) Field(idx int) Place {
	return p.withProj(PlaceProj{Kind: PlaceProjField, FieldIdx: idx})
}

// Deref extends the place with a pointer dereference.
func (p Place) Deref() Place {
	return p.withProj(PlaceProj{Kind: PlaceProjDeref})
}

// Index extends the place with an element projection; the index is
// read from the given local at evaluation time.
func (p Place) Index(l LocalID) Place {
	return p.withProj(PlaceProj{Kind: PlaceProjIndex, IndexLocal: l})
}

// Downcast extends the place with a variant downcast.
func (p Place) Downcast(variant int) Place {
	return p.withProj(PlaceProj{Kind: PlaceProjDowncast, Variant: variant})
}

func (p Place) withProj(proj PlaceProj) Place {
	out := Place{Local: p.Local, Proj: make([]PlaceProj, 0, len(p.Proj)+1)}
	out.Proj = append(out.Proj, p.Proj...)
	out.Proj = append(out.Proj, proj)
	return out
}
