package interp

import (
	"fmt"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
)

// ImmKind distinguishes immediate value shapes.
type ImmKind uint8

const (
	// ImmUninit is the value of a live local before its first write.
	ImmUninit ImmKind = iota
	// ImmScalar is a single machine scalar.
	ImmScalar
	// ImmPair is two machine scalars (e.g. a wide pointer).
	ImmPair
)

// Immediate is a value small enough to live in a register slot instead
// of memory: at most two scalars, per the type's ABI.
type Immediate struct {
	Kind ImmKind
	A    mem.Scalar
	B    mem.Scalar
}

// ScalarImm wraps one scalar as an immediate.
func ScalarImm(s mem.Scalar) Immediate {
	return Immediate{Kind: ImmScalar, A: s}
}

// PairImm wraps two scalars as an immediate.
func PairImm(a, b mem.Scalar) Immediate {
	return Immediate{Kind: ImmPair, A: a, B: b}
}

func (im Immediate) String() string {
	switch im.Kind {
	case ImmUninit:
		return "uninit"
	case ImmScalar:
		return im.A.String()
	case ImmPair:
		return fmt.Sprintf("(%s, %s)", im.A, im.B)
	default:
		return "imm?"
	}
}

// MemPlace is a resolved location in the arena. Unsized pointees carry
// their element count as metadata.
type MemPlace struct {
	Ptr   mem.Pointer
	Align int

	HasLen bool
	Len    int
}

// PlaceKind distinguishes where a resolved place lives.
type PlaceKind uint8

const (
	// PlaceLocal is an unprojected frame local; it may still be an
	// immediate with no address.
	PlaceLocal PlaceKind = iota
	// PlaceMem is a concrete arena location.
	PlaceMem
)

// PlaceTy is a resolved place together with its type and layout.
// Variant is >= 0 after a downcast projection; field offsets then come
// from that variant's layout.
type PlaceTy struct {
	Kind PlaceKind

	// PlaceLocal
	FrameIdx int
	Local    mir.LocalID

	// PlaceMem
	Mem MemPlace

	Type    types.TypeID
	Layout  layout.TypeLayout
	Variant int
}

// OpTy is an evaluated operand: either an immediate or a memory
// location, plus its type and layout.
type OpTy struct {
	IsImm bool
	Imm   Immediate
	Mem   MemPlace

	Type   types.TypeID
	Layout layout.TypeLayout
}

func immOp(im Immediate, ty types.TypeID, l layout.TypeLayout) OpTy {
	return OpTy{IsImm: true, Imm: im, Type: ty, Layout: l}
}

func memOp(mp MemPlace, ty types.TypeID, l layout.TypeLayout) OpTy {
	return OpTy{Mem: mp, Type: ty, Layout: l}
}
