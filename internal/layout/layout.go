package layout

import (
	"constvm/internal/types"
)

// ABI classifies how values of a type are passed around by the
// evaluator: as one scalar, as a pair of scalars, or only by memory.
type ABI uint8

const (
	// AbiAggregate values exist only in memory.
	AbiAggregate ABI = iota
	// AbiScalar values fit in a single machine scalar.
	AbiScalar
	// AbiScalarPair values are two machine scalars (e.g. ptr+len).
	AbiScalarPair
)

func (a ABI) String() string {
	switch a {
	case AbiAggregate:
		return "aggregate"
	case AbiScalar:
		return "scalar"
	case AbiScalarPair:
		return "scalar-pair"
	default:
		return "ABI(?)"
	}
}

// ScalarPart locates one scalar half inside a Scalar/ScalarPair layout.
type ScalarPart struct {
	Offset int
	Size   int
	Ptr    bool // the half carries a pointer, not raw bits
}

// VariantLayout is the layout of one enum variant's payload.
// Field offsets are absolute within the whole enum value (the tag
// prefix is already accounted for).
type VariantLayout struct {
	FieldOffsets []int
	Size         int
}

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int
	ABI   ABI

	// AbiScalar: A is valid. AbiScalarPair: A and B are valid.
	A ScalarPart
	B ScalarPart

	// Struct/tuple fields.
	FieldOffsets []int

	// Enum-only: per-variant payload layouts and the tag encoding.
	// The tag is a little-endian unsigned integer at offset 0.
	Variants []VariantLayout
	TagSize  int

	// Unsized types: Size covers only the sized prefix, TailOffset is
	// where the dynamically sized tail begins.
	Unsized    bool
	TailOffset int

	// Uninhabited types (never, zero-variant enums) admit no values.
	Uninhabited bool
}

// IsZeroSized reports a sized layout with no bytes.
func (l TypeLayout) IsZeroSized() bool {
	return !l.Unsized && l.Size == 0
}

// Engine computes and caches memory layout for types.
// The interpreter treats it as a pure oracle: same TypeID, same layout.
type Engine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new layout Engine for the specified target.
func New(target Target, typesIn *types.Interner) *Engine {
	return &Engine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	l, lerr := e.layoutOf(t, newLayoutState())
	if lerr != nil {
		return l, lerr
	}
	return l, nil
}

func (e *Engine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if e.cache == nil {
		e.cache = newCache()
	}
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursive,
			Type:  t,
			Cycle: cycle,
		}
		e.cache.put(t, cacheEntry{Layout: zeroLayout(), Err: err})
		return zeroLayout(), err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.put(t, cacheEntry{Layout: layout, Err: err})
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

func zeroLayout() TypeLayout {
	return TypeLayout{Size: 0, Align: 1, ABI: AbiScalar}
}
