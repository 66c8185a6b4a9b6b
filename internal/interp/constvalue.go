package interp

import (
	"fmt"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/types"
)

// ConstValueKind classifies the final form of an evaluated constant.
type ConstValueKind uint8

const (
	// CVScalar is a single scalar, for scalar-ABI types.
	CVScalar ConstValueKind = iota
	// CVScalarPair is two scalars, for scalar-pair-ABI types.
	CVScalarPair
	// CVSlice is a byte range of an interned allocation: the compact
	// form for &str and &[u8] constants.
	CVSlice
	// CVByRef points at an interned allocation holding the value's
	// full memory image; used for every aggregate.
	CVByRef
)

func (k ConstValueKind) String() string {
	switch k {
	case CVScalar:
		return "scalar"
	case CVScalarPair:
		return "scalar-pair"
	case CVSlice:
		return "slice"
	case CVByRef:
		return "by-ref"
	default:
		return "const-value(?)"
	}
}

// ConstValue is the portable result of one evaluation. Pointers inside
// it refer to interned, immutable allocations of the producing arena.
type ConstValue struct {
	Kind ConstValueKind
	Type types.TypeID

	A mem.Scalar // CVScalar, CVScalarPair
	B mem.Scalar // CVScalarPair

	Data  mem.AllocID // CVSlice
	Start int         // CVSlice: byte offset of the first element
	End   int         // CVSlice: byte offset past the last element

	Ptr mem.Pointer // CVByRef
}

func (cv ConstValue) String() string {
	switch cv.Kind {
	case CVScalar:
		return cv.A.String()
	case CVScalarPair:
		return fmt.Sprintf("(%s, %s)", cv.A, cv.B)
	case CVSlice:
		return fmt.Sprintf("alloc%d[%d..%d]", cv.Data, cv.Start, cv.End)
	case CVByRef:
		return fmt.Sprintf("*%s", cv.Ptr)
	default:
		return "const-value(?)"
	}
}

// PlaceToConstValue converts a finished, interned result place into the
// most compact ConstValue its layout allows. The variant is keyed
// strictly by the ABI class; handing it a place that disagrees with its
// own layout is an interpreter bug, not an evaluation fault.
func (ev *Eval) PlaceToConstValue(pl PlaceTy) (ConstValue, *EvalError) {
	tt := ev.Types.MustLookup(pl.Type)

	// &str and &[u8] get the dedicated slice form.
	if tt.Kind == types.KindRef && ev.isByteSlicePointee(tt.Elem) {
		op := ev.PlaceAsOp(pl)
		im, err := ev.ReadImmediate(op)
		if err != nil {
			return ConstValue{}, err
		}
		if im.Kind != ImmPair {
			panic(fmt.Sprintf("interp: wide reference read as %s", im))
		}
		ptr, aerr := im.A.ToPointer()
		if aerr != nil {
			return ConstValue{}, ev.eb.memFault(aerr)
		}
		n, aerr := im.B.ToBits()
		if aerr != nil {
			return ConstValue{}, ev.eb.memFault(aerr)
		}
		return ConstValue{
			Kind:  CVSlice,
			Type:  pl.Type,
			Data:  ptr.Alloc,
			Start: ptr.Offset,
			End:   ptr.Offset + int(n),
		}, nil
	}

	switch pl.Layout.ABI {
	case layout.AbiScalar:
		im, err := ev.ReadImmediate(ev.PlaceAsOp(pl))
		if err != nil {
			return ConstValue{}, err
		}
		if im.Kind != ImmScalar {
			panic(fmt.Sprintf("interp: scalar-ABI place read as %s", im))
		}
		return ConstValue{Kind: CVScalar, Type: pl.Type, A: im.A}, nil

	case layout.AbiScalarPair:
		im, err := ev.ReadImmediate(ev.PlaceAsOp(pl))
		if err != nil {
			return ConstValue{}, err
		}
		if im.Kind != ImmPair {
			panic(fmt.Sprintf("interp: pair-ABI place read as %s", im))
		}
		return ConstValue{Kind: CVScalarPair, Type: pl.Type, A: im.A, B: im.B}, nil

	case layout.AbiAggregate:
		if err := ev.ForceAllocation(&pl); err != nil {
			return ConstValue{}, err
		}
		return ConstValue{Kind: CVByRef, Type: pl.Type, Ptr: pl.Mem.Ptr}, nil

	default:
		panic(fmt.Sprintf("interp: unknown ABI %d", pl.Layout.ABI))
	}
}

// isByteSlicePointee reports str or [u8]: the pointee shapes whose
// references compact into CVSlice.
func (ev *Eval) isByteSlicePointee(elem types.TypeID) bool {
	tt, ok := ev.Types.Lookup(elem)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindStr:
		return true
	case types.KindSlice:
		et, ok := ev.Types.Lookup(tt.Elem)
		return ok && et.Kind == types.KindUint && et.Width == types.Width8
	default:
		return false
	}
}

// OperandFromConstValue reconstitutes a ConstValue as an operand, the
// inverse of PlaceToConstValue over the same arena.
func (ev *Eval) OperandFromConstValue(cv ConstValue) (OpTy, *EvalError) {
	l, err := ev.layoutOf(cv.Type)
	if err != nil {
		return OpTy{}, err
	}
	switch cv.Kind {
	case CVScalar:
		return immOp(ScalarImm(cv.A), cv.Type, l), nil
	case CVScalarPair:
		return immOp(PairImm(cv.A, cv.B), cv.Type, l), nil
	case CVSlice:
		ptr := mem.Pointer{Alloc: cv.Data, Offset: cv.Start}
		n := mem.BitsFrom(uint64(cv.End-cv.Start), ev.Mem.PtrSize())
		return immOp(PairImm(mem.FromPointer(ptr), n), cv.Type, l), nil
	case CVByRef:
		return memOp(MemPlace{Ptr: cv.Ptr, Align: l.Align}, cv.Type, l), nil
	default:
		panic(fmt.Sprintf("interp: unknown const value kind %d", cv.Kind))
	}
}

// SliceBytes extracts the byte payload of a CVSlice value.
func (ev *Eval) SliceBytes(cv ConstValue) ([]byte, *EvalError) {
	if cv.Kind != CVSlice {
		return nil, ev.eb.typeMismatch("slice constant", cv.Kind.String())
	}
	b, aerr := ev.Mem.ReadBytes(mem.Pointer{Alloc: cv.Data, Offset: cv.Start}, cv.End-cv.Start)
	if aerr != nil {
		return nil, ev.eb.memFault(aerr)
	}
	return append([]byte(nil), b...), nil
}
