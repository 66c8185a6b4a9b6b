package layout

import (
	"fortio.org/safecast"

	"constvm/internal/types"
)

// sizeCap caps computed sizes well below int64 overflow so that
// offset arithmetic in the evaluator can never wrap.
const sizeCap = int(1) << 47

func (e *Engine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	typesIn := e.Types
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "unknown type"}
	}

	switch tt.Kind {
	case types.KindBool:
		return scalarLayout(1), nil

	case types.KindChar:
		return scalarLayout(4), nil

	case types.KindInt, types.KindUint, types.KindFloat:
		return scalarLayout(tt.Width.Bytes()), nil

	case types.KindRef, types.KindRawPtr:
		if typesIn.IsUnsized(tt.Elem) {
			return e.widePtrLayout(), nil
		}
		return e.thinPtrLayout(), nil

	case types.KindFnPtr:
		return e.thinPtrLayout(), nil

	case types.KindFnDef:
		// Function items are zero-sized.
		return zeroLayout(), nil

	case types.KindNever:
		l := zeroLayout()
		l.Uninhabited = true
		return l, nil

	case types.KindTuple:
		info, ok := typesIn.TupleInfo(id)
		if !ok || len(info.Elems) == 0 {
			return zeroLayout(), nil
		}
		return e.recordLayout(id, info.Elems, state)

	case types.KindStruct:
		fields, ok := typesIn.VariantFieldTypes(id, 0)
		if !ok {
			return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "struct without declaration"}
		}
		return e.recordLayout(id, fields, state)

	case types.KindUnion:
		return e.unionLayout(id, state)

	case types.KindEnum:
		return e.enumLayout(id, state)

	case types.KindArray:
		count, cerr := safecast.Conv[int](tt.Count)
		if cerr != nil {
			return zeroLayout(), &LayoutError{Kind: LayoutErrTooLarge, Type: id}
		}
		return e.arrayLayout(id, tt.Elem, count, state)

	case types.KindSlice:
		el, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return zeroLayout(), err
		}
		return TypeLayout{
			Size:    0,
			Align:   maxInt(1, el.Align),
			ABI:     AbiAggregate,
			Unsized: true,
		}, nil

	case types.KindStr:
		return TypeLayout{
			Size:    0,
			Align:   1,
			ABI:     AbiAggregate,
			Unsized: true,
		}, nil

	case types.KindDynamic, types.KindClosure, types.KindGenerator, types.KindParam, types.KindInvalid:
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: tt.Kind.String()}

	default:
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: tt.Kind.String()}
	}
}

func (e *Engine) thinPtrLayout() TypeLayout {
	p := e.ptrPart(0)
	return TypeLayout{
		Size:  p.Size,
		Align: maxInt(1, e.Target.PtrAlign),
		ABI:   AbiScalar,
		A:     p,
	}
}

// widePtrLayout lays out a pointer to an unsized value: the address
// followed by a usize length/metadata word.
func (e *Engine) widePtrLayout() TypeLayout {
	ptrSize := e.ptrSize()
	return TypeLayout{
		Size:  2 * ptrSize,
		Align: maxInt(1, e.Target.PtrAlign),
		ABI:   AbiScalarPair,
		A:     e.ptrPart(0),
		B:     ScalarPart{Offset: ptrSize, Size: ptrSize},
	}
}

func (e *Engine) ptrPart(offset int) ScalarPart {
	return ScalarPart{Offset: offset, Size: e.ptrSize(), Ptr: true}
}

func (e *Engine) ptrSize() int {
	if e.Target.PtrSize <= 0 {
		return 8
	}
	return e.Target.PtrSize
}

func scalarLayout(size int) TypeLayout {
	if size <= 0 {
		return zeroLayout()
	}
	return TypeLayout{
		Size:  size,
		Align: size,
		ABI:   AbiScalar,
		A:     ScalarPart{Offset: 0, Size: size},
	}
}

// Stride is the distance between consecutive array/slice elements of a
// layout: the size rounded up to the alignment.
func Stride(l TypeLayout) int {
	return roundUp(l.Size, maxInt(1, l.Align))
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// recordLayout lays out tuple/struct fields in declaration order and
// classifies the result's ABI from its non-zero-sized scalar fields.
func (e *Engine) recordLayout(id types.TypeID, fields []types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	offsets := make([]int, len(fields))
	parts := make([]ScalarPart, 0, 2)
	scalarFields := 0
	nonZST := 0
	uninhabited := false

	size := 0
	align := 1
	unsized := false
	tailOffset := 0
	for i, f := range fields {
		if unsized {
			// Only the last field may be unsized.
			return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "unsized field before tail"}
		}
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return zeroLayout(), err
		}
		fAlign := maxInt(1, fl.Align)
		size = roundUp(size, fAlign)
		offsets[i] = size
		align = maxInt(align, fAlign)
		if fl.Uninhabited {
			uninhabited = true
		}
		if fl.Unsized {
			unsized = true
			tailOffset = size + fl.TailOffset
			size += fl.Size
			continue
		}
		if fl.Size > 0 {
			nonZST++
			if fl.ABI == AbiScalar {
				scalarFields++
				if len(parts) < 2 {
					p := fl.A
					p.Offset += size
					parts = append(parts, p)
				}
			}
		}
		size += fl.Size
		if size > sizeCap {
			return zeroLayout(), &LayoutError{Kind: LayoutErrTooLarge, Type: id}
		}
	}
	if !unsized {
		size = roundUp(size, align)
	}

	l := TypeLayout{
		Size:         size,
		Align:        align,
		ABI:          AbiAggregate,
		FieldOffsets: offsets,
		Unsized:      unsized,
		TailOffset:   tailOffset,
		Uninhabited:  uninhabited,
	}
	if unsized {
		return l, nil
	}
	switch {
	case nonZST == 0:
		l.ABI = AbiScalar
		l.A = ScalarPart{}
	case nonZST == 1 && scalarFields == 1:
		l.ABI = AbiScalar
		l.A = parts[0]
	case nonZST == 2 && scalarFields == 2:
		l.ABI = AbiScalarPair
		l.A = parts[0]
		l.B = parts[1]
	}
	return l, nil
}

func (e *Engine) unionLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	fields, ok := e.Types.VariantFieldTypes(id, 0)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "union without declaration"}
	}
	size := 0
	align := 1
	offsets := make([]int, len(fields))
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return zeroLayout(), err
		}
		offsets[i] = 0
		size = maxInt(size, fl.Size)
		align = maxInt(align, fl.Align)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		ABI:          AbiAggregate,
		FieldOffsets: offsets,
	}, nil
}

// enumTagSize is the fixed width of the discriminant tag in bytes.
// The tag is stored at offset 0, payload fields follow.
const enumTagSize = 4

func (e *Engine) enumLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.AdtInfo(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "enum without declaration"}
	}
	if len(info.Variants) == 0 {
		l := zeroLayout()
		l.ABI = AbiAggregate
		l.Uninhabited = true
		return l, nil
	}

	align := enumTagSize
	end := enumTagSize
	variants := make([]VariantLayout, len(info.Variants))
	for vi := range info.Variants {
		fields := info.Variants[vi].Fields
		offsets := make([]int, len(fields))
		size := enumTagSize
		for i, f := range fields {
			fl, err := e.layoutOf(f.Type, state)
			if err != nil {
				return zeroLayout(), err
			}
			if fl.Unsized {
				return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "unsized enum payload"}
			}
			fAlign := maxInt(1, fl.Align)
			size = roundUp(size, fAlign)
			offsets[i] = size
			size += fl.Size
			align = maxInt(align, fAlign)
			if size > sizeCap {
				return zeroLayout(), &LayoutError{Kind: LayoutErrTooLarge, Type: id}
			}
		}
		variants[vi] = VariantLayout{FieldOffsets: offsets, Size: size}
		end = maxInt(end, size)
	}
	size := roundUp(end, align)
	return TypeLayout{
		Size:     size,
		Align:    align,
		ABI:      AbiAggregate,
		Variants: variants,
		TagSize:  enumTagSize,
	}, nil
}

func (e *Engine) arrayLayout(id, elem types.TypeID, count int, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return zeroLayout(), err
	}
	if el.Unsized {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknown, Type: id, What: "array of unsized elements"}
	}
	elemAlign := maxInt(1, el.Align)
	stride := roundUp(el.Size, elemAlign)
	if count < 0 {
		count = 0
	}
	if stride != 0 && count > sizeCap/stride {
		return zeroLayout(), &LayoutError{Kind: LayoutErrTooLarge, Type: id}
	}
	size := stride * count
	l := TypeLayout{
		Size:        size,
		Align:       elemAlign,
		ABI:         AbiAggregate,
		Uninhabited: el.Uninhabited && count > 0,
	}
	if size == 0 {
		l.ABI = AbiScalar
		l.Align = elemAlign
	}
	return l, nil
}
