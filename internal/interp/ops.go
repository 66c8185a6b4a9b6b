package interp

import (
	"math"
	"math/bits"

	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
)

func minSigned(size int) int64 {
	if size >= 8 {
		return math.MinInt64
	}
	return -(int64(1) << uint(8*size-1))
}

func maxSigned(size int) int64 {
	if size >= 8 {
		return math.MaxInt64
	}
	return int64(1)<<uint(8*size-1) - 1
}

func maxUnsigned(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return 1<<uint(8*size) - 1
}

func floatFromBits(raw uint64, size int) float64 {
	if size == 4 {
		return float64(math.Float32frombits(uint32(raw)))
	}
	return math.Float64frombits(raw)
}

func floatScalar(f float64, size int) mem.Scalar {
	if size == 4 {
		return mem.NewBits(uint64(math.Float32bits(float32(f))), 4)
	}
	return mem.NewBits(math.Float64bits(f), 8)
}

// unaryOp applies a unary operator to a scalar operand.
func (ev *Eval) unaryOp(op mir.UnOp, v OpTy) (mem.Scalar, *EvalError) {
	im, err := ev.ReadImmediate(v)
	if err != nil {
		return mem.Scalar{}, err
	}
	if im.Kind != ImmScalar {
		return mem.Scalar{}, ev.eb.typeMismatch("scalar operand", im.String())
	}
	tt := ev.Types.MustLookup(v.Type)
	size := v.Layout.A.Size

	switch op {
	case mir.UnNeg:
		switch tt.Kind {
		case types.KindInt:
			i, aerr := im.A.ToInt(size)
			if aerr != nil {
				return mem.Scalar{}, ev.eb.memFault(aerr)
			}
			if i == minSigned(size) {
				return mem.Scalar{}, ev.eb.overflow("neg")
			}
			return mem.FromInt(-i, size), nil
		case types.KindFloat:
			raw, aerr := im.A.ToUint(size)
			if aerr != nil {
				return mem.Scalar{}, ev.eb.memFault(aerr)
			}
			return floatScalar(-floatFromBits(raw, size), size), nil
		default:
			return mem.Scalar{}, ev.eb.typeMismatch("numeric operand", tt.Kind.String())
		}

	case mir.UnNot:
		switch tt.Kind {
		case types.KindBool:
			b, aerr := im.A.ToBool()
			if aerr != nil {
				return mem.Scalar{}, ev.eb.memFault(aerr)
			}
			return mem.FromBool(!b), nil
		case types.KindInt, types.KindUint:
			raw, aerr := im.A.ToUint(size)
			if aerr != nil {
				return mem.Scalar{}, ev.eb.memFault(aerr)
			}
			return mem.BitsFrom(^raw, size), nil
		default:
			return mem.Scalar{}, ev.eb.typeMismatch("integer or bool operand", tt.Kind.String())
		}

	default:
		return mem.Scalar{}, ev.eb.unimplemented("unary operator")
	}
}

// binaryOp applies a binary operator. The boolean result reports
// overflow; the scalar always holds the wrapped value so checked
// arithmetic can hand both to the caller.
func (ev *Eval) binaryOp(op mir.BinOp, l, r OpTy) (mem.Scalar, bool, *EvalError) {
	li, err := ev.ReadImmediate(l)
	if err != nil {
		return mem.Scalar{}, false, err
	}
	ri, err := ev.ReadImmediate(r)
	if err != nil {
		return mem.Scalar{}, false, err
	}
	if li.Kind != ImmScalar || ri.Kind != ImmScalar {
		return mem.Scalar{}, false, ev.eb.typeMismatch("scalar operands", li.String()+", "+ri.String())
	}

	// Pointer identity: the only pointer arithmetic a constant may do.
	if li.A.Kind == mem.SKPointer || ri.A.Kind == mem.SKPointer {
		return ev.pointerCompare(op, li.A, ri.A)
	}

	tt := ev.Types.MustLookup(l.Type)
	size := l.Layout.A.Size

	switch tt.Kind {
	case types.KindInt:
		return ev.signedBinOp(op, li.A, ri.A, size)
	case types.KindUint, types.KindChar:
		return ev.unsignedBinOp(op, li.A, ri.A, size)
	case types.KindBool:
		return ev.boolBinOp(op, li.A, ri.A)
	case types.KindFloat:
		return ev.floatBinOp(op, li.A, ri.A, size)
	default:
		return mem.Scalar{}, false, ev.eb.typeMismatch("primitive operands", tt.Kind.String())
	}
}

func (ev *Eval) pointerCompare(op mir.BinOp, a, b mem.Scalar) (mem.Scalar, bool, *EvalError) {
	same := a.Kind == mem.SKPointer && b.Kind == mem.SKPointer &&
		a.Ptr.Alloc == b.Ptr.Alloc && a.Ptr.Offset == b.Ptr.Offset
	switch op {
	case mir.BinEq:
		return mem.FromBool(same), false, nil
	case mir.BinNe:
		return mem.FromBool(!same), false, nil
	default:
		return mem.Scalar{}, false, ev.eb.notConst("pointer arithmetic is not evaluable at compile time")
	}
}

func (ev *Eval) signedBinOp(op mir.BinOp, a, b mem.Scalar, size int) (mem.Scalar, bool, *EvalError) {
	x, aerr := a.ToInt(size)
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	min, max := minSigned(size), maxSigned(size)

	switch op {
	case mir.BinShl, mir.BinShr:
		sh, aerr := b.ToBits()
		if aerr != nil {
			return mem.Scalar{}, false, ev.eb.memFault(aerr)
		}
		ovf := sh >= uint64(8*size)
		masked := uint(sh) % uint(8*size)
		if op == mir.BinShl {
			return mem.BitsFrom(uint64(x)<<masked, size), ovf, nil
		}
		return mem.FromInt(x>>masked, size), ovf, nil
	}

	y, aerr := b.ToInt(size)
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}

	switch op {
	case mir.BinAdd:
		ovf := (y > 0 && x > max-y) || (y < 0 && x < min-y)
		return mem.BitsFrom(uint64(x+y), size), ovf, nil
	case mir.BinSub:
		ovf := (y > 0 && x < min+y) || (y < 0 && x > max+y)
		return mem.BitsFrom(uint64(x-y), size), ovf, nil
	case mir.BinMul:
		r := x * y
		if size < 8 {
			// Products of sub-64-bit operands are exact in int64.
			return mem.BitsFrom(uint64(r), size), r < min || r > max, nil
		}
		ovf := x != 0 && (r/x != y || (x == -1 && y == math.MinInt64))
		return mem.BitsFrom(uint64(r), size), ovf, nil
	case mir.BinDiv:
		if y == 0 {
			return mem.Scalar{}, false, ev.eb.divByZero("division")
		}
		if x == min && y == -1 {
			return mem.BitsFrom(uint64(min), size), true, nil
		}
		return mem.FromInt(x/y, size), false, nil
	case mir.BinRem:
		if y == 0 {
			return mem.Scalar{}, false, ev.eb.divByZero("remainder")
		}
		if x == min && y == -1 {
			return mem.FromInt(0, size), true, nil
		}
		return mem.FromInt(x%y, size), false, nil
	case mir.BinBitAnd:
		return mem.FromInt(x&y, size), false, nil
	case mir.BinBitOr:
		return mem.FromInt(x|y, size), false, nil
	case mir.BinBitXor:
		return mem.FromInt(x^y, size), false, nil
	case mir.BinEq:
		return mem.FromBool(x == y), false, nil
	case mir.BinNe:
		return mem.FromBool(x != y), false, nil
	case mir.BinLt:
		return mem.FromBool(x < y), false, nil
	case mir.BinLe:
		return mem.FromBool(x <= y), false, nil
	case mir.BinGt:
		return mem.FromBool(x > y), false, nil
	case mir.BinGe:
		return mem.FromBool(x >= y), false, nil
	default:
		return mem.Scalar{}, false, ev.eb.unimplemented("signed binary operator")
	}
}

func (ev *Eval) unsignedBinOp(op mir.BinOp, a, b mem.Scalar, size int) (mem.Scalar, bool, *EvalError) {
	x, aerr := a.ToBits()
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	max := maxUnsigned(size)

	switch op {
	case mir.BinShl, mir.BinShr:
		sh, aerr := b.ToBits()
		if aerr != nil {
			return mem.Scalar{}, false, ev.eb.memFault(aerr)
		}
		ovf := sh >= uint64(8*size)
		masked := uint(sh) % uint(8*size)
		if op == mir.BinShl {
			return mem.BitsFrom(x<<masked, size), ovf, nil
		}
		return mem.BitsFrom(x>>masked, size), ovf, nil
	}

	y, aerr := b.ToBits()
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}

	switch op {
	case mir.BinAdd:
		if size < 8 {
			r := x + y
			return mem.BitsFrom(r, size), r > max, nil
		}
		sum, carry := bits.Add64(x, y, 0)
		return mem.BitsFrom(sum, size), carry != 0, nil
	case mir.BinSub:
		return mem.BitsFrom(x-y, size), y > x, nil
	case mir.BinMul:
		if size < 8 {
			r := x * y
			return mem.BitsFrom(r, size), r > max, nil
		}
		hi, lo := bits.Mul64(x, y)
		return mem.BitsFrom(lo, size), hi != 0, nil
	case mir.BinDiv:
		if y == 0 {
			return mem.Scalar{}, false, ev.eb.divByZero("division")
		}
		return mem.BitsFrom(x/y, size), false, nil
	case mir.BinRem:
		if y == 0 {
			return mem.Scalar{}, false, ev.eb.divByZero("remainder")
		}
		return mem.BitsFrom(x%y, size), false, nil
	case mir.BinBitAnd:
		return mem.BitsFrom(x&y, size), false, nil
	case mir.BinBitOr:
		return mem.BitsFrom(x|y, size), false, nil
	case mir.BinBitXor:
		return mem.BitsFrom(x^y, size), false, nil
	case mir.BinEq:
		return mem.FromBool(x == y), false, nil
	case mir.BinNe:
		return mem.FromBool(x != y), false, nil
	case mir.BinLt:
		return mem.FromBool(x < y), false, nil
	case mir.BinLe:
		return mem.FromBool(x <= y), false, nil
	case mir.BinGt:
		return mem.FromBool(x > y), false, nil
	case mir.BinGe:
		return mem.FromBool(x >= y), false, nil
	default:
		return mem.Scalar{}, false, ev.eb.unimplemented("unsigned binary operator")
	}
}

func (ev *Eval) boolBinOp(op mir.BinOp, a, b mem.Scalar) (mem.Scalar, bool, *EvalError) {
	x, aerr := a.ToBool()
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	y, aerr := b.ToBool()
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	switch op {
	case mir.BinBitAnd:
		return mem.FromBool(x && y), false, nil
	case mir.BinBitOr:
		return mem.FromBool(x || y), false, nil
	case mir.BinBitXor:
		return mem.FromBool(x != y), false, nil
	case mir.BinEq:
		return mem.FromBool(x == y), false, nil
	case mir.BinNe:
		return mem.FromBool(x != y), false, nil
	default:
		return mem.Scalar{}, false, ev.eb.typeMismatch("boolean operator", binOpName(op))
	}
}

func (ev *Eval) floatBinOp(op mir.BinOp, a, b mem.Scalar, size int) (mem.Scalar, bool, *EvalError) {
	ax, aerr := a.ToUint(size)
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	bx, aerr := b.ToUint(size)
	if aerr != nil {
		return mem.Scalar{}, false, ev.eb.memFault(aerr)
	}
	x := floatFromBits(ax, size)
	y := floatFromBits(bx, size)

	switch op {
	case mir.BinAdd:
		return floatScalar(x+y, size), false, nil
	case mir.BinSub:
		return floatScalar(x-y, size), false, nil
	case mir.BinMul:
		return floatScalar(x*y, size), false, nil
	case mir.BinDiv:
		// IEEE division by zero yields infinity, not a fault.
		return floatScalar(x/y, size), false, nil
	case mir.BinRem:
		return floatScalar(math.Mod(x, y), size), false, nil
	case mir.BinEq:
		return mem.FromBool(x == y), false, nil
	case mir.BinNe:
		return mem.FromBool(x != y), false, nil
	case mir.BinLt:
		return mem.FromBool(x < y), false, nil
	case mir.BinLe:
		return mem.FromBool(x <= y), false, nil
	case mir.BinGt:
		return mem.FromBool(x > y), false, nil
	case mir.BinGe:
		return mem.FromBool(x >= y), false, nil
	default:
		return mem.Scalar{}, false, ev.eb.typeMismatch("float operator", binOpName(op))
	}
}

// castOp converts a scalar between numeric types. Integer casts wrap,
// float-to-integer casts saturate, NaN becomes zero.
func (ev *Eval) castOp(v OpTy, target types.TypeID) (mem.Scalar, *EvalError) {
	im, err := ev.ReadImmediate(v)
	if err != nil {
		return mem.Scalar{}, err
	}
	if im.Kind != ImmScalar {
		return mem.Scalar{}, ev.eb.typeMismatch("scalar operand", im.String())
	}
	if im.A.Kind == mem.SKPointer {
		return mem.Scalar{}, ev.eb.notConst("pointer-to-integer cast is not evaluable at compile time")
	}

	srcTT := ev.Types.MustLookup(v.Type)
	dstTT := ev.Types.MustLookup(target)
	dstLayout, lerr := ev.layoutOf(target)
	if lerr != nil {
		return mem.Scalar{}, lerr
	}
	srcSize := v.Layout.A.Size
	dstSize := dstLayout.A.Size

	switch srcTT.Kind {
	case types.KindBool, types.KindChar, types.KindUint:
		raw, aerr := im.A.ToBits()
		if aerr != nil {
			return mem.Scalar{}, ev.eb.memFault(aerr)
		}
		switch dstTT.Kind {
		case types.KindInt, types.KindUint, types.KindChar:
			return mem.BitsFrom(raw, dstSize), nil
		case types.KindFloat:
			return floatScalar(float64(raw), dstSize), nil
		}

	case types.KindInt:
		i, aerr := im.A.ToInt(srcSize)
		if aerr != nil {
			return mem.Scalar{}, ev.eb.memFault(aerr)
		}
		switch dstTT.Kind {
		case types.KindInt, types.KindUint:
			return mem.BitsFrom(uint64(i), dstSize), nil
		case types.KindFloat:
			return floatScalar(float64(i), dstSize), nil
		}

	case types.KindFloat:
		raw, aerr := im.A.ToUint(srcSize)
		if aerr != nil {
			return mem.Scalar{}, ev.eb.memFault(aerr)
		}
		f := floatFromBits(raw, srcSize)
		switch dstTT.Kind {
		case types.KindFloat:
			return floatScalar(f, dstSize), nil
		case types.KindInt:
			return mem.BitsFrom(uint64(saturateSigned(f, dstSize)), dstSize), nil
		case types.KindUint:
			return mem.BitsFrom(saturateUnsigned(f, dstSize), dstSize), nil
		}
	}
	return mem.Scalar{}, ev.eb.typeMismatch(
		"numeric cast", srcTT.Kind.String()+" as "+dstTT.Kind.String())
}

func saturateSigned(f float64, size int) int64 {
	if math.IsNaN(f) {
		return 0
	}
	min, max := minSigned(size), maxSigned(size)
	if f <= float64(min) {
		return min
	}
	if f >= float64(max) {
		return max
	}
	return int64(f)
}

func saturateUnsigned(f float64, size int) uint64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	max := maxUnsigned(size)
	if f >= float64(max) {
		return max
	}
	return uint64(f)
}
