package interp

import (
	"fmt"

	"constvm/internal/mem"
	"constvm/internal/mir"
)

// callIntrinsic resolves an intrinsic body in place, without pushing a
// frame. Every intrinsic here is a pure function of its type argument.
func (ev *Eval) callIntrinsic(body *mir.Body, dst PlaceTy) *EvalError {
	switch body.Intrinsic {
	case "size_of":
		if ev.Types.IsUnsized(body.TypeArg) {
			return ev.eb.notConst("size_of an unsized type")
		}
		size, lerr := ev.Layout.SizeOf(body.TypeArg)
		if lerr != nil {
			return ev.eb.layoutFault(lerr)
		}
		return ev.writeIntrinsicUsize(dst, uint64(size))

	case "min_align_of", "align_of":
		align, lerr := ev.Layout.AlignOf(body.TypeArg)
		if lerr != nil {
			return ev.eb.layoutFault(lerr)
		}
		return ev.writeIntrinsicUsize(dst, uint64(align))

	case "type_id":
		return ev.writeIntrinsicUsize(dst, uint64(body.TypeArg))

	default:
		return ev.eb.unimplemented(fmt.Sprintf("intrinsic %s", body.Intrinsic))
	}
}

func (ev *Eval) writeIntrinsicUsize(dst PlaceTy, v uint64) *EvalError {
	return ev.WriteImmediate(dst, ScalarImm(mem.BitsFrom(v, dst.Layout.A.Size)))
}
