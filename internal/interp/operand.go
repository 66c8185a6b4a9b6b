package interp

import (
	"fmt"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/mir"
)

// evalOperand evaluates a constant or reads a place, without copying
// memory-resident aggregates.
func (ev *Eval) evalOperand(frameIdx int, op *mir.Operand) (OpTy, *EvalError) {
	switch op.Kind {
	case mir.OperandConst:
		return ev.evalConstOperand(&op.Const)
	case mir.OperandCopy, mir.OperandMove:
		pl, err := ev.evalPlace(frameIdx, op.Place)
		if err != nil {
			return OpTy{}, err
		}
		return ev.PlaceAsOp(pl), nil
	default:
		panic(fmt.Sprintf("interp: unknown operand kind %d", op.Kind))
	}
}

func (ev *Eval) evalConstOperand(c *mir.Const) (OpTy, *EvalError) {
	l, err := ev.layoutOf(c.Type)
	if err != nil {
		return OpTy{}, err
	}
	switch c.Kind {
	case mir.ConstScalar:
		if l.ABI != layout.AbiScalar {
			return OpTy{}, ev.eb.typeMismatch("scalar-ABI constant type", l.ABI.String())
		}
		return immOp(ScalarImm(mem.BitsFrom(c.Bits, l.A.Size)), c.Type, l), nil

	case mir.ConstZeroSized, mir.ConstFn:
		// Function items are zero-sized; the item itself travels in
		// the operand, not in the value.
		return immOp(ScalarImm(mem.ZeroSized()), c.Type, l), nil

	case mir.ConstStr:
		ptr, err := ev.materializeStr(c.Str)
		if err != nil {
			return OpTy{}, err
		}
		lenScalar := mem.BitsFrom(uint64(len(c.Str)), ev.Mem.PtrSize())
		return immOp(PairImm(mem.FromPointer(ptr), lenScalar), c.Type, l), nil

	default:
		panic(fmt.Sprintf("interp: unknown const kind %d", c.Kind))
	}
}

// materializeStr interns a string literal's bytes, once per distinct
// literal per evaluator.
func (ev *Eval) materializeStr(s string) (mem.Pointer, *EvalError) {
	if ptr, ok := ev.strCache[s]; ok {
		return ptr, nil
	}
	ptr, aerr := ev.Mem.Allocate(len(s), 1, mem.AllocValue)
	if aerr != nil {
		return mem.Pointer{}, ev.eb.memFault(aerr)
	}
	if aerr := ev.Mem.WriteBytes(ptr, []byte(s)); aerr != nil {
		return mem.Pointer{}, ev.eb.memFault(aerr)
	}
	if aerr := ev.Mem.InternRecursive(ptr.Alloc); aerr != nil {
		return mem.Pointer{}, ev.eb.memFault(aerr)
	}
	if ev.tagPointers {
		ptr.Tag = mem.ProvShared
	}
	if ev.strCache == nil {
		ev.strCache = make(map[string]mem.Pointer, 8)
	}
	ev.strCache[s] = ptr
	return ptr, nil
}

// PlaceAsOp views a resolved place as an operand. Immediate-backed
// locals stay immediate; everything else stays by reference.
func (ev *Eval) PlaceAsOp(pl PlaceTy) OpTy {
	if pl.Kind == PlaceLocal {
		slot := ev.Stack[pl.FrameIdx].slot(pl.Local)
		if slot.State == slotImm {
			return immOp(slot.Imm, pl.Type, pl.Layout)
		}
		return memOp(slot.Mem, pl.Type, pl.Layout)
	}
	return memOp(pl.Mem, pl.Type, pl.Layout)
}

// partAlign is the natural alignment of one scalar half.
func partAlign(p layout.ScalarPart) int {
	if p.Size <= 0 {
		return 1
	}
	return p.Size
}

// ReadImmediate forces an operand into at most two scalars. Calling it
// on an aggregate-ABI operand is an interpreter bug, not an evaluation
// fault.
func (ev *Eval) ReadImmediate(op OpTy) (Immediate, *EvalError) {
	if op.IsImm {
		if op.Imm.Kind == ImmUninit {
			return Immediate{}, ev.eb.makeError(EvalMemoryFault, "read of uninitialized value")
		}
		return op.Imm, nil
	}
	if op.Layout.IsZeroSized() {
		return ScalarImm(mem.ZeroSized()), nil
	}
	switch op.Layout.ABI {
	case layout.AbiScalar:
		a, aerr := ev.Mem.ReadScalarInit(op.Mem.Ptr.WithOffset(op.Layout.A.Offset), op.Layout.A.Size, partAlign(op.Layout.A))
		if aerr != nil {
			return Immediate{}, ev.eb.memFault(aerr)
		}
		return ScalarImm(a), nil

	case layout.AbiScalarPair:
		a, aerr := ev.Mem.ReadScalarInit(op.Mem.Ptr.WithOffset(op.Layout.A.Offset), op.Layout.A.Size, partAlign(op.Layout.A))
		if aerr != nil {
			return Immediate{}, ev.eb.memFault(aerr)
		}
		b, aerr := ev.Mem.ReadScalarInit(op.Mem.Ptr.WithOffset(op.Layout.B.Offset), op.Layout.B.Size, partAlign(op.Layout.B))
		if aerr != nil {
			return Immediate{}, ev.eb.memFault(aerr)
		}
		return PairImm(a, b), nil

	default:
		panic(fmt.Sprintf("interp: read_immediate on %s layout", op.Layout.ABI))
	}
}

// WriteImmediate stores an immediate into a place. Immediate-backed
// locals take the value directly; memory places decompose it per the
// layout's ABI.
func (ev *Eval) WriteImmediate(dst PlaceTy, im Immediate) *EvalError {
	if dst.Kind == PlaceLocal {
		slot := ev.Stack[dst.FrameIdx].slot(dst.Local)
		if slot.State == slotImm {
			slot.Imm = im
			return nil
		}
		dst.Kind = PlaceMem
		dst.Mem = slot.Mem
	}
	return ev.writeImmediateToMem(dst.Mem, dst.Layout, im)
}

func (ev *Eval) writeImmediateToMem(mp MemPlace, l layout.TypeLayout, im Immediate) *EvalError {
	if l.IsZeroSized() {
		return nil
	}
	switch l.ABI {
	case layout.AbiScalar:
		if im.Kind != ImmScalar {
			return ev.eb.typeMismatch("scalar immediate", im.String())
		}
		if aerr := ev.Mem.WriteScalar(mp.Ptr.WithOffset(l.A.Offset), im.A, l.A.Size, partAlign(l.A)); aerr != nil {
			return ev.eb.memFault(aerr)
		}
		return nil

	case layout.AbiScalarPair:
		if im.Kind != ImmPair {
			return ev.eb.typeMismatch("scalar-pair immediate", im.String())
		}
		if aerr := ev.Mem.WriteScalar(mp.Ptr.WithOffset(l.A.Offset), im.A, l.A.Size, partAlign(l.A)); aerr != nil {
			return ev.eb.memFault(aerr)
		}
		if aerr := ev.Mem.WriteScalar(mp.Ptr.WithOffset(l.B.Offset), im.B, l.B.Size, partAlign(l.B)); aerr != nil {
			return ev.eb.memFault(aerr)
		}
		return nil

	default:
		panic(fmt.Sprintf("interp: write_immediate to %s layout", l.ABI))
	}
}

// WriteOperand copies an evaluated operand into a place.
func (ev *Eval) WriteOperand(dst PlaceTy, src OpTy) *EvalError {
	if dst.Layout.IsZeroSized() {
		if dst.Kind == PlaceLocal {
			// Mark the local initialized so later reads succeed.
			return ev.WriteImmediate(dst, ScalarImm(mem.ZeroSized()))
		}
		return nil
	}
	if src.IsImm {
		return ev.WriteImmediate(dst, src.Imm)
	}
	if dst.Kind == PlaceLocal {
		slot := ev.Stack[dst.FrameIdx].slot(dst.Local)
		if slot.State == slotImm {
			switch dst.Layout.ABI {
			case layout.AbiScalar, layout.AbiScalarPair:
				im, err := ev.ReadImmediate(src)
				if err != nil {
					return err
				}
				return ev.WriteImmediate(dst, im)
			}
		}
	}
	if err := ev.ForceAllocation(&dst); err != nil {
		return err
	}
	if src.Layout.Unsized || dst.Layout.Unsized {
		return ev.eb.typeMismatch("sized copy", "unsized value")
	}
	if aerr := ev.Mem.Copy(src.Mem.Ptr, dst.Mem.Ptr, dst.Layout.Size); aerr != nil {
		return ev.eb.memFault(aerr)
	}
	return nil
}
