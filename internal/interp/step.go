package interp

import (
	"fmt"

	"constvm/internal/mem"
	"constvm/internal/mir"
)

// Step executes one statement or one terminator of the top frame.
// fetch-execute: the frame's (block, ip) pair is the program counter.
func (ev *Eval) Step() *EvalError {
	if len(ev.Stack) == 0 {
		return nil
	}
	ev.steps++
	if ev.steps > ev.Limits.MaxSteps {
		return ev.eb.makeError(EvalStepLimit,
			fmt.Sprintf("evaluation exceeds %d steps", ev.Limits.MaxSteps))
	}

	frame := ev.top()
	if frame.AtTerminator() {
		block := frame.CurrentBlock()
		if block == nil {
			panic(fmt.Sprintf("interp: frame at invalid block bb%d", frame.BB))
		}
		ev.Tracer.TraceTerm(len(ev.Stack), frame.Body.Name, frame.BB, &block.Term)
		return ev.execTerminator(&block.Term)
	}

	st := frame.CurrentStmt()
	ev.Tracer.TraceStmt(len(ev.Stack), frame.Body.Name, frame.BB, frame.IP, st)
	if err := ev.execStatement(st); err != nil {
		return err
	}
	// Statements never change the stack; only terminators do.
	ev.top().IP++
	return nil
}

func (ev *Eval) execStatement(st *mir.Statement) *EvalError {
	frameIdx := len(ev.Stack) - 1
	switch st.Kind {
	case mir.StmtAssign:
		dst, err := ev.evalPlace(frameIdx, st.Assign.Dst)
		if err != nil {
			return err
		}
		return ev.evalRValue(frameIdx, &st.Assign.Src, dst)

	case mir.StmtSetDiscriminant:
		pl, err := ev.evalPlace(frameIdx, st.SetDiscriminant.Place)
		if err != nil {
			return err
		}
		return ev.WriteDiscriminant(pl, st.SetDiscriminant.Variant)

	case mir.StmtStorageLive:
		return ev.storageLive(frameIdx, st.Storage.Local)

	case mir.StmtStorageDead:
		return ev.storageDead(frameIdx, st.Storage.Local)

	case mir.StmtNop:
		return nil

	default:
		panic(fmt.Sprintf("interp: unknown statement kind %d", st.Kind))
	}
}

// storageLive resets a local to a fresh live slot. Re-living a local
// discards its previous storage.
func (ev *Eval) storageLive(frameIdx int, l mir.LocalID) *EvalError {
	frame := &ev.Stack[frameIdx]
	if int(l) < 0 || int(l) >= len(frame.Locals) {
		return ev.eb.makeError(EvalTypeMismatch, fmt.Sprintf("local L%d does not exist", l))
	}
	slot := frame.slot(l)
	if slot.State == slotMem {
		if aerr := ev.Mem.Deallocate(slot.Mem.Ptr.Alloc); aerr != nil {
			return ev.eb.memFault(aerr)
		}
	}
	slot.State = slotImm
	slot.Imm = Immediate{Kind: ImmUninit}
	slot.Mem = MemPlace{}
	return nil
}

// storageDead releases a local's storage; later access faults.
func (ev *Eval) storageDead(frameIdx int, l mir.LocalID) *EvalError {
	frame := &ev.Stack[frameIdx]
	if int(l) < 0 || int(l) >= len(frame.Locals) {
		return ev.eb.makeError(EvalTypeMismatch, fmt.Sprintf("local L%d does not exist", l))
	}
	slot := frame.slot(l)
	if slot.State == slotMem {
		// Interned allocations survive: the result may point into them.
		if a, aerr := ev.Mem.Get(slot.Mem.Ptr.Alloc); aerr == nil && a.Mutable() && a.Kind() == mem.AllocStack {
			if derr := ev.Mem.Deallocate(slot.Mem.Ptr.Alloc); derr != nil {
				return ev.eb.memFault(derr)
			}
		}
	}
	slot.State = slotDead
	slot.Imm = Immediate{Kind: ImmUninit}
	slot.Mem = MemPlace{}
	return nil
}
