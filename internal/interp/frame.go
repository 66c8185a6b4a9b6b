package interp

import (
	"constvm/internal/mir"
	"constvm/internal/types"
)

// slotState tracks where a local's value lives.
type slotState uint8

const (
	// slotDead locals have no storage; reads and writes fault.
	slotDead slotState = iota
	// slotImm locals hold their value directly in the slot.
	slotImm
	// slotMem locals are backed by an arena allocation.
	slotMem
)

// LocalSlot holds the runtime state of a local variable.
type LocalSlot struct {
	State  slotState
	Imm    Immediate
	Mem    MemPlace
	Name   string
	TypeID types.TypeID
}

// Frame represents one activation record on the evaluation stack.
type Frame struct {
	Body   *mir.Body
	BB     mir.BlockID
	IP     int
	Locals []LocalSlot

	// Where the caller wants the result and where it resumes. The
	// bottom frame has RetTarget set to NoBlockID; its local 0 is
	// memory-backed by the caller of EvalBody.
	RetDst    mir.Place
	RetTarget mir.BlockID
}

// newFrame creates a frame with every local live as an uninitialized
// immediate. Aggregate locals get their backing allocation lazily on
// first write or projection.
func newFrame(body *mir.Body) *Frame {
	locals := make([]LocalSlot, len(body.Locals))
	for i, local := range body.Locals {
		locals[i] = LocalSlot{
			State:  slotImm,
			Imm:    Immediate{Kind: ImmUninit},
			Name:   local.Name,
			TypeID: local.Type,
		}
	}
	return &Frame{
		Body:      body,
		BB:        body.Entry,
		IP:        0,
		Locals:    locals,
		RetTarget: mir.NoBlockID,
	}
}

// CurrentBlock returns the block being executed.
func (f *Frame) CurrentBlock() *mir.Block {
	if int(f.BB) < 0 || int(f.BB) >= len(f.Body.Blocks) {
		return nil
	}
	return &f.Body.Blocks[f.BB]
}

// CurrentStmt returns the current statement, or nil at the terminator.
func (f *Frame) CurrentStmt() *mir.Statement {
	block := f.CurrentBlock()
	if block == nil || f.IP >= len(block.Stmts) {
		return nil
	}
	return &block.Stmts[f.IP]
}

// AtTerminator reports whether the IP is past all statements.
func (f *Frame) AtTerminator() bool {
	block := f.CurrentBlock()
	if block == nil {
		return true
	}
	return f.IP >= len(block.Stmts)
}

// jump moves execution to the start of a block.
func (f *Frame) jump(target mir.BlockID) {
	f.BB = target
	f.IP = 0
}

func (f *Frame) slot(l mir.LocalID) *LocalSlot {
	return &f.Locals[l]
}
