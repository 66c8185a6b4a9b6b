package mir

import (
	"fmt"

	"fortio.org/safecast"

	"constvm/internal/types"
)

// BodyBuilder assembles a Body block by block. Local 0 (the return
// place) and the argument locals are created up front.
type BodyBuilder struct {
	body *Body
	cur  BlockID
}

// NewBodyBuilder starts a body with the given result and argument
// types; the entry block is created and made current.
func NewBodyBuilder(id FuncID, name string, result types.TypeID, args []types.TypeID) *BodyBuilder {
	b := &BodyBuilder{
		body: &Body{
			ID:       id,
			Name:     name,
			ArgCount: len(args),
		},
	}
	b.body.Locals = append(b.body.Locals, Local{Type: result, Name: "ret"})
	for i, a := range args {
		b.body.Locals = append(b.body.Locals, Local{Type: a, Name: fmt.Sprintf("arg%d", i)})
	}
	b.body.Entry = b.NewBlock()
	b.cur = b.body.Entry
	return b
}

// Local declares a new local slot and returns its ID.
func (b *BodyBuilder) Local(ty types.TypeID, name string) LocalID {
	raw, err := safecast.Conv[int32](len(b.body.Locals))
	if err != nil {
		panic(fmt.Errorf("mir: local id overflow: %w", err))
	}
	id := LocalID(raw)
	b.body.Locals = append(b.body.Locals, Local{Type: ty, Name: name})
	return id
}

// NewBlock appends an unterminated block.
func (b *BodyBuilder) NewBlock() BlockID {
	raw, err := safecast.Conv[int32](len(b.body.Blocks))
	if err != nil {
		panic(fmt.Errorf("mir: block id overflow: %w", err))
	}
	id := BlockID(raw)
	b.body.Blocks = append(b.body.Blocks, Block{ID: id, Term: Terminator{Kind: TermNone}})
	return id
}

// StartBlock makes id the current emission target.
func (b *BodyBuilder) StartBlock(id BlockID) {
	b.cur = id
}

func (b *BodyBuilder) curBlock() *Block {
	idx := int(b.cur)
	if idx < 0 || idx >= len(b.body.Blocks) {
		panic(fmt.Sprintf("mir: invalid current block bb%d", b.cur))
	}
	return &b.body.Blocks[idx]
}

func (b *BodyBuilder) emit(st Statement) {
	blk := b.curBlock()
	if blk.Terminated() {
		panic(fmt.Sprintf("mir: emitting into terminated block bb%d", b.cur))
	}
	blk.Stmts = append(blk.Stmts, st)
}

func (b *BodyBuilder) setTerm(t Terminator) {
	blk := b.curBlock()
	if blk.Terminated() {
		panic(fmt.Sprintf("mir: re-terminating block bb%d", b.cur))
	}
	blk.Term = t
}

// Assign emits dst = src.
func (b *BodyBuilder) Assign(dst Place, src RValue) {
	b.emit(Statement{Kind: StmtAssign, Assign: AssignStmt{Dst: dst, Src: src}})
}

// SetDiscriminant emits discriminant(place) = variant.
func (b *BodyBuilder) SetDiscriminant(place Place, variant int) {
	b.emit(Statement{Kind: StmtSetDiscriminant, SetDiscriminant: SetDiscriminantStmt{Place: place, Variant: variant}})
}

// StorageLive marks a local live.
func (b *BodyBuilder) StorageLive(l LocalID) {
	b.emit(Statement{Kind: StmtStorageLive, Storage: StorageStmt{Local: l}})
}

// StorageDead releases a local.
func (b *BodyBuilder) StorageDead(l LocalID) {
	b.emit(Statement{Kind: StmtStorageDead, Storage: StorageStmt{Local: l}})
}

// Goto terminates the current block with a jump.
func (b *BodyBuilder) Goto(target BlockID) {
	b.setTerm(Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}})
}

// Return terminates the current block with a return.
func (b *BodyBuilder) Return() {
	b.setTerm(Terminator{Kind: TermReturn})
}

// Unreachable terminates the current block as a trap.
func (b *BodyBuilder) Unreachable() {
	b.setTerm(Terminator{Kind: TermUnreachable})
}

// SwitchInt terminates the current block with a multi-way branch.
func (b *BodyBuilder) SwitchInt(discr Operand, values []uint64, targets []BlockID, otherwise BlockID) {
	b.setTerm(Terminator{Kind: TermSwitchInt, SwitchInt: SwitchIntTerm{
		Discr: discr, Values: values, Targets: targets, Otherwise: otherwise,
	}})
}

// Call terminates the current block with a function call.
func (b *BodyBuilder) Call(callee Operand, args []Operand, dst Place, target BlockID) {
	b.setTerm(Terminator{Kind: TermCall, Call: CallTerm{
		Callee: callee, Args: args, Dst: dst, Target: target,
	}})
}

// Assert terminates the current block with a checked condition.
func (b *BodyBuilder) Assert(cond Operand, expected bool, msg string, target BlockID) {
	b.setTerm(Terminator{Kind: TermAssert, Assert: AssertTerm{
		Cond: cond, Expected: expected, Msg: msg, Target: target,
	}})
}

// Finish seals unterminated blocks as unreachable and returns the body.
func (b *BodyBuilder) Finish() *Body {
	for i := range b.body.Blocks {
		if b.body.Blocks[i].Term.Kind == TermNone {
			b.body.Blocks[i].Term.Kind = TermUnreachable
		}
	}
	return b.body
}

// Operand and rvalue helpers -------------------------------------------------

// ConstOp wraps a scalar bit pattern as a constant operand.
func ConstOp(bits uint64, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstScalar, Type: ty, Bits: bits}}
}

// ConstBoolOp wraps a boolean constant operand.
func ConstBoolOp(v bool, ty types.TypeID) Operand {
	bits := uint64(0)
	if v {
		bits = 1
	}
	return ConstOp(bits, ty)
}

// ZeroSizedOp is the canonical zero-sized constant operand.
func ZeroSizedOp(ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstZeroSized, Type: ty}}
}

// FnOp names a function item constant.
func FnOp(fn FuncID, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstFn, Type: ty, Fn: fn}}
}

// StrOp wraps a string literal operand of &str type.
func StrOp(s string, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstStr, Type: ty, Str: s}}
}

// CopyOp reads a place non-destructively.
func CopyOp(p Place, ty types.TypeID) Operand {
	return Operand{Kind: OperandCopy, Type: ty, Place: p}
}

// MoveOp reads a place destructively.
func MoveOp(p Place, ty types.TypeID) Operand {
	return Operand{Kind: OperandMove, Type: ty, Place: p}
}

// UseRV wraps an operand as an rvalue.
func UseRV(op Operand) RValue {
	return RValue{Kind: RValueUse, Use: op}
}

// UnaryRV builds a unary operation rvalue.
func UnaryRV(op UnOp, v Operand) RValue {
	return RValue{Kind: RValueUnaryOp, Unary: UnaryOp{Op: op, Operand: v}}
}

// BinaryRV builds a binary operation rvalue.
func BinaryRV(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinaryOp, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

// CheckedRV builds an overflow-checked binary operation rvalue.
func CheckedRV(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinaryOp, Binary: BinaryOp{Op: op, Checked: true, Left: l, Right: r}}
}

// RefRV takes the address of a place.
func RefRV(p Place) RValue {
	return RValue{Kind: RValueRef, Ref: RefOp{Place: p}}
}

// TupleRV builds a tuple aggregate rvalue.
func TupleRV(ty types.TypeID, elems ...Operand) RValue {
	return RValue{Kind: RValueAggregate, Aggregate: Aggregate{Agg: AggTuple, Type: ty, Elems: elems}}
}

// ArrayRV builds an array aggregate rvalue.
func ArrayRV(ty types.TypeID, elems ...Operand) RValue {
	return RValue{Kind: RValueAggregate, Aggregate: Aggregate{Agg: AggArray, Type: ty, Elems: elems}}
}

// AdtRV builds a struct/enum aggregate rvalue for one variant.
func AdtRV(ty types.TypeID, variant int, elems ...Operand) RValue {
	return RValue{Kind: RValueAggregate, Aggregate: Aggregate{Agg: AggAdt, Type: ty, Variant: variant, Elems: elems}}
}

// CastRV builds a numeric cast rvalue.
func CastRV(v Operand, target types.TypeID) RValue {
	return RValue{Kind: RValueCast, Cast: CastOp{Value: v, TargetTy: target}}
}

// DiscriminantRV reads an enum place's active variant index.
func DiscriminantRV(p Place) RValue {
	return RValue{Kind: RValueDiscriminant, Discriminant: p}
}

// LenRV reads the length of an array/slice place.
func LenRV(p Place) RValue {
	return RValue{Kind: RValueLen, Len: p}
}
