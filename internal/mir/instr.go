package mir

import (
	"constvm/internal/types"
)

// StatementKind enumerates statement kinds.
type StatementKind uint8

const (
	// StmtAssign represents an assignment statement.
	StmtAssign StatementKind = iota
	// StmtSetDiscriminant writes an enum place's active variant tag.
	StmtSetDiscriminant
	// StmtStorageLive marks a local as live and allocates its slot.
	StmtStorageLive
	// StmtStorageDead releases a local's slot.
	StmtStorageDead
	// StmtNop represents a no-op statement.
	StmtNop
)

// Statement represents one MIR statement.
type Statement struct {
	Kind StatementKind

	Assign          AssignStmt
	SetDiscriminant SetDiscriminantStmt
	Storage         StorageStmt
}

// AssignStmt represents an assignment statement.
type AssignStmt struct {
	Dst Place
	Src RValue
}

// SetDiscriminantStmt selects the active variant of an enum place.
type SetDiscriminantStmt struct {
	Place   Place
	Variant int
}

// StorageStmt marks a local live or dead.
type StorageStmt struct {
	Local LocalID
}

// OperandKind distinguishes operand types.
type OperandKind uint8

const (
	// OperandConst represents a constant operand.
	OperandConst OperandKind = iota
	// OperandCopy reads a place, leaving it intact.
	OperandCopy
	// OperandMove reads a place, invalidating it.
	OperandMove
)

// Operand represents a MIR operand.
type Operand struct {
	Kind OperandKind
	Type types.TypeID

	Const Const
	Place Place
}

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstScalar is a primitive bit pattern of the operand's type.
	ConstScalar ConstKind = iota
	// ConstZeroSized is the canonical value of a zero-sized type.
	ConstZeroSized
	// ConstFn names a function item.
	ConstFn
	// ConstStr is a literal &str; the bytes are materialized and
	// interned on first use.
	ConstStr
)

// Const represents a MIR constant literal.
type Const struct {
	Kind ConstKind
	Type types.TypeID

	Bits uint64 // ConstScalar: truncated to the type's width
	Fn   FuncID // ConstFn
	Str  string // ConstStr
}

// RValueKind distinguishes right-hand value kinds.
type RValueKind uint8

const (
	// RValueUse represents a use of an operand.
	RValueUse RValueKind = iota
	// RValueUnaryOp represents a unary operation.
	RValueUnaryOp
	// RValueBinaryOp represents a binary operation.
	RValueBinaryOp
	// RValueRef takes the address of a place.
	RValueRef
	// RValueAggregate builds a tuple/array/ADT value field by field.
	RValueAggregate
	// RValueCast represents a numeric cast.
	RValueCast
	// RValueDiscriminant reads an enum place's active variant index.
	RValueDiscriminant
	// RValueLen reads the length of an array or slice place.
	RValueLen
)

// RValue represents a right-hand value in MIR.
type RValue struct {
	Kind RValueKind

	Use          Operand
	Unary        UnaryOp
	Binary       BinaryOp
	Ref          RefOp
	Aggregate    Aggregate
	Cast         CastOp
	Discriminant Place
	Len          Place
}

// UnOp enumerates unary operators.
type UnOp uint8

const (
	UnNeg UnOp = iota
	UnNot
)

// UnaryOp represents a unary operation.
type UnaryOp struct {
	Op      UnOp
	Operand Operand
}

// BinOp enumerates binary operators.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// BinaryOp represents a binary operation. Checked variants write a
// (result, overflowed) pair instead of trapping.
type BinaryOp struct {
	Op      BinOp
	Checked bool
	Left    Operand
	Right   Operand
}

// RefOp takes the address of a place. For unsized pointees the
// resulting value is a wide pointer carrying length metadata.
type RefOp struct {
	Place Place
}

// AggregateKind distinguishes aggregate constructors.
type AggregateKind uint8

const (
	AggTuple AggregateKind = iota
	AggArray
	AggAdt
)

// Aggregate builds a compound value from element operands. For AggAdt
// on an enum, Variant selects the constructed variant and the
// discriminant is written after the fields.
type Aggregate struct {
	Agg     AggregateKind
	Type    types.TypeID
	Variant int
	Elems   []Operand
}

// CastOp represents a numeric cast operation.
type CastOp struct {
	Value    Operand
	TargetTy types.TypeID
}
