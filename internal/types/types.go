package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the closed set of type shapes the evaluator knows.
// The set is deliberately exhaustive: both valtree conversion directions
// switch over it, so adding a kind forces revisiting both.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindInt   // signed integer of fixed width
	KindUint  // unsigned integer of fixed width
	KindFloat // IEEE float, width 32 or 64
	KindTuple
	KindArray // fixed-length array
	KindSlice // unsized element sequence
	KindStr   // unsized UTF-8 bytes
	KindRef   // shared reference
	KindRawPtr
	KindFnPtr
	KindFnDef // zero-sized function item
	KindStruct
	KindEnum
	KindUnion
	KindNever

	// Kinds that can appear in the type universe but are never
	// representable as value trees.
	KindDynamic // trait object
	KindClosure
	KindGenerator
	KindParam // unresolved generic parameter / placeholder
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindStr:
		return "str"
	case KindRef:
		return "ref"
	case KindRawPtr:
		return "rawptr"
	case KindFnPtr:
		return "fnptr"
	case KindFnDef:
		return "fndef"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	case KindNever:
		return "never"
	case KindDynamic:
		return "dynamic"
	case KindClosure:
		return "closure"
	case KindGenerator:
		return "generator"
	case KindParam:
		return "param"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Bytes returns the width in bytes.
func (w Width) Bytes() int {
	return int(w) / 8
}

// Type is a compact descriptor for any supported type.
// Payload indexes interner side tables for tuples and ADTs.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32 // for arrays
	Width   Width  // for numeric primitives
	Payload uint32 // for tuples/ADTs
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer of the given width.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes a fixed-length array of element type.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes an unsized [T].
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeRef describes a shared reference &T.
func MakeRef(elem TypeID) Type {
	return Type{Kind: KindRef, Elem: elem}
}

// MakeRawPtr describes a raw pointer *T.
func MakeRawPtr(elem TypeID) Type {
	return Type{Kind: KindRawPtr, Elem: elem}
}

// IsSigned reports whether the kind is a signed numeric kind.
func (t Type) IsSigned() bool {
	return t.Kind == KindInt
}

// IsPrimitiveScalar reports whether values of this type are a single
// machine scalar with no internal structure.
func (t Type) IsPrimitiveScalar() bool {
	switch t.Kind {
	case KindBool, KindChar, KindInt, KindUint, KindFloat:
		return true
	default:
		return false
	}
}
