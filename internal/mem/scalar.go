// Package mem implements the evaluator's typed memory arena:
// allocations with relocation tables and init tracking, addressed
// through (allocation, offset) pointers.
package mem

import "fmt"

// AllocID identifies one allocation inside a Memory arena.
// 0 is never a valid allocation.
type AllocID uint32

// Provenance tags a pointer with the permission it was created with.
// Tagging is optional; evaluation contexts that do not validate
// provenance leave pointers at ProvNone.
type Provenance uint8

const (
	ProvNone Provenance = iota
	ProvShared
	ProvMutable
)

// Pointer addresses a byte inside an allocation. It is a weak
// reference: dereferencing requires a live arena lookup.
type Pointer struct {
	Alloc  AllocID
	Offset int
	Tag    Provenance
}

func (p Pointer) String() string {
	return fmt.Sprintf("alloc%d+%d", p.Alloc, p.Offset)
}

// WithOffset returns the pointer advanced by n bytes.
func (p Pointer) WithOffset(n int) Pointer {
	p.Offset += n
	return p
}

// ScalarKind identifies the variant of a Scalar.
type ScalarKind uint8

const (
	// SKBits is a raw machine value of known byte width.
	SKBits ScalarKind = iota
	// SKPointer is a relocatable pointer into the arena.
	SKPointer
)

// Scalar is a primitive machine value: raw bits of a known byte width
// (zero-width for zero-sized values) or a pointer. The bits variant
// never carries stray bits above its width.
type Scalar struct {
	Kind ScalarKind
	Bits uint64
	Size uint8 // byte width, 0..8; meaningful for SKBits only
	Ptr  Pointer
}

// maxScalarSize is the widest raw-bits scalar. The type universe has
// no 128-bit integers, so eight bytes cover every primitive.
const maxScalarSize = 8

// ZeroSized is the canonical value of any zero-sized type.
func ZeroSized() Scalar {
	return Scalar{Kind: SKBits, Size: 0}
}

// TruncateBits masks bits down to the given byte width.
func TruncateBits(bits uint64, size int) uint64 {
	if size <= 0 {
		return 0
	}
	if size >= maxScalarSize {
		return bits
	}
	return bits & (1<<(8*uint(size)) - 1)
}

// NewBits builds a raw-bits scalar. Stray bits above the width are an
// invariant violation in the caller and abort loudly.
func NewBits(bits uint64, size int) Scalar {
	if size < 0 || size > maxScalarSize {
		panic(fmt.Sprintf("mem: scalar size %d out of range", size))
	}
	if TruncateBits(bits, size) != bits {
		panic(fmt.Sprintf("mem: scalar %#x has stray bits beyond width %d", bits, size))
	}
	return Scalar{Kind: SKBits, Bits: bits, Size: uint8(size)}
}

// BitsFrom truncates and builds a raw-bits scalar; for values whose
// high bits are intentionally dropped (e.g. wrapping casts).
func BitsFrom(bits uint64, size int) Scalar {
	return NewBits(TruncateBits(bits, size), size)
}

// FromBool encodes a boolean as a 1-byte scalar.
func FromBool(b bool) Scalar {
	if b {
		return NewBits(1, 1)
	}
	return NewBits(0, 1)
}

// FromInt encodes a signed value as truncated two's complement.
func FromInt(v int64, size int) Scalar {
	return BitsFrom(uint64(v), size)
}

// FromPointer wraps a pointer as a scalar.
func FromPointer(p Pointer) Scalar {
	return Scalar{Kind: SKPointer, Ptr: p}
}

// IsBits reports whether the scalar is the raw-bits variant.
func (s Scalar) IsBits() bool {
	return s.Kind == SKBits
}

// ToBits returns the raw bits, failing on pointers.
func (s Scalar) ToBits() (uint64, *AccessError) {
	if s.Kind != SKBits {
		return 0, accessErr(AccessPointerAsBytes, "reading pointer %s as raw bits", s.Ptr)
	}
	return s.Bits, nil
}

// ToUint returns the bits zero-extended, checking the expected width.
func (s Scalar) ToUint(size int) (uint64, *AccessError) {
	bits, err := s.ToBits()
	if err != nil {
		return 0, err
	}
	if int(s.Size) != size {
		return 0, accessErr(AccessSizeMismatch, "scalar width %d where %d expected", s.Size, size)
	}
	return bits, nil
}

// ToInt returns the bits sign-extended from the scalar's width.
func (s Scalar) ToInt(size int) (int64, *AccessError) {
	bits, err := s.ToUint(size)
	if err != nil {
		return 0, err
	}
	return SignExtend(bits, size), nil
}

// ToBool decodes a 1-byte scalar as a boolean; values other than 0 or
// 1 are rejected.
func (s Scalar) ToBool() (bool, *AccessError) {
	bits, err := s.ToUint(1)
	if err != nil {
		return false, err
	}
	switch bits {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, accessErr(AccessSizeMismatch, "invalid boolean bit pattern %#x", bits)
	}
}

// ToPointer returns the pointer, failing on raw bits.
func (s Scalar) ToPointer() (Pointer, *AccessError) {
	if s.Kind != SKPointer {
		return Pointer{}, accessErr(AccessDangling, "reading raw bits %#x as pointer", s.Bits)
	}
	return s.Ptr, nil
}

func (s Scalar) String() string {
	if s.Kind == SKPointer {
		return s.Ptr.String()
	}
	return fmt.Sprintf("0x%x/%d", s.Bits, s.Size)
}

// SignExtend widens a value stored in size bytes to a signed 64-bit
// integer.
func SignExtend(bits uint64, size int) int64 {
	if size <= 0 || size >= maxScalarSize {
		return int64(bits)
	}
	shift := uint(64 - 8*size)
	return int64(bits<<shift) >> shift
}

// ScalarMaybeUninit is a scalar or an explicit uninitialized marker.
// Reading an uninit value as bits or pointer is an error, never a
// silent zero.
type ScalarMaybeUninit struct {
	Uninit bool
	Scalar Scalar
}

// Init wraps an initialized scalar.
func Init(s Scalar) ScalarMaybeUninit {
	return ScalarMaybeUninit{Scalar: s}
}

// UninitScalar is the explicit uninitialized marker.
func UninitScalar() ScalarMaybeUninit {
	return ScalarMaybeUninit{Uninit: true}
}

// Check returns the scalar, failing on the uninit marker.
func (s ScalarMaybeUninit) Check() (Scalar, *AccessError) {
	if s.Uninit {
		return Scalar{}, accessErr(AccessUninit, "read of uninitialized value")
	}
	return s.Scalar, nil
}
