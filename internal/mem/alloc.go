package mem

import (
	"encoding/binary"
)

// reloc is one entry of an allocation's relocation table: the pointed-to
// allocation and the provenance the pointer carried. The pointer's
// offset lives in the data bytes at the entry's position.
type reloc struct {
	Target AllocID
	Tag    Provenance
}

// AllocKind records why an allocation exists.
type AllocKind uint8

const (
	// AllocStack backs a frame-local slot.
	AllocStack AllocKind = iota
	// AllocValue holds an intermediate or final constant value.
	AllocValue
	// AllocGlobal backs a global/static.
	AllocGlobal
)

// Allocation owns one unit of interpreter memory: a byte buffer, a
// sparse relocation table for embedded pointers, a per-byte init mask
// and an alignment requirement. Mutable while a value is being
// assembled, frozen once interned.
type Allocation struct {
	bytes   []byte
	relocs  map[int]reloc
	init    []uint64 // bitset, one bit per byte
	align   int
	kind    AllocKind
	mutable bool
	freed   bool
}

func newAllocation(size, align int, kind AllocKind) *Allocation {
	return &Allocation{
		bytes:   make([]byte, size),
		relocs:  make(map[int]reloc),
		init:    make([]uint64, (size+63)/64),
		align:   align,
		kind:    kind,
		mutable: true,
	}
}

// Size returns the allocation's byte length.
func (a *Allocation) Size() int {
	return len(a.bytes)
}

// Align returns the allocation's alignment requirement.
func (a *Allocation) Align() int {
	return a.align
}

// Kind returns why the allocation exists.
func (a *Allocation) Kind() AllocKind {
	return a.kind
}

// Mutable reports whether the allocation can still be written.
func (a *Allocation) Mutable() bool {
	return a.mutable
}

// init mask ------------------------------------------------------------------

func (a *Allocation) markInit(off, size int) {
	for i := off; i < off+size; i++ {
		a.init[i/64] |= 1 << uint(i%64)
	}
}

func (a *Allocation) isInit(off, size int) bool {
	for i := off; i < off+size; i++ {
		if a.init[i/64]&(1<<uint(i%64)) == 0 {
			return false
		}
	}
	return true
}

// bounds and relocation queries ----------------------------------------------

func (a *Allocation) checkBounds(off, size int) *AccessError {
	if off < 0 || size < 0 || off+size > len(a.bytes) {
		return accessErr(AccessOutOfBounds,
			"access of %d bytes at offset %d exceeds allocation size %d", size, off, len(a.bytes))
	}
	return nil
}

// relocsIn collects relocation offsets whose pointer bytes overlap
// [off, off+size). A relocation at position r covers r..r+ptrSize.
func (a *Allocation) relocsIn(off, size, ptrSize int) []int {
	var hits []int
	lo := off - ptrSize + 1
	if lo < 0 {
		lo = 0
	}
	for r := lo; r < off+size; r++ {
		if _, ok := a.relocs[r]; ok {
			hits = append(hits, r)
		}
	}
	return hits
}

// scalar access --------------------------------------------------------------

// readScalar reads size bytes at off as a scalar. A relocation exactly
// covering the range yields a pointer; a partially overlapping
// relocation is a fault; otherwise raw little-endian bits. Reading
// bytes that were never written yields the explicit uninit marker.
func (a *Allocation) readScalar(off, size, ptrSize int) (ScalarMaybeUninit, *AccessError) {
	if err := a.checkBounds(off, size); err != nil {
		return ScalarMaybeUninit{}, err
	}
	if size == 0 {
		return Init(ZeroSized()), nil
	}
	hits := a.relocsIn(off, size, ptrSize)
	if len(hits) == 1 && hits[0] == off && size == ptrSize {
		if !a.isInit(off, size) {
			return UninitScalar(), nil
		}
		r := a.relocs[off]
		offset := int(binary.LittleEndian.Uint64(a.bytes[off : off+ptrSize]))
		return Init(FromPointer(Pointer{Alloc: r.Target, Offset: offset, Tag: r.Tag})), nil
	}
	if len(hits) != 0 {
		return ScalarMaybeUninit{}, accessErr(AccessPointerAsBytes,
			"raw read of %d bytes at offset %d overlaps a pointer", size, off)
	}
	if !a.isInit(off, size) {
		return UninitScalar(), nil
	}
	var bits uint64
	for i := size - 1; i >= 0; i-- {
		bits = bits<<8 | uint64(a.bytes[off+i])
	}
	return Init(NewBits(bits, size)), nil
}

// writeScalar stores a scalar at off. Raw-bits writes clear any
// overlapped relocations; pointer writes install one.
func (a *Allocation) writeScalar(off int, s Scalar, size, ptrSize int) *AccessError {
	if !a.mutable {
		return accessErr(AccessImmutable, "write to interned allocation")
	}
	if err := a.checkBounds(off, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	for _, r := range a.relocsIn(off, size, ptrSize) {
		delete(a.relocs, r)
	}
	switch s.Kind {
	case SKPointer:
		if size != ptrSize {
			return accessErr(AccessSizeMismatch,
				"pointer write of %d bytes where pointers are %d bytes", size, ptrSize)
		}
		binary.LittleEndian.PutUint64(a.bytes[off:off+ptrSize], uint64(s.Ptr.Offset))
		a.relocs[off] = reloc{Target: s.Ptr.Alloc, Tag: s.Ptr.Tag}
	default:
		if int(s.Size) != size {
			return accessErr(AccessSizeMismatch,
				"scalar width %d written as %d bytes", s.Size, size)
		}
		bits := s.Bits
		for i := 0; i < size; i++ {
			a.bytes[off+i] = byte(bits)
			bits >>= 8
		}
	}
	a.markInit(off, size)
	return nil
}

// rawBytes returns a byte range, rejecting relocations and uninit
// bytes. Used for slice/str extraction from frozen constants.
func (a *Allocation) rawBytes(off, size, ptrSize int) ([]byte, *AccessError) {
	if err := a.checkBounds(off, size); err != nil {
		return nil, err
	}
	if len(a.relocsIn(off, size, ptrSize)) != 0 {
		return nil, accessErr(AccessPointerAsBytes,
			"raw read of %d bytes at offset %d overlaps a pointer", size, off)
	}
	if !a.isInit(off, size) {
		return nil, accessErr(AccessUninit,
			"read of uninitialized bytes at offset %d", off)
	}
	return a.bytes[off : off+size], nil
}
