package mem

import (
	"fmt"
)

// Memory is the arena owning every allocation of one evaluation. It is
// exclusively owned by its interpreter context; nothing here is safe
// for concurrent mutation.
type Memory struct {
	allocs  map[AllocID]*Allocation
	next    AllocID
	ptrSize int
}

// NewMemory creates an empty arena for a target with the given pointer
// width in bytes.
func NewMemory(ptrSize int) *Memory {
	if ptrSize <= 0 {
		ptrSize = 8
	}
	return &Memory{
		allocs:  make(map[AllocID]*Allocation, 64),
		next:    1,
		ptrSize: ptrSize,
	}
}

// PtrSize returns the target pointer width in bytes.
func (m *Memory) PtrSize() int {
	return m.ptrSize
}

// Allocate reserves a zero-length-tracked buffer and returns a pointer
// to its start.
func (m *Memory) Allocate(size, align int, kind AllocKind) (Pointer, *AccessError) {
	if size < 0 || size > int(^uint(0)>>2) {
		return Pointer{}, accessErr(AccessOutOfMemory, "allocation size %d out of range", size)
	}
	if align <= 0 {
		align = 1
	}
	id := m.next
	m.next++
	m.allocs[id] = newAllocation(size, align, kind)
	return Pointer{Alloc: id, Offset: 0}, nil
}

// Get returns a live allocation for reading.
func (m *Memory) Get(id AllocID) (*Allocation, *AccessError) {
	a, ok := m.allocs[id]
	if !ok || a == nil {
		return nil, accessErr(AccessDangling, "unknown allocation %d", id)
	}
	if a.freed {
		return nil, accessErr(AccessDangling, "use of freed allocation %d", id)
	}
	return a, nil
}

// GetMut returns a live allocation for writing, rejecting interned
// (frozen) allocations.
func (m *Memory) GetMut(id AllocID) (*Allocation, *AccessError) {
	a, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if !a.mutable {
		return nil, accessErr(AccessImmutable, "write to interned allocation %d", id)
	}
	return a, nil
}

// Deallocate releases a stack allocation. Interned allocations are
// never deallocated.
func (m *Memory) Deallocate(id AllocID) *AccessError {
	a, ok := m.allocs[id]
	if !ok || a == nil {
		return accessErr(AccessDangling, "unknown allocation %d", id)
	}
	if a.freed {
		return accessErr(AccessDoubleFree, "double free of allocation %d", id)
	}
	if !a.mutable {
		return accessErr(AccessImmutable, "deallocating interned allocation %d", id)
	}
	a.freed = true
	a.bytes = nil
	a.relocs = nil
	a.init = nil
	return nil
}

// checkAlign verifies that an access of the required alignment through
// ptr is legal: the allocation must be at least that aligned and the
// offset a multiple of it.
func (m *Memory) checkAlign(a *Allocation, ptr Pointer, align int) *AccessError {
	if align <= 1 {
		return nil
	}
	if a.align < align || ptr.Offset%align != 0 {
		return accessErr(AccessMisaligned,
			"access at %s requires alignment %d (allocation aligned to %d)", ptr, align, a.align)
	}
	return nil
}

// ReadScalar reads size bytes through ptr with the given required
// alignment. The uninit marker propagates to the caller; it is not an
// error here so that ScalarMaybeUninit copies stay possible.
func (m *Memory) ReadScalar(ptr Pointer, size, align int) (ScalarMaybeUninit, *AccessError) {
	a, err := m.Get(ptr.Alloc)
	if err != nil {
		return ScalarMaybeUninit{}, err
	}
	if err := m.checkAlign(a, ptr, align); err != nil {
		return ScalarMaybeUninit{}, err
	}
	return a.readScalar(ptr.Offset, size, m.ptrSize)
}

// ReadScalarInit is ReadScalar with the uninit marker turned into a
// fault. Most interpreter reads want this.
func (m *Memory) ReadScalarInit(ptr Pointer, size, align int) (Scalar, *AccessError) {
	s, err := m.ReadScalar(ptr, size, align)
	if err != nil {
		return Scalar{}, err
	}
	v, err := s.Check()
	if err != nil {
		return Scalar{}, accessErr(AccessUninit, "read of uninitialized value at %s", ptr)
	}
	return v, nil
}

// WriteScalar stores a scalar of size bytes through ptr.
func (m *Memory) WriteScalar(ptr Pointer, s Scalar, size, align int) *AccessError {
	a, err := m.GetMut(ptr.Alloc)
	if err != nil {
		return err
	}
	if err := m.checkAlign(a, ptr, align); err != nil {
		return err
	}
	return a.writeScalar(ptr.Offset, s, size, m.ptrSize)
}

// ReadBytes returns size raw bytes through ptr (no relocations, fully
// initialized).
func (m *Memory) ReadBytes(ptr Pointer, size int) ([]byte, *AccessError) {
	a, err := m.Get(ptr.Alloc)
	if err != nil {
		return nil, err
	}
	return a.rawBytes(ptr.Offset, size, m.ptrSize)
}

// WriteBytes stores raw bytes through ptr, clearing overlapped
// relocations.
func (m *Memory) WriteBytes(ptr Pointer, data []byte) *AccessError {
	a, err := m.GetMut(ptr.Alloc)
	if err != nil {
		return err
	}
	if err := a.checkBounds(ptr.Offset, len(data)); err != nil {
		return err
	}
	for _, r := range a.relocsIn(ptr.Offset, len(data), m.ptrSize) {
		delete(a.relocs, r)
	}
	copy(a.bytes[ptr.Offset:], data)
	a.markInit(ptr.Offset, len(data))
	return nil
}

// Copy moves size bytes from src to dst including relocation entries
// and the init mask, so partially initialized aggregates copy
// faithfully.
func (m *Memory) Copy(src, dst Pointer, size int) *AccessError {
	if size == 0 {
		return nil
	}
	srcAlloc, err := m.Get(src.Alloc)
	if err != nil {
		return err
	}
	if err := srcAlloc.checkBounds(src.Offset, size); err != nil {
		return err
	}
	// Snapshot source state first: src and dst may be the same allocation.
	bytes := append([]byte(nil), srcAlloc.bytes[src.Offset:src.Offset+size]...)
	type relocAt struct {
		at int
		r  reloc
	}
	var relocs []relocAt
	for _, off := range srcAlloc.relocsIn(src.Offset, size, m.ptrSize) {
		if off < src.Offset || off+m.ptrSize > src.Offset+size {
			// A relocation straddling the copy edge would turn pointer
			// bytes into raw data.
			return accessErr(AccessPointerAsBytes,
				"copy of %d bytes at offset %d cuts through a pointer", size, src.Offset)
		}
		relocs = append(relocs, relocAt{at: off - src.Offset, r: srcAlloc.relocs[off]})
	}
	initBits := make([]bool, size)
	for i := 0; i < size; i++ {
		initBits[i] = srcAlloc.isInit(src.Offset+i, 1)
	}

	dstAlloc, err := m.GetMut(dst.Alloc)
	if err != nil {
		return err
	}
	if err := dstAlloc.checkBounds(dst.Offset, size); err != nil {
		return err
	}
	for _, r := range dstAlloc.relocsIn(dst.Offset, size, m.ptrSize) {
		delete(dstAlloc.relocs, r)
	}
	copy(dstAlloc.bytes[dst.Offset:], bytes)
	for _, ra := range relocs {
		dstAlloc.relocs[dst.Offset+ra.at] = ra.r
	}
	for i, ok := range initBits {
		if ok {
			dstAlloc.markInit(dst.Offset+i, 1)
		}
	}
	return nil
}

// InternRecursive freezes an allocation and every allocation reachable
// through its relocation tables. After interning, the whole object
// graph is immutable and may be shared freely.
func (m *Memory) InternRecursive(root AllocID) *AccessError {
	worklist := []AllocID{root}
	seen := make(map[AllocID]struct{}, 8)
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a, err := m.Get(id)
		if err != nil {
			return err
		}
		a.mutable = false
		for _, r := range a.relocs {
			worklist = append(worklist, r.Target)
		}
	}
	return nil
}

// AllocCount reports how many live allocations the arena holds.
func (m *Memory) AllocCount() int {
	n := 0
	for _, a := range m.allocs {
		if a != nil && !a.freed {
			n++
		}
	}
	return n
}

// Dump formats one allocation for tracing/debugging.
func (m *Memory) Dump(id AllocID) string {
	a, ok := m.allocs[id]
	if !ok || a == nil {
		return fmt.Sprintf("alloc%d: <unknown>", id)
	}
	return fmt.Sprintf("alloc%d: %d bytes, align %d, %d relocs, mutable=%v",
		id, len(a.bytes), a.align, len(a.relocs), a.mutable)
}
