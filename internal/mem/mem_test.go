package mem_test

import (
	"testing"

	"constvm/internal/mem"
)

func newMem(t *testing.T) *mem.Memory {
	t.Helper()
	return mem.NewMemory(8)
}

func alloc(t *testing.T, m *mem.Memory, size, align int) mem.Pointer {
	t.Helper()
	ptr, err := m.Allocate(size, align, mem.AllocStack)
	if err != nil {
		t.Fatalf("Allocate(%d, %d): %v", size, align, err)
	}
	return ptr
}

func TestScalarBits(t *testing.T) {
	s := mem.BitsFrom(0x1_00, 1) // truncated to one byte
	bits, err := s.ToBits()
	if err != nil {
		t.Fatalf("ToBits: %v", err)
	}
	if bits != 0 {
		t.Fatalf("truncated bits = %#x, want 0", bits)
	}

	if v, err := mem.FromInt(-1, 2).ToInt(2); err != nil || v != -1 {
		t.Fatalf("FromInt(-1).ToInt = %d, %v", v, err)
	}
	if v, err := mem.FromInt(-1, 2).ToUint(2); err != nil || v != 0xFFFF {
		t.Fatalf("FromInt(-1).ToUint = %#x, %v", v, err)
	}

	if b, err := mem.FromBool(true).ToBool(); err != nil || !b {
		t.Fatalf("FromBool(true).ToBool = %v, %v", b, err)
	}
	if _, err := mem.NewBits(2, 1).ToBool(); err == nil {
		t.Fatal("bit pattern 2 accepted as bool")
	}

	p := mem.Pointer{Alloc: 3, Offset: 8}
	if _, err := mem.FromPointer(p).ToBits(); err == nil {
		t.Fatal("pointer scalar read as raw bits")
	}
	got, err := mem.FromPointer(p).ToPointer()
	if err != nil || got != p {
		t.Fatalf("ToPointer = %v, %v", got, err)
	}
}

func TestSignExtend(t *testing.T) {
	if got := mem.SignExtend(0xFF, 1); got != -1 {
		t.Fatalf("SignExtend(0xFF, 1) = %d", got)
	}
	if got := mem.SignExtend(0x7F, 1); got != 127 {
		t.Fatalf("SignExtend(0x7F, 1) = %d", got)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	m := newMem(t)
	ptr := alloc(t, m, 8, 8)

	if err := m.WriteScalar(ptr, mem.BitsFrom(0xDEAD, 4), 4, 4); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	s, err := m.ReadScalarInit(ptr, 4, 4)
	if err != nil {
		t.Fatalf("ReadScalarInit: %v", err)
	}
	if bits, _ := s.ToBits(); bits != 0xDEAD {
		t.Fatalf("read back %#x", bits)
	}
}

func TestUninitRead(t *testing.T) {
	m := newMem(t)
	ptr := alloc(t, m, 8, 8)

	// Initialize only the first half; the second half must still fault.
	if err := m.WriteScalar(ptr, mem.BitsFrom(1, 4), 4, 4); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	if _, err := m.ReadScalarInit(ptr.WithOffset(4), 4, 4); err == nil || err.Code != mem.AccessUninit {
		t.Fatalf("uninit read gave %v, want %s", err, mem.AccessUninit)
	}

	smu, err := m.ReadScalar(ptr.WithOffset(4), 4, 4)
	if err != nil {
		t.Fatalf("ReadScalar: %v", err)
	}
	if !smu.Uninit {
		t.Fatal("uninitialized bytes reported as initialized")
	}
}

func TestBoundsAndAlign(t *testing.T) {
	m := newMem(t)
	ptr := alloc(t, m, 8, 8)

	if _, err := m.ReadScalarInit(ptr.WithOffset(6), 4, 1); err == nil || err.Code != mem.AccessOutOfBounds {
		t.Fatalf("out-of-bounds read gave %v", err)
	}
	if err := m.WriteScalar(ptr.WithOffset(1), mem.BitsFrom(0, 4), 4, 4); err == nil || err.Code != mem.AccessMisaligned {
		t.Fatalf("misaligned write gave %v", err)
	}
}

func TestPointerRelocation(t *testing.T) {
	m := newMem(t)
	target := alloc(t, m, 4, 4)
	holder := alloc(t, m, 8, 8)

	if err := m.WriteScalar(holder, mem.FromPointer(target), 8, 8); err != nil {
		t.Fatalf("write pointer: %v", err)
	}
	s, err := m.ReadScalarInit(holder, 8, 8)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	got, perr := s.ToPointer()
	if perr != nil || got.Alloc != target.Alloc {
		t.Fatalf("pointer round-trip = %v, %v", got, perr)
	}

	// Raw bytes overlapping a relocation are not readable.
	if _, err := m.ReadBytes(holder, 8); err == nil || err.Code != mem.AccessPointerAsBytes {
		t.Fatalf("raw read over relocation gave %v", err)
	}

	// Overwriting part of the pointer clobbers the relocation.
	if err := m.WriteScalar(holder, mem.BitsFrom(7, 1), 1, 1); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	s2, err := m.ReadScalarInit(holder.WithOffset(0), 1, 1)
	if err != nil {
		t.Fatalf("read after clobber: %v", err)
	}
	if s2.Kind != mem.SKBits {
		t.Fatal("clobbered relocation still reads as pointer")
	}
}

func TestInternFreeze(t *testing.T) {
	m := newMem(t)
	inner := alloc(t, m, 4, 4)
	outer := alloc(t, m, 8, 8)

	if err := m.WriteScalar(inner, mem.BitsFrom(1, 4), 4, 4); err != nil {
		t.Fatalf("init inner: %v", err)
	}
	if err := m.WriteScalar(outer, mem.FromPointer(inner), 8, 8); err != nil {
		t.Fatalf("link outer: %v", err)
	}

	if err := m.InternRecursive(outer.Alloc); err != nil {
		t.Fatalf("InternRecursive: %v", err)
	}

	// Both the root and the reachable allocation are frozen.
	if err := m.WriteScalar(outer, mem.BitsFrom(0, 8), 8, 8); err == nil || err.Code != mem.AccessImmutable {
		t.Fatalf("write to interned root gave %v", err)
	}
	if err := m.WriteScalar(inner, mem.BitsFrom(0, 4), 4, 4); err == nil || err.Code != mem.AccessImmutable {
		t.Fatalf("write through interned graph gave %v", err)
	}

	// Interned allocations cannot be freed.
	if err := m.Deallocate(outer.Alloc); err == nil {
		t.Fatal("deallocated an interned allocation")
	}
}

func TestDeallocate(t *testing.T) {
	m := newMem(t)
	ptr := alloc(t, m, 4, 4)

	if err := m.Deallocate(ptr.Alloc); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	if _, err := m.ReadScalarInit(ptr, 4, 4); err == nil || err.Code != mem.AccessDangling {
		t.Fatalf("read after free gave %v", err)
	}
	if err := m.Deallocate(ptr.Alloc); err == nil || err.Code != mem.AccessDoubleFree {
		t.Fatalf("double free gave %v", err)
	}
}

func TestCopyPreservesRelocationsAndInit(t *testing.T) {
	m := newMem(t)
	target := alloc(t, m, 4, 4)
	src := alloc(t, m, 16, 8)
	dst := alloc(t, m, 16, 8)

	// src: a pointer in the first word, uninit second word.
	if err := m.WriteScalar(src, mem.FromPointer(target), 8, 8); err != nil {
		t.Fatalf("prime src: %v", err)
	}
	if err := m.Copy(src, dst, 16); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	s, err := m.ReadScalarInit(dst, 8, 8)
	if err != nil {
		t.Fatalf("read copied pointer: %v", err)
	}
	if p, perr := s.ToPointer(); perr != nil || p.Alloc != target.Alloc {
		t.Fatalf("copied pointer = %v, %v", p, perr)
	}

	// Uninitialized bytes stay uninitialized in the destination.
	if _, err := m.ReadScalarInit(dst.WithOffset(8), 8, 8); err == nil || err.Code != mem.AccessUninit {
		t.Fatalf("copied uninit read gave %v", err)
	}
}

func TestCopyRefusesPartialPointer(t *testing.T) {
	m := newMem(t)
	target := alloc(t, m, 4, 4)
	src := alloc(t, m, 8, 8)
	dst := alloc(t, m, 8, 8)

	if err := m.WriteScalar(src, mem.FromPointer(target), 8, 8); err != nil {
		t.Fatalf("prime src: %v", err)
	}

	// Copying only the first half of the pointer would strip its
	// relocation and hand the address bytes out as raw data.
	if err := m.Copy(src, dst, 4); err == nil || err.Code != mem.AccessPointerAsBytes {
		t.Fatalf("partial pointer copy gave %v, want %s", err, mem.AccessPointerAsBytes)
	}
	if err := m.Copy(src.WithOffset(4), dst, 4); err == nil || err.Code != mem.AccessPointerAsBytes {
		t.Fatalf("copy of pointer tail gave %v, want %s", err, mem.AccessPointerAsBytes)
	}

	// The destination stays untouched after the refused copy.
	smu, err := m.ReadScalar(dst, 4, 4)
	if err != nil {
		t.Fatalf("ReadScalar: %v", err)
	}
	if !smu.Uninit {
		t.Fatal("refused copy initialized destination bytes")
	}
}
