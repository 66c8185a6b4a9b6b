package valtree_test

import (
	"testing"

	"constvm/internal/interp"
	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
	"constvm/internal/valtree"
)

func newEval(t *testing.T, in *types.Interner) *interp.Eval {
	t.Helper()
	return interp.New(in, mir.NewModule(), interp.Options{})
}

func mustToConst(t *testing.T, ev *interp.Eval, tree valtree.Tree, ty types.TypeID) interp.ConstValue {
	t.Helper()
	cv, err := valtree.ValTreeToConstValue(ev, tree, ty)
	if err != nil {
		t.Fatalf("ValTreeToConstValue: %s", err.Format())
	}
	return cv
}

func mustFromConst(t *testing.T, ev *interp.Eval, cv interp.ConstValue) valtree.Tree {
	t.Helper()
	tree, ok := valtree.ConstToValTree(ev, cv)
	if !ok {
		t.Fatalf("ConstToValTree rejected %s value", cv.Kind)
	}
	return tree
}

func TestBoolLeaf(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)

	cv := interp.ConstValue{Kind: interp.CVScalar, Type: bi.Bool, A: mem.FromBool(true)}
	tree := mustFromConst(t, ev, cv)
	if !valtree.Equal(tree, valtree.LeafBits(1, 1)) {
		t.Fatalf("tree = %s, want leaf 1", tree)
	}
}

func TestTupleTree(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	tup := in.InternTuple([]types.TypeID{bi.U8, bi.I32})

	cv := interp.ConstValue{
		Kind: interp.CVScalarPair,
		Type: tup,
		A:    mem.BitsFrom(3, 1),
		B:    mem.FromInt(-1, 4),
	}
	tree := mustFromConst(t, ev, cv)
	want := valtree.Branch(valtree.LeafBits(3, 1), valtree.LeafBits(0xFFFF_FFFF, 4))
	if !valtree.Equal(tree, want) {
		t.Fatalf("tree = %s, want %s", tree, want)
	}
}

func TestEnumEncoding(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	opt := in.DeclareEnum("Option", []types.VariantInfo{
		{Name: "None"},
		{Name: "Some", Fields: []types.FieldInfo{{Name: "0", Type: bi.U8}}},
	})

	// The variant index heads the branch as a 4-byte leaf.
	some := valtree.Branch(valtree.LeafBits(1, 4), valtree.LeafBits(7, 1))
	cv := mustToConst(t, ev, some, opt)
	if got := mustFromConst(t, ev, cv); !valtree.Equal(got, some) {
		t.Fatalf("Some(7) round trip: %s vs %s", got, some)
	}

	none := valtree.Branch(valtree.LeafBits(0, 4))
	cv = mustToConst(t, ev, none, opt)
	if got := mustFromConst(t, ev, cv); !valtree.Equal(got, none) {
		t.Fatalf("None round trip: %s vs %s", got, none)
	}
}

func TestReferenceIsTransparent(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	arrRef := in.Intern(types.MakeRef(in.Intern(types.MakeArray(bi.U8, 3))))

	// &[u8; 3] and its pointee share the same tree shape: the
	// indirection contributes no node.
	tree := valtree.Branch(valtree.LeafBits(1, 1), valtree.LeafBits(2, 1), valtree.LeafBits(3, 1))
	cv := mustToConst(t, ev, tree, arrRef)
	if cv.Kind != interp.CVScalar {
		t.Fatalf("&[u8; 3] const kind = %s, want thin scalar", cv.Kind)
	}
	if got := mustFromConst(t, ev, cv); !valtree.Equal(got, tree) {
		t.Fatalf("round trip: %s vs %s", got, tree)
	}
}

func TestStrMaterialization(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	strRef := in.Intern(types.MakeRef(bi.Str))

	tree := valtree.Branch(valtree.LeafBits('h', 1), valtree.LeafBits('i', 1))
	cv := mustToConst(t, ev, tree, strRef)
	if cv.Kind != interp.CVSlice {
		t.Fatalf("&str const kind = %s, want slice", cv.Kind)
	}
	raw, err := ev.SliceBytes(cv)
	if err != nil {
		t.Fatalf("SliceBytes: %s", err.Format())
	}
	if string(raw) != "hi" {
		t.Fatalf("payload = %q", raw)
	}
	if got := mustFromConst(t, ev, cv); !valtree.Equal(got, tree) {
		t.Fatalf("round trip: %s vs %s", got, tree)
	}
}

func TestUnsupportedTypes(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)

	rp := in.Intern(types.MakeRawPtr(bi.I32))
	cv := interp.ConstValue{Kind: interp.CVScalar, Type: rp, A: mem.BitsFrom(0, 8)}
	before := ev.Mem.AllocCount()
	if _, ok := valtree.ConstToValTree(ev, cv); ok {
		t.Fatal("raw pointer condensed into a tree")
	}
	// Rejection happens before anything is allocated or interned.
	if got := ev.Mem.AllocCount(); got != before {
		t.Fatalf("rejected conversion allocated: %d -> %d", before, got)
	}

	// A tuple is only as representable as its elements.
	tup := in.InternTuple([]types.TypeID{bi.U8, rp})
	cv = interp.ConstValue{Kind: interp.CVScalarPair, Type: tup, A: mem.BitsFrom(0, 1), B: mem.BitsFrom(0, 8)}
	if _, ok := valtree.ConstToValTree(ev, cv); ok {
		t.Fatal("tuple with raw pointer element condensed into a tree")
	}

	if _, err := valtree.ValTreeToConstValue(ev, valtree.LeafBits(0, 8), rp); err == nil || err.Code != interp.EvalTypeMismatch {
		t.Fatalf("materializing a raw pointer gave %v", err)
	}
}

func TestInteriorMutabilityRejected(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)

	// A union's value can change behind a shared reference, so it has
	// no stable tree form in either direction.
	u := in.DeclareUnion("Raw", []types.FieldInfo{
		{Name: "byte", Type: bi.U8},
		{Name: "word", Type: bi.U32},
	})
	cv := interp.ConstValue{Kind: interp.CVScalar, Type: u, A: mem.BitsFrom(0, 4)}
	if _, ok := valtree.ConstToValTree(ev, cv); ok {
		t.Fatal("union value condensed into a tree")
	}
	if _, err := valtree.ValTreeToConstValue(ev, valtree.LeafBits(0, 4), u); err == nil || err.Code != interp.EvalTypeMismatch {
		t.Fatalf("materializing a union gave %v", err)
	}
}

func TestBareUnsizedRootRejected(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	sliceU8 := in.Intern(types.MakeSlice(bi.U8))

	// Without a wrapping reference there is nowhere to keep the length,
	// so the reverse conversion could never recover the tree.
	tree := valtree.Branch(valtree.LeafBits(1, 1), valtree.LeafBits(2, 1))
	if _, err := valtree.ValTreeToConstValue(ev, tree, sliceU8); err == nil || err.Code != interp.EvalTypeMismatch {
		t.Fatalf("materializing a bare slice gave %v", err)
	}
	if _, err := valtree.ValTreeToConstValue(ev, tree, bi.Str); err == nil || err.Code != interp.EvalTypeMismatch {
		t.Fatalf("materializing a bare str gave %v", err)
	}

	// Behind a reference the same tree is fine.
	cv := mustToConst(t, ev, tree, in.Intern(types.MakeRef(sliceU8)))
	if cv.Kind != interp.CVSlice {
		t.Fatalf("&[u8] const kind = %s", cv.Kind)
	}
}

func TestRoundTripLaw(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)

	nested := in.DeclareStruct("Pair", []types.FieldInfo{
		{Name: "flag", Type: bi.Bool},
		{Name: "words", Type: in.Intern(types.MakeArray(bi.U16, 2))},
	})
	tree := valtree.Branch(
		valtree.LeafBits(1, 1),
		valtree.Branch(valtree.LeafBits(300, 2), valtree.LeafBits(400, 2)),
	)

	cv := mustToConst(t, ev, tree, nested)
	back := mustFromConst(t, ev, cv)
	if !valtree.Equal(back, tree) {
		t.Fatalf("round trip changed the tree: %s vs %s", back, tree)
	}

	// The materialized graph is frozen.
	if cv.Kind != interp.CVByRef {
		t.Fatalf("struct const kind = %s", cv.Kind)
	}
	if werr := ev.Mem.WriteScalar(cv.Ptr, mem.BitsFrom(0, 1), 1, 1); werr == nil || werr.Code != mem.AccessImmutable {
		t.Fatalf("write to materialized constant gave %v", werr)
	}
}

func TestBadVariantIndex(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	ev := newEval(t, in)
	opt := in.DeclareEnum("Option", []types.VariantInfo{
		{Name: "None"},
		{Name: "Some", Fields: []types.FieldInfo{{Name: "0", Type: bi.U8}}},
	})

	bad := valtree.Branch(valtree.LeafBits(5, 4), valtree.LeafBits(7, 1))
	_, err := valtree.ValTreeToConstValue(ev, bad, opt)
	if err == nil || err.Code != interp.EvalBadVariant {
		t.Fatalf("variant 5 of 2 gave %v", err)
	}
}

func TestTrailingElemCount(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	sliceU8 := in.Intern(types.MakeSlice(bi.U8))

	three := valtree.Branch(valtree.LeafBits(1, 1), valtree.LeafBits(2, 1), valtree.LeafBits(3, 1))
	if n, ok := valtree.TrailingElemCount(in, sliceU8, three); !ok || n != 3 {
		t.Fatalf("slice count = %d, ok=%v", n, ok)
	}
	if n, ok := valtree.TrailingElemCount(in, bi.Str, valtree.Branch(valtree.LeafBits('a', 1))); !ok || n != 1 {
		t.Fatalf("str count = %d, ok=%v", n, ok)
	}

	// The count of an unsized struct comes from its last field,
	// recursively.
	packet := in.DeclareStruct("Packet", []types.FieldInfo{
		{Name: "id", Type: bi.U32},
		{Name: "data", Type: sliceU8},
	})
	tree := valtree.Branch(valtree.LeafBits(9, 4), three)
	if n, ok := valtree.TrailingElemCount(in, packet, tree); !ok || n != 3 {
		t.Fatalf("struct tail count = %d, ok=%v", n, ok)
	}

	if _, ok := valtree.TrailingElemCount(in, bi.I32, valtree.LeafBits(0, 4)); ok {
		t.Fatal("sized type reported a trailing count")
	}
	if _, ok := valtree.TrailingElemCount(in, sliceU8, valtree.LeafBits(0, 1)); ok {
		t.Fatal("leaf tree sized a slice")
	}
	if _, ok := valtree.TrailingElemCount(in, packet, three); ok {
		t.Fatal("mis-shaped struct tree produced a count")
	}
}
