package layout_test

import (
	"errors"
	"testing"

	"constvm/internal/layout"
	"constvm/internal/types"
)

func newEngine(t *testing.T) (*layout.Engine, *types.Interner) {
	t.Helper()
	in := types.NewInterner()
	return layout.New(layout.X86_64LinuxGNU(), in), in
}

func mustLayout(t *testing.T, e *layout.Engine, id types.TypeID) layout.TypeLayout {
	t.Helper()
	l, err := e.LayoutOf(id)
	if err != nil {
		t.Fatalf("LayoutOf(%d): %v", id, err)
	}
	return l
}

func TestPrimitiveLayouts(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	cases := []struct {
		name  string
		id    types.TypeID
		size  int
		align int
	}{
		{"bool", bi.Bool, 1, 1},
		{"char", bi.Char, 4, 4},
		{"u8", bi.U8, 1, 1},
		{"i32", bi.I32, 4, 4},
		{"u64", bi.U64, 8, 8},
		{"f64", bi.F64, 8, 8},
	}
	for _, tc := range cases {
		l := mustLayout(t, e, tc.id)
		if l.Size != tc.size || l.Align != tc.align || l.ABI != layout.AbiScalar {
			t.Errorf("%s: size=%d align=%d abi=%s, want %d/%d/scalar",
				tc.name, l.Size, l.Align, l.ABI, tc.size, tc.align)
		}
	}
}

func TestTupleLayout(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	// (u8, u32): padding before the u32, trailing size rounded to align.
	tup := in.InternTuple([]types.TypeID{bi.U8, bi.U32})
	l := mustLayout(t, e, tup)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("(u8,u32) size=%d align=%d, want 8/4", l.Size, l.Align)
	}
	if l.FieldOffsets[0] != 0 || l.FieldOffsets[1] != 4 {
		t.Fatalf("(u8,u32) offsets = %v, want [0 4]", l.FieldOffsets)
	}
	if l.ABI != layout.AbiScalarPair {
		t.Fatalf("(u8,u32) ABI = %s, want scalar-pair", l.ABI)
	}

	unit := in.InternTuple(nil)
	ul := mustLayout(t, e, unit)
	if !ul.IsZeroSized() || ul.ABI != layout.AbiScalar {
		t.Fatalf("unit layout = %+v", ul)
	}
}

func TestSingleFieldStructIsScalar(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	wrap := in.DeclareStruct("Wrap", []types.FieldInfo{{Name: "0", Type: bi.I64}})
	l := mustLayout(t, e, wrap)
	if l.ABI != layout.AbiScalar || l.Size != 8 {
		t.Fatalf("newtype over i64: abi=%s size=%d", l.ABI, l.Size)
	}
}

func TestPointerLayouts(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	thin := mustLayout(t, e, in.Intern(types.MakeRef(bi.I32)))
	if thin.Size != 8 || thin.ABI != layout.AbiScalar || !thin.A.Ptr {
		t.Fatalf("&i32 layout = %+v", thin)
	}

	wide := mustLayout(t, e, in.Intern(types.MakeRef(bi.Str)))
	if wide.Size != 16 || wide.ABI != layout.AbiScalarPair {
		t.Fatalf("&str layout = %+v", wide)
	}
	if !wide.A.Ptr || wide.B.Ptr || wide.B.Offset != 8 {
		t.Fatalf("&str parts: A=%+v B=%+v", wide.A, wide.B)
	}
}

func TestEnumLayout(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	opt := in.DeclareEnum("Option", []types.VariantInfo{
		{Name: "None"},
		{Name: "Some", Fields: []types.FieldInfo{{Name: "0", Type: bi.U64}}},
	})
	l := mustLayout(t, e, opt)
	if l.TagSize != 4 {
		t.Fatalf("tag size = %d, want 4", l.TagSize)
	}
	// Tag at offset 0, u64 payload aligned to 8: total 16.
	if l.Size != 16 || l.Align != 8 {
		t.Fatalf("Option<u64> size=%d align=%d, want 16/8", l.Size, l.Align)
	}
	if len(l.Variants) != 2 {
		t.Fatalf("variant layouts = %d, want 2", len(l.Variants))
	}
	if off := l.Variants[1].FieldOffsets[0]; off != 8 {
		t.Fatalf("Some payload offset = %d, want 8", off)
	}

	empty := mustLayout(t, e, in.DeclareEnum("Void", nil))
	if !empty.Uninhabited {
		t.Fatal("zero-variant enum must be uninhabited")
	}
}

func TestArrayAndSliceLayout(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	arr := mustLayout(t, e, in.Intern(types.MakeArray(bi.U16, 5)))
	if arr.Size != 10 || arr.Align != 2 || arr.ABI != layout.AbiAggregate {
		t.Fatalf("[u16; 5] layout = %+v", arr)
	}

	sl := mustLayout(t, e, in.Intern(types.MakeSlice(bi.U64)))
	if !sl.Unsized || sl.Size != 0 || sl.Align != 8 {
		t.Fatalf("[u64] layout = %+v", sl)
	}

	str := mustLayout(t, e, bi.Str)
	if !str.Unsized || str.Align != 1 {
		t.Fatalf("str layout = %+v", str)
	}
}

func TestUnsizedStructTail(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	packet := in.DeclareStruct("Packet", []types.FieldInfo{
		{Name: "id", Type: bi.U32},
		{Name: "data", Type: in.Intern(types.MakeSlice(bi.U8))},
	})
	l := mustLayout(t, e, packet)
	if !l.Unsized {
		t.Fatal("struct with slice tail must be unsized")
	}
	if l.TailOffset != 4 {
		t.Fatalf("tail offset = %d, want 4", l.TailOffset)
	}
}

func TestRecursiveTypeFails(t *testing.T) {
	_, in := newEngine(t)

	// A struct directly containing itself has no finite layout. The
	// declaration is patched after interning to close the cycle.
	node := in.DeclareStruct("Node", nil)
	info, _ := in.AdtInfo(node)
	info.Variants[0].Fields = []types.FieldInfo{{Name: "next", Type: node}}

	e := layout.New(layout.X86_64LinuxGNU(), in)
	_, err := e.LayoutOf(node)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrRecursive {
		t.Fatalf("recursive struct: got %v", err)
	}

	// Indirection through a reference breaks the cycle.
	list := in.DeclareStruct("List", nil)
	linfo, _ := in.AdtInfo(list)
	linfo.Variants[0].Fields = []types.FieldInfo{{Name: "next", Type: in.Intern(types.MakeRef(list))}}
	e2 := layout.New(layout.X86_64LinuxGNU(), in)
	if _, err := e2.LayoutOf(list); err != nil {
		t.Fatalf("ref-linked list should lay out: %v", err)
	}
}

func TestStride(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()

	// (u32, u8) has size 8 after rounding; stride equals size.
	tup := in.InternTuple([]types.TypeID{bi.U32, bi.U8})
	l := mustLayout(t, e, tup)
	if got := layout.Stride(l); got != l.Size {
		t.Fatalf("stride %d != rounded size %d", got, l.Size)
	}
	if got := layout.Stride(mustLayout(t, e, bi.U8)); got != 1 {
		t.Fatalf("u8 stride = %d", got)
	}
}

func TestLayoutCacheStable(t *testing.T) {
	e, in := newEngine(t)
	bi := in.Builtins()
	tup := in.InternTuple([]types.TypeID{bi.U8, bi.U32})

	first := mustLayout(t, e, tup)
	second := mustLayout(t, e, tup)
	if first.Size != second.Size || first.Align != second.Align || first.ABI != second.ABI {
		t.Fatalf("cached layout differs: %+v vs %+v", first, second)
	}
}
