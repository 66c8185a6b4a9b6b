package driver_test

import (
	"context"
	"strings"
	"testing"

	"constvm/internal/driver"
	"constvm/internal/interp"
	"constvm/internal/mir"
	"constvm/internal/types"
	"constvm/internal/valtree"
)

// buildModule defines three constants: ANSWER = 42, BAD divides by
// zero, and PAIR = (1u8, 2u8).
func buildModule(t *testing.T) (*mir.Module, *types.Interner) {
	t.Helper()
	in := types.NewInterner()
	bi := in.Builtins()
	m := mir.NewModule()

	b := mir.NewBodyBuilder(1, "answer_init", bi.I32, nil)
	b.Assign(mir.PlaceOf(mir.ReturnLocal), mir.UseRV(mir.ConstOp(42, bi.I32)))
	b.Return()
	m.Add(b.Finish())
	m.Consts = append(m.Consts, mir.ConstDef{Name: "ANSWER", Fn: 1, Type: bi.I32})

	b = mir.NewBodyBuilder(2, "bad_init", bi.I32, nil)
	b.Assign(mir.PlaceOf(mir.ReturnLocal), mir.BinaryRV(mir.BinDiv,
		mir.ConstOp(1, bi.I32), mir.ConstOp(0, bi.I32)))
	b.Return()
	m.Add(b.Finish())
	m.Consts = append(m.Consts, mir.ConstDef{Name: "BAD", Fn: 2, Type: bi.I32})

	pair := in.InternTuple([]types.TypeID{bi.U8, bi.U8})
	b = mir.NewBodyBuilder(3, "pair_init", pair, nil)
	b.Assign(mir.PlaceOf(mir.ReturnLocal), mir.TupleRV(pair,
		mir.ConstOp(1, bi.U8), mir.ConstOp(2, bi.U8)))
	b.Return()
	m.Add(b.Finish())
	m.Consts = append(m.Consts, mir.ConstDef{Name: "PAIR", Fn: 3, Type: pair})

	return m, in
}

func TestEvalModule(t *testing.T) {
	m, in := buildModule(t)
	results, err := driver.EvalModule(context.Background(), m, in, driver.Options{})
	if err != nil {
		t.Fatalf("EvalModule: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	// Results come back in definition order regardless of scheduling.
	if results[0].Def.Name != "ANSWER" || results[1].Def.Name != "BAD" || results[2].Def.Name != "PAIR" {
		t.Fatalf("result order: %s, %s, %s",
			results[0].Def.Name, results[1].Def.Name, results[2].Def.Name)
	}

	if results[0].Err != nil {
		t.Fatalf("ANSWER failed: %s", results[0].Err.Format())
	}
	if bits, _ := results[0].Value.A.ToBits(); bits != 42 {
		t.Fatalf("ANSWER = %d", bits)
	}

	if results[1].Err == nil || results[1].Err.Code != interp.EvalDivByZero {
		t.Fatalf("BAD error = %v", results[1].Err)
	}

	if results[2].Err != nil || results[2].Value.Kind != interp.CVScalarPair {
		t.Fatalf("PAIR = %+v", results[2])
	}

	if n := driver.Failed(results); n != 1 {
		t.Fatalf("Failed = %d, want 1", n)
	}
}

func TestEvalModuleSingleJob(t *testing.T) {
	m, in := buildModule(t)
	results, err := driver.EvalModule(context.Background(), m, in, driver.Options{Jobs: 1})
	if err != nil {
		t.Fatalf("EvalModule: %v", err)
	}
	if driver.Failed(results) != 1 {
		t.Fatalf("Failed = %d", driver.Failed(results))
	}
}

func TestEvalModuleTrees(t *testing.T) {
	m, in := buildModule(t)
	results, err := driver.EvalModule(context.Background(), m, in, driver.Options{Trees: true})
	if err != nil {
		t.Fatalf("EvalModule: %v", err)
	}

	if !results[0].HasTree || !valtree.Equal(results[0].Tree, valtree.LeafBits(42, 4)) {
		t.Fatalf("ANSWER tree = %s, has=%v", results[0].Tree, results[0].HasTree)
	}
	if results[1].HasTree {
		t.Fatal("failed constant still produced a tree")
	}
	want := valtree.Branch(valtree.LeafBits(1, 1), valtree.LeafBits(2, 1))
	if !results[2].HasTree || !valtree.Equal(results[2].Tree, want) {
		t.Fatalf("PAIR tree = %s", results[2].Tree)
	}
}

func TestEvalModuleTraceForcesSerial(t *testing.T) {
	m, in := buildModule(t)
	var sb strings.Builder
	results, err := driver.EvalModule(context.Background(), m, in, driver.Options{Trace: &sb, Jobs: 4})
	if err != nil {
		t.Fatalf("EvalModule: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	out := sb.String()
	for _, want := range []string{"answer_init", "bad_init", "pair_init"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace missing %q", want)
		}
	}
}

func TestEvalModuleRejectsInvalid(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	m := mir.NewModule()
	b := mir.NewBodyBuilder(1, "broken", bi.I32, nil)
	b.Goto(99)
	m.Add(b.Finish())
	m.Consts = append(m.Consts, mir.ConstDef{Name: "C", Fn: 1, Type: bi.I32})

	if _, err := driver.EvalModule(context.Background(), m, in, driver.Options{}); err == nil {
		t.Fatal("invalid module accepted")
	}
}

func TestEvalModuleEmpty(t *testing.T) {
	in := types.NewInterner()
	m := mir.NewModule()
	results, err := driver.EvalModule(context.Background(), m, in, driver.Options{})
	if err != nil || len(results) != 0 {
		t.Fatalf("empty module: %v, %d results", err, len(results))
	}
}
