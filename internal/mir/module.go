package mir

import (
	"constvm/internal/types"
)

// ConstDef names one constant the module wants evaluated: a synthetic
// zero-argument body whose return place is the constant's value.
type ConstDef struct {
	Name string
	Fn   FuncID
	Type types.TypeID
}

// Module is a set of IR bodies plus the constants defined over them.
type Module struct {
	Funcs  map[FuncID]*Body
	Consts []ConstDef
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{Funcs: make(map[FuncID]*Body, 8)}
}

// Add registers a body under its own ID.
func (m *Module) Add(b *Body) {
	m.Funcs[b.ID] = b
}

// Body implements Loader.
func (m *Module) Body(id FuncID) (*Body, bool) {
	b, ok := m.Funcs[id]
	return b, ok && b != nil
}

// Loader resolves a function identifier to its IR body. A missing body
// is not an error here; the evaluator reports it as a distinguishable
// "not available for interpretation" condition so the caller decides
// whether that is fatal.
type Loader interface {
	Body(id FuncID) (*Body, bool)
}
