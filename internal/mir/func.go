package mir

import (
	"constvm/internal/types"
)

// Body is the IR of one function or one constant's synthetic
// initializer. Local 0 is the return place, locals 1..ArgCount are the
// arguments.
type Body struct {
	ID   FuncID
	Name string

	ArgCount int
	Locals   []Local
	Blocks   []Block
	Entry    BlockID

	// Intrinsic bodies have no blocks; the evaluator resolves them
	// in place without pushing a frame.
	Intrinsic string
	TypeArg   types.TypeID
}

// Result returns the body's result type (the type of local 0).
func (b *Body) Result() types.TypeID {
	if len(b.Locals) == 0 {
		return types.NoTypeID
	}
	return b.Locals[ReturnLocal].Type
}

// IsIntrinsic reports whether the body is resolved without a frame.
func (b *Body) IsIntrinsic() bool {
	return b.Intrinsic != ""
}
