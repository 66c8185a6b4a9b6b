package mir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermSwitchInt
	TermCall
	TermAssert
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto        GotoTerm
	SwitchInt   SwitchIntTerm
	Call        CallTerm
	Assert      AssertTerm
	Return      struct{}
	Unreachable struct{}
}

type GotoTerm struct {
	Target BlockID
}

// SwitchIntTerm compares a discriminant operand against Values; the
// matching Targets entry is taken, Otherwise when none matches.
type SwitchIntTerm struct {
	Discr     Operand
	Values    []uint64
	Targets   []BlockID
	Otherwise BlockID
}

// CallTerm invokes a function constant. The callee's return place is
// wired to Dst; control resumes at Target after the callee returns.
type CallTerm struct {
	Callee Operand
	Args   []Operand
	Dst    Place
	Target BlockID
}

// AssertTerm traps when Cond does not evaluate to Expected.
type AssertTerm struct {
	Cond     Operand
	Expected bool
	Msg      string
	Target   BlockID
}
