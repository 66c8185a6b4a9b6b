package interp

import (
	"fmt"

	"constvm/internal/layout"
	"constvm/internal/mem"
	"constvm/internal/mir"
	"constvm/internal/types"
)

// Limits bounds one evaluation so non-terminating IR cannot hang the
// host.
type Limits struct {
	MaxSteps int
	MaxStack int
}

// DefaultLimits returns the default evaluation budget.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps: 1_000_000,
		MaxStack: 256,
	}
}

// Options configures an evaluator.
type Options struct {
	Target layout.Target
	Limits Limits
	Tracer *Tracer

	// TagPointers stamps new references with a provenance tag.
	TagPointers bool
}

// Eval is one evaluation context: the frame stack, the memory arena it
// exclusively owns, and the oracles (types, layout, body loader) it
// consults. Not safe for concurrent use; run one Eval per goroutine.
type Eval struct {
	Types  *types.Interner
	Layout *layout.Engine
	Mem    *mem.Memory
	Loader mir.Loader
	Limits Limits
	Tracer *Tracer

	Stack []Frame

	tagPointers bool
	steps       int
	strCache    map[string]mem.Pointer
	eb          errorBuilder
}

// New creates an evaluator over the given type environment and body
// loader.
func New(typesIn *types.Interner, loader mir.Loader, opts Options) *Eval {
	target := opts.Target
	if target.PtrSize <= 0 {
		target = layout.X86_64LinuxGNU()
	}
	limits := opts.Limits
	if limits.MaxSteps <= 0 {
		limits.MaxSteps = DefaultLimits().MaxSteps
	}
	if limits.MaxStack <= 0 {
		limits.MaxStack = DefaultLimits().MaxStack
	}
	ev := &Eval{
		Types:       typesIn,
		Layout:      layout.New(target, typesIn),
		Mem:         mem.NewMemory(target.PtrSize),
		Loader:      loader,
		Limits:      limits,
		Tracer:      opts.Tracer,
		tagPointers: opts.TagPointers,
	}
	ev.eb.ev = ev
	return ev
}

func (ev *Eval) top() *Frame {
	return &ev.Stack[len(ev.Stack)-1]
}

func (ev *Eval) layoutOf(t types.TypeID) (layout.TypeLayout, *EvalError) {
	l, err := ev.Layout.LayoutOf(t)
	if err != nil {
		return l, ev.eb.layoutFault(err)
	}
	return l, nil
}

// pushFrame activates a body. The frame's return wiring is the caller's
// responsibility.
func (ev *Eval) pushFrame(body *mir.Body) (*Frame, *EvalError) {
	if len(ev.Stack) >= ev.Limits.MaxStack {
		return nil, ev.eb.makeError(EvalStackOverflow,
			fmt.Sprintf("frame stack exceeds %d frames", ev.Limits.MaxStack))
	}
	ev.Stack = append(ev.Stack, *newFrame(body))
	ev.Tracer.TraceEnter(len(ev.Stack), body.Name)
	return ev.top(), nil
}

// Run steps until the stack unwinds or a fault occurs.
func (ev *Eval) Run() *EvalError {
	for len(ev.Stack) > 0 {
		if err := ev.Step(); err != nil {
			return err
		}
	}
	return nil
}

// EvalBody evaluates a zero-argument body to completion and returns the
// resolved result place, backed by an interned allocation.
func (ev *Eval) EvalBody(fn mir.FuncID) (PlaceTy, *EvalError) {
	body, ok := ev.Loader.Body(fn)
	if !ok {
		return PlaceTy{}, ev.eb.notConst(fmt.Sprintf("fn#%d has no body available for evaluation", fn))
	}
	if body.IsIntrinsic() {
		return PlaceTy{}, ev.eb.notConst(fmt.Sprintf("intrinsic %s cannot be evaluated as a root body", body.Intrinsic))
	}
	if body.ArgCount != 0 {
		return PlaceTy{}, ev.eb.notConst(fmt.Sprintf("%s takes %d arguments", body.Name, body.ArgCount))
	}

	resultTy := body.Result()
	rl, err := ev.layoutOf(resultTy)
	if err != nil {
		return PlaceTy{}, err
	}
	if rl.Unsized {
		return PlaceTy{}, ev.eb.typeMismatch("sized result type", "unsized")
	}
	if rl.Uninhabited {
		return PlaceTy{}, ev.eb.notConst(fmt.Sprintf("%s returns an uninhabited type", body.Name))
	}
	ptr, aerr := ev.Mem.Allocate(rl.Size, rl.Align, mem.AllocValue)
	if aerr != nil {
		return PlaceTy{}, ev.eb.memFault(aerr)
	}
	ret := MemPlace{Ptr: ptr, Align: rl.Align}

	frame, ferr := ev.pushFrame(body)
	if ferr != nil {
		return PlaceTy{}, ferr
	}
	frame.Locals[mir.ReturnLocal] = LocalSlot{
		State:  slotMem,
		Mem:    ret,
		Name:   body.Locals[mir.ReturnLocal].Name,
		TypeID: resultTy,
	}

	if rerr := ev.Run(); rerr != nil {
		return PlaceTy{}, rerr
	}
	if ierr := ev.Mem.InternRecursive(ptr.Alloc); ierr != nil {
		return PlaceTy{}, ev.eb.memFault(ierr)
	}
	return PlaceTy{
		Kind:    PlaceMem,
		Mem:     ret,
		Type:    resultTy,
		Layout:  rl,
		Variant: -1,
	}, nil
}

// EvalConst evaluates one constant definition to a ConstValue.
func (ev *Eval) EvalConst(def mir.ConstDef) (ConstValue, *EvalError) {
	place, err := ev.EvalBody(def.Fn)
	if err != nil {
		return ConstValue{}, err
	}
	if place.Type != def.Type {
		return ConstValue{}, ev.eb.typeMismatch(
			fmt.Sprintf("const %s of type#%d", def.Name, def.Type),
			fmt.Sprintf("initializer of type#%d", place.Type))
	}
	return ev.PlaceToConstValue(place)
}
