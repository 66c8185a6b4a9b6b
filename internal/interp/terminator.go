package interp

import (
	"fmt"

	"constvm/internal/mir"
)

func (ev *Eval) execTerminator(t *mir.Terminator) *EvalError {
	frameIdx := len(ev.Stack) - 1
	frame := ev.top()

	switch t.Kind {
	case mir.TermReturn:
		return ev.execReturn()

	case mir.TermGoto:
		frame.jump(t.Goto.Target)
		return nil

	case mir.TermSwitchInt:
		return ev.execSwitchInt(frameIdx, &t.SwitchInt)

	case mir.TermCall:
		return ev.execCall(frameIdx, &t.Call)

	case mir.TermAssert:
		return ev.execAssert(frameIdx, &t.Assert)

	case mir.TermUnreachable:
		return ev.eb.makeError(EvalUnreachable, "entered unreachable code")

	case mir.TermNone:
		panic(fmt.Sprintf("interp: unterminated block bb%d in %s", frame.BB, frame.Body.Name))

	default:
		panic(fmt.Sprintf("interp: unknown terminator kind %d", t.Kind))
	}
}

// execReturn hands the callee's return place to the caller and pops the
// frame. The bottom frame's return place is memory owned by the caller
// of EvalBody, so popping it finishes the evaluation.
func (ev *Eval) execReturn() *EvalError {
	calleeIdx := len(ev.Stack) - 1
	callee := &ev.Stack[calleeIdx]
	ev.Tracer.TraceLeave(len(ev.Stack), callee.Body.Name)

	if calleeIdx == 0 {
		ev.Stack = ev.Stack[:0]
		return nil
	}

	retPlace, err := ev.evalPlace(calleeIdx, mir.PlaceOf(mir.ReturnLocal))
	if err != nil {
		return err
	}
	src := ev.PlaceAsOp(retPlace)

	callerIdx := calleeIdx - 1
	dst, err := ev.evalPlace(callerIdx, callee.RetDst)
	if err != nil {
		return err
	}
	if err := ev.WriteOperand(dst, src); err != nil {
		return err
	}

	ev.Stack[callerIdx].jump(callee.RetTarget)
	ev.Stack = ev.Stack[:calleeIdx]
	return nil
}

func (ev *Eval) execSwitchInt(frameIdx int, sw *mir.SwitchIntTerm) *EvalError {
	op, err := ev.evalOperand(frameIdx, &sw.Discr)
	if err != nil {
		return err
	}
	im, err := ev.ReadImmediate(op)
	if err != nil {
		return err
	}
	if im.Kind != ImmScalar {
		return ev.eb.typeMismatch("integer discriminant", im.String())
	}
	raw, aerr := im.A.ToBits()
	if aerr != nil {
		return ev.eb.memFault(aerr)
	}

	target := sw.Otherwise
	for i, v := range sw.Values {
		if v == raw {
			target = sw.Targets[i]
			break
		}
	}
	ev.top().jump(target)
	return nil
}

// execCall pushes a frame for the callee, or resolves an intrinsic in
// place. Only direct calls to function constants are evaluable; a
// callee without an available body is reported as not const-evaluable
// rather than as a crash, so callers can fall back.
func (ev *Eval) execCall(frameIdx int, call *mir.CallTerm) *EvalError {
	if call.Callee.Kind != mir.OperandConst || call.Callee.Const.Kind != mir.ConstFn {
		return ev.eb.notConst("indirect call through a function pointer")
	}
	fn := call.Callee.Const.Fn
	body, ok := ev.Loader.Body(fn)
	if !ok {
		return ev.eb.notConst(fmt.Sprintf("fn#%d has no body available for evaluation", fn))
	}

	if body.IsIntrinsic() {
		dst, err := ev.evalPlace(frameIdx, call.Dst)
		if err != nil {
			return err
		}
		if err := ev.callIntrinsic(body, dst); err != nil {
			return err
		}
		ev.top().jump(call.Target)
		return nil
	}

	if len(call.Args) != body.ArgCount {
		return ev.eb.typeMismatch(
			fmt.Sprintf("%d arguments for %s", body.ArgCount, body.Name),
			fmt.Sprintf("%d arguments", len(call.Args)))
	}

	// Evaluate arguments in the caller before the callee frame exists.
	args := make([]OpTy, len(call.Args))
	for i := range call.Args {
		a, err := ev.evalOperand(frameIdx, &call.Args[i])
		if err != nil {
			return err
		}
		args[i] = a
	}

	callee, err := ev.pushFrame(body)
	if err != nil {
		return err
	}
	callee.RetDst = call.Dst
	callee.RetTarget = call.Target

	calleeIdx := len(ev.Stack) - 1
	for i, a := range args {
		argPlace, err := ev.evalPlace(calleeIdx, mir.PlaceOf(mir.LocalID(i+1)))
		if err != nil {
			return err
		}
		if err := ev.WriteOperand(argPlace, a); err != nil {
			return err
		}
	}
	return nil
}

func (ev *Eval) execAssert(frameIdx int, a *mir.AssertTerm) *EvalError {
	op, err := ev.evalOperand(frameIdx, &a.Cond)
	if err != nil {
		return err
	}
	im, err := ev.ReadImmediate(op)
	if err != nil {
		return err
	}
	if im.Kind != ImmScalar {
		return ev.eb.typeMismatch("boolean condition", im.String())
	}
	b, aerr := im.A.ToBool()
	if aerr != nil {
		return ev.eb.memFault(aerr)
	}
	if b != a.Expected {
		return ev.eb.assertFailed(a.Msg)
	}
	ev.top().jump(a.Target)
	return nil
}
