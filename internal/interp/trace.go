package interp

import (
	"fmt"
	"io"

	"constvm/internal/mir"
)

// Tracer outputs execution traces for debugging. All methods are
// nil-safe so tracing can stay unconditionally wired in the hot path.
type Tracer struct {
	w io.Writer
}

// NewTracer creates a new tracer that writes to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// TraceEnter traces a frame push.
func (t *Tracer) TraceEnter(depth int, name string) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] enter %s\n", depth, name)
}

// TraceLeave traces a frame pop.
func (t *Tracer) TraceLeave(depth int, name string) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] leave %s\n", depth, name)
}

// TraceStmt traces execution of a statement.
// Format: [depth=N] <func> bb<id>:ip<ip> <statement>
func (t *Tracer) TraceStmt(depth int, name string, bb mir.BlockID, ip int, st *mir.Statement) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] %s bb%d:ip%d %s\n", depth, name, bb, ip, mir.FormatStatement(st))
}

// TraceTerm traces execution of a terminator.
func (t *Tracer) TraceTerm(depth int, name string, bb mir.BlockID, term *mir.Terminator) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] %s bb%d:term %s\n", depth, name, bb, mir.FormatTerminator(term))
}
