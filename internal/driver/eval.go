// Package driver orchestrates whole-module operations for the CLI:
// loading, validating and evaluating constant sets.
package driver

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"constvm/internal/interp"
	"constvm/internal/layout"
	"constvm/internal/mir"
	"constvm/internal/types"
	"constvm/internal/valtree"
)

// Options configures one module evaluation run.
type Options struct {
	Target layout.Target
	Limits interp.Limits

	// Jobs caps parallelism; <=0 means GOMAXPROCS.
	Jobs int

	// Trace receives a step-by-step execution log. Tracing forces the
	// run down to a single job so the log stays readable.
	Trace io.Writer

	// TagPointers stamps new references with a provenance tag.
	TagPointers bool

	// Trees additionally condenses each result into a value tree where
	// the constant's type supports one.
	Trees bool
}

// ConstResult is the outcome for one constant, in module order.
type ConstResult struct {
	Def   mir.ConstDef
	Value interp.ConstValue
	Tree  valtree.Tree
	// HasTree is set when Trees was requested and the type has a tree
	// representation.
	HasTree bool
	Err     *interp.EvalError
}

// Failed counts the errored results.
func Failed(results []ConstResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// EvalModule validates a module and evaluates every constant it
// defines. Constants are independent, so they run in parallel, one
// evaluator (and one arena) per constant; the results come back in
// definition order. Per-constant evaluation faults land in the result
// slice, not in the returned error.
func EvalModule(ctx context.Context, m *mir.Module, typesIn *types.Interner, opts Options) ([]ConstResult, error) {
	if err := mir.Validate(m, typesIn); err != nil {
		return nil, fmt.Errorf("validate module: %w", err)
	}
	if len(m.Consts) == 0 {
		return nil, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Trace != nil {
		jobs = 1
	}

	results := make([]ConstResult, len(m.Consts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(m.Consts)))

	for i, def := range m.Consts {
		i, def := i, def
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			evOpts := interp.Options{
				Target:      opts.Target,
				Limits:      opts.Limits,
				TagPointers: opts.TagPointers,
			}
			if opts.Trace != nil {
				evOpts.Tracer = interp.NewTracer(opts.Trace)
			}
			ev := interp.New(typesIn, m, evOpts)

			r := ConstResult{Def: def}
			r.Value, r.Err = ev.EvalConst(def)
			if r.Err == nil && opts.Trees {
				r.Tree, r.HasTree = valtree.ConstToValTree(ev, r.Value)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
