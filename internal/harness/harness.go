// Package harness implements C5: compiling and invoking user-authored
// calculation_method/select_func/risk_control_func callables inside a
// sandboxed goja JS runtime, with a per-call wall-clock budget and a
// missing-value sentinel user code tests for explicitly (spec.md §4.5).
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/moznion/go-optional"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// Harness compiles and runs user-authored callables. Each call gets a
// fresh *goja.Runtime: goja.Runtime is not safe for concurrent use, and
// indicator evaluation is parallelised across symbols (spec.md §4.4), so
// sharing one runtime across goroutines would corrupt state.
type Harness struct {
	// Timeout bounds each individual call; a breach surfaces as
	// UserCodeTimeout for every callable.
	Timeout time.Duration
}

// New returns a Harness with the spec's default 1s per-call budget.
func New() *Harness {
	return &Harness{Timeout: time.Second}
}

// InvokeIndicator runs calculation_method(params) -> number. Implements
// panel.IndicatorInvoker.
func (h *Harness) InvokeIndicator(ctx context.Context, ind types.Indicator, paramView map[string]optional.Option[float64]) (float64, error) {
	result, err := h.run(ctx, ind.CalculationMethod, func(vm *goja.Runtime) []goja.Value {
		return []goja.Value{vm.ToValue(toJSView(vm, paramView))}
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUserCodeTimeout) {
			return 0, err
		}

		return 0, errors.NewKindf(errors.KindUserIndicatorError, "indicator %q failed: %v", ind.FQName(), err)
	}

	num, ok := asFloat(result)
	if !ok {
		return 0, errors.NewKindf(errors.KindUserIndicatorError, "indicator %q returned a non-numeric value", ind.FQName())
	}

	return num, nil
}

// SelectFuncArgs is the exact positional argument set select_func receives
// (spec.md §4.6 step 3).
type SelectFuncArgs struct {
	Candidates       []string
	ParamViews       map[string]map[string]optional.Option[float64]
	PositionCount    int
	CurrentHoldings  []string
	Day              time.Time
	Context          map[string]any
}

// InvokeSelect runs select_func(candidates, params, position_count,
// current_holdings_after_risk, d, context) -> target symbol list.
func (h *Harness) InvokeSelect(ctx context.Context, source string, args SelectFuncArgs) ([]string, error) {
	result, err := h.run(ctx, source, func(vm *goja.Runtime) []goja.Value {
		return []goja.Value{
			vm.ToValue(args.Candidates),
			vm.ToValue(toJSViewMap(vm, args.ParamViews)),
			vm.ToValue(args.PositionCount),
			vm.ToValue(args.CurrentHoldings),
			vm.ToValue(args.Day.Format("2006-01-02")),
			vm.ToValue(args.Context),
		}
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUserCodeTimeout) {
			return nil, err
		}

		return nil, errors.NewKindf(errors.KindUserStrategyError, "select_func failed on %s: %v", args.Day.Format("2006-01-02"), err)
	}

	return asStringSlice(result)
}

// RiskControlArgs is the exact positional argument set risk_control_func
// receives (spec.md §4.6 step 2).
type RiskControlArgs struct {
	CurrentHoldings []string
	ParamViews      map[string]map[string]optional.Option[float64]
	Day             time.Time
	Context         map[string]any
}

// InvokeRiskControl runs risk_control_func(current_holdings, params, d,
// context) -> retained holdings list.
func (h *Harness) InvokeRiskControl(ctx context.Context, source string, args RiskControlArgs) ([]string, error) {
	result, err := h.run(ctx, source, func(vm *goja.Runtime) []goja.Value {
		return []goja.Value{
			vm.ToValue(args.CurrentHoldings),
			vm.ToValue(toJSViewMap(vm, args.ParamViews)),
			vm.ToValue(args.Day.Format("2006-01-02")),
			vm.ToValue(args.Context),
		}
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUserCodeTimeout) {
			return nil, err
		}

		return nil, errors.NewKindf(errors.KindUserStrategyError, "risk_control_func failed on %s: %v", args.Day.Format("2006-01-02"), err)
	}

	return asStringSlice(result)
}

// run compiles source as the body of an anonymous function, invokes it
// with the arguments argsFn builds against the call's own runtime, and
// enforces the timeout via goja's cooperative interrupt mechanism.
func (h *Harness) run(ctx context.Context, source string, argsFn func(*goja.Runtime) []goja.Value) (goja.Value, error) {
	vm := goja.New()

	// Deny filesystem/network access by construction: no host function is
	// ever registered that could reach either, satisfying spec.md §4.5's
	// sandbox floor without a deeper capability model.
	program, err := goja.Compile("user_code.js", wrapAsFunction(source), true)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeUserStrategyError, err, "failed to compile user code")
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(errTimeout)
	})
	defer timer.Stop()

	done := make(chan struct{})

	var (
		result goja.Value
		runErr error
	)

	go func() {
		defer close(done)

		v, err := vm.RunProgram(program)
		if err != nil {
			runErr = err
			return
		}

		fn, ok := goja.AssertFunction(v)
		if !ok {
			runErr = fmt.Errorf("user code did not evaluate to a function")
			return
		}

		args := argsFn(vm)

		out, err := fn(goja.Undefined(), args...)
		if err != nil {
			runErr = err
			return
		}

		result = out
	}()

	select {
	case <-done:
		if runErr != nil {
			if ie, ok := runErr.(*goja.InterruptedError); ok && ie.Value() == errTimeout {
				return nil, errors.NewKind(errors.KindUserCodeTimeout, "user code exceeded its time budget")
			}

			return nil, runErr
		}

		return result, nil
	case <-ctx.Done():
		vm.Interrupt(ctx.Err())
		<-done

		return nil, ctx.Err()
	}
}

var errTimeout = fmt.Errorf("user code timed out")

// wrapAsFunction lets users author calculation_method/select_func/
// risk_control_func as a bare function literal, `function(...) {...}`.
func wrapAsFunction(source string) string {
	return "(" + source + ")"
}

func toJSView(vm *goja.Runtime, view map[string]optional.Option[float64]) map[string]goja.Value {
	out := make(map[string]goja.Value, len(view))

	for fq, v := range view {
		if val, err := v.Take(); err == nil {
			out[fq] = vm.ToValue(val)
		} else {
			out[fq] = goja.Undefined()
		}
	}

	return out
}

func toJSViewMap(vm *goja.Runtime, views map[string]map[string]optional.Option[float64]) map[string]map[string]goja.Value {
	out := make(map[string]map[string]goja.Value, len(views))
	for symbol, view := range views {
		out[symbol] = toJSView(vm, view)
	}

	return out
}

func asFloat(v goja.Value) (float64, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}

	f := v.ToFloat()
	if f != f { // NaN
		return 0, false
	}

	return f, true
}

func asStringSlice(v goja.Value) ([]string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}

	exported := v.Export()

	raw, ok := exported.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an array return value, got %T", exported)
	}

	out := make([]string, 0, len(raw))

	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected array of strings, got element of type %T", item)
		}

		out = append(out, s)
	}

	return out, nil
}
