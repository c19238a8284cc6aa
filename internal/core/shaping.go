package core

import (
	"fmt"
	"reflect"
)

// ShapingFunc is a concurrency/rate distribution callback. It is a tagged
// union rather than a reflection-dispatched `any`, per the portable design
// for callback arity: construct one with WithProgress or
// WithProgressAndContext depending on whether the callback needs the
// running context.
type ShapingFunc struct {
	withContext bool
	progress    func(progress float64) float64
	withVars    func(progress float64, vars Variables) float64
}

// WithProgress builds a ShapingFunc from a (progress) -> multiplier callback.
func WithProgress(fn func(progress float64) float64) ShapingFunc {
	return ShapingFunc{progress: fn}
}

// WithProgressAndContext builds a ShapingFunc from a (progress, vars) ->
// multiplier callback.
func WithProgressAndContext(fn func(progress float64, vars Variables) float64) ShapingFunc {
	return ShapingFunc{withContext: true, withVars: fn}
}

// IsZero reports whether no shaping callback was configured, in which case
// callers should treat the multiplier as a constant 1.
func (s ShapingFunc) IsZero() bool {
	return s.progress == nil && s.withVars == nil
}

// Call invokes the configured callback, defaulting to a multiplier of 1
// when none was set.
func (s ShapingFunc) Call(progress float64, vars Variables) float64 {
	switch {
	case s.withContext && s.withVars != nil:
		return s.withVars(progress, vars)
	case s.progress != nil:
		return s.progress(progress)
	default:
		return 1
	}
}

// NewShapingFuncFromAny wraps a bare Go func value as a ShapingFunc,
// dispatching on its arity at construction time rather than on every call.
// It exists only so embedding hosts that hold a distribution callback as
// `any` (e.g. loaded from a plugin or script) can still produce a
// ShapingFunc; direct Go callers should prefer WithProgress /
// WithProgressAndContext.
func NewShapingFuncFromAny(fn any) (ShapingFunc, error) {
	switch f := fn.(type) {
	case func(float64) float64:
		return WithProgress(f), nil
	case func(float64, Variables) float64:
		return WithProgressAndContext(f), nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return ShapingFunc{}, fmt.Errorf("shaping callback must be a func, got %T", fn)
	}

	switch rv.Type().NumIn() {
	case 1:
		return WithProgress(func(progress float64) float64 {
			out := rv.Call([]reflect.Value{reflect.ValueOf(progress)})
			return out[0].Float()
		}), nil
	case 2:
		return WithProgressAndContext(func(progress float64, vars Variables) float64 {
			out := rv.Call([]reflect.Value{reflect.ValueOf(progress), reflect.ValueOf(vars)})
			return out[0].Float()
		}), nil
	default:
		return ShapingFunc{}, fmt.Errorf("shaping callback must take 1 or 2 arguments, got %d", rv.Type().NumIn())
	}
}
