package scribunto

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/luatable"
)

// CounterSource hands out the expensive-call counter of a render
type CounterSource func(renderKey string) budget.Counter

// LimitedCounters gives every render its own in-memory budget of limit calls
func LimitedCounters(limit int) CounterSource {
	return func(string) budget.Counter {
		return budget.NewLimited(limit)
	}
}

// ScriptError is a Lua compile or runtime error, carrying the library error
// that caused it when there is one
type ScriptError struct {
	Lua   error
	Cause error
}

func (e *ScriptError) Error() string {
	return e.Lua.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// Engine creates sandboxed Lua states with mw.ext.cattools loaded
type Engine struct {
	toolbox  *categories.Toolbox
	counters CounterSource
	logger   *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCounters sets where renders get their expensive budget from
func WithCounters(src CounterSource) EngineOption {
	return func(e *Engine) { e.counters = src }
}

// WithEngineLogger sets the logger
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine running toolbox calls
func NewEngine(tb *categories.Toolbox, opts ...EngineOption) *Engine {
	e := &Engine{
		toolbox:  tb,
		counters: LimitedCounters(budget.DefaultLimit),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render is one Lua state with its own budget. It is not safe for
// concurrent use.
type Render struct {
	L       *lua.LState
	Counter budget.Counter
	lib     *Library
}

// NewRender starts a render. renderKey identifies it to shared budgets.
func (e *Engine) NewRender(ctx context.Context, renderKey string) *Render {
	counter := e.counters(renderKey)
	lib := NewLibrary(e.toolbox.ForRender(counter), e.logger)

	L := newSandbox()
	L.SetContext(ctx)
	lib.Register(L)

	return &Render{L: L, Counter: counter, lib: lib}
}

// Run executes source in a fresh render and returns the chunk's values
func (e *Engine) Run(ctx context.Context, renderKey, source string) ([]luatable.Value, error) {
	r := e.NewRender(ctx, renderKey)
	defer r.Close()

	values, err := r.Run(source, "=input")
	if err != nil {
		e.logger.Debug("lua chunk failed", zap.String("render", renderKey), zap.Error(err))
	}
	return values, err
}

// Run compiles and executes source, returning every value it returns
func (r *Render) Run(source, chunkName string) ([]luatable.Value, error) {
	fn, err := r.L.Load(strings.NewReader(source), chunkName)
	if err != nil {
		return nil, &ScriptError{Lua: err}
	}
	return r.call(fn)
}

// RunFile compiles and executes the Lua file at path
func (r *Render) RunFile(path string) ([]luatable.Value, error) {
	fn, err := r.L.LoadFile(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
		}
		return nil, &ScriptError{Lua: err}
	}
	return r.call(fn)
}

// Close releases the Lua state
func (r *Render) Close() {
	r.L.Close()
}

func (r *Render) call(fn *lua.LFunction) ([]luatable.Value, error) {
	r.lib.reset()

	base := r.L.GetTop()
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, &ScriptError{Lua: err, Cause: r.lib.causeOf(err)}
	}

	top := r.L.GetTop()
	values := make([]luatable.Value, 0, top-base)
	for i := base + 1; i <= top; i++ {
		values = append(values, luatable.FromLua(r.L.Get(i)))
	}
	r.L.SetTop(base)
	return values, nil
}

// IsScriptError reports whether err came from running Lua code
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}

// newSandbox opens the libraries a template module may use. io, os and
// debug are left out.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.fn))
		L.Push(lua.LString(pair.name))
		L.Call(1, 0)
	}

	// opened by base, but they read from disk
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
