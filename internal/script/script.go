// Package script runs small sandboxed Lua programs on behalf of extensions.
//
// Two shapes of program are supported: boolean expressions used as
// enablement predicates, and script files that produce a table of values.
// The Lua state only has the base, table, string and math libraries; file,
// OS, module loading and debug facilities are removed, as are the base
// functions that reach the shared globals or metatables (getfenv, setfenv,
// getmetatable, _G). Every evaluation gets its own copy of the globals and
// library tables, so nothing one program assigns is seen by the next.
//
// gopher-lua states are not goroutine-safe. Engine serializes every call
// with a mutex, so one Engine may be shared freely.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultTimeout bounds one evaluation.
const DefaultTimeout = 2 * time.Second

// Errors returned by the engine.
var (
	// ErrClosed is returned when using a closed engine.
	ErrClosed = errors.New("script engine is closed")

	// ErrCompile wraps Lua syntax errors.
	ErrCompile = errors.New("script compile error")
)

// Engine owns one sandboxed Lua state.
type Engine struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-evaluation timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// New creates a sandboxed engine.
func New(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	e.L = L
	return e
}

// blockedGlobals load code or reach state shared between evaluations.
var blockedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module",
	"getfenv", "setfenv", "getmetatable", "_G",
}

// openSafeLibraries opens the safe subset of the Lua standard library and
// removes the blocked base functions.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// Expr is a compiled boolean expression.
type Expr struct {
	name   string
	source string
	proto  *lua.FunctionProto
}

// Source returns the expression text.
func (x *Expr) Source() string {
	return x.source
}

// Script is a compiled script file.
type Script struct {
	path  string
	proto *lua.FunctionProto
}

// Path returns the script location.
func (s *Script) Path() string {
	return s.path
}

// CompileExpr compiles a Lua expression such as
// `resource.ext == ".go" and #contentTypes > 1`.
func CompileExpr(name, expr string) (*Expr, error) {
	proto, err := compile(name, "return ("+expr+")")
	if err != nil {
		return nil, err
	}
	return &Expr{name: name, source: expr, proto: proto}, nil
}

// CompileFile compiles a script file.
func CompileFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	proto, err := compile(path, string(data))
	if err != nil {
		return nil, err
	}
	return &Script{path: path, proto: proto}, nil
}

func compile(name, source string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, name, err)
	}
	return proto, nil
}

// EvalBool evaluates expr with env bound as globals and returns its Lua
// truthiness.
func (e *Engine) EvalBool(ctx context.Context, expr *Expr, env map[string]any) (bool, error) {
	var result bool
	err := e.run(ctx, expr.proto, env, nil, func(L *lua.LState, ret lua.LValue) error {
		result = lua.LVAsBool(ret)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("evaluating %s: %w", expr.name, err)
	}
	return result, nil
}

// Run executes the script with env bound as globals. If the script returns
// a function, it is called with args and its result is used instead. The
// result is converted to Go values (tables become maps or slices).
func (e *Engine) Run(ctx context.Context, s *Script, env map[string]any, args ...any) (any, error) {
	var result any
	err := e.run(ctx, s.proto, env, args, func(L *lua.LState, ret lua.LValue) error {
		result = FromLua(ret)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", s.path, err)
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, proto *lua.FunctionProto, env map[string]any, args []any, handle func(*lua.LState, lua.LValue) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	L := e.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	top := L.GetTop()
	defer L.SetTop(top)

	fn := L.NewFunctionFromProto(proto)
	L.SetFEnv(fn, e.newEnv(env))

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return err
	}
	ret := L.Get(-1)

	if callable, ok := ret.(*lua.LFunction); ok {
		L.Pop(1)
		L.Push(callable)
		for _, arg := range args {
			L.Push(ToLua(L, arg))
		}
		if err := L.PCall(len(args), 1, nil); err != nil {
			return err
		}
		ret = L.Get(-1)
	}

	return handle(L, ret)
}

// newEnv builds a fresh global table for one evaluation: a copy of the
// sandbox globals with library tables copied too, plus env.
func (e *Engine) newEnv(env map[string]any) *lua.LTable {
	L := e.L
	globals, _ := L.Get(lua.GlobalsIndex).(*lua.LTable)

	t := L.NewTable()
	if globals != nil {
		globals.ForEach(func(k, v lua.LValue) {
			if lib, ok := v.(*lua.LTable); ok {
				if lib == globals {
					return
				}
				v = copyTable(L, lib)
			}
			t.RawSet(k, v)
		})
	}
	t.RawSetString("_G", t)

	for k, v := range env {
		t.RawSetString(k, ToLua(L, v))
	}
	return t
}

func copyTable(L *lua.LState, src *lua.LTable) *lua.LTable {
	dst := L.NewTable()
	src.ForEach(func(k, v lua.LValue) {
		dst.RawSet(k, v)
	})
	return dst
}

// Close releases the Lua state. It is safe to call Close multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.L.Close()
	e.closed = true
	return nil
}
