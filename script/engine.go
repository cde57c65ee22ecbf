// Package script embeds a sandboxed scripting runtime for room
// controllers, tile updaters, idle choices and mission handlers: each
// content-pack script is compiled once (and cached by source hash) into
// a set of optional named hooks, invoked in a fixed per-tick order
// through typed handles that detect use-after-release.
package script

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Hooks is the set of named entry points a compiled script may define.
// Every field is optional; a script that defines none of them compiles
// successfully and simply never runs.
type Hooks struct {
	OnTick      func(Context)
	OnEnter     func(Context)
	OnLeave     func(Context)
	OnRequest   func(Context) bool
	OnIdleTick  func(Context)
	OnMission   func(Context)
}

// Context is the payload handed to a hook invocation: the set of typed
// handles (Room/Entity/Object) the hook's kind makes available, already
// scoped and stamped so a hook that stores a handle past its call and
// uses it on a later tick gets StaleScriptReference rather than reading
// torn state.
type Context struct {
	Room     *ScriptRoom
	Entity   *ScriptEntity
	Object   *ScriptObject
	Elapsed  float64
}

type entry struct {
	hooks *Hooks
	err   error
}

// Engine compiles and caches scripts by source hash, and invokes their
// hooks with panic recovery so one misbehaving content-pack script never
// brings down a server tick.
type Engine struct {
	mu      sync.RWMutex
	cache   map[string]*entry
	onError func(name, hook string, err error)
}

// NewEngine returns an empty Engine. onError, if non-nil, is called
// whenever a hook panics or a script fails to compile; if nil, errors
// are simply dropped (matching a script failure never being fatal to
// the tick).
func NewEngine(onError func(name, hook string, err error)) *Engine {
	return &Engine{cache: make(map[string]*entry), onError: onError}
}

// Load compiles source (identified by name, used only for error
// reporting) if it has not been seen before, and returns its hooks.
func (e *Engine) Load(name, source string) (*Hooks, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return &Hooks{}, nil
	}
	key := hashSource(trimmed)

	e.mu.RLock()
	if ent, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return ent.hooks, ent.err
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.cache[key]; ok {
		return ent.hooks, ent.err
	}
	hooks, err := compile(trimmed)
	if err != nil && e.onError != nil {
		e.onError(name, "compile", err)
	}
	e.cache[key] = &entry{hooks: hooks, err: err}
	return hooks, err
}

// Invoke runs fn (a closure over one specific hook call) with panic
// recovery, reporting any recovered panic through onError rather than
// propagating it.
func (e *Engine) Invoke(name, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil && e.onError != nil {
			e.onError(name, hook, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

func compile(source string) (*Hooks, error) {
	interpreter := interp.New(interp.Options{})
	if err := interpreter.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: register stdlib symbols: %w", err)
	}
	if _, err := interpreter.Eval(source); err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}

	hooks := &Hooks{}
	if err := bindFunc(interpreter, "OnTick", &hooks.OnTick); err != nil {
		return nil, err
	}
	if err := bindFunc(interpreter, "OnEnter", &hooks.OnEnter); err != nil {
		return nil, err
	}
	if err := bindFunc(interpreter, "OnLeave", &hooks.OnLeave); err != nil {
		return nil, err
	}
	if err := bindBoolFunc(interpreter, "OnRequest", &hooks.OnRequest); err != nil {
		return nil, err
	}
	if err := bindFunc(interpreter, "OnIdleTick", &hooks.OnIdleTick); err != nil {
		return nil, err
	}
	if err := bindFunc(interpreter, "OnMission", &hooks.OnMission); err != nil {
		return nil, err
	}
	return hooks, nil
}

func bindFunc(interpreter *interp.Interpreter, name string, out *func(Context)) error {
	value, err := interpreter.Eval(name)
	if err != nil {
		if isUndefinedSymbol(err) {
			return nil
		}
		return fmt.Errorf("script: %s: %w", name, err)
	}
	fn, ok := value.Interface().(func(Context))
	if !ok {
		return fmt.Errorf("script: %s has unexpected type %T", name, value.Interface())
	}
	*out = fn
	return nil
}

func bindBoolFunc(interpreter *interp.Interpreter, name string, out *func(Context) bool) error {
	value, err := interpreter.Eval(name)
	if err != nil {
		if isUndefinedSymbol(err) {
			return nil
		}
		return fmt.Errorf("script: %s: %w", name, err)
	}
	fn, ok := value.Interface().(func(Context) bool)
	if !ok {
		return fmt.Errorf("script: %s has unexpected type %T", name, value.Interface())
	}
	*out = fn
	return nil
}

func hashSource(src string) string {
	sum := sha1.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}

// isUndefinedSymbol reports whether err is yaegi's way of saying a name
// was never declared, i.e. the hook is simply absent from this script
// rather than broken.
func isUndefinedSymbol(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "undefined") || strings.Contains(msg, "not declared")
}
