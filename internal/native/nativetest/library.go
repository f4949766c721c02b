// Package nativetest provides in-process stand-ins for the scheme shared
// libraries so adapters, the registry and the HTTP layer can be exercised
// without cgo.
//
// Library is a symbol table of Go closures. The scheme constructors (Stealth,
// Sitaiba, Hdwsa, CryptoNote, Zhao) populate one with a toy secp256k1
// construction that honours the same call contracts as the real libraries:
// buffer layouts, return codes and the global init/cleanup lifecycle. The toy
// constructions are for tests only and provide no privacy.
package nativetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tsalab/stealthd/internal/native"
)

// Func implements one exported function.
type Func func(args []native.Arg) int

// VoidResult is what a fake void function hands back from Call. Reading the
// return register of a void C function yields whatever was left there, so
// callers must bind void functions with Invoke.
const VoidResult = 64

// ErrContractViolation is returned by Call when the arguments break the
// native function's contract, such as an output array shorter than the
// library writes. The real library would corrupt memory instead.
var ErrContractViolation = errors.New("nativetest: native contract violation")

// Void adapts a function without a result to a Func returning VoidResult.
func Void(fn func(args []native.Arg)) Func {
	return func(args []native.Arg) int {
		fn(args)
		return VoidResult
	}
}

type violation string

// violate aborts the current fake call with ErrContractViolation.
func violate(format string, args ...any) {
	panic(violation(fmt.Sprintf(format, args...)))
}

// Library is a fake native.Library.
type Library struct {
	path string

	mu     sync.Mutex
	funcs  map[string]Func
	calls  map[string]int
	closed bool
	closes int
}

var _ native.Library = (*Library)(nil)

// New returns an empty library reported as living at path.
func New(path string) *Library {
	return &Library{
		path:  path,
		funcs: make(map[string]Func),
		calls: make(map[string]int),
	}
}

// Define registers fn under name, replacing any previous definition.
func (l *Library) Define(name string, fn Func) *Library {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[name] = fn
	return l
}

// Wrap replaces the definition of name with wrap(previous). It panics when
// name is not defined.
func (l *Library) Wrap(name string, wrap func(next Func) Func) *Library {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, ok := l.funcs[name]
	if !ok {
		panic("nativetest: wrapping undefined symbol " + name)
	}
	l.funcs[name] = wrap(next)
	return l
}

// Remove drops name so Lookup fails for it.
func (l *Library) Remove(names ...string) *Library {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		delete(l.funcs, name)
	}
	return l
}

// Calls reports how many times name was invoked.
func (l *Library) Calls(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

// TotalCalls reports the number of invocations across all symbols.
func (l *Library) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.calls {
		total += n
	}
	return total
}

// Closed reports whether Close was called since the last Open.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Closes reports how many times the library was closed.
func (l *Library) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

func (l *Library) Path() string { return l.path }

func (l *Library) Lookup(name string) (native.Symbol, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, native.ErrClosed
	}
	if _, ok := l.funcs[name]; !ok {
		return nil, fmt.Errorf("%w: %s in %s", native.ErrSymbolNotFound, name, l.path)
	}
	return &symbol{lib: l, name: name}, nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.closes++
	}
	return nil
}

func (l *Library) reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = false
}

func (l *Library) resolve(name string) (Func, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, native.ErrClosed
	}
	fn, ok := l.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", native.ErrSymbolNotFound, name)
	}
	l.calls[name]++
	return fn, nil
}

type symbol struct {
	lib  *Library
	name string
}

func (s *symbol) Name() string { return s.name }

func (s *symbol) Call(args ...native.Arg) (rc int, err error) {
	fn, err := s.lib.resolve(s.name)
	if err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(violation)
			if !ok {
				panic(r)
			}
			rc, err = 0, fmt.Errorf("%w: %s: %s", ErrContractViolation, s.name, string(v))
		}
	}()
	return fn(args), nil
}

func (s *symbol) Invoke(args ...native.Arg) error {
	_, err := s.Call(args...)
	return err
}

// Loader serves fake libraries by path.
type Loader struct {
	mu     sync.Mutex
	libs   map[string]*Library
	opened []string
}

var _ native.Loader = (*Loader)(nil)

// NewLoader returns a loader serving libs keyed by their Path.
func NewLoader(libs ...*Library) *Loader {
	l := &Loader{libs: make(map[string]*Library)}
	for _, lib := range libs {
		l.Add(lib)
	}
	return l
}

// Add makes lib available under its path.
func (l *Loader) Add(lib *Library) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.libs[lib.Path()] = lib
}

// Open returns the library registered for path. Reopening a closed library
// makes it usable again, like a second dlopen.
func (l *Loader) Open(path string) (native.Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lib, ok := l.libs[path]
	if !ok {
		return nil, fmt.Errorf("nativetest: %s: cannot open shared object file: No such file or directory", path)
	}
	lib.reopen()
	l.opened = append(l.opened, path)
	return lib, nil
}

// Opened lists every path passed to a successful Open, in order.
func (l *Loader) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}
