package tsa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsalab/stealthd/internal/native"
)

// Binder resolves the symbol table of one scheme library. Required symbols
// that are missing are collected and reported together by Err.
type Binder struct {
	lib     native.Library
	missing []string
	failed  error
}

// NewBinder starts binding lib.
func NewBinder(lib native.Library) *Binder {
	return &Binder{lib: lib}
}

// Require resolves name. A missing symbol is remembered and nil returned.
func (b *Binder) Require(name string) native.Symbol {
	sym, err := b.lib.Lookup(name)
	if err != nil {
		if errors.Is(err, native.ErrSymbolNotFound) {
			b.missing = append(b.missing, name)
		} else if b.failed == nil {
			b.failed = err
		}
		return nil
	}
	return sym
}

// Optional resolves name, returning nil when the library does not export it.
func (b *Binder) Optional(name string) native.Symbol {
	sym, err := b.lib.Lookup(name)
	if err != nil {
		return nil
	}
	return sym
}

// Err reports LibraryLoadFailed if any required symbol could not be bound.
func (b *Binder) Err(op string) error {
	if b.failed != nil {
		return Errorf(op, ErrLibraryLoadFailed, "%s: %v", b.lib.Path(), b.failed)
	}
	if len(b.missing) > 0 {
		return Errorf(op, ErrLibraryLoadFailed, "%s: missing symbols %s", b.lib.Path(), strings.Join(b.missing, ", "))
	}
	return nil
}

// Args concatenates argument groups.
func Args(groups ...[]native.Arg) []native.Arg {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	args := make([]native.Arg, 0, n)
	for _, g := range groups {
		args = append(args, g...)
	}
	return args
}

// CheckCall maps a transport-level call error to NativeCallFailed.
func CheckCall(op string, err error) error {
	if err != nil {
		return Errorf(op, ErrNativeCallFailed, "%v", err)
	}
	return nil
}

// CheckStatus returns a checker for a native status code where 0 is
// success. It takes the result pair of Symbol.Call directly:
//
//	err := tsa.CheckStatus(op)(sym.Call(args...))
func CheckStatus(op string) func(rc int, err error) error {
	return func(rc int, err error) error {
		if err := CheckCall(op, err); err != nil {
			return err
		}
		if rc != 0 {
			return Errorf(op, ErrNativeCallFailed, "status %d", rc)
		}
		return nil
	}
}

// CheckInit maps a native init status to InitFailed.
func CheckInit(rc int, err error) error {
	if err != nil {
		return Errorf("init", ErrInitFailed, "%v", err)
	}
	if rc != 0 {
		return Errorf("init", ErrInitFailed, "status %d", rc)
	}
	return nil
}

// CheckBool returns a checker for a native boolean. Only 1 and 0 are valid;
// anything else is an error, never false.
func CheckBool(op string) func(rc int, err error) (bool, error) {
	return func(rc int, err error) (bool, error) {
		if err := CheckCall(op, err); err != nil {
			return false, err
		}
		switch rc {
		case 1:
			return true, nil
		case 0:
			return false, nil
		default:
			return false, Errorf(op, ErrNativeCallFailed, "unexpected boolean result %d", rc)
		}
	}
}

// Lifecycle holds the init state shared by every adapter and implements the
// parts of Adapter that do not depend on the scheme.
type Lifecycle struct {
	Scheme      string
	initialized bool
	sizes       ElementSizes
}

// BeginInit rejects a second Init without an intervening Cleanup.
func (l *Lifecycle) BeginInit() error {
	if l.initialized {
		return Errorf("init", ErrInitFailed, "%s already initialized; cleanup first", l.Scheme)
	}
	return nil
}

// Ready records a successful Init.
func (l *Lifecycle) Ready(sizes ElementSizes) {
	l.initialized = true
	l.sizes = sizes
}

// Initialized reports whether Init succeeded and Cleanup has not run since.
func (l *Lifecycle) Initialized() bool { return l.initialized }

// Reset records a Cleanup.
func (l *Lifecycle) Reset() {
	l.initialized = false
	l.sizes = ElementSizes{}
}

// Sizes returns the element sizes, or NotInitialized before Init.
func (l *Lifecycle) Sizes(op string) (ElementSizes, error) {
	if !l.initialized {
		return ElementSizes{}, Errorf(op, ErrNotInitialized, "%s library not initialized", l.Scheme)
	}
	return l.sizes, nil
}

// SizeOrZero converts a native size query to a non-negative int.
func SizeOrZero(rc int, err error) int {
	if err != nil || rc < 0 {
		return 0
	}
	return rc
}

// Unsupported builds the UnsupportedOperation error for an unbound symbol.
func Unsupported(op, scheme, what string) error {
	return &Error{Op: op, Scheme: scheme, Err: fmt.Errorf("%w: %s", ErrUnsupportedOperation, what)}
}
