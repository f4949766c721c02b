package native

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBuilt reports that the dynamic loader was not linked into the
	// current binary.
	ErrNotBuilt = errors.New("native: dynamic loader not built")

	// ErrSymbolNotFound is returned by Lookup when the library does not export
	// the requested name.
	ErrSymbolNotFound = errors.New("native: symbol not found")

	// ErrClosed is returned for calls against a library after Close.
	ErrClosed = errors.New("native: library closed")

	// ErrUnsupportedShape is returned when an argument list cannot be mapped to
	// one of the call trampolines.
	ErrUnsupportedShape = errors.New("native: unsupported call shape")
)

// MaxPointerArgs is the largest number of pointer arguments a call may carry.
const MaxPointerArgs = 9

// Kind classifies a call argument.
type Kind int

const (
	KindBuffer Kind = iota + 1
	KindString
	KindInt
	KindDoubles
	KindIntOut
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDoubles:
		return "doubles"
	case KindIntOut:
		return "int-out"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Arg is a single argument of a native call.
type Arg struct {
	kind    Kind
	buf     []byte
	str     string
	n       int
	doubles []float64
	out     *int
}

// Buf passes b as an unsigned char pointer. The native side may write into it;
// writes are copied back into b when the call returns.
func Buf(b []byte) Arg { return Arg{kind: KindBuffer, buf: b} }

// Str passes s as a NUL-terminated char pointer.
func Str(s string) Arg { return Arg{kind: KindString, str: s} }

// Int passes n by value.
func Int(n int) Arg { return Arg{kind: KindInt, n: n} }

// Doubles passes d as a double pointer; results are copied back into d.
func Doubles(d []float64) Arg { return Arg{kind: KindDoubles, doubles: d} }

// IntOut passes an int pointer whose value is stored into p after the call.
func IntOut(p *int) Arg { return Arg{kind: KindIntOut, out: p} }

// Kind reports the argument class.
func (a Arg) Kind() Kind { return a.kind }

// Bytes returns the buffer backing a KindBuffer argument. Writes are visible
// to the caller.
func (a Arg) Bytes() []byte { return a.buf }

// Text returns the value of a KindString argument.
func (a Arg) Text() string { return a.str }

// Value returns the value of a KindInt argument.
func (a Arg) Value() int { return a.n }

// Float64s returns the slice backing a KindDoubles argument.
func (a Arg) Float64s() []float64 { return a.doubles }

// SetInt stores v through a KindIntOut argument.
func (a Arg) SetInt(v int) {
	if a.out != nil {
		*a.out = v
	}
}

// Library is an opened native shared object.
type Library interface {
	// Path is the location the library was opened from.
	Path() string
	// Lookup resolves an exported function by exact name.
	Lookup(name string) (Symbol, error)
	// Close releases the handle. Symbols must not be called afterwards.
	Close() error
}

// Symbol is a resolved native function.
type Symbol interface {
	Name() string
	// Call invokes a function returning int.
	Call(args ...Arg) (int, error)
	// Invoke invokes a function returning void.
	Invoke(args ...Arg) error
}

// Loader opens libraries by path.
type Loader interface {
	Open(path string) (Library, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (Library, error)

// Open calls f(path).
func (f LoaderFunc) Open(path string) (Library, error) { return f(path) }

// DefaultLoader opens libraries with the platform dynamic loader.
var DefaultLoader Loader = LoaderFunc(Open)

// shape describes how an argument list maps onto a trampoline.
type shape struct {
	leadingInt  bool
	trailingInt bool
	pointers    int
}

func classify(args []Arg) (shape, error) {
	var s shape
	for i, a := range args {
		switch a.kind {
		case KindInt:
			switch {
			case i == 0 && !s.leadingInt:
				s.leadingInt = true
			case i == len(args)-1 && !s.trailingInt:
				s.trailingInt = true
			default:
				return shape{}, fmt.Errorf("%w: int argument at position %d", ErrUnsupportedShape, i)
			}
		case KindBuffer, KindString, KindDoubles, KindIntOut:
			s.pointers++
		default:
			return shape{}, fmt.Errorf("%w: argument %d has %s", ErrUnsupportedShape, i, a.kind)
		}
	}
	if s.leadingInt && len(args) == 1 {
		// a lone int is both leading and trailing; treat it as leading
		return shape{leadingInt: true}, nil
	}
	if s.leadingInt && (s.trailingInt || s.pointers > 1) {
		return shape{}, fmt.Errorf("%w: leading int with %d pointers", ErrUnsupportedShape, s.pointers)
	}
	if s.pointers > MaxPointerArgs {
		return shape{}, fmt.Errorf("%w: %d pointer arguments", ErrUnsupportedShape, s.pointers)
	}
	return s, nil
}
