package tsa

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryLoadFailed indicates the scheme library could not be opened or
	// a required symbol is missing.
	ErrLibraryLoadFailed = errors.New("tsa: library load failed")

	// ErrInitFailed indicates the native init call rejected the parameter file.
	ErrInitFailed = errors.New("tsa: init failed")

	// ErrNotInitialized indicates the active scheme has not completed setup.
	ErrNotInitialized = errors.New("tsa: not initialized")

	// ErrUnknownScheme indicates a scheme id that was never registered.
	ErrUnknownScheme = errors.New("tsa: unknown scheme")

	// ErrNoActiveScheme indicates an operation that needs an active scheme.
	ErrNoActiveScheme = errors.New("tsa: no active scheme")

	// ErrCapabilityNotSupported indicates the scheme does not declare the
	// requested capability.
	ErrCapabilityNotSupported = errors.New("tsa: capability not supported")

	// ErrUnsupportedParamFile indicates a parameter file of the wrong family.
	ErrUnsupportedParamFile = errors.New("tsa: unsupported parameter file")

	// ErrIndexOutOfRange indicates an index outside a session collection.
	ErrIndexOutOfRange = errors.New("tsa: index out of range")

	// ErrMalformedHex indicates a value that is not valid hexadecimal.
	ErrMalformedHex = errors.New("tsa: malformed hex")

	// ErrEmptyOutput indicates the library left an output buffer all zero.
	ErrEmptyOutput = errors.New("tsa: empty output")

	// ErrUnsupportedOperation indicates the adapter has no binding for the
	// operation, even though the capability may be declared.
	ErrUnsupportedOperation = errors.New("tsa: unsupported operation")

	// ErrNativeCallFailed indicates a native status code reporting failure or
	// a boolean result outside {0, 1}.
	ErrNativeCallFailed = errors.New("tsa: native call failed")

	// ErrInvalidArgument indicates a malformed request.
	ErrInvalidArgument = errors.New("tsa: invalid argument")
)

// Kind is the stable, caller-visible name of an error class.
type Kind string

const (
	KindLibraryLoadFailed      Kind = "LibraryLoadFailed"
	KindInitFailed             Kind = "InitFailed"
	KindNotInitialized         Kind = "NotInitialized"
	KindUnknownScheme          Kind = "UnknownScheme"
	KindNoActiveScheme         Kind = "NoActiveScheme"
	KindCapabilityNotSupported Kind = "CapabilityNotSupported"
	KindUnsupportedParamFile   Kind = "UnsupportedParamFile"
	KindIndexOutOfRange        Kind = "IndexOutOfRange"
	KindMalformedHex           Kind = "MalformedHex"
	KindEmptyOutput            Kind = "EmptyOutput"
	KindUnsupportedOperation   Kind = "UnsupportedOperation"
	KindNativeCallFailed       Kind = "NativeCallFailed"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindInternal               Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrLibraryLoadFailed, KindLibraryLoadFailed},
	{ErrInitFailed, KindInitFailed},
	{ErrNotInitialized, KindNotInitialized},
	{ErrUnknownScheme, KindUnknownScheme},
	{ErrNoActiveScheme, KindNoActiveScheme},
	{ErrCapabilityNotSupported, KindCapabilityNotSupported},
	{ErrUnsupportedParamFile, KindUnsupportedParamFile},
	{ErrIndexOutOfRange, KindIndexOutOfRange},
	{ErrMalformedHex, KindMalformedHex},
	{ErrEmptyOutput, KindEmptyOutput},
	{ErrUnsupportedOperation, KindUnsupportedOperation},
	{ErrNativeCallFailed, KindNativeCallFailed},
	{ErrInvalidArgument, KindInvalidArgument},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal; a nil
// error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Error attaches the attempted operation and scheme to a taxonomy error.
type Error struct {
	Op     string // Operation that failed
	Scheme string // Scheme id, empty when no scheme was involved
	Err    error  // Underlying error
}

func (e *Error) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("tsa.%s[%s]: %v", e.Op, e.Scheme, e.Err)
	}
	return fmt.Sprintf("tsa.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns KindOf(e).
func (e *Error) Kind() Kind {
	return KindOf(e)
}

// Errorf wraps kind with a formatted detail and the operation name.
func Errorf(op string, kind error, format string, args ...any) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}

// wrap attaches op to err unless err already carries one.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// withScheme stamps scheme onto err's outermost Error when it has none.
func withScheme(scheme string, err error) error {
	var te *Error
	if errors.As(err, &te) && te.Scheme == "" {
		te.Scheme = scheme
	}
	return err
}
