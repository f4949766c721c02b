// Package native loads scheme shared libraries at runtime and calls into them.
//
// # Design Principles
//
//  1. Isolation: ALL CGO code lives in this package. No other package should
//     import "C". Scheme adapters describe their calls with Arg values and never
//     see a C pointer.
//
//  2. Minimal Surface: a Library resolves symbols by exact name and a Symbol
//     calls them. There is no prefix concatenation or reflection; every adapter
//     spells out the names it binds.
//
//  3. Memory Management: byte buffers are copied into C-allocated memory for the
//     duration of a call, copied back, then zeroed and freed. Go memory is never
//     handed to native code.
//
//  4. Call Shapes: the scheme libraries export plain C functions whose arguments
//     are byte pointers, NUL-terminated strings, int sizes and double or int
//     output arrays. Supported shapes are up to nine pointer arguments with an
//     optional trailing int, or one leading int followed by at most one pointer,
//     returning either void or int.
//
// # Threading
//
// The scheme libraries keep global state and are NOT thread-safe. Callers must
// serialize every call made against the same Library.
//
// # Builds without cgo
//
// When cgo is disabled (or on Windows) Open returns ErrNotBuilt. Tests use the
// in-process fake in package nativetest instead.
package native
