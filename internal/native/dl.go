//go:build cgo && !windows

package native

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

typedef void* tsa_ptr;

#define TSA_DISPATCH(rint, fn, sig, args) \
	do { \
		if (rint) return ((int (*)sig)(fn))args; \
		((void (*)sig)(fn))args; \
		return 0; \
	} while (0)

static int tsa_call_ptrs(void* fn, int rint, int n, void** a) {
	switch (n) {
	case 0: TSA_DISPATCH(rint, fn, (void), ());
	case 1: TSA_DISPATCH(rint, fn, (tsa_ptr), (a[0]));
	case 2: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr), (a[0], a[1]));
	case 3: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2]));
	case 4: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3]));
	case 5: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3], a[4]));
	case 6: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3], a[4], a[5]));
	case 7: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3], a[4], a[5], a[6]));
	case 8: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7]));
	case 9: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr), (a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8]));
	}
	return -1;
}

static int tsa_call_ptrs_int(void* fn, int rint, int n, void** a, int v) {
	switch (n) {
	case 0: TSA_DISPATCH(rint, fn, (int), (v));
	case 1: TSA_DISPATCH(rint, fn, (tsa_ptr, int), (a[0], v));
	case 2: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, int), (a[0], a[1], v));
	case 3: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], v));
	case 4: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], v));
	case 5: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], a[4], v));
	case 6: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], a[4], a[5], v));
	case 7: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], a[4], a[5], a[6], v));
	case 8: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], v));
	case 9: TSA_DISPATCH(rint, fn, (tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, tsa_ptr, int), (a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], v));
	}
	return -1;
}

static int tsa_call_int_ptrs(void* fn, int rint, int v, int n, void** a) {
	switch (n) {
	case 0: TSA_DISPATCH(rint, fn, (int), (v));
	case 1: TSA_DISPATCH(rint, fn, (int, tsa_ptr), (v, a[0]));
	}
	return -1;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

type library struct {
	path string

	mu     sync.Mutex
	handle unsafe.Pointer
}

// Open loads the shared object at path with RTLD_NOW so unresolved
// dependencies surface here rather than on first call.
func Open(path string) (Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	C.dlerror()
	h := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if h == nil {
		return nil, fmt.Errorf("native: dlopen %s: %s", path, lastError())
	}
	return &library{path: path, handle: h}, nil
}

func lastError() string {
	msg := C.dlerror()
	if msg == nil {
		return "unknown error"
	}
	return C.GoString(msg)
}

func (l *library) Path() string { return l.path }

func (l *library) Lookup(name string) (Symbol, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil, ErrClosed
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror()
	fn := C.dlsym(l.handle, cname)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, l.path)
	}
	return &symbol{lib: l, name: name, fn: fn}, nil
}

func (l *library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil
	}
	rc := C.dlclose(l.handle)
	l.handle = nil
	if rc != 0 {
		return fmt.Errorf("native: dlclose %s: %s", l.path, lastError())
	}
	return nil
}

func (l *library) open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != nil
}

type symbol struct {
	lib  *library
	name string
	fn   unsafe.Pointer
}

func (s *symbol) Name() string { return s.name }

func (s *symbol) Call(args ...Arg) (int, error) {
	return s.call(true, args)
}

func (s *symbol) Invoke(args ...Arg) error {
	_, err := s.call(false, args)
	return err
}

func (s *symbol) call(returnsInt bool, args []Arg) (int, error) {
	if !s.lib.open() {
		return 0, ErrClosed
	}
	sh, err := classify(args)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}

	var f frame
	defer f.release()

	// ptrs only ever holds C pointers, so passing its address is allowed.
	var ptrs [MaxPointerArgs]unsafe.Pointer
	n := 0
	intArg := 0
	for _, a := range args {
		if a.kind == KindInt {
			intArg = a.n
			continue
		}
		ptrs[n] = f.pin(a)
		n++
	}

	rint := C.int(0)
	if returnsInt {
		rint = 1
	}

	var rc C.int
	switch {
	case sh.leadingInt:
		rc = C.tsa_call_int_ptrs(s.fn, rint, C.int(intArg), C.int(n), &ptrs[0])
	case sh.trailingInt:
		rc = C.tsa_call_ptrs_int(s.fn, rint, C.int(n), &ptrs[0], C.int(intArg))
	default:
		rc = C.tsa_call_ptrs(s.fn, rint, C.int(n), &ptrs[0])
	}

	f.copyBack()
	return int(rc), nil
}

// frame tracks the C allocations backing one call.
type frame struct {
	allocs []allocation
}

type allocation struct {
	ptr  unsafe.Pointer
	size int
	arg  Arg
}

func (f *frame) pin(a Arg) unsafe.Pointer {
	var p unsafe.Pointer
	var size int
	switch a.kind {
	case KindBuffer:
		size = max(len(a.buf), 1)
		p = C.malloc(C.size_t(size))
		C.memset(p, 0, C.size_t(size))
		copy(unsafe.Slice((*byte)(p), len(a.buf)), a.buf)
	case KindString:
		p = unsafe.Pointer(C.CString(a.str))
		size = len(a.str) + 1
	case KindDoubles:
		size = max(len(a.doubles)*int(unsafe.Sizeof(C.double(0))), 1)
		p = C.malloc(C.size_t(size))
		C.memset(p, 0, C.size_t(size))
		copy(unsafe.Slice((*float64)(p), len(a.doubles)), a.doubles)
	case KindIntOut:
		size = int(unsafe.Sizeof(C.int(0)))
		p = C.malloc(C.size_t(size))
		C.memset(p, 0, C.size_t(size))
	}
	f.allocs = append(f.allocs, allocation{ptr: p, size: size, arg: a})
	return p
}

func (f *frame) copyBack() {
	for _, al := range f.allocs {
		switch al.arg.kind {
		case KindBuffer:
			copy(al.arg.buf, unsafe.Slice((*byte)(al.ptr), len(al.arg.buf)))
		case KindDoubles:
			copy(al.arg.doubles, unsafe.Slice((*float64)(al.ptr), len(al.arg.doubles)))
		case KindIntOut:
			al.arg.SetInt(int(*(*C.int)(al.ptr)))
		}
	}
}

// release zeroes and frees every allocation; buffers may hold private keys.
func (f *frame) release() {
	for _, al := range f.allocs {
		if al.ptr == nil {
			continue
		}
		C.memset(al.ptr, 0, C.size_t(al.size))
		C.free(al.ptr)
	}
	f.allocs = nil
}
