// Package tsa dispatches requests to interchangeable traceable stealth
// address schemes. Each scheme is a separately built shared library; this
// package loads it, binds its functions through a per-scheme Adapter,
// marshals fixed-size buffers as lowercase hex and keeps the generated keys,
// addresses, derived keys and signatures in a session per scheme.
//
// A Registry holds the registered Descriptors and activates one scheme at a
// time. A Facade serializes every call and checks the declared Capability
// before an adapter is touched. Errors carry a stable Kind for callers.
package tsa
