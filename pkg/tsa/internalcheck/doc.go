// Package internalcheck holds static policy tests over the module's own
// packages. It has no exported API.
//
// The tests load packages with golang.org/x/tools/go/packages and fail on:
//
//   - an import of "C" outside internal/native,
//   - %x formatting in pkg/tsa, where buffers carry private key material,
//   - == comparison of byte arrays in pkg/tsa.
package internalcheck
