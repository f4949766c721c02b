//go:build !cgo || windows

package native

// Open is unavailable without cgo; it always returns ErrNotBuilt.
func Open(path string) (Library, error) {
	return nil, ErrNotBuilt
}
