// Package params locates scheme parameter files and classifies them by family.
//
// Pairing schemes are initialized from PBC-style ".param" files describing a
// bilinear group. Curve schemes take a small "key=value" ".conf" file naming
// an elliptic curve. A Catalog serves both families from one root directory,
// also looking in the conventional "pbc_params" and "ecc_params"
// subdirectories.
package params

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("params: file not found")
	ErrEscapesDir    = errors.New("params: path escapes parameter directory")
	ErrUnknownFamily = errors.New("params: unrecognized parameter file type")
)

// Family is the kind of parameter file a scheme consumes.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyPairing
	FamilyCurve
)

func (f Family) String() string {
	switch f {
	case FamilyPairing:
		return "pairing"
	case FamilyCurve:
		return "curve"
	default:
		return "unknown"
	}
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pairing":
		*f = FamilyPairing
	case "curve":
		*f = FamilyCurve
	case "unknown", "":
		*f = FamilyUnknown
	default:
		return fmt.Errorf("params: unknown family %q", b)
	}
	return nil
}

// Subdirectories searched below the catalog root, per family.
var familyDirs = map[Family]string{
	FamilyPairing: "pbc_params",
	FamilyCurve:   "ecc_params",
}

// FamilyOf classifies a file name by extension.
func FamilyOf(name string) Family {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".param":
		return FamilyPairing
	case ".conf", ".cfg":
		return FamilyCurve
	default:
		return FamilyUnknown
	}
}

// Entry is one parameter file.
type Entry struct {
	Name   string `json:"name"`
	Family Family `json:"family"`
	Size   int64  `json:"size"`
	Path   string `json:"-"`
}

// Catalog serves parameter files from a root directory.
type Catalog struct {
	dir string
}

// NewCatalog returns a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir is the catalog root.
func (c *Catalog) Dir() string { return c.dir }

// List returns every recognized parameter file, sorted by name. Missing
// directories are skipped.
func (c *Catalog) List() ([]Entry, error) {
	seen := make(map[string]bool)
	var entries []Entry
	for _, dir := range c.searchDirs() {
		items, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, item := range items {
			name := item.Name()
			if item.IsDir() || seen[name] {
				continue
			}
			family := FamilyOf(name)
			if family == FamilyUnknown {
				continue
			}
			info, err := item.Info()
			if err != nil {
				continue
			}
			seen[name] = true
			entries = append(entries, Entry{
				Name:   name,
				Family: family,
				Size:   info.Size(),
				Path:   filepath.Join(dir, name),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Resolve finds name in the catalog. Names are plain file names; anything
// that would leave the catalog root is rejected.
func (c *Catalog) Resolve(name string) (Entry, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return Entry{}, fmt.Errorf("%w: %q", ErrEscapesDir, name)
	}
	family := FamilyOf(name)
	if family == FamilyUnknown {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	dirs := []string{c.dir}
	if sub, ok := familyDirs[family]; ok {
		dirs = append(dirs, filepath.Join(c.dir, sub))
	}
	for _, dir := range dirs {
		path, err := SecurePath(c.dir, filepath.Join(dir, name))
		if err != nil {
			return Entry{}, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		return Entry{Name: name, Family: family, Size: info.Size(), Path: path}, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (c *Catalog) searchDirs() []string {
	return []string{
		c.dir,
		filepath.Join(c.dir, familyDirs[FamilyPairing]),
		filepath.Join(c.dir, familyDirs[FamilyCurve]),
	}
}

// SecurePath validates that path does not escape base and returns it as an
// absolute path.
func SecurePath(base, path string) (string, error) {
	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return "", fmt.Errorf("absolute base: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrEscapesDir, path)
	}
	return absPath, nil
}
