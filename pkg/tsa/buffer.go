package tsa

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MinBufferSize is the floor for every native buffer. It also stands in for
// element sizes that are unknown before init or that a library cannot report.
const MinBufferSize = 512

// Group names the algebraic group an element belongs to. Pairing schemes use
// all three; curve schemes report points as G1 and scalars as Zr.
type Group int

const (
	GroupG1 Group = iota + 1
	GroupZr
	GroupGT
)

func (g Group) String() string {
	switch g {
	case GroupG1:
		return "G1"
	case GroupZr:
		return "Zr"
	case GroupGT:
		return "GT"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// ElementSizes holds the serialized element sizes reported by an initialized
// library. A zero field means the library does not report that group.
type ElementSizes struct {
	G1 int `json:"g1"`
	Zr int `json:"zr"`
	GT int `json:"gt,omitempty"`
}

// SizeFor returns the size of an element of g, or MinBufferSize when unknown.
func (s ElementSizes) SizeFor(g Group) int {
	var n int
	switch g {
	case GroupG1:
		n = s.G1
	case GroupZr:
		n = s.Zr
	case GroupGT:
		n = s.GT
	}
	if n <= 0 {
		return MinBufferSize
	}
	return n
}

// BufferSize is the size of every output buffer handed to the library:
// large enough for any element, and never below MinBufferSize.
func (s ElementSizes) BufferSize() int {
	return max(s.G1, s.Zr, s.GT, MinBufferSize)
}

// Allocate returns a zeroed buffer of size bytes.
func Allocate(size int) []byte {
	if size <= 0 {
		size = MinBufferSize
	}
	return make([]byte, size)
}

// IsAbsent reports whether buf holds no data. An all-zero buffer is treated
// as never written; a legitimately zero element cannot be told apart.
func IsAbsent(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// ToHex encodes the first n bytes of buf as lowercase hex. n <= 0 or n larger
// than the buffer encodes the whole buffer. Absent data encodes as "".
func ToHex(buf []byte, n int) string {
	if n <= 0 || n > len(buf) {
		n = len(buf)
	}
	window := buf[:n]
	if IsAbsent(window) {
		return ""
	}
	return hex.EncodeToString(window)
}

// FromHex decodes s. Odd-length input gets a leading zero nibble so values
// whose leading zero was trimmed upstream still decode. Uppercase digits are
// accepted. Empty input is rejected because "" is how absent data encodes.
func FromHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedHex)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	return b, nil
}
