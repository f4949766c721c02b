package tsa

import (
	"runtime"

	"github.com/tsalab/stealthd/internal/native"
)

// Parts maps component names (such as "A", "R1" or "Q_sigma") to lowercase
// hex values.
type Parts map[string]string

// Clone returns a copy that shares nothing with p.
func (p Parts) Clone() Parts {
	if p == nil {
		return nil
	}
	c := make(Parts, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Validate checks that every value decodes.
func (p Parts) Validate(op string) error {
	for name, v := range p {
		if _, err := FromHex(v); err != nil {
			return Errorf(op, ErrMalformedHex, "part %s", name)
		}
	}
	return nil
}

// Source names the parts to take from one map, in call order.
type Source struct {
	parts Parts
	names []string
}

// From selects names from p.
func From(p Parts, names ...string) Source {
	return Source{parts: p, names: names}
}

// Inputs are decoded argument buffers. Release zeroes them.
type Inputs struct {
	bufs [][]byte
}

// Decode turns the selected parts into native buffers in order. A missing
// part is InvalidArgument; a value that is not hex is MalformedHex.
func Decode(op string, sources ...Source) (*Inputs, error) {
	in := &Inputs{}
	for _, src := range sources {
		for _, name := range src.names {
			v, ok := src.parts[name]
			if !ok || v == "" {
				in.Release()
				return nil, Errorf(op, ErrInvalidArgument, "missing part %s", name)
			}
			b, err := FromHex(v)
			if err != nil {
				in.Release()
				return nil, Errorf(op, ErrMalformedHex, "part %s", name)
			}
			in.bufs = append(in.bufs, b)
		}
	}
	return in, nil
}

// DecodeHex decodes a single named value.
func DecodeHex(op, name, v string) ([]byte, error) {
	b, err := FromHex(v)
	if err != nil {
		return nil, Errorf(op, ErrMalformedHex, "%s", name)
	}
	return b, nil
}

// Args returns the buffers as native arguments.
func (in *Inputs) Args() []native.Arg {
	args := make([]native.Arg, len(in.bufs))
	for i, b := range in.bufs {
		args[i] = native.Buf(b)
	}
	return args
}

// Release zeroes every buffer.
func (in *Inputs) Release() {
	if in == nil {
		return
	}
	for _, b := range in.bufs {
		ZeroizeBytes(b)
	}
}

// ZeroizeBytes overwrites buf with zeros. runtime.KeepAlive keeps the
// compiler from eliding the stores (golang/go#33325). Copies made elsewhere,
// including by the garbage collector, are not reached.
func ZeroizeBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}

// Output names one buffer a native function writes.
type Output struct {
	Name  string
	Group Group
}

// Outputs are freshly allocated output buffers for one native call.
type Outputs struct {
	sizes ElementSizes
	specs []Output
	bufs  [][]byte
}

// NewOutputs allocates one zeroed buffer of sizes.BufferSize() per output.
func NewOutputs(sizes ElementSizes, specs ...Output) *Outputs {
	o := &Outputs{sizes: sizes, specs: specs, bufs: make([][]byte, len(specs))}
	for i := range specs {
		o.bufs[i] = Allocate(sizes.BufferSize())
	}
	return o
}

// Size is the length of each buffer.
func (o *Outputs) Size() int { return o.sizes.BufferSize() }

// Args returns the buffers as native arguments.
func (o *Outputs) Args() []native.Arg {
	args := make([]native.Arg, len(o.bufs))
	for i, b := range o.bufs {
		args[i] = native.Buf(b)
	}
	return args
}

// WithSize returns Args followed by the buffer size, the layout of the
// "_simple" native entry points.
func (o *Outputs) WithSize() []native.Arg {
	return append(o.Args(), native.Int(o.Size()))
}

// Bytes returns the raw buffer for name.
func (o *Outputs) Bytes(name string) []byte {
	for i, s := range o.specs {
		if s.Name == name {
			return o.bufs[i]
		}
	}
	return nil
}

// Collect encodes each buffer truncated to its element size. A buffer the
// library left all zero fails with EmptyOutput.
func (o *Outputs) Collect(op string) (Parts, error) {
	parts := make(Parts, len(o.specs))
	for i, s := range o.specs {
		v := ToHex(o.bufs[i], o.sizes.SizeFor(s.Group))
		if v == "" {
			return nil, Errorf(op, ErrEmptyOutput, "%s", s.Name)
		}
		parts[s.Name] = v
	}
	return parts, nil
}

// Release zeroes every buffer.
func (o *Outputs) Release() {
	if o == nil {
		return
	}
	for _, b := range o.bufs {
		ZeroizeBytes(b)
	}
}

// Split divides parts into the named public components and the rest.
func Split(parts Parts, public ...string) KeyMaterial {
	km := KeyMaterial{Public: Parts{}, Private: Parts{}}
	isPublic := make(map[string]bool, len(public))
	for _, name := range public {
		isPublic[name] = true
	}
	for k, v := range parts {
		if isPublic[k] {
			km.Public[k] = v
		} else {
			km.Private[k] = v
		}
	}
	return km
}
