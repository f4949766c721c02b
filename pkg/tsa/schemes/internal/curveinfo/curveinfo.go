// Package curveinfo reads element sizes from the curve-family libraries,
// which report them through a single get_curve_info call instead of one
// function per group.
package curveinfo

import (
	"bytes"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

const nameSize = 64

// Info is what get_curve_info reports.
type Info struct {
	Name       string
	PointSize  int
	ScalarSize int
	BufferSize int
}

// Query calls the void sym(name, &point, &scalar, &buffer). The library
// leaves the outputs untouched when it is not initialized, so sizes it does
// not report are taken from the curve file at paramPath.
func Query(sym native.Symbol, paramPath string) (Info, error) {
	const op = "curve_info"
	name := make([]byte, nameSize)
	var info Info
	if err := tsa.CheckCall(op, sym.Invoke(
		native.Buf(name),
		native.IntOut(&info.PointSize),
		native.IntOut(&info.ScalarSize),
		native.IntOut(&info.BufferSize),
	)); err != nil {
		return Info{}, err
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	info.Name = string(name)
	if info.PointSize > 0 && info.ScalarSize > 0 {
		return info, nil
	}

	cfg, err := params.LoadCurveConfig(paramPath)
	if err != nil {
		return Info{}, tsa.Errorf(op, tsa.ErrInitFailed, "library reported no sizes: %v", err)
	}
	if info.Name == "" {
		info.Name = cfg.CurveName
	}
	info.PointSize = cfg.PointSize
	info.ScalarSize = cfg.ScalarSize
	if info.BufferSize <= 0 {
		info.BufferSize = cfg.BufferSize
	}
	return info, nil
}

// Sizes maps points to G1 and scalars to Zr.
func (i Info) Sizes() tsa.ElementSizes {
	return tsa.ElementSizes{G1: i.PointSize, Zr: i.ScalarSize}
}
