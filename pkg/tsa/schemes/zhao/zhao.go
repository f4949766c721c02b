// Package zhao binds the Zhao et al. library (libzhao.so). Only key
// generation and the benchmark are exposed; the library's signing functions
// are deliberately left unbound.
package zhao

import (
	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/internal/curveinfo"
)

const (
	ID          = "zhao"
	LibraryName = "libzhao.so"
)

var performanceKeys = []string{"keygen", "sign", "verify", "hash"}

func Descriptor() tsa.Descriptor {
	return tsa.Descriptor{
		ID:           ID,
		DisplayName:  "Zhao et al.",
		Description:  "Curve-based key pairs with a single public and private component.",
		Capabilities: tsa.CapSetup | tsa.CapKeygen | tsa.CapPerformance,
		ParamFamily:  params.FamilyCurve,
		Library:      LibraryName,
		NewAdapter: func(lib native.Library, log logging.Logger) (tsa.Adapter, error) {
			return New(lib, log)
		},
	}
}

// Adapter binds one opened libzhao.so.
type Adapter struct {
	tsa.Lifecycle
	lib native.Library

	init, isInitialized, cleanup, resetPerformance native.Symbol
	curveInfo, keygen, performance                 native.Symbol
}

func New(lib native.Library, _ logging.Logger) (*Adapter, error) {
	b := tsa.NewBinder(lib)
	a := &Adapter{
		Lifecycle:        tsa.Lifecycle{Scheme: ID},
		lib:              lib,
		init:             b.Require("zhao_init"),
		isInitialized:    b.Require("zhao_is_initialized"),
		cleanup:          b.Require("zhao_cleanup"),
		resetPerformance: b.Require("zhao_reset_performance"),
		curveInfo:        b.Require("zhao_get_curve_info"),
		keygen:           b.Require("zhao_keygen_simple"),
		performance:      b.Require("zhao_performance_test_simple"),
	}
	if err := b.Err("bind"); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) Init(paramPath string) error {
	if err := a.BeginInit(); err != nil {
		return err
	}
	if err := tsa.CheckInit(a.init.Call(native.Str(paramPath))); err != nil {
		return err
	}
	if ok, err := tsa.CheckBool("init")(a.isInitialized.Call()); err != nil || !ok {
		return tsa.Errorf("init", tsa.ErrInitFailed, "library reports not initialized")
	}
	info, err := curveinfo.Query(a.curveInfo, paramPath)
	if err != nil {
		_ = a.cleanup.Invoke()
		return err
	}
	a.Ready(info.Sizes())
	return nil
}

func (a *Adapter) ElementSizes() (tsa.ElementSizes, error) { return a.Sizes("element_sizes") }

func (a *Adapter) TracerKeygen() (tsa.KeyMaterial, error) {
	if _, err := a.Sizes("tracer_keygen"); err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.KeyMaterial{}, nil
}

func (a *Adapter) Cleanup() error {
	if !a.Initialized() {
		return nil
	}
	a.Reset()
	return tsa.CheckCall("cleanup", a.cleanup.Invoke())
}

func (a *Adapter) Close() error {
	cerr := a.Cleanup()
	if err := a.lib.Close(); err != nil {
		return err
	}
	return cerr
}

// GenerateKey fills the two-buffer layout: one public point, one private
// scalar.
func (a *Adapter) GenerateKey(tsa.KeyRequest) (tsa.KeyMaterial, error) {
	const op = "keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "pk", Group: tsa.GroupG1}, tsa.Output{Name: "sk", Group: tsa.GroupZr})
	defer out.Release()
	if err := tsa.CheckCall(op, a.keygen.Invoke(out.WithSize()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "pk"), nil
}

func (a *Adapter) Benchmark(iterations int) (map[string]float64, error) {
	const op = "benchmark"
	if _, err := a.Sizes(op); err != nil {
		return nil, err
	}
	results := make([]float64, len(performanceKeys))
	if err := tsa.CheckCall(op, a.performance.Invoke(native.Int(iterations), native.Doubles(results))); err != nil {
		return nil, err
	}
	timings := make(map[string]float64, len(results))
	for i, k := range performanceKeys {
		timings[k] = results[i]
	}
	return timings, nil
}

func (a *Adapter) ResetPerformance() error {
	return tsa.CheckCall("reset_performance", a.resetPerformance.Invoke())
}
