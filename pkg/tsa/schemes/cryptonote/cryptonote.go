// Package cryptonote binds the CryptoNote one-time address library
// (libcryptonote.so). It runs on a plain elliptic curve configured by a
// curve file, has no tracer and only the fast recognition path.
package cryptonote

import (
	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/internal/curveinfo"
)

const (
	ID          = "cryptonote"
	LibraryName = "libcryptonote.so"
)

const capabilities = tsa.CapSetup | tsa.CapKeygen | tsa.CapAddrGen | tsa.CapRecognize |
	tsa.CapDSKGen | tsa.CapPerformance

var performanceKeys = []string{"addr_gen", "addr_recognize", "onetime_sk", "h1"}

func Descriptor() tsa.Descriptor {
	return tsa.Descriptor{
		ID:           ID,
		DisplayName:  "CryptoNote",
		Description:  "One-time addresses on an elliptic curve, without tracing or signatures.",
		Capabilities: capabilities,
		ParamFamily:  params.FamilyCurve,
		Library:      LibraryName,
		NewAdapter: func(lib native.Library, log logging.Logger) (tsa.Adapter, error) {
			return New(lib, log)
		},
	}
}

type symbols struct {
	init, isInitialized, cleanup, resetPerformance, curveInfo native.Symbol
	keygen, addrGen, addrVerify, onetimeSK, performance       native.Symbol
}

// Adapter binds one opened libcryptonote.so.
type Adapter struct {
	tsa.Lifecycle
	lib   native.Library
	sym   symbols
	curve string
}

var (
	_ tsa.KeyGenerator        = (*Adapter)(nil)
	_ tsa.AddressGenerator    = (*Adapter)(nil)
	_ tsa.Recognizer          = (*Adapter)(nil)
	_ tsa.DerivedKeyGenerator = (*Adapter)(nil)
	_ tsa.Benchmarker         = (*Adapter)(nil)
	_ tsa.PerformanceResetter = (*Adapter)(nil)
)

func New(lib native.Library, _ logging.Logger) (*Adapter, error) {
	b := tsa.NewBinder(lib)
	sym := symbols{
		init:             b.Require("cryptonote2_init"),
		isInitialized:    b.Require("cryptonote2_is_initialized"),
		cleanup:          b.Require("cryptonote2_cleanup"),
		resetPerformance: b.Require("cryptonote2_reset_performance"),
		curveInfo:        b.Require("cryptonote2_get_curve_info"),
		keygen:           b.Require("cryptonote2_keygen_simple"),
		addrGen:          b.Require("cryptonote2_addr_gen_simple"),
		addrVerify:       b.Require("cryptonote2_addr_verify_simple"),
		onetimeSK:        b.Require("cryptonote2_onetime_sk_gen_simple"),
		performance:      b.Require("cryptonote2_performance_test_simple"),
	}
	if err := b.Err("bind"); err != nil {
		return nil, err
	}
	return &Adapter{Lifecycle: tsa.Lifecycle{Scheme: ID}, lib: lib, sym: sym}, nil
}

func (a *Adapter) Init(paramPath string) error {
	if err := a.BeginInit(); err != nil {
		return err
	}
	if err := tsa.CheckInit(a.sym.init.Call(native.Str(paramPath))); err != nil {
		return err
	}
	if ok, err := tsa.CheckBool("init")(a.sym.isInitialized.Call()); err != nil || !ok {
		return tsa.Errorf("init", tsa.ErrInitFailed, "library reports not initialized")
	}
	info, err := curveinfo.Query(a.sym.curveInfo, paramPath)
	if err != nil {
		_ = a.sym.cleanup.Invoke()
		return err
	}
	a.curve = info.Name
	a.Ready(info.Sizes())
	return nil
}

// Curve is the curve name the library reported at Init.
func (a *Adapter) Curve() string { return a.curve }

func (a *Adapter) ElementSizes() (tsa.ElementSizes, error) { return a.Sizes("element_sizes") }

// TracerKeygen returns no material: CryptoNote has no tracer.
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
	a.curve = ""
	return tsa.CheckCall("cleanup", a.sym.cleanup.Invoke())
}

func (a *Adapter) Close() error {
	cerr := a.Cleanup()
	if err := a.lib.Close(); err != nil {
		return err
	}
	return cerr
}

func (a *Adapter) GenerateKey(tsa.KeyRequest) (tsa.KeyMaterial, error) {
	const op = "keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := tsa.NewOutputs(sizes,
		tsa.Output{Name: "A", Group: tsa.GroupG1},
		tsa.Output{Name: "B", Group: tsa.GroupG1},
		tsa.Output{Name: "a", Group: tsa.GroupZr},
		tsa.Output{Name: "b", Group: tsa.GroupZr},
	)
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.keygen.Invoke(out.WithSize()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "A", "B"), nil
}

// GenerateAddress produces the one-time public key PK_one and the
// transaction key R.
func (a *Adapter) GenerateAddress(owner, _ tsa.KeyMaterial) (tsa.AddressMaterial, error) {
	const op = "addr_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(owner.Public, "A", "B"))
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "PK_one", Group: tsa.GroupG1}, tsa.Output{Name: "R", Group: tsa.GroupG1})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.addrGen.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.AddressMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	return tsa.AddressMaterial{Address: parts["PK_one"], Aux: tsa.Parts{"R": parts["R"]}}, nil
}

func (a *Adapter) RecognizeModes() []tsa.RecognizeMode {
	return []tsa.RecognizeMode{tsa.RecognizeFast}
}

func (a *Adapter) Recognize(addr tsa.AddressMaterial, key, _ tsa.KeyMaterial, mode tsa.RecognizeMode) (bool, error) {
	const op = "recognize"
	if mode != tsa.RecognizeFast {
		return false, tsa.Unsupported(op, ID, string(mode)+" recognition")
	}
	if _, err := a.Sizes(op); err != nil {
		return false, err
	}
	in, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"PK_one": addr.Address}, "PK_one"),
		tsa.From(addr.Aux, "R"),
		tsa.From(key.Private, "a"),
		tsa.From(key.Public, "B"),
	)
	if err != nil {
		return false, err
	}
	defer in.Release()
	return tsa.CheckBool(op)(a.sym.addrVerify.Call(in.Args()...))
}

func (a *Adapter) DeriveKey(addr tsa.AddressMaterial, key, _ tsa.KeyMaterial) (tsa.DerivedKeyMaterial, error) {
	const op = "dsk_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(addr.Aux, "R"), tsa.From(key.Private, "a", "b"))
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "sk", Group: tsa.GroupZr})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.onetimeSK.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	return tsa.DerivedKeyMaterial{DSK: parts["sk"], Method: tsa.DSKDedicated}, nil
}

func (a *Adapter) Benchmark(iterations int) (map[string]float64, error) {
	const op = "benchmark"
	if _, err := a.Sizes(op); err != nil {
		return nil, err
	}
	results := make([]float64, len(performanceKeys))
	if err := tsa.CheckCall(op, a.sym.performance.Invoke(native.Int(iterations), native.Doubles(results))); err != nil {
		return nil, err
	}
	timings := make(map[string]float64, len(results))
	for i, k := range performanceKeys {
		timings[k] = results[i]
	}
	return timings, nil
}

func (a *Adapter) ResetPerformance() error {
	return tsa.CheckCall("reset_performance", a.sym.resetPerformance.Invoke())
}
