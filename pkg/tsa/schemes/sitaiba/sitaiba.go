// Package sitaiba binds the SITAIBA library (libsitaiba.so): traceable
// stealth addresses without signing.
package sitaiba

import (
	"context"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

const (
	ID          = "sitaiba"
	LibraryName = "libsitaiba.so"
)

const capabilities = tsa.CapSetup | tsa.CapKeygen | tsa.CapAddrGen | tsa.CapRecognize |
	tsa.CapDSKGen | tsa.CapTrace | tsa.CapPerformance

var performanceKeys = []string{"addr_gen", "addr_recognize", "fast_recognize", "onetime_sk", "trace"}

func Descriptor() tsa.Descriptor {
	return tsa.Descriptor{
		ID:           ID,
		DisplayName:  "SITAIBA",
		Description:  "Traceable stealth addresses with identity-based tracing; no signatures.",
		Capabilities: capabilities,
		ParamFamily:  params.FamilyPairing,
		Library:      LibraryName,
		NewAdapter: func(lib native.Library, log logging.Logger) (tsa.Adapter, error) {
			return New(lib, log)
		},
	}
}

type symbols struct {
	init, isInitialized, cleanup, resetPerformance native.Symbol
	sizeG1, sizeZr                                 native.Symbol

	keygen, tracerKeygen, addrGen native.Symbol
	recognizeFast, recognizeFull  native.Symbol
	onetimeSK, trace, performance native.Symbol

	tracerPublic native.Symbol // optional
}

// Adapter binds one opened libsitaiba.so.
type Adapter struct {
	tsa.Lifecycle
	lib native.Library
	sym symbols
	log logging.Logger
}

func New(lib native.Library, log logging.Logger) (*Adapter, error) {
	if log == nil {
		log = logging.New(nil)
	}
	b := tsa.NewBinder(lib)
	sym := symbols{
		init:             b.Require("sitaiba_init_simple"),
		isInitialized:    b.Require("sitaiba_is_initialized_simple"),
		cleanup:          b.Require("sitaiba_cleanup_simple"),
		resetPerformance: b.Require("sitaiba_reset_performance_simple"),
		sizeG1:           b.Require("sitaiba_element_size_G1_simple"),
		sizeZr:           b.Require("sitaiba_element_size_Zr_simple"),
		keygen:           b.Require("sitaiba_keygen_simple"),
		tracerKeygen:     b.Require("sitaiba_tracer_keygen_simple"),
		addrGen:          b.Require("sitaiba_addr_gen_simple"),
		recognizeFast:    b.Require("sitaiba_addr_recognize_fast_simple"),
		recognizeFull:    b.Require("sitaiba_addr_recognize_simple"),
		onetimeSK:        b.Require("sitaiba_onetime_skgen_simple"),
		trace:            b.Require("sitaiba_trace_simple"),
		performance:      b.Require("sitaiba_performance_test_simple"),
		tracerPublic:     b.Optional("sitaiba_get_tracer_public_key_simple"),
	}
	if err := b.Err("bind"); err != nil {
		return nil, err
	}
	return &Adapter{Lifecycle: tsa.Lifecycle{Scheme: ID}, lib: lib, sym: sym, log: log}, nil
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
	a.Ready(tsa.ElementSizes{
		G1: tsa.SizeOrZero(a.sym.sizeG1.Call()),
		Zr: tsa.SizeOrZero(a.sym.sizeZr.Call()),
	})
	return nil
}

func (a *Adapter) ElementSizes() (tsa.ElementSizes, error) { return a.Sizes("element_sizes") }

func (a *Adapter) Cleanup() error {
	if !a.Initialized() {
		return nil
	}
	a.Reset()
	return tsa.CheckCall("cleanup", a.sym.cleanup.Invoke())
}

func (a *Adapter) Close() error {
	cerr := a.Cleanup()
	if err := a.lib.Close(); err != nil {
		return err
	}
	return cerr
}

// TracerKeygen generates (A_m, a_m). When the library also keeps its own
// copy of A_m, a disagreement is logged.
func (a *Adapter) TracerKeygen() (tsa.KeyMaterial, error) {
	const op = "tracer_keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "A_m", Group: tsa.GroupG1}, tsa.Output{Name: "a_m", Group: tsa.GroupZr})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.tracerKeygen.Invoke(out.WithSize()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	km := tsa.Split(parts, "A_m")
	if stored, err := a.NativeTracerPublic(); err == nil && stored != km.Public["A_m"] {
		a.log.Warn(context.Background(), "library tracer key differs from generated key")
	}
	return km, nil
}

// NativeTracerPublic reads the tracer public key the library keeps
// internally.
func (a *Adapter) NativeTracerPublic() (string, error) {
	const op = "tracer_public"
	if a.sym.tracerPublic == nil {
		return "", tsa.Unsupported(op, ID, "sitaiba_get_tracer_public_key_simple not exported")
	}
	sizes, err := a.Sizes(op)
	if err != nil {
		return "", err
	}
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "A_m", Group: tsa.GroupG1})
	defer out.Release()
	if err := tsa.CheckStatus(op)(a.sym.tracerPublic.Call(out.WithSize()...)); err != nil {
		return "", err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return "", err
	}
	return parts["A_m"], nil
}

func (a *Adapter) GenerateKey(tsa.KeyRequest) (tsa.KeyMaterial, error) {
	const op = "keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := tsa.NewOutputs(sizes,
		tsa.Output{Name: "A_r", Group: tsa.GroupG1},
		tsa.Output{Name: "B_r", Group: tsa.GroupG1},
		tsa.Output{Name: "a_r", Group: tsa.GroupZr},
		tsa.Output{Name: "b_r", Group: tsa.GroupZr},
	)
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.keygen.Invoke(out.WithSize()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "A_r", "B_r"), nil
}

func (a *Adapter) GenerateAddress(owner, tracer tsa.KeyMaterial) (tsa.AddressMaterial, error) {
	const op = "addr_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(owner.Public, "A_r", "B_r"), tsa.From(tracer.Public, "A_m"))
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes,
		tsa.Output{Name: "addr", Group: tsa.GroupG1},
		tsa.Output{Name: "R1", Group: tsa.GroupG1},
		tsa.Output{Name: "R2", Group: tsa.GroupG1},
	)
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.addrGen.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.AddressMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	addr := parts["addr"]
	delete(parts, "addr")
	return tsa.AddressMaterial{Address: addr, Aux: parts}, nil
}

// RecognizeModes: fast uses (R1, R2, A_r, a_r); full uses
// (addr, R1, R2, A_r, B_r, a_r) and the tracer public key A_m.
func (a *Adapter) RecognizeModes() []tsa.RecognizeMode {
	return []tsa.RecognizeMode{tsa.RecognizeFast, tsa.RecognizeFull}
}

func (a *Adapter) Recognize(addr tsa.AddressMaterial, key, tracer tsa.KeyMaterial, mode tsa.RecognizeMode) (bool, error) {
	const op = "recognize"
	if _, err := a.Sizes(op); err != nil {
		return false, err
	}
	var (
		in  *tsa.Inputs
		sym native.Symbol
		err error
	)
	switch mode {
	case tsa.RecognizeFast:
		sym = a.sym.recognizeFast
		in, err = tsa.Decode(op, tsa.From(addr.Aux, "R1", "R2"), tsa.From(key.Public, "A_r"), tsa.From(key.Private, "a_r"))
	case tsa.RecognizeFull:
		sym = a.sym.recognizeFull
		in, err = tsa.Decode(op,
			tsa.From(tsa.Parts{"addr": addr.Address}, "addr"),
			tsa.From(addr.Aux, "R1", "R2"),
			tsa.From(key.Public, "A_r", "B_r"),
			tsa.From(key.Private, "a_r"),
			tsa.From(tracer.Public, "A_m"),
		)
	default:
		return false, tsa.Unsupported(op, ID, string(mode)+" recognition")
	}
	if err != nil {
		return false, err
	}
	defer in.Release()
	return tsa.CheckBool(op)(sym.Call(in.Args()...))
}

// DeriveKey always uses the dedicated one-time key function.
func (a *Adapter) DeriveKey(addr tsa.AddressMaterial, key, tracer tsa.KeyMaterial) (tsa.DerivedKeyMaterial, error) {
	const op = "dsk_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(addr.Aux, "R1"), tsa.From(key.Private, "a_r", "b_r"), tsa.From(tracer.Public, "A_m"))
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "dsk", Group: tsa.GroupZr})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.onetimeSK.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	return tsa.DerivedKeyMaterial{DSK: parts["dsk"], Method: tsa.DSKDedicated}, nil
}

func (a *Adapter) DSKMethod() tsa.DSKMethod { return tsa.DSKDedicated }

// Trace recovers B_r with the tracer private key a_m.
func (a *Adapter) Trace(addr tsa.AddressMaterial, tracer tsa.KeyMaterial) (tsa.RecoveredIdentity, error) {
	const op = "trace"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	in, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"addr": addr.Address}, "addr"),
		tsa.From(addr.Aux, "R1", "R2"),
		tsa.From(tracer.Private, "a_m"),
	)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "B_r", Group: tsa.GroupG1})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.trace.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	return tsa.RecoveredIdentity{Component: "B_r", Hex: parts["B_r"]}, nil
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
