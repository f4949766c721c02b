// Package stealth binds the traceable stealth address library
// (libstealth.so). It is the only scheme that supports every operation,
// including signing with a derived key.
//
// Keys are (A, B) in G1 with private (a, b) in Zr. The tracer key is TK in G1
// with private k. An address is addr with auxiliary R1, R2 and C, all G1
// sized. Signatures are Q_sigma in G1 and h in Zr.
package stealth

import (
	"context"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

// ID is the scheme id.
const ID = "stealth"

// LibraryName is the default shared object name.
const LibraryName = "libstealth.so"

// fallbackMessage is signed when deriving a key without the dedicated
// function; the signature is discarded.
const fallbackMessage = "temp_message"

// performanceKeys names the slots of the native timing array, in order.
var performanceKeys = []string{
	"addr_gen", "addr_recognize", "fast_recognize", "onetime_sk", "sign", "sig_verify", "trace",
}

// Descriptor describes the scheme for registration.
func Descriptor() tsa.Descriptor {
	return tsa.Descriptor{
		ID:           ID,
		DisplayName:  "Traceable Stealth Address",
		Description:  "Pairing-based stealth addresses with tracing and one-time signing keys.",
		Capabilities: tsa.AllCapabilities,
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

	keygen, traceKeygen, addrGen     native.Symbol
	recognizeFast, recognizeFull     native.Symbol
	sign, verify, trace, performance native.Symbol

	// optional
	dskGen, signWithDSK native.Symbol
}

// Adapter binds one opened libstealth.so.
type Adapter struct {
	tsa.Lifecycle
	lib native.Library
	sym symbols
	log logging.Logger
}

var (
	_ tsa.Adapter             = (*Adapter)(nil)
	_ tsa.KeyGenerator        = (*Adapter)(nil)
	_ tsa.AddressGenerator    = (*Adapter)(nil)
	_ tsa.Recognizer          = (*Adapter)(nil)
	_ tsa.DerivedKeyGenerator = (*Adapter)(nil)
	_ tsa.Signer              = (*Adapter)(nil)
	_ tsa.SignatureVerifier   = (*Adapter)(nil)
	_ tsa.Tracer              = (*Adapter)(nil)
	_ tsa.Benchmarker         = (*Adapter)(nil)
	_ tsa.PerformanceResetter = (*Adapter)(nil)
	_ tsa.DSKReporter         = (*Adapter)(nil)
)

// New binds lib. Every symbol except the dedicated DSK pair is required.
func New(lib native.Library, log logging.Logger) (*Adapter, error) {
	if log == nil {
		log = logging.New(nil)
	}
	b := tsa.NewBinder(lib)
	sym := symbols{
		init:             b.Require("stealth_init"),
		isInitialized:    b.Require("stealth_is_initialized"),
		cleanup:          b.Require("stealth_cleanup"),
		resetPerformance: b.Require("stealth_reset_performance"),
		sizeG1:           b.Require("stealth_element_size_G1"),
		sizeZr:           b.Require("stealth_element_size_Zr"),
		keygen:           b.Require("stealth_keygen_simple"),
		traceKeygen:      b.Require("stealth_tracekeygen_simple"),
		addrGen:          b.Require("stealth_addr_gen_simple"),
		recognizeFast:    b.Require("stealth_addr_recognize_fast_simple"),
		recognizeFull:    b.Require("stealth_addr_recognize_simple"),
		sign:             b.Require("stealth_sign_simple"),
		verify:           b.Require("stealth_verify_simple"),
		trace:            b.Require("stealth_trace_simple"),
		performance:      b.Require("stealth_performance_test_simple"),
		dskGen:           b.Optional("stealth_dsk_gen_simple"),
		signWithDSK:      b.Optional("stealth_sign_with_dsk_simple"),
	}
	if err := b.Err("bind"); err != nil {
		return nil, err
	}
	a := &Adapter{Lifecycle: tsa.Lifecycle{Scheme: ID}, lib: lib, sym: sym, log: log}
	a.log.Debug(context.Background(), "stealth library bound", "path", lib.Path(), "dsk_method", string(a.DSKMethod()))
	return a, nil
}

// DSKMethod reports dedicated when both optional DSK functions are exported.
func (a *Adapter) DSKMethod() tsa.DSKMethod {
	if a.sym.dskGen != nil && a.sym.signWithDSK != nil {
		return tsa.DSKDedicated
	}
	return tsa.DSKFallback
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

func (a *Adapter) ElementSizes() (tsa.ElementSizes, error) {
	return a.Sizes("element_sizes")
}

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

func (a *Adapter) TracerKeygen() (tsa.KeyMaterial, error) {
	const op = "tracer_keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "TK", Group: tsa.GroupG1}, tsa.Output{Name: "k", Group: tsa.GroupZr})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.traceKeygen.Invoke(out.WithSize()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "TK"), nil
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

func (a *Adapter) GenerateAddress(owner, tracer tsa.KeyMaterial) (tsa.AddressMaterial, error) {
	const op = "addr_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(owner.Public, "A", "B"), tsa.From(tracer.Public, "TK"))
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes,
		tsa.Output{Name: "addr", Group: tsa.GroupG1},
		tsa.Output{Name: "R1", Group: tsa.GroupG1},
		tsa.Output{Name: "R2", Group: tsa.GroupG1},
		tsa.Output{Name: "C", Group: tsa.GroupG1},
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

// RecognizeModes: fast uses (R1, B, A, C, a); full adds addr and the tracer
// public key TK.
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
		in, err = tsa.Decode(op,
			tsa.From(addr.Aux, "R1"),
			tsa.From(key.Public, "B", "A"),
			tsa.From(addr.Aux, "C"),
			tsa.From(key.Private, "a"),
		)
	case tsa.RecognizeFull:
		sym = a.sym.recognizeFull
		in, err = tsa.Decode(op,
			tsa.From(tsa.Parts{"addr": addr.Address}, "addr"),
			tsa.From(addr.Aux, "R1"),
			tsa.From(key.Public, "B", "A"),
			tsa.From(addr.Aux, "C"),
			tsa.From(key.Private, "a"),
			tsa.From(tracer.Public, "TK"),
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

func (a *Adapter) DeriveKey(addr tsa.AddressMaterial, key, _ tsa.KeyMaterial) (tsa.DerivedKeyMaterial, error) {
	const op = "dsk_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	in, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"addr": addr.Address}, "addr"),
		tsa.From(addr.Aux, "R1"),
		tsa.From(key.Private, "a", "b"),
	)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	defer in.Release()

	method := a.DSKMethod()
	var out *tsa.Outputs
	if method == tsa.DSKDedicated {
		out = tsa.NewOutputs(sizes, tsa.Output{Name: "dsk", Group: tsa.GroupG1})
		defer out.Release()
		err = a.sym.dskGen.Invoke(tsa.Args(in.Args(), out.WithSize())...)
	} else {
		out = tsa.NewOutputs(sizes,
			tsa.Output{Name: "Q_sigma", Group: tsa.GroupG1},
			tsa.Output{Name: "h", Group: tsa.GroupZr},
			tsa.Output{Name: "dsk", Group: tsa.GroupG1},
		)
		defer out.Release()
		err = a.sym.sign.Invoke(tsa.Args(in.Args(), []native.Arg{native.Str(fallbackMessage)}, out.WithSize())...)
	}
	if err := tsa.CheckCall(op, err); err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	dsk := tsa.ToHex(out.Bytes("dsk"), sizes.SizeFor(tsa.GroupG1))
	if dsk == "" {
		return tsa.DerivedKeyMaterial{}, tsa.Errorf(op, tsa.ErrEmptyOutput, "dsk")
	}
	return tsa.DerivedKeyMaterial{DSK: dsk, Method: method}, nil
}

// Sign signs with in.DSK through the dedicated function, or with the key
// pair through the address. DSK signing needs the dedicated function.
func (a *Adapter) Sign(in tsa.SignInput) (tsa.Parts, error) {
	const op = "sign"
	sizes, err := a.Sizes(op)
	if err != nil {
		return nil, err
	}
	addr := tsa.Parts{"addr": in.Address.Address}
	if in.DSK != "" {
		if a.sym.signWithDSK == nil {
			return nil, tsa.Unsupported(op, ID, "signing with a derived key needs stealth_sign_with_dsk_simple")
		}
		args, err := tsa.Decode(op, tsa.From(addr, "addr"), tsa.From(tsa.Parts{"dsk": in.DSK}, "dsk"))
		if err != nil {
			return nil, err
		}
		defer args.Release()
		out := signatureOutputs(sizes)
		defer out.Release()
		call := tsa.Args(args.Args(), []native.Arg{native.Str(in.Message)}, out.WithSize())
		if err := tsa.CheckCall(op, a.sym.signWithDSK.Invoke(call...)); err != nil {
			return nil, err
		}
		return out.Collect(op)
	}

	args, err := tsa.Decode(op, tsa.From(addr, "addr"), tsa.From(in.Address.Aux, "R1"), tsa.From(in.Key.Private, "a", "b"))
	if err != nil {
		return nil, err
	}
	defer args.Release()
	out := tsa.NewOutputs(sizes,
		tsa.Output{Name: "Q_sigma", Group: tsa.GroupG1},
		tsa.Output{Name: "h", Group: tsa.GroupZr},
		tsa.Output{Name: "dsk", Group: tsa.GroupG1},
	)
	defer out.Release()
	call := tsa.Args(args.Args(), []native.Arg{native.Str(in.Message)}, out.WithSize())
	if err := tsa.CheckCall(op, a.sym.sign.Invoke(call...)); err != nil {
		return nil, err
	}
	sig := tsa.Parts{
		"Q_sigma": tsa.ToHex(out.Bytes("Q_sigma"), sizes.SizeFor(tsa.GroupG1)),
		"h":       tsa.ToHex(out.Bytes("h"), sizes.SizeFor(tsa.GroupZr)),
	}
	if sig["Q_sigma"] == "" || sig["h"] == "" {
		return nil, tsa.Errorf(op, tsa.ErrEmptyOutput, "signature")
	}
	return sig, nil
}

func signatureOutputs(sizes tsa.ElementSizes) *tsa.Outputs {
	return tsa.NewOutputs(sizes,
		tsa.Output{Name: "Q_sigma", Group: tsa.GroupG1},
		tsa.Output{Name: "h", Group: tsa.GroupZr},
	)
}

func (a *Adapter) VerifySignature(addr tsa.AddressMaterial, sig tsa.Parts, message string) (bool, error) {
	const op = "verify"
	if _, err := a.Sizes(op); err != nil {
		return false, err
	}
	pre, err := tsa.Decode(op, tsa.From(tsa.Parts{"addr": addr.Address}, "addr"), tsa.From(addr.Aux, "R2", "C"))
	if err != nil {
		return false, err
	}
	defer pre.Release()
	post, err := tsa.Decode(op, tsa.From(sig, "h", "Q_sigma"))
	if err != nil {
		return false, err
	}
	defer post.Release()
	return tsa.CheckBool(op)(a.sym.verify.Call(tsa.Args(pre.Args(), []native.Arg{native.Str(message)}, post.Args())...))
}

// Trace recovers the owner's B from an address with the tracer private key.
func (a *Adapter) Trace(addr tsa.AddressMaterial, tracer tsa.KeyMaterial) (tsa.RecoveredIdentity, error) {
	const op = "trace"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	in, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"addr": addr.Address}, "addr"),
		tsa.From(addr.Aux, "R1", "R2", "C"),
		tsa.From(tracer.Private, "k"),
	)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "B", Group: tsa.GroupG1})
	defer out.Release()
	if err := tsa.CheckCall(op, a.sym.trace.Invoke(tsa.Args(in.Args(), out.WithSize())...)); err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.RecoveredIdentity{}, err
	}
	return tsa.RecoveredIdentity{Component: "B", Hex: parts["B"]}, nil
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
