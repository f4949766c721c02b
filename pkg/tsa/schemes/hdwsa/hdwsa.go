// Package hdwsa binds the hierarchical deterministic wallet signature
// library (libhdwsa.so).
//
// Setup generates the root wallet (A, B, alpha, beta), which the session
// keeps in its tracer slot. Every key is a child wallet "id_<n>" derived from
// the root. An address is the verification key Qvk in GT with Qr in G1.
// HDWSA has no tracing. Every native function returns a status where 0 is
// success, and no function takes a buffer size.
package hdwsa

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

const (
	ID          = "hdwsa"
	LibraryName = "libhdwsa.so"
)

const capabilities = tsa.CapSetup | tsa.CapKeygen | tsa.CapAddrGen | tsa.CapRecognize |
	tsa.CapDSKGen | tsa.CapSign | tsa.CapVerify | tsa.CapPerformance

// reportSize bounds the performance report the library writes.
const reportSize = 4096

func Descriptor() tsa.Descriptor {
	return tsa.Descriptor{
		ID:           ID,
		DisplayName:  "HDWSA",
		Description:  "Hierarchical deterministic wallets with stealth addresses and signatures.",
		Capabilities: capabilities,
		ParamFamily:  params.FamilyPairing,
		Library:      LibraryName,
		NewAdapter: func(lib native.Library, log logging.Logger) (tsa.Adapter, error) {
			return New(lib, log)
		},
	}
}

// WalletID names the child wallet at index.
func WalletID(index int) string {
	return fmt.Sprintf("id_%d", index)
}

type symbols struct {
	init, isInitialized, cleanup, resetPerformance native.Symbol
	sizeG1, sizeZr, sizeGT                         native.Symbol

	rootKeygen, keypairGen, addrGen, recognize native.Symbol
	dskGen, sign, verify                       native.Symbol
	performance, performanceReport             native.Symbol
}

// Adapter binds one opened libhdwsa.so.
type Adapter struct {
	tsa.Lifecycle
	lib native.Library
	sym symbols
}

var (
	_ tsa.Adapter             = (*Adapter)(nil)
	_ tsa.KeyGenerator        = (*Adapter)(nil)
	_ tsa.AddressGenerator    = (*Adapter)(nil)
	_ tsa.Recognizer          = (*Adapter)(nil)
	_ tsa.DerivedKeyGenerator = (*Adapter)(nil)
	_ tsa.Signer              = (*Adapter)(nil)
	_ tsa.SignatureVerifier   = (*Adapter)(nil)
	_ tsa.Benchmarker         = (*Adapter)(nil)
	_ tsa.PerformanceResetter = (*Adapter)(nil)
)

func New(lib native.Library, _ logging.Logger) (*Adapter, error) {
	b := tsa.NewBinder(lib)
	sym := symbols{
		init:              b.Require("hdwsa_init_simple"),
		isInitialized:     b.Require("hdwsa_is_initialized_simple"),
		cleanup:           b.Require("hdwsa_cleanup_simple"),
		resetPerformance:  b.Require("hdwsa_reset_performance_simple"),
		sizeG1:            b.Require("hdwsa_element_size_G1_simple"),
		sizeZr:            b.Require("hdwsa_element_size_Zr_simple"),
		sizeGT:            b.Require("hdwsa_element_size_GT_simple"),
		rootKeygen:        b.Require("hdwsa_root_keygen_simple"),
		keypairGen:        b.Require("hdwsa_keypair_gen_simple"),
		addrGen:           b.Require("hdwsa_addr_gen_simple"),
		recognize:         b.Require("hdwsa_addr_recognize_simple"),
		dskGen:            b.Require("hdwsa_dsk_gen_simple"),
		sign:              b.Require("hdwsa_sign_simple"),
		verify:            b.Require("hdwsa_verify_simple"),
		performance:       b.Require("hdwsa_performance_test_simple"),
		performanceReport: b.Require("hdwsa_get_performance_string_simple"),
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
	a.Ready(tsa.ElementSizes{
		G1: tsa.SizeOrZero(a.sym.sizeG1.Call()),
		Zr: tsa.SizeOrZero(a.sym.sizeZr.Call()),
		GT: tsa.SizeOrZero(a.sym.sizeGT.Call()),
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

func walletOutputs(sizes tsa.ElementSizes) *tsa.Outputs {
	return tsa.NewOutputs(sizes,
		tsa.Output{Name: "A", Group: tsa.GroupG1},
		tsa.Output{Name: "B", Group: tsa.GroupG1},
		tsa.Output{Name: "alpha", Group: tsa.GroupZr},
		tsa.Output{Name: "beta", Group: tsa.GroupZr},
	)
}

// TracerKeygen generates the root wallet.
func (a *Adapter) TracerKeygen() (tsa.KeyMaterial, error) {
	const op = "root_keygen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	out := walletOutputs(sizes)
	defer out.Release()
	if err := tsa.CheckStatus(op)(a.sym.rootKeygen.Call(out.Args()...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "A", "B"), nil
}

// GenerateKey derives child wallet WalletID(req.Index) from the root wallet
// in req.Tracer.
func (a *Adapter) GenerateKey(req tsa.KeyRequest) (tsa.KeyMaterial, error) {
	const op = "keypair_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	in, err := tsa.Decode(op, tsa.From(req.Tracer.Private, "alpha", "beta"))
	if err != nil {
		return tsa.KeyMaterial{}, tsa.Errorf(op, tsa.ErrNotInitialized, "root wallet missing: %v", err)
	}
	defer in.Release()
	out := walletOutputs(sizes)
	defer out.Release()
	call := tsa.Args(out.Args(), in.Args(), []native.Arg{native.Str(WalletID(req.Index))})
	if err := tsa.CheckStatus(op)(a.sym.keypairGen.Call(call...)); err != nil {
		return tsa.KeyMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.KeyMaterial{}, err
	}
	return tsa.Split(parts, "A", "B"), nil
}

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
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "Qr", Group: tsa.GroupG1}, tsa.Output{Name: "Qvk", Group: tsa.GroupGT})
	defer out.Release()
	if err := tsa.CheckStatus(op)(a.sym.addrGen.Call(tsa.Args(out.Args(), in.Args())...)); err != nil {
		return tsa.AddressMaterial{}, err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return tsa.AddressMaterial{}, err
	}
	return tsa.AddressMaterial{Address: parts["Qvk"], Aux: tsa.Parts{"Qr": parts["Qr"]}}, nil
}

// RecognizeModes: only full recognition, consuming (Qvk, Qr, A, B, beta).
func (a *Adapter) RecognizeModes() []tsa.RecognizeMode {
	return []tsa.RecognizeMode{tsa.RecognizeFull}
}

func (a *Adapter) Recognize(addr tsa.AddressMaterial, key, _ tsa.KeyMaterial, mode tsa.RecognizeMode) (bool, error) {
	const op = "recognize"
	if mode != tsa.RecognizeFull {
		return false, tsa.Unsupported(op, ID, string(mode)+" recognition")
	}
	if _, err := a.Sizes(op); err != nil {
		return false, err
	}
	in, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"Qvk": addr.Address}, "Qvk"),
		tsa.From(addr.Aux, "Qr"),
		tsa.From(key.Public, "A", "B"),
		tsa.From(key.Private, "beta"),
	)
	if err != nil {
		return false, err
	}
	defer in.Release()
	return tsa.CheckBool(op)(a.sym.recognize.Call(in.Args()...))
}

func (a *Adapter) DeriveKey(addr tsa.AddressMaterial, key, _ tsa.KeyMaterial) (tsa.DerivedKeyMaterial, error) {
	dsk, err := a.deriveKey(addr, key)
	if err != nil {
		return tsa.DerivedKeyMaterial{}, err
	}
	return tsa.DerivedKeyMaterial{DSK: dsk, Method: tsa.DSKDedicated}, nil
}

func (a *Adapter) deriveKey(addr tsa.AddressMaterial, key tsa.KeyMaterial) (string, error) {
	const op = "dsk_gen"
	sizes, err := a.Sizes(op)
	if err != nil {
		return "", err
	}
	in, err := tsa.Decode(op, tsa.From(addr.Aux, "Qr"), tsa.From(key.Public, "B"), tsa.From(key.Private, "alpha", "beta"))
	if err != nil {
		return "", err
	}
	defer in.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "dsk", Group: tsa.GroupG1})
	defer out.Release()
	if err := tsa.CheckStatus(op)(a.sym.dskGen.Call(tsa.Args(out.Args(), in.Args())...)); err != nil {
		return "", err
	}
	parts, err := out.Collect(op)
	if err != nil {
		return "", err
	}
	return parts["dsk"], nil
}

func (a *Adapter) DSKMethod() tsa.DSKMethod { return tsa.DSKDedicated }

// Sign signs with in.DSK, deriving it from in.Key first when it is not
// given.
func (a *Adapter) Sign(in tsa.SignInput) (tsa.Parts, error) {
	const op = "sign"
	sizes, err := a.Sizes(op)
	if err != nil {
		return nil, err
	}
	dsk := in.DSK
	if dsk == "" {
		if dsk, err = a.deriveKey(in.Address, in.Key); err != nil {
			return nil, err
		}
	}
	args, err := tsa.Decode(op,
		tsa.From(tsa.Parts{"dsk": dsk}, "dsk"),
		tsa.From(in.Address.Aux, "Qr"),
		tsa.From(tsa.Parts{"Qvk": in.Address.Address}, "Qvk"),
	)
	if err != nil {
		return nil, err
	}
	defer args.Release()
	out := tsa.NewOutputs(sizes, tsa.Output{Name: "h", Group: tsa.GroupZr}, tsa.Output{Name: "Q_sigma", Group: tsa.GroupG1})
	defer out.Release()
	call := tsa.Args(out.Args(), args.Args(), []native.Arg{native.Str(in.Message)})
	if err := tsa.CheckStatus(op)(a.sym.sign.Call(call...)); err != nil {
		return nil, err
	}
	return out.Collect(op)
}

func (a *Adapter) VerifySignature(addr tsa.AddressMaterial, sig tsa.Parts, message string) (bool, error) {
	const op = "verify"
	if _, err := a.Sizes(op); err != nil {
		return false, err
	}
	in, err := tsa.Decode(op,
		tsa.From(sig, "h", "Q_sigma"),
		tsa.From(addr.Aux, "Qr"),
		tsa.From(tsa.Parts{"Qvk": addr.Address}, "Qvk"),
	)
	if err != nil {
		return false, err
	}
	defer in.Release()
	return tsa.CheckBool(op)(a.sym.verify.Call(tsa.Args(in.Args(), []native.Arg{native.Str(message)})...))
}

// Benchmark runs the library's test and parses its "name: value ms" report.
func (a *Adapter) Benchmark(iterations int) (map[string]float64, error) {
	const op = "benchmark"
	if _, err := a.Sizes(op); err != nil {
		return nil, err
	}
	rc, err := a.sym.performance.Call(native.Int(iterations))
	if err := tsa.CheckCall(op, err); err != nil {
		return nil, err
	}
	if rc < 0 {
		return nil, tsa.Errorf(op, tsa.ErrNativeCallFailed, "status %d", rc)
	}
	buf := tsa.Allocate(reportSize)
	if err := tsa.CheckStatus(op)(a.sym.performanceReport.Call(native.Buf(buf), native.Int(len(buf)))); err != nil {
		return nil, err
	}
	report := string(buf)
	if i := strings.IndexByte(report, 0); i >= 0 {
		report = report[:i]
	}
	return ParseReport(report), nil
}

// ParseReport extracts "name: value ms" lines. Other lines are ignored.
func ParseReport(report string) map[string]float64 {
	timings := make(map[string]float64)
	sc := bufio.NewScanner(strings.NewReader(report))
	for sc.Scan() {
		name, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if !strings.HasSuffix(value, "ms") {
			continue
		}
		ms, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "ms")), 64)
		if err != nil {
			continue
		}
		timings[strings.TrimSpace(name)] = ms
	}
	return timings
}

func (a *Adapter) ResetPerformance() error {
	return tsa.CheckCall("reset_performance", a.sym.resetPerformance.Invoke())
}
