package tsa_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/internal/native/nativetest"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/builtin"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/hdwsa"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/sitaiba"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/stealth"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/zhao"
)

type fixture struct {
	facade *tsa.Facade
	reg    *tsa.Registry
	loader *nativetest.Loader
	libs   map[string]*nativetest.Library
}

func libPath(id string) string { return filepath.Join("lib", "lib"+id+".so") }

func newFixture(t *testing.T, opts ...tsa.FacadeOption) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		filepath.Join("pbc_params", "a.param"):        "type a\n",
		filepath.Join("pbc_params", "d224.param"):     "type d\n",
		filepath.Join("ecc_params", "secp256k1.conf"): "curve_name=secp256k1\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	libs := map[string]*nativetest.Library{
		"stealth":    nativetest.Stealth(libPath("stealth")),
		"sitaiba":    nativetest.Sitaiba(libPath("sitaiba")),
		"hdwsa":      nativetest.Hdwsa(libPath("hdwsa")),
		"cryptonote": nativetest.CryptoNote(libPath("cryptonote")),
		"zhao":       nativetest.Zhao(libPath("zhao")),
	}
	loader := nativetest.NewLoader()
	for _, l := range libs {
		loader.Add(l)
	}
	reg := tsa.NewRegistry(
		tsa.WithLoader(loader),
		tsa.WithLibDir("lib"),
		tsa.WithCatalog(params.NewCatalog(dir)),
		tsa.WithLogger(logging.Discard()),
	)
	require.NoError(t, builtin.Register(reg))
	f := tsa.NewFacade(reg, opts...)
	t.Cleanup(func() { _ = f.Close(context.Background()) })
	return &fixture{facade: f, reg: reg, loader: loader, libs: libs}
}

func (fx *fixture) activate(t *testing.T, id, paramFile string) {
	t.Helper()
	ctx := context.Background()
	_, err := fx.facade.ActivateScheme(ctx, id)
	require.NoError(t, err)
	if paramFile != "" {
		_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: paramFile})
		require.NoError(t, err)
	}
}

func ptr(i int) *int { return &i }

func requireKind(t *testing.T, want tsa.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, tsa.KindOf(err), err.Error())
}

func TestListSchemes(t *testing.T) {
	fx := newFixture(t)
	schemes := fx.facade.ListSchemes(context.Background())
	require.Len(t, schemes, 5)
	assert.Equal(t, stealth.ID, schemes[0].ID)
	assert.Len(t, schemes[0].Capabilities, 9)
	assert.Equal(t, []string{"setup", "keygen", "performance"}, schemes[4].Capabilities)
	for _, s := range schemes {
		assert.False(t, s.Active)
		assert.Equal(t, tsa.StateRegistered, s.State)
	}
}

func TestOperationsNeedActiveScheme(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.facade.GenerateKey(ctx)
	requireKind(t, tsa.KindNoActiveScheme, err)
	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{})
	requireKind(t, tsa.KindNoActiveScheme, err)
	_, err = fx.facade.Keys(ctx)
	requireKind(t, tsa.KindNoActiveScheme, err)
	requireKind(t, tsa.KindNoActiveScheme, fx.facade.ResetSession(ctx, tsa.ResetCurrent))
}

func TestActivateScheme(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.facade.ActivateScheme(ctx, "nope")
	requireKind(t, tsa.KindUnknownScheme, err)

	st, err := fx.facade.ActivateScheme(ctx, stealth.ID)
	require.NoError(t, err)
	assert.Equal(t, tsa.StateActiveUninitialized, st.State)
	assert.Equal(t, stealth.ID, fx.reg.ActiveID())

	_, err = fx.facade.ActivateScheme(ctx, stealth.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{libPath("stealth")}, fx.loader.Opened())

	_, err = fx.facade.ActivateScheme(ctx, sitaiba.ID)
	require.NoError(t, err)
	assert.True(t, fx.libs["stealth"].Closed())
	assert.Equal(t, tsa.StateRegistered, fx.reg.State(stealth.ID))
}

func TestActivateLoadFailureKeepsPrevious(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")

	fx.libs["hdwsa"].Remove("hdwsa_sign_simple")
	_, err := fx.facade.ActivateScheme(ctx, hdwsa.ID)
	requireKind(t, tsa.KindLibraryLoadFailed, err)
	assert.Contains(t, err.Error(), "hdwsa_sign_simple")

	assert.Equal(t, stealth.ID, fx.reg.ActiveID())
	assert.Equal(t, tsa.StateActiveInitialized, fx.reg.State(stealth.ID))
	_, err = fx.facade.GenerateKey(ctx)
	require.NoError(t, err)
}

func TestActivateMissingLibrary(t *testing.T) {
	fx := newFixture(t)
	reg := tsa.NewRegistry(tsa.WithLoader(fx.loader), tsa.WithLogger(logging.Discard()))
	require.NoError(t, reg.Register(stealth.Descriptor()))
	requireKind(t, tsa.KindLibraryLoadFailed, reg.Activate(context.Background(), stealth.ID))
	assert.Empty(t, reg.ActiveID())
}

func TestSetupValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "")

	_, err := fx.facade.Setup(ctx, &tsa.SetupParams{})
	requireKind(t, tsa.KindInvalidArgument, err)

	calls := fx.libs["stealth"].Calls("stealth_init")
	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "secp256k1.conf"})
	requireKind(t, tsa.KindUnsupportedParamFile, err)
	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "notes.txt"})
	requireKind(t, tsa.KindUnsupportedParamFile, err)
	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "missing.param"})
	requireKind(t, tsa.KindInvalidArgument, err)
	assert.Equal(t, calls, fx.libs["stealth"].Calls("stealth_init"))

	_, err = fx.facade.GenerateKey(ctx)
	requireKind(t, tsa.KindNotInitialized, err)
}

func TestSetupReplacesSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")

	_, err := fx.facade.GenerateKey(ctx)
	require.NoError(t, err)

	res, err := fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "d224.param"})
	require.NoError(t, err)
	assert.Equal(t, "d224.param", res.ParamFile)
	assert.Equal(t, nativetest.PointSize, res.ElementSizes.G1)
	assert.Equal(t, nativetest.ScalarSize, res.ElementSizes.Zr)
	assert.Contains(t, res.TracerPublic, "TK")

	keys, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFailedSetupKeepsSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	lib := fx.libs["stealth"]
	lib.Wrap("stealth_init", func(next nativetest.Func) nativetest.Func {
		return func(args []native.Arg) int {
			if filepath.Base(args[0].Text()) == "d224.param" {
				return -1
			}
			return next(args)
		}
	})

	key, err := fx.facade.GenerateKey(ctx)
	require.NoError(t, err)

	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "d224.param"})
	requireKind(t, tsa.KindInitFailed, err)

	keys, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.Public, keys[0].Public)
	assert.Equal(t, tsa.StateActiveInitialized, fx.reg.State(stealth.ID))

	assert.Equal(t, "a.param", keys[0].ParamFile)
	_, err = fx.facade.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)
}

func TestFailedTracerKeygenKeepsSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")

	_, err := fx.facade.GenerateKey(ctx)
	require.NoError(t, err)
	before, err := fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "a.param"})
	require.NoError(t, err)
	_, err = fx.facade.GenerateKey(ctx)
	require.NoError(t, err)

	fx.libs["stealth"].Remove("stealth_tracekeygen_simple")
	_, err = fx.facade.Setup(ctx, &tsa.SetupParams{ParamFile: "d224.param"})
	requireKind(t, tsa.KindNativeCallFailed, err)

	keys, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, tsa.StateActiveInitialized, fx.reg.State(stealth.ID))
	s, ok := fx.reg.Session(stealth.ID)
	require.True(t, ok)
	assert.Equal(t, "a.param", s.ParamFile())
	assert.Equal(t, before.TracerPublic, s.TracerKey().Public)
}

func TestNilParamsRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	_, err := fx.facade.GenerateKey(ctx)
	require.NoError(t, err)
	calls := fx.libs["stealth"].Calls("stealth_addr_gen_simple")

	_, err = fx.facade.GenerateAddress(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.RecognizeAddress(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.GenerateDerivedKey(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.SignMessage(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.VerifySignature(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.TraceIdentity(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.RunBenchmark(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = fx.facade.Setup(ctx, nil)
	requireKind(t, tsa.KindInvalidArgument, err)

	assert.Equal(t, calls, fx.libs["stealth"].Calls("stealth_addr_gen_simple"))
	keys, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestStealthWorkflow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade

	k0, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	k1, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key_1", k1.ID)
	assert.Contains(t, k0.Public, "A")
	assert.Contains(t, k0.Private, "b")

	addr, err := f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, addr.OwnerKeyIndex)
	assert.ElementsMatch(t, []string{"R1", "R2", "C"}, keysOf(addr.Aux))

	for _, fast := range []bool{true, false} {
		rec, err := f.RecognizeAddress(ctx, &tsa.RecognizeParams{AddressIndex: 0, KeyIndex: 1, Fast: fast})
		require.NoError(t, err)
		assert.True(t, rec.Recognized)
		assert.True(t, rec.IsOwner)

		rec, err = f.RecognizeAddress(ctx, &tsa.RecognizeParams{AddressIndex: 0, KeyIndex: 0, Fast: fast})
		require.NoError(t, err)
		assert.False(t, rec.Recognized)
		assert.False(t, rec.IsOwner)
	}

	dsk, err := f.GenerateDerivedKey(ctx, &tsa.DerivedKeyParams{AddressIndex: 0, KeyIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, tsa.DSKDedicated, dsk.Method)
	assert.NotEmpty(t, dsk.DSK)

	signed, err := f.SignMessage(ctx, &tsa.SignParams{Message: "hello", DSKIndex: ptr(0)})
	require.NoError(t, err)
	assert.Nil(t, signed.CorrectMatch)
	assert.Equal(t, tsa.SignatureSource{DSKIndex: 0, AddressIndex: 0, KeyIndex: -1}, signed.Signature.Source)

	v, err := f.VerifySignature(ctx, &tsa.VerifyParams{Message: "hello", Signature: signed.Signature.Parts, AddressIndex: 0})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	v, err = f.VerifySignature(ctx, &tsa.VerifyParams{Message: "tampered", Signature: signed.Signature.Parts, AddressIndex: 0})
	require.NoError(t, err)
	assert.False(t, v.Valid)

	signed, err = f.SignMessage(ctx, &tsa.SignParams{Message: "by key", AddressIndex: ptr(0), KeyIndex: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, "sig_1", signed.Signature.ID)
	v, err = f.VerifySignature(ctx, &tsa.VerifyParams{Message: "by key", Signature: signed.Signature.Parts})
	require.NoError(t, err)
	assert.True(t, v.Valid)

	tr, err := f.TraceIdentity(ctx, &tsa.TraceParams{AddressIndex: 0})
	require.NoError(t, err)
	require.NotNil(t, tr.MatchedKeyIndex)
	assert.Equal(t, 1, *tr.MatchedKeyIndex)
	assert.Equal(t, tsa.MatchPerfect, tr.MatchType)
	assert.True(t, tr.Authoritative)
	assert.True(t, tr.CorrectTrace)
	assert.Equal(t, "B", tr.Recovered.Component)
	assert.Equal(t, k1.Public["B"], tr.Recovered.Hex)

	st := f.GetStatus(ctx)
	assert.Equal(t, stealth.ID, st.Active)
	assert.Equal(t, tsa.Counts{Keys: 2, Addresses: 1, DerivedKeys: 1, Signatures: 2}, st.Schemes[0].Counts)
	assert.Equal(t, tsa.DSKDedicated, st.Schemes[0].DSKMethod)
	assert.True(t, st.Schemes[0].TracerKeySet)
	require.NotNil(t, st.Schemes[0].ElementSizes)
}

func keysOf(p tsa.Parts) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

func TestSignWithDSKAgainstOtherAddress(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade

	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
		require.NoError(t, err)
	}
	_, err = f.GenerateDerivedKey(ctx, &tsa.DerivedKeyParams{AddressIndex: 0, KeyIndex: 0})
	require.NoError(t, err)

	res, err := f.SignMessage(ctx, &tsa.SignParams{Message: "m", DSKIndex: ptr(0), AddressIndex: ptr(1)})
	require.NoError(t, err)
	require.NotNil(t, res.CorrectMatch)
	assert.False(t, *res.CorrectMatch)

	v, err := f.VerifySignature(ctx, &tsa.VerifyParams{Message: "m", Signature: res.Signature.Parts, AddressIndex: 1})
	require.NoError(t, err)
	assert.False(t, v.Valid)

	res, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", DSKIndex: ptr(0), AddressIndex: ptr(0)})
	require.NoError(t, err)
	assert.True(t, *res.CorrectMatch)
}

func TestSignRejectsBadRequests(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade
	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)

	_, err = f.SignMessage(ctx, &tsa.SignParams{AddressIndex: ptr(0), KeyIndex: ptr(0)})
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", AddressIndex: ptr(0)})
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", DSKIndex: ptr(0), KeyIndex: ptr(0)})
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", DSKIndex: ptr(0)})
	requireKind(t, tsa.KindIndexOutOfRange, err)
	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", AddressIndex: ptr(0), KeyIndex: ptr(7)})
	requireKind(t, tsa.KindIndexOutOfRange, err)

	sigs, err := f.Signatures(ctx)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade
	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)

	_, err = f.VerifySignature(ctx, &tsa.VerifyParams{Message: "m", AddressIndex: 0})
	requireKind(t, tsa.KindInvalidArgument, err)
	_, err = f.VerifySignature(ctx, &tsa.VerifyParams{Message: "m", Signature: tsa.Parts{"h": "zz", "Q_sigma": "02"}})
	requireKind(t, tsa.KindMalformedHex, err)
	_, err = f.VerifySignature(ctx, &tsa.VerifyParams{Message: "m", Signature: tsa.Parts{"h": "01"}, AddressIndex: 3})
	requireKind(t, tsa.KindIndexOutOfRange, err)
}

func TestIndexErrorsLeaveSessionUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade

	_, err := f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	requireKind(t, tsa.KindIndexOutOfRange, err)
	assert.Contains(t, err.Error(), "no entries")

	_, err = f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: -1})
	requireKind(t, tsa.KindIndexOutOfRange, err)
	_, err = f.RecognizeAddress(ctx, &tsa.RecognizeParams{AddressIndex: 0, KeyIndex: 0})
	requireKind(t, tsa.KindIndexOutOfRange, err)
	_, err = f.TraceIdentity(ctx, &tsa.TraceParams{AddressIndex: 2})
	requireKind(t, tsa.KindIndexOutOfRange, err)

	st := f.GetStatus(ctx)
	assert.Equal(t, tsa.Counts{Keys: 1}, st.Schemes[0].Counts)
}

func TestCapabilityGateSkipsAdapter(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, zhao.ID, "secp256k1.conf")
	f := fx.facade

	key, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	assert.Contains(t, key.Public, "pk")
	assert.Contains(t, key.Private, "sk")

	before := fx.libs["zhao"].TotalCalls()
	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", AddressIndex: ptr(0), KeyIndex: ptr(0)})
	requireKind(t, tsa.KindCapabilityNotSupported, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	requireKind(t, tsa.KindCapabilityNotSupported, err)
	_, err = f.TraceIdentity(ctx, &tsa.TraceParams{AddressIndex: 0})
	requireKind(t, tsa.KindCapabilityNotSupported, err)
	assert.Equal(t, before, fx.libs["zhao"].TotalCalls())
	assert.Zero(t, fx.libs["zhao"].Calls("zhao_sign_simple"))
}

func TestCapabilityCheckedBeforeSetup(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t, sitaiba.ID, "")
	_, err := fx.facade.SignMessage(context.Background(), &tsa.SignParams{Message: "m", DSKIndex: ptr(0)})
	requireKind(t, tsa.KindCapabilityNotSupported, err)
}

func TestStealthWithoutDedicatedDSK(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.libs["stealth"].Remove("stealth_dsk_gen_simple", "stealth_sign_with_dsk_simple")
	fx.activate(t, stealth.ID, "a.param")
	f := fx.facade

	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)
	dsk, err := f.GenerateDerivedKey(ctx, &tsa.DerivedKeyParams{AddressIndex: 0, KeyIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, tsa.DSKFallback, dsk.Method)

	_, err = f.SignMessage(ctx, &tsa.SignParams{Message: "m", DSKIndex: ptr(0)})
	requireKind(t, tsa.KindUnsupportedOperation, err)

	st := f.GetStatus(ctx)
	assert.Equal(t, tsa.DSKFallback, st.Schemes[0].DSKMethod)
}

func TestRecognizeModeNotBound(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, hdwsa.ID, "a.param")
	f := fx.facade
	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)

	_, err = f.RecognizeAddress(ctx, &tsa.RecognizeParams{Fast: true})
	requireKind(t, tsa.KindUnsupportedOperation, err)

	rec, err := f.RecognizeAddress(ctx, &tsa.RecognizeParams{})
	require.NoError(t, err)
	assert.True(t, rec.Recognized)
	assert.Equal(t, tsa.RecognizeFull, rec.Mode)
}

func TestSessionsSurviveSchemeSwitch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.facade
	fx.activate(t, stealth.ID, "a.param")
	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)

	fx.activate(t, sitaiba.ID, "a.param")
	_, err = f.GenerateKey(ctx)
	require.NoError(t, err)
	_, err = f.GenerateKey(ctx)
	require.NoError(t, err)

	st, err := f.ActivateScheme(ctx, stealth.ID)
	require.NoError(t, err)
	assert.Equal(t, tsa.StateActiveInitialized, st.State)
	assert.Equal(t, 1, st.Counts.Keys)
	assert.Equal(t, "a.param", st.ParamFile)

	addr, err := f.GenerateAddress(ctx, &tsa.AddressParams{KeyIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, stealth.ID, addr.Scheme)

	status := f.GetStatus(ctx)
	assert.Equal(t, 2, status.Schemes[1].Counts.Keys)
	assert.Equal(t, tsa.StateRegistered, status.Schemes[1].State)
	assert.Nil(t, status.Schemes[1].ElementSizes)
}

func TestResetSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.facade
	fx.activate(t, sitaiba.ID, "a.param")
	_, err := f.GenerateKey(ctx)
	require.NoError(t, err)
	fx.activate(t, stealth.ID, "a.param")
	_, err = f.GenerateKey(ctx)
	require.NoError(t, err)

	requireKind(t, tsa.KindInvalidArgument, f.ResetSession(ctx, "everything"))

	require.NoError(t, f.ResetSession(ctx, tsa.ResetCurrent))
	assert.Equal(t, tsa.StateActiveUninitialized, fx.reg.State(stealth.ID))
	_, err = f.GenerateKey(ctx)
	requireKind(t, tsa.KindNotInitialized, err)
	s, _ := fx.reg.Session(sitaiba.ID)
	assert.Equal(t, 1, s.Counts().Keys)

	require.NoError(t, f.ResetSession(ctx, tsa.ResetAll))
	assert.Equal(t, 0, s.Counts().Keys)
	assert.False(t, s.Initialized())
}

func TestRunBenchmark(t *testing.T) {
	fx := newFixture(t, tsa.WithMaxBenchmarkIterations(50))
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")

	_, err := fx.facade.RunBenchmark(ctx, &tsa.BenchmarkParams{Iterations: 0})
	requireKind(t, tsa.KindInvalidArgument, err)

	res, err := fx.facade.RunBenchmark(ctx, &tsa.BenchmarkParams{Iterations: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Iterations)
	assert.Equal(t, 500, res.Requested)
	assert.Len(t, res.Timings, 7)
	assert.Equal(t, 0.124, res.Timings["addr_gen"])
	assert.Equal(t, 1, fx.libs["stealth"].Calls("stealth_reset_performance"))
}

func TestHdwsaBenchmarkParsesReport(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t, hdwsa.ID, "a.param")
	res, err := fx.facade.RunBenchmark(context.Background(), &tsa.BenchmarkParams{Iterations: 10})
	require.NoError(t, err)
	assert.Len(t, res.Timings, 7)
	assert.Equal(t, 0.25, res.Timings["root_keygen"])
	assert.Equal(t, 1.75, res.Timings["verify"])
}

func TestListParamFiles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	files, err := fx.facade.ListParamFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files.Files, 3)
	assert.Empty(t, files.Current)

	fx.activate(t, stealth.ID, "a.param")
	files, err = fx.facade.ListParamFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, params.FamilyPairing, files.Family)
	assert.Equal(t, "a.param", files.Current)
}

func TestListingsAreSnapshots(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.activate(t, stealth.ID, "a.param")

	_, err := fx.facade.GenerateKey(ctx)
	require.NoError(t, err)
	keys, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	keys[0].Public["A"] = "00"

	again, err := fx.facade.Keys(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "00", again[0].Public["A"])
}
