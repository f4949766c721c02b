package zhao

import (
	"golang.org/x/exp/maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/internal/native/nativetest"
	"github.com/tsalab/stealthd/pkg/tsa"
)

func curveFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curve.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDescriptorOmitsSigning(t *testing.T) {
	d := Descriptor()
	require.NoError(t, d.Validate())
	assert.Equal(t, []string{"setup", "keygen", "performance"}, d.Capabilities.Names())
}

func TestTwoBufferKeygen(t *testing.T) {
	a, err := New(nativetest.Zhao("libzhao.so"), nil)
	require.NoError(t, err)
	require.NoError(t, a.Init(curveFile(t, "curve_name=secp256k1\n")))
	defer a.Close()

	km, err := a.GenerateKey(tsa.KeyRequest{})
	require.NoError(t, err)
	assert.Len(t, km.Public["pk"], 2*nativetest.PointSize)
	assert.Len(t, km.Private["sk"], 2*nativetest.ScalarSize)

	timings, err := a.Benchmark(2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keygen", "sign", "verify", "hash"}, maps.Keys(timings))
	for k, v := range timings {
		assert.Positive(t, v, k)
	}
}

func TestInitWithVoidCurveInfo(t *testing.T) {
	lib := nativetest.Zhao("libzhao.so")
	a, err := New(lib, nil)
	require.NoError(t, err)
	require.NoError(t, a.Init(curveFile(t, "curve_name=secp256k1\n")))
	defer a.Close()

	sizes, err := a.ElementSizes()
	require.NoError(t, err)
	assert.Equal(t, tsa.ElementSizes{G1: nativetest.PointSize, Zr: nativetest.ScalarSize}, sizes)
	assert.Equal(t, 1, lib.Calls("zhao_get_curve_info"))
}

func TestSizesFallBackToCurveFile(t *testing.T) {
	lib := nativetest.Zhao("libzhao.so").Define("zhao_get_curve_info", nativetest.Void(func([]native.Arg) {}))
	a, err := New(lib, nil)
	require.NoError(t, err)
	require.NoError(t, a.Init(curveFile(t, "curve_name=secp384r1\n")))
	defer a.Close()

	sizes, err := a.ElementSizes()
	require.NoError(t, err)
	assert.Equal(t, tsa.ElementSizes{G1: 49, Zr: 48}, sizes)
}

func TestCurveInfoFailureCleansUp(t *testing.T) {
	lib := nativetest.Zhao("libzhao.so")
	a, err := New(lib, nil)
	require.NoError(t, err)
	lib.Remove("zhao_get_curve_info")
	err = a.Init(curveFile(t, "curve_name=secp256k1\n"))
	assert.Equal(t, tsa.KindNativeCallFailed, tsa.KindOf(err))
	assert.False(t, a.Initialized())
	assert.Equal(t, 1, lib.Calls("zhao_cleanup"))
}
