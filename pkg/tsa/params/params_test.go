package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, FamilyPairing, FamilyOf("a.param"))
	assert.Equal(t, FamilyPairing, FamilyOf("A.PARAM"))
	assert.Equal(t, FamilyCurve, FamilyOf("secp256k1.conf"))
	assert.Equal(t, FamilyCurve, FamilyOf("p256.cfg"))
	assert.Equal(t, FamilyUnknown, FamilyOf("README.md"))
	assert.Equal(t, FamilyUnknown, FamilyOf("param"))
}

func TestFamilyText(t *testing.T) {
	for _, f := range []Family{FamilyUnknown, FamilyPairing, FamilyCurve} {
		text, err := f.MarshalText()
		require.NoError(t, err)
		var got Family
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, f, got)
	}
	var f Family
	assert.Error(t, f.UnmarshalText([]byte("lattice")))
}

func TestCatalogList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.param"), "type a\n")
	writeFile(t, filepath.Join(dir, "pbc_params", "d224.param"), "type d\n")
	writeFile(t, filepath.Join(dir, "ecc_params", "secp256k1.conf"), "curve_name=secp256k1\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	entries, err := NewCatalog(dir).List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.param", entries[0].Name)
	assert.Equal(t, "d224.param", entries[1].Name)
	assert.Equal(t, "secp256k1.conf", entries[2].Name)
	assert.Equal(t, FamilyCurve, entries[2].Family)
	assert.Equal(t, int64(len("type a\n")), entries[0].Size)
}

func TestCatalogListMissingDir(t *testing.T) {
	entries, err := NewCatalog(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCatalogResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pbc_params", "a.param"), "type a\n")

	entry, err := NewCatalog(dir).Resolve("a.param")
	require.NoError(t, err)
	assert.Equal(t, FamilyPairing, entry.Family)
	assert.True(t, filepath.IsAbs(entry.Path))

	_, err = NewCatalog(dir).Resolve("missing.param")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = NewCatalog(dir).Resolve("readme.txt")
	assert.True(t, errors.Is(err, ErrUnknownFamily))

	for _, name := range []string{"../a.param", "pbc_params/a.param", "", ".."} {
		_, err = NewCatalog(dir).Resolve(name)
		assert.True(t, errors.Is(err, ErrEscapesDir), "name %q: %v", name, err)
	}
}

func TestSecurePath(t *testing.T) {
	base := t.TempDir()
	got, err := SecurePath(base, filepath.Join(base, "x", "..", "y.param"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "y.param"), got)

	_, err = SecurePath(base, filepath.Join(base, "..", "y.param"))
	assert.True(t, errors.Is(err, ErrEscapesDir))
}

func TestParseCurveConfig(t *testing.T) {
	cfg, err := ParseCurveConfig("# secp256k1 demo\nnid=NID_secp256k1\nbuffer_size=128\nhash_algorithm=sha3-256\n")
	require.NoError(t, err)
	assert.Equal(t, "secp256k1", cfg.CurveName)
	assert.Equal(t, btcec.PubKeyBytesLenCompressed, cfg.PointSize)
	assert.Equal(t, btcec.PrivKeyBytesLen, cfg.ScalarSize)
	assert.Equal(t, 128, cfg.BufferSize)
	assert.Equal(t, "sha3-256", cfg.HashAlgorithm)

	cfg, err = ParseCurveConfig("curve_name=secp384r1\npoint_size=97\n")
	require.NoError(t, err)
	assert.Equal(t, "NID_secp384r1", cfg.NID)
	assert.Equal(t, 97, cfg.PointSize)
	assert.Equal(t, 48, cfg.ScalarSize)

	cfg, err = ParseCurveConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurveConfig(), cfg)

	_, err = ParseCurveConfig("point_size=big\n")
	assert.Error(t, err)
}

func TestLoadCurveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k1.conf")
	writeFile(t, path, "curve_name=secp256k1\n")
	cfg, err := LoadCurveConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "NID_secp256k1", cfg.NID)

	_, err = LoadCurveConfig(filepath.Join(t.TempDir(), "none.conf"))
	assert.Error(t, err)
}
