package tsa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderAndErrors(t *testing.T) {
	in, err := Decode("op", From(Parts{"A": "01", "B": "02"}, "B", "A"), From(Parts{"a": "03"}, "a"))
	require.NoError(t, err)
	args := in.Args()
	require.Len(t, args, 3)
	assert.Equal(t, []byte{0x02}, args[0].Bytes())
	assert.Equal(t, []byte{0x01}, args[1].Bytes())
	in.Release()
	assert.Equal(t, []byte{0x00}, args[0].Bytes())

	_, err = Decode("op", From(Parts{"A": "01"}, "A", "B"))
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = Decode("op", From(Parts{"A": "0g"}, "A"))
	assert.Equal(t, KindMalformedHex, KindOf(err))
}

func TestOutputsCollect(t *testing.T) {
	sizes := ElementSizes{G1: 3, Zr: 2}
	out := NewOutputs(sizes, Output{Name: "A", Group: GroupG1}, Output{Name: "a", Group: GroupZr})
	assert.Equal(t, MinBufferSize, out.Size())
	args := out.WithSize()
	require.Len(t, args, 3)
	assert.Equal(t, MinBufferSize, args[2].Value())

	copy(out.Bytes("A"), []byte{1, 2, 3, 4})
	copy(out.Bytes("a"), []byte{9, 8, 7})
	parts, err := out.Collect("keygen")
	require.NoError(t, err)
	assert.Equal(t, Parts{"A": "010203", "a": "0908"}, parts)
}

func TestOutputsCollectEmpty(t *testing.T) {
	out := NewOutputs(ElementSizes{G1: 3}, Output{Name: "A", Group: GroupG1})
	_, err := out.Collect("keygen")
	assert.Equal(t, KindEmptyOutput, KindOf(err))
}

func TestSplit(t *testing.T) {
	km := Split(Parts{"A": "1", "B": "2", "a": "3", "b": "4"}, "A", "B")
	assert.Equal(t, Parts{"A": "1", "B": "2"}, km.Public)
	assert.Equal(t, Parts{"a": "3", "b": "4"}, km.Private)
}

func TestPartsValidate(t *testing.T) {
	require.NoError(t, Parts{"h": "0a", "Q_sigma": "02ff"}.Validate("verify"))
	assert.Equal(t, KindMalformedHex, KindOf(Parts{"h": "xyz"}.Validate("verify")))
	assert.Equal(t, KindMalformedHex, KindOf(Parts{"h": ""}.Validate("verify")))
}

func callResult(rc int, err error) (int, error) { return rc, err }

func TestCheckBool(t *testing.T) {
	ok, err := CheckBool("op")(callResult(1, nil))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CheckBool("op")(callResult(0, nil))
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = CheckBool("op")(callResult(-1, nil))
	assert.Equal(t, KindNativeCallFailed, KindOf(err))
	_, err = CheckBool("op")(callResult(1, errors.New("symbol closed")))
	assert.Equal(t, KindNativeCallFailed, KindOf(err))
}

func TestCheckStatus(t *testing.T) {
	require.NoError(t, CheckStatus("sign")(callResult(0, nil)))

	err := CheckStatus("sign")(callResult(3, nil))
	assert.Equal(t, KindNativeCallFailed, KindOf(err))
	assert.Contains(t, err.Error(), "status 3")

	err = CheckStatus("sign")(callResult(0, errors.New("symbol closed")))
	assert.Equal(t, KindNativeCallFailed, KindOf(err))
}

func TestLifecycle(t *testing.T) {
	l := Lifecycle{Scheme: "stealth"}
	_, err := l.Sizes("keygen")
	assert.Equal(t, KindNotInitialized, KindOf(err))

	require.NoError(t, l.BeginInit())
	l.Ready(ElementSizes{G1: 128, Zr: 20})
	assert.Equal(t, KindInitFailed, KindOf(l.BeginInit()))
	sizes, err := l.Sizes("keygen")
	require.NoError(t, err)
	assert.Equal(t, 128, sizes.G1)

	l.Reset()
	assert.False(t, l.Initialized())
}
