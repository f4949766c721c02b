package tsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIndex(t *testing.T) {
	require.NoError(t, ValidateIndex("op", "key_index", 0, 1))

	err := ValidateIndex("op", "key_index", 3, 2)
	assert.Equal(t, KindIndexOutOfRange, KindOf(err))
	assert.Contains(t, err.Error(), "invalid key_index: 3 (valid range 0-1)")

	err = ValidateIndex("op", "address_index", 0, 0)
	assert.Contains(t, err.Error(), "(no entries)")

	assert.Error(t, ValidateIndex("op", "dsk_index", -1, 5))
}

func TestSessionAppendAssignsIndices(t *testing.T) {
	s := newSessionState("stealth")
	require.Equal(t, KindNotInitialized, KindOf(s.EnsureInitialized("generate_key")))

	s.markInitialized("a.param", &TracerKeyRecord{Public: Parts{"TK": "02"}, Private: Parts{"k": "01"}})
	require.NoError(t, s.EnsureInitialized("generate_key"))

	k0 := s.appendKey(KeyRecord{Public: Parts{"A": "02"}, Private: Parts{"a": "01"}})
	k1 := s.appendKey(KeyRecord{Public: Parts{"A": "03"}, Private: Parts{"a": "02"}})
	assert.Equal(t, 0, k0.Index)
	assert.Equal(t, "key_1", k1.ID)
	assert.Equal(t, "stealth", k1.Scheme)
	assert.Equal(t, "a.param", k1.ParamFile)

	a := s.appendAddress(AddressRecord{Address: "aa", OwnerKeyIndex: 1})
	assert.Equal(t, "addr_0", a.ID)
	d := s.appendDerivedKey(DerivedKeyRecord{DSK: "bb", Method: DSKDedicated})
	assert.Equal(t, "dsk_0", d.ID)
	sig := s.appendSignature(SignatureRecord{Message: "hi", Parts: Parts{"h": "01"}})
	assert.Equal(t, "sig_0", sig.ID)

	assert.Equal(t, Counts{Keys: 2, Addresses: 1, DerivedKeys: 1, Signatures: 1}, s.Counts())
}

func TestSessionListingsAreCopies(t *testing.T) {
	s := newSessionState("stealth")
	s.markInitialized("a.param", nil)
	s.appendKey(KeyRecord{Public: Parts{"A": "02"}, Private: Parts{"a": "01"}})

	keys := s.Keys()
	keys[0].Private["a"] = "ff"
	keys[0].Public["A"] = "ff"

	k, err := s.Key("op", 0)
	require.NoError(t, err)
	assert.Equal(t, "01", k.Private["a"])
	assert.Equal(t, "02", k.Public["A"])
}

func TestSessionReset(t *testing.T) {
	s := newSessionState("sitaiba")
	tracer := &TracerKeyRecord{Private: Parts{"a_m": "05"}}
	s.markInitialized("a.param", tracer)
	s.appendKey(KeyRecord{Private: Parts{"a_r": "01"}})
	s.appendDerivedKey(DerivedKeyRecord{DSK: "0a"})

	s.Reset()
	assert.False(t, s.Initialized())
	assert.Empty(t, s.ParamFile())
	assert.Nil(t, s.TracerKey())
	assert.Equal(t, Counts{}, s.Counts())
	assert.Equal(t, "sitaiba", s.Scheme())
	assert.Equal(t, "", tracer.Private["a_m"])

	s.Reset()
	assert.Equal(t, Counts{}, s.Counts())
}

func TestSessionStore(t *testing.T) {
	st := NewSessionStore()
	a := st.Add("stealth")
	assert.Same(t, a, st.Add("stealth"))
	st.Add("zhao")

	a.markInitialized("a.param", nil)
	a.appendKey(KeyRecord{})
	st.ResetAll()

	got, ok := st.Get("stealth")
	require.True(t, ok)
	assert.False(t, got.Initialized())
	_, ok = st.Get("missing")
	assert.False(t, ok)
}

func TestTracerMaterialNilSafe(t *testing.T) {
	var tr *TracerKeyRecord
	assert.Equal(t, KeyMaterial{}, tr.Material())
}
