package tsa

import (
	"fmt"
	"time"
)

// KeyRecord is a generated key pair.
type KeyRecord struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Public    Parts     `json:"public"`
	Private   Parts     `json:"private"`
	Scheme    string    `json:"scheme"`
	ParamFile string    `json:"param_file"`
	CreatedAt time.Time `json:"created_at"`
}

// Material returns the parts as adapter input.
func (k KeyRecord) Material() KeyMaterial {
	return KeyMaterial{Public: k.Public, Private: k.Private}
}

// AddressRecord is a generated address.
type AddressRecord struct {
	Index         int       `json:"index"`
	ID            string    `json:"id"`
	Address       string    `json:"address"`
	Aux           Parts     `json:"aux"`
	OwnerKeyIndex int       `json:"owner_key_index"`
	Scheme        string    `json:"scheme"`
	CreatedAt     time.Time `json:"created_at"`
}

// Material returns the address as adapter input.
func (a AddressRecord) Material() AddressMaterial {
	return AddressMaterial{Address: a.Address, Aux: a.Aux}
}

// DerivedKeyRecord is a one-time signing key for an address.
type DerivedKeyRecord struct {
	Index        int       `json:"index"`
	ID           string    `json:"id"`
	DSK          string    `json:"dsk"`
	AddressIndex int       `json:"address_index"`
	KeyIndex     int       `json:"key_index"`
	Method       DSKMethod `json:"method"`
	Scheme       string    `json:"scheme"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignatureSource records which material produced a signature. Unused
// indices are -1.
type SignatureSource struct {
	DSKIndex     int `json:"dsk_index"`
	AddressIndex int `json:"address_index"`
	KeyIndex     int `json:"key_index"`
}

// SignatureRecord is a signed message.
type SignatureRecord struct {
	Index     int             `json:"index"`
	ID        string          `json:"id"`
	Message   string          `json:"message"`
	Parts     Parts           `json:"signature"`
	Source    SignatureSource `json:"source"`
	Scheme    string          `json:"scheme"`
	CreatedAt time.Time       `json:"created_at"`
}

// TracerKeyRecord is the key pair generated at setup. Hierarchical schemes
// keep their root wallet here.
type TracerKeyRecord struct {
	Public    Parts  `json:"public"`
	Private   Parts  `json:"private"`
	ParamFile string `json:"param_file"`
}

// Material returns the tracer key as adapter input; the zero record gives
// empty material.
func (t *TracerKeyRecord) Material() KeyMaterial {
	if t == nil {
		return KeyMaterial{}
	}
	return KeyMaterial{Public: t.Public, Private: t.Private}
}

// Counts summarizes a session.
type Counts struct {
	Keys        int `json:"keys"`
	Addresses   int `json:"addresses"`
	DerivedKeys int `json:"derived_keys"`
	Signatures  int `json:"signatures"`
}

// SessionState holds one scheme's artifacts. Records are append-only until
// Reset; indices are positions and never reused within a session.
type SessionState struct {
	scheme      string
	initialized bool
	paramFile   string
	tracer      *TracerKeyRecord
	keys        []KeyRecord
	addresses   []AddressRecord
	derivedKeys []DerivedKeyRecord
	signatures  []SignatureRecord
}

func newSessionState(scheme string) *SessionState {
	return &SessionState{scheme: scheme}
}

func (s *SessionState) Scheme() string                  { return s.scheme }
func (s *SessionState) Initialized() bool               { return s.initialized }
func (s *SessionState) ParamFile() string               { return s.paramFile }
func (s *SessionState) TracerKey() *TracerKeyRecord     { return s.tracer }
func (s *SessionState) Keys() []KeyRecord               { return cloneSlice(s.keys) }
func (s *SessionState) Addresses() []AddressRecord      { return cloneSlice(s.addresses) }
func (s *SessionState) DerivedKeys() []DerivedKeyRecord { return cloneSlice(s.derivedKeys) }
func (s *SessionState) Signatures() []SignatureRecord   { return cloneSlice(s.signatures) }

func (s *SessionState) Counts() Counts {
	return Counts{
		Keys:        len(s.keys),
		Addresses:   len(s.addresses),
		DerivedKeys: len(s.derivedKeys),
		Signatures:  len(s.signatures),
	}
}

// EnsureInitialized fails with NotInitialized until setup has completed.
func (s *SessionState) EnsureInitialized(op string) error {
	if !s.initialized {
		return &Error{Op: op, Scheme: s.scheme, Err: fmt.Errorf("%w: run setup first", ErrNotInitialized)}
	}
	return nil
}

// ValidateIndex fails with IndexOutOfRange unless 0 <= i < n.
func ValidateIndex(op, name string, i, n int) error {
	if i < 0 || i >= n {
		if n == 0 {
			return Errorf(op, ErrIndexOutOfRange, "invalid %s: %d (no entries)", name, i)
		}
		return Errorf(op, ErrIndexOutOfRange, "invalid %s: %d (valid range 0-%d)", name, i, n-1)
	}
	return nil
}

func (s *SessionState) Key(op string, i int) (KeyRecord, error) {
	if err := ValidateIndex(op, "key_index", i, len(s.keys)); err != nil {
		return KeyRecord{}, err
	}
	return s.keys[i], nil
}

func (s *SessionState) Address(op string, i int) (AddressRecord, error) {
	if err := ValidateIndex(op, "address_index", i, len(s.addresses)); err != nil {
		return AddressRecord{}, err
	}
	return s.addresses[i], nil
}

func (s *SessionState) DerivedKey(op string, i int) (DerivedKeyRecord, error) {
	if err := ValidateIndex(op, "dsk_index", i, len(s.derivedKeys)); err != nil {
		return DerivedKeyRecord{}, err
	}
	return s.derivedKeys[i], nil
}

func (s *SessionState) markInitialized(paramFile string, tracer *TracerKeyRecord) {
	s.initialized = true
	s.paramFile = paramFile
	s.tracer = tracer
}

// Reset clears every collection and the tracer key. It is idempotent.
func (s *SessionState) Reset() {
	for i := range s.keys {
		zeroParts(s.keys[i].Private)
	}
	for i := range s.derivedKeys {
		s.derivedKeys[i].DSK = ""
	}
	if s.tracer != nil {
		zeroParts(s.tracer.Private)
	}
	*s = SessionState{scheme: s.scheme}
}

func (s *SessionState) appendKey(k KeyRecord) KeyRecord {
	k.Index = len(s.keys)
	k.ID = fmt.Sprintf("key_%d", k.Index)
	k.Scheme = s.scheme
	k.ParamFile = s.paramFile
	s.keys = append(s.keys, k)
	return k
}

func (s *SessionState) appendAddress(a AddressRecord) AddressRecord {
	a.Index = len(s.addresses)
	a.ID = fmt.Sprintf("addr_%d", a.Index)
	a.Scheme = s.scheme
	s.addresses = append(s.addresses, a)
	return a
}

func (s *SessionState) appendDerivedKey(d DerivedKeyRecord) DerivedKeyRecord {
	d.Index = len(s.derivedKeys)
	d.ID = fmt.Sprintf("dsk_%d", d.Index)
	d.Scheme = s.scheme
	s.derivedKeys = append(s.derivedKeys, d)
	return d
}

func (s *SessionState) appendSignature(sig SignatureRecord) SignatureRecord {
	sig.Index = len(s.signatures)
	sig.ID = fmt.Sprintf("sig_%d", sig.Index)
	sig.Scheme = s.scheme
	s.signatures = append(s.signatures, sig)
	return sig
}

// SessionStore owns one SessionState per registered scheme.
type SessionStore struct {
	states map[string]*SessionState
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{states: make(map[string]*SessionState)}
}

// Add creates an empty session for scheme if it has none.
func (st *SessionStore) Add(scheme string) *SessionState {
	if s, ok := st.states[scheme]; ok {
		return s
	}
	s := newSessionState(scheme)
	st.states[scheme] = s
	return s
}

// Get returns the session for scheme.
func (st *SessionStore) Get(scheme string) (*SessionState, bool) {
	s, ok := st.states[scheme]
	return s, ok
}

// ResetAll resets every session.
func (st *SessionStore) ResetAll() {
	for _, s := range st.states {
		s.Reset()
	}
}

func zeroParts(p Parts) {
	for k := range p {
		p[k] = ""
	}
}

func cloneSlice[T interface{ clone() T }](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = v.clone()
	}
	return out
}

func (k KeyRecord) clone() KeyRecord {
	k.Public = k.Public.Clone()
	k.Private = k.Private.Clone()
	return k
}

func (a AddressRecord) clone() AddressRecord {
	a.Aux = a.Aux.Clone()
	return a
}

func (d DerivedKeyRecord) clone() DerivedKeyRecord { return d }

func (s SignatureRecord) clone() SignatureRecord {
	s.Parts = s.Parts.Clone()
	return s
}
