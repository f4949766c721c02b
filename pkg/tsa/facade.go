package tsa

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

// DefaultMaxBenchmarkIterations caps RunBenchmark unless configured otherwise.
const DefaultMaxBenchmarkIterations = 1000

// TracePrefixLen is the number of leading hex characters compared when a
// traced identity has no exact match among the session keys.
const TracePrefixLen = 10

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithMaxBenchmarkIterations caps the iteration count of RunBenchmark.
func WithMaxBenchmarkIterations(n int) FacadeOption {
	return func(f *Facade) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) FacadeOption {
	return func(f *Facade) { f.now = now }
}

// Facade is the request/response surface over a Registry. Every call holds
// one mutex for its whole duration, so records are appended by a single
// writer and adapters never see concurrent calls.
//
// Every operation checks, in order: an active scheme, the declared
// capability, a completed setup, the indices it was given and finally the
// adapter binding. Nothing is mutated until all checks pass.
type Facade struct {
	mu            sync.Mutex
	reg           *Registry
	log           logging.Logger
	maxIterations int
	now           func() time.Time
}

// NewFacade wraps reg. The facade takes ownership of reg.
func NewFacade(reg *Registry, opts ...FacadeOption) *Facade {
	f := &Facade{
		reg:           reg,
		log:           reg.log,
		maxIterations: DefaultMaxBenchmarkIterations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ListSchemes returns every registered scheme.
func (f *Facade) ListSchemes(_ context.Context) []SchemeInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg.Schemes()
}

// ActivateScheme makes id the active scheme and returns its status.
func (f *Facade) ActivateScheme(ctx context.Context, id string) (*SchemeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reg.Activate(ctx, id); err != nil {
		return nil, err
	}
	return f.activeStatus(), nil
}

func (f *Facade) activeStatus() *SchemeStatus {
	for _, st := range f.reg.Status() {
		if st.ID == f.reg.ActiveID() {
			return &st
		}
	}
	return nil
}

// ParamFiles lists the parameter catalog.
type ParamFiles struct {
	Files []params.Entry `json:"files"`
	// Family is the family the active scheme accepts, if any.
	Family params.Family `json:"family,omitempty"`
	// Current is the file the active session was set up with.
	Current string `json:"current,omitempty"`
}

// ListParamFiles lists every parameter file in the catalog.
func (f *Facade) ListParamFiles(_ context.Context) (*ParamFiles, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files, err := f.reg.Catalog().List()
	if err != nil {
		return nil, &Error{Op: "list_param_files", Err: err}
	}
	out := &ParamFiles{Files: files}
	if d, _, s, err := f.reg.Active("list_param_files"); err == nil {
		out.Family = d.ParamFamily
		out.Current = s.ParamFile()
	}
	return out, nil
}

// SetupParams selects the parameter file for Setup.
type SetupParams struct {
	ParamFile string `json:"param_file"`
}

// SetupResult describes an initialized scheme.
type SetupResult struct {
	Scheme       string       `json:"scheme"`
	ParamFile    string       `json:"param_file"`
	ElementSizes ElementSizes `json:"element_sizes"`
	TracerPublic Parts        `json:"tracer_public,omitempty"`
}

func missingParams(op string) error {
	return Errorf(op, ErrInvalidArgument, "request parameters are required")
}

// Setup initializes the active scheme.
func (f *Facade) Setup(ctx context.Context, p *SetupParams) (*SetupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p == nil || p.ParamFile == "" {
		if _, _, _, err := f.reg.Active("setup"); err != nil {
			return nil, err
		}
		return nil, Errorf("setup", ErrInvalidArgument, "param_file is required")
	}
	tracer, err := f.reg.Setup(ctx, p.ParamFile)
	if err != nil {
		return nil, err
	}
	_, adapter, s, _ := f.reg.Active("setup")
	sizes, err := adapter.ElementSizes()
	if err != nil {
		return nil, withScheme(f.reg.ActiveID(), err)
	}
	res := &SetupResult{Scheme: f.reg.ActiveID(), ParamFile: s.ParamFile(), ElementSizes: sizes}
	if tracer != nil {
		res.TracerPublic = tracer.Public.Clone()
	}
	return res, nil
}

// ResetScope selects the sessions ResetSession clears.
type ResetScope string

const (
	ResetCurrent ResetScope = "current"
	ResetAll     ResetScope = "all"
)

// ResetSession clears the active session, or every session for ResetAll.
func (f *Facade) ResetSession(ctx context.Context, scope ResetScope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch scope {
	case ResetCurrent, "":
		if err := f.reg.ResetActive(ctx); err != nil {
			return err
		}
	case ResetAll:
		f.reg.ResetAll(ctx)
	default:
		return Errorf("reset", ErrInvalidArgument, "unknown scope %q", scope)
	}
	f.log.Info(ctx, "session reset", "scope", string(scope))
	return nil
}

// prepare runs the checks shared by every session operation.
func (f *Facade) prepare(op string, c Capability) (Descriptor, Adapter, *SessionState, error) {
	d, adapter, s, err := f.reg.Active(op)
	if err != nil {
		return Descriptor{}, nil, nil, err
	}
	if err := f.reg.RequireCapability(op, c); err != nil {
		return Descriptor{}, nil, nil, err
	}
	if err := f.reg.RequireReady(op); err != nil {
		return Descriptor{}, nil, nil, err
	}
	return d, adapter, s, nil
}

func binding[T any](op, scheme string, adapter Adapter) (T, error) {
	impl, ok := adapter.(T)
	if !ok {
		var zero T
		return zero, Unsupported(op, scheme, "no native binding")
	}
	return impl, nil
}

// GenerateKey creates a key pair and appends it to the session.
func (f *Facade) GenerateKey(ctx context.Context) (*KeyRecord, error) {
	const op = "generate_key"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapKeygen)
	if err != nil {
		return nil, err
	}
	gen, err := binding[KeyGenerator](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	km, err := gen.GenerateKey(KeyRequest{Index: len(s.keys), Tracer: s.TracerKey().Material()})
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	rec := s.appendKey(KeyRecord{Public: km.Public, Private: km.Private, CreatedAt: f.now()})
	f.log.Info(ctx, "key generated", "scheme", d.ID, "id", rec.ID,
		logging.PartNames("public", rec.Public), logging.Redacted("private"))
	out := rec.clone()
	return &out, nil
}

// AddressParams selects the owner key of a new address.
type AddressParams struct {
	KeyIndex int `json:"key_index"`
}

// GenerateAddress derives a one-time address for a session key.
func (f *Facade) GenerateAddress(ctx context.Context, p *AddressParams) (*AddressRecord, error) {
	const op = "generate_address"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapAddrGen)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	key, err := s.Key(op, p.KeyIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	gen, err := binding[AddressGenerator](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	am, err := gen.GenerateAddress(key.Material(), s.TracerKey().Material())
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	rec := s.appendAddress(AddressRecord{
		Address:       am.Address,
		Aux:           am.Aux,
		OwnerKeyIndex: p.KeyIndex,
		CreatedAt:     f.now(),
	})
	f.log.Info(ctx, "address generated", "scheme", d.ID, "id", rec.ID, "owner", key.ID)
	out := rec.clone()
	return &out, nil
}

// RecognizeParams selects the address, key and path to check.
type RecognizeParams struct {
	AddressIndex int  `json:"address_index"`
	KeyIndex     int  `json:"key_index"`
	Fast         bool `json:"fast"`
}

// RecognizeResult reports a recognition check.
type RecognizeResult struct {
	Recognized   bool          `json:"recognized"`
	IsOwner      bool          `json:"is_owner"`
	Mode         RecognizeMode `json:"mode"`
	AddressIndex int           `json:"address_index"`
	KeyIndex     int           `json:"key_index"`
}

// RecognizeAddress checks whether a session key owns a session address. A
// mismatched pair yields Recognized=false, not an error.
func (f *Facade) RecognizeAddress(ctx context.Context, p *RecognizeParams) (*RecognizeResult, error) {
	const op = "recognize_address"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapRecognize)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	addr, err := s.Address(op, p.AddressIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	key, err := s.Key(op, p.KeyIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	rec, err := binding[Recognizer](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	mode := RecognizeFull
	if p.Fast {
		mode = RecognizeFast
	}
	if !supportsMode(rec, mode) {
		return nil, Unsupported(op, d.ID, fmt.Sprintf("%s recognition", mode))
	}
	ok, err := rec.Recognize(addr.Material(), key.Material(), s.TracerKey().Material(), mode)
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	f.log.Debug(ctx, "address recognized", "scheme", d.ID, "address", addr.ID, "key", key.ID, "mode", string(mode), "recognized", ok)
	return &RecognizeResult{
		Recognized:   ok,
		IsOwner:      addr.OwnerKeyIndex == p.KeyIndex,
		Mode:         mode,
		AddressIndex: p.AddressIndex,
		KeyIndex:     p.KeyIndex,
	}, nil
}

func supportsMode(r Recognizer, mode RecognizeMode) bool {
	for _, m := range r.RecognizeModes() {
		if m == mode {
			return true
		}
	}
	return false
}

// DerivedKeyParams selects the address and key a DSK is derived for.
type DerivedKeyParams struct {
	AddressIndex int `json:"address_index"`
	KeyIndex     int `json:"key_index"`
}

// GenerateDerivedKey derives the one-time signing key of an address.
func (f *Facade) GenerateDerivedKey(ctx context.Context, p *DerivedKeyParams) (*DerivedKeyRecord, error) {
	const op = "generate_dsk"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapDSKGen)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	addr, err := s.Address(op, p.AddressIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	key, err := s.Key(op, p.KeyIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	gen, err := binding[DerivedKeyGenerator](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	dk, err := gen.DeriveKey(addr.Material(), key.Material(), s.TracerKey().Material())
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	rec := s.appendDerivedKey(DerivedKeyRecord{
		DSK:          dk.DSK,
		AddressIndex: p.AddressIndex,
		KeyIndex:     p.KeyIndex,
		Method:       dk.Method,
		CreatedAt:    f.now(),
	})
	f.log.Info(ctx, "dsk generated", "scheme", d.ID, "id", rec.ID, "method", string(rec.Method), logging.Redacted("dsk"))
	return &rec, nil
}

// SignParams selects the signing material. Exactly one form is accepted:
// DSKIndex alone, AddressIndex with KeyIndex, or DSKIndex with AddressIndex
// to sign with a DSK against a chosen address.
type SignParams struct {
	Message      string `json:"message"`
	DSKIndex     *int   `json:"dsk_index,omitempty"`
	AddressIndex *int   `json:"address_index,omitempty"`
	KeyIndex     *int   `json:"key_index,omitempty"`
}

// SignResult is a stored signature. CorrectMatch is set only when a DSK was
// used against an explicitly chosen address and reports whether the DSK was
// derived for it.
type SignResult struct {
	Signature    SignatureRecord `json:"signature"`
	CorrectMatch *bool           `json:"correct_match,omitempty"`
}

// SignMessage signs a message and appends the signature to the session.
func (f *Facade) SignMessage(ctx context.Context, p *SignParams) (*SignResult, error) {
	const op = "sign"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapSign)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	if p.Message == "" {
		return nil, withScheme(d.ID, Errorf(op, ErrInvalidArgument, "message is required"))
	}

	var (
		in     = SignInput{Message: p.Message}
		source = SignatureSource{DSKIndex: -1, AddressIndex: -1, KeyIndex: -1}
		match  *bool
	)
	switch {
	case p.DSKIndex != nil && p.KeyIndex == nil:
		dsk, err := s.DerivedKey(op, *p.DSKIndex)
		if err != nil {
			return nil, withScheme(d.ID, err)
		}
		addrIndex := dsk.AddressIndex
		if p.AddressIndex != nil {
			addrIndex = *p.AddressIndex
		}
		addr, err := s.Address(op, addrIndex)
		if err != nil {
			return nil, withScheme(d.ID, err)
		}
		if p.AddressIndex != nil {
			ok := dsk.AddressIndex == addrIndex
			match = &ok
		}
		in.Address = addr.Material()
		in.DSK = dsk.DSK
		source.DSKIndex = *p.DSKIndex
		source.AddressIndex = addrIndex
	case p.DSKIndex == nil && p.AddressIndex != nil && p.KeyIndex != nil:
		addr, err := s.Address(op, *p.AddressIndex)
		if err != nil {
			return nil, withScheme(d.ID, err)
		}
		key, err := s.Key(op, *p.KeyIndex)
		if err != nil {
			return nil, withScheme(d.ID, err)
		}
		in.Address = addr.Material()
		in.Key = key.Material()
		source.AddressIndex = *p.AddressIndex
		source.KeyIndex = *p.KeyIndex
	default:
		return nil, withScheme(d.ID, Errorf(op, ErrInvalidArgument, "give dsk_index, or address_index with key_index, or dsk_index with address_index"))
	}

	signer, err := binding[Signer](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	parts, err := signer.Sign(in)
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	rec := s.appendSignature(SignatureRecord{
		Message:   p.Message,
		Parts:     parts,
		Source:    source,
		CreatedAt: f.now(),
	})
	f.log.Info(ctx, "message signed", "scheme", d.ID, "id", rec.ID, "dsk", source.DSKIndex, "address", source.AddressIndex)
	return &SignResult{Signature: rec.clone(), CorrectMatch: match}, nil
}

// VerifyParams is a signature check against a session address.
type VerifyParams struct {
	Message      string `json:"message"`
	Signature    Parts  `json:"signature"`
	AddressIndex int    `json:"address_index"`
}

// VerifyResult reports a signature check.
type VerifyResult struct {
	Valid        bool `json:"valid"`
	AddressIndex int  `json:"address_index"`
}

// VerifySignature checks a signature. An invalid signature is Valid=false.
func (f *Facade) VerifySignature(ctx context.Context, p *VerifyParams) (*VerifyResult, error) {
	const op = "verify"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapVerify)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	addr, err := s.Address(op, p.AddressIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	if len(p.Signature) == 0 {
		return nil, withScheme(d.ID, Errorf(op, ErrInvalidArgument, "signature is required"))
	}
	if err := p.Signature.Validate(op); err != nil {
		return nil, withScheme(d.ID, err)
	}
	v, err := binding[SignatureVerifier](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	ok, err := v.VerifySignature(addr.Material(), p.Signature, p.Message)
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	f.log.Debug(ctx, "signature verified", "scheme", d.ID, "address", addr.ID, "valid", ok)
	return &VerifyResult{Valid: ok, AddressIndex: p.AddressIndex}, nil
}

// MatchType classifies how a traced identity was linked to a session key.
type MatchType string

const (
	MatchPerfect MatchType = "perfect"
	// MatchPartial compares only TracePrefixLen leading characters. It works
	// around libraries whose encodings differ between calls and proves
	// nothing.
	MatchPartial MatchType = "partial"
	MatchNone    MatchType = "none"
)

// TraceParams selects the address to trace.
type TraceParams struct {
	AddressIndex int `json:"address_index"`
}

// TraceResult is the outcome of a trace. MatchedKeyIndex is nil when no
// session key matched; Authoritative is true only for perfect matches.
type TraceResult struct {
	AddressIndex    int               `json:"address_index"`
	Recovered       RecoveredIdentity `json:"recovered"`
	MatchedKeyIndex *int              `json:"matched_key_index"`
	MatchType       MatchType         `json:"match_type"`
	Authoritative   bool              `json:"authoritative"`
	OriginalOwner   int               `json:"original_owner"`
	CorrectTrace    bool              `json:"correct_trace"`
}

// TraceIdentity recovers the owner of an address with the tracer key.
func (f *Facade) TraceIdentity(ctx context.Context, p *TraceParams) (*TraceResult, error) {
	const op = "trace"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, s, err := f.prepare(op, CapTrace)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	addr, err := s.Address(op, p.AddressIndex)
	if err != nil {
		return nil, withScheme(d.ID, err)
	}
	tr, err := binding[Tracer](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	if s.TracerKey() == nil {
		return nil, &Error{Op: op, Scheme: d.ID, Err: fmt.Errorf("%w: no tracer key", ErrNotInitialized)}
	}
	id, err := tr.Trace(addr.Material(), s.TracerKey().Material())
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}

	res := &TraceResult{
		AddressIndex:  p.AddressIndex,
		Recovered:     id,
		MatchType:     MatchNone,
		OriginalOwner: addr.OwnerKeyIndex,
	}
	if i, mt := matchKey(s.keys, id); mt != MatchNone {
		res.MatchedKeyIndex = &i
		res.MatchType = mt
		res.Authoritative = mt == MatchPerfect
		res.CorrectTrace = i == addr.OwnerKeyIndex
	}
	f.log.Info(ctx, "address traced", "scheme", d.ID, "address", addr.ID, "match", string(res.MatchType))
	return res, nil
}

func matchKey(keys []KeyRecord, id RecoveredIdentity) (int, MatchType) {
	target := strings.ToLower(id.Hex)
	if target == "" {
		return -1, MatchNone
	}
	for i, k := range keys {
		if strings.ToLower(k.Public[id.Component]) == target {
			return i, MatchPerfect
		}
	}
	prefix := target[:min(len(target), TracePrefixLen)]
	for i, k := range keys {
		if strings.HasPrefix(strings.ToLower(k.Public[id.Component]), prefix) {
			return i, MatchPartial
		}
	}
	return -1, MatchNone
}

// BenchmarkParams sets the iteration count of RunBenchmark.
type BenchmarkParams struct {
	Iterations int `json:"iterations"`
}

// BenchmarkResult holds average milliseconds per operation.
type BenchmarkResult struct {
	Scheme     string             `json:"scheme"`
	Iterations int                `json:"iterations"`
	Requested  int                `json:"requested"`
	Timings    map[string]float64 `json:"timings_ms"`
}

// RunBenchmark runs the library's performance test. Iterations above the
// configured maximum are clamped.
func (f *Facade) RunBenchmark(ctx context.Context, p *BenchmarkParams) (*BenchmarkResult, error) {
	const op = "benchmark"
	f.mu.Lock()
	defer f.mu.Unlock()
	d, adapter, _, err := f.prepare(op, CapPerformance)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withScheme(d.ID, missingParams(op))
	}
	if p.Iterations <= 0 {
		return nil, withScheme(d.ID, Errorf(op, ErrInvalidArgument, "iterations must be positive, got %d", p.Iterations))
	}
	n := min(p.Iterations, f.maxIterations)
	b, err := binding[Benchmarker](op, d.ID, adapter)
	if err != nil {
		return nil, err
	}
	if r, ok := adapter.(PerformanceResetter); ok {
		if err := r.ResetPerformance(); err != nil {
			f.log.Warn(ctx, "performance reset failed", "scheme", d.ID, "error", err)
		}
	}
	timings, err := b.Benchmark(n)
	if err != nil {
		return nil, withScheme(d.ID, wrap(op, err))
	}
	for name, ms := range timings {
		timings[name] = math.Round(ms*1000) / 1000
	}
	f.log.Info(ctx, "benchmark finished", "scheme", d.ID, "iterations", n, "operations", len(timings))
	return &BenchmarkResult{Scheme: d.ID, Iterations: n, Requested: p.Iterations, Timings: timings}, nil
}

// Status is the process-wide status.
type Status struct {
	Active  string         `json:"active_scheme,omitempty"`
	Schemes []SchemeStatus `json:"schemes"`
}

// GetStatus reports every scheme.
func (f *Facade) GetStatus(_ context.Context) *Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Status{Active: f.reg.ActiveID(), Schemes: f.reg.Status()}
}

func (f *Facade) session(op string) (*SessionState, error) {
	_, _, s, err := f.reg.Active(op)
	return s, err
}

// Keys lists the active session's keys.
func (f *Facade) Keys(_ context.Context) ([]KeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session("list_keys")
	if err != nil {
		return nil, err
	}
	return s.Keys(), nil
}

// Addresses lists the active session's addresses.
func (f *Facade) Addresses(_ context.Context) ([]AddressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session("list_addresses")
	if err != nil {
		return nil, err
	}
	return s.Addresses(), nil
}

// DerivedKeys lists the active session's derived keys.
func (f *Facade) DerivedKeys(_ context.Context) ([]DerivedKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session("list_dsks")
	if err != nil {
		return nil, err
	}
	return s.DerivedKeys(), nil
}

// Signatures lists the active session's signatures.
func (f *Facade) Signatures(_ context.Context) ([]SignatureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session("list_signatures")
	if err != nil {
		return nil, err
	}
	return s.Signatures(), nil
}

// Close releases the active adapter.
func (f *Facade) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg.Close(ctx)
}
