package tsa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

// State is the lifecycle position of one registered scheme.
type State string

const (
	StateRegistered          State = "registered"
	StateActiveUninitialized State = "active-uninitialized"
	StateActiveInitialized   State = "active-initialized"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLoader replaces the platform dynamic loader.
func WithLoader(l native.Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// WithLibDir sets the directory scheme libraries are resolved against.
func WithLibDir(dir string) Option {
	return func(r *Registry) { r.libDir = dir }
}

// WithLibraryPath overrides the library path of one scheme.
func WithLibraryPath(id, path string) Option {
	return func(r *Registry) { r.libPaths[id] = path }
}

// WithCatalog sets the parameter file catalog.
func WithCatalog(c *params.Catalog) Option {
	return func(r *Registry) { r.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry holds the registered schemes, the single active adapter and a
// session per scheme. At most one scheme is active at a time.
//
// A Registry is not safe for concurrent use; Facade serializes access.
type Registry struct {
	loader   native.Loader
	libDir   string
	libPaths map[string]string
	catalog  *params.Catalog
	log      logging.Logger

	order       []string
	descriptors map[string]Descriptor
	sessions    *SessionStore

	activeID string
	adapter  Adapter
	// ready is true while adapter has been initialized with the active
	// session's parameter file.
	ready bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		loader:      native.DefaultLoader,
		libPaths:    make(map[string]string),
		catalog:     params.NewCatalog("."),
		log:         logging.New(nil),
		descriptors: make(map[string]Descriptor),
		sessions:    NewSessionStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds d and creates its empty session.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return wrap("register", err)
	}
	if _, dup := r.descriptors[d.ID]; dup {
		return Errorf("register", ErrInvalidArgument, "scheme %s already registered", d.ID)
	}
	r.descriptors[d.ID] = d
	r.order = append(r.order, d.ID)
	r.sessions.Add(d.ID)
	return nil
}

// Descriptor returns the descriptor registered under id.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	d, ok := r.descriptors[id]
	return d, ok
}

// IDs lists registered scheme ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// ActiveID is the active scheme id, or "".
func (r *Registry) ActiveID() string { return r.activeID }

// Catalog is the parameter file catalog.
func (r *Registry) Catalog() *params.Catalog { return r.catalog }

// State reports the lifecycle state of id.
func (r *Registry) State(id string) State {
	switch {
	case id != r.activeID || r.adapter == nil:
		return StateRegistered
	case r.ready:
		return StateActiveInitialized
	default:
		return StateActiveUninitialized
	}
}

// Schemes lists every registered scheme in registration order.
func (r *Registry) Schemes() []SchemeInfo {
	out := make([]SchemeInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id].info(r.State(id)))
	}
	return out
}

// Session returns the session of id.
func (r *Registry) Session(id string) (*SessionState, bool) {
	return r.sessions.Get(id)
}

// Sessions is the store backing every scheme.
func (r *Registry) Sessions() *SessionStore { return r.sessions }

// Active returns the active descriptor, adapter and session, or
// NoActiveScheme.
func (r *Registry) Active(op string) (Descriptor, Adapter, *SessionState, error) {
	if r.adapter == nil {
		return Descriptor{}, nil, nil, &Error{Op: op, Err: fmt.Errorf("%w: activate a scheme first", ErrNoActiveScheme)}
	}
	s, _ := r.sessions.Get(r.activeID)
	return r.descriptors[r.activeID], r.adapter, s, nil
}

// RequireCapability fails with CapabilityNotSupported unless the active
// scheme declares c. The adapter is never consulted.
func (r *Registry) RequireCapability(op string, c Capability) error {
	d, _, _, err := r.Active(op)
	if err != nil {
		return err
	}
	if !d.Capabilities.Has(c) {
		return &Error{Op: op, Scheme: d.ID, Err: fmt.Errorf("%w: %s does not support %s", ErrCapabilityNotSupported, d.DisplayName, c)}
	}
	return nil
}

// RequireReady fails with NotInitialized unless the active session has
// completed setup and its adapter is initialized.
func (r *Registry) RequireReady(op string) error {
	_, _, s, err := r.Active(op)
	if err != nil {
		return err
	}
	if err := s.EnsureInitialized(op); err != nil {
		return err
	}
	if !r.ready {
		return &Error{Op: op, Scheme: r.activeID, Err: fmt.Errorf("%w: library lost its parameters; run setup again", ErrNotInitialized)}
	}
	return nil
}

// LibraryPath resolves the shared object path of id.
func (r *Registry) LibraryPath(id string) string {
	if p, ok := r.libPaths[id]; ok && p != "" {
		return p
	}
	d := r.descriptors[id]
	if r.libDir == "" || filepath.IsAbs(d.Library) {
		return d.Library
	}
	return filepath.Join(r.libDir, d.Library)
}

// Activate makes id the active scheme. The new library is loaded and bound
// before the previous adapter is cleaned up and closed, so a failed load
// leaves the previous scheme active. Sessions are never reset here: when
// id's session already completed setup, the fresh adapter is initialized
// from the stored parameter file.
func (r *Registry) Activate(ctx context.Context, id string) error {
	const op = "activate"
	d, ok := r.descriptors[id]
	if !ok {
		return Errorf(op, ErrUnknownScheme, "%q", id)
	}
	if id == r.activeID && r.adapter != nil {
		return nil
	}

	path := r.LibraryPath(id)
	lib, err := r.loader.Open(path)
	if err != nil {
		return &Error{Op: op, Scheme: id, Err: fmt.Errorf("%w: %w", ErrLibraryLoadFailed, err)}
	}
	adapter, err := d.NewAdapter(lib, r.log.With("scheme", id))
	if err != nil {
		_ = lib.Close()
		if !errors.Is(err, ErrLibraryLoadFailed) {
			err = fmt.Errorf("%w: %v", ErrLibraryLoadFailed, err)
		}
		return withScheme(id, wrap(op, err))
	}

	r.deactivate(ctx)
	r.activeID = id
	r.adapter = adapter
	r.ready = false
	r.log.Info(ctx, "scheme activated", "scheme", id, "library", path)

	s, _ := r.sessions.Get(id)
	if s.Initialized() {
		if err := r.initAdapter(s.ParamFile()); err != nil {
			r.log.Warn(ctx, "restored session could not be re-initialized", "scheme", id, "param_file", s.ParamFile(), "error", err)
		} else {
			r.ready = true
		}
	}
	return nil
}

// deactivate returns the active scheme to Registered.
func (r *Registry) deactivate(ctx context.Context) {
	if r.adapter == nil {
		return
	}
	if err := r.adapter.Cleanup(); err != nil {
		r.log.Warn(ctx, "cleanup failed", "scheme", r.activeID, "error", err)
	}
	if err := r.adapter.Close(); err != nil {
		r.log.Warn(ctx, "close failed", "scheme", r.activeID, "error", err)
	}
	r.log.Info(ctx, "scheme deactivated", "scheme", r.activeID)
	r.activeID = ""
	r.adapter = nil
	r.ready = false
}

// resolveParam finds name in the catalog for the active scheme. Family
// mismatches are rejected before the filesystem is consulted.
func (r *Registry) resolveParam(op string, d Descriptor, name string) (params.Entry, error) {
	family := params.FamilyOf(name)
	if family != d.ParamFamily {
		return params.Entry{}, &Error{Op: op, Scheme: d.ID, Err: fmt.Errorf("%w: %q is a %s file, %s needs %s", ErrUnsupportedParamFile, name, family, d.ID, d.ParamFamily)}
	}
	entry, err := r.catalog.Resolve(name)
	if err != nil {
		return params.Entry{}, &Error{Op: op, Scheme: d.ID, Err: fmt.Errorf("%w: %v", ErrInvalidArgument, err)}
	}
	return entry, nil
}

func (r *Registry) initAdapter(name string) error {
	d := r.descriptors[r.activeID]
	entry, err := r.resolveParam("init", d, name)
	if err != nil {
		return err
	}
	if err := r.adapter.Init(entry.Path); err != nil {
		return withScheme(d.ID, wrap("init", err))
	}
	return nil
}

// Setup initializes the active scheme from the named parameter file,
// replacing the session's artifacts and generating a new tracer key. Schemes
// without a tracer return a nil record. The session is reset only once the
// new parameters are in place: when Init or tracer key generation fails, the
// previous artifacts are kept and the adapter is re-initialized from the
// previous parameter file.
func (r *Registry) Setup(ctx context.Context, paramFile string) (*TracerKeyRecord, error) {
	const op = "setup"
	d, adapter, s, err := r.Active(op)
	if err != nil {
		return nil, err
	}
	if err := r.RequireCapability(op, CapSetup); err != nil {
		return nil, err
	}
	entry, err := r.resolveParam(op, d, paramFile)
	if err != nil {
		return nil, err
	}

	if err := adapter.Cleanup(); err != nil {
		r.log.Warn(ctx, "cleanup before setup failed", "scheme", d.ID, "error", err)
	}
	r.ready = false

	if err := adapter.Init(entry.Path); err != nil {
		r.restore(ctx, s)
		return nil, withScheme(d.ID, wrap(op, err))
	}
	r.ready = true

	km, err := adapter.TracerKeygen()
	if err != nil {
		_ = adapter.Cleanup()
		r.ready = false
		r.restore(ctx, s)
		return nil, withScheme(d.ID, wrap(op, err))
	}
	s.Reset()
	var tracer *TracerKeyRecord
	if len(km.Public)+len(km.Private) > 0 {
		tracer = &TracerKeyRecord{Public: km.Public, Private: km.Private, ParamFile: entry.Name}
	}
	s.markInitialized(entry.Name, tracer)

	sizes, _ := adapter.ElementSizes()
	r.log.Info(ctx, "scheme initialized",
		"scheme", d.ID,
		"param_file", entry.Name,
		"g1", sizes.G1, "zr", sizes.Zr, "gt", sizes.GT,
		logging.PartNames("tracer_public", km.Public),
		logging.Redacted("tracer_private"),
	)
	return tracer, nil
}

// restore re-initializes the adapter from the parameter file of a session
// that completed setup earlier.
func (r *Registry) restore(ctx context.Context, s *SessionState) {
	if !s.Initialized() {
		return
	}
	if err := r.initAdapter(s.ParamFile()); err != nil {
		r.log.Warn(ctx, "previous parameters could not be restored", "scheme", r.activeID, "param_file", s.ParamFile(), "error", err)
		return
	}
	r.ready = true
}

// ResetActive clears the active session and releases native state. The
// scheme stays active.
func (r *Registry) ResetActive(ctx context.Context) error {
	_, adapter, s, err := r.Active("reset")
	if err != nil {
		return err
	}
	if err := adapter.Cleanup(); err != nil {
		r.log.Warn(ctx, "cleanup on reset failed", "scheme", r.activeID, "error", err)
	}
	r.ready = false
	s.Reset()
	return nil
}

// ResetAll clears every session. The active adapter, if any, is cleaned up.
func (r *Registry) ResetAll(ctx context.Context) {
	if r.adapter != nil {
		if err := r.adapter.Cleanup(); err != nil {
			r.log.Warn(ctx, "cleanup on reset failed", "scheme", r.activeID, "error", err)
		}
		r.ready = false
	}
	r.sessions.ResetAll()
}

// SchemeStatus is the status of one registered scheme.
type SchemeStatus struct {
	ID           string        `json:"id"`
	State        State         `json:"state"`
	Initialized  bool          `json:"initialized"`
	ParamFile    string        `json:"param_file,omitempty"`
	TracerKeySet bool          `json:"tracer_key_set"`
	Counts       Counts        `json:"counts"`
	ElementSizes *ElementSizes `json:"element_sizes,omitempty"`
	DSKMethod    DSKMethod     `json:"dsk_method,omitempty"`
}

// Status reports every registered scheme. Element sizes and the derivation
// method are known only for the active scheme.
func (r *Registry) Status() []SchemeStatus {
	out := make([]SchemeStatus, 0, len(r.order))
	for _, id := range r.order {
		s, _ := r.sessions.Get(id)
		st := SchemeStatus{
			ID:           id,
			State:        r.State(id),
			Initialized:  s.Initialized(),
			ParamFile:    s.ParamFile(),
			TracerKeySet: s.TracerKey() != nil,
			Counts:       s.Counts(),
		}
		if id == r.activeID && r.adapter != nil {
			if sizes, err := r.adapter.ElementSizes(); err == nil {
				st.ElementSizes = &sizes
			}
			if rep, ok := r.adapter.(DSKReporter); ok && r.descriptors[id].Capabilities.Has(CapDSKGen) {
				st.DSKMethod = rep.DSKMethod()
			}
		}
		out = append(out, st)
	}
	return out
}

// Close deactivates the active scheme.
func (r *Registry) Close(ctx context.Context) error {
	r.deactivate(ctx)
	return nil
}
