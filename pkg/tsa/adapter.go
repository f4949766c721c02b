package tsa

// Adapter binds one scheme library to the normalized operation surface. Every
// adapter implements the lifecycle methods; the operations live in optional
// interfaces below. A missing interface is reported as UnsupportedOperation,
// independently of the capability the descriptor declares.
//
// Adapters are not safe for concurrent use.
type Adapter interface {
	// Init initializes native state from the parameter file at paramPath.
	// Calling Init twice without Cleanup in between fails with InitFailed.
	Init(paramPath string) error
	// ElementSizes is valid only after a successful Init.
	ElementSizes() (ElementSizes, error)
	// TracerKeygen generates the key pair stored in the session's tracer slot.
	TracerKeygen() (KeyMaterial, error)
	// Cleanup releases native state. It is safe to call when not initialized.
	Cleanup() error
	// Close cleans up and releases the library handle.
	Close() error
}

// KeyMaterial is a key pair split into named hex parts.
type KeyMaterial struct {
	Public  Parts
	Private Parts
}

// KeyRequest carries the context some schemes need to derive a key.
type KeyRequest struct {
	// Index is the position the key will take in the session.
	Index int
	// Tracer is the session tracer key; hierarchical schemes derive children
	// from it.
	Tracer KeyMaterial
}

// AddressMaterial is a generated address and its auxiliary components.
type AddressMaterial struct {
	Address string
	Aux     Parts
}

// RecognizeMode selects a recognition path.
type RecognizeMode string

const (
	// RecognizeFast consumes only recipient-side material.
	RecognizeFast RecognizeMode = "fast"
	// RecognizeFull additionally consumes the tracer public key.
	RecognizeFull RecognizeMode = "full"
)

// DSKMethod records how a derived key was produced.
type DSKMethod string

const (
	DSKDedicated DSKMethod = "dedicated"
	DSKFallback  DSKMethod = "fallback"
)

// DerivedKeyMaterial is a one-time signing key for an address.
type DerivedKeyMaterial struct {
	DSK    string
	Method DSKMethod
}

// SignInput selects the signing key. When DSK is set it is used directly;
// otherwise Key signs through the address.
type SignInput struct {
	Address AddressMaterial
	Key     KeyMaterial
	DSK     string
	Message string
}

// RecoveredIdentity is the owner component a trace recovers. Component names
// the public part of KeyMaterial it should equal.
type RecoveredIdentity struct {
	Component string
	Hex       string
}

type KeyGenerator interface {
	GenerateKey(req KeyRequest) (KeyMaterial, error)
}

type AddressGenerator interface {
	GenerateAddress(owner KeyMaterial, tracer KeyMaterial) (AddressMaterial, error)
}

// Recognizer checks address ownership. RecognizeModes lists the paths the
// binding supports; recognition with any other mode is UnsupportedOperation.
type Recognizer interface {
	RecognizeModes() []RecognizeMode
	Recognize(addr AddressMaterial, key KeyMaterial, tracer KeyMaterial, mode RecognizeMode) (bool, error)
}

type DerivedKeyGenerator interface {
	DeriveKey(addr AddressMaterial, key KeyMaterial, tracer KeyMaterial) (DerivedKeyMaterial, error)
}

type Signer interface {
	Sign(in SignInput) (Parts, error)
}

type SignatureVerifier interface {
	VerifySignature(addr AddressMaterial, sig Parts, message string) (bool, error)
}

type Tracer interface {
	Trace(addr AddressMaterial, tracer KeyMaterial) (RecoveredIdentity, error)
}

// Benchmarker runs the library's built-in performance test and reports
// average milliseconds per operation.
type Benchmarker interface {
	Benchmark(iterations int) (map[string]float64, error)
}

// PerformanceResetter clears the library's performance counters.
type PerformanceResetter interface {
	ResetPerformance() error
}

// DSKReporter is implemented by adapters whose derivation method depends on
// the symbols the library exports.
type DSKReporter interface {
	DSKMethod() DSKMethod
}
