package nativetest

import (
	"bytes"
	"crypto/sha256"
	"os"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	btcschnorr "github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/tsalab/stealthd/internal/native"
)

// Element sizes reported by the fake libraries once initialized.
const (
	PointSize  = btcec.PubKeyBytesLenCompressed
	ScalarSize = btcec.PrivKeyBytesLen
	PairSize   = 2 * PointSize
)

func randomScalar() *btcec.ModNScalar {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		panic(err)
	}
	return &priv.Key
}

func scalarFrom(b []byte) *btcec.ModNScalar {
	var s btcec.ModNScalar
	s.SetByteSlice(b[:min(len(b), ScalarSize)])
	return &s
}

func putScalar(dst []byte, s *btcec.ModNScalar) {
	b := s.Bytes()
	copy(dst, b[:])
}

func basePoint(k *btcec.ModNScalar) *btcec.JacobianPoint {
	var r btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(k, &r)
	return &r
}

func mulPoint(k *btcec.ModNScalar, p *btcec.JacobianPoint) *btcec.JacobianPoint {
	var r btcec.JacobianPoint
	btcec.ScalarMultNonConst(k, p, &r)
	return &r
}

func addPoints(p, q *btcec.JacobianPoint) *btcec.JacobianPoint {
	var r btcec.JacobianPoint
	btcec.AddNonConst(p, q, &r)
	return &r
}

func negPoint(p *btcec.JacobianPoint) *btcec.JacobianPoint {
	r := *p
	r.ToAffine()
	r.Y.Negate(1).Normalize()
	return &r
}

func pointBytes(p *btcec.JacobianPoint) []byte {
	q := *p
	q.ToAffine()
	return btcec.NewPublicKey(&q.X, &q.Y).SerializeCompressed()
}

func putPoint(dst []byte, p *btcec.JacobianPoint) {
	copy(dst, pointBytes(p))
}

func parsePoint(b []byte) (*btcec.JacobianPoint, bool) {
	if len(b) < PointSize {
		return nil, false
	}
	pub, err := btcec.ParsePubKey(b[:PointSize])
	if err != nil {
		return nil, false
	}
	var j btcec.JacobianPoint
	pub.AsJacobian(&j)
	return &j, true
}

func samePoint(p *btcec.JacobianPoint, b []byte) bool {
	return len(b) >= PointSize && bytes.Equal(pointBytes(p), b[:PointSize])
}

func hashScalar(parts ...[]byte) *btcec.ModNScalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var s btcec.ModNScalar
	s.SetByteSlice(h.Sum(nil))
	return &s
}

func addScalars(a, b *btcec.ModNScalar) *btcec.ModNScalar {
	var r btcec.ModNScalar
	r.Add2(a, b)
	return &r
}

// keypair writes a fresh (aG, a) pair.
func keypair(pub, priv []byte) *btcec.ModNScalar {
	k := randomScalar()
	putPoint(pub, basePoint(k))
	putScalar(priv, k)
	return k
}

// schnorrSign signs sha256(msg) with the scalar in key and splits the BIP-340
// signature across the two output buffers.
func schnorrSign(key []byte, msg string, first, second []byte) bool {
	priv, _ := btcec.PrivKeyFromBytes(key[:min(len(key), ScalarSize)])
	hash := sha256.Sum256([]byte(msg))
	sig, err := btcschnorr.Sign(priv, hash[:])
	if err != nil {
		return false
	}
	raw := sig.Serialize()
	copy(first, raw[:32])
	copy(second, raw[32:])
	return true
}

func schnorrVerify(pub []byte, msg string, first, second []byte) bool {
	if len(first) < 32 || len(second) < 32 || len(pub) < PointSize {
		return false
	}
	key, err := btcec.ParsePubKey(pub[:PointSize])
	if err != nil {
		return false
	}
	raw := make([]byte, 0, 64)
	raw = append(raw, first[:32]...)
	raw = append(raw, second[:32]...)
	sig, err := btcschnorr.ParseSignature(raw)
	if err != nil {
		return false
	}
	hash := sha256.Sum256([]byte(msg))
	return sig.Verify(hash[:], key)
}

func boolInt(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// lifecycle models the global init/cleanup state every scheme library keeps.
type lifecycle struct {
	mu          sync.Mutex
	initialized bool
	param       string
	resets      int
}

func (lc *lifecycle) init(path string) int {
	if _, err := os.Stat(path); err != nil {
		return -1
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.initialized = true
	lc.param = path
	return 0
}

func (lc *lifecycle) ready() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.initialized
}

func (lc *lifecycle) cleanup() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.initialized = false
	lc.param = ""
}

func (lc *lifecycle) size(n int) int {
	if !lc.ready() {
		return 0
	}
	return n
}

func (lc *lifecycle) define(l *Library, initName, readyName, cleanupName, resetName string) {
	l.Define(initName, func(args []native.Arg) int { return lc.init(args[0].Text()) })
	l.Define(readyName, func([]native.Arg) int { return boolInt(lc.ready()) })
	l.Define(cleanupName, Void(func([]native.Arg) { lc.cleanup() }))
	l.Define(resetName, Void(func([]native.Arg) {
		lc.mu.Lock()
		lc.resets++
		lc.mu.Unlock()
	}))
}

// timings models a void performance_test(int iterations, double *results)
// that writes exactly n doubles.
func timings(n int) Func {
	return Void(func(args []native.Arg) {
		if len(args) != 2 || args[1].Kind() != native.KindDoubles {
			violate("want (int, double*), got %d args", len(args))
		}
		out := args[1].Float64s()
		if len(out) < n {
			violate("results holds %d doubles, library writes %d", len(out), n)
		}
		for i := 0; i < n; i++ {
			out[i] = 0.1234*float64(i+1) + 0.0004
		}
	})
}

// curveInfo models the void get_curve_info(char *name, int *point,
// int *scalar, int *buffer), which returns early while uninitialized.
func curveInfo(lc *lifecycle) Func {
	return Void(func(args []native.Arg) {
		if len(args) != 4 {
			violate("want 4 args, got %d", len(args))
		}
		if !lc.ready() {
			return
		}
		copy(args[0].Bytes(), "secp256k1\x00")
		args[1].SetInt(PointSize)
		args[2].SetInt(ScalarSize)
		args[3].SetInt(512)
	})
}
