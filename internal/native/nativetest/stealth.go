package nativetest

import (
	"crypto/sha256"

	"github.com/tsalab/stealthd/internal/native"
)

// Stealth returns a fake traceable stealth-address library, including the
// optional dedicated DSK functions. Remove "stealth_dsk_gen_simple" and
// "stealth_sign_with_dsk_simple" to model a build without them.
//
// Toy construction: h = H(r·A) = H(a·R1), addr = h·G + B, C = sha256(h),
// R2 = h xor H(r·TK), dsk = h + b.
func Stealth(path string) *Library {
	l := New(path)
	lc := &lifecycle{}
	lc.define(l, "stealth_init", "stealth_is_initialized", "stealth_cleanup", "stealth_reset_performance")
	l.Define("stealth_element_size_G1", func([]native.Arg) int { return lc.size(PointSize) })
	l.Define("stealth_element_size_Zr", func([]native.Arg) int { return lc.size(ScalarSize) })

	l.Define("stealth_keygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[2].Bytes())
		keypair(args[1].Bytes(), args[3].Bytes())
	}))
	l.Define("stealth_tracekeygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[1].Bytes())
	}))
	l.Define("stealth_addr_gen_simple", Void(func(args []native.Arg) {
		A, okA := parsePoint(args[0].Bytes())
		B, okB := parsePoint(args[1].Bytes())
		TK, okT := parsePoint(args[2].Bytes())
		if !okA || !okB || !okT {
			return
		}
		r := randomScalar()
		h := hashScalar(pointBytes(mulPoint(r, A)))
		putPoint(args[3].Bytes(), addPoints(basePoint(h), B))
		putPoint(args[4].Bytes(), basePoint(r))
		hb := h.Bytes()
		masked := mask(hb, pointBytes(mulPoint(r, TK)))
		copy(args[5].Bytes(), masked[:])
		tag := stealthTag(h)
		copy(args[6].Bytes(), tag[:])
	}))
	l.Define("stealth_addr_recognize_fast_simple", func(args []native.Arg) int {
		_, ok := stealthShared(args[0].Bytes(), args[4].Bytes(), args[3].Bytes())
		return boolInt(ok)
	})
	l.Define("stealth_addr_recognize_simple", func(args []native.Arg) int {
		if _, ok := parsePoint(args[6].Bytes()); !ok {
			return 0
		}
		h, ok := stealthShared(args[1].Bytes(), args[5].Bytes(), args[4].Bytes())
		if !ok {
			return 0
		}
		B, ok := parsePoint(args[2].Bytes())
		if !ok {
			return 0
		}
		return boolInt(samePoint(addPoints(basePoint(scalarFrom(h)), B), args[0].Bytes()))
	})
	l.Define("stealth_dsk_gen_simple", Void(func(args []native.Arg) {
		// addr, R1, a, b, dsk
		stealthDSK(args[1].Bytes(), args[2].Bytes(), args[3].Bytes(), args[4].Bytes())
	}))
	l.Define("stealth_sign_simple", Void(func(args []native.Arg) {
		// addr, R1, a, b, msg, Qsigma, h, dsk
		dsk := args[7].Bytes()
		if !stealthDSK(args[1].Bytes(), args[2].Bytes(), args[3].Bytes(), dsk) {
			return
		}
		schnorrSign(dsk, args[4].Text(), args[5].Bytes(), args[6].Bytes())
	}))
	l.Define("stealth_sign_with_dsk_simple", Void(func(args []native.Arg) {
		// addr, dsk, msg, Qsigma, h
		schnorrSign(args[1].Bytes(), args[2].Text(), args[3].Bytes(), args[4].Bytes())
	}))
	l.Define("stealth_verify_simple", func(args []native.Arg) int {
		// addr, R2, C, msg, h, Qsigma
		return boolInt(schnorrVerify(args[0].Bytes(), args[3].Text(), args[5].Bytes(), args[4].Bytes()))
	})
	l.Define("stealth_trace_simple", Void(func(args []native.Arg) {
		// addr, R1, R2, C, k, B_rec
		addr, okA := parsePoint(args[0].Bytes())
		R1, okR := parsePoint(args[1].Bytes())
		if !okA || !okR {
			return
		}
		var masked [32]byte
		copy(masked[:], args[2].Bytes())
		k := scalarFrom(args[4].Bytes())
		hb := mask(masked, pointBytes(mulPoint(k, R1)))
		putPoint(args[5].Bytes(), addPoints(addr, negPoint(basePoint(scalarFrom(hb[:])))))
	}))
	l.Define("stealth_performance_test_simple", timings(7))
	return l
}

func stealthTag(h interface{ Bytes() [32]byte }) [32]byte {
	b := h.Bytes()
	return sha256.Sum256(b[:])
}

// stealthShared recomputes h = H(a·R1) and checks it against the tag C.
func stealthShared(r1, a, c []byte) ([]byte, bool) {
	R1, ok := parsePoint(r1)
	if !ok || len(c) < 32 {
		return nil, false
	}
	h := hashScalar(pointBytes(mulPoint(scalarFrom(a), R1)))
	tag := stealthTag(h)
	if string(tag[:]) != string(c[:32]) {
		return nil, false
	}
	b := h.Bytes()
	return b[:], true
}

func stealthDSK(r1, a, b, out []byte) bool {
	R1, ok := parsePoint(r1)
	if !ok {
		return false
	}
	h := hashScalar(pointBytes(mulPoint(scalarFrom(a), R1)))
	putScalar(out, addScalars(h, scalarFrom(b)))
	return true
}

// mask xors b with a keystream derived from seed; applying it twice is the
// identity.
func mask(b [32]byte, seed []byte) [32]byte {
	stream := sha256.Sum256(append([]byte("trace"), seed...))
	for i := range b {
		b[i] ^= stream[i]
	}
	return b
}
