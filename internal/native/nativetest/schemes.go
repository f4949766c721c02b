package nativetest

import (
	"fmt"
	"strings"

	"github.com/tsalab/stealthd/internal/native"
)

// Sitaiba returns a fake SITAIBA library.
//
// Toy construction: R1 = r·G, R2 = r·A_r, addr = H(R2)·G + B_r,
// dsk = H(R2) + b_r. Fast recognition checks R2 = a_r·R1.
func Sitaiba(path string) *Library {
	l := New(path)
	lc := &lifecycle{}
	lc.define(l, "sitaiba_init_simple", "sitaiba_is_initialized_simple", "sitaiba_cleanup_simple", "sitaiba_reset_performance_simple")
	l.Define("sitaiba_element_size_G1_simple", func([]native.Arg) int { return lc.size(PointSize) })
	l.Define("sitaiba_element_size_Zr_simple", func([]native.Arg) int { return lc.size(ScalarSize) })

	var tracerPub []byte
	l.Define("sitaiba_keygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[2].Bytes())
		keypair(args[1].Bytes(), args[3].Bytes())
	}))
	l.Define("sitaiba_tracer_keygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[1].Bytes())
		tracerPub = append([]byte(nil), args[0].Bytes()[:PointSize]...)
	}))
	l.Define("sitaiba_get_tracer_public_key_simple", func(args []native.Arg) int {
		if tracerPub == nil {
			return -1
		}
		copy(args[0].Bytes(), tracerPub)
		return 0
	})
	l.Define("sitaiba_addr_gen_simple", Void(func(args []native.Arg) {
		// A_r, B_r, A_m, addr, R1, R2
		Ar, okA := parsePoint(args[0].Bytes())
		Br, okB := parsePoint(args[1].Bytes())
		if _, okM := parsePoint(args[2].Bytes()); !okA || !okB || !okM {
			return
		}
		r := randomScalar()
		R2 := pointBytes(mulPoint(r, Ar))
		putPoint(args[3].Bytes(), addPoints(basePoint(hashScalar(R2)), Br))
		putPoint(args[4].Bytes(), basePoint(r))
		copy(args[5].Bytes(), R2)
	}))
	fast := func(r1, r2, ar []byte) bool {
		R1, ok := parsePoint(r1)
		return ok && samePoint(mulPoint(scalarFrom(ar), R1), r2)
	}
	l.Define("sitaiba_addr_recognize_fast_simple", func(args []native.Arg) int {
		// R1, R2, A_r, a_r
		return boolInt(fast(args[0].Bytes(), args[1].Bytes(), args[3].Bytes()))
	})
	l.Define("sitaiba_addr_recognize_simple", func(args []native.Arg) int {
		// addr, R1, R2, A_r, B_r, a_r, A_m
		if _, ok := parsePoint(args[6].Bytes()); !ok {
			return 0
		}
		if !fast(args[1].Bytes(), args[2].Bytes(), args[5].Bytes()) {
			return 0
		}
		Br, ok := parsePoint(args[4].Bytes())
		if !ok {
			return 0
		}
		h := hashScalar(args[2].Bytes()[:PointSize])
		return boolInt(samePoint(addPoints(basePoint(h), Br), args[0].Bytes()))
	})
	l.Define("sitaiba_onetime_skgen_simple", Void(func(args []native.Arg) {
		// R1, a_r, b_r, A_m, dsk
		R1, ok := parsePoint(args[0].Bytes())
		if !ok {
			return
		}
		R2 := pointBytes(mulPoint(scalarFrom(args[1].Bytes()), R1))
		putScalar(args[4].Bytes(), addScalars(hashScalar(R2), scalarFrom(args[2].Bytes())))
	}))
	l.Define("sitaiba_trace_simple", Void(func(args []native.Arg) {
		// addr, R1, R2, a_m, B_rec
		addr, ok := parsePoint(args[0].Bytes())
		if !ok || len(args[2].Bytes()) < PointSize {
			return
		}
		h := hashScalar(args[2].Bytes()[:PointSize])
		putPoint(args[4].Bytes(), addPoints(addr, negPoint(basePoint(h))))
	}))
	l.Define("sitaiba_performance_test_simple", timings(5))
	return l
}

// Hdwsa returns a fake hierarchical deterministic wallet library. Every
// function reports a status code where 0 is success.
//
// Toy construction: child keys are alpha' = H(alpha, id), beta' = H(beta, id);
// Qr = r·G, Qvk = H(r·B)·G + A, dsk = H(beta·Qr) + alpha.
func Hdwsa(path string) *Library {
	l := New(path)
	lc := &lifecycle{}
	lc.define(l, "hdwsa_init_simple", "hdwsa_is_initialized_simple", "hdwsa_cleanup_simple", "hdwsa_reset_performance_simple")
	l.Define("hdwsa_element_size_G1_simple", func([]native.Arg) int { return lc.size(PointSize) })
	l.Define("hdwsa_element_size_Zr_simple", func([]native.Arg) int { return lc.size(ScalarSize) })
	l.Define("hdwsa_element_size_GT_simple", func([]native.Arg) int { return lc.size(PairSize) })

	l.Define("hdwsa_root_keygen_simple", func(args []native.Arg) int {
		if !lc.ready() {
			return -1
		}
		keypair(args[0].Bytes(), args[2].Bytes())
		keypair(args[1].Bytes(), args[3].Bytes())
		return 0
	})
	l.Define("hdwsa_keypair_gen_simple", func(args []native.Arg) int {
		// A2, B2, alpha2, beta2, alpha1, beta1, id
		id := []byte(args[6].Text())
		if len(id) == 0 {
			return -1
		}
		alpha := hashScalar(args[4].Bytes()[:ScalarSize], id)
		beta := hashScalar(args[5].Bytes()[:ScalarSize], id)
		putPoint(args[0].Bytes(), basePoint(alpha))
		putPoint(args[1].Bytes(), basePoint(beta))
		putScalar(args[2].Bytes(), alpha)
		putScalar(args[3].Bytes(), beta)
		return 0
	})
	l.Define("hdwsa_addr_gen_simple", func(args []native.Arg) int {
		// Qr, Qvk, A, B
		A, okA := parsePoint(args[2].Bytes())
		B, okB := parsePoint(args[3].Bytes())
		if !okA || !okB {
			return -1
		}
		r := randomScalar()
		t := hashScalar(pointBytes(mulPoint(r, B)))
		putPoint(args[0].Bytes(), basePoint(r))
		putPoint(args[1].Bytes(), addPoints(basePoint(t), A))
		return 0
	})
	l.Define("hdwsa_addr_recognize_simple", func(args []native.Arg) int {
		// Qvk, Qr, A, B, beta
		Qr, okQ := parsePoint(args[1].Bytes())
		A, okA := parsePoint(args[2].Bytes())
		if !okQ || !okA {
			return -1
		}
		t := hashScalar(pointBytes(mulPoint(scalarFrom(args[4].Bytes()), Qr)))
		return boolInt(samePoint(addPoints(basePoint(t), A), args[0].Bytes()))
	})
	l.Define("hdwsa_dsk_gen_simple", func(args []native.Arg) int {
		// dsk, Qr, B, alpha, beta
		Qr, ok := parsePoint(args[1].Bytes())
		if !ok {
			return -1
		}
		t := hashScalar(pointBytes(mulPoint(scalarFrom(args[4].Bytes()), Qr)))
		putScalar(args[0].Bytes(), addScalars(t, scalarFrom(args[3].Bytes())))
		return 0
	})
	l.Define("hdwsa_sign_simple", func(args []native.Arg) int {
		// h, Qsigma, dsk, Qr, Qvk, msg
		if !schnorrSign(args[2].Bytes(), args[5].Text(), args[1].Bytes(), args[0].Bytes()) {
			return -1
		}
		return 0
	})
	l.Define("hdwsa_verify_simple", func(args []native.Arg) int {
		// h, Qsigma, Qr, Qvk, msg
		if _, ok := parsePoint(args[3].Bytes()); !ok {
			return -1
		}
		return boolInt(schnorrVerify(args[3].Bytes(), args[4].Text(), args[1].Bytes(), args[0].Bytes()))
	})
	iterations := 0
	l.Define("hdwsa_performance_test_simple", func(args []native.Arg) int {
		iterations = args[0].Value()
		return iterations
	})
	l.Define("hdwsa_get_performance_string_simple", func(args []native.Arg) int {
		var sb strings.Builder
		fmt.Fprintf(&sb, "HDWSA performance (%d iterations)\n", iterations)
		for i, op := range []string{"root_keygen", "keypair_gen", "addr_gen", "addr_recognize", "dsk_gen", "sign", "verify"} {
			fmt.Fprintf(&sb, "%s: %.4f ms\n", op, 0.25*float64(i+1))
		}
		out := args[0].Bytes()
		n := copy(out[:max(len(out)-1, 0)], sb.String())
		if n < len(out) {
			out[n] = 0
		}
		return 0
	})
	return l
}

// CryptoNote returns a fake CryptoNote library.
//
// Toy construction: R = r·G, PK_one = H(r·A)·G + B, sk = H(a·R) + b.
func CryptoNote(path string) *Library {
	l := New(path)
	lc := &lifecycle{}
	lc.define(l, "cryptonote2_init", "cryptonote2_is_initialized", "cryptonote2_cleanup", "cryptonote2_reset_performance")
	l.Define("cryptonote2_get_curve_info", curveInfo(lc))
	l.Define("cryptonote2_keygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[2].Bytes())
		keypair(args[1].Bytes(), args[3].Bytes())
	}))
	l.Define("cryptonote2_addr_gen_simple", Void(func(args []native.Arg) {
		// A, B, PK_one, R
		A, okA := parsePoint(args[0].Bytes())
		B, okB := parsePoint(args[1].Bytes())
		if !okA || !okB {
			return
		}
		r := randomScalar()
		h := hashScalar(pointBytes(mulPoint(r, A)))
		putPoint(args[2].Bytes(), addPoints(basePoint(h), B))
		putPoint(args[3].Bytes(), basePoint(r))
	}))
	l.Define("cryptonote2_addr_verify_simple", func(args []native.Arg) int {
		// PK_one, R, a, B
		R, okR := parsePoint(args[1].Bytes())
		B, okB := parsePoint(args[3].Bytes())
		if !okR || !okB {
			return 0
		}
		h := hashScalar(pointBytes(mulPoint(scalarFrom(args[2].Bytes()), R)))
		return boolInt(samePoint(addPoints(basePoint(h), B), args[0].Bytes()))
	})
	l.Define("cryptonote2_onetime_sk_gen_simple", Void(func(args []native.Arg) {
		// R, a, b, sk
		R, ok := parsePoint(args[0].Bytes())
		if !ok {
			return
		}
		h := hashScalar(pointBytes(mulPoint(scalarFrom(args[1].Bytes()), R)))
		putScalar(args[3].Bytes(), addScalars(h, scalarFrom(args[2].Bytes())))
	}))
	l.Define("cryptonote2_performance_test_simple", timings(4))
	return l
}

// Zhao returns a fake Zhao et al. library with two-buffer key generation.
// Signing symbols are exported even though the scheme does not advertise
// them.
func Zhao(path string) *Library {
	l := New(path)
	lc := &lifecycle{}
	lc.define(l, "zhao_init", "zhao_is_initialized", "zhao_cleanup", "zhao_reset_performance")
	l.Define("zhao_get_curve_info", curveInfo(lc))
	l.Define("zhao_keygen_simple", Void(func(args []native.Arg) {
		keypair(args[0].Bytes(), args[1].Bytes())
	}))
	l.Define("zhao_sign_simple", Void(func(args []native.Arg) {
		schnorrSign(args[1].Bytes(), args[0].Text(), args[2].Bytes(), args[3].Bytes())
	}))
	l.Define("zhao_verify_simple", func(args []native.Arg) int {
		return boolInt(schnorrVerify(args[1].Bytes(), args[0].Text(), args[2].Bytes(), args[3].Bytes()))
	})
	l.Define("zhao_performance_test_simple", timings(4))
	return l
}
