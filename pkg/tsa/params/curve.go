package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/joho/godotenv"
)

// CurveConfig is the content of a curve-family parameter file.
type CurveConfig struct {
	NID           string `json:"nid"`
	CurveName     string `json:"curve_name"`
	PointSize     int    `json:"point_size"`
	ScalarSize    int    `json:"scalar_size"`
	BufferSize    int    `json:"buffer_size"`
	HashAlgorithm string `json:"hash_algorithm"`
}

type curveInfo struct {
	nid        string
	pointSize  int
	scalarSize int
}

var knownCurves = map[string]curveInfo{
	"secp256k1":  {"NID_secp256k1", btcec.PubKeyBytesLenCompressed, btcec.PrivKeyBytesLen},
	"secp256r1":  {"NID_X9_62_prime256v1", 33, 32},
	"prime256v1": {"NID_X9_62_prime256v1", 33, 32},
	"secp384r1":  {"NID_secp384r1", 49, 48},
	"secp521r1":  {"NID_secp521r1", 67, 66},
}

// DefaultCurveConfig mirrors the defaults the curve libraries fall back to.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		NID:           "NID_X9_62_prime256v1",
		CurveName:     "secp256r1",
		PointSize:     33,
		ScalarSize:    32,
		BufferSize:    64,
		HashAlgorithm: "sha256",
	}
}

// LoadCurveConfig reads a "key=value" curve file. Unknown keys are ignored;
// comment lines start with '#'. Sizes the file omits come from the named
// curve when it is known.
func LoadCurveConfig(path string) (CurveConfig, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return CurveConfig{}, fmt.Errorf("read curve config %s: %w", path, err)
	}
	return parseCurveValues(values)
}

// ParseCurveConfig parses curve file content.
func ParseCurveConfig(content string) (CurveConfig, error) {
	values, err := godotenv.Unmarshal(content)
	if err != nil {
		return CurveConfig{}, fmt.Errorf("parse curve config: %w", err)
	}
	return parseCurveValues(values)
}

func parseCurveValues(values map[string]string) (CurveConfig, error) {
	cfg := DefaultCurveConfig()
	explicit := make(map[string]bool)

	if v, ok := values["curve_name"]; ok && v != "" {
		cfg.CurveName = strings.ToLower(v)
	}
	if v, ok := values["nid"]; ok && v != "" {
		cfg.NID = v
		for name, info := range knownCurves {
			if info.nid == v && values["curve_name"] == "" {
				cfg.CurveName = name
				break
			}
		}
	}
	if v, ok := values["hash_algorithm"]; ok && v != "" {
		cfg.HashAlgorithm = v
	}
	for key, dst := range map[string]*int{
		"point_size":  &cfg.PointSize,
		"scalar_size": &cfg.ScalarSize,
		"buffer_size": &cfg.BufferSize,
	} {
		v, ok := values[key]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return CurveConfig{}, fmt.Errorf("curve config: %s must be a positive integer, got %q", key, v)
		}
		*dst = n
		explicit[key] = true
	}

	if info, ok := knownCurves[cfg.CurveName]; ok {
		if values["nid"] == "" {
			cfg.NID = info.nid
		}
		if !explicit["point_size"] {
			cfg.PointSize = info.pointSize
		}
		if !explicit["scalar_size"] {
			cfg.ScalarSize = info.scalarSize
		}
	}
	return cfg, nil
}
