package tsa

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capability is a set of operations a scheme declares it supports. A single
// bit names one operation; sets are combined with |.
type Capability uint16

const (
	CapSetup Capability = 1 << iota
	CapKeygen
	CapAddrGen
	CapRecognize
	CapDSKGen
	CapSign
	CapVerify
	CapTrace
	CapPerformance

	// AllCapabilities is every operation the facade can route.
	AllCapabilities = CapSetup | CapKeygen | CapAddrGen | CapRecognize | CapDSKGen |
		CapSign | CapVerify | CapTrace | CapPerformance
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapSetup, "setup"},
	{CapKeygen, "keygen"},
	{CapAddrGen, "addrgen"},
	{CapRecognize, "recognize"},
	{CapDSKGen, "dskgen"},
	{CapSign, "sign"},
	{CapVerify, "verify"},
	{CapTrace, "trace"},
	{CapPerformance, "performance"},
}

// Has reports whether every operation in other is in c.
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

// Names lists the operations in c in declaration order.
func (c Capability) Names() []string {
	names := make([]string, 0, bits.OnesCount16(uint16(c)))
	for _, cn := range capabilityNames {
		if c&cn.cap != 0 {
			names = append(names, cn.name)
		}
	}
	return names
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

// ParseCapability maps an operation name to its capability.
func ParseCapability(name string) (Capability, error) {
	for _, cn := range capabilityNames {
		if cn.name == name {
			return cn.cap, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown capability %q", ErrInvalidArgument, name)
}
