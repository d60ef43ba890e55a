package common

import (
	"fmt"
	"net/netip"
	"strconv"
)

// PolicyPath is the REST path-param validator for
// /v1/{policy}/{ip}/{prefix}: policy, ip and prefix are each parsed
// independently (so a request with a bad policy AND a bad ip surfaces
// both field errors at once), then, only once both parse, the prefix
// range is checked against the address family before the CIDR is built.
type PolicyPath struct {
	Policy Policy
	Cidr   NormalizedCidr
}

func ValidatePolicyPathFrom(in PolicyPathInput) (PolicyPath, *CompositeError) {
	var ce *CompositeError
	var policy Policy
	var addr netip.Addr
	var prefixLen int
	var haveAddr, havePrefix bool

	p, err := ParsePolicy(in.Policy)
	if err != nil {
		ce = fieldErr(ce, "policy", err.Error())
	} else {
		policy = p
	}

	if pl, err := strconv.Atoi(in.Prefix); err != nil {
		ce = fieldErr(ce, "prefix", fmt.Sprintf("%q is not a valid prefix value", in.Prefix))
	} else {
		prefixLen = pl
		havePrefix = true
	}

	a, err := netip.ParseAddr(in.IP)
	if err != nil {
		ce = fieldErr(ce, "ip", err.Error())
	} else {
		addr = a
		haveAddr = true
	}

	if haveAddr && havePrefix {
		maxLen := 32
		if addr.Is6() && !addr.Is4In6() {
			maxLen = 128
		}
		if prefixLen < 0 || prefixLen > maxLen {
			ce = fieldErr(ce, "prefix", fmt.Sprintf("prefix must be between 0 and %d, got %d", maxLen, prefixLen))
		} else {
			cidr, err := NewNormalizedCidr(addr, prefixLen)
			if err != nil {
				ce = fieldErr(ce, "cidr", err.Error())
			} else if ce == nil {
				return PolicyPath{Policy: policy, Cidr: cidr}, nil
			}
		}
	}

	if ce != nil {
		return PolicyPath{}, ce
	}
	return PolicyPath{}, Internal("unreachable validation state")
}
