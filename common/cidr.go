package common

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Family distinguishes the two LPM store pairs every Policy owns.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// NormalizedCidr is a prefix network canonicalized so host bits are zero.
// Equality and hashing (it is a valid Go map key as-is) are by
// (family, network address, prefix length).
type NormalizedCidr struct {
	prefix netip.Prefix
}

// NewNormalizedCidr masks host bits off addr/prefixLen and returns the
// canonical network. It never fails for a valid address/length pair.
func NewNormalizedCidr(addr netip.Addr, prefixLen int) (NormalizedCidr, error) {
	p := netip.PrefixFrom(addr, prefixLen)
	if !p.IsValid() {
		return NormalizedCidr{}, fmt.Errorf("invalid prefix length %d for %s", prefixLen, addr)
	}
	return NormalizedCidr{prefix: p.Masked()}, nil
}

// ParseNormalizedCidr parses the textual "addr/len" form, e.g. "10.0.0.0/8".
func ParseNormalizedCidr(s string) (NormalizedCidr, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return NormalizedCidr{}, fmt.Errorf("invalid CIDR notation: %w", err)
	}
	return NormalizedCidr{prefix: p.Masked()}, nil
}

// FromAddrAndPrefix builds a NormalizedCidr from a host address string and
// a separately-parsed prefix length, the shape the /v1/{policy}/{ip}/{prefix}
// path parameters arrive in.
func FromAddrAndPrefix(ip string, prefixLen int) (NormalizedCidr, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return NormalizedCidr{}, fmt.Errorf("invalid IP address: %w", err)
	}
	maxLen := 32
	if addr.Is6() && !addr.Is4In6() {
		maxLen = 128
	}
	if prefixLen < 0 || prefixLen > maxLen {
		return NormalizedCidr{}, fmt.Errorf("prefix must be between 0 and %d, got %d", maxLen, prefixLen)
	}
	return NewNormalizedCidr(addr, prefixLen)
}

func (c NormalizedCidr) Family() Family {
	if c.prefix.Addr().Is4() || c.prefix.Addr().Is4In6() {
		return FamilyV4
	}
	return FamilyV6
}

func (c NormalizedCidr) PrefixLen() int {
	return c.prefix.Bits()
}

func (c NormalizedCidr) Network() netip.Addr {
	return c.prefix.Addr()
}

// String renders the canonical "addr/len" textual form.
func (c NormalizedCidr) String() string {
	return c.prefix.String()
}

func (c NormalizedCidr) IsValid() bool {
	return c.prefix.IsValid()
}

func (c NormalizedCidr) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *NormalizedCidr) UnmarshalText(b []byte) error {
	v, err := ParseNormalizedCidr(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// LPMKeyV4 is the byte-order-correct kernel LPM key for a v4 entry:
// {prefix_len uint32, network_u32_be}. The BPF LPM trie map key format
// requires the length prefix, then the raw matching bytes.
type LPMKeyV4 struct {
	PrefixLen uint32
	Addr      [4]byte
}

// LPMKeyV6 is the v6 analogue of LPMKeyV4.
type LPMKeyV6 struct {
	PrefixLen uint32
	Addr      [16]byte
}

// ToLPMKeyV4 projects the CIDR into its kernel LPM trie key. Panics if
// called on a v6 CIDR — callers must check Family() first, the same
// family-mismatch invariant the LPM Store enforces before ever reaching
// the kernel boundary.
func (c NormalizedCidr) ToLPMKeyV4() LPMKeyV4 {
	a4 := c.prefix.Addr().As4()
	return LPMKeyV4{PrefixLen: uint32(c.prefix.Bits()), Addr: a4}
}

func (c NormalizedCidr) ToLPMKeyV6() LPMKeyV6 {
	a16 := c.prefix.Addr().As16()
	return LPMKeyV6{PrefixLen: uint32(c.prefix.Bits()), Addr: a16}
}

// NetworkU32BE returns the network address as a big-endian uint32, the
// projection used when a caller needs the raw integer rather than the
// struct key (e.g. logging, stats aggregation keys).
func (c NormalizedCidr) NetworkU32BE() uint32 {
	a4 := c.prefix.Addr().As4()
	return binary.BigEndian.Uint32(a4[:])
}
