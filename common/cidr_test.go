package common

import (
	"net/netip"
	"testing"
)

func TestParseNormalizedCidrMasksHostBits(t *testing.T) {
	c, err := ParseNormalizedCidr("10.1.2.3/8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := c.String(), "10.0.0.0/8"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if c.Family() != FamilyV4 {
		t.Fatalf("expected FamilyV4, got %v", c.Family())
	}
}

func TestParseNormalizedCidrInvalid(t *testing.T) {
	if _, err := ParseNormalizedCidr("not-a-cidr"); err == nil {
		t.Fatal("expected error for malformed CIDR")
	}
}

func TestFromAddrAndPrefixRejectsOutOfRangePrefix(t *testing.T) {
	if _, err := FromAddrAndPrefix("10.0.0.1", 33); err == nil {
		t.Fatal("expected error for v4 prefix > 32")
	}
	if _, err := FromAddrAndPrefix("::1", 129); err == nil {
		t.Fatal("expected error for v6 prefix > 128")
	}
	c, err := FromAddrAndPrefix("192.168.1.5", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := c.String(), "192.168.1.0/24"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizedCidrFamilyV6(t *testing.T) {
	c, err := ParseNormalizedCidr("2001:db8::/32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Family() != FamilyV6 {
		t.Fatalf("expected FamilyV6, got %v", c.Family())
	}
}

func TestToLPMKeyV4RoundTrips(t *testing.T) {
	c, err := NewNormalizedCidr(netip.MustParseAddr("203.0.113.0"), 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := c.ToLPMKeyV4()
	if key.PrefixLen != 24 {
		t.Fatalf("got prefix len %d, want 24", key.PrefixLen)
	}
	want := [4]byte{203, 0, 113, 0}
	if key.Addr != want {
		t.Fatalf("got addr %v, want %v", key.Addr, want)
	}
}

func TestNormalizedCidrTextMarshalRoundTrip(t *testing.T) {
	c, err := ParseNormalizedCidr("172.16.0.0/12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out NormalizedCidr
	if err := out.UnmarshalText(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != c.String() {
		t.Fatalf("got %q, want %q", out.String(), c.String())
	}
}
