package common

import (
	"fmt"
	"sort"
	"strings"
)

// PktStats mirrors the raw per-CPU kernel map value shape: a packet and a
// byte counter for one action or one tag.
type PktStats struct {
	RxPackets uint64
	RxBytes   uint64
}

func (p PktStats) Add(o PktStats) PktStats {
	return PktStats{RxPackets: p.RxPackets + o.RxPackets, RxBytes: p.RxBytes + o.RxBytes}
}

// Stats is the top-level snapshot: total entry counts for the drop and
// ignore policies (both address families summed) plus the XDP per-action
// counters keyed by action name (e.g. "drop", "pass").
type Stats struct {
	DropCidrCount   int                 `json:"drop_cidr_count"`
	IgnoreCidrCount int                 `json:"ignore_cidr_count"`
	Xdp             map[string]PktStats `json:"xdp"`
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drop entries: %d\nIgnore entries: %d\n", s.DropCidrCount, s.IgnoreCidrCount)
	keys := make([]string, 0, len(s.Xdp))
	for k := range s.Xdp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Xdp[k]
		fmt.Fprintf(&b, "%s: %d packets, %d bytes\n", k, v.RxPackets, v.RxBytes)
	}
	return b.String()
}

// TagStats is the per-tag packet/byte breakdown for one policy.
type TagStats struct {
	Tags map[string]PktStats `json:"tags"`
}

func (t TagStats) String() string {
	if len(t.Tags) == 0 {
		return "No tag statistics available."
	}
	keys := make([]string, 0, len(t.Tags))
	for k := range t.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := t.Tags[k]
		fmt.Fprintf(&b, "Tag: %s\n RX Packets: %d\n RX Bytes: %d\n", k, v.RxPackets, v.RxBytes)
	}
	return b.String()
}
